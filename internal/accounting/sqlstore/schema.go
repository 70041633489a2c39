package sqlstore

// schema mirrors migrations/0001_ledger.sql for SQLite. Dates are stored as
// YYYY-MM-DD text and timestamps as RFC 3339 text.
const schema = `
CREATE TABLE IF NOT EXISTS accounts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    code TEXT NOT NULL UNIQUE,
    name TEXT NOT NULL,
    type TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    normal_side TEXT NOT NULL,
    is_group INTEGER NOT NULL DEFAULT 0,
    parent_id INTEGER REFERENCES accounts(id) ON DELETE SET NULL,
    is_active INTEGER NOT NULL DEFAULT 1,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS journal_numbers (
    n INTEGER PRIMARY KEY AUTOINCREMENT
);

CREATE TABLE IF NOT EXISTS journal_entries (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    number INTEGER NOT NULL UNIQUE,
    date TEXT NOT NULL,
    description TEXT NOT NULL,
    reference TEXT NOT NULL DEFAULT '',
    source_module TEXT NOT NULL DEFAULT '',
    source_event_id TEXT UNIQUE,
    source_subject TEXT NOT NULL DEFAULT '',
    total_debit INTEGER NOT NULL,
    total_credit INTEGER NOT NULL,
    status TEXT NOT NULL,
    reversal_of INTEGER REFERENCES journal_entries(id),
    reversed_by INTEGER REFERENCES journal_entries(id),
    created_by INTEGER,
    posted_at TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    CHECK (total_debit = total_credit)
);

CREATE INDEX IF NOT EXISTS idx_journal_entries_date ON journal_entries(date, number);
CREATE INDEX IF NOT EXISTS idx_journal_entries_subject ON journal_entries(source_subject);

CREATE TABLE IF NOT EXISTS journal_lines (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    je_id INTEGER NOT NULL REFERENCES journal_entries(id) ON DELETE CASCADE,
    line_no INTEGER NOT NULL,
    account_id INTEGER NOT NULL REFERENCES accounts(id),
    debit INTEGER NOT NULL DEFAULT 0 CHECK (debit >= 0),
    credit INTEGER NOT NULL DEFAULT 0 CHECK (credit >= 0),
    note TEXT NOT NULL DEFAULT '',
    UNIQUE (je_id, line_no)
);

CREATE INDEX IF NOT EXISTS idx_journal_lines_account ON journal_lines(account_id);

CREATE TABLE IF NOT EXISTS periods (
    code TEXT PRIMARY KEY,
    status TEXT NOT NULL,
    updated_by INTEGER,
    updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS account_mappings (
    module TEXT NOT NULL,
    key TEXT NOT NULL,
    account_id INTEGER NOT NULL REFERENCES accounts(id),
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    PRIMARY KEY (module, key)
);
`
