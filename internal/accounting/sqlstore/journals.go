package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/odyssey-erp/koperasi/internal/accounting/accounts"
	"github.com/odyssey-erp/koperasi/internal/accounting/journals"
	"github.com/odyssey-erp/koperasi/internal/accounting/periods"
	"github.com/odyssey-erp/koperasi/internal/accounting/shared"
)

const entryColumns = `id, number, date, description, reference, source_module, source_event_id, source_subject,
total_debit, total_credit, status, reversal_of, reversed_by, created_by, posted_at, created_at, updated_at`

type journalRepo struct{ s *Store }

// WithTx runs fn inside one SQLite transaction. Open sets _txlock=immediate,
// so concurrent writers queue on the database lock instead of failing late.
func (r journalRepo) WithTx(ctx context.Context, fn func(context.Context, journals.TxRepository) error) error {
	tx, err := r.s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(ctx, &journalTx{tx: tx, s: r.s}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func (r journalRepo) Get(ctx context.Context, id int64) (journals.JournalEntry, error) {
	return getEntry(ctx, r.s.db, `SELECT `+entryColumns+` FROM journal_entries WHERE id=?`, id)
}

func (r journalRepo) FindBySourceEvent(ctx context.Context, sourceEventID string) (journals.JournalEntry, error) {
	if sourceEventID == "" {
		return journals.JournalEntry{}, shared.ErrJournalNotFound
	}
	return getEntry(ctx, r.s.db, `SELECT `+entryColumns+` FROM journal_entries WHERE source_event_id=?`, sourceEventID)
}

func (r journalRepo) List(ctx context.Context, filter journals.ListFilter) ([]journals.JournalEntry, error) {
	var (
		where []string
		args  []any
	)
	if filter.Status != "" {
		where = append(where, "status=?")
		args = append(args, filter.Status)
	}
	if !filter.From.IsZero() {
		where = append(where, "date>=?")
		args = append(args, filter.From.Format(dateLayout))
	}
	if !filter.To.IsZero() {
		where = append(where, "date<=?")
		args = append(args, filter.To.Format(dateLayout))
	}
	if filter.AccountID != 0 {
		where = append(where, "EXISTS (SELECT 1 FROM journal_lines l WHERE l.je_id=journal_entries.id AND l.account_id=?)")
		args = append(args, filter.AccountID)
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		where = append(where, "(description LIKE ? OR reference LIKE ?)")
		args = append(args, pattern, pattern)
	}
	query := `SELECT ` + entryColumns + ` FROM journal_entries`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date DESC, number DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	rows, err := r.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	var entries []journals.JournalEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		entries = append(entries, entry)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// lines are loaded after the cursor is released; SQLite handles may be single-connection
	for i := range entries {
		if entries[i].Lines, err = loadLines(ctx, r.s.db, entries[i].ID); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

func (r journalRepo) PostedLines(ctx context.Context, q journals.LineQuery) ([]journals.PostedLine, error) {
	where, args := lineWhere(q)
	rows, err := r.s.db.QueryContext(ctx, `SELECT e.id, e.number, e.date, e.description, e.reference, e.source_module, e.source_subject, e.status,
l.line_no, l.account_id, l.debit, l.credit, l.note
FROM journal_lines l JOIN journal_entries e ON e.id = l.je_id
WHERE `+where+` ORDER BY e.date, e.number, l.line_no`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []journals.PostedLine
	for rows.Next() {
		var (
			pl   journals.PostedLine
			date string
		)
		if err := rows.Scan(&pl.EntryID, &pl.Number, &date, &pl.Description, &pl.Reference, &pl.SourceModule, &pl.SourceSubject, &pl.Status,
			&pl.LineNo, &pl.AccountID, &pl.Debit, &pl.Credit, &pl.Note); err != nil {
			return nil, err
		}
		if pl.Date, err = parseDate(date); err != nil {
			return nil, err
		}
		lines = append(lines, pl)
	}
	return lines, rows.Err()
}

func (r journalRepo) SumPostedLines(ctx context.Context, q journals.LineQuery) ([]journals.AccountTotal, error) {
	where, args := lineWhere(q)
	rows, err := r.s.db.QueryContext(ctx, `SELECT l.account_id, COALESCE(SUM(l.debit),0), COALESCE(SUM(l.credit),0)
FROM journal_lines l JOIN journal_entries e ON e.id = l.je_id
WHERE `+where+` GROUP BY l.account_id ORDER BY l.account_id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var totals []journals.AccountTotal
	for rows.Next() {
		var t journals.AccountTotal
		if err := rows.Scan(&t.AccountID, &t.Debit, &t.Credit); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

func lineWhere(q journals.LineQuery) (string, []any) {
	statuses := q.Statuses()
	where := []string{"e.status IN (" + placeholders(len(statuses)) + ")"}
	args := make([]any, 0, len(statuses)+5)
	for _, st := range statuses {
		args = append(args, string(st))
	}
	if q.AccountID != 0 {
		where = append(where, "l.account_id=?")
		args = append(args, q.AccountID)
	}
	if !q.From.IsZero() {
		where = append(where, "e.date>=?")
		args = append(args, q.From.Format(dateLayout))
	}
	if !q.Until.IsZero() {
		where = append(where, "e.date<?")
		args = append(args, q.Until.Format(dateLayout))
	}
	if q.SourceSubject != "" {
		where = append(where, "e.source_subject=?")
		args = append(args, q.SourceSubject)
	}
	if len(q.SourceModules) > 0 {
		where = append(where, "e.source_module IN ("+placeholders(len(q.SourceModules))+")")
		for _, m := range q.SourceModules {
			args = append(args, m)
		}
	}
	return strings.Join(where, " AND "), args
}

type journalTx struct {
	tx *sql.Tx
	s  *Store
}

func (t *journalTx) NextNumber(ctx context.Context) (int64, error) {
	res, err := t.tx.ExecContext(ctx, `INSERT INTO journal_numbers DEFAULT VALUES`)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (t *journalTx) Insert(ctx context.Context, entry journals.JournalEntry) (journals.JournalEntry, error) {
	now := t.s.stamp()
	var eventID any
	if entry.SourceEventID != "" {
		eventID = entry.SourceEventID
	}
	var postedAt any
	if entry.PostedAt != nil {
		postedAt = entry.PostedAt.UTC().Format(stampLayout)
	}
	var createdBy any
	if entry.CreatedBy != 0 {
		createdBy = entry.CreatedBy
	}
	res, err := t.tx.ExecContext(ctx, `INSERT INTO journal_entries (number, date, description, reference, source_module, source_event_id, source_subject,
total_debit, total_credit, status, reversal_of, created_by, posted_at, created_at, updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		entry.Number, entry.Date.Format(dateLayout), entry.Description, entry.Reference, entry.SourceModule, eventID, entry.SourceSubject,
		entry.TotalDebit, entry.TotalCredit, entry.Status, nullInt64(entry.ReversalOf), createdBy, postedAt, now, now)
	if err != nil {
		// number comes from journal_numbers, so the only reachable unique
		// violation is source_event_id
		if entry.SourceEventID != "" && constraintCode(err) == sqlite3.ErrConstraintUnique {
			return journals.JournalEntry{}, shared.ErrSourceConflict
		}
		return journals.JournalEntry{}, err
	}
	if entry.ID, err = res.LastInsertId(); err != nil {
		return journals.JournalEntry{}, err
	}
	if entry.CreatedAt, err = parseStamp(now); err != nil {
		return journals.JournalEntry{}, err
	}
	entry.UpdatedAt = entry.CreatedAt
	if err := t.insertLines(ctx, entry.ID, entry.Lines); err != nil {
		return journals.JournalEntry{}, err
	}
	for i := range entry.Lines {
		entry.Lines[i].JournalID = entry.ID
	}
	return entry, nil
}

func (t *journalTx) insertLines(ctx context.Context, entryID int64, lines []journals.JournalLine) error {
	for _, line := range lines {
		if _, err := t.tx.ExecContext(ctx, `INSERT INTO journal_lines (je_id, line_no, account_id, debit, credit, note) VALUES (?,?,?,?,?,?)`,
			entryID, line.LineNo, line.AccountID, line.Debit, line.Credit, line.Note); err != nil {
			return err
		}
	}
	return nil
}

// GetForUpdate needs no row lock: the immediate transaction already holds
// the database write lock.
func (t *journalTx) GetForUpdate(ctx context.Context, id int64) (journals.JournalEntry, error) {
	return getEntry(ctx, t.tx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=?`, id)
}

func (t *journalTx) Update(ctx context.Context, entry journals.JournalEntry) (journals.JournalEntry, error) {
	now := t.s.stamp()
	res, err := t.tx.ExecContext(ctx, `UPDATE journal_entries SET date=?, description=?, reference=?, total_debit=?, total_credit=?, updated_at=? WHERE id=?`,
		entry.Date.Format(dateLayout), entry.Description, entry.Reference, entry.TotalDebit, entry.TotalCredit, now, entry.ID)
	if err != nil {
		return journals.JournalEntry{}, err
	}
	if err := expectOne(res, shared.ErrJournalNotFound); err != nil {
		return journals.JournalEntry{}, err
	}
	if entry.UpdatedAt, err = parseStamp(now); err != nil {
		return journals.JournalEntry{}, err
	}
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM journal_lines WHERE je_id=?`, entry.ID); err != nil {
		return journals.JournalEntry{}, err
	}
	if err := t.insertLines(ctx, entry.ID, entry.Lines); err != nil {
		return journals.JournalEntry{}, err
	}
	return entry, nil
}

func (t *journalTx) MarkPosted(ctx context.Context, id int64, at time.Time) error {
	return t.exec(ctx, `UPDATE journal_entries SET status='POSTED', posted_at=?, updated_at=? WHERE id=?`, at.UTC().Format(stampLayout), t.s.stamp(), id)
}

func (t *journalTx) MarkReversed(ctx context.Context, id, reversalID int64) error {
	return t.exec(ctx, `UPDATE journal_entries SET status='REVERSED', reversed_by=?, updated_at=? WHERE id=?`, reversalID, t.s.stamp(), id)
}

func (t *journalTx) Delete(ctx context.Context, id int64) error {
	if _, err := t.tx.ExecContext(ctx, `DELETE FROM journal_lines WHERE je_id=?`, id); err != nil {
		return err
	}
	return t.exec(ctx, `DELETE FROM journal_entries WHERE id=?`, id)
}

func (t *journalTx) exec(ctx context.Context, query string, args ...any) error {
	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return expectOne(res, shared.ErrJournalNotFound)
}

func (t *journalTx) LookupAccounts(ctx context.Context, ids []int64) (map[int64]accounts.Account, error) {
	out := make(map[int64]accounts.Account, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := t.tx.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out[acc.ID] = acc
	}
	return out, rows.Err()
}

func (t *journalTx) PeriodStatus(ctx context.Context, code string) (periods.PeriodStatus, error) {
	return periodStatus(ctx, t.tx, code)
}

func getEntry(ctx context.Context, q queryer, query string, arg any) (journals.JournalEntry, error) {
	entry, err := scanEntry(q.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return journals.JournalEntry{}, shared.ErrJournalNotFound
		}
		return journals.JournalEntry{}, err
	}
	if entry.Lines, err = loadLines(ctx, q, entry.ID); err != nil {
		return journals.JournalEntry{}, err
	}
	return entry, nil
}

func loadLines(ctx context.Context, q queryer, entryID int64) ([]journals.JournalLine, error) {
	rows, err := q.QueryContext(ctx, `SELECT id, je_id, line_no, account_id, debit, credit, note FROM journal_lines WHERE je_id=? ORDER BY line_no`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []journals.JournalLine
	for rows.Next() {
		var line journals.JournalLine
		if err := rows.Scan(&line.ID, &line.JournalID, &line.LineNo, &line.AccountID, &line.Debit, &line.Credit, &line.Note); err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

func scanEntry(row scanner) (journals.JournalEntry, error) {
	var (
		e                      journals.JournalEntry
		date, created, updated string
		eventID, postedAt      sql.NullString
		reversalOf, reversedBy sql.NullInt64
		createdBy              sql.NullInt64
	)
	if err := row.Scan(&e.ID, &e.Number, &date, &e.Description, &e.Reference, &e.SourceModule, &eventID, &e.SourceSubject,
		&e.TotalDebit, &e.TotalCredit, &e.Status, &reversalOf, &reversedBy, &createdBy, &postedAt, &created, &updated); err != nil {
		return journals.JournalEntry{}, err
	}
	e.SourceEventID = eventID.String
	e.CreatedBy = createdBy.Int64
	e.ReversalOf = ptrInt64(reversalOf)
	e.ReversedBy = ptrInt64(reversedBy)
	var err error
	if e.Date, err = parseDate(date); err != nil {
		return journals.JournalEntry{}, err
	}
	if e.PostedAt, err = parseOptionalStamp(postedAt); err != nil {
		return journals.JournalEntry{}, err
	}
	if e.CreatedAt, err = parseStamp(created); err != nil {
		return journals.JournalEntry{}, err
	}
	if e.UpdatedAt, err = parseStamp(updated); err != nil {
		return journals.JournalEntry{}, err
	}
	return e, nil
}
