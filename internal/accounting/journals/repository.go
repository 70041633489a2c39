package journals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/odyssey-erp/koperasi/internal/accounting/accounts"
	"github.com/odyssey-erp/koperasi/internal/accounting/periods"
	"github.com/odyssey-erp/koperasi/internal/accounting/shared"
	"github.com/odyssey-erp/koperasi/internal/platform/db"
)

// Repository encapsulates store operations for journals. Mutations go
// through WithTx; the read methods see committed state only.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (JournalEntry, error)
	List(ctx context.Context, filter ListFilter) ([]JournalEntry, error)
	// FindBySourceEvent returns ErrJournalNotFound when no entry carries the id.
	FindBySourceEvent(ctx context.Context, sourceEventID string) (JournalEntry, error)
	PostedLines(ctx context.Context, q LineQuery) ([]PostedLine, error)
	SumPostedLines(ctx context.Context, q LineQuery) ([]AccountTotal, error)
}

// TxRepository exposes methods available within a transaction.
type TxRepository interface {
	NextNumber(ctx context.Context) (int64, error)
	// Insert stores the entry with its lines. A duplicate non-empty
	// SourceEventID yields ErrSourceConflict.
	Insert(ctx context.Context, entry JournalEntry) (JournalEntry, error)
	GetForUpdate(ctx context.Context, id int64) (JournalEntry, error)
	// Update replaces header fields and the full line set of a draft.
	Update(ctx context.Context, entry JournalEntry) (JournalEntry, error)
	MarkPosted(ctx context.Context, id int64, at time.Time) error
	MarkReversed(ctx context.Context, id, reversalID int64) error
	Delete(ctx context.Context, id int64) error

	LookupAccounts(ctx context.Context, ids []int64) (map[int64]accounts.Account, error)
	PeriodStatus(ctx context.Context, code string) (periods.PeriodStatus, error)
}

const (
	pgUniqueViolation = "23505"
	sourceEventIndex  = "uq_journal_entries_source_event"
)

const entryColumns = `id, number, date, description, reference, source_module, source_event_id, source_subject,
total_debit, total_credit, status, reversal_of, reversed_by, created_by, posted_at, created_at, updated_at`

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *repository) Get(ctx context.Context, id int64) (JournalEntry, error) {
	return getEntry(ctx, r.db, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1`, id)
}

func (r *repository) FindBySourceEvent(ctx context.Context, sourceEventID string) (JournalEntry, error) {
	if sourceEventID == "" {
		return JournalEntry{}, shared.ErrJournalNotFound
	}
	return getEntry(ctx, r.db, `SELECT `+entryColumns+` FROM journal_entries WHERE source_event_id=$1`, sourceEventID)
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]JournalEntry, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	if filter.Status != "" {
		where = append(where, "status="+arg(filter.Status))
	}
	if !filter.From.IsZero() {
		where = append(where, "date>="+arg(filter.From))
	}
	if !filter.To.IsZero() {
		where = append(where, "date<="+arg(filter.To))
	}
	if filter.AccountID != 0 {
		where = append(where, "EXISTS (SELECT 1 FROM journal_lines l WHERE l.je_id=journal_entries.id AND l.account_id="+arg(filter.AccountID)+")")
	}
	if filter.Search != "" {
		p := arg("%" + filter.Search + "%")
		where = append(where, "(description ILIKE "+p+" OR reference ILIKE "+p+")")
	}
	query := `SELECT ` + entryColumns + ` FROM journal_entries`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date DESC, number DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []JournalEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func (r *repository) PostedLines(ctx context.Context, q LineQuery) ([]PostedLine, error) {
	where, args := lineWhere(q)
	rows, err := r.db.Query(ctx, `SELECT e.id, e.number, e.date, e.description, e.reference, e.source_module, e.source_subject, e.status,
l.line_no, l.account_id, l.debit, l.credit, l.note
FROM journal_lines l JOIN journal_entries e ON e.id = l.je_id
WHERE `+where+` ORDER BY e.date, e.number, l.line_no`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []PostedLine
	for rows.Next() {
		var pl PostedLine
		if err := rows.Scan(&pl.EntryID, &pl.Number, &pl.Date, &pl.Description, &pl.Reference, &pl.SourceModule, &pl.SourceSubject, &pl.Status,
			&pl.LineNo, &pl.AccountID, &pl.Debit, &pl.Credit, &pl.Note); err != nil {
			return nil, err
		}
		lines = append(lines, pl)
	}
	return lines, rows.Err()
}

func (r *repository) SumPostedLines(ctx context.Context, q LineQuery) ([]AccountTotal, error) {
	where, args := lineWhere(q)
	rows, err := r.db.Query(ctx, `SELECT l.account_id, COALESCE(SUM(l.debit),0), COALESCE(SUM(l.credit),0)
FROM journal_lines l JOIN journal_entries e ON e.id = l.je_id
WHERE `+where+` GROUP BY l.account_id ORDER BY l.account_id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var totals []AccountTotal
	for rows.Next() {
		var t AccountTotal
		if err := rows.Scan(&t.AccountID, &t.Debit, &t.Credit); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

func lineWhere(q LineQuery) (string, []any) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}
	statuses := make([]string, 0, 3)
	for _, st := range q.Statuses() {
		statuses = append(statuses, string(st))
	}
	where = append(where, "e.status = ANY("+arg(statuses)+")")
	if q.AccountID != 0 {
		where = append(where, "l.account_id="+arg(q.AccountID))
	}
	if !q.From.IsZero() {
		where = append(where, "e.date>="+arg(q.From))
	}
	if !q.Until.IsZero() {
		where = append(where, "e.date<"+arg(q.Until))
	}
	if q.SourceSubject != "" {
		where = append(where, "e.source_subject="+arg(q.SourceSubject))
	}
	if len(q.SourceModules) > 0 {
		where = append(where, "e.source_module = ANY("+arg(q.SourceModules)+")")
	}
	return strings.Join(where, " AND "), args
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) NextNumber(ctx context.Context) (int64, error) {
	var n int64
	err := r.tx.QueryRow(ctx, `SELECT nextval('journal_number_seq')`).Scan(&n)
	return n, err
}

func (r *txRepository) Insert(ctx context.Context, entry JournalEntry) (JournalEntry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (number, date, description, reference, source_module, source_event_id, source_subject,
total_debit, total_credit, status, reversal_of, created_by, posted_at)
VALUES ($1,$2,$3,$4,$5,NULLIF($6,''),$7,$8,$9,$10,$11,$12,$13) RETURNING id, created_at, updated_at`,
		entry.Number, entry.Date, entry.Description, entry.Reference, entry.SourceModule, entry.SourceEventID, entry.SourceSubject,
		entry.TotalDebit, entry.TotalCredit, entry.Status, entry.ReversalOf, nullInt(entry.CreatedBy), entry.PostedAt)
	if err := row.Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == sourceEventIndex {
			return JournalEntry{}, shared.ErrSourceConflict
		}
		return JournalEntry{}, err
	}
	if err := r.insertLines(ctx, entry.ID, entry.Lines); err != nil {
		return JournalEntry{}, err
	}
	for i := range entry.Lines {
		entry.Lines[i].JournalID = entry.ID
	}
	return entry, nil
}

func (r *txRepository) insertLines(ctx context.Context, entryID int64, lines []JournalLine) error {
	for _, line := range lines {
		if _, err := r.tx.Exec(ctx, `INSERT INTO journal_lines (je_id, line_no, account_id, debit, credit, note) VALUES ($1,$2,$3,$4,$5,$6)`,
			entryID, line.LineNo, line.AccountID, line.Debit, line.Credit, line.Note); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepository) GetForUpdate(ctx context.Context, id int64) (JournalEntry, error) {
	return getEntry(ctx, r.tx, `SELECT `+entryColumns+` FROM journal_entries WHERE id=$1 FOR UPDATE`, id)
}

func (r *txRepository) Update(ctx context.Context, entry JournalEntry) (JournalEntry, error) {
	err := r.tx.QueryRow(ctx, `UPDATE journal_entries SET date=$2, description=$3, reference=$4, total_debit=$5, total_credit=$6, updated_at=NOW()
WHERE id=$1 RETURNING updated_at`, entry.ID, entry.Date, entry.Description, entry.Reference, entry.TotalDebit, entry.TotalCredit).Scan(&entry.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.ErrJournalNotFound
		}
		return JournalEntry{}, err
	}
	if _, err := r.tx.Exec(ctx, `DELETE FROM journal_lines WHERE je_id=$1`, entry.ID); err != nil {
		return JournalEntry{}, err
	}
	if err := r.insertLines(ctx, entry.ID, entry.Lines); err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) MarkPosted(ctx context.Context, id int64, at time.Time) error {
	return r.exec(ctx, `UPDATE journal_entries SET status='POSTED', posted_at=$2, updated_at=NOW() WHERE id=$1`, id, at)
}

func (r *txRepository) MarkReversed(ctx context.Context, id, reversalID int64) error {
	return r.exec(ctx, `UPDATE journal_entries SET status='REVERSED', reversed_by=$2, updated_at=NOW() WHERE id=$1`, id, reversalID)
}

func (r *txRepository) Delete(ctx context.Context, id int64) error {
	if _, err := r.tx.Exec(ctx, `DELETE FROM journal_lines WHERE je_id=$1`, id); err != nil {
		return err
	}
	return r.exec(ctx, `DELETE FROM journal_entries WHERE id=$1`, id)
}

func (r *txRepository) exec(ctx context.Context, sql string, args ...any) error {
	cmd, err := r.tx.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrJournalNotFound
	}
	return nil
}

func (r *txRepository) LookupAccounts(ctx context.Context, ids []int64) (map[int64]accounts.Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT id, code, name, type, category, normal_side, is_group, parent_id, is_active, created_at, updated_at
FROM accounts WHERE id = ANY($1) FOR SHARE`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]accounts.Account, len(ids))
	for rows.Next() {
		var a accounts.Account
		if err := rows.Scan(&a.ID, &a.Code, &a.Name, &a.Type, &a.Category, &a.NormalSide, &a.IsGroup, &a.ParentID, &a.IsActive, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		out[a.ID] = a
	}
	return out, rows.Err()
}

// PeriodStatus reads the period row with a share lock so a concurrent lock
// waits for in-flight postings.
func (r *txRepository) PeriodStatus(ctx context.Context, code string) (periods.PeriodStatus, error) {
	var status periods.PeriodStatus
	err := r.tx.QueryRow(ctx, `SELECT status FROM periods WHERE code=$1 FOR SHARE`, code).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return periods.PeriodStatusOpen, nil
		}
		return "", err
	}
	return status, nil
}

func getEntry(ctx context.Context, q querier, sql string, arg any) (JournalEntry, error) {
	entry, err := scanEntry(q.QueryRow(ctx, sql, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, shared.ErrJournalNotFound
		}
		return JournalEntry{}, err
	}
	rows, err := q.Query(ctx, `SELECT id, je_id, line_no, account_id, debit, credit, note FROM journal_lines WHERE je_id=$1 ORDER BY line_no`, entry.ID)
	if err != nil {
		return JournalEntry{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var line JournalLine
		if err := rows.Scan(&line.ID, &line.JournalID, &line.LineNo, &line.AccountID, &line.Debit, &line.Credit, &line.Note); err != nil {
			return JournalEntry{}, err
		}
		entry.Lines = append(entry.Lines, line)
	}
	return entry, rows.Err()
}

func scanEntry(row pgx.Row) (JournalEntry, error) {
	var (
		e         JournalEntry
		eventID   *string
		createdBy *int64
	)
	err := row.Scan(&e.ID, &e.Number, &e.Date, &e.Description, &e.Reference, &e.SourceModule, &eventID, &e.SourceSubject,
		&e.TotalDebit, &e.TotalCredit, &e.Status, &e.ReversalOf, &e.ReversedBy, &createdBy, &e.PostedAt, &e.CreatedAt, &e.UpdatedAt)
	if eventID != nil {
		e.SourceEventID = *eventID
	}
	if createdBy != nil {
		e.CreatedBy = *createdBy
	}
	return e, err
}

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}
