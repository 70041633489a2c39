package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/mattn/go-sqlite3"
	"github.com/odyssey-erp/koperasi/internal/accounting/accounts"
	"github.com/odyssey-erp/koperasi/internal/accounting/shared"
)

const accountColumns = `id, code, name, type, category, normal_side, is_group, parent_id, is_active, created_at, updated_at`

type accountRepo struct{ s *Store }

func (r accountRepo) Create(ctx context.Context, acc accounts.Account) (accounts.Account, error) {
	now := r.s.stamp()
	res, err := r.s.db.ExecContext(ctx, `INSERT INTO accounts (code, name, type, category, normal_side, is_group, parent_id, is_active, created_at, updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?)`,
		acc.Code, acc.Name, acc.Type, acc.Category, acc.NormalSide, acc.IsGroup, nullInt64(acc.ParentID), acc.IsActive, now, now)
	if err != nil {
		return accounts.Account{}, mapAccountWriteError(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return accounts.Account{}, err
	}
	return r.Get(ctx, id)
}

func (r accountRepo) Get(ctx context.Context, id int64) (accounts.Account, error) {
	return getAccount(ctx, r.s.db, `SELECT `+accountColumns+` FROM accounts WHERE id=?`, id)
}

func (r accountRepo) GetByCode(ctx context.Context, code string) (accounts.Account, error) {
	return getAccount(ctx, r.s.db, `SELECT `+accountColumns+` FROM accounts WHERE code=?`, code)
}

// Modify runs on an immediate transaction, which holds the database write
// lock from the first read until commit.
func (r accountRepo) Modify(ctx context.Context, id int64, apply func(accounts.Account, accounts.Usage) (accounts.Account, error)) (accounts.Account, error) {
	tx, err := r.s.db.BeginTx(ctx, nil)
	if err != nil {
		return accounts.Account{}, err
	}
	defer func() { _ = tx.Rollback() }()

	current, err := getAccount(ctx, tx, `SELECT `+accountColumns+` FROM accounts WHERE id=?`, id)
	if err != nil {
		return accounts.Account{}, err
	}
	var usage accounts.Usage
	if err := tx.QueryRowContext(ctx, `SELECT
  (SELECT COUNT(*) FROM journal_lines WHERE account_id=?1),
  (SELECT COUNT(*) FROM accounts WHERE parent_id=?1)`, id).Scan(&usage.LineRefs, &usage.Children); err != nil {
		return accounts.Account{}, err
	}
	acc, err := apply(current, usage)
	if err != nil {
		return accounts.Account{}, err
	}
	res, err := tx.ExecContext(ctx, `UPDATE accounts SET code=?, name=?, type=?, category=?, normal_side=?, is_group=?, parent_id=?, is_active=?, updated_at=?
WHERE id=?`,
		acc.Code, acc.Name, acc.Type, acc.Category, acc.NormalSide, acc.IsGroup, nullInt64(acc.ParentID), acc.IsActive, r.s.stamp(), id)
	if err != nil {
		return accounts.Account{}, mapAccountWriteError(err)
	}
	if err := expectOne(res, shared.ErrAccountNotFound); err != nil {
		return accounts.Account{}, err
	}
	updated, err := getAccount(ctx, tx, `SELECT `+accountColumns+` FROM accounts WHERE id=?`, id)
	if err != nil {
		return accounts.Account{}, err
	}
	if err := tx.Commit(); err != nil {
		return accounts.Account{}, err
	}
	return updated, nil
}

func (r accountRepo) Delete(ctx context.Context, id int64) error {
	res, err := r.s.db.ExecContext(ctx, `DELETE FROM accounts WHERE id=?`, id)
	if err != nil {
		if constraintCode(err) == sqlite3.ErrConstraintForeignKey {
			return shared.ErrAccountInUse
		}
		return err
	}
	return expectOne(res, shared.ErrAccountNotFound)
}

func (r accountRepo) List(ctx context.Context, filter accounts.Filter) ([]accounts.Account, error) {
	var (
		where []string
		args  []any
	)
	if filter.Type != "" {
		where = append(where, "type=?")
		args = append(args, filter.Type)
	}
	if filter.IsActive != nil {
		where = append(where, "is_active=?")
		args = append(args, *filter.IsActive)
	}
	if filter.Search != "" {
		// LIKE is case-insensitive for ASCII in SQLite
		pattern := "%" + filter.Search + "%"
		where = append(where, "(code LIKE ? OR name LIKE ? OR category LIKE ?)")
		args = append(args, pattern, pattern, pattern)
	}
	query := `SELECT ` + accountColumns + ` FROM accounts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY code"
	rows, err := r.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []accounts.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, acc)
	}
	return out, rows.Err()
}

func (r accountRepo) CountLineReferences(ctx context.Context, id int64) (int64, error) {
	var n int64
	err := r.s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM journal_lines WHERE account_id=?`, id).Scan(&n)
	return n, err
}

func getAccount(ctx context.Context, q queryer, query string, arg any) (accounts.Account, error) {
	acc, err := scanAccount(q.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return accounts.Account{}, shared.ErrAccountNotFound
		}
		return accounts.Account{}, err
	}
	return acc, nil
}

func scanAccount(row scanner) (accounts.Account, error) {
	var (
		acc              accounts.Account
		parent           sql.NullInt64
		created, updated string
	)
	if err := row.Scan(&acc.ID, &acc.Code, &acc.Name, &acc.Type, &acc.Category, &acc.NormalSide, &acc.IsGroup, &parent, &acc.IsActive, &created, &updated); err != nil {
		return accounts.Account{}, err
	}
	acc.ParentID = ptrInt64(parent)
	var err error
	if acc.CreatedAt, err = parseStamp(created); err != nil {
		return accounts.Account{}, err
	}
	if acc.UpdatedAt, err = parseStamp(updated); err != nil {
		return accounts.Account{}, err
	}
	return acc, nil
}

// mapAccountWriteError translates constraint failures on insert and update.
// A foreign key failure there can only come from parent_id.
func mapAccountWriteError(err error) error {
	switch constraintCode(err) {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return shared.ErrDuplicateCode
	case sqlite3.ErrConstraintForeignKey:
		return shared.ErrInvalidHierarchy
	}
	return err
}
