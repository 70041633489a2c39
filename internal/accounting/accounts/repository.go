package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/odyssey-erp/koperasi/internal/accounting/shared"
	"github.com/odyssey-erp/koperasi/internal/platform/db"
)

// Repository persists chart of accounts records.
type Repository interface {
	Create(ctx context.Context, acc Account) (Account, error)
	Get(ctx context.Context, id int64) (Account, error)
	GetByCode(ctx context.Context, code string) (Account, error)
	// Modify loads the account and its usage, lets apply derive the new
	// state and stores it. The three steps run as one unit so a concurrent
	// posting or child insert cannot slip between the check and the write.
	Modify(ctx context.Context, id int64, apply func(current Account, usage Usage) (Account, error)) (Account, error)
	Delete(ctx context.Context, id int64) error
	List(ctx context.Context, filter Filter) ([]Account, error)
	// CountLineReferences counts journal lines of any status referencing the account.
	CountLineReferences(ctx context.Context, id int64) (int64, error)
}

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

const accountColumns = `id, code, name, type, category, normal_side, is_group, parent_id, is_active, created_at, updated_at`

type repository struct {
	db *pgxpool.Pool
}

// NewRepository returns the Postgres-backed account repository.
func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, acc Account) (Account, error) {
	row := r.db.QueryRow(ctx, `INSERT INTO accounts (code, name, type, category, normal_side, is_group, parent_id, is_active)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING `+accountColumns,
		acc.Code, acc.Name, acc.Type, acc.Category, acc.NormalSide, acc.IsGroup, acc.ParentID, acc.IsActive)
	created, err := scanAccount(row)
	if err != nil {
		return Account{}, mapPgError(err)
	}
	return created, nil
}

func (r *repository) Get(ctx context.Context, id int64) (Account, error) {
	acc, err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1`, id))
	if err != nil {
		return Account{}, mapPgError(err)
	}
	return acc, nil
}

func (r *repository) GetByCode(ctx context.Context, code string) (Account, error) {
	acc, err := scanAccount(r.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE code=$1`, code))
	if err != nil {
		return Account{}, mapPgError(err)
	}
	return acc, nil
}

func (r *repository) Modify(ctx context.Context, id int64, apply func(Account, Usage) (Account, error)) (Account, error) {
	var updated Account
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		// FOR UPDATE conflicts with the FOR SHARE taken by postings and the
		// FOR KEY SHARE taken by child inserts.
		current, err := scanAccount(tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id=$1 FOR UPDATE`, id))
		if err != nil {
			return mapPgError(err)
		}
		var usage Usage
		if err := tx.QueryRow(ctx, `SELECT
  (SELECT COUNT(*) FROM journal_lines WHERE account_id=$1),
  (SELECT COUNT(*) FROM accounts WHERE parent_id=$1)`, id).Scan(&usage.LineRefs, &usage.Children); err != nil {
			return err
		}
		next, err := apply(current, usage)
		if err != nil {
			return err
		}
		row := tx.QueryRow(ctx, `UPDATE accounts SET code=$2, name=$3, type=$4, category=$5, normal_side=$6, is_group=$7, parent_id=$8, is_active=$9, updated_at=NOW()
WHERE id=$1 RETURNING `+accountColumns,
			id, next.Code, next.Name, next.Type, next.Category, next.NormalSide, next.IsGroup, next.ParentID, next.IsActive)
		if updated, err = scanAccount(row); err != nil {
			return mapPgError(err)
		}
		return nil
	})
	if err != nil {
		return Account{}, err
	}
	return updated, nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id=$1`, id)
	if err != nil {
		return mapPgError(err)
	}
	if cmd.RowsAffected() == 0 {
		return shared.ErrAccountNotFound
	}
	return nil
}

func (r *repository) List(ctx context.Context, filter Filter) ([]Account, error) {
	var (
		where []string
		args  []any
	)
	if filter.Type != "" {
		args = append(args, filter.Type)
		where = append(where, fmt.Sprintf("type=$%d", len(args)))
	}
	if filter.IsActive != nil {
		args = append(args, *filter.IsActive)
		where = append(where, fmt.Sprintf("is_active=$%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		n := len(args)
		where = append(where, fmt.Sprintf("(code ILIKE $%d OR name ILIKE $%d OR category ILIKE $%d)", n, n, n))
	}
	query := `SELECT ` + accountColumns + ` FROM accounts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY code"
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

func (r *repository) CountLineReferences(ctx context.Context, id int64) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM journal_lines WHERE account_id=$1`, id).Scan(&count)
	return count, err
}

func scanAccount(row pgx.Row) (Account, error) {
	var acc Account
	err := row.Scan(&acc.ID, &acc.Code, &acc.Name, &acc.Type, &acc.Category, &acc.NormalSide, &acc.IsGroup, &acc.ParentID, &acc.IsActive, &acc.CreatedAt, &acc.UpdatedAt)
	return acc, err
}

func mapPgError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrAccountNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return shared.ErrDuplicateCode
		case pgForeignKeyViolation:
			if pgErr.ConstraintName == "accounts_parent_id_fkey" {
				return shared.ErrInvalidHierarchy
			}
			return shared.ErrAccountInUse
		}
	}
	return err
}
