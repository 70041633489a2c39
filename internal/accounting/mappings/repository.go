package mappings

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/odyssey-erp/koperasi/internal/accounting/shared"
)

type Repository interface {
	Get(ctx context.Context, module, key string) (AccountMapping, error)
	Upsert(ctx context.Context, mapping AccountMapping) error
	List(ctx context.Context) ([]AccountMapping, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

// Get resolves an account mapping for the specified key.
func (r *repository) Get(ctx context.Context, module, key string) (AccountMapping, error) {
	if module == "" || key == "" {
		return AccountMapping{}, errors.New("accounting: module and key required")
	}
	module, key = Normalize(module, key)
	var mapping AccountMapping
	err := r.db.QueryRow(ctx, `SELECT module, key, account_id, created_at, updated_at FROM account_mappings WHERE module=$1 AND key=$2`, module, key).
		Scan(&mapping.Module, &mapping.Key, &mapping.AccountID, &mapping.CreatedAt, &mapping.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return AccountMapping{}, fmt.Errorf("%s/%s: %w", module, key, shared.ErrMappingNotFound)
		}
		return AccountMapping{}, err
	}
	return mapping, nil
}

func (r *repository) Upsert(ctx context.Context, mapping AccountMapping) error {
	module, key := Normalize(mapping.Module, mapping.Key)
	_, err := r.db.Exec(ctx, `INSERT INTO account_mappings (module, key, account_id) VALUES ($1,$2,$3)
ON CONFLICT (module, key) DO UPDATE SET account_id=EXCLUDED.account_id, updated_at=NOW()`, module, key, mapping.AccountID)
	return err
}

func (r *repository) List(ctx context.Context) ([]AccountMapping, error) {
	rows, err := r.db.Query(ctx, `SELECT module, key, account_id, created_at, updated_at FROM account_mappings ORDER BY module, key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountMapping
	for rows.Next() {
		var m AccountMapping
		if err := rows.Scan(&m.Module, &m.Key, &m.AccountID, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Resolve returns the account for the first key that has a mapping. Callers
// list specific override keys before the general one.
func Resolve(ctx context.Context, repo Repository, module string, keys ...string) (int64, error) {
	var lastErr error = shared.ErrMappingNotFound
	for _, key := range keys {
		if key == "" {
			continue
		}
		mapping, err := repo.Get(ctx, module, key)
		if err == nil {
			return mapping.AccountID, nil
		}
		if !errors.Is(err, shared.ErrMappingNotFound) {
			return 0, err
		}
		lastErr = err
	}
	return 0, lastErr
}
