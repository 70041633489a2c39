package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/odyssey-erp/koperasi/internal/accounting/mappings"
	"github.com/odyssey-erp/koperasi/internal/accounting/periods"
	"github.com/odyssey-erp/koperasi/internal/accounting/shared"
)

type periodRepo struct{ s *Store }

func (r periodRepo) Status(ctx context.Context, code string) (periods.PeriodStatus, error) {
	return periodStatus(ctx, r.s.db, code)
}

func periodStatus(ctx context.Context, q queryer, code string) (periods.PeriodStatus, error) {
	var status periods.PeriodStatus
	err := q.QueryRowContext(ctx, `SELECT status FROM periods WHERE code=?`, code).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return periods.PeriodStatusOpen, nil
		}
		return "", err
	}
	return status, nil
}

func (r periodRepo) Save(ctx context.Context, state periods.State) (periods.State, error) {
	now := r.s.stamp()
	var updatedBy any
	if state.UpdatedBy != 0 {
		updatedBy = state.UpdatedBy
	}
	_, err := r.s.db.ExecContext(ctx, `INSERT INTO periods (code, status, updated_by, updated_at) VALUES (?,?,?,?)
ON CONFLICT (code) DO UPDATE SET status=excluded.status, updated_by=excluded.updated_by, updated_at=excluded.updated_at`,
		state.Code, state.Status, updatedBy, now)
	if err != nil {
		return periods.State{}, err
	}
	if state.UpdatedAt, err = parseStamp(now); err != nil {
		return periods.State{}, err
	}
	return state, nil
}

func (r periodRepo) List(ctx context.Context) ([]periods.State, error) {
	rows, err := r.s.db.QueryContext(ctx, `SELECT code, status, COALESCE(updated_by, 0), updated_at FROM periods ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var states []periods.State
	for rows.Next() {
		var (
			st      periods.State
			updated string
		)
		if err := rows.Scan(&st.Code, &st.Status, &st.UpdatedBy, &updated); err != nil {
			return nil, err
		}
		if st.UpdatedAt, err = parseStamp(updated); err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	return states, rows.Err()
}

type mappingRepo struct{ s *Store }

func (r mappingRepo) Get(ctx context.Context, module, key string) (mappings.AccountMapping, error) {
	module, key = mappings.Normalize(module, key)
	var (
		m                mappings.AccountMapping
		created, updated string
	)
	err := r.s.db.QueryRowContext(ctx, `SELECT module, key, account_id, created_at, updated_at FROM account_mappings WHERE module=? AND key=?`, module, key).
		Scan(&m.Module, &m.Key, &m.AccountID, &created, &updated)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return mappings.AccountMapping{}, fmt.Errorf("%s/%s: %w", module, key, shared.ErrMappingNotFound)
		}
		return mappings.AccountMapping{}, err
	}
	if m.CreatedAt, err = parseStamp(created); err != nil {
		return mappings.AccountMapping{}, err
	}
	if m.UpdatedAt, err = parseStamp(updated); err != nil {
		return mappings.AccountMapping{}, err
	}
	return m, nil
}

func (r mappingRepo) Upsert(ctx context.Context, m mappings.AccountMapping) error {
	module, key := mappings.Normalize(m.Module, m.Key)
	now := r.s.stamp()
	_, err := r.s.db.ExecContext(ctx, `INSERT INTO account_mappings (module, key, account_id, created_at, updated_at) VALUES (?,?,?,?,?)
ON CONFLICT (module, key) DO UPDATE SET account_id=excluded.account_id, updated_at=excluded.updated_at`, module, key, m.AccountID, now, now)
	return err
}

func (r mappingRepo) List(ctx context.Context) ([]mappings.AccountMapping, error) {
	rows, err := r.s.db.QueryContext(ctx, `SELECT module, key, account_id, created_at, updated_at FROM account_mappings ORDER BY module, key`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []mappings.AccountMapping
	for rows.Next() {
		var (
			m                mappings.AccountMapping
			created, updated string
		)
		if err := rows.Scan(&m.Module, &m.Key, &m.AccountID, &created, &updated); err != nil {
			return nil, err
		}
		if m.CreatedAt, err = parseStamp(created); err != nil {
			return nil, err
		}
		if m.UpdatedAt, err = parseStamp(updated); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
