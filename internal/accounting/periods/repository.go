package periods

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/odyssey-erp/koperasi/internal/accounting/shared"
)

// ErrInvalidTransition indicates status change not allowed.
var ErrInvalidTransition = fmt.Errorf("%w: period transition invalid", shared.ErrState)

type Repository interface {
	// Status returns the stored status, PeriodStatusOpen when none is stored.
	Status(ctx context.Context, code string) (PeriodStatus, error)
	Save(ctx context.Context, state State) (State, error)
	List(ctx context.Context) ([]State, error)
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) Status(ctx context.Context, code string) (PeriodStatus, error) {
	var status PeriodStatus
	err := r.db.QueryRow(ctx, `SELECT status FROM periods WHERE code=$1`, code).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PeriodStatusOpen, nil
		}
		return "", err
	}
	return status, nil
}

func (r *repository) Save(ctx context.Context, state State) (State, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO periods (code, status, updated_by, updated_at) VALUES ($1,$2,$3,NOW())
ON CONFLICT (code) DO UPDATE SET status=EXCLUDED.status, updated_by=EXCLUDED.updated_by, updated_at=NOW()
RETURNING updated_at`, state.Code, state.Status, state.UpdatedBy).Scan(&state.UpdatedAt)
	if err != nil {
		return State{}, err
	}
	return state, nil
}

func (r *repository) List(ctx context.Context) ([]State, error) {
	rows, err := r.db.Query(ctx, `SELECT code, status, COALESCE(updated_by, 0), updated_at FROM periods ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var states []State
	for rows.Next() {
		var s State
		if err := rows.Scan(&s.Code, &s.Status, &s.UpdatedBy, &s.UpdatedAt); err != nil {
			return nil, err
		}
		states = append(states, s)
	}
	return states, rows.Err()
}
