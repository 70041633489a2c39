package integration

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/odyssey-erp/koperasi/internal/accounting/shared"
	"github.com/shopspring/decimal"
)

var (
	// ErrLoanNotFound indicates the loan is unknown to the host application.
	ErrLoanNotFound = fmt.Errorf("%w: loan not found", shared.ErrNotFound)
	// ErrMemberNotFound indicates the member is unknown.
	ErrMemberNotFound = fmt.Errorf("%w: member not found", shared.ErrNotFound)
)

// PGDirectory reads loans and members from the host application's tables.
type PGDirectory struct {
	pool *pgxpool.Pool
}

func NewPGDirectory(pool *pgxpool.Pool) *PGDirectory {
	return &PGDirectory{pool: pool}
}

// GetLoan returns the loan with the monthly rate of its category.
func (d *PGDirectory) GetLoan(ctx context.Context, loanID int64) (Loan, error) {
	var (
		loan Loan
		rate string
	)
	err := d.pool.QueryRow(ctx, `SELECT l.id, l.member_id, l.principal, l.category, c.monthly_rate::text
FROM loans l JOIN loan_categories c ON c.code = l.category WHERE l.id=$1`, loanID).
		Scan(&loan.ID, &loan.MemberID, &loan.Principal, &loan.Category, &rate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Loan{}, ErrLoanNotFound
		}
		return Loan{}, err
	}
	if loan.MonthlyRate, err = decimal.NewFromString(rate); err != nil {
		return Loan{}, fmt.Errorf("loan %d rate %q: %w", loanID, rate, err)
	}
	return loan, nil
}

func (d *PGDirectory) MemberName(ctx context.Context, memberID int64) (string, error) {
	var name string
	err := d.pool.QueryRow(ctx, `SELECT name FROM members WHERE id=$1`, memberID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrMemberNotFound
	}
	return name, err
}

// StaticDirectory serves loans and members from memory. It backs the memory
// and sqlite drivers, where the host application pushes loan terms through
// the seed file.
type StaticDirectory struct {
	mu      sync.RWMutex
	loans   map[int64]Loan
	members map[int64]string
}

func NewStaticDirectory() *StaticDirectory {
	return &StaticDirectory{loans: make(map[int64]Loan), members: make(map[int64]string)}
}

func (d *StaticDirectory) PutLoan(loan Loan) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.loans[loan.ID] = loan
}

func (d *StaticDirectory) PutMember(id int64, name string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.members[id] = name
}

func (d *StaticDirectory) GetLoan(_ context.Context, loanID int64) (Loan, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	loan, ok := d.loans[loanID]
	if !ok {
		return Loan{}, ErrLoanNotFound
	}
	return loan, nil
}

func (d *StaticDirectory) MemberName(_ context.Context, memberID int64) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	name, ok := d.members[memberID]
	if !ok {
		return "", ErrMemberNotFound
	}
	return name, nil
}
