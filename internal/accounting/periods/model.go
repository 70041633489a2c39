package periods

import (
	"fmt"
	"time"

	"github.com/odyssey-erp/koperasi/internal/accounting/shared"
)

// PeriodStatus enumerates valid period states.
type PeriodStatus string

const (
	// PeriodStatusOpen accepts postings and reversals.
	PeriodStatusOpen PeriodStatus = "OPEN"
	// PeriodStatusClosed still accepts postings; reversals of entries dated in
	// it move to the next open period.
	PeriodStatusClosed PeriodStatus = "CLOSED"
	// PeriodStatusLocked rejects postings.
	PeriodStatusLocked PeriodStatus = "LOCKED"
)

// Period is a calendar month reporting window [Start, End).
type Period struct {
	Year  int
	Month time.Month
}

// Parse reads a YYYY-MM period code.
func Parse(code string) (Period, error) {
	t, err := time.Parse("2006-01", code)
	if err != nil || len(code) != 7 {
		return Period{}, fmt.Errorf("%q: %w", code, shared.ErrInvalidPeriod)
	}
	return Period{Year: t.Year(), Month: t.Month()}, nil
}

// Of returns the period containing t.
func Of(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// Code renders the period as YYYY-MM.
func (p Period) Code() string {
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

func (p Period) String() string {
	return p.Code()
}

// Start is the first instant of the period, inclusive.
func (p Period) Start() time.Time {
	return time.Date(p.Year, p.Month, 1, 0, 0, 0, 0, time.UTC)
}

// End is the first instant after the period, exclusive.
func (p Period) End() time.Time {
	return p.Start().AddDate(0, 1, 0)
}

// Next returns the following month.
func (p Period) Next() Period {
	return Of(p.End())
}

// Contains reports whether t falls within the period, comparing calendar dates.
func (p Period) Contains(t time.Time) bool {
	return t.Year() == p.Year && t.Month() == p.Month
}

// IsZero reports whether the period is unset.
func (p Period) IsZero() bool {
	return p.Year == 0
}

// State is the persisted status of a period. Periods without a stored state
// are open.
type State struct {
	Code      string       `json:"code"`
	Status    PeriodStatus `json:"status"`
	UpdatedBy int64        `json:"updated_by,omitempty"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// AcceptsPostings reports whether entries dated in the period may be posted.
func (s PeriodStatus) AcceptsPostings() bool {
	return s == "" || s == PeriodStatusOpen || s == PeriodStatusClosed
}

// ValidateTransition checks status changes according to policy.
func ValidateTransition(current, target PeriodStatus) error {
	if current == "" {
		current = PeriodStatusOpen
	}
	if current == target {
		return nil
	}
	switch current {
	case PeriodStatusOpen:
		if target == PeriodStatusClosed || target == PeriodStatusLocked {
			return nil
		}
	case PeriodStatusClosed:
		if target == PeriodStatusOpen || target == PeriodStatusLocked {
			return nil
		}
	case PeriodStatusLocked:
		if target == PeriodStatusOpen || target == PeriodStatusClosed {
			return nil
		}
	}
	return fmt.Errorf("period %s -> %s: %w", current, target, ErrInvalidTransition)
}
