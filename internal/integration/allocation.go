package integration

import (
	"fmt"

	"github.com/odyssey-erp/koperasi/internal/accounting/money"
	"github.com/odyssey-erp/koperasi/internal/accounting/shared"
	"github.com/shopspring/decimal"
)

// Allocation splits one installment payment between interest and principal.
type Allocation struct {
	Payment                  int64 `json:"payment"`
	DueInterest              int64 `json:"due_interest"`
	InterestPortion          int64 `json:"interest_portion"`
	PrincipalPortion         int64 `json:"principal_portion"`
	RemainingPrincipalBefore int64 `json:"remaining_principal_before"`
	RemainingPrincipalAfter  int64 `json:"remaining_principal_after"`
}

// Allocate applies interest before principal. Due interest is the remaining
// principal times the monthly rate, rounded half-to-even to a whole minor
// unit. A payment larger than due interest plus remaining principal is
// rejected with ErrOverpayment.
func Allocate(remainingPrincipal int64, monthlyRate decimal.Decimal, payment int64) (Allocation, error) {
	switch {
	case payment < 0:
		return Allocation{}, shared.NewFieldError("amount", shared.ErrNegativeAmount)
	case payment == 0:
		return Allocation{}, shared.NewFieldError("amount", fmt.Errorf("%w: payment must be positive", shared.ErrValidation))
	case remainingPrincipal < 0:
		return Allocation{}, fmt.Errorf("remaining principal %d: %w", remainingPrincipal, shared.ErrNegativeAmount)
	case monthlyRate.IsNegative():
		return Allocation{}, fmt.Errorf("%w: monthly rate %s is negative", shared.ErrValidation, monthlyRate)
	}
	due := money.FromDecimal(money.Decimal(remainingPrincipal).Mul(monthlyRate))
	interest := money.Min(payment, due)
	principal := payment - interest
	if principal > remainingPrincipal {
		return Allocation{}, fmt.Errorf("payment %s, due interest %s, remaining principal %s: %w",
			money.Format(payment), money.Format(due), money.Format(remainingPrincipal), shared.ErrOverpayment)
	}
	return Allocation{
		Payment:                  payment,
		DueInterest:              due,
		InterestPortion:          interest,
		PrincipalPortion:         principal,
		RemainingPrincipalBefore: remainingPrincipal,
		RemainingPrincipalAfter:  remainingPrincipal - principal,
	}, nil
}
