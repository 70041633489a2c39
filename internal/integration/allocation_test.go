package integration

import (
	"testing"

	"github.com/odyssey-erp/koperasi/internal/accounting/shared"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestAllocateInterestBeforePrincipal(t *testing.T) {
	rate := decimal.RequireFromString("0.02")

	alloc, err := Allocate(1_000_000, rate, 30_000)
	require.NoError(t, err)
	require.Equal(t, int64(20_000), alloc.DueInterest)
	require.Equal(t, int64(20_000), alloc.InterestPortion)
	require.Equal(t, int64(10_000), alloc.PrincipalPortion)
	require.Equal(t, int64(990_000), alloc.RemainingPrincipalAfter)

	alloc, err = Allocate(1_000_000, rate, 10_000)
	require.NoError(t, err)
	require.Equal(t, int64(10_000), alloc.InterestPortion)
	require.Zero(t, alloc.PrincipalPortion)
	require.Equal(t, int64(1_000_000), alloc.RemainingPrincipalAfter)
}

func TestAllocatePortionsSumToPayment(t *testing.T) {
	rate := decimal.RequireFromString("0.0175")
	for _, payment := range []int64{1, 999, 17_500, 17_501, 250_000, 1_017_500} {
		alloc, err := Allocate(1_000_000, rate, payment)
		require.NoError(t, err, "payment %d", payment)
		require.Equal(t, payment, alloc.InterestPortion+alloc.PrincipalPortion)
		require.LessOrEqual(t, alloc.InterestPortion, alloc.DueInterest)
	}
}

func TestAllocateRoundsHalfToEven(t *testing.T) {
	rate := decimal.RequireFromString("0.01")

	alloc, err := Allocate(250, rate, 100)
	require.NoError(t, err)
	require.Equal(t, int64(2), alloc.DueInterest)

	alloc, err = Allocate(350, rate, 100)
	require.NoError(t, err)
	require.Equal(t, int64(4), alloc.DueInterest)
}

func TestAllocateSettlesLoan(t *testing.T) {
	alloc, err := Allocate(100_000, decimal.RequireFromString("0.02"), 102_000)
	require.NoError(t, err)
	require.Equal(t, int64(2_000), alloc.InterestPortion)
	require.Equal(t, int64(100_000), alloc.PrincipalPortion)
	require.Zero(t, alloc.RemainingPrincipalAfter)
}

func TestAllocateRejects(t *testing.T) {
	rate := decimal.RequireFromString("0.02")

	_, err := Allocate(100_000, rate, 102_001)
	require.ErrorIs(t, err, shared.ErrOverpayment)

	_, err = Allocate(100_000, rate, -1)
	require.ErrorIs(t, err, shared.ErrNegativeAmount)
	var fieldErr *shared.FieldError
	require.ErrorAs(t, err, &fieldErr)
	require.Equal(t, "amount", fieldErr.Field)

	_, err = Allocate(100_000, rate, 0)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = Allocate(-5, rate, 1_000)
	require.ErrorIs(t, err, shared.ErrNegativeAmount)

	_, err = Allocate(100_000, decimal.RequireFromString("-0.01"), 1_000)
	require.ErrorIs(t, err, shared.ErrValidation)
}
