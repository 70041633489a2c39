package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	require.Equal(t, "Rp 1.250.000", Format(1250000))
	require.Equal(t, "Rp 0", Format(0))
	require.Equal(t, "-Rp 5.000", Format(-5000))
}

func TestFromDecimalRoundsHalfToEven(t *testing.T) {
	require.Equal(t, int64(2), FromDecimal(decimal.RequireFromString("2.5")))
	require.Equal(t, int64(4), FromDecimal(decimal.RequireFromString("3.5")))
	require.Equal(t, int64(3), FromDecimal(decimal.RequireFromString("2.51")))
}
