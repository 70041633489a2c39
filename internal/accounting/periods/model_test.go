package periods

import (
	"testing"
	"time"

	"github.com/odyssey-erp/koperasi/internal/accounting/shared"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	p, err := Parse("2024-03")
	require.NoError(t, err)
	require.Equal(t, Period{Year: 2024, Month: time.March}, p)
	require.Equal(t, "2024-03", p.Code())
	require.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), p.Start())
	require.Equal(t, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC), p.End())
	require.Equal(t, "2024-04", p.Next().Code())

	for _, bad := range []string{"", "2024-13", "2024-3", "03-2024", "2024/03"} {
		_, err := Parse(bad)
		require.ErrorIs(t, err, shared.ErrInvalidPeriod, bad)
	}
}

func TestPeriodYearRollover(t *testing.T) {
	p, err := Parse("2023-12")
	require.NoError(t, err)
	require.Equal(t, "2024-01", p.Next().Code())
	require.True(t, p.Contains(time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC)))
	require.False(t, p.Contains(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))
}

func TestValidateTransition(t *testing.T) {
	require.NoError(t, ValidateTransition("", PeriodStatusLocked))
	require.NoError(t, ValidateTransition(PeriodStatusOpen, PeriodStatusClosed))
	require.NoError(t, ValidateTransition(PeriodStatusLocked, PeriodStatusOpen))
	require.NoError(t, ValidateTransition(PeriodStatusLocked, PeriodStatusLocked))
	require.ErrorIs(t, ValidateTransition(PeriodStatusOpen, PeriodStatus("ARCHIVED")), shared.ErrState)
}

func TestAcceptsPostings(t *testing.T) {
	require.True(t, PeriodStatusOpen.AcceptsPostings())
	require.True(t, PeriodStatusClosed.AcceptsPostings())
	require.False(t, PeriodStatusLocked.AcceptsPostings())
}
