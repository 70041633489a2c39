package observability

import (
	"context"
	"testing"

	"github.com/odyssey-erp/koperasi/internal/accounting/journals"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestLedgerMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLedgerMetrics(reg)
	ctx := context.Background()

	m.JournalPosted(ctx, journals.JournalEntry{SourceModule: "LOAN.INSTALLMENT", Status: journals.JournalStatusPosted})
	m.JournalPosted(ctx, journals.JournalEntry{SourceModule: "LOAN.INSTALLMENT", Status: journals.JournalStatusPosted})
	m.JournalPosted(ctx, journals.JournalEntry{Status: journals.JournalStatusPosted})
	m.ObserveSync("Angsuran", "created")
	m.ObserveSync("Angsuran", "duplicate")
	m.AddViolations("entry_balance", 2)
	m.AddViolations("trial_balance", 0)

	require.Equal(t, 2.0, testutil.ToFloat64(m.postings.WithLabelValues("LOAN.INSTALLMENT", "POSTED")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.postings.WithLabelValues("MANUAL", "POSTED")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.syncs.WithLabelValues("Angsuran", "duplicate")))
	require.Equal(t, 2.0, testutil.ToFloat64(m.violations.WithLabelValues("entry_balance")))
	require.Equal(t, 1, testutil.CollectAndCount(m.violations))
}

func TestLedgerMetricsNilSafe(t *testing.T) {
	var m *LedgerMetrics
	m.JournalPosted(context.Background(), journals.JournalEntry{})
	m.ObserveSync("Simpanan", "failed")
	m.AddViolations("entry_balance", 1)
}
