package jobmetrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestStartRecordsResult(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.now = func() time.Time { return time.Unix(1_700_000_000, 0) }

	require.NoError(t, m.Start(JobGLIntegrity)(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Start(JobGLIntegrity)(boom), boom)

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(JobGLIntegrity, "ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(JobGLIntegrity, "error")))
	require.Equal(t, 1.7e9, testutil.ToFloat64(m.lastSuccess.WithLabelValues(JobGLIntegrity)))
}

func TestCountItemsSkipsZero(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.CountItems(JobSyncBatch, map[string]int{"synced": 3, "failed": 0})

	require.Equal(t, 3.0, testutil.ToFloat64(m.items.WithLabelValues(JobSyncBatch, "synced")))
	require.Equal(t, 1, testutil.CollectAndCount(m.items))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.CountItems(JobSyncBatch, map[string]int{"synced": 1})
	boom := errors.New("boom")
	require.ErrorIs(t, m.Start(JobSyncBatch)(boom), boom)
}
