package observability

import (
	"context"

	"github.com/odyssey-erp/koperasi/internal/accounting/journals"
	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics mencatat posting jurnal, hasil sinkronisasi otomatis dan
// pelanggaran integritas buku besar.
type LedgerMetrics struct {
	postings   *prometheus.CounterVec
	syncs      *prometheus.CounterVec
	violations *prometheus.CounterVec
}

// NewLedgerMetrics mendaftarkan metrik buku besar ke registerer.
func NewLedgerMetrics(registerer prometheus.Registerer) *LedgerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	postings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "koperasi_ledger_postings_total",
		Help: "Jumlah jurnal yang diposting berdasarkan modul sumber dan status.",
	}, []string{"module", "status"})
	syncs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "koperasi_ledger_sync_total",
		Help: "Hasil sinkronisasi transaksi koperasi berdasarkan jenis dan hasil.",
	}, []string{"type", "result"})
	violations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "koperasi_ledger_integrity_violations_total",
		Help: "Pelanggaran integritas buku besar yang ditemukan per pemeriksaan.",
	}, []string{"check"})
	registerer.MustRegister(postings, syncs, violations)
	return &LedgerMetrics{postings: postings, syncs: syncs, violations: violations}
}

// JournalPosted memenuhi journals.PostingListener.
func (m *LedgerMetrics) JournalPosted(_ context.Context, entry journals.JournalEntry) {
	if m == nil {
		return
	}
	module := entry.SourceModule
	if module == "" {
		module = "MANUAL"
	}
	m.postings.WithLabelValues(module, string(entry.Status)).Inc()
}

// ObserveSync mencatat satu hasil sinkronisasi: created, duplicate atau failed.
func (m *LedgerMetrics) ObserveSync(txType, result string) {
	if m == nil {
		return
	}
	m.syncs.WithLabelValues(txType, result).Inc()
}

// AddViolations menambah penghitung pelanggaran untuk pemeriksaan tertentu.
func (m *LedgerMetrics) AddViolations(check string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.violations.WithLabelValues(check).Add(float64(count))
}
