package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/koperasi/internal/accounting/accounts"
	"github.com/odyssey-erp/koperasi/internal/accounting/journals"
	"github.com/odyssey-erp/koperasi/internal/accounting/ledger"
	"github.com/odyssey-erp/koperasi/internal/accounting/memstore"
	"github.com/odyssey-erp/koperasi/internal/accounting/periods"
	"github.com/odyssey-erp/koperasi/internal/integration"
	jobmetrics "github.com/odyssey-erp/koperasi/internal/jobs"
	_ "github.com/odyssey-erp/koperasi/testing"
)

func march(d int) time.Time {
	return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC)
}

func TestBatchTaskIDIsOrderIndependent(t *testing.T) {
	a := integration.Transaction{ID: "1", Type: integration.TypeInstallment}
	b := integration.Transaction{ID: "2", Type: integration.TypeDeposit}
	require.Equal(t, BatchTaskID([]integration.Transaction{a, b}), BatchTaskID([]integration.Transaction{b, a}))
	require.NotEqual(t, BatchTaskID([]integration.Transaction{a}), BatchTaskID([]integration.Transaction{a, b}))

	task, err := NewSyncBatchTask([]integration.Transaction{a, b})
	require.NoError(t, err)
	require.Equal(t, TaskLedgerSyncBatch, task.Type())
	var payload SyncBatchPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Len(t, payload.Transactions, 2)

	_, err = NewSyncBatchTask(nil)
	require.Error(t, err)
}

type fakeBatchSyncer struct {
	got []integration.Transaction
}

func (f *fakeBatchSyncer) BatchSync(_ context.Context, txs []integration.Transaction) integration.BatchResult {
	f.got = txs
	return integration.BatchResult{Succeeded: len(txs) - 1, Duplicates: 1, Failed: 1,
		Errors: []integration.BatchError{{TransactionID: txs[len(txs)-1].ID, Message: "loan not found"}}}
}

func TestSyncBatchJobHandle(t *testing.T) {
	syncer := &fakeBatchSyncer{}
	job := NewSyncBatchJob(syncer, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))
	txs := []integration.Transaction{
		{ID: "A", Type: integration.TypeDeposit, Amount: 1, Date: march(1)},
		{ID: "B", Type: integration.TypeDeposit, Amount: 1, Date: march(1)},
		{ID: "C", Type: integration.TypeInstallment, LoanID: 404, Amount: 1, Date: march(1)},
	}
	task, err := NewSyncBatchTask(txs)
	require.NoError(t, err)

	require.NoError(t, job.Handle(context.Background(), task))
	require.Len(t, syncer.got, 3)
	require.Equal(t, "C", syncer.got[2].ID)

	err = job.Handle(context.Background(), asynq.NewTask(TaskLedgerSyncBatch, []byte("{")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

type violationCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (v *violationCounter) AddViolations(check string, n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.counts == nil {
		v.counts = make(map[string]int)
	}
	v.counts[check] += n
}

func TestGLIntegrityPassesOnConsistentLedger(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	accSvc := accounts.NewService(store.Accounts(), nil)
	cash, err := accSvc.Create(ctx, accounts.CreateInput{Code: "1-1000", Name: "Kas", Type: accounts.AccountTypeAsset, Category: "CASH"})
	require.NoError(t, err)
	capital, err := accSvc.Create(ctx, accounts.CreateInput{Code: "3-1000", Name: "Simpanan Pokok", Type: accounts.AccountTypeEquity})
	require.NoError(t, err)
	income, err := accSvc.Create(ctx, accounts.CreateInput{Code: "4-1000", Name: "Pendapatan Jasa", Type: accounts.AccountTypeRevenue})
	require.NoError(t, err)

	jsvc := journals.NewService(store.Journals(), nil, nil)
	_, err = jsvc.CreateAndPost(ctx, journals.EntryInput{Date: march(2), Description: "Setoran modal",
		Lines: []journals.LineInput{{AccountID: cash.ID, Debit: 500_000}, {AccountID: capital.ID, Credit: 500_000}}})
	require.NoError(t, err)
	posted, err := jsvc.CreateAndPost(ctx, journals.EntryInput{Date: march(5), Description: "Jasa",
		Lines: []journals.LineInput{{AccountID: cash.ID, Debit: 20_000}, {AccountID: income.ID, Credit: 20_000}}})
	require.NoError(t, err)
	_, err = jsvc.Reverse(ctx, journals.ReverseInput{EntryID: posted.ID, ActorID: 1})
	require.NoError(t, err)
	_, err = jsvc.Create(ctx, journals.EntryInput{Date: march(6), Description: "Draft",
		Lines: []journals.LineInput{{AccountID: cash.ID, Debit: 1}, {AccountID: income.ID, Credit: 1}}})
	require.NoError(t, err)

	counter := &violationCounter{}
	job := NewGLIntegrityJob(store.Journals(), ledger.NewService(store.Accounts(), store.Journals()), counter, nil,
		jobmetrics.NewMetrics(prometheus.NewRegistry())).
		WithClock(func() time.Time { return march(20) })

	report, err := job.Run(ctx, periods.Of(march(1)))
	require.NoError(t, err)
	require.True(t, report.OK(), "%+v", report.Violations)
	require.Equal(t, 3, report.EntriesChecked)
	require.Empty(t, counter.counts)

	task, err := NewGLIntegrityTask("")
	require.NoError(t, err)
	require.NoError(t, job.Handle(ctx, task))

	bad, err := NewGLIntegrityTask("2024-13")
	require.NoError(t, err)
	require.ErrorIs(t, job.Handle(ctx, bad), asynq.SkipRetry)
}

type stubEntries struct {
	entries []journals.JournalEntry
	err     error
}

func (s stubEntries) List(_ context.Context, f journals.ListFilter) ([]journals.JournalEntry, error) {
	var out []journals.JournalEntry
	for _, e := range s.entries {
		if e.Status == f.Status {
			out = append(out, e)
		}
	}
	return out, s.err
}

type stubBalances []ledger.AccountBalance

func (s stubBalances) Balances(context.Context, periods.Period) ([]ledger.AccountBalance, error) {
	return s, nil
}

func TestGLIntegrityReportsViolations(t *testing.T) {
	cash := accounts.Account{ID: 1, Code: "1-1000", Name: "Kas", Type: accounts.AccountTypeAsset, NormalSide: accounts.NormalDebit}
	capital := accounts.Account{ID: 2, Code: "3-1000", Name: "Modal", Type: accounts.AccountTypeEquity, NormalSide: accounts.NormalCredit}
	mirror := int64(99)
	entries := stubEntries{entries: []journals.JournalEntry{
		{ID: 1, Number: 1, Status: journals.JournalStatusPosted, TotalDebit: 100, TotalCredit: 100,
			Lines: []journals.JournalLine{{AccountID: 1, Debit: 100}, {AccountID: 2, Credit: 90}}},
		{ID: 2, Number: 2, Status: journals.JournalStatusReversed, TotalDebit: 5, TotalCredit: 5, ReversedBy: &mirror,
			Lines: []journals.JournalLine{{AccountID: 1, Debit: 5}, {AccountID: 2, Credit: 5}}},
	}}
	balances := stubBalances{
		{Account: cash, Debit: 100, Closing: 100},
		{Account: capital, Credit: 90, Closing: 90},
	}
	counter := &violationCounter{}
	job := NewGLIntegrityJob(entries, balances, counter, nil, jobmetrics.NewMetrics(prometheus.NewRegistry()))

	report, err := job.Run(context.Background(), periods.Of(march(1)))
	require.NoError(t, err)
	require.False(t, report.OK())
	require.Equal(t, 1, counter.counts[CheckEntryBalance])
	require.Equal(t, 1, counter.counts[CheckReversalLink])
	require.Equal(t, 1, counter.counts[CheckTrialBalance])
	require.Equal(t, 1, counter.counts[CheckBalanceSheet])

	_, err = NewGLIntegrityJob(stubEntries{err: errors.New("db down")}, balances, nil, nil, nil).Run(context.Background(), periods.Of(march(1)))
	require.Error(t, err)
}

func TestHealthWithoutInspector(t *testing.T) {
	r := chi.NewRouter()
	NewHandler(nil, nil).MountRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"queue":"default","pending":0,"active":0,"retry":0,"scheduled":0,"archived":0}`, rec.Body.String())
}

type stubInspector struct {
	info *asynq.QueueInfo
	err  error
}

func (s stubInspector) GetQueueInfo(string) (*asynq.QueueInfo, error) {
	return s.info, s.err
}

func TestQueueState(t *testing.T) {
	stats, err := QueueState(stubInspector{info: &asynq.QueueInfo{Queue: QueueDefault, Pending: 2, Retry: 1}}, QueueDefault)
	require.NoError(t, err)
	require.Equal(t, QueueStats{Queue: QueueDefault, Pending: 2, Retry: 1}, stats)

	stats, err = QueueState(stubInspector{err: asynq.ErrQueueNotFound}, QueueDefault)
	require.NoError(t, err)
	require.Zero(t, stats.Pending)

	_, err = QueueState(stubInspector{err: errors.New("redis down")}, QueueDefault)
	require.Error(t, err)

	r := chi.NewRouter()
	NewHandler(stubInspector{err: errors.New("redis down")}, nil).MountRoutes(r)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestNewClientRequiresAddr(t *testing.T) {
	_, err := NewClient(asynq.RedisClientOpt{})
	require.Error(t, err)
}

func TestScheduleRejectsEmptySpec(t *testing.T) {
	w := NewWorker(WorkerConfig{RedisOpts: asynq.RedisClientOpt{Addr: "127.0.0.1:0"}})
	task, err := NewGLIntegrityTask("")
	require.NoError(t, err)
	require.Error(t, w.Schedule("", task))
}
