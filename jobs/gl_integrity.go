package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/koperasi/internal/accounting/journals"
	"github.com/odyssey-erp/koperasi/internal/accounting/ledger"
	"github.com/odyssey-erp/koperasi/internal/accounting/periods"
	"github.com/odyssey-erp/koperasi/internal/accounting/reports"
	jobmetrics "github.com/odyssey-erp/koperasi/internal/jobs"
)

// Integrity check names, used as metric labels.
const (
	CheckEntryBalance = "entry_balance"
	CheckReversalLink = "reversal_link"
	CheckTrialBalance = "trial_balance"
	CheckBalanceSheet = "balance_sheet"
)

// EntryLister lists journal entries.
type EntryLister interface {
	List(ctx context.Context, filter journals.ListFilter) ([]journals.JournalEntry, error)
}

// BalanceReader derives per-account balances for a period.
type BalanceReader interface {
	Balances(ctx context.Context, period periods.Period) ([]ledger.AccountBalance, error)
}

// ViolationRecorder receives violation counts per check.
type ViolationRecorder interface {
	AddViolations(check string, count int)
}

// Violation is one failed invariant.
type Violation struct {
	Check  string `json:"check"`
	Detail string `json:"detail"`
}

// IntegrityReport summarises one run.
type IntegrityReport struct {
	Period         string      `json:"period"`
	EntriesChecked int         `json:"entries_checked"`
	Violations     []Violation `json:"violations"`
}

// OK reports whether every check passed.
func (r IntegrityReport) OK() bool {
	return len(r.Violations) == 0
}

// GLIntegrityJob verifies that every counted entry balances, reversals link
// both ways, and the period's trial balance and balance sheet hold.
type GLIntegrityJob struct {
	Entries  EntryLister
	Balances BalanceReader
	Recorder ViolationRecorder
	Logger   *slog.Logger
	Metrics  *jobmetrics.Metrics
	clock    func() time.Time
}

func NewGLIntegrityJob(entries EntryLister, balances BalanceReader, recorder ViolationRecorder, logger *slog.Logger, metrics *jobmetrics.Metrics) *GLIntegrityJob {
	return &GLIntegrityJob{
		Entries:  entries,
		Balances: balances,
		Recorder: recorder,
		Logger:   logger,
		Metrics:  metrics,
		clock: func() time.Time {
			return time.Now().UTC()
		},
	}
}

// WithClock overrides the clock that picks the default period.
func (j *GLIntegrityJob) WithClock(now func() time.Time) *GLIntegrityJob {
	if now != nil {
		j.clock = now
	}
	return j
}

// Handle processes TaskGLIntegrity tasks.
func (j *GLIntegrityJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("gl integrity: handler not configured")
	}
	var payload GLIntegrityPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	period := periods.Of(j.clock())
	if payload.Period != "" {
		p, err := periods.Parse(payload.Period)
		if err != nil {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		period = p
	}
	_, err := j.Run(ctx, period)
	return err
}

// Run executes every check for period. Violations are reported, not
// returned as errors; an error means a check could not run.
func (j *GLIntegrityJob) Run(ctx context.Context, period periods.Period) (report IntegrityReport, err error) {
	done := j.Metrics.Start(jobmetrics.JobGLIntegrity)
	defer func() {
		err = done(err)
	}()
	report = IntegrityReport{Period: period.Code(), Violations: []Violation{}}

	var counted []journals.JournalEntry
	for _, status := range []journals.JournalStatus{journals.JournalStatusPosted, journals.JournalStatusReversed} {
		entries, err := j.Entries.List(ctx, journals.ListFilter{Status: status})
		if err != nil {
			return report, fmt.Errorf("list %s entries: %w", status, err)
		}
		counted = append(counted, entries...)
	}
	report.EntriesChecked = len(counted)
	report.Violations = append(report.Violations, checkEntries(counted)...)

	balances, err := j.Balances.Balances(ctx, period)
	if err != nil {
		return report, fmt.Errorf("balances %s: %w", period, err)
	}
	if tb := reports.BuildTrialBalance(period.Code(), balances); !tb.IsBalanced {
		detail := fmt.Sprintf("movement %d/%d closing %d/%d",
			tb.TotalDebit, tb.TotalCredit, tb.TotalClosingDebit, tb.TotalClosingCredit)
		report.Violations = append(report.Violations, Violation{Check: CheckTrialBalance, Detail: detail})
	}
	if _, bsErr := reports.BuildBalanceSheet(period.Code(), balances); bsErr != nil {
		report.Violations = append(report.Violations, Violation{Check: CheckBalanceSheet, Detail: bsErr.Error()})
	}

	j.report(report)
	return report, nil
}

func checkEntries(entries []journals.JournalEntry) []Violation {
	var out []Violation
	byID := make(map[int64]journals.JournalEntry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}
	for _, e := range entries {
		var debit, credit int64
		for _, l := range e.Lines {
			debit += l.Debit
			credit += l.Credit
		}
		if debit != credit || debit != e.TotalDebit || credit != e.TotalCredit || len(e.Lines) < 2 {
			out = append(out, Violation{
				Check:  CheckEntryBalance,
				Detail: fmt.Sprintf("%s lines %d/%d totals %d/%d", e.DisplayNumber(), debit, credit, e.TotalDebit, e.TotalCredit),
			})
		}
		if e.Status == journals.JournalStatusReversed {
			mirror, ok := byID[derefID(e.ReversedBy)]
			if !ok || derefID(mirror.ReversalOf) != e.ID {
				out = append(out, Violation{
					Check:  CheckReversalLink,
					Detail: fmt.Sprintf("%s reversed without a matching mirror entry", e.DisplayNumber()),
				})
			}
		}
	}
	return out
}

func derefID(id *int64) int64 {
	if id == nil {
		return 0
	}
	return *id
}

func (j *GLIntegrityJob) report(r IntegrityReport) {
	counts := make(map[string]int)
	for _, v := range r.Violations {
		counts[v.Check]++
	}
	if j.Recorder != nil {
		for check, n := range counts {
			j.Recorder.AddViolations(check, n)
		}
	}
	logger := j.logger().With(slog.String("job", jobmetrics.JobGLIntegrity), slog.String("period", r.Period))
	if r.OK() {
		logger.Info("GL integrity check passed", slog.Int("entries", r.EntriesChecked))
		return
	}
	for _, v := range r.Violations {
		logger.Error("GL integrity violation", slog.String("check", v.Check), slog.String("detail", v.Detail))
	}
}

func (j *GLIntegrityJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
