package integration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/odyssey-erp/koperasi/internal/accounting/journals"
	"github.com/odyssey-erp/koperasi/internal/accounting/mappings"
	"github.com/odyssey-erp/koperasi/internal/accounting/shared"
	"golang.org/x/sync/errgroup"
)

// ErrEventInFlight indicates another worker holds the event lock.
var ErrEventInFlight = fmt.Errorf("%w: transaction is being synced elsewhere", shared.ErrState)

// Ledger exposes the journal operations the syncer needs.
type Ledger interface {
	FindBySourceEvent(ctx context.Context, sourceEventID string) (journals.JournalEntry, error)
	Create(ctx context.Context, input journals.EntryInput) (journals.JournalEntry, error)
	CreateAndPost(ctx context.Context, input journals.EntryInput) (journals.JournalEntry, error)
}

// LineReader sums counted journal lines.
type LineReader interface {
	SumPostedLines(ctx context.Context, q journals.LineQuery) ([]journals.AccountTotal, error)
}

// Recorder receives sync outcomes for metrics.
type Recorder interface {
	ObserveSync(txType, result string)
}

// Locker guards an event across workers. Acquire reports false when another
// holder owns the key.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), ok bool, err error)
}

// Config tunes the syncer.
type Config struct {
	// AutoPost creates entries POSTED; otherwise they stay DRAFT for review.
	AutoPost bool
	// Concurrency bounds the loans processed in parallel by BatchSync.
	Concurrency int
}

// Syncer turns cooperative transactions into journal entries.
type Syncer struct {
	ledger   Ledger
	lines    LineReader
	mappings mappings.Repository
	loans    LoanSettings
	members  MemberDirectory
	logger   *slog.Logger
	cfg      Config

	locker   Locker
	recorder Recorder

	loanLocks sync.Map
}

// NewSyncer wires the syncer collaborators.
func NewSyncer(ledger Ledger, lines LineReader, mappingRepo mappings.Repository, loans LoanSettings, members MemberDirectory, logger *slog.Logger, cfg Config) *Syncer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	return &Syncer{
		ledger:   ledger,
		lines:    lines,
		mappings: mappingRepo,
		loans:    loans,
		members:  members,
		logger:   logger,
		cfg:      cfg,
	}
}

// WithLocker installs a cross-process event lock.
func (s *Syncer) WithLocker(l Locker) *Syncer {
	s.locker = l
	return s
}

// WithRecorder installs a metrics recorder.
func (s *Syncer) WithRecorder(r Recorder) *Syncer {
	s.recorder = r
	return s
}

// SyncTransaction records one transaction in the ledger. Re-syncing an
// already recorded transaction returns its existing entry with Duplicate set.
func (s *Syncer) SyncTransaction(ctx context.Context, tx Transaction) (Outcome, error) {
	out, err := s.sync(ctx, tx)
	s.observe(tx, out, err)
	if err != nil {
		return Outcome{}, err
	}
	return out, nil
}

func (s *Syncer) sync(ctx context.Context, tx Transaction) (Outcome, error) {
	tx.ID = strings.TrimSpace(tx.ID)
	if err := tx.Validate(); err != nil {
		return Outcome{}, err
	}
	eventID := tx.EventID()
	if s.locker != nil {
		release, ok, err := s.locker.Acquire(ctx, eventID)
		if err != nil {
			return Outcome{}, err
		}
		if !ok {
			return Outcome{}, ErrEventInFlight
		}
		defer release()
	}

	if existing, err := s.ledger.FindBySourceEvent(ctx, eventID); err == nil {
		return Outcome{TransactionID: tx.ID, Entry: existing, Duplicate: true}, nil
	} else if !errors.Is(err, shared.ErrJournalNotFound) {
		return Outcome{}, err
	}

	var (
		input journals.EntryInput
		alloc *Allocation
		err   error
	)
	switch tx.Type {
	case TypeInstallment:
		unlock := s.lockLoan(tx.LoanID)
		defer unlock()
		input, alloc, err = s.installment(ctx, tx)
	case TypeDisbursement:
		input, err = s.disbursement(ctx, tx)
	case TypeDeposit, TypeWithdrawal:
		input, err = s.savings(ctx, tx)
	case TypeIncome, TypeExpense:
		input, err = s.finance(ctx, tx)
	default:
		err = shared.NewFieldError("type", fmt.Errorf("%w: unsupported type %q", shared.ErrValidation, tx.Type))
	}
	if err != nil {
		return Outcome{}, err
	}
	input.Date = tx.Date
	input.SourceModule = tx.Type.Module()
	input.SourceEventID = eventID
	input.Reference = tx.ID

	entry, err := s.create(ctx, input)
	if errors.Is(err, shared.ErrSourceConflict) {
		// a concurrent sync won the unique index
		existing, findErr := s.ledger.FindBySourceEvent(ctx, eventID)
		if findErr != nil {
			return Outcome{}, findErr
		}
		return Outcome{TransactionID: tx.ID, Entry: existing, Duplicate: true}, nil
	}
	if err != nil {
		return Outcome{}, err
	}
	s.logger.Info("transaction synced",
		slog.String("transaction_id", tx.ID),
		slog.String("type", string(tx.Type)),
		slog.Int64("journal_number", entry.Number),
		slog.Int64("amount", tx.Amount))
	return Outcome{TransactionID: tx.ID, Entry: entry, Allocation: alloc}, nil
}

func (s *Syncer) create(ctx context.Context, input journals.EntryInput) (journals.JournalEntry, error) {
	if s.cfg.AutoPost {
		return s.ledger.CreateAndPost(ctx, input)
	}
	return s.ledger.Create(ctx, input)
}

// lockLoan serialises installment allocation per loan inside this process,
// since each allocation reads the principal the previous one credited.
func (s *Syncer) lockLoan(loanID int64) func() {
	v, _ := s.loanLocks.LoadOrStore(loanID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *Syncer) installment(ctx context.Context, tx Transaction) (journals.EntryInput, *Allocation, error) {
	loan, err := s.loans.GetLoan(ctx, tx.LoanID)
	if err != nil {
		return journals.EntryInput{}, nil, fmt.Errorf("loan %d: %w", tx.LoanID, err)
	}
	cash, err := s.resolve(ctx, mappingLoan, "cash", loan.Category)
	if err != nil {
		return journals.EntryInput{}, nil, err
	}
	receivable, err := s.resolve(ctx, mappingLoan, "receivable", loan.Category)
	if err != nil {
		return journals.EntryInput{}, nil, err
	}
	income, err := s.resolve(ctx, mappingLoan, "interest_income", loan.Category)
	if err != nil {
		return journals.EntryInput{}, nil, err
	}
	remaining, err := s.RemainingPrincipal(ctx, loan, receivable)
	if err != nil {
		return journals.EntryInput{}, nil, err
	}
	alloc, err := Allocate(remaining, loan.MonthlyRate, tx.Amount)
	if err != nil {
		return journals.EntryInput{}, nil, fmt.Errorf("loan %d: %w", loan.ID, err)
	}
	lines := []journals.LineInput{{AccountID: cash, Debit: tx.Amount, Note: "Setoran angsuran"}}
	if alloc.InterestPortion > 0 {
		lines = append(lines, journals.LineInput{AccountID: income, Credit: alloc.InterestPortion, Note: "Jasa pinjaman"})
	}
	if alloc.PrincipalPortion > 0 {
		lines = append(lines, journals.LineInput{AccountID: receivable, Credit: alloc.PrincipalPortion, Note: "Pokok pinjaman"})
	}
	return journals.EntryInput{
		Description:   describe(tx, fmt.Sprintf("Angsuran pinjaman #%d", loan.ID)),
		SourceSubject: loan.Subject(),
		Lines:         lines,
	}, &alloc, nil
}

// RemainingPrincipal is the loan principal less the net principal credited
// to the receivable account by installments and their reversals. DRAFT
// installments count as committed so two pending drafts cannot both claim the
// same principal; deleting a draft releases its share.
func (s *Syncer) RemainingPrincipal(ctx context.Context, loan Loan, receivableAccount int64) (int64, error) {
	totals, err := s.lines.SumPostedLines(ctx, journals.LineQuery{
		AccountID:     receivableAccount,
		SourceSubject: loan.Subject(),
		SourceModules: []string{ModuleInstallment, ModuleInstallment + journals.ReversalSuffix},
		IncludeDrafts: true,
	})
	if err != nil {
		return 0, err
	}
	remaining := loan.Principal
	for _, t := range totals {
		remaining -= t.Credit - t.Debit
	}
	if remaining < 0 {
		return 0, fmt.Errorf("loan %d principal overpaid by %d: %w", loan.ID, -remaining, shared.ErrConsistency)
	}
	return remaining, nil
}

func (s *Syncer) disbursement(ctx context.Context, tx Transaction) (journals.EntryInput, error) {
	loan, err := s.loans.GetLoan(ctx, tx.LoanID)
	if err != nil {
		return journals.EntryInput{}, fmt.Errorf("loan %d: %w", tx.LoanID, err)
	}
	cash, err := s.resolve(ctx, mappingLoan, "cash", loan.Category)
	if err != nil {
		return journals.EntryInput{}, err
	}
	receivable, err := s.resolve(ctx, mappingLoan, "receivable", loan.Category)
	if err != nil {
		return journals.EntryInput{}, err
	}
	return journals.EntryInput{
		Description:   describe(tx, fmt.Sprintf("Pencairan pinjaman #%d", loan.ID)),
		SourceSubject: loan.Subject(),
		Lines: []journals.LineInput{
			{AccountID: receivable, Debit: tx.Amount},
			{AccountID: cash, Credit: tx.Amount},
		},
	}, nil
}

func (s *Syncer) savings(ctx context.Context, tx Transaction) (journals.EntryInput, error) {
	cash, err := s.resolve(ctx, mappingSavings, "cash", tx.Category)
	if err != nil {
		return journals.EntryInput{}, err
	}
	savings, err := s.resolve(ctx, mappingSavings, "savings", tx.Category)
	if err != nil {
		return journals.EntryInput{}, err
	}
	in := journals.EntryInput{SourceSubject: memberSubject(tx.MemberID)}
	if tx.Type == TypeDeposit {
		in.Description = describe(tx, "Setoran simpanan")
		in.Lines = []journals.LineInput{{AccountID: cash, Debit: tx.Amount}, {AccountID: savings, Credit: tx.Amount}}
	} else {
		in.Description = describe(tx, "Penarikan simpanan")
		in.Lines = []journals.LineInput{{AccountID: savings, Debit: tx.Amount}, {AccountID: cash, Credit: tx.Amount}}
	}
	return in, nil
}

func (s *Syncer) finance(ctx context.Context, tx Transaction) (journals.EntryInput, error) {
	cash, err := s.resolve(ctx, mappingKeuangan, "cash", tx.Category)
	if err != nil {
		return journals.EntryInput{}, err
	}
	if tx.Type == TypeIncome {
		income, err := s.resolve(ctx, mappingKeuangan, "income", tx.Category)
		if err != nil {
			return journals.EntryInput{}, err
		}
		return journals.EntryInput{
			Description: describe(tx, "Pemasukan kas"),
			Lines:       []journals.LineInput{{AccountID: cash, Debit: tx.Amount}, {AccountID: income, Credit: tx.Amount}},
		}, nil
	}
	expense, err := s.resolve(ctx, mappingKeuangan, "expense", tx.Category)
	if err != nil {
		return journals.EntryInput{}, err
	}
	return journals.EntryInput{
		Description: describe(tx, "Pengeluaran kas"),
		Lines:       []journals.LineInput{{AccountID: expense, Debit: tx.Amount}, {AccountID: cash, Credit: tx.Amount}},
	}, nil
}

// resolve looks up "<key>.<category>" before the general "<key>" mapping.
func (s *Syncer) resolve(ctx context.Context, module, key, category string) (int64, error) {
	keys := []string{key}
	if c := strings.ToLower(strings.TrimSpace(category)); c != "" {
		keys = []string{key + "." + c, key}
	}
	return mappings.Resolve(ctx, s.mappings, module, keys...)
}

func describe(tx Transaction, fallback string) string {
	if d := strings.TrimSpace(tx.Description); d != "" {
		return d
	}
	return fallback
}

func memberSubject(memberID int64) string {
	if memberID <= 0 {
		return ""
	}
	return fmt.Sprintf("MEMBER:%d", memberID)
}

func (s *Syncer) observe(tx Transaction, out Outcome, err error) {
	if s.recorder == nil {
		return
	}
	result := "created"
	switch {
	case err != nil:
		result = "failed"
	case out.Duplicate:
		result = "duplicate"
	}
	s.recorder.ObserveSync(string(tx.Type), result)
}

// BatchSync syncs every transaction independently. Transactions of the same
// loan run serially in input order; different loans and non-loan events run
// concurrently. A failing item is reported and never stops the batch.
func (s *Syncer) BatchSync(ctx context.Context, txs []Transaction) BatchResult {
	type item struct {
		idx int
		tx  Transaction
	}
	var (
		groups [][]item
		byLoan = make(map[int64]int)
	)
	for i, tx := range txs {
		if tx.Type.NeedsLoan() && tx.LoanID > 0 {
			if g, ok := byLoan[tx.LoanID]; ok {
				groups[g] = append(groups[g], item{i, tx})
				continue
			}
			byLoan[tx.LoanID] = len(groups)
		}
		groups = append(groups, []item{{i, tx}})
	}

	outcomes := make([]Outcome, len(txs))
	errs := make([]error, len(txs))
	var g errgroup.Group
	g.SetLimit(s.cfg.Concurrency)
	for _, group := range groups {
		g.Go(func() error {
			for _, it := range group {
				if err := ctx.Err(); err != nil {
					errs[it.idx] = err
					continue
				}
				outcomes[it.idx], errs[it.idx] = s.SyncTransaction(ctx, it.tx)
			}
			return nil
		})
	}
	_ = g.Wait()

	result := BatchResult{Errors: []BatchError{}}
	for i, tx := range txs {
		if err := errs[i]; err != nil {
			result.Failed++
			result.Errors = append(result.Errors, BatchError{
				TransactionID: tx.ID,
				Member:        s.memberLabel(ctx, tx.MemberID),
				Message:       err.Error(),
				Err:           err,
			})
			s.logger.Warn("transaction sync failed", slog.String("transaction_id", tx.ID), slog.Any("error", err))
			continue
		}
		result.Succeeded++
		if outcomes[i].Duplicate {
			result.Duplicates++
		}
	}
	return result
}

func (s *Syncer) memberLabel(ctx context.Context, memberID int64) string {
	if s.members == nil || memberID <= 0 {
		return ""
	}
	name, err := s.members.MemberName(context.WithoutCancel(ctx), memberID)
	if err != nil {
		return fmt.Sprintf("#%d", memberID)
	}
	return name
}
