package journals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/odyssey-erp/koperasi/internal/accounting/periods"
	"github.com/odyssey-erp/koperasi/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/koperasi/internal/shared"
)

type AuditPort interface {
	Record(ctx context.Context, log internalShared.AuditLog) error
}

// PostingListener is notified after an entry reaches POSTED or a reversal
// commits. Listeners must not block.
type PostingListener interface {
	JournalPosted(ctx context.Context, entry JournalEntry)
}

// maxPeriodProbe bounds the search for an open period when a reversal must
// move out of a closed or locked month.
const maxPeriodProbe = 24

type Service struct {
	repo      Repository
	audit     AuditPort
	logger    *slog.Logger
	listeners []PostingListener
	now       func() time.Time
}

func NewService(repo Repository, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, now: time.Now}
}

func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// AddListener registers a posting listener.
func (s *Service) AddListener(l PostingListener) {
	if l != nil {
		s.listeners = append(s.listeners, l)
	}
}

func (s *Service) Get(ctx context.Context, id int64) (JournalEntry, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]JournalEntry, error) {
	return s.repo.List(ctx, filter)
}

func (s *Service) FindBySourceEvent(ctx context.Context, sourceEventID string) (JournalEntry, error) {
	return s.repo.FindBySourceEvent(ctx, sourceEventID)
}

// Create stores a new DRAFT entry.
func (s *Service) Create(ctx context.Context, input EntryInput) (JournalEntry, error) {
	return s.create(ctx, input, false)
}

// CreateAndPost creates and posts an entry in one transaction.
func (s *Service) CreateAndPost(ctx context.Context, input EntryInput) (JournalEntry, error) {
	return s.create(ctx, input, true)
}

func (s *Service) create(ctx context.Context, input EntryInput, post bool) (JournalEntry, error) {
	input = input.normalized()
	if err := input.Validate(); err != nil {
		return JournalEntry{}, err
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		lines := input.lines()
		if err := checkAccounts(ctx, tx, lines); err != nil {
			return err
		}
		now := s.now()
		candidate := JournalEntry{
			Date:          input.Date,
			Description:   input.Description,
			Reference:     input.Reference,
			SourceModule:  input.SourceModule,
			SourceEventID: input.SourceEventID,
			SourceSubject: input.SourceSubject,
			Status:        JournalStatusDraft,
			CreatedBy:     input.CreatedBy,
			Lines:         lines,
		}
		candidate.TotalDebit, candidate.TotalCredit = totals(lines)
		if post {
			if err := ensurePostable(ctx, tx, input.Date); err != nil {
				return err
			}
			candidate.Status = JournalStatusPosted
			candidate.PostedAt = &now
		}
		number, err := tx.NextNumber(ctx)
		if err != nil {
			return err
		}
		candidate.Number = number
		inserted, err := tx.Insert(ctx, candidate)
		if err != nil {
			return err
		}
		entry = inserted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	action := "journal.create"
	if post {
		action = "journal.post"
	}
	s.record(ctx, input.CreatedBy, action, entry, map[string]any{
		"number":          entry.Number,
		"source_module":   entry.SourceModule,
		"source_event_id": entry.SourceEventID,
	})
	if post {
		s.notify(ctx, entry)
	}
	return entry, nil
}

// Update replaces a draft entry's header and lines.
func (s *Service) Update(ctx context.Context, id int64, input EntryInput) (JournalEntry, error) {
	input = input.normalized()
	if err := input.Validate(); err != nil {
		return JournalEntry{}, err
	}
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != JournalStatusDraft {
			return fmt.Errorf("entry %s is %s: %w", current.DisplayNumber(), current.Status, shared.ErrEntryNotEditable)
		}
		lines := input.lines()
		if err := checkAccounts(ctx, tx, lines); err != nil {
			return err
		}
		current.Date = input.Date
		current.Description = input.Description
		current.Reference = input.Reference
		current.Lines = lines
		current.TotalDebit, current.TotalCredit = totals(lines)
		updated, err := tx.Update(ctx, current)
		if err != nil {
			return err
		}
		entry = updated
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.record(ctx, input.CreatedBy, "journal.update", entry, map[string]any{"number": entry.Number})
	return entry, nil
}

// Post moves a draft to POSTED after re-checking balance, accounts and the
// period guard.
func (s *Service) Post(ctx context.Context, id, actorID int64) (JournalEntry, error) {
	var entry JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != JournalStatusDraft {
			return fmt.Errorf("entry %s is %s: %w", current.DisplayNumber(), current.Status, shared.ErrEntryNotEditable)
		}
		if len(current.Lines) < 2 {
			return shared.ErrTooFewLines
		}
		if debit, credit := totals(current.Lines); debit != credit {
			return fmt.Errorf("entry %s debit %d credit %d: %w", current.DisplayNumber(), debit, credit, shared.ErrUnbalanced)
		}
		if err := checkAccounts(ctx, tx, current.Lines); err != nil {
			return err
		}
		if err := ensurePostable(ctx, tx, current.Date); err != nil {
			return err
		}
		at := s.now()
		if err := tx.MarkPosted(ctx, current.ID, at); err != nil {
			return err
		}
		current.Status = JournalStatusPosted
		current.PostedAt = &at
		entry = current
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.record(ctx, actorID, "journal.post", entry, map[string]any{"number": entry.Number})
	s.notify(ctx, entry)
	return entry, nil
}

// Reverse creates a POSTED mirror entry with every line's sides swapped and
// marks the original REVERSED. The original lines are left untouched.
func (s *Service) Reverse(ctx context.Context, input ReverseInput) (JournalEntry, error) {
	if input.EntryID == 0 {
		return JournalEntry{}, shared.NewFieldError("entry_id", shared.ErrValidation)
	}
	var reversal JournalEntry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		original, err := tx.GetForUpdate(ctx, input.EntryID)
		if err != nil {
			return err
		}
		if original.Status != JournalStatusPosted {
			return fmt.Errorf("entry %s is %s: %w", original.DisplayNumber(), original.Status, shared.ErrEntryNotPosted)
		}
		date, err := reversalDate(ctx, tx, original.Date, input.Date)
		if err != nil {
			return err
		}
		now := s.now()
		mirror := JournalEntry{
			Date:          date,
			Description:   defaultReversalDescription(input.Description, original),
			Reference:     original.Reference,
			SourceModule:  original.SourceModule + ReversalSuffix,
			SourceSubject: original.SourceSubject,
			Status:        JournalStatusPosted,
			ReversalOf:    &original.ID,
			CreatedBy:     input.ActorID,
			PostedAt:      &now,
			Lines:         reverseLines(original.Lines),
		}
		if original.SourceModule == "" {
			mirror.SourceModule = ""
		}
		mirror.TotalDebit, mirror.TotalCredit = totals(mirror.Lines)
		number, err := tx.NextNumber(ctx)
		if err != nil {
			return err
		}
		mirror.Number = number
		inserted, err := tx.Insert(ctx, mirror)
		if err != nil {
			return err
		}
		if err := tx.MarkReversed(ctx, original.ID, inserted.ID); err != nil {
			return err
		}
		reversal = inserted
		return nil
	})
	if err != nil {
		return JournalEntry{}, err
	}
	s.record(ctx, input.ActorID, "journal.reverse", JournalEntry{ID: input.EntryID}, map[string]any{
		"reversal_id":     reversal.ID,
		"reversal_number": reversal.Number,
	})
	s.notify(ctx, reversal)
	return reversal, nil
}

// Delete removes a draft entry.
func (s *Service) Delete(ctx context.Context, id, actorID int64) error {
	var number int64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != JournalStatusDraft {
			return fmt.Errorf("entry %s is %s: %w", current.DisplayNumber(), current.Status, shared.ErrEntryNotEditable)
		}
		number = current.Number
		return tx.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.record(ctx, actorID, "journal.delete", JournalEntry{ID: id}, map[string]any{"number": number})
	return nil
}

// reversalDate keeps the requested (or original) date when its period is
// open. A default date inside a closed or locked period moves to the first
// day of the next open period; an explicit date there is rejected.
func reversalDate(ctx context.Context, tx TxRepository, original time.Time, requested *time.Time) (time.Time, error) {
	date := original
	if requested != nil {
		date = dateOnly(*requested)
	}
	p := periods.Of(date)
	status, err := tx.PeriodStatus(ctx, p.Code())
	if err != nil {
		return time.Time{}, err
	}
	if status == periods.PeriodStatusOpen {
		return date, nil
	}
	if requested != nil {
		if status.AcceptsPostings() {
			return date, nil
		}
		return time.Time{}, fmt.Errorf("period %s: %w", p.Code(), shared.ErrPeriodLocked)
	}
	for i := 0; i < maxPeriodProbe; i++ {
		p = p.Next()
		status, err = tx.PeriodStatus(ctx, p.Code())
		if err != nil {
			return time.Time{}, err
		}
		if status == periods.PeriodStatusOpen {
			return p.Start(), nil
		}
	}
	return time.Time{}, fmt.Errorf("no open period after %s: %w", periods.Of(date).Code(), shared.ErrPeriodLocked)
}

func ensurePostable(ctx context.Context, tx TxRepository, date time.Time) error {
	p := periods.Of(date)
	status, err := tx.PeriodStatus(ctx, p.Code())
	if err != nil {
		return err
	}
	if !status.AcceptsPostings() {
		return fmt.Errorf("period %s: %w", p.Code(), shared.ErrPeriodLocked)
	}
	return nil
}

func checkAccounts(ctx context.Context, tx TxRepository, lines []JournalLine) error {
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.AccountID)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)
	found, err := tx.LookupAccounts(ctx, ids)
	if err != nil {
		return err
	}
	for idx, line := range lines {
		field := fmt.Sprintf("lines[%d].account_id", idx)
		acc, ok := found[line.AccountID]
		switch {
		case !ok:
			return shared.NewFieldError(field, shared.ErrUnknownAccount)
		case acc.IsGroup:
			return shared.NewFieldError(field, shared.ErrGroupAccount)
		case !acc.IsActive:
			return shared.NewFieldError(field, shared.ErrInactiveAccount)
		}
	}
	return nil
}

func (s *Service) notify(ctx context.Context, entry JournalEntry) {
	for _, l := range s.listeners {
		l.JournalPosted(ctx, entry)
	}
}

func (s *Service) record(ctx context.Context, actorID int64, action string, entry JournalEntry, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "journal_entry",
		EntityID: fmt.Sprintf("%d", entry.ID),
		Meta:     meta,
		At:       s.now(),
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("audit journal", slog.String("action", action), slog.Any("error", err))
	}
}

func reverseLines(lines []JournalLine) []JournalLine {
	out := make([]JournalLine, 0, len(lines))
	for _, line := range lines {
		out = append(out, JournalLine{
			LineNo:    line.LineNo,
			AccountID: line.AccountID,
			Debit:     line.Credit,
			Credit:    line.Debit,
			Note:      line.Note,
		})
	}
	return out
}

func defaultReversalDescription(desc string, original JournalEntry) string {
	if desc != "" {
		return desc
	}
	return fmt.Sprintf("Reversal of %s: %s", original.DisplayNumber(), original.Description)
}
