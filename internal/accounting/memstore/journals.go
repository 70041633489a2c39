package memstore

import (
	"context"
	"slices"
	"time"

	"github.com/odyssey-erp/koperasi/internal/accounting/accounts"
	"github.com/odyssey-erp/koperasi/internal/accounting/journals"
	"github.com/odyssey-erp/koperasi/internal/accounting/periods"
	"github.com/odyssey-erp/koperasi/internal/accounting/shared"
)

type journalRepo struct{ s *Store }

func (r journalRepo) WithTx(ctx context.Context, fn func(context.Context, journals.TxRepository) error) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &journalTx{s: s, t: s.journal.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.journal = tx.t
	return nil
}

func (r journalRepo) Get(_ context.Context, id int64) (journals.JournalEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	e, ok := r.s.journal.entries[id]
	if !ok {
		return journals.JournalEntry{}, shared.ErrJournalNotFound
	}
	return e.Clone(), nil
}

func (r journalRepo) FindBySourceEvent(_ context.Context, sourceEventID string) (journals.JournalEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.journal.bySource[sourceEventID]
	if !ok || sourceEventID == "" {
		return journals.JournalEntry{}, shared.ErrJournalNotFound
	}
	return r.s.journal.entries[id].Clone(), nil
}

func (r journalRepo) List(_ context.Context, filter journals.ListFilter) ([]journals.JournalEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []journals.JournalEntry
	for _, e := range r.s.journal.entries {
		if filter.Match(e) {
			out = append(out, e.Clone())
		}
	}
	slices.SortFunc(out, func(a, b journals.JournalEntry) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return int(b.Number - a.Number)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r journalRepo) PostedLines(ctx context.Context, q journals.LineQuery) ([]journals.PostedLine, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []journals.PostedLine
	for _, e := range r.s.journal.entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !q.MatchEntry(e) {
			continue
		}
		for _, l := range e.Lines {
			if !q.MatchLine(l) {
				continue
			}
			out = append(out, journals.PostedLine{
				EntryID:       e.ID,
				Number:        e.Number,
				Date:          e.Date,
				Description:   e.Description,
				Reference:     e.Reference,
				SourceModule:  e.SourceModule,
				SourceSubject: e.SourceSubject,
				Status:        e.Status,
				LineNo:        l.LineNo,
				AccountID:     l.AccountID,
				Debit:         l.Debit,
				Credit:        l.Credit,
				Note:          l.Note,
			})
		}
	}
	journals.SortLines(out)
	return out, nil
}

func (r journalRepo) SumPostedLines(ctx context.Context, q journals.LineQuery) ([]journals.AccountTotal, error) {
	lines, err := r.PostedLines(ctx, q)
	if err != nil {
		return nil, err
	}
	byAccount := make(map[int64]*journals.AccountTotal)
	var out []journals.AccountTotal
	var order []int64
	for _, l := range lines {
		t, ok := byAccount[l.AccountID]
		if !ok {
			t = &journals.AccountTotal{AccountID: l.AccountID}
			byAccount[l.AccountID] = t
			order = append(order, l.AccountID)
		}
		t.Debit += l.Debit
		t.Credit += l.Credit
	}
	slices.Sort(order)
	for _, id := range order {
		out = append(out, *byAccount[id])
	}
	return out, nil
}

type journalTx struct {
	s *Store
	t journalTables
}

func (tx *journalTx) NextNumber(context.Context) (int64, error) {
	tx.t.numberSeq++
	return tx.t.numberSeq, nil
}

func (tx *journalTx) Insert(_ context.Context, entry journals.JournalEntry) (journals.JournalEntry, error) {
	if entry.SourceEventID != "" {
		if _, exists := tx.t.bySource[entry.SourceEventID]; exists {
			return journals.JournalEntry{}, shared.ErrSourceConflict
		}
	}
	tx.t.entrySeq++
	entry = entry.Clone()
	entry.ID = tx.t.entrySeq
	entry.CreatedAt = tx.s.now()
	entry.UpdatedAt = entry.CreatedAt
	tx.assignLines(&entry)
	tx.t.entries[entry.ID] = entry
	if entry.SourceEventID != "" {
		tx.t.bySource[entry.SourceEventID] = entry.ID
	}
	return entry.Clone(), nil
}

func (tx *journalTx) assignLines(entry *journals.JournalEntry) {
	for i := range entry.Lines {
		tx.t.lineSeq++
		entry.Lines[i].ID = tx.t.lineSeq
		entry.Lines[i].JournalID = entry.ID
	}
}

func (tx *journalTx) GetForUpdate(_ context.Context, id int64) (journals.JournalEntry, error) {
	e, ok := tx.t.entries[id]
	if !ok {
		return journals.JournalEntry{}, shared.ErrJournalNotFound
	}
	return e.Clone(), nil
}

func (tx *journalTx) Update(_ context.Context, entry journals.JournalEntry) (journals.JournalEntry, error) {
	current, ok := tx.t.entries[entry.ID]
	if !ok {
		return journals.JournalEntry{}, shared.ErrJournalNotFound
	}
	current.Date = entry.Date
	current.Description = entry.Description
	current.Reference = entry.Reference
	current.TotalDebit = entry.TotalDebit
	current.TotalCredit = entry.TotalCredit
	current.Lines = slices.Clone(entry.Lines)
	current.UpdatedAt = tx.s.now()
	tx.assignLines(&current)
	tx.t.entries[current.ID] = current
	return current.Clone(), nil
}

func (tx *journalTx) MarkPosted(_ context.Context, id int64, at time.Time) error {
	e, ok := tx.t.entries[id]
	if !ok {
		return shared.ErrJournalNotFound
	}
	e.Status = journals.JournalStatusPosted
	e.PostedAt = &at
	e.UpdatedAt = tx.s.now()
	tx.t.entries[id] = e
	return nil
}

func (tx *journalTx) MarkReversed(_ context.Context, id, reversalID int64) error {
	e, ok := tx.t.entries[id]
	if !ok {
		return shared.ErrJournalNotFound
	}
	e.Status = journals.JournalStatusReversed
	e.ReversedBy = &reversalID
	e.UpdatedAt = tx.s.now()
	tx.t.entries[id] = e
	return nil
}

func (tx *journalTx) Delete(_ context.Context, id int64) error {
	e, ok := tx.t.entries[id]
	if !ok {
		return shared.ErrJournalNotFound
	}
	if e.SourceEventID != "" {
		delete(tx.t.bySource, e.SourceEventID)
	}
	delete(tx.t.entries, id)
	return nil
}

func (tx *journalTx) LookupAccounts(_ context.Context, ids []int64) (map[int64]accounts.Account, error) {
	out := make(map[int64]accounts.Account, len(ids))
	for _, id := range ids {
		if acc, ok := tx.s.accounts[id]; ok {
			out[id] = acc
		}
	}
	return out, nil
}

func (tx *journalTx) PeriodStatus(_ context.Context, code string) (periods.PeriodStatus, error) {
	if state, ok := tx.s.periods[code]; ok {
		return state.Status, nil
	}
	return periods.PeriodStatusOpen, nil
}
