package journals_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/odyssey-erp/koperasi/internal/accounting/accounts"
	"github.com/odyssey-erp/koperasi/internal/accounting/journals"
	"github.com/odyssey-erp/koperasi/internal/accounting/memstore"
	"github.com/odyssey-erp/koperasi/internal/accounting/periods"
	"github.com/odyssey-erp/koperasi/internal/accounting/shared"
	internalShared "github.com/odyssey-erp/koperasi/internal/shared"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store    *memstore.Store
	svc      *journals.Service
	periods  *periods.Service
	audit    *fakeAudit
	cash     accounts.Account
	savings  accounts.Account
	group    accounts.Account
	inactive accounts.Account
}

type fakeAudit struct {
	mu   sync.Mutex
	logs []internalShared.AuditLog
}

func (f *fakeAudit) Record(_ context.Context, log internalShared.AuditLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, log)
	return nil
}

func (f *fakeAudit) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.logs))
	for _, l := range f.logs {
		out = append(out, l.Action)
	}
	return out
}

type recordingListener struct {
	entries []journals.JournalEntry
}

func (l *recordingListener) JournalPosted(_ context.Context, entry journals.JournalEntry) {
	l.entries = append(l.entries, entry)
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	accSvc := accounts.NewService(store.Accounts(), nil)
	mk := func(in accounts.CreateInput) accounts.Account {
		acc, err := accSvc.Create(ctx, in)
		require.NoError(t, err)
		return acc
	}
	f := &fixture{store: store, audit: &fakeAudit{}}
	f.group = mk(accounts.CreateInput{Code: "1", Name: "Aset", Type: accounts.AccountTypeAsset, IsGroup: true})
	f.cash = mk(accounts.CreateInput{Code: "1-1000", Name: "Kas", Type: accounts.AccountTypeAsset, Category: "CASH", ParentID: &f.group.ID})
	f.savings = mk(accounts.CreateInput{Code: "3-1000", Name: "Simpanan Pokok", Type: accounts.AccountTypeEquity})
	f.inactive = mk(accounts.CreateInput{Code: "1-9000", Name: "Kas Lama", Type: accounts.AccountTypeAsset})
	_, err := accSvc.Deactivate(ctx, f.inactive.ID)
	require.NoError(t, err)

	f.svc = journals.NewService(store.Journals(), f.audit, nil)
	f.svc.WithNow(func() time.Time { return time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC) })
	f.periods = periods.NewService(store.Periods(), nil, nil)
	return f
}

func (f *fixture) input(date time.Time, amount int64) journals.EntryInput {
	return journals.EntryInput{
		Date:        date,
		Description: "Setoran simpanan pokok",
		CreatedBy:   7,
		Lines: []journals.LineInput{
			{AccountID: f.cash.ID, Debit: amount},
			{AccountID: f.savings.ID, Credit: amount},
		},
	}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	base := f.input(day(2024, 3, 1), 50000)

	unbalanced := base
	unbalanced.Lines = []journals.LineInput{{AccountID: f.cash.ID, Debit: 50000}, {AccountID: f.savings.ID, Credit: 49999}}
	_, err := f.svc.Create(ctx, unbalanced)
	require.ErrorIs(t, err, shared.ErrUnbalanced)

	single := base
	single.Lines = base.Lines[:1]
	_, err = f.svc.Create(ctx, single)
	require.ErrorIs(t, err, shared.ErrTooFewLines)

	both := base
	both.Lines = []journals.LineInput{{AccountID: f.cash.ID, Debit: 10, Credit: 10}, {AccountID: f.savings.ID, Credit: 0}}
	_, err = f.svc.Create(ctx, both)
	require.ErrorIs(t, err, shared.ErrInvalidLine)

	negative := base
	negative.Lines = []journals.LineInput{{AccountID: f.cash.ID, Debit: -10}, {AccountID: f.savings.ID, Credit: -10}}
	_, err = f.svc.Create(ctx, negative)
	require.ErrorIs(t, err, shared.ErrNegativeAmount)

	toGroup := base
	toGroup.Lines = []journals.LineInput{{AccountID: f.group.ID, Debit: 10}, {AccountID: f.savings.ID, Credit: 10}}
	_, err = f.svc.Create(ctx, toGroup)
	require.ErrorIs(t, err, shared.ErrGroupAccount)
	var fieldErr *shared.FieldError
	require.ErrorAs(t, err, &fieldErr)
	require.Equal(t, "lines[0].account_id", fieldErr.Field)

	toInactive := base
	toInactive.Lines = []journals.LineInput{{AccountID: f.cash.ID, Debit: 10}, {AccountID: f.inactive.ID, Credit: 10}}
	_, err = f.svc.Create(ctx, toInactive)
	require.ErrorIs(t, err, shared.ErrInactiveAccount)

	unknown := base
	unknown.Lines = []journals.LineInput{{AccountID: f.cash.ID, Debit: 10}, {AccountID: 4040, Credit: 10}}
	_, err = f.svc.Create(ctx, unknown)
	require.ErrorIs(t, err, shared.ErrUnknownAccount)

	noDesc := base
	noDesc.Description = "  "
	_, err = f.svc.Create(ctx, noDesc)
	require.ErrorIs(t, err, shared.ErrValidation)

	entries, err := f.svc.List(ctx, journals.ListFilter{})
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestDraftLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	listener := &recordingListener{}
	f.svc.AddListener(listener)

	draft, err := f.svc.Create(ctx, f.input(day(2024, 3, 1), 50000))
	require.NoError(t, err)
	require.Equal(t, journals.JournalStatusDraft, draft.Status)
	require.Equal(t, int64(50000), draft.TotalDebit)
	require.Equal(t, int64(50000), draft.TotalCredit)
	require.Equal(t, "JU-000001", draft.DisplayNumber())
	require.Empty(t, listener.entries)

	updated, err := f.svc.Update(ctx, draft.ID, f.input(day(2024, 3, 2), 75000))
	require.NoError(t, err)
	require.Equal(t, int64(75000), updated.TotalDebit)
	require.Equal(t, draft.Number, updated.Number)

	posted, err := f.svc.Post(ctx, draft.ID, 7)
	require.NoError(t, err)
	require.Equal(t, journals.JournalStatusPosted, posted.Status)
	require.NotNil(t, posted.PostedAt)
	require.Len(t, listener.entries, 1)

	_, err = f.svc.Post(ctx, draft.ID, 7)
	require.ErrorIs(t, err, shared.ErrEntryNotEditable)
	_, err = f.svc.Update(ctx, draft.ID, f.input(day(2024, 3, 2), 1))
	require.ErrorIs(t, err, shared.ErrEntryNotEditable)
	require.ErrorIs(t, f.svc.Delete(ctx, draft.ID, 7), shared.ErrEntryNotEditable)

	stored, err := f.svc.Get(ctx, draft.ID)
	require.NoError(t, err)
	require.Equal(t, int64(75000), stored.TotalDebit)
	require.Equal(t, []string{"journal.create", "journal.update", "journal.post"}, f.audit.actions())
}

func TestDeleteDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	draft, err := f.svc.Create(ctx, f.input(day(2024, 3, 1), 1000))
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, draft.ID, 7))
	_, err = f.svc.Get(ctx, draft.ID)
	require.ErrorIs(t, err, shared.ErrJournalNotFound)

	next, err := f.svc.Create(ctx, f.input(day(2024, 3, 1), 1000))
	require.NoError(t, err)
	require.Greater(t, next.Number, draft.Number)
}

func TestReverseMirrorsLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := f.input(day(2024, 3, 1), 50000)
	in.SourceModule = "savings.deposit"
	in.SourceSubject = "MEMBER:12"
	original, err := f.svc.CreateAndPost(ctx, in)
	require.NoError(t, err)
	require.Equal(t, "SAVINGS.DEPOSIT", original.SourceModule)

	reversal, err := f.svc.Reverse(ctx, journals.ReverseInput{EntryID: original.ID, ActorID: 9})
	require.NoError(t, err)
	require.Equal(t, journals.JournalStatusPosted, reversal.Status)
	require.Equal(t, original.ID, *reversal.ReversalOf)
	require.Equal(t, original.Date, reversal.Date)
	require.Equal(t, "SAVINGS.DEPOSIT:REVERSAL", reversal.SourceModule)
	require.Equal(t, "MEMBER:12", reversal.SourceSubject)
	require.Len(t, reversal.Lines, 2)
	for i, line := range reversal.Lines {
		require.Equal(t, original.Lines[i].AccountID, line.AccountID)
		require.Equal(t, original.Lines[i].Debit, line.Credit)
		require.Equal(t, original.Lines[i].Credit, line.Debit)
	}

	stored, err := f.svc.Get(ctx, original.ID)
	require.NoError(t, err)
	require.Equal(t, journals.JournalStatusReversed, stored.Status)
	require.Equal(t, reversal.ID, *stored.ReversedBy)
	require.Equal(t, original.Lines[0].Debit, stored.Lines[0].Debit)

	_, err = f.svc.Reverse(ctx, journals.ReverseInput{EntryID: original.ID})
	require.ErrorIs(t, err, shared.ErrEntryNotPosted)

	draft, err := f.svc.Create(ctx, f.input(day(2024, 3, 1), 10))
	require.NoError(t, err)
	_, err = f.svc.Reverse(ctx, journals.ReverseInput{EntryID: draft.ID})
	require.ErrorIs(t, err, shared.ErrEntryNotPosted)
	require.ErrorIs(t, err, shared.ErrState)
}

func TestLockedPeriodGuard(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	posted, err := f.svc.CreateAndPost(ctx, f.input(day(2024, 1, 15), 20000))
	require.NoError(t, err)
	draft, err := f.svc.Create(ctx, f.input(day(2024, 1, 20), 5000))
	require.NoError(t, err)

	_, err = f.periods.Lock(ctx, "2024-01", 1)
	require.NoError(t, err)
	_, err = f.periods.Close(ctx, "2024-02", 1)
	require.NoError(t, err)

	_, err = f.svc.Post(ctx, draft.ID, 7)
	require.ErrorIs(t, err, shared.ErrPeriodLocked)
	_, err = f.svc.CreateAndPost(ctx, f.input(day(2024, 1, 31), 5000))
	require.ErrorIs(t, err, shared.ErrPeriodLocked)

	explicit := day(2024, 1, 31)
	_, err = f.svc.Reverse(ctx, journals.ReverseInput{EntryID: posted.ID, Date: &explicit})
	require.ErrorIs(t, err, shared.ErrPeriodLocked)

	reversal, err := f.svc.Reverse(ctx, journals.ReverseInput{EntryID: posted.ID})
	require.NoError(t, err)
	require.Equal(t, day(2024, 3, 1), reversal.Date)

	// a closed period still accepts postings
	late, err := f.svc.CreateAndPost(ctx, f.input(day(2024, 2, 28), 5000))
	require.NoError(t, err)
	require.Equal(t, journals.JournalStatusPosted, late.Status)
}

func TestSourceEventUnique(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	in := f.input(day(2024, 3, 1), 1000)
	in.SourceEventID = "TRX-1"
	first, err := f.svc.CreateAndPost(ctx, in)
	require.NoError(t, err)

	_, err = f.svc.CreateAndPost(ctx, in)
	require.ErrorIs(t, err, shared.ErrSourceConflict)

	found, err := f.svc.FindBySourceEvent(ctx, "TRX-1")
	require.NoError(t, err)
	require.Equal(t, first.ID, found.ID)

	_, err = f.svc.FindBySourceEvent(ctx, "TRX-2")
	require.ErrorIs(t, err, shared.ErrJournalNotFound)
}

func TestListFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateAndPost(ctx, f.input(day(2024, 2, 1), 1000))
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, f.input(day(2024, 3, 1), 2000))
	require.NoError(t, err)

	drafts, err := f.svc.List(ctx, journals.ListFilter{Status: journals.JournalStatusDraft})
	require.NoError(t, err)
	require.Len(t, drafts, 1)

	march, err := f.svc.List(ctx, journals.ListFilter{From: day(2024, 3, 1), To: day(2024, 3, 31)})
	require.NoError(t, err)
	require.Len(t, march, 1)
	require.Equal(t, int64(2000), march[0].TotalDebit)

	all, err := f.svc.List(ctx, journals.ListFilter{AccountID: f.cash.ID})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.True(t, all[0].Date.After(all[1].Date))
}
