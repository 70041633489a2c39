package accounts_test

import (
	"context"
	"testing"
	"time"

	"github.com/odyssey-erp/koperasi/internal/accounting/accounts"
	"github.com/odyssey-erp/koperasi/internal/accounting/journals"
	"github.com/odyssey-erp/koperasi/internal/accounting/memstore"
	"github.com/odyssey-erp/koperasi/internal/accounting/shared"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) (*accounts.Service, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	return accounts.NewService(store.Accounts(), nil), store
}

func TestCreateDerivesNormalSide(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	cases := map[accounts.AccountType]accounts.NormalSide{
		accounts.AccountTypeAsset:     accounts.NormalDebit,
		accounts.AccountTypeExpense:   accounts.NormalDebit,
		accounts.AccountTypeLiability: accounts.NormalCredit,
		accounts.AccountTypeEquity:    accounts.NormalCredit,
		accounts.AccountTypeRevenue:   accounts.NormalCredit,
	}
	i := 0
	for typ, side := range cases {
		i++
		acc, err := svc.Create(ctx, accounts.CreateInput{Code: string(rune('A'+i)) + "-100", Name: string(typ), Type: typ})
		require.NoError(t, err)
		require.Equal(t, side, acc.NormalSide)
		require.True(t, acc.IsActive)
	}
}

func TestCreateRejectsDuplicateCode(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	_, err := svc.Create(ctx, accounts.CreateInput{Code: "1-1000", Name: "Kas", Type: accounts.AccountTypeAsset})
	require.NoError(t, err)

	_, err = svc.Create(ctx, accounts.CreateInput{Code: "1-1000", Name: "Kas Kecil", Type: accounts.AccountTypeAsset})
	require.ErrorIs(t, err, shared.ErrDuplicateCode)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateRejectsBadInput(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Create(context.Background(), accounts.CreateInput{Code: "1-1000", Name: "Kas", Type: "CASHFLOW"})
	require.ErrorIs(t, err, shared.ErrValidation)

	var fieldErr *shared.FieldError
	require.ErrorAs(t, err, &fieldErr)
	require.Equal(t, "Type", fieldErr.Field)
}

func TestCreateRequiresGroupParent(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	leaf, err := svc.Create(ctx, accounts.CreateInput{Code: "1-1000", Name: "Kas", Type: accounts.AccountTypeAsset})
	require.NoError(t, err)

	_, err = svc.Create(ctx, accounts.CreateInput{Code: "1-1001", Name: "Kas Kecil", Type: accounts.AccountTypeAsset, ParentID: &leaf.ID})
	require.ErrorIs(t, err, shared.ErrInvalidHierarchy)

	missing := int64(999)
	_, err = svc.Create(ctx, accounts.CreateInput{Code: "1-1002", Name: "Bank", Type: accounts.AccountTypeAsset, ParentID: &missing})
	require.ErrorIs(t, err, shared.ErrInvalidHierarchy)
}

func TestReferencedAccountIsFrozen(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	svc := accounts.NewService(store.Accounts(), nil)
	cash, err := svc.Create(ctx, accounts.CreateInput{Code: "1-1000", Name: "Kas", Type: accounts.AccountTypeAsset, Category: "cash"})
	require.NoError(t, err)
	require.Equal(t, "CASH", cash.Category)
	equity, err := svc.Create(ctx, accounts.CreateInput{Code: "3-1000", Name: "Simpanan Pokok", Type: accounts.AccountTypeEquity})
	require.NoError(t, err)
	unused, err := svc.Create(ctx, accounts.CreateInput{Code: "6-9000", Name: "Lain-lain", Type: accounts.AccountTypeExpense})
	require.NoError(t, err)

	jsvc := journals.NewService(store.Journals(), nil, nil)
	_, err = jsvc.Create(ctx, journals.EntryInput{
		Date:        time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		Description: "Setoran simpanan pokok",
		Lines: []journals.LineInput{
			{AccountID: cash.ID, Debit: 100000},
			{AccountID: equity.ID, Credit: 100000},
		},
	})
	require.NoError(t, err)

	liability := accounts.AccountTypeLiability
	_, err = svc.Update(ctx, cash.ID, accounts.Patch{Type: &liability})
	require.ErrorIs(t, err, shared.ErrImmutableField)

	group := true
	_, err = svc.Update(ctx, cash.ID, accounts.Patch{IsGroup: &group})
	require.ErrorIs(t, err, shared.ErrImmutableField)

	name := "Kas Utama"
	renamed, err := svc.Update(ctx, cash.ID, accounts.Patch{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "Kas Utama", renamed.Name)

	// a draft line is still a reference
	require.ErrorIs(t, svc.Delete(ctx, cash.ID), shared.ErrAccountInUse)
	require.ErrorIs(t, svc.Delete(ctx, cash.ID), shared.ErrReferential)

	deactivated, err := svc.Deactivate(ctx, cash.ID)
	require.NoError(t, err)
	require.False(t, deactivated.IsActive)
	again, err := svc.Deactivate(ctx, cash.ID)
	require.NoError(t, err)
	require.False(t, again.IsActive)

	revenue := accounts.AccountTypeRevenue
	retyped, err := svc.Update(ctx, unused.ID, accounts.Patch{Type: &revenue})
	require.NoError(t, err)
	require.Equal(t, accounts.NormalCredit, retyped.NormalSide)

	require.NoError(t, svc.Delete(ctx, unused.ID))
	_, err = svc.Get(ctx, unused.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGroupWithChildrenKeepsFlag(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	parent, err := svc.Create(ctx, accounts.CreateInput{Code: "1-0000", Name: "Aset Lancar", Type: accounts.AccountTypeAsset, IsGroup: true})
	require.NoError(t, err)
	child, err := svc.Create(ctx, accounts.CreateInput{Code: "1-1000", Name: "Kas", Type: accounts.AccountTypeAsset, ParentID: &parent.ID})
	require.NoError(t, err)

	leaf := false
	_, err = svc.Update(ctx, parent.ID, accounts.Patch{IsGroup: &leaf})
	require.ErrorIs(t, err, shared.ErrInvalidHierarchy)
	var fieldErr *shared.FieldError
	require.ErrorAs(t, err, &fieldErr)
	require.Equal(t, "is_group", fieldErr.Field)

	got, err := svc.Get(ctx, parent.ID)
	require.NoError(t, err)
	require.True(t, got.IsGroup)

	_, err = svc.Update(ctx, child.ID, accounts.Patch{ClearParent: true})
	require.NoError(t, err)
	ungrouped, err := svc.Update(ctx, parent.ID, accounts.Patch{IsGroup: &leaf})
	require.NoError(t, err)
	require.False(t, ungrouped.IsGroup)
}

// heldRepo runs a posting from inside Modify's callback to show the usage
// check and the write are not interleaved with other store writes.
type heldRepo struct {
	accounts.Repository
	during func()
}

func (r heldRepo) Modify(ctx context.Context, id int64, apply func(accounts.Account, accounts.Usage) (accounts.Account, error)) (accounts.Account, error) {
	return r.Repository.Modify(ctx, id, func(current accounts.Account, usage accounts.Usage) (accounts.Account, error) {
		r.during()
		return apply(current, usage)
	})
}

func TestUpdateIsAtomicWithPostings(t *testing.T) {
	store := memstore.New()
	ctx := context.Background()
	plain := accounts.NewService(store.Accounts(), nil)
	fee, err := plain.Create(ctx, accounts.CreateInput{Code: "6-1000", Name: "Beban Administrasi", Type: accounts.AccountTypeExpense})
	require.NoError(t, err)
	cash, err := plain.Create(ctx, accounts.CreateInput{Code: "1-1000", Name: "Kas", Type: accounts.AccountTypeAsset})
	require.NoError(t, err)

	jsvc := journals.NewService(store.Journals(), nil, nil)
	posted := make(chan error, 1)
	var blocked bool
	svc := accounts.NewService(heldRepo{Repository: store.Accounts(), during: func() {
		go func() {
			_, err := jsvc.CreateAndPost(ctx, journals.EntryInput{
				Date:        time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
				Description: "Biaya administrasi bank",
				Lines: []journals.LineInput{
					{AccountID: fee.ID, Debit: 2500},
					{AccountID: cash.ID, Credit: 2500},
				},
			})
			posted <- err
		}()
		select {
		case err := <-posted:
			posted <- err
		case <-time.After(40 * time.Millisecond):
			blocked = true
		}
	}}, nil)

	revenue := accounts.AccountTypeRevenue
	retyped, err := svc.Update(ctx, fee.ID, accounts.Patch{Type: &revenue})
	require.NoError(t, err)
	require.Equal(t, accounts.AccountTypeRevenue, retyped.Type)
	require.True(t, blocked, "posting ran while the account update held its check")
	require.NoError(t, <-posted)

	expense := accounts.AccountTypeExpense
	_, err = plain.Update(ctx, fee.ID, accounts.Patch{Type: &expense})
	require.ErrorIs(t, err, shared.ErrImmutableField)
}

func TestListFilterAndOrder(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	for _, in := range []accounts.CreateInput{
		{Code: "4-1000", Name: "Pendapatan Jasa Pinjaman", Type: accounts.AccountTypeRevenue},
		{Code: "1-1000", Name: "Kas", Type: accounts.AccountTypeAsset, Category: "CASH"},
		{Code: "1-2000", Name: "Piutang Pinjaman Anggota", Type: accounts.AccountTypeAsset, Category: "RECEIVABLE"},
	} {
		_, err := svc.Create(ctx, in)
		require.NoError(t, err)
	}

	all, err := svc.List(ctx, accounts.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "1-1000", all[0].Code)
	require.Equal(t, "4-1000", all[2].Code)

	assets, err := svc.List(ctx, accounts.Filter{Type: accounts.AccountTypeAsset})
	require.NoError(t, err)
	require.Len(t, assets, 2)

	found, err := svc.List(ctx, accounts.Filter{Search: "pinjaman"})
	require.NoError(t, err)
	require.Len(t, found, 2)

	found, err = svc.List(ctx, accounts.Filter{Search: "receivable"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "1-2000", found[0].Code)
}

func TestTree(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	root, err := svc.Create(ctx, accounts.CreateInput{Code: "1", Name: "Aset", Type: accounts.AccountTypeAsset, IsGroup: true})
	require.NoError(t, err)
	_, err = svc.Create(ctx, accounts.CreateInput{Code: "1-1000", Name: "Kas", Type: accounts.AccountTypeAsset, ParentID: &root.ID})
	require.NoError(t, err)
	_, err = svc.Create(ctx, accounts.CreateInput{Code: "2", Name: "Kewajiban", Type: accounts.AccountTypeLiability, IsGroup: true})
	require.NoError(t, err)

	tree, err := svc.Tree(ctx)
	require.NoError(t, err)
	require.Len(t, tree, 2)
	require.Equal(t, "1", tree[0].Code)
	require.Len(t, tree[0].Children, 1)
	require.Equal(t, "1-1000", tree[0].Children[0].Code)
}
