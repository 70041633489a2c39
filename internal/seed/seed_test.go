package seed

import (
	"context"
	"testing"

	"github.com/odyssey-erp/koperasi/internal/accounting/accounts"
	"github.com/odyssey-erp/koperasi/internal/accounting/memstore"
	"github.com/odyssey-erp/koperasi/internal/accounting/shared"
	"github.com/odyssey-erp/koperasi/internal/integration"
	"github.com/stretchr/testify/require"
)

func TestApplyBundledChart(t *testing.T) {
	f, err := Load("../../configs/coa.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, f.Accounts)

	ctx := context.Background()
	store := memstore.New()
	registry := accounts.NewService(store.Accounts(), nil)

	res, err := Apply(ctx, f, registry, store.Mappings(), nil)
	require.NoError(t, err)
	require.Equal(t, len(f.Accounts), res.AccountsCreated)
	require.Equal(t, len(f.Mappings), res.Mappings)

	cash, err := registry.GetByCode(ctx, "1-1000")
	require.NoError(t, err)
	require.Equal(t, "CASH", cash.Category)
	require.Equal(t, accounts.NormalDebit, cash.NormalSide)
	require.NotNil(t, cash.ParentID)

	m, err := store.Mappings().Get(ctx, "LOAN", "interest_income")
	require.NoError(t, err)
	income, err := registry.GetByCode(ctx, "4-1000")
	require.NoError(t, err)
	require.Equal(t, income.ID, m.AccountID)

	again, err := Apply(ctx, f, registry, store.Mappings(), nil)
	require.NoError(t, err)
	require.Zero(t, again.AccountsCreated)
	require.Equal(t, len(f.Accounts), again.AccountsExisting)

	dir := integration.NewStaticDirectory()
	n, err := FillDirectory(f, dir)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	loan, err := dir.GetLoan(ctx, 2)
	require.NoError(t, err)
	require.Equal(t, "0.02", loan.MonthlyRate.String())
	name, err := dir.MemberName(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, "Budi Santoso", name)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("accounts:\n  - {code: \"1\", nama: Aset}\n"))
	require.Error(t, err)
}

func TestApplyReportsBadRows(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	registry := accounts.NewService(store.Accounts(), nil)

	_, err := Apply(ctx, File{Accounts: []AccountSpec{{Code: "1-1000", Name: "Kas", Type: "ASSET", Parent: "9"}}}, registry, store.Mappings(), nil)
	require.ErrorIs(t, err, shared.ErrAccountNotFound)

	_, err = Apply(ctx, File{Mappings: []MappingSpec{{Module: "LOAN", Key: "cash", Account: "1-1000"}}}, registry, store.Mappings(), nil)
	require.ErrorIs(t, err, shared.ErrAccountNotFound)

	_, err = Apply(ctx, File{Accounts: []AccountSpec{{Code: "1-1000", Name: "Kas", Type: "ASET"}}}, registry, store.Mappings(), nil)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = FillDirectory(File{Loans: []LoanSpec{{ID: 1, MonthlyRate: "dua persen"}}}, integration.NewStaticDirectory())
	require.Error(t, err)
}
