package reports

import (
	"testing"
	"time"

	"github.com/odyssey-erp/koperasi/internal/accounting/accounts"
	"github.com/odyssey-erp/koperasi/internal/accounting/journals"
	"github.com/odyssey-erp/koperasi/internal/accounting/ledger"
	"github.com/odyssey-erp/koperasi/internal/accounting/shared"
	"github.com/stretchr/testify/require"

	_ "github.com/odyssey-erp/koperasi/testing"
)

func acct(id int64, code, name string, typ accounts.AccountType, category string) accounts.Account {
	return accounts.Account{ID: id, Code: code, Name: name, Type: typ, Category: category, NormalSide: accounts.NormalSideFor(typ), IsActive: true}
}

var (
	cash       = acct(1, "1-1000", "Kas", accounts.AccountTypeAsset, accounts.CategoryCash)
	receivable = acct(2, "1-2000", "Piutang Pinjaman Anggota", accounts.AccountTypeAsset, accounts.CategoryReceivable)
	equipment  = acct(3, "1-5000", "Peralatan", accounts.AccountTypeAsset, accounts.CategoryFixedAsset)
	bankLoan   = acct(4, "2-3000", "Utang Bank", accounts.AccountTypeLiability, accounts.CategoryBorrowing)
	capital    = acct(5, "3-1000", "Simpanan Pokok", accounts.AccountTypeEquity, "")
	interest   = acct(6, "4-1000", "Pendapatan Jasa Pinjaman", accounts.AccountTypeRevenue, "")
	salaries   = acct(7, "5-1000", "Beban Gaji", accounts.AccountTypeExpense, "")
)

func bal(acc accounts.Account, opening, debit, credit int64) ledger.AccountBalance {
	return ledger.AccountBalance{
		Account: acc,
		Opening: opening,
		Debit:   debit,
		Credit:  credit,
		Closing: opening + acc.SignedBalance(debit, credit),
	}
}

// sampleBalances describes March after a February where members paid in
// 1.000.000 capital and 600.000 was lent out. March holds an installment of
// 200.000 principal plus 30.000 interest, 50.000 salaries, 100.000 equipment
// bought for cash and a 50.000 bank loan.
func sampleBalances() []ledger.AccountBalance {
	return []ledger.AccountBalance{
		bal(cash, 400000, 280000, 150000),
		bal(receivable, 600000, 0, 200000),
		bal(equipment, 0, 100000, 0),
		bal(bankLoan, 0, 0, 50000),
		bal(capital, 1000000, 0, 0),
		bal(interest, 0, 0, 30000),
		bal(salaries, 0, 50000, 0),
	}
}

func TestBuildTrialBalance(t *testing.T) {
	tb := BuildTrialBalance("2024-03", sampleBalances())
	if len(tb.Groups) != 5 {
		t.Fatalf("expected 5 groups, got %d", len(tb.Groups))
	}
	if tb.TotalDebit != tb.TotalCredit {
		t.Fatalf("movements not balanced: %d vs %d", tb.TotalDebit, tb.TotalCredit)
	}
	require.Equal(t, int64(430000), tb.TotalDebit)
	require.Equal(t, int64(530000+400000+100000+50000), tb.TotalClosingDebit)
	require.Equal(t, tb.TotalClosingDebit, tb.TotalClosingCredit)
	require.True(t, tb.IsBalanced)
	require.Equal(t, "1-1000", tb.Groups[0].Accounts[0].Code)
	require.Equal(t, int64(530000), tb.Groups[0].Accounts[0].ClosingDebit)
	require.Equal(t, int64(1000000), tb.Groups[2].Accounts[0].ClosingCredit)
}

func TestBuildIncomeStatement(t *testing.T) {
	is := BuildIncomeStatement("2024-03", sampleBalances())
	require.Equal(t, int64(30000), is.Revenue.Total)
	require.Equal(t, int64(50000), is.Expense.Total)
	require.Equal(t, int64(-20000), is.NetIncome)
}

func TestBuildBalanceSheet(t *testing.T) {
	bs, err := BuildBalanceSheet("2024-03", sampleBalances())
	require.NoError(t, err)
	require.Equal(t, int64(530000+400000+100000), bs.TotalAssets)
	require.Equal(t, int64(50000), bs.Liabilities.Total)
	require.Equal(t, int64(-20000), bs.CurrentEarnings)
	last := bs.Equity.Lines[len(bs.Equity.Lines)-1]
	require.Equal(t, CurrentEarningsLabel, last.Name)
	require.Equal(t, int64(980000), bs.Equity.Total)
	require.Equal(t, bs.TotalAssets, bs.TotalLiabilitiesAndEquity)
	require.True(t, bs.IsBalanced)
}

func TestBuildBalanceSheetFlagsImbalance(t *testing.T) {
	balances := sampleBalances()
	balances[0].Closing += 1 // corrupt cash
	bs, err := BuildBalanceSheet("2024-03", balances)
	require.ErrorIs(t, err, shared.ErrConsistency)
	require.False(t, bs.IsBalanced)
	require.Equal(t, int64(1), bs.Difference)

	var ce *shared.ConsistencyError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, "balance_sheet", ce.Report)
}

func TestBuildCashFlow(t *testing.T) {
	march := func(d int) time.Time { return time.Date(2024, 3, d, 0, 0, 0, 0, time.UTC) }
	posted := journals.JournalStatusPosted
	movements := []journals.PostedLine{
		// installment received: cash 230.000 = principal 200.000 + interest 30.000
		{EntryID: 1, Number: 1, Date: march(2), Status: posted, LineNo: 1, AccountID: cash.ID, Debit: 200000 + 30000},
		{EntryID: 1, Number: 1, Date: march(2), Status: posted, LineNo: 2, AccountID: interest.ID, Credit: 30000},
		{EntryID: 1, Number: 1, Date: march(2), Status: posted, LineNo: 3, AccountID: receivable.ID, Credit: 200000},
		// salaries paid
		{EntryID: 2, Number: 2, Date: march(5), Status: posted, LineNo: 1, AccountID: salaries.ID, Debit: 50000},
		{EntryID: 2, Number: 2, Date: march(5), Status: posted, LineNo: 2, AccountID: cash.ID, Credit: 50000},
		// equipment bought with cash and a bank loan
		{EntryID: 3, Number: 3, Date: march(9), Status: posted, LineNo: 1, AccountID: equipment.ID, Debit: 100000},
		{EntryID: 3, Number: 3, Date: march(9), Status: posted, LineNo: 2, AccountID: cash.ID, Credit: 100000},
		{EntryID: 4, Number: 4, Date: march(9), Status: posted, LineNo: 1, AccountID: cash.ID, Debit: 50000},
		{EntryID: 4, Number: 4, Date: march(9), Status: posted, LineNo: 2, AccountID: bankLoan.ID, Credit: 50000},
		// drafts never count
		{EntryID: 5, Number: 5, Date: march(9), Status: journals.JournalStatusDraft, LineNo: 1, AccountID: cash.ID, Debit: 1},
		{EntryID: 5, Number: 5, Date: march(9), Status: journals.JournalStatusDraft, LineNo: 2, AccountID: bankLoan.ID, Credit: 1},
	}
	cf, err := BuildCashFlow("2024-03", sampleBalances(), movements)
	require.NoError(t, err)
	require.Equal(t, int64(400000), cf.OpeningCash)
	require.Equal(t, int64(30000+200000-50000), cf.Operating.Total)
	require.Equal(t, int64(-100000), cf.Investing.Total)
	require.Equal(t, int64(50000), cf.Financing.Total)
	require.Equal(t, int64(130000), cf.NetChange)
	require.Equal(t, int64(530000), cf.ClosingCash)
	require.True(t, cf.IsBalanced)

	skewed := sampleBalances()
	skewed[0] = bal(cash, 400000, 230000, 150000)
	cf, err = BuildCashFlow("2024-03", skewed, movements)
	require.ErrorIs(t, err, shared.ErrConsistency)
	require.False(t, cf.IsBalanced)
	require.Equal(t, int64(480000), cf.LedgerClosingCash)
}

func TestBuildEquityChanges(t *testing.T) {
	balances := sampleBalances()
	balances[4] = bal(capital, 1000000, 10000, 250000)
	st, err := BuildEquityChanges("2024-03", balances)
	require.NoError(t, err)
	require.Len(t, st.Rows, 2)
	require.Equal(t, int64(250000), st.Rows[0].Additions)
	require.Equal(t, int64(10000), st.Rows[0].Reductions)
	require.Equal(t, int64(1240000), st.Rows[0].Closing)
	require.Equal(t, int64(-20000), st.NetIncome)
	require.Equal(t, CurrentEarningsLabel, st.Rows[1].Name)
	require.Equal(t, int64(20000), st.Rows[1].Reductions)
	require.Equal(t, st.TotalOpening+st.TotalAdditions-st.TotalReductions, st.TotalClosing)
	require.True(t, st.IsBalanced)
}

func TestActivityFor(t *testing.T) {
	require.Equal(t, ActivityInvesting, ActivityFor(equipment))
	require.Equal(t, ActivityFinancing, ActivityFor(bankLoan))
	require.Equal(t, ActivityFinancing, ActivityFor(capital))
	require.Equal(t, ActivityFinancing, ActivityFor(acct(9, "2-1000", "Simpanan Sukarela", accounts.AccountTypeLiability, accounts.CategoryMemberSavings)))
	require.Equal(t, ActivityOperating, ActivityFor(receivable))
	require.Equal(t, ActivityOperating, ActivityFor(interest))
}
