package reports

import (
	"github.com/odyssey-erp/koperasi/internal/accounting/accounts"
	"github.com/odyssey-erp/koperasi/internal/accounting/ledger"
)

// IncomeStatement contains period revenue, expense and net income.
type IncomeStatement struct {
	Period    string  `json:"period"`
	Revenue   Section `json:"revenue"`
	Expense   Section `json:"expense"`
	NetIncome int64   `json:"net_income"`
}

// BuildIncomeStatement aggregates period movements only. Revenue is
// credit minus debit, expense is debit minus credit.
func BuildIncomeStatement(period string, balances []ledger.AccountBalance) IncomeStatement {
	is := IncomeStatement{
		Period:  period,
		Revenue: newSection("Pendapatan"),
		Expense: newSection("Beban"),
	}
	for _, bal := range balances {
		acc := bal.Account
		switch acc.Type {
		case accounts.AccountTypeRevenue:
			is.Revenue.add(StatementLine{AccountID: acc.ID, Code: acc.Code, Name: acc.Name, Amount: bal.Credit - bal.Debit})
		case accounts.AccountTypeExpense:
			is.Expense.add(StatementLine{AccountID: acc.ID, Code: acc.Code, Name: acc.Name, Amount: bal.Debit - bal.Credit})
		}
	}
	is.Revenue.sortByCode()
	is.Expense.sortByCode()
	is.NetIncome = is.Revenue.Total - is.Expense.Total
	return is
}
