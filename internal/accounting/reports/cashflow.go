package reports

import (
	"github.com/odyssey-erp/koperasi/internal/accounting/accounts"
	"github.com/odyssey-erp/koperasi/internal/accounting/journals"
	"github.com/odyssey-erp/koperasi/internal/accounting/ledger"
	"github.com/odyssey-erp/koperasi/internal/accounting/shared"
)

// Activity classifies cash flow lines.
type Activity string

const (
	ActivityOperating Activity = "OPERATING"
	ActivityInvesting Activity = "INVESTING"
	ActivityFinancing Activity = "FINANCING"
)

// ActivityFor classifies the counter account of a cash movement.
func ActivityFor(acc accounts.Account) Activity {
	switch acc.Category {
	case accounts.CategoryFixedAsset, accounts.CategoryInvestment:
		return ActivityInvesting
	case accounts.CategoryBorrowing, accounts.CategoryMemberSavings:
		return ActivityFinancing
	}
	if acc.Type == accounts.AccountTypeEquity {
		return ActivityFinancing
	}
	return ActivityOperating
}

// IsCash reports whether the account holds cash or cash equivalents.
func IsCash(acc accounts.Account) bool {
	return acc.Category == accounts.CategoryCash && !acc.IsGroup
}

// CashFlowStatement follows the direct method over posted entries.
type CashFlowStatement struct {
	Period            string  `json:"period"`
	OpeningCash       int64   `json:"opening_cash"`
	Operating         Section `json:"operating"`
	Investing         Section `json:"investing"`
	Financing         Section `json:"financing"`
	NetChange         int64   `json:"net_change"`
	ClosingCash       int64   `json:"closing_cash"`
	LedgerClosingCash int64   `json:"ledger_closing_cash"`
	IsBalanced        bool    `json:"is_balanced"`
}

// BuildCashFlow attributes every entry touching a cash account to the
// activities of its non-cash lines. Each such line contributes credit minus
// debit, so a balanced entry's contributions equal its net cash movement.
// Transfers between cash accounts contribute nothing.
func BuildCashFlow(period string, balances []ledger.AccountBalance, movements []journals.PostedLine) (CashFlowStatement, error) {
	cf := CashFlowStatement{
		Period:    period,
		Operating: newSection("Aktivitas Operasi"),
		Investing: newSection("Aktivitas Investasi"),
		Financing: newSection("Aktivitas Pendanaan"),
	}
	byID := make(map[int64]accounts.Account, len(balances))
	for _, bal := range balances {
		byID[bal.Account.ID] = bal.Account
		if IsCash(bal.Account) {
			cf.OpeningCash += natural(bal.Account, bal.Opening)
			cf.LedgerClosingCash += natural(bal.Account, bal.Closing)
		}
	}

	byEntry := make(map[int64][]journals.PostedLine)
	var order []int64
	for _, l := range movements {
		if !l.Status.Counted() {
			continue
		}
		if _, seen := byEntry[l.EntryID]; !seen {
			order = append(order, l.EntryID)
		}
		byEntry[l.EntryID] = append(byEntry[l.EntryID], l)
	}

	contrib := map[Activity]map[int64]int64{
		ActivityOperating: {},
		ActivityInvesting: {},
		ActivityFinancing: {},
	}
	for _, id := range order {
		lines := byEntry[id]
		touchesCash := false
		for _, l := range lines {
			if IsCash(byID[l.AccountID]) {
				touchesCash = true
				break
			}
		}
		if !touchesCash {
			continue
		}
		for _, l := range lines {
			acc := byID[l.AccountID]
			if IsCash(acc) {
				continue
			}
			contrib[ActivityFor(acc)][l.AccountID] += l.Credit - l.Debit
		}
	}

	fill := func(section *Section, activity Activity) {
		for accountID, amount := range contrib[activity] {
			acc := byID[accountID]
			section.add(StatementLine{AccountID: accountID, Code: acc.Code, Name: acc.Name, Amount: amount})
		}
		section.sortByCode()
	}
	fill(&cf.Operating, ActivityOperating)
	fill(&cf.Investing, ActivityInvesting)
	fill(&cf.Financing, ActivityFinancing)

	cf.NetChange = cf.Operating.Total + cf.Investing.Total + cf.Financing.Total
	cf.ClosingCash = cf.OpeningCash + cf.NetChange
	cf.IsBalanced = cf.ClosingCash == cf.LedgerClosingCash
	if !cf.IsBalanced {
		return cf, &shared.ConsistencyError{
			Report:   "cash_flow",
			Check:    "closing cash vs ledger",
			Expected: cf.LedgerClosingCash,
			Actual:   cf.ClosingCash,
		}
	}
	return cf, nil
}
