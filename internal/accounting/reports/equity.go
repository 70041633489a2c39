package reports

import (
	"sort"

	"github.com/odyssey-erp/koperasi/internal/accounting/accounts"
	"github.com/odyssey-erp/koperasi/internal/accounting/ledger"
	"github.com/odyssey-erp/koperasi/internal/accounting/shared"
)

// EquityMovement is one row of the statement of changes in equity.
type EquityMovement struct {
	AccountID  int64  `json:"account_id,omitempty"`
	Code       string `json:"code,omitempty"`
	Name       string `json:"name"`
	Opening    int64  `json:"opening"`
	Additions  int64  `json:"additions"`
	Reductions int64  `json:"reductions"`
	Closing    int64  `json:"closing"`
}

// EquityChangeStatement lists equity movements including current earnings.
type EquityChangeStatement struct {
	Period          string           `json:"period"`
	Rows            []EquityMovement `json:"rows"`
	NetIncome       int64            `json:"net_income"`
	TotalOpening    int64            `json:"total_opening"`
	TotalAdditions  int64            `json:"total_additions"`
	TotalReductions int64            `json:"total_reductions"`
	TotalClosing    int64            `json:"total_closing"`
	IsBalanced      bool             `json:"is_balanced"`
}

// BuildEquityChanges reports, per equity account, credits as additions and
// debits as reductions. Current earnings appear as a final row whose
// movement is the period net income.
func BuildEquityChanges(period string, balances []ledger.AccountBalance) (EquityChangeStatement, error) {
	st := EquityChangeStatement{Period: period, Rows: []EquityMovement{}}
	var openingEarnings, closingEarnings int64
	for _, bal := range balances {
		acc := bal.Account
		switch acc.Type {
		case accounts.AccountTypeEquity:
			st.Rows = append(st.Rows, EquityMovement{
				AccountID:  acc.ID,
				Code:       acc.Code,
				Name:       acc.Name,
				Opening:    natural(acc, bal.Opening),
				Additions:  bal.Credit,
				Reductions: bal.Debit,
				Closing:    natural(acc, bal.Closing),
			})
		case accounts.AccountTypeRevenue:
			openingEarnings += natural(acc, bal.Opening)
			closingEarnings += natural(acc, bal.Closing)
		case accounts.AccountTypeExpense:
			openingEarnings -= natural(acc, bal.Opening)
			closingEarnings -= natural(acc, bal.Closing)
		}
	}
	sort.Slice(st.Rows, func(i, j int) bool { return st.Rows[i].Code < st.Rows[j].Code })

	st.NetIncome = closingEarnings - openingEarnings
	earnings := EquityMovement{Name: CurrentEarningsLabel, Opening: openingEarnings, Closing: closingEarnings}
	if st.NetIncome >= 0 {
		earnings.Additions = st.NetIncome
	} else {
		earnings.Reductions = -st.NetIncome
	}
	st.Rows = append(st.Rows, earnings)

	st.IsBalanced = true
	for _, row := range st.Rows {
		st.TotalOpening += row.Opening
		st.TotalAdditions += row.Additions
		st.TotalReductions += row.Reductions
		st.TotalClosing += row.Closing
		if row.Opening+row.Additions-row.Reductions != row.Closing {
			st.IsBalanced = false
		}
	}
	if !st.IsBalanced {
		return st, &shared.ConsistencyError{
			Report:   "equity_changes",
			Check:    "opening+additions-reductions vs closing",
			Expected: st.TotalClosing,
			Actual:   st.TotalOpening + st.TotalAdditions - st.TotalReductions,
		}
	}
	return st, nil
}
