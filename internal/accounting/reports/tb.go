package reports

import (
	"sort"
	"strings"

	"github.com/odyssey-erp/koperasi/internal/accounting/accounts"
	"github.com/odyssey-erp/koperasi/internal/accounting/ledger"
)

// groupKey returns the leading code segment used to group trial balance
// rows, e.g. "1-1000" groups under "1".
func groupKey(code string) string {
	if idx := strings.IndexAny(code, "-."); idx > 0 {
		return code[:idx]
	}
	if len(code) >= 1 {
		return code[:1]
	}
	return code
}

// natural re-signs a normal-side balance to the side implied by the account
// type, so statements stay correct for accounts whose stored side was edited.
func natural(acc accounts.Account, v int64) int64 {
	if acc.NormalSide != accounts.NormalSideFor(acc.Type) {
		return -v
	}
	return v
}

// TrialBalanceAccount represents a row inside a trial balance group.
type TrialBalanceAccount struct {
	AccountID     int64  `json:"account_id"`
	Code          string `json:"code"`
	Name          string `json:"name"`
	Type          string `json:"type"`
	Opening       int64  `json:"opening"`
	Debit         int64  `json:"debit"`
	Credit        int64  `json:"credit"`
	Closing       int64  `json:"closing"`
	ClosingDebit  int64  `json:"closing_debit"`
	ClosingCredit int64  `json:"closing_credit"`
}

// TrialBalanceGroup aggregates accounts for presentation.
type TrialBalanceGroup struct {
	Key           string                `json:"key"`
	Accounts      []TrialBalanceAccount `json:"accounts"`
	Debit         int64                 `json:"debit"`
	Credit        int64                 `json:"credit"`
	ClosingDebit  int64                 `json:"closing_debit"`
	ClosingCredit int64                 `json:"closing_credit"`
}

// TrialBalance is the final structure rendered by the API.
type TrialBalance struct {
	Period             string              `json:"period"`
	Groups             []TrialBalanceGroup `json:"groups"`
	TotalDebit         int64               `json:"total_debit"`
	TotalCredit        int64               `json:"total_credit"`
	TotalClosingDebit  int64               `json:"total_closing_debit"`
	TotalClosingCredit int64               `json:"total_closing_credit"`
	IsBalanced         bool                `json:"is_balanced"`
}

// BuildTrialBalance converts account balances into grouped trial balance data.
// Closing balances are split into debit and credit columns by their sign.
func BuildTrialBalance(period string, balances []ledger.AccountBalance) TrialBalance {
	groups := make(map[string]*TrialBalanceGroup)
	keys := make([]string, 0)
	for _, bal := range balances {
		acc := bal.Account
		key := groupKey(acc.Code)
		grp, ok := groups[key]
		if !ok {
			grp = &TrialBalanceGroup{Key: key}
			groups[key] = grp
			keys = append(keys, key)
		}
		row := TrialBalanceAccount{
			AccountID: acc.ID,
			Code:      acc.Code,
			Name:      acc.Name,
			Type:      string(acc.Type),
			Opening:   bal.Opening,
			Debit:     bal.Debit,
			Credit:    bal.Credit,
			Closing:   bal.Closing,
		}
		raw := bal.Closing
		if acc.NormalSide == accounts.NormalCredit {
			raw = -raw
		}
		if raw >= 0 {
			row.ClosingDebit = raw
		} else {
			row.ClosingCredit = -raw
		}
		grp.Accounts = append(grp.Accounts, row)
		grp.Debit += row.Debit
		grp.Credit += row.Credit
		grp.ClosingDebit += row.ClosingDebit
		grp.ClosingCredit += row.ClosingCredit
	}

	sort.Strings(keys)
	result := TrialBalance{Period: period, Groups: []TrialBalanceGroup{}}
	for _, key := range keys {
		grp := groups[key]
		sort.Slice(grp.Accounts, func(i, j int) bool {
			return grp.Accounts[i].Code < grp.Accounts[j].Code
		})
		result.Groups = append(result.Groups, *grp)
		result.TotalDebit += grp.Debit
		result.TotalCredit += grp.Credit
		result.TotalClosingDebit += grp.ClosingDebit
		result.TotalClosingCredit += grp.ClosingCredit
	}
	result.IsBalanced = result.TotalDebit == result.TotalCredit && result.TotalClosingDebit == result.TotalClosingCredit
	return result
}
