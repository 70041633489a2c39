package reports

import (
	"sort"

	"github.com/odyssey-erp/koperasi/internal/accounting/accounts"
	"github.com/odyssey-erp/koperasi/internal/accounting/ledger"
	"github.com/odyssey-erp/koperasi/internal/accounting/shared"
)

// CurrentEarningsLabel names the synthetic equity row carrying cumulative
// revenue minus expense, so the balance sheet balances without closing entries.
const CurrentEarningsLabel = "Sisa Hasil Usaha Berjalan"

// StatementLine is one account row of a statement section.
type StatementLine struct {
	AccountID int64  `json:"account_id,omitempty"`
	Code      string `json:"code,omitempty"`
	Name      string `json:"name"`
	Amount    int64  `json:"amount"`
}

// Section contains the rows and total for a classification.
type Section struct {
	Label string          `json:"label"`
	Lines []StatementLine `json:"lines"`
	Total int64           `json:"total"`
}

func (s *Section) add(line StatementLine) {
	s.Lines = append(s.Lines, line)
	s.Total += line.Amount
}

func (s *Section) sortByCode() {
	sort.SliceStable(s.Lines, func(i, j int) bool {
		if s.Lines[i].Code == "" || s.Lines[j].Code == "" {
			return s.Lines[j].Code == "" && s.Lines[i].Code != ""
		}
		return s.Lines[i].Code < s.Lines[j].Code
	})
}

func newSection(label string) Section {
	return Section{Label: label, Lines: []StatementLine{}}
}

// BalanceSheet is the structured response for the balance sheet report.
type BalanceSheet struct {
	Period                    string  `json:"period"`
	Assets                    Section `json:"assets"`
	Liabilities               Section `json:"liabilities"`
	Equity                    Section `json:"equity"`
	CurrentEarnings           int64   `json:"current_earnings"`
	TotalAssets               int64   `json:"total_assets"`
	TotalLiabilitiesAndEquity int64   `json:"total_liabilities_and_equity"`
	IsBalanced                bool    `json:"is_balanced"`
	Difference                int64   `json:"difference"`
}

// BuildBalanceSheet aggregates closing balances as of the period end. When
// assets differ from liabilities plus equity the sheet is still returned,
// flagged, together with a ConsistencyError.
func BuildBalanceSheet(period string, balances []ledger.AccountBalance) (BalanceSheet, error) {
	bs := BalanceSheet{
		Period:      period,
		Assets:      newSection("Aset"),
		Liabilities: newSection("Kewajiban"),
		Equity:      newSection("Ekuitas"),
	}
	for _, bal := range balances {
		acc := bal.Account
		amount := natural(acc, bal.Closing)
		row := StatementLine{AccountID: acc.ID, Code: acc.Code, Name: acc.Name, Amount: amount}
		switch acc.Type {
		case accounts.AccountTypeAsset:
			bs.Assets.add(row)
		case accounts.AccountTypeLiability:
			bs.Liabilities.add(row)
		case accounts.AccountTypeEquity:
			bs.Equity.add(row)
		case accounts.AccountTypeRevenue:
			bs.CurrentEarnings += amount
		case accounts.AccountTypeExpense:
			bs.CurrentEarnings -= amount
		}
	}
	bs.Assets.sortByCode()
	bs.Liabilities.sortByCode()
	bs.Equity.sortByCode()
	bs.Equity.add(StatementLine{Name: CurrentEarningsLabel, Amount: bs.CurrentEarnings})

	bs.TotalAssets = bs.Assets.Total
	bs.TotalLiabilitiesAndEquity = bs.Liabilities.Total + bs.Equity.Total
	bs.Difference = bs.TotalAssets - bs.TotalLiabilitiesAndEquity
	bs.IsBalanced = bs.Difference == 0
	if !bs.IsBalanced {
		return bs, &shared.ConsistencyError{
			Report:   "balance_sheet",
			Check:    "assets vs liabilities+equity",
			Expected: bs.TotalAssets,
			Actual:   bs.TotalLiabilitiesAndEquity,
		}
	}
	return bs, nil
}
