// Package ledger derives per-account general ledger views from posted journal
// lines. Nothing here is cached; every view is recomputed from the journal.
package ledger

import (
	"time"

	"github.com/odyssey-erp/koperasi/internal/accounting/accounts"
	"github.com/odyssey-erp/koperasi/internal/accounting/journals"
	"github.com/odyssey-erp/koperasi/internal/accounting/periods"
)

// LedgerLine is one posted movement with the balance after it.
type LedgerLine struct {
	EntryID        int64     `json:"entry_id"`
	Number         string    `json:"number"`
	Date           time.Time `json:"date"`
	Description    string    `json:"description"`
	Reference      string    `json:"reference,omitempty"`
	Note           string    `json:"note,omitempty"`
	Debit          int64     `json:"debit"`
	Credit         int64     `json:"credit"`
	RunningBalance int64     `json:"running_balance"`
}

// View is the general ledger of one account over one period.
type View struct {
	Account        accounts.Account `json:"account"`
	Period         string           `json:"period"`
	OpeningBalance int64            `json:"opening_balance"`
	Lines          []LedgerLine     `json:"lines"`
	TotalDebit     int64            `json:"total_debit"`
	TotalCredit    int64            `json:"total_credit"`
	ClosingBalance int64            `json:"closing_balance"`
}

// Build projects the account's posted lines onto the period. Lines dated
// before the period start form the opening balance; lines inside it are
// listed in (date, journal number, line order) with a running balance;
// lines after the period are ignored.
func Build(account accounts.Account, lines []journals.PostedLine, period periods.Period) View {
	view := View{Account: account, Period: period.Code(), Lines: []LedgerLine{}}
	start, end := period.Start(), period.End()

	var inPeriod []journals.PostedLine
	for _, l := range lines {
		if l.AccountID != account.ID || !l.Status.Counted() {
			continue
		}
		switch {
		case l.Date.Before(start):
			view.OpeningBalance += account.SignedBalance(l.Debit, l.Credit)
		case l.Date.Before(end):
			inPeriod = append(inPeriod, l)
		}
	}
	journals.SortLines(inPeriod)

	running := view.OpeningBalance
	for _, l := range inPeriod {
		running += account.SignedBalance(l.Debit, l.Credit)
		view.TotalDebit += l.Debit
		view.TotalCredit += l.Credit
		view.Lines = append(view.Lines, LedgerLine{
			EntryID:        l.EntryID,
			Number:         journals.JournalEntry{Number: l.Number}.DisplayNumber(),
			Date:           l.Date,
			Description:    l.Description,
			Reference:      l.Reference,
			Note:           l.Note,
			Debit:          l.Debit,
			Credit:         l.Credit,
			RunningBalance: running,
		})
	}
	view.ClosingBalance = running
	return view
}

// AccountBalance aggregates one account over a period, signed on the
// account's normal side.
type AccountBalance struct {
	Account accounts.Account `json:"account"`
	Opening int64            `json:"opening"`
	Debit   int64            `json:"debit"`
	Credit  int64            `json:"credit"`
	Closing int64            `json:"closing"`
}

// Movement is the signed change within the period.
func (b AccountBalance) Movement() int64 {
	return b.Closing - b.Opening
}

// BuildBalances combines totals before the period and within it into
// per-account balances. Accounts without any movement are included with
// zero balances; group accounts are skipped.
func BuildBalances(accs []accounts.Account, before, within []journals.AccountTotal) []AccountBalance {
	prior := indexTotals(before)
	current := indexTotals(within)
	out := make([]AccountBalance, 0, len(accs))
	for _, acc := range accs {
		if acc.IsGroup {
			continue
		}
		p, c := prior[acc.ID], current[acc.ID]
		opening := acc.SignedBalance(p.Debit, p.Credit)
		out = append(out, AccountBalance{
			Account: acc,
			Opening: opening,
			Debit:   c.Debit,
			Credit:  c.Credit,
			Closing: opening + acc.SignedBalance(c.Debit, c.Credit),
		})
	}
	return out
}

func indexTotals(totals []journals.AccountTotal) map[int64]journals.AccountTotal {
	out := make(map[int64]journals.AccountTotal, len(totals))
	for _, t := range totals {
		out[t.AccountID] = t
	}
	return out
}
