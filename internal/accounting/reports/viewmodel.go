package reports

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/odyssey-erp/koperasi/internal/accounting/money"
)

var monthNames = [...]string{"Januari", "Februari", "Maret", "April", "Mei", "Juni",
	"Juli", "Agustus", "September", "Oktober", "November", "Desember"}

// PeriodLabel renders "2024-03" as "Maret 2024". Unparseable codes are returned as is.
func PeriodLabel(code string) string {
	t, err := time.Parse("2006-01", code)
	if err != nil {
		return code
	}
	return fmt.Sprintf("%s %d", monthNames[t.Month()-1], t.Year())
}

// ViewRow is one printable statement row. Heading rows carry no amounts.
type ViewRow struct {
	Code    string
	Label   string
	Amounts []string
	Heading bool
	Total   bool
}

// StatementView holds formatted data for CLI and export rendering.
type StatementView struct {
	Title       string
	PeriodLabel string
	Columns     []string
	Rows        []ViewRow
	Balanced    bool
	Note        string
}

func amounts(v ...int64) []string {
	out := make([]string, len(v))
	for i, a := range v {
		out[i] = money.Format(a)
	}
	return out
}

func (v *StatementView) section(s Section, totalLabel string) {
	v.Rows = append(v.Rows, ViewRow{Label: s.Label, Heading: true})
	for _, l := range s.Lines {
		v.Rows = append(v.Rows, ViewRow{Code: l.Code, Label: l.Name, Amounts: amounts(l.Amount)})
	}
	v.Rows = append(v.Rows, ViewRow{Label: totalLabel, Amounts: amounts(s.Total), Total: true})
}

// TrialBalanceView formats a trial balance with movement and closing columns.
func TrialBalanceView(tb TrialBalance) StatementView {
	v := StatementView{
		Title:       "Neraca Saldo",
		PeriodLabel: PeriodLabel(tb.Period),
		Columns:     []string{"Debit", "Kredit", "Saldo Debit", "Saldo Kredit"},
		Balanced:    tb.IsBalanced,
	}
	for _, g := range tb.Groups {
		v.Rows = append(v.Rows, ViewRow{Label: g.Key, Heading: true})
		for _, a := range g.Accounts {
			v.Rows = append(v.Rows, ViewRow{Code: a.Code, Label: a.Name, Amounts: amounts(a.Debit, a.Credit, a.ClosingDebit, a.ClosingCredit)})
		}
	}
	v.Rows = append(v.Rows, ViewRow{Label: "Jumlah", Total: true,
		Amounts: amounts(tb.TotalDebit, tb.TotalCredit, tb.TotalClosingDebit, tb.TotalClosingCredit)})
	return v
}

// BalanceSheetView formats the balance sheet.
func BalanceSheetView(bs BalanceSheet) StatementView {
	v := StatementView{Title: "Neraca", PeriodLabel: PeriodLabel(bs.Period), Columns: []string{"Saldo"}, Balanced: bs.IsBalanced}
	v.section(bs.Assets, "Jumlah Aset")
	v.section(bs.Liabilities, "Jumlah Kewajiban")
	v.section(bs.Equity, "Jumlah Ekuitas")
	v.Rows = append(v.Rows, ViewRow{Label: "Jumlah Kewajiban dan Ekuitas", Amounts: amounts(bs.TotalLiabilitiesAndEquity), Total: true})
	if !bs.IsBalanced {
		v.Note = "Selisih " + money.Format(bs.Difference)
	}
	return v
}

// IncomeStatementView formats the income statement.
func IncomeStatementView(is IncomeStatement) StatementView {
	v := StatementView{Title: "Laporan Laba Rugi", PeriodLabel: PeriodLabel(is.Period), Columns: []string{"Jumlah"}, Balanced: true}
	v.section(is.Revenue, "Jumlah Pendapatan")
	v.section(is.Expense, "Jumlah Beban")
	v.Rows = append(v.Rows, ViewRow{Label: "Sisa Hasil Usaha", Amounts: amounts(is.NetIncome), Total: true})
	return v
}

// CashFlowView formats the cash flow statement.
func CashFlowView(cf CashFlowStatement) StatementView {
	v := StatementView{Title: "Laporan Arus Kas", PeriodLabel: PeriodLabel(cf.Period), Columns: []string{"Jumlah"}, Balanced: cf.IsBalanced}
	v.Rows = append(v.Rows, ViewRow{Label: "Kas Awal Periode", Amounts: amounts(cf.OpeningCash), Total: true})
	v.section(cf.Operating, "Arus Kas Bersih Aktivitas Operasi")
	v.section(cf.Investing, "Arus Kas Bersih Aktivitas Investasi")
	v.section(cf.Financing, "Arus Kas Bersih Aktivitas Pendanaan")
	v.Rows = append(v.Rows,
		ViewRow{Label: "Kenaikan (Penurunan) Kas", Amounts: amounts(cf.NetChange), Total: true},
		ViewRow{Label: "Kas Akhir Periode", Amounts: amounts(cf.ClosingCash), Total: true},
	)
	if !cf.IsBalanced {
		v.Note = "Saldo kas buku besar " + money.Format(cf.LedgerClosingCash)
	}
	return v
}

// EquityChangesView formats the statement of changes in equity.
func EquityChangesView(ec EquityChangeStatement) StatementView {
	v := StatementView{
		Title:       "Laporan Perubahan Ekuitas",
		PeriodLabel: PeriodLabel(ec.Period),
		Columns:     []string{"Saldo Awal", "Penambahan", "Pengurangan", "Saldo Akhir"},
		Balanced:    ec.IsBalanced,
	}
	for _, r := range ec.Rows {
		v.Rows = append(v.Rows, ViewRow{Code: r.Code, Label: r.Name, Amounts: amounts(r.Opening, r.Additions, r.Reductions, r.Closing)})
	}
	v.Rows = append(v.Rows, ViewRow{Label: "Jumlah", Total: true,
		Amounts: amounts(ec.TotalOpening, ec.TotalAdditions, ec.TotalReductions, ec.TotalClosing)})
	return v
}

// WriteText renders the view as an aligned plain-text table.
func (v StatementView) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "%s\t\n%s\t\n\t\n", v.Title, v.PeriodLabel)
	fmt.Fprintf(tw, "Kode\tAkun\t%s\t\n", strings.Join(v.Columns, "\t"))
	for _, r := range v.Rows {
		label := r.Label
		switch {
		case r.Heading:
			label = strings.ToUpper(label)
		case r.Total:
			label = "  " + label
		}
		fmt.Fprintf(tw, "%s\t%s\t", r.Code, label)
		for _, a := range r.Amounts {
			fmt.Fprintf(tw, "%s\t", a)
		}
		fmt.Fprintln(tw)
	}
	if v.Note != "" {
		fmt.Fprintf(tw, "\t%s\t\n", v.Note)
	}
	if !v.Balanced {
		fmt.Fprintf(tw, "\tTIDAK SEIMBANG\t\n")
	}
	return tw.Flush()
}
