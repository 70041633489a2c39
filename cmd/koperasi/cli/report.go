package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/odyssey-erp/koperasi/internal/accounting/periods"
	"github.com/odyssey-erp/koperasi/internal/accounting/reports"
	"github.com/odyssey-erp/koperasi/internal/accounting/shared"
)

// StatementSource is the slice of reports.Service the printer reads.
type StatementSource interface {
	TrialBalance(ctx context.Context, period periods.Period) (reports.TrialBalance, error)
	BalanceSheet(ctx context.Context, period periods.Period) (reports.BalanceSheet, error)
	IncomeStatement(ctx context.Context, period periods.Period) (reports.IncomeStatement, error)
	CashFlowStatement(ctx context.Context, period periods.Period) (reports.CashFlowStatement, error)
	EquityChangeStatement(ctx context.Context, period periods.Period) (reports.EquityChangeStatement, error)
}

// StatementKinds lists the printable statements.
var StatementKinds = []string{"trial-balance", "balance-sheet", "income-statement", "cash-flow", "equity-changes"}

// viewOf formats stmt. Consistency errors still produce a view; it carries
// the imbalance note.
func viewOf[T any](stmt T, err error, view func(T) reports.StatementView) (reports.StatementView, error) {
	var inconsistent *shared.ConsistencyError
	if err != nil && !errors.As(err, &inconsistent) {
		return reports.StatementView{}, err
	}
	return view(stmt), nil
}

// ReportCLI prints financial statements as aligned text.
type ReportCLI struct {
	source StatementSource
}

func NewReportCLI(source StatementSource) *ReportCLI {
	return &ReportCLI{source: source}
}

// Print writes statement kind for period (YYYY-MM) to w.
func (c *ReportCLI) Print(ctx context.Context, w io.Writer, kind, period string) error {
	p, err := periods.Parse(period)
	if err != nil {
		return err
	}
	view, err := c.view(ctx, strings.ToLower(strings.TrimSpace(kind)), p)
	if err != nil {
		return err
	}
	return view.WriteText(w)
}

func (c *ReportCLI) view(ctx context.Context, kind string, p periods.Period) (reports.StatementView, error) {
	switch kind {
	case "trial-balance":
		stmt, err := c.source.TrialBalance(ctx, p)
		return viewOf(stmt, err, reports.TrialBalanceView)
	case "balance-sheet":
		stmt, err := c.source.BalanceSheet(ctx, p)
		return viewOf(stmt, err, reports.BalanceSheetView)
	case "income-statement":
		stmt, err := c.source.IncomeStatement(ctx, p)
		return viewOf(stmt, err, reports.IncomeStatementView)
	case "cash-flow":
		stmt, err := c.source.CashFlowStatement(ctx, p)
		return viewOf(stmt, err, reports.CashFlowView)
	case "equity-changes":
		stmt, err := c.source.EquityChangeStatement(ctx, p)
		return viewOf(stmt, err, reports.EquityChangesView)
	}
	return reports.StatementView{}, fmt.Errorf("report cli: unknown statement %q (want one of %s)", kind, strings.Join(StatementKinds, ", "))
}
