package ledger

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/koperasi/internal/accounting/accounts"
	"github.com/odyssey-erp/koperasi/internal/accounting/journals"
	"github.com/odyssey-erp/koperasi/internal/accounting/periods"
)

// AccountReader is the slice of the account store the ledger needs.
type AccountReader interface {
	Get(ctx context.Context, id int64) (accounts.Account, error)
	List(ctx context.Context, filter accounts.Filter) ([]accounts.Account, error)
}

// LineReader reads counted journal lines.
type LineReader interface {
	PostedLines(ctx context.Context, q journals.LineQuery) ([]journals.PostedLine, error)
	SumPostedLines(ctx context.Context, q journals.LineQuery) ([]journals.AccountTotal, error)
}

type Service struct {
	accounts AccountReader
	lines    LineReader
}

func NewService(accounts AccountReader, lines LineReader) *Service {
	return &Service{accounts: accounts, lines: lines}
}

// GetLedger returns the general ledger of one account for the period.
func (s *Service) GetLedger(ctx context.Context, accountID int64, period periods.Period) (View, error) {
	acc, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return View{}, err
	}
	lines, err := s.lines.PostedLines(ctx, journals.LineQuery{AccountID: accountID, Until: period.End()})
	if err != nil {
		return View{}, fmt.Errorf("ledger %s %s: %w", acc.Code, period.Code(), err)
	}
	return Build(acc, lines, period), nil
}

// Balances returns opening, movement and closing for every postable account.
func (s *Service) Balances(ctx context.Context, period periods.Period) ([]AccountBalance, error) {
	accs, err := s.accounts.List(ctx, accounts.Filter{})
	if err != nil {
		return nil, err
	}
	before, err := s.lines.SumPostedLines(ctx, journals.LineQuery{Until: period.Start()})
	if err != nil {
		return nil, fmt.Errorf("opening balances %s: %w", period.Code(), err)
	}
	within, err := s.lines.SumPostedLines(ctx, journals.LineQuery{From: period.Start(), Until: period.End()})
	if err != nil {
		return nil, fmt.Errorf("period movements %s: %w", period.Code(), err)
	}
	return BuildBalances(accs, before, within), nil
}

// Movements returns every counted line dated inside the period.
func (s *Service) Movements(ctx context.Context, period periods.Period) ([]journals.PostedLine, error) {
	return s.lines.PostedLines(ctx, journals.LineQuery{From: period.Start(), Until: period.End()})
}

// Accounts lists the chart of accounts for statement grouping.
func (s *Service) Accounts(ctx context.Context) ([]accounts.Account, error) {
	return s.accounts.List(ctx, accounts.Filter{})
}
