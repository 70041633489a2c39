package reports

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/odyssey-erp/koperasi/internal/accounting/journals"
	"github.com/odyssey-erp/koperasi/internal/accounting/ledger"
	"github.com/odyssey-erp/koperasi/internal/accounting/periods"
	"github.com/odyssey-erp/koperasi/internal/accounting/shared"
	"golang.org/x/sync/singleflight"
)

// LedgerReader provides the aggregated ledger data statements are built from.
type LedgerReader interface {
	Balances(ctx context.Context, period periods.Period) ([]ledger.AccountBalance, error)
	Movements(ctx context.Context, period periods.Period) ([]journals.PostedLine, error)
}

var errSkipCache = errors.New("reports: inconsistent statement not cached")

// DefaultBuildTimeout bounds a shared statement build.
const DefaultBuildTimeout = 30 * time.Second

// Service builds financial statements on demand.
type Service struct {
	ledger       LedgerReader
	cache        *Cache
	logger       *slog.Logger
	group        singleflight.Group
	buildTimeout time.Duration
}

func NewService(reader LedgerReader, cache *Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{ledger: reader, cache: cache, logger: logger, buildTimeout: DefaultBuildTimeout}
}

// WithBuildTimeout sets how long a shared build may run once detached from
// the request that started it.
func (s *Service) WithBuildTimeout(d time.Duration) *Service {
	if d > 0 {
		s.buildTimeout = d
	}
	return s
}

type built[T any] struct {
	report T
	err    error
}

// load builds a statement once per ledger version. Concurrent identical
// requests share one build, which runs detached from any single caller so a
// cancelled request does not fail the others waiting on it. Inconsistent
// statements are returned with their ConsistencyError and never cached.
func load[T any](ctx context.Context, s *Service, name string, period periods.Period, build func(context.Context) (T, error)) (T, error) {
	var zero T
	key, err := s.cache.BuildKey(ctx, name, period.Code())
	if err != nil {
		s.logger.Warn("statement cache unavailable", slog.String("report", name), slog.Any("error", err))
		return build(ctx)
	}
	ch := s.group.DoChan(key, func() (any, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.buildTimeout)
		defer cancel()
		var (
			out           T
			inconsistency error
		)
		err := s.cache.FetchJSON(ctx, key, &out, func(ctx context.Context) (any, error) {
			report, err := build(ctx)
			if err != nil {
				var ce *shared.ConsistencyError
				if errors.As(err, &ce) {
					out, inconsistency = report, err
					return nil, errSkipCache
				}
				return nil, err
			}
			return report, nil
		})
		if errors.Is(err, errSkipCache) {
			return built[T]{report: out, err: inconsistency}, nil
		}
		if err != nil {
			return nil, err
		}
		return built[T]{report: out}, nil
	})
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		b := res.Val.(built[T])
		if b.err != nil {
			s.logger.Error("ledger inconsistency", slog.String("report", name), slog.String("period", period.Code()), slog.Any("error", b.err))
		}
		return b.report, b.err
	}
}

func (s *Service) TrialBalance(ctx context.Context, period periods.Period) (TrialBalance, error) {
	return load(ctx, s, "trial_balance", period, func(ctx context.Context) (TrialBalance, error) {
		balances, err := s.ledger.Balances(ctx, period)
		if err != nil {
			return TrialBalance{}, err
		}
		tb := BuildTrialBalance(period.Code(), balances)
		if !tb.IsBalanced {
			return tb, &shared.ConsistencyError{Report: "trial_balance", Check: "debit vs credit", Expected: tb.TotalDebit, Actual: tb.TotalCredit}
		}
		return tb, nil
	})
}

func (s *Service) BalanceSheet(ctx context.Context, period periods.Period) (BalanceSheet, error) {
	return load(ctx, s, "balance_sheet", period, func(ctx context.Context) (BalanceSheet, error) {
		balances, err := s.ledger.Balances(ctx, period)
		if err != nil {
			return BalanceSheet{}, err
		}
		return BuildBalanceSheet(period.Code(), balances)
	})
}

func (s *Service) IncomeStatement(ctx context.Context, period periods.Period) (IncomeStatement, error) {
	return load(ctx, s, "income_statement", period, func(ctx context.Context) (IncomeStatement, error) {
		balances, err := s.ledger.Balances(ctx, period)
		if err != nil {
			return IncomeStatement{}, err
		}
		return BuildIncomeStatement(period.Code(), balances), nil
	})
}

func (s *Service) CashFlowStatement(ctx context.Context, period periods.Period) (CashFlowStatement, error) {
	return load(ctx, s, "cash_flow", period, func(ctx context.Context) (CashFlowStatement, error) {
		balances, err := s.ledger.Balances(ctx, period)
		if err != nil {
			return CashFlowStatement{}, err
		}
		movements, err := s.ledger.Movements(ctx, period)
		if err != nil {
			return CashFlowStatement{}, err
		}
		return BuildCashFlow(period.Code(), balances, movements)
	})
}

func (s *Service) EquityChangeStatement(ctx context.Context, period periods.Period) (EquityChangeStatement, error) {
	return load(ctx, s, "equity_changes", period, func(ctx context.Context) (EquityChangeStatement, error) {
		balances, err := s.ledger.Balances(ctx, period)
		if err != nil {
			return EquityChangeStatement{}, err
		}
		return BuildEquityChanges(period.Code(), balances)
	})
}
