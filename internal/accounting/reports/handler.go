package reports

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/odyssey-erp/koperasi/internal/accounting/periods"
	"github.com/odyssey-erp/koperasi/internal/accounting/shared"
	"github.com/odyssey-erp/koperasi/internal/platform/httpx"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
	now     func() time.Time
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, now: time.Now}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/trial-balance", serve(h, "trial balance", h.service.TrialBalance))
	r.Get("/balance-sheet", serve(h, "balance sheet", h.service.BalanceSheet))
	r.Get("/income-statement", serve(h, "income statement", h.service.IncomeStatement))
	r.Get("/cash-flow", serve(h, "cash flow", h.service.CashFlowStatement))
	r.Get("/equity-changes", serve(h, "equity changes", h.service.EquityChangeStatement))
}

// inconsistentReport wraps a statement that failed an integrity check. The
// statement is still returned so operators can inspect the difference.
type inconsistentReport struct {
	httpx.ProblemDetail
	Report any `json:"report"`
}

func serve[T any](h *Handler, name string, build func(context.Context, periods.Period) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		period := periods.Of(h.now())
		if raw := r.URL.Query().Get("period"); raw != "" {
			var err error
			if period, err = periods.Parse(raw); err != nil {
				httpx.RespondError(w, err)
				return
			}
		}
		report, err := build(r.Context(), period)
		if err != nil {
			var ce *shared.ConsistencyError
			if errors.As(err, &ce) {
				httpx.JSON(w, http.StatusInternalServerError, inconsistentReport{
					ProblemDetail: httpx.ProblemDetail{Title: "Ledger Inconsistency", Status: http.StatusInternalServerError, Detail: ce.Error()},
					Report:        report,
				})
				return
			}
			h.logger.Error(name, slog.String("period", period.Code()), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, report)
	}
}
