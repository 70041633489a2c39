package ledger

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/odyssey-erp/koperasi/internal/accounting/periods"
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
	r.Get("/{accountID}", h.Get)
}

// Get serves GET /ledger/{accountID}?period=YYYY-MM. The current month is
// used when period is omitted.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	accountID, err := httpx.IDParam(r, "accountID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	period := periods.Of(h.now())
	if raw := r.URL.Query().Get("period"); raw != "" {
		if period, err = periods.Parse(raw); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	view, err := h.service.GetLedger(r.Context(), accountID, period)
	if err != nil {
		h.logger.Warn("ledger", slog.Int64("account_id", accountID), slog.String("period", period.Code()), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, view)
}
