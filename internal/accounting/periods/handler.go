package periods

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/odyssey-erp/koperasi/internal/platform/httpx"
	internalShared "github.com/odyssey-erp/koperasi/internal/shared"
)

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/{period}/close", h.change(h.service.Close))
	r.Post("/{period}/lock", h.change(h.service.Lock))
	r.Post("/{period}/unlock", h.change(h.service.Unlock))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	states, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list periods", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"periods": states})
}

func (h *Handler) change(fn func(ctx context.Context, code string, actorID int64) (State, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "period")
		state, err := fn(r.Context(), code, internalShared.ActorFromContext(r.Context()))
		if err != nil {
			h.logger.Warn("period transition", slog.String("period", code), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, state)
	}
}
