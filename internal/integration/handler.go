package integration

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/odyssey-erp/koperasi/internal/accounting/shared"
	"github.com/odyssey-erp/koperasi/internal/platform/httpx"
)

const (
	batchRateLimit  = 10
	batchRateWindow = time.Minute
	maxBatchSize    = 500
)

// Enqueuer hands a batch to the background worker and returns the task id.
type Enqueuer interface {
	EnqueueSyncBatch(ctx context.Context, txs []Transaction) (string, error)
}

// Handler exposes the sync endpoints.
type Handler struct {
	syncer   *Syncer
	enqueuer Enqueuer
	logger   *slog.Logger
}

// NewHandler builds the sync handler. enqueuer may be nil when no worker is configured.
func NewHandler(logger *slog.Logger, syncer *Syncer, enqueuer Enqueuer) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{syncer: syncer, enqueuer: enqueuer, logger: logger}
}

type batchRequest struct {
	Transactions []Transaction `json:"transactions"`
}

// MountRoutes registers the sync endpoints.
func (h *Handler) MountRoutes(r chi.Router) {
	if h == nil {
		return
	}
	limiter := httprate.Limit(batchRateLimit, batchRateWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusTooManyRequests, http.StatusText(http.StatusTooManyRequests), "")
		}),
	)
	r.Post("/sync/transactions", h.SyncTransaction)
	r.Group(func(gr chi.Router) {
		gr.Use(limiter)
		gr.Post("/sync/batch", h.BatchSync)
		gr.Post("/sync/batch/async", h.EnqueueBatch)
	})
}

func (h *Handler) SyncTransaction(w http.ResponseWriter, r *http.Request) {
	var tx Transaction
	if err := httpx.DecodeJSON(r, &tx); err != nil {
		httpx.RespondError(w, err)
		return
	}
	out, err := h.syncer.SyncTransaction(r.Context(), tx)
	if err != nil {
		h.logger.Warn("sync transaction", slog.String("transaction_id", tx.ID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	status := http.StatusCreated
	if out.Duplicate {
		status = http.StatusOK
	}
	httpx.JSON(w, status, out)
}

func (h *Handler) BatchSync(w http.ResponseWriter, r *http.Request) {
	txs, err := decodeBatch(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result := h.syncer.BatchSync(r.Context(), txs)
	h.logger.Info("batch synced",
		slog.Int("succeeded", result.Succeeded),
		slog.Int("failed", result.Failed),
		slog.Int("duplicates", result.Duplicates))
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) EnqueueBatch(w http.ResponseWriter, r *http.Request) {
	if h.enqueuer == nil {
		httpx.Problem(w, http.StatusServiceUnavailable, "Worker Unavailable", "background sync is not configured")
		return
	}
	txs, err := decodeBatch(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	for i := range txs {
		if err := txs[i].Validate(); err != nil {
			httpx.RespondError(w, fmt.Errorf("transactions[%d]: %w", i, err))
			return
		}
	}
	id, err := h.enqueuer.EnqueueSyncBatch(r.Context(), txs)
	if err != nil {
		h.logger.Error("enqueue sync batch", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusAccepted, map[string]any{"task_id": id, "count": len(txs)})
}

func decodeBatch(r *http.Request) ([]Transaction, error) {
	var req batchRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		return nil, err
	}
	if len(req.Transactions) == 0 {
		return nil, shared.NewFieldError("transactions", fmt.Errorf("%w: batch is empty", shared.ErrValidation))
	}
	if len(req.Transactions) > maxBatchSize {
		return nil, shared.NewFieldError("transactions", fmt.Errorf("%w: batch exceeds %d items", shared.ErrValidation, maxBatchSize))
	}
	return req.Transactions, nil
}
