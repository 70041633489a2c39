package journals

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/odyssey-erp/koperasi/internal/accounting/shared"
	"github.com/odyssey-erp/koperasi/internal/platform/httpx"
	internalShared "github.com/odyssey-erp/koperasi/internal/shared"
)

const dateLayout = "2006-01-02"

type Handler struct {
	service *Service
	logger  *slog.Logger
}

func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

type entryRequest struct {
	Date          string      `json:"date"`
	Description   string      `json:"description"`
	Reference     string      `json:"reference"`
	SourceModule  string      `json:"source_module"`
	SourceEventID string      `json:"source_event_id"`
	SourceSubject string      `json:"source_subject"`
	Lines         []LineInput `json:"lines"`
	Post          bool        `json:"post"`
}

func (req entryRequest) input(actorID int64) (EntryInput, error) {
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		return EntryInput{}, shared.NewFieldError("date", fmt.Errorf("%w: expected YYYY-MM-DD", shared.ErrValidation))
	}
	return EntryInput{
		Date:          date,
		Description:   req.Description,
		Reference:     req.Reference,
		SourceModule:  req.SourceModule,
		SourceEventID: req.SourceEventID,
		SourceSubject: req.SourceSubject,
		CreatedBy:     actorID,
		Lines:         req.Lines,
	}, nil
}

type reverseRequest struct {
	Date        string `json:"date"`
	Description string `json:"description"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := ListFilter{Status: JournalStatus(q.Get("status")), Search: q.Get("q")}
	var err error
	if filter.From, err = optionalDate(q.Get("from")); err != nil {
		httpx.RespondError(w, shared.NewFieldError("from", err))
		return
	}
	if filter.To, err = optionalDate(q.Get("to")); err != nil {
		httpx.RespondError(w, shared.NewFieldError("to", err))
		return
	}
	if raw := q.Get("account_id"); raw != "" {
		if filter.AccountID, err = strconv.ParseInt(raw, 10, 64); err != nil {
			httpx.RespondError(w, shared.NewFieldError("account_id", shared.ErrValidation))
			return
		}
	}
	if raw := q.Get("limit"); raw != "" {
		filter.Limit, _ = strconv.Atoi(raw)
	}
	entries, err := h.service.List(r.Context(), filter)
	if err != nil {
		h.fail(w, "list journals", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"journals": entries})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.fail(w, "get journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req entryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input, err := req.input(internalShared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	create := h.service.Create
	if req.Post {
		create = h.service.CreateAndPost
	}
	entry, err := create(r.Context(), input)
	if err != nil {
		h.fail(w, "create journal", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, entry)
}

func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req entryRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	input, err := req.input(internalShared.ActorFromContext(r.Context()))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.Update(r.Context(), id, input)
	if err != nil {
		h.fail(w, "update journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) Post(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entry, err := h.service.Post(r.Context(), id, internalShared.ActorFromContext(r.Context()))
	if err != nil {
		h.fail(w, "post journal", err)
		return
	}
	httpx.JSON(w, http.StatusOK, entry)
}

func (h *Handler) Reverse(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req reverseRequest
	if r.ContentLength > 0 {
		if err := httpx.DecodeJSON(r, &req); err != nil {
			httpx.RespondError(w, err)
			return
		}
	}
	input := ReverseInput{EntryID: id, ActorID: internalShared.ActorFromContext(r.Context()), Description: req.Description}
	if req.Date != "" {
		date, err := time.Parse(dateLayout, req.Date)
		if err != nil {
			httpx.RespondError(w, shared.NewFieldError("date", shared.ErrValidation))
			return
		}
		input.Date = &date
	}
	reversal, err := h.service.Reverse(r.Context(), input)
	if err != nil {
		h.fail(w, "reverse journal", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, reversal)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := httpx.IDParam(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id, internalShared.ActorFromContext(r.Context())); err != nil {
		h.fail(w, "delete journal", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	h.logger.Warn(op, slog.Any("error", err))
	httpx.RespondError(w, err)
}

func optionalDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}, shared.ErrValidation
	}
	return t, nil
}
