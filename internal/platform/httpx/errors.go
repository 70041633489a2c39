// Package httpx provides HTTP response utilities.
package httpx

import (
	"context"
	"errors"
	"net/http"

	"github.com/odyssey-erp/koperasi/internal/accounting/shared"
)

// ErrBadRequest marks malformed request payloads or parameters.
var ErrBadRequest = errors.New("bad request")

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var field string
	var fieldErr *shared.FieldError
	if errors.As(err, &fieldErr) {
		field = fieldErr.Field
	}
	switch {
	case errors.Is(err, ErrBadRequest):
		problem(w, http.StatusBadRequest, "Bad Request", err.Error(), field)
	case errors.Is(err, shared.ErrNotFound):
		problem(w, http.StatusNotFound, "Not Found", err.Error(), field)
	case errors.Is(err, shared.ErrValidation):
		problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error(), field)
	case errors.Is(err, shared.ErrState):
		problem(w, http.StatusConflict, "Invalid State", err.Error(), field)
	case errors.Is(err, shared.ErrReferential):
		problem(w, http.StatusConflict, "Referenced Record", err.Error(), field)
	case errors.Is(err, shared.ErrSourceConflict):
		problem(w, http.StatusConflict, "Duplicate Source Event", err.Error(), field)
	case errors.Is(err, shared.ErrConsistency):
		problem(w, http.StatusInternalServerError, "Ledger Inconsistency", err.Error(), "")
	case errors.Is(err, context.DeadlineExceeded):
		problem(w, http.StatusGatewayTimeout, "Timeout", "", "")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
