package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/mock-register/internal/checkout"
	"github.com/xenking/mock-register/internal/domain/cart"
	"github.com/xenking/mock-register/internal/domain/item"
)

type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps core errors to HTTP statuses. Precondition failures keep
// the 4xx range; persistence failures are 503 so the front end can prompt a
// retry.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError

	var (
		lenErr  *item.InvalidCodeLengthError
		persErr *cart.PersistenceError
	)
	switch {
	case errors.As(err, &lenErr):
		status = http.StatusBadRequest
	case errors.Is(err, checkout.ErrInvalidAmount):
		status = http.StatusBadRequest
	case errors.Is(err, item.ErrNotFound), errors.Is(err, cart.ErrOrderNotFound):
		status = http.StatusNotFound
	case errors.Is(err, cart.ErrNoActiveTransaction):
		status = http.StatusConflict
	case errors.Is(err, cart.ErrLineAbsent), errors.Is(err, checkout.ErrInsufficientTender):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &persErr):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Code: status, Message: err.Error()})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:    http.StatusBadRequest,
			Message: "invalid request body: " + err.Error(),
		})
		return false
	}
	return true
}
