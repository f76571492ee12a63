package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/owenbrady/predictduel/internal/domain"
	"github.com/owenbrady/predictduel/internal/executor"
)

// writeJSON marshals v as JSON and writes it to the response with the given
// HTTP status code. If marshaling fails, it falls back to a plain-text 500.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends a JSON-formatted error response.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeDomainError maps a settlement error to an HTTP status and sends it.
// The error text itself is safe to expose: it names a business rule, never
// internals.
func writeDomainError(w http.ResponseWriter, err error) {
	writeError(w, statusFor(err), err.Error())
}

// statusFor classifies domain errors into HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrAlreadyParticipated),
		errors.Is(err, domain.ErrAlreadyResolved),
		errors.Is(err, domain.ErrAlreadyCancelled),
		errors.Is(err, domain.ErrAlreadyClaimed),
		errors.Is(err, domain.ErrDuplicateIndex):
		return http.StatusConflict
	case errors.Is(err, domain.ErrMarketNotActive),
		errors.Is(err, domain.ErrMarketExpired),
		errors.Is(err, domain.ErrMarketNotExpired),
		errors.Is(err, domain.ErrMarketNotResolved),
		errors.Is(err, domain.ErrMarketNotCancelled),
		errors.Is(err, domain.ErrCannotCancel),
		errors.Is(err, domain.ErrNotAWinner),
		errors.Is(err, domain.ErrVoidOutcome):
		return http.StatusUnprocessableEntity
	case domain.Validation(err):
		return http.StatusBadRequest
	case errors.Is(err, executor.ErrExhausted):
		// The outcome is unknown; the error text tells the caller to
		// re-check ledger state before resubmitting.
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// parseLimit extracts the limit query parameter. Defaults to 50, capped at
// 500.
func parseLimit(r *http.Request) int {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 500 {
		limit = 500
	}
	return limit
}

// pathAddress extracts and parses a named address path parameter using Go
// 1.22+ built-in routing (http.Request.PathValue).
func pathAddress(r *http.Request, name string) (domain.Address, error) {
	return domain.ParseAddress(r.PathValue(name))
}
