// Package httputil writes JSON responses and translates sentinel errors to
// HTTP status codes.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	"grunnlag/pkg/domain"
	"grunnlag/pkg/platform/sentinel"
)

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps err to a status and error code. Descriptions are returned
// only for client errors.
func WriteError(w http.ResponseWriter, err error) {
	status, code := classify(err)
	body := map[string]string{"error": code}
	if status < http.StatusInternalServerError {
		body["error_description"] = err.Error()
	}
	WriteJSON(w, status, body)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrInvalidID):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, sentinel.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, sentinel.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, sentinel.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
