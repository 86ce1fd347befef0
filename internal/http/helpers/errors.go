// Package helpers carries the API error taxonomy and JSON plumbing shared by
// every controller.
package helpers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/brewpass/brewpass/internal/store/core"
)

// AppError is the standard API error. The wire shape is stable; Err carries
// the underlying cause for logs only and never reaches the client.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Detail != "" {
		return e.Message + ": " + e.Detail
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// WithDetail returns a copy carrying client-visible detail.
func (e *AppError) WithDetail(detail string) *AppError {
	cp := *e
	cp.Detail = detail
	return &cp
}

// WithErr returns a copy carrying the underlying cause for logging.
func (e *AppError) WithErr(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

var (
	ErrInvalidJSON      = &AppError{Code: "invalid_json", Message: "Invalid JSON body", HTTPStatus: http.StatusBadRequest}
	ErrBadRequest       = &AppError{Code: "bad_request", Message: "Bad request", HTTPStatus: http.StatusBadRequest}
	ErrUnauthorized     = &AppError{Code: "unauthorized", Message: "Unauthorized", HTTPStatus: http.StatusUnauthorized}
	ErrNotFound         = &AppError{Code: "not_found", Message: "Not found", HTTPStatus: http.StatusNotFound}
	ErrConflict         = &AppError{Code: "conflict", Message: "Conflict", HTTPStatus: http.StatusConflict}
	ErrRateLimited      = &AppError{Code: "rate_limited", Message: "Too many requests", HTTPStatus: http.StatusTooManyRequests}
	ErrInternal         = &AppError{Code: "internal_error", Message: "Internal server error", HTTPStatus: http.StatusInternalServerError}
	ErrNotConfigured    = &AppError{Code: "not_configured", Message: "Feature not configured", HTTPStatus: http.StatusInternalServerError}
	ErrStoreUnavailable = &AppError{Code: "store_unavailable", Message: "Storage unavailable", HTTPStatus: http.StatusServiceUnavailable}
)

// FromDomain maps store-layer sentinels onto the API taxonomy.
func FromDomain(err error) *AppError {
	switch {
	case errors.Is(err, core.ErrNotFound):
		return ErrNotFound.WithErr(err)
	case errors.Is(err, core.ErrConflict):
		return ErrConflict.WithErr(err)
	case errors.Is(err, core.ErrInvalid):
		return ErrBadRequest.WithErr(err)
	default:
		return ErrInternal.WithErr(err)
	}
}

// WriteError renders err as JSON, coercing non-AppError values to a generic
// internal error so causes never leak to clients.
func WriteError(w http.ResponseWriter, err error) {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		appErr = ErrInternal.WithErr(err)
	}
	out := *appErr
	out.RequestID = w.Header().Get("X-Request-ID")

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(out.HTTPStatus)
	_ = json.NewEncoder(w).Encode(&out)
}
