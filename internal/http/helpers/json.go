package helpers

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// WriteJSON renders v with the standard content type.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// ReadJSON decodes the request body tolerantly: unknown fields pass through,
// an empty body decodes to the zero value, and the body is capped at 1MB.
// Returns false after writing the error response itself.
func ReadJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	if ct := strings.ToLower(r.Header.Get("Content-Type")); ct != "" && !strings.Contains(ct, "application/json") {
		WriteError(w, ErrInvalidJSON.WithDetail("Content-Type must be application/json"))
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil && err != io.EOF {
		WriteError(w, ErrInvalidJSON)
		return false
	}
	return true
}
