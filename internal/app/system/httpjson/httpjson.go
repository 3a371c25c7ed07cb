// internal/app/system/httpjson/httpjson.go

// Package httpjson centralizes JSON response writing and the error
// status taxonomy: 400 for validation and business-rule failures, 401 for
// credential failures, 403 for permission failures, 404 for missing
// entities, 500 for unexpected errors.
package httpjson

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"
)

// Write encodes v as JSON with the given status code.
func Write(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// OK writes v with a 200 status.
func OK(w http.ResponseWriter, v any) {
	Write(w, http.StatusOK, v)
}

// Message writes a 200 with a {"message": ...} body.
func Message(w http.ResponseWriter, msg string) {
	Write(w, http.StatusOK, map[string]string{"message": msg})
}

// Error writes a {"error": ...} body with the given status.
func Error(w http.ResponseWriter, status int, msg string) {
	Write(w, status, map[string]string{"error": msg})
}

// BadRequest reports a validation or business-rule failure.
func BadRequest(w http.ResponseWriter, msg string) {
	Error(w, http.StatusBadRequest, msg)
}

// Unauthorized reports a missing or bad credential.
func Unauthorized(w http.ResponseWriter, msg string) {
	Error(w, http.StatusUnauthorized, msg)
}

// Forbidden reports a permission failure.
func Forbidden(w http.ResponseWriter, msg string) {
	Error(w, http.StatusForbidden, msg)
}

// NotFound reports a missing entity.
func NotFound(w http.ResponseWriter, msg string) {
	Error(w, http.StatusNotFound, msg)
}

// Internal logs err and reports a generic failure without leaking detail.
func Internal(w http.ResponseWriter, log *zap.Logger, op string, err error) {
	if log != nil {
		log.Error(op, zap.Error(err))
	}
	Error(w, http.StatusInternalServerError, "unexpected error")
}

// Decode parses the request body into dst, returning false (and writing a
// 400) when the body is not valid JSON for dst.
func Decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		BadRequest(w, "invalid request body")
		return false
	}
	return true
}
