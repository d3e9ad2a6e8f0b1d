package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// ErrorCode is a machine-readable error code carried next to the HTTP
// status.
type ErrorCode string

const (
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeBadRequest   ErrorCode = "BAD_REQUEST"
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeNotFound     ErrorCode = "NOT_FOUND"

	ErrCodeValidation  ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidJSON ErrorCode = "INVALID_JSON"
	ErrCodeInvalidKey  ErrorCode = "INVALID_KEY"
)

// ErrorResponse is the JSON error body.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      ErrorCode `json:"code"`
	RequestID string    `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorCode(w http.ResponseWriter, r *http.Request, status int, code ErrorCode, msg string) {
	resp := ErrorResponse{
		Error:   http.StatusText(status),
		Message: msg,
		Code:    code,
	}
	if reqID := middleware.GetReqID(r.Context()); reqID != "" {
		resp.RequestID = reqID
	}
	writeJSON(w, status, resp)
}

func badRequestError(w http.ResponseWriter, r *http.Request, code ErrorCode, msg string) {
	writeErrorCode(w, r, http.StatusBadRequest, code, msg)
}

func unauthorizedError(w http.ResponseWriter, r *http.Request, msg string) {
	writeErrorCode(w, r, http.StatusUnauthorized, ErrCodeUnauthorized, msg)
}

func forbiddenError(w http.ResponseWriter, r *http.Request, msg string) {
	writeErrorCode(w, r, http.StatusForbidden, ErrCodeForbidden, msg)
}

func notFoundError(w http.ResponseWriter, r *http.Request, msg string) {
	writeErrorCode(w, r, http.StatusNotFound, ErrCodeNotFound, msg)
}

func internalError(w http.ResponseWriter, r *http.Request, msg string) {
	writeErrorCode(w, r, http.StatusInternalServerError, ErrCodeInternal, msg)
}
