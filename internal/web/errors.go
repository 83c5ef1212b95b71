package web

// errors.go provides unified error responses for the API.
//
// The technical error is logged with the request id; the client receives the
// mapped operator message and its code:
//
//	{"error": "...", "message": "...", "action": "...", "code": "FILE002"}

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/smoky1337/PfotenRegister/internal/core"
	"github.com/smoky1337/PfotenRegister/internal/logging"
)

var (
	errNoFile      = errors.New("no file provided")
	errRateLimited = errors.New("rate limit exceeded")
)

// ErrorResponse represents the JSON structure for API error responses.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// statusFor picks the HTTP status for an error returned by the service.
func statusFor(err error) int {
	var (
		verr *core.ValidationError
		perr *core.ParseError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrUploadNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTooManyImports):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, core.ErrInvalidPath),
		errors.Is(err, core.ErrInvalidFileType),
		errors.Is(err, core.ErrEmptyFile),
		errors.Is(err, core.ErrNothingToExport),
		errors.Is(err, core.ErrBadExportRequest),
		errors.Is(err, core.ErrInvalidNumberPattern),
		errors.As(err, &perr):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// respondError logs err and writes the mapped message with statusCode.
// Client errors with a known message are logged at warn level.
func respondError(w http.ResponseWriter, r *http.Request, err error, statusCode int) {
	msg := core.MapError(err)

	logger := logging.FromContext(r.Context())
	attrs := []any{
		"path", r.URL.Path,
		"method", r.Method,
		"status", statusCode,
		"error", err.Error(),
		"code", msg.Code,
	}
	if statusCode < http.StatusInternalServerError && core.IsUserFacing(err) {
		logger.Warn("request rejected", attrs...)
	} else {
		logger.Error("request error", attrs...)
	}

	resp := ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	}
	// Validation failures carry the offending numbers.
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, r, statusCode, struct {
			ErrorResponse
			Duplicates []string `json:"duplicate_numbers,omitempty"`
			Existing   []string `json:"existing_numbers,omitempty"`
		}{resp, verr.DuplicateNumbers, verr.ExistingNumbers})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

// respondServiceError writes err with the status statusFor picks.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, core.ErrTooManyImports) {
		w.Header().Set("Retry-After", "30")
	}
	respondError(w, r, err, statusFor(err))
}
