// Package httpx maps taskauth errors to HTTP responses and holds the JSON
// helpers shared by the router and the request gate.
package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MrEthical07/taskauth"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Timestamp        time.Time             `json:"timestamp"`
	Status           int                   `json:"status"`
	Error            string                `json:"error"`
	Message          string                `json:"message"`
	Path             string                `json:"path"`
	ValidationErrors []taskauth.FieldError `json:"validation_errors,omitempty"`
}

// ErrMalformedBody is returned by DecodeJSON for bodies that are not a
// single JSON object.
var ErrMalformedBody = errors.New("malformed request body")

type mapping struct {
	target  error
	status  int
	label   string
	message string
}

var mappings = []mapping{
	{taskauth.ErrInvalidCredentials, http.StatusUnauthorized, "Unauthorized", "Invalid username or password"},
	{taskauth.ErrAccountDisabled, http.StatusUnauthorized, "Unauthorized", ""},
	{taskauth.ErrAccountLocked, http.StatusLocked, "Locked", ""},
	{taskauth.ErrEmailTaken, http.StatusConflict, "Conflict", ""},
	{taskauth.ErrUsernameTaken, http.StatusConflict, "Conflict", ""},
	{taskauth.ErrInvalidRefreshToken, http.StatusForbidden, "Forbidden", ""},
	{taskauth.ErrRefreshTokenExpired, http.StatusForbidden, "Forbidden", ""},
	{taskauth.ErrInvalidOrExpiredResetToken, http.StatusBadRequest, "Bad Request", ""},
	{taskauth.ErrRateLimitExceeded, http.StatusTooManyRequests, "Too Many Requests", "Too many requests. Please try again later."},
	{taskauth.ErrUnauthenticated, http.StatusUnauthorized, "Unauthorized", ""},
	{taskauth.ErrPrincipalNotFound, http.StatusNotFound, "Not Found", ""},
	{taskauth.ErrValidationFailed, http.StatusBadRequest, "Validation Failed", "Invalid input data"},
	{ErrMalformedBody, http.StatusBadRequest, "Bad Request", ""},
}

// StatusFor returns the HTTP status for err.
func StatusFor(err error) int {
	if m, ok := lookup(err); ok {
		return m.status
	}
	return http.StatusInternalServerError
}

func lookup(err error) (mapping, bool) {
	for _, m := range mappings {
		if errors.Is(err, m.target) {
			return m, true
		}
	}
	return mapping{}, false
}

// WriteError writes the ErrorResponse for err. Errors with no mapping are
// logged in full and answered with a generic 500.
func WriteError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	resp := ErrorResponse{
		Timestamp: time.Now().UTC(),
		Path:      r.URL.Path,
	}

	m, ok := lookup(err)
	if !ok {
		if logger != nil {
			logger.Error("unhandled request error",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Error(err))
		}
		resp.Status = http.StatusInternalServerError
		resp.Error = "Internal Server Error"
		resp.Message = "An unexpected error occurred"
		WriteJSON(w, resp.Status, resp)
		return
	}

	resp.Status = m.status
	resp.Error = m.label
	resp.Message = m.message
	if resp.Message == "" {
		resp.Message = m.target.Error()
	}

	var verr *taskauth.ValidationError
	if errors.As(err, &verr) {
		resp.ValidationErrors = verr.Fields
	}
	if m.status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "60")
	}

	WriteJSON(w, resp.Status, resp)
}

// WriteJSON encodes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// DecodeJSON reads a single JSON object from r into dst, rejecting unknown
// fields and bodies over 1 MiB.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedBody, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", ErrMalformedBody)
	}
	return nil
}
