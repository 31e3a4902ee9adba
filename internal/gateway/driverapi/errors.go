package driverapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/yitethio/liyt-driver/internal/apperr"
)

// APIError carries the server's status code and human-readable message
// for a request the backend rejected.
type APIError struct {
	StatusCode int
	Message    string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("driver api: %s (status %d)", e.Message, e.StatusCode)
}

// Unwrap maps well-known statuses onto apperr sentinels so callers can
// branch with errors.Is.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusUnauthorized:
		return apperr.ErrUnauthorized
	case http.StatusNotFound:
		return apperr.ErrNotFound
	case http.StatusConflict:
		return apperr.ErrConflict
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return apperr.ErrInvalid
	default:
		return nil
	}
}

func newAPIError(status int, body []byte) *APIError {
	msg := messageFromBody(body)
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &APIError{StatusCode: status, Message: msg}
}

// messageFromBody extracts a human-readable message from an error
// response. The backend is not consistent: it may answer with
// {"message"}, {"error"}, a validation {"errors":[...]} array, or a
// bare string.
func messageFromBody(body []byte) string {
	body = []byte(strings.TrimSpace(string(body)))
	if len(body) == 0 {
		return ""
	}

	var envelope struct {
		Message string   `json:"message"`
		Error   string   `json:"error"`
		Errors  []string `json:"errors"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		switch {
		case envelope.Message != "":
			return envelope.Message
		case envelope.Error != "":
			return envelope.Error
		case len(envelope.Errors) > 0:
			return strings.Join(envelope.Errors, "; ")
		}
	}

	var plain string
	if err := json.Unmarshal(body, &plain); err == nil {
		return plain
	}
	if !json.Valid(body) {
		return string(body)
	}
	return ""
}
