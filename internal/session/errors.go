package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var (
	// ErrConflict: the server holds a newer version than the one sent.
	// Fail-stop — not retryable with the same payload.
	ErrConflict = errors.New("version conflict")

	// ErrPermissionDenied downgrades the session to read-only.
	ErrPermissionDenied = errors.New("permission denied")
)

// ValidationError carries the field-level detail of a 422 response. It
// never advances the version token.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (%d field errors)", e.Message, len(e.Fields))
}

// NetworkError is the transient bucket: transport failures and any
// status code outside the protocol. The next debounce cycle is the only
// retry mechanism.
type NetworkError struct {
	Status int
	Err    error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		if e.Status != 0 {
			return fmt.Sprintf("request failed with status %d: %v", e.Status, e.Err)
		}
		return fmt.Sprintf("request failed: %v", e.Err)
	}
	return fmt.Sprintf("request failed with status %d", e.Status)
}

func (e *NetworkError) Unwrap() error { return e.Err }

func decodeValidationError(body io.Reader) *ValidationError {
	var payload struct {
		Error  string            `json:"error"`
		Fields map[string]string `json:"fields"`
	}
	verr := &ValidationError{Message: "validation failed"}
	if err := json.NewDecoder(body).Decode(&payload); err == nil {
		if payload.Error != "" {
			verr.Message = payload.Error
		}
		verr.Fields = payload.Fields
	}
	return verr
}
