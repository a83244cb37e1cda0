package client

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dan-strohschein/syndrdb-aggregates/dataaccess"
)

// ConnectionError reports a failure to set up or tear down the transport.
type ConnectionError struct {
	Code      string         `json:"code"`
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Cause     error          `json:"cause,omitempty"`
	Timestamp time.Time      `json:"timestamp,omitempty"`
}

func (e *ConnectionError) Error() string {
	return e.FormatError(false)
}

// FormatError formats the error based on debug mode.
func (e *ConnectionError) FormatError(debugMode bool) string {
	if !debugMode {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s (caused by: %s)", e.Code, e.Message, e.Cause.Error())
		}
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}

	errorData := map[string]any{
		"code":    e.Code,
		"type":    e.Type,
		"message": e.Message,
	}
	if len(e.Details) > 0 {
		errorData["details"] = e.Details
	}
	if e.Cause != nil {
		errorData["cause"] = map[string]any{"message": dataaccess.FormatError(e.Cause, true)}
	}
	if !e.Timestamp.IsZero() {
		errorData["timestamp"] = e.Timestamp.Format(time.RFC3339Nano)
	}

	b, _ := json.MarshalIndent(errorData, "", "  ")
	return string(b)
}

// Unwrap returns the underlying cause.
func (e *ConnectionError) Unwrap() error {
	return e.Cause
}

func errConnect(code, message string, cause error, details map[string]any) *ConnectionError {
	return &ConnectionError{
		Code:      code,
		Type:      "CONNECTION_ERROR",
		Message:   message,
		Details:   details,
		Cause:     cause,
		Timestamp: time.Now(),
	}
}

// StateError reports a call made in the wrong connection state.
type StateError struct {
	Code      string          `json:"code"`
	Operation string          `json:"operation"`
	Required  ConnectionState `json:"required"`
	Actual    ConnectionState `json:"actual"`
}

func (e *StateError) Error() string {
	return e.FormatError(false)
}

// FormatError formats the error based on debug mode.
func (e *StateError) FormatError(debugMode bool) string {
	if debugMode {
		return fmt.Sprintf("%s: %s requires state %s, client is %s", e.Code, e.Operation, e.Required, e.Actual)
	}
	return fmt.Sprintf("%s: %s requires a %s client", e.Code, e.Operation, e.Required)
}

// ErrInvalidState creates a StateError.
func ErrInvalidState(operation string, required, actual ConnectionState) error {
	return &StateError{
		Code:      "INVALID_STATE",
		Operation: operation,
		Required:  required,
		Actual:    actual,
	}
}

// FormatError formats any error returned by the client.
func FormatError(err error, debugMode bool) string {
	return dataaccess.FormatError(err, debugMode)
}
