// Package dataaccess defines the error taxonomy shared by the cursor, reader,
// insert strategy and transports.
package dataaccess

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"time"
)

// Error codes.
const (
	CodeCursorIO             = "E_CURSOR_IO"
	CodeUnsupportedOperation = "E_UNSUPPORTED_OPERATION"
	CodeNonUniqueResult      = "E_NON_UNIQUE_RESULT"
	CodeDataAccess           = "E_DATA_ACCESS"
	CodeInvalidShape         = "E_INVALID_SHAPE"
	CodeConversion           = "E_CONVERSION"
	CodeBatchPartialFailure  = "E_BATCH_PARTIAL_FAILURE"
)

// Error types.
const (
	TypeCursor      = "CURSOR_ERROR"
	TypeUnsupported = "UNSUPPORTED_ERROR"
	TypeResult      = "RESULT_ERROR"
	TypeDataAccess  = "DATA_ACCESS_ERROR"
	TypeMapping     = "MAPPING_ERROR"
)

// Error is the structured error returned by every package of this module.
type Error struct {
	Code       string                 `json:"code"`
	Type       string                 `json:"type"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"cause,omitempty"`
	StackTrace []string               `json:"stack_trace,omitempty"`
	Timestamp  time.Time              `json:"timestamp,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.FormatError(false)
}

// FormatError formats the error based on debug mode.
// When debugMode=false: returns simple "CODE: message" format.
// When debugMode=true: returns indented JSON with details, cause and stack trace.
func (e *Error) FormatError(debugMode bool) string {
	if !debugMode {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s (caused by: %s)", e.Code, e.Message, e.Cause.Error())
		}
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}

	errorData := map[string]interface{}{
		"code":    e.Code,
		"type":    e.Type,
		"message": e.Message,
	}

	if len(e.Details) > 0 {
		errorData["details"] = e.Details
	}

	if e.Cause != nil {
		var cerr *Error
		if errors.As(e.Cause, &cerr) {
			errorData["cause"] = map[string]interface{}{
				"code":    cerr.Code,
				"type":    cerr.Type,
				"message": cerr.Message,
			}
		} else {
			errorData["cause"] = map[string]interface{}{"message": e.Cause.Error()}
		}
	}

	if len(e.StackTrace) > 0 {
		errorData["stack_trace"] = e.StackTrace
	}

	if !e.Timestamp.IsZero() {
		errorData["timestamp"] = e.Timestamp.Format(time.RFC3339Nano)
	}

	b, _ := json.MarshalIndent(errorData, "", "  ")
	return string(b)
}

// Unwrap returns the underlying cause error for errors.Is and errors.As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error by code so callers can compare against the
// sentinel values below with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// Sentinels for errors.Is checks. Only the code is compared.
var (
	ErrUnsupported = &Error{Code: CodeUnsupportedOperation}
	ErrNonUnique   = &Error{Code: CodeNonUniqueResult}
	ErrCursor      = &Error{Code: CodeCursorIO}
)

// ErrCursorIO wraps a failure of the underlying row cursor. It is not retried.
func ErrCursorIO(operation string, cause error) *Error {
	return &Error{
		Code:    CodeCursorIO,
		Type:    TypeCursor,
		Message: fmt.Sprintf("row cursor failed during %s", operation),
		Details: map[string]interface{}{
			"operation": operation,
		},
		Cause:      cause,
		StackTrace: captureStackTrace(),
		Timestamp:  time.Now(),
	}
}

// ErrUnsupportedOperation reports an operation this layer never performs.
func ErrUnsupportedOperation(operation, reason string) *Error {
	return &Error{
		Code:    CodeUnsupportedOperation,
		Type:    TypeUnsupported,
		Message: fmt.Sprintf("%s is not supported: %s", operation, reason),
		Details: map[string]interface{}{
			"operation": operation,
		},
		StackTrace: captureStackTrace(),
		Timestamp:  time.Now(),
	}
}

// ErrNonUniqueResult reports a single-result query that matched several roots.
func ErrNonUniqueResult(entity string, expected, actual int) *Error {
	return &Error{
		Code:    CodeNonUniqueResult,
		Type:    TypeResult,
		Message: fmt.Sprintf("query for %s returned more than %d result", entity, expected),
		Details: map[string]interface{}{
			"entity":   entity,
			"expected": expected,
			"actual":   actual,
		},
		StackTrace: captureStackTrace(),
		Timestamp:  time.Now(),
	}
}

// ErrDataAccess wraps a failure reported by the statement execution port.
func ErrDataAccess(statement string, cause error) *Error {
	return &Error{
		Code:    CodeDataAccess,
		Type:    TypeDataAccess,
		Message: "statement execution failed",
		Details: map[string]interface{}{
			"statement": statement,
		},
		Cause:     cause,
		Timestamp: time.Now(),
	}
}

// ErrInvalidShape reports an entity shape that cannot be read.
func ErrInvalidShape(entity, reason string) *Error {
	return &Error{
		Code:    CodeInvalidShape,
		Type:    TypeMapping,
		Message: fmt.Sprintf("invalid shape %q: %s", entity, reason),
		Details: map[string]interface{}{
			"entity": entity,
		},
		Timestamp: time.Now(),
	}
}

// ErrConversion reports a column value that could not be coerced.
func ErrConversion(property string, cause error) *Error {
	return &Error{
		Code:    CodeConversion,
		Type:    TypeMapping,
		Message: fmt.Sprintf("cannot convert property %q", property),
		Details: map[string]interface{}{
			"property": property,
		},
		Cause:     cause,
		Timestamp: time.Now(),
	}
}

// IsUnsupported reports whether err is an unsupported-operation failure.
func IsUnsupported(err error) bool {
	return errors.Is(err, ErrUnsupported)
}

// IsNonUnique reports whether err is a non-unique-result failure.
func IsNonUnique(err error) bool {
	return errors.Is(err, ErrNonUnique)
}

// IsCursor reports whether err is a cursor I/O failure.
func IsCursor(err error) bool {
	return errors.Is(err, ErrCursor)
}

// captureStackTrace captures the current stack trace for error reporting.
func captureStackTrace() []string {
	const maxDepth = 32
	pcs := make([]uintptr, maxDepth)
	n := runtime.Callers(3, pcs) // Skip captureStackTrace, the error constructor, and runtime.Callers

	frames := make([]string, 0, n)
	callersFrames := runtime.CallersFrames(pcs[:n])

	for {
		frame, more := callersFrames.Next()
		frames = append(frames, fmt.Sprintf("%s (%s:%d)", frame.Function, frame.File, frame.Line))
		if !more {
			break
		}
	}

	return frames
}

// FormatError is a helper to format any error with debug mode support.
func FormatError(err error, debugMode bool) string {
	if err == nil {
		return ""
	}

	type debugFormatter interface {
		FormatError(bool) string
	}

	if formatter, ok := err.(debugFormatter); ok {
		return formatter.FormatError(debugMode)
	}

	return err.Error()
}
