package dataaccess

import (
	"encoding/json"
	"fmt"
	"time"
)

// ErrBatch is the sentinel matched by errors.Is for any *BatchError.
var ErrBatch = &Error{Code: CodeBatchPartialFailure}

// BatchError reports a batch in which one or more parameter sets failed.
// The per-row outcomes are returned next to it by the caller; this error only
// carries the failed positions and the first row failure.
type BatchError struct {
	Code          string                 `json:"code"`
	Type          string                 `json:"type"`
	Message       string                 `json:"message"`
	Statement     string                 `json:"statement,omitempty"`
	FailedIndexes []int                  `json:"failed_indexes"`
	Total         int                    `json:"total"`
	Details       map[string]interface{} `json:"details,omitempty"`
	Cause         error                  `json:"cause,omitempty"`
	Timestamp     time.Time              `json:"timestamp,omitempty"`
}

// ErrBatchPartialFailure creates a BatchError for the given failed rows.
func ErrBatchPartialFailure(statement string, total int, failed []int, cause error) *BatchError {
	return &BatchError{
		Code:          CodeBatchPartialFailure,
		Type:          TypeDataAccess,
		Message:       fmt.Sprintf("%d of %d batch rows failed", len(failed), total),
		Statement:     statement,
		FailedIndexes: failed,
		Total:         total,
		Cause:         cause,
		Timestamp:     time.Now(),
	}
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	return e.FormatError(false)
}

// FormatError formats the error based on debug mode.
func (e *BatchError) FormatError(debugMode bool) string {
	if !debugMode {
		if e.Cause != nil {
			return fmt.Sprintf("%s: %s (first failure: %s)", e.Code, e.Message, e.Cause.Error())
		}
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}

	errorData := map[string]interface{}{
		"code":           e.Code,
		"type":           e.Type,
		"message":        e.Message,
		"failed_indexes": e.FailedIndexes,
		"total":          e.Total,
	}

	if e.Statement != "" {
		errorData["statement"] = e.Statement
	}

	if len(e.Details) > 0 {
		errorData["details"] = e.Details
	}

	if e.Cause != nil {
		errorData["cause"] = map[string]interface{}{"message": e.Cause.Error()}
	}

	if !e.Timestamp.IsZero() {
		errorData["timestamp"] = e.Timestamp.Format(time.RFC3339Nano)
	}

	b, _ := json.MarshalIndent(errorData, "", "  ")
	return string(b)
}

// Unwrap returns the first row failure.
func (e *BatchError) Unwrap() error {
	return e.Cause
}

// Is matches ErrBatch.
func (e *BatchError) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}
