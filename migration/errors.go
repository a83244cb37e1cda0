package migration

import (
	"errors"
	"fmt"

	"github.com/dan-strohschein/syndrdb-aggregates/dataaccess"
)

// Error codes.
const (
	CodeNotFound         = "E_MIGRATION_NOT_FOUND"
	CodeFailed           = "E_MIGRATION_FAILED"
	CodeChecksumMismatch = "E_MIGRATION_CHECKSUM"
	CodeConflict         = "E_MIGRATION_CONFLICT"
	CodeNotReversible    = "E_MIGRATION_NOT_REVERSIBLE"
	CodeLocked           = "E_MIGRATION_LOCKED"
)

// TypeMigration is the error type of every migration error.
const TypeMigration = "MIGRATION_ERROR"

func newError(code, message string, details map[string]interface{}, cause error) *dataaccess.Error {
	return &dataaccess.Error{
		Code:    code,
		Type:    TypeMigration,
		Message: message,
		Details: details,
		Cause:   cause,
	}
}

// ErrNotFound is returned for a migration that is unknown or not applied.
func ErrNotFound(id string) error {
	return newError(CodeNotFound, fmt.Sprintf("migration '%s' not found", id),
		map[string]interface{}{"migrationId": id}, nil)
}

// ErrFailed wraps the failure of one statement of a migration.
func ErrFailed(id string, cause error) error {
	return newError(CodeFailed, fmt.Sprintf("migration '%s' failed to execute", id),
		map[string]interface{}{"migrationId": id}, cause)
}

// ErrChecksumMismatch reports an applied migration whose content changed.
func ErrChecksumMismatch(id, expected, actual string) error {
	return newError(CodeChecksumMismatch, fmt.Sprintf("migration '%s' has been modified (checksum mismatch)", id),
		map[string]interface{}{"migrationId": id, "expected": expected, "actual": actual}, nil)
}

// ErrConflict carries every conflict found by the validator.
func ErrConflict(conflicts []Conflict) error {
	return newError(CodeConflict, fmt.Sprintf("%d migration conflict(s) detected", len(conflicts)),
		map[string]interface{}{"conflicts": conflicts}, nil)
}

// ErrNotReversible reports a statement with no generated rollback.
func ErrNotReversible(statement, reason string) error {
	return newError(CodeNotReversible, fmt.Sprintf("statement cannot be reversed automatically: %s", reason),
		map[string]interface{}{"statement": statement}, nil)
}

// ErrLocked reports a lock held by another process.
func ErrLocked(meta *LockMetadata) error {
	return newError(CodeLocked, fmt.Sprintf("migrations are locked by %s@%s (PID %d) since %s",
		meta.Holder, meta.Hostname, meta.PID, meta.Timestamp.Format("2006-01-02 15:04:05")),
		map[string]interface{}{"holder": meta.Holder, "hostname": meta.Hostname, "pid": meta.PID}, nil)
}

// HasCode reports whether err is a migration error with code.
func HasCode(err error, code string) bool {
	var e *dataaccess.Error
	return errors.As(err, &e) && e.Code == code
}
