package dataaccess

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

func TestUnsupportedOperationError(t *testing.T) {
	err := ErrUnsupportedOperation("FindAllSorted", "sorting requires a different reading strategy")

	if !IsUnsupported(err) {
		t.Fatalf("expected IsUnsupported to match %v", err)
	}

	if IsNonUnique(err) || IsCursor(err) {
		t.Errorf("unsupported error should not match other codes")
	}

	if !strings.HasPrefix(err.Error(), CodeUnsupportedOperation+": ") {
		t.Errorf("unexpected message: %s", err.Error())
	}
}

func TestCursorErrorUnwrap(t *testing.T) {
	err := ErrCursorIO("next", io.ErrUnexpectedEOF)

	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("expected cursor error to unwrap to its cause")
	}

	if !IsCursor(fmt.Errorf("reading aggregate: %w", err)) {
		t.Error("expected wrapped cursor error to be detected")
	}

	if !strings.Contains(err.Error(), "caused by") {
		t.Errorf("expected cause in message, got %s", err.Error())
	}
}

func TestNonUniqueDetails(t *testing.T) {
	err := ErrNonUniqueResult("Order", 1, 2)

	var parsed map[string]interface{}
	if jsonErr := json.Unmarshal([]byte(err.FormatError(true)), &parsed); jsonErr != nil {
		t.Fatalf("debug format should be valid JSON: %v", jsonErr)
	}

	if parsed["code"] != CodeNonUniqueResult {
		t.Errorf("expected code=%s, got %v", CodeNonUniqueResult, parsed["code"])
	}

	details, ok := parsed["details"].(map[string]interface{})
	if !ok {
		t.Fatal("expected details object")
	}

	if details["actual"] != float64(2) {
		t.Errorf("expected actual=2, got %v", details["actual"])
	}
}

func TestBatchError(t *testing.T) {
	cause := errors.New("duplicate key")
	err := ErrBatchPartialFailure("INSERT INTO item", 3, []int{1}, cause)

	if !errors.Is(err, ErrBatch) {
		t.Error("expected batch error to match ErrBatch")
	}

	if !errors.Is(err, cause) {
		t.Error("expected batch error to unwrap to first failure")
	}

	if err.Message != "1 of 3 batch rows failed" {
		t.Errorf("unexpected message %q", err.Message)
	}
}

func TestFormatErrorFallback(t *testing.T) {
	if got := FormatError(nil, true); got != "" {
		t.Errorf("expected empty string for nil, got %q", got)
	}

	plain := errors.New("plain")
	if got := FormatError(plain, true); got != "plain" {
		t.Errorf("expected plain message, got %q", got)
	}
}
