package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/dan-strohschein/syndrdb-aggregates/transport"
)

func TestClassifyStatement(t *testing.T) {
	tests := []struct {
		statement string
		expected  string
	}{
		{"SELECT t0.id AS id FROM purchase_order t0", StatementQuery},
		{"  select 1", StatementQuery},
		{"WITH x AS (SELECT 1) SELECT * FROM x", StatementQuery},
		{"INSERT INTO t VALUES (:a)", StatementMutation},
		{"update t set a = 1", StatementMutation},
		{"DELETE FROM t", StatementMutation},
		{"CREATE TABLE t (id BIGINT)", StatementSchema},
		{"drop table t", StatementSchema},
		{"VACUUM", StatementUnknown},
		{"", StatementUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.statement, func(t *testing.T) {
			if got := classifyStatement(tt.statement); got != tt.expected {
				t.Errorf("classifyStatement(%q) = %s, want %s", tt.statement, got, tt.expected)
			}
		})
	}
}

func TestAfterHooksAllRun(t *testing.T) {
	chain := &hookChain{logger: NewNoopLogger()}
	first := &recordingHook{name: "first", afterError: errors.New("first")}
	second := &recordingHook{name: "second", afterError: errors.New("second")}
	chain.register(first)
	chain.register(second)

	err := chain.after(context.Background(), &HookContext{Metadata: map[string]any{}})
	if err == nil || err.Error() != "second" {
		t.Errorf("expected last error, got %v", err)
	}
	if len(first.after) != 1 || len(second.after) != 1 {
		t.Error("expected every After hook to run")
	}
}

func TestLoggingHook(t *testing.T) {
	var buf bytes.Buffer
	hook := NewLoggingHook(NewLogger("DEBUG", &buf), true, true, true)

	hookCtx := &HookContext{
		Statement:     "INSERT INTO t VALUES (:a)",
		StatementType: StatementMutation,
		Operation:     "BatchExecute",
		Params:        []transport.Params{{"a": 1}, {"a": 2}},
		TraceID:       "trace-1",
		Metadata:      map[string]any{},
	}
	hook.Before(context.Background(), hookCtx)
	hookCtx.Result = []transport.Outcome{transport.RowsAffected(1), transport.Unknown()}
	hookCtx.Duration = 3 * time.Millisecond
	hook.After(context.Background(), hookCtx)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 log lines, got %d: %s", len(lines), buf.String())
	}

	var completed map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &completed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if completed["message"] != "statement completed" || completed["result"] != "at least 1 row(s)" {
		t.Errorf("unexpected log entry %v", completed)
	}

	buf.Reset()
	hookCtx.Error = errors.New("boom")
	hook.After(context.Background(), hookCtx)
	if !strings.Contains(buf.String(), `"level":"ERROR"`) {
		t.Errorf("expected error entry, got %s", buf.String())
	}
}

func TestMetricsHook(t *testing.T) {
	hook := NewMetricsHook()
	ctx := context.Background()

	hook.After(ctx, &HookContext{StatementType: StatementQuery, Duration: 2 * time.Millisecond})
	hook.After(ctx, &HookContext{StatementType: StatementMutation, Duration: 4 * time.Millisecond, Error: errors.New("x")})
	hook.After(ctx, &HookContext{
		StatementType: StatementMutation,
		Params:        make([]transport.Params, 5),
		Result:        []transport.Outcome{},
	})

	stats := hook.GetStats()
	if stats["total_statements"] != uint64(3) {
		t.Errorf("expected 3 statements, got %v", stats["total_statements"])
	}
	if stats["total_queries"] != uint64(1) || stats["total_mutations"] != uint64(2) {
		t.Errorf("unexpected counts %v", stats)
	}
	if stats["total_batch_rows"] != uint64(5) || stats["total_errors"] != uint64(1) {
		t.Errorf("unexpected counts %v", stats)
	}
	if stats["avg_duration_ns"] != int64(2*time.Millisecond) {
		t.Errorf("unexpected average %v", stats["avg_duration_ns"])
	}

	hook.Reset()
	if hook.TotalStatements.Load() != 0 {
		t.Error("expected reset counters")
	}
}

func TestTracingHook(t *testing.T) {
	hook := NewTracingHook("duckdb", noop.NewTracerProvider())
	hookCtx := &HookContext{
		Statement:     "SELECT 1",
		StatementType: StatementQuery,
		Operation:     "FindAll",
		StartTime:     time.Now(),
		Metadata:      map[string]any{},
	}

	if err := hook.Before(context.Background(), hookCtx); err != nil {
		t.Fatalf("Before failed: %v", err)
	}
	if _, ok := hookCtx.Metadata[spanKey].(trace.Span); !ok {
		t.Fatal("expected a span in metadata")
	}

	hookCtx.Error = errors.New("boom")
	if err := hook.After(context.Background(), hookCtx); err != nil {
		t.Fatalf("After failed: %v", err)
	}

	// After without a started span is a no-op.
	if err := hook.After(context.Background(), &HookContext{Metadata: map[string]any{}}); err != nil {
		t.Fatalf("After failed: %v", err)
	}
}
