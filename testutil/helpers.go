package testutil

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/dan-strohschein/syndrdb-aggregates/transport/sqldb"
)

// WithTimeout creates a context with timeout for tests.
// Default timeout is 10 seconds.
func WithTimeout(t *testing.T, timeout ...time.Duration) (context.Context, context.CancelFunc) {
	t.Helper()

	duration := 10 * time.Second
	if len(timeout) > 0 {
		duration = timeout[0]
	}

	ctx, cancel := context.WithTimeout(context.Background(), duration)
	t.Cleanup(cancel)

	return ctx, cancel
}

// RequireNoError fails the test if err is not nil.
func RequireNoError(t *testing.T, err error, msgAndArgs ...any) {
	t.Helper()
	if err != nil {
		if len(msgAndArgs) > 0 {
			t.Fatalf("Unexpected error: %v - %v", err, msgAndArgs)
		} else {
			t.Fatalf("Unexpected error: %v", err)
		}
	}
}

// NewDuckDB opens an in-memory DuckDB database behind a sqldb transport and
// runs the statements in ddl. The transport is closed when the test ends.
func NewDuckDB(t *testing.T, ddl ...string) *sqldb.Transport {
	t.Helper()

	db, err := sql.Open("duckdb", "")
	if err != nil {
		t.Fatalf("failed to open duckdb: %v", err)
	}
	db.SetMaxOpenConns(1)

	tr := sqldb.New(db, sqldb.WithReturning())
	t.Cleanup(func() {
		if err := tr.Close(); err != nil {
			t.Logf("warning: failed to close duckdb: %v", err)
		}
	})

	ctx, _ := WithTimeout(t)
	for _, stmt := range ddl {
		if _, err := tr.Exec(ctx, stmt, nil, nil); err != nil {
			t.Fatalf("failed to run %q: %v", stmt, err)
		}
	}
	return tr
}
