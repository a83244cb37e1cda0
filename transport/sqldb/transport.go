// Package sqldb runs statements through database/sql, for drivers such as
// DuckDB or the pgx stdlib adapter.
package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/dan-strohschein/syndrdb-aggregates/transport"
)

// Option configures a Transport.
type Option func(*Transport)

// WithPlaceholder sets the positional marker style. The default is ?.
func WithPlaceholder(p transport.Placeholder) Option {
	return func(t *Transport) {
		t.placeholder = p
	}
}

// WithReturning reads generated keys through a RETURNING clause instead of
// LastInsertId.
func WithReturning() Option {
	return func(t *Transport) {
		t.returning = true
	}
}

// Transport implements transport.Transport on a *sql.DB.
type Transport struct {
	db          *sql.DB
	placeholder transport.Placeholder
	returning   bool
	metrics     transport.Recorder
}

// New wraps db. Closing the transport closes db.
func New(db *sql.DB, opts ...Option) *Transport {
	t := &Transport{db: db, placeholder: transport.Question}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Open opens driverName with dsn and verifies the connection.
func Open(ctx context.Context, driverName, dsn string, opts ...Option) (*Transport, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return New(db, opts...), nil
}

// DB returns the underlying database handle.
func (t *Transport) DB() *sql.DB {
	return t.db
}

// Query implements transport.Transport
func (t *Transport) Query(ctx context.Context, query string, params transport.Params) (transport.Rows, error) {
	start := time.Now()

	bound, err := transport.Expand(query, params, t.placeholder)
	if err != nil {
		t.metrics.Observe(start, err)
		return nil, err
	}

	r, err := t.db.QueryContext(ctx, bound.SQL, bound.Args...)
	t.metrics.Observe(start, err)
	if err != nil {
		return nil, err
	}

	columns, err := r.Columns()
	if err != nil {
		r.Close()
		return nil, err
	}

	return &rows{rows: r, columns: columns}, nil
}

// Exec implements transport.Transport
func (t *Transport) Exec(ctx context.Context, query string, params transport.Params, keyColumns []string) (transport.Result, error) {
	start := time.Now()
	result, err := t.exec(ctx, t.db, query, params, keyColumns)
	t.metrics.Observe(start, err)
	return result, err
}

// Batch implements transport.Transport. Parameter sets run one by one; a
// failed set is reported as failed and the remaining sets still run.
func (t *Transport) Batch(ctx context.Context, query string, batch []transport.Params, keyColumns []string) ([]transport.BatchResult, error) {
	start := time.Now()

	results := make([]transport.BatchResult, len(batch))
	failures := 0
	for i, params := range batch {
		if err := ctx.Err(); err != nil {
			t.metrics.Observe(start, err)
			return nil, err
		}

		result, err := t.exec(ctx, t.db, query, params, keyColumns)
		if err != nil {
			results[i] = transport.BatchResult{Outcome: transport.Failed(), Err: err}
			failures++
			continue
		}

		outcome := transport.OutcomeFromCount(result.RowsAffected)
		results[i] = transport.BatchResult{Outcome: outcome, Keys: result.Keys}
	}

	t.metrics.ObserveBatch(len(batch))
	if failures > 0 {
		t.metrics.Observe(start, fmt.Errorf("%d of %d batch rows failed", failures, len(batch)))
	} else {
		t.metrics.Observe(start, nil)
	}
	return results, nil
}

// Close closes the database handle
func (t *Transport) Close() error {
	return t.db.Close()
}

// GetMetrics implements transport.Transport
func (t *Transport) GetMetrics() transport.TransportMetrics {
	return t.metrics.Snapshot()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (t *Transport) exec(ctx context.Context, db execer, query string, params transport.Params, keyColumns []string) (transport.Result, error) {
	if len(keyColumns) > 0 && t.returning {
		query = transport.Returning(query, keyColumns)
	}

	bound, err := transport.Expand(query, params, t.placeholder)
	if err != nil {
		return transport.Result{}, err
	}

	if len(keyColumns) > 0 && t.returning {
		values := make([]any, len(keyColumns))
		dest := make([]any, len(keyColumns))
		for i := range values {
			dest[i] = &values[i]
		}
		if err := db.QueryRowContext(ctx, bound.SQL, bound.Args...).Scan(dest...); err != nil {
			return transport.Result{}, err
		}

		keys := make(map[string]any, len(keyColumns))
		for i, col := range keyColumns {
			keys[col] = values[i]
		}
		return transport.Result{RowsAffected: 1, Keys: keys}, nil
	}

	res, err := db.ExecContext(ctx, bound.SQL, bound.Args...)
	if err != nil {
		return transport.Result{}, err
	}

	result := transport.Result{RowsAffected: transport.SuccessNoInfo}
	if n, err := res.RowsAffected(); err == nil {
		result.RowsAffected = n
	}

	if len(keyColumns) == 1 {
		if id, err := res.LastInsertId(); err == nil {
			result.Keys = map[string]any{keyColumns[0]: id}
		}
	}

	return result, nil
}

type rows struct {
	rows    *sql.Rows
	columns []string
	closed  bool
}

func (r *rows) Columns() []string {
	return r.columns
}

func (r *rows) Next() bool {
	return r.rows.Next()
}

func (r *rows) Values() ([]any, error) {
	values := make([]any, len(r.columns))
	dest := make([]any, len(r.columns))
	for i := range values {
		dest[i] = &values[i]
	}

	if err := r.rows.Scan(dest...); err != nil {
		return nil, err
	}

	// drivers may reuse byte buffers between rows
	for i, v := range values {
		if b, ok := v.([]byte); ok {
			values[i] = append([]byte(nil), b...)
		}
	}

	return values, nil
}

func (r *rows) Err() error {
	return r.rows.Err()
}

func (r *rows) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.rows.Close()
}
