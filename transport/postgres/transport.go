// Package postgres runs statements on PostgreSQL through a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dan-strohschein/syndrdb-aggregates/transport"
)

// Querier is the subset of *pgxpool.Pool, *pgx.Conn and pgx.Tx used here.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Transport implements transport.Transport on pgx.
type Transport struct {
	db      Querier
	pool    *pgxpool.Pool
	metrics transport.Recorder
}

// New wraps an existing pool, connection or transaction. Close is the
// caller's responsibility.
func New(db Querier) *Transport {
	return &Transport{db: db}
}

// Connect opens a pool for connStr and verifies it with a ping.
func Connect(ctx context.Context, connStr string) (*Transport, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err = pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &Transport{db: pool, pool: pool}, nil
}

// Query implements transport.Transport
func (t *Transport) Query(ctx context.Context, sql string, params transport.Params) (transport.Rows, error) {
	start := time.Now()

	bound, err := transport.Expand(sql, params, transport.Dollar)
	if err != nil {
		t.metrics.Observe(start, err)
		return nil, err
	}

	r, err := t.db.Query(ctx, bound.SQL, bound.Args...)
	t.metrics.Observe(start, err)
	if err != nil {
		return nil, err
	}

	return &rows{rows: r}, nil
}

// Exec implements transport.Transport. Keys are read through a RETURNING clause.
func (t *Transport) Exec(ctx context.Context, sql string, params transport.Params, keyColumns []string) (transport.Result, error) {
	start := time.Now()

	if len(keyColumns) > 0 {
		sql = transport.Returning(sql, keyColumns)
	}

	bound, err := transport.Expand(sql, params, transport.Dollar)
	if err != nil {
		t.metrics.Observe(start, err)
		return transport.Result{}, err
	}

	if len(keyColumns) == 0 {
		tag, err := t.db.Exec(ctx, bound.SQL, bound.Args...)
		t.metrics.Observe(start, err)
		if err != nil {
			return transport.Result{}, err
		}
		return transport.Result{RowsAffected: tag.RowsAffected()}, nil
	}

	keys, err := scanKeys(t.db.QueryRow(ctx, bound.SQL, bound.Args...), keyColumns)
	t.metrics.Observe(start, err)
	if err != nil {
		return transport.Result{}, err
	}

	return transport.Result{RowsAffected: 1, Keys: keys}, nil
}

// Batch implements transport.Transport. The batch runs in one implicit
// transaction: once a row fails, PostgreSQL rolls back the rows before it,
// so their outcomes are reported as unknown.
func (t *Transport) Batch(ctx context.Context, sql string, batch []transport.Params, keyColumns []string) ([]transport.BatchResult, error) {
	start := time.Now()

	if len(keyColumns) > 0 {
		sql = transport.Returning(sql, keyColumns)
	}

	b := &pgx.Batch{}
	for i, params := range batch {
		bound, err := transport.Expand(sql, params, transport.Dollar)
		if err != nil {
			t.metrics.Observe(start, err)
			return nil, fmt.Errorf("batch row %d: %w", i, err)
		}
		b.Queue(bound.SQL, bound.Args...)
	}

	br := t.db.SendBatch(ctx, b)
	defer br.Close()

	results := make([]transport.BatchResult, len(batch))
	failed := false
	for i := range batch {
		if len(keyColumns) > 0 {
			keys, err := scanKeys(br.QueryRow(), keyColumns)
			if err != nil {
				results[i] = transport.BatchResult{Outcome: transport.Failed(), Err: err}
				failed = true
				continue
			}
			results[i] = transport.BatchResult{Outcome: transport.RowsAffected(1), Keys: keys}
			continue
		}

		tag, err := br.Exec()
		if err != nil {
			results[i] = transport.BatchResult{Outcome: transport.Failed(), Err: err}
			failed = true
			continue
		}
		results[i] = transport.BatchResult{Outcome: transport.RowsAffected(tag.RowsAffected())}
	}

	if failed {
		for i := range results {
			if !results[i].Outcome.Failed() {
				results[i] = transport.BatchResult{Outcome: transport.Unknown()}
			}
		}
	}

	t.metrics.ObserveBatch(len(batch))
	if failed {
		t.metrics.Observe(start, errors.New("batch aborted"))
	} else {
		t.metrics.Observe(start, nil)
	}
	return results, nil
}

// Close closes the pool when the transport opened it.
func (t *Transport) Close() error {
	if t.pool != nil {
		t.pool.Close()
	}
	return nil
}

// GetMetrics implements transport.Transport
func (t *Transport) GetMetrics() transport.TransportMetrics {
	return t.metrics.Snapshot()
}

func scanKeys(row pgx.Row, keyColumns []string) (map[string]any, error) {
	values := make([]any, len(keyColumns))
	dest := make([]any, len(keyColumns))
	for i := range values {
		dest[i] = &values[i]
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	keys := make(map[string]any, len(keyColumns))
	for i, col := range keyColumns {
		keys[col] = values[i]
	}
	return keys, nil
}

type rows struct {
	rows   pgx.Rows
	closed bool
}

func (r *rows) Columns() []string {
	fields := r.rows.FieldDescriptions()
	columns := make([]string, len(fields))
	for i, f := range fields {
		columns[i] = f.Name
	}
	return columns
}

func (r *rows) Next() bool {
	return r.rows.Next()
}

func (r *rows) Values() ([]any, error) {
	return r.rows.Values()
}

func (r *rows) Err() error {
	return r.rows.Err()
}

func (r *rows) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.rows.Close()
	return r.rows.Err()
}
