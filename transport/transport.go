// Package transport defines the statement execution port the reader and the
// insert strategy run on. Backends live in the sqldb, pgx and mock packages.
package transport

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Params are named statement parameters, referenced as :name in SQL text.
type Params map[string]any

// Rows is a forward-only row cursor. Values returns the current row and may
// be called once per Next.
type Rows interface {
	// Columns returns the result column labels.
	Columns() []string

	// Next advances to the next row and reports whether there is one.
	Next() bool

	// Values returns all column values of the current row. SQL NULL is nil.
	Values() ([]any, error)

	// Err returns the error that stopped iteration, if any.
	Err() error

	// Close releases the cursor. It is safe to call more than once.
	Close() error
}

// Result is the outcome of a single statement.
type Result struct {
	RowsAffected int64

	// Keys holds generated key values by column. Nil when the driver reported none.
	Keys map[string]any
}

// Key returns the single generated key, if exactly one was reported.
func (r Result) Key() (any, bool) {
	if len(r.Keys) != 1 {
		return nil, false
	}
	for _, v := range r.Keys {
		return v, v != nil
	}
	return nil, false
}

// BatchResult is the outcome of one parameter set of a batch.
type BatchResult struct {
	Outcome Outcome
	Keys    map[string]any
	Err     error
}

// Transport executes SQL with named parameters.
type Transport interface {
	// Query runs a statement returning rows. The caller closes the rows.
	Query(ctx context.Context, sql string, params Params) (Rows, error)

	// Exec runs a statement. With keyColumns the generated keys are harvested.
	Exec(ctx context.Context, sql string, params Params, keyColumns []string) (Result, error)

	// Batch runs sql once per parameter set and reports one result per set.
	// The returned error is reserved for failures that affect the whole batch.
	Batch(ctx context.Context, sql string, batch []Params, keyColumns []string) ([]BatchResult, error)

	// Close closes the transport connection
	Close() error

	// GetMetrics returns transport performance metrics
	GetMetrics() TransportMetrics
}

// TransportMetrics contains performance and health metrics
type TransportMetrics struct {
	// TotalStatements is the total number of statements sent
	TotalStatements int64

	// TotalErrors is the total number of errors encountered
	TotalErrors int64

	// TotalBatchRows is the number of parameter sets executed in batches
	TotalBatchRows int64

	// AverageLatency is the average statement latency
	AverageLatency time.Duration

	// LastError is the most recent error encountered
	LastError error

	// LastErrorTime is when the last error occurred
	LastErrorTime time.Time
}

// Recorder accumulates TransportMetrics for backends.
type Recorder struct {
	statements atomic.Int64
	errors     atomic.Int64
	batchRows  atomic.Int64
	latencySum atomic.Int64

	mu            sync.Mutex
	lastError     error
	lastErrorTime time.Time
}

// Observe records one statement that started at start.
func (r *Recorder) Observe(start time.Time, err error) {
	r.statements.Add(1)
	r.latencySum.Add(int64(time.Since(start)))
	if err != nil {
		r.errors.Add(1)
		r.mu.Lock()
		r.lastError = err
		r.lastErrorTime = time.Now()
		r.mu.Unlock()
	}
}

// ObserveBatch records the size of an executed batch.
func (r *Recorder) ObserveBatch(rows int) {
	r.batchRows.Add(int64(rows))
}

// Snapshot returns the current metrics.
func (r *Recorder) Snapshot() TransportMetrics {
	m := TransportMetrics{
		TotalStatements: r.statements.Load(),
		TotalErrors:     r.errors.Load(),
		TotalBatchRows:  r.batchRows.Load(),
	}
	if m.TotalStatements > 0 {
		m.AverageLatency = time.Duration(r.latencySum.Load() / m.TotalStatements)
	}

	r.mu.Lock()
	m.LastError = r.lastError
	m.LastErrorTime = r.lastErrorTime
	r.mu.Unlock()

	return m
}

// Factory creates new transport instances
type Factory func(ctx context.Context) (Transport, error)
