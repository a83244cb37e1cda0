// Package mock provides a scripted transport for tests.
package mock

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dan-strohschein/syndrdb-aggregates/transport"
)

// Call is one statement received by the mock.
type Call struct {
	Kind       string
	SQL        string
	Params     []transport.Params
	KeyColumns []string
}

type queryScript struct {
	contains  string
	columns   []string
	rows      [][]any
	err       error
	failAfter int
	rowErr    error
}

type execScript struct {
	contains string
	result   transport.Result
	err      error
}

type batchScript struct {
	contains  string
	failures  map[int]error
	unknown   bool
	keyColumn string
	nextKey   int64
	err       error
}

// MockTransport implements transport.Transport for testing. Scripts are
// matched by SQL substring in registration order; an empty substring
// matches every statement.
type MockTransport struct {
	mu      sync.RWMutex
	queries []*queryScript
	execs   []*execScript
	batches []*batchScript
	delay   time.Duration
	closed  bool
	history []Call

	queryCalls atomic.Int32
	execCalls  atomic.Int32
	batchCalls atomic.Int32
	closeCalls atomic.Int32
	openRows   atomic.Int32

	metrics transport.Recorder
}

// NewMockTransport creates a new mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{history: make([]Call, 0)}
}

// WithRows scripts the result set of queries containing contains.
func (m *MockTransport) WithRows(contains string, columns []string, rows ...[]any) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, &queryScript{contains: contains, columns: columns, rows: rows, failAfter: -1})
	return m
}

// WithQueryError makes matching queries fail before returning rows.
func (m *MockTransport) WithQueryError(contains string, err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, &queryScript{contains: contains, err: err, failAfter: -1})
	return m
}

// WithRowError scripts a result set whose cursor fails with err when
// advancing past the first n rows.
func (m *MockTransport) WithRowError(contains string, columns []string, n int, err error, rows ...[]any) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queries = append(m.queries, &queryScript{contains: contains, columns: columns, rows: rows, failAfter: n, rowErr: err})
	return m
}

// WithExecResult scripts the result of matching Exec calls.
func (m *MockTransport) WithExecResult(contains string, result transport.Result) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execs = append(m.execs, &execScript{contains: contains, result: result})
	return m
}

// WithExecError makes matching Exec calls fail.
func (m *MockTransport) WithExecError(contains string, err error) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.execs = append(m.execs, &execScript{contains: contains, err: err})
	return m
}

// WithBatchFailure makes the parameter set at index of matching batches fail.
func (m *MockTransport) WithBatchFailure(contains string, index int, err error) *MockTransport {
	s := m.batchScript(contains)
	m.mu.Lock()
	defer m.mu.Unlock()
	s.failures[index] = err
	return m
}

// WithUnknownCounts makes matching batches report no row counts.
func (m *MockTransport) WithUnknownCounts(contains string) *MockTransport {
	s := m.batchScript(contains)
	m.mu.Lock()
	defer m.mu.Unlock()
	s.unknown = true
	return m
}

// WithGeneratedKeys makes matching batches and Exec calls report sequential
// keys for column, starting at first.
func (m *MockTransport) WithGeneratedKeys(contains, column string, first int64) *MockTransport {
	s := m.batchScript(contains)
	m.mu.Lock()
	defer m.mu.Unlock()
	s.keyColumn = column
	s.nextKey = first
	return m
}

// WithBatchError makes matching batches fail as a whole.
func (m *MockTransport) WithBatchError(contains string, err error) *MockTransport {
	s := m.batchScript(contains)
	m.mu.Lock()
	defer m.mu.Unlock()
	s.err = err
	return m
}

// WithDelay adds a delay to every statement
func (m *MockTransport) WithDelay(delay time.Duration) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = delay
	return m
}

func (m *MockTransport) batchScript(contains string) *batchScript {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.batches {
		if s.contains == contains {
			return s
		}
	}
	s := &batchScript{contains: contains, failures: make(map[int]error)}
	m.batches = append(m.batches, s)
	return s
}

// begin records the call and applies closed state and delay.
func (m *MockTransport) begin(ctx context.Context, call Call) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return fmt.Errorf("transport is closed")
	}
	m.history = append(m.history, call)
	delay := m.delay
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return ctx.Err()
}

// Query implements transport.Transport
func (m *MockTransport) Query(ctx context.Context, sql string, params transport.Params) (transport.Rows, error) {
	m.queryCalls.Add(1)
	start := time.Now()

	if err := m.begin(ctx, Call{Kind: "query", SQL: sql, Params: []transport.Params{params}}); err != nil {
		m.metrics.Observe(start, err)
		return nil, err
	}
	if _, err := transport.Expand(sql, params, transport.Question); err != nil {
		m.metrics.Observe(start, err)
		return nil, err
	}

	m.mu.RLock()
	var script *queryScript
	for _, s := range m.queries {
		if strings.Contains(sql, s.contains) {
			script = s
			break
		}
	}
	m.mu.RUnlock()

	if script == nil {
		m.metrics.Observe(start, nil)
		m.openRows.Add(1)
		return &rows{open: &m.openRows, failAfter: -1}, nil
	}
	if script.err != nil {
		m.metrics.Observe(start, script.err)
		return nil, script.err
	}

	m.metrics.Observe(start, nil)
	m.openRows.Add(1)
	return &rows{
		open:      &m.openRows,
		columns:   script.columns,
		data:      script.rows,
		failAfter: script.failAfter,
		failErr:   script.rowErr,
	}, nil
}

// Exec implements transport.Transport
func (m *MockTransport) Exec(ctx context.Context, sql string, params transport.Params, keyColumns []string) (transport.Result, error) {
	m.execCalls.Add(1)
	start := time.Now()

	if err := m.begin(ctx, Call{Kind: "exec", SQL: sql, Params: []transport.Params{params}, KeyColumns: keyColumns}); err != nil {
		m.metrics.Observe(start, err)
		return transport.Result{}, err
	}
	if _, err := transport.Expand(sql, params, transport.Question); err != nil {
		m.metrics.Observe(start, err)
		return transport.Result{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.execs {
		if strings.Contains(sql, s.contains) {
			m.metrics.Observe(start, s.err)
			return s.result, s.err
		}
	}

	result := transport.Result{RowsAffected: 1}
	for _, s := range m.batches {
		if s.keyColumn != "" && strings.Contains(sql, s.contains) {
			result.Keys = map[string]any{s.keyColumn: s.nextKey}
			s.nextKey++
			break
		}
	}
	m.metrics.Observe(start, nil)
	return result, nil
}

// Batch implements transport.Transport
func (m *MockTransport) Batch(ctx context.Context, sql string, batch []transport.Params, keyColumns []string) ([]transport.BatchResult, error) {
	m.batchCalls.Add(1)
	start := time.Now()

	if err := m.begin(ctx, Call{Kind: "batch", SQL: sql, Params: batch, KeyColumns: keyColumns}); err != nil {
		m.metrics.Observe(start, err)
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var script *batchScript
	for _, s := range m.batches {
		if strings.Contains(sql, s.contains) {
			script = s
			break
		}
	}
	if script != nil && script.err != nil {
		m.metrics.Observe(start, script.err)
		return nil, script.err
	}

	results := make([]transport.BatchResult, len(batch))
	for i, params := range batch {
		if _, err := transport.Expand(sql, params, transport.Question); err != nil {
			results[i] = transport.BatchResult{Outcome: transport.Failed(), Err: err}
			continue
		}
		if script == nil {
			results[i] = transport.BatchResult{Outcome: transport.RowsAffected(1)}
			continue
		}
		if err, failed := script.failures[i]; failed {
			results[i] = transport.BatchResult{Outcome: transport.Failed(), Err: err}
			continue
		}

		result := transport.BatchResult{Outcome: transport.RowsAffected(1)}
		if script.unknown {
			result.Outcome = transport.Unknown()
		}
		if script.keyColumn != "" {
			result.Keys = map[string]any{script.keyColumn: script.nextKey}
			script.nextKey++
		}
		results[i] = result
	}

	m.metrics.ObserveBatch(len(batch))
	m.metrics.Observe(start, nil)
	return results, nil
}

// Close implements transport.Transport
func (m *MockTransport) Close() error {
	m.closeCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// GetMetrics implements transport.Transport
func (m *MockTransport) GetMetrics() transport.TransportMetrics {
	return m.metrics.Snapshot()
}

// GetQueryCallCount returns the number of times Query was called
func (m *MockTransport) GetQueryCallCount() int {
	return int(m.queryCalls.Load())
}

// GetExecCallCount returns the number of times Exec was called
func (m *MockTransport) GetExecCallCount() int {
	return int(m.execCalls.Load())
}

// GetBatchCallCount returns the number of times Batch was called
func (m *MockTransport) GetBatchCallCount() int {
	return int(m.batchCalls.Load())
}

// GetCloseCallCount returns the number of times Close was called
func (m *MockTransport) GetCloseCallCount() int {
	return int(m.closeCalls.Load())
}

// OpenRows returns the number of cursors not yet closed.
func (m *MockTransport) OpenRows() int {
	return int(m.openRows.Load())
}

// GetHistory returns all statements received by this transport
func (m *MockTransport) GetHistory() []Call {
	m.mu.RLock()
	defer m.mu.RUnlock()

	history := make([]Call, len(m.history))
	copy(history, m.history)
	return history
}

// IsClosed returns whether the transport has been closed
func (m *MockTransport) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

type rows struct {
	open      *atomic.Int32
	columns   []string
	data      [][]any
	pos       int
	failAfter int
	failErr   error
	err       error
	closed    bool
}

func (r *rows) Columns() []string {
	return r.columns
}

func (r *rows) Next() bool {
	if r.closed || r.err != nil {
		return false
	}
	if r.failAfter >= 0 && r.pos == r.failAfter {
		r.err = r.failErr
		return false
	}
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *rows) Values() ([]any, error) {
	if r.closed {
		return nil, fmt.Errorf("rows are closed")
	}
	if r.pos == 0 || r.pos > len(r.data) {
		return nil, fmt.Errorf("no current row")
	}
	values := make([]any, len(r.data[r.pos-1]))
	copy(values, r.data[r.pos-1])
	return values, nil
}

func (r *rows) Err() error {
	return r.err
}

func (r *rows) Close() error {
	if !r.closed {
		r.closed = true
		r.open.Add(-1)
	}
	return nil
}
