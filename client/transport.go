package client

import (
	"context"
	"time"

	"github.com/dan-strohschein/syndrdb-aggregates/transport"
)

// callInfo identifies the client call a statement belongs to.
type callInfo struct {
	operation string
	traceID   string
}

const callKey contextKey = "call"

func withCall(ctx context.Context, call callInfo) context.Context {
	return context.WithValue(WithTraceID(ctx, call.traceID), callKey, call)
}

// hookedTransport runs every statement through the client's hook chain and
// debug logging before handing it to the wrapped transport.
type hookedTransport struct {
	next   transport.Transport
	hooks  *hookChain
	logger Logger
	debug  func() bool
}

func (t *hookedTransport) begin(ctx context.Context, sql string, params []transport.Params) (*HookContext, error) {
	call, _ := ctx.Value(callKey).(callInfo)
	hookCtx := &HookContext{
		Statement:     sql,
		StatementType: classifyStatement(sql),
		Operation:     call.operation,
		Params:        params,
		StartTime:     time.Now(),
		Metadata:      make(map[string]any),
		TraceID:       call.traceID,
	}

	if err := t.hooks.before(ctx, hookCtx); err != nil {
		return nil, err
	}

	if t.debug() {
		t.logger.Debug("sending statement",
			String("statement", hookCtx.Statement),
			String("operation", hookCtx.Operation),
			Int("param_sets", len(params)),
			String("trace_id", hookCtx.TraceID))
	}
	return hookCtx, nil
}

func (t *hookedTransport) end(ctx context.Context, hookCtx *HookContext, result any, err error) error {
	hookCtx.Result = result
	hookCtx.Error = err
	hookCtx.Duration = time.Since(hookCtx.StartTime)

	if t.debug() {
		t.logger.Debug("statement finished",
			String("trace_id", hookCtx.TraceID),
			Duration("elapsed", hookCtx.Duration),
			Bool("success", err == nil))
	}

	if hookErr := t.hooks.after(ctx, hookCtx); hookErr != nil {
		return hookErr
	}
	return err
}

func (t *hookedTransport) Query(ctx context.Context, sql string, params transport.Params) (transport.Rows, error) {
	hookCtx, err := t.begin(ctx, sql, []transport.Params{params})
	if err != nil {
		return nil, err
	}

	rows, err := t.next.Query(ctx, hookCtx.Statement, params)
	if err = t.end(ctx, hookCtx, nil, err); err != nil {
		if rows != nil {
			rows.Close()
		}
		return nil, err
	}
	return rows, nil
}

func (t *hookedTransport) Exec(ctx context.Context, sql string, params transport.Params, keyColumns []string) (transport.Result, error) {
	hookCtx, err := t.begin(ctx, sql, []transport.Params{params})
	if err != nil {
		return transport.Result{}, err
	}

	result, err := t.next.Exec(ctx, hookCtx.Statement, params, keyColumns)
	if err = t.end(ctx, hookCtx, result, err); err != nil {
		return transport.Result{}, err
	}
	return result, nil
}

func (t *hookedTransport) Batch(ctx context.Context, sql string, batch []transport.Params, keyColumns []string) ([]transport.BatchResult, error) {
	hookCtx, err := t.begin(ctx, sql, batch)
	if err != nil {
		return nil, err
	}

	results, err := t.next.Batch(ctx, hookCtx.Statement, batch, keyColumns)
	var outcomes []transport.Outcome
	if err == nil {
		outcomes = make([]transport.Outcome, len(results))
		for i, r := range results {
			outcomes[i] = r.Outcome
		}
	}
	if err = t.end(ctx, hookCtx, outcomes, err); err != nil {
		return nil, err
	}
	return results, nil
}

func (t *hookedTransport) Close() error {
	return t.next.Close()
}

func (t *hookedTransport) GetMetrics() transport.TransportMetrics {
	return t.next.GetMetrics()
}
