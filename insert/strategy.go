// Package insert executes single and batched statements that may generate
// keys, and reports what the database says about each affected row.
package insert

import (
	"context"

	"github.com/dan-strohschein/syndrdb-aggregates/dataaccess"
	"github.com/dan-strohschein/syndrdb-aggregates/transport"
)

// Strategy runs insert statements on a transport.
type Strategy struct {
	transport transport.Transport
}

// NewStrategy creates a strategy on tr.
func NewStrategy(tr transport.Transport) *Strategy {
	return &Strategy{transport: tr}
}

// Execute runs one statement. With key columns, the generated key of the
// first column is returned; ok is false when the database produced none.
func (s *Strategy) Execute(ctx context.Context, sql string, params transport.Params, keyColumns ...string) (any, bool, error) {
	result, err := s.transport.Exec(ctx, sql, params, keyColumns)
	if err != nil {
		return nil, false, dataaccess.ErrDataAccess(sql, err)
	}
	if len(keyColumns) == 0 {
		return nil, false, nil
	}

	key, ok := result.Keys[keyColumns[0]]
	if !ok || key == nil {
		return nil, false, nil
	}
	return key, true, nil
}

// BatchExecute runs sql once per parameter set and returns one outcome per
// set, in order. When holder is not nil it receives one key map per set;
// failed sets get an empty map.
//
// When any row failed the outcomes are returned together with a
// *dataaccess.BatchError naming the failed positions. A transport error that
// prevents the batch from running returns no outcomes.
func (s *Strategy) BatchExecute(ctx context.Context, sql string, batch []transport.Params, holder *transport.KeyHolder, keyColumns ...string) ([]transport.Outcome, error) {
	if len(batch) == 0 {
		return []transport.Outcome{}, nil
	}

	results, err := s.transport.Batch(ctx, sql, batch, keyColumns)
	if err != nil {
		return nil, dataaccess.ErrDataAccess(sql, err)
	}

	outcomes := make([]transport.Outcome, len(results))
	var failed []int
	var cause error
	for i, r := range results {
		outcomes[i] = r.Outcome
		if r.Outcome.Failed() {
			failed = append(failed, i)
			if cause == nil {
				cause = r.Err
			}
		}
		if holder != nil && len(keyColumns) > 0 {
			if r.Outcome.Failed() {
				holder.Add(nil)
			} else {
				holder.Add(r.Keys)
			}
		}
	}

	if len(failed) > 0 {
		return outcomes, dataaccess.ErrBatchPartialFailure(sql, len(batch), failed, cause)
	}
	return outcomes, nil
}

// InsertAll runs a batch and returns the generated key of the first key
// column for each parameter set. Any failed row fails the call.
func (s *Strategy) InsertAll(ctx context.Context, sql string, batch []transport.Params, keyColumns ...string) ([]any, error) {
	holder := transport.NewKeyHolder()
	if _, err := s.BatchExecute(ctx, sql, batch, holder, keyColumns...); err != nil {
		return nil, err
	}

	keys := make([]any, 0, len(batch))
	if len(keyColumns) == 0 {
		return keys, nil
	}
	for _, row := range holder.KeyList() {
		keys = append(keys, row[keyColumns[0]])
	}
	return keys, nil
}
