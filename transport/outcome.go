package transport

import (
	"fmt"
	"sync"
)

// Driver sentinels for per-row batch counts.
const (
	SuccessNoInfo int64 = -2
	ExecuteFailed int64 = -3
)

// OutcomeKind classifies a batch row outcome.
type OutcomeKind int

const (
	// RowsAffectedKind carries an actual affected-row count.
	RowsAffectedKind OutcomeKind = iota
	// UnknownKind means the statement ran but the driver reported no count.
	UnknownKind
	// FailedKind means the statement for this row failed.
	FailedKind
)

// Outcome is the result of one parameter set of a batch.
type Outcome struct {
	kind OutcomeKind
	rows int64
}

// RowsAffected is an outcome with an actual count.
func RowsAffected(n int64) Outcome {
	return Outcome{kind: RowsAffectedKind, rows: n}
}

// Unknown is the outcome of a row whose count was not reported.
func Unknown() Outcome {
	return Outcome{kind: UnknownKind}
}

// Failed is the outcome of a row whose statement failed.
func Failed() Outcome {
	return Outcome{kind: FailedKind}
}

// OutcomeFromCount maps a raw driver count, including the negative
// sentinels, onto an Outcome.
func OutcomeFromCount(n int64) Outcome {
	switch {
	case n >= 0:
		return RowsAffected(n)
	case n == ExecuteFailed:
		return Failed()
	default:
		return Unknown()
	}
}

// Kind returns the outcome classification.
func (o Outcome) Kind() OutcomeKind {
	return o.kind
}

// Count returns the affected-row count and whether one was reported.
func (o Outcome) Count() (int64, bool) {
	return o.rows, o.kind == RowsAffectedKind
}

// Failed reports whether the row failed.
func (o Outcome) Failed() bool {
	return o.kind == FailedKind
}

// Raw maps the outcome back onto the driver encoding.
func (o Outcome) Raw() int64 {
	switch o.kind {
	case UnknownKind:
		return SuccessNoInfo
	case FailedKind:
		return ExecuteFailed
	default:
		return o.rows
	}
}

func (o Outcome) String() string {
	switch o.kind {
	case UnknownKind:
		return "unknown"
	case FailedKind:
		return "failed"
	default:
		return fmt.Sprintf("%d row(s)", o.rows)
	}
}

// TotalAffected sums the reported counts and says whether every row
// reported one.
func TotalAffected(outcomes []Outcome) (total int64, complete bool) {
	complete = true
	for _, o := range outcomes {
		n, ok := o.Count()
		if !ok {
			complete = false
			continue
		}
		total += n
	}
	return total, complete
}

// KeyHolder collects generated keys, one map per inserted row.
type KeyHolder struct {
	mu   sync.Mutex
	keys []map[string]any
}

// NewKeyHolder creates an empty key holder.
func NewKeyHolder() *KeyHolder {
	return &KeyHolder{keys: make([]map[string]any, 0)}
}

// Add appends the keys of one row. Nil maps are recorded as empty rows so
// positions keep matching the batch.
func (h *KeyHolder) Add(keys map[string]any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if keys == nil {
		keys = map[string]any{}
	}
	h.keys = append(h.keys, keys)
}

// KeyList returns the collected key maps in insertion order.
func (h *KeyHolder) KeyList() []map[string]any {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]map[string]any, len(h.keys))
	copy(out, h.keys)
	return out
}

// Key returns the single generated key of a single-row insert.
func (h *KeyHolder) Key() (any, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.keys) != 1 {
		return nil, fmt.Errorf("expected keys of exactly one row, holder has %d", len(h.keys))
	}
	if len(h.keys[0]) != 1 {
		return nil, fmt.Errorf("expected a single key column, row has %d", len(h.keys[0]))
	}
	for _, v := range h.keys[0] {
		return v, nil
	}
	return nil, nil
}
