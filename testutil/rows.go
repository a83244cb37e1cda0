package testutil

import (
	"sync/atomic"
)

// Option sets column values of a row under construction.
type Option func(map[string]any)

// WithField sets a specific column value.
func WithField(column string, value any) Option {
	return func(data map[string]any) {
		data[column] = value
	}
}

// WithFields sets multiple column values.
func WithFields(fields map[string]any) Option {
	return func(data map[string]any) {
		for k, v := range fields {
			data[k] = v
		}
	}
}

// RowFactory builds result rows in a fixed column order. Columns without a
// value are NULL.
type RowFactory struct {
	columns  []string
	defaults map[string]any
}

// NewRowFactory creates a factory for columns.
func NewRowFactory(columns []string, defaults ...Option) *RowFactory {
	f := &RowFactory{columns: columns, defaults: map[string]any{}}
	for _, opt := range defaults {
		opt(f.defaults)
	}
	return f
}

// Columns returns the factory's column labels.
func (f *RowFactory) Columns() []string {
	return f.columns
}

// Build creates a single row with optional overrides.
func (f *RowFactory) Build(options ...Option) []any {
	data := make(map[string]any, len(f.defaults))
	for k, v := range f.defaults {
		data[k] = v
	}
	for _, opt := range options {
		opt(data)
	}

	row := make([]any, len(f.columns))
	for i, c := range f.columns {
		row[i] = data[c]
	}
	return row
}

// Row is shorthand for Build with a field map.
func (f *RowFactory) Row(fields map[string]any) []any {
	return f.Build(WithFields(fields))
}

var idSequence atomic.Int64

// SequenceID generates unique IDs.
func SequenceID() int64 {
	return idSequence.Add(1)
}
