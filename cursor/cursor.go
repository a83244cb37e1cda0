// Package cursor wraps a forward-only row stream with one row of lookahead.
//
// The engine needs to know whether the next row still belongs to the
// aggregate being assembled before it commits to advancing. Cursor exposes
// the next row's values through Peek without making it current; the
// following Next promotes the peeked row instead of advancing again.
package cursor

import (
	"fmt"
	"strings"

	"github.com/dan-strohschein/syndrdb-aggregates/dataaccess"
	"github.com/dan-strohschein/syndrdb-aggregates/transport"
)

type state int

const (
	idle state = iota
	peeked
)

// Cursor is not safe for concurrent use.
type Cursor struct {
	rows    transport.Rows
	columns []string
	index   map[string]int

	current []any

	state     state
	lookahead []any
	hasNext   bool

	closed bool
}

// New wraps rows. The cursor owns rows from now on and closes them in Close.
func New(rows transport.Rows) *Cursor {
	columns := rows.Columns()
	index := make(map[string]int, len(columns))
	for i, c := range columns {
		key := strings.ToLower(c)
		if _, dup := index[key]; !dup {
			index[key] = i
		}
	}

	return &Cursor{rows: rows, columns: columns, index: index}
}

// Columns returns the column labels as reported by the driver.
func (c *Cursor) Columns() []string {
	return c.columns
}

// Next moves to the next logical row and reports whether there is one. A
// pending peek is consumed without touching the underlying rows.
func (c *Cursor) Next() (bool, error) {
	if c.state == peeked {
		c.current = c.lookahead
		c.lookahead = nil
		c.state = idle
		return c.hasNext, nil
	}

	row, ok, err := c.advance()
	if err != nil {
		return false, err
	}
	c.current = row
	return ok, nil
}

// Value returns a column of the current row. SQL NULL is nil.
func (c *Cursor) Value(column string) (any, error) {
	i, err := c.position(column)
	if err != nil {
		return nil, err
	}
	if c.current == nil {
		return nil, dataaccess.ErrCursorIO("value", fmt.Errorf("no current row"))
	}
	return c.current[i], nil
}

// Peek returns a column of the row after the current one, or nil when there
// is none. The underlying rows advance at most once per pending peek.
func (c *Cursor) Peek(column string) (any, error) {
	i, err := c.position(column)
	if err != nil {
		return nil, err
	}

	if c.state == idle {
		row, ok, err := c.advance()
		if err != nil {
			return nil, err
		}
		c.lookahead = row
		c.hasNext = ok
		c.state = peeked
	}

	if !c.hasNext {
		return nil, nil
	}
	return c.lookahead[i], nil
}

// HasNext reports whether another row follows the current one.
func (c *Cursor) HasNext() (bool, error) {
	if len(c.columns) == 0 {
		return false, nil
	}
	if _, err := c.Peek(c.columns[0]); err != nil {
		return false, err
	}
	return c.hasNext, nil
}

// Close closes the wrapped rows. It is safe to call more than once.
func (c *Cursor) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.current = nil
	c.lookahead = nil
	if err := c.rows.Close(); err != nil {
		return dataaccess.ErrCursorIO("close", err)
	}
	return nil
}

// advance moves the wrapped rows once and materializes the row.
func (c *Cursor) advance() ([]any, bool, error) {
	if c.closed {
		return nil, false, dataaccess.ErrCursorIO("advance", fmt.Errorf("cursor is closed"))
	}

	if !c.rows.Next() {
		if err := c.rows.Err(); err != nil {
			return nil, false, dataaccess.ErrCursorIO("advance", err)
		}
		return nil, false, nil
	}

	row, err := c.rows.Values()
	if err != nil {
		return nil, false, dataaccess.ErrCursorIO("read", err)
	}
	return row, true, nil
}

func (c *Cursor) position(column string) (int, error) {
	i, ok := c.index[strings.ToLower(column)]
	if !ok {
		return 0, dataaccess.ErrCursorIO("lookup", fmt.Errorf("unknown column %q", column))
	}
	return i, nil
}
