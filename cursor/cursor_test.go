package cursor

import (
	"context"
	"errors"
	"testing"

	"github.com/matryer/is"

	"github.com/dan-strohschein/syndrdb-aggregates/dataaccess"
	"github.com/dan-strohschein/syndrdb-aggregates/transport/mock"
)

func open(t *testing.T, m *mock.MockTransport) *Cursor {
	t.Helper()
	rows, err := m.Query(context.Background(), "SELECT id, name FROM things", nil)
	if err != nil {
		t.Fatalf("Query() error = %v", err)
	}
	return New(rows)
}

func threeRows() *mock.MockTransport {
	return mock.NewMockTransport().WithRows("things", []string{"ID", "Name"},
		[]any{int64(1), "a"},
		[]any{int64(2), nil},
		[]any{int64(3), "c"},
	)
}

func TestNextAndValue(t *testing.T) {
	is := is.New(t)
	c := open(t, threeRows())
	defer c.Close()

	var ids []any
	for {
		ok, err := c.Next()
		is.NoErr(err)
		if !ok {
			break
		}
		id, err := c.Value("id") // labels match regardless of case
		is.NoErr(err)
		ids = append(ids, id)
	}
	is.Equal(ids, []any{int64(1), int64(2), int64(3)})
}

func TestPeekIsIdempotent(t *testing.T) {
	is := is.New(t)
	m := threeRows()
	c := open(t, m)
	defer c.Close()

	ok, err := c.Next()
	is.NoErr(err)
	is.True(ok)

	for i := 0; i < 3; i++ {
		v, err := c.Peek("ID")
		is.NoErr(err)
		is.Equal(v, int64(2)) // same lookahead row every time
	}

	v, err := c.Value("id")
	is.NoErr(err)
	is.Equal(v, int64(1)) // peeking does not move the current row

	ok, err = c.Next()
	is.NoErr(err)
	is.True(ok)
	v, err = c.Value("id")
	is.NoErr(err)
	is.Equal(v, int64(2)) // next promotes the peeked row

	name, err := c.Value("NAME")
	is.NoErr(err)
	is.Equal(name, nil) // SQL NULL
}

func TestPeekAtEnd(t *testing.T) {
	is := is.New(t)
	c := open(t, mock.NewMockTransport().WithRows("things", []string{"id", "name"}, []any{int64(1), "a"}))
	defer c.Close()

	ok, err := c.Next()
	is.NoErr(err)
	is.True(ok)

	v, err := c.Peek("id")
	is.NoErr(err)
	is.Equal(v, nil) // nothing follows

	more, err := c.HasNext()
	is.NoErr(err)
	is.True(!more)

	ok, err = c.Next()
	is.NoErr(err)
	is.True(!ok) // cached has-next flag returned
}

func TestPeekBeforeFirstNext(t *testing.T) {
	is := is.New(t)
	c := open(t, threeRows())
	defer c.Close()

	v, err := c.Peek("id")
	is.NoErr(err)
	is.Equal(v, int64(1))

	ok, err := c.Next()
	is.NoErr(err)
	is.True(ok)
	v, err = c.Value("id")
	is.NoErr(err)
	is.Equal(v, int64(1))
}

func TestEmptyResult(t *testing.T) {
	is := is.New(t)
	c := open(t, mock.NewMockTransport().WithRows("things", []string{"id", "name"}))
	defer c.Close()

	v, err := c.Peek("id")
	is.NoErr(err)
	is.Equal(v, nil)

	ok, err := c.Next()
	is.NoErr(err)
	is.True(!ok)
}

func TestUnknownColumn(t *testing.T) {
	is := is.New(t)
	c := open(t, threeRows())
	defer c.Close()

	_, err := c.Next()
	is.NoErr(err)

	_, err = c.Value("missing")
	is.True(dataaccess.IsCursor(err))

	_, err = c.Peek("missing")
	is.True(dataaccess.IsCursor(err))
}

func TestAdvanceFailureIsWrapped(t *testing.T) {
	is := is.New(t)
	boom := errors.New("connection reset")
	m := mock.NewMockTransport().WithRowError("things", []string{"id", "name"}, 1, boom,
		[]any{int64(1), "a"},
		[]any{int64(2), "b"},
	)
	c := open(t, m)
	defer c.Close()

	ok, err := c.Next()
	is.NoErr(err)
	is.True(ok)

	_, err = c.Peek("id")
	is.True(dataaccess.IsCursor(err))
	is.True(errors.Is(err, boom)) // cause preserved
}

func TestCloseIsIdempotent(t *testing.T) {
	is := is.New(t)
	m := threeRows()
	c := open(t, m)

	is.Equal(m.OpenRows(), 1)
	is.NoErr(c.Close())
	is.NoErr(c.Close())
	is.Equal(m.OpenRows(), 0)

	_, err := c.Next()
	is.True(dataaccess.IsCursor(err)) // closed cursor cannot advance
}
