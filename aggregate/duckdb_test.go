package aggregate

import (
	"context"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/dan-strohschein/syndrdb-aggregates/dialect"
	"github.com/dan-strohschein/syndrdb-aggregates/mapper"
	"github.com/dan-strohschein/syndrdb-aggregates/schema"
	"github.com/dan-strohschein/syndrdb-aggregates/testutil"
	"github.com/dan-strohschein/syndrdb-aggregates/transport"
)

var orderFixture = []string{
	"INSERT INTO purchase_order VALUES (1, 'ada', ['a', 'b']), (2, 'grace', NULL)",
	"INSERT INTO line_item VALUES (10, 1, 'A', 1), (11, 1, 'B', 2)",
	"INSERT INTO item_note VALUES (1, 10, 'fragile'), (2, 10, 'gift')",
	"INSERT INTO order_attribute VALUES (1, 'color', 'red'), (1, 'size', 'L')",
	"INSERT INTO address VALUES (100, 1, 'Lund')",
}

func seededDuckDB(t *testing.T) transport.Transport {
	t.Helper()
	tr := testutil.NewDuckDB(t, testutil.OrderDDL...)
	ctx, cancel := testutil.WithTimeout(t)
	defer cancel()
	for _, stmt := range orderFixture {
		_, err := tr.Exec(ctx, stmt, nil, nil)
		testutil.RequireNoError(t, err, "seed")
	}
	return tr
}

func TestDuckDBFindAll(t *testing.T) {
	is := is.New(t)
	tr := seededDuckDB(t)
	ctx := context.Background()

	got, err := NewReader(tr, WithDialect(dialect.DuckDB())).FindAll(ctx, testutil.Order(t))
	is.NoErr(err)
	is.Equal(len(got), 2)

	ada := got[0].(mapper.Document)
	is.Equal(ada["customer"], "ada")
	is.Equal(ada["tags"], []any{"a", "b"})

	items := ada["items"].([]any)
	is.Equal(len(items), 2)
	notes := items[0].(mapper.Document)["notes"].([]any)
	is.Equal(len(notes), 2)
	is.Equal(notes[0].(mapper.Document)["text"], "fragile")
	is.Equal(items[1].(mapper.Document)["notes"], []any{})

	is.Equal(len(ada["attributes"].(map[string]any)), 2)
	is.Equal(ada["shipping"].(mapper.Document)["city"], "Lund")

	grace := got[1].(mapper.Document)
	is.Equal(grace["tags"], nil)
	is.Equal(grace["items"], []any{})
	is.Equal(grace["attributes"], map[string]any{})
	is.Equal(grace["shipping"], nil)
}

func TestDuckDBJoinedAndSelectedReadsAgree(t *testing.T) {
	is := is.New(t)
	tr := seededDuckDB(t)
	ctx := context.Background()
	shape := testutil.Order(t)

	joined, err := NewReader(tr, WithDialect(dialect.DuckDB())).FindAll(ctx, shape)
	is.NoErr(err)

	selected, err := NewReader(tr, WithDialect(dialect.DuckDB()), WithSingleQuery(false)).FindAll(ctx, shape)
	is.NoErr(err)

	is.Equal(joined, selected)
}

func TestDuckDBQueries(t *testing.T) {
	is := is.New(t)
	tr := seededDuckDB(t)
	ctx := context.Background()
	shape := testutil.Order(t)
	r := NewReader(tr, WithDialect(dialect.DuckDB()))

	one, found, err := r.FindOne(ctx, Where("t0.customer = :customer", transport.Params{"customer": "grace"}), shape)
	is.NoErr(err)
	is.True(found)
	is.Equal(one.(mapper.Document)["id"], int64(2))

	byIDs, err := r.FindAllByID(ctx, []any{2, 3}, shape)
	is.NoErr(err)
	is.Equal(len(byIDs), 1)

	exists, err := r.ExistsByID(ctx, 3, shape)
	is.NoErr(err)
	is.True(!exists)

	all, err := r.FindAllByQuery(ctx, Where("t0.id >= :id", transport.Params{"id": 1}), shape)
	is.NoErr(err)
	is.Equal(len(all), 2)
}

func TestDuckDBSelectFetchOnSingleConnection(t *testing.T) {
	is := is.New(t)
	tr := testutil.NewDuckDB(t, testutil.OrderDDL...)
	is.Equal(tr.DB().Stats().MaxOpenConnections, 1)

	ctx, _ := testutil.WithTimeout(t, 5*time.Second)
	for _, stmt := range orderFixture {
		_, err := tr.Exec(ctx, stmt, nil, nil)
		is.NoErr(err)
	}

	for _, joins := range []bool{true, false} {
		r := NewReader(tr, WithDialect(dialect.DuckDB()), WithSingleQuery(joins))
		got, found, err := r.FindByID(ctx, 1, testutil.Order(t))
		is.NoErr(err)
		is.True(found)

		items := got.(mapper.Document)["items"].([]any)
		is.Equal(len(items[0].(mapper.Document)["notes"].([]any)), 2)
	}
}

const playlistShapes = `
entities:
  - name: Playlist
    table: playlist
    id: {name: id, column: id, type: INT}
    properties:
      - {name: name, column: name, type: STRING}
    relations:
      - {name: songs, kind: list, entity: Song, backReference: playlist_id, keyColumn: pos}
  - name: Song
    table: song
    id: {name: id, column: id, type: INT}
    properties:
      - {name: title, column: title, type: STRING}
`

func TestDuckDBListFollowsIndexColumn(t *testing.T) {
	is := is.New(t)
	tr := testutil.NewDuckDB(t,
		"CREATE TABLE playlist (id BIGINT PRIMARY KEY, name VARCHAR)",
		"CREATE TABLE song (id BIGINT PRIMARY KEY, playlist_id BIGINT NOT NULL, pos INTEGER NOT NULL, title VARCHAR)",
		"INSERT INTO playlist VALUES (1, 'mix')",
		"INSERT INTO song VALUES (30, 1, 0, 'first'), (20, 1, 1, 'second'), (10, 1, 2, 'third')",
	)

	reg, err := schema.ParseShapes([]byte(playlistShapes))
	is.NoErr(err)
	playlist, ok := reg.Get("Playlist")
	is.True(ok)

	for _, joins := range []bool{true, false} {
		got, found, err := NewReader(tr, WithSingleQuery(joins)).FindByID(context.Background(), 1, playlist)
		is.NoErr(err)
		is.True(found)

		var titles []string
		for _, song := range got.(mapper.Document)["songs"].([]any) {
			titles = append(titles, song.(mapper.Document)["title"].(string))
		}
		is.Equal(titles, []string{"first", "second", "third"}) // index order, not id order
	}
}
