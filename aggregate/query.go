package aggregate

import (
	"github.com/dan-strohschein/syndrdb-aggregates/transport"
)

// Query selects aggregates by a predicate over the root table. Where refers
// to root columns through sqlgen.RootAlias, for example
// "t0.customer = :customer".
type Query struct {
	Where  string
	Params transport.Params
}

// Where builds a Query.
func Where(predicate string, params transport.Params) Query {
	return Query{Where: predicate, Params: params}
}

// Direction is a sort direction.
type Direction string

const (
	ASC  Direction = "ASC"
	DESC Direction = "DESC"
)

// Order is one sort key.
type Order struct {
	Property  string
	Direction Direction
}

// Sort is an ordered list of sort keys.
type Sort []Order

// Page requests one page of results.
type Page struct {
	Number int
	Size   int
	Sort   Sort
}
