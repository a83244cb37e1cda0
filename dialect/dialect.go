// Package dialect describes per-database capabilities the reader depends on,
// most importantly how array-typed columns are represented.
package dialect

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/dan-strohschein/syndrdb-aggregates/transport"
)

// SQLType is a vendor-neutral column type, used to look up the dialect
// specific name of an array element type.
type SQLType string

const (
	SMALLINT    SQLType = "SMALLINT"
	INTEGER     SQLType = "INTEGER"
	BIGINT      SQLType = "BIGINT"
	REAL        SQLType = "REAL"
	DOUBLE      SQLType = "DOUBLE"
	NUMERIC     SQLType = "NUMERIC"
	BOOLEAN     SQLType = "BOOLEAN"
	VARCHAR     SQLType = "VARCHAR"
	TEXT        SQLType = "TEXT"
	DATE        SQLType = "DATE"
	TIMESTAMP   SQLType = "TIMESTAMP"
	TIMESTAMPTZ SQLType = "TIMESTAMPTZ"
	UUID        SQLType = "UUID"
	BINARY      SQLType = "BINARY"
)

// ArrayColumns describes whether and how a dialect supports array columns.
type ArrayColumns interface {
	// IsSupported reports whether array-typed columns exist at all.
	IsSupported() bool

	// ArrayType strips every level of slice or array wrapping from t and
	// returns the element type.
	ArrayType(t reflect.Type) reflect.Type

	// ArrayTypeName returns the name used to declare or bind an array of t.
	ArrayTypeName(t SQLType) (string, error)
}

// Dialect is the capability object of one database vendor.
type Dialect interface {
	Name() string
	ArrayColumns() ArrayColumns

	// Placeholder is the positional parameter style of the vendor's driver.
	Placeholder() transport.Placeholder
}

// ByName resolves a dialect from configuration.
func ByName(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pgx", "pgxpool":
		return Postgres(), nil
	case "duckdb":
		return DuckDB(), nil
	case "", "generic", "mysql", "mariadb", "sqlite", "h2":
		return Generic(name), nil
	default:
		return nil, fmt.Errorf("unknown dialect %q", name)
	}
}

type dialect struct {
	name        string
	arrays      ArrayColumns
	placeholder transport.Placeholder
}

func (d dialect) Name() string {
	return d.name
}

func (d dialect) ArrayColumns() ArrayColumns {
	return d.arrays
}

func (d dialect) Placeholder() transport.Placeholder {
	if d.placeholder == nil {
		return transport.Question
	}
	return d.placeholder
}

// elementType strips every slice and array level from t.
func elementType(t reflect.Type) reflect.Type {
	for t != nil && (t.Kind() == reflect.Slice || t.Kind() == reflect.Array) {
		// []byte is a scalar binary value, not an array of bytes.
		if t.Elem().Kind() == reflect.Uint8 {
			return t
		}
		t = t.Elem()
	}
	return t
}
