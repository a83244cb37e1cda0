package dialect

import (
	"reflect"
	"strings"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dan-strohschein/syndrdb-aggregates/dataaccess"
	"github.com/dan-strohschein/syndrdb-aggregates/transport"
)

// Postgres returns the PostgreSQL dialect. Array element names come from the
// pgx type map so they match what the driver binds.
func Postgres() Dialect {
	return dialect{name: "postgres", arrays: postgresArrays{types: pgtype.NewMap()}, placeholder: transport.Dollar}
}

// DuckDB returns the DuckDB dialect, which stores arrays as LIST columns.
func DuckDB() Dialect {
	return dialect{name: "duckdb", arrays: duckdbArrays{}}
}

// Generic returns a dialect without array support.
func Generic(name string) Dialect {
	if name == "" {
		name = "generic"
	}
	return dialect{name: strings.ToLower(name), arrays: unsupportedArrays{dialect: strings.ToLower(name)}}
}

type postgresArrays struct {
	types *pgtype.Map
}

var postgresOIDs = map[SQLType]uint32{
	SMALLINT:    pgtype.Int2OID,
	INTEGER:     pgtype.Int4OID,
	BIGINT:      pgtype.Int8OID,
	REAL:        pgtype.Float4OID,
	DOUBLE:      pgtype.Float8OID,
	NUMERIC:     pgtype.NumericOID,
	BOOLEAN:     pgtype.BoolOID,
	VARCHAR:     pgtype.VarcharOID,
	TEXT:        pgtype.TextOID,
	DATE:        pgtype.DateOID,
	TIMESTAMP:   pgtype.TimestampOID,
	TIMESTAMPTZ: pgtype.TimestamptzOID,
	UUID:        pgtype.UUIDOID,
	BINARY:      pgtype.ByteaOID,
}

func (a postgresArrays) IsSupported() bool {
	return true
}

func (a postgresArrays) ArrayType(t reflect.Type) reflect.Type {
	return elementType(t)
}

func (a postgresArrays) ArrayTypeName(t SQLType) (string, error) {
	oid, ok := postgresOIDs[t]
	if !ok {
		return "", dataaccess.ErrUnsupportedOperation("array of "+string(t), "no postgres element type")
	}
	pgType, ok := a.types.TypeForOID(oid)
	if !ok {
		return "", dataaccess.ErrUnsupportedOperation("array of "+string(t), "type not registered with pgx")
	}
	return pgType.Name, nil
}

type duckdbArrays struct{}

var duckdbNames = map[SQLType]string{
	SMALLINT:    "SMALLINT",
	INTEGER:     "INTEGER",
	BIGINT:      "BIGINT",
	REAL:        "FLOAT",
	DOUBLE:      "DOUBLE",
	NUMERIC:     "DECIMAL",
	BOOLEAN:     "BOOLEAN",
	VARCHAR:     "VARCHAR",
	TEXT:        "VARCHAR",
	DATE:        "DATE",
	TIMESTAMP:   "TIMESTAMP",
	TIMESTAMPTZ: "TIMESTAMP WITH TIME ZONE",
	UUID:        "UUID",
	BINARY:      "BLOB",
}

func (duckdbArrays) IsSupported() bool {
	return true
}

func (duckdbArrays) ArrayType(t reflect.Type) reflect.Type {
	return elementType(t)
}

func (duckdbArrays) ArrayTypeName(t SQLType) (string, error) {
	name, ok := duckdbNames[t]
	if !ok {
		return "", dataaccess.ErrUnsupportedOperation("array of "+string(t), "no duckdb element type")
	}
	return name, nil
}

type unsupportedArrays struct {
	dialect string
}

func (unsupportedArrays) IsSupported() bool {
	return false
}

func (unsupportedArrays) ArrayType(t reflect.Type) reflect.Type {
	return elementType(t)
}

func (u unsupportedArrays) ArrayTypeName(t SQLType) (string, error) {
	return "", dataaccess.ErrUnsupportedOperation("array of "+string(t), "dialect "+u.dialect+" has no array columns")
}
