package dialect

import (
	"reflect"
	"testing"

	"github.com/matryer/is"

	"github.com/dan-strohschein/syndrdb-aggregates/dataaccess"
)

func TestArrayTypeStripsAllLevels(t *testing.T) {
	is := is.New(t)

	arrays := Postgres().ArrayColumns()

	is.Equal(arrays.ArrayType(reflect.TypeOf([][]int32{})), reflect.TypeOf(int32(0)))  // two levels stripped
	is.Equal(arrays.ArrayType(reflect.TypeOf([2][3]string{})), reflect.TypeOf(""))     // fixed arrays too
	is.Equal(arrays.ArrayType(reflect.TypeOf(int64(0))), reflect.TypeOf(int64(0)))     // scalars pass through
	is.Equal(arrays.ArrayType(reflect.TypeOf([][]byte{})), reflect.TypeOf([]byte(nil))) // []byte is a scalar
}

func TestPostgresArrayTypeName(t *testing.T) {
	is := is.New(t)

	arrays := Postgres().ArrayColumns()
	is.True(arrays.IsSupported())

	name, err := arrays.ArrayTypeName(INTEGER)
	is.NoErr(err)
	is.Equal(name, "int4")

	name, err = arrays.ArrayTypeName(TEXT)
	is.NoErr(err)
	is.Equal(name, "text")
}

func TestDuckDBArrayTypeName(t *testing.T) {
	is := is.New(t)

	name, err := DuckDB().ArrayColumns().ArrayTypeName(DOUBLE)
	is.NoErr(err)
	is.Equal(name, "DOUBLE")
}

func TestUnsupportedArrayTypeNameAlwaysFails(t *testing.T) {
	is := is.New(t)

	arrays := Generic("mysql").ArrayColumns()
	is.True(!arrays.IsSupported()) // mysql has no arrays

	for _, sqlType := range []SQLType{INTEGER, VARCHAR, BOOLEAN, "SOMETHING"} {
		name, err := arrays.ArrayTypeName(sqlType)
		is.Equal(name, "")
		is.True(dataaccess.IsUnsupported(err)) // unsupported dialects never return a name
	}
}

func TestByName(t *testing.T) {
	tests := []struct {
		name      string
		want      string
		supported bool
		wantErr   bool
	}{
		{"postgresql", "postgres", true, false},
		{"DuckDB", "duckdb", true, false},
		{"mysql", "mysql", false, false},
		{"", "generic", false, false},
		{"oracle", "", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := ByName(tt.name)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ByName(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if d.Name() != tt.want {
				t.Errorf("Name() = %s, want %s", d.Name(), tt.want)
			}
			if d.ArrayColumns().IsSupported() != tt.supported {
				t.Errorf("IsSupported() = %v, want %v", d.ArrayColumns().IsSupported(), tt.supported)
			}
		})
	}
}

func TestPlaceholder(t *testing.T) {
	is := is.New(t)

	is.Equal(Postgres().Placeholder()(3), "$3")
	is.Equal(DuckDB().Placeholder()(3), "?")
	is.Equal(Generic("h2").Placeholder()(1), "?")
}
