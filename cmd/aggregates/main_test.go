package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matryer/is"

	"github.com/dan-strohschein/syndrdb-aggregates/testutil"
	"github.com/dan-strohschein/syndrdb-aggregates/transport"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	ConfigPath, Driver, DSN, ShapesPath, NoJoins = "", "", "", "", false
	DDLDrop, DDLApply, SchemaStrict = false, false, false
	FindWhere, FindParams, FindOne, FindExists = "", nil, false, false
	ExecParams, ExecRows, ExecKeys = nil, "", nil
	MigrationsDir, MigrateDryRun, MigrateTo = "", false, ""

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		input    string
		expected any
	}{
		{"42", int64(42)},
		{"-7", int64(-7)},
		{"2.5", 2.5},
		{"true", true},
		{"ada", "ada"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseValue(tt.input); got != tt.expected {
				t.Errorf("parseValue(%q) = %v (%T), want %v (%T)", tt.input, got, got, tt.expected, tt.expected)
			}
		})
	}
}

func TestParseParams(t *testing.T) {
	is := is.New(t)

	params, err := parseParams([]string{"id=3", "customer=ada", "note=a=b"})
	is.NoErr(err)
	is.Equal(params, transport.Params{"id": int64(3), "customer": "ada", "note": "a=b"})

	_, err = parseParams([]string{"novalue"})
	is.True(err != nil) // missing =

	_, err = parseParams([]string{"=1"})
	is.True(err != nil) // missing name
}

func TestReadBatch(t *testing.T) {
	is := is.New(t)

	batch, err := readBatch(strings.NewReader("- {sku: A, quantity: 1}\n- {sku: B, quantity: 2}\n"))
	is.NoErr(err)
	is.Equal(len(batch), 2)
	is.Equal(batch[1]["sku"], "B")
	is.Equal(batch[1]["quantity"], 2)

	batch, err = readBatch(strings.NewReader(`[{"sku": "C"}]`))
	is.NoErr(err)
	is.Equal(batch[0]["sku"], "C")

	_, err = readBatch(strings.NewReader("- {sku: A}\n- \n"))
	is.True(err != nil) // empty parameter set
}

func TestShapesCommands(t *testing.T) {
	is := is.New(t)
	shapes := writeFile(t, t.TempDir(), "shapes.yaml", testutil.OrderShapes)

	out, err := run(t, "shapes", "validate", "--shapes", shapes)
	is.NoErr(err)
	is.True(strings.Contains(out, "5 entities, 1 aggregate roots"))

	out, err = run(t, "shapes", "list", "--shapes", shapes)
	is.NoErr(err)
	is.True(strings.Contains(out, "items.notes"))
	is.True(strings.Contains(out, "order_attribute"))

	out, err = run(t, "shapes", "ddl", "Order", "--shapes", shapes, "--drop")
	is.NoErr(err)
	is.True(strings.HasPrefix(out, "DROP TABLE IF EXISTS address;"))

	out, err = run(t, "shapes", "sql", "Order", "--shapes", shapes)
	is.NoErr(err)
	is.True(strings.Contains(out, "LEFT JOIN line_item"))

	out, err = run(t, "shapes", "jsonschema", "Order", "--shapes", shapes)
	is.NoErr(err)
	is.True(strings.Contains(out, `"$ref": "#/definitions/LineItem"`))

	_, err = run(t, "shapes", "sql", "Invoice", "--shapes", shapes)
	is.True(err != nil) // unknown shape
}

func TestFindAgainstDuckDB(t *testing.T) {
	is := is.New(t)
	dir := t.TempDir()
	shapes := writeFile(t, dir, "shapes.yaml", testutil.OrderShapes)
	db := filepath.Join(dir, "orders.db")
	common := []string{"--driver", "duckdb", "--dsn", db, "--shapes", shapes}

	for _, stmt := range testutil.OrderDDL {
		_, err := run(t, append([]string{"exec", stmt}, common...)...)
		is.NoErr(err)
	}

	_, err := run(t, append([]string{"exec",
		"INSERT INTO purchase_order (id, customer) VALUES (:id, :customer)",
		"--param", "id=1", "--param", "customer=ada"}, common...)...)
	is.NoErr(err)

	items := writeFile(t, dir, "items.yaml", "- {id: 10, order_id: 1, sku: A, quantity: 2}\n- {id: 11, order_id: 1, sku: B, quantity: 1}\n")
	out, err := run(t, append([]string{"exec",
		"INSERT INTO line_item (id, order_id, sku, quantity) VALUES (:id, :order_id, :sku, :quantity)",
		"--rows", items}, common...)...)
	is.NoErr(err)
	is.True(strings.Contains(out, "1 row(s)"))

	out, err = run(t, append([]string{"find", "Order", "1"}, common...)...)
	is.NoErr(err)

	var order map[string]any
	is.NoErr(json.Unmarshal([]byte(out), &order))
	is.Equal(order["customer"], "ada")
	is.Equal(len(order["items"].([]any)), 2)

	out, err = run(t, append([]string{"find", "Order", "2", "--exists"}, common...)...)
	is.NoErr(err)
	is.Equal(strings.TrimSpace(out), "false")

	out, err = run(t, append([]string{"find", "Order", "--where", "t0.customer = :customer", "--param", "customer=ada", "--no-joins"}, common...)...)
	is.NoErr(err)

	var orders []map[string]any
	is.NoErr(json.Unmarshal([]byte(out), &orders))
	is.Equal(len(orders), 1)
	is.Equal(len(orders[0]["items"].([]any)), 2)

	_, err = run(t, append([]string{"find", "Order", "2"}, common...)...)
	is.True(err != nil) // not found
}

func TestMigrateAgainstDuckDB(t *testing.T) {
	is := is.New(t)
	dir := t.TempDir()
	shapes := writeFile(t, dir, "shapes.yaml", testutil.OrderShapes)
	migrations := filepath.Join(dir, "migrations")
	common := []string{"--driver", "duckdb", "--dsn", filepath.Join(dir, "orders.db"), "--shapes", shapes}
	migrate := func(args ...string) (string, error) {
		return run(t, append(append([]string{"migrate"}, args...), append(common, "--dir", migrations)...)...)
	}

	out, err := migrate("new", "Order")
	is.NoErr(err)
	is.True(strings.Contains(out, "_create_order.yaml"))

	out, err = migrate("status")
	is.NoErr(err)
	is.True(strings.Contains(out, "pending"))

	out, err = migrate("up", "--dry-run")
	is.NoErr(err)
	is.True(strings.Contains(out, "dry run"))

	out, err = migrate("up")
	is.NoErr(err)
	is.True(strings.Contains(out, "1 migration(s) applied"))

	out, err = migrate("up")
	is.NoErr(err)
	is.True(strings.Contains(out, "nothing to do"))

	_, err = run(t, append([]string{"exec", "INSERT INTO purchase_order (id, customer) VALUES (1, 'ada')"}, common...)...)
	is.NoErr(err)

	out, err = migrate("status")
	is.NoErr(err)
	is.True(strings.Contains(out, "applied"))

	out, err = migrate("down")
	is.NoErr(err)
	is.True(strings.Contains(out, "1 migration(s) rolled back"))

	_, err = run(t, append([]string{"find", "Order", "1"}, common...)...)
	is.True(err != nil) // tables dropped
}
