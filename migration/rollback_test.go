package migration

import (
	"testing"

	"github.com/matryer/is"

	"github.com/dan-strohschein/syndrdb-aggregates/schema"
	"github.com/dan-strohschein/syndrdb-aggregates/testutil"
)

func TestRollbackGenerator_Reverse(t *testing.T) {
	tests := []struct {
		up       string
		expected string
	}{
		{"CREATE TABLE purchase_order (\n    id BIGINT PRIMARY KEY\n);", "DROP TABLE IF EXISTS purchase_order;"},
		{"create table if not exists public.line_item (id bigint)", "DROP TABLE IF EXISTS public.line_item;"},
		{`CREATE TABLE "Note" (id BIGINT)`, `DROP TABLE IF EXISTS "Note";`},
		{"CREATE UNIQUE INDEX line_item_sku ON line_item (sku)", "DROP INDEX IF EXISTS line_item_sku;"},
		{"CREATE INDEX IF NOT EXISTS note_item ON item_note (item_id)", "DROP INDEX IF EXISTS note_item;"},
		{"CREATE OR REPLACE VIEW open_orders AS SELECT * FROM purchase_order", "DROP VIEW IF EXISTS open_orders;"},
		{"CREATE SEQUENCE order_seq", "DROP SEQUENCE IF EXISTS order_seq;"},
		{"ALTER TABLE purchase_order ADD COLUMN note VARCHAR", "ALTER TABLE purchase_order DROP COLUMN note;"},
		{"ALTER TABLE purchase_order ADD total DECIMAL(18,4)", "ALTER TABLE purchase_order DROP COLUMN total;"},
	}

	g := NewRollbackGenerator()
	for _, tt := range tests {
		t.Run(tt.up, func(t *testing.T) {
			got, err := g.reverse(tt.up)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestRollbackGenerator_NotReversible(t *testing.T) {
	g := NewRollbackGenerator()
	for _, stmt := range []string{
		"DROP TABLE purchase_order",
		"INSERT INTO purchase_order VALUES (1)",
		"DELETE FROM purchase_order",
		"UPDATE purchase_order SET customer = 'x'",
		"ALTER TABLE purchase_order ADD CONSTRAINT pk PRIMARY KEY (id)",
		"ALTER TABLE purchase_order RENAME TO orders",
		"GRANT SELECT ON purchase_order TO reader",
	} {
		t.Run(stmt, func(t *testing.T) {
			if g.CanGenerateDown(stmt) {
				t.Fatal("expected statement to be irreversible")
			}
			_, err := g.reverse(stmt)
			if !HasCode(err, CodeNotReversible) {
				t.Errorf("expected %s, got %v", CodeNotReversible, err)
			}
		})
	}
}

func TestGenerateDownMatchesSerializedDrops(t *testing.T) {
	is := is.New(t)
	shape := testutil.Order(t)

	down, err := NewRollbackGenerator().GenerateDown(schema.SerializeCreateTables(shape))
	is.NoErr(err)
	is.Equal(down, schema.SerializeDropTables(shape))

	_, err = NewRollbackGenerator().GenerateDown([]string{"CREATE TABLE a (id BIGINT)", "DROP TABLE b"})
	is.True(HasCode(err, CodeNotReversible))
}
