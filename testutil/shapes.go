// Package testutil holds shape fixtures, row factories and database helpers
// shared by the package tests.
package testutil

import (
	"testing"

	"github.com/dan-strohschein/syndrdb-aggregates/schema"
)

// OrderShapes declares an order aggregate with a list, a map and a single
// relation, and a nested relation fetched by separate select.
const OrderShapes = `
entities:
  - name: Order
    table: purchase_order
    id: {name: id, column: id, type: INT}
    properties:
      - {name: customer, column: customer, type: STRING}
      - {name: tags, column: tags, type: STRING, array: true}
    relations:
      - {name: items, kind: list, entity: LineItem, backReference: order_id}
      - {name: attributes, kind: map, entity: Attribute, backReference: order_id, keyColumn: attr_key}
      - {name: shipping, kind: single, entity: Address, backReference: order_id}
  - name: LineItem
    table: line_item
    id: {name: id, column: id, type: INT}
    properties:
      - {name: sku, column: sku, type: STRING}
      - {name: quantity, column: quantity, type: INT}
    relations:
      - {name: notes, kind: list, entity: Note, backReference: item_id, fetch: select}
  - name: Note
    table: item_note
    id: {name: id, column: id, type: INT}
    properties:
      - {name: text, column: text, type: TEXT}
  - name: Attribute
    table: order_attribute
    properties:
      - {name: value, column: attr_value, type: STRING}
  - name: Address
    table: address
    id: {name: id, column: id, type: INT}
    properties:
      - {name: city, column: city, type: STRING}
`

// OrderColumns are the result columns of the joined order query, in the
// order the generator selects them.
var OrderColumns = []string{
	"id", "customer", "tags",
	"items__id", "items__sku", "items__quantity",
	"attributes__attr_key", "attributes__attr_value",
	"shipping__id", "shipping__city",
}

// NoteColumns are the result columns of the notes-of-item query.
var NoteColumns = []string{"id", "text"}

// OrderDDL creates the tables of the order aggregate.
var OrderDDL = []string{
	"CREATE TABLE purchase_order (id BIGINT PRIMARY KEY, customer VARCHAR, tags VARCHAR[])",
	"CREATE TABLE line_item (id BIGINT PRIMARY KEY, order_id BIGINT NOT NULL, sku VARCHAR, quantity BIGINT)",
	"CREATE TABLE item_note (id BIGINT PRIMARY KEY, item_id BIGINT NOT NULL, text VARCHAR)",
	"CREATE TABLE order_attribute (order_id BIGINT NOT NULL, attr_key VARCHAR NOT NULL, attr_value VARCHAR)",
	"CREATE TABLE address (id BIGINT PRIMARY KEY, order_id BIGINT NOT NULL, city VARCHAR)",
}

// Shapes parses OrderShapes or fails the test.
func Shapes(t testing.TB) *schema.Registry {
	t.Helper()

	reg, err := schema.ParseShapes([]byte(OrderShapes))
	if err != nil {
		t.Fatalf("failed to parse order shapes: %v", err)
	}
	return reg
}

// Order returns the Order root shape.
func Order(t testing.TB) *schema.Entity {
	t.Helper()

	order, ok := Shapes(t).Get("Order")
	if !ok {
		t.Fatal("order shape missing")
	}
	return order
}
