package schema

import (
	"strings"
	"testing"
)

const orderShapes = `
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
`

func TestParseShapes(t *testing.T) {
	reg, err := ParseShapes([]byte(orderShapes))
	if err != nil {
		t.Fatalf("ParseShapes failed: %v", err)
	}

	order, ok := reg.Get("Order")
	if !ok {
		t.Fatal("expected Order shape")
	}

	if len(order.Relations) != 2 {
		t.Fatalf("expected 2 relations, got %d", len(order.Relations))
	}

	items, _ := order.Relation("items")
	if items.Target == nil || items.Target.Name != "LineItem" {
		t.Errorf("items relation not linked: %+v", items.Target)
	}

	if items.FetchMode() != JOIN {
		t.Errorf("expected default fetch mode join, got %s", items.FetchMode())
	}

	attrs, _ := order.Relation("attributes")
	if attrs.IdentityColumn() != "attr_key" {
		t.Errorf("map relation without child id should be identified by key column, got %q", attrs.IdentityColumn())
	}

	roots := reg.Roots()
	if len(roots) != 1 || roots[0].Name != "Order" {
		t.Errorf("expected Order as only root, got %v", roots)
	}

	if got := reg.Names(); strings.Join(got, ",") != "Order,LineItem,Note,Attribute" {
		t.Errorf("unexpected declaration order %v", got)
	}
}

func TestParseShapes_UnknownEntity(t *testing.T) {
	_, err := ParseShapes([]byte(`
entities:
  - name: Order
    table: purchase_order
    id: {name: id}
    relations:
      - {name: items, kind: list, entity: Missing, backReference: order_id}
`))
	if err == nil {
		t.Fatal("expected error for unknown relation target")
	}
}

func TestValidate(t *testing.T) {
	child := &Entity{Name: "Child", Table: "child"}

	tests := []struct {
		name    string
		entity  *Entity
		wantErr bool
	}{
		{"no table", &Entity{Name: "A"}, true},
		{"map without key", &Entity{Name: "A", Table: "a", Relations: []Relation{
			{Name: "m", Kind: MAP, BackReference: "a_id", Target: &Entity{Name: "C", Table: "c", ID: Property{Name: "id"}}},
		}}, true},
		{"list of value entities without key", &Entity{Name: "A", Table: "a", Relations: []Relation{
			{Name: "l", Kind: LIST, BackReference: "a_id", Target: child},
		}}, true},
		{"list of value entities with index", &Entity{Name: "A", Table: "a", Relations: []Relation{
			{Name: "l", Kind: LIST, BackReference: "a_id", KeyColumn: "idx", Target: child},
		}}, false},
		{"unknown kind", &Entity{Name: "A", Table: "a", Relations: []Relation{
			{Name: "l", Kind: "set", BackReference: "a_id", KeyColumn: "idx", Target: child},
		}}, true},
		{"duplicate property", &Entity{Name: "A", Table: "a", Properties: []Property{{Name: "x"}, {Name: "x"}}}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.entity.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidate_Cycle(t *testing.T) {
	a := &Entity{Name: "A", Table: "a", ID: Property{Name: "id"}}
	b := &Entity{Name: "B", Table: "b", ID: Property{Name: "id"}}
	a.Relations = []Relation{{Name: "bs", Kind: LIST, BackReference: "a_id", Target: b}}
	b.Relations = []Relation{{Name: "as", Kind: LIST, BackReference: "b_id", Target: a}}

	if err := a.Validate(); err == nil {
		t.Fatal("expected cycle to be rejected")
	}
}

func TestWalkOrderAndResolve(t *testing.T) {
	reg, err := ParseShapes([]byte(orderShapes))
	if err != nil {
		t.Fatalf("ParseShapes failed: %v", err)
	}
	order, _ := reg.Get("Order")

	var paths []string
	order.Walk(func(path Path, rel *Relation) {
		paths = append(paths, string(path))
	})

	want := "items,items.notes,attributes"
	if got := strings.Join(paths, ","); got != want {
		t.Errorf("Walk order = %s, want %s", got, want)
	}

	rel, ok := order.Resolve(ParsePath("items.notes"))
	if !ok || rel.Target.Name != "Note" {
		t.Errorf("Resolve(items.notes) = %v, %v", rel, ok)
	}

	if _, ok := order.Resolve(ParsePath("items.missing")); ok {
		t.Error("expected unknown path to fail")
	}
}

func TestPath(t *testing.T) {
	p := Root.Append("items").Append("notes")

	if p.Depth() != 2 {
		t.Errorf("Depth() = %d, want 2", p.Depth())
	}
	if p.Parent() != Path("items") {
		t.Errorf("Parent() = %s", p.Parent())
	}
	if p.Leaf() != "notes" {
		t.Errorf("Leaf() = %s", p.Leaf())
	}
	if p.Parent().Parent() != Root || !Root.IsRoot() {
		t.Error("expected parent chain to end at root")
	}
	if p.Alias() != "items_notes" {
		t.Errorf("Alias() = %s", p.Alias())
	}
	if ColumnAlias(p, "ID") != "items_notes__id" {
		t.Errorf("ColumnAlias = %s", ColumnAlias(p, "ID"))
	}
	if ColumnAlias(Root, "Customer") != "customer" {
		t.Errorf("root ColumnAlias = %s", ColumnAlias(Root, "Customer"))
	}
}

func TestIdentifier(t *testing.T) {
	a := RootIdentifier(int64(1)).WithPart("items", int32(7), PartID)
	b := RootIdentifier(1).WithPart("items", int64(7), PartID)
	c := RootIdentifier(1).WithPart("items", int64(8), PartID)

	if !a.Equal(b) {
		t.Error("identifiers with numerically equal values should be equal")
	}
	if a.Hash() != b.Hash() {
		t.Error("equal identifiers must hash equally")
	}
	if a.Equal(c) {
		t.Error("different child ids should not be equal")
	}
	if a.Last() != int32(7) || a.Depth() != 1 {
		t.Errorf("Last() = %v, Depth() = %d", a.Last(), a.Depth())
	}

	root := RootIdentifier("k")
	extended := root.WithPart("attributes", "color", PartKey)
	if root.Depth() != 0 {
		t.Error("WithPart must not modify the receiver")
	}
	if extended.Root() != "k" {
		t.Errorf("Root() = %v", extended.Root())
	}
	if RootIdentifier([]byte("k")).Hash() != root.Hash() {
		t.Error("[]byte and string ids should hash equally")
	}
}

func TestSerializeCreateTables(t *testing.T) {
	reg, err := ParseShapes([]byte(orderShapes))
	if err != nil {
		t.Fatalf("ParseShapes failed: %v", err)
	}
	order, _ := reg.Get("Order")

	stmts := SerializeCreateTables(order)
	if len(stmts) != 4 {
		t.Fatalf("expected 4 statements, got %d", len(stmts))
	}

	if !strings.Contains(stmts[0], "CREATE TABLE purchase_order") || !strings.Contains(stmts[0], "tags VARCHAR[]") {
		t.Errorf("unexpected root DDL: %s", stmts[0])
	}
	if !strings.Contains(stmts[1], "order_id BIGINT NOT NULL") {
		t.Errorf("expected back reference column in: %s", stmts[1])
	}
	if !strings.Contains(stmts[3], "attr_key VARCHAR") {
		t.Errorf("expected map key column in: %s", stmts[3])
	}

	drops := SerializeDropTables(order)
	if drops[len(drops)-1] != "DROP TABLE IF EXISTS purchase_order;" {
		t.Errorf("root table should be dropped last: %v", drops)
	}
}
