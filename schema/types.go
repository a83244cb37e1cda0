// Package schema describes the shape of an aggregate: the root entity, its
// simple properties and the owned relations reachable from it.
package schema

import (
	"strings"

	"github.com/dan-strohschein/syndrdb-aggregates/dataaccess"
)

// FieldType represents the logical type of a property column.
type FieldType string

const (
	STRING   FieldType = "STRING"
	INT      FieldType = "INT"
	FLOAT    FieldType = "FLOAT"
	BOOLEAN  FieldType = "BOOLEAN"
	DATETIME FieldType = "DATETIME"
	JSON     FieldType = "JSON"
	TEXT     FieldType = "TEXT"
	DECIMAL  FieldType = "DECIMAL"
)

// RelationKind is the container a relation materializes into.
type RelationKind string

const (
	// LIST keeps children in first-appearance row order.
	LIST RelationKind = "list"
	// MAP keys children by the relation's key column.
	MAP RelationKind = "map"
	// SINGLE holds at most one child.
	SINGLE RelationKind = "single"
)

// FetchMode decides how a relation is loaded.
type FetchMode string

const (
	// JOIN loads the relation from the single joined query.
	JOIN FetchMode = "join"
	// SELECT loads the relation through a RelationResolver, one query per parent.
	SELECT FetchMode = "select"
)

// Property is a column-backed value of an entity.
type Property struct {
	Name   string    `yaml:"name" json:"name"`
	Column string    `yaml:"column" json:"column"`
	Type   FieldType `yaml:"type" json:"type"`
	Array  bool      `yaml:"array" json:"array"`
}

// ColumnName returns the column, defaulting to the property name.
func (p Property) ColumnName() string {
	if p.Column != "" {
		return p.Column
	}
	return p.Name
}

// Relation is an owned association from a parent entity to child entities.
type Relation struct {
	Name string       `yaml:"name" json:"name"`
	Kind RelationKind `yaml:"kind" json:"kind"`

	// Entity names the related entity in a definitions file.
	Entity string `yaml:"entity" json:"entity"`

	// BackReference is the column of the child table holding the parent id.
	BackReference string `yaml:"backReference" json:"backReference"`

	// KeyColumn holds the map key or list index in the child table.
	KeyColumn string `yaml:"keyColumn" json:"keyColumn"`

	Fetch FetchMode `yaml:"fetch" json:"fetch"`

	// Target is the resolved child shape.
	Target *Entity `yaml:"-" json:"-"`
}

// FetchMode returns the relation's fetch mode, defaulting to JOIN.
func (r *Relation) FetchMode() FetchMode {
	if r.Fetch == "" {
		return JOIN
	}
	return r.Fetch
}

// IdentityColumn returns the child table column that identifies one child
// within its parent: the child's id column, or the key column for value
// entities without an id.
func (r *Relation) IdentityColumn() string {
	if r.Target != nil && r.Target.ID.ColumnName() != "" {
		return r.Target.ID.ColumnName()
	}
	return r.KeyColumn
}

// Entity is the explicit shape descriptor of one entity type. It is built
// once (in code or by ParseShapes) and reused for every read.
type Entity struct {
	Name       string     `yaml:"name" json:"name"`
	Table      string     `yaml:"table" json:"table"`
	ID         Property   `yaml:"id" json:"id"`
	Properties []Property `yaml:"properties" json:"properties"`
	Relations  []Relation `yaml:"relations" json:"relations"`
}

// Relation returns the relation with the given name.
func (e *Entity) Relation(name string) (*Relation, bool) {
	for i := range e.Relations {
		if e.Relations[i].Name == name {
			return &e.Relations[i], true
		}
	}
	return nil, false
}

// Resolve follows path from e and returns the relation at its leaf.
func (e *Entity) Resolve(path Path) (*Relation, bool) {
	current := e
	var rel *Relation
	for _, hop := range path.Segments() {
		if current == nil {
			return nil, false
		}
		r, ok := current.Relation(hop)
		if !ok {
			return nil, false
		}
		rel = r
		current = r.Target
	}
	return rel, rel != nil
}

// Walk visits every relation reachable from e depth-first, parents before
// children, in declaration order.
func (e *Entity) Walk(fn func(path Path, rel *Relation)) {
	e.walk(Root, fn)
}

func (e *Entity) walk(parent Path, fn func(path Path, rel *Relation)) {
	for i := range e.Relations {
		rel := &e.Relations[i]
		path := parent.Append(rel.Name)
		fn(path, rel)
		if rel.Target != nil {
			rel.Target.walk(path, fn)
		}
	}
}

// Validate checks that e can be read by the assembly engine.
func (e *Entity) Validate() error {
	return e.validate(map[*Entity]bool{})
}

func (e *Entity) validate(visiting map[*Entity]bool) error {
	if e.Name == "" {
		return dataaccess.ErrInvalidShape("", "entity name is required")
	}
	if e.Table == "" {
		return dataaccess.ErrInvalidShape(e.Name, "table is required")
	}
	if visiting[e] {
		return dataaccess.ErrInvalidShape(e.Name, "relation cycle detected")
	}
	visiting[e] = true
	defer delete(visiting, e)

	seen := map[string]bool{}
	for _, p := range e.Properties {
		if p.Name == "" {
			return dataaccess.ErrInvalidShape(e.Name, "property without name")
		}
		if seen[p.Name] {
			return dataaccess.ErrInvalidShape(e.Name, "duplicate property "+p.Name)
		}
		seen[p.Name] = true
	}

	if len(e.Relations) > 0 && e.ID.ColumnName() == "" {
		return dataaccess.ErrInvalidShape(e.Name, "an entity owning relations needs an id")
	}

	for i := range e.Relations {
		rel := &e.Relations[i]
		if seen[rel.Name] {
			return dataaccess.ErrInvalidShape(e.Name, "duplicate property "+rel.Name)
		}
		seen[rel.Name] = true

		if rel.Target == nil {
			return dataaccess.ErrInvalidShape(e.Name, "relation "+rel.Name+" has no target entity")
		}
		if rel.BackReference == "" {
			return dataaccess.ErrInvalidShape(e.Name, "relation "+rel.Name+" needs a back reference column")
		}

		switch rel.Kind {
		case LIST, SINGLE:
		case MAP:
			if rel.KeyColumn == "" {
				return dataaccess.ErrInvalidShape(e.Name, "map relation "+rel.Name+" needs a key column")
			}
		default:
			return dataaccess.ErrInvalidShape(e.Name, "relation "+rel.Name+" has unknown kind "+string(rel.Kind))
		}

		switch rel.FetchMode() {
		case JOIN, SELECT:
		default:
			return dataaccess.ErrInvalidShape(e.Name, "relation "+rel.Name+" has unknown fetch mode "+string(rel.Fetch))
		}

		if rel.IdentityColumn() == "" {
			return dataaccess.ErrInvalidShape(e.Name, "relation "+rel.Name+" has neither a child id nor a key column")
		}

		if err := rel.Target.validate(visiting); err != nil {
			return err
		}
	}

	return nil
}

// HasJoinedRelations reports whether any relation of e is loaded by join.
func (e *Entity) HasJoinedRelations() bool {
	for i := range e.Relations {
		if e.Relations[i].FetchMode() == JOIN {
			return true
		}
	}
	return false
}

// ColumnAlias is the result-set label of column for the entity at path.
// Root columns keep their name; nested columns are prefixed with the path
// alias so sibling tables never collide.
func ColumnAlias(path Path, column string) string {
	if path.IsRoot() {
		return strings.ToLower(column)
	}
	return path.Alias() + "__" + strings.ToLower(column)
}
