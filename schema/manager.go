package schema

import (
	"fmt"
	"io"
	"sort"

	yaml "gopkg.in/yaml.v2"

	"github.com/dan-strohschein/syndrdb-aggregates/dataaccess"
)

// Definitions is the on-disk form of a set of entity shapes. YAML and JSON
// files share the same layout.
type Definitions struct {
	Entities []Entity `yaml:"entities" json:"entities"`
}

// Registry holds linked, validated entity shapes by name.
type Registry struct {
	entities map[string]*Entity
	order    []string
}

// NewRegistry links the given shapes, resolving every relation's Entity name
// to its Target, and validates them.
func NewRegistry(entities ...*Entity) (*Registry, error) {
	reg := &Registry{
		entities: make(map[string]*Entity, len(entities)),
		order:    make([]string, 0, len(entities)),
	}

	for _, e := range entities {
		if _, exists := reg.entities[e.Name]; exists {
			return nil, dataaccess.ErrInvalidShape(e.Name, "entity declared twice")
		}
		reg.entities[e.Name] = e
		reg.order = append(reg.order, e.Name)
	}

	for _, e := range entities {
		for i := range e.Relations {
			rel := &e.Relations[i]
			if rel.Target != nil {
				continue
			}
			target, ok := reg.entities[rel.Entity]
			if !ok {
				return nil, dataaccess.ErrInvalidShape(e.Name, fmt.Sprintf("relation %s references unknown entity %q", rel.Name, rel.Entity))
			}
			rel.Target = target
		}
	}

	for _, e := range entities {
		if err := e.Validate(); err != nil {
			return nil, err
		}
	}

	return reg, nil
}

// ParseShapes parses a YAML (or JSON) definitions document.
func ParseShapes(data []byte) (*Registry, error) {
	defs := &Definitions{}
	if err := yaml.Unmarshal(data, defs); err != nil {
		return nil, fmt.Errorf("failed to parse shape definitions: %w", err)
	}

	entities := make([]*Entity, len(defs.Entities))
	for i := range defs.Entities {
		entities[i] = &defs.Entities[i]
	}

	return NewRegistry(entities...)
}

// LoadShapes reads and parses a definitions document.
func LoadShapes(data io.Reader) (*Registry, error) {
	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}
	return ParseShapes(buf)
}

// Get returns the shape with the given name.
func (r *Registry) Get(name string) (*Entity, bool) {
	e, ok := r.entities[name]
	return e, ok
}

// Names returns the declared entity names in declaration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Roots returns the entities no other entity owns, sorted by name.
func (r *Registry) Roots() []*Entity {
	owned := map[*Entity]bool{}
	for _, e := range r.entities {
		for i := range e.Relations {
			owned[e.Relations[i].Target] = true
		}
	}

	roots := make([]*Entity, 0)
	for _, e := range r.entities {
		if !owned[e] {
			roots = append(roots, e)
		}
	}

	sort.Slice(roots, func(i, j int) bool { return roots[i].Name < roots[j].Name })
	return roots
}
