package aggregate

import (
	"context"
	"fmt"

	"github.com/dan-strohschein/syndrdb-aggregates/cursor"
	"github.com/dan-strohschein/syndrdb-aggregates/dataaccess"
	"github.com/dan-strohschein/syndrdb-aggregates/mapper"
	"github.com/dan-strohschein/syndrdb-aggregates/schema"
	"github.com/dan-strohschein/syndrdb-aggregates/sqlgen"
)

// column maps a property onto its result-set label.
type column struct {
	property string
	alias    string
}

// level is one entity position covered by the joined rows: the root, or a
// joined relation below it.
type level struct {
	path     schema.Path
	relation *schema.Relation
	entity   *schema.Entity
	identity string
	key      string
	kind     schema.PartKind
	columns  []column
}

// node is an entity under construction.
type node struct {
	id       schema.Identifier
	path     schema.Path
	entity   *schema.Entity
	values   mapper.RawEntity
	key      any
	children map[string][]*node
}

func (n *node) addChild(relation string, child *node) {
	if n.children == nil {
		n.children = make(map[string][]*node)
	}
	n.children[relation] = append(n.children[relation], child)
}

// assemblerConfig describes what the rows being assembled contain.
type assemblerConfig struct {
	shape *schema.Entity

	// identity is the root identity column; keyColumn the root map key
	// column, for children read on behalf of a map relation.
	identity  string
	keyColumn string

	joins    bool
	resolver RelationResolver

	// base is the path of the assembled entities from the aggregate root,
	// and parent the identifier of their parent, when assembling children.
	base   schema.Path
	parent *schema.Identifier
}

// assembler rebuilds nested entities from an ordered stream of joined rows
// in one forward pass. A root group ends when the peeked row carries a
// different root id or there is no next row.
type assembler struct {
	cfg    assemblerConfig
	levels []level
	joined map[schema.Path]bool

	// builders indexes the nodes of the current root group by identifier
	// hash. Equal confirms a match.
	builders map[uint64][]*node

	// deferred holds finished groups back until the rows are exhausted and
	// closed, because resolving them runs further queries.
	deferred bool
}

func newAssembler(cfg assemblerConfig) *assembler {
	a := &assembler{cfg: cfg, joined: map[schema.Path]bool{}}

	root := level{
		path:     schema.Root,
		entity:   cfg.shape,
		identity: schema.ColumnAlias(schema.Root, cfg.identity),
		kind:     schema.PartID,
		columns:  columnsOf(schema.Root, cfg.shape),
	}
	if cfg.keyColumn != "" {
		root.key = schema.ColumnAlias(schema.Root, cfg.keyColumn)
	}
	if cfg.shape.ID.ColumnName() == "" {
		root.kind = schema.PartKey
	}
	a.levels = append(a.levels, root)

	for _, jr := range sqlgen.JoinedRelations(cfg.shape, cfg.joins) {
		rel := jr.Relation
		lv := level{
			path:     jr.Path,
			relation: rel,
			entity:   rel.Target,
			identity: schema.ColumnAlias(jr.Path, rel.IdentityColumn()),
			kind:     partKind(rel),
			columns:  columnsOf(jr.Path, rel.Target),
		}
		if rel.Kind == schema.MAP {
			lv.key = schema.ColumnAlias(jr.Path, rel.KeyColumn)
		}
		a.levels = append(a.levels, lv)
		a.joined[jr.Path] = true
	}

	cfg.shape.Walk(func(path schema.Path, _ *schema.Relation) {
		if !a.joined[path] {
			a.deferred = true
		}
	})

	return a
}

func columnsOf(path schema.Path, entity *schema.Entity) []column {
	var cols []column
	if entity.ID.Name != "" {
		cols = append(cols, column{property: entity.ID.Name, alias: schema.ColumnAlias(path, entity.ID.ColumnName())})
	}
	for _, p := range entity.Properties {
		cols = append(cols, column{property: p.Name, alias: schema.ColumnAlias(path, p.ColumnName())})
	}
	return cols
}

func partKind(rel *schema.Relation) schema.PartKind {
	switch {
	case rel.Target.ID.ColumnName() != "":
		return schema.PartID
	case rel.Kind == schema.MAP:
		return schema.PartKey
	default:
		return schema.PartIndex
	}
}

// each assembles every root group of c and passes the finished raw root to
// emit. Rows must be ordered by root identity. Nothing is emitted for a
// group that fails.
//
// When relations are left to the resolver, c is read to the end and closed
// before the first group is finalized. A single connection cannot serve the
// resolver's queries while c still holds it.
func (a *assembler) each(ctx context.Context, c *cursor.Cursor, emit func(mapper.RawEntity) error) error {
	root := a.levels[0]
	var current *node
	var pending []*node

	for {
		ok, err := c.Next()
		if err != nil {
			return err
		}
		if !ok {
			break
		}

		rootValue, err := c.Value(root.identity)
		if err != nil {
			return err
		}
		if rootValue == nil {
			return dataaccess.ErrDataAccess("", fmt.Errorf("row without %s identity", a.cfg.shape.Name))
		}
		rootID := a.rootIdentifier(rootValue)

		if current == nil {
			a.builders = make(map[uint64][]*node)
			current, err = a.newNode(c, root, rootID)
			if err != nil {
				return err
			}
		}

		if err := a.row(c, current); err != nil {
			return err
		}

		next, err := c.Peek(root.identity)
		if err != nil {
			return err
		}
		if next != nil && a.rootIdentifier(next).Equal(rootID) {
			continue
		}

		group := current
		current = nil
		a.builders = nil

		if a.deferred {
			pending = append(pending, group)
			continue
		}
		if err := a.emit(ctx, group, emit); err != nil {
			return err
		}
	}

	if len(pending) == 0 {
		return nil
	}
	if err := c.Close(); err != nil {
		return err
	}
	for _, group := range pending {
		if err := a.emit(ctx, group, emit); err != nil {
			return err
		}
	}
	return nil
}

func (a *assembler) emit(ctx context.Context, n *node, emit func(mapper.RawEntity) error) error {
	raw, err := a.finalize(ctx, n)
	if err != nil {
		return err
	}
	return emit(raw)
}

func (a *assembler) rootIdentifier(value any) schema.Identifier {
	if a.cfg.parent != nil {
		return a.cfg.parent.WithPart(a.cfg.base, value, a.levels[0].kind)
	}
	return schema.RootIdentifier(value)
}

// row adds the children found in the current row below root. A level whose
// identity column is NULL has no child in this row, and its subtree is
// skipped.
func (a *assembler) row(c *cursor.Cursor, root *node) error {
	present := map[schema.Path]*node{schema.Root: root}

	for _, lv := range a.levels[1:] {
		parent := present[lv.path.Parent()]
		if parent == nil {
			continue
		}

		value, err := c.Value(lv.identity)
		if err != nil {
			return err
		}
		if value == nil {
			continue
		}

		id := parent.id.WithPart(lv.path, value, lv.kind)
		child := a.lookup(id)
		if child == nil {
			if lv.relation.Kind == schema.SINGLE && len(parent.children[lv.relation.Name]) > 0 {
				return dataaccess.ErrNonUniqueResult(a.fullPath(lv.path).String(), 1, 2)
			}
			child, err = a.newNode(c, lv, id)
			if err != nil {
				return err
			}
			parent.addChild(lv.relation.Name, child)
		}
		present[lv.path] = child
	}

	return nil
}

func (a *assembler) lookup(id schema.Identifier) *node {
	for _, n := range a.builders[id.Hash()] {
		if n.id.Equal(id) {
			return n
		}
	}
	return nil
}

func (a *assembler) newNode(c *cursor.Cursor, lv level, id schema.Identifier) (*node, error) {
	n := &node{id: id, path: lv.path, entity: lv.entity, values: make(mapper.RawEntity, len(lv.columns))}

	for _, col := range lv.columns {
		v, err := c.Value(col.alias)
		if err != nil {
			return nil, err
		}
		n.values[col.property] = v
	}

	if lv.key != "" {
		key, err := c.Value(lv.key)
		if err != nil {
			return nil, err
		}
		n.key = mapKey(key)
	}

	h := id.Hash()
	a.builders[h] = append(a.builders[h], n)
	return n, nil
}

// finalize turns n and everything below it into raw entities. Children are
// finished before their parent; relations not covered by the joined rows
// are filled by the resolver.
func (a *assembler) finalize(ctx context.Context, n *node) (mapper.RawEntity, error) {
	raw := make(mapper.RawEntity, len(n.values)+len(n.entity.Relations)+1)
	for k, v := range n.values {
		raw[k] = v
	}
	if n.path.IsRoot() && a.levels[0].key != "" {
		raw[mapper.KeyField] = n.key
	}

	for i := range n.entity.Relations {
		rel := &n.entity.Relations[i]
		path := n.path.Append(rel.Name)

		var children []mapper.RawEntity
		var keys []any

		if a.joined[path] {
			for _, child := range n.children[rel.Name] {
				childRaw, err := a.finalize(ctx, child)
				if err != nil {
					return nil, err
				}
				children = append(children, childRaw)
				keys = append(keys, child.key)
			}
		} else {
			if a.cfg.resolver == nil {
				return nil, dataaccess.ErrUnsupportedOperation("resolve "+a.fullPath(path).String(), "no relation resolver configured")
			}
			resolved, err := a.cfg.resolver.ResolveChildren(ctx, n.id, a.fullPath(path))
			if err != nil {
				return nil, err
			}
			children = resolved
			for _, child := range resolved {
				keys = append(keys, mapKey(child[mapper.KeyField]))
			}
		}

		value, err := a.collect(rel, path, children, keys)
		if err != nil {
			return nil, err
		}
		raw[rel.Name] = value
	}

	return raw, nil
}

// collect puts children into the container of rel's kind.
func (a *assembler) collect(rel *schema.Relation, path schema.Path, children []mapper.RawEntity, keys []any) (any, error) {
	switch rel.Kind {
	case schema.MAP:
		out := make(map[any]mapper.RawEntity, len(children))
		for i, child := range children {
			if _, dup := out[keys[i]]; dup {
				return nil, dataaccess.ErrNonUniqueResult(a.fullPath(path).String()+"["+fmt.Sprint(keys[i])+"]", 1, 2)
			}
			out[keys[i]] = child
		}
		return out, nil

	case schema.SINGLE:
		switch len(children) {
		case 0:
			return mapper.RawEntity(nil), nil
		case 1:
			return children[0], nil
		default:
			return nil, dataaccess.ErrNonUniqueResult(a.fullPath(path).String(), 1, len(children))
		}

	default:
		if children == nil {
			children = []mapper.RawEntity{}
		}
		return children, nil
	}
}

func (a *assembler) fullPath(path schema.Path) schema.Path {
	if a.cfg.base.IsRoot() {
		return path
	}
	if path.IsRoot() {
		return a.cfg.base
	}
	return schema.ParsePath(string(a.cfg.base) + "." + string(path))
}

// mapKey makes driver values usable as map keys.
func mapKey(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
