package aggregate

import (
	"context"
	"fmt"
	"sync"

	"github.com/dan-strohschein/syndrdb-aggregates/cursor"
	"github.com/dan-strohschein/syndrdb-aggregates/dataaccess"
	"github.com/dan-strohschein/syndrdb-aggregates/mapper"
	"github.com/dan-strohschein/syndrdb-aggregates/schema"
	"github.com/dan-strohschein/syndrdb-aggregates/sqlgen"
	"github.com/dan-strohschein/syndrdb-aggregates/transport"
)

// RelationResolver loads the children of one parent for the relation at a
// path. On success the slice is never nil. Children of map relations carry
// their key under mapper.KeyField.
type RelationResolver interface {
	ResolveChildren(ctx context.Context, id schema.Identifier, path schema.Path) ([]mapper.RawEntity, error)
}

// ResolverFactory creates the resolver used for one read of shape.
type ResolverFactory func(shape *schema.Entity) RelationResolver

// JoinedResolver resolves nothing. It stands in for relations already
// covered by the joined query.
type JoinedResolver struct{}

// ResolveChildren returns an empty slice.
func (JoinedResolver) ResolveChildren(context.Context, schema.Identifier, schema.Path) ([]mapper.RawEntity, error) {
	return []mapper.RawEntity{}, nil
}

// QueryResolver runs one query per parent and relation. The children's own
// relations are joined into that query where their fetch mode allows, and
// resolved through the same resolver otherwise.
type QueryResolver struct {
	shape     *schema.Entity
	transport transport.Transport
	generator *sqlgen.Generator

	// self receives nested resolutions, so a wrapping cache sees them too.
	self RelationResolver
}

// NewQueryResolver creates a resolver for relations of the aggregate shape.
func NewQueryResolver(tr transport.Transport, gen *sqlgen.Generator, shape *schema.Entity) *QueryResolver {
	r := &QueryResolver{shape: shape, transport: tr, generator: gen}
	r.self = r
	return r
}

// ResolveChildren implements RelationResolver. The parent is addressed by
// the last value of id.
func (r *QueryResolver) ResolveChildren(ctx context.Context, id schema.Identifier, path schema.Path) ([]mapper.RawEntity, error) {
	rel, ok := r.shape.Resolve(path)
	if !ok {
		return nil, dataaccess.ErrInvalidShape(r.shape.Name, fmt.Sprintf("no relation at path %s", path))
	}

	stmt, err := r.generator.SelectChildren(r.shape, path, id.Last())
	if err != nil {
		return nil, dataaccess.ErrInvalidShape(r.shape.Name, err.Error())
	}

	rows, err := r.transport.Query(ctx, stmt.SQL, stmt.Params)
	if err != nil {
		return nil, dataaccess.ErrDataAccess(stmt.SQL, err)
	}
	c := cursor.New(rows)
	defer c.Close()

	cfg := assemblerConfig{
		shape:    rel.Target,
		identity: rel.IdentityColumn(),
		joins:    r.generator.Joins(),
		resolver: r.self,
		base:     path,
		parent:   &id,
	}
	if rel.Kind == schema.MAP {
		cfg.keyColumn = rel.KeyColumn
	}

	children := make([]mapper.RawEntity, 0)
	err = newAssembler(cfg).each(ctx, c, func(raw mapper.RawEntity) error {
		children = append(children, raw)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return children, nil
}

// CachingResolver memoizes another resolver per relation path and parent
// identifier. It is meant to live for one read call.
type CachingResolver struct {
	next RelationResolver

	mu      sync.Mutex
	entries map[schema.Path]map[uint64][]cacheEntry
}

type cacheEntry struct {
	id       schema.Identifier
	children []mapper.RawEntity
}

// NewCachingResolver wraps next. A QueryResolver routes its nested
// resolutions through the cache as well.
func NewCachingResolver(next RelationResolver) *CachingResolver {
	c := &CachingResolver{next: next, entries: make(map[schema.Path]map[uint64][]cacheEntry)}
	if q, ok := next.(*QueryResolver); ok {
		q.self = c
	}
	return c
}

// ResolveChildren implements RelationResolver.
func (c *CachingResolver) ResolveChildren(ctx context.Context, id schema.Identifier, path schema.Path) ([]mapper.RawEntity, error) {
	h := id.Hash()

	c.mu.Lock()
	for _, e := range c.entries[path][h] {
		if e.id.Equal(id) {
			c.mu.Unlock()
			return e.children, nil
		}
	}
	c.mu.Unlock()

	children, err := c.next.ResolveChildren(ctx, id, path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	byID, ok := c.entries[path]
	if !ok {
		byID = make(map[uint64][]cacheEntry)
		c.entries[path] = byID
	}
	byID[h] = append(byID[h], cacheEntry{id: id, children: children})
	return children, nil
}

// Len returns the number of cached resolutions.
func (c *CachingResolver) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, byID := range c.entries {
		for _, entries := range byID {
			n += len(entries)
		}
	}
	return n
}
