// Package aggregate reads aggregate object graphs, a root entity plus the
// lists, maps and single entities it owns, with as few queries as possible.
//
// Relations with fetch mode join are read together with their root in one
// joined, ordered query and reassembled in a single forward pass over the
// rows. Relations with fetch mode select go through a RelationResolver.
package aggregate

import (
	"context"
	"errors"
	"sync"

	"github.com/dan-strohschein/syndrdb-aggregates/cursor"
	"github.com/dan-strohschein/syndrdb-aggregates/dataaccess"
	"github.com/dan-strohschein/syndrdb-aggregates/dialect"
	"github.com/dan-strohschein/syndrdb-aggregates/mapper"
	"github.com/dan-strohschein/syndrdb-aggregates/schema"
	"github.com/dan-strohschein/syndrdb-aggregates/sqlgen"
	"github.com/dan-strohschein/syndrdb-aggregates/transport"
)

// Option configures a Reader.
type Option func(*Reader)

// WithConverter sets the converter applied to every assembled root. The
// default produces mapper.Documents.
func WithConverter(c mapper.Converter) Option {
	return func(r *Reader) {
		r.converter = c
	}
}

// WithDialect sets the dialect whose array capabilities the default
// converter uses.
func WithDialect(d dialect.Dialect) Option {
	return func(r *Reader) {
		r.dialect = d
	}
}

// WithSingleQuery switches joining of join-fetched relations. When off,
// every relation is loaded through the resolver.
func WithSingleQuery(enabled bool) Option {
	return func(r *Reader) {
		r.singleQuery = enabled
	}
}

// WithResolverFactory replaces the per-read resolver. The default is a
// caching QueryResolver.
func WithResolverFactory(f ResolverFactory) Option {
	return func(r *Reader) {
		r.resolvers = f
	}
}

// Reader loads aggregates. It is safe for concurrent use; every call owns
// its own cursor and resolver.
type Reader struct {
	transport   transport.Transport
	generator   *sqlgen.Generator
	converter   mapper.Converter
	dialect     dialect.Dialect
	resolvers   ResolverFactory
	singleQuery bool

	validated sync.Map
}

// NewReader creates a reader on tr.
func NewReader(tr transport.Transport, opts ...Option) *Reader {
	r := &Reader{
		transport:   tr,
		dialect:     dialect.Generic(""),
		singleQuery: true,
	}
	for _, opt := range opts {
		opt(r)
	}

	r.generator = sqlgen.New(r.singleQuery)
	if r.converter == nil {
		r.converter = mapper.NewDocumentConverter(r.dialect.ArrayColumns())
	}
	if r.resolvers == nil {
		r.resolvers = func(shape *schema.Entity) RelationResolver {
			return NewCachingResolver(NewQueryResolver(r.transport, r.generator, shape))
		}
	}
	return r
}

// FindByID loads the aggregate whose root id is id.
func (r *Reader) FindByID(ctx context.Context, id any, shape *schema.Entity) (any, bool, error) {
	if err := r.validate(shape); err != nil {
		return nil, false, err
	}

	results, err := r.read(ctx, shape, r.generator.SelectByID(shape, id), 1)
	if err != nil {
		return nil, false, err
	}
	if len(results) == 0 {
		return nil, false, nil
	}
	return results[0], true, nil
}

// ExistsByID reports whether an aggregate with root id exists.
func (r *Reader) ExistsByID(ctx context.Context, id any, shape *schema.Entity) (bool, error) {
	_, found, err := r.FindByID(ctx, id, shape)
	return found, err
}

// FindAll loads every aggregate of shape in root id order.
func (r *Reader) FindAll(ctx context.Context, shape *schema.Entity) ([]any, error) {
	if err := r.validate(shape); err != nil {
		return nil, err
	}
	return r.read(ctx, shape, r.generator.SelectAll(shape), -1)
}

// FindAllByID loads the aggregates with the given root ids. Ids without an
// aggregate are skipped; results follow root id order, not the order of ids.
func (r *Reader) FindAllByID(ctx context.Context, ids []any, shape *schema.Entity) ([]any, error) {
	if err := r.validate(shape); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []any{}, nil
	}
	return r.read(ctx, shape, r.generator.SelectByIDs(shape, ids), -1)
}

// FindOne loads the single aggregate matching query. More than one matching
// root fails with a non-unique result error.
func (r *Reader) FindOne(ctx context.Context, query Query, shape *schema.Entity) (any, bool, error) {
	if err := r.validate(shape); err != nil {
		return nil, false, err
	}

	results, err := r.read(ctx, shape, r.generator.SelectWhere(shape, query.Where, query.Params), 1)
	if err != nil {
		return nil, false, err
	}
	if len(results) == 0 {
		return nil, false, nil
	}
	return results[0], true, nil
}

// FindAllByQuery loads every aggregate matching query.
func (r *Reader) FindAllByQuery(ctx context.Context, query Query, shape *schema.Entity) ([]any, error) {
	if err := r.validate(shape); err != nil {
		return nil, err
	}
	return r.read(ctx, shape, r.generator.SelectWhere(shape, query.Where, query.Params), -1)
}

// FindAllSorted is not supported by the joined reader.
func (r *Reader) FindAllSorted(ctx context.Context, shape *schema.Entity, sort Sort) ([]any, error) {
	return nil, dataaccess.ErrUnsupportedOperation("FindAllSorted", "sorting is not supported by the single query reader")
}

// FindAllPaged is not supported by the joined reader.
func (r *Reader) FindAllPaged(ctx context.Context, shape *schema.Entity, page Page) ([]any, error) {
	return nil, dataaccess.ErrUnsupportedOperation("FindAllPaged", "paging is not supported by the single query reader")
}

// FindAllByQuerySorted is not supported by the joined reader.
func (r *Reader) FindAllByQuerySorted(ctx context.Context, query Query, shape *schema.Entity, sort Sort) ([]any, error) {
	return nil, dataaccess.ErrUnsupportedOperation("FindAllByQuerySorted", "sorting is not supported by the single query reader")
}

// FindAllByQueryPaged is not supported by the joined reader.
func (r *Reader) FindAllByQueryPaged(ctx context.Context, query Query, shape *schema.Entity, page Page) ([]any, error) {
	return nil, dataaccess.ErrUnsupportedOperation("FindAllByQueryPaged", "paging is not supported by the single query reader")
}

// CountByQuery is not supported by the joined reader.
func (r *Reader) CountByQuery(ctx context.Context, query Query, shape *schema.Entity) (int64, error) {
	return 0, dataaccess.ErrUnsupportedOperation("CountByQuery", "counting is not supported by the single query reader")
}

var errSecondRoot = errors.New("second root")

// read runs stmt and assembles, converts and collects the roots. With
// unique > 0, a root beyond that count fails the read.
func (r *Reader) read(ctx context.Context, shape *schema.Entity, stmt sqlgen.Statement, unique int) ([]any, error) {
	rows, err := r.transport.Query(ctx, stmt.SQL, stmt.Params)
	if err != nil {
		return nil, dataaccess.ErrDataAccess(stmt.SQL, err)
	}
	c := cursor.New(rows)
	defer c.Close()

	asm := newAssembler(assemblerConfig{
		shape:    shape,
		identity: shape.ID.ColumnName(),
		joins:    r.singleQuery,
		resolver: r.resolvers(shape),
	})

	results := make([]any, 0)
	err = asm.each(ctx, c, func(raw mapper.RawEntity) error {
		if unique > 0 && len(results) == unique {
			return errSecondRoot
		}

		converted, err := r.converter.Convert(raw, shape)
		if err != nil {
			var typed *dataaccess.Error
			if errors.As(err, &typed) {
				return err
			}
			return dataaccess.ErrConversion(shape.Name, err)
		}
		results = append(results, converted)
		return nil
	})
	if errors.Is(err, errSecondRoot) {
		return nil, dataaccess.ErrNonUniqueResult(shape.Name, unique, unique+1)
	}
	if err != nil {
		return nil, err
	}

	return results, nil
}

func (r *Reader) validate(shape *schema.Entity) error {
	if shape == nil {
		return dataaccess.ErrInvalidShape("", "shape is required")
	}
	if _, ok := r.validated.Load(shape); ok {
		return nil
	}
	if shape.ID.ColumnName() == "" {
		return dataaccess.ErrInvalidShape(shape.Name, "an aggregate root needs an id")
	}
	if err := shape.Validate(); err != nil {
		return err
	}
	r.validated.Store(shape, true)
	return nil
}
