// Package sqlgen builds the SELECT statements the aggregate reader runs: one
// joined query per aggregate read, and one query per parent for relations
// fetched separately.
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/dan-strohschein/syndrdb-aggregates/schema"
	"github.com/dan-strohschein/syndrdb-aggregates/transport"
)

// RootAlias is the table alias of the root entity. Query predicates refer
// to root columns through it.
const RootAlias = "t0"

// Parameter names used by generated statements.
const (
	IDParam     = "id"
	IDsParam    = "ids"
	ParentParam = "parent_id"
)

// Statement is SQL with named parameters.
type Statement struct {
	SQL    string
	Params transport.Params
}

// JoinedRelation is a relation loaded by the joined query.
type JoinedRelation struct {
	Path     schema.Path
	Relation *schema.Relation
}

// JoinedRelations returns, in depth-first declaration order, the relations
// of shape that the joined query covers: join-fetched relations whose
// ancestors are joined too. With joins disabled there are none.
func JoinedRelations(shape *schema.Entity, joins bool) []JoinedRelation {
	if !joins {
		return nil
	}

	var out []JoinedRelation
	joined := map[schema.Path]bool{schema.Root: true}
	shape.Walk(func(path schema.Path, rel *schema.Relation) {
		if !joined[path.Parent()] || rel.FetchMode() != schema.JOIN {
			return
		}
		joined[path] = true
		out = append(out, JoinedRelation{Path: path, Relation: rel})
	})
	return out
}

// Generator renders statements for entity shapes.
type Generator struct {
	joins bool
}

// New creates a generator. With joins the statements join every
// join-fetched relation into a single query.
func New(joins bool) *Generator {
	return &Generator{joins: joins}
}

// Joins reports whether statements join relations.
func (g *Generator) Joins() bool {
	return g.joins
}

// SelectAll reads every aggregate of shape.
func (g *Generator) SelectAll(shape *schema.Entity) Statement {
	return Statement{SQL: g.render(shape, shape.ID.ColumnName(), "", nil, ""), Params: transport.Params{}}
}

// SelectByID reads the aggregate with root id.
func (g *Generator) SelectByID(shape *schema.Entity, id any) Statement {
	where := fmt.Sprintf("%s.%s = :%s", RootAlias, shape.ID.ColumnName(), IDParam)
	return Statement{
		SQL:    g.render(shape, shape.ID.ColumnName(), "", nil, where),
		Params: transport.Params{IDParam: id},
	}
}

// SelectByIDs reads the aggregates whose root id is one of ids.
func (g *Generator) SelectByIDs(shape *schema.Entity, ids []any) Statement {
	where := fmt.Sprintf("%s.%s IN (:%s)", RootAlias, shape.ID.ColumnName(), IDsParam)
	return Statement{
		SQL:    g.render(shape, shape.ID.ColumnName(), "", nil, where),
		Params: transport.Params{IDsParam: transport.In(ids...)},
	}
}

// SelectWhere reads the aggregates whose root row satisfies where. The
// predicate addresses root columns through RootAlias.
func (g *Generator) SelectWhere(shape *schema.Entity, where string, params transport.Params) Statement {
	if params == nil {
		params = transport.Params{}
	}
	return Statement{SQL: g.render(shape, shape.ID.ColumnName(), "", nil, where), Params: params}
}

// SelectChildren reads the children of the relation at path that belong to
// the parent with id parent. The child entity is selected as the root of the
// statement, so its columns carry root aliases; the relation's key column
// is included as well, and a list index orders the children.
func (g *Generator) SelectChildren(shape *schema.Entity, path schema.Path, parent any) (Statement, error) {
	rel, ok := shape.Resolve(path)
	if !ok {
		return Statement{}, fmt.Errorf("no relation at path %s of %s", path, shape.Name)
	}

	var extra []string
	if rel.KeyColumn != "" {
		extra = append(extra, rel.KeyColumn)
	}

	where := fmt.Sprintf("%s.%s = :%s", RootAlias, rel.BackReference, ParentParam)
	return Statement{
		SQL:    g.render(rel.Target, rel.IdentityColumn(), listIndex(rel), extra, where),
		Params: transport.Params{ParentParam: parent},
	}, nil
}

// listIndex returns the index column of a list relation, or "".
func listIndex(rel *schema.Relation) string {
	if rel.Kind == schema.LIST {
		return rel.KeyColumn
	}
	return ""
}

type selectBuilder struct {
	columns []string
	joins   []string
	order   []string
}

// level selects the columns of one entity position and orders it by index,
// when there is one, then by identity.
func (b *selectBuilder) level(table string, path schema.Path, entity *schema.Entity, identity, index string, extra []string) {
	seen := map[string]bool{}
	add := func(column string) {
		if column == "" || seen[strings.ToLower(column)] {
			return
		}
		seen[strings.ToLower(column)] = true
		b.columns = append(b.columns, fmt.Sprintf("%s.%s AS %s", table, column, schema.ColumnAlias(path, column)))
	}

	add(identity)
	add(entity.ID.ColumnName())
	add(index)
	for _, column := range extra {
		add(column)
	}
	for _, p := range entity.Properties {
		add(p.ColumnName())
	}

	if index != "" && !strings.EqualFold(index, identity) {
		b.order = append(b.order, table+"."+index)
	}
	b.order = append(b.order, table+"."+identity)
}

func (g *Generator) render(shape *schema.Entity, identity, index string, extra []string, where string) string {
	b := &selectBuilder{}
	b.level(RootAlias, schema.Root, shape, identity, index, extra)

	aliases := map[schema.Path]string{schema.Root: RootAlias}
	entities := map[schema.Path]*schema.Entity{schema.Root: shape}

	for i, jr := range JoinedRelations(shape, g.joins) {
		rel := jr.Relation
		alias := fmt.Sprintf("t%d", i+1)
		parent := jr.Path.Parent()

		aliases[jr.Path] = alias
		entities[jr.Path] = rel.Target

		b.joins = append(b.joins, fmt.Sprintf("LEFT JOIN %s %s ON %s.%s = %s.%s",
			rel.Target.Table, alias,
			alias, rel.BackReference,
			aliases[parent], entities[parent].ID.ColumnName(),
		))

		var extra []string
		if rel.Kind == schema.MAP {
			extra = append(extra, rel.KeyColumn)
		}
		b.level(alias, jr.Path, rel.Target, rel.IdentityColumn(), listIndex(rel), extra)
	}

	var sql strings.Builder
	sql.WriteString("SELECT ")
	sql.WriteString(strings.Join(b.columns, ", "))
	sql.WriteString(" FROM ")
	sql.WriteString(shape.Table)
	sql.WriteString(" ")
	sql.WriteString(RootAlias)
	for _, join := range b.joins {
		sql.WriteString(" ")
		sql.WriteString(join)
	}
	if where != "" {
		sql.WriteString(" WHERE ")
		sql.WriteString(where)
	}
	sql.WriteString(" ORDER BY ")
	sql.WriteString(strings.Join(b.order, ", "))

	return sql.String()
}
