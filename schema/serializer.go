package schema

import (
	"fmt"
	"strings"
)

// SerializeCreateTables generates CREATE TABLE statements for e and every
// entity it owns, parents first. Child tables get their back reference and key
// columns added when the child shape does not declare them.
func SerializeCreateTables(e *Entity) []string {
	statements := []string{serializeCreateTable(e, nil)}
	e.Walk(func(path Path, rel *Relation) {
		statements = append(statements, serializeCreateTable(rel.Target, rel))
	})
	return statements
}

// SerializeDropTables generates DROP TABLE statements, children first.
func SerializeDropTables(e *Entity) []string {
	tables := []string{e.Table}
	e.Walk(func(path Path, rel *Relation) {
		tables = append(tables, rel.Target.Table)
	})

	statements := make([]string, 0, len(tables))
	for i := len(tables) - 1; i >= 0; i-- {
		statements = append(statements, fmt.Sprintf("DROP TABLE IF EXISTS %s;", tables[i]))
	}
	return statements
}

func serializeCreateTable(e *Entity, owner *Relation) string {
	var columns []string
	declared := map[string]bool{}

	if id := e.ID.ColumnName(); id != "" {
		columns = append(columns, fmt.Sprintf("    %s %s PRIMARY KEY", id, sqlType(e.ID.Type, false)))
		declared[strings.ToLower(id)] = true
	}

	if owner != nil {
		if !declared[strings.ToLower(owner.BackReference)] {
			columns = append(columns, fmt.Sprintf("    %s BIGINT NOT NULL", owner.BackReference))
			declared[strings.ToLower(owner.BackReference)] = true
		}
		if owner.KeyColumn != "" && !declared[strings.ToLower(owner.KeyColumn)] && !hasProperty(e, owner.KeyColumn) {
			keyType := "BIGINT"
			if owner.Kind == MAP {
				keyType = "VARCHAR"
			}
			columns = append(columns, fmt.Sprintf("    %s %s", owner.KeyColumn, keyType))
			declared[strings.ToLower(owner.KeyColumn)] = true
		}
	}

	for _, p := range e.Properties {
		col := p.ColumnName()
		if declared[strings.ToLower(col)] {
			continue
		}
		columns = append(columns, fmt.Sprintf("    %s %s", col, sqlType(p.Type, p.Array)))
		declared[strings.ToLower(col)] = true
	}

	return fmt.Sprintf("CREATE TABLE %s (\n%s\n);", e.Table, strings.Join(columns, ",\n"))
}

func hasProperty(e *Entity, column string) bool {
	for _, p := range e.Properties {
		if strings.EqualFold(p.ColumnName(), column) {
			return true
		}
	}
	return false
}

// sqlType maps a field type onto a column type understood by both Postgres
// and DuckDB.
func sqlType(t FieldType, array bool) string {
	var base string
	switch t {
	case INT:
		base = "BIGINT"
	case FLOAT:
		base = "FLOAT8"
	case BOOLEAN:
		base = "BOOLEAN"
	case DATETIME:
		base = "TIMESTAMP"
	case JSON:
		base = "JSON"
	case TEXT:
		base = "TEXT"
	case DECIMAL:
		base = "DECIMAL(18,4)"
	default:
		base = "VARCHAR"
	}

	if array {
		return base + "[]"
	}
	return base
}
