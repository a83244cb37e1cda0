package migration

import (
	"fmt"
	"regexp"
	"strings"
)

const identifier = `((?:["` + "`" + `]?[A-Za-z_][A-Za-z0-9_$]*["` + "`" + `]?\.)?["` + "`" + `]?[A-Za-z_][A-Za-z0-9_$]*["` + "`" + `]?)`

var (
	createTableRe    = regexp.MustCompile(`(?is)^CREATE\s+(?:TEMP(?:ORARY)?\s+)?TABLE\s+(?:IF\s+NOT\s+EXISTS\s+)?` + identifier)
	createIndexRe    = regexp.MustCompile(`(?is)^CREATE\s+(?:UNIQUE\s+)?INDEX\s+(?:CONCURRENTLY\s+)?(?:IF\s+NOT\s+EXISTS\s+)?` + identifier + `\s+ON\b`)
	createViewRe     = regexp.MustCompile(`(?is)^CREATE\s+(?:OR\s+REPLACE\s+)?VIEW\s+(?:IF\s+NOT\s+EXISTS\s+)?` + identifier)
	createSequenceRe = regexp.MustCompile(`(?is)^CREATE\s+SEQUENCE\s+(?:IF\s+NOT\s+EXISTS\s+)?` + identifier)
	addColumnRe      = regexp.MustCompile(`(?is)^ALTER\s+TABLE\s+(?:IF\s+EXISTS\s+)?` + identifier + `\s+ADD\s+(?:COLUMN\s+)?(?:IF\s+NOT\s+EXISTS\s+)?` + identifier)
)

// RollbackGenerator derives Down statements from Up statements.
type RollbackGenerator struct{}

// NewRollbackGenerator creates a rollback generator.
func NewRollbackGenerator() *RollbackGenerator {
	return &RollbackGenerator{}
}

// GenerateDown reverses up, last statement first.
func (g *RollbackGenerator) GenerateDown(up []string) ([]string, error) {
	down := make([]string, 0, len(up))
	for i := len(up) - 1; i >= 0; i-- {
		stmt, err := g.reverse(up[i])
		if err != nil {
			return nil, fmt.Errorf("up[%d]: %w", i, err)
		}
		down = append(down, stmt)
	}
	return down, nil
}

// CanGenerateDown reports whether stmt has a generated reverse.
func (g *RollbackGenerator) CanGenerateDown(stmt string) bool {
	_, err := g.reverse(stmt)
	return err == nil
}

func (g *RollbackGenerator) reverse(stmt string) (string, error) {
	normalized := strings.TrimSpace(stmt)

	if m := createTableRe.FindStringSubmatch(normalized); m != nil {
		return fmt.Sprintf("DROP TABLE IF EXISTS %s;", m[1]), nil
	}
	if m := createIndexRe.FindStringSubmatch(normalized); m != nil {
		return fmt.Sprintf("DROP INDEX IF EXISTS %s;", m[1]), nil
	}
	if m := createViewRe.FindStringSubmatch(normalized); m != nil {
		return fmt.Sprintf("DROP VIEW IF EXISTS %s;", m[1]), nil
	}
	if m := createSequenceRe.FindStringSubmatch(normalized); m != nil {
		return fmt.Sprintf("DROP SEQUENCE IF EXISTS %s;", m[1]), nil
	}
	if m := addColumnRe.FindStringSubmatch(normalized); m != nil && !isConstraintKeyword(m[2]) {
		return fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s;", m[1], m[2]), nil
	}

	keyword := strings.ToUpper(strings.Join(strings.Fields(normalized), " "))
	switch {
	case strings.HasPrefix(keyword, "DROP "):
		return "", ErrNotReversible(stmt, "the dropped definition is required")
	case strings.HasPrefix(keyword, "INSERT "), strings.HasPrefix(keyword, "UPDATE "), strings.HasPrefix(keyword, "DELETE "):
		return "", ErrNotReversible(stmt, "data changes are not tracked")
	case strings.HasPrefix(keyword, "ALTER TABLE"):
		return "", ErrNotReversible(stmt, "only ADD COLUMN is reversed")
	}
	return "", ErrNotReversible(stmt, "unsupported statement")
}

func isConstraintKeyword(s string) bool {
	switch strings.ToUpper(s) {
	case "CONSTRAINT", "PRIMARY", "FOREIGN", "UNIQUE", "CHECK":
		return true
	}
	return false
}
