package migration

import (
	"fmt"

	"github.com/dan-strohschein/syndrdb-aggregates/dataaccess"
)

// Validator checks migrations against history and their dependencies.
type Validator struct {
	history *History
}

// NewValidator creates a validator reading history.
func NewValidator(history *History) *Validator {
	return &Validator{history: history}
}

// Validate reports checksum, dependency and ordering conflicts.
func (v *Validator) Validate(migrations []*Migration) *ValidationResult {
	result := &ValidationResult{
		Valid:   true,
		Applied: v.history.Applied(),
	}

	known := make(map[string]*Migration, len(migrations))
	for _, m := range migrations {
		known[m.ID] = m
	}

	for _, m := range migrations {
		if v.history.IsApplied(m.ID) {
			rec, _ := v.history.Get(m.ID)
			if actual := CalculateChecksum(m); actual != rec.Checksum {
				result.Conflicts = append(result.Conflicts, Conflict{
					Type:        ChecksumMismatch,
					MigrationID: m.ID,
					Message:     fmt.Sprintf("migration '%s' has been modified since it was applied", m.ID),
					Expected:    rec.Checksum,
					Actual:      actual,
				})
			}
			continue
		}

		result.Pending = append(result.Pending, m.ID)
		result.Conflicts = append(result.Conflicts, v.validateDependencies(m, known)...)
	}

	result.Conflicts = append(result.Conflicts, v.validateOrdering(migrations)...)
	result.Valid = len(result.Conflicts) == 0
	return result
}

// A dependency is satisfied when it is applied, or pending and ordered
// before the dependent so the same plan applies it first.
func (v *Validator) validateDependencies(m *Migration, known map[string]*Migration) []Conflict {
	var conflicts []Conflict
	for _, dep := range m.Dependencies {
		if v.history.IsApplied(dep) {
			continue
		}
		if _, ok := known[dep]; !ok {
			conflicts = append(conflicts, Conflict{
				Type:        DependencyConflict,
				MigrationID: m.ID,
				Message:     fmt.Sprintf("dependency '%s' does not exist", dep),
				Expected:    dep,
				Actual:      "not_found",
			})
			continue
		}
		if dep >= m.ID {
			conflicts = append(conflicts, Conflict{
				Type:        DependencyConflict,
				MigrationID: m.ID,
				Message:     fmt.Sprintf("dependency '%s' is ordered after '%s'", dep, m.ID),
				Expected:    fmt.Sprintf("< %s", m.ID),
				Actual:      dep,
			})
		}
	}
	return conflicts
}

func (v *Validator) validateOrdering(migrations []*Migration) []Conflict {
	applied := v.history.Applied()
	if len(applied) == 0 {
		return nil
	}
	last := applied[len(applied)-1]

	var conflicts []Conflict
	for _, m := range migrations {
		if !v.history.IsApplied(m.ID) && m.ID < last {
			conflicts = append(conflicts, Conflict{
				Type:        OrderConflict,
				MigrationID: m.ID,
				Message:     fmt.Sprintf("migration '%s' is out of order (last applied: '%s')", m.ID, last),
				Expected:    fmt.Sprintf("> %s", last),
				Actual:      m.ID,
			})
		}
	}
	return conflicts
}

// CanRollback fails when id is not applied or an applied migration depends on it.
func (v *Validator) CanRollback(id string, migrations []*Migration) error {
	if !v.history.IsApplied(id) {
		return ErrNotFound(id)
	}

	var dependents []string
	for _, m := range migrations {
		if !v.history.IsApplied(m.ID) {
			continue
		}
		for _, dep := range m.Dependencies {
			if dep == id {
				dependents = append(dependents, m.ID)
				break
			}
		}
	}

	if len(dependents) > 0 {
		return &dataaccess.Error{
			Code:    CodeConflict,
			Type:    TypeMigration,
			Message: fmt.Sprintf("migration '%s' cannot be rolled back: other migrations depend on it", id),
			Details: map[string]interface{}{
				"migrationId": id,
				"dependents":  dependents,
			},
		}
	}
	return nil
}
