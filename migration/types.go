// Package migration applies and rolls back schema migrations, typically the
// tables of an aggregate shape, and keeps their history in the database.
package migration

import "time"

// Direction is the direction of a plan.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// Status is the state of a migration against one database.
type Status string

const (
	Pending Status = "pending"
	Applied Status = "applied"
)

// Migration is an ordered set of statements with their reverse.
type Migration struct {
	// ID orders migrations lexicographically, e.g. "20260101120000_order".
	ID   string `yaml:"id" json:"id"`
	Name string `yaml:"name" json:"name"`

	Up []string `yaml:"up" json:"up"`

	// Down reverses Up. When empty it is generated from Up at rollback.
	Down []string `yaml:"down,omitempty" json:"down,omitempty"`

	// Dependencies lists migration IDs that must be applied first.
	Dependencies []string `yaml:"dependencies,omitempty" json:"dependencies,omitempty"`

	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
}

// Record is the stored trace of an applied migration.
type Record struct {
	MigrationID     string
	Checksum        string
	AppliedAt       time.Time
	ExecutionTimeMs int64
}

// Plan is the ordered list of migrations one run executes.
type Plan struct {
	Migrations []*Migration
	Direction  Direction
	DryRun     bool
}

// ConflictType classifies a validation conflict.
type ConflictType string

const (
	// ChecksumMismatch means an applied migration was edited afterwards.
	ChecksumMismatch ConflictType = "checksum_mismatch"
	// DependencyConflict means a dependency is unknown or not applied.
	DependencyConflict ConflictType = "dependency_conflict"
	// OrderConflict means a pending migration sorts before an applied one.
	OrderConflict ConflictType = "order_conflict"
)

// Conflict is one problem found by the validator.
type Conflict struct {
	Type        ConflictType
	MigrationID string
	Message     string
	Expected    string
	Actual      string
}

// ValidationResult is the outcome of validating migrations against history.
type ValidationResult struct {
	Valid     bool
	Conflicts []Conflict
	Pending   []string
	Applied   []string
}

// StatusEntry is one line of Runner.Status.
type StatusEntry struct {
	ID        string
	Name      string
	Status    Status
	AppliedAt time.Time
}
