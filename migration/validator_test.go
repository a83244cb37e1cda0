package migration

import (
	"testing"

	"github.com/matryer/is"
)

func applied(migrations ...*Migration) *History {
	h := NewHistory("")
	for _, m := range migrations {
		h.records[m.ID] = &Record{MigrationID: m.ID, Checksum: CalculateChecksum(m)}
	}
	return h
}

func migration(id string, deps ...string) *Migration {
	return &Migration{ID: id, Name: id, Up: []string{"CREATE TABLE t" + id + " (id BIGINT);"}, Dependencies: deps}
}

func TestValidate(t *testing.T) {
	m1 := migration("001")
	m2 := migration("002", "001")
	m3 := migration("003", "002")

	edited := migration("001")
	edited.Up = []string{"CREATE TABLE other (id BIGINT);"}

	tests := []struct {
		name       string
		history    *History
		migrations []*Migration
		conflicts  []ConflictType
		pending    []string
	}{
		{"fresh database", applied(), []*Migration{m1, m2, m3}, nil, []string{"001", "002", "003"}},
		{"partially applied", applied(m1), []*Migration{m1, m2, m3}, nil, []string{"002", "003"}},
		{"edited after apply", applied(m1), []*Migration{edited, m2}, []ConflictType{ChecksumMismatch}, []string{"002"}},
		{"unknown dependency", applied(), []*Migration{migration("001", "000")}, []ConflictType{DependencyConflict}, []string{"001"}},
		{"dependency ordered later", applied(), []*Migration{migration("001", "002"), migration("002")}, []ConflictType{DependencyConflict}, []string{"001", "002"}},
		{"out of order", applied(m2), []*Migration{m1, m2}, []ConflictType{OrderConflict}, []string{"001"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			result := NewValidator(tt.history).Validate(tt.migrations)

			is.Equal(result.Valid, len(tt.conflicts) == 0)
			is.Equal(len(result.Conflicts), len(tt.conflicts))
			for i, c := range result.Conflicts {
				is.Equal(c.Type, tt.conflicts[i])
			}
			is.Equal(result.Pending, tt.pending)
		})
	}
}

func TestCanRollback(t *testing.T) {
	is := is.New(t)
	m1 := migration("001")
	m2 := migration("002", "001")
	all := []*Migration{m1, m2}

	v := NewValidator(applied(m1, m2))
	err := v.CanRollback("001", all)
	is.True(HasCode(err, CodeConflict))
	is.NoErr(v.CanRollback("002", all))

	err = NewValidator(applied(m1)).CanRollback("002", all)
	is.True(HasCode(err, CodeNotFound))
}
