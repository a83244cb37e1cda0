package migration

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dan-strohschein/syndrdb-aggregates/mapper"
	"github.com/dan-strohschein/syndrdb-aggregates/schema"
	"github.com/dan-strohschein/syndrdb-aggregates/transport"
)

// DefaultHistoryTable stores applied migrations.
const DefaultHistoryTable = "schema_migrations"

// Executor runs statements and reads aggregates. *client.Client implements it.
type Executor interface {
	FindAll(ctx context.Context, shape *schema.Entity) ([]any, error)
	Execute(ctx context.Context, sql string, params transport.Params, keyColumns ...string) (any, bool, error)
}

// History is the set of applied migrations, mirrored from the history table.
type History struct {
	shape   *schema.Entity
	records map[string]*Record
}

// NewHistory creates an empty history stored in table.
func NewHistory(table string) *History {
	if table == "" {
		table = DefaultHistoryTable
	}
	return &History{
		shape: &schema.Entity{
			Name:  "MigrationRecord",
			Table: table,
			ID:    schema.Property{Name: "id", Type: schema.STRING},
			Properties: []schema.Property{
				{Name: "checksum", Type: schema.STRING},
				{Name: "applied_at", Type: schema.DATETIME},
				{Name: "execution_ms", Type: schema.INT},
			},
		},
		records: make(map[string]*Record),
	}
}

// Table returns the history table name.
func (h *History) Table() string {
	return h.shape.Table
}

// Ensure creates the history table when it does not exist.
func (h *History) Ensure(ctx context.Context, exec Executor) error {
	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (id VARCHAR(255) PRIMARY KEY, checksum VARCHAR(64) NOT NULL, applied_at TIMESTAMP NOT NULL, execution_ms BIGINT NOT NULL)", h.shape.Table)
	_, _, err := exec.Execute(ctx, stmt, nil)
	return err
}

// Load replaces the in-memory records with the content of the history table.
func (h *History) Load(ctx context.Context, exec Executor) error {
	rows, err := exec.FindAll(ctx, h.shape)
	if err != nil {
		return err
	}

	records := make(map[string]*Record, len(rows))
	for _, row := range rows {
		rec, err := decodeRecord(row)
		if err != nil {
			return err
		}
		records[rec.MigrationID] = rec
	}
	h.records = records
	return nil
}

func decodeRecord(row any) (*Record, error) {
	var doc map[string]any
	switch v := row.(type) {
	case mapper.Document:
		doc = v
	case map[string]any:
		doc = v
	default:
		return nil, fmt.Errorf("unexpected history row %T", row)
	}

	rec := &Record{}
	rec.MigrationID, _ = doc["id"].(string)
	rec.Checksum, _ = doc["checksum"].(string)
	rec.AppliedAt, _ = doc["applied_at"].(time.Time)
	rec.ExecutionTimeMs, _ = doc["execution_ms"].(int64)
	if rec.MigrationID == "" {
		return nil, fmt.Errorf("history row without id: %v", doc)
	}
	return rec, nil
}

func (h *History) insert(ctx context.Context, exec Executor, rec *Record) error {
	stmt := fmt.Sprintf("INSERT INTO %s (id, checksum, applied_at, execution_ms) VALUES (:id, :checksum, :applied_at, :execution_ms)", h.shape.Table)
	_, _, err := exec.Execute(ctx, stmt, transport.Params{
		"id":           rec.MigrationID,
		"checksum":     rec.Checksum,
		"applied_at":   rec.AppliedAt,
		"execution_ms": rec.ExecutionTimeMs,
	})
	if err != nil {
		return err
	}
	h.records[rec.MigrationID] = rec
	return nil
}

func (h *History) delete(ctx context.Context, exec Executor, id string) error {
	stmt := fmt.Sprintf("DELETE FROM %s WHERE id = :id", h.shape.Table)
	if _, _, err := exec.Execute(ctx, stmt, transport.Params{"id": id}); err != nil {
		return err
	}
	delete(h.records, id)
	return nil
}

// Get returns the record of an applied migration.
func (h *History) Get(id string) (*Record, bool) {
	rec, ok := h.records[id]
	return rec, ok
}

// IsApplied reports whether id has been applied.
func (h *History) IsApplied(id string) bool {
	_, ok := h.records[id]
	return ok
}

// Applied returns the sorted IDs of applied migrations.
func (h *History) Applied() []string {
	ids := make([]string, 0, len(h.records))
	for id := range h.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Records returns the records ordered by application time.
func (h *History) Records() []*Record {
	records := make([]*Record, 0, len(h.records))
	for _, rec := range h.records {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].AppliedAt.Equal(records[j].AppliedAt) {
			return records[i].MigrationID < records[j].MigrationID
		}
		return records[i].AppliedAt.Before(records[j].AppliedAt)
	})
	return records
}

// CalculateChecksum returns the hex SHA-256 of the migration's content.
func CalculateChecksum(m *Migration) string {
	var b strings.Builder
	b.WriteString(m.ID)
	b.WriteByte(0)
	b.WriteString(m.Name)
	for _, stmt := range m.Up {
		b.WriteByte(0)
		b.WriteString(stmt)
	}
	b.WriteByte(1)
	for _, stmt := range m.Down {
		b.WriteByte(0)
		b.WriteString(stmt)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// ValidateChecksum fails when an applied migration no longer matches its record.
func (h *History) ValidateChecksum(m *Migration) error {
	rec, ok := h.records[m.ID]
	if !ok {
		return nil
	}
	if actual := CalculateChecksum(m); actual != rec.Checksum {
		return ErrChecksumMismatch(m.ID, rec.Checksum, actual)
	}
	return nil
}
