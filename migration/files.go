package migration

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/dan-strohschein/syndrdb-aggregates/schema"
)

// FormatVersion is the version written to migration files.
const FormatVersion = "1"

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// File is the on-disk form of a migration.
type File struct {
	FormatVersion string     `yaml:"formatVersion"`
	Migration     *Migration `yaml:"migration"`
}

// NewID builds a sortable migration ID from a timestamp and a name.
func NewID(ts time.Time, name string) string {
	return ts.UTC().Format("20060102150405") + "_" + strings.Trim(unsafeFileChars.ReplaceAllString(strings.ToLower(name), "_"), "_")
}

// FromShape builds a migration creating the tables of shape and every
// entity it owns. Down drops them, children first.
func FromShape(shape *schema.Entity, ts time.Time) (*Migration, error) {
	if err := shape.Validate(); err != nil {
		return nil, err
	}
	name := "create " + shape.Name
	return &Migration{
		ID:        NewID(ts, name),
		Name:      name,
		Up:        schema.SerializeCreateTables(shape),
		Down:      schema.SerializeDropTables(shape),
		Timestamp: ts.UTC(),
	}, nil
}

// WriteFile writes m to dir as <id>.yaml and returns the path.
func WriteFile(m *Migration, dir string) (string, error) {
	if m == nil {
		return "", errors.New("migration cannot be nil")
	}
	if m.ID == "" {
		return "", errors.New("migration id cannot be empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := yaml.Marshal(File{FormatVersion: FormatVersion, Migration: m})
	if err != nil {
		return "", fmt.Errorf("failed to marshal migration: %w", err)
	}

	path := filepath.Join(dir, unsafeFileChars.ReplaceAllString(m.ID, "_")+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	return path, nil
}

// ReadFile reads one migration file.
func ReadFile(path string) (*Migration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if f.FormatVersion != "" && f.FormatVersion != FormatVersion {
		return nil, fmt.Errorf("%s: unsupported format version %q", path, f.FormatVersion)
	}
	if f.Migration == nil || f.Migration.ID == "" {
		return nil, fmt.Errorf("%s: migration id is missing", path)
	}
	if len(f.Migration.Up) == 0 {
		return nil, fmt.Errorf("%s: migration %s has no up statements", path, f.Migration.ID)
	}
	return f.Migration, nil
}

// ListFiles reads every *.yaml migration in dir, ordered by ID. A missing
// directory holds no migrations.
func ListFiles(dir string) ([]*Migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var migrations []*Migration
	seen := map[string]string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if ext := filepath.Ext(name); ext != ".yaml" && ext != ".yml" {
			continue
		}

		path := filepath.Join(dir, name)
		m, err := ReadFile(path)
		if err != nil {
			return nil, err
		}
		if other, dup := seen[m.ID]; dup {
			return nil, fmt.Errorf("migration %s is defined in both %s and %s", m.ID, other, path)
		}
		seen[m.ID] = path
		migrations = append(migrations, m)
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].ID < migrations[j].ID
	})
	return migrations, nil
}
