package migration

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// LockFile is the name of the lock file in a migrations directory.
const LockFile = ".aggregates_migration.lock"

// DefaultStaleTimeout is the age after which a lock is considered abandoned.
const DefaultStaleTimeout = time.Hour

// LockMetadata identifies the holder of a lock.
type LockMetadata struct {
	Holder    string    `json:"holder"`
	Hostname  string    `json:"hostname"`
	PID       int       `json:"pid"`
	Timestamp time.Time `json:"timestamp"`
}

// Lock serializes migration runs sharing a directory.
type Lock struct {
	path         string
	staleTimeout time.Duration
	log          *slog.Logger
}

// NewLock creates a lock in dir. A zero timeout uses DefaultStaleTimeout.
func NewLock(dir string, staleTimeout time.Duration, log *slog.Logger) *Lock {
	if staleTimeout <= 0 {
		staleTimeout = DefaultStaleTimeout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Lock{
		path:         filepath.Join(dir, LockFile),
		staleTimeout: staleTimeout,
		log:          log,
	}
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Acquire takes the lock, removing it first when it is stale.
func (l *Lock) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return err
	}

	for attempt := 0; attempt < 2; attempt++ {
		file, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			return l.writeMetadata(file)
		}
		if !os.IsExist(err) {
			return fmt.Errorf("failed to create lock file: %w", err)
		}

		meta, _ := l.readMetadata()
		if !l.stale() {
			if meta == nil {
				meta = &LockMetadata{Holder: "unknown", Hostname: "unknown"}
			}
			return ErrLocked(meta)
		}

		args := []any{slog.String("path", l.path), slog.Duration("timeout", l.staleTimeout)}
		if meta != nil {
			args = append(args, slog.String("holder", meta.Holder), slog.String("hostname", meta.Hostname))
		}
		l.log.Warn("removing stale migration lock", args...)
		if err := l.Release(); err != nil {
			return err
		}
	}
	return fmt.Errorf("failed to acquire lock %s", l.path)
}

// Release removes the lock file.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

func (l *Lock) writeMetadata(file *os.File) error {
	defer file.Close()

	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	user := os.Getenv("USER")
	if user == "" {
		user = "unknown"
	}

	data, err := json.Marshal(LockMetadata{
		Holder:    user,
		Hostname:  hostname,
		PID:       os.Getpid(),
		Timestamp: time.Now(),
	})
	if err == nil {
		_, err = file.Write(data)
	}
	if err != nil {
		os.Remove(l.path)
		return fmt.Errorf("failed to write lock metadata: %w", err)
	}
	return nil
}

func (l *Lock) stale() bool {
	info, err := os.Stat(l.path)
	if err != nil {
		return false
	}
	return time.Since(info.ModTime()) > l.staleTimeout
}

func (l *Lock) readMetadata() (*LockMetadata, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, err
	}
	var meta LockMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}
