// Package sqlite implements the durable store for the Satchel sync core:
// the operations queue, id-mapping, and sync-cursor tables plus the local
// entity replica, backed by a single SQLite database.
package sqlite

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/satchel/pkg/types"
)

//go:embed schema.sql
var schemaSQL string

// timeLayout is fixed-width down to the nanosecond so the TEXT columns sort
// lexicographically in time order; RFC3339Nano trims trailing zeros, which
// breaks `next_retry_at <= ?` and the FIFO tiebreak within a second.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Compile-time interface check: Store must implement the full store contract.
var _ types.Store = (*Store)(nil)

// Store implements types.Store on SQLite. Row-level atomicity comes from SQL
// transactions; the mutex only guards the attach/detach lifecycle.
type Store struct {
	mu       sync.RWMutex
	attached bool
	db       *sql.DB
}

// NewStore creates a detached store. Call Attach before use.
func NewStore() *Store {
	return &Store{}
}

// Attach opens (or creates) the database under dataDir and applies the
// schema. Existing rows are preserved: queued operations and id mappings must
// survive restarts. Returns ErrAlreadyAttached on an attached store.
func (s *Store) Attach(dataDir string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attached {
		return types.ErrAlreadyAttached
	}

	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	dbPath := filepath.Join(dataDir, "satchel.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}

	// The queue and processor touch the store from multiple goroutines;
	// funnel everything through one connection so writes serialize inside
	// the driver instead of failing with SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return fmt.Errorf("applying schema: %w", err)
	}

	s.db = db
	s.attached = true
	return nil
}

// Detach closes the database. Idempotent; after Detach all operations return
// ErrStoreDetached.
func (s *Store) Detach() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.attached {
		return nil
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("closing database: %w", err)
	}
	s.db = nil
	s.attached = false
	return nil
}

// conn returns the open database handle, or ErrStoreDetached.
func (s *Store) conn() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.attached {
		return nil, types.ErrStoreDetached
	}
	return s.db, nil
}

// formatTime renders a timestamp for storage. The zero time becomes the
// empty string so "never" round-trips.
func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

// parseTime is the inverse of formatTime.
func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing timestamp %q: %w", s, err)
	}
	return t, nil
}
