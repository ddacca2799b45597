// Sync-cursor table accessor: a singleton row owned by the sync engine.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/satchel/pkg/types"
)

// GetCursor returns the saved cursor, or a zero cursor if no sync has
// completed yet.
func (s *Store) GetCursor() (types.SyncCursor, error) {
	db, err := s.conn()
	if err != nil {
		return types.SyncCursor{}, err
	}

	var c types.SyncCursor
	var lastSyncAt, lastFullSyncAt string
	err = db.QueryRow(
		"SELECT last_sync_at, sync_tag, last_full_sync_at FROM sync_cursor WHERE cursor_id = 1",
	).Scan(&lastSyncAt, &c.SyncTag, &lastFullSyncAt)
	if errors.Is(err, sql.ErrNoRows) {
		return types.SyncCursor{}, nil
	}
	if err != nil {
		return types.SyncCursor{}, fmt.Errorf("getting sync cursor: %w", err)
	}

	if c.LastSyncAt, err = parseTime(lastSyncAt); err != nil {
		return types.SyncCursor{}, err
	}
	if c.LastFullSyncAt, err = parseTime(lastFullSyncAt); err != nil {
		return types.SyncCursor{}, err
	}
	return c, nil
}

// PutCursor replaces the singleton cursor row.
func (s *Store) PutCursor(c types.SyncCursor) error {
	db, err := s.conn()
	if err != nil {
		return err
	}

	_, err = db.Exec(
		`INSERT INTO sync_cursor (cursor_id, last_sync_at, sync_tag, last_full_sync_at)
		 VALUES (1, ?, ?, ?)
		 ON CONFLICT (cursor_id) DO UPDATE SET
		   last_sync_at = excluded.last_sync_at,
		   sync_tag = excluded.sync_tag,
		   last_full_sync_at = excluded.last_full_sync_at`,
		formatTime(c.LastSyncAt), c.SyncTag, formatTime(c.LastFullSyncAt),
	)
	if err != nil {
		return fmt.Errorf("saving sync cursor: %w", err)
	}
	return nil
}
