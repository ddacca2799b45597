// Id-mapping table accessor. The register-plus-rewrite transaction is the
// primitive the registry builds on: the mapping insert and the bulk entity-id
// rewrite commit together or not at all.
package sqlite

import (
	"fmt"

	"github.com/mesh-intelligence/satchel/pkg/types"
)

// RegisterAndRewrite persists the mapping and rewrites the entity id on every
// Pending or Failed operation row still referencing the temporary id, in one
// transaction. Returns the number of rows rewritten. Rows already Processing
// are left alone; their payload is in flight and the processor resolves ids
// through the registry at dispatch time.
func (s *Store) RegisterAndRewrite(m types.IdMapping) (int, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}

	tx, err := db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning mapping transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"INSERT INTO id_mappings (temp_id, real_id, created_at) VALUES (?, ?, ?)",
		m.TempID, m.RealID, formatTime(m.CreatedAt),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting mapping %s: %w", m.TempID, err)
	}

	res, err := tx.Exec(
		`UPDATE operations SET entity_id = ?
		 WHERE entity_id = ? AND status IN (?, ?)`,
		m.RealID, m.TempID, types.StatusPending, types.StatusFailed,
	)
	if err != nil {
		return 0, fmt.Errorf("rewriting operations for %s: %w", m.TempID, err)
	}
	rewritten, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rewriting operations for %s: %w", m.TempID, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing mapping %s: %w", m.TempID, err)
	}
	return int(rewritten), nil
}

// AllMappings returns every persisted mapping, oldest first.
func (s *Store) AllMappings() ([]types.IdMapping, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(
		"SELECT temp_id, real_id, created_at FROM id_mappings ORDER BY created_at ASC")
	if err != nil {
		return nil, fmt.Errorf("listing mappings: %w", err)
	}
	defer rows.Close()

	var mappings []types.IdMapping
	for rows.Next() {
		var m types.IdMapping
		var createdAt string
		if err := rows.Scan(&m.TempID, &m.RealID, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning mapping: %w", err)
		}
		if m.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating mappings: %w", err)
	}
	return mappings, nil
}
