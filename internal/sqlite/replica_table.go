// Replica table accessor: the local copy of the remote entity set.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/mesh-intelligence/satchel/pkg/types"
)

const replicaColumns = "entity_id, family, title, parent_id, body, updated_at"

// UpsertEntity inserts or replaces one replica row.
func (s *Store) UpsertEntity(e types.Entity) error {
	db, err := s.conn()
	if err != nil {
		return err
	}

	_, err = db.Exec(
		`INSERT INTO replica (`+replicaColumns+`) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (entity_id) DO UPDATE SET
		   family = excluded.family,
		   title = excluded.title,
		   parent_id = excluded.parent_id,
		   body = excluded.body,
		   updated_at = excluded.updated_at`,
		e.ID, e.Family, e.Title, e.ParentID, e.Body, formatTime(e.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upserting entity %s: %w", e.ID, err)
	}
	return nil
}

// GetEntity returns the replica row with the given id, or ErrNotFound.
func (s *Store) GetEntity(id string) (types.Entity, error) {
	db, err := s.conn()
	if err != nil {
		return types.Entity{}, err
	}

	row := db.QueryRow("SELECT "+replicaColumns+" FROM replica WHERE entity_id = ?", id)
	e, err := scanEntity(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Entity{}, types.ErrNotFound
		}
		return types.Entity{}, fmt.Errorf("getting entity %s: %w", id, err)
	}
	return e, nil
}

// DeleteEntity removes a replica row. Missing rows are not an error.
func (s *Store) DeleteEntity(id string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if _, err := db.Exec("DELETE FROM replica WHERE entity_id = ?", id); err != nil {
		return fmt.Errorf("deleting entity %s: %w", id, err)
	}
	return nil
}

// ListEntities returns all replica rows ordered by id.
func (s *Store) ListEntities() ([]types.Entity, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.Query("SELECT " + replicaColumns + " FROM replica ORDER BY entity_id ASC")
	if err != nil {
		return nil, fmt.Errorf("listing entities: %w", err)
	}
	defer rows.Close()

	var entities []types.Entity
	for rows.Next() {
		e, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning entity: %w", err)
		}
		entities = append(entities, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entities: %w", err)
	}
	return entities, nil
}

// ReplaceAll swaps the whole replica for the given entity set in a single
// transaction. A full sync that fails before this point never reaches here,
// and a failure inside the transaction rolls back to the previous replica.
func (s *Store) ReplaceAll(entities []types.Entity) error {
	db, err := s.conn()
	if err != nil {
		return err
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning replica replacement: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM replica"); err != nil {
		return fmt.Errorf("clearing replica: %w", err)
	}
	for _, e := range entities {
		_, err := tx.Exec(
			"INSERT INTO replica ("+replicaColumns+") VALUES (?, ?, ?, ?, ?, ?)",
			e.ID, e.Family, e.Title, e.ParentID, e.Body, formatTime(e.UpdatedAt),
		)
		if err != nil {
			return fmt.Errorf("inserting entity %s: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing replica replacement: %w", err)
	}
	return nil
}

// scanEntity hydrates one replica row.
func scanEntity(row rowScanner) (types.Entity, error) {
	var e types.Entity
	var updatedAt string
	if err := row.Scan(&e.ID, &e.Family, &e.Title, &e.ParentID, &e.Body, &updatedAt); err != nil {
		return types.Entity{}, err
	}
	var err error
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return types.Entity{}, err
	}
	return e, nil
}
