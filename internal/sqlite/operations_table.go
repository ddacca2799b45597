// Operations table accessor: persistence for queued writes, guarded status
// transitions, and the ready-row query used by the processor.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mesh-intelligence/satchel/pkg/types"
)

const operationColumns = `operation_id, kind, family, entity_id, payload,
	created_at, priority, retry_count, last_error, status, next_retry_at`

// InsertOperation persists a new operation row.
func (s *Store) InsertOperation(op types.Operation) error {
	db, err := s.conn()
	if err != nil {
		return err
	}

	_, err = db.Exec(
		`INSERT INTO operations (`+operationColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		op.ID, op.Kind, op.Family(), op.EntityID, op.Payload,
		formatTime(op.CreatedAt), op.Priority, op.RetryCount,
		op.LastError, op.Status, formatTime(op.NextRetryAt),
	)
	if err != nil {
		return fmt.Errorf("inserting operation %s: %w", op.ID, err)
	}
	return nil
}

// UpdateOperation replaces the row with the same id.
func (s *Store) UpdateOperation(op types.Operation) error {
	db, err := s.conn()
	if err != nil {
		return err
	}

	res, err := db.Exec(
		`UPDATE operations
		 SET kind = ?, family = ?, entity_id = ?, payload = ?, created_at = ?,
		     priority = ?, retry_count = ?, last_error = ?, status = ?,
		     next_retry_at = ?
		 WHERE operation_id = ?`,
		op.Kind, op.Family(), op.EntityID, op.Payload, formatTime(op.CreatedAt),
		op.Priority, op.RetryCount, op.LastError, op.Status,
		formatTime(op.NextRetryAt), op.ID,
	)
	if err != nil {
		return fmt.Errorf("updating operation %s: %w", op.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.ErrNotFound
	}
	return nil
}

// DeleteOperation removes a row. Deleting a missing row is not an error.
func (s *Store) DeleteOperation(id string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if _, err := db.Exec("DELETE FROM operations WHERE operation_id = ?", id); err != nil {
		return fmt.Errorf("deleting operation %s: %w", id, err)
	}
	return nil
}

// GetOperation returns the row with the given id, or ErrNotFound.
func (s *Store) GetOperation(id string) (types.Operation, error) {
	db, err := s.conn()
	if err != nil {
		return types.Operation{}, err
	}

	row := db.QueryRow(
		"SELECT "+operationColumns+" FROM operations WHERE operation_id = ?", id)
	op, err := scanOperation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Operation{}, types.ErrNotFound
		}
		return types.Operation{}, fmt.Errorf("getting operation %s: %w", id, err)
	}
	return op, nil
}

// ListByEntity returns non-terminal rows for (family, entityID) in enqueue
// order. Completed rows are deleted on transition, so only terminal failures
// are filtered here.
func (s *Store) ListByEntity(family, entityID string) ([]types.Operation, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(
		`SELECT `+operationColumns+` FROM operations
		 WHERE family = ? AND entity_id = ?
		   AND NOT (status = ? AND next_retry_at = '')
		 ORDER BY created_at ASC`,
		family, entityID, types.StatusFailed,
	)
	if err != nil {
		return nil, fmt.Errorf("listing operations for %s/%s: %w", family, entityID, err)
	}
	return collectOperations(rows)
}

// ListReady returns up to limit dispatchable rows: Pending, plus Failed rows
// whose retry is due. Ordered by priority descending, then FIFO. Processing
// rows are excluded by status, which is the dequeue exclusivity gate.
func (s *Store) ListReady(limit int, now time.Time) ([]types.Operation, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(
		`SELECT `+operationColumns+` FROM operations
		 WHERE status = ?
		    OR (status = ? AND next_retry_at != '' AND next_retry_at <= ?)
		 ORDER BY priority DESC, created_at ASC
		 LIMIT ?`,
		types.StatusPending, types.StatusFailed, formatTime(now), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing ready operations: %w", err)
	}
	return collectOperations(rows)
}

// SetStatus transitions a row from one status to another, carrying the retry
// bookkeeping on op. The guarded UPDATE makes the transition atomic: when two
// workers race, exactly one sees the expected prior status and the loser gets
// ErrInvalidTransition. The entity id is deliberately not written here, so a
// transition racing an id rewrite can never put a superseded id back.
func (s *Store) SetStatus(id, from string, op types.Operation) error {
	db, err := s.conn()
	if err != nil {
		return err
	}

	res, err := db.Exec(
		`UPDATE operations
		 SET status = ?, retry_count = ?, last_error = ?, next_retry_at = ?
		 WHERE operation_id = ? AND status = ?`,
		op.Status, op.RetryCount, op.LastError, formatTime(op.NextRetryAt),
		id, from,
	)
	if err != nil {
		return fmt.Errorf("transitioning operation %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("transitioning operation %s: %w", id, err)
	}
	if n == 0 {
		var exists int
		err := db.QueryRow("SELECT 1 FROM operations WHERE operation_id = ?", id).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return types.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("checking operation %s: %w", id, err)
		}
		return types.ErrInvalidTransition
	}
	return nil
}

// ListOperations returns every row, terminal failures included, ordered by
// priority then enqueue time. The operator-facing queue listing.
func (s *Store) ListOperations() ([]types.Operation, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(
		`SELECT ` + operationColumns + ` FROM operations
		 ORDER BY priority DESC, created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return collectOperations(rows)
}

// CountPending returns the queue depth: Pending rows plus Failed rows that
// are still scheduled for retry.
func (s *Store) CountPending() (int, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}

	var n int
	err = db.QueryRow(
		`SELECT COUNT(*) FROM operations
		 WHERE status = ? OR (status = ? AND next_retry_at != '')`,
		types.StatusPending, types.StatusFailed,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting pending operations: %w", err)
	}
	return n, nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanOperation hydrates one operations row.
func scanOperation(row rowScanner) (types.Operation, error) {
	var op types.Operation
	var family, createdAt, nextRetryAt string
	if err := row.Scan(&op.ID, &op.Kind, &family, &op.EntityID, &op.Payload,
		&createdAt, &op.Priority, &op.RetryCount, &op.LastError, &op.Status,
		&nextRetryAt); err != nil {
		return types.Operation{}, err
	}
	var err error
	if op.CreatedAt, err = parseTime(createdAt); err != nil {
		return types.Operation{}, err
	}
	if op.NextRetryAt, err = parseTime(nextRetryAt); err != nil {
		return types.Operation{}, err
	}
	return op, nil
}

// collectOperations drains rows into a slice, always closing rows.
func collectOperations(rows *sql.Rows) ([]types.Operation, error) {
	defer rows.Close()

	var ops []types.Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning operation: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating operations: %w", err)
	}
	return ops, nil
}
