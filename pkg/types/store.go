package types

import "time"

// OperationStore is durable storage for queued operations. Implementations
// must make every method atomic: readers never observe a partially written
// row, and the guarded status transitions lose cleanly when racing.
type OperationStore interface {
	// InsertOperation persists a new row.
	InsertOperation(op Operation) error

	// UpdateOperation replaces the row with the same ID.
	UpdateOperation(op Operation) error

	// DeleteOperation removes a row. Deleting a missing row is not an error.
	DeleteOperation(id string) error

	// GetOperation returns the row with the given id, or ErrNotFound.
	GetOperation(id string) (Operation, error)

	// ListByEntity returns non-terminal rows for (family, entityID) in
	// enqueue order. Used by the merge step.
	ListByEntity(family, entityID string) ([]Operation, error)

	// ListReady returns up to limit Pending rows plus Failed rows whose
	// NextRetryAt is not after now, ordered by priority descending then
	// CreatedAt ascending. Processing rows are never returned.
	ListReady(limit int, now time.Time) ([]Operation, error)

	// SetStatus transitions a row from one status to another, updating the
	// retry bookkeeping carried on op. Returns ErrInvalidTransition when the
	// row is no longer in the expected status.
	SetStatus(id, from string, op Operation) error

	// CountPending returns the number of Pending plus Failed-retryable rows,
	// the queue depth reported to observers.
	CountPending() (int, error)
}

// MappingStore is durable storage for temporary-to-real id mappings.
type MappingStore interface {
	// RegisterAndRewrite persists the mapping and, in the same transaction,
	// replaces the entity id on every Pending or Failed operation row still
	// referencing m.TempID. Returns the number of rows rewritten. Mappings
	// are write-once.
	RegisterAndRewrite(m IdMapping) (int, error)

	// AllMappings returns every persisted mapping, for registry rebuild at
	// startup.
	AllMappings() ([]IdMapping, error)
}

// CursorStore is durable storage for the singleton sync cursor.
type CursorStore interface {
	// GetCursor returns the cursor, or a zero cursor if none was saved yet.
	GetCursor() (SyncCursor, error)

	// PutCursor replaces the cursor.
	PutCursor(c SyncCursor) error
}

// ReplicaStore is durable storage for the local entity replica.
type ReplicaStore interface {
	// UpsertEntity inserts or replaces one replica row.
	UpsertEntity(e Entity) error

	// GetEntity returns the replica row with the given id, or ErrNotFound.
	GetEntity(id string) (Entity, error)

	// DeleteEntity removes a replica row. Missing rows are not an error.
	DeleteEntity(id string) error

	// ListEntities returns all replica rows.
	ListEntities() ([]Entity, error)

	// ReplaceAll swaps the entire replica for the given set in one
	// transaction. On error the previous replica is left untouched.
	ReplaceAll(entities []Entity) error
}

// Store is the full durable store consumed by the core: the three logical
// sync tables plus the local replica.
type Store interface {
	OperationStore
	MappingStore
	CursorStore
	ReplicaStore
}
