package types

import "time"

// Entity is one row of the local replica: a note or a folder as last seen by
// this client. The sync engine owns the replica; the queue and processor only
// reference entities by id.
type Entity struct {
	ID        string    // Server id, or a temporary id before first upload.
	Family    string    // FamilyNote or FamilyFolder.
	Title     string    // Display name.
	ParentID  string    // Containing folder id; "" for top level.
	Body      []byte    // Serialized content; opaque to the core.
	UpdatedAt time.Time // Last modification, used for conflict resolution.
}

// IdMapping records one temporary-to-real id assignment. Mappings are written
// once on a successful create, never updated, and survive restarts so temp
// ids referenced by rows enqueued before a crash still resolve.
type IdMapping struct {
	TempID    string
	RealID    string
	CreatedAt time.Time
}

// SyncCursor marks the point up to which remote changes have been consumed.
// A process-wide singleton row, mutated only by the sync engine at the end of
// a successful pass.
type SyncCursor struct {
	LastSyncAt     time.Time // End of the most recent successful pass.
	SyncTag        string    // Opaque token for the next incremental fetch.
	LastFullSyncAt time.Time // End of the most recent successful full sync.
}
