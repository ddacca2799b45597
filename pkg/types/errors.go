package types

import "errors"

// Standard errors returned across the sync core. Callers match with
// errors.Is; storage and remote failures are wrapped with %w so the sentinel
// survives the trip up the stack.
var (
	// ErrStoreDetached is returned by store operations before Attach or
	// after Detach.
	ErrStoreDetached = errors.New("store is detached")

	// ErrAlreadyAttached is returned by Attach on an attached store.
	ErrAlreadyAttached = errors.New("store is already attached")

	// ErrNotFound is returned when a row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnknownKind is returned for an unrecognized operation kind.
	ErrUnknownKind = errors.New("unknown operation kind")

	// ErrInvalidEntityID is returned for an operation with an empty entity id.
	ErrInvalidEntityID = errors.New("invalid entity id")

	// ErrInvalidTransition is returned when a status transition races with
	// another writer, e.g. marking a completed row as processing.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrSyncInProgress is returned when a sync pass is requested while
	// another pass is running.
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrDrainTimeout is returned when draining the queue before a full sync
	// exceeds the configured bound. The sync proceeds anyway; the error is
	// informational for the caller.
	ErrDrainTimeout = errors.New("queue drain timed out")
)
