package types

import (
	"context"
	"errors"
	"fmt"
)

// API error classes, as hinted by the remote client. Classification decides
// whether the processor retries an operation or surfaces it as terminal.
const (
	ClassNetworkError    = "network_error"
	ClassAuthExpired     = "auth_expired"
	ClassConflict        = "conflict"
	ClassNotFound        = "not_found"
	ClassServerError     = "server_error"
	ClassValidationError = "validation_error"
)

// APIError is the typed failure returned by a RemoteClient. Class carries the
// classification hint; StatusCode is optional transport detail.
type APIError struct {
	Class      string
	Message    string
	StatusCode int
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote api: %s", e.Class)
	}
	return fmt.Sprintf("remote api: %s: %s", e.Class, e.Message)
}

// Retryable reports whether an error from the remote client should be retried
// with backoff. Classification is a pure function of the error: network
// failures, expired credentials, and server errors retry; conflicts,
// missing entities, and validation failures are terminal. An error that is
// not an APIError at all defaults to retryable so user data is never
// silently dropped on an unexpected failure.
func Retryable(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return true
	}
	switch apiErr.Class {
	case ClassNetworkError, ClassAuthExpired, ClassServerError:
		return true
	case ClassConflict, ClassNotFound, ClassValidationError:
		return false
	default:
		return true
	}
}

// DroppedSilently reports whether a terminal error should discard the
// operation without surfacing it: the entity is already gone server-side, so
// there is nothing for the operator to act on.
func DroppedSilently(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Class == ClassNotFound
}

// RemoteResult is the success payload of one remote call. AssignedID is set
// only for entity-creation operations.
type RemoteResult struct {
	AssignedID string
}

// ChangeSet is the remote delta since a sync tag: changed entities, ids of
// deleted entities, and the tag to use for the next incremental fetch.
type ChangeSet struct {
	Entities []Entity
	Deleted  []string
	SyncTag  string
}

// RemoteClient is the generic API client the core consumes. One request per
// operation; the wire protocol is the client's concern. Implementations must
// return *APIError for failures they can classify.
type RemoteClient interface {
	// Execute performs one queued operation against the server.
	Execute(ctx context.Context, op Operation) (RemoteResult, error)

	// FetchAll returns the complete remote entity set, for full sync.
	FetchAll(ctx context.Context) ([]Entity, error)

	// FetchChanges returns remote changes since the given sync tag.
	FetchChanges(ctx context.Context, syncTag string) (ChangeSet, error)
}
