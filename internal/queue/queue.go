// Package queue implements the offline operation queue: durable enqueue with
// dedup/merge, priority-ordered dequeue, and the status transitions the
// processor drives rows through.
//
// The queue is the single writer for the operations table. All mutation goes
// through one mutex, so the merge step always sees a consistent row set and
// replaying the same user edits always produces the same surviving rows.
package queue

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/satchel/pkg/types"
)

// Queue owns enqueue, deduplication, and ordering over the operation store.
type Queue struct {
	mu     sync.Mutex
	store  types.OperationStore
	cfg    types.Config
	clock  types.Clock
	notify types.Notifier
}

// New creates a queue over the given store. A nil clock uses wall time; a nil
// notifier discards events.
func New(store types.OperationStore, cfg types.Config, clock types.Clock, notify types.Notifier) *Queue {
	if clock == nil {
		clock = types.RealClock{}
	}
	return &Queue{
		store:  store,
		cfg:    cfg.WithDefaults(),
		clock:  clock,
		notify: notify,
	}
}

// Enqueue persists the operation after merging it against existing rows for
// the same (family, entity id):
//
//	Create + Update  -> one Create carrying the latest payload
//	Create + Delete  -> both rows removed, net no-op
//	Update + Update  -> the later row wins
//	Any    + Delete  -> Delete cancels every prior row for the entity
//
// Rows already Processing are never merged into; their payload is in flight,
// so the new operation is queued as its own row.
func (q *Queue) Enqueue(op types.Operation) error {
	if err := op.Validate(); err != nil {
		return err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if op.ID == "" {
		op.ID = newID()
	}
	if op.CreatedAt.IsZero() {
		op.CreatedAt = q.clock.Now()
	}
	op.Priority = q.cfg.Priority(op.Kind)
	op.Status = types.StatusPending
	op.RetryCount = 0
	op.LastError = ""

	existing, err := q.store.ListByEntity(op.Family(), op.EntityID)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", op.Kind, err)
	}

	var mergeable []types.Operation
	for _, e := range existing {
		if e.Status != types.StatusProcessing {
			mergeable = append(mergeable, e)
		}
	}

	if err := q.merge(op, mergeable); err != nil {
		return err
	}

	q.emitDepth()
	return nil
}

// merge applies the dedup table and persists the surviving row set. The
// caller holds the queue mutex.
func (q *Queue) merge(op types.Operation, mergeable []types.Operation) error {
	switch {
	case op.IsDelete():
		// Delete supersedes everything queued for the entity, including
		// updates in the other direction; orphaned rows are pruned here.
		sawCreate := false
		for _, e := range mergeable {
			if e.IsCreate() {
				sawCreate = true
			}
			if err := q.store.DeleteOperation(e.ID); err != nil {
				return fmt.Errorf("pruning %s: %w", e.ID, err)
			}
		}
		if sawCreate {
			// The entity never reached the server; Create + Delete nets to
			// no work at all.
			return nil
		}
		return q.insert(op)

	case op.IsCreate():
		// A repeated Create folds into the queued one; the entity exists
		// once, so it gets one Create carrying the latest payload.
		for _, e := range mergeable {
			if e.IsCreate() {
				e.Payload = op.Payload
				if err := q.store.UpdateOperation(e); err != nil {
					return fmt.Errorf("folding create into create %s: %w", e.ID, err)
				}
				return nil
			}
		}
		return q.insert(op)

	default:
		// Update-class kinds: fold into a queued Create, else replace an
		// older row of the same kind. A queued Delete supersedes the edit
		// entirely; the entity is going away.
		for _, e := range mergeable {
			if e.IsCreate() {
				e.Payload = op.Payload
				if err := q.store.UpdateOperation(e); err != nil {
					return fmt.Errorf("folding update into create %s: %w", e.ID, err)
				}
				return nil
			}
		}
		for _, e := range mergeable {
			if e.IsDelete() {
				return nil
			}
		}
		for _, e := range mergeable {
			if e.Kind != op.Kind {
				continue
			}
			if !op.CreatedAt.Before(e.CreatedAt) {
				e.Payload = op.Payload
				e.CreatedAt = op.CreatedAt
				e.Status = types.StatusPending
				e.RetryCount = 0
				e.LastError = ""
				e.NextRetryAt = time.Time{}
				if err := q.store.UpdateOperation(e); err != nil {
					return fmt.Errorf("replacing %s: %w", e.ID, err)
				}
			}
			// An older duplicate is absorbed either way.
			return nil
		}
		return q.insert(op)
	}
}

func (q *Queue) insert(op types.Operation) error {
	if err := q.store.InsertOperation(op); err != nil {
		return fmt.Errorf("inserting %s: %w", op.Kind, err)
	}
	return nil
}

// DequeueReady returns up to limit dispatchable rows ordered by priority
// descending, FIFO within a priority. Processing rows are never returned.
func (q *Queue) DequeueReady(limit int) ([]types.Operation, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.store.ListReady(limit, q.clock.Now())
}

// MarkProcessing claims a row for dispatch. This is the exclusivity gate:
// exactly one caller wins; the rest get ErrInvalidTransition.
func (q *Queue) MarkProcessing(op types.Operation) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	from := op.Status
	op.Status = types.StatusProcessing
	if err := q.store.SetStatus(op.ID, from, op); err != nil {
		return err
	}
	q.emitDepth()
	return nil
}

// MarkCompleted removes a finished row; completed operations are not kept.
func (q *Queue) MarkCompleted(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if err := q.store.DeleteOperation(id); err != nil {
		return err
	}
	q.emitDepth()
	return nil
}

// MarkFailed records a failure on a Processing row. A zero nextRetryAt marks
// the failure terminal: the row stays visible for manual retry but is never
// dequeued again.
func (q *Queue) MarkFailed(op types.Operation, cause string, nextRetryAt time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	op.Status = types.StatusFailed
	op.RetryCount++
	op.LastError = cause
	op.NextRetryAt = nextRetryAt
	if err := q.store.SetStatus(op.ID, types.StatusProcessing, op); err != nil {
		return err
	}
	q.emitDepth()
	return nil
}

// Retry re-queues a terminally failed row with a clean retry budget; the
// operator-visible path for terminal failures.
func (q *Queue) Retry(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	op, err := q.store.GetOperation(id)
	if err != nil {
		return err
	}
	if op.Status != types.StatusFailed {
		return types.ErrInvalidTransition
	}
	next := op
	next.Status = types.StatusPending
	next.RetryCount = 0
	next.LastError = ""
	next.NextRetryAt = time.Time{}
	if err := q.store.SetStatus(id, types.StatusFailed, next); err != nil {
		return err
	}
	q.emitDepth()
	return nil
}

// Clear drops a terminally failed row without executing it; the operator
// path for abandoning a write that can never succeed.
func (q *Queue) Clear(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	op, err := q.store.GetOperation(id)
	if err != nil {
		return err
	}
	if op.Status != types.StatusFailed || !op.NextRetryAt.IsZero() {
		return types.ErrInvalidTransition
	}
	if err := q.store.DeleteOperation(id); err != nil {
		return err
	}
	q.emitDepth()
	return nil
}

// Depth returns the number of rows waiting to be dispatched.
func (q *Queue) Depth() (int, error) {
	return q.store.CountPending()
}

// emitDepth publishes the current queue depth; errors reading the depth are
// swallowed, observability must not fail a write.
func (q *Queue) emitDepth() {
	n, err := q.store.CountPending()
	if err != nil {
		return
	}
	q.notify.Emit(types.Event{
		Kind:       types.EventQueueDepth,
		At:         q.clock.Now(),
		QueueDepth: n,
	})
}

// newID returns a UUID v7 operation id, falling back to v4 if the clock
// source fails.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
