package types

import "time"

// Event kinds emitted by the core for the presentation layer.
const (
	EventQueueDepth         = "queue_depth"
	EventOperationCompleted = "operation_completed"
	EventOperationFailed    = "operation_failed"
	EventSyncStarted        = "sync_started"
	EventSyncFinished       = "sync_finished"
)

// Event is one observability notification. Emission is fire-and-forget: the
// queue, processor, and engine never block on a slow consumer.
type Event struct {
	Kind        string
	At          time.Time
	QueueDepth  int    // Set for EventQueueDepth.
	OperationID string // Set for per-operation events.
	EntityID    string // Set for per-operation events.
	Error       string // Set for EventOperationFailed and failed syncs.
	Full        bool   // Set for sync events: full vs incremental pass.
}

// Notifier receives events. A nil Notifier is valid and discards everything.
type Notifier func(Event)

// Emit delivers e to the notifier if one is set. Safe on a nil receiver.
func (n Notifier) Emit(e Event) {
	if n != nil {
		n(e)
	}
}
