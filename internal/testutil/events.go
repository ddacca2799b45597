package testutil

import (
	"sync"

	"github.com/mesh-intelligence/satchel/pkg/types"
)

// EventRecorder collects emitted events for assertions.
type EventRecorder struct {
	mu     sync.Mutex
	events []types.Event
}

// NewEventRecorder creates an empty recorder.
func NewEventRecorder() *EventRecorder {
	return &EventRecorder{}
}

// Notifier returns the callback to hand to the component under test.
func (r *EventRecorder) Notifier() types.Notifier {
	return func(e types.Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, e)
	}
}

// Events returns a copy of everything recorded, in emission order.
func (r *EventRecorder) Events() []types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.Event, len(r.events))
	copy(out, r.events)
	return out
}

// ByKind returns the recorded events of one kind.
func (r *EventRecorder) ByKind(kind string) []types.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []types.Event
	for _, e := range r.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
