package testutil

import (
	"context"
	"sync"

	"github.com/mesh-intelligence/satchel/pkg/types"
)

// FakeRemote is a scripted types.RemoteClient. It records every call, tracks
// concurrency (peak in-flight calls and same-entity overlap), and delegates
// behavior to the optional script functions. With no script, Execute
// succeeds with an empty result and the fetchers return empty sets.
type FakeRemote struct {
	mu         sync.Mutex
	calls      []types.Operation
	inFlight   int
	peak       int
	entityBusy map[string]int
	overlapped bool

	// ExecuteFn, when set, decides the outcome of each Execute call.
	ExecuteFn func(ctx context.Context, op types.Operation) (types.RemoteResult, error)

	// FetchAllFn and FetchChangesFn script the sync-engine pulls.
	FetchAllFn     func(ctx context.Context) ([]types.Entity, error)
	FetchChangesFn func(ctx context.Context, syncTag string) (types.ChangeSet, error)

	// Gate, when non-nil, blocks every Execute call until a token is sent
	// (or the context is cancelled). Used to hold operations in flight.
	Gate chan struct{}
}

// NewFakeRemote creates an empty fake.
func NewFakeRemote() *FakeRemote {
	return &FakeRemote{entityBusy: make(map[string]int)}
}

// Execute implements types.RemoteClient.
func (f *FakeRemote) Execute(ctx context.Context, op types.Operation) (types.RemoteResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, op)
	f.inFlight++
	if f.inFlight > f.peak {
		f.peak = f.inFlight
	}
	f.entityBusy[op.EntityID]++
	if f.entityBusy[op.EntityID] > 1 {
		f.overlapped = true
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.inFlight--
		f.entityBusy[op.EntityID]--
		f.mu.Unlock()
	}()

	if f.Gate != nil {
		select {
		case <-f.Gate:
		case <-ctx.Done():
			return types.RemoteResult{}, &types.APIError{
				Class:   types.ClassNetworkError,
				Message: ctx.Err().Error(),
			}
		}
	}

	if f.ExecuteFn != nil {
		return f.ExecuteFn(ctx, op)
	}
	return types.RemoteResult{}, nil
}

// FetchAll implements types.RemoteClient.
func (f *FakeRemote) FetchAll(ctx context.Context) ([]types.Entity, error) {
	if f.FetchAllFn != nil {
		return f.FetchAllFn(ctx)
	}
	return nil, nil
}

// FetchChanges implements types.RemoteClient.
func (f *FakeRemote) FetchChanges(ctx context.Context, syncTag string) (types.ChangeSet, error) {
	if f.FetchChangesFn != nil {
		return f.FetchChangesFn(ctx, syncTag)
	}
	return types.ChangeSet{SyncTag: syncTag}, nil
}

// Calls returns a copy of the operations executed so far, in call order.
func (f *FakeRemote) Calls() []types.Operation {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]types.Operation, len(f.calls))
	copy(out, f.calls)
	return out
}

// CallCount returns the number of Execute calls so far.
func (f *FakeRemote) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// PeakInFlight returns the maximum number of simultaneous Execute calls
// observed.
func (f *FakeRemote) PeakInFlight() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}

// EntityOverlapped reports whether two calls for the same entity were ever
// in flight at once.
func (f *FakeRemote) EntityOverlapped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.overlapped
}

// Compile-time interface check.
var _ types.RemoteClient = (*FakeRemote)(nil)
