package processor

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/satchel/internal/queue"
	"github.com/mesh-intelligence/satchel/internal/registry"
	"github.com/mesh-intelligence/satchel/internal/sqlite"
	"github.com/mesh-intelligence/satchel/internal/testutil"
	"github.com/mesh-intelligence/satchel/pkg/types"
)

var testStart = time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)

type fixture struct {
	proc  *Processor
	queue *queue.Queue
	store *sqlite.Store
	reg   *registry.Registry
	clock *testutil.Clock
	fake  *testutil.FakeRemote
	rec   *testutil.EventRecorder
}

func newFixture(t *testing.T, cfg types.Config) *fixture {
	t.Helper()
	store := sqlite.NewStore()
	require.NoError(t, store.Attach(t.TempDir()))
	t.Cleanup(func() { _ = store.Detach() })

	clock := testutil.NewClock(testStart)
	rec := testutil.NewEventRecorder()
	q := queue.New(store, cfg, clock, rec.Notifier())
	reg, err := registry.Load(store, clock)
	require.NoError(t, err)
	fake := testutil.NewFakeRemote()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{
		proc:  New(q, reg, fake, cfg, clock, rec.Notifier(), logger),
		queue: q,
		store: store,
		reg:   reg,
		clock: clock,
		fake:  fake,
		rec:   rec,
	}
}

func (f *fixture) enqueue(t *testing.T, kind, entityID, payload string) {
	t.Helper()
	f.clock.Advance(time.Second)
	require.NoError(t, f.queue.Enqueue(types.Operation{
		Kind:     kind,
		EntityID: entityID,
		Payload:  []byte(payload),
	}))
}

// row fetches the single surviving row for an entity, terminal failures
// included; ListByEntity serves the merge path and filters those out.
func (f *fixture) row(t *testing.T, family, entityID string) types.Operation {
	t.Helper()
	ops, err := f.store.ListOperations()
	require.NoError(t, err)

	var matched []types.Operation
	for _, op := range ops {
		if op.Family() == family && op.EntityID == entityID {
			matched = append(matched, op)
		}
	}
	require.Len(t, matched, 1)
	return matched[0]
}

func TestRunCycleDrainsQueue(t *testing.T) {
	f := newFixture(t, types.Config{})

	f.enqueue(t, types.KindUpdateNote, "n1", `{"title":"hello"}`)
	f.enqueue(t, types.KindDeleteFolder, "f1", ``)

	require.NoError(t, f.proc.RunCycle(context.Background()))

	assert.Equal(t, 2, f.fake.CallCount())
	depth, err := f.queue.Depth()
	require.NoError(t, err)
	assert.Zero(t, depth)
	assert.Len(t, f.rec.ByKind(types.EventOperationCompleted), 2)
}

func TestCreateRegistersMappingAndResolvesReferences(t *testing.T) {
	// One worker, and folders created ahead of notes, so the folder's id
	// mapping lands before the note that references it is dispatched.
	f := newFixture(t, types.Config{
		MaxConcurrency: 1,
		PriorityPolicy: map[string]int{types.KindCreateFolder: 11},
	})
	f.fake.ExecuteFn = func(_ context.Context, op types.Operation) (types.RemoteResult, error) {
		if op.IsCreate() {
			return types.RemoteResult{AssignedID: "srv-" + op.EntityID}, nil
		}
		return types.RemoteResult{}, nil
	}

	// The note's payload references the folder by its temporary id; the note
	// create must be dispatched against the server-assigned folder id.
	f.enqueue(t, types.KindCreateFolder, "tmp-f", `{"title":"inbox"}`)
	f.enqueue(t, types.KindCreateNote, "tmp-n", `{"title":"hi","folder_id":"tmp-f"}`)

	require.NoError(t, f.proc.RunCycle(context.Background()))

	assert.Equal(t, "srv-tmp-f", f.reg.Resolve("tmp-f"))
	assert.Equal(t, "srv-tmp-n", f.reg.Resolve("tmp-n"))

	calls := f.fake.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, types.KindCreateFolder, calls[0].Kind)
	assert.JSONEq(t, `{"title":"hi","folder_id":"srv-tmp-f"}`, string(calls[1].Payload))
}

func TestDispatchResolvesEntityIDThroughRegistry(t *testing.T) {
	f := newFixture(t, types.Config{})

	// A row can still carry a temporary id if it was written before the
	// mapping landed; dispatch must resolve it, never trust the row.
	_, err := f.reg.RegisterAndRewrite("tmp-1", "srv-1")
	require.NoError(t, err)
	require.NoError(t, f.store.InsertOperation(types.Operation{
		ID: "op-1", Kind: types.KindUpdateNote, EntityID: "tmp-1",
		Payload: []byte(`{}`), CreatedAt: f.clock.Now(), Status: types.StatusPending,
	}))

	require.NoError(t, f.proc.RunCycle(context.Background()))

	calls := f.fake.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "srv-1", calls[0].EntityID)
}

func TestRetryBackoffSchedule(t *testing.T) {
	f := newFixture(t, types.Config{})
	f.fake.ExecuteFn = func(context.Context, types.Operation) (types.RemoteResult, error) {
		return types.RemoteResult{}, &types.APIError{Class: types.ClassNetworkError, Message: "connection reset"}
	}

	f.enqueue(t, types.KindUpdateNote, "n1", `{}`)

	// 5s, 10s, 20s, then terminal.
	delays := []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}
	for i, delay := range delays {
		require.NoError(t, f.proc.RunCycle(context.Background()))
		op := f.row(t, types.FamilyNote, "n1")
		assert.Equal(t, i+1, op.RetryCount)
		assert.Equal(t, types.StatusFailed, op.Status)
		assert.Equal(t, f.clock.Now().Add(delay), op.NextRetryAt)
		f.clock.Advance(delay)
	}

	require.NoError(t, f.proc.RunCycle(context.Background()))
	op := f.row(t, types.FamilyNote, "n1")
	assert.Equal(t, 4, op.RetryCount)
	assert.True(t, op.NextRetryAt.IsZero(), "budget exhausted, failure is terminal")
	assert.Equal(t, "connection reset", op.LastError)

	// A terminal row is invisible to further cycles.
	calls := f.fake.CallCount()
	require.NoError(t, f.proc.RunCycle(context.Background()))
	assert.Equal(t, calls, f.fake.CallCount())
}

func TestTerminalClassification(t *testing.T) {
	tests := []struct {
		name  string
		class string
	}{
		{"conflict", types.ClassConflict},
		{"validation", types.ClassValidationError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, types.Config{})
			f.fake.ExecuteFn = func(context.Context, types.Operation) (types.RemoteResult, error) {
				return types.RemoteResult{}, &types.APIError{Class: tc.class, Message: tc.class}
			}

			f.enqueue(t, types.KindUpdateNote, "n1", `{}`)
			require.NoError(t, f.proc.RunCycle(context.Background()))

			op := f.row(t, types.FamilyNote, "n1")
			assert.Equal(t, types.StatusFailed, op.Status)
			assert.True(t, op.NextRetryAt.IsZero(), "no retry for a %s", tc.class)
			assert.Equal(t, 1, f.fake.CallCount())
			assert.Len(t, f.rec.ByKind(types.EventOperationFailed), 1)
		})
	}
}

func TestNotFoundDroppedSilently(t *testing.T) {
	f := newFixture(t, types.Config{})
	f.fake.ExecuteFn = func(context.Context, types.Operation) (types.RemoteResult, error) {
		return types.RemoteResult{}, &types.APIError{Class: types.ClassNotFound, Message: "gone"}
	}

	f.enqueue(t, types.KindDeleteNote, "n1", ``)
	require.NoError(t, f.proc.RunCycle(context.Background()))

	depth, err := f.queue.Depth()
	require.NoError(t, err)
	assert.Zero(t, depth, "the entity is already gone; nothing left to do")
	assert.Empty(t, f.rec.ByKind(types.EventOperationFailed))
	assert.Empty(t, f.rec.ByKind(types.EventOperationCompleted))
}

func TestConcurrencyBoundAndEntitySerialization(t *testing.T) {
	f := newFixture(t, types.Config{MaxConcurrency: 3})
	f.fake.ExecuteFn = func(context.Context, types.Operation) (types.RemoteResult, error) {
		time.Sleep(10 * time.Millisecond) // hold calls in flight so overlap is observable
		return types.RemoteResult{}, nil
	}

	// n1 carries two rows (an update and an asset upload); they must never be
	// in flight at the same time.
	f.enqueue(t, types.KindUpdateNote, "n1", `{"title":"v1"}`)
	f.enqueue(t, types.KindUploadAsset, "n1", `binary`)
	f.enqueue(t, types.KindUpdateNote, "n2", `{}`)
	f.enqueue(t, types.KindUpdateNote, "n3", `{}`)
	f.enqueue(t, types.KindUpdateNote, "n4", `{}`)
	f.enqueue(t, types.KindUpdateNote, "n5", `{}`)

	require.NoError(t, f.proc.RunCycle(context.Background()))

	assert.Equal(t, 6, f.fake.CallCount())
	assert.LessOrEqual(t, f.fake.PeakInFlight(), 3)
	assert.False(t, f.fake.EntityOverlapped(), "two calls for one entity overlapped")
}

func TestHandlerValidationSkipsNetwork(t *testing.T) {
	f := newFixture(t, types.Config{})

	f.enqueue(t, types.KindRenameFolder, "f1", `{}`)
	require.NoError(t, f.proc.RunCycle(context.Background()))

	op := f.row(t, types.FamilyFolder, "f1")
	assert.Equal(t, types.StatusFailed, op.Status)
	assert.True(t, op.NextRetryAt.IsZero())
	assert.Zero(t, f.fake.CallCount(), "a payload that can never succeed is not sent")
}

func TestRunCycleObservesCancellation(t *testing.T) {
	f := newFixture(t, types.Config{})
	f.enqueue(t, types.KindUpdateNote, "n1", `{}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, f.proc.RunCycle(ctx), context.Canceled)
	assert.Zero(t, f.fake.CallCount())
}
