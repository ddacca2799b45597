package registry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/satchel/internal/sqlite"
	"github.com/mesh-intelligence/satchel/internal/testutil"
	"github.com/mesh-intelligence/satchel/pkg/types"
)

func newTestRegistry(t *testing.T) (*Registry, *sqlite.Store, string) {
	t.Helper()
	dir := t.TempDir()
	store := sqlite.NewStore()
	require.NoError(t, store.Attach(dir))
	t.Cleanup(func() { _ = store.Detach() })

	clock := testutil.NewClock(time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC))
	r, err := Load(store, clock)
	require.NoError(t, err)
	return r, store, dir
}

func TestResolveUnknownIsIdentity(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	assert.Equal(t, "n1", r.Resolve("n1"))
	assert.Equal(t, "", r.Resolve(""))
}

func TestRegisterAndRewrite(t *testing.T) {
	r, store, _ := newTestRegistry(t)
	now := time.Now().UTC()

	require.NoError(t, store.InsertOperation(types.Operation{
		ID: "upd", Kind: types.KindUpdateNote, EntityID: "tmp-1",
		CreatedAt: now, Status: types.StatusPending,
	}))

	rewritten, err := r.RegisterAndRewrite("tmp-1", "srv-1")
	require.NoError(t, err)
	assert.Equal(t, 1, rewritten)

	assert.Equal(t, "srv-1", r.Resolve("tmp-1"))
	assert.Equal(t, "srv-1", r.Resolve("srv-1"), "resolving a real id is a no-op")

	op, err := store.GetOperation("upd")
	require.NoError(t, err)
	assert.Equal(t, "srv-1", op.EntityID)
}

func TestRegisterIsWriteOnce(t *testing.T) {
	r, _, _ := newTestRegistry(t)

	_, err := r.RegisterAndRewrite("tmp-1", "srv-1")
	require.NoError(t, err)

	// Registering the same assignment again is harmless.
	n, err := r.RegisterAndRewrite("tmp-1", "srv-1")
	require.NoError(t, err)
	assert.Zero(t, n)

	// A conflicting assignment is refused.
	_, err = r.RegisterAndRewrite("tmp-1", "srv-2")
	assert.Error(t, err)
	assert.Equal(t, "srv-1", r.Resolve("tmp-1"))
}

func TestMappingsSurviveRestart(t *testing.T) {
	r, store, dir := newTestRegistry(t)

	_, err := r.RegisterAndRewrite("tmp-1", "srv-1")
	require.NoError(t, err)
	require.NoError(t, store.Detach())

	// A new process over the same data dir must still resolve the temp id.
	store2 := sqlite.NewStore()
	require.NoError(t, store2.Attach(dir))
	defer store2.Detach()

	r2, err := Load(store2, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, r2.Len())
	assert.Equal(t, "srv-1", r2.Resolve("tmp-1"))
}
