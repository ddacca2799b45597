package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/satchel/pkg/types"
)

// newTestStore returns an attached store in a per-test directory, detached on
// cleanup.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	s := NewStore()
	require.NoError(t, s.Attach(t.TempDir()))
	t.Cleanup(func() { _ = s.Detach() })
	return s
}

func TestAttachDetachLifecycle(t *testing.T) {
	dir := t.TempDir()
	s := NewStore()

	require.NoError(t, s.Attach(dir))
	assert.ErrorIs(t, s.Attach(dir), types.ErrAlreadyAttached)

	require.NoError(t, s.Detach())
	assert.NoError(t, s.Detach(), "detach is idempotent")

	_, err := s.CountPending()
	assert.ErrorIs(t, err, types.ErrStoreDetached)
}

func TestRowsSurviveReattach(t *testing.T) {
	dir := t.TempDir()
	s := NewStore()
	require.NoError(t, s.Attach(dir))

	op := types.Operation{
		ID:        "op-1",
		Kind:      types.KindUpdateNote,
		EntityID:  "n1",
		Payload:   []byte(`{"title":"draft"}`),
		CreatedAt: time.Now().UTC(),
		Status:    types.StatusPending,
	}
	require.NoError(t, s.InsertOperation(op))
	_, err := s.RegisterAndRewrite(types.IdMapping{
		TempID: "tmp-1", RealID: "srv-1", CreatedAt: time.Now().UTC(),
	})
	require.NoError(t, err)
	require.NoError(t, s.Detach())

	// A crash-restart must find both the queued row and the mapping.
	s2 := NewStore()
	require.NoError(t, s2.Attach(dir))
	defer s2.Detach()

	got, err := s2.GetOperation("op-1")
	require.NoError(t, err)
	assert.Equal(t, "n1", got.EntityID)
	assert.Equal(t, []byte(`{"title":"draft"}`), got.Payload)

	mappings, err := s2.AllMappings()
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	assert.Equal(t, "srv-1", mappings[0].RealID)
}

func TestTimeRoundTrip(t *testing.T) {
	assert.Equal(t, "", formatTime(time.Time{}))

	zero, err := parseTime("")
	require.NoError(t, err)
	assert.True(t, zero.IsZero())

	now := time.Date(2026, 8, 23, 10, 30, 0, 123456789, time.UTC)
	parsed, err := parseTime(formatTime(now))
	require.NoError(t, err)
	assert.True(t, parsed.Equal(now), "nanosecond precision must survive storage")

	_, err = parseTime("yesterday-ish")
	assert.Error(t, err)
}
