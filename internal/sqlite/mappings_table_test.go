package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/satchel/pkg/types"
)

func TestRegisterAndRewrite(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	require.NoError(t, s.InsertOperation(mkOp("upd", types.KindUpdateNote, "tmp-1", 20, now)))

	failed := mkOp("fail", types.KindUploadAsset, "tmp-1", 10, now)
	failed.Status = types.StatusFailed
	failed.NextRetryAt = now.Add(time.Minute)
	require.NoError(t, s.InsertOperation(failed))

	inFlight := mkOp("busy", types.KindUpdateNote, "tmp-1", 20, now)
	inFlight.Status = types.StatusProcessing
	require.NoError(t, s.InsertOperation(inFlight))

	require.NoError(t, s.InsertOperation(mkOp("other", types.KindUpdateNote, "tmp-2", 20, now)))

	rewritten, err := s.RegisterAndRewrite(types.IdMapping{
		TempID: "tmp-1", RealID: "srv-9", CreatedAt: now,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, rewritten, "pending and failed rows rewrite; processing rows do not")

	for id, want := range map[string]string{
		"upd":   "srv-9",
		"fail":  "srv-9",
		"busy":  "tmp-1",
		"other": "tmp-2",
	} {
		got, err := s.GetOperation(id)
		require.NoError(t, err)
		assert.Equal(t, want, got.EntityID, "operation %s", id)
	}
}

func TestRegisterAndRewriteDuplicateTempID(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	_, err := s.RegisterAndRewrite(types.IdMapping{TempID: "tmp-1", RealID: "srv-1", CreatedAt: now})
	require.NoError(t, err)

	// Mappings are write-once; a second registration must fail and leave the
	// original row intact.
	_, err = s.RegisterAndRewrite(types.IdMapping{TempID: "tmp-1", RealID: "srv-2", CreatedAt: now})
	require.Error(t, err)

	mappings, err := s.AllMappings()
	require.NoError(t, err)
	require.Len(t, mappings, 1)
	assert.Equal(t, "srv-1", mappings[0].RealID)
}

func TestAllMappingsOrder(t *testing.T) {
	s := newTestStore(t)
	base := time.Now().UTC()

	for i, tmp := range []string{"t-b", "t-a", "t-c"} {
		_, err := s.RegisterAndRewrite(types.IdMapping{
			TempID:    tmp,
			RealID:    "r-" + tmp,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
		})
		require.NoError(t, err)
	}

	mappings, err := s.AllMappings()
	require.NoError(t, err)
	require.Len(t, mappings, 3)
	assert.Equal(t, "t-b", mappings[0].TempID, "ordered by creation, not key")
	assert.Equal(t, "t-c", mappings[2].TempID)
}
