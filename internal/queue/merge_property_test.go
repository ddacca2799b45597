package queue

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/mesh-intelligence/satchel/internal/sqlite"
	"github.com/mesh-intelligence/satchel/internal/testutil"
	"github.com/mesh-intelligence/satchel/pkg/types"
)

// modelRow is the reference model's view of one surviving queue row.
type modelRow struct {
	kind    string
	payload string
}

// applyModel is an independent in-memory rendition of the merge table. The
// property test checks that the real queue over the real store always agrees
// with it.
func applyModel(rows []modelRow, kind, payload string) []modelRow {
	switch kind {
	case types.KindDeleteNote:
		sawCreate := false
		for _, r := range rows {
			if r.kind == types.KindCreateNote {
				sawCreate = true
			}
		}
		if sawCreate {
			return nil
		}
		return []modelRow{{kind: types.KindDeleteNote}}

	case types.KindCreateNote:
		for i, r := range rows {
			if r.kind == types.KindCreateNote {
				rows[i].payload = payload
				return rows
			}
		}
		return append(rows, modelRow{kind: kind, payload: payload})

	default:
		for i, r := range rows {
			if r.kind == types.KindCreateNote {
				rows[i].payload = payload
				return rows
			}
		}
		for _, r := range rows {
			if r.kind == types.KindDeleteNote {
				return rows
			}
		}
		for i, r := range rows {
			if r.kind == kind {
				rows[i].payload = payload
				return rows
			}
		}
		return append(rows, modelRow{kind: kind, payload: payload})
	}
}

// TestMergeAgainstModel replays random Create/Update/Delete sequences for a
// single entity through the queue and checks the surviving row set against
// the model after every step. Idempotence of the merge function follows:
// the model is a pure function of the sequence.
func TestMergeAgainstModel(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		store := sqlite.NewStore()
		dir := t.TempDir()
		require.NoError(t, store.Attach(dir))
		defer store.Detach()

		clock := testutil.NewClock(time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC))
		q := New(store, types.Config{}, clock, nil)

		var model []modelRow
		kindGen := rapid.SampledFrom([]string{
			types.KindCreateNote,
			types.KindUpdateNote,
			types.KindDeleteNote,
		})

		steps := rapid.IntRange(1, 12).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			kind := kindGen.Draw(rt, fmt.Sprintf("kind%d", i))
			payload := fmt.Sprintf(`{"rev":%d}`, i)

			clock.Advance(time.Second)
			err := q.Enqueue(types.Operation{
				Kind:     kind,
				EntityID: "n1",
				Payload:  []byte(payload),
			})
			require.NoError(rt, err)
			model = applyModel(model, kind, payload)

			got, err := store.ListByEntity(types.FamilyNote, "n1")
			require.NoError(rt, err)
			require.Len(rt, got, len(model), "surviving row count diverged at step %d", i)
			for j, want := range model {
				require.Equal(rt, want.kind, got[j].Kind, "row %d kind at step %d", j, i)
				if want.kind != types.KindDeleteNote {
					require.Equal(rt, want.payload, string(got[j].Payload),
						"row %d payload at step %d", j, i)
				}
			}
		}
	})
}
