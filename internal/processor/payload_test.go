package processor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolvePayloadRefs(t *testing.T) {
	resolve := func(id string) string {
		if id == "tmp-1" {
			return "srv-1"
		}
		return id
	}

	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"empty payload", "", ""},
		{"non-json passes through", "raw asset bytes", "raw asset bytes"},
		{"no references", `{"title":"x"}`, `{"title":"x"}`},
		{"parent resolved", `{"title":"x","parent_id":"tmp-1"}`, `{"title":"x","parent_id":"srv-1"}`},
		{"folder resolved", `{"folder_id":"tmp-1"}`, `{"folder_id":"srv-1"}`},
		{"note resolved", `{"note_id":"tmp-1"}`, `{"note_id":"srv-1"}`},
		{"unknown id untouched", `{"parent_id":"real-9"}`, `{"parent_id":"real-9"}`},
		{"non-string value untouched", `{"parent_id":7}`, `{"parent_id":7}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := resolvePayloadRefs([]byte(tc.payload), resolve)
			require.NoError(t, err)
			if tc.want == "" {
				assert.Empty(t, got)
				return
			}
			if tc.payload == tc.want {
				assert.Equal(t, tc.want, string(got))
				return
			}
			assert.JSONEq(t, tc.want, string(got))
		})
	}
}
