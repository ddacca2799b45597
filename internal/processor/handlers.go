package processor

import (
	"context"
	"encoding/json"

	"github.com/mesh-intelligence/satchel/pkg/types"
)

// Handler executes one family's operations against the remote client. The
// processor picks a handler by the operation's entity family after id
// resolution.
type Handler interface {
	Execute(ctx context.Context, op types.Operation, client types.RemoteClient) (types.RemoteResult, error)
}

// defaultHandlers returns the production dispatch table.
func defaultHandlers() map[string]Handler {
	return map[string]Handler{
		types.FamilyNote:   noteHandler{},
		types.FamilyFolder: folderHandler{},
	}
}

// noteHandler handles note creates, updates, deletes, and asset uploads.
type noteHandler struct{}

func (noteHandler) Execute(ctx context.Context, op types.Operation, client types.RemoteClient) (types.RemoteResult, error) {
	switch op.Kind {
	case types.KindCreateNote, types.KindUpdateNote:
		if !isJSONObject(op.Payload) {
			return types.RemoteResult{}, &types.APIError{
				Class:   types.ClassValidationError,
				Message: op.Kind + " payload must be a JSON object",
			}
		}
	case types.KindUploadAsset:
		if len(op.Payload) == 0 {
			return types.RemoteResult{}, &types.APIError{
				Class:   types.ClassValidationError,
				Message: "asset upload requires a payload",
			}
		}
	}
	return client.Execute(ctx, op)
}

// folderHandler handles folder creates, renames, and deletes.
type folderHandler struct{}

func (folderHandler) Execute(ctx context.Context, op types.Operation, client types.RemoteClient) (types.RemoteResult, error) {
	switch op.Kind {
	case types.KindCreateFolder, types.KindRenameFolder:
		var body struct {
			Title string `json:"title"`
		}
		if err := json.Unmarshal(op.Payload, &body); err != nil || body.Title == "" {
			return types.RemoteResult{}, &types.APIError{
				Class:   types.ClassValidationError,
				Message: op.Kind + " payload must carry a title",
			}
		}
	}
	return client.Execute(ctx, op)
}

// isJSONObject reports whether the payload parses as a JSON object.
func isJSONObject(payload []byte) bool {
	var doc map[string]json.RawMessage
	return json.Unmarshal(payload, &doc) == nil
}
