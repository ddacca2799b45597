package processor

import "encoding/json"

// payloadRefKeys are the top-level payload fields that may reference another
// entity by id. A create for a referenced entity can complete while this
// operation is still queued, so these are resolved at dispatch time rather
// than rewritten in place.
var payloadRefKeys = []string{"parent_id", "folder_id", "note_id"}

// resolvePayloadRefs returns the payload with any known temporary ids in the
// reference fields replaced by real ids. Non-object payloads (asset bytes,
// empty delete bodies) pass through untouched.
func resolvePayloadRefs(payload []byte, resolve func(string) string) ([]byte, error) {
	if len(payload) == 0 {
		return payload, nil
	}
	var doc map[string]any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return payload, nil
	}

	changed := false
	for _, key := range payloadRefKeys {
		id, ok := doc[key].(string)
		if !ok || id == "" {
			continue
		}
		if real := resolve(id); real != id {
			doc[key] = real
			changed = true
		}
	}
	if !changed {
		return payload, nil
	}
	return json.Marshal(doc)
}
