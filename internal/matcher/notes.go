package matcher

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/tidwall/gjson"
)

// NoteDocument is a recovered beatmap data file. Its content is otherwise
// opaque.
type NoteDocument json.RawMessage

// MarshalJSON emits the document unchanged.
func (d NoteDocument) MarshalJSON() ([]byte, error) {
	if len(d) == 0 {
		return []byte("null"), nil
	}
	return d, nil
}

// UnmarshalJSON stores a copy of data.
func (d *NoteDocument) UnmarshalJSON(data []byte) error {
	*d = append((*d)[:0], data...)
	return nil
}

// NoteCount returns the number of notes in either the v2 (_notes) or v3
// (colorNotes) layout.
func (d NoteDocument) NoteCount() int {
	if res := gjson.GetBytes(d, "_notes.#"); res.Exists() {
		return int(res.Int())
	}
	return int(gjson.GetBytes(d, "colorNotes.#").Int())
}

// Get returns the value at a gjson path.
func (d NoteDocument) Get(path string) gjson.Result {
	return gjson.GetBytes(d, path)
}

// AttachTempo sets _beatsPerMinute on a recovered JSON object.
func AttachTempo(doc []byte, bpm float64) (NoteDocument, error) {
	patch, err := json.Marshal(map[string]float64{"_beatsPerMinute": bpm})
	if err != nil {
		return nil, fmt.Errorf("encode tempo patch: %w", err)
	}
	merged, err := jsonpatch.MergePatch(doc, patch)
	if err != nil {
		return nil, fmt.Errorf("apply tempo patch: %w", err)
	}
	return NoteDocument(merged), nil
}
