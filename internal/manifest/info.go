package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnrecoverable is returned when no strategy yields valid JSON.
var ErrUnrecoverable = errors.New("manifest unrecoverable")

// Info is the decoded Info.dat manifest. Raw holds the full recovered JSON and
// is what MarshalJSON emits.
type Info struct {
	Version            string          `json:"_version"`
	SongName           string          `json:"_songName"`
	SongSubName        string          `json:"_songSubName"`
	SongAuthorName     string          `json:"_songAuthorName"`
	LevelAuthorName    string          `json:"_levelAuthorName"`
	BeatsPerMinute     float64         `json:"_beatsPerMinute"`
	SongFilename       string          `json:"_songFilename"`
	CoverImageFilename string          `json:"_coverImageFilename"`
	DifficultySets     []DifficultySet `json:"_difficultyBeatmapSets"`

	Raw json.RawMessage `json:"-"`
}

// DifficultySet groups the difficulties declared for one characteristic.
type DifficultySet struct {
	Characteristic string       `json:"_beatmapCharacteristicName"`
	Difficulties   []Difficulty `json:"_difficultyBeatmaps"`
}

// Difficulty declares one playable beatmap file.
type Difficulty struct {
	Level         string  `json:"_difficulty"`
	Rank          int     `json:"_difficultyRank"`
	FileName      string  `json:"_beatmapFilename"`
	NoteJumpSpeed float64 `json:"_noteJumpMovementSpeed"`
}

// Parse recovers raw and decodes it into Info. Fields with unexpected types
// are left zero rather than failing the whole manifest.
func Parse(raw []byte) (*Info, error) {
	doc, ok := Recover(raw)
	if !ok {
		return nil, ErrUnrecoverable
	}
	info := &Info{}
	if err := json.Unmarshal(doc, info); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return nil, fmt.Errorf("decode manifest: %w", err)
		}
	}
	info.Raw = json.RawMessage(doc)
	return info, nil
}

// DifficultyCount returns the number of declared difficulties across sets.
func (i *Info) DifficultyCount() int {
	if i == nil {
		return 0
	}
	n := 0
	for _, set := range i.DifficultySets {
		n += len(set.Difficulties)
	}
	return n
}

// MarshalJSON passes the recovered document through unchanged.
func (i *Info) MarshalJSON() ([]byte, error) {
	if i == nil {
		return []byte("null"), nil
	}
	if len(i.Raw) > 0 {
		return i.Raw, nil
	}
	type plain Info
	return json.Marshal((*plain)(i))
}
