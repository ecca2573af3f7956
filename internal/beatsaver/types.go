package beatsaver

import (
	"encoding/json"
	"fmt"
)

// Map is the subset of a BeatSaver map document used for ingestion.
type Map struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Uploader    Uploader  `json:"uploader"`
	Metadata    Metadata  `json:"metadata"`
	Stats       Stats     `json:"stats"`
	Versions    []Version `json:"versions"`
}

// Uploader identifies the account that published the map.
type Uploader struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Metadata describes the song.
type Metadata struct {
	BPM             float64 `json:"bpm"`
	Duration        int     `json:"duration"`
	SongName        string  `json:"songName"`
	SongSubName     string  `json:"songSubName"`
	SongAuthorName  string  `json:"songAuthorName"`
	LevelAuthorName string  `json:"levelAuthorName"`
}

// Stats carries community ratings.
type Stats struct {
	Downloads int     `json:"downloads"`
	Upvotes   int     `json:"upvotes"`
	Downvotes int     `json:"downvotes"`
	Score     float64 `json:"score"`
}

// Version is one published revision of a map.
type Version struct {
	Hash        string `json:"hash"`
	State       string `json:"state"`
	DownloadURL string `json:"downloadURL"`
	CoverURL    string `json:"coverURL"`
	PreviewURL  string `json:"previewURL"`
	Diffs       []Diff `json:"diffs"`
}

// Diff summarizes one difficulty of a version.
type Diff struct {
	Characteristic string  `json:"characteristic"`
	Difficulty     string  `json:"difficulty"`
	NJS            float64 `json:"njs"`
	Offset         float64 `json:"offset"`
	Notes          int     `json:"notes"`
	Bombs          int     `json:"bombs"`
	Obstacles      int     `json:"obstacles"`
	NPS            float64 `json:"nps"`
	Seconds        float64 `json:"seconds"`
	Stars          float64 `json:"stars,omitempty"`
}

// DecodeMap parses a map document, unwrapping a {"map": {...}} envelope when
// present.
func DecodeMap(data []byte) (*Map, error) {
	var envelope struct {
		Map json.RawMessage `json:"map"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("decode map: %w", err)
	}
	if len(envelope.Map) > 0 && string(envelope.Map) != "null" {
		data = envelope.Map
	}
	var m Map
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode map: %w", err)
	}
	return &m, nil
}
