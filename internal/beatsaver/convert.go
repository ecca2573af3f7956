package beatsaver

import (
	"errors"

	"github.com/unsupervisednn/moonrider/internal/pipeline"
)

// ErrNoVersions is returned for maps that have never been published.
var ErrNoVersions = errors.New("map has no versions")

// Challenge is a map flattened for playback: the first version's archive,
// cover and difficulties indexed by characteristic then difficulty.
type Challenge struct {
	ID              string                     `json:"id"`
	Name            string                     `json:"name"`
	Version         string                     `json:"version"`
	DirectDownload  string                     `json:"directDownload"`
	CoverURL        string                     `json:"coverURL"`
	BPM             float64                    `json:"bpm"`
	SongName        string                     `json:"songName"`
	SongSubName     string                     `json:"songSubName,omitempty"`
	Author          string                     `json:"author"`
	Mapper          string                     `json:"mapper"`
	Characteristics map[string]map[string]Diff `json:"characteristics"`
}

// Convert flattens m using its first version. Cover URLs are normalized onto
// cdnHost.
func Convert(m *Map, cdnHost string) (*Challenge, error) {
	if m == nil || len(m.Versions) == 0 {
		return nil, ErrNoVersions
	}
	latest := m.Versions[0]

	c := &Challenge{
		ID:              m.ID,
		Name:            m.Name,
		Version:         latest.Hash,
		DirectDownload:  latest.DownloadURL,
		CoverURL:        NormalizeCoverURL(cdnHost, latest.CoverURL, latest.Hash),
		BPM:             m.Metadata.BPM,
		SongName:        m.Metadata.SongName,
		SongSubName:     m.Metadata.SongSubName,
		Author:          m.Metadata.SongAuthorName,
		Mapper:          m.Metadata.LevelAuthorName,
		Characteristics: make(map[string]map[string]Diff),
	}
	for _, diff := range latest.Diffs {
		byDifficulty, ok := c.Characteristics[diff.Characteristic]
		if !ok {
			byDifficulty = make(map[string]Diff)
			c.Characteristics[diff.Characteristic] = byDifficulty
		}
		byDifficulty[diff.Difficulty] = diff
	}
	return c, nil
}

// Request builds the ingest request for the challenge archive.
func (c *Challenge) Request() pipeline.Request {
	return pipeline.Request{
		SourceURL:      c.DirectDownload,
		Version:        c.Version,
		Hash:           c.Version,
		BeatsPerMinute: c.BPM,
	}
}
