package matcher

import (
	"github.com/unsupervisednn/moonrider/internal/archive"
	"github.com/unsupervisednn/moonrider/internal/manifest"
)

// Omission reasons.
const (
	ReasonUnresolved    = "unresolved"
	ReasonUnrecoverable = "unrecoverable"
	ReasonTempo         = "tempo-patch"
	ReasonDuplicate     = "duplicate"
)

// Omission records a declared difficulty that was left out of the result.
type Omission struct {
	Key      string
	FileName string
	Reason   string
}

// Matched is one difficulty that resolved and recovered.
type Matched struct {
	Key      string
	Path     string
	Strategy Strategy
	Document NoteDocument
}

// Result holds the matched documents keyed by Key plus what was skipped.
type Result struct {
	Beats     map[string]NoteDocument
	Matches   []Matched
	Omissions []Omission
}

// Key builds the result key for a characteristic and difficulty.
func Key(characteristic, difficulty string) string {
	return characteristic + "-" + difficulty
}

// Match resolves every declared difficulty in info against entries. The
// first declaration of a key wins; later declarations are omitted as
// duplicates only once the key is filled.
func Match(info *manifest.Info, entries []archive.Entry, bpm float64) Result {
	res := Result{Beats: make(map[string]NoteDocument)}
	if info == nil {
		return res
	}
	for _, set := range info.DifficultySets {
		for _, diff := range set.Difficulties {
			key := Key(set.Characteristic, diff.Level)
			if _, exists := res.Beats[key]; exists {
				res.Omissions = append(res.Omissions, Omission{Key: key, FileName: diff.FileName, Reason: ReasonDuplicate})
				continue
			}
			entry, strategy, ok := Resolve(diff.FileName, entries)
			if !ok {
				res.Omissions = append(res.Omissions, Omission{Key: key, FileName: diff.FileName, Reason: ReasonUnresolved})
				continue
			}
			doc, ok := manifest.Recover(entry.Data)
			if !ok {
				res.Omissions = append(res.Omissions, Omission{Key: key, FileName: diff.FileName, Reason: ReasonUnrecoverable})
				continue
			}
			notes, err := AttachTempo(doc, bpm)
			if err != nil {
				res.Omissions = append(res.Omissions, Omission{Key: key, FileName: diff.FileName, Reason: ReasonTempo})
				continue
			}
			res.Beats[key] = notes
			res.Matches = append(res.Matches, Matched{Key: key, Path: entry.Path, Strategy: strategy, Document: notes})
		}
	}
	return res
}
