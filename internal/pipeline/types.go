package pipeline

import (
	"errors"
	"fmt"
	"strings"

	"github.com/unsupervisednn/moonrider/internal/audio"
	"github.com/unsupervisednn/moonrider/internal/manifest"
	"github.com/unsupervisednn/moonrider/internal/matcher"
)

var (
	// ErrEmptyArchive is reported when a current fetch yields no bytes.
	ErrEmptyArchive = errors.New("archive download was empty")
	// ErrAudioMissing is reported when no entry has an audio extension.
	ErrAudioMissing = errors.New("archive has no audio file")
	// ErrManifestMissing is reported when Info.dat is absent or unreadable.
	ErrManifestMissing = errors.New("archive manifest missing or unrecoverable")
	// ErrNoDifficulties is reported when no declared difficulty resolves.
	ErrNoDifficulties = errors.New("no playable difficulties")
	// ErrInvalidRequest is returned by Ingest for requests without a source.
	ErrInvalidRequest = errors.New("invalid ingest request")
	// ErrStopped is returned when the pipeline is no longer running.
	ErrStopped = errors.New("pipeline stopped")
	// ErrAlreadyRunning is returned by a second concurrent Run.
	ErrAlreadyRunning = errors.New("pipeline already running")
)

// Request asks the pipeline to ingest one archive.
type Request struct {
	SourceURL      string
	Version        string
	Hash           string
	BeatsPerMinute float64
}

// Validate checks the fields Ingest depends on.
func (r Request) Validate() error {
	if strings.TrimSpace(r.SourceURL) == "" {
		return errors.Join(ErrInvalidRequest, errors.New("source url is required"))
	}
	return nil
}

// Command is the wire form of Ingest and Abort.
type Command struct {
	SourceURL      string  `json:"sourceURL,omitempty"`
	Version        string  `json:"version,omitempty"`
	Hash           string  `json:"hash,omitempty"`
	BeatsPerMinute float64 `json:"bpm,omitempty"`
	Abort          bool    `json:"abort,omitempty"`
}

// Request converts the command into an ingest request.
func (c Command) Request() Request {
	return Request{
		SourceURL:      strings.TrimSpace(c.SourceURL),
		Version:        c.Version,
		Hash:           c.Hash,
		BeatsPerMinute: c.BeatsPerMinute,
	}
}

// Kind classifies outbound messages.
type Kind string

const (
	KindProgress Kind = "progress"
	KindResult   Kind = "result"
	KindError    Kind = "error"
)

// Message is one outbound notification. Fraction is set for progress, Data
// for results and Err for errors.
type Message struct {
	Kind       Kind    `json:"kind"`
	Generation uint64  `json:"generation"`
	Version    string  `json:"version,omitempty"`
	Hash       string  `json:"hash,omitempty"`
	Fraction   float64 `json:"fraction,omitempty"`
	Data       *Result `json:"data,omitempty"`
	Err        error   `json:"-"`
	Reason     string  `json:"error,omitempty"`
}

// Result is the successful output of one generation.
type Result struct {
	Audio *audio.Ref                      `json:"audio"`
	Info  *manifest.Info                  `json:"info"`
	Beats map[string]matcher.NoteDocument `json:"beats"`
}

// State is the lifecycle position of a generation.
type State int

const (
	StateIdle State = iota
	StateFetching
	StateDecompressing
	StateMatching
	StateCompleted
	StateFailed
	StateSuperseded
)

var stateNames = map[State]string{
	StateIdle:          "idle",
	StateFetching:      "fetching",
	StateDecompressing: "decompressing",
	StateMatching:      "matching",
	StateCompleted:     "completed",
	StateFailed:        "failed",
	StateSuperseded:    "superseded",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalText renders the state name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(text []byte) error {
	for state, name := range stateNames {
		if name == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown state %q", text)
}

