package export

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/unsupervisednn/moonrider/internal/audio"
	"github.com/unsupervisednn/moonrider/internal/fileutil"
	"github.com/unsupervisednn/moonrider/internal/manifest"
	"github.com/unsupervisednn/moonrider/internal/matcher"
	"github.com/unsupervisednn/moonrider/internal/pipeline"
	"github.com/unsupervisednn/moonrider/internal/textutil"
)

// SummaryFileName is written beside the exported files.
const SummaryFileName = "moonrider.json"

var (
	// ErrNoResult is returned when there is nothing to export.
	ErrNoResult = errors.New("no result to export")
	// ErrExists is returned when the target directory exists and Overwrite is unset.
	ErrExists = errors.New("export directory already exists")
)

// Options controls export behavior.
type Options struct {
	Version   string
	Hash      string
	Overwrite bool
}

// Difficulty summarizes one exported beatmap file.
type Difficulty struct {
	Key            string `json:"key"`
	Characteristic string `json:"characteristic"`
	Level          string `json:"level"`
	Source         string `json:"source,omitempty"`
	File           string `json:"file"`
	Notes          int    `json:"notes"`
}

// AudioSummary describes the exported song file.
type AudioSummary struct {
	File        string      `json:"file"`
	ContentType string      `json:"contentType"`
	Size        int64       `json:"size"`
	Duration    string      `json:"duration,omitempty"`
	Tags        *audio.Tags `json:"tags,omitempty"`
}

// Summary is the manifest written as moonrider.json.
type Summary struct {
	Dir          string       `json:"-"`
	Version      string       `json:"version,omitempty"`
	Hash         string       `json:"hash,omitempty"`
	SongName     string       `json:"songName,omitempty"`
	SongAuthor   string       `json:"songAuthor,omitempty"`
	Mapper       string       `json:"mapper,omitempty"`
	BPM          float64      `json:"bpm,omitempty"`
	Audio        AudioSummary `json:"audio"`
	Difficulties []Difficulty `json:"difficulties"`
}

// Difficulties lists the beats of res in declaration order, with any keys
// not found in the manifest appended in sorted order.
func Difficulties(res *pipeline.Result) []Difficulty {
	if res == nil {
		return nil
	}
	seen := make(map[string]bool, len(res.Beats))
	out := make([]Difficulty, 0, len(res.Beats))
	if res.Info != nil {
		for _, set := range res.Info.DifficultySets {
			for _, diff := range set.Difficulties {
				key := matcher.Key(set.Characteristic, diff.Level)
				doc, ok := res.Beats[key]
				if !ok || seen[key] {
					continue
				}
				seen[key] = true
				out = append(out, Difficulty{
					Key:            key,
					Characteristic: set.Characteristic,
					Level:          diff.Level,
					Source:         diff.FileName,
					File:           beatFileName(key),
					Notes:          doc.NoteCount(),
				})
			}
		}
	}
	var rest []string
	for key := range res.Beats {
		if !seen[key] {
			rest = append(rest, key)
		}
	}
	slices.Sort(rest)
	for _, key := range rest {
		out = append(out, Difficulty{Key: key, File: beatFileName(key), Notes: res.Beats[key].NoteCount()})
	}
	return out
}

// DirName returns the directory name used for res.
func DirName(info *manifest.Info, version string) string {
	if info != nil {
		if name := textutil.SanitizeFileName(info.SongName); name != "" {
			if version != "" {
				return name + " (" + textutil.SanitizeToken(version) + ")"
			}
			return name
		}
	}
	if version != "" {
		return textutil.SanitizeToken(version)
	}
	return "beatmap"
}

// Write stores the audio, Info.dat, every beat file and a summary under a
// new directory inside root.
func Write(root string, res *pipeline.Result, opts Options) (*Summary, error) {
	if res == nil || res.Audio == nil {
		return nil, ErrNoResult
	}
	dir := filepath.Join(root, DirName(res.Info, opts.Version))
	if _, err := os.Stat(dir); err == nil && !opts.Overwrite {
		return nil, fmt.Errorf("%w: %s", ErrExists, dir)
	} else if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("stat export directory: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export directory: %w", err)
	}

	summary := &Summary{
		Dir:          dir,
		Version:      opts.Version,
		Hash:         opts.Hash,
		Audio:        summarizeAudio(res.Audio),
		Difficulties: Difficulties(res),
	}
	if info := res.Info; info != nil {
		summary.SongName = info.SongName
		summary.SongAuthor = info.SongAuthorName
		summary.Mapper = info.LevelAuthorName
		summary.BPM = info.BeatsPerMinute
	}

	if err := fileutil.WriteFileVerified(filepath.Join(dir, summary.Audio.File), res.Audio.Bytes()); err != nil {
		return nil, fmt.Errorf("write audio: %w", err)
	}
	if res.Info != nil {
		raw, err := json.Marshal(res.Info)
		if err != nil {
			return nil, fmt.Errorf("encode manifest: %w", err)
		}
		if err := fileutil.WriteFile(filepath.Join(dir, matcher.InfoFileName), raw); err != nil {
			return nil, fmt.Errorf("write manifest: %w", err)
		}
	}
	for _, diff := range summary.Difficulties {
		doc := res.Beats[diff.Key]
		if err := fileutil.WriteFile(filepath.Join(dir, diff.File), doc); err != nil {
			return nil, fmt.Errorf("write %s: %w", diff.Key, err)
		}
	}

	encoded, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode summary: %w", err)
	}
	if err := fileutil.WriteFile(filepath.Join(dir, SummaryFileName), append(encoded, '\n')); err != nil {
		return nil, fmt.Errorf("write summary: %w", err)
	}
	return summary, nil
}

func summarizeAudio(ref *audio.Ref) AudioSummary {
	name := textutil.SanitizeFileName(filepath.Base(ref.Name()))
	if name == "" {
		name = "song.egg"
	}
	out := AudioSummary{
		File:        name,
		ContentType: ref.ContentType(),
		Size:        ref.Size(),
	}
	if d, err := ref.Duration(); err == nil && d > 0 {
		out.Duration = d.Round(time.Millisecond).String()
	}
	if tags, ok := ref.Tags(); ok {
		out.Tags = &tags
	}
	return out
}

func beatFileName(key string) string {
	name := textutil.SanitizeFileName(key)
	if name == "" {
		name = textutil.SanitizeToken(key)
	}
	return name + ".dat"
}
