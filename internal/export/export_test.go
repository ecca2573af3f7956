package export_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/unsupervisednn/moonrider/internal/audio"
	"github.com/unsupervisednn/moonrider/internal/export"
	"github.com/unsupervisednn/moonrider/internal/manifest"
	"github.com/unsupervisednn/moonrider/internal/matcher"
	"github.com/unsupervisednn/moonrider/internal/pipeline"
	"github.com/unsupervisednn/moonrider/internal/testsupport"
)

func sampleResult(t *testing.T) *pipeline.Result {
	t.Helper()
	info, err := manifest.Parse(testsupport.InfoJSON(t, "Café: Night",
		testsupport.Set{Characteristic: "Standard", Difficulties: []testsupport.Difficulty{
			{Level: "Hard", File: "HardStandard.dat"},
			{Level: "Expert", File: "ExpertStandard.dat"},
		}},
	))
	if err != nil {
		t.Fatalf("parse manifest: %v", err)
	}
	return &pipeline.Result{
		Audio: audio.New("song.egg", bytes.Repeat([]byte("OggS"), 64)),
		Info:  info,
		Beats: map[string]matcher.NoteDocument{
			"Standard-Expert": matcher.NoteDocument(testsupport.NotesJSON(4)),
			"Standard-Hard":   matcher.NoteDocument(testsupport.NotesJSON(2)),
			"Lawless-Easy":    matcher.NoteDocument(testsupport.NotesJSON(1)),
		},
	}
}

func TestDifficultiesFollowDeclarationOrder(t *testing.T) {
	diffs := export.Difficulties(sampleResult(t))
	if len(diffs) != 3 {
		t.Fatalf("expected 3 difficulties, got %d", len(diffs))
	}
	wantKeys := []string{"Standard-Hard", "Standard-Expert", "Lawless-Easy"}
	wantNotes := []int{2, 4, 1}
	for i, diff := range diffs {
		if diff.Key != wantKeys[i] || diff.Notes != wantNotes[i] {
			t.Fatalf("difficulty %d: got %+v", i, diff)
		}
	}
	if diffs[0].Source != "HardStandard.dat" || diffs[0].File != "Standard-Hard.dat" {
		t.Fatalf("unexpected file mapping %+v", diffs[0])
	}
}

func TestWriteCreatesBeatmapFolder(t *testing.T) {
	root := t.TempDir()
	res := sampleResult(t)

	summary, err := export.Write(root, res, export.Options{Version: "v1", Hash: "abc"})
	if err != nil {
		t.Fatalf("Write returned error: %v", err)
	}
	wantDir := filepath.Join(root, "Café- Night (v1)")
	if summary.Dir != wantDir {
		t.Fatalf("unexpected dir %q", summary.Dir)
	}

	audioBytes, err := os.ReadFile(filepath.Join(wantDir, "song.egg"))
	if err != nil || !bytes.Equal(audioBytes, res.Audio.Bytes()) {
		t.Fatalf("audio not exported intact: %v", err)
	}
	info, err := os.ReadFile(filepath.Join(wantDir, "Info.dat"))
	if err != nil || !json.Valid(info) {
		t.Fatalf("manifest not exported: %v", err)
	}
	beat, err := os.ReadFile(filepath.Join(wantDir, "Standard-Expert.dat"))
	if err != nil {
		t.Fatalf("read beat: %v", err)
	}
	if matcher.NoteDocument(beat).NoteCount() != 4 {
		t.Fatalf("unexpected beat contents %s", beat)
	}

	raw, err := os.ReadFile(filepath.Join(wantDir, export.SummaryFileName))
	if err != nil {
		t.Fatalf("read summary: %v", err)
	}
	var decoded export.Summary
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode summary: %v", err)
	}
	if decoded.Hash != "abc" || decoded.SongName != "Café: Night" || len(decoded.Difficulties) != 3 {
		t.Fatalf("unexpected summary %+v", decoded)
	}
	if decoded.Audio.ContentType != "audio/ogg" || decoded.Audio.Size != res.Audio.Size() {
		t.Fatalf("unexpected audio summary %+v", decoded.Audio)
	}
}

func TestWriteRefusesExistingDirectory(t *testing.T) {
	root := t.TempDir()
	res := sampleResult(t)
	if _, err := export.Write(root, res, export.Options{}); err != nil {
		t.Fatalf("first Write: %v", err)
	}
	if _, err := export.Write(root, res, export.Options{}); !errors.Is(err, export.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
	if _, err := export.Write(root, res, export.Options{Overwrite: true}); err != nil {
		t.Fatalf("overwrite Write: %v", err)
	}
}

func TestWriteWithoutResult(t *testing.T) {
	if _, err := export.Write(t.TempDir(), nil, export.Options{}); !errors.Is(err, export.ErrNoResult) {
		t.Fatalf("expected ErrNoResult, got %v", err)
	}
}

func TestDirNameFallbacks(t *testing.T) {
	if got := export.DirName(nil, ""); got != "beatmap" {
		t.Fatalf("unexpected fallback %q", got)
	}
	if got := export.DirName(&manifest.Info{}, "Release 2"); got != "release_2" {
		t.Fatalf("unexpected version fallback %q", got)
	}
}
