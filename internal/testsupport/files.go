package testsupport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/klauspost/compress/zip"
	"golang.org/x/text/encoding/unicode"
)

// File is one archive member. Store writes it uncompressed.
type File struct {
	Name  string
	Data  []byte
	Store bool
}

// BuildArchive writes files into an in-memory zip in the given order.
func BuildArchive(t testing.TB, files ...File) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		method := zip.Deflate
		if f.Store {
			method = zip.Store
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: method})
		if err != nil {
			t.Fatalf("create zip entry %s: %v", f.Name, err)
		}
		if _, err := w.Write(f.Data); err != nil {
			t.Fatalf("write zip entry %s: %v", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// Difficulty declares one beatmap inside a Set.
type Difficulty struct {
	Level string
	File  string
}

// Set declares one characteristic and its difficulties.
type Set struct {
	Characteristic string
	Difficulties   []Difficulty
}

// InfoJSON renders an Info.dat document declaring sets.
func InfoJSON(t testing.TB, songName string, sets ...Set) []byte {
	t.Helper()

	type beatmap struct {
		Difficulty string `json:"_difficulty"`
		Rank       int    `json:"_difficultyRank"`
		File       string `json:"_beatmapFilename"`
	}
	type beatmapSet struct {
		Characteristic string    `json:"_beatmapCharacteristicName"`
		Beatmaps       []beatmap `json:"_difficultyBeatmaps"`
	}
	doc := struct {
		Version  string       `json:"_version"`
		SongName string       `json:"_songName"`
		Author   string       `json:"_songAuthorName"`
		BPM      float64      `json:"_beatsPerMinute"`
		Song     string       `json:"_songFilename"`
		Sets     []beatmapSet `json:"_difficultyBeatmapSets"`
	}{Version: "2.0.0", SongName: songName, Author: "Test Artist", BPM: 128, Song: "song.egg"}

	for _, s := range sets {
		bs := beatmapSet{Characteristic: s.Characteristic}
		for i, d := range s.Difficulties {
			bs.Beatmaps = append(bs.Beatmaps, beatmap{Difficulty: d.Level, Rank: 2*i + 1, File: d.File})
		}
		doc.Sets = append(doc.Sets, bs)
	}

	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal info: %v", err)
	}
	return data
}

// NotesJSON renders a minimal beatmap data document with n notes.
func NotesJSON(n int) []byte {
	notes := make([]string, 0, n)
	for i := range n {
		notes = append(notes, fmt.Sprintf(`{"_time":%d,"_lineIndex":%d,"_lineLayer":0,"_type":0,"_cutDirection":1}`, i, i%4))
	}
	return []byte(`{"_version":"2.0.0","_notes":[` + strings.Join(notes, ",") + `],"_obstacles":[]}`)
}

// EncodeUTF16LE encodes s as UTF-16 little endian without a byte order mark.
func EncodeUTF16LE(t testing.TB, s string) []byte {
	t.Helper()

	out, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewEncoder().Bytes([]byte(s))
	if err != nil {
		t.Fatalf("encode utf-16le: %v", err)
	}
	return out
}
