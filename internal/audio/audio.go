// Package audio wraps the song file extracted from a beatmap archive.
package audio

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/faiface/beep"
	"github.com/faiface/beep/vorbis"
	"github.com/gabriel-vasile/mimetype"
)

// FallbackContentType is used when sniffing cannot classify an .egg/.ogg file.
const FallbackContentType = "audio/ogg"

// ErrNoData is returned when decoding an empty handle.
var ErrNoData = errors.New("audio: no data")

// Ref is an in-memory audio handle. It is immutable after New.
type Ref struct {
	name        string
	contentType string
	data        []byte
}

// Tags is the subset of embedded metadata surfaced to callers.
type Tags struct {
	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`
	Format string `json:"format,omitempty"`
}

// New creates a handle for data extracted from the archive path name.
func New(name string, data []byte) *Ref {
	return &Ref{name: name, contentType: sniff(name, data), data: data}
}

func sniff(name string, data []byte) string {
	detected := mimetype.Detect(data)
	if detected != nil && strings.HasPrefix(detected.String(), "audio/") {
		return detected.String()
	}
	switch strings.ToLower(path.Ext(strings.ReplaceAll(name, `\`, "/"))) {
	case ".egg", ".ogg":
		return FallbackContentType
	}
	if detected != nil {
		return detected.String()
	}
	return "application/octet-stream"
}

// Name returns the archive path the audio was extracted from.
func (r *Ref) Name() string { return r.name }

// ContentType returns the sniffed MIME type.
func (r *Ref) ContentType() string { return r.contentType }

// Size returns the payload length in bytes.
func (r *Ref) Size() int64 { return int64(len(r.data)) }

// Bytes returns the payload. Callers must not modify it.
func (r *Ref) Bytes() []byte { return r.data }

// Open returns a fresh seekable reader over the payload.
func (r *Ref) Open() io.ReadSeeker {
	return bytes.NewReader(r.data)
}

// Tags reads embedded metadata. ok is false when the file carries none that
// the tag reader understands.
func (r *Ref) Tags() (Tags, bool) {
	meta, err := tag.ReadFrom(r.Open())
	if err != nil || meta == nil {
		return Tags{}, false
	}
	return Tags{
		Title:  meta.Title(),
		Artist: meta.Artist(),
		Album:  meta.Album(),
		Format: string(meta.Format()),
	}, true
}

// Decode opens a Vorbis stream for playback. The caller closes the streamer.
func (r *Ref) Decode() (beep.StreamSeekCloser, beep.Format, error) {
	if len(r.data) == 0 {
		return nil, beep.Format{}, ErrNoData
	}
	stream, format, err := vorbis.Decode(byteSeeker{bytes.NewReader(r.data)})
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("decode vorbis: %w", err)
	}
	return stream, format, nil
}

// Duration returns the decoded playback length.
func (r *Ref) Duration() (time.Duration, error) {
	stream, format, err := r.Decode()
	if err != nil {
		return 0, err
	}
	defer stream.Close()
	return format.SampleRate.D(stream.Len()), nil
}

// MarshalJSON describes the handle without embedding the payload.
func (r *Ref) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Name        string `json:"name"`
		ContentType string `json:"contentType"`
		Size        int64  `json:"size"`
	}{r.name, r.contentType, r.Size()})
}

// UnmarshalJSON restores the name and content type of a described handle.
// The payload is not part of the encoding and stays empty.
func (r *Ref) UnmarshalJSON(data []byte) error {
	var desc struct {
		Name        string `json:"name"`
		ContentType string `json:"contentType"`
	}
	if err := json.Unmarshal(data, &desc); err != nil {
		return err
	}
	r.name, r.contentType, r.data = desc.Name, desc.ContentType, nil
	return nil
}

type byteSeeker struct {
	*bytes.Reader
}

func (byteSeeker) Close() error { return nil }
