// Package archive expands downloaded zip archives into in-memory entries.
package archive

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zip"
)

var (
	// ErrEmpty is returned for a zero-length buffer.
	ErrEmpty = errors.New("empty archive")
	// ErrTooManyEntries is returned when the archive declares more files than allowed.
	ErrTooManyEntries = errors.New("too many entries")
	// ErrEntryTooLarge is returned when a single entry inflates past its limit.
	ErrEntryTooLarge = errors.New("entry exceeds size limit")
)

// Entry is one file extracted from an archive. Path is kept verbatim and may
// use either separator.
type Entry struct {
	Path string
	Data []byte
}

// Limits bounds decompression work. Zero values disable a limit.
type Limits struct {
	MaxEntries    int
	MaxEntryBytes int64
}

// FormatError reports an archive that cannot be decoded. Path names the
// offending entry when the failure is entry specific.
type FormatError struct {
	Path string
	Err  error
}

func (e *FormatError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("archive format: %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("archive format: %v", e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// Decompress reads every file entry of buf in archive order. Directory
// entries are skipped. Any failure is reported as *FormatError and no partial
// result is returned.
func Decompress(buf []byte, limits Limits) ([]Entry, error) {
	if len(buf) == 0 {
		return nil, &FormatError{Err: ErrEmpty}
	}

	reader, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, &FormatError{Err: err}
	}
	if limits.MaxEntries > 0 && len(reader.File) > limits.MaxEntries {
		return nil, &FormatError{Err: fmt.Errorf("%w: %d > %d", ErrTooManyEntries, len(reader.File), limits.MaxEntries)}
	}

	entries := make([]Entry, 0, len(reader.File))
	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		data, err := readEntry(file, limits.MaxEntryBytes)
		if err != nil {
			return nil, &FormatError{Path: file.Name, Err: err}
		}
		entries = append(entries, Entry{Path: file.Name, Data: data})
	}
	return entries, nil
}

func readEntry(file *zip.File, maxBytes int64) ([]byte, error) {
	if maxBytes > 0 && file.UncompressedSize64 > uint64(maxBytes) {
		return nil, ErrEntryTooLarge
	}
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var src io.Reader = rc
	if maxBytes > 0 {
		src = io.LimitReader(rc, maxBytes+1)
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, ErrEntryTooLarge
	}
	return data, nil
}
