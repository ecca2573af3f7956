package fileutil

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteFile writes data to dst with default permissions (0o644).
func WriteFile(dst string, data []byte) error {
	return WriteFileMode(dst, data, 0o644)
}

// WriteFileMode writes data to a temp file beside dst and renames it into
// place, so readers never observe a partial file.
func WriteFileMode(dst string, data []byte, mode os.FileMode) error {
	tmp, err := os.CreateTemp(filepath.Dir(dst), "."+filepath.Base(dst)+".*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()

	if _, err := io.Copy(tmp, bytes.NewReader(data)); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, mode); err != nil {
		return err
	}
	return os.Rename(tmpPath, dst)
}

// WriteFileVerified writes data to dst and re-reads it to confirm size and
// SHA256. Removes dst on mismatch.
func WriteFileVerified(dst string, data []byte) error {
	if err := WriteFile(dst, data); err != nil {
		return err
	}

	in, err := os.Open(dst)
	if err != nil {
		return err
	}
	defer in.Close()

	hasher := sha256.New()
	written, err := io.Copy(hasher, in)
	if err != nil {
		return err
	}

	if written != int64(len(data)) {
		_ = os.Remove(dst)
		return fmt.Errorf("write size mismatch: expected %d bytes, found %d bytes", len(data), written)
	}

	want := sha256.Sum256(data)
	if !bytes.Equal(hasher.Sum(nil), want[:]) {
		_ = os.Remove(dst)
		return fmt.Errorf("write hash mismatch: file corrupted during write")
	}

	return nil
}
