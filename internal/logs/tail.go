package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const maxLineBytes = 1024 * 1024

// DefaultPollInterval is how often Follow checks the file for new lines.
const DefaultPollInterval = 250 * time.Millisecond

// Last returns up to n complete lines from the end of the file at path and
// the offset just past them. A missing file yields no lines and offset 0.
func Last(path string, n int) ([]string, int64, error) {
	file, err := openLog(path)
	if err != nil || file == nil {
		return nil, 0, err
	}
	defer file.Close()

	if n <= 0 {
		offset, err := scanComplete(file, 0, func(string) {})
		return nil, offset, err
	}

	ring := make([]string, 0, n)
	start := 0
	offset, err := scanComplete(file, 0, func(line string) {
		if len(ring) < n {
			ring = append(ring, line)
			return
		}
		ring[start] = line
		start = (start + 1) % n
	})
	if err != nil {
		return nil, 0, err
	}
	return append(ring[start:len(ring):len(ring)], ring[:start]...), offset, nil
}

// Since returns the complete lines written after offset and the new offset.
// An offset past the end of a truncated file restarts from the beginning.
func Since(path string, offset int64) ([]string, int64, error) {
	file, err := openLog(path)
	if err != nil || file == nil {
		return nil, 0, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, offset, fmt.Errorf("stat log file: %w", err)
	}
	if offset < 0 || offset > info.Size() {
		offset = 0
	}
	var lines []string
	next, err := scanComplete(file, offset, func(line string) { lines = append(lines, line) })
	return lines, next, err
}

// Follow calls onLine for every complete line written after offset until ctx
// ends. interval <= 0 uses DefaultPollInterval.
func Follow(ctx context.Context, path string, offset int64, interval time.Duration, onLine func(string)) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		lines, next, err := Since(path, offset)
		if err != nil {
			return err
		}
		for _, line := range lines {
			onLine(line)
		}
		offset = next

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func openLog(path string) (*os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		file.Close()
		return nil, fmt.Errorf("log path %q is a directory", path)
	}
	return file, nil
}

// scanComplete reads newline-terminated lines from offset. A trailing
// partial line is left for the next read. Lines longer than maxLineBytes are
// truncated.
func scanComplete(file *os.File, offset int64, onLine func(string)) (int64, error) {
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek log file: %w", err)
	}
	reader := bufio.NewReaderSize(file, 64*1024)
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				return offset, nil
			}
			return offset, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(line))
		line = line[:len(line)-1]
		if len(line) > 0 && line[len(line)-1] == '\r' {
			line = line[:len(line)-1]
		}
		if len(line) > maxLineBytes {
			line = line[:maxLineBytes]
		}
		onLine(line)
	}
}
