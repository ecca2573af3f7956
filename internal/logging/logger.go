package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/unsupervisednn/moonrider/internal/config"
)

// LogFileName is the file written inside the configured log directory.
const LogFileName = "moonrider.log"

// Options describes logger construction parameters.
type Options struct {
	Level       string
	Format      string
	OutputPaths []string
	Development bool
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	level := parseLevel(opts.Level)
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)

	paths := opts.OutputPaths
	if len(paths) == 0 {
		paths = []string{"stderr"}
	}
	addSource := opts.Development || level <= slog.LevelDebug

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	switch format {
	case "", "auto":
		return newAutoLogger(paths, levelVar, addSource)
	case "json", "console":
	default:
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	outputWriter, err := openWriters(paths)
	if err != nil {
		return nil, err
	}
	if format == "json" {
		return slog.New(newJSONHandler(outputWriter, levelVar, addSource)), nil
	}
	return slog.New(newPrettyHandler(outputWriter, levelVar, addSource)), nil
}

// newAutoLogger writes console output to terminal destinations and JSON to
// every other destination.
func newAutoLogger(paths []string, levelVar *slog.LevelVar, addSource bool) (*slog.Logger, error) {
	var terminals, others []string
	for _, path := range paths {
		if isTerminal(strings.TrimSpace(path)) {
			terminals = append(terminals, path)
		} else {
			others = append(others, path)
		}
	}

	var handlers []slog.Handler
	if len(terminals) > 0 {
		w, err := openWriters(terminals)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, newPrettyHandler(w, levelVar, addSource))
	}
	if len(others) > 0 {
		w, err := openWriters(others)
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, newJSONHandler(w, levelVar, addSource))
	}
	return slog.New(newFanoutHandler(handlers...)), nil
}

// NewFromConfig creates a logger using application config defaults. The log
// file inside cfg.Paths.LogDir is only attached when withFile is set.
func NewFromConfig(cfg *config.Config, withFile bool) (*slog.Logger, error) {
	if cfg == nil {
		return New(Options{Level: "info", Format: "auto"})
	}

	outputPaths := []string{"stderr"}
	if withFile && cfg.Paths.LogDir != "" {
		if err := os.MkdirAll(cfg.Paths.LogDir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure log directory: %w", err)
		}
		outputPaths = append(outputPaths, filepath.Join(cfg.Paths.LogDir, LogFileName))
	}

	return New(Options{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		OutputPaths: outputPaths,
	})
}

func isTerminal(path string) bool {
	var fd uintptr
	switch path {
	case "stdout":
		fd = os.Stdout.Fd()
	case "stderr":
		fd = os.Stderr.Fd()
	default:
		return false
	}
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openWriters(paths []string) (io.Writer, error) {
	seen := map[string]struct{}{}
	var writers []io.Writer

	for _, path := range paths {
		trimmed := strings.TrimSpace(path)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}

		switch trimmed {
		case "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			if dir := filepath.Dir(trimmed); dir != "." && dir != "" {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("ensure log directory: %w", err)
				}
			}
			file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
			if err != nil {
				return nil, fmt.Errorf("open log file %s: %w", trimmed, err)
			}
			writers = append(writers, file)
		}
	}

	switch len(writers) {
	case 0:
		return os.Stderr, nil
	case 1:
		return writers[0], nil
	default:
		return io.MultiWriter(writers...), nil
	}
}
