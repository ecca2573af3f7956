package logging_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/unsupervisednn/moonrider/internal/config"
	"github.com/unsupervisednn/moonrider/internal/logging"
	"github.com/unsupervisednn/moonrider/internal/services"
)

func logFile(t *testing.T) (string, func() string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "out.log")
	read := func() string {
		t.Helper()
		content, err := os.ReadFile(logPath)
		if err != nil {
			t.Fatalf("read log file: %v", err)
		}
		return string(content)
	}
	return logPath, read
}

func TestConsoleLoggerOmitsCallerForInfo(t *testing.T) {
	logPath, read := logFile(t)
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller", logging.String("file", "Expert.dat"))

	content := read()
	if strings.Contains(content, ".go:") {
		t.Fatalf("expected no caller information in info logs, got %q", content)
	}
	if !strings.Contains(content, "INFO") || !strings.Contains(content, "file: Expert.dat") {
		t.Fatalf("unexpected console output %q", content)
	}
}

func TestConsoleLoggerIncludesCallerForDebug(t *testing.T) {
	logPath, read := logFile(t)
	logger, err := logging.New(logging.Options{Format: "console", Level: "debug", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Debug("message with caller")

	if content := read(); !strings.Contains(content, "logger_test.go:") {
		t.Fatalf("expected caller information in debug logs, got %q", content)
	}
}

func TestConsoleLoggerFormatsSubject(t *testing.T) {
	logPath, read := logFile(t)
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithStage(services.WithGeneration(context.Background(), 7), "fetching")
	logging.WithContext(ctx, logging.NewComponentLogger(logger, "pipeline")).Info("archive downloaded")

	content := read()
	if !strings.Contains(content, "[pipeline] gen 7/fetching – archive downloaded") {
		t.Fatalf("unexpected header in %q", content)
	}
}

func TestNewJSONLogger(t *testing.T) {
	logPath, read := logFile(t)
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("json message", logging.Int("entries", 3))

	var payload map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(read())), &payload); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if payload["msg"] != "json message" || payload["level"] != "info" {
		t.Fatalf("unexpected payload %v", payload)
	}
	if _, ok := payload["ts"]; !ok {
		t.Fatalf("expected ts key in %v", payload)
	}
	if payload["entries"] != float64(3) {
		t.Fatalf("expected entries attr, got %v", payload["entries"])
	}
}

func TestAutoFormatUsesJSONForFiles(t *testing.T) {
	logPath, read := logFile(t)
	logger, err := logging.New(logging.Options{Format: "auto", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Info("auto message")
	if !json.Valid([]byte(strings.TrimSpace(read()))) {
		t.Fatal("expected auto format to produce JSON for a file destination")
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml", OutputPaths: []string{filepath.Join(t.TempDir(), "x.log")}}); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestNewInvalidLevelDefaultsToInfo(t *testing.T) {
	logPath, read := logFile(t)
	logger, err := logging.New(logging.Options{Format: "json", Level: "loud", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("visible")
	content := read()
	if strings.Contains(content, "hidden") || !strings.Contains(content, "visible") {
		t.Fatalf("expected info threshold, got %q", content)
	}
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "logs")
	cfg.Logging.Format = "json"

	logger, err := logging.NewFromConfig(&cfg, true)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Info("daemon started")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, logging.LogFileName))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "daemon started") {
		t.Fatalf("expected message in log file, got %q", content)
	}
}

func TestWithContextAddsFields(t *testing.T) {
	logPath, read := logFile(t)
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	ctx := services.WithGeneration(context.Background(), 3)
	ctx = services.WithVersion(ctx, "abc123")
	ctx = services.WithRequestID(ctx, "req-1")
	logging.WithContext(ctx, logger).Info("tagged")

	var payload map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(read())), &payload); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if payload[logging.FieldGeneration] != float64(3) {
		t.Fatalf("expected generation field, got %v", payload)
	}
	if payload[logging.FieldVersion] != "abc123" || payload[logging.FieldCorrelationID] != "req-1" {
		t.Fatalf("expected version and correlation id, got %v", payload)
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	logPath, read := logFile(t)
	logger, err := logging.New(logging.Options{Format: "json", OutputPaths: []string{logPath}})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logging.WarnWithContext(logger, "difficulty omitted", "difficulty_omitted", logging.String(logging.FieldImpact, "difficulty unavailable"))

	var payload map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(read())), &payload); err != nil {
		t.Fatalf("decode json log: %v", err)
	}
	if payload[logging.FieldEventType] != "difficulty_omitted" {
		t.Fatalf("expected event type, got %v", payload)
	}
	if payload[logging.FieldImpact] != "difficulty unavailable" {
		t.Fatalf("expected caller impact to win, got %v", payload[logging.FieldImpact])
	}
	if payload[logging.FieldErrorHint] == nil {
		t.Fatalf("expected default error hint, got %v", payload)
	}
}
