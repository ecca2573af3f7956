package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"github.com/unsupervisednn/moonrider/internal/config"
)

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(t.TempDir())

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantLogDir := filepath.Join(tempHome, ".local", "share", "moonrider", "logs")
	if cfg.Paths.LogDir != wantLogDir {
		t.Fatalf("unexpected log dir: got %q want %q", cfg.Paths.LogDir, wantLogDir)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7488" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Fetch.UserAgent != "Moonrider/dev" {
		t.Fatalf("unexpected user agent: %q", cfg.Fetch.UserAgent)
	}
	if got := cfg.MaxArchiveBytes(); got != 64<<20 {
		t.Fatalf("unexpected max archive bytes: %d", got)
	}
	if got := cfg.ChunkBytes(); got != 32<<10 {
		t.Fatalf("unexpected chunk bytes: %d", got)
	}
	if len(cfg.Audio.Extensions) != 2 || cfg.Audio.Extensions[0] != ".egg" || cfg.Audio.Extensions[1] != ".ogg" {
		t.Fatalf("unexpected audio extensions: %v", cfg.Audio.Extensions)
	}
	if cfg.BeatSaver.CDNURL != "https://cdn.beatsaver.com/" {
		t.Fatalf("unexpected cdn url: %q", cfg.BeatSaver.CDNURL)
	}
	if cfg.Logging.Format != "auto" || cfg.Logging.Level != "info" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestLoadCustomConfigNormalizesValues(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
[paths]
log_dir = "~/moonrider-logs"

[audio]
extensions = ["OGG", " .egg ", "ogg", ""]

[beatsaver]
api_url = "https://example.com/api/"
cdn_url = "https://cdn.example.com"

[logging]
format = " JSON "
level = "DEBUG"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config at %q to exist, got %q exists=%v", path, resolved, exists)
	}
	if cfg.Paths.LogDir != filepath.Join(tempHome, "moonrider-logs") {
		t.Fatalf("unexpected log dir: %q", cfg.Paths.LogDir)
	}
	want := []string{".ogg", ".egg"}
	if strings.Join(cfg.Audio.Extensions, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected audio extensions: %v", cfg.Audio.Extensions)
	}
	if cfg.BeatSaver.APIURL != "https://example.com/api" {
		t.Fatalf("unexpected api url: %q", cfg.BeatSaver.APIURL)
	}
	if cfg.BeatSaver.CDNURL != "https://cdn.example.com/" {
		t.Fatalf("unexpected cdn url: %q", cfg.BeatSaver.CDNURL)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestLoadEnvLogLevelOverride(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("MOONRIDER_LOG_LEVEL", "warn")

	cfg, _, _, err := config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("expected env log level, got %q", cfg.Logging.Level)
	}
}

func TestValidateRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"negative timeout", func(c *config.Config) { c.Fetch.TimeoutSeconds = -1 }, "fetch.timeout_seconds"},
		{"negative entries", func(c *config.Config) { c.Archive.MaxEntries = -5 }, "archive.max_entries"},
		{"bad bind", func(c *config.Config) { c.Paths.APIBind = "localhost" }, "paths.api_bind"},
		{"bad api url", func(c *config.Config) { c.BeatSaver.APIURL = "ftp://example.com" }, "beatsaver.api_url"},
		{"relative ntfy topic", func(c *config.Config) { c.Notifications.NtfyTopic = "moonrider" }, "notifications.ntfy_topic"},
		{"bad format", func(c *config.Config) { c.Logging.Format = "xml" }, "logging.format"},
		{"bad level", func(c *config.Config) { c.Logging.Level = "trace" }, "logging.level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestCreateSampleRoundTrips(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	var decoded config.Config
	if err := toml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("sample config is not valid TOML: %v", err)
	}
	if decoded.Fetch.MaxArchiveMiB != config.Default().Fetch.MaxArchiveMiB {
		t.Fatalf("sample max_archive_mib drifted from defaults: %d", decoded.Fetch.MaxArchiveMiB)
	}

	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("expected sample config to load, exists=%v err=%v", exists, err)
	}
}
