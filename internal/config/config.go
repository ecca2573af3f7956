package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	LogDir   string `toml:"log_dir"`
	APIBind  string `toml:"api_bind"`
	APIToken string `toml:"api_token"`
}

// Fetch contains configuration for archive downloads.
type Fetch struct {
	UserAgent      string `toml:"user_agent"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxArchiveMiB  int    `toml:"max_archive_mib"`
	ChunkKiB       int    `toml:"chunk_kib"`
}

// Archive contains limits applied while decompressing downloaded archives.
type Archive struct {
	MaxEntries  int `toml:"max_entries"`
	MaxEntryMiB int `toml:"max_entry_mib"`
}

// Audio contains configuration for audio entry resolution.
type Audio struct {
	Extensions []string `toml:"extensions"`
}

// BeatSaver contains configuration for the map metadata API.
type BeatSaver struct {
	APIURL         string `toml:"api_url"`
	CDNURL         string `toml:"cdn_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Notifications contains ntfy settings for ingest outcome alerts.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for Moonrider.
//
// Configuration sections by subsystem:
//   - Paths: log directory and daemon API bind address
//   - Fetch: archive download client settings and size limits
//   - Archive: decompression limits
//   - Audio: accepted audio entry extensions
//   - BeatSaver: map metadata API and cover CDN
//   - Notifications: ntfy alerts for daemon ingest outcomes
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Fetch         Fetch         `toml:"fetch"`
	Archive       Archive       `toml:"archive"`
	Audio         Audio         `toml:"audio"`
	BeatSaver     BeatSaver     `toml:"beatsaver"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return ExpandPath("~/.config/moonrider/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("moonrider.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return nil
	}
	if err := os.MkdirAll(c.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.LogDir, err)
	}
	return nil
}

// LockPath returns the daemon single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.LogDir, "moonriderd.lock")
}

// MaxArchiveBytes returns the download size ceiling in bytes.
func (c *Config) MaxArchiveBytes() int64 {
	return int64(c.Fetch.MaxArchiveMiB) << 20
}

// MaxEntryBytes returns the per-entry decompressed size ceiling in bytes.
func (c *Config) MaxEntryBytes() int64 {
	return int64(c.Archive.MaxEntryMiB) << 20
}

// ChunkBytes returns the read size used while streaming downloads.
func (c *Config) ChunkBytes() int {
	return c.Fetch.ChunkKiB << 10
}

// FetchTimeout returns the overall archive download timeout.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}

// NotifyTimeout returns the ntfy request timeout.
func (c *Config) NotifyTimeout() time.Duration {
	return time.Duration(c.Notifications.RequestTimeoutSeconds) * time.Second
}

// BeatSaverTimeout returns the metadata API request timeout.
func (c *Config) BeatSaverTimeout() time.Duration {
	return time.Duration(c.BeatSaver.TimeoutSeconds) * time.Second
}

// ExpandPath resolves a leading tilde and returns an absolute, cleaned path.
func ExpandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
