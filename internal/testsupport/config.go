package testsupport

import (
	"path/filepath"
	"testing"

	"github.com/unsupervisednn/moonrider/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.APIBind = "127.0.0.1:0"
	cfg.Logging.Format = "json"

	for _, opt := range opts {
		opt(&cfg)
	}
	return &cfg
}

// WithBeatSaverAPI points the BeatSaver client at a test server.
func WithBeatSaverAPI(url string) ConfigOption {
	return func(c *config.Config) {
		c.BeatSaver.APIURL = url
	}
}

// WithChunkKiB overrides the download chunk size.
func WithChunkKiB(kib int) ConfigOption {
	return func(c *config.Config) {
		c.Fetch.ChunkKiB = kib
	}
}
