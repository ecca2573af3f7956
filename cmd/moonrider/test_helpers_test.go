package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"github.com/unsupervisednn/moonrider/internal/config"
	"github.com/unsupervisednn/moonrider/internal/daemon"
	"github.com/unsupervisednn/moonrider/internal/logging"
	"github.com/unsupervisednn/moonrider/internal/testsupport"
)

func writeTestConfig(t *testing.T, cfg *config.Config) string {
	t.Helper()
	data, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func runCLI(t *testing.T, configPath string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q\n%s", needle, haystack)
	}
}

func startTestDaemon(t *testing.T, cfg *config.Config) *daemon.Daemon {
	t.Helper()
	d, err := daemon.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		_ = d.Close()
	})
	if err := d.Start(ctx); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	return d
}

func songArchive(t *testing.T) []byte {
	t.Helper()
	info := testsupport.InfoJSON(t, "Test Song",
		testsupport.Set{Characteristic: "Standard", Difficulties: []testsupport.Difficulty{
			{Level: "Hard", File: "HardStandard.dat"},
			{Level: "Expert", File: "ExpertStandard.dat"},
		}},
		testsupport.Set{Characteristic: "OneSaber", Difficulties: []testsupport.Difficulty{
			{Level: "Expert", File: "ExpertOneSaber.dat"},
		}},
	)
	return testsupport.BuildArchive(t,
		testsupport.File{Name: "Info.dat", Data: info},
		testsupport.File{Name: "song.egg", Data: bytes.Repeat([]byte("OggS"), 4096), Store: true},
		testsupport.File{Name: "HardStandard.dat", Data: testsupport.NotesJSON(10)},
		testsupport.File{Name: "ExpertStandard.dat", Data: testsupport.NotesJSON(20)},
		testsupport.File{Name: "ExpertOneSaber.dat", Data: testsupport.NotesJSON(5)},
	)
}
