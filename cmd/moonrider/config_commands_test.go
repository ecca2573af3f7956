package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/unsupervisednn/moonrider/internal/testsupport"
)

func TestConfigInitAndValidate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	configPath := writeTestConfig(t, cfg)

	out, _, err := runCLI(t, configPath, "config", "validate")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, "Daemon API")
	requireContains(t, out, "127.0.0.1:0")
	requireContains(t, out, cfg.Paths.LogDir)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, configPath, "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, configPath, "config", "init", "--path", target); err == nil {
		t.Fatal("expected init to refuse an existing file")
	}
	if _, _, err := runCLI(t, configPath, "config", "init", "--path", target, "--overwrite"); err != nil {
		t.Fatalf("config init --overwrite: %v", err)
	}
}

func TestConfigValidateRejectsBrokenFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[paths\nlog_dir = 3"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, _, err := runCLI(t, path, "config", "validate"); err == nil {
		t.Fatal("expected parse error")
	}
}
