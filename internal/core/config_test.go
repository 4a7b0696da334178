package core

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaultsOnEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.hcl")
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.QueueCapacity != 64 {
		t.Fatalf("QueueCapacity = %d, want default 64", cfg.QueueCapacity)
	}
	if cfg.PtyMode != "auto" {
		t.Fatalf("PtyMode = %q, want auto", cfg.PtyMode)
	}
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.hcl")
	content := `
queue_capacity = 128
pty_mode       = "disable"
forward_env    = ["TERM", "LANG"]
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.QueueCapacity != 128 {
		t.Fatalf("QueueCapacity = %d, want 128", cfg.QueueCapacity)
	}
	if cfg.PtyMode != "disable" {
		t.Fatalf("PtyMode = %q, want disable", cfg.PtyMode)
	}
	if len(cfg.ForwardEnv) != 2 || cfg.ForwardEnv[0] != "TERM" {
		t.Fatalf("ForwardEnv = %v", cfg.ForwardEnv)
	}
}

func TestLoadConfigDirMergesFragments(t *testing.T) {
	dir := t.TempDir()
	mainFile := filepath.Join(dir, "config.hcl")
	if err := os.WriteFile(mainFile, []byte(`queue_capacity = 100`), 0o644); err != nil {
		t.Fatal(err)
	}
	configDir := filepath.Join(dir, "config.d")
	if err := os.Mkdir(configDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(configDir, "a.hcl"), []byte(`pty_mode = "enable"`), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfigDir(mainFile, configDir)
	if err != nil {
		t.Fatalf("LoadConfigDir: %v", err)
	}
	if cfg.QueueCapacity != 100 {
		t.Fatalf("QueueCapacity = %d, want 100", cfg.QueueCapacity)
	}
	if cfg.PtyMode != "enable" {
		t.Fatalf("PtyMode = %q, want enable", cfg.PtyMode)
	}
}

func TestLoadConfigDirMissingFragmentDirOK(t *testing.T) {
	dir := t.TempDir()
	mainFile := filepath.Join(dir, "config.hcl")
	if err := os.WriteFile(mainFile, []byte(``), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadConfigDir(mainFile, filepath.Join(dir, "does-not-exist")); err != nil {
		t.Fatalf("LoadConfigDir: %v", err)
	}
}

func TestConfigExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.hcl")
	if ConfigExists(path) {
		t.Fatal("ConfigExists true for nonexistent file")
	}
	os.WriteFile(path, []byte(""), 0o644)
	if !ConfigExists(path) {
		t.Fatal("ConfigExists false for existing file")
	}
}
