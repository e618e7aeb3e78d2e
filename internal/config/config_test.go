package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/ahundt/ai-session-tools/internal/analyze"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(EnvConfig, "")
	t.Setenv(EnvProjects, "")
	t.Setenv(EnvRecovery, "")
	return home
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaultsWhenMissing(t *testing.T) {
	home := isolate(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.ProjectsDir != filepath.Join(home, ".claude", "projects") {
		t.Fatalf("unexpected projects dir: %s", cfg.ProjectsDir)
	}
	if cfg.SnippetChars != 200 {
		t.Fatalf("unexpected snippet chars: %d", cfg.SnippetChars)
	}
	patterns, err := cfg.Corrections()
	if err != nil || !patterns.IsBuiltIn() {
		t.Fatalf("expected built-in corrections, got %v %v", patterns, err)
	}
	if !cfg.Commands().IsDiscovery() {
		t.Fatalf("expected discovery mode")
	}
}

func TestLoadFile(t *testing.T) {
	home := isolate(t)
	path := writeConfig(t, `
projects_dir: ~/logs
workers: 3
correction_patterns:
  - "style:tabs"
  - "regression:deleted"
planning_commands: ["/plannew", "/planrefine"]
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.ProjectsDir != filepath.Join(home, "logs") {
		t.Fatalf("home not expanded: %s", cfg.ProjectsDir)
	}
	if cfg.Workers != 3 {
		t.Fatalf("unexpected workers: %d", cfg.Workers)
	}
	patterns, err := cfg.Corrections()
	if err != nil {
		t.Fatalf("Corrections returned error: %v", err)
	}
	if patterns.IsBuiltIn() || len(patterns.Patterns()) != 2 || patterns.Patterns()[0].Category != "style" {
		t.Fatalf("unexpected patterns: %v", patterns.Patterns())
	}
	cmds := cfg.Commands()
	if cmds.IsDiscovery() || len(cmds.Commands()) != 2 {
		t.Fatalf("unexpected commands: %v", cmds.Commands())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "projects_dir: /from/file\n")
	t.Setenv(EnvConfig, path)
	t.Setenv(EnvProjects, "/from/env")
	t.Setenv(EnvRecovery, "/recovery")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.ProjectsDir != "/from/env" || cfg.RecoveryDir != "/recovery" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestLoadExplicitMissing(t *testing.T) {
	isolate(t)
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for explicit missing config")
	}
}

func TestLoadRejectsUnknownField(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "projects_dri: /typo\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoadRejectsBadPattern(t *testing.T) {
	isolate(t)
	path := writeConfig(t, "correction_patterns: [\"nocolon\"]\n")
	_, err := Load(path)
	if !errors.Is(err, analyze.ErrInvalidPattern) {
		t.Fatalf("expected ErrInvalidPattern, got %v", err)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	home := isolate(t)
	cfg, err := Load(writeConfig(t, ""))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.RecoveryDir != filepath.Join(home, ".claude", "recovery") {
		t.Fatalf("unexpected recovery dir: %s", cfg.RecoveryDir)
	}
}
