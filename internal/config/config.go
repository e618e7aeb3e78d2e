// Package config loads user settings from a YAML file and the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/ahundt/ai-session-tools/internal/analyze"
	"gopkg.in/yaml.v3"
)

// Environment variables consulted by Load.
const (
	EnvConfig   = "AI_SESSION_TOOLS_CONFIG"
	EnvProjects = "AI_SESSION_TOOLS_PROJECTS"
	EnvRecovery = "AI_SESSION_TOOLS_RECOVERY"
)

// Config holds every user-tunable setting. A nil pattern or command list
// selects the built-in behavior; a present list replaces it.
type Config struct {
	ProjectsDir        string   `yaml:"projects_dir"`
	RecoveryDir        string   `yaml:"recovery_dir"`
	Workers            int      `yaml:"workers"`
	SnippetChars       int      `yaml:"snippet_chars"`
	CorrectionPatterns []string `yaml:"correction_patterns,omitempty"`
	PlanningCommands   []string `yaml:"planning_commands,omitempty"`
}

// Default returns the settings used when no file or environment override
// is present.
func Default() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return Config{
		ProjectsDir:  filepath.Join(home, ".claude", "projects"),
		RecoveryDir:  filepath.Join(home, ".claude", "recovery"),
		SnippetChars: 200,
	}, nil
}

// DefaultPath returns the config file location: $AI_SESSION_TOOLS_CONFIG or
// ~/.config/ai-session-tools/config.yaml.
func DefaultPath() (string, error) {
	if p := os.Getenv(EnvConfig); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not find the user's home directory: %w", err)
	}
	return filepath.Join(home, ".config", "ai-session-tools", "config.yaml"), nil
}

// Load reads the config at path, or at DefaultPath when path is empty, and
// applies environment overrides. A missing file is only an error when the
// path was given explicitly.
func Load(path string) (Config, error) {
	cfg, err := Default()
	if err != nil {
		return Config{}, err
	}

	explicit := path != "" || os.Getenv(EnvConfig) != ""
	if path == "" {
		if path, err = DefaultPath(); err != nil {
			return Config{}, err
		}
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return Config{}, fmt.Errorf("failed to read the config file: %w", err)
	}

	if v := os.Getenv(EnvProjects); v != "" {
		cfg.ProjectsDir = v
	}
	if v := os.Getenv(EnvRecovery); v != "" {
		cfg.RecoveryDir = v
	}
	cfg.ProjectsDir = expandHome(cfg.ProjectsDir)
	cfg.RecoveryDir = expandHome(cfg.RecoveryDir)

	if _, err := cfg.Corrections(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

// Corrections converts the configured pattern list for the correction
// detector.
func (c Config) Corrections() (analyze.CorrectionPatterns, error) {
	if c.CorrectionPatterns == nil {
		return analyze.BuiltInCorrections(), nil
	}
	patterns, err := analyze.ParseCorrectionPatterns(c.CorrectionPatterns)
	if err != nil {
		return analyze.CorrectionPatterns{}, err
	}
	return analyze.OverrideCorrections(patterns), nil
}

// Commands converts the configured command list for the planning counter.
func (c Config) Commands() analyze.CommandSet {
	if len(c.PlanningCommands) == 0 {
		return analyze.Discovery()
	}
	return analyze.Fixed(c.PlanningCommands)
}

// Marshal renders the config as YAML.
func (c Config) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}
