// Package config manages the clarc.json settings file: which Claude Code
// profile directories feed the mirror, where the working copy lives, and
// how often the periodic sync runs.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
)

const (
	defaultSyncIntervalSeconds = 30
	minSyncIntervalSeconds     = 10
)

type Config struct {
	// SourceDirs are Claude Code profile directories, highest index wins
	// on conflicting single files.
	SourceDirs          []string `json:"sourceDirs"`
	DataDir             string   `json:"dataDir"`
	SyncIntervalSeconds int      `json:"syncIntervalSeconds"`
}

func DefaultConfig() Config {
	home, _ := os.UserHomeDir()
	return Config{
		SourceDirs:          []string{filepath.Join(home, ".claude")},
		DataDir:             filepath.Join(ConfigDir(), "data"),
		SyncIntervalSeconds: defaultSyncIntervalSeconds,
	}
}

func ConfigDir() string {
	if dir := os.Getenv("CLARC_CONFIG_DIR"); dir != "" {
		return dir
	}
	if runtime.GOOS == "windows" {
		return filepath.Join(os.Getenv("APPDATA"), "clarc")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "clarc")
}

func ConfigPath() string {
	return filepath.Join(ConfigDir(), "clarc.json")
}

func Load() (Config, error) {
	return LoadFrom(ConfigPath())
}

func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("parsing config %s: %w", path, err)
	}

	if len(cfg.SourceDirs) == 0 {
		cfg.SourceDirs = DefaultConfig().SourceDirs
	}
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultConfig().DataDir
	}
	if cfg.SyncIntervalSeconds <= 0 {
		cfg.SyncIntervalSeconds = defaultSyncIntervalSeconds
	}

	return cfg, nil
}

func Save(cfg Config) error {
	return SaveTo(ConfigPath(), cfg)
}

func SaveTo(path string, cfg Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

// ValidationResult collects per-field problems. Errors block applying the
// config; warnings do not.
type ValidationResult struct {
	Errors   map[string]string
	Warnings map[string]string
}

func (r ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// Validate checks a config against the filesystem: every source must look
// like a Claude Code profile (a projects/ subdirectory), the data dir must
// be writable, and the interval must not hammer the sources.
func Validate(cfg Config) ValidationResult {
	result := ValidationResult{
		Errors:   make(map[string]string),
		Warnings: make(map[string]string),
	}

	for _, src := range cfg.SourceDirs {
		entries, err := os.ReadDir(filepath.Join(src, "projects"))
		if err != nil {
			result.Errors["sourceDirs"] = fmt.Sprintf("%s is not a Claude Code profile directory (missing projects/)", src)
			continue
		}
		if len(entries) == 0 {
			result.Warnings["sourceDirs"] = fmt.Sprintf("%s has an empty projects/ directory, no session data yet", src)
		}
	}

	if cfg.DataDir != "" {
		if err := checkWritable(cfg.DataDir); err != nil {
			result.Errors["dataDir"] = "directory is not writable"
		}
	}

	if cfg.SyncIntervalSeconds < minSyncIntervalSeconds {
		result.Errors["syncIntervalSeconds"] = fmt.Sprintf("must be at least %d seconds", minSyncIntervalSeconds)
	}

	return result
}

func checkWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	probe := filepath.Join(dir, ".clarc-write-test")
	if err := os.WriteFile(probe, nil, 0o644); err != nil {
		return err
	}
	return os.Remove(probe)
}
