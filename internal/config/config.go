package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir     string `toml:"data_dir"`
	LogDir      string `toml:"log_dir"`
	SnapshotDir string `toml:"snapshot_dir"`
	APIBind     string `toml:"api_bind"`
}

// Output contains the global render output parameters.
type Output struct {
	Width     int    `toml:"width"`
	Height    int    `toml:"height"`
	FrameRate int    `toml:"frame_rate"`
	Codec     string `toml:"codec"`
}

// Timing contains the duration-precedence tuning knobs.
type Timing struct {
	TrailingPadMS  int `toml:"trailing_pad_ms"`
	MSPerChar      int `toml:"ms_per_char"`
	MinEstimateMS  int `toml:"min_estimate_ms"`
	DefaultSceneMS int `toml:"default_scene_ms"`
}

// Preflight contains reachability probing settings.
type Preflight struct {
	ProbeTimeoutSeconds int `toml:"probe_timeout_seconds"`
	ProbeFanout         int `toml:"probe_fanout"`
}

// Renderer contains the external render service connection settings.
type Renderer struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Jobs contains the render job retry policy and worker cadence.
type Jobs struct {
	MaxAttempts         int `toml:"max_attempts"`
	RetryBackoffSeconds int `toml:"retry_backoff_seconds"`
	MaxBackoffSeconds   int `toml:"max_backoff_seconds"`
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for storyreel.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Output    Output    `toml:"output"`
	Timing    Timing    `toml:"timing"`
	Preflight Preflight `toml:"preflight"`
	Renderer  Renderer  `toml:"renderer"`
	Jobs      Jobs      `toml:"jobs"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/storyreel/config.toml")
}

// SampleConfig returns the annotated sample configuration document.
func SampleConfig() string {
	return sampleConfig
}

// Load locates, parses, normalizes, and validates a configuration file.
// A missing file yields the defaults.
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
		decoder.DisallowUnknownFields()
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
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
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
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return err
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return err
	}
	if c.Paths.SnapshotDir, err = expandPath(c.Paths.SnapshotDir); err != nil {
		return err
	}
	c.Renderer.BaseURL = strings.TrimSpace(c.Renderer.BaseURL)
	return nil
}

// EnsureDirectories creates the writable directories the process needs.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir, c.Paths.SnapshotDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("ensure directory %s: %w", dir, err)
		}
	}
	return nil
}

// JobDBPath returns the render job database location.
func (c *Config) JobDBPath() string {
	return filepath.Join(c.Paths.DataDir, "jobs.db")
}

// LockPath returns the single-instance lock file location.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "storyreel.lock")
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
