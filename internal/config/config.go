// Package config loads the sprintboard bootstrap configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sadopc/sprintboard/internal/board"
)

const appDir = "sprintboard"

// Config is the bootstrap configuration. User preferences such as the habit
// list live in the database settings table instead.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Log      LogConfig      `yaml:"log"`
	Board    BoardConfig    `yaml:"board"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig controls the log file. The terminal belongs to the UI, so logs never go to stdout.
type LogConfig struct {
	File  string `yaml:"file"`
	Level string `yaml:"level"`
}

type BoardConfig struct {
	// OnCommitFailure is "revert" (default) or "flag".
	OnCommitFailure   string        `yaml:"on_commit_failure"`
	StrictSprintDates bool          `yaml:"strict_sprint_dates"`
	CommitTimeout     time.Duration `yaml:"commit_timeout"`
}

// DefaultPath returns ~/.config/sprintboard/config.yaml
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, appDir, "config.yaml"), nil
}

// Load reads a YAML config file from path. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Parse(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	if c.Database.Path == "" || c.Log.File == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("config: locate user config dir: %w", err)
		}
		if c.Database.Path == "" {
			c.Database.Path = filepath.Join(dir, appDir, "sprintboard.db")
		}
		if c.Log.File == "" {
			c.Log.File = filepath.Join(dir, appDir, "sprintboard.log")
		}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Board.OnCommitFailure == "" {
		c.Board.OnCommitFailure = "revert"
	}
	if c.Board.CommitTimeout == 0 {
		c.Board.CommitTimeout = 5 * time.Second
	}
	return nil
}

func (c *Config) validate() error {
	var errs []string
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err.Error())
	}
	if _, err := board.ParseFailurePolicy(c.Board.OnCommitFailure); err != nil {
		errs = append(errs, fmt.Sprintf("board.on_commit_failure: %q must be revert or flag", c.Board.OnCommitFailure))
	}
	if c.Board.CommitTimeout < 0 {
		errs = append(errs, "board.commit_timeout must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// FailurePolicy returns the parsed board.on_commit_failure value.
func (c *Config) FailurePolicy() board.FailurePolicy {
	p, _ := board.ParseFailurePolicy(c.Board.OnCommitFailure)
	return p
}

func (c *Config) LogLevel() slog.Level {
	l, _ := parseLevel(c.Log.Level)
	return l
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("log.level: %q must be one of debug, info, warn, error", s)
}
