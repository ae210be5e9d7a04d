// Package config handles application configuration
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

//go:embed config.sample.yaml
var sampleConfig string

// GetSampleConfig returns the embedded sample configuration content
func GetSampleConfig() string {
	return sampleConfig
}

const (
	appName = "gtd"

	DefaultBackups    = 7
	DefaultDebounceMs = 500
)

var validate = validator.New()

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Verbose bool `yaml:"verbose"`
}

// BackendConfig is shared by every backend section.
type BackendConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Default      bool     `yaml:"default"`
	Path         string   `yaml:"path"`
	AttachedTags []string `yaml:"attached_tags" validate:"dive,required"`
}

// BackendsConfig holds configuration for all backends
type BackendsConfig struct {
	SQLite BackendConfig `yaml:"sqlite"`
	File   BackendConfig `yaml:"file"`
}

// WatchConfig holds settings for `gtd watch`.
type WatchConfig struct {
	DebounceMs int `yaml:"debounce_ms" validate:"gte=0,lte=60000"`
}

// Config represents the application configuration
type Config struct {
	DataFile     string         `yaml:"data_file"`
	Backups      *int           `yaml:"backups" validate:"omitempty,gte=0,lte=100"` // nil means DefaultBackups
	OutputFormat string         `yaml:"output_format" validate:"omitempty,oneof=text json"`
	NoPrompt     bool           `yaml:"no_prompt"`
	Logging      LoggingConfig  `yaml:"logging"`
	Backends     BackendsConfig `yaml:"backends"`
	Watch        WatchConfig    `yaml:"watch"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	backups := DefaultBackups
	cfg := &Config{
		Backups:      &backups,
		OutputFormat: "text",
		Watch:        WatchConfig{DebounceMs: DefaultDebounceMs},
	}
	cfg.applyDefaults()
	return cfg
}

// Load loads configuration from the specified path, or the default XDG path if empty.
// If the config file doesn't exist, it creates one from the sample.
func Load(configPath string) (*Config, error) {
	if configPath == "" {
		configPath = filepath.Join(GetConfigDir(), "config.yaml")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := cfg.save(configPath); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
		return cfg, nil
	}

	cfg, err := LoadFromPath(configPath)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadFromPath parses a config file without filling in defaults.
// A missing file yields a nil config and no error.
func LoadFromPath(configPath string) (*Config, error) {
	if configPath == "" {
		return nil, errors.New("config path is required")
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid YAML in config file: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	dataDir := GetDataDir()
	if c.DataFile == "" {
		c.DataFile = filepath.Join(dataDir, "gtd.xml")
	}
	c.DataFile = ExpandPath(c.DataFile)

	if c.OutputFormat == "" {
		c.OutputFormat = "text"
	}
	if c.Watch.DebounceMs == 0 {
		c.Watch.DebounceMs = DefaultDebounceMs
	}

	if c.Backends.SQLite.Path == "" {
		c.Backends.SQLite.Path = filepath.Join(dataDir, "gtd.db")
	}
	c.Backends.SQLite.Path = ExpandPath(c.Backends.SQLite.Path)
	if c.Backends.File.Path == "" {
		c.Backends.File.Path = filepath.Join(dataDir, "tasks.md")
	}
	c.Backends.File.Path = ExpandPath(c.Backends.File.Path)
}

// save writes the sample configuration to path
func (c *Config) save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		msgs := make([]string, 0, len(verrs))
		for _, e := range verrs {
			msgs = append(msgs, fmt.Sprintf("invalid %s: rule '%s' (value: '%v')", e.Namespace(), e.Tag(), e.Value()))
		}
		return errors.New(strings.Join(msgs, "; "))
	}

	var defaults []string
	for _, name := range BackendNames {
		b := c.Backend(name)
		if !b.Default {
			continue
		}
		if !b.Enabled {
			return fmt.Errorf("default backend '%s' is not enabled in backends configuration", name)
		}
		defaults = append(defaults, name)
	}
	if len(defaults) > 1 {
		return fmt.Errorf("only one backend may be the default, got %d", len(defaults))
	}
	return nil
}

// BackendNames lists the configurable backends in registration order.
var BackendNames = []string{"sqlite", "file"}

// Backend returns the section for a backend name.
func (c *Config) Backend(name string) BackendConfig {
	switch name {
	case "sqlite":
		return c.Backends.SQLite
	case "file":
		return c.Backends.File
	}
	return BackendConfig{}
}

// ApplyFlags applies CLI flag overrides to the configuration
func (c *Config) ApplyFlags(verbose, noPrompt bool, outputFormat string) {
	if verbose {
		c.Logging.Verbose = true
	}
	if noPrompt {
		c.NoPrompt = true
	}
	if outputFormat != "" {
		c.OutputFormat = outputFormat
	}
}

// GetBackups returns how many rotating backups to keep.
func (c *Config) GetBackups() int {
	if c.Backups == nil {
		return DefaultBackups
	}
	return *c.Backups
}

// GetDebounce returns the watch debounce as a duration.
func (c *Config) GetDebounce() time.Duration {
	if c.Watch.DebounceMs <= 0 {
		return DefaultDebounceMs * time.Millisecond
	}
	return time.Duration(c.Watch.DebounceMs) * time.Millisecond
}

// getXDGDir returns a directory path following the XDG base directory layout.
// envVar is the XDG environment variable (e.g., "XDG_CONFIG_HOME").
// fallbackPath is the relative path from home (e.g., ".config").
func getXDGDir(envVar, fallbackPath string) string {
	if xdgDir := os.Getenv(envVar); xdgDir != "" {
		return filepath.Join(xdgDir, appName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", fallbackPath, appName)
	}
	return filepath.Join(home, fallbackPath, appName)
}

// GetConfigDir returns the configuration directory following the XDG base directory layout
func GetConfigDir() string {
	return getXDGDir("XDG_CONFIG_HOME", ".config")
}

// GetDataDir returns the data directory following the XDG base directory layout
func GetDataDir() string {
	return getXDGDir("XDG_DATA_HOME", filepath.Join(".local", "share"))
}

// ExpandPath expands ~ and environment variables in a path
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, path[2:])
		}
	}

	return os.ExpandEnv(path)
}
