// Package config handles application configuration
package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed config.sample.yaml
var sampleConfig string

// AppName is the directory name used under XDG config and data homes
const AppName = "todokeep"

// GetSampleConfig returns the embedded sample configuration content
func GetSampleConfig() string {
	return sampleConfig
}

// DriveConfig holds Google Drive backup settings
type DriveConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	BaseURL      string `yaml:"base_url"` // Override for testing
	Timeout      string `yaml:"timeout"`  // e.g. "30s"
}

// Config represents the application configuration
type Config struct {
	DBPath   string      `yaml:"db_path"`
	NoPrompt bool        `yaml:"no_prompt"`
	Drive    DriveConfig `yaml:"drive"`
}

// DefaultConfigPath returns the default configuration file path.
// Uses XDG_CONFIG_HOME if set, otherwise $HOME/.config.
func DefaultConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName, "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(AppName, "config.yaml")
	}
	return filepath.Join(home, ".config", AppName, "config.yaml")
}

// DefaultDBPath returns the default database path.
// Uses XDG_DATA_HOME if set, otherwise $HOME/.local/share.
func DefaultDBPath() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, AppName, "todokeep.db")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(AppName, "todokeep.db")
	}
	return filepath.Join(home, ".local", "share", AppName, "todokeep.db")
}

// Load reads the configuration from path. A missing file yields the
// defaults; a malformed file is an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyDefaults()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

// applyDefaults fills unset fields
func (c *Config) applyDefaults() {
	if c.DBPath == "" {
		c.DBPath = DefaultDBPath()
	}
	if c.Drive.Timeout == "" {
		c.Drive.Timeout = "30s"
	}
}

// DriveTimeout parses the configured Drive HTTP timeout
func (c *Config) DriveTimeout() time.Duration {
	d, err := time.ParseDuration(c.Drive.Timeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// WriteSample writes the embedded sample config to path, creating parent
// directories. It refuses to overwrite an existing file.
func WriteSample(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config already exists: %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(sampleConfig), 0644)
}
