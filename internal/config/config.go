// Package config loads Spider's optional YAML configuration file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// EnvPath names the environment variable holding the configuration file
// path. When unset, defaults are used.
const EnvPath = "SPIDER_CONFIG"

// EnvLogLevel overrides log.level from the file.
const EnvLogLevel = "SPIDER_LOG_LEVEL"

// Config is the application configuration.
type Config struct {
	Log struct {
		// Level is one of debug, info, warn, error.
		Level string `yaml:"level"`

		// File, if set, receives a copy of every log entry. The file is
		// rotated by size.
		File       string `yaml:"file"`
		MaxSizeMB  int    `yaml:"max_size_mb"`
		MaxBackups int    `yaml:"max_backups"`
		MaxAgeDays int    `yaml:"max_age_days"`
	} `yaml:"log"`

	Pipeline struct {
		// Workers used by the voxel kernel; 0 means one per CPU.
		Workers int `yaml:"workers"`

		// Output is the TIA image written by spider_tia.
		Output string `yaml:"output"`
	} `yaml:"pipeline"`
}

// Default returns a configuration with default values.
func Default() *Config {
	cfg := &Config{}
	cfg.Log.Level = "info"
	cfg.Log.MaxSizeMB = 10
	cfg.Log.MaxBackups = 3
	cfg.Log.MaxAgeDays = 28
	cfg.Pipeline.Output = "tia.nii"
	return cfg
}

// Load reads configuration from a YAML file. If the file doesn't exist,
// it returns the default configuration.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// FromEnv loads the file named by $SPIDER_CONFIG, or the defaults, and
// applies $SPIDER_LOG_LEVEL.
func FromEnv() (*Config, error) {
	cfg := Default()
	if path := os.Getenv(EnvPath); path != "" {
		var err error
		if cfg, err = Load(path); err != nil {
			return nil, err
		}
	}
	if level := os.Getenv(EnvLogLevel); level != "" {
		cfg.Log.Level = level
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", EnvLogLevel, err)
		}
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Log.MaxSizeMB < 0 || c.Log.MaxBackups < 0 || c.Log.MaxAgeDays < 0 {
		return errors.New("log rotation limits must not be negative")
	}
	if c.Pipeline.Workers < 0 {
		return fmt.Errorf("pipeline.workers must not be negative, got %d", c.Pipeline.Workers)
	}
	if c.Pipeline.Output == "" {
		return errors.New("pipeline.output must not be empty")
	}
	return nil
}

// Save writes the configuration to a YAML file.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}
