package headless

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the configuration for a non-interactive run
type Config struct {
	// Task description
	Task string `yaml:"task" json:"task"`

	// Timeout bounds the whole run. Zero means no limit. Task files spell it
	// as a duration string, see LoadTaskFile.
	Timeout time.Duration `yaml:"-" json:"timeout"`

	// Artifacts configuration
	Artifacts ArtifactConfig `yaml:"artifacts" json:"artifacts"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// LoggingConfig defines console output configuration
type LoggingConfig struct {
	// Verbosity controls console output: quiet, normal, verbose, debug
	Verbosity string `yaml:"verbosity" json:"verbosity"`
}

// ArtifactConfig defines artifact generation configuration
type ArtifactConfig struct {
	Enabled   bool   `yaml:"enabled" json:"enabled"`
	OutputDir string `yaml:"output_dir" json:"output_dir"`

	// Individual format flags
	YAML     bool `yaml:"yaml" json:"yaml"`
	Markdown bool `yaml:"markdown" json:"markdown"`
	Metrics  bool `yaml:"metrics" json:"metrics"`
}

var validVerbosity = map[string]bool{
	"quiet":   true,
	"normal":  true,
	"verbose": true,
	"debug":   true,
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Task == "" {
		return fmt.Errorf("task description is required")
	}

	if c.Timeout < 0 {
		return fmt.Errorf("timeout cannot be negative")
	}

	if c.Artifacts.Enabled && c.Artifacts.OutputDir == "" {
		return fmt.Errorf("artifacts require an output directory")
	}

	// Set default verbosity if not specified
	if c.Logging.Verbosity == "" {
		c.Logging.Verbosity = "normal"
	}
	if !validVerbosity[c.Logging.Verbosity] {
		return fmt.Errorf("invalid logging verbosity: %s (must be 'quiet', 'normal', 'verbose', or 'debug')", c.Logging.Verbosity)
	}

	return nil
}

// DefaultConfig returns a configuration that prints progress and writes no
// artifacts.
func DefaultConfig() *Config {
	return &Config{
		Artifacts: ArtifactConfig{
			YAML:     true,
			Markdown: true,
			Metrics:  true,
		},
		Logging: LoggingConfig{Verbosity: "normal"},
	}
}

// LoadTaskFile reads a YAML task file over the defaults. Fields missing from
// the file keep their default values.
//
//	task: play some jazz on youtube
//	timeout: 10m
//	artifacts:
//	  enabled: true
//	  output_dir: ./runs
func LoadTaskFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read task file: %w", err)
	}

	cfg := DefaultConfig()
	var raw struct {
		Config  `yaml:",inline"`
		Timeout string `yaml:"timeout"`
	}
	raw.Config = *cfg
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse task file %s: %w", path, err)
	}

	*cfg = raw.Config
	if raw.Timeout != "" {
		d, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return nil, fmt.Errorf("invalid timeout %q: %w", raw.Timeout, err)
		}
		cfg.Timeout = d
	}
	return cfg, nil
}
