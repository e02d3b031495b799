// Package config loads harness options from YAML or JSON files with
// environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix is the prefix for environment variable overrides, e.g.
// LOCALNET_LOG_LEVEL.
const EnvPrefix = "LOCALNET"

// Options configures the harness.
type Options struct {
	// LogLevel is the minimum log level: DEBUG, INFO, WARN or ERROR.
	LogLevel string `yaml:"log_level" json:"log_level"`
	// LogJSON switches the logger to JSON entries.
	LogJSON bool `yaml:"log_json" json:"log_json"`
	// DefaultCallTimeout bounds each call made through the harness's Invoke.
	// Calls made directly on a handle do not use it. Zero means wait
	// indefinitely.
	DefaultCallTimeout Duration `yaml:"default_call_timeout" json:"default_call_timeout"`
	// Metrics enables the Prometheus collectors.
	Metrics bool `yaml:"metrics" json:"metrics"`
}

// Default returns the options used when no file is given.
func Default() Options {
	return Options{
		LogLevel: "INFO",
	}
}

// Load reads options from path, detecting YAML or JSON by extension, applies
// environment overrides, and validates the result.
func Load(path string) (Options, error) {
	opts := Default()
	if path != "" {
		var err error
		if strings.HasSuffix(path, ".json") {
			err = loadJSON(path, &opts)
		} else {
			err = loadYAML(path, &opts)
		}
		if err != nil {
			return opts, err
		}
	}
	if err := applyEnv(&opts); err != nil {
		return opts, err
	}
	if err := opts.Validate(); err != nil {
		return opts, err
	}
	return opts, nil
}

// FromEnv returns the default options with environment overrides applied.
func FromEnv() (Options, error) {
	return Load("")
}

// Validate checks option values for consistency.
func (o Options) Validate() error {
	switch strings.ToUpper(o.LogLevel) {
	case "DEBUG", "INFO", "WARN", "WARNING", "ERROR":
	default:
		return fmt.Errorf("invalid log_level %q", o.LogLevel)
	}
	if o.DefaultCallTimeout < 0 {
		return fmt.Errorf("default_call_timeout must not be negative")
	}
	return nil
}

// applyEnv overrides options from LOCALNET_-prefixed environment variables.
func applyEnv(o *Options) error {
	if v := os.Getenv(EnvPrefix + "_LOG_LEVEL"); v != "" {
		o.LogLevel = v
	}
	if v := os.Getenv(EnvPrefix + "_LOG_JSON"); v != "" {
		o.LogJSON = parseBool(v)
	}
	if v := os.Getenv(EnvPrefix + "_DEFAULT_CALL_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s_DEFAULT_CALL_TIMEOUT: %w", EnvPrefix, err)
		}
		o.DefaultCallTimeout = Duration(d)
	}
	if v := os.Getenv(EnvPrefix + "_METRICS"); v != "" {
		o.Metrics = parseBool(v)
	}
	return nil
}

func parseBool(s string) bool {
	b, err := strconv.ParseBool(strings.ToLower(s))
	return err == nil && b
}
