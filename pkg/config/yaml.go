package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// loadYAML reads a YAML options file into target.
func loadYAML(path string, target any) error {
	// #nosec G304 -- path comes from the caller; validate untrusted inputs upstream.
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read YAML file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to unmarshal YAML: %w", err)
	}
	return nil
}
