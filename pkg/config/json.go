package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// loadJSON reads a JSON options file into target.
func loadJSON(path string, target any) error {
	// #nosec G304 -- path comes from the caller; validate untrusted inputs upstream.
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file %s: %w", path, err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}
	return nil
}
