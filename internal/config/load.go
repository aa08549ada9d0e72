package config

import (
	"errors"
	"fmt"
	"os"
)

// Loaded captures resolved config path, parsed values, and non-fatal warnings.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load resolves, reads, parses, and validates the runtime configuration, then
// applies .env and environment overrides.
func Load(explicitPath string) (Loaded, error) {
	path, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}
	if err := LoadDotEnv(""); err != nil {
		return Loaded{}, err
	}

	loaded := Loaded{Path: path, Config: Default(), Exists: true}

	content, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		loaded.Exists = false
		loaded.Warnings = append(loaded.Warnings, Warning{
			Message: fmt.Sprintf("config file %q not found; using defaults", path),
		})
	case err != nil:
		return Loaded{}, fmt.Errorf("read config %q: %w", path, err)
	default:
		cfg, warnings, perr := Parse(string(content), loaded.Config)
		if perr != nil {
			return Loaded{}, fmt.Errorf("parse config %q: %w", path, perr)
		}
		loaded.Config = cfg
		loaded.Warnings = append(loaded.Warnings, warnings...)
	}

	loaded.Warnings = append(loaded.Warnings, ApplyEnv(&loaded.Config, nil)...)
	if _, err := Validate(loaded.Config); err != nil {
		return Loaded{}, fmt.Errorf("environment overrides: %w", err)
	}
	return loaded, nil
}
