package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override file settings.
const (
	EnvAPIURL  = "REHEARSE_API_URL"
	EnvToken   = "REHEARSE_TOKEN"
	EnvNATSURL = "REHEARSE_NATS_URL"
)

// LoadDotEnv reads KEY=value pairs from path into the process environment
// without replacing variables that are already set. A missing file is not an
// error.
func LoadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		path = ".env"
	}
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

// ApplyEnv overlays environment overrides onto cfg using lookup.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) []Warning {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	var warnings []Warning
	override := func(key string, dst *string) {
		v, ok := lookup(key)
		if !ok {
			return
		}
		v = strings.TrimSpace(v)
		if v == "" {
			warnings = append(warnings, Warning{Message: fmt.Sprintf("%s is set but empty; ignoring", key)})
			return
		}
		*dst = v
	}

	override(EnvAPIURL, &cfg.API.BaseURL)
	override(EnvToken, &cfg.API.Token)
	override(EnvNATSURL, &cfg.Events.NATSURL)
	return warnings
}
