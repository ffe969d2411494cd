// Package config loads the engine's startup configuration from an optional
// YAML file, environment variables, and CLI flags, in that order of
// increasing precedence.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds every setting the engine needs before it starts serving
// requests. Zero values are replaced by Defaults() before flags or file
// values are layered on.
type Config struct {
	DataDir   string `yaml:"data_dir"`
	LogLevel  string `yaml:"log_level"`
	LogJSON   bool   `yaml:"log_json"`
	DebugAddr string `yaml:"debug_addr"`
}

// Defaults returns the engine's built-in configuration.
func Defaults() Config {
	return Config{
		DataDir:  "./data",
		LogLevel: "info",
		LogJSON:  false,
		// DebugAddr empty disables the metrics/health HTTP listener.
		DebugAddr: "",
	}
}

// LoadFile reads a YAML config file and overlays it onto base. An empty
// path is not an error: callers pass the configured --config flag value,
// which defaults to empty, meaning "no file". A non-empty path that cannot
// be read or parsed is an error.
func LoadFile(base Config, path string) (Config, error) {
	if path == "" {
		return base, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overlays environment variables onto cfg. Flags set explicitly
// by the caller still win; ApplyEnv is meant to run before flag values are
// merged in cmd/keyring-store, not after.
func ApplyEnv(cfg Config) Config {
	if v := os.Getenv("KEYRING_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("KEYRING_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("KEYRING_LOG_JSON"); v != "" {
		cfg.LogJSON = v == "1" || v == "true"
	}
	if v := os.Getenv("KEYRING_DEBUG_ADDR"); v != "" {
		cfg.DebugAddr = v
	}
	return cfg
}
