package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load reads and parses a configuration file. Supports YAML and TOML formats
// based on file extension. An empty path yields the defaults. Environment
// variables in the format ${VAR} or ${VAR:-default} are substituted, and PORT
// overrides server.port.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		k := koanf.New(".")

		ext := strings.ToLower(filepath.Ext(path))
		var parser koanf.Parser

		switch ext {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".toml":
			parser = toml.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", ext)
		}

		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}

		if err := k.Unmarshal("", &cfg); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	// Expand environment variables in string fields
	expandEnvInConfig(&cfg)

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	// Validate configuration
	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadDotEnv loads variables from a .env file into the process environment.
// A missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to load .env file: %w", err)
	}
	return nil
}

// applyEnvOverrides applies well-known environment variables on top of the file.
func applyEnvOverrides(cfg *Config) error {
	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", v, err)
		}
		cfg.Server.Port = port
	}
	return nil
}

// expandEnvInConfig expands environment variables in configuration values.
func expandEnvInConfig(cfg *Config) {
	cfg.Server.Host = expandEnv(cfg.Server.Host)
	cfg.Store.Backend = expandEnv(cfg.Store.Backend)
	cfg.Store.SweepSchedule = expandEnv(cfg.Store.SweepSchedule)
	cfg.Redis.Address = expandEnv(cfg.Redis.Address)
	cfg.Redis.Password = expandEnv(cfg.Redis.Password)
	cfg.Redis.KeyPrefix = expandEnv(cfg.Redis.KeyPrefix)
	cfg.Log.Level = expandEnv(cfg.Log.Level)
	cfg.Log.Format = expandEnv(cfg.Log.Format)
}

// expandEnv expands environment variables in a string.
// Supports ${VAR} and ${VAR:-default} syntax.
func expandEnv(s string) string {
	return os.Expand(s, func(key string) string {
		// Handle default value syntax: VAR:-default
		if idx := strings.Index(key, ":-"); idx != -1 {
			varName := key[:idx]
			defaultVal := key[idx+2:]
			if val := os.Getenv(varName); val != "" {
				return val
			}
			return defaultVal
		}
		return os.Getenv(key)
	})
}

// ParseLevel converts a config level name to a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("log.level %q is not supported", level)
	}
}
