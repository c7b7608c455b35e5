package config

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config represents the complete application configuration.
type Config struct {
	Server ServerConfig `koanf:"server"`
	Store  StoreConfig  `koanf:"store"`
	Redis  RedisConfig  `koanf:"redis"`
	Log    LogConfig    `koanf:"log"`
}

// ServerConfig contains HTTP listener settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// Addr returns the host:port the server listens on.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// StoreConfig selects the lock store backend.
type StoreConfig struct {
	Backend string `koanf:"backend"`
	// SweepSchedule is a cron spec for reclaiming expired records. Empty disables the sweep.
	SweepSchedule string `koanf:"sweep_schedule"`
}

// RedisConfig contains Redis connection settings.
type RedisConfig struct {
	Address   string `koanf:"address"`
	Password  string `koanf:"password"`
	DB        int    `koanf:"db"`
	KeyPrefix string `koanf:"key_prefix"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Defaults returns a Config with sensible default values.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            3000,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Store: StoreConfig{
			Backend:       BackendMemory,
			SweepSchedule: "@every 1m",
		},
		Redis: RedisConfig{
			Address:   "localhost:6379",
			KeyPrefix: "tablelock:",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// validate checks the configuration for errors.
func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", cfg.Server.Port)
	}

	switch cfg.Store.Backend {
	case BackendMemory:
	case BackendRedis:
		if cfg.Redis.Address == "" {
			return fmt.Errorf("redis.address is required")
		}
	default:
		return fmt.Errorf("store.backend %q is not supported", cfg.Store.Backend)
	}

	switch cfg.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format %q is not supported", cfg.Log.Format)
	}

	if _, err := ParseLevel(cfg.Log.Level); err != nil {
		return err
	}

	return nil
}
