// Localekit - Locale Preference Storage and Synchronization
// Copyright 2026 The Localekit Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/localekit/localekit

// Package config provides layered configuration for the Localekit
// server: struct defaults, an optional YAML file, then LOCALEKIT_*
// environment variables, loaded via koanf.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/localekit/config.yaml",
	"/etc/localekit/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "LOCALEKIT_CONFIG_PATH"

// envPrefix namespaces all environment overrides.
const envPrefix = "LOCALEKIT_"

// Config is the full server configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Storage     StorageConfig     `koanf:"storage"`
	Locale      LocaleConfig      `koanf:"locale"`
	Cache       CacheConfig       `koanf:"cache"`
	History     HistoryConfig     `koanf:"history"`
	Maintenance MaintenanceConfig `koanf:"maintenance"`
	Log         LogConfig         `koanf:"log"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Host           string        `koanf:"host"`
	Port           int           `koanf:"port"`
	ReadTimeout    time.Duration `koanf:"read_timeout"`
	WriteTimeout   time.Duration `koanf:"write_timeout"`
	CookieMaxAge   time.Duration `koanf:"cookie_max_age"`
	CookieSecure   bool          `koanf:"cookie_secure"`
	AllowedOrigins []string      `koanf:"allowed_origins"`
}

// StorageConfig holds the durable store settings.
type StorageConfig struct {
	// Path is the BadgerDB directory. Empty selects an in-memory store
	// (no persistence across restarts).
	Path string `koanf:"path"`
}

// LocaleConfig holds the locale policy.
type LocaleConfig struct {
	// Default is the locale of the synthesized default preference.
	Default string `koanf:"default"`

	// Supported is the ordered list of servable locales; the first
	// entry is the detector's fallback.
	Supported []string `koanf:"supported"`
}

// CacheConfig holds cache tuning.
type CacheConfig struct {
	TTL time.Duration `koanf:"ttl"`
}

// HistoryConfig holds detection-history retention policy.
type HistoryConfig struct {
	MaxRecords int           `koanf:"max_records"`
	MaxAge     time.Duration `koanf:"max_age"`
}

// MaintenanceConfig holds the periodic maintenance settings.
type MaintenanceConfig struct {
	// Interval between automatic maintenance runs; zero disables the
	// periodic service (maintenance still runs once at startup).
	Interval   time.Duration `koanf:"interval"`
	MaxBackups int           `koanf:"max_backups"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// defaultConfig returns the sensible-default configuration; file and
// env layers override it.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8632,
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			CookieMaxAge:   365 * 24 * time.Hour,
			CookieSecure:   false,
			AllowedOrigins: []string{"*"},
		},
		Storage: StorageConfig{
			Path: "./data",
		},
		Locale: LocaleConfig{
			Default:   "en",
			Supported: []string{"en", "zh", "es", "fr", "de", "ja", "pt", "ru"},
		},
		Cache: CacheConfig{
			TTL: 5 * time.Minute,
		},
		History: HistoryConfig{
			MaxRecords: 100,
			MaxAge:     30 * 24 * time.Hour,
		},
		Maintenance: MaintenanceConfig{
			Interval:   time.Hour,
			MaxBackups: 5,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file,
// and LOCALEKIT_* environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	// LOCALEKIT_SERVER_PORT -> server.port, LOCALEKIT_LOCALE_DEFAULT ->
	// locale.default. Single-underscore split keeps multi-word leaf keys
	// (max_records) intact via the two-segment transform below.
	if err := k.Load(env.Provider(envPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration invalid: %w", err)
	}
	return cfg, nil
}

// envTransform maps LOCALEKIT_SECTION_SOME_KEY to section.some_key.
func envTransform(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	parts := strings.SplitN(s, "_", 2)
	if len(parts) == 1 {
		return parts[0]
	}
	return parts[0] + "." + parts[1]
}

// findConfigFile returns the first config file that exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	if c.Locale.Default == "" {
		return fmt.Errorf("locale.default must be set")
	}
	if len(c.Locale.Supported) == 0 {
		return fmt.Errorf("locale.supported must list at least one locale")
	}
	found := false
	for _, loc := range c.Locale.Supported {
		if loc == c.Locale.Default {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("locale.default %q is not in locale.supported", c.Locale.Default)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache.ttl must not be negative")
	}
	if c.History.MaxRecords < 1 {
		return fmt.Errorf("history.max_records must be at least 1")
	}
	return nil
}
