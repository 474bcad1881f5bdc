// Localekit - Locale Preference Storage and Synchronization
// Copyright 2026 The Localekit Authors
// SPDX-License-Identifier: Apache-2.0
// https://github.com/localekit/localekit

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no config file in reach

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8632 {
		t.Errorf("port = %d, want 8632", cfg.Server.Port)
	}
	if cfg.Locale.Default != "en" {
		t.Errorf("default locale = %q, want en", cfg.Locale.Default)
	}
	if cfg.Cache.TTL != 5*time.Minute {
		t.Errorf("cache ttl = %v, want 5m", cfg.Cache.TTL)
	}
	if cfg.History.MaxRecords != 100 {
		t.Errorf("history max = %d, want 100", cfg.History.MaxRecords)
	}
	if cfg.Maintenance.MaxBackups != 5 {
		t.Errorf("max backups = %d, want 5", cfg.Maintenance.MaxBackups)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := []byte("server:\n  port: 9000\nlocale:\n  default: zh\n  supported: [zh, en]\n")
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("port = %d, want file override 9000", cfg.Server.Port)
	}
	if cfg.Locale.Default != "zh" || len(cfg.Locale.Supported) != 2 {
		t.Errorf("locale = %q/%v, want zh/[zh en]", cfg.Locale.Default, cfg.Locale.Supported)
	}
	// Untouched keys keep their defaults.
	if cfg.History.MaxRecords != 100 {
		t.Errorf("history max = %d, want default 100", cfg.History.MaxRecords)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("LOCALEKIT_SERVER_PORT", "7777")
	t.Setenv("LOCALEKIT_LOCALE_DEFAULT", "fr")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7777 {
		t.Errorf("port = %d, want env override 7777", cfg.Server.Port)
	}
	if cfg.Locale.Default != "fr" {
		t.Errorf("default locale = %q, want fr", cfg.Locale.Default)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config { return defaultConfig() }

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults pass", func(*Config) {}, false},
		{"port too low", func(c *Config) { c.Server.Port = 0 }, true},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, true},
		{"empty default locale", func(c *Config) { c.Locale.Default = "" }, true},
		{"no supported locales", func(c *Config) { c.Locale.Supported = nil }, true},
		{"default not in supported", func(c *Config) { c.Locale.Default = "xx" }, true},
		{"negative cache ttl", func(c *Config) { c.Cache.TTL = -time.Second }, true},
		{"zero history cap", func(c *Config) { c.History.MaxRecords = 0 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct{ in, want string }{
		{"LOCALEKIT_SERVER_PORT", "server.port"},
		{"LOCALEKIT_HISTORY_MAX_RECORDS", "history.max_records"},
		{"LOCALEKIT_STORAGE_PATH", "storage.path"},
	}
	for _, tt := range tests {
		if got := envTransform(tt.in); got != tt.want {
			t.Errorf("envTransform(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
