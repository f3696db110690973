// Castellan - Authorization and Security Monitoring for Content Platforms
// Copyright 2026 Castellan Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castellan-io/castellan

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists where config files are searched, in order. The
// first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/castellan/config.yaml",
	"/etc/castellan/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "CASTELLAN_CONFIG"

// Load builds the configuration from defaults, an optional YAML file, and
// environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first existing config file path, or "".
func findConfigFile() string {
	if path := os.Getenv(ConfigPathEnvVar); path != "" {
		return path
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// envMappings maps environment variable names to koanf config paths.
// Unmapped variables are ignored so arbitrary environment entries cannot
// pollute the configuration.
var envMappings = map[string]string{
	// Server
	"castellan_host":                "server.host",
	"castellan_port":                "server.port",
	"castellan_read_timeout":        "server.read_timeout",
	"castellan_write_timeout":       "server.write_timeout",
	"castellan_shutdown_timeout":    "server.shutdown_timeout",
	"castellan_rate_limit_requests": "server.rate_limit_requests",
	"castellan_rate_limit_window":   "server.rate_limit_window",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	// Authorization
	"authz_cache_backend": "authz.cache_backend",
	"authz_cache_ttl":     "authz.cache_ttl",
	"authz_badger_path":   "authz.badger_path",

	// Monitoring
	"monitor_store_backend":         "monitor.store_backend",
	"monitor_badger_path":           "monitor.badger_path",
	"monitor_rate_limit_max":        "monitor.rate_limit_max",
	"monitor_rate_limit_window":     "monitor.rate_limit_window",
	"monitor_sweep_interval":        "monitor.sweep_interval",
	"monitor_block_ttl":             "monitor.block_ttl",
	"monitor_recent_events_limit":   "monitor.recent_events_limit",
	"monitor_brute_force_threshold": "monitor.brute_force_threshold",
	"monitor_brute_force_window":    "monitor.brute_force_window",
	"monitor_max_ips_per_actor":     "monitor.max_ips_per_actor",
	"monitor_multi_ip_window":       "monitor.multi_ip_window",
	"monitor_coordinated_ip_limit":  "monitor.coordinated_ip_limit",
	"monitor_coordinated_window":    "monitor.coordinated_window",
}

// envTransformFunc maps environment variable names to koanf paths.
// Unmapped keys return "" and are skipped.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
