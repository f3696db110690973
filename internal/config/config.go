// Castellan - Authorization and Security Monitoring for Content Platforms
// Copyright 2026 Castellan Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castellan-io/castellan

// Package config loads Castellan configuration via Koanf v2 with layered
// sources (highest priority wins):
//
//   - Environment variables (explicit mapping table, see koanf.go)
//   - Config file (config.yaml)
//   - Built-in defaults
package config

import (
	"fmt"
	"time"
)

// Cache and store backend names selected at construction time.
const (
	BackendMemory = "memory"
	BackendBadger = "badger"
)

// Config is the root configuration for the Castellan server.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	Logging LoggingConfig `koanf:"logging"`
	Authz   AuthzConfig   `koanf:"authz"`
	Monitor MonitorConfig `koanf:"monitor"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`

	// RateLimitRequests / RateLimitWindow configure the HTTP-edge per-IP
	// rate limit (go-chi/httprate). This is separate from the monitoring
	// service's per-actor event ceiling.
	RateLimitRequests int           `koanf:"rate_limit_requests"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// AuthzConfig holds authorization engine settings.
type AuthzConfig struct {
	// CacheBackend selects the decision cache implementation: "memory"
	// or "badger".
	CacheBackend string `koanf:"cache_backend"`

	// CacheTTL is how long authorization decisions are cached.
	CacheTTL time.Duration `koanf:"cache_ttl"`

	// BadgerPath is the on-disk location for the badger-backed cache.
	BadgerPath string `koanf:"badger_path"`
}

// MonitorConfig holds security monitoring settings.
type MonitorConfig struct {
	// StoreBackend selects the event store implementation: "memory" or
	// "badger".
	StoreBackend string `koanf:"store_backend"`
	BadgerPath   string `koanf:"badger_path"`

	// RateLimitMax is the per-actor event-ingestion ceiling within
	// RateLimitWindow.
	RateLimitMax    int           `koanf:"rate_limit_max"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`

	// SweepInterval is how often expired rate-limit counters and IP block
	// entries are removed.
	SweepInterval time.Duration `koanf:"sweep_interval"`

	// BlockTTL is how long an IP stays blocked after a critical alert.
	BlockTTL time.Duration `koanf:"block_ttl"`

	// RecentEventsLimit bounds the recent-events list on the dashboard.
	RecentEventsLimit int `koanf:"recent_events_limit"`

	// Detector thresholds.
	BruteForceThreshold int           `koanf:"brute_force_threshold"`
	BruteForceWindow    time.Duration `koanf:"brute_force_window"`
	MaxIPsPerActor      int           `koanf:"max_ips_per_actor"`
	MultiIPWindow       time.Duration `koanf:"multi_ip_window"`
	CoordinatedIPLimit  int           `koanf:"coordinated_ip_limit"`
	CoordinatedWindow   time.Duration `koanf:"coordinated_window"`
}

// defaultConfig returns a Config with all default values. Defaults are
// applied first, then overridden by the config file and environment.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8780,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			RateLimitRequests: 300,
			RateLimitWindow:   time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Authz: AuthzConfig{
			CacheBackend: BackendMemory,
			CacheTTL:     5 * time.Minute,
			BadgerPath:   "data/authz",
		},
		Monitor: MonitorConfig{
			StoreBackend:        BackendMemory,
			BadgerPath:          "data/events",
			RateLimitMax:        10,
			RateLimitWindow:     time.Minute,
			SweepInterval:       time.Minute,
			BlockTTL:            30 * time.Minute,
			RecentEventsLimit:   20,
			BruteForceThreshold: 5,
			BruteForceWindow:    15 * time.Minute,
			MaxIPsPerActor:      3,
			MultiIPWindow:       10 * time.Minute,
			CoordinatedIPLimit:  5,
			CoordinatedWindow:   10 * time.Minute,
		},
	}
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateAuthz(); err != nil {
		return err
	}
	return c.validateMonitor()
}

func (c *Config) validateServer() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1-65535, got %d", c.Server.Port)
	}
	if c.Server.RateLimitRequests <= 0 {
		return fmt.Errorf("server.rate_limit_requests must be positive")
	}
	if c.Server.RateLimitWindow <= 0 {
		return fmt.Errorf("server.rate_limit_window must be positive")
	}
	return nil
}

func (c *Config) validateAuthz() error {
	switch c.Authz.CacheBackend {
	case BackendMemory, BackendBadger:
	default:
		return fmt.Errorf("authz.cache_backend must be %q or %q, got %q",
			BackendMemory, BackendBadger, c.Authz.CacheBackend)
	}
	if c.Authz.CacheBackend == BackendBadger && c.Authz.BadgerPath == "" {
		return fmt.Errorf("authz.badger_path is required for the badger cache backend")
	}
	if c.Authz.CacheTTL <= 0 {
		return fmt.Errorf("authz.cache_ttl must be positive")
	}
	return nil
}

func (c *Config) validateMonitor() error {
	m := &c.Monitor
	switch m.StoreBackend {
	case BackendMemory, BackendBadger:
	default:
		return fmt.Errorf("monitor.store_backend must be %q or %q, got %q",
			BackendMemory, BackendBadger, m.StoreBackend)
	}
	if m.StoreBackend == BackendBadger && m.BadgerPath == "" {
		return fmt.Errorf("monitor.badger_path is required for the badger store backend")
	}
	if m.RateLimitMax <= 0 {
		return fmt.Errorf("monitor.rate_limit_max must be positive")
	}
	for name, d := range map[string]time.Duration{
		"monitor.rate_limit_window":  m.RateLimitWindow,
		"monitor.sweep_interval":     m.SweepInterval,
		"monitor.block_ttl":          m.BlockTTL,
		"monitor.brute_force_window": m.BruteForceWindow,
		"monitor.multi_ip_window":    m.MultiIPWindow,
		"monitor.coordinated_window": m.CoordinatedWindow,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	for name, n := range map[string]int{
		"monitor.brute_force_threshold": m.BruteForceThreshold,
		"monitor.max_ips_per_actor":     m.MaxIPsPerActor,
		"monitor.coordinated_ip_limit":  m.CoordinatedIPLimit,
	} {
		if n <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}
