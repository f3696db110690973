// Castellan - Authorization and Security Monitoring for Content Platforms
// Copyright 2026 Castellan Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castellan-io/castellan

// Package main is the entry point for the Castellan server.
//
// Castellan provides role-based authorization decisions and security event
// monitoring for content platforms. The server initializes components in the
// following order:
//
//  1. Configuration: Koanf v2 layered sources (env > config.yaml > defaults)
//  2. Authorization engine: immutable policy plus a TTL decision cache
//     (in-memory or BadgerDB, selected by AUTHZ_CACHE_BACKEND)
//  3. Event store: in-memory or BadgerDB (MONITOR_STORE_BACKEND)
//  4. Audit logger: async buffered writer behind a circuit breaker
//  5. Security monitor: per-actor rate limiting, detectors, alerting,
//     IP block list
//  6. HTTP server: REST API with Prometheus metrics
//
// The monitor sweep loop and the HTTP server run under a suture supervisor
// tree and shut down gracefully on SIGINT and SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dgraph-io/badger/v4"

	"github.com/castellan-io/castellan/internal/api"
	"github.com/castellan-io/castellan/internal/audit"
	"github.com/castellan-io/castellan/internal/authz"
	"github.com/castellan-io/castellan/internal/config"
	"github.com/castellan-io/castellan/internal/logging"
	"github.com/castellan-io/castellan/internal/monitor"
	"github.com/castellan-io/castellan/internal/supervisor"
)

func main() {
	// Load configuration first to get logging settings.
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("authz_cache", cfg.Authz.CacheBackend).
		Str("event_store", cfg.Monitor.StoreBackend).
		Int("port", cfg.Server.Port).
		Msg("Starting Castellan")

	cache, closeCache, err := buildDecisionCache(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize decision cache")
	}
	defer closeCache()

	engine, err := authz.NewEngine(authz.DefaultPolicy(), cache, nil)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize authorization engine")
	}
	defer engine.Close()

	store, closeStore, err := buildEventStore(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize event store")
	}
	defer closeStore()

	auditLogger := audit.NewLogger(audit.NewBreakerSink(audit.NewLogSink()), nil)
	defer func() {
		if err := auditLogger.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing audit logger")
		}
	}()

	detectors, err := buildDetectors(&cfg.Monitor, store)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to configure detectors")
	}

	svc, err := monitor.NewService(store, auditLogger, monitor.Config{
		RateLimitMax:      cfg.Monitor.RateLimitMax,
		RateLimitWindow:   cfg.Monitor.RateLimitWindow,
		SweepInterval:     cfg.Monitor.SweepInterval,
		BlockTTL:          cfg.Monitor.BlockTTL,
		RecentEventsLimit: cfg.Monitor.RecentEventsLimit,
	}, detectors...)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize security monitor")
	}

	handler := api.NewHandler(engine, svc)
	mw := api.NewMiddleware(&api.MiddlewareConfig{
		RateLimitRequests: cfg.Server.RateLimitRequests,
		RateLimitWindow:   cfg.Server.RateLimitWindow,
	}, engine, nil, svc.IsIPBlocked)
	server := api.NewServer(
		fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		api.NewRouter(handler, mw),
	)

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddMonitoringService(svc)
	tree.AddAPIService(server)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor exited with error")
	}
	logging.Info().Msg("Shutdown complete")
}

// buildDecisionCache constructs the authorization decision cache selected by
// configuration. The returned closer releases backend resources.
func buildDecisionCache(cfg *config.Config) (authz.DecisionCache, func(), error) {
	if cfg.Authz.CacheBackend == config.BackendBadger {
		db, err := openBadger(cfg.Authz.BadgerPath)
		if err != nil {
			return nil, nil, err
		}
		cache := authz.NewBadgerCache(db, cfg.Authz.CacheTTL)
		return cache, func() {
			cache.Close()
			if err := db.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing authz badger db")
			}
		}, nil
	}
	cache := authz.NewMemoryCache(cfg.Authz.CacheTTL)
	return cache, cache.Close, nil
}

// buildEventStore constructs the security event store selected by
// configuration.
func buildEventStore(cfg *config.Config) (monitor.EventStore, func(), error) {
	if cfg.Monitor.StoreBackend == config.BackendBadger {
		db, err := openBadger(cfg.Monitor.BadgerPath)
		if err != nil {
			return nil, nil, err
		}
		return monitor.NewBadgerEventStore(db), func() {
			if err := db.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing event store badger db")
			}
		}, nil
	}
	return monitor.NewMemoryEventStore(), func() {}, nil
}

// buildDetectors constructs the standard detectors with thresholds from
// configuration.
func buildDetectors(cfg *config.MonitorConfig, store monitor.EventStore) ([]monitor.Detector, error) {
	bruteForce := monitor.NewBruteForceDetector(store)
	if err := bruteForce.Configure(monitor.BruteForceConfig{
		Threshold: cfg.BruteForceThreshold,
		Window:    cfg.BruteForceWindow,
	}); err != nil {
		return nil, fmt.Errorf("brute force detector: %w", err)
	}

	multiIP := monitor.NewMultiIPDetector(store)
	if err := multiIP.Configure(monitor.MultiIPConfig{
		MaxIPs: cfg.MaxIPsPerActor,
		Window: cfg.MultiIPWindow,
	}); err != nil {
		return nil, fmt.Errorf("multi-ip detector: %w", err)
	}

	coordinated := monitor.NewCoordinatedDetector(store)
	if err := coordinated.Configure(monitor.CoordinatedConfig{
		IPLimit: cfg.CoordinatedIPLimit,
		Window:  cfg.CoordinatedWindow,
	}); err != nil {
		return nil, fmt.Errorf("coordinated detector: %w", err)
	}

	return []monitor.Detector{bruteForce, multiIP, coordinated}, nil
}

// openBadger opens a BadgerDB instance with zerolog-friendly quiet options.
func openBadger(path string) (*badger.DB, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	return db, nil
}
