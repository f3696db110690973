// Castellan - Authorization and Security Monitoring for Content Platforms
// Copyright 2026 Castellan Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castellan-io/castellan

package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/castellan-io/castellan/internal/logging"
)

// Config holds security monitoring settings. Zero values fall back to the
// defaults from DefaultServiceConfig.
type Config struct {
	// RateLimitMax is the per-actor event-ingestion ceiling within
	// RateLimitWindow.
	RateLimitMax    int
	RateLimitWindow time.Duration

	// SweepInterval is how often expired IP blocks and idle rate-limit
	// counters are evicted.
	SweepInterval time.Duration

	// BlockTTL is how long an IP stays blocked.
	BlockTTL time.Duration

	// RecentEventsLimit bounds the recent-events list on the dashboard.
	RecentEventsLimit int
}

// DefaultServiceConfig returns the standard monitoring configuration.
func DefaultServiceConfig() Config {
	return Config{
		RateLimitMax:      10,
		RateLimitWindow:   time.Minute,
		SweepInterval:     time.Minute,
		BlockTTL:          30 * time.Minute,
		RecentEventsLimit: 20,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultServiceConfig()
	if c.RateLimitMax <= 0 {
		c.RateLimitMax = def.RateLimitMax
	}
	if c.RateLimitWindow <= 0 {
		c.RateLimitWindow = def.RateLimitWindow
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = def.SweepInterval
	}
	if c.BlockTTL <= 0 {
		c.BlockTTL = def.BlockTTL
	}
	if c.RecentEventsLimit <= 0 {
		c.RecentEventsLimit = def.RecentEventsLimit
	}
	return c
}

// Service is the security monitoring service. Every recorded event flows
// through one pipeline: rate limit, persist, forward to audit, evaluate
// alerts, run detectors. Construct explicit instances with NewService; there
// is no package-level singleton.
type Service struct {
	config    Config
	store     EventStore
	audit     AuditForwarder
	limiter   *RateLimiter
	blocklist *BlockList
	alerts    *alertEngine
	detectors []Detector

	destroyed atomic.Bool
	destroyMu sync.Mutex
}

// NewService creates a monitoring service. The audit forwarder may be nil to
// disable forwarding. Detectors default to the standard three (brute force,
// multiple-IP, coordinated attack) when none are given.
func NewService(store EventStore, audit AuditForwarder, config Config, detectors ...Detector) (*Service, error) {
	if store == nil {
		return nil, errors.New("event store is required")
	}
	config = config.withDefaults()

	if len(detectors) == 0 {
		detectors = []Detector{
			NewBruteForceDetector(store),
			NewMultiIPDetector(store),
			NewCoordinatedDetector(store),
		}
	}

	return &Service{
		config:    config,
		store:     store,
		audit:     audit,
		limiter:   NewRateLimiter(config.RateLimitMax, config.RateLimitWindow, 10),
		blocklist: NewBlockList(config.BlockTTL),
		alerts:    newAlertEngine(store, DefaultAlertConfigs()),
		detectors: detectors,
	}, nil
}

// LogSecurityEvent records a security event through the full pipeline and
// returns the persisted event id. Returns ErrRateLimited when the actor is
// over its ingestion limit and ErrDestroyed after Destroy. Pattern detection
// runs only for user-originated events, so derived events cannot trigger
// further detection.
func (s *Service) LogSecurityEvent(ctx context.Context, event *SecurityEvent) (string, error) {
	if s.destroyed.Load() {
		return "", ErrDestroyed
	}
	if event == nil {
		return "", errors.New("event is nil")
	}
	if event.Type == "" {
		return "", errors.New("event type is required")
	}
	// Anonymous events are accepted as long as they carry a source IP, so
	// failed logins for unknown usernames still reach the detectors.
	if event.ActorID == "" && event.IPAddress == "" {
		return "", errors.New("actor id or ip address is required")
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Severity == "" {
		event.Severity = SeverityLow
	}
	if event.Origin == "" {
		event.Origin = OriginUser
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}

	// Derived events consume the same ingestion budget as user events.
	if !s.limiter.Allow(rateLimitKey(event)) {
		rateLimitedTotal.Inc()
		logging.Warn().
			Str("actor_id", event.ActorID).
			Str("ip_address", event.IPAddress).
			Str("type", string(event.Type)).
			Msg("security event rate limited")
		return "", ErrRateLimited
	}

	if err := s.store.Create(ctx, event); err != nil {
		return "", fmt.Errorf("persist security event: %w", err)
	}
	eventsTotal.WithLabelValues(string(event.Type), string(event.Severity), string(event.Origin)).Inc()

	s.forwardToAudit(ctx, event)

	if event.Origin == OriginUser {
		s.runDetectors(ctx, event)
	}

	if err := s.evaluateAlerts(ctx, event); err != nil {
		logging.Error().Err(err).
			Str("type", string(event.Type)).
			Msg("alert evaluation failed")
	}

	return event.ID, nil
}

// rateLimitKey derives the sliding-window key: the actor id when present,
// otherwise the source IP.
func rateLimitKey(event *SecurityEvent) string {
	if event.ActorID != "" {
		return "actor:" + event.ActorID
	}
	return "ip:" + event.IPAddress
}

// forwardToAudit sends a copy of the event to the audit trail when it
// carries an actor id. Failures are logged and never fail the pipeline.
func (s *Service) forwardToAudit(ctx context.Context, event *SecurityEvent) {
	if s.audit == nil || event.ActorID == "" {
		return
	}
	err := s.audit.LogSecurity(ctx, event.ActorID, string(event.Type), event.Details, event.IPAddress, event.UserAgent)
	if err != nil {
		auditForwardErrorsTotal.Inc()
		logging.Warn().Err(err).
			Str("actor_id", event.ActorID).
			Str("type", string(event.Type)).
			Msg("audit forwarding failed")
	}
}

// evaluateAlerts checks alert configurations and executes fired actions.
// The block_ip action is executed only for critical alerts.
func (s *Service) evaluateAlerts(ctx context.Context, event *SecurityEvent) error {
	alert, err := s.alerts.Evaluate(ctx, event)
	if err != nil {
		return err
	}
	if alert == nil {
		return nil
	}

	alertsFiredTotal.WithLabelValues(string(alert.Config.EventType), string(alert.Config.Severity)).Inc()

	for _, action := range alert.Config.Actions {
		switch action {
		case ActionLog:
			logging.Warn().
				Str("event_type", string(alert.Config.EventType)).
				Str("severity", string(alert.Config.Severity)).
				Str("actor_id", event.ActorID).
				Str("ip_address", event.IPAddress).
				Int("count", alert.Count).
				Msg("security alert fired")
		case ActionBlockIP:
			if alert.Config.Severity != SeverityCritical || event.IPAddress == "" {
				continue
			}
			s.BlockIP(event.IPAddress, "alert: "+string(alert.Config.EventType))
		}
	}
	return nil
}

// runDetectors checks the event against every enabled detector. Derived
// events re-enter the pipeline tagged OriginDetector. Detector errors are
// logged and do not fail ingestion.
func (s *Service) runDetectors(ctx context.Context, event *SecurityEvent) {
	for _, d := range s.detectors {
		if !d.Enabled() {
			continue
		}
		derived, err := d.Check(ctx, event)
		if err != nil {
			detectorErrorsTotal.WithLabelValues(string(d.Type())).Inc()
			logging.Error().Err(err).
				Str("detector", string(d.Type())).
				Msg("detector check failed")
			continue
		}
		if derived == nil {
			continue
		}
		if _, err := s.LogSecurityEvent(ctx, derived); err != nil {
			logging.Error().Err(err).
				Str("detector", string(d.Type())).
				Str("derived_type", string(derived.Type)).
				Msg("failed to record derived event")
		}
	}
}

// IsIPBlocked reports whether the IP has an active block.
func (s *Service) IsIPBlocked(ip string) bool {
	return s.blocklist.IsBlocked(ip)
}

// BlockIP blocks the IP for the configured TTL.
func (s *Service) BlockIP(ip, reason string) {
	s.blocklist.Block(ip, reason)
	ipBlocksTotal.Inc()
	logging.Warn().
		Str("ip_address", ip).
		Str("reason", reason).
		Dur("ttl", s.config.BlockTTL).
		Msg("ip address blocked")
}

// UnblockIP removes a block. Unblocking an unlisted IP is a no-op.
func (s *Service) UnblockIP(ip string) {
	s.blocklist.Unblock(ip)
	logging.Info().Str("ip_address", ip).Msg("ip address unblocked")
}

// BlockedIPs returns all active blocks, newest first.
func (s *Service) BlockedIPs() []BlockedIP {
	return s.blocklist.List()
}

// ResolveSecurityEvent marks an event resolved. Returns ErrEventNotFound
// for unknown ids; resolving twice is a no-op.
func (s *Service) ResolveSecurityEvent(ctx context.Context, eventID, resolvedBy string) error {
	if s.destroyed.Load() {
		return ErrDestroyed
	}
	if err := s.store.Resolve(ctx, eventID, resolvedBy); err != nil {
		return err
	}
	logging.Info().
		Str("event_id", eventID).
		Str("resolved_by", resolvedBy).
		Msg("security event resolved")
	return nil
}

// GetEvents returns events matching the filter.
func (s *Service) GetEvents(ctx context.Context, filter EventFilter) ([]SecurityEvent, error) {
	return s.store.GetEvents(ctx, filter)
}

// GetAlertConfigs returns all alert configurations.
func (s *Service) GetAlertConfigs() []AlertConfig {
	return s.alerts.Configs()
}

// UpdateAlertConfig validates and installs an alert configuration.
func (s *Service) UpdateAlertConfig(config AlertConfig) error {
	if s.destroyed.Load() {
		return ErrDestroyed
	}
	if err := s.alerts.Update(config); err != nil {
		return err
	}
	logging.Info().
		Str("event_type", string(config.EventType)).
		Int("threshold", config.Threshold).
		Dur("time_window", config.TimeWindow).
		Bool("enabled", config.Enabled).
		Msg("alert config updated")
	return nil
}

// GetDashboardData aggregates stats, timeline, recent events and active
// blocks for the security console. Days bounds the lookback; non-positive
// values default to seven.
func (s *Service) GetDashboardData(ctx context.Context, days int) (*DashboardData, error) {
	if s.destroyed.Load() {
		return nil, ErrDestroyed
	}
	if days <= 0 {
		days = 7
	}
	since := time.Now().AddDate(0, 0, -days)

	stats, err := s.store.GetStats(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("dashboard stats: %w", err)
	}
	timeline, err := s.store.GetTimeline(ctx, since)
	if err != nil {
		return nil, fmt.Errorf("dashboard timeline: %w", err)
	}
	recent, err := s.store.GetEvents(ctx, EventFilter{
		Since: since,
		Limit: s.config.RecentEventsLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("dashboard recent events: %w", err)
	}

	return &DashboardData{
		Stats:        stats,
		Timeline:     timeline,
		RecentEvents: recent,
		BlockedIPs:   s.blocklist.List(),
		GeneratedAt:  time.Now(),
	}, nil
}

// Sweep evicts expired IP blocks and idle rate-limit counters once.
func (s *Service) Sweep() {
	blocks := s.blocklist.Sweep()
	counters := s.limiter.Sweep()
	if blocks > 0 || counters > 0 {
		logging.Debug().
			Int("expired_blocks", blocks).
			Int("idle_counters", counters).
			Msg("monitor sweep completed")
	}
}

// Serve runs the periodic sweep until the context is cancelled. It
// implements suture.Service.
func (s *Service) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	logging.Info().
		Dur("sweep_interval", s.config.SweepInterval).
		Msg("security monitor started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if s.destroyed.Load() {
				return nil
			}
			s.Sweep()
		}
	}
}

// String implements fmt.Stringer for supervisor logs.
func (s *Service) String() string {
	return "security-monitor"
}

// Destroy tears the service down: new events are rejected with
// ErrDestroyed, then the block list, rate-limit counters, alert cooldowns
// and the event store are cleared. Idempotent; the context cancels the
// store wipe.
func (s *Service) Destroy(ctx context.Context) error {
	s.destroyMu.Lock()
	defer s.destroyMu.Unlock()

	if s.destroyed.Swap(true) {
		return nil
	}

	s.blocklist.Clear()
	s.limiter.Clear()
	s.alerts.Reset()

	// A failed or cancelled teardown is retryable: leave the service live
	// so a later Destroy can finish the job.
	if err := ctx.Err(); err != nil {
		s.destroyed.Store(false)
		return err
	}
	if err := s.store.Clear(ctx); err != nil {
		s.destroyed.Store(false)
		return fmt.Errorf("clear event store: %w", err)
	}

	logging.Info().Msg("security monitor destroyed")
	return nil
}
