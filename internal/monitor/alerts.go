// Castellan - Authorization and Security Monitoring for Content Platforms
// Copyright 2026 Castellan Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castellan-io/castellan

package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// alertEngine evaluates persisted events against alert configurations and
// enforces per-event-type cooldowns.
type alertEngine struct {
	store EventStore

	mu        sync.RWMutex
	configs   map[EventType]AlertConfig
	lastFired map[EventType]time.Time
}

func newAlertEngine(store EventStore, configs []AlertConfig) *alertEngine {
	e := &alertEngine{
		store:     store,
		configs:   make(map[EventType]AlertConfig, len(configs)),
		lastFired: make(map[EventType]time.Time),
	}
	for _, c := range configs {
		e.configs[c.EventType] = c
	}
	return e
}

// DefaultAlertConfigs returns the standard alert table. Derived brute-force
// events alert on first occurrence and trigger an IP block; the remaining
// types alert on repetition and only log.
func DefaultAlertConfigs() []AlertConfig {
	return []AlertConfig{
		{
			EventType:  EventBruteForceAttack,
			Enabled:    true,
			Threshold:  1,
			TimeWindow: 15 * time.Minute,
			Severity:   SeverityCritical,
			Actions:    []AlertAction{ActionLog, ActionBlockIP},
			Cooldown:   30 * time.Minute,
		},
		{
			EventType:  EventMultipleIPAccess,
			Enabled:    true,
			Threshold:  1,
			TimeWindow: 10 * time.Minute,
			Severity:   SeverityHigh,
			Actions:    []AlertAction{ActionLog},
			Cooldown:   30 * time.Minute,
		},
		{
			EventType:  EventFailedAuthentication,
			Enabled:    true,
			Threshold:  10,
			TimeWindow: 5 * time.Minute,
			Severity:   SeverityMedium,
			Actions:    []AlertAction{ActionLog},
			Cooldown:   15 * time.Minute,
		},
		{
			EventType:  EventPermissionDenied,
			Enabled:    true,
			Threshold:  20,
			TimeWindow: 5 * time.Minute,
			Severity:   SeverityMedium,
			Actions:    []AlertAction{ActionLog},
			Cooldown:   15 * time.Minute,
		},
		{
			EventType:  EventSuspiciousActivity,
			Enabled:    true,
			Threshold:  3,
			TimeWindow: 10 * time.Minute,
			Severity:   SeverityHigh,
			Actions:    []AlertAction{ActionLog},
			Cooldown:   30 * time.Minute,
		},
	}
}

// Alert is the outcome of a fired alert configuration.
type Alert struct {
	Config  AlertConfig
	Event   *SecurityEvent
	Count   int
	FiredAt time.Time
}

// Evaluate checks whether the event's type crosses its configured threshold
// within the window. Returns nil when no configuration matches, the
// configuration is disabled, the threshold is not met, or the cooldown has
// not elapsed.
func (e *alertEngine) Evaluate(ctx context.Context, event *SecurityEvent) (*Alert, error) {
	e.mu.RLock()
	config, ok := e.configs[event.Type]
	last := e.lastFired[event.Type]
	e.mu.RUnlock()

	if !ok || !config.Enabled {
		return nil, nil
	}

	now := time.Now()
	if !last.IsZero() && now.Sub(last) < config.Cooldown {
		return nil, nil
	}

	count, err := e.store.CountEvents(ctx, EventFilter{
		Type:  event.Type,
		Since: now.Add(-config.TimeWindow),
	})
	if err != nil {
		return nil, fmt.Errorf("count events for alert: %w", err)
	}
	if count < config.Threshold {
		return nil, nil
	}

	e.mu.Lock()
	// Re-check under the write lock so concurrent evaluations of the same
	// type cannot both fire inside one cooldown.
	if last := e.lastFired[event.Type]; !last.IsZero() && now.Sub(last) < config.Cooldown {
		e.mu.Unlock()
		return nil, nil
	}
	e.lastFired[event.Type] = now
	e.mu.Unlock()

	return &Alert{
		Config:  config,
		Event:   event,
		Count:   count,
		FiredAt: now,
	}, nil
}

// Configs returns all alert configurations.
func (e *alertEngine) Configs() []AlertConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()

	configs := make([]AlertConfig, 0, len(e.configs))
	for _, c := range e.configs {
		configs = append(configs, c)
	}
	return configs
}

// Config returns the configuration for an event type.
func (e *alertEngine) Config(t EventType) (AlertConfig, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.configs[t]
	return c, ok
}

// Update validates and installs an alert configuration, replacing any
// existing one for the same event type. The cooldown timer for the type is
// reset so the new thresholds apply immediately.
func (e *alertEngine) Update(config AlertConfig) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid alert config: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.configs[config.EventType] = config
	delete(e.lastFired, config.EventType)
	return nil
}

// Reset clears cooldown state.
func (e *alertEngine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastFired = make(map[EventType]time.Time)
}
