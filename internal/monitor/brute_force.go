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

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// BruteForceConfig tunes the brute force detector.
type BruteForceConfig struct {
	// Threshold is the number of failed authentications within the window
	// that constitutes an attack.
	Threshold int `json:"threshold"`

	// Window is the sliding observation window.
	Window time.Duration `json:"window"`
}

// DefaultBruteForceConfig returns the standard brute force configuration.
func DefaultBruteForceConfig() BruteForceConfig {
	return BruteForceConfig{
		Threshold: 5,
		Window:    15 * time.Minute,
	}
}

// BruteForceDetector flags actors accumulating repeated failed
// authentications. It synthesizes at most one derived event per actor per
// window: once a BRUTE_FORCE_ATTACK event exists in the window, further
// failures do not produce another.
type BruteForceDetector struct {
	store   EventStore
	config  BruteForceConfig
	enabled bool
	mu      sync.RWMutex
}

// NewBruteForceDetector creates a brute force detector with defaults.
func NewBruteForceDetector(store EventStore) *BruteForceDetector {
	return &BruteForceDetector{
		store:   store,
		config:  DefaultBruteForceConfig(),
		enabled: true,
	}
}

// Type returns the derived event type.
func (d *BruteForceDetector) Type() EventType {
	return EventBruteForceAttack
}

// Check inspects a failed authentication for brute force patterns.
func (d *BruteForceDetector) Check(ctx context.Context, event *SecurityEvent) (*SecurityEvent, error) {
	d.mu.RLock()
	enabled := d.enabled
	config := d.config
	d.mu.RUnlock()

	// Anonymous failures have no per-actor identity; the coordinated
	// detector covers those.
	if !enabled || event.Type != EventFailedAuthentication || event.ActorID == "" {
		return nil, nil
	}

	windowStart := event.CreatedAt.Add(-config.Window)

	failures, err := d.store.CountEvents(ctx, EventFilter{
		ActorID: event.ActorID,
		Type:    EventFailedAuthentication,
		Since:   windowStart,
	})
	if err != nil {
		return nil, fmt.Errorf("count failed authentications: %w", err)
	}
	if failures < config.Threshold {
		return nil, nil
	}

	// One derived event per actor per window.
	existing, err := d.store.CountEvents(ctx, EventFilter{
		ActorID: event.ActorID,
		Type:    EventBruteForceAttack,
		Origin:  OriginDetector,
		Since:   windowStart,
	})
	if err != nil {
		return nil, fmt.Errorf("check existing brute force events: %w", err)
	}
	if existing > 0 {
		return nil, nil
	}

	details, err := json.Marshal(map[string]any{
		"message":        "Brute force attack detected",
		"failed_count":   failures,
		"threshold":      config.Threshold,
		"window_minutes": int(config.Window.Minutes()),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal detection details: %w", err)
	}

	return &SecurityEvent{
		ID:        uuid.NewString(),
		Type:      EventBruteForceAttack,
		Severity:  SeverityHigh,
		ActorID:   event.ActorID,
		IPAddress: event.IPAddress,
		UserAgent: event.UserAgent,
		Details:   details,
		Origin:    OriginDetector,
		CreatedAt: time.Now(),
	}, nil
}

// Enabled reports whether this detector is enabled.
func (d *BruteForceDetector) Enabled() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.enabled
}

// SetEnabled enables or disables the detector.
func (d *BruteForceDetector) SetEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = enabled
}

// Configure updates the detector configuration.
func (d *BruteForceDetector) Configure(config BruteForceConfig) error {
	if config.Threshold <= 0 {
		return fmt.Errorf("threshold must be positive")
	}
	if config.Window <= 0 {
		return fmt.Errorf("window must be positive")
	}

	d.mu.Lock()
	d.config = config
	d.mu.Unlock()
	return nil
}

// Config returns the current configuration.
func (d *BruteForceDetector) Config() BruteForceConfig {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.config
}
