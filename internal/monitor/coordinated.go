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

// CoordinatedConfig tunes the coordinated attack detector.
type CoordinatedConfig struct {
	// IPLimit is the number of distinct source IPs producing the same event
	// type within the window that the detector tolerates; one more IP
	// constitutes a coordinated attack.
	IPLimit int `json:"ip_limit"`

	// Window is the sliding observation window.
	Window time.Duration `json:"window"`
}

// DefaultCoordinatedConfig returns the standard coordinated attack
// configuration.
func DefaultCoordinatedConfig() CoordinatedConfig {
	return CoordinatedConfig{
		IPLimit: 5,
		Window:  10 * time.Minute,
	}
}

// CoordinatedDetector flags waves of one event type arriving from many
// distinct IP addresses at once, across all actors. Unlike the brute force
// detector it looks platform-wide, catching distributed activity that stays
// under every per-actor threshold.
type CoordinatedDetector struct {
	store   EventStore
	config  CoordinatedConfig
	enabled bool
	mu      sync.RWMutex
}

// NewCoordinatedDetector creates a coordinated attack detector with
// defaults.
func NewCoordinatedDetector(store EventStore) *CoordinatedDetector {
	return &CoordinatedDetector{
		store:   store,
		config:  DefaultCoordinatedConfig(),
		enabled: true,
	}
}

// Type returns the derived event type.
func (d *CoordinatedDetector) Type() EventType {
	return EventSuspiciousActivity
}

// Check inspects the platform-wide IP spread of the incoming event's type.
func (d *CoordinatedDetector) Check(ctx context.Context, event *SecurityEvent) (*SecurityEvent, error) {
	d.mu.RLock()
	enabled := d.enabled
	config := d.config
	d.mu.RUnlock()

	if !enabled || event.Type == "" {
		return nil, nil
	}

	windowStart := event.CreatedAt.Add(-config.Window)

	// Only user-origin events count toward the spread, so the detector's
	// own derived events never feed back into it.
	matches, err := d.store.GetEvents(ctx, EventFilter{
		Type:   event.Type,
		Origin: OriginUser,
		Since:  windowStart,
	})
	if err != nil {
		return nil, fmt.Errorf("list %s events: %w", event.Type, err)
	}

	ips := make(map[string]struct{})
	for _, m := range matches {
		if m.IPAddress != "" {
			ips[m.IPAddress] = struct{}{}
		}
	}
	if len(ips) <= config.IPLimit {
		return nil, nil
	}

	existing, err := d.store.CountEvents(ctx, EventFilter{
		Type:   EventSuspiciousActivity,
		Origin: OriginDetector,
		Since:  windowStart,
	})
	if err != nil {
		return nil, fmt.Errorf("check existing coordinated events: %w", err)
	}
	if existing > 0 {
		return nil, nil
	}

	details, err := json.Marshal(map[string]any{
		"message":        "Coordinated attack detected",
		"event_type":     string(event.Type),
		"distinct_ips":   len(ips),
		"ip_limit":       config.IPLimit,
		"window_minutes": int(config.Window.Minutes()),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal detection details: %w", err)
	}

	return &SecurityEvent{
		ID:        uuid.NewString(),
		Type:      EventSuspiciousActivity,
		Severity:  SeverityHigh,
		ActorID:   event.ActorID,
		IPAddress: event.IPAddress,
		Details:   details,
		Origin:    OriginDetector,
		CreatedAt: time.Now(),
	}, nil
}

// Enabled reports whether this detector is enabled.
func (d *CoordinatedDetector) Enabled() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.enabled
}

// SetEnabled enables or disables the detector.
func (d *CoordinatedDetector) SetEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = enabled
}

// Configure updates the detector configuration.
func (d *CoordinatedDetector) Configure(config CoordinatedConfig) error {
	if config.IPLimit <= 0 {
		return fmt.Errorf("ip_limit must be positive")
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
func (d *CoordinatedDetector) Config() CoordinatedConfig {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.config
}
