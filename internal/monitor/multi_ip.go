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

// MultiIPConfig tunes the multiple-IP access detector.
type MultiIPConfig struct {
	// MaxIPs is the number of distinct IPs an actor may appear from within
	// the window before a derived event fires.
	MaxIPs int `json:"max_ips"`

	// Window is the sliding observation window.
	Window time.Duration `json:"window"`
}

// DefaultMultiIPConfig returns the standard multiple-IP configuration.
func DefaultMultiIPConfig() MultiIPConfig {
	return MultiIPConfig{
		MaxIPs: 3,
		Window: 10 * time.Minute,
	}
}

// MultiIPDetector flags a single actor appearing from too many distinct IP
// addresses in a short window. This can indicate credential sharing or a
// hijacked session.
type MultiIPDetector struct {
	store   EventStore
	config  MultiIPConfig
	enabled bool
	mu      sync.RWMutex
}

// NewMultiIPDetector creates a multiple-IP detector with defaults.
func NewMultiIPDetector(store EventStore) *MultiIPDetector {
	return &MultiIPDetector{
		store:   store,
		config:  DefaultMultiIPConfig(),
		enabled: true,
	}
}

// Type returns the derived event type.
func (d *MultiIPDetector) Type() EventType {
	return EventMultipleIPAccess
}

// Check inspects the event's actor for distinct-IP spread.
func (d *MultiIPDetector) Check(ctx context.Context, event *SecurityEvent) (*SecurityEvent, error) {
	d.mu.RLock()
	enabled := d.enabled
	config := d.config
	d.mu.RUnlock()

	if !enabled || event.IPAddress == "" || event.ActorID == "" {
		return nil, nil
	}

	windowStart := event.CreatedAt.Add(-config.Window)

	distinct, err := d.store.CountDistinctIPs(ctx, event.ActorID, windowStart)
	if err != nil {
		return nil, fmt.Errorf("count distinct ips: %w", err)
	}
	if distinct <= config.MaxIPs {
		return nil, nil
	}

	existing, err := d.store.CountEvents(ctx, EventFilter{
		ActorID: event.ActorID,
		Type:    EventMultipleIPAccess,
		Origin:  OriginDetector,
		Since:   windowStart,
	})
	if err != nil {
		return nil, fmt.Errorf("check existing multiple-ip events: %w", err)
	}
	if existing > 0 {
		return nil, nil
	}

	details, err := json.Marshal(map[string]any{
		"message":        "Multiple IP access detected",
		"distinct_ips":   distinct,
		"max_ips":        config.MaxIPs,
		"window_minutes": int(config.Window.Minutes()),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal detection details: %w", err)
	}

	return &SecurityEvent{
		ID:        uuid.NewString(),
		Type:      EventMultipleIPAccess,
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
func (d *MultiIPDetector) Enabled() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.enabled
}

// SetEnabled enables or disables the detector.
func (d *MultiIPDetector) SetEnabled(enabled bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.enabled = enabled
}

// Configure updates the detector configuration.
func (d *MultiIPDetector) Configure(config MultiIPConfig) error {
	if config.MaxIPs <= 0 {
		return fmt.Errorf("max_ips must be positive")
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
func (d *MultiIPDetector) Config() MultiIPConfig {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.config
}
