// Castellan - Authorization and Security Monitoring for Content Platforms
// Copyright 2026 Castellan Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castellan-io/castellan

package monitor

import (
	"context"
	"errors"
	"time"

	"github.com/goccy/go-json"
)

// Sentinel errors returned by the service and its stores.
var (
	// ErrRateLimited is returned when an actor exceeds the per-actor event
	// ingestion limit. Callers translate it to a 429.
	ErrRateLimited = errors.New("security event rate limit exceeded")

	// ErrEventNotFound is returned when resolving an unknown event.
	ErrEventNotFound = errors.New("security event not found")

	// ErrDestroyed is returned from operations on a destroyed service.
	ErrDestroyed = errors.New("monitor service destroyed")
)

// EventType identifies a class of security event.
type EventType string

// Event types. The first group is recorded by callers; the second group is
// synthesized by detectors.
const (
	EventFailedAuthentication EventType = "FAILED_AUTHENTICATION"
	EventPermissionDenied     EventType = "PERMISSION_DENIED"
	EventSuspiciousActivity   EventType = "SUSPICIOUS_ACTIVITY"
	EventDataAccess           EventType = "DATA_ACCESS"
	EventConfigChange         EventType = "CONFIG_CHANGE"

	EventBruteForceAttack EventType = "BRUTE_FORCE_ATTACK"
	EventMultipleIPAccess EventType = "MULTIPLE_IP_ACCESS"
)

// Severity ranks the impact of an event or alert.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return true
	}
	return false
}

// Origin records where an event came from. Detector-originated events skip
// pattern analysis so detection can never recurse.
type Origin string

const (
	OriginUser     Origin = "user"
	OriginDetector Origin = "detector"
)

// SecurityEvent is a single recorded security occurrence.
type SecurityEvent struct {
	ID         string          `json:"id"`
	Type       EventType       `json:"type"`
	Severity   Severity        `json:"severity"`
	ActorID    string          `json:"actor_id"`
	IPAddress  string          `json:"ip_address,omitempty"`
	UserAgent  string          `json:"user_agent,omitempty"`
	Details    json.RawMessage `json:"details,omitempty"`
	Origin     Origin          `json:"origin"`
	CreatedAt  time.Time       `json:"created_at"`
	Resolved   bool            `json:"resolved"`
	ResolvedBy string          `json:"resolved_by,omitempty"`
	ResolvedAt *time.Time      `json:"resolved_at,omitempty"`
}

// AlertAction is a response an alert configuration can trigger.
type AlertAction string

const (
	ActionLog     AlertAction = "log"
	ActionBlockIP AlertAction = "block_ip"
)

// AlertConfig describes when and how to alert on an event type. An alert
// fires when at least Threshold events of the type arrive within TimeWindow,
// at most once per Cooldown.
type AlertConfig struct {
	EventType  EventType     `json:"event_type"`
	Enabled    bool          `json:"enabled"`
	Threshold  int           `json:"threshold"`
	TimeWindow time.Duration `json:"time_window"`
	Severity   Severity      `json:"severity"`
	Actions    []AlertAction `json:"actions"`
	Cooldown   time.Duration `json:"cooldown"`
}

// Validate checks an alert configuration for use with UpdateAlertConfig.
func (c AlertConfig) Validate() error {
	if c.EventType == "" {
		return errors.New("event_type is required")
	}
	if c.Threshold < 1 {
		return errors.New("threshold must be at least 1")
	}
	if c.TimeWindow <= 0 {
		return errors.New("time_window must be positive")
	}
	if !c.Severity.Valid() {
		return errors.New("invalid severity")
	}
	for _, a := range c.Actions {
		if a != ActionLog && a != ActionBlockIP {
			return errors.New("unknown alert action: " + string(a))
		}
	}
	return nil
}

// EventFilter selects events from a store. Zero fields match everything.
type EventFilter struct {
	ActorID string
	Type    EventType
	Origin  Origin
	Since   time.Time
	Until   time.Time
	Limit   int
}

// EventStats aggregates event counts for dashboards.
type EventStats struct {
	Total      int               `json:"total"`
	Unresolved int               `json:"unresolved"`
	ByType     map[EventType]int `json:"by_type"`
	BySeverity map[Severity]int  `json:"by_severity"`
}

// TimelineBucket is one day of event counts.
type TimelineBucket struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Count int    `json:"count"`
}

// DashboardData is the aggregate view served to the security console.
type DashboardData struct {
	Stats        EventStats       `json:"stats"`
	Timeline     []TimelineBucket `json:"timeline"`
	RecentEvents []SecurityEvent  `json:"recent_events"`
	BlockedIPs   []BlockedIP      `json:"blocked_ips"`
	GeneratedAt  time.Time        `json:"generated_at"`
}

// BlockedIP is one entry in the IP block list.
type BlockedIP struct {
	IPAddress string    `json:"ip_address"`
	Reason    string    `json:"reason"`
	BlockedAt time.Time `json:"blocked_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// EventStore persists security events. Implementations must be safe for
// concurrent use.
type EventStore interface {
	// Create persists an event.
	Create(ctx context.Context, event *SecurityEvent) error

	// GetEvents returns events matching the filter, newest first.
	GetEvents(ctx context.Context, filter EventFilter) ([]SecurityEvent, error)

	// CountEvents returns the number of events matching the filter.
	CountEvents(ctx context.Context, filter EventFilter) (int, error)

	// CountDistinctIPs returns the distinct non-empty IP addresses seen for
	// the actor since the given time.
	CountDistinctIPs(ctx context.Context, actorID string, since time.Time) (int, error)

	// GetStats aggregates events created since the given time.
	GetStats(ctx context.Context, since time.Time) (EventStats, error)

	// GetTimeline returns per-day counts for events since the given time.
	GetTimeline(ctx context.Context, since time.Time) ([]TimelineBucket, error)

	// Resolve marks an event resolved. Returns ErrEventNotFound for unknown
	// ids; resolving an already-resolved event is a no-op.
	Resolve(ctx context.Context, eventID, resolvedBy string) error

	// Clear removes all events.
	Clear(ctx context.Context) error
}

// AuditForwarder receives a copy of every persisted event. Forwarding is
// best-effort: the pipeline logs forwarder errors and continues.
type AuditForwarder interface {
	LogSecurity(ctx context.Context, actorID string, category string, details json.RawMessage, ip, userAgent string) error
}

// Detector inspects a persisted user-originated event and may synthesize a
// derived event describing a detected pattern.
type Detector interface {
	// Type returns the event type this detector synthesizes.
	Type() EventType

	// Check inspects the event and returns a derived event, or nil when no
	// pattern is detected.
	Check(ctx context.Context, event *SecurityEvent) (*SecurityEvent, error)

	// Enabled reports whether this detector is active.
	Enabled() bool

	// SetEnabled enables or disables the detector.
	SetEnabled(enabled bool)
}
