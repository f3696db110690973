// Castellan - Authorization and Security Monitoring for Content Platforms
// Copyright 2026 Castellan Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castellan-io/castellan

package audit

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/castellan-io/castellan/internal/logging"
)

// Record is one audit trail entry.
type Record struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	ActorID   string          `json:"actor_id"`
	Category  string          `json:"category"`
	Details   json.RawMessage `json:"details,omitempty"`
	IPAddress string          `json:"ip_address,omitempty"`
	UserAgent string          `json:"user_agent,omitempty"`
}

// Sink receives audit records. Implementations must be safe for concurrent
// use.
type Sink interface {
	Write(ctx context.Context, record *Record) error
}

// LogSink writes audit records to the structured log. It is the default
// sink for single-node deployments where the log aggregator is the audit
// trail.
type LogSink struct{}

// NewLogSink creates a log-backed audit sink.
func NewLogSink() *LogSink {
	return &LogSink{}
}

// Write emits the record as a structured log line.
func (s *LogSink) Write(_ context.Context, record *Record) error {
	event := logging.Info().
		Str("audit_id", record.ID).
		Time("timestamp", record.Timestamp).
		Str("actor_id", record.ActorID).
		Str("category", record.Category).
		Str("ip_address", record.IPAddress).
		Str("user_agent", record.UserAgent)
	if len(record.Details) > 0 {
		event = event.RawJSON("details", record.Details)
	}
	event.Msg("audit record")
	return nil
}
