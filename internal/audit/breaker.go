// Castellan - Authorization and Security Monitoring for Content Platforms
// Copyright 2026 Castellan Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castellan-io/castellan

package audit

import (
	"context"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/castellan-io/castellan/internal/logging"
)

// BreakerSink wraps a Sink with a circuit breaker. When the downstream sink
// keeps failing the circuit opens and writes fail fast instead of stacking
// timeouts behind a dead audit target.
//
// The breaker uses real time for its interval and timeout calculations; the
// timing governs recovery, not data integrity.
type BreakerSink struct {
	sink Sink
	cb   *gobreaker.CircuitBreaker[struct{}]
}

// NewBreakerSink wraps the sink with a circuit breaker:
//   - 3 concurrent requests allowed in half-open state
//   - counts reset after 1 minute in closed state
//   - 30 second wait before probing an open circuit
//   - opens after 60% failure rate with at least 10 requests
func NewBreakerSink(sink Sink) *BreakerSink {
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "audit-sink",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("audit sink circuit breaker state change")
		},
	})
	return &BreakerSink{sink: sink, cb: cb}
}

// Write forwards to the wrapped sink under breaker protection.
func (b *BreakerSink) Write(ctx context.Context, record *Record) error {
	_, err := b.cb.Execute(func() (struct{}, error) {
		return struct{}{}, b.sink.Write(ctx, record)
	})
	return err
}

// State returns the current breaker state for observability.
func (b *BreakerSink) State() gobreaker.State {
	return b.cb.State()
}
