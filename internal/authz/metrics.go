// Castellan - Authorization and Security Monitoring for Content Platforms
// Copyright 2026 Castellan Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castellan-io/castellan

package authz

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "castellan",
			Subsystem: "authz",
			Name:      "decisions_total",
			Help:      "Authorization decisions by role, resource, action and outcome.",
		},
		[]string{"role", "resource", "action", "decision"},
	)

	decisionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "castellan",
			Subsystem: "authz",
			Name:      "decision_duration_seconds",
			Help:      "Time spent evaluating a permission check.",
			Buckets:   []float64{0.000001, 0.00001, 0.0001, 0.001, 0.01, 0.1},
		},
		[]string{"cache_hit"},
	)

	cacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "castellan",
			Subsystem: "authz",
			Name:      "cache_hits_total",
			Help:      "Decision cache hits.",
		},
	)

	cacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "castellan",
			Subsystem: "authz",
			Name:      "cache_misses_total",
			Help:      "Decision cache misses.",
		},
	)

	cacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "castellan",
			Subsystem: "authz",
			Name:      "cache_invalidations_total",
			Help:      "Per-actor cache invalidations by reason.",
		},
		[]string{"reason"},
	)
)

// RecordDecision records the outcome and latency of a permission check.
func RecordDecision(role, resource, action string, allowed bool, elapsed time.Duration, cacheHit bool) {
	decision := "deny"
	if allowed {
		decision = "allow"
	}
	decisionsTotal.WithLabelValues(role, resource, action, decision).Inc()
	decisionDuration.WithLabelValues(strconv.FormatBool(cacheHit)).Observe(elapsed.Seconds())
}

// RecordCacheHit records a decision cache hit.
func RecordCacheHit() {
	cacheHits.Inc()
}

// RecordCacheMiss records a decision cache miss.
func RecordCacheMiss() {
	cacheMisses.Inc()
}

// RecordCacheInvalidation records a per-actor cache invalidation.
func RecordCacheInvalidation(reason string) {
	cacheInvalidations.WithLabelValues(reason).Inc()
}
