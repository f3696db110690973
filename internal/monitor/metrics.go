// Castellan - Authorization and Security Monitoring for Content Platforms
// Copyright 2026 Castellan Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castellan-io/castellan

package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "castellan",
			Subsystem: "monitor",
			Name:      "events_total",
			Help:      "Security events recorded by type, severity and origin.",
		},
		[]string{"type", "severity", "origin"},
	)

	rateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "castellan",
			Subsystem: "monitor",
			Name:      "rate_limited_total",
			Help:      "Security events rejected by the per-actor rate limit.",
		},
	)

	alertsFiredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "castellan",
			Subsystem: "monitor",
			Name:      "alerts_fired_total",
			Help:      "Alerts fired by event type and severity.",
		},
		[]string{"event_type", "severity"},
	)

	ipBlocksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "castellan",
			Subsystem: "monitor",
			Name:      "ip_blocks_total",
			Help:      "IP addresses blocked.",
		},
	)

	detectorErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "castellan",
			Subsystem: "monitor",
			Name:      "detector_errors_total",
			Help:      "Detector check failures by detector type.",
		},
		[]string{"detector"},
	)

	auditForwardErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "castellan",
			Subsystem: "monitor",
			Name:      "audit_forward_errors_total",
			Help:      "Best-effort audit forwarding failures.",
		},
	)
)
