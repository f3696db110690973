// Castellan - Authorization and Security Monitoring for Content Platforms
// Copyright 2026 Castellan Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castellan-io/castellan

// Package monitor implements the security monitoring service.
//
// The service ingests security events through a single pipeline: per-actor
// rate limiting, persistence, best-effort audit forwarding, alert
// evaluation, and pattern detection. Detectors synthesize derived events
// (brute force, multiple-IP access, coordinated attacks) that re-enter the
// pipeline tagged with a detector origin so they are never re-analyzed.
//
// A background sweep evicts expired IP blocks and idle rate-limit counters.
// Destroy stops the sweep and clears all in-memory state; it is idempotent
// and safe to call concurrently with event ingestion.
package monitor
