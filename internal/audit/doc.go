// Castellan - Authorization and Security Monitoring for Content Platforms
// Copyright 2026 Castellan Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castellan-io/castellan

// Package audit provides the best-effort audit trail for security events.
//
// The logger uses a producer-consumer pattern:
//
//	Logger.LogSecurity() -> Record Buffer (chan) -> Async Writer -> Sink
//	                             |                       |
//	                        Non-blocking            Background goroutine
//
// Records are buffered in a channel so callers never block on the sink. A
// full buffer returns an error instead of blocking; the security pipeline
// treats that as a forwarding failure and continues.
//
// Sinks can be wrapped with BreakerSink, which adds a circuit breaker so a
// failing downstream (remote SIEM, slow disk) is shed instead of hammered.
package audit
