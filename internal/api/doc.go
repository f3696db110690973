// Castellan - Authorization and Security Monitoring for Content Platforms
// Copyright 2026 Castellan Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castellan-io/castellan

// Package api exposes the authorization engine and security monitor over
// HTTP using the Chi router.
//
// Request flow:
//
//	RealIP -> Recoverer -> CORS -> per-IP rate limit -> blocked-IP gate
//	       -> actor resolution -> permission middleware -> handler
//
// The actor is resolved from the X-Actor-ID header through an
// ActorDirectory. Authentication itself happens upstream (reverse proxy or
// gateway); this layer only authorizes.
package api
