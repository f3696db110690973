// Castellan - Authorization and Security Monitoring for Content Platforms
// Copyright 2026 Castellan Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castellan-io/castellan

// Package models defines the core domain types shared by the authorization
// engine and the security monitoring service.
//
// Key Structures:
//   - Role: ordered role enum (viewer < editor < admin)
//   - Permission: a requested {resource, action, scope} triple
//   - Grant: a policy entry, either a standard grant or the admin wildcard
//   - Actor: the subject record supplied by the actor directory
//
// The role ordering drives minimum-role checks; exact-role checks ignore it.
// Grants use a tagged variant instead of string wildcards so that the
// administrator catch-all is a distinct case rather than a "*" resource
// matched by string comparison.
package models
