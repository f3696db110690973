// Castellan - Authorization and Security Monitoring for Content Platforms
// Copyright 2026 Castellan Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castellan-io/castellan

// Package authz implements the permission authorization engine.
//
// The engine answers the question "may this actor perform {resource, action,
// scope}?" against an immutable role policy, with a TTL decision cache in
// front of policy evaluation. It never returns an error from a permission
// check: every failure mode (nil actor, inactive actor, policy mismatch)
// collapses to a denial.
//
// # Components
//
//   - Policy: immutable Role -> []Grant mapping, built once at startup
//   - DecisionCache: pluggable {get, set, invalidate-actor} contract with an
//     in-process implementation (MemoryCache) and a BadgerDB-backed one
//     (BadgerCache), selected at construction time
//   - Engine: cache-first evaluation plus the secondary operations built on
//     the same primitive (route access, per-item filtering, role checks)
//
// # Cache invalidation
//
// The engine has no notification mechanism: callers must invoke
// InvalidateUserCache whenever an actor's role changes or the actor is
// deactivated. Stale allows persist for at most one cache TTL.
//
// # Usage
//
//	engine, err := authz.NewEngine(authz.DefaultPolicy(), cache, nil)
//	if err != nil { ... }
//	defer engine.Close()
//
//	if !engine.HasPermission(actor, models.Permission{
//		Resource: "products", Action: "update", Scope: models.ScopeOwn,
//	}) {
//		// deny with 403
//	}
package authz
