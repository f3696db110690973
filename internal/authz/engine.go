// Castellan - Authorization and Security Monitoring for Content Platforms
// Copyright 2026 Castellan Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castellan-io/castellan

package authz

import (
	"errors"
	"time"

	"github.com/castellan-io/castellan/internal/logging"
	"github.com/castellan-io/castellan/internal/models"
)

// Config holds engine configuration.
type Config struct {
	// CacheEnabled enables decision caching.
	CacheEnabled bool

	// Routes is the route->required-permission table used by
	// CanUserAccessRoute. Nil uses DefaultRoutes().
	Routes []RouteRule
}

// DefaultConfig returns default engine configuration.
func DefaultConfig() *Config {
	return &Config{
		CacheEnabled: true,
	}
}

// Engine evaluates permission requests against an immutable policy,
// consulting and populating a decision cache. It is an explicit instance:
// construct one at process start and pass it by reference to consumers.
type Engine struct {
	policy *Policy
	cache  DecisionCache
	routes []RouteRule
	config *Config
}

// NewEngine creates an authorization engine. The cache may be nil only when
// caching is disabled in the config.
func NewEngine(policy *Policy, cache DecisionCache, config *Config) (*Engine, error) {
	if policy == nil {
		return nil, errors.New("policy is required")
	}
	if config == nil {
		config = DefaultConfig()
	}
	if config.CacheEnabled && cache == nil {
		return nil, errors.New("cache is required when caching is enabled")
	}

	routes := config.Routes
	if routes == nil {
		routes = DefaultRoutes()
	}

	return &Engine{
		policy: policy,
		cache:  cache,
		routes: routes,
		config: config,
	}, nil
}

// HasPermission reports whether the actor may perform the requested
// permission. It never returns an error: a nil or inactive actor is always
// denied, and nothing is written to the cache for such actors.
func (e *Engine) HasPermission(actor *models.Actor, perm models.Permission) bool {
	start := time.Now()

	if !actor.CanAct() {
		RecordDecision("none", perm.Resource, perm.Action, false, time.Since(start), false)
		return false
	}

	if e.config.CacheEnabled {
		if allowed, ok := e.cache.Get(actor.ID, perm); ok {
			RecordCacheHit()
			RecordDecision(actor.Role.String(), perm.Resource, perm.Action, allowed, time.Since(start), true)
			return allowed
		}
		RecordCacheMiss()
	}

	allowed := e.policy.Allows(actor.Role, perm)

	if e.config.CacheEnabled {
		e.cache.Set(actor.ID, perm, allowed)
	}

	RecordDecision(actor.Role.String(), perm.Resource, perm.Action, allowed, time.Since(start), false)

	if !allowed {
		logging.Debug().
			Str("actor_id", actor.ID).
			Str("role", actor.Role.String()).
			Str("resource", perm.Resource).
			Str("action", perm.Action).
			Str("scope", string(perm.Scope)).
			Msg("permission denied")
	}

	return allowed
}

// HasResourceAccess is a convenience wrapper around HasPermission.
func (e *Engine) HasResourceAccess(actor *models.Actor, resource, action string, scope models.Scope) bool {
	return e.HasPermission(actor, models.Permission{
		Resource: resource,
		Action:   action,
		Scope:    scope,
	})
}

// HasMinimumRole reports whether the actor's role is at or above the given
// role in the hierarchy. Inactive actors always fail.
func (e *Engine) HasMinimumRole(actor *models.Actor, role models.Role) bool {
	return actor.CanAct() && actor.Role.AtLeast(role)
}

// HasExactRole reports whether the actor holds exactly the given role,
// ignoring the hierarchy.
func (e *Engine) HasExactRole(actor *models.Actor, role models.Role) bool {
	return actor.CanAct() && actor.Role == role
}

// InvalidateUserCache removes every cached decision for the actor. Callers
// must invoke this on role change or deactivation; the engine has no
// notification mechanism of its own.
func (e *Engine) InvalidateUserCache(actorID string) {
	if !e.config.CacheEnabled {
		return
	}
	e.cache.InvalidateActor(actorID)
	RecordCacheInvalidation("role_change")
}

// Policy returns the engine's policy for read-only inspection.
func (e *Engine) Policy() *Policy {
	return e.policy
}

// Close releases the decision cache's background resources. Idempotent.
func (e *Engine) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}

// FilterByPermissions returns the items the actor may act on: an item is
// visible if the actor holds the all-scope grant for its resource and
// action, or holds the own-scope grant and owns the item.
func FilterByPermissions[T any](
	e *Engine,
	actor *models.Actor,
	items []T,
	action string,
	resourceOf func(T) string,
	ownerOf func(T) string,
) []T {
	if !actor.CanAct() {
		return nil
	}

	filtered := make([]T, 0, len(items))
	for _, item := range items {
		resource := resourceOf(item)
		switch {
		case e.HasResourceAccess(actor, resource, action, models.ScopeAll):
			filtered = append(filtered, item)
		case ownerOf(item) == actor.ID &&
			e.HasResourceAccess(actor, resource, action, models.ScopeOwn):
			filtered = append(filtered, item)
		}
	}
	return filtered
}
