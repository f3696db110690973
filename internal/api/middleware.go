// Castellan - Authorization and Security Monitoring for Content Platforms
// Copyright 2026 Castellan Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castellan-io/castellan

package api

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/castellan-io/castellan/internal/authz"
	"github.com/castellan-io/castellan/internal/models"
)

// ActorDirectory resolves actor ids to actors. Implementations back onto
// the platform's user service.
type ActorDirectory interface {
	Lookup(ctx context.Context, actorID string) (*models.Actor, error)
}

// ActorDirectoryFunc adapts a function to the ActorDirectory interface.
type ActorDirectoryFunc func(ctx context.Context, actorID string) (*models.Actor, error)

// Lookup calls f.
func (f ActorDirectoryFunc) Lookup(ctx context.Context, actorID string) (*models.Actor, error) {
	return f(ctx, actorID)
}

// actorHeader and roleHeader carry the upstream-authenticated identity.
// Authentication happens at the gateway; Castellan trusts these headers.
const (
	actorHeader = "X-Actor-ID"
	roleHeader  = "X-Actor-Role"
)

type contextKey int

const actorContextKey contextKey = iota

// ActorFromContext returns the actor resolved by the actor middleware.
func ActorFromContext(ctx context.Context) (*models.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey).(*models.Actor)
	return actor, ok
}

// MiddlewareConfig holds configuration for the middleware stack.
type MiddlewareConfig struct {
	CORSAllowedOrigins []string
	RateLimitRequests  int
	RateLimitWindow    time.Duration
}

// DefaultMiddlewareConfig returns secure defaults. CORS origins are empty
// so cross-origin access requires explicit configuration.
func DefaultMiddlewareConfig() *MiddlewareConfig {
	return &MiddlewareConfig{
		CORSAllowedOrigins: []string{},
		RateLimitRequests:  300,
		RateLimitWindow:    time.Minute,
	}
}

// Middleware builds the router's middleware stack around the authorization
// engine and the monitor's IP block list.
type Middleware struct {
	config    *MiddlewareConfig
	engine    *authz.Engine
	directory ActorDirectory
	blocked   func(ip string) bool
}

// NewMiddleware creates the middleware factory. The blocked function
// reports whether an IP is on the monitor's block list; nil disables the
// gate. A nil directory makes ResolveActor trust the gateway's role header
// instead of looking actors up.
func NewMiddleware(config *MiddlewareConfig, engine *authz.Engine, directory ActorDirectory, blocked func(ip string) bool) *Middleware {
	if config == nil {
		config = DefaultMiddlewareConfig()
	}
	return &Middleware{
		config:    config,
		engine:    engine,
		directory: directory,
		blocked:   blocked,
	}
}

// CORS returns the CORS handler.
func (m *Middleware) CORS() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: m.config.CORSAllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", actorHeader},
		MaxAge:         86400,
	})
}

// RateLimit returns the per-IP edge rate limiter.
func (m *Middleware) RateLimit() func(http.Handler) http.Handler {
	return httprate.LimitByIP(m.config.RateLimitRequests, m.config.RateLimitWindow)
}

// BlockedIPGate rejects requests from IPs on the monitor's block list with
// 403. Sits after RealIP so RemoteAddr holds the client address.
func (m *Middleware) BlockedIPGate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.blocked != nil {
			if ip := clientIP(r); ip != "" && m.blocked(ip) {
				writeError(w, http.StatusForbidden, "ip address blocked")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// ResolveActor looks up the actor named by the X-Actor-ID header and stores
// it in the request context. Requests without the header, with an unknown
// actor, or with an inactive actor are rejected.
func (m *Middleware) ResolveActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actorID := r.Header.Get(actorHeader)
		if actorID == "" {
			writeError(w, http.StatusUnauthorized, "missing actor")
			return
		}

		var actor *models.Actor
		if m.directory != nil {
			resolved, err := m.directory.Lookup(r.Context(), actorID)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unknown actor")
				return
			}
			actor = resolved
		} else {
			role, err := models.ParseRole(r.Header.Get(roleHeader))
			if err != nil {
				writeError(w, http.StatusUnauthorized, "missing or invalid role")
				return
			}
			actor = &models.Actor{ID: actorID, Role: role, Active: true}
		}
		if !actor.CanAct() {
			writeError(w, http.StatusForbidden, "actor inactive")
			return
		}

		ctx := context.WithValue(r.Context(), actorContextKey, actor)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission rejects requests whose actor lacks the permission.
func (m *Middleware) RequirePermission(resource, action string, scope models.Scope) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok || !m.engine.HasResourceAccess(actor, resource, action, scope) {
				writeError(w, http.StatusForbidden, "permission denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireMinimumRole rejects requests whose actor sits below the role.
func (m *Middleware) RequireMinimumRole(role models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok || !m.engine.HasMinimumRole(actor, role) {
				writeError(w, http.StatusForbidden, "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the client address from RemoteAddr, which chi's RealIP
// middleware has already rewritten when forwarding headers are present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
