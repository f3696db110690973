// Castellan - Authorization and Security Monitoring for Content Platforms
// Copyright 2026 Castellan Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castellan-io/castellan

package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/castellan-io/castellan/internal/authz"
	"github.com/castellan-io/castellan/internal/models"
)

func newTestMiddleware(t *testing.T, blocked func(string) bool) *Middleware {
	t.Helper()
	engine, err := authz.NewEngine(authz.DefaultPolicy(), authz.NewMemoryCache(time.Minute), nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(engine.Close)
	return NewMiddleware(nil, engine, testDirectory(), blocked)
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remoteAddr string
		want       string
	}{
		{"203.0.113.9:1234", "203.0.113.9"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"203.0.113.9", "203.0.113.9"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = tt.remoteAddr
		if got := clientIP(r); got != tt.want {
			t.Errorf("clientIP(%q) = %q, want %q", tt.remoteAddr, got, tt.want)
		}
	}
}

func TestBlockedIPGate_NilCheckerPassesThrough(t *testing.T) {
	mw := newTestMiddleware(t, nil)

	called := false
	handler := mw.BlockedIPGate(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if !called {
		t.Error("handler not reached with nil block checker")
	}
}

func TestBlockedIPGate_Rejects(t *testing.T) {
	mw := newTestMiddleware(t, func(ip string) bool { return ip == "203.0.113.9" })

	handler := mw.BlockedIPGate(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Error("handler reached from blocked ip")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.9:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestResolveActor_HeaderTrust(t *testing.T) {
	engine, err := authz.NewEngine(authz.DefaultPolicy(), authz.NewMemoryCache(time.Minute), nil)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	t.Cleanup(engine.Close)
	mw := NewMiddleware(nil, engine, nil, nil)

	var seen *models.Actor
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ActorFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	chain := mw.ResolveActor(inner)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(actorHeader, "user-42")
	req.Header.Set(roleHeader, "editor")
	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if seen == nil || seen.ID != "user-42" || seen.Role != models.RoleEditor {
		t.Errorf("actor = %+v", seen)
	}

	// Missing role header is rejected.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(actorHeader, "user-42")
	rec = httptest.NewRecorder()
	chain.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("missing role status = %d, want 401", rec.Code)
	}
}

func TestRequireMinimumRole(t *testing.T) {
	mw := newTestMiddleware(t, nil)

	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	chain := mw.ResolveActor(mw.RequireMinimumRole(models.RoleEditor)(inner))

	tests := []struct {
		actorID string
		want    int
	}{
		{"viewer-1", http.StatusForbidden},
		{"editor-1", http.StatusNoContent},
		{"admin-1", http.StatusNoContent},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(actorHeader, tt.actorID)
		rec := httptest.NewRecorder()
		chain.ServeHTTP(rec, req)
		if rec.Code != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.actorID, rec.Code, tt.want)
		}
	}
}
