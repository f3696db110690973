// Castellan - Authorization and Security Monitoring for Content Platforms
// Copyright 2026 Castellan Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castellan-io/castellan

package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/castellan-io/castellan/internal/authz"
	"github.com/castellan-io/castellan/internal/models"
	"github.com/castellan-io/castellan/internal/monitor"
)

// Handler serves the authorization and security monitoring endpoints.
type Handler struct {
	engine  *authz.Engine
	monitor *monitor.Service
}

// NewHandler creates the API handler.
func NewHandler(engine *authz.Engine, mon *monitor.Service) *Handler {
	return &Handler{engine: engine, monitor: mon}
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// createEventRequest is the ingestion payload. The origin is always forced
// to user: derived events are synthesized internally, never accepted over
// the wire.
type createEventRequest struct {
	Type      monitor.EventType `json:"type"`
	Severity  monitor.Severity  `json:"severity,omitempty"`
	ActorID   string            `json:"actor_id"`
	IPAddress string            `json:"ip_address,omitempty"`
	UserAgent string            `json:"user_agent,omitempty"`
	Details   json.RawMessage   `json:"details,omitempty"`
}

// CreateSecurityEvent records a security event.
func (h *Handler) CreateSecurityEvent(w http.ResponseWriter, r *http.Request) {
	var req createEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	event := &monitor.SecurityEvent{
		Type:      req.Type,
		Severity:  req.Severity,
		ActorID:   req.ActorID,
		IPAddress: req.IPAddress,
		UserAgent: req.UserAgent,
		Details:   req.Details,
		Origin:    monitor.OriginUser,
	}

	_, err := h.monitor.LogSecurityEvent(r.Context(), event)
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, event)
	case errors.Is(err, monitor.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, monitor.ErrDestroyed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusBadRequest, err.Error())
	}
}

// ListSecurityEvents returns events matching the query filters.
func (h *Handler) ListSecurityEvents(w http.ResponseWriter, r *http.Request) {
	filter := monitor.EventFilter{
		ActorID: r.URL.Query().Get("actor_id"),
		Type:    monitor.EventType(r.URL.Query().Get("type")),
		Origin:  monitor.Origin(r.URL.Query().Get("origin")),
		Limit:   100,
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil || limit < 1 || limit > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		filter.Limit = limit
	}
	if v := r.URL.Query().Get("since"); v != "" {
		since, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC 3339")
			return
		}
		filter.Since = since
	}

	events, err := h.monitor.GetEvents(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to query events")
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// resolveRequest names the resolving admin.
type resolveRequest struct {
	ResolvedBy string `json:"resolved_by"`
}

// ResolveSecurityEvent marks an event resolved.
func (h *Handler) ResolveSecurityEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ResolvedBy == "" {
		// Fall back to the authenticated actor.
		if actor, ok := ActorFromContext(r.Context()); ok {
			req.ResolvedBy = actor.ID
		}
	}
	if req.ResolvedBy == "" {
		writeError(w, http.StatusBadRequest, "resolved_by is required")
		return
	}

	err := h.monitor.ResolveSecurityEvent(r.Context(), eventID, req.ResolvedBy)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
	case errors.Is(err, monitor.ErrEventNotFound):
		writeError(w, http.StatusNotFound, "event not found")
	case errors.Is(err, monitor.ErrDestroyed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "failed to resolve event")
	}
}

// Dashboard returns the aggregate security console view.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	days := 7
	if v := r.URL.Query().Get("days"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 || parsed > 90 {
			writeError(w, http.StatusBadRequest, "days must be between 1 and 90")
			return
		}
		days = parsed
	}

	data, err := h.monitor.GetDashboardData(r.Context(), days)
	if err != nil {
		if errors.Is(err, monitor.ErrDestroyed) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to build dashboard")
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// ListAlertConfigs returns all alert configurations.
func (h *Handler) ListAlertConfigs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.monitor.GetAlertConfigs())
}

// UpdateAlertConfig validates and installs an alert configuration.
func (h *Handler) UpdateAlertConfig(w http.ResponseWriter, r *http.Request) {
	var config monitor.AlertConfig
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.monitor.UpdateAlertConfig(config); err != nil {
		if errors.Is(err, monitor.ErrDestroyed) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, config)
}

// ListBlockedIPs returns active IP blocks.
func (h *Handler) ListBlockedIPs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.monitor.BlockedIPs())
}

// blockRequest is the manual block payload.
type blockRequest struct {
	IPAddress string `json:"ip_address"`
	Reason    string `json:"reason"`
}

// BlockIP adds a manual IP block.
func (h *Handler) BlockIP(w http.ResponseWriter, r *http.Request) {
	var req blockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IPAddress == "" {
		writeError(w, http.StatusBadRequest, "ip_address is required")
		return
	}
	if req.Reason == "" {
		req.Reason = "manual"
	}
	h.monitor.BlockIP(req.IPAddress, req.Reason)
	writeJSON(w, http.StatusCreated, map[string]string{"status": "blocked"})
}

// UnblockIP removes an IP block.
func (h *Handler) UnblockIP(w http.ResponseWriter, r *http.Request) {
	ip := chi.URLParam(r, "ip")
	if ip == "" {
		writeError(w, http.StatusBadRequest, "ip is required")
		return
	}
	h.monitor.UnblockIP(ip)
	writeJSON(w, http.StatusOK, map[string]string{"status": "unblocked"})
}

// checkResponse is the authorization probe result.
type checkResponse struct {
	Allowed bool `json:"allowed"`
}

// CheckPermission answers whether the calling actor holds a permission.
func (h *Handler) CheckPermission(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing actor")
		return
	}

	resource := r.URL.Query().Get("resource")
	action := r.URL.Query().Get("action")
	if resource == "" || action == "" {
		writeError(w, http.StatusBadRequest, "resource and action are required")
		return
	}
	scope := models.Scope(r.URL.Query().Get("scope"))

	allowed := h.engine.HasResourceAccess(actor, resource, action, scope)
	writeJSON(w, http.StatusOK, checkResponse{Allowed: allowed})
}

// CheckRouteAccess answers whether the calling actor may access a route.
func (h *Handler) CheckRouteAccess(w http.ResponseWriter, r *http.Request) {
	actor, ok := ActorFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing actor")
		return
	}

	path := r.URL.Query().Get("path")
	if path == "" {
		writeError(w, http.StatusBadRequest, "path is required")
		return
	}

	allowed := h.engine.CanUserAccessRoute(actor, path)
	writeJSON(w, http.StatusOK, checkResponse{Allowed: allowed})
}
