// Castellan - Authorization and Security Monitoring for Content Platforms
// Copyright 2026 Castellan Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castellan-io/castellan

package authz

import (
	"strings"

	"github.com/castellan-io/castellan/internal/models"
)

// RouteRule maps a route pattern to the permission required to access it.
// Patterns are slash-separated paths where a "{name}" segment matches any
// single non-empty segment: "/products/{id}" matches "/products/42" but not
// "/products" or "/products/42/reviews".
type RouteRule struct {
	Pattern    string
	Permission models.Permission
}

// DefaultRoutes returns the standard route table. Routes not listed here are
// denied for everyone, which keeps newly added routes closed until someone
// registers them.
func DefaultRoutes() []RouteRule {
	return []RouteRule{
		{"/products", models.Permission{Resource: ResourceProducts, Action: ActionRead}},
		{"/products/{id}", models.Permission{Resource: ResourceProducts, Action: ActionRead}},
		{"/products/{id}/edit", models.Permission{Resource: ResourceProducts, Action: ActionUpdate, Scope: models.ScopeOwn}},
		{"/orders", models.Permission{Resource: ResourceOrders, Action: ActionRead, Scope: models.ScopeOwn}},
		{"/orders/{id}", models.Permission{Resource: ResourceOrders, Action: ActionRead, Scope: models.ScopeOwn}},
		{"/customers", models.Permission{Resource: ResourceCustomers, Action: ActionRead, Scope: models.ScopeOwn}},
		{"/customers/{id}", models.Permission{Resource: ResourceCustomers, Action: ActionRead, Scope: models.ScopeOwn}},
		{"/content", models.Permission{Resource: ResourceContent, Action: ActionRead}},
		{"/content/{id}", models.Permission{Resource: ResourceContent, Action: ActionRead}},
		{"/content/{id}/edit", models.Permission{Resource: ResourceContent, Action: ActionUpdate, Scope: models.ScopeOwn}},
		{"/reports", models.Permission{Resource: ResourceReports, Action: ActionRead, Scope: models.ScopeAll}},
		{"/admin/users", models.Permission{Resource: ResourceUsers, Action: models.ActionManage, Scope: models.ScopeAll}},
		{"/admin/users/{id}", models.Permission{Resource: ResourceUsers, Action: models.ActionManage, Scope: models.ScopeAll}},
		{"/admin/settings", models.Permission{Resource: ResourceSettings, Action: models.ActionManage, Scope: models.ScopeAll}},
		{"/admin/security", models.Permission{Resource: ResourceSecurity, Action: models.ActionManage, Scope: models.ScopeAll}},
	}
}

// CanUserAccessRoute reports whether the actor may access the given path.
// Unknown routes are denied regardless of role.
func (e *Engine) CanUserAccessRoute(actor *models.Actor, path string) bool {
	if !actor.CanAct() {
		return false
	}
	for _, rule := range e.routes {
		if matchRoute(rule.Pattern, path) {
			return e.HasPermission(actor, rule.Permission)
		}
	}
	return false
}

// matchRoute matches a path against a pattern segment by segment.
func matchRoute(pattern, path string) bool {
	pat := splitPath(pattern)
	seg := splitPath(path)
	if len(pat) != len(seg) {
		return false
	}
	for i, p := range pat {
		if isParam(p) {
			if seg[i] == "" {
				return false
			}
			continue
		}
		if p != seg[i] {
			return false
		}
	}
	return true
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func isParam(segment string) bool {
	return len(segment) > 2 && segment[0] == '{' && segment[len(segment)-1] == '}'
}
