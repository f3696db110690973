// Castellan - Authorization and Security Monitoring for Content Platforms
// Copyright 2026 Castellan Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castellan-io/castellan

package authz

import (
	"github.com/castellan-io/castellan/internal/models"
)

// Policy is an immutable mapping from role to permission grants. It is built
// once at process start and never mutated afterwards, so reads need no
// locking.
type Policy struct {
	grants map[models.Role][]models.Grant
}

// NewPolicy builds a policy from the given grant table. The table is copied;
// later mutation of the argument does not affect the policy.
func NewPolicy(grants map[models.Role][]models.Grant) *Policy {
	copied := make(map[models.Role][]models.Grant, len(grants))
	for role, gs := range grants {
		copied[role] = append([]models.Grant(nil), gs...)
	}
	return &Policy{grants: copied}
}

// Resource names used by the default policy.
const (
	ResourceProducts  = "products"
	ResourceOrders    = "orders"
	ResourceCustomers = "customers"
	ResourceContent   = "content"
	ResourceReports   = "reports"
	ResourceUsers     = "users"
	ResourceSettings  = "settings"
	ResourceSecurity  = "security"
)

// Action names used by the default policy.
const (
	ActionRead   = "read"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
	ActionExport = "export"
)

// DefaultPolicy returns the standard content-platform policy:
//
//	viewer: read-only access, own-scoped where the resource has owners
//	editor: viewer access plus create/update on content-bearing resources
//	admin:  the wildcard grant
func DefaultPolicy() *Policy {
	return NewPolicy(map[models.Role][]models.Grant{
		models.RoleViewer: {
			models.NewGrant(ResourceProducts, ActionRead, models.ScopeAll),
			models.NewGrant(ResourceContent, ActionRead, models.ScopeAll),
			models.NewGrant(ResourceOrders, ActionRead, models.ScopeOwn),
			models.NewGrant(ResourceCustomers, ActionRead, models.ScopeOwn),
		},
		models.RoleEditor: {
			models.NewGrant(ResourceProducts, ActionRead, models.ScopeAll),
			models.NewGrant(ResourceProducts, ActionCreate, models.ScopeOwn),
			models.NewGrant(ResourceProducts, ActionUpdate, models.ScopeOwn),
			models.NewGrant(ResourceContent, models.ActionManage, models.ScopeOwn),
			models.NewGrant(ResourceContent, ActionRead, models.ScopeAll),
			models.NewGrant(ResourceOrders, ActionRead, models.ScopeAll),
			models.NewGrant(ResourceOrders, ActionUpdate, models.ScopeOwn),
			models.NewGrant(ResourceCustomers, ActionRead, models.ScopeAll),
			models.NewGrant(ResourceReports, ActionRead, models.ScopeAll),
		},
		models.RoleAdmin: {
			models.WildcardGrant(),
		},
	})
}

// Grants returns the grant list for a role. The returned slice must not be
// modified.
func (p *Policy) Grants(role models.Role) []models.Grant {
	return p.grants[role]
}

// Allows reports whether any of the role's grants satisfies the permission.
func (p *Policy) Allows(role models.Role, perm models.Permission) bool {
	for _, g := range p.grants[role] {
		if g.Satisfies(perm) {
			return true
		}
	}
	return false
}

// Roles returns all roles that have at least one grant.
func (p *Policy) Roles() []models.Role {
	roles := make([]models.Role, 0, len(p.grants))
	for role := range p.grants {
		roles = append(roles, role)
	}
	return roles
}
