// Castellan - Authorization and Security Monitoring for Content Platforms
// Copyright 2026 Castellan Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castellan-io/castellan

package models

import (
	"fmt"
	"strings"
)

// Role is an ordered role. Higher values carry more privilege; the ordering
// is used by minimum-role checks only.
type Role int

const (
	// RoleViewer is the default role with read-only access.
	RoleViewer Role = iota

	// RoleEditor can create and modify content and inherits viewer access.
	RoleEditor

	// RoleAdmin has the wildcard grant and full access.
	RoleAdmin
)

// roleNames maps roles to their canonical string form.
var roleNames = map[Role]string{
	RoleViewer: "viewer",
	RoleEditor: "editor",
	RoleAdmin:  "admin",
}

// String returns the canonical role name.
func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// Level returns the role's position in the hierarchy.
func (r Role) Level() int {
	return int(r)
}

// AtLeast reports whether r is equal to or above other in the hierarchy.
func (r Role) AtLeast(other Role) bool {
	return r.Level() >= other.Level()
}

// ParseRole converts a role name to a Role.
func ParseRole(name string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "viewer":
		return RoleViewer, nil
	case "editor":
		return RoleEditor, nil
	case "admin":
		return RoleAdmin, nil
	default:
		return RoleViewer, fmt.Errorf("unknown role %q", name)
	}
}

// ValidRoles returns all known roles in ascending privilege order.
func ValidRoles() []Role {
	return []Role{RoleViewer, RoleEditor, RoleAdmin}
}

// Scope qualifies a permission as applying to the actor's own records or to
// all records. The zero value ScopeAny means "unscoped": on a request it
// matches any granted scope, on a grant it places no scope restriction.
type Scope string

const (
	ScopeAny Scope = ""
	ScopeOwn Scope = "own"
	ScopeAll Scope = "all"
)

// ActionManage is the administrative action that subsumes every other action
// on its resource.
const ActionManage = "manage"

// Permission is a requested {resource, action, scope} triple evaluated
// against a role's grants.
type Permission struct {
	Resource string `json:"resource"`
	Action   string `json:"action"`
	Scope    Scope  `json:"scope,omitempty"`
}

// GrantKind distinguishes standard grants from the admin wildcard.
type GrantKind int

const (
	// GrantStandard is a {resource, action, scope} grant.
	GrantStandard GrantKind = iota

	// GrantWildcard satisfies every permission request.
	GrantWildcard
)

// Grant is a single policy entry for a role.
type Grant struct {
	Kind     GrantKind `json:"kind"`
	Resource string    `json:"resource,omitempty"`
	Action   string    `json:"action,omitempty"`
	Scope    Scope     `json:"scope,omitempty"`
}

// NewGrant creates a standard grant.
func NewGrant(resource, action string, scope Scope) Grant {
	return Grant{Kind: GrantStandard, Resource: resource, Action: action, Scope: scope}
}

// WildcardGrant creates the administrator catch-all grant.
func WildcardGrant() Grant {
	return Grant{Kind: GrantWildcard}
}

// Satisfies reports whether the grant covers the requested permission.
//
// A wildcard grant satisfies any request. A standard grant requires an exact
// resource match; the granted action must equal the requested action or be
// "manage". Scope resolution: an unscoped request is satisfied by any granted
// scope; a granted "all" scope satisfies both "own" and "all" requests; a
// granted "own" scope satisfies only "own" requests; an unscoped grant
// satisfies any requested scope.
func (g Grant) Satisfies(p Permission) bool {
	if g.Kind == GrantWildcard {
		return true
	}
	if g.Resource != p.Resource {
		return false
	}
	if g.Action != p.Action && g.Action != ActionManage {
		return false
	}
	return scopeSatisfies(g.Scope, p.Scope)
}

// scopeSatisfies implements the scope resolution table.
func scopeSatisfies(granted, requested Scope) bool {
	switch {
	case requested == ScopeAny:
		return true
	case granted == ScopeAny:
		return true
	case granted == ScopeAll:
		return true
	case granted == ScopeOwn:
		return requested == ScopeOwn
	default:
		return false
	}
}

// Actor is the subject record supplied by the actor directory collaborator.
// The core does not manage actor lifecycle; callers resolve actors and pass
// them in.
type Actor struct {
	ID     string `json:"id"`
	Role   Role   `json:"role"`
	Active bool   `json:"active"`
}

// CanAct reports whether the actor exists and is active. Nil or inactive
// actors always fail authorization (default-deny).
func (a *Actor) CanAct() bool {
	return a != nil && a.Active && a.ID != ""
}
