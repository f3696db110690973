// Castellan - Authorization and Security Monitoring for Content Platforms
// Copyright 2026 Castellan Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castellan-io/castellan

package authz

import (
	"testing"

	"github.com/castellan-io/castellan/internal/models"
)

func TestDefaultPolicy_ViewerGrants(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		name string
		perm models.Permission
		want bool
	}{
		{
			name: "read products all scope",
			perm: models.Permission{Resource: ResourceProducts, Action: ActionRead, Scope: models.ScopeAll},
			want: true,
		},
		{
			name: "read products any scope",
			perm: models.Permission{Resource: ResourceProducts, Action: ActionRead},
			want: true,
		},
		{
			name: "read own orders",
			perm: models.Permission{Resource: ResourceOrders, Action: ActionRead, Scope: models.ScopeOwn},
			want: true,
		},
		{
			name: "read all orders denied",
			perm: models.Permission{Resource: ResourceOrders, Action: ActionRead, Scope: models.ScopeAll},
			want: false,
		},
		{
			name: "create products denied",
			perm: models.Permission{Resource: ResourceProducts, Action: ActionCreate},
			want: false,
		},
		{
			name: "unknown resource denied",
			perm: models.Permission{Resource: "warehouses", Action: ActionRead},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.Allows(models.RoleViewer, tt.perm); got != tt.want {
				t.Errorf("Allows(viewer, %+v) = %v, want %v", tt.perm, got, tt.want)
			}
		})
	}
}

func TestDefaultPolicy_EditorManageImpliesActions(t *testing.T) {
	p := DefaultPolicy()

	// The editor's own-scoped manage grant on content covers every action
	// at own scope.
	for _, action := range []string{ActionRead, ActionCreate, ActionUpdate, ActionDelete} {
		perm := models.Permission{Resource: ResourceContent, Action: action, Scope: models.ScopeOwn}
		if !p.Allows(models.RoleEditor, perm) {
			t.Errorf("Allows(editor, %+v) = false, want true via manage grant", perm)
		}
	}

	// But not at all scope.
	perm := models.Permission{Resource: ResourceContent, Action: ActionDelete, Scope: models.ScopeAll}
	if p.Allows(models.RoleEditor, perm) {
		t.Errorf("Allows(editor, %+v) = true, want false", perm)
	}
}

func TestDefaultPolicy_AdminWildcard(t *testing.T) {
	p := DefaultPolicy()

	perms := []models.Permission{
		{Resource: ResourceProducts, Action: ActionDelete, Scope: models.ScopeAll},
		{Resource: ResourceSecurity, Action: models.ActionManage, Scope: models.ScopeAll},
		{Resource: "anything", Action: "whatsoever", Scope: models.ScopeAll},
	}
	for _, perm := range perms {
		if !p.Allows(models.RoleAdmin, perm) {
			t.Errorf("Allows(admin, %+v) = false, want true", perm)
		}
	}
}

func TestNewPolicy_CopiesGrantTable(t *testing.T) {
	grants := map[models.Role][]models.Grant{
		models.RoleViewer: {
			models.NewGrant(ResourceProducts, ActionRead, models.ScopeAll),
		},
	}
	p := NewPolicy(grants)

	// Mutating the source table must not change the policy.
	grants[models.RoleViewer][0] = models.NewGrant("other", "other", models.ScopeAll)

	perm := models.Permission{Resource: ResourceProducts, Action: ActionRead}
	if !p.Allows(models.RoleViewer, perm) {
		t.Error("policy changed after source table mutation")
	}
}

func TestPolicy_Roles(t *testing.T) {
	p := DefaultPolicy()
	roles := p.Roles()
	if len(roles) != 3 {
		t.Fatalf("Roles() returned %d roles, want 3", len(roles))
	}
}
