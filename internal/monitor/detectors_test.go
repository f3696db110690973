// Castellan - Authorization and Security Monitoring for Content Platforms
// Copyright 2026 Castellan Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castellan-io/castellan

package monitor

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func seedFailedAuths(t *testing.T, store EventStore, actorID, ip string, n int) {
	t.Helper()
	now := time.Now()
	for i := 0; i < n; i++ {
		mustCreate(t, store, newEvent(actorID, EventFailedAuthentication, ip, now.Add(-time.Duration(i)*time.Second)))
	}
}

func TestBruteForceDetector_FiresAtThreshold(t *testing.T) {
	store := NewMemoryEventStore()
	d := NewBruteForceDetector(store)

	seedFailedAuths(t, store, "actor-1", "192.0.2.1", 5)
	trigger := newEvent("actor-1", EventFailedAuthentication, "192.0.2.1", time.Now())

	derived, err := d.Check(context.Background(), trigger)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if derived == nil {
		t.Fatal("no derived event at threshold")
	}
	if derived.Type != EventBruteForceAttack {
		t.Errorf("derived type = %s, want BRUTE_FORCE_ATTACK", derived.Type)
	}
	if derived.Origin != OriginDetector {
		t.Errorf("derived origin = %s, want detector", derived.Origin)
	}
	if derived.Severity != SeverityHigh {
		t.Errorf("derived severity = %s, want HIGH", derived.Severity)
	}
	if derived.ActorID != "actor-1" {
		t.Errorf("derived actor = %s, want actor-1", derived.ActorID)
	}
}

func TestBruteForceDetector_BelowThreshold(t *testing.T) {
	store := NewMemoryEventStore()
	d := NewBruteForceDetector(store)

	seedFailedAuths(t, store, "actor-1", "192.0.2.1", 3)
	trigger := newEvent("actor-1", EventFailedAuthentication, "192.0.2.1", time.Now())

	derived, err := d.Check(context.Background(), trigger)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if derived != nil {
		t.Errorf("derived event below threshold: %+v", derived)
	}
}

func TestBruteForceDetector_OnePerActorPerWindow(t *testing.T) {
	store := NewMemoryEventStore()
	d := NewBruteForceDetector(store)
	ctx := context.Background()

	seedFailedAuths(t, store, "actor-1", "192.0.2.1", 5)
	trigger := newEvent("actor-1", EventFailedAuthentication, "192.0.2.1", time.Now())

	derived, err := d.Check(ctx, trigger)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if derived == nil {
		t.Fatal("no derived event at threshold")
	}
	mustCreate(t, store, derived)

	// More failures inside the same window must not produce a second one.
	seedFailedAuths(t, store, "actor-1", "192.0.2.1", 2)
	again, err := d.Check(ctx, newEvent("actor-1", EventFailedAuthentication, "192.0.2.1", time.Now()))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if again != nil {
		t.Errorf("second derived event in same window: %+v", again)
	}
}

func TestBruteForceDetector_IgnoresOtherTypesAndDisabled(t *testing.T) {
	store := NewMemoryEventStore()
	d := NewBruteForceDetector(store)
	ctx := context.Background()

	seedFailedAuths(t, store, "actor-1", "192.0.2.1", 10)

	derived, err := d.Check(ctx, newEvent("actor-1", EventDataAccess, "192.0.2.1", time.Now()))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if derived != nil {
		t.Error("detector fired on non-authentication event")
	}

	d.SetEnabled(false)
	derived, err = d.Check(ctx, newEvent("actor-1", EventFailedAuthentication, "192.0.2.1", time.Now()))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if derived != nil {
		t.Error("disabled detector fired")
	}
}

func TestBruteForceDetector_Configure(t *testing.T) {
	d := NewBruteForceDetector(NewMemoryEventStore())

	if err := d.Configure(BruteForceConfig{Threshold: 0, Window: time.Minute}); err == nil {
		t.Error("zero threshold accepted")
	}
	if err := d.Configure(BruteForceConfig{Threshold: 3, Window: 0}); err == nil {
		t.Error("zero window accepted")
	}
	if err := d.Configure(BruteForceConfig{Threshold: 3, Window: time.Minute}); err != nil {
		t.Errorf("valid config rejected: %v", err)
	}
	if got := d.Config().Threshold; got != 3 {
		t.Errorf("Threshold = %d, want 3", got)
	}
}

func TestMultiIPDetector_FiresOverLimit(t *testing.T) {
	store := NewMemoryEventStore()
	d := NewMultiIPDetector(store)
	now := time.Now()

	for i := 1; i <= 4; i++ {
		mustCreate(t, store, newEvent("actor-1", EventDataAccess, fmt.Sprintf("192.0.2.%d", i), now))
	}
	trigger := newEvent("actor-1", EventDataAccess, "192.0.2.4", now)

	derived, err := d.Check(context.Background(), trigger)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if derived == nil {
		t.Fatal("no derived event over ip limit")
	}
	if derived.Type != EventMultipleIPAccess {
		t.Errorf("derived type = %s, want MULTIPLE_IP_ACCESS", derived.Type)
	}
	if derived.Origin != OriginDetector {
		t.Errorf("derived origin = %s, want detector", derived.Origin)
	}
}

func TestMultiIPDetector_AtLimitDoesNotFire(t *testing.T) {
	store := NewMemoryEventStore()
	d := NewMultiIPDetector(store)
	now := time.Now()

	for i := 1; i <= 3; i++ {
		mustCreate(t, store, newEvent("actor-1", EventDataAccess, fmt.Sprintf("192.0.2.%d", i), now))
	}

	derived, err := d.Check(context.Background(), newEvent("actor-1", EventDataAccess, "192.0.2.3", now))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if derived != nil {
		t.Errorf("detector fired at limit: %+v", derived)
	}
}

func TestMultiIPDetector_DedupAndSkips(t *testing.T) {
	store := NewMemoryEventStore()
	d := NewMultiIPDetector(store)
	ctx := context.Background()
	now := time.Now()

	for i := 1; i <= 5; i++ {
		mustCreate(t, store, newEvent("actor-1", EventDataAccess, fmt.Sprintf("192.0.2.%d", i), now))
	}

	derived, err := d.Check(ctx, newEvent("actor-1", EventDataAccess, "192.0.2.5", now))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if derived == nil {
		t.Fatal("no derived event over ip limit")
	}
	mustCreate(t, store, derived)

	again, err := d.Check(ctx, newEvent("actor-1", EventDataAccess, "192.0.2.6", now))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if again != nil {
		t.Errorf("second derived event in same window: %+v", again)
	}

	// Events without IP or actor are skipped.
	if got, _ := d.Check(ctx, newEvent("actor-2", EventDataAccess, "", now)); got != nil {
		t.Error("detector fired for event without ip")
	}
}

func TestCoordinatedDetector_FiresOverIPLimit(t *testing.T) {
	store := NewMemoryEventStore()
	d := NewCoordinatedDetector(store)
	now := time.Now()

	// Six distinct IPs failing auth across different actors, each under
	// the per-actor brute force threshold.
	for i := 1; i <= 6; i++ {
		mustCreate(t, store, newEvent(fmt.Sprintf("actor-%d", i), EventFailedAuthentication, fmt.Sprintf("203.0.113.%d", i), now))
	}
	trigger := newEvent("actor-6", EventFailedAuthentication, "203.0.113.6", now)

	derived, err := d.Check(context.Background(), trigger)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if derived == nil {
		t.Fatal("no derived event over coordinated ip limit")
	}
	if derived.Type != EventSuspiciousActivity {
		t.Errorf("derived type = %s, want SUSPICIOUS_ACTIVITY", derived.Type)
	}
	if derived.Origin != OriginDetector {
		t.Errorf("derived origin = %s, want detector", derived.Origin)
	}
}

func TestCoordinatedDetector_MatchesIncomingEventType(t *testing.T) {
	store := NewMemoryEventStore()
	d := NewCoordinatedDetector(store)
	now := time.Now()

	// A permission-denied wave from many IPs is just as coordinated as an
	// authentication wave.
	for i := 1; i <= 8; i++ {
		mustCreate(t, store, newEvent(fmt.Sprintf("actor-%d", i), EventPermissionDenied, fmt.Sprintf("203.0.113.%d", i), now))
	}

	derived, err := d.Check(context.Background(), newEvent("actor-8", EventPermissionDenied, "203.0.113.8", now))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if derived == nil {
		t.Fatal("no derived event for a coordinated non-auth wave")
	}
	if derived.Type != EventSuspiciousActivity {
		t.Errorf("derived type = %s, want SUSPICIOUS_ACTIVITY", derived.Type)
	}

	// The spread of one type must not count events of another.
	single, err := d.Check(context.Background(), newEvent("actor-9", EventConfigChange, "203.0.113.9", now))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if single != nil {
		t.Errorf("detector mixed event types: %+v", single)
	}
}

func TestCoordinatedDetector_AtLimitDoesNotFire(t *testing.T) {
	store := NewMemoryEventStore()
	d := NewCoordinatedDetector(store)
	now := time.Now()

	for i := 1; i <= 5; i++ {
		mustCreate(t, store, newEvent(fmt.Sprintf("actor-%d", i), EventFailedAuthentication, fmt.Sprintf("203.0.113.%d", i), now))
	}

	derived, err := d.Check(context.Background(), newEvent("actor-5", EventFailedAuthentication, "203.0.113.5", now))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if derived != nil {
		t.Errorf("detector fired at ip limit: %+v", derived)
	}
}

func TestCoordinatedDetector_Dedup(t *testing.T) {
	store := NewMemoryEventStore()
	d := NewCoordinatedDetector(store)
	ctx := context.Background()
	now := time.Now()

	for i := 1; i <= 6; i++ {
		mustCreate(t, store, newEvent(fmt.Sprintf("actor-%d", i), EventFailedAuthentication, fmt.Sprintf("203.0.113.%d", i), now))
	}

	derived, err := d.Check(ctx, newEvent("actor-6", EventFailedAuthentication, "203.0.113.6", now))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if derived == nil {
		t.Fatal("no derived event over limit")
	}
	mustCreate(t, store, derived)

	again, err := d.Check(ctx, newEvent("actor-7", EventFailedAuthentication, "203.0.113.7", now))
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if again != nil {
		t.Errorf("second derived event in same window: %+v", again)
	}
}
