// Castellan - Authorization and Security Monitoring for Content Platforms
// Copyright 2026 Castellan Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castellan-io/castellan

package monitor

import (
	"context"
	"testing"
	"time"
)

func TestAlertEngine_FiresAtThreshold(t *testing.T) {
	store := NewMemoryEventStore()
	engine := newAlertEngine(store, []AlertConfig{{
		EventType:  EventFailedAuthentication,
		Enabled:    true,
		Threshold:  3,
		TimeWindow: 5 * time.Minute,
		Severity:   SeverityMedium,
		Actions:    []AlertAction{ActionLog},
		Cooldown:   10 * time.Minute,
	}})
	ctx := context.Background()

	seedFailedAuths(t, store, "actor-1", "192.0.2.1", 2)
	event := newEvent("actor-1", EventFailedAuthentication, "192.0.2.1", time.Now())
	mustCreate(t, store, event)

	alert, err := engine.Evaluate(ctx, event)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if alert == nil {
		t.Fatal("no alert at threshold")
	}
	if alert.Count != 3 {
		t.Errorf("alert count = %d, want 3", alert.Count)
	}
	if alert.Config.Severity != SeverityMedium {
		t.Errorf("alert severity = %s, want MEDIUM", alert.Config.Severity)
	}
}

func TestAlertEngine_BelowThreshold(t *testing.T) {
	store := NewMemoryEventStore()
	engine := newAlertEngine(store, DefaultAlertConfigs())

	event := newEvent("actor-1", EventFailedAuthentication, "192.0.2.1", time.Now())
	mustCreate(t, store, event)

	alert, err := engine.Evaluate(context.Background(), event)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if alert != nil {
		t.Errorf("alert fired below threshold: %+v", alert)
	}
}

func TestAlertEngine_CooldownSuppresses(t *testing.T) {
	store := NewMemoryEventStore()
	engine := newAlertEngine(store, []AlertConfig{{
		EventType:  EventBruteForceAttack,
		Enabled:    true,
		Threshold:  1,
		TimeWindow: 15 * time.Minute,
		Severity:   SeverityCritical,
		Actions:    []AlertAction{ActionLog},
		Cooldown:   30 * time.Minute,
	}})
	ctx := context.Background()

	first := newEvent("actor-1", EventBruteForceAttack, "192.0.2.1", time.Now())
	mustCreate(t, store, first)
	alert, err := engine.Evaluate(ctx, first)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if alert == nil {
		t.Fatal("first alert did not fire")
	}

	second := newEvent("actor-2", EventBruteForceAttack, "192.0.2.2", time.Now())
	mustCreate(t, store, second)
	alert, err = engine.Evaluate(ctx, second)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if alert != nil {
		t.Errorf("second alert fired inside cooldown: %+v", alert)
	}
}

func TestAlertEngine_DisabledConfig(t *testing.T) {
	store := NewMemoryEventStore()
	engine := newAlertEngine(store, []AlertConfig{{
		EventType:  EventBruteForceAttack,
		Enabled:    false,
		Threshold:  1,
		TimeWindow: 15 * time.Minute,
		Severity:   SeverityCritical,
		Actions:    []AlertAction{ActionLog},
		Cooldown:   30 * time.Minute,
	}})

	event := newEvent("actor-1", EventBruteForceAttack, "192.0.2.1", time.Now())
	mustCreate(t, store, event)

	alert, err := engine.Evaluate(context.Background(), event)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if alert != nil {
		t.Error("disabled config fired")
	}
}

func TestAlertEngine_UnconfiguredTypeIgnored(t *testing.T) {
	store := NewMemoryEventStore()
	engine := newAlertEngine(store, nil)

	event := newEvent("actor-1", EventDataAccess, "", time.Now())
	mustCreate(t, store, event)

	alert, err := engine.Evaluate(context.Background(), event)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if alert != nil {
		t.Error("alert fired for unconfigured type")
	}
}

func TestAlertEngine_UpdateValidatesAndResetsCooldown(t *testing.T) {
	store := NewMemoryEventStore()
	engine := newAlertEngine(store, DefaultAlertConfigs())
	ctx := context.Background()

	bad := AlertConfig{EventType: EventDataAccess, Threshold: 0, TimeWindow: time.Minute, Severity: SeverityLow}
	if err := engine.Update(bad); err == nil {
		t.Error("invalid config accepted")
	}
	bad = AlertConfig{EventType: EventDataAccess, Threshold: 1, TimeWindow: time.Minute, Severity: "BOGUS"}
	if err := engine.Update(bad); err == nil {
		t.Error("bogus severity accepted")
	}
	bad = AlertConfig{EventType: EventDataAccess, Threshold: 1, TimeWindow: time.Minute, Severity: SeverityLow, Actions: []AlertAction{"reboot"}}
	if err := engine.Update(bad); err == nil {
		t.Error("unknown action accepted")
	}

	// Fire once, then update the config: the cooldown resets and the next
	// event can fire again.
	event := newEvent("actor-1", EventBruteForceAttack, "192.0.2.1", time.Now())
	mustCreate(t, store, event)
	if alert, _ := engine.Evaluate(ctx, event); alert == nil {
		t.Fatal("initial alert did not fire")
	}

	updated := AlertConfig{
		EventType:  EventBruteForceAttack,
		Enabled:    true,
		Threshold:  1,
		TimeWindow: 15 * time.Minute,
		Severity:   SeverityCritical,
		Actions:    []AlertAction{ActionLog, ActionBlockIP},
		Cooldown:   30 * time.Minute,
	}
	if err := engine.Update(updated); err != nil {
		t.Fatalf("Update: %v", err)
	}

	next := newEvent("actor-2", EventBruteForceAttack, "192.0.2.2", time.Now())
	mustCreate(t, store, next)
	if alert, _ := engine.Evaluate(ctx, next); alert == nil {
		t.Error("alert did not fire after config update reset the cooldown")
	}
}

func TestAlertEngine_ConfigAccessors(t *testing.T) {
	engine := newAlertEngine(NewMemoryEventStore(), DefaultAlertConfigs())

	if got := len(engine.Configs()); got != len(DefaultAlertConfigs()) {
		t.Errorf("Configs() returned %d entries, want %d", got, len(DefaultAlertConfigs()))
	}
	c, ok := engine.Config(EventBruteForceAttack)
	if !ok {
		t.Fatal("brute force config missing")
	}
	if c.Severity != SeverityCritical {
		t.Errorf("brute force severity = %s, want CRITICAL", c.Severity)
	}
	if _, ok := engine.Config(EventType("NOPE")); ok {
		t.Error("unknown type reported configured")
	}
}
