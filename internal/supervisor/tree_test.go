// Castellan - Authorization and Security Monitoring for Content Platforms
// Copyright 2026 Castellan Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castellan-io/castellan

package supervisor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/castellan-io/castellan/internal/logging"
)

// blockingService runs until its context is cancelled.
type blockingService struct {
	name    string
	started atomic.Int64
}

func (s *blockingService) Serve(ctx context.Context) error {
	s.started.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func (s *blockingService) String() string {
	return s.name
}

func TestDefaultTreeConfig(t *testing.T) {
	cfg := DefaultTreeConfig()
	if cfg.FailureThreshold != 5.0 {
		t.Errorf("FailureThreshold = %v, want 5.0", cfg.FailureThreshold)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v, want 10s", cfg.ShutdownTimeout)
	}
}

func TestTree_RunsServicesUntilCancelled(t *testing.T) {
	tree := NewTree(logging.NewSlogLogger(), TreeConfig{})

	mon := &blockingService{name: "mon"}
	api := &blockingService{name: "api"}
	tree.AddMonitoringService(mon)
	tree.AddAPIService(api)

	ctx, cancel := context.WithCancel(context.Background())
	errChan := tree.ServeBackground(ctx)

	deadline := time.After(2 * time.Second)
	for mon.started.Load() == 0 || api.started.Load() == 0 {
		select {
		case <-deadline:
			t.Fatalf("services not started: mon=%d api=%d", mon.started.Load(), api.started.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-errChan:
	case <-time.After(2 * time.Second):
		t.Fatal("supervisor did not stop after cancel")
	}
}

func TestTree_ZeroConfigGetsDefaults(t *testing.T) {
	tree := NewTree(logging.NewSlogLogger(), TreeConfig{})
	if tree.config.FailureThreshold != 5.0 {
		t.Errorf("FailureThreshold = %v, want 5.0", tree.config.FailureThreshold)
	}
	if tree.config.FailureBackoff != 15*time.Second {
		t.Errorf("FailureBackoff = %v, want 15s", tree.config.FailureBackoff)
	}
}
