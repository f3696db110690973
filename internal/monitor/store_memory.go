// Castellan - Authorization and Security Monitoring for Content Platforms
// Copyright 2026 Castellan Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castellan-io/castellan

package monitor

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// MemoryEventStore is an in-process EventStore. Events are held in insertion
// order with an id index for resolution.
type MemoryEventStore struct {
	mu     sync.RWMutex
	events []SecurityEvent
	byID   map[string]int
}

// NewMemoryEventStore creates an empty in-memory event store.
func NewMemoryEventStore() *MemoryEventStore {
	return &MemoryEventStore{
		byID: make(map[string]int),
	}
}

// Create persists an event.
func (s *MemoryEventStore) Create(_ context.Context, event *SecurityEvent) error {
	if event == nil {
		return errors.New("event is nil")
	}
	if event.ID == "" {
		return errors.New("event id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byID[event.ID]; exists {
		return errors.New("duplicate event id: " + event.ID)
	}
	s.byID[event.ID] = len(s.events)
	s.events = append(s.events, *event)
	return nil
}

// matches reports whether the event passes the filter. Until is exclusive;
// Since is inclusive.
func (f EventFilter) matches(e *SecurityEvent) bool {
	if f.ActorID != "" && e.ActorID != f.ActorID {
		return false
	}
	if f.Type != "" && e.Type != f.Type {
		return false
	}
	if f.Origin != "" && e.Origin != f.Origin {
		return false
	}
	if !f.Since.IsZero() && e.CreatedAt.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && !e.CreatedAt.Before(f.Until) {
		return false
	}
	return true
}

// GetEvents returns events matching the filter, newest first.
func (s *MemoryEventStore) GetEvents(_ context.Context, filter EventFilter) ([]SecurityEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]SecurityEvent, 0)
	for i := range s.events {
		if filter.matches(&s.events[i]) {
			matched = append(matched, s.events[i])
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, nil
}

// CountEvents returns the number of events matching the filter.
func (s *MemoryEventStore) CountEvents(_ context.Context, filter EventFilter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for i := range s.events {
		if filter.matches(&s.events[i]) {
			count++
		}
	}
	return count, nil
}

// CountDistinctIPs returns distinct non-empty IPs seen for the actor since
// the given time.
func (s *MemoryEventStore) CountDistinctIPs(_ context.Context, actorID string, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ips := make(map[string]struct{})
	for i := range s.events {
		e := &s.events[i]
		if e.ActorID == actorID && e.IPAddress != "" && !e.CreatedAt.Before(since) {
			ips[e.IPAddress] = struct{}{}
		}
	}
	return len(ips), nil
}

// GetStats aggregates events created since the given time.
func (s *MemoryEventStore) GetStats(_ context.Context, since time.Time) (EventStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := EventStats{
		ByType:     make(map[EventType]int),
		BySeverity: make(map[Severity]int),
	}
	for i := range s.events {
		e := &s.events[i]
		if e.CreatedAt.Before(since) {
			continue
		}
		stats.Total++
		if !e.Resolved {
			stats.Unresolved++
		}
		stats.ByType[e.Type]++
		stats.BySeverity[e.Severity]++
	}
	return stats, nil
}

// GetTimeline returns per-day event counts since the given time, oldest day
// first.
func (s *MemoryEventStore) GetTimeline(_ context.Context, since time.Time) ([]TimelineBucket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byDay := make(map[string]int)
	for i := range s.events {
		e := &s.events[i]
		if e.CreatedAt.Before(since) {
			continue
		}
		byDay[e.CreatedAt.UTC().Format("2006-01-02")]++
	}

	days := make([]string, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Strings(days)

	timeline := make([]TimelineBucket, 0, len(days))
	for _, day := range days {
		timeline = append(timeline, TimelineBucket{Date: day, Count: byDay[day]})
	}
	return timeline, nil
}

// Resolve marks an event resolved. Resolving twice is a no-op.
func (s *MemoryEventStore) Resolve(_ context.Context, eventID, resolvedBy string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx, ok := s.byID[eventID]
	if !ok {
		return ErrEventNotFound
	}
	e := &s.events[idx]
	if e.Resolved {
		return nil
	}
	now := time.Now()
	e.Resolved = true
	e.ResolvedBy = resolvedBy
	e.ResolvedAt = &now
	return nil
}

// Clear removes all events.
func (s *MemoryEventStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	s.byID = make(map[string]int)
	return nil
}

// Len returns the number of stored events.
func (s *MemoryEventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}
