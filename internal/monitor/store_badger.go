// Castellan - Authorization and Security Monitoring for Content Platforms
// Copyright 2026 Castellan Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castellan-io/castellan

package monitor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// Key layout: events live under a time-ordered prefix so window queries are
// bounded prefix scans, with an id index for point lookups.
const (
	eventKeyPrefix = "event:"   // event:<RFC3339Nano>:<id> -> event JSON
	eventIDPrefix  = "eventid:" // eventid:<id>             -> event key
)

// BadgerEventStore is an EventStore backed by BadgerDB. It survives restarts
// and keeps events readable with a time-ordered key layout. The caller owns
// the DB handle.
type BadgerEventStore struct {
	db *badger.DB
}

// NewBadgerEventStore creates a badger-backed event store.
func NewBadgerEventStore(db *badger.DB) *BadgerEventStore {
	return &BadgerEventStore{db: db}
}

func eventKey(e *SecurityEvent) []byte {
	return []byte(eventKeyPrefix + e.CreatedAt.UTC().Format(time.RFC3339Nano) + ":" + e.ID)
}

func eventIDKey(id string) []byte {
	return []byte(eventIDPrefix + id)
}

// Create persists an event.
func (s *BadgerEventStore) Create(_ context.Context, event *SecurityEvent) error {
	if event == nil {
		return errors.New("event is nil")
	}
	if event.ID == "" {
		return errors.New("event id is required")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	key := eventKey(event)
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(eventIDKey(event.ID)); err == nil {
			return errors.New("duplicate event id: " + event.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		if err := txn.Set(key, data); err != nil {
			return err
		}
		return txn.Set(eventIDKey(event.ID), key)
	})
}

// scanEvents iterates events under the time prefix, newest first, invoking
// fn for each decoded event until fn returns false.
func (s *BadgerEventStore) scanEvents(fn func(e *SecurityEvent) bool) error {
	return s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(eventKeyPrefix)
		opts.Reverse = true

		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts past the end of the prefix range.
		seek := append([]byte(eventKeyPrefix), 0xff)
		for it.Seek(seek); it.ValidForPrefix([]byte(eventKeyPrefix)); it.Next() {
			var e SecurityEvent
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			})
			if err != nil {
				return fmt.Errorf("decode event: %w", err)
			}
			if !fn(&e) {
				return nil
			}
		}
		return nil
	})
}

// GetEvents returns events matching the filter, newest first.
func (s *BadgerEventStore) GetEvents(_ context.Context, filter EventFilter) ([]SecurityEvent, error) {
	events := make([]SecurityEvent, 0)
	err := s.scanEvents(func(e *SecurityEvent) bool {
		// Keys are time ordered, so once past Since nothing older matches.
		if !filter.Since.IsZero() && e.CreatedAt.Before(filter.Since) {
			return false
		}
		if filter.matches(e) {
			events = append(events, *e)
		}
		return filter.Limit <= 0 || len(events) < filter.Limit
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// CountEvents returns the number of events matching the filter.
func (s *BadgerEventStore) CountEvents(_ context.Context, filter EventFilter) (int, error) {
	count := 0
	err := s.scanEvents(func(e *SecurityEvent) bool {
		if !filter.Since.IsZero() && e.CreatedAt.Before(filter.Since) {
			return false
		}
		if filter.matches(e) {
			count++
		}
		return true
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// CountDistinctIPs returns distinct non-empty IPs seen for the actor since
// the given time.
func (s *BadgerEventStore) CountDistinctIPs(_ context.Context, actorID string, since time.Time) (int, error) {
	ips := make(map[string]struct{})
	err := s.scanEvents(func(e *SecurityEvent) bool {
		if e.CreatedAt.Before(since) {
			return false
		}
		if e.ActorID == actorID && e.IPAddress != "" {
			ips[e.IPAddress] = struct{}{}
		}
		return true
	})
	if err != nil {
		return 0, err
	}
	return len(ips), nil
}

// GetStats aggregates events created since the given time.
func (s *BadgerEventStore) GetStats(_ context.Context, since time.Time) (EventStats, error) {
	stats := EventStats{
		ByType:     make(map[EventType]int),
		BySeverity: make(map[Severity]int),
	}
	err := s.scanEvents(func(e *SecurityEvent) bool {
		if e.CreatedAt.Before(since) {
			return false
		}
		stats.Total++
		if !e.Resolved {
			stats.Unresolved++
		}
		stats.ByType[e.Type]++
		stats.BySeverity[e.Severity]++
		return true
	})
	if err != nil {
		return EventStats{}, err
	}
	return stats, nil
}

// GetTimeline returns per-day event counts since the given time, oldest day
// first.
func (s *BadgerEventStore) GetTimeline(_ context.Context, since time.Time) ([]TimelineBucket, error) {
	byDay := make(map[string]int)
	err := s.scanEvents(func(e *SecurityEvent) bool {
		if e.CreatedAt.Before(since) {
			return false
		}
		byDay[e.CreatedAt.UTC().Format("2006-01-02")]++
		return true
	})
	if err != nil {
		return nil, err
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
func (s *BadgerEventStore) Resolve(_ context.Context, eventID, resolvedBy string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		idxItem, err := txn.Get(eventIDKey(eventID))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return ErrEventNotFound
			}
			return err
		}
		key, err := idxItem.ValueCopy(nil)
		if err != nil {
			return err
		}

		item, err := txn.Get(key)
		if err != nil {
			return err
		}
		var e SecurityEvent
		err = item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
		if err != nil {
			return fmt.Errorf("decode event: %w", err)
		}

		if e.Resolved {
			return nil
		}
		now := time.Now()
		e.Resolved = true
		e.ResolvedBy = resolvedBy
		e.ResolvedAt = &now

		data, err := json.Marshal(&e)
		if err != nil {
			return fmt.Errorf("marshal event: %w", err)
		}
		return txn.Set(key, data)
	})
}

// Clear removes all events and index entries.
func (s *BadgerEventStore) Clear(_ context.Context) error {
	for _, prefix := range []string{eventKeyPrefix, eventIDPrefix} {
		err := s.db.Update(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			opts.Prefix = []byte(prefix)

			it := txn.NewIterator(opts)
			defer it.Close()

			for it.Rewind(); it.Valid(); it.Next() {
				if err := txn.Delete(it.Item().KeyCopy(nil)); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
