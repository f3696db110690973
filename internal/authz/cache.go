// Castellan - Authorization and Security Monitoring for Content Platforms
// Copyright 2026 Castellan Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castellan-io/castellan

package authz

import (
	"strings"
	"sync"
	"time"

	"github.com/castellan-io/castellan/internal/models"
)

// DecisionCache caches authorization decisions keyed by
// (actor, resource, action, scope). Implementations are selected at engine
// construction time; the engine never chooses a backend at call time.
type DecisionCache interface {
	// Get returns the cached decision and whether an unexpired entry exists.
	Get(actorID string, perm models.Permission) (allowed, ok bool)

	// Set stores a decision with a fresh TTL.
	Set(actorID string, perm models.Permission, allowed bool)

	// InvalidateActor removes every cached decision for the actor.
	InvalidateActor(actorID string)

	// Clear removes all cached decisions.
	Clear()

	// Close releases background resources. Safe to call multiple times.
	Close()
}

// cacheKey builds the cache key for a decision. The actor id is the key
// prefix so per-actor invalidation is a prefix match.
func cacheKey(actorID string, perm models.Permission) string {
	var b strings.Builder
	b.Grow(len(actorID) + len(perm.Resource) + len(perm.Action) + len(perm.Scope) + 3)
	b.WriteString(actorID)
	b.WriteByte(':')
	b.WriteString(perm.Resource)
	b.WriteByte(':')
	b.WriteString(perm.Action)
	b.WriteByte(':')
	b.WriteString(string(perm.Scope))
	return b.String()
}

// MemoryCache is the in-process DecisionCache: a TTL map with a periodic
// sweep of expired entries.
type MemoryCache struct {
	ttl      time.Duration
	mu       sync.RWMutex
	items    map[string]memoryCacheItem
	stopChan chan struct{}
	stopOnce sync.Once
}

type memoryCacheItem struct {
	allowed   bool
	expiresAt time.Time
}

// NewMemoryCache creates an in-process decision cache. A non-positive TTL
// falls back to five minutes.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	c := &MemoryCache{
		ttl:      ttl,
		items:    make(map[string]memoryCacheItem),
		stopChan: make(chan struct{}),
	}
	go c.sweep()
	return c
}

// Get retrieves a cached decision. Expired entries are never returned.
func (c *MemoryCache) Get(actorID string, perm models.Permission) (bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.items[cacheKey(actorID, perm)]
	if !ok || time.Now().After(item.expiresAt) {
		return false, false
	}
	return item.allowed, true
}

// Set stores a decision with a fresh TTL.
func (c *MemoryCache) Set(actorID string, perm models.Permission, allowed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[cacheKey(actorID, perm)] = memoryCacheItem{
		allowed:   allowed,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// InvalidateActor removes all cached decisions for an actor.
func (c *MemoryCache) InvalidateActor(actorID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := actorID + ":"
	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
		}
	}
}

// Clear removes all cached decisions.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[string]memoryCacheItem)
}

// Len returns the number of cached entries, including not-yet-swept expired
// ones.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// sweep periodically removes expired entries.
func (c *MemoryCache) sweep() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.mu.Lock()
			now := time.Now()
			for key, item := range c.items {
				if now.After(item.expiresAt) {
					delete(c.items, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

// Close stops the sweep goroutine. Idempotent.
func (c *MemoryCache) Close() {
	c.stopOnce.Do(func() {
		close(c.stopChan)
	})
}
