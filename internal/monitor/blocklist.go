// Castellan - Authorization and Security Monitoring for Content Platforms
// Copyright 2026 Castellan Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castellan-io/castellan

package monitor

import (
	"sort"
	"sync"
	"time"
)

// BlockList is an in-memory TTL set of blocked IP addresses. Expired entries
// are invisible to IsBlocked immediately and reclaimed by the service sweep.
type BlockList struct {
	mu      sync.RWMutex
	entries map[string]BlockedIP
	ttl     time.Duration
}

// NewBlockList creates a block list with the given default TTL. A
// non-positive TTL falls back to thirty minutes.
func NewBlockList(ttl time.Duration) *BlockList {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &BlockList{
		entries: make(map[string]BlockedIP),
		ttl:     ttl,
	}
}

// Block adds or refreshes a block for the IP with the default TTL.
func (b *BlockList) Block(ip, reason string) {
	b.BlockFor(ip, reason, b.ttl)
}

// BlockFor adds or refreshes a block with an explicit duration.
func (b *BlockList) BlockFor(ip, reason string, d time.Duration) {
	if ip == "" {
		return
	}
	now := time.Now()

	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[ip] = BlockedIP{
		IPAddress: ip,
		Reason:    reason,
		BlockedAt: now,
		ExpiresAt: now.Add(d),
	}
}

// IsBlocked reports whether the IP has an unexpired block.
func (b *BlockList) IsBlocked(ip string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	entry, ok := b.entries[ip]
	return ok && time.Now().Before(entry.ExpiresAt)
}

// Unblock removes the IP from the list. Unblocking an unlisted IP is a
// no-op.
func (b *BlockList) Unblock(ip string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.entries, ip)
}

// List returns unexpired blocks ordered by block time, newest first.
func (b *BlockList) List() []BlockedIP {
	b.mu.RLock()
	defer b.mu.RUnlock()

	now := time.Now()
	blocked := make([]BlockedIP, 0, len(b.entries))
	for _, entry := range b.entries {
		if now.Before(entry.ExpiresAt) {
			blocked = append(blocked, entry)
		}
	}
	sort.Slice(blocked, func(i, j int) bool {
		return blocked[i].BlockedAt.After(blocked[j].BlockedAt)
	})
	return blocked
}

// Sweep removes expired entries. Returns the number removed.
func (b *BlockList) Sweep() int {
	now := time.Now()

	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for ip, entry := range b.entries {
		if !now.Before(entry.ExpiresAt) {
			delete(b.entries, ip)
			removed++
		}
	}
	return removed
}

// Clear removes all entries.
func (b *BlockList) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = make(map[string]BlockedIP)
}

// Len returns the number of entries, including not-yet-swept expired ones.
func (b *BlockList) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.entries)
}
