// Castellan - Authorization and Security Monitoring for Content Platforms
// Copyright 2026 Castellan Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/castellan-io/castellan

package authz

import (
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/castellan-io/castellan/internal/logging"
	"github.com/castellan-io/castellan/internal/models"
)

// decisionKeyPrefix namespaces decision entries inside a shared badger DB.
const decisionKeyPrefix = "authz:decision:"

// BadgerCache is a DecisionCache backed by BadgerDB. Entries use badger's
// native TTL, so expired decisions are never returned and are reclaimed by
// badger itself. It survives restarts and can sit on shared storage, which
// makes it the stand-in for a distributed cache backend in single-node
// deployments.
type BadgerCache struct {
	db  *badger.DB
	ttl time.Duration
}

// NewBadgerCache creates a badger-backed decision cache. The caller owns the
// DB handle; Close on the cache does not close it.
func NewBadgerCache(db *badger.DB, ttl time.Duration) *BadgerCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &BadgerCache{db: db, ttl: ttl}
}

// badgerKey builds the storage key for a decision.
func (c *BadgerCache) badgerKey(actorID string, perm models.Permission) []byte {
	return []byte(decisionKeyPrefix + cacheKey(actorID, perm))
}

// Get retrieves a cached decision. Storage errors degrade to a cache miss so
// the engine falls through to policy evaluation.
func (c *BadgerCache) Get(actorID string, perm models.Permission) (bool, bool) {
	var allowed bool
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(c.badgerKey(actorID, perm))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			allowed = len(val) == 1 && val[0] == 1
			return nil
		})
	})
	if err != nil {
		if !errors.Is(err, badger.ErrKeyNotFound) {
			logging.Error().Err(err).Msg("badger decision cache read failed")
		}
		return false, false
	}
	return allowed, true
}

// Set stores a decision with the cache TTL.
func (c *BadgerCache) Set(actorID string, perm models.Permission, allowed bool) {
	val := []byte{0}
	if allowed {
		val[0] = 1
	}
	err := c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry(c.badgerKey(actorID, perm), val).WithTTL(c.ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		logging.Error().Err(err).Msg("badger decision cache write failed")
	}
}

// InvalidateActor removes all cached decisions for an actor via a prefix
// scan.
func (c *BadgerCache) InvalidateActor(actorID string) {
	c.deletePrefix([]byte(decisionKeyPrefix + actorID + ":"))
}

// Clear removes all cached decisions.
func (c *BadgerCache) Clear() {
	c.deletePrefix([]byte(decisionKeyPrefix))
}

// deletePrefix removes every key under the given prefix.
func (c *BadgerCache) deletePrefix(prefix []byte) {
	err := c.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		logging.Error().Err(err).Msg("badger decision cache invalidation failed")
	}
}

// Close is a no-op; the DB handle belongs to the caller.
func (c *BadgerCache) Close() {}
