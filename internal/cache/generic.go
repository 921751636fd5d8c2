// Package cache implements the multi-tier cache: a generic TTL cache
// (C2), a typed album-year cache (C3), and a typed API-response cache
// (C4), all backed by the same atomic-JSON-file persistence idiom.
package cache

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/waves-sync/waves-sync/internal/cachekey"
	"github.com/waves-sync/waves-sync/internal/paths"
	"github.com/waves-sync/waves-sync/internal/syncerr"
)

// entry is the internal (value, expiry) pair stored per key.
type entry struct {
	Value     any       `json:"value"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Generic is an in-memory map with TTL expiry, an LRU-ish size cap, and
// atomic disk persistence. All mutating operations are safe for
// concurrent use.
type Generic struct {
	mu         sync.Mutex
	entries    map[string]entry
	defaultTTL time.Duration
	maxEntries int
	file       string
}

// NewGeneric creates a Generic cache. defaultTTL is used by Set calls
// that omit an explicit ttl; maxEntries is the size cap enforced by
// EnforceSizeLimits.
func NewGeneric(file string, defaultTTL time.Duration, maxEntries int) *Generic {
	return &Generic{
		entries:    make(map[string]entry),
		defaultTTL: defaultTTL,
		maxEntries: maxEntries,
		file:       file,
	}
}

// Get returns the cached value for key, lazily expiring it if its TTL has
// elapsed. The second return value reports whether a live entry was
// found.
func (g *Generic) Get(key any) (any, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	k := cachekey.GenericKey(key)
	e, ok := g.entries[k]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.ExpiresAt) {
		delete(g.entries, k)
		return nil, false
	}
	return e.Value, true
}

// Set stores value under key with the given ttl, or the cache's default
// TTL if ttl <= 0. Every Set amortizes expired-entry cleanup, matching
// the "absent a scheduler, cleanup runs on every set" fallback described
// in spec.md §4.2.
func (g *Generic) Set(key any, value any, ttl time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	actualTTL := ttl
	if actualTTL <= 0 {
		actualTTL = g.defaultTTL
	}

	k := cachekey.GenericKey(key)
	g.entries[k] = entry{Value: value, ExpiresAt: time.Now().Add(actualTTL)}

	g.cleanupExpiredLocked()
}

// Invalidate removes the entry for key, returning true if one was
// present.
func (g *Generic) Invalidate(key any) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	k := cachekey.GenericKey(key)
	if _, ok := g.entries[k]; !ok {
		return false
	}
	delete(g.entries, k)
	return true
}

// InvalidateAll clears every entry.
func (g *Generic) InvalidateAll() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries = make(map[string]entry)
}

// CleanupExpired removes every expired entry and returns the count
// removed.
func (g *Generic) CleanupExpired() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.cleanupExpiredLocked()
}

func (g *Generic) cleanupExpiredLocked() int {
	now := time.Now()
	removed := 0
	for k, e := range g.entries {
		if now.After(e.ExpiresAt) {
			delete(g.entries, k)
			removed++
		}
	}
	return removed
}

// EnforceSizeLimits drops the oldest entries (by ExpiresAt) until the
// cache is at or under its size cap, returning the count removed.
func (g *Generic) EnforceSizeLimits() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.enforceSizeLimitsLocked()
}

func (g *Generic) enforceSizeLimitsLocked() int {
	if g.maxEntries <= 0 || len(g.entries) <= g.maxEntries {
		return 0
	}

	type kv struct {
		key string
		exp time.Time
	}
	ordered := make([]kv, 0, len(g.entries))
	for k, e := range g.entries {
		ordered = append(ordered, kv{k, e.ExpiresAt})
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].exp.Before(ordered[j].exp) })

	toRemove := len(g.entries) - g.maxEntries
	for i := 0; i < toRemove; i++ {
		delete(g.entries, ordered[i].key)
	}
	return toRemove
}

// diskEntry mirrors entry for JSON persistence.
type diskEntry struct {
	Value     any   `json:"value"`
	ExpiresAt int64 `json:"expires_at"` // unix seconds
}

// SaveToDisk persists the cache to its JSON file atomically.
func (g *Generic) SaveToDisk() error {
	g.mu.Lock()
	payload := make(map[string]diskEntry, len(g.entries))
	for k, e := range g.entries {
		payload[k] = diskEntry{Value: e.Value, ExpiresAt: e.ExpiresAt.Unix()}
	}
	g.mu.Unlock()

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return syncerr.New(syncerr.KindCacheCorruption, "save generic cache", err)
	}
	return paths.AtomicWriteFile(g.file, data, 0o644)
}

// LoadFromDisk restores the cache from its JSON file, dropping any
// entries that have already expired. A missing file is not an error.
func (g *Generic) LoadFromDisk() error {
	data, err := readIfExists(g.file)
	if err != nil {
		return err
	}
	if data == nil {
		return nil
	}

	var payload map[string]diskEntry
	if err := json.Unmarshal(data, &payload); err != nil {
		// Corruption is recoverable: start fresh rather than fail the run.
		return syncerr.New(syncerr.KindCacheCorruption, "load generic cache", err)
	}

	now := time.Now()
	g.mu.Lock()
	defer g.mu.Unlock()
	for k, d := range payload {
		exp := time.Unix(d.ExpiresAt, 0)
		if exp.Before(now) {
			continue
		}
		g.entries[k] = entry{Value: d.Value, ExpiresAt: exp}
	}
	return nil
}

// Stats reports basic size information about the cache.
func (g *Generic) Stats() map[string]any {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := time.Now()
	valid, expired := 0, 0
	for _, e := range g.entries {
		if now.After(e.ExpiresAt) {
			expired++
		} else {
			valid++
		}
	}
	return map[string]any{
		"total_entries":   len(g.entries),
		"valid_entries":   valid,
		"expired_entries": expired,
		"max_entries":     g.maxEntries,
	}
}
