// Package pending implements the durable pending-verification queue
// described in spec.md §4.6: albums whose year came from a low-confidence
// or volatile source are parked here and re-checked on a schedule.
package pending

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/waves-sync/waves-sync/internal/cachekey"
	"github.com/waves-sync/waves-sync/internal/paths"
	"github.com/waves-sync/waves-sync/internal/syncerr"
)

// defaultRecheckDays is used when mark_for_verification is not given an
// explicit recheck interval.
const defaultRecheckDays = 7

// maxEntries bounds the store so a pathological run cannot grow it
// without limit; the oldest-by-first_marked_at entries are evicted once
// the cap is exceeded.
const maxEntries = 5000

// Entry mirrors spec.md's PendingAlbumEntry.
type Entry struct {
	Artist        string         `json:"artist"`
	Album         string         `json:"album"`
	Reason        string         `json:"reason"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	FirstMarkedAt time.Time      `json:"first_marked_at"`
	LastCheckedAt time.Time      `json:"last_checked_at"`
	NextCheckAt   time.Time      `json:"next_check_at"`
	Attempts      int            `json:"attempts"`
}

// Store is the durable (artist, album) -> Entry map.
type Store struct {
	mu      sync.Mutex
	entries map[string]Entry
	file    string
}

// New creates a Store backed by file.
func New(file string) *Store {
	return &Store{entries: make(map[string]Entry), file: file}
}

// MarkForVerification is an idempotent upsert: the first call for a given
// album creates the entry and sets first_marked_at; subsequent calls
// update the reason/metadata/deadline but preserve first_marked_at and
// increment attempts.
func (s *Store) MarkForVerification(artist, album, reason string, metadata map[string]any, recheckDays int) Entry {
	if recheckDays <= 0 {
		recheckDays = defaultRecheckDays
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := cachekey.AlbumKey(artist, album)
	now := time.Now()
	next := now.Add(time.Duration(recheckDays) * 24 * time.Hour)

	existing, ok := s.entries[key]
	entry := Entry{
		Artist:        artist,
		Album:         album,
		Reason:        reason,
		Metadata:      metadata,
		FirstMarkedAt: now,
		LastCheckedAt: now,
		NextCheckAt:   next,
		Attempts:      1,
	}
	if ok {
		entry.FirstMarkedAt = existing.FirstMarkedAt
		entry.Attempts = existing.Attempts + 1
	}

	s.entries[key] = entry
	s.enforceCapLocked()
	return entry
}

// GetEntry returns the pending entry for (artist, album), if any.
func (s *Store) GetEntry(artist, album string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[cachekey.AlbumKey(artist, album)]
	return e, ok
}

// IsVerificationNeeded reports whether (artist, album) is pending and due
// (next_check_at <= now). An album with no pending entry is not due.
func (s *Store) IsVerificationNeeded(artist, album string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[cachekey.AlbumKey(artist, album)]
	if !ok {
		return false
	}
	return !e.NextCheckAt.After(time.Now())
}

// GetAllPending returns every pending entry, sorted by album key for
// determinism.
func (s *Store) GetAllPending() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked(func(Entry) bool { return true })
}

// GetDueEntries returns pending entries whose next_check_at has arrived.
func (s *Store) GetDueEntries() []Entry {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked(func(e Entry) bool { return !e.NextCheckAt.After(now) })
}

func (s *Store) sortedLocked(keep func(Entry) bool) []Entry {
	out := make([]Entry, 0, len(s.entries))
	for _, e := range s.entries {
		if keep(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return cachekey.AlbumKey(out[i].Artist, out[i].Album) < cachekey.AlbumKey(out[j].Artist, out[j].Album)
	})
	return out
}

// RemoveFromPending deletes an entry, typically once a re-check resolves
// the year. A no-op if the entry is already absent.
func (s *Store) RemoveFromPending(artist, album string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, cachekey.AlbumKey(artist, album))
}

// ShouldAutoVerify reports whether any due entry exists. Callers that want
// to throttle verification runs to at most once per interval should track
// the last-run timestamp themselves and consult it alongside this result.
func (s *Store) ShouldAutoVerify() bool {
	return len(s.GetDueEntries()) > 0
}

// enforceCapLocked evicts the oldest-by-first_marked_at entries once the
// store exceeds maxEntries. Caller must hold s.mu.
func (s *Store) enforceCapLocked() {
	if len(s.entries) <= maxEntries {
		return
	}
	type keyed struct {
		key   string
		first time.Time
	}
	all := make([]keyed, 0, len(s.entries))
	for k, e := range s.entries {
		all = append(all, keyed{k, e.FirstMarkedAt})
	}
	sort.Slice(all, func(i, j int) bool { return all[i].first.Before(all[j].first) })

	excess := len(s.entries) - maxEntries
	for i := 0; i < excess; i++ {
		delete(s.entries, all[i].key)
	}
}

// SaveToDisk persists the store atomically.
func (s *Store) SaveToDisk() error {
	s.mu.Lock()
	data, err := json.MarshalIndent(s.entries, "", "  ")
	s.mu.Unlock()
	if err != nil {
		return syncerr.New(syncerr.KindCacheCorruption, "save pending-verification store", err)
	}
	return paths.AtomicWriteFile(s.file, data, 0o644)
}

// LoadFromDisk restores the store from its JSON file.
func (s *Store) LoadFromDisk() error {
	data, err := paths.ReadIfExists(s.file)
	if err != nil {
		return err
	}
	if data == nil {
		return nil
	}

	var entries map[string]Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return syncerr.New(syncerr.KindCacheCorruption, "load pending-verification store", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = entries
	return nil
}
