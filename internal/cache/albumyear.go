package cache

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/waves-sync/waves-sync/internal/cachekey"
	"github.com/waves-sync/waves-sync/internal/paths"
	"github.com/waves-sync/waves-sync/internal/syncerr"
)

// AlbumYearEntry is the full typed record stored per (artist, album).
type AlbumYearEntry struct {
	Artist     string    `json:"artist"`
	Album      string    `json:"album"`
	Year       string    `json:"year"`
	Confidence int       `json:"confidence"` // 0..100
	Timestamp  time.Time `json:"timestamp"`
}

// AlbumYear is a thin typed wrapper over a JSON-persisted map, keyed by
// the normalized album hash, producing AlbumYearEntry records.
type AlbumYear struct {
	mu      sync.Mutex
	entries map[string]AlbumYearEntry
	file    string
}

// NewAlbumYear creates an AlbumYear cache backed by file.
func NewAlbumYear(file string) *AlbumYear {
	return &AlbumYear{entries: make(map[string]AlbumYearEntry), file: file}
}

// StoreAlbumYear records a resolved year with its confidence. Negative
// confidences are rejected since a confidence is required evidence, not
// an optional annotation.
func (a *AlbumYear) StoreAlbumYear(artist, album, year string, confidence int) error {
	if confidence < 0 {
		return syncerr.New(syncerr.KindValidation, "store album year", fmt.Errorf("confidence must be >= 0, got %d", confidence))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	key := cachekey.AlbumKey(artist, album)
	a.entries[key] = AlbumYearEntry{
		Artist:     artist,
		Album:      album,
		Year:       year,
		Confidence: confidence,
		Timestamp:  time.Now(),
	}
	return nil
}

// GetAlbumYear returns just the year string, or "" if there is no entry.
func (a *AlbumYear) GetAlbumYear(artist, album string) string {
	e, ok := a.GetAlbumYearEntry(artist, album)
	if !ok {
		return ""
	}
	return e.Year
}

// GetAlbumYearEntry returns the full record for (artist, album).
func (a *AlbumYear) GetAlbumYearEntry(artist, album string) (AlbumYearEntry, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := cachekey.AlbumKey(artist, album)
	e, ok := a.entries[key]
	return e, ok
}

// InvalidateAlbum removes the entry for (artist, album), if any.
// Calling it twice is equivalent to calling it once.
func (a *AlbumYear) InvalidateAlbum(artist, album string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.entries, cachekey.AlbumKey(artist, album))
}

// InvalidateAll clears every entry.
func (a *AlbumYear) InvalidateAll() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = make(map[string]AlbumYearEntry)
}

// Stats reports basic size information.
func (a *AlbumYear) Stats() map[string]any {
	a.mu.Lock()
	defer a.mu.Unlock()
	return map[string]any{"total_albums": len(a.entries)}
}

// SaveToDisk persists the cache atomically.
func (a *AlbumYear) SaveToDisk() error {
	a.mu.Lock()
	data, err := json.MarshalIndent(a.entries, "", "  ")
	a.mu.Unlock()
	if err != nil {
		return syncerr.New(syncerr.KindCacheCorruption, "save album-year cache", err)
	}
	return paths.AtomicWriteFile(a.file, data, 0o644)
}

// LoadFromDisk restores the cache from its JSON file. A missing file is
// not an error; a malformed one is reported as CacheCorruption and the
// cache starts fresh.
func (a *AlbumYear) LoadFromDisk() error {
	data, err := readIfExists(a.file)
	if err != nil {
		return err
	}
	if data == nil {
		return nil
	}

	var entries map[string]AlbumYearEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return syncerr.New(syncerr.KindCacheCorruption, "load album-year cache", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = entries
	return nil
}
