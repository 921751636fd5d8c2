package cache

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/waves-sync/waves-sync/internal/cachekey"
	"github.com/waves-sync/waves-sync/internal/paths"
	"github.com/waves-sync/waves-sync/internal/syncerr"
)

// CachedAPIResultMetadata carries out-of-band annotations about a cached
// API outcome. IsNegative distinguishes a cached negative lookup (the
// source was queried and definitively found nothing) from a cache miss.
type CachedAPIResultMetadata struct {
	IsNegative bool `json:"is_negative"`
}

// CachedAPIResult is the per-source cached outcome of an external query.
type CachedAPIResult struct {
	Artist    string                   `json:"artist"`
	Album     string                   `json:"album"`
	Source    string                   `json:"source"`
	Year      string                   `json:"year"` // empty when absent
	Timestamp time.Time                `json:"timestamp"`
	Metadata  CachedAPIResultMetadata  `json:"metadata"`
}

// APIResponse stores per-source API results keyed by (artist, album,
// source).
type APIResponse struct {
	mu      sync.Mutex
	entries map[string]CachedAPIResult
	// byAlbum indexes which keys belong to a given album, so
	// InvalidateForAlbum can remove every source's entry in one call
	// without scanning the whole map.
	byAlbum map[string]map[string]struct{}
	file    string
}

// NewAPIResponse creates an APIResponse cache backed by file.
func NewAPIResponse(file string) *APIResponse {
	return &APIResponse{
		entries: make(map[string]CachedAPIResult),
		byAlbum: make(map[string]map[string]struct{}),
		file:    file,
	}
}

// Set stores a result (including a definitive negative result) for
// (artist, album, source).
func (c *APIResponse) Set(artist, album, source, year string, isNegative bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cachekey.APIKey(artist, album, source)
	albumKey := cachekey.AlbumKey(artist, album)

	c.entries[key] = CachedAPIResult{
		Artist: artist, Album: album, Source: source, Year: year,
		Timestamp: time.Now(),
		Metadata:  CachedAPIResultMetadata{IsNegative: isNegative},
	}

	if c.byAlbum[albumKey] == nil {
		c.byAlbum[albumKey] = make(map[string]struct{})
	}
	c.byAlbum[albumKey][key] = struct{}{}
}

// Get returns the cached result for (artist, album, source), if any.
func (c *APIResponse) Get(artist, album, source string) (CachedAPIResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.entries[cachekey.APIKey(artist, album, source)]
	return r, ok
}

// InvalidateForAlbum removes every source's cached entry for
// (artist, album) in one call.
func (c *APIResponse) InvalidateForAlbum(artist, album string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	albumKey := cachekey.AlbumKey(artist, album)
	for key := range c.byAlbum[albumKey] {
		delete(c.entries, key)
	}
	delete(c.byAlbum, albumKey)
}

// SaveToDisk persists the cache atomically.
func (c *APIResponse) SaveToDisk() error {
	c.mu.Lock()
	data, err := json.MarshalIndent(c.entries, "", "  ")
	c.mu.Unlock()
	if err != nil {
		return syncerr.New(syncerr.KindCacheCorruption, "save api-response cache", err)
	}
	return paths.AtomicWriteFile(c.file, data, 0o644)
}

// LoadFromDisk restores the cache from its JSON file, rebuilding the
// per-album index.
func (c *APIResponse) LoadFromDisk() error {
	data, err := readIfExists(c.file)
	if err != nil {
		return err
	}
	if data == nil {
		return nil
	}

	var entries map[string]CachedAPIResult
	if err := json.Unmarshal(data, &entries); err != nil {
		return syncerr.New(syncerr.KindCacheCorruption, "load api-response cache", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = entries
	c.byAlbum = make(map[string]map[string]struct{})
	for key, r := range entries {
		albumKey := cachekey.AlbumKey(r.Artist, r.Album)
		if c.byAlbum[albumKey] == nil {
			c.byAlbum[albumKey] = make(map[string]struct{})
		}
		c.byAlbum[albumKey][key] = struct{}{}
	}
	return nil
}
