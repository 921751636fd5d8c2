// Package snapshot owns the library snapshot, its metadata sidecar, and
// the delta cache described in spec.md §4.9/§4.10. Grounded on
// original_source/src/services/cache/snapshot.py's LibrarySnapshotService
// (validity rule, atomic write, exclusive gzip/plain extension, Smart
// Delta fast/force modes) and internal/cache's JSON-over-atomic-file
// persistence idiom.
package snapshot

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/waves-sync/waves-sync/internal/paths"
	"github.com/waves-sync/waves-sync/internal/syncerr"
	"github.com/waves-sync/waves-sync/internal/track"
)

// SnapshotVersion must match between a saved snapshot and the reader;
// bumped whenever the persisted track shape changes incompatibly.
const SnapshotVersion = 1

// ForceScanInterval is the weekly auto-force cadence from spec.md §4.9.
const ForceScanInterval = 7 * 24 * time.Hour

// Metadata is the snapshot's sidecar record.
type Metadata struct {
	Version        int       `json:"version"`
	LastFullScan   time.Time `json:"last_full_scan"`
	LibraryMtime   time.Time `json:"library_mtime"`
	LastForceScan  time.Time `json:"last_force_scan_time"`
}

// Service owns the three snapshot-related files in the cache directory.
type Service struct {
	dir      string
	compress bool
	maxAge   time.Duration
}

// New creates a Service rooted at dir. When compress is true, snapshots
// are written gzip-compressed with a .json.gz extension; the opposite
// extension is cleaned up on every save so exactly one copy exists.
func New(dir string, compress bool, maxAge time.Duration) *Service {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &Service{dir: dir, compress: compress, maxAge: maxAge}
}

func (s *Service) jsonPath() string { return filepath.Join(s.dir, "library_snapshot.json") }
func (s *Service) gzPath() string   { return filepath.Join(s.dir, "library_snapshot.json.gz") }
func (s *Service) metaPath() string { return filepath.Join(s.dir, "library_snapshot.meta.json") }
func (s *Service) deltaPath() string {
	return filepath.Join(s.dir, "library_delta.json")
}

func (s *Service) snapshotPath() string {
	if s.compress {
		return s.gzPath()
	}
	return s.jsonPath()
}

// SaveSnapshot persists tracks atomically and removes whichever of the
// plain/gzip extensions is not in use, so only one copy ever exists on
// disk.
func (s *Service) SaveSnapshot(tracks []track.Track) error {
	data, err := json.Marshal(tracks)
	if err != nil {
		return syncerr.New(syncerr.KindCacheCorruption, "marshal snapshot", err)
	}

	if s.compress {
		var buf bytes.Buffer
		gw, _ := gzip.NewWriterLevel(&buf, gzip.DefaultCompression)
		if _, err := gw.Write(data); err != nil {
			return syncerr.New(syncerr.KindCacheCorruption, "gzip snapshot", err)
		}
		if err := gw.Close(); err != nil {
			return syncerr.New(syncerr.KindCacheCorruption, "gzip snapshot", err)
		}
		data = buf.Bytes()
	}

	if err := paths.AtomicWriteFile(s.snapshotPath(), data, 0o644); err != nil {
		return err
	}
	return s.cleanOtherExtension()
}

// cleanOtherExtension removes whichever of the two snapshot file
// extensions is not currently in use.
func (s *Service) cleanOtherExtension() error {
	other := s.jsonPath()
	if !s.compress {
		other = s.gzPath()
	}
	if err := os.Remove(other); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// LoadSnapshot restores the persisted track list, if any.
func (s *Service) LoadSnapshot() ([]track.Track, error) {
	data, err := paths.ReadIfExists(s.snapshotPath())
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	if s.compress {
		gr, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, syncerr.New(syncerr.KindCacheCorruption, "ungzip snapshot", err)
		}
		defer gr.Close()
		data, err = io.ReadAll(gr)
		if err != nil {
			return nil, syncerr.New(syncerr.KindCacheCorruption, "ungzip snapshot", err)
		}
	}

	var tracks []track.Track
	if err := json.Unmarshal(data, &tracks); err != nil {
		return nil, syncerr.New(syncerr.KindCacheCorruption, "unmarshal snapshot", err)
	}
	return tracks, nil
}

// SaveMetadata persists the snapshot sidecar atomically.
func (s *Service) SaveMetadata(m Metadata) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return syncerr.New(syncerr.KindCacheCorruption, "marshal snapshot metadata", err)
	}
	return paths.AtomicWriteFile(s.metaPath(), data, 0o644)
}

// LoadMetadata restores the snapshot sidecar, if any.
func (s *Service) LoadMetadata() (*Metadata, error) {
	data, err := paths.ReadIfExists(s.metaPath())
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, syncerr.New(syncerr.KindCacheCorruption, "unmarshal snapshot metadata", err)
	}
	return &m, nil
}

// IsValid implements spec.md §4.9's validity rule: version must match,
// the file must exist, and either the library is unchanged since the
// snapshot, or the snapshot is still within its max age.
//
// libraryMtime must already be normalized to naive UTC by the caller (a
// local-timezone mtime compared against a naive-UTC snapshot timestamp
// produces false "library changed" positives).
func (s *Service) IsValid(meta *Metadata, libraryMtime time.Time, now time.Time) bool {
	if meta == nil {
		return false
	}
	if meta.Version != SnapshotVersion {
		return false
	}
	if _, err := os.Stat(s.snapshotPath()); err != nil {
		return false
	}

	libraryUnchanged := !libraryMtime.After(meta.LibraryMtime)
	if libraryUnchanged {
		return true
	}

	if s.maxAge <= 0 {
		return false
	}
	age := now.Sub(meta.LastFullScan)
	return age <= s.maxAge
}

// ShouldForceScan reports whether a force scan is due: explicit --force,
// or the last force scan was a week or more ago (or never happened).
func ShouldForceScan(explicit bool, lastForceScan time.Time, now time.Time) (bool, string) {
	if explicit {
		return true, "explicit --force"
	}
	if lastForceScan.IsZero() {
		return true, "no prior force scan recorded"
	}
	if now.Sub(lastForceScan) >= ForceScanInterval {
		return true, "weekly auto-force interval elapsed"
	}
	return false, "within force-scan interval"
}

// DeltaCache is the persisted LibraryDeltaCache from spec.md §4: tracks
// already processed, the field hashes used to detect metadata changes
// out-of-band from last_modified, and a self-reset cap.
type DeltaCache struct {
	LastRun           time.Time       `json:"last_run"`
	ProcessedTrackIDs map[string]bool `json:"processed_track_ids"`
	FieldHashes       map[string]string `json:"field_hashes"`
	TrackedSince      time.Time       `json:"tracked_since"`
}

// maxProcessedIDs bounds DeltaCache.ProcessedTrackIDs; ShouldReset fires
// once the set exceeds this, matching spec.md's "hard cap" self-reset.
const maxProcessedIDs = 200000

// ShouldReset reports whether the delta cache has grown past its bound
// and should be reset rather than grown further.
func (d *DeltaCache) ShouldReset() bool {
	return len(d.ProcessedTrackIDs) > maxProcessedIDs
}

// SaveDelta persists the delta cache atomically, resetting it first if
// it has exceeded its bound.
func (s *Service) SaveDelta(d *DeltaCache, now time.Time) error {
	if d.ShouldReset() {
		d.ProcessedTrackIDs = make(map[string]bool)
		d.TrackedSince = now
	}
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return syncerr.New(syncerr.KindCacheCorruption, "marshal delta cache", err)
	}
	return paths.AtomicWriteFile(s.deltaPath(), data, 0o644)
}

// LoadDelta restores the delta cache, discarding it (returning nil) if
// it was already over its bound when persisted.
func (s *Service) LoadDelta() (*DeltaCache, error) {
	data, err := paths.ReadIfExists(s.deltaPath())
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	var d DeltaCache
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, syncerr.New(syncerr.KindCacheCorruption, "unmarshal delta cache", err)
	}
	if d.ShouldReset() {
		return nil, nil
	}
	return &d, nil
}

// FastDelta implements Fast mode: pure set difference between the
// snapshot's ids and the live ids fetched from the agent. No metadata
// comparison, no updated_ids.
func FastDelta(liveIDs, snapshotIDs []string) track.Delta {
	live := toSet(liveIDs)
	stored := toSet(snapshotIDs)

	var newIDs, removedIDs []string
	for id := range live {
		if !stored[id] {
			newIDs = append(newIDs, id)
		}
	}
	for id := range stored {
		if !live[id] {
			removedIDs = append(removedIDs, id)
		}
	}
	return track.NewDelta(newIDs, nil, removedIDs)
}

// ComputeTrackDelta implements C10: the pure function comparing live
// track records against the stored (snapshot) ones. new_ids/removed_ids
// are set differences; updated_ids contains ids present on both sides
// whose last_modified or date_added changed (any non-empty change), or
// whose track_status changed (only when BOTH sides carry a non-empty
// status, so a first-run empty-to-value transition never triggers a mass
// update storm). All three lists are sorted for determinism.
func ComputeTrackDelta(live, stored []track.Track) track.Delta {
	liveMap := make(map[string]track.Track, len(live))
	for _, t := range live {
		liveMap[t.ID] = t
	}
	storedMap := make(map[string]track.Track, len(stored))
	for _, t := range stored {
		storedMap[t.ID] = t
	}

	var newIDs, removedIDs, updatedIDs []string
	for id := range liveMap {
		if _, ok := storedMap[id]; !ok {
			newIDs = append(newIDs, id)
		}
	}
	for id := range storedMap {
		if _, ok := liveMap[id]; !ok {
			removedIDs = append(removedIDs, id)
		}
	}
	for id, cur := range liveMap {
		prev, ok := storedMap[id]
		if !ok {
			continue
		}
		statusChanged := prev.TrackStatus != "" && cur.TrackStatus != "" && prev.TrackStatus != cur.TrackStatus
		if (cur.LastModified != "" && cur.LastModified != prev.LastModified) ||
			(cur.DateAdded != "" && cur.DateAdded != prev.DateAdded) ||
			statusChanged {
			updatedIDs = append(updatedIDs, id)
		}
	}

	return track.NewDelta(newIDs, updatedIDs, removedIDs)
}

func toSet(ids []string) map[string]bool {
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}
