package snapshot

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/waves-sync/waves-sync/internal/track"
)

func TestSaveLoadSnapshotRoundTrip(t *testing.T) {
	s := New(t.TempDir(), false, time.Hour)
	tracks := []track.Track{{ID: "1", Name: "Song", Artist: "Artist"}}

	if err := s.SaveSnapshot(tracks); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	got, err := s.LoadSnapshot()
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if len(got) != 1 || got[0].ID != "1" {
		t.Fatalf("unexpected snapshot: %+v", got)
	}
}

func TestSaveLoadSnapshotCompressedRoundTrip(t *testing.T) {
	s := New(t.TempDir(), true, time.Hour)
	tracks := []track.Track{{ID: "1", Name: "Song"}}

	if err := s.SaveSnapshot(tracks); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}
	got, err := s.LoadSnapshot()
	if err != nil {
		t.Fatalf("LoadSnapshot: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected restored compressed snapshot, got %+v", got)
	}
}

func TestSaveSnapshotCleansOtherExtension(t *testing.T) {
	dir := t.TempDir()
	uncompressed := New(dir, false, time.Hour)
	if err := uncompressed.SaveSnapshot([]track.Track{{ID: "1"}}); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	compressed := New(dir, true, time.Hour)
	if err := compressed.SaveSnapshot([]track.Track{{ID: "1"}}); err != nil {
		t.Fatalf("SaveSnapshot: %v", err)
	}

	// Only the gzip copy should remain now.
	if data, _ := compressed.LoadSnapshot(); len(data) != 1 {
		t.Fatalf("expected compressed snapshot loadable after extension swap")
	}
	if _, err := uncompressedPathExists(filepath.Join(dir, "library_snapshot.json")); err == nil {
		t.Fatalf("expected plain .json snapshot removed once compressed copy was saved")
	}
}

func uncompressedPathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	return err == nil, err
}

func TestIsValidRejectsVersionMismatch(t *testing.T) {
	s := New(t.TempDir(), false, time.Hour)
	_ = s.SaveSnapshot(nil)
	now := time.Now()
	meta := &Metadata{Version: SnapshotVersion + 1, LastFullScan: now, LibraryMtime: now}
	if s.IsValid(meta, now, now) {
		t.Fatalf("expected version mismatch to invalidate snapshot")
	}
}

func TestIsValidLibraryUnchangedIgnoresAge(t *testing.T) {
	s := New(t.TempDir(), false, time.Hour)
	_ = s.SaveSnapshot(nil)
	past := time.Now().Add(-48 * time.Hour)
	meta := &Metadata{Version: SnapshotVersion, LastFullScan: past, LibraryMtime: past}

	// Library mtime equal to (not after) the recorded mtime: unchanged.
	if !s.IsValid(meta, past, time.Now()) {
		t.Fatalf("expected unchanged library to validate regardless of age")
	}
}

func TestIsValidExpiresWhenLibraryChangedAndStale(t *testing.T) {
	s := New(t.TempDir(), false, time.Hour)
	_ = s.SaveSnapshot(nil)
	scanTime := time.Now().Add(-2 * time.Hour)
	meta := &Metadata{Version: SnapshotVersion, LastFullScan: scanTime, LibraryMtime: scanTime}

	libraryMtime := scanTime.Add(time.Minute) // library changed after the scan
	if s.IsValid(meta, libraryMtime, time.Now()) {
		t.Fatalf("expected stale snapshot with changed library to be invalid")
	}
}

func TestIsValidNilMetadata(t *testing.T) {
	s := New(t.TempDir(), false, time.Hour)
	if s.IsValid(nil, time.Now(), time.Now()) {
		t.Fatalf("expected nil metadata to be invalid")
	}
}

func TestShouldForceScan(t *testing.T) {
	now := time.Now()
	if ok, _ := ShouldForceScan(true, now, now); !ok {
		t.Fatalf("expected explicit force to win")
	}
	if ok, _ := ShouldForceScan(false, time.Time{}, now); !ok {
		t.Fatalf("expected first run (no prior force scan) to force")
	}
	if ok, _ := ShouldForceScan(false, now.Add(-8*24*time.Hour), now); !ok {
		t.Fatalf("expected weekly auto-force to fire after 7+ days")
	}
	if ok, _ := ShouldForceScan(false, now.Add(-time.Hour), now); ok {
		t.Fatalf("expected no force scan within the interval")
	}
}

func TestFastDelta(t *testing.T) {
	d := FastDelta([]string{"1", "2", "3"}, []string{"2", "3", "4"})
	if len(d.NewIDs) != 1 || d.NewIDs[0] != "1" {
		t.Fatalf("expected new id 1, got %v", d.NewIDs)
	}
	if len(d.RemovedIDs) != 1 || d.RemovedIDs[0] != "4" {
		t.Fatalf("expected removed id 4, got %v", d.RemovedIDs)
	}
	if len(d.UpdatedIDs) != 0 {
		t.Fatalf("expected fast mode to never populate updated ids, got %v", d.UpdatedIDs)
	}
}

func TestComputeTrackDeltaDetectsMetadataChange(t *testing.T) {
	live := []track.Track{{ID: "1", LastModified: "200"}}
	stored := []track.Track{{ID: "1", LastModified: "100"}}

	d := ComputeTrackDelta(live, stored)
	if len(d.UpdatedIDs) != 1 {
		t.Fatalf("expected last_modified change to mark track updated, got %v", d.UpdatedIDs)
	}
}

func TestComputeTrackDeltaIgnoresFirstRunStatusTransition(t *testing.T) {
	live := []track.Track{{ID: "1", TrackStatus: "purchased"}}
	stored := []track.Track{{ID: "1"}} // no status recorded yet

	d := ComputeTrackDelta(live, stored)
	if len(d.UpdatedIDs) != 0 {
		t.Fatalf("expected empty-to-value status transition to not trigger an update, got %v", d.UpdatedIDs)
	}
}

func TestComputeTrackDeltaDetectsStatusChangeWhenBothSidesSet(t *testing.T) {
	live := []track.Track{{ID: "1", TrackStatus: "purchased"}}
	stored := []track.Track{{ID: "1", TrackStatus: "subscription"}}

	d := ComputeTrackDelta(live, stored)
	if len(d.UpdatedIDs) != 1 {
		t.Fatalf("expected status change to mark track updated when both sides are set, got %v", d.UpdatedIDs)
	}
}

func TestComputeTrackDeltaNewAndRemoved(t *testing.T) {
	live := []track.Track{{ID: "1"}, {ID: "2"}}
	stored := []track.Track{{ID: "2"}, {ID: "3"}}

	d := ComputeTrackDelta(live, stored)
	if len(d.NewIDs) != 1 || d.NewIDs[0] != "1" {
		t.Fatalf("expected new id 1, got %v", d.NewIDs)
	}
	if len(d.RemovedIDs) != 1 || d.RemovedIDs[0] != "3" {
		t.Fatalf("expected removed id 3, got %v", d.RemovedIDs)
	}
}

func TestDeltaCacheShouldReset(t *testing.T) {
	d := &DeltaCache{ProcessedTrackIDs: make(map[string]bool)}
	for i := 0; i < maxProcessedIDs+1; i++ {
		d.ProcessedTrackIDs[strconv.Itoa(i)] = true
	}
	if !d.ShouldReset() {
		t.Fatalf("expected ShouldReset true once over the cap")
	}
}

func TestSaveLoadDeltaRoundTrip(t *testing.T) {
	s := New(t.TempDir(), false, time.Hour)
	d := &DeltaCache{ProcessedTrackIDs: map[string]bool{"1": true}, TrackedSince: time.Now()}

	if err := s.SaveDelta(d, time.Now()); err != nil {
		t.Fatalf("SaveDelta: %v", err)
	}
	got, err := s.LoadDelta()
	if err != nil {
		t.Fatalf("LoadDelta: %v", err)
	}
	if got == nil || !got.ProcessedTrackIDs["1"] {
		t.Fatalf("expected restored delta cache, got %+v", got)
	}
}
