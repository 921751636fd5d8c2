package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/waves-sync/waves-sync/internal/agent"
	"github.com/waves-sync/waves-sync/internal/api"
	"github.com/waves-sync/waves-sync/internal/cache"
	"github.com/waves-sync/waves-sync/internal/csvproj"
	"github.com/waves-sync/waves-sync/internal/pending"
	"github.com/waves-sync/waves-sync/internal/snapshot"
	"github.com/waves-sync/waves-sync/internal/synclog"
	"github.com/waves-sync/waves-sync/internal/year"
)

type fakeLibraryClient struct {
	records   []agent.Record
	bulkCalls int
}

func (f *fakeLibraryClient) Scan(ctx context.Context, opts agent.ScanOptions) ([]agent.Record, error) {
	if opts.Offset > 0 {
		return nil, nil
	}
	return f.records, nil
}

func (f *fakeLibraryClient) BulkUpdateYear(ctx context.Context, ids, years []string) error {
	f.bulkCalls++
	return nil
}

type fakeCache struct{}

func (fakeCache) GetAlbumYear(artist, album string) string { return "" }
func (fakeCache) GetAlbumYearEntry(artist, album string) (cache.AlbumYearEntry, bool) {
	return cache.AlbumYearEntry{}, false
}
func (fakeCache) StoreAlbumYear(artist, album, year string, confidence int) error { return nil }

type fakePending struct{}

func (fakePending) MarkForVerification(artist, album, reason string, metadata map[string]any, recheckDays int) pending.Entry {
	return pending.Entry{}
}

type fakeOrchestrator struct{}

func (fakeOrchestrator) Resolve(ctx context.Context, q api.Query, artistCountry string) api.Result {
	return api.Result{NoResult: true}
}

func newTestYearFactory() YearBatchFactory {
	resolver := year.New(year.DefaultConfig(), fakeCache{}, fakePending{}, fakeOrchestrator{})
	return func(agentCli year.AgentClient) *year.BatchProcessor {
		return year.NewBatchProcessor(resolver, agentCli, year.ProcessEditable, testLogger())
	}
}

func testLogger() synclog.Logger {
	l, _, _ := synclog.New("", false)
	return l
}

func newTestOrchestrator(t *testing.T, lib *fakeLibraryClient) (*Orchestrator, string) {
	t.Helper()
	dir := t.TempDir()

	snap := snapshot.New(dir, false, 24*time.Hour)
	csv := csvproj.New(filepath.Join(dir, "track_list.csv"), testLogger())

	cfg := Config{
		ChangesReportPath: filepath.Join(dir, "changes_report.csv"),
		LastRunLogPath:    filepath.Join(dir, "last_incremental_run.log"),
		GenreEnabled:      true,
	}

	return New(lib, snap, csv, newTestYearFactory(), cfg, testLogger()), dir
}

func testRecord(id, artist, album, year string) agent.Record {
	return agent.Record{
		ID:               id,
		Name:             "Track " + id,
		Artist:           artist,
		Album:            album,
		Genre:            "Rock",
		DateAdded:        "2020-01-01T00:00:00Z",
		ModificationDate: "2020-01-01T00:00:00Z",
		TrackStatus:      "purchased",
		Year:             year,
	}
}

func TestRunFirstRunProcessesEveryTrackAndForces(t *testing.T) {
	lib := &fakeLibraryClient{records: []agent.Record{
		testRecord("1", "Artist A", "Album A", "2001"),
		testRecord("2", "Artist B", "Album B", "2002"),
	}}
	orch, dir := newTestOrchestrator(t, lib)

	result, err := orch.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Skipped {
		t.Fatalf("expected first run not to be skipped")
	}
	if !result.Forced {
		t.Fatalf("expected first run to be forced (no prior force scan recorded)")
	}
	if result.TracksScanned != 2 || result.TracksInScope != 2 {
		t.Fatalf("expected 2 tracks scanned and in scope, got %+v", result)
	}

	ts, err := readLastIncrementalRun(filepath.Join(dir, "last_incremental_run.log"))
	if err != nil {
		t.Fatalf("readLastIncrementalRun: %v", err)
	}
	if ts.IsZero() {
		t.Fatalf("expected last_incremental_run.log to be written")
	}

	rows, err := csvproj.New(filepath.Join(dir, "track_list.csv"), testLogger()).Load()
	if err != nil {
		t.Fatalf("load csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 csv rows, got %d", len(rows))
	}
}

func TestRunSecondRunWithNoChangesSkips(t *testing.T) {
	records := []agent.Record{
		testRecord("1", "Artist A", "Album A", "2001"),
		testRecord("2", "Artist B", "Album B", "2002"),
	}
	lib := &fakeLibraryClient{records: records}
	orch, dir := newTestOrchestrator(t, lib)

	if _, err := orch.Run(context.Background(), RunOptions{}); err != nil {
		t.Fatalf("first run: %v", err)
	}
	firstLog, err := readLastIncrementalRun(filepath.Join(dir, "last_incremental_run.log"))
	if err != nil {
		t.Fatalf("read first log: %v", err)
	}

	result, err := orch.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !result.Skipped {
		t.Fatalf("expected second run with no library changes to be skipped, got %+v", result)
	}

	secondLog, err := readLastIncrementalRun(filepath.Join(dir, "last_incremental_run.log"))
	if err != nil {
		t.Fatalf("read second log: %v", err)
	}
	if !secondLog.Equal(firstLog) {
		t.Fatalf("expected skipped run to leave last_incremental_run.log untouched, got %v vs %v", firstLog, secondLog)
	}
}

func TestRunDetectsNewTrackAsInScope(t *testing.T) {
	lib := &fakeLibraryClient{records: []agent.Record{
		testRecord("1", "Artist A", "Album A", "2001"),
	}}
	orch, _ := newTestOrchestrator(t, lib)

	if _, err := orch.Run(context.Background(), RunOptions{}); err != nil {
		t.Fatalf("first run: %v", err)
	}

	lib.records = append(lib.records, testRecord("2", "Artist B", "Album B", "2002"))

	result, err := orch.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if result.Skipped {
		t.Fatalf("expected second run to detect the new track")
	}
	if result.TracksScanned != 2 {
		t.Fatalf("expected 2 tracks scanned, got %d", result.TracksScanned)
	}
	if result.TracksInScope != 1 {
		t.Fatalf("expected only the new track in scope, got %d", result.TracksInScope)
	}
}

func TestRunDryRunWritesNothingToDisk(t *testing.T) {
	lib := &fakeLibraryClient{records: []agent.Record{
		testRecord("1", "Artist A", "Album A", "2001"),
	}}
	orch, dir := newTestOrchestrator(t, lib)

	if _, err := orch.Run(context.Background(), RunOptions{DryRun: true}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	ts, err := readLastIncrementalRun(filepath.Join(dir, "last_incremental_run.log"))
	if err != nil {
		t.Fatalf("readLastIncrementalRun: %v", err)
	}
	if !ts.IsZero() {
		t.Fatalf("expected dry run not to write last_incremental_run.log")
	}
	if lib.bulkCalls != 0 {
		t.Fatalf("expected dry run not to write years through the agent, got %d calls", lib.bulkCalls)
	}
}

func TestRunFullResyncForcesAndIgnoresPriorSnapshot(t *testing.T) {
	lib := &fakeLibraryClient{records: []agent.Record{
		testRecord("1", "Artist A", "Album A", "2001"),
	}}
	orch, _ := newTestOrchestrator(t, lib)

	if _, err := orch.Run(context.Background(), RunOptions{}); err != nil {
		t.Fatalf("first run: %v", err)
	}

	result, err := orch.RunFullResync(context.Background(), "")
	if err != nil {
		t.Fatalf("RunFullResync: %v", err)
	}
	if !result.Forced {
		t.Fatalf("expected RunFullResync to force a full scan")
	}
	if result.TracksInScope != 1 {
		t.Fatalf("expected the full resync to treat every track as in scope, got %d", result.TracksInScope)
	}
}
