// Package pipeline implements the Pipeline Orchestrator (C14): the sole
// run-initiator described in spec.md §4.14. One run walks the ten steps
// in strict sequence (scope selection, mtime capture, cleaning, artist
// renames, genres, years, report emission, CSV sync, snapshot persist,
// timestamp update), each observing every write the previous step made.
// Grounded on original_source/src/app/full_sync.py and
// src/app/music_updater.py for step ordering and the early-exit-on-no-
// changes behavior; Go control flow follows the teacher's internal/app
// top-level coordinator shape (one orchestrator, explicit step methods)
// adapted from a Bubble Tea update loop to a linear batch run.
package pipeline

import (
	"context"
	"os"
	"time"

	"github.com/waves-sync/waves-sync/internal/agent"
	"github.com/waves-sync/waves-sync/internal/csvproj"
	"github.com/waves-sync/waves-sync/internal/namerename"
	"github.com/waves-sync/waves-sync/internal/report"
	"github.com/waves-sync/waves-sync/internal/snapshot"
	"github.com/waves-sync/waves-sync/internal/synclog"
	"github.com/waves-sync/waves-sync/internal/track"
	"github.com/waves-sync/waves-sync/internal/year"
)

// scanPageSize bounds each paged library-scan call.
const scanPageSize = 1000

// LibraryClient is the subset of internal/agent.Client this package
// needs: a paged scan plus the bulk year write year.BatchProcessor
// drives.
type LibraryClient interface {
	Scan(ctx context.Context, opts agent.ScanOptions) ([]agent.Record, error)
	BulkUpdateYear(ctx context.Context, ids, years []string) error
}

// Config carries the orchestrator's run-time tunables, assembled by the
// caller from internal/config.Config.
type Config struct {
	LibrarySources     []string
	ChangesReportPath  string
	TimestampedReports bool
	ReportDir          string
	LastRunLogPath     string
	GenreEnabled       bool
	RenameAliases      namerename.AliasTable
}

// YearBatchFactory builds a BatchProcessor bound to agentCli. Run calls
// this once per invocation so --dry-run can swap in a no-op year writer
// without reconstructing the resolver/cache/pending wiring.
type YearBatchFactory func(agentCli year.AgentClient) *year.BatchProcessor

// Orchestrator implements C14.
type Orchestrator struct {
	agentClient LibraryClient
	snapshot    *snapshot.Service
	csv         *csvproj.Store
	yearBatch   YearBatchFactory
	cfg         Config
	log         synclog.Logger
	now         func() time.Time
}

// New creates an Orchestrator.
func New(agentClient LibraryClient, snap *snapshot.Service, csv *csvproj.Store, yearBatch YearBatchFactory, cfg Config, log synclog.Logger) *Orchestrator {
	return &Orchestrator{
		agentClient: agentClient,
		snapshot:    snap,
		csv:         csv,
		yearBatch:   yearBatch,
		cfg:         cfg,
		log:         log,
		now:         time.Now,
	}
}

// RunOptions parameterizes a single run.
type RunOptions struct {
	Force        bool
	DryRun       bool
	Fresh        bool // supplemental --fresh: discard the prior snapshot entirely
	ArtistFilter string
}

// Result summarizes one run for the CLI's exit status, console summary,
// and run history.
type Result struct {
	Skipped       bool // Smart Delta found no changed tracks; timestamp untouched
	Forced        bool
	TracksScanned int
	TracksInScope int
	Entries       []track.ChangeLogEntry
}

func (o *Orchestrator) scanAll(ctx context.Context, artistFilter string) ([]track.Track, error) {
	var all []track.Track
	offset := 0
	for {
		records, err := o.agentClient.Scan(ctx, agent.ScanOptions{
			ArtistFilter: artistFilter,
			Offset:       offset,
			Limit:        scanPageSize,
		})
		if err != nil {
			return nil, err
		}
		all = append(all, recordsToTracks(records)...)
		if len(records) < scanPageSize {
			break
		}
		offset += scanPageSize
	}
	return all, nil
}

// captureLibraryMtime implements step 2: the library's on-disk mtime is
// read before any fetch begins, so writes landing mid-fetch are never
// mistaken next run for "already covered by this snapshot". Returns the
// zero time if no library source path is configured or stat-able, which
// IsValid treats as "library unchanged" - acceptable for deployments
// that rely purely on the max-age window rather than mtime comparison.
func (o *Orchestrator) captureLibraryMtime() time.Time {
	for _, p := range o.cfg.LibrarySources {
		if fi, err := os.Stat(p); err == nil {
			return fi.ModTime().UTC()
		}
	}
	return time.Time{}
}

// Run executes one pipeline run per spec.md §4.14's ten steps.
func (o *Orchestrator) Run(ctx context.Context, opts RunOptions) (Result, error) {
	started := o.now()

	libraryMtime := o.captureLibraryMtime() // step 2, before any fetch

	live, err := o.scanAll(ctx, opts.ArtistFilter)
	if err != nil {
		return Result{}, err
	}

	var prevTracks []track.Track
	var prevMeta *snapshot.Metadata
	if !opts.Fresh {
		if prevTracks, err = o.snapshot.LoadSnapshot(); err != nil {
			return Result{}, err
		}
		if prevMeta, err = o.snapshot.LoadMetadata(); err != nil {
			return Result{}, err
		}
	}

	var lastForceScan time.Time
	if prevMeta != nil {
		lastForceScan = prevMeta.LastForceScan
	}

	force := opts.Force || opts.Fresh
	if !force {
		if due, reason := snapshot.ShouldForceScan(false, lastForceScan, started); due {
			force = true
			o.log.Info().Str("reason", reason).Msg("force scan due")
		}
	}

	live = mergeTracking(live, prevTracks)

	// Step 1: scope selection.
	var scope []track.Track
	switch {
	case force || prevTracks == nil:
		scope = live
	default:
		valid := prevMeta != nil && o.snapshot.IsValid(prevMeta, libraryMtime, started)
		var delta track.Delta
		if valid {
			delta = snapshot.FastDelta(idsOf(live), idsOf(prevTracks))
		} else {
			delta = snapshot.ComputeTrackDelta(live, prevTracks)
		}
		if delta.IsEmpty() {
			return Result{Skipped: true, TracksScanned: len(live)}, nil
		}
		scope = tracksByIDs(live, append(append([]string{}, delta.NewIDs...), delta.UpdatedIDs...))
	}

	// Steps 3-4: cleaning + artist renames. namerename.CleanTrack folds
	// the alias lookup into the same pass, matched against the cleaned
	// text, so one call covers both steps in their required order.
	cleanedScope, changeEntries := namerename.CleanAll(scope, o.cfg.RenameAliases)
	live = replaceByID(live, cleanedScope)
	scope = cleanedScope

	// Step 5: genres, over the FULL track set.
	if o.cfg.GenreEnabled {
		updated, entries := applyGenres(live)
		live = updated
		changeEntries = append(changeEntries, entries...)
	}

	// Step 6: years, over the FULL track set.
	var agentForYear year.AgentClient = o.agentClient
	if opts.DryRun {
		agentForYear = noopYearAgent{}
	}
	yearTracks, yearEntries := o.yearBatch(agentForYear).Process(ctx, live, nil, nil)
	live = yearTracks
	changeEntries = append(changeEntries, yearEntries...)

	result := Result{
		Forced:        force,
		TracksScanned: len(live),
		TracksInScope: len(scope),
		Entries:       changeEntries,
	}

	// Step 7: emit report, even for a zero-change run.
	if !opts.DryRun {
		reportPath := o.cfg.ChangesReportPath
		if o.cfg.TimestampedReports {
			reportPath = report.TimestampedReportPath(o.cfg.ReportDir, started)
		}
		if err := report.WriteChangesReport(reportPath, changeEntries); err != nil {
			return result, err
		}
	}

	if opts.DryRun {
		return result, nil
	}

	// Step 8: CSV sync against the current live tracks.
	if _, err := o.csv.Sync(live); err != nil {
		return result, err
	}

	// Step 9: persist snapshot + metadata using the step-2 mtime.
	if err := o.snapshot.SaveSnapshot(live); err != nil {
		return result, err
	}
	meta := snapshot.Metadata{
		Version:       snapshot.SnapshotVersion,
		LastFullScan:  started,
		LibraryMtime:  libraryMtime,
		LastForceScan: lastForceScan,
	}
	if force {
		meta.LastForceScan = started
	}
	if err := o.snapshot.SaveMetadata(meta); err != nil {
		return result, err
	}

	// Step 10: update the timestamp iff forced or anything was processed.
	if force || len(scope) > 0 {
		if err := writeLastIncrementalRun(o.cfg.LastRunLogPath, started); err != nil {
			return result, err
		}
	}

	return result, nil
}

// RunFullResync implements the supplemented --fresh path, grounded on
// full_sync.py's run_full_resync: a forced, snapshot-discarding full
// scan that rebuilds the CSV projection and snapshot from scratch.
func (o *Orchestrator) RunFullResync(ctx context.Context, artistFilter string) (Result, error) {
	return o.Run(ctx, RunOptions{Force: true, Fresh: true, ArtistFilter: artistFilter})
}

// noopYearAgent discards year writes for a --dry-run pass; the resolver
// beneath it still reads/writes its own caches and pending entries
// normally, since those are idempotent bookkeeping rather than a write
// to the library itself.
type noopYearAgent struct{}

func (noopYearAgent) BulkUpdateYear(context.Context, []string, []string) error { return nil }
