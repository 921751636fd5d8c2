// Command waves-sync is the CLI entry point for the incremental music
// library synchronizer. Its surface is explicitly informational rather
// than core per spec.md §6: a thin stdlib flag.FlagSet wrapper that
// wires the configured components into internal/pipeline.Orchestrator
// and a handful of maintenance subcommands, grounded on the corpus's
// plain flag.FlagSet convention (Ambrevar-demlo/demlo.go,
// edumarques81-stellar-volumio-audioplayer-backend/cmd/stellar/main.go)
// rather than a cobra/urfave-style command tree, which nothing in the
// example pack uses.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/waves-sync/waves-sync/internal/agent"
	"github.com/waves-sync/waves-sync/internal/api"
	"github.com/waves-sync/waves-sync/internal/cache"
	"github.com/waves-sync/waves-sync/internal/config"
	"github.com/waves-sync/waves-sync/internal/csvproj"
	"github.com/waves-sync/waves-sync/internal/discogs"
	"github.com/waves-sync/waves-sync/internal/musicbrainz"
	"github.com/waves-sync/waves-sync/internal/namerename"
	"github.com/waves-sync/waves-sync/internal/paths"
	"github.com/waves-sync/waves-sync/internal/pending"
	"github.com/waves-sync/waves-sync/internal/pipeline"
	"github.com/waves-sync/waves-sync/internal/ratelimit"
	"github.com/waves-sync/waves-sync/internal/report"
	"github.com/waves-sync/waves-sync/internal/snapshot"
	"github.com/waves-sync/waves-sync/internal/synclog"
	"github.com/waves-sync/waves-sync/internal/track"
	"github.com/waves-sync/waves-sync/internal/verify"
	"github.com/waves-sync/waves-sync/internal/year"
)

// knownCommands are the spec.md §6 subcommands; anything else (or no
// argument at all) falls through to the default main-pipeline run.
var knownCommands = map[string]bool{
	"clean_artist":    true,
	"update_years":    true,
	"revert_years":    true,
	"verify_database": true,
	"verify_pending":  true,
	"batch":           true,
	"rotate_keys":     true,
}

func main() {
	os.Exit(run())
}

func run() int {
	command := "default"
	args := os.Args[1:]
	if len(args) > 0 && knownCommands[args[0]] {
		command = args[0]
		args = args[1:]
	}

	fs := flag.NewFlagSet(command, flag.ContinueOnError)
	force := fs.Bool("force", false, "force a full rescan regardless of Smart Delta")
	dryRun := fs.Bool("dry-run", false, "compute changes without writing to the library or persisted state")
	testMode := fs.Bool("test-mode", false, "same effect as --dry-run (suppresses writes)")
	fresh := fs.Bool("fresh", false, "discard the prior snapshot and rebuild it from a full scan")
	artist := fs.String("artist", "", "restrict the run to a single artist")
	_ = fs.String("album", "", "accepted but ignored: no command reads it")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	// test_mode implies dry_run: both suppress writes, and setting either
	// or both gives the same run. test_mode adds no --artist scope of its
	// own.
	effectiveDryRun := *dryRun || *testMode

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		return 1
	}

	cacheDir, err := paths.CacheDir(cfg.CacheDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "resolve cache dir: %v\n", err)
		return 1
	}

	log, closeLog, err := synclog.New(filepath.Join(cacheDir, "waves-sync.log"), false)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
		return 1
	}
	defer closeLog()

	deps, err := wire(cfg, cacheDir, log)
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize dependencies")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var runErr error
	switch command {
	case "clean_artist":
		runErr = cmdCleanArtist(ctx, deps, *artist)
	case "update_years":
		runErr = cmdUpdateYears(ctx, deps, *artist, effectiveDryRun)
	case "revert_years":
		runErr = cmdRevertYears(ctx, deps, *artist)
	case "verify_database":
		runErr = cmdVerifyDatabase(ctx, deps)
	case "verify_pending":
		runErr = cmdVerifyPending(ctx, deps)
	case "batch":
		runErr = cmdBatch(ctx, deps, *artist)
	case "rotate_keys":
		runErr = cmdRotateKeys(deps)
	default:
		runErr = cmdDefault(ctx, deps, pipeline.RunOptions{
			Force:        *force,
			DryRun:       effectiveDryRun,
			Fresh:        *fresh,
			ArtistFilter: *artist,
		})
	}

	// Per spec.md §7's exit-on-interrupt policy: flush caches best-effort
	// regardless of how the command ended.
	persistCaches(deps)

	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			log.Warn().Msg("interrupted, exiting after best-effort cleanup")
			return 1
		}
		log.Error().Err(runErr).Msg("command failed")
		return 1
	}
	return 0
}

// persistCaches flushes the album-year cache and pending-verification
// store to disk. Called unconditionally after every command, including
// on interrupt, since both are plain in-memory maps mutated during a run
// and otherwise only ever written by an explicit SaveToDisk call.
func persistCaches(d *deps) {
	if err := d.yearCache.SaveToDisk(); err != nil {
		d.log.Warn().Err(err).Msg("failed to persist album-year cache")
	}
	if err := d.pendingSvc.SaveToDisk(); err != nil {
		d.log.Warn().Err(err).Msg("failed to persist pending-verification store")
	}
}

// deps holds every wired component main's subcommands share.
type deps struct {
	cfg        *config.Config
	log        synclog.Logger
	agentCli   *agent.Client
	orch       *pipeline.Orchestrator
	csv        *csvproj.Store
	verifier   *verify.Verifier
	pendingSvc *pending.Store
	yearCache  *cache.AlbumYear
	cacheDir   string
}

// wire builds the full dependency graph described by SPEC_FULL.md's
// component list: rate limiters per external collaborator (C5), the two
// metadata sources plus the scoring orchestrator (C8), the year
// resolver/batch processor (C11/C12), the CSV projection (C15), the
// database verifier (C13), and finally the pipeline orchestrator (C14)
// that ties them together.
func wire(cfg *config.Config, cacheDir string, log synclog.Logger) (*deps, error) {
	mbLimiter, err := ratelimit.New(cfg.RateLimit.MusicBrainz.RequestsPerWindow, cfg.RateLimit.MusicBrainz.Window(), cfg.RateLimit.MusicBrainz.MaxConcurrent)
	if err != nil {
		return nil, fmt.Errorf("musicbrainz rate limiter: %w", err)
	}
	discogsLimiter, err := ratelimit.New(cfg.RateLimit.Discogs.RequestsPerWindow, cfg.RateLimit.Discogs.Window(), cfg.RateLimit.Discogs.MaxConcurrent)
	if err != nil {
		return nil, fmt.Errorf("discogs rate limiter: %w", err)
	}
	agentLimiter, err := ratelimit.New(cfg.RateLimit.Agent.RequestsPerWindow, cfg.RateLimit.Agent.Window(), cfg.RateLimit.Agent.MaxConcurrent)
	if err != nil {
		return nil, fmt.Errorf("agent rate limiter: %w", err)
	}
	mbLimiter.Initialize()
	discogsLimiter.Initialize()
	agentLimiter.Initialize()

	sources := []api.Source{
		musicbrainz.NewClient(mbLimiter),
		discogs.NewClient(cfg.Discogs.Token, discogsLimiter),
	}
	orchestrator := api.New(sources, cfg.Scoring.ToOrchestratorConfig(cfg.Year.PatternSet()), synclog.Component(log, "api"))

	yearCacheDir := cfg.Cache.Dir
	if yearCacheDir == "" {
		yearCacheDir = cacheDir
	}
	albumYearCache := cache.NewAlbumYear(filepath.Join(yearCacheDir, "album_year_cache.json"))
	if err := albumYearCache.LoadFromDisk(); err != nil {
		log.Warn().Err(err).Msg("album-year cache failed to load, starting fresh")
	}
	pendingPath := cfg.Pending.Path
	if pendingPath == "" {
		pendingPath = filepath.Join(cacheDir, "pending_verification.json")
	}
	pendingStore := pending.New(pendingPath)
	if err := pendingStore.LoadFromDisk(); err != nil {
		log.Warn().Err(err).Msg("pending-verification store failed to load, starting fresh")
	}

	resolver := year.New(cfg.Year.ToResolverConfig(), albumYearCache, pendingStore, orchestrator)

	agentCli := agent.New(agent.ExecRunner{Interpreter: "osascript", Timeout: 30 * time.Second}, agentLimiter)

	snapshotDir := cacheDir
	snap := snapshot.New(snapshotDir, cfg.Snapshot.Compress, cfg.Snapshot.MaxAge())

	csvPath := cfg.CSV.Path
	if csvPath == "" {
		csvPath = filepath.Join(cacheDir, "track_list.csv")
	}
	csvStore := csvproj.New(csvPath, synclog.Component(log, "csvproj"))

	verifierCfg := verify.DefaultConfig()
	verifierCfg.BatchSize, verifierCfg.BatchPause = cfg.Verify.ToVerifierConfig()
	verifier := verify.New(verifierCfg, agentCli, synclog.Component(log, "verify"))

	yearFactory := func(agentCli year.AgentClient) *year.BatchProcessor {
		return year.NewBatchProcessor(resolver, agentCli, cfg.Year.PrereleaseHandlingValue(), synclog.Component(log, "year"))
	}

	aliases := namerename.AliasTable(cfg.Rename.Aliases)

	pipelineCfg := pipeline.Config{
		LibrarySources:     cfg.LibrarySources,
		ChangesReportPath:  filepath.Join(cacheDir, "changes_report.csv"),
		TimestampedReports: false,
		ReportDir:          cacheDir,
		LastRunLogPath:     filepath.Join(cacheDir, "last_incremental_run.log"),
		GenreEnabled:       cfg.Genre.Enabled,
		RenameAliases:      aliases,
	}

	orch := pipeline.New(agentCli, snap, csvStore, yearFactory, pipelineCfg, synclog.Component(log, "pipeline"))

	return &deps{
		cfg:        cfg,
		log:        log,
		agentCli:   agentCli,
		orch:       orch,
		csv:        csvStore,
		verifier:   verifier,
		pendingSvc: pendingStore,
		yearCache:  albumYearCache,
		cacheDir:   cacheDir,
	}, nil
}

func cmdDefault(ctx context.Context, d *deps, opts pipeline.RunOptions) error {
	start := time.Now()
	var result pipeline.Result
	var err error
	if opts.Fresh {
		result, err = d.orch.RunFullResync(ctx, opts.ArtistFilter)
	} else {
		result, err = d.orch.Run(ctx, opts)
	}

	errSummary := ""
	if err != nil {
		errSummary = err.Error()
	}
	d.recordRun(report.NewRunSummary(start, time.Since(start), result.TracksScanned, len(result.Entries), opts.Force, errSummary))

	if err != nil {
		return err
	}
	report.Summarize(os.Stdout, result.Entries)
	if result.Skipped {
		fmt.Println("no changes detected, skipped")
	}
	return nil
}

// recordRun appends s to the on-disk run history, capped and timestamped
// per internal/report.RunHistory, so operators have a running log of
// past runs independent of the per-run changes report. Load/append/save
// failures are logged, not fatal: the history is supplementary, not part
// of the synchronized state spec.md §8 calls authoritative.
func (d *deps) recordRun(s report.RunSummary) {
	path := filepath.Join(d.cacheDir, "run_history.csv")
	h, err := report.LoadRunHistory(path)
	if err != nil {
		d.log.Warn().Err(err).Msg("failed to load run history, starting fresh")
		h = &report.RunHistory{}
	}
	h.Append(s)
	if err := h.Save(path); err != nil {
		d.log.Warn().Err(err).Msg("failed to persist run history")
		return
	}
	d.log.Info().Str("run_id", s.RunID).Msg(report.Describe(s))
}

// cmdCleanArtist scopes a cleaning/rename pass to a single artist and
// prints the resulting change log, without touching years or genres.
// The library agent has no "rename in place" script of its own (spec.md
// §6 never defines one), so this command is a preview: it reports what
// the cleaning pass would change rather than writing it back.
func cmdCleanArtist(ctx context.Context, d *deps, artist string) error {
	if artist == "" {
		return errors.New("clean_artist requires --artist")
	}
	result, err := d.orch.Run(ctx, pipeline.RunOptions{ArtistFilter: artist, DryRun: true})
	if err != nil {
		return err
	}
	report.Summarize(os.Stdout, result.Entries)
	return nil
}

// cmdUpdateYears force-runs the pipeline for an (optionally
// artist-scoped) year resolution pass, reusing the default run with
// Force set so Smart Delta never short-circuits it.
func cmdUpdateYears(ctx context.Context, d *deps, artist string, dryRun bool) error {
	result, err := d.orch.Run(ctx, pipeline.RunOptions{Force: true, DryRun: dryRun, ArtistFilter: artist})
	if err != nil {
		return err
	}
	report.Summarize(os.Stdout, result.Entries)
	return nil
}

// cmdRevertYears restores year_before_mgu for every CSV row whose
// current year was set by this system (year_set_by_mgu == year),
// writing the restored value back through the agent. It restores
// year_before_mgu only; the release_year fallback in
// internal/year/restore.go is not used here. The command name follows
// spec.md §6's revert_years.
func cmdRevertYears(ctx context.Context, d *deps, artist string) error {
	rows, err := d.csv.Load()
	if err != nil {
		return err
	}

	restored := 0
	for _, row := range rows {
		if artist != "" && row.Artist != artist {
			continue
		}
		if row.YearSetBySync == "" || row.Year != row.YearSetBySync || row.YearBeforeSync == "" {
			continue
		}
		if err := d.agentCli.UpdateProperty(ctx, row.ID, "year", row.YearBeforeSync); err != nil {
			d.log.Warn().Err(err).Str("track_id", row.ID).Msg("revert_years: failed to write restored year")
			continue
		}
		restored++
	}
	d.log.Info().Int("restored", restored).Msg("revert_years complete")
	fmt.Printf("restored %d track(s)\n", restored)
	return nil
}

// cmdVerifyDatabase drives C13's batched existence sweep over the full
// CSV projection, removing confirmed-absent rows.
func cmdVerifyDatabase(ctx context.Context, d *deps) error {
	rows, err := d.csv.Load()
	if err != nil {
		return err
	}
	rowSet := csvproj.NewRowSet(rows)
	entries := make([]verify.Entry, len(rows))
	for i, r := range rows {
		entries[i] = r
	}

	result := d.verifier.Run(ctx, entries, rowSet)
	if err := d.csv.Save(rowSet.Rows()); err != nil {
		return err
	}
	fmt.Printf("verified %d track(s), removed %d\n", result.Checked, len(result.Removed))
	return nil
}

// cmdVerifyPending rebuilds the derived SQLite pending index from the
// authoritative JSON pending store (C6's own file stays canonical; the
// index exists purely as an indexed read path, per
// internal/cache/sqlindex.go) to report how many albums are actually due
// for a recheck, then runs a forced year pass over the whole library. That
// pass re-resolves every album group; the batch processor and resolver
// only add or update pending entries and never read their due dates.
func cmdVerifyPending(ctx context.Context, d *deps) error {
	idx, err := cache.OpenPendingIndex(filepath.Join(d.cacheDir, "pending_index.sqlite"))
	if err != nil {
		return fmt.Errorf("open pending index: %w", err)
	}
	defer idx.Close()

	if err := idx.Rebuild(d.pendingSvc.GetAllPending()); err != nil {
		return fmt.Errorf("rebuild pending index: %w", err)
	}
	stats, err := idx.Stats(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("query pending stats: %w", err)
	}
	fmt.Printf("pending queue: %d album(s), %d due for recheck\n", stats.Total, stats.Due)

	if stats.Due == 0 {
		return nil
	}

	result, err := d.orch.Run(ctx, pipeline.RunOptions{Force: true})
	if err != nil {
		return err
	}
	pendingEntries := 0
	for _, e := range result.Entries {
		if e.Type == track.ChangeYearUpdate {
			pendingEntries++
		}
	}
	fmt.Printf("forced year pass made %d year update(s)\n", pendingEntries)
	return nil
}

// cmdBatch runs the main pipeline non-interactively over the whole
// library (or a single --artist), the automation-friendly equivalent of
// the default command with no console summary suppression.
func cmdBatch(ctx context.Context, d *deps, artist string) error {
	return cmdDefault(ctx, d, pipeline.RunOptions{ArtistFilter: artist})
}

// cmdRotateKeys is a minimal, honestly-scoped stub: this configuration
// shape has exactly one rotatable secret (Discogs.Token, sourced from
// DISCOGS_TOKEN/.env per internal/config), and rotating it is an
// operator action on the .env file, not something this binary can do to
// itself. The command exists to keep the documented CLI surface
// complete; it reports what would need to change rather than changing it.
func cmdRotateKeys(d *deps) error {
	if d.cfg.Discogs.Token == "" {
		fmt.Println("no DISCOGS_TOKEN configured; set one via .env or the environment")
		return nil
	}
	fmt.Println("rotate DISCOGS_TOKEN by updating .env or the environment and restarting; this command does not call out to Discogs to mint a new token")
	return nil
}
