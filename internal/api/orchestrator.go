package api

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/waves-sync/waves-sync/internal/albumtype"
	"github.com/waves-sync/waves-sync/internal/synclog"
)

// Config carries the orchestrator's tunables, all config-driven per
// spec.md §4.8.
type Config struct {
	Weights                ScoringWeights
	PreferredAPI           []string // source names in preference order
	DefinitiveScoreThreshold int
	DefinitiveScoreDiff      int
	// PrereleaseFutureYearRatio/Count gate the "all scanned tracks carry
	// future years" prerelease detection in spec.md §4.8.
	PrereleaseFutureYearMinCount int
	PrereleaseFutureYearRatio    float64
	// Patterns classifies an album title for the alternative-search
	// fallback trigger (fanOut's caller in Resolve), shared with C11's
	// resolver so both components agree on what counts as a special,
	// compilation, or reissue album.
	Patterns albumtype.PatternSet
	Now      func() time.Time // overridable for tests
}

// DefaultConfig mirrors the typical values spec.md's worked examples use.
func DefaultConfig() Config {
	return Config{
		Weights:                      DefaultScoringWeights(),
		PreferredAPI:                 []string{"musicbrainz", "discogs"},
		DefinitiveScoreThreshold:     50,
		DefinitiveScoreDiff:          10,
		PrereleaseFutureYearMinCount: 1,
		PrereleaseFutureYearRatio:    0.8,
		Patterns:                     albumtype.DefaultPatternSet(),
		Now:                          time.Now,
	}
}

// Orchestrator fans a year query out across its configured Sources.
type Orchestrator struct {
	sources map[string]Source
	cfg     Config
	log     synclog.Logger
}

// New creates an Orchestrator. sources need not be supplied in
// cfg.PreferredAPI order; Resolve reorders them.
func New(sources []Source, cfg Config, log synclog.Logger) *Orchestrator {
	m := make(map[string]Source, len(sources))
	for _, s := range sources {
		m[s.Name()] = s
	}
	return &Orchestrator{sources: m, cfg: cfg, log: log}
}

// orderedSources returns this orchestrator's sources in PreferredAPI
// order, followed by any enabled source PreferredAPI didn't mention.
func (o *Orchestrator) orderedSources() []Source {
	seen := make(map[string]bool, len(o.sources))
	out := make([]Source, 0, len(o.sources))
	for _, name := range o.cfg.PreferredAPI {
		if s, ok := o.sources[name]; ok && !seen[name] {
			out = append(out, s)
			seen[name] = true
		}
	}
	names := make([]string, 0, len(o.sources))
	for name := range o.sources {
		if !seen[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names) // deterministic order for any sources left over
	for _, name := range names {
		out = append(out, o.sources[name])
	}
	return out
}

// Resolve fans q out across every configured source in preference order,
// applying scoring, the definitive-result rule, and the current-year
// contamination guard.
func (o *Orchestrator) Resolve(ctx context.Context, q Query, artistCountry string) Result {
	if o.allTracksFutureYear(q.TrackYears) {
		return Result{Prerelease: true}
	}

	all, gotAnyResponse := o.fanOut(ctx, o.orderedSources(), q, artistCountry, false)

	if !gotAnyResponse && albumtype.MatchesPatternSet(o.cfg.Patterns, q.Album) {
		// Alternative search fallback: only fires when the FIRST query
		// produced zero candidates across every source.
		all = o.alternativeSearch(ctx, q, artistCountry)
	}

	if len(all) == 0 {
		return Result{NoResult: true}
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		// Deterministic tie-break: lower year wins when resolving an
		// original release.
		return all[i].candidate.Year < all[j].candidate.Year
	})

	best := all[0]

	if o.contaminated(best.candidate.Year, q) {
		return Result{Contaminated: true, NoResult: true}
	}

	isDefinitive := best.score >= o.cfg.DefinitiveScoreThreshold &&
		(len(all) == 1 || best.score-all[1].score >= o.cfg.DefinitiveScoreDiff)

	return Result{
		Year:         best.candidate.Year,
		IsDefinitive: isDefinitive,
		Confidence:   best.score,
		Source:       best.candidate.Source,
	}
}

// alternativeSearch retries every source with a relaxed, title-only
// query when the original search produced nothing at all.
func (o *Orchestrator) alternativeSearch(ctx context.Context, q Query, artistCountry string) []scored {
	all, _ := o.fanOut(ctx, o.orderedSources(), q, artistCountry, true)
	return all
}

// fanOut queries every source concurrently (each source carries its own
// rate limiter, so the sources don't contend with each other) and merges
// the scored results. Source order never affects the outcome: Resolve
// sorts the merged set by score immediately after fanOut returns.
func (o *Orchestrator) fanOut(ctx context.Context, sources []Source, q Query, artistCountry string, titleOnly bool) ([]scored, bool) {
	var (
		mu      sync.Mutex
		all     []scored
		gotAny  bool
		g, gctx = errgroup.WithContext(ctx)
	)

	for _, src := range sources {
		src := src
		g.Go(func() error {
			candidates, err := src.Search(gctx, q.Artist, q.Album, titleOnly)
			if err != nil {
				o.log.Warn().Err(err).Str("source", src.Name()).Str("artist", q.Artist).Str("album", q.Album).Msg("source query failed, treating as null")
				return nil
			}
			if len(candidates) == 0 {
				return nil
			}

			mu.Lock()
			gotAny = true
			for _, c := range candidates {
				all = append(all, scored{candidate: c, score: Score(o.cfg.Weights, c, artistCountry, q.CurrentLibraryYear)})
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // per-source errors are swallowed above; Wait never returns one

	return all, gotAny
}

// contaminated implements the first current-year contamination check:
// a candidate year equal to the current calendar year is rejected when
// the track-add-date evidence shows the album has been in the library
// since before this year.
func (o *Orchestrator) contaminated(candidateYear int, q Query) bool {
	now := o.cfg.Now
	if now == nil {
		now = time.Now
	}
	currentYear := now().Year()
	return candidateYear == currentYear &&
		q.EarliestTrackAddedYear > 0 &&
		q.EarliestTrackAddedYear < currentYear
}

// allTracksFutureYear implements the second current-year contamination
// check: when a configured share of the album's scanned tracks all carry
// future years, the album is deemed prerelease and no year is written
// this run.
func (o *Orchestrator) allTracksFutureYear(trackYears []int) bool {
	if len(trackYears) == 0 {
		return false
	}
	now := o.cfg.Now
	if now == nil {
		now = time.Now
	}
	currentYear := now().Year()

	future := 0
	for _, y := range trackYears {
		if y > currentYear {
			future++
		}
	}
	if future < o.cfg.PrereleaseFutureYearMinCount {
		return false
	}
	ratio := float64(future) / float64(len(trackYears))
	return ratio >= o.cfg.PrereleaseFutureYearRatio
}
