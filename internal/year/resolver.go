// Package year implements the per-album year resolution (C11) and the
// per-batch prerelease-aware processor that drives it (C12), grounded on
// original_source's YearDeterminator/YearFallbackHandler test suite
// (CACHE_TRUST_THRESHOLD, CONSENSUS_YEAR_CONFIDENCE, the local-evidence →
// cache → API → fallback precedence) and, for the batch grouping shape,
// internal/downloads/sync.go's per-group aggregate-then-write pattern.
package year

import (
	"context"
	"strconv"

	"github.com/waves-sync/waves-sync/internal/albumtype"
	"github.com/waves-sync/waves-sync/internal/api"
	"github.com/waves-sync/waves-sync/internal/cache"
	"github.com/waves-sync/waves-sync/internal/pending"
	"github.com/waves-sync/waves-sync/internal/track"
)

// Config carries the resolver's tunable thresholds, all config-driven
// per spec.md §4.11.
type Config struct {
	CacheTrustThreshold     int // typical 85
	ConsensusConfidence     int // typical 95
	AbsurdYearThreshold     int // typical 1900
	YearDifferenceThreshold int // typical 5
	TrustAPIScoreThreshold  int // typical 70
	Patterns                albumtype.PatternSet
}

// DefaultConfig mirrors the typical values spec.md's worked examples use.
func DefaultConfig() Config {
	return Config{
		CacheTrustThreshold:     85,
		ConsensusConfidence:     95,
		AbsurdYearThreshold:     1900,
		YearDifferenceThreshold: 5,
		TrustAPIScoreThreshold:  70,
		Patterns:                albumtype.DefaultPatternSet(),
	}
}

// CacheService is the subset of internal/cache.AlbumYear this package
// depends on, expressed as a capability interface so tests can supply an
// in-memory fake.
type CacheService interface {
	GetAlbumYear(artist, album string) string
	GetAlbumYearEntry(artist, album string) (cache.AlbumYearEntry, bool)
	StoreAlbumYear(artist, album, year string, confidence int) error
}

// PendingService is the subset of internal/pending.Store this package
// depends on.
type PendingService interface {
	MarkForVerification(artist, album, reason string, metadata map[string]any, recheckDays int) pending.Entry
}

// Orchestrator is the subset of internal/api.Orchestrator this package
// depends on.
type Orchestrator interface {
	Resolve(ctx context.Context, q api.Query, artistCountry string) api.Result
}

// Resolver implements C11.
type Resolver struct {
	cfg     Config
	cache   CacheService
	pending PendingService
	orch    Orchestrator
}

// New creates a Resolver.
func New(cfg Config, cache CacheService, pending PendingService, orch Orchestrator) *Resolver {
	return &Resolver{cfg: cfg, cache: cache, pending: pending, orch: orch}
}

// Outcome is the resolver's verdict for one album.
type Outcome struct {
	Year                string
	Write               bool
	MarkForVerification bool
	Reason              string // populated iff MarkForVerification
}

// ActivityWindow bounds an artist's known active years, used by the
// fallback handler's "non-matching window" check. A zero window (both
// fields 0) disables the check.
type ActivityWindow struct {
	Start int
	End   int
}

// Resolve implements spec.md §4.11 for a single (artist, album, tracks).
func (r *Resolver) Resolve(ctx context.Context, artist, album string, tracks []track.Track, artistCountry string, activity ActivityWindow) Outcome {
	albumType := albumtype.Classify(r.cfg.Patterns, album)
	policy := albumtype.PolicyFor(albumType)

	if policy == albumtype.PolicyMarkAndSkip {
		r.pending.MarkForVerification(artist, album, specialReason(albumType), nil, 0)
		return Outcome{MarkForVerification: true, Reason: specialReason(albumType)}
	}

	year, ok := r.resolveYear(ctx, artist, album, tracks, artistCountry, activity)

	switch {
	case !ok:
		return Outcome{} // no resolution this run; resolveYear marked pending where needed (a prerelease result marks nothing)
	case policy == albumtype.PolicyMarkAndUpdate:
		r.pending.MarkForVerification(artist, album, "reissue", nil, 0)
		return Outcome{Year: year, Write: true, MarkForVerification: true, Reason: "reissue"}
	default:
		return Outcome{Year: year, Write: true}
	}
}

func specialReason(t albumtype.Type) string {
	switch t {
	case albumtype.Compilation:
		return "mixed_album"
	default:
		return "low_confidence"
	}
}

// resolveYear implements the local-evidence → cache → API → fallback
// precedence of spec.md §4.11, steps 1-3.
func (r *Resolver) resolveYear(ctx context.Context, artist, album string, tracks []track.Track, artistCountry string, activity ActivityWindow) (string, bool) {
	if dominant := track.DominantYear(tracks); dominant != "" {
		return dominant, true
	}

	if entry, ok := r.cache.GetAlbumYearEntry(artist, album); ok && entry.Confidence >= r.cfg.CacheTrustThreshold {
		return entry.Year, true
	}

	if consensus := track.ConsensusReleaseYear(tracks); consensus != "" {
		_ = r.cache.StoreAlbumYear(artist, album, consensus, r.cfg.ConsensusConfidence)
		return consensus, true
	}

	return r.resolveFromAPI(ctx, artist, album, tracks, artistCountry, activity)
}

func (r *Resolver) resolveFromAPI(ctx context.Context, artist, album string, tracks []track.Track, artistCountry string, activity ActivityWindow) (string, bool) {
	currentLibraryYear, _ := strconv.Atoi(track.DominantYear(tracks))
	earliestAdded := earliestAddedYear(tracks)
	trackYears := trackYearInts(tracks)

	res := r.orch.Resolve(ctx, api.Query{
		Artist:                 artist,
		Album:                  album,
		CurrentLibraryYear:     currentLibraryYear,
		EarliestTrackAddedYear: earliestAdded,
		TrackYears:             trackYears,
	}, artistCountry)

	switch {
	case res.Prerelease:
		// No year written this run; C12's prerelease policy governs what
		// happens to the tracks. This resolver reports no resolution.
		return "", false
	case res.Contaminated:
		r.pending.MarkForVerification(artist, album, "contamination_suspected", nil, 0)
		return "", false
	case res.NoResult:
		r.pending.MarkForVerification(artist, album, "no_year_found", nil, 0)
		return "", false
	}

	if res.IsDefinitive {
		_ = r.cache.StoreAlbumYear(artist, album, strconv.Itoa(res.Year), res.Confidence)
		return strconv.Itoa(res.Year), true
	}

	return r.applyFallback(artist, album, res, activity)
}

// applyFallback implements step 3: a non-definitive (or borderline)
// result is accepted only if it is not absurd, falls within the artist's
// known activity window, and meets the trust-score floor. Otherwise the
// album is deferred to pending verification.
func (r *Resolver) applyFallback(artist, album string, res api.Result, activity ActivityWindow) (string, bool) {
	if res.Year < r.cfg.AbsurdYearThreshold {
		r.pending.MarkForVerification(artist, album, "low_confidence", nil, 0)
		return "", false
	}
	if activity.Start != 0 || activity.End != 0 {
		if res.Year < activity.Start-r.cfg.YearDifferenceThreshold || res.Year > activity.End+r.cfg.YearDifferenceThreshold {
			r.pending.MarkForVerification(artist, album, "low_confidence", nil, 0)
			return "", false
		}
	}
	if res.Confidence < r.cfg.TrustAPIScoreThreshold {
		r.pending.MarkForVerification(artist, album, "low_confidence", nil, 0)
		return "", false
	}

	_ = r.cache.StoreAlbumYear(artist, album, strconv.Itoa(res.Year), res.Confidence)
	return strconv.Itoa(res.Year), true
}

func earliestAddedYear(tracks []track.Track) int {
	best := 0
	for _, t := range tracks {
		if len(t.DateAdded) < 4 {
			continue
		}
		y, err := strconv.Atoi(t.DateAdded[:4])
		if err != nil {
			continue
		}
		if best == 0 || y < best {
			best = y
		}
	}
	return best
}

func trackYearInts(tracks []track.Track) []int {
	out := make([]int, 0, len(tracks))
	for _, t := range tracks {
		if t.Year == "" {
			continue
		}
		if y, err := strconv.Atoi(t.Year); err == nil {
			out = append(out, y)
		}
	}
	return out
}
