package year

import (
	"context"

	"github.com/waves-sync/waves-sync/internal/synclog"
	"github.com/waves-sync/waves-sync/internal/track"
)

// PrereleaseHandling enumerates spec.md §4.12's policy for album groups
// that mix prerelease and editable tracks.
type PrereleaseHandling string

const (
	ProcessEditable PrereleaseHandling = "process_editable"
	SkipAll         PrereleaseHandling = "skip_all"
	MarkOnly        PrereleaseHandling = "mark_only"
)

// AgentClient is the subset of internal/agent.Client this package needs.
type AgentClient interface {
	BulkUpdateYear(ctx context.Context, ids, years []string) error
}

// BatchProcessor implements C12: it groups tracks by (artist, album),
// applies the prerelease policy, calls the Resolver, and writes resolved
// years back through the agent.
type BatchProcessor struct {
	resolver *Resolver
	agentCli AgentClient
	handling PrereleaseHandling
	log      synclog.Logger
}

// NewBatchProcessor creates a BatchProcessor. An unrecognised handling
// value is normalized to ProcessEditable with a logged warning, per
// spec.md §4.12.
func NewBatchProcessor(resolver *Resolver, agentCli AgentClient, handling PrereleaseHandling, log synclog.Logger) *BatchProcessor {
	switch handling {
	case ProcessEditable, SkipAll, MarkOnly:
	default:
		log.Warn().Str("prerelease_handling", string(handling)).Msg("unknown prerelease_handling, using process_editable")
		handling = ProcessEditable
	}
	return &BatchProcessor{resolver: resolver, agentCli: agentCli, handling: handling, log: log}
}

// Process resolves years for every (artist, album) group in tracks and
// returns the updated tracks plus the audit log entries for this run.
// artistCountry and activity are looked up per-artist by the caller;
// when absent, pass a nil lookup and countryFor/activityFor return zero
// values, which simply disables the country-bonus and activity-window
// checks for that artist.
func (b *BatchProcessor) Process(ctx context.Context, tracks []track.Track, countryFor func(artist string) string, activityFor func(artist string) ActivityWindow) ([]track.Track, []track.ChangeLogEntry) {
	groups := track.GroupByAlbum(tracks)

	out := make([]track.Track, len(tracks))
	copy(out, tracks)
	indexByID := make(map[string]int, len(out))
	for i, t := range out {
		indexByID[t.ID] = i
	}

	var entries []track.ChangeLogEntry

	for _, g := range groups {
		editable, allPrerelease, mixedPrerelease := classifyGroup(g.Tracks)

		if allPrerelease {
			b.markPending(g.Artist, g.Album, "prerelease")
			continue
		}

		writeTargets := g.Tracks
		if mixedPrerelease {
			switch b.handling {
			case SkipAll:
				continue
			case MarkOnly:
				b.markPending(g.Artist, g.Album, "mixed_album")
				continue
			default: // ProcessEditable
				writeTargets = editable
				b.markPending(g.Artist, g.Album, "mixed_album")
			}
		}

		country := ""
		if countryFor != nil {
			country = countryFor(g.Artist)
		}
		activity := ActivityWindow{}
		if activityFor != nil {
			activity = activityFor(g.Artist)
		}

		outcome := b.resolver.Resolve(ctx, g.Artist, g.Album, g.Tracks, country, activity)
		if !outcome.Write || outcome.Year == "" {
			continue
		}

		ids := make([]string, 0, len(writeTargets))
		years := make([]string, 0, len(writeTargets))
		for _, t := range writeTargets {
			ids = append(ids, t.ID)
			years = append(years, outcome.Year)
		}
		if len(ids) == 0 {
			continue
		}
		if err := b.agentCli.BulkUpdateYear(ctx, ids, years); err != nil {
			b.log.Warn().Err(err).Str("artist", g.Artist).Str("album", g.Album).Msg("bulk year update failed")
			continue
		}

		for _, t := range writeTargets {
			idx := indexByID[t.ID]
			before := out[idx].Year
			if out[idx].YearBeforeSync == "" {
				out[idx].YearBeforeSync = before
			}
			out[idx].YearSetBySync = outcome.Year
			out[idx].Year = outcome.Year

			entries = append(entries, track.ChangeLogEntry{
				Type:      track.ChangeYearUpdate,
				TrackID:   t.ID,
				Artist:    g.Artist,
				AlbumName: g.Album,
				TrackName: t.Name,
				OldValue:  before,
				NewValue:  outcome.Year,
				Field:     "year",
			})
		}
	}

	return out, entries
}

func (b *BatchProcessor) markPending(artist, album, reason string) {
	// The resolver already owns pending-verification writes for the cases
	// it evaluates; this handles the two group-level cases (all-prerelease,
	// mixed-album) that never reach the resolver.
	if b.resolver.pending == nil {
		return
	}
	b.resolver.pending.MarkForVerification(artist, album, reason, nil, 0)
}

// classifyGroup splits tracks into editable vs prerelease and reports
// the group's overall prerelease shape.
func classifyGroup(tracks []track.Track) (editable []track.Track, allPrerelease, mixedPrerelease bool) {
	prereleaseCount := 0
	for _, t := range tracks {
		if t.TrackStatus.Editable() {
			editable = append(editable, t)
		} else {
			prereleaseCount++
		}
	}
	allPrerelease = prereleaseCount == len(tracks) && len(tracks) > 0
	mixedPrerelease = prereleaseCount > 0 && prereleaseCount < len(tracks)
	return editable, allPrerelease, mixedPrerelease
}
