package pipeline

import (
	"github.com/waves-sync/waves-sync/internal/agent"
	"github.com/waves-sync/waves-sync/internal/track"
)

// RecordToTrack normalizes a library-agent scan record into the
// engine's Track shape. The tracking-only fields (YearBeforeSync,
// YearSetBySync) are never reported by the agent; mergeTracking carries
// them forward from the prior snapshot afterward.
func RecordToTrack(r agent.Record) track.Track {
	return track.Track{
		ID:           r.ID,
		Name:         r.Name,
		Artist:       r.Artist,
		AlbumArtist:  r.AlbumArtist,
		Album:        r.Album,
		Genre:        r.Genre,
		Year:         r.Year,
		ReleaseYear:  r.ReleaseYear,
		DateAdded:    r.DateAdded,
		LastModified: r.ModificationDate,
		TrackStatus:  track.Status(r.TrackStatus),
	}
}

func recordsToTracks(records []agent.Record) []track.Track {
	out := make([]track.Track, len(records))
	for i, r := range records {
		out[i] = RecordToTrack(r)
	}
	return out
}

// mergeTracking carries YearBeforeSync/YearSetBySync forward from the
// previous snapshot onto freshly scanned tracks sharing the same id, so
// a plain library rescan never clobbers this system's own bookkeeping.
func mergeTracking(live, previous []track.Track) []track.Track {
	if len(previous) == 0 {
		return live
	}
	prevByID := make(map[string]track.Track, len(previous))
	for _, t := range previous {
		prevByID[t.ID] = t
	}
	out := make([]track.Track, len(live))
	for i, t := range live {
		if prev, ok := prevByID[t.ID]; ok {
			t.YearBeforeSync = prev.YearBeforeSync
			t.YearSetBySync = prev.YearSetBySync
		}
		out[i] = t
	}
	return out
}

// tracksByIDs returns the subset of tracks whose id appears in ids.
func tracksByIDs(tracks []track.Track, ids []string) []track.Track {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []track.Track
	for _, t := range tracks {
		if want[t.ID] {
			out = append(out, t)
		}
	}
	return out
}

// replaceByID overlays updated onto all, matching by id, preserving the
// original order and any entries updated doesn't mention.
func replaceByID(all, updated []track.Track) []track.Track {
	byID := make(map[string]track.Track, len(updated))
	for _, t := range updated {
		byID[t.ID] = t
	}
	out := make([]track.Track, len(all))
	for i, t := range all {
		if u, ok := byID[t.ID]; ok {
			out[i] = u
		} else {
			out[i] = t
		}
	}
	return out
}

func idsOf(tracks []track.Track) []string {
	ids := make([]string, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	return ids
}
