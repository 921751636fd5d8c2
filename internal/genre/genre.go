// Package genre is a thin seam for the out-of-scope "dominant genre"
// rule. spec.md treats genre assignment as a local detail external to
// this core's concerns; this module implements a conservative default
// (majority genre across an album's tracks, falling back to the first
// non-empty genre seen) so C14's genre step has something to call
// without inventing a real recommendation engine.
package genre

import "github.com/waves-sync/waves-sync/internal/track"

// Dominant returns the genre shared by a majority of tracks, or the
// first non-empty genre if there is no majority, or "" if no track
// carries one.
func Dominant(tracks []track.Track) string {
	counts := make(map[string]int)
	var first string
	for _, t := range tracks {
		if t.Genre == "" {
			continue
		}
		if first == "" {
			first = t.Genre
		}
		counts[t.Genre]++
	}
	if len(counts) == 0 {
		return ""
	}

	majority := len(tracks)/2 + 1
	for g, c := range counts {
		if c >= majority {
			return g
		}
	}
	return first
}

// Apply sets every track's Genre to the dominant genre when it differs,
// returning the updated tracks and the resulting audit entries.
func Apply(tracks []track.Track) ([]track.Track, []track.ChangeLogEntry) {
	dominant := Dominant(tracks)
	if dominant == "" {
		return tracks, nil
	}

	out := make([]track.Track, len(tracks))
	copy(out, tracks)

	var entries []track.ChangeLogEntry
	for i, t := range out {
		if t.Genre == dominant {
			continue
		}
		before := t.Genre
		out[i].Genre = dominant
		entries = append(entries, track.ChangeLogEntry{
			Type:      track.ChangeGenreUpdate,
			TrackID:   t.ID,
			Artist:    t.Artist,
			AlbumName: t.Album,
			TrackName: t.Name,
			OldValue:  before,
			NewValue:  dominant,
			Field:     "genre",
		})
	}
	return out, entries
}
