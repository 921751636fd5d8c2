package pipeline

import (
	"github.com/waves-sync/waves-sync/internal/genre"
	"github.com/waves-sync/waves-sync/internal/track"
)

// applyGenres runs the dominant-genre pass per album group across the
// full track set, per spec.md §4.14 step 3: the computation needs each
// artist's whole discography grouped by album, not just the incremental
// scope.
func applyGenres(tracks []track.Track) ([]track.Track, []track.ChangeLogEntry) {
	out := make([]track.Track, len(tracks))
	copy(out, tracks)

	var entries []track.ChangeLogEntry
	for _, g := range track.GroupByAlbum(tracks) {
		updated, groupEntries := genre.Apply(g.Tracks)
		out = replaceByID(out, updated)
		entries = append(entries, groupEntries...)
	}
	return out, entries
}
