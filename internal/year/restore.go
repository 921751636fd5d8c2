package year

import "github.com/waves-sync/waves-sync/internal/track"

// RestoreFromReleaseYear implements the year-restoration rollback path
// referenced by track.ChangeYearRestoredFromReleaseYear but left
// unspecified by spec.md §4.11: it returns the track's own release_year
// field — persisted precisely so this path has something to roll back
// to, per DESIGN.md's open-question decision — as the year to restore.
// No command or pipeline step in this module calls it; the CLI's
// revert_years command restores year_before_mgu instead.
//
// It reports ok=false when there is nothing to restore: no release_year
// on record, or it already matches the current year.
func RestoreFromReleaseYear(t track.Track) (restoredYear string, ok bool) {
	if t.ReleaseYear == "" || t.ReleaseYear == t.Year {
		return "", false
	}
	return t.ReleaseYear, true
}

// ChangeLogEntryForRestore builds the audit row for a restoration,
// leaving Timestamp for the caller to stamp (this package never calls
// time.Now() so results stay deterministic for callers that need it).
func ChangeLogEntryForRestore(t track.Track, restoredYear string) track.ChangeLogEntry {
	return track.ChangeLogEntry{
		Type:      track.ChangeYearRestoredFromReleaseYear,
		TrackID:   t.ID,
		Artist:    t.Artist,
		AlbumName: t.Album,
		TrackName: t.Name,
		OldValue:  t.Year,
		NewValue:  restoredYear,
		Field:     "year",
	}
}
