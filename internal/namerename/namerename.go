// Package namerename is a thin seam for the out-of-scope
// artist/track/album text-cleaning rules. spec.md calls this a pure
// string transform external to this core's concerns; this module
// implements a minimal, conservative normalization (quote marks,
// repeated whitespace, ellipses) plus a configurable artist-alias
// rename table, grounded on the teacher's
// internal/rename/rename.go cleanForTag regex pipeline, adapted from
// filesystem-path generation to library metadata cleaning.
package namerename

import (
	"regexp"
	"strings"

	"github.com/waves-sync/waves-sync/internal/track"
)

var (
	re3Dots      = regexp.MustCompile(`\.{3}`)
	reQuoteMarks = regexp.MustCompile(`["\x{201c}\x{201d}\x{2018}\x{2019}]+`)
	reMultiSpace = regexp.MustCompile(`\s+`)
)

// CleanText applies the minimal metadata normalization: smart quotes to
// a plain apostrophe, "..." to a proper ellipsis, and collapsed/trimmed
// whitespace.
func CleanText(s string) string {
	s = reQuoteMarks.ReplaceAllString(s, "'")
	s = re3Dots.ReplaceAllString(s, "…")
	s = reMultiSpace.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// AliasTable maps a known artist-name variant to its canonical form,
// case-sensitive, exact match only (the full fuzzy-matching rename
// engine belongs to the out-of-scope text-cleaning layer; this is the
// minimal version that keeps C14 runnable end-to-end).
type AliasTable map[string]string

// CleanTrack applies CleanText to name/artist/album and an alias rename
// to artist, returning the updated track and any resulting audit
// entries. A no-op track (nothing changed) produces no entries.
func CleanTrack(t track.Track, aliases AliasTable) (track.Track, []track.ChangeLogEntry) {
	out := t
	var entries []track.ChangeLogEntry

	if cleaned := CleanText(t.Name); cleaned != t.Name {
		out.Name = cleaned
		entries = append(entries, cleaningEntry(t, "name", t.Name, cleaned))
	}
	if cleaned := CleanText(t.Album); cleaned != t.Album {
		out.Album = cleaned
		entries = append(entries, cleaningEntry(t, "album", t.Album, cleaned))
	}

	cleanedArtist := CleanText(t.Artist)
	if canonical, ok := aliases[cleanedArtist]; ok {
		cleanedArtist = canonical
	}
	if cleanedArtist != t.Artist {
		out.Artist = cleanedArtist
		entries = append(entries, track.ChangeLogEntry{
			Type:      track.ChangeArtistRename,
			TrackID:   t.ID,
			Artist:    t.Artist,
			AlbumName: t.Album,
			TrackName: t.Name,
			OldValue:  t.Artist,
			NewValue:  cleanedArtist,
			Field:     "artist",
		})
	}

	return out, entries
}

func cleaningEntry(t track.Track, field, oldValue, newValue string) track.ChangeLogEntry {
	return track.ChangeLogEntry{
		Type:      track.ChangeMetadataCleaning,
		TrackID:   t.ID,
		Artist:    t.Artist,
		AlbumName: t.Album,
		TrackName: t.Name,
		OldValue:  oldValue,
		NewValue:  newValue,
		Field:     field,
	}
}

// CleanAll applies CleanTrack to every track, returning the updated
// slice and the accumulated audit entries.
func CleanAll(tracks []track.Track, aliases AliasTable) ([]track.Track, []track.ChangeLogEntry) {
	out := make([]track.Track, len(tracks))
	var entries []track.ChangeLogEntry
	for i, t := range tracks {
		cleaned, e := CleanTrack(t, aliases)
		out[i] = cleaned
		entries = append(entries, e...)
	}
	return out, entries
}
