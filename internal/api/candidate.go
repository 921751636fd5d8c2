// Package api implements the external-API orchestrator described in
// spec.md §4.8: it fans a year query out across enabled sources in
// preferred order, scores every candidate release with a config-driven
// table, and applies the current-year contamination guard. Grounded on
// internal/musicbrainz/client.go's request/retry shape, generalized from
// a download-matching client into a scoring orchestrator, and on
// internal/download/scoring.go's FilterAndScoreResults for the general
// shape of "score every candidate, keep the best".
package api

import "context"

// Candidate is a single release returned by a Source, normalized to the
// fields the scoring table needs regardless of which API produced it.
type Candidate struct {
	Source         string // "musicbrainz", "discogs", "itunes"
	Year           int
	Country        string
	ReleaseType    string // album, ep, single, compilation, live
	Status         string // official, promo, bootleg
	IsReissue      bool
	ArtistExact    bool
	AlbumExact     bool
	IsReleaseGroup bool // MusicBrainz release-group hit vs a specific release
	RawID          string
}

// Source is an external metadata provider. Each concrete client
// (MusicBrainz, Discogs, ...) implements this against its own wire
// format; the orchestrator only ever sees Candidate values.
type Source interface {
	// Name identifies the source for scoring/cache/config lookups.
	Name() string
	// Search returns candidates for an artist/album query. A relaxed,
	// title-only query is used when titleOnly is true (the alternative
	// search fallback).
	Search(ctx context.Context, artist, album string, titleOnly bool) ([]Candidate, error)
}

// Query is the input to Resolve.
type Query struct {
	Artist                 string
	Album                  string
	CurrentLibraryYear     int // dominant year across the album's tracks, 0 if unknown
	EarliestTrackAddedYear int // 0 if unknown
	// TrackYears holds the live `year` field of every scanned track in
	// this album, used by the second current-year contamination check
	// (spec.md §4.8: "all scanned tracks exhibit future years").
	TrackYears []int
}

// Result is the orchestrator's verdict for a Query.
type Result struct {
	Year         int
	IsDefinitive bool
	Confidence   int // winning candidate's score
	Source       string
	NoResult     bool // true when every source returned nothing usable
	Contaminated bool // true when the current-year contamination guard fired
	Prerelease   bool // true when evidence indicates an unreleased album
}
