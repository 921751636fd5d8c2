package track

import (
	"reflect"
	"testing"
)

func TestStatusEditable(t *testing.T) {
	if StatusPrerelease.Editable() {
		t.Fatalf("prerelease tracks must not be editable")
	}
	for _, s := range []Status{StatusSubscription, StatusPurchased, StatusMatched, Status("weird")} {
		if !s.Editable() {
			t.Fatalf("status %q expected editable", s)
		}
	}
}

func TestNewDeltaSortsAndDeterministic(t *testing.T) {
	d1 := NewDelta([]string{"3", "1"}, nil, []string{"9", "2"})
	d2 := NewDelta([]string{"1", "3"}, nil, []string{"2", "9"})
	if !reflect.DeepEqual(d1, d2) {
		t.Fatalf("expected identical deltas regardless of input order: %+v vs %+v", d1, d2)
	}
	if !reflect.DeepEqual(d1.NewIDs, []string{"1", "3"}) {
		t.Fatalf("expected sorted new ids, got %v", d1.NewIDs)
	}
}

func TestDeltaPredicates(t *testing.T) {
	empty := NewDelta(nil, nil, nil)
	if !empty.IsEmpty() || empty.HasUpdates() || empty.HasRemovals() {
		t.Fatalf("expected empty delta predicates to reflect emptiness")
	}

	withUpdates := NewDelta(nil, []string{"1"}, nil)
	if withUpdates.IsEmpty() || !withUpdates.HasUpdates() || withUpdates.HasRemovals() {
		t.Fatalf("expected HasUpdates true, HasRemovals false")
	}
}

func TestNewIDsRemovedIDsNeverIntersect(t *testing.T) {
	// compute_track_delta invariant lives in package snapshot, but the
	// Delta value itself must be able to represent disjoint sets cleanly.
	d := NewDelta([]string{"1", "2"}, nil, []string{"3", "4"})
	seen := map[string]bool{}
	for _, id := range d.NewIDs {
		seen[id] = true
	}
	for _, id := range d.RemovedIDs {
		if seen[id] {
			t.Fatalf("id %s present in both new and removed", id)
		}
	}
}

func TestDominantYearMajority(t *testing.T) {
	tracks := []Track{{Year: "1997"}, {Year: "1997"}, {Year: "1998"}}
	if got := DominantYear(tracks); got != "1997" {
		t.Fatalf("expected dominant year 1997, got %q", got)
	}
}

func TestDominantYearNoMajority(t *testing.T) {
	tracks := []Track{{Year: "1997"}, {Year: "1998"}}
	if got := DominantYear(tracks); got != "" {
		t.Fatalf("expected no dominant year without a majority, got %q", got)
	}
}

func TestDominantYearEmptyYearsIgnored(t *testing.T) {
	tracks := []Track{{Year: ""}, {Year: "2001"}, {Year: "2001"}}
	if got := DominantYear(tracks); got != "2001" {
		t.Fatalf("expected 2001, got %q", got)
	}
}

func TestConsensusReleaseYearAgreement(t *testing.T) {
	tracks := []Track{{ReleaseYear: "2005"}, {ReleaseYear: "2005"}, {ReleaseYear: ""}}
	if got := ConsensusReleaseYear(tracks); got != "2005" {
		t.Fatalf("expected consensus 2005, got %q", got)
	}
}

func TestConsensusReleaseYearDisagreement(t *testing.T) {
	tracks := []Track{{ReleaseYear: "2005"}, {ReleaseYear: "2006"}}
	if got := ConsensusReleaseYear(tracks); got != "" {
		t.Fatalf("expected no consensus, got %q", got)
	}
}

func TestEffectiveAlbumArtistFallback(t *testing.T) {
	tr := Track{Artist: "Solo Artist"}
	if got := tr.EffectiveAlbumArtist(); got != "Solo Artist" {
		t.Fatalf("expected fallback to Artist, got %q", got)
	}
	tr.AlbumArtist = "Various Artists"
	if got := tr.EffectiveAlbumArtist(); got != "Various Artists" {
		t.Fatalf("expected AlbumArtist to win, got %q", got)
	}
}

func TestGroupByAlbumGroupsSameAlbumTogether(t *testing.T) {
	tracks := []Track{
		{ID: "1", Artist: "A", Album: "X"},
		{ID: "2", Artist: "A", Album: "X"},
		{ID: "3", Artist: "A", Album: "Y"},
	}
	groups := GroupByAlbum(tracks)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if groups[0].Album != "X" || len(groups[0].Tracks) != 2 {
		t.Fatalf("expected album X to group both its tracks, got %+v", groups[0])
	}
	if groups[1].Album != "Y" || len(groups[1].Tracks) != 1 {
		t.Fatalf("expected album Y as its own group, got %+v", groups[1])
	}
}

// Per spec.md §8's boundary behaviour, a track with an empty album name
// is never grouped with any other empty-album track, even by the same
// artist.
func TestGroupByAlbumNeverMergesEmptyAlbumTracks(t *testing.T) {
	tracks := []Track{
		{ID: "1", Artist: "A", Album: ""},
		{ID: "2", Artist: "A", Album: ""},
		{ID: "3", Artist: "A", Album: ""},
	}
	groups := GroupByAlbum(tracks)
	if len(groups) != 3 {
		t.Fatalf("expected 3 singleton groups for empty-album tracks, got %d", len(groups))
	}
	for _, g := range groups {
		if len(g.Tracks) != 1 {
			t.Fatalf("expected every empty-album group to contain exactly one track, got %+v", g)
		}
	}
}
