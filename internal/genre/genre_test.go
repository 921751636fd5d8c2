package genre

import (
	"testing"

	"github.com/waves-sync/waves-sync/internal/track"
)

func TestDominantReturnsMajority(t *testing.T) {
	tracks := []track.Track{{Genre: "Rock"}, {Genre: "Rock"}, {Genre: "Jazz"}}
	if got := Dominant(tracks); got != "Rock" {
		t.Fatalf("expected Rock, got %q", got)
	}
}

func TestDominantFallsBackToFirstNonEmpty(t *testing.T) {
	tracks := []track.Track{{Genre: "Rock"}, {Genre: "Jazz"}}
	if got := Dominant(tracks); got != "Rock" {
		t.Fatalf("expected first non-empty genre as fallback, got %q", got)
	}
}

func TestDominantEmptyWhenNoGenres(t *testing.T) {
	tracks := []track.Track{{}, {}}
	if got := Dominant(tracks); got != "" {
		t.Fatalf("expected empty string when no track carries a genre, got %q", got)
	}
}

func TestApplyUpdatesOnlyDivergentTracks(t *testing.T) {
	tracks := []track.Track{{ID: "1", Genre: "Rock"}, {ID: "2", Genre: "Rock"}, {ID: "3", Genre: "Jazz"}}
	out, entries := Apply(tracks)
	if out[2].Genre != "Rock" {
		t.Fatalf("expected divergent track updated to dominant genre, got %q", out[2].Genre)
	}
	if len(entries) != 1 || entries[0].TrackID != "3" {
		t.Fatalf("expected exactly one change log entry for the divergent track, got %+v", entries)
	}
}

func TestApplyNoopWhenNoDominantGenre(t *testing.T) {
	tracks := []track.Track{{ID: "1"}, {ID: "2"}}
	out, entries := Apply(tracks)
	if len(entries) != 0 {
		t.Fatalf("expected no changes when no genre data exists, got %+v", entries)
	}
	if out[0].Genre != "" {
		t.Fatalf("expected tracks left untouched, got %+v", out)
	}
}
