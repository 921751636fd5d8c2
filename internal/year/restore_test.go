package year

import (
	"testing"

	"github.com/waves-sync/waves-sync/internal/track"
)

func TestRestoreFromReleaseYearRestoresWhenDifferent(t *testing.T) {
	tr := track.Track{ID: "1", Year: "2015", ReleaseYear: "1999"}
	year, ok := RestoreFromReleaseYear(tr)
	if !ok || year != "1999" {
		t.Fatalf("expected restore to release_year 1999, got (%q, %v)", year, ok)
	}
}

func TestRestoreFromReleaseYearNoopWhenEmpty(t *testing.T) {
	tr := track.Track{ID: "1", Year: "2015"}
	if _, ok := RestoreFromReleaseYear(tr); ok {
		t.Fatalf("expected no restoration when release_year is empty")
	}
}

func TestRestoreFromReleaseYearNoopWhenAlreadyEqual(t *testing.T) {
	tr := track.Track{ID: "1", Year: "1999", ReleaseYear: "1999"}
	if _, ok := RestoreFromReleaseYear(tr); ok {
		t.Fatalf("expected no restoration when year already matches release_year")
	}
}

func TestChangeLogEntryForRestore(t *testing.T) {
	tr := track.Track{ID: "1", Artist: "A", Album: "B", Name: "C", Year: "2015"}
	entry := ChangeLogEntryForRestore(tr, "1999")
	if entry.Type != track.ChangeYearRestoredFromReleaseYear || entry.OldValue != "2015" || entry.NewValue != "1999" {
		t.Fatalf("unexpected change log entry: %+v", entry)
	}
}
