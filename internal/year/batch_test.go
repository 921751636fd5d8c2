package year

import (
	"context"
	"testing"

	"github.com/waves-sync/waves-sync/internal/api"
	"github.com/waves-sync/waves-sync/internal/synclog"
	"github.com/waves-sync/waves-sync/internal/track"
)

type fakeAgent struct {
	calls [][2][]string // {ids, years} per call
	err   error
}

func (f *fakeAgent) BulkUpdateYear(_ context.Context, ids, years []string) error {
	idsCopy := append([]string(nil), ids...)
	yearsCopy := append([]string(nil), years...)
	f.calls = append(f.calls, [2][]string{idsCopy, yearsCopy})
	return f.err
}

func testLog() synclog.Logger {
	l, _, _ := synclog.New("", false)
	return l
}

func TestBatchProcessorNormalizesUnknownHandling(t *testing.T) {
	r := New(DefaultConfig(), newFakeCache(), &fakePending{}, &fakeOrchestrator{})
	b := NewBatchProcessor(r, &fakeAgent{}, PrereleaseHandling("bogus"), testLog())
	if b.handling != ProcessEditable {
		t.Fatalf("expected unknown handling normalized to process_editable, got %q", b.handling)
	}
}

func TestProcessWritesYearAndPopulatesYearBeforeSyncOnce(t *testing.T) {
	orch := &fakeOrchestrator{result: api.Result{Year: 2010, IsDefinitive: true, Confidence: 90}}
	r := New(DefaultConfig(), newFakeCache(), &fakePending{}, orch)
	ag := &fakeAgent{}
	b := NewBatchProcessor(r, ag, ProcessEditable, testLog())

	tracks := []track.Track{
		{ID: "1", Artist: "Artist", Album: "Album", Year: "1999", TrackStatus: track.StatusPurchased},
		{ID: "2", Artist: "Artist", Album: "Album", Year: "2000", TrackStatus: track.StatusPurchased, YearBeforeSync: "1950"},
	}

	out, entries := b.Process(context.Background(), tracks, nil, nil)

	if len(ag.calls) != 1 {
		t.Fatalf("expected a single bulk update call, got %d", len(ag.calls))
	}
	for _, tr := range out {
		if tr.Year != "2010" || tr.YearSetBySync != "2010" {
			t.Fatalf("expected year written to the API result since no dominant year existed, got %+v", tr)
		}
	}
	if out[0].YearBeforeSync != "1999" {
		t.Fatalf("expected year_before_mgu populated from prior year once, got %q", out[0].YearBeforeSync)
	}
	if out[1].YearBeforeSync != "1950" {
		t.Fatalf("expected pre-existing year_before_mgu preserved, got %q", out[1].YearBeforeSync)
	}
	if len(entries) != 2 {
		t.Fatalf("expected one change log entry per written track, got %d", len(entries))
	}
}

func TestProcessAllPrereleaseMarksAndSkipsWrite(t *testing.T) {
	orch := &fakeOrchestrator{result: api.Result{Year: 2010, IsDefinitive: true, Confidence: 90}}
	p := &fakePending{}
	r := New(DefaultConfig(), newFakeCache(), p, orch)
	ag := &fakeAgent{}
	b := NewBatchProcessor(r, ag, ProcessEditable, testLog())

	tracks := []track.Track{
		{ID: "1", Artist: "Artist", Album: "Album", TrackStatus: track.StatusPrerelease},
		{ID: "2", Artist: "Artist", Album: "Album", TrackStatus: track.StatusPrerelease},
	}

	_, entries := b.Process(context.Background(), tracks, nil, nil)

	if len(ag.calls) != 0 {
		t.Fatalf("expected no agent writes for an all-prerelease group, got %d", len(ag.calls))
	}
	if len(entries) != 0 {
		t.Fatalf("expected no change log entries, got %+v", entries)
	}
	if len(p.marks) != 1 || p.marks[0].Reason != "prerelease" {
		t.Fatalf("expected prerelease pending mark, got %+v", p.marks)
	}
}

func TestProcessMixedProcessEditableWritesOnlyEditableAndMarksMixed(t *testing.T) {
	orch := &fakeOrchestrator{result: api.Result{Year: 2010, IsDefinitive: true, Confidence: 90}}
	p := &fakePending{}
	r := New(DefaultConfig(), newFakeCache(), p, orch)
	ag := &fakeAgent{}
	b := NewBatchProcessor(r, ag, ProcessEditable, testLog())

	tracks := []track.Track{
		{ID: "1", Artist: "Artist", Album: "Album", TrackStatus: track.StatusPrerelease},
		{ID: "2", Artist: "Artist", Album: "Album", TrackStatus: track.StatusPurchased},
	}

	out, _ := b.Process(context.Background(), tracks, nil, nil)

	if len(ag.calls) != 1 || len(ag.calls[0][0]) != 1 || ag.calls[0][0][0] != "2" {
		t.Fatalf("expected only the editable track written, got %+v", ag.calls)
	}
	if out[0].Year != "" {
		t.Fatalf("expected prerelease track left untouched, got %+v", out[0])
	}
	if len(p.marks) != 1 || p.marks[0].Reason != "mixed_album" {
		t.Fatalf("expected mixed_album pending mark, got %+v", p.marks)
	}
}

func TestProcessMixedSkipAllWritesNothingAndDoesNotMark(t *testing.T) {
	orch := &fakeOrchestrator{result: api.Result{Year: 2010, IsDefinitive: true, Confidence: 90}}
	p := &fakePending{}
	r := New(DefaultConfig(), newFakeCache(), p, orch)
	ag := &fakeAgent{}
	b := NewBatchProcessor(r, ag, SkipAll, testLog())

	tracks := []track.Track{
		{ID: "1", Artist: "Artist", Album: "Album", TrackStatus: track.StatusPrerelease},
		{ID: "2", Artist: "Artist", Album: "Album", TrackStatus: track.StatusPurchased},
	}

	b.Process(context.Background(), tracks, nil, nil)

	if len(ag.calls) != 0 {
		t.Fatalf("expected skip_all to write nothing, got %+v", ag.calls)
	}
	if len(p.marks) != 0 {
		t.Fatalf("expected skip_all to never mark for verification, got %+v", p.marks)
	}
}

func TestProcessMixedMarkOnlyWritesNothingButMarks(t *testing.T) {
	orch := &fakeOrchestrator{result: api.Result{Year: 2010, IsDefinitive: true, Confidence: 90}}
	p := &fakePending{}
	r := New(DefaultConfig(), newFakeCache(), p, orch)
	ag := &fakeAgent{}
	b := NewBatchProcessor(r, ag, MarkOnly, testLog())

	tracks := []track.Track{
		{ID: "1", Artist: "Artist", Album: "Album", TrackStatus: track.StatusPrerelease},
		{ID: "2", Artist: "Artist", Album: "Album", TrackStatus: track.StatusPurchased},
	}

	b.Process(context.Background(), tracks, nil, nil)

	if len(ag.calls) != 0 {
		t.Fatalf("expected mark_only to write nothing, got %+v", ag.calls)
	}
	if len(p.marks) != 1 || p.marks[0].Reason != "mixed_album" {
		t.Fatalf("expected mark_only pending mark, got %+v", p.marks)
	}
}

func TestProcessGroupsByEffectiveAlbumArtist(t *testing.T) {
	orch := &fakeOrchestrator{result: api.Result{Year: 2010, IsDefinitive: true, Confidence: 90}}
	r := New(DefaultConfig(), newFakeCache(), &fakePending{}, orch)
	ag := &fakeAgent{}
	b := NewBatchProcessor(r, ag, ProcessEditable, testLog())

	tracks := []track.Track{
		{ID: "1", Artist: "Feat Guest", AlbumArtist: "Main Artist", Album: "Album", TrackStatus: track.StatusPurchased},
		{ID: "2", Artist: "Main Artist", Album: "Album", TrackStatus: track.StatusPurchased},
	}

	_, _ = b.Process(context.Background(), tracks, nil, nil)

	if len(ag.calls) != 1 || len(ag.calls[0][0]) != 2 {
		t.Fatalf("expected both tracks grouped under the same effective album artist, got %+v", ag.calls)
	}
}
