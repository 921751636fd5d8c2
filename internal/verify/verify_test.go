package verify

import (
	"context"
	"testing"
	"time"

	"github.com/waves-sync/waves-sync/internal/synclog"
)

type stringEntry string

func (s stringEntry) TrackID() string { return string(s) }

type fakeExistence struct {
	absent map[string]bool
}

func (f *fakeExistence) Exists(_ context.Context, id string) (bool, error) {
	return !f.absent[id], nil
}

type fakeRemover struct {
	removed []string
}

func (f *fakeRemover) RemoveByID(id string) bool {
	f.removed = append(f.removed, id)
	return true
}

func testLogger() synclog.Logger {
	l, _, _ := synclog.New("", false)
	return l
}

func noSleep(time.Duration) {}

func TestRunRemovesOnlyConfirmedAbsentEntries(t *testing.T) {
	entries := []Entry{stringEntry("1"), stringEntry("2"), stringEntry("3")}
	ag := &fakeExistence{absent: map[string]bool{"2": true}}
	rm := &fakeRemover{}
	v := New(DefaultConfig(), ag, testLogger())

	res := v.run(context.Background(), entries, rm, noSleep)

	if res.Checked != 3 {
		t.Fatalf("expected 3 checked, got %d", res.Checked)
	}
	if len(res.Removed) != 1 || res.Removed[0] != "2" {
		t.Fatalf("expected only id 2 removed, got %v", res.Removed)
	}
	if len(rm.removed) != 1 || rm.removed[0] != "2" {
		t.Fatalf("expected remover invoked once for id 2, got %v", rm.removed)
	}
}

func TestRunBatchesAccordingToConfig(t *testing.T) {
	entries := make([]Entry, 0, 45)
	for i := 0; i < 45; i++ {
		entries = append(entries, stringEntry(string(rune('a'+i%26))+string(rune(i)))) // unique-ish ids
	}
	ag := &fakeExistence{absent: map[string]bool{}}
	rm := &fakeRemover{}
	v := New(Config{BatchSize: 20, BatchPause: time.Hour}, ag, testLogger())

	pauses := 0
	res := v.run(context.Background(), entries, rm, func(time.Duration) { pauses++ })

	if res.Checked != 45 {
		t.Fatalf("expected all 45 entries checked, got %d", res.Checked)
	}
	if pauses != 2 {
		t.Fatalf("expected a pause between each of the 3 batches except the last, got %d", pauses)
	}
}

func TestRunDefaultsInvalidConfig(t *testing.T) {
	v := New(Config{}, &fakeExistence{}, testLogger())
	if v.cfg.BatchSize != defaultBatchSize || v.cfg.BatchPause != defaultBatchPause {
		t.Fatalf("expected zero-value config defaulted, got %+v", v.cfg)
	}
}

func TestRunNoRemovalsWhenAllPresent(t *testing.T) {
	entries := []Entry{stringEntry("1"), stringEntry("2")}
	ag := &fakeExistence{absent: map[string]bool{}}
	rm := &fakeRemover{}
	v := New(DefaultConfig(), ag, testLogger())

	res := v.run(context.Background(), entries, rm, noSleep)
	if len(res.Removed) != 0 {
		t.Fatalf("expected no removals when every id is present, got %v", res.Removed)
	}
}
