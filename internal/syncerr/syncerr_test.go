package syncerr

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsMatchesKind(t *testing.T) {
	err := New(KindAPIQuota, "search discogs", errors.New("429"))
	if !Is(err, KindAPIQuota) {
		t.Fatalf("expected Is to match KindAPIQuota")
	}
	if Is(err, KindAPITransient) {
		t.Fatalf("expected Is to not match a different kind")
	}
}

func TestIsLooksThroughWrapping(t *testing.T) {
	inner := New(KindCacheCorruption, "load album cache", errors.New("bad json"))
	wrapped := errors.New("wrap: " + inner.Error())
	if Is(wrapped, KindCacheCorruption) {
		t.Fatalf("plain errors.New should not satisfy Is without errors.As support")
	}
	var target error = inner
	if !Is(target, KindCacheCorruption) {
		t.Fatalf("expected direct *Error to match")
	}
	if !Is(fmt.Errorf("wrap: %w", inner), KindCacheCorruption) {
		t.Fatalf("expected Is to match a *Error wrapped with %%w")
	}
}

func TestTransientOnlyMatchesAPITransient(t *testing.T) {
	if !Transient(New(KindAPITransient, "op", nil)) {
		t.Fatalf("expected transient API error to be retryable")
	}
	if Transient(New(KindAPIQuota, "op", nil)) {
		t.Fatalf("quota exhaustion is a null outcome, not transient")
	}
}

func TestRecoverableClassification(t *testing.T) {
	recoverable := []Kind{KindAgentError, KindAPITransient, KindAPIQuota, KindAPIMalformed, KindCacheCorruption, KindValidation}
	for _, k := range recoverable {
		if !Recoverable(New(k, "op", nil)) {
			t.Fatalf("expected kind %s to be recoverable", k)
		}
	}
	fatal := []Kind{KindConfig, KindAgentUnavailable, KindSnapshotStale}
	for _, k := range fatal {
		if Recoverable(New(k, "op", nil)) {
			t.Fatalf("expected kind %s to not be recoverable at track/album level", k)
		}
	}
}

func TestErrorFormatting(t *testing.T) {
	err := New(KindValidation, "check id", errors.New("not numeric"))
	want := "check id: validation: not numeric"
	if err.Error() != want {
		t.Fatalf("got %q want %q", err.Error(), want)
	}
}
