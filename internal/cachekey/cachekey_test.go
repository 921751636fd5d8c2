package cachekey

import "testing"

func TestAlbumKeyNormalizes(t *testing.T) {
	a := AlbumKey("Radiohead", "OK Computer")
	b := AlbumKey("  radiohead  ", "OK COMPUTER")
	if a != b {
		t.Fatalf("expected normalized keys to match: %s != %s", a, b)
	}
}

func TestAlbumKeyDistinguishesAlbum(t *testing.T) {
	a := AlbumKey("Radiohead", "OK Computer")
	b := AlbumKey("Radiohead", "In Rainbows")
	if a == b {
		t.Fatalf("expected distinct keys for distinct albums")
	}
}

func TestAPIKeyIncludesSource(t *testing.T) {
	mb := APIKey("Radiohead", "OK Computer", "musicbrainz")
	dc := APIKey("Radiohead", "OK Computer", "discogs")
	if mb == dc {
		t.Fatalf("expected distinct keys for distinct sources")
	}
}

func TestAPIKeyNormalizesSource(t *testing.T) {
	a := APIKey("Radiohead", "OK Computer", "MusicBrainz")
	b := APIKey("radiohead", "ok computer", "musicbrainz")
	if a != b {
		t.Fatalf("expected normalized API keys to match")
	}
}

func TestGenericKeyMapOrderIndependent(t *testing.T) {
	m1 := map[string]any{"a": 1, "b": 2}
	m2 := map[string]any{"b": 2, "a": 1}
	if GenericKey(m1) != GenericKey(m2) {
		t.Fatalf("expected map key order to not affect hash")
	}
}

func TestGenericKeyDistinguishesValues(t *testing.T) {
	if GenericKey("foo") == GenericKey("bar") {
		t.Fatalf("expected distinct values to hash differently")
	}
}

func TestGenericKeyStable(t *testing.T) {
	a := GenericKey([]string{"x", "y", "z"})
	b := GenericKey([]string{"x", "y", "z"})
	if a != b {
		t.Fatalf("expected repeated calls to produce identical hashes")
	}
}
