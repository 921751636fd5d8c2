package paths

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAtomicWriteFileCreatesFile(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "sub", "file.json")

	if err := AtomicWriteFile(target, []byte(`{"a":1}`), 0o644); err != nil {
		t.Fatalf("AtomicWriteFile: %v", err)
	}

	data, err := os.ReadFile(target)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != `{"a":1}` {
		t.Fatalf("unexpected content: %s", data)
	}
}

func TestAtomicWriteFileLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "file.json")

	if err := AtomicWriteFile(target, []byte("v1"), 0o644); err != nil {
		t.Fatalf("AtomicWriteFile: %v", err)
	}
	if err := AtomicWriteFile(target, []byte("v2"), 0o644); err != nil {
		t.Fatalf("AtomicWriteFile overwrite: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one file in dir, got %d", len(entries))
	}

	data, _ := os.ReadFile(target)
	if string(data) != "v2" {
		t.Fatalf("expected overwritten content v2, got %s", data)
	}
}

func TestCacheDirOverrideCreatesDirectory(t *testing.T) {
	base := t.TempDir()
	override := filepath.Join(base, "nested", "cache")

	dir, err := CacheDir(override)
	if err != nil {
		t.Fatalf("CacheDir: %v", err)
	}
	if dir != override {
		t.Fatalf("expected override path returned, got %s", dir)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("expected directory to exist at %s", dir)
	}
}
