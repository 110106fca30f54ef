package fileutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "call_en.srt")

	if err := WriteFileAtomic(dst, []byte("first"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := WriteFileAtomic(dst, []byte("second"), 0o644); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "second" {
		t.Fatalf("content = %q, want %q", got, "second")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the destination file, found %d entries", len(entries))
	}
}

func TestWriteFileAtomicMode(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "transponster.pid")
	if err := WriteFileAtomic(dst, []byte("42\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestWriteFileAtomicMissingDirectory(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "missing", "out.txt")
	if err := WriteFileAtomic(dst, []byte("x"), 0o644); err == nil {
		t.Fatal("expected error for a missing directory")
	}
}
