package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestArchiver_RoundTrip(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	archiver := NewArchiver(store, "archive")
	ctx := context.Background()

	content := strings.Repeat(`{"event_type":"app_start"}`+"\n", 100)
	src := filepath.Join(t.TempDir(), "userClean_u-1.json")
	if err := os.WriteFile(src, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write artifact: %v", err)
	}

	key, err := archiver.Archive(ctx, "roster_2025-05-16", src)
	if err != nil {
		t.Fatalf("archive failed: %v", err)
	}
	if !strings.HasPrefix(key, "archive/") || !strings.HasSuffix(key, ".sz") {
		t.Errorf("unexpected object key: %s", key)
	}

	dest := filepath.Join(t.TempDir(), "restored.json")
	if err := archiver.Restore(ctx, key, dest); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	restored, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("failed to read restored file: %v", err)
	}
	if string(restored) != content {
		t.Error("restored content does not match original")
	}
}

func TestArchiver_ObjectKeyIsStable(t *testing.T) {
	archiver := NewArchiver(nil, "archive")

	k1 := archiver.ObjectKey("session", "userClean_u-1.json")
	k2 := archiver.ObjectKey("session", "userClean_u-1.json")
	if k1 != k2 {
		t.Errorf("keys differ for same artifact: %s vs %s", k1, k2)
	}

	k3 := archiver.ObjectKey("other", "userClean_u-1.json")
	if !strings.Contains(k3, "/other/") {
		t.Errorf("key missing session segment: %s", k3)
	}
}

func TestArchiver_ArchiveDir(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	archiver := NewArchiver(store, "archive")
	ctx := context.Background()

	dir := t.TempDir()
	for _, name := range []string{"userClean_u-1.json", "userClean_u-2.json"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("{}"), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "nested"), 0755); err != nil {
		t.Fatalf("failed to create subdir: %v", err)
	}

	keys, err := archiver.ArchiveDir(ctx, "session", dir)
	if err != nil {
		t.Fatalf("archive dir failed: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("keys = %v, want 2 (subdirs skipped)", keys)
	}

	for _, key := range keys {
		exists, err := store.Exists(ctx, key)
		if err != nil || !exists {
			t.Errorf("archived object %s missing: %v", key, err)
		}
	}
}

func TestArchiver_RestoreCorruptArchive(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create local storage: %v", err)
	}
	archiver := NewArchiver(store, "archive")
	ctx := context.Background()

	bad := filepath.Join(t.TempDir(), "bad.sz")
	if err := os.WriteFile(bad, []byte("not snappy data"), 0644); err != nil {
		t.Fatalf("failed to write corrupt archive: %v", err)
	}
	if err := store.Upload(ctx, bad, "archive/00/session/bad.json.sz"); err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	err = archiver.Restore(ctx, "archive/00/session/bad.json.sz", filepath.Join(t.TempDir(), "out"))
	if err == nil {
		t.Error("expected error restoring corrupt archive")
	}
}
