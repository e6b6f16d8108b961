package library

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/cloudmusic/internal/queue"
	"github.com/jfmyers9/cloudmusic/internal/storage"
)

func createTestLibrary(t *testing.T) (*Library, *storage.KV) {
	t.Helper()
	kv, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = kv.Close() })

	l, err := Open(context.Background(), kv, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return l, kv
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestFoldersPersist(t *testing.T) {
	l, kv := createTestLibrary(t)
	ctx := context.Background()
	a, b := t.TempDir(), t.TempDir()

	for _, dir := range []string{a, b, a} {
		if _, err := l.AddFolder(ctx, dir); err != nil {
			t.Fatalf("AddFolder: %v", err)
		}
	}
	if got := l.Folders(); !slices.Equal(got, []string{a, b}) {
		t.Errorf("folders = %v", got)
	}

	removed, err := l.RemoveFolder(ctx, a)
	if err != nil || !removed {
		t.Fatalf("RemoveFolder = %v, %v", removed, err)
	}
	if removed, _ := l.RemoveFolder(ctx, a); removed {
		t.Error("second RemoveFolder reported removal")
	}

	reopened, err := Open(ctx, kv, zerolog.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if got := reopened.Folders(); !slices.Equal(got, []string{b}) {
		t.Errorf("persisted folders = %v, want [%s]", got, b)
	}
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b.mp3"))
	touch(t, filepath.Join(dir, "a.FLAC"))
	touch(t, filepath.Join(dir, "cover.jpg"))
	touch(t, filepath.Join(dir, "disc2", "c.ogg"))

	entries, err := Scan(dir)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	var names []string
	for _, e := range entries {
		if e.Kind != queue.KindLocal || e.Standard() {
			t.Errorf("entry %+v is not local", e)
		}
		names = append(names, e.Name)
	}
	if !slices.Equal(names, []string{"a", "b", "c"}) {
		t.Errorf("names = %v", names)
	}
	if entries[0].ID != "local:"+filepath.Join(dir, "a.FLAC") {
		t.Errorf("id = %q", entries[0].ID)
	}
}

func TestScanMissingFolder(t *testing.T) {
	if _, err := Scan(filepath.Join(t.TempDir(), "gone")); err == nil {
		t.Error("expected error for missing folder")
	}
}

func TestWatchReportsAudioChanges(t *testing.T) {
	l, _ := createTestLibrary(t)
	dir := t.TempDir()
	if _, err := l.AddFolder(context.Background(), dir); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	changed := make(chan string, 8)
	done := make(chan error, 1)
	go func() { done <- l.Watch(ctx, func(f string) { changed <- f }) }()

	// Give the watcher time to register.
	deadline := time.After(5 * time.Second)
	for i := 0; ; i++ {
		touch(t, filepath.Join(dir, "note.txt"))
		touch(t, filepath.Join(dir, "song"+string(rune('a'+i))+".mp3"))
		select {
		case got := <-changed:
			if got != dir {
				t.Errorf("changed folder = %q, want %q", got, dir)
			}
			cancel()
			if err := <-done; err != nil {
				t.Errorf("Watch: %v", err)
			}
			return
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("no change reported")
		}
	}
}
