package ipc

import (
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestLogFileName(t *testing.T) {
	got := LogFileName(time.Date(2026, 3, 7, 23, 59, 0, 0, time.UTC))
	if got != "err-2026-03-07.log" {
		t.Errorf("LogFileName = %q", got)
	}
}

func TestSpawnConfiguresCommand(t *testing.T) {
	dir := t.TempDir()
	s := NewSpawner("/usr/bin/cloudmusic", []string{"daemon"}, []string{"CM_VOLUME=80", "CM_WASM=true"}, dir, zerolog.Nop())
	s.now = func() time.Time { return time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC) }

	var started *exec.Cmd
	s.start = func(cmd *exec.Cmd) error {
		started = cmd
		if _, err := cmd.Stderr.(*os.File).WriteString("boot\n"); err != nil {
			t.Errorf("write stderr: %v", err)
		}
		return nil
	}

	if err := os.WriteFile(s.LogPath(), []byte("earlier\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := s.Spawn(); err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	if started == nil {
		t.Fatal("start not called")
	}
	if started.Path != "/usr/bin/cloudmusic" || !slices.Equal(started.Args, []string{"/usr/bin/cloudmusic", "daemon"}) {
		t.Errorf("command = %s %v", started.Path, started.Args)
	}
	for _, kv := range []string{"CM_VOLUME=80", "CM_WASM=true"} {
		if !slices.Contains(started.Env, kv) {
			t.Errorf("env missing %s", kv)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "err-2026-01-02.log"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "earlier\nboot\n" {
		t.Errorf("log = %q, want appended content", data)
	}
}

func TestSweepStaleLogs(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"err-2026-01-01.log", "err-2026-01-02.log", "err-2026-01-03.log", "cloudmusic.sock", "state.db"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}

	removed := SweepStaleLogs(dir, "err-2026-01-03.log", zerolog.Nop())
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	entries, _ := os.ReadDir(dir)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	want := []string{"cloudmusic.sock", "err-2026-01-03.log", "state.db"}
	if !slices.Equal(names, want) {
		t.Errorf("remaining = %v, want %v", names, want)
	}
}

func TestSweepStaleLogsMissingDir(t *testing.T) {
	var buf strings.Builder
	logger := zerolog.New(&buf)
	if n := SweepStaleLogs(filepath.Join(t.TempDir(), "missing"), "x", logger); n != 0 {
		t.Errorf("removed = %d, want 0", n)
	}
	if !strings.Contains(buf.String(), "failed to list error logs") {
		t.Errorf("expected warning, got %q", buf.String())
	}
}
