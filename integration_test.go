//go:build integration

package main

import (
	"bytes"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testBinary = "cloudmusic_test"

func buildBinary(t testing.TB) string {
	t.Helper()
	buildCmd := exec.Command("go", "build", "-o", testBinary, ".")
	if out, err := buildCmd.CombinedOutput(); err != nil {
		t.Fatalf("Failed to build binary: %v\n%s", err, out)
	}
	t.Cleanup(func() { os.Remove(testBinary) })
	abs, err := filepath.Abs(testBinary)
	if err != nil {
		t.Fatal(err)
	}
	return abs
}

// testEnv isolates config and setting directories under dir.
func testEnv(dir string) []string {
	return append(os.Environ(),
		"HOME="+dir,
		"CLOUDMUSIC_SETTING_DIR="+filepath.Join(dir, "setting"),
		"CM_SETTING_DIR="+filepath.Join(dir, "setting"),
	)
}

func waitForFile(t *testing.T, path string) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); err == nil {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("%s never appeared", path)
}

// TestDaemonLifecycle starts the background process, edits the queue from
// one-shot commands, and checks the queue is retained after shutdown.
func TestDaemonLifecycle(t *testing.T) {
	bin := buildBinary(t)
	tmpDir := t.TempDir()
	env := testEnv(tmpDir)
	settingDir := filepath.Join(tmpDir, "setting")

	daemon := exec.Command(bin, "daemon", "--log-level", "debug")
	daemon.Env = env
	var daemonLog bytes.Buffer
	daemon.Stderr = &daemonLog
	if err := daemon.Start(); err != nil {
		t.Fatalf("Failed to start daemon: %v", err)
	}
	waitForFile(t, filepath.Join(settingDir, "cloudmusic.sock"))

	track := filepath.Join(tmpDir, "First Track.mp3")
	if err := os.WriteFile(track, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	run := func(args ...string) string {
		t.Helper()
		cmd := exec.Command(bin, args...)
		cmd.Env = env
		out, err := cmd.CombinedOutput()
		if err != nil {
			t.Fatalf("%v failed: %v\n%s", args, err, out)
		}
		return string(out)
	}

	run("queue", "add", track)
	run("queue", "play", "local:"+track)

	if out := run("now", "--format", "{{.Name}}"); strings.TrimSpace(out) != "First Track" {
		t.Errorf("now = %q, want First Track", out)
	}
	if out := run("queue", "list"); !strings.Contains(out, "▶ local:"+track) {
		t.Errorf("queue list = %q", out)
	}

	if err := daemon.Process.Signal(os.Interrupt); err != nil {
		t.Fatal(err)
	}
	done := make(chan error, 1)
	go func() { done <- daemon.Wait() }()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		daemon.Process.Kill()
		t.Fatalf("Daemon did not stop within 10 seconds\n%s", daemonLog.String())
	}

	data, err := os.ReadFile(filepath.Join(settingDir, "retained.json"))
	if err != nil {
		t.Fatalf("retained state not written: %v", err)
	}
	var retained struct {
		Items  []struct{ ID string } `json:"items"`
		HeadID string                `json:"head_id"`
	}
	if err := json.Unmarshal(data, &retained); err != nil {
		t.Fatal(err)
	}
	if len(retained.Items) != 1 || retained.HeadID != "local:"+track {
		t.Errorf("retained = %+v", retained)
	}
}

// TestNowWithoutDaemon exits 1 without starting a background process.
func TestNowWithoutDaemon(t *testing.T) {
	bin := buildBinary(t)
	tmpDir := t.TempDir()

	cmd := exec.Command(bin, "now")
	cmd.Env = testEnv(tmpDir)
	err := cmd.Run()
	exitErr, ok := err.(*exec.ExitError)
	if !ok || exitErr.ExitCode() != 1 {
		t.Fatalf("now error = %v, want exit status 1", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "setting", "cloudmusic.sock")); !os.IsNotExist(err) {
		t.Error("now should not spawn a background process")
	}
}

// BenchmarkNowCommand measures a one-shot join against a running daemon.
func BenchmarkNowCommand(b *testing.B) {
	bin := buildBinary(b)
	tmpDir := b.TempDir()
	env := testEnv(tmpDir)

	daemon := exec.Command(bin, "daemon")
	daemon.Env = env
	if err := daemon.Start(); err != nil {
		b.Fatal(err)
	}
	defer func() {
		daemon.Process.Signal(os.Interrupt)
		daemon.Wait()
	}()
	time.Sleep(500 * time.Millisecond)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cmd := exec.Command(bin, "now")
		cmd.Env = env
		_ = cmd.Run() // empty queue exits 1
	}
}
