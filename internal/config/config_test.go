package config

import (
	"path/filepath"
	"slices"
	"testing"
)

func TestLoadDefaultsAndEnv(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("CLOUDMUSIC_SHIFT_MODE", "rotate")
	t.Setenv("CLOUDMUSIC_WASM", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ShiftMode != "rotate" {
		t.Errorf("ShiftMode = %q, want rotate", cfg.ShiftMode)
	}
	if !cfg.Wasm {
		t.Error("Wasm = false, want true")
	}
	if cfg.QueueInit != QueueInitNone {
		t.Errorf("QueueInit = %q, want none", cfg.QueueInit)
	}
	want := filepath.Join(home, ".local", "share", "cloudmusic")
	if cfg.SettingDir != want {
		t.Errorf("SettingDir = %q, want %q", cfg.SettingDir, want)
	}
	if cfg.SocketPath() != filepath.Join(want, "cloudmusic.sock") {
		t.Errorf("SocketPath = %q", cfg.SocketPath())
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.QueueInit = QueueInitRestore
	cfg.MusicQuality = 320000
	if err := cfg.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.QueueInit != QueueInitRestore || got.MusicQuality != 320000 {
		t.Errorf("reloaded = %+v", got)
	}
}

func TestResolveProxy(t *testing.T) {
	tests := []struct {
		name       string
		configured string
		https      string
		http       string
		want       string
	}{
		{"configured wins", "http://cfg:1", "http://s:2", "http://p:3", "http://cfg:1"},
		{"https env", "", "http://s:2", "http://p:3", "http://s:2"},
		{"http env", "", "", "http://p:3", "http://p:3"},
		{"none", "", "", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("HTTPS_PROXY", tt.https)
			t.Setenv("HTTP_PROXY", tt.http)
			c := &Config{Proxy: tt.configured}
			if got := c.ResolveProxy(); got != tt.want {
				t.Errorf("ResolveProxy = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSpawnEnvRoundTrip(t *testing.T) {
	s := Spawn{
		SettingDir:     "/tmp/cm",
		NativeModule:   "media-linux-x64.node",
		Volume:         70,
		Speed:          1.25,
		Wasm:           true,
		MusicQuality:   320000,
		MusicCacheSize: 1024,
		HTTPSAPI:       false,
		Foreign:        true,
		Proxy:          "http://127.0.0.1:8080",
		StrictSSL:      false,
	}

	env := s.Env()
	for _, kv := range []string{"CM_VOLUME=70", "CM_SPEED=1.25", "CM_WASM=1", "CM_HTTPS_API=0", "CM_FOREIGN=1", "CM_PROXY=http://127.0.0.1:8080"} {
		if !slices.Contains(env, kv) {
			t.Errorf("Env missing %s", kv)
		}
	}

	for _, kv := range env {
		for i := range kv {
			if kv[i] == '=' {
				t.Setenv(kv[:i], kv[i+1:])
				break
			}
		}
	}
	if got := LoadSpawn(); got != s {
		t.Errorf("LoadSpawn = %+v, want %+v", got, s)
	}
}

func TestLoadSpawnDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	s := LoadSpawn()
	if s.Volume != 85 || s.Speed != 1 || !s.StrictSSL || s.Wasm {
		t.Errorf("defaults = %+v", s)
	}
}

func TestSpawnPaths(t *testing.T) {
	s := Spawn{SettingDir: "/tmp/cm"}
	cfg := &Config{SettingDir: "/tmp/cm"}
	if s.SocketPath() != cfg.SocketPath() {
		t.Errorf("socket paths differ: %q vs %q", s.SocketPath(), cfg.SocketPath())
	}
	if s.RetainedPath() != filepath.Join("/tmp/cm", "retained.json") {
		t.Errorf("RetainedPath = %q", s.RetainedPath())
	}
}
