package cmd

import (
	"bytes"
	"strings"
	"testing"

	"github.com/jfmyers9/cloudmusic/internal/config"
)

func TestPromptConfig(t *testing.T) {
	cfg := &config.Config{
		SettingDir:   "/data/cm",
		QueueInit:    config.QueueInitNone,
		ShiftMode:    "front",
		DiscordAppID: "123",
	}
	in := strings.NewReader("\nrestore\nROTATE\n-\n")
	var out bytes.Buffer

	if err := promptConfig(in, &out, cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.SettingDir != "/data/cm" {
		t.Errorf("SettingDir = %q, want kept", cfg.SettingDir)
	}
	if cfg.QueueInit != config.QueueInitRestore {
		t.Errorf("QueueInit = %q", cfg.QueueInit)
	}
	if cfg.ShiftMode != "rotate" {
		t.Errorf("ShiftMode = %q", cfg.ShiftMode)
	}
	if cfg.DiscordAppID != "" {
		t.Errorf("DiscordAppID = %q, want cleared", cfg.DiscordAppID)
	}
	if !strings.Contains(out.String(), "Setting directory [/data/cm]") {
		t.Errorf("prompt output = %q", out.String())
	}
}

func TestPromptConfigRejectsUnknownQueueMode(t *testing.T) {
	cfg := &config.Config{QueueInit: config.QueueInitNone}
	in := strings.NewReader("\nsometimes\n")
	if err := promptConfig(in, &bytes.Buffer{}, cfg); err == nil {
		t.Error("expected error for unknown queue mode")
	}
}

func TestPromptConfigKeepsValuesOnEOF(t *testing.T) {
	cfg := &config.Config{SettingDir: "/x", QueueInit: config.QueueInitRecommend, ShiftMode: "front", DiscordAppID: "9"}
	if err := promptConfig(strings.NewReader(""), &bytes.Buffer{}, cfg); err != nil {
		t.Fatal(err)
	}
	if cfg.SettingDir != "/x" || cfg.QueueInit != config.QueueInitRecommend || cfg.DiscordAppID != "9" {
		t.Errorf("cfg = %+v", cfg)
	}
}
