package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jfmyers9/cloudmusic/internal/config"
	"github.com/jfmyers9/cloudmusic/internal/discord"
	"github.com/jfmyers9/cloudmusic/internal/library"
	"github.com/jfmyers9/cloudmusic/internal/tui"
	"github.com/jfmyers9/cloudmusic/internal/ui"
)

// tuiCmd represents the tui command
var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Open a client instance in the terminal",
	Long: `Open a terminal client instance.

The first instance starts the background process; later ones join it and
mirror the same queue. Library folders are scanned and watched for
changes while the window is open. Discord Rich Presence is published
when discord_app_id is configured.

Logs go to client.log in the setting directory unless --log-file is set.

Keys:
  n/p  next/previous entry     r  shuffle queue
  d    delete current entry    c  clear queue
  s    stop                    q  quit`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// The terminal belongs to the TUI, so logs default to a file.
	if err := os.MkdirAll(cfg.SettingDir, 0o755); err != nil {
		return fmt.Errorf("failed to create setting directory: %w", err)
	}
	path := logFile
	if path == "" {
		path = filepath.Join(cfg.SettingDir, "client.log")
	}
	logger := setupLogger(path, levelOr(cfg.LogLevel))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	app := tui.New(nil)
	uis := ui.Multi{app, ui.NewLog(logger)}
	if cfg.DiscordAppID != "" {
		presence := discord.New(cfg.DiscordAppID, logger)
		uis = append(uis, presence)
		go presence.Run(ctx)
	}

	inst, kv, err := newInstance(ctx, cfg, uis, true, logger)
	if err != nil {
		return err
	}
	defer kv.Close()
	app.SetController(inst)

	lib, err := library.Open(ctx, kv, logger)
	if err != nil {
		return err
	}

	runErr := make(chan error, 1)
	go func() {
		err := inst.Run(ctx)
		if err != nil {
			logger.Error().Err(err).Msg("Client instance stopped")
			cancel()
		}
		runErr <- err
	}()
	go watchLibrary(ctx, lib, app, logger)

	err = app.Run(ctx)
	cancel()
	if rerr := <-runErr; rerr != nil && err == nil {
		err = rerr
	}
	return err
}

// watchLibrary scans every folder once, then rescans folders as their
// audio files change.
func watchLibrary(ctx context.Context, lib *library.Library, u ui.UI, logger zerolog.Logger) {
	scan := func(folder string) {
		entries, err := library.Scan(folder)
		if err != nil {
			logger.Warn().Err(err).Str("folder", folder).Msg("Failed to scan library folder")
			return
		}
		u.Library(folder, entries)
	}

	for _, folder := range lib.Folders() {
		scan(folder)
	}
	if err := lib.Watch(ctx, scan); err != nil && ctx.Err() == nil {
		logger.Warn().Err(err).Msg("Library watch stopped")
	}
}
