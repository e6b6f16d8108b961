package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jfmyers9/cloudmusic/internal/config"
	"github.com/jfmyers9/cloudmusic/internal/daemon"
	"github.com/jfmyers9/cloudmusic/internal/queue"
)

var daemonIdleTimeout time.Duration

// daemonCmd represents the daemon command
var daemonCmd = &cobra.Command{
	Use:    "daemon",
	Short:  "Run the background process",
	Hidden: true,
	Long: `Run the background process that client instances connect to.

Client instances start it on demand with its settings passed as CM_*
environment variables. It listens on a Unix socket in the setting
directory, relays queue and player messages to every connected
instance, and keeps the queue on disk so the next spawn can restore it.

It exits after --idle-timeout with no instances connected, or on
SIGINT/SIGTERM. Logs go to stderr, which the spawning instance
appends to a dated error log in the setting directory.`,
	RunE: runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)

	daemonCmd.Flags().DurationVar(&daemonIdleTimeout, "idle-timeout", 5*time.Minute, "Exit after this long with no instances connected (0 = never)")
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	sp := config.LoadSpawn()

	logger := setupLogger(logFile, levelOr(cfg.LogLevel))
	logger.Info().
		Str("version", version).
		Str("setting_dir", sp.SettingDir).
		Msg("Starting cloudmusic background process")

	if err := os.MkdirAll(sp.SettingDir, 0o755); err != nil {
		return fmt.Errorf("failed to create setting directory: %w", err)
	}

	d, err := daemon.New(daemon.Config{
		SocketPath:  sp.SocketPath(),
		StateFile:   sp.RetainedPath(),
		ShiftMode:   queue.ParseShiftMode(cfg.ShiftMode),
		Volume:      sp.Volume,
		Speed:       sp.Speed,
		IdleTimeout: daemonIdleTimeout,
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to create daemon: %w", err)
	}

	if err := d.Run(); err != nil {
		return fmt.Errorf("daemon error: %w", err)
	}

	logger.Info().Msg("Background process stopped")
	return nil
}
