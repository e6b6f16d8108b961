package cmd

import (
	"bufio"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jfmyers9/cloudmusic/internal/config"
	"github.com/jfmyers9/cloudmusic/internal/ipc"
	"github.com/jfmyers9/cloudmusic/internal/queue"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or write configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a config file, prompting for common settings",
	Long: `Write ~/.config/cloudmusic/config.yaml.

Current values (defaults on first run) are offered for each prompt;
press enter to keep them.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config directory",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), filepath.Join(config.GetConfigDir(), "config.yaml"))
	},
}

var logPathCmd = &cobra.Command{
	Use:   "log-path",
	Short: "Print today's background process error log",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), filepath.Join(cfg.SettingDir, ipc.LogFileName(time.Now())))
		return nil
	},
}

func init() {
	configCmd.AddCommand(configInitCmd, configPathCmd)
	rootCmd.AddCommand(configCmd, logPathCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "cloudmusic configuration")
	fmt.Fprintln(out, "========================")
	fmt.Fprintln(out)

	if err := promptConfig(cmd.InOrStdin(), out, cfg); err != nil {
		return err
	}

	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	fmt.Fprintf(out, "\nSaved %s\n", filepath.Join(config.GetConfigDir(), "config.yaml"))
	return nil
}

// promptConfig asks for each setting, keeping the current value on an
// empty answer.
func promptConfig(in io.Reader, out io.Writer, cfg *config.Config) error {
	reader := bufio.NewReader(in)
	ask := func(label, current string) (string, error) {
		fmt.Fprintf(out, "%s [%s]: ", label, current)
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", fmt.Errorf("failed to read %s: %w", label, err)
		}
		if line = strings.TrimSpace(line); line == "" {
			return current, nil
		}
		return line, nil
	}

	var err error
	if cfg.SettingDir, err = ask("Setting directory", cfg.SettingDir); err != nil {
		return err
	}

	if cfg.QueueInit, err = ask("Queue on startup (none, restore, recommend)", cfg.QueueInit); err != nil {
		return err
	}
	switch cfg.QueueInit {
	case config.QueueInitNone, config.QueueInitRestore, config.QueueInitRecommend:
	default:
		return fmt.Errorf("unknown queue mode %q", cfg.QueueInit)
	}

	if cfg.ShiftMode, err = ask("Shift mode (front, rotate)", cfg.ShiftMode); err != nil {
		return err
	}
	if queue.ParseShiftMode(cfg.ShiftMode) == queue.ShiftRotate {
		cfg.ShiftMode = "rotate"
	} else {
		cfg.ShiftMode = "front"
	}

	if cfg.DiscordAppID, err = ask("Discord application ID (- disables presence)", cfg.DiscordAppID); err != nil {
		return err
	}
	if cfg.DiscordAppID == "-" {
		cfg.DiscordAppID = ""
	}
	return nil
}
