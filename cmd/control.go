package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jfmyers9/cloudmusic/internal/client"
	"github.com/jfmyers9/cloudmusic/internal/config"
	"github.com/jfmyers9/cloudmusic/internal/library"
	"github.com/jfmyers9/cloudmusic/internal/queue"
	"github.com/jfmyers9/cloudmusic/internal/storage"
)

// queueCmd groups commands that edit the shared queue
var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and edit the shared queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the queue, marking the current entry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return oneShot(func(ctx context.Context, inst *client.Instance) error {
			printQueue(cmd, inst.Queue())
			return nil
		})
	},
}

var queueSortCmd = &cobra.Command{
	Use:       "sort [song|album|artist]",
	Short:     "Sort the queue",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"song", "album", "artist"},
	RunE: func(cmd *cobra.Command, args []string) error {
		by := queue.SortSong
		if len(args) == 1 {
			var err error
			if by, err = parseSortType(args[0]); err != nil {
				return err
			}
		}
		order := queue.Ascending
		if desc, _ := cmd.Flags().GetBool("desc"); desc {
			order = queue.Descending
		}
		return oneShot(func(ctx context.Context, inst *client.Instance) error {
			return inst.SortQueue(by, order)
		})
	},
}

var queueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove every entry from the queue",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return oneShot(func(ctx context.Context, inst *client.Instance) error {
			return inst.ClearQueue()
		})
	},
}

var queueRandomCmd = &cobra.Command{
	Use:   "random",
	Short: "Shuffle the queue, keeping the current entry",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return oneShot(func(ctx context.Context, inst *client.Instance) error {
			return inst.RandomQueue()
		})
	},
}

var queuePlayCmd = &cobra.Command{
	Use:   "play <id>",
	Short: "Make the entry with id the current one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return oneShot(func(ctx context.Context, inst *client.Instance) error {
			return inst.PlaySong(args[0])
		})
	},
}

var queueDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove the entry with id",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return oneShot(func(ctx context.Context, inst *client.Instance) error {
			return inst.DeleteSong(args[0])
		})
	},
}

var queueAddCmd = &cobra.Command{
	Use:   "add <file>...",
	Short: "Append local audio files to the queue",
	Long: `Append local audio files to the queue.

With --next the files are inserted right after the current entry instead.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := localEntries(args)
		if err != nil {
			return err
		}
		next, _ := cmd.Flags().GetBool("next")
		return oneShot(func(ctx context.Context, inst *client.Instance) error {
			if next {
				return inst.PlayNext(items)
			}
			return inst.Add(items)
		})
	},
}

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load the current entry into the player",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		seek, _ := cmd.Flags().GetFloat64("seek")
		var play *bool
		if cmd.Flags().Changed("pause") {
			pause, _ := cmd.Flags().GetBool("pause")
			p := !pause
			play = &p
		}
		return oneShot(func(ctx context.Context, inst *client.Instance) error {
			return inst.Load(play, seek)
		})
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop playback",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return oneShot(func(ctx context.Context, inst *client.Instance) error {
			return inst.Stop()
		})
	},
}

var fmNextCmd = &cobra.Command{
	Use:   "fm-next",
	Short: "Skip to the next radio track",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return oneShot(func(ctx context.Context, inst *client.Instance) error {
			return inst.FMNext()
		})
	},
}

var retainCmd = &cobra.Command{
	Use:   "retain",
	Short: "Restore the queue the background process kept on disk",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return oneShot(func(ctx context.Context, inst *client.Instance) error {
			return inst.Retain()
		})
	},
}

// libraryCmd groups commands for local library folders
var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Manage local library folders",
}

var libraryAddCmd = &cobra.Command{
	Use:   "add <dir>",
	Short: "Add a folder to the library",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLibrary(func(ctx context.Context, lib *library.Library) error {
			added, err := lib.AddFolder(ctx, args[0])
			if err != nil {
				return err
			}
			if !added {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s is already in the library\n", args[0])
			}
			return nil
		})
	},
}

var libraryRemoveCmd = &cobra.Command{
	Use:   "remove <dir>",
	Short: "Remove a folder from the library",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLibrary(func(ctx context.Context, lib *library.Library) error {
			removed, err := lib.RemoveFolder(ctx, args[0])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("%s is not in the library", args[0])
			}
			return nil
		})
	},
}

var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print library folders",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withLibrary(func(ctx context.Context, lib *library.Library) error {
			for _, folder := range lib.Folders() {
				fmt.Fprintln(cmd.OutOrStdout(), folder)
			}
			return nil
		})
	},
}

var libraryPlayCmd = &cobra.Command{
	Use:   "play <dir>",
	Short: "Replace the queue with a folder's tracks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := library.Scan(args[0])
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return fmt.Errorf("no audio files in %s", args[0])
		}
		return oneShot(func(ctx context.Context, inst *client.Instance) error {
			return inst.New(items, items[0].ID)
		})
	},
}

var libraryQueueCmd = &cobra.Command{
	Use:   "queue <dir>",
	Short: "Append a folder's tracks to the queue",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := library.Scan(args[0])
		if err != nil {
			return err
		}
		return oneShot(func(ctx context.Context, inst *client.Instance) error {
			return inst.Add(items)
		})
	},
}

func init() {
	queueSortCmd.Flags().Bool("desc", false, "Sort in descending order")
	queueAddCmd.Flags().Bool("next", false, "Insert after the current entry")
	loadCmd.Flags().Float64("seek", 0, "Start position in seconds")
	loadCmd.Flags().Bool("pause", false, "Load without starting playback")

	queueCmd.AddCommand(queueListCmd, queueSortCmd, queueClearCmd, queueRandomCmd,
		queuePlayCmd, queueDeleteCmd, queueAddCmd)
	libraryCmd.AddCommand(libraryAddCmd, libraryRemoveCmd, libraryListCmd, libraryPlayCmd, libraryQueueCmd)

	rootCmd.AddCommand(queueCmd, libraryCmd, loadCmd, stopCmd, fmNextCmd, retainCmd)
}

func parseSortType(s string) (queue.SortType, error) {
	switch strings.ToLower(s) {
	case "song", "name":
		return queue.SortSong, nil
	case "album":
		return queue.SortAlbum, nil
	case "artist":
		return queue.SortArtist, nil
	}
	return 0, fmt.Errorf("unknown sort key %q (want song, album or artist)", s)
}

// localEntries turns audio file paths into queue entries.
func localEntries(paths []string) ([]queue.Entry, error) {
	items := make([]queue.Entry, 0, len(paths))
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", p, err)
		}
		if _, err := os.Stat(abs); err != nil {
			return nil, err
		}
		if !library.IsAudio(abs) {
			return nil, fmt.Errorf("%s is not an audio file", p)
		}
		items = append(items, library.Entry(abs))
	}
	return items, nil
}

func printQueue(cmd *cobra.Command, q *queue.Model) {
	head := q.HeadID()
	for _, e := range q.Entries() {
		marker := " "
		if e.ID == head {
			marker = "▶"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %s\t%s - %s\n", marker, e.ID, e.Artist(), e.Name)
	}
}

// withLibrary opens the durable library folder list without connecting to
// the background process.
func withLibrary(fn func(ctx context.Context, lib *library.Library) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := setupLogger(logFile, levelOr(cfg.LogLevel))

	if err := os.MkdirAll(cfg.SettingDir, 0o755); err != nil {
		return fmt.Errorf("failed to create setting directory: %w", err)
	}
	kv, err := storage.Open(cfg.StatePath())
	if err != nil {
		return fmt.Errorf("failed to open state: %w", err)
	}
	defer kv.Close()

	ctx := context.Background()
	lib, err := library.Open(ctx, kv, logger)
	if err != nil {
		return err
	}
	return fn(ctx, lib)
}
