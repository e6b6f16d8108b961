package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jfmyers9/cloudmusic/internal/config"
	"github.com/jfmyers9/cloudmusic/internal/ipc"
	"github.com/jfmyers9/cloudmusic/internal/queue"
)

// nowCmd represents the now command
var nowCmd = &cobra.Command{
	Use:   "now",
	Short: "Display the current queue entry",
	Long: `Join the running background process and print the current queue entry.

The output format can be customized in ~/.config/cloudmusic/config.yaml
using a Go template. Available fields: .ID, .Name, .Artist, .Artists,
.Album, .Duration

Exit codes:
  0 - An entry is current
  1 - Queue empty or no background process running`,
	RunE: runNow,
}

func init() {
	rootCmd.AddCommand(nowCmd)

	nowCmd.Flags().StringP("format", "f", "", "Output format template (overrides config)")
	nowCmd.Flags().IntP("width", "w", 0, "Fixed output width (0=disabled, overrides config)")
	nowCmd.Flags().Bool("marquee", false, "Enable marquee scrolling for long text (overrides config)")
}

// nowTrack is what the output template sees.
type nowTrack struct {
	ID       string
	Name     string
	Artist   string
	Artists  string
	Album    string
	Duration string
}

func newNowTrack(e *queue.Entry) nowTrack {
	return nowTrack{
		ID:       e.ID,
		Name:     e.Name,
		Artist:   e.Artist(),
		Artists:  strings.Join(e.Artists, ", "),
		Album:    e.Album,
		Duration: formatMillis(e.Duration),
	}
}

func runNow(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	formatFlag, _ := cmd.Flags().GetString("format")
	if formatFlag != "" {
		cfg.OutputFormat = formatFlag
	}

	// Status bars call this often; stay quiet unless asked.
	level := levelOr("error")
	logger := setupLogger(logFile, level)
	if logFile == "" && level == "error" {
		logger = zerolog.Nop()
	}

	// Never spawn: asking what plays must not start a player.
	s, err := openSession(ctx, cfg, nil, false, logger)
	if errors.Is(err, ipc.ErrConnectionFailure) {
		os.Exit(1)
	}
	if err != nil {
		return err
	}
	head := s.inst.Queue().Head()
	_ = s.Close()

	if head == nil {
		os.Exit(1)
		return nil
	}

	output, err := formatTrack(newNowTrack(head), cfg.OutputFormat)
	if err != nil {
		return fmt.Errorf("failed to format output: %w", err)
	}

	width, _ := cmd.Flags().GetInt("width")
	if width == 0 {
		width = cfg.OutputWidth
	}

	marquee, _ := cmd.Flags().GetBool("marquee")
	if !cmd.Flags().Changed("marquee") {
		marquee = cfg.MarqueeEnabled
	}

	if width > 0 {
		if marquee {
			output = marqueeText(output, width, cfg.MarqueeSpeed, cfg.MarqueeSeparator, time.Now())
		} else {
			output = padToWidth(output, width)
		}
	}

	fmt.Fprintln(cmd.OutOrStdout(), output)
	return nil
}

// formatTrack applies the template to the track data
func formatTrack(track nowTrack, templateStr string) (string, error) {
	tmpl, err := template.New("output").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("invalid template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, track); err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}

	return buf.String(), nil
}

func formatMillis(ms int64) string {
	if ms <= 0 {
		return ""
	}
	d := time.Duration(ms) * time.Millisecond
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

// padToWidth pads or truncates text to a fixed display width.
// Width is measured in display columns, so wide runes count twice.
// Long text is truncated with a "..." suffix.
func padToWidth(text string, width int) string {
	if width <= 0 {
		return text
	}

	currentWidth := runewidth.StringWidth(text)
	if currentWidth == width {
		return text
	}
	if currentWidth < width {
		return text + strings.Repeat(" ", width-currentWidth)
	}

	const ellipsis = "..."
	ellipsisWidth := runewidth.StringWidth(ellipsis)
	if width <= ellipsisWidth {
		return runewidth.Truncate(ellipsis, width, "")
	}

	// A wide rune at the cut can leave one column short.
	result := runewidth.Truncate(text, width-ellipsisWidth, "") + ellipsis
	if w := runewidth.StringWidth(result); w < width {
		result += strings.Repeat(" ", width-w)
	}
	return result
}

// marqueeText scrolls text that does not fit in width. The window position
// is derived from now, speed columns per second, so repeated calls from a
// status bar advance without keeping state. Text that fits is padded.
func marqueeText(text string, width, speed int, separator string, now time.Time) string {
	if width <= 0 {
		return text
	}
	if runewidth.StringWidth(text) <= width {
		return padToWidth(text, width)
	}

	extended := []rune(text + separator)
	total := len(extended)
	position := int(now.Unix()*int64(speed)) % total
	if position < 0 {
		position += total
	}

	var sb strings.Builder
	used := 0
	for i := 0; i < total; i++ {
		r := extended[(position+i)%total]
		rw := runewidth.RuneWidth(r)
		if used+rw > width {
			break
		}
		sb.WriteRune(r)
		used += rw
	}
	if used < width {
		sb.WriteString(strings.Repeat(" ", width-used))
	}
	return sb.String()
}
