// Package tui is the terminal front end of a client instance. It implements
// ui.UI and turns key presses into instance commands.
package tui

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"
	"github.com/rivo/tview"

	"github.com/jfmyers9/cloudmusic/internal/protocol"
	"github.com/jfmyers9/cloudmusic/internal/queue"
	"github.com/jfmyers9/cloudmusic/internal/ui"
)

const maxQueueRows = 12

// Config holds TUI configuration options
type Config struct {
	RefreshRate time.Duration // How often to refresh the display
	Theme       string        // Color theme
}

// DefaultConfig returns the default TUI configuration
func DefaultConfig() Config {
	return Config{
		RefreshRate: 500 * time.Millisecond,
		Theme:       "default",
	}
}

// Controller is the part of a client instance the key bindings drive.
type Controller interface {
	PlaySong(id string) error
	DeleteSong(id string) error
	RandomQueue() error
	ClearQueue() error
	Stop() error
	FMNext() error
}

// App is the TUI application for a client instance
type App struct {
	ui.Nop

	app        *tview.Application
	nowPlaying *tview.TextView
	lyric      *tview.TextView
	queue      *tview.TextView
	status     *tview.TextView
	help       *tview.TextView

	// Configuration
	config Config

	// Instance commands for key bindings
	control Controller

	// Mutex protects state written from the dispatch goroutine and read by
	// the refresh ticker.
	mu sync.Mutex

	// Current state (guarded by mu)
	song      ui.Song
	playing   bool
	like      bool
	fm        bool
	repeat    bool
	volume    int
	speed     float64
	master    bool
	line      string
	accounts  []protocol.Profile
	entries   []queue.Entry
	headID    string
	library   map[string]int
	lastError string

	// Last-rendered content for change detection
	lastNowPlaying string
	lastLyric      string
	lastQueue      string
	lastStatus     string

	// Cached volume bar width to stabilize change detection.
	// Updated only when GetInnerRect returns a positive value.
	lastBarWidth int

	// Context cancel function
	cancelFunc context.CancelFunc
}

// New creates a new TUI application with default config
func New(control Controller) *App {
	return NewWithConfig(DefaultConfig(), control)
}

// NewWithConfig creates a new TUI application with the given config
func NewWithConfig(cfg Config, control Controller) *App {
	a := &App{
		app:     tview.NewApplication(),
		config:  cfg,
		control: control,
		speed:   1,
		library: make(map[string]int),
	}
	a.setupUI()
	return a
}

// SetController sets the instance the key bindings drive. Call it before
// Run and before the instance starts delivering updates.
func (a *App) SetController(control Controller) {
	a.control = control
}

// setupUI creates the UI layout
func (a *App) setupUI() {
	// Now playing panel
	a.nowPlaying = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.nowPlaying.SetBorder(true).
		SetTitle(" Now Playing ").
		SetTitleAlign(tview.AlignLeft)

	// Current lyric line
	a.lyric = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.lyric.SetBorder(true)

	// Queue
	a.queue = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	a.queue.SetBorder(true).
		SetTitle(" Queue ").
		SetTitleAlign(tview.AlignLeft)

	// Instance status
	a.status = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	a.status.SetBorder(true).
		SetTitle(" Status ").
		SetTitleAlign(tview.AlignLeft)

	// Key help
	a.help = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText("[gray]q:quit  n:next  p:prev  r:shuffle  d:delete  c:clear  s:stop[-]")

	bottomRow := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(a.queue, 0, 2, false).
		AddItem(a.status, 0, 1, false)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(a.nowPlaying, 0, 2, false).
		AddItem(a.lyric, 3, 1, false).
		AddItem(bottomRow, maxQueueRows+2, 1, false).
		AddItem(a.help, 1, 1, false)

	// Handle keyboard input
	a.app.SetInputCapture(a.handleKeyEvent)

	a.app.SetRoot(flex, true)
}

// handleKeyEvent processes keyboard input
func (a *App) handleKeyEvent(event *tcell.EventKey) *tcell.EventKey {
	switch event.Rune() {
	case 'q', 'Q':
		a.app.Stop()
		return nil
	}
	if a.control == nil {
		return event
	}
	switch event.Rune() {
	case 'n', 'N':
		a.step(1)
		return nil
	case 'p', 'P':
		a.step(-1)
		return nil
	case 'r', 'R':
		a.report(a.control.RandomQueue())
		return nil
	case 'c', 'C':
		a.report(a.control.ClearQueue())
		return nil
	case 's', 'S':
		a.report(a.control.Stop())
		return nil
	case 'd', 'D':
		a.mu.Lock()
		head := a.headID
		a.mu.Unlock()
		if head != "" {
			a.report(a.control.DeleteSong(head))
		}
		return nil
	}
	return event
}

// step moves the head by delta entries, wrapping around. In radio mode
// "next" asks for the next radio track instead.
func (a *App) step(delta int) {
	if a.control == nil {
		return
	}
	a.mu.Lock()
	fm := a.fm
	id := neighbor(a.entries, a.headID, delta)
	a.mu.Unlock()

	if fm && delta > 0 {
		a.report(a.control.FMNext())
		return
	}
	if id != "" {
		a.report(a.control.PlaySong(id))
	}
}

// neighbor returns the id delta positions away from head, wrapping.
func neighbor(entries []queue.Entry, head string, delta int) string {
	n := len(entries)
	if n == 0 {
		return ""
	}
	at := 0
	for i, e := range entries {
		if e.ID == head {
			at = i
			break
		}
	}
	return entries[((at+delta)%n+n)%n].ID
}

func (a *App) report(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		a.lastError = err.Error()
	} else {
		a.lastError = ""
	}
}

// Run starts the TUI and blocks until it quits or ctx ends
func (a *App) Run(ctx context.Context) error {
	// Create cancellable context
	ctx, a.cancelFunc = context.WithCancel(ctx)

	// Start refresh goroutine
	go a.refreshLoop(ctx)

	// Run application
	if err := a.app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}

// refreshLoop is the only source of redraws. UI calls only record state,
// so bursts of broadcasts never queue up redraws.
func (a *App) refreshLoop(ctx context.Context) {
	refreshRate := a.config.RefreshRate
	if refreshRate <= 0 {
		refreshRate = 500 * time.Millisecond
	}
	ticker := time.NewTicker(refreshRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.app.Stop()
			return
		case <-ticker.C:
			a.refresh()
		}
	}
}

// refresh updates all UI components
func (a *App) refresh() {
	a.app.QueueUpdateDraw(func() {
		a.mu.Lock()
		defer a.mu.Unlock()

		a.setIfChanged(a.nowPlaying, &a.lastNowPlaying, nowPlayingText(a.song, a.playing, a.like))
		a.setIfChanged(a.lyric, &a.lastLyric, tview.Escape(a.line))

		_, _, width, _ := a.queue.GetInnerRect()
		a.setIfChanged(a.queue, &a.lastQueue, queueText(a.entries, a.headID, width, maxQueueRows))

		_, _, width, _ = a.status.GetInnerRect()
		barWidth := width - 6
		// Only update cached width when GetInnerRect returns a positive value,
		// avoiding flicker from transient zero-width during layout.
		if barWidth > 0 {
			a.lastBarWidth = barWidth
		}
		if a.lastBarWidth < 10 {
			a.lastBarWidth = 10
		}
		a.setIfChanged(a.status, &a.lastStatus, a.statusText())
	})
}

func (a *App) setIfChanged(view *tview.TextView, last *string, text string) {
	if text != *last {
		*last = text
		view.SetText(text)
	}
}

// nowPlayingText renders the now playing panel
func nowPlayingText(song ui.Song, playing, like bool) string {
	if song.Entry == nil {
		return "\n\n[gray]Nothing queued[-]"
	}
	e := song.Entry

	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("[white::b]%s[-:-:-]", tview.Escape(e.Name)))
	if like {
		sb.WriteString(" [red]♥[-]")
	}
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("[yellow]%s[-]\n", tview.Escape(strings.Join(e.Artists, ", "))))
	sb.WriteString(fmt.Sprintf("[gray]%s[-]", tview.Escape(e.Album)))

	// Play state indicator
	stateIcon := "[yellow]⏸[-]" // Pause icon
	switch {
	case song.Loading:
		stateIcon = "[gray]…[-]"
	case playing:
		stateIcon = "[green]▶[-]" // Play triangle
	}
	sb.WriteString(fmt.Sprintf("\n\n%s", stateIcon))
	if e.Duration > 0 {
		sb.WriteString(" " + formatDuration(time.Duration(e.Duration)*time.Millisecond))
	}
	return sb.String()
}

// queueText renders up to rows entries around the head, fitted to width
// terminal cells.
func queueText(entries []queue.Entry, head string, width, rows int) string {
	if len(entries) == 0 {
		return "[gray]Queue is empty[-]"
	}
	if width < 8 {
		width = 40
	}

	at := 0
	for i, e := range entries {
		if e.ID == head {
			at = i
			break
		}
	}
	start := at - rows/2
	if start > len(entries)-rows {
		start = len(entries) - rows
	}
	if start < 0 {
		start = 0
	}
	end := min(start+rows, len(entries))

	var sb strings.Builder
	for i := start; i < end; i++ {
		if i > start {
			sb.WriteString("\n")
		}
		e := entries[i]
		label := e.Name
		if artist := e.Artist(); artist != "" {
			label += " - " + artist
		}
		label = runewidth.Truncate(label, width-2, "...")
		if e.ID == head {
			sb.WriteString(fmt.Sprintf("[green]▶ %s[-]", tview.Escape(label)))
		} else {
			sb.WriteString("  " + tview.Escape(label))
		}
	}
	return sb.String()
}

// statusText renders the status panel. Must be called with a.mu held.
func (a *App) statusText() string {
	var sb strings.Builder

	role := "[gray]follower[-]"
	if a.master {
		role = "[green]master[-]"
	}
	sb.WriteString("Role: " + role + "\n")

	repeat := "off"
	if a.repeat {
		repeat = "[green]on[-]"
	}
	sb.WriteString("Repeat: " + repeat)
	if a.fm {
		sb.WriteString("  [yellow]radio[-]")
	}
	sb.WriteString("\n")

	sb.WriteString(fmt.Sprintf("Vol %s %3d\n", buildProgressBar(a.volume, 100, a.lastBarWidth), a.volume))
	sb.WriteString(fmt.Sprintf("Speed: %.2gx\n", a.speed))

	if len(a.accounts) == 0 {
		sb.WriteString("[gray]Not signed in[-]\n")
	} else {
		names := make([]string, len(a.accounts))
		for i, p := range a.accounts {
			names[i] = p.Nickname
		}
		sb.WriteString("Accounts: " + tview.Escape(strings.Join(names, ", ")) + "\n")
	}

	if len(a.library) > 0 {
		folders := make([]string, 0, len(a.library))
		for f := range a.library {
			folders = append(folders, f)
		}
		sort.Strings(folders)
		total := 0
		for _, f := range folders {
			total += a.library[f]
		}
		sb.WriteString(fmt.Sprintf("Library: %d files in %d folders\n", total, len(folders)))
	}

	if a.lastError != "" {
		sb.WriteString("[red]" + tview.Escape(a.lastError) + "[-]")
	}
	return sb.String()
}

// Stop stops the TUI application
func (a *App) Stop() {
	if a.cancelFunc != nil {
		a.cancelFunc()
	}
	a.app.Stop()
}

func (a *App) PlayState(playing bool) {
	a.mu.Lock()
	a.playing = playing
	a.mu.Unlock()
}

func (a *App) Song(s ui.Song) {
	a.mu.Lock()
	a.song = s
	a.mu.Unlock()
}

func (a *App) Lyric(line string) {
	a.mu.Lock()
	a.line = line
	a.mu.Unlock()
}

func (a *App) Like(like bool) {
	a.mu.Lock()
	a.like = like
	a.mu.Unlock()
}

func (a *App) Previous(fm bool) {
	a.mu.Lock()
	a.fm = fm
	a.mu.Unlock()
}

func (a *App) Repeat(on bool) {
	a.mu.Lock()
	a.repeat = on
	a.mu.Unlock()
}

func (a *App) Volume(level int) {
	a.mu.Lock()
	a.volume = level
	a.mu.Unlock()
}

func (a *App) Speed(speed float64) {
	a.mu.Lock()
	a.speed = speed
	a.mu.Unlock()
}

func (a *App) Master(is bool) {
	a.mu.Lock()
	a.master = is
	a.mu.Unlock()
}

func (a *App) Accounts(profiles []protocol.Profile) {
	a.mu.Lock()
	a.accounts = append([]protocol.Profile(nil), profiles...)
	a.mu.Unlock()
}

func (a *App) Queue(entries []queue.Entry, headID string) {
	a.mu.Lock()
	a.entries = entries
	a.headID = headID
	a.mu.Unlock()
}

func (a *App) Library(folder string, entries []queue.Entry) {
	a.mu.Lock()
	if entries == nil {
		delete(a.library, folder)
	} else {
		a.library[folder] = len(entries)
	}
	a.mu.Unlock()
}

// Command runs a player-requested command. Only the master acts, so the
// queue moves once no matter how many instances are open.
func (a *App) Command(name string) {
	a.mu.Lock()
	master := a.master
	a.mu.Unlock()
	if !master {
		return
	}
	switch name {
	case ui.CommandNext:
		go a.step(1)
	case ui.CommandPrevious:
		go a.step(-1)
	}
}

// buildProgressBar creates a text-based bar for value out of total
func buildProgressBar(value, total, width int) string {
	if total == 0 || width <= 0 {
		return strings.Repeat("-", max(width, 0))
	}

	progress := float64(value) / float64(total)
	if progress > 1 {
		progress = 1
	}
	if progress < 0 {
		progress = 0
	}

	filled := int(progress * float64(width))
	empty := width - filled

	bar := "[green]" + strings.Repeat("█", filled) + "[-]" +
		"[gray]" + strings.Repeat("░", empty) + "[-]"

	return bar
}

// formatDuration formats a duration as MM:SS or HH:MM:SS for longer durations
func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, seconds)
	}
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}
