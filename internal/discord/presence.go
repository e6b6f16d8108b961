// Package discord mirrors the playing entry into Discord Rich Presence.
package discord

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/cloudmusic/internal/queue"
	"github.com/jfmyers9/cloudmusic/internal/ui"
)

type rpcClient interface {
	SetActivity(Activity) error
	Close() error
}

// Presence manages Discord Rich Presence updates. It implements ui.UI;
// only the playing entry and play state matter to it.
type Presence struct {
	ui.Nop

	appID   string
	logger  zerolog.Logger
	client  rpcClient
	connect func(string) (rpcClient, error)
	last    lastActivity
	artwork *artworkLookup

	mu      sync.Mutex
	current nowPlaying
	wake    chan struct{}
}

// nowPlaying is the latest state reported by the client instance.
type nowPlaying struct {
	entry   *queue.Entry
	playing bool
	since   time.Time
}

type lastActivity struct {
	id      string
	playing bool
}

func New(appID string, logger zerolog.Logger) *Presence {
	return &Presence{
		appID:  appID,
		logger: logger.With().Str("component", "discord").Logger(),
		connect: func(appID string) (rpcClient, error) {
			return ipcConnect(appID)
		},
		artwork: newArtworkLookup(),
		wake:    make(chan struct{}, 1),
	}
}

// Metadata records the playing entry. Never blocks.
func (p *Presence) Metadata(e *queue.Entry) {
	p.mu.Lock()
	if e != nil {
		cp := *e
		e = &cp
	}
	p.current.entry = e
	p.current.since = time.Now()
	p.mu.Unlock()
	p.notify()
}

// PlayState records whether playback runs. Never blocks.
func (p *Presence) PlayState(playing bool) {
	p.mu.Lock()
	p.current.playing = playing
	p.mu.Unlock()
	p.notify()
}

func (p *Presence) notify() {
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// Run publishes the latest state whenever it changes. Connects lazily on
// the first playing entry. If Discord isn't running, logs the error and
// retries on the next change.
func (p *Presence) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.close()
			return
		case <-p.wake:
			p.mu.Lock()
			cur := p.current
			p.mu.Unlock()
			p.handle(cur)
		}
	}
}

func (p *Presence) handle(np nowPlaying) {
	if np.entry == nil || !np.playing {
		if p.last.playing {
			p.clearActivity()
			p.last = lastActivity{}
		}
		return
	}

	cur := lastActivity{id: np.entry.ID, playing: true}
	if cur == p.last {
		return
	}

	if err := p.ensureConnected(); err != nil {
		p.logger.Warn().Err(err).Msg("Discord not available")
		return
	}

	e := np.entry
	startUnix := np.since.Unix()
	ts := &Timestamps{Start: &startUnix}
	if e.Duration > 0 {
		endUnix := np.since.Add(time.Duration(e.Duration) * time.Millisecond).Unix()
		ts.End = &endUnix
	}

	var largeImage string
	if p.artwork != nil {
		largeImage = p.artwork.Cover(e)
	}

	err := p.client.SetActivity(Activity{
		Type:       2, // Listening
		Name:       "Cloud Music",
		Details:    e.Name,
		State:      "by " + strings.Join(e.Artists, ", "),
		Timestamps: ts,
		Assets: &Assets{
			LargeImage: largeImage,
			LargeText:  e.Album,
			SmallImage: "cloudmusic",
			SmallText:  "cloudmusic",
		},
	})
	if err != nil {
		p.logger.Warn().Err(err).Msg("Failed to set activity")
		p.close()
		return
	}
	p.last = cur
}

func (p *Presence) ensureConnected() error {
	if p.client != nil {
		return nil
	}
	client, err := p.connect(p.appID)
	if err != nil {
		return err
	}
	p.logger.Info().Msg("Connected to Discord")
	p.client = client
	return nil
}

func (p *Presence) clearActivity() {
	if p.client == nil {
		return
	}
	if err := p.client.SetActivity(Activity{}); err != nil {
		p.logger.Debug().Err(err).Msg("Failed to clear activity")
		p.close()
	}
}

func (p *Presence) close() {
	if p.client == nil {
		return
	}
	_ = p.client.Close()
	p.client = nil
}
