// Package daemon is the background process every client instance talks to.
// It owns the authoritative order of broadcasts: messages from all
// connections are applied one at a time on a single goroutine and fanned out
// to every connection in that order.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/cloudmusic/internal/protocol"
	"github.com/jfmyers9/cloudmusic/internal/queue"
)

// Config holds daemon configuration
type Config struct {
	SocketPath  string          // Unix socket to listen on
	StateFile   string          // Path to retained state file
	ShiftMode   queue.ShiftMode // Must match the clients' shift mode
	Volume      int             // Initial volume
	Speed       float64         // Initial playback speed
	IdleTimeout time.Duration   // Exit after this long without connections; 0 never exits
	SendBuffer  int             // Frames buffered per connection before it is dropped
}

// ErrUnsupportedMethod is the rejection text for correlated calls.
const ErrUnsupportedMethod = "unsupported method"

// Daemon fans messages out to connected client instances.
type Daemon struct {
	config Config
	state  *State
	queue  *queue.Model
	logger zerolog.Logger

	events chan event

	// Owned by the event goroutine.
	conns   map[uint64]*conn
	order   []uint64 // join order; the first live entry is master
	master  uint64
	nextID  uint64
	repeat  bool
	playing bool
	volume  int
	speed   float64
}

// conn is one client instance connection.
type conn struct {
	id     uint64
	c      net.Conn
	out    chan outFrame
	closed sync.Once
}

type outFrame struct {
	kind    uint32
	payload []byte
}

type eventKind int

const (
	eventJoin eventKind = iota
	eventFrame
	eventLeave
)

type event struct {
	kind    eventKind
	conn    *conn
	frame   uint32
	payload []byte
}

// New creates a new Daemon instance
func New(cfg Config, logger zerolog.Logger) (*Daemon, error) {
	logger = logger.With().Str("component", "daemon").Logger()

	// Create state
	state, err := NewState(cfg.StateFile)
	if err != nil {
		if state == nil {
			return nil, fmt.Errorf("failed to create state: %w", err)
		}
		logger.Warn().Err(err).Str("path", cfg.StateFile).Msg("Discarding unreadable state file")
	}

	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}
	if cfg.Speed <= 0 {
		cfg.Speed = 1
	}

	return &Daemon{
		config: cfg,
		state:  state,
		queue:  queue.New(cfg.ShiftMode),
		logger: logger,
		events: make(chan event, 64),
		conns:  make(map[uint64]*conn),
		repeat: state.GetState().Repeat,
		volume: cfg.Volume,
		speed:  cfg.Speed,
	}, nil
}

// Run starts the daemon and blocks until shutdown signal received
func (d *Daemon) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Handle first signal gracefully, second signal forces exit
	go func() {
		<-sigChan
		d.logger.Info().Msg("Shutdown signal received, initiating graceful shutdown")
		cancel()

		// Second signal forces exit
		<-sigChan
		d.logger.Warn().Msg("Second shutdown signal received, forcing exit")
		os.Exit(1)
	}()

	ln, err := Listen(d.config.SocketPath)
	if err != nil {
		return err
	}
	defer os.Remove(d.config.SocketPath)

	if err := d.Serve(ctx, ln); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Listen opens the Unix socket at path, removing a stale socket file left by
// a process that is no longer listening.
func Listen(path string) (net.Listener, error) {
	if _, err := os.Stat(path); err == nil {
		if c, err := net.DialTimeout("unix", path, 200*time.Millisecond); err == nil {
			c.Close()
			return nil, fmt.Errorf("another background process is listening on %s", path)
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("failed to remove stale socket: %w", err)
		}
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to listen: %w", err)
	}
	return ln, nil
}

// Serve accepts connections on ln until ctx ends or the idle timeout fires.
// It closes ln and every connection before returning.
func (d *Daemon) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.logger.Info().Str("addr", ln.Addr().String()).Msg("Starting daemon")

	var wg sync.WaitGroup
	acceptDone := make(chan struct{})

	go func() {
		defer close(acceptDone)
		d.accept(ctx, ln, &wg)
	}()

	err := d.handleEvents(ctx)
	cancel()
	ln.Close()
	<-acceptDone

	for _, c := range d.conns {
		d.drop(c)
	}
	// Joins accepted after the event loop stopped never reached conns.
	for {
		select {
		case ev := <-d.events:
			if ev.kind == eventJoin {
				d.drop(ev.conn)
			}
			continue
		default:
		}
		break
	}
	wg.Wait()

	if ferr := d.state.Flush(); ferr != nil {
		d.logger.Error().Err(ferr).Msg("Failed to flush state")
	}
	d.logger.Info().Msg("Daemon stopped")
	return err
}

func (d *Daemon) accept(ctx context.Context, ln net.Listener, wg *sync.WaitGroup) {
	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, net.ErrClosed) {
				d.logger.Error().Err(err).Msg("Accept failed")
			}
			return
		}

		c := &conn{c: nc, out: make(chan outFrame, d.config.SendBuffer)}
		if !d.post(ctx, event{kind: eventJoin, conn: c}) {
			nc.Close()
			return
		}

		wg.Add(2)
		go func() {
			defer wg.Done()
			d.writeLoop(c)
		}()
		go func() {
			defer wg.Done()
			d.readLoop(ctx, c)
		}()
	}
}

func (d *Daemon) post(ctx context.Context, ev event) bool {
	select {
	case d.events <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func (d *Daemon) readLoop(ctx context.Context, c *conn) {
	for {
		kind, payload, err := protocol.ReadFrame(c.c)
		if err != nil || kind == protocol.KindClose {
			if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) {
				d.logger.Debug().Err(err).Msg("Connection read failed")
			}
			d.post(ctx, event{kind: eventLeave, conn: c})
			return
		}
		if !d.post(ctx, event{kind: eventFrame, conn: c, frame: kind, payload: payload}) {
			return
		}
	}
}

func (d *Daemon) writeLoop(c *conn) {
	for f := range c.out {
		if err := protocol.WriteFrame(c.c, f.kind, f.payload); err != nil {
			d.logger.Debug().Err(err).Msg("Connection write failed")
			c.c.Close()
			// Drain so the event goroutine never blocks on this connection.
			for range c.out {
			}
			return
		}
	}
}

// drop closes c. Must be called from the event goroutine.
func (d *Daemon) drop(c *conn) {
	c.closed.Do(func() {
		close(c.out)
		c.c.Close()
	})
}

// handleEvents is the only goroutine that touches the queue and the
// connection set.
func (d *Daemon) handleEvents(ctx context.Context) error {
	var idle <-chan time.Time
	var idleTimer *time.Timer
	resetIdle := func() {
		if idleTimer != nil {
			idleTimer.Stop()
			idleTimer, idle = nil, nil
		}
		if d.config.IdleTimeout > 0 && len(d.conns) == 0 {
			idleTimer = time.NewTimer(d.config.IdleTimeout)
			idle = idleTimer.C
		}
	}
	resetIdle()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-idle:
			d.logger.Info().Dur("idle", d.config.IdleTimeout).Msg("No connections left, exiting")
			return nil
		case ev := <-d.events:
			switch ev.kind {
			case eventJoin:
				d.join(ev.conn)
				resetIdle()
			case eventLeave:
				d.leave(ev.conn)
				resetIdle()
			case eventFrame:
				if _, ok := d.conns[ev.conn.id]; !ok {
					continue
				}
				d.handleFrame(ev.conn, ev.frame, ev.payload)
			}
		}
	}
}

func (d *Daemon) join(c *conn) {
	d.nextID++
	c.id = d.nextID
	d.conns[c.id] = c
	d.order = append(d.order, c.id)

	d.logger.Info().Uint64("conn", c.id).Int("connections", len(d.conns)).Msg("Client connected")

	// Accounts go ahead of the queue snapshot. A spawning instance counts
	// only the account list toward initialization, and its recovery needs
	// the accounts in place when it runs.
	accounts := protocol.Accounts{Profiles: []protocol.Profile{}, Cookies: []json.RawMessage{}}
	if d.master == 0 {
		d.master = c.id
		d.send(c, protocol.Master{Is: true})
		d.send(c, accounts)
		d.send(c, protocol.New{Items: d.queue.Entries(), ID: d.queue.HeadID()})
	} else {
		d.send(c, protocol.Master{Is: false})
		d.send(c, accounts)
		// The master answers with queue.new, which reaches everyone.
		if m, ok := d.conns[d.master]; ok {
			d.send(m, protocol.NewInstance{})
		}
	}
	d.send(c, protocol.Repeat{R: d.repeat})
	d.send(c, protocol.Volume{Level: d.volume})
	d.send(c, protocol.Speed{Speed: d.speed})
}

func (d *Daemon) leave(c *conn) {
	if _, ok := d.conns[c.id]; !ok {
		return
	}
	delete(d.conns, c.id)
	for i, id := range d.order {
		if id == c.id {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	d.drop(c)

	d.logger.Info().Uint64("conn", c.id).Int("connections", len(d.conns)).Msg("Client disconnected")

	if d.master != c.id {
		return
	}
	d.master = 0
	if len(d.order) > 0 {
		d.master = d.order[0]
		d.logger.Info().Uint64("conn", d.master).Msg("Master handed over")
		d.send(d.conns[d.master], protocol.Master{Is: true})
	}
}

func (d *Daemon) handleFrame(c *conn, kind uint32, payload []byte) {
	switch kind {
	case protocol.KindRequest:
		req, err := protocol.DecodeRequest(payload)
		if err != nil {
			d.logger.Warn().Err(err).Msg("Bad request frame")
			return
		}
		d.reply(c, protocol.Reply{ID: req.ID, Err: true, Msg: ErrUnsupportedMethod})
	case protocol.KindMessage:
		msg, err := protocol.DecodeOutbound(payload)
		if err != nil {
			d.logger.Warn().Err(err).Msg("Bad message frame")
			return
		}
		d.handleMessage(c, msg)
	default:
		d.logger.Debug().Uint32("kind", kind).Msg("Ignoring frame")
	}
}

func (d *Daemon) handleMessage(c *conn, msg protocol.Message) {
	switch m := msg.(type) {
	// player
	case *protocol.Load:
		playing := m.Play == nil || *m.Play
		d.broadcast(*m)
		d.broadcast(protocol.Loaded{})
		d.setPlaying(playing, m.Seek)
	case *protocol.Play:
		d.setPlaying(true, d.state.GetState().Seek)
	case *protocol.Pause:
		d.setPlaying(false, d.state.GetState().Seek)
	case *protocol.Toggle:
		d.setPlaying(!d.playing, d.state.GetState().Seek)
	case *protocol.Stop:
		d.playing = false
		d.persist(d.state.SetPlayback(false, 0))
		d.broadcast(protocol.Stop{})
	case *protocol.Seek:
		d.persist(d.state.SetPlayback(d.playing, m.SeekOffset))
	case *protocol.Repeat:
		d.repeat = m.R
		d.persist(d.state.SetRepeat(m.R))
		d.broadcast(*m)
	case *protocol.Volume:
		d.volume = m.Level
		d.broadcast(*m)
	case *protocol.Speed:
		d.speed = m.Speed
		d.broadcast(*m)

	// queue
	case *protocol.Add:
		index := -1
		if m.Index != nil {
			index = *m.Index
		}
		d.queue.Add(m.Items, index)
		d.queueChanged(*m)
	case *protocol.Clear:
		d.queue.Clear()
		d.queueChanged(*m)
	case *protocol.Delete:
		if err := d.queue.Delete(m.ID); err != nil {
			d.logger.Debug().Str("id", m.ID).Msg("Delete of unknown entry")
		}
		d.queueChanged(*m)
	case *protocol.New:
		d.queue.Replace(m.Items, m.ID)
		d.queueChanged(*m)
	case *protocol.PlayEntry:
		if err := d.queue.Play(m.ID); err != nil {
			d.logger.Debug().Str("id", m.ID).Msg("Play of unknown entry")
		}
		d.queueChanged(*m)
	case *protocol.Shift:
		d.queue.Shift(m.Index)
		d.queueChanged(*m)
	case *protocol.Random:
		items := d.queue.Entries()
		rand.Shuffle(len(items), func(i, j int) { items[i], items[j] = items[j], items[i] })
		head := d.queue.HeadID()
		d.queue.Replace(items, head)
		d.queueChanged(protocol.New{Items: items, ID: head})
	case *protocol.FMNext:
		d.logger.Debug().Msg("No radio source, ignoring fm next")

	// control
	case *protocol.Retain:
		retained := d.state.GetState()
		d.queue.Replace(retained.Items, retained.HeadID)
		d.persist(d.state.SetQueue(d.queue.Entries(), d.queue.HeadID()))
		d.broadcast(protocol.Retain{Items: retained.Items, Play: retained.Playing, Seek: retained.Seek})
	case *protocol.ClearPending:
		d.logger.Debug().Uint64("conn", c.id).Msg("Nothing pending to clear")

	default:
		d.logger.Debug().Str("tag", string(msg.Tag())).Msg("No route for message")
	}
}

func (d *Daemon) setPlaying(playing bool, seek float64) {
	d.playing = playing
	d.persist(d.state.SetPlayback(playing, seek))
	if playing {
		d.broadcast(protocol.Play{})
	} else {
		d.broadcast(protocol.Pause{})
	}
}

func (d *Daemon) queueChanged(msg protocol.Message) {
	d.persist(d.state.SetQueue(d.queue.Entries(), d.queue.HeadID()))
	d.broadcast(msg)
}

func (d *Daemon) persist(err error) {
	if err != nil {
		d.logger.Error().Err(err).Msg("Failed to persist state")
	}
}

// broadcast sends msg to every connection in join order.
func (d *Daemon) broadcast(msg protocol.Message) {
	payload, err := protocol.Encode(msg)
	if err != nil {
		d.logger.Error().Err(err).Msg("Failed to encode broadcast")
		return
	}
	for _, id := range d.order {
		d.enqueue(d.conns[id], outFrame{kind: protocol.KindMessage, payload: payload})
	}
}

func (d *Daemon) send(c *conn, msg protocol.Message) {
	payload, err := protocol.Encode(msg)
	if err != nil {
		d.logger.Error().Err(err).Msg("Failed to encode message")
		return
	}
	d.enqueue(c, outFrame{kind: protocol.KindMessage, payload: payload})
}

func (d *Daemon) reply(c *conn, rep protocol.Reply) {
	payload, err := json.Marshal(rep)
	if err != nil {
		d.logger.Error().Err(err).Msg("Failed to encode reply")
		return
	}
	d.enqueue(c, outFrame{kind: protocol.KindReply, payload: payload})
}

// enqueue never blocks: a connection that stops reading is closed and its
// reader reports the leave.
func (d *Daemon) enqueue(c *conn, f outFrame) {
	select {
	case c.out <- f:
	default:
		d.logger.Warn().Uint64("conn", c.id).Msg("Send buffer full, dropping connection")
		c.c.Close()
	}
}
