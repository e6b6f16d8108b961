// Package client is one client instance: it owns the channel to the
// background process, mirrors the shared queue and state, and exposes the
// commands other parts of the program invoke.
package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/cloudmusic/internal/dispatch"
	"github.com/jfmyers9/cloudmusic/internal/ipc"
	"github.com/jfmyers9/cloudmusic/internal/protocol"
	"github.com/jfmyers9/cloudmusic/internal/queue"
	"github.com/jfmyers9/cloudmusic/internal/state"
	"github.com/jfmyers9/cloudmusic/internal/storage"
	"github.com/jfmyers9/cloudmusic/internal/ui"
)

// initSteps counts the first queue snapshot and the account list.
const initSteps = 2

// Spawner starts a background process.
type Spawner interface {
	Spawn() error
}

// Config wires an Instance.
type Config struct {
	Dial       ipc.Dialer
	Spawner    Spawner
	RetryDelay time.Duration
	ShiftMode  queue.ShiftMode
	State      state.Options
	KV         *storage.KV // nil keeps state in memory only
	UI         ui.UI       // nil discards UI updates
}

// Instance is a client instance. Broadcasts, effects, and activation steps
// that touch the Store all run on one dispatch goroutine.
type Instance struct {
	channel  *ipc.Channel
	corr     *ipc.Correlator
	queue    *queue.Model
	master   *state.Coordinator
	accounts *state.Accounts
	store    *state.Store
	disp     *dispatch.Dispatcher
	ui       ui.UI
	kv       *storage.KV
	spawner  Spawner
	logger   zerolog.Logger

	machine ipc.Machine
	inbox   chan func()
	stopped chan struct{}

	readyOnce  sync.Once
	ready      chan struct{}
	syncedOnce sync.Once
	synced     chan struct{}

	ctx context.Context
}

func New(cfg Config, logger zerolog.Logger) *Instance {
	if cfg.UI == nil {
		cfg.UI = ui.Nop{}
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	logger = logger.With().Str("component", "client").Logger()

	q := queue.New(cfg.ShiftMode)
	master := &state.Coordinator{}
	accounts := &state.Accounts{}
	store := state.NewStore(q, master, cfg.State)
	channel := ipc.NewChannel(cfg.Dial, cfg.RetryDelay, logger)

	i := &Instance{
		channel:  channel,
		corr:     ipc.NewCorrelator(channel),
		queue:    q,
		master:   master,
		accounts: accounts,
		store:    store,
		disp:     dispatch.New(store, accounts, cfg.UI, logger),
		ui:       cfg.UI,
		kv:       cfg.KV,
		spawner:  cfg.Spawner,
		logger:   logger,
		inbox:    make(chan func(), 256),
		stopped:  make(chan struct{}),
		ready:    make(chan struct{}),
		synced:   make(chan struct{}),
		ctx:      context.Background(),
	}
	store.OnEffects(i.apply)
	q.OnChange(func() { i.ui.Queue(q.Entries(), q.HeadID()) })
	return i
}

// Queue is the mirrored queue. Read it freely; mutate it only through
// commands.
func (i *Instance) Queue() *queue.Model { return i.queue }

func (i *Instance) Master() *state.Coordinator { return i.master }

func (i *Instance) Accounts() *state.Accounts { return i.accounts }

// Run activates the instance and keeps it connected until ctx ends.
func (i *Instance) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	i.ctx = ctx
	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		i.loop(ctx)
	}()
	defer func() {
		_ = i.channel.Close()
		cancel()
		<-loopDone
	}()

	i.do(func() {
		i.apply(i.loadSaved(ctx))
		i.store.BeginInit(initSteps)
	})

	for {
		if err := i.activate(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		i.readyOnce.Do(func() { close(i.ready) })

		select {
		case <-ctx.Done():
			return nil
		case <-i.channel.Done():
		}

		i.logger.Warn().Msg("lost connection to background process")
		if _, err := i.machine.Fire(ipc.EventDropped); err != nil {
			return err
		}
		i.do(func() {
			i.corr.ClearAll()
			i.store.Reset()
			i.store.BeginInit(initSteps)
			i.apply(i.store.SetMaster(false))
		})
	}
}

// WaitReady blocks until the first connection is up.
func (i *Instance) WaitReady(ctx context.Context) error {
	select {
	case <-i.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WaitSynced blocks until the first queue snapshot and account list have
// been applied.
func (i *Instance) WaitSynced(ctx context.Context) error {
	select {
	case <-i.synced:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (i *Instance) loop(ctx context.Context) {
	defer close(i.stopped)
	for {
		select {
		case fn := <-i.inbox:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// post queues fn on the dispatch goroutine, preserving order.
func (i *Instance) post(fn func()) {
	select {
	case i.inbox <- fn:
	case <-i.stopped:
	}
}

// do runs fn on the dispatch goroutine and waits for it.
func (i *Instance) do(fn func()) {
	done := make(chan struct{})
	i.post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
	case <-i.stopped:
	}
}

func (i *Instance) onReply(rep protocol.Reply) {
	if !i.corr.Resolve(rep) {
		i.logger.Debug().Str("id", rep.ID).Msg("dropping unmatched reply")
	}
}

func (i *Instance) onMessage(msg protocol.Message) {
	i.post(func() {
		effs, _ := i.disp.Dispatch(msg)
		i.apply(effs)
		if i.store.Initialized() {
			i.syncedOnce.Do(func() { close(i.synced) })
		}
	})
}

func (i *Instance) loadSaved(ctx context.Context) []state.Effect {
	if i.kv == nil {
		return nil
	}
	var saved state.Saved
	for key, dst := range map[string]any{
		storage.KeyRepeat:    &saved.Repeat,
		storage.KeyFM:        &saved.FM,
		storage.KeyShowLyric: &saved.ShowLyric,
		storage.KeyLyric:     &saved.Lyric,
		storage.KeyVolume:    &saved.Volume,
		storage.KeySpeed:     &saved.Speed,
	} {
		if _, err := i.kv.Get(ctx, key, dst); err != nil {
			i.logger.Warn().Err(err).Str("key", key).Msg("failed to read saved state")
		}
	}
	return i.store.Load(saved)
}

// send writes msg, logging failures. A closed channel is expected while
// reconnecting.
func (i *Instance) send(msg protocol.Message) {
	if err := i.channel.Send(msg); err != nil {
		ev := i.logger.Warn()
		if errors.Is(err, ipc.ErrClosed) {
			ev = i.logger.Debug()
		}
		ev.Err(err).Str("tag", string(msg.Tag())).Msg("send failed")
	}
}
