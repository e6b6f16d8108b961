// Package dispatch routes broadcasts from the background process to the
// queue, the shared state, and the UI.
package dispatch

import (
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/cloudmusic/internal/protocol"
	"github.com/jfmyers9/cloudmusic/internal/queue"
	"github.com/jfmyers9/cloudmusic/internal/state"
	"github.com/jfmyers9/cloudmusic/internal/storage"
	"github.com/jfmyers9/cloudmusic/internal/ui"
)

// RetainLoadDelay is how long a restored queue waits before the alternate
// engine is told to load it, letting the queue view settle first.
const RetainLoadDelay = 1024 * time.Millisecond

// Dispatcher applies one broadcast at a time. It is not safe for concurrent
// use; the owning instance calls it from its dispatch goroutine only.
type Dispatcher struct {
	store    *state.Store
	queue    *queue.Model
	accounts *state.Accounts
	ui       ui.UI
	logger   zerolog.Logger
}

func New(store *state.Store, accounts *state.Accounts, u ui.UI, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		store:    store,
		queue:    store.Queue(),
		accounts: accounts,
		ui:       u,
		logger:   logger.With().Str("component", "dispatch").Logger(),
	}
}

// Dispatch applies msg and returns the effects it raised. handled is false
// for a message with no route.
func (d *Dispatcher) Dispatch(msg protocol.Message) (effs []state.Effect, handled bool) {
	s := d.store

	switch m := msg.(type) {
	// player
	case *protocol.Load:
		return s.SetLoading(true), true
	case *protocol.Loaded:
		return s.SetLoading(false), true
	case *protocol.Repeat:
		return s.SetRepeat(m.R), true
	case *protocol.Pause:
		d.ui.PlayState(false)
	case *protocol.Play:
		d.ui.PlayState(true)
	case *protocol.Stop:
		d.ui.Song(ui.Song{})
		d.ui.Lyric("")
		return s.SetLyric(protocol.DefaultLyric()), true
	case *protocol.Volume:
		return s.SetVolume(m.Level), true
	case *protocol.Speed:
		return s.SetSpeed(m.Speed), true
	case *protocol.Next:
		d.ui.Command(ui.CommandNext)
	case *protocol.Previous:
		d.ui.Command(ui.CommandPrevious)
	case *protocol.LyricUpdate:
		return s.SetLyric(s.Lyric().Merge(m.Lyric)), true
	case *protocol.LyricIndex:
		d.ui.Lyric(s.LyricLine(m.Idx))
	case *protocol.End:
		if !m.Fail && (s.Repeat() || m.ReloadNseek != 0) {
			play := !m.Pause
			return []state.Effect{state.Send{Msg: protocol.Load{Play: &play, Seek: m.ReloadNseek}}}, true
		}
		d.ui.Command(ui.CommandNext)

	// queue
	case *protocol.Add:
		index := -1
		if m.Index != nil {
			index = *m.Index
		}
		d.queue.Add(m.Items, index)
	case *protocol.Clear:
		d.queue.Clear()
	case *protocol.Delete:
		d.ignoreMissing(d.queue.Delete(m.ID), m.ID)
	case *protocol.New:
		d.queue.Replace(m.Items, m.ID)
		return s.DownInit(), true
	case *protocol.PlayEntry:
		d.ignoreMissing(d.queue.Play(m.ID), m.ID)
	case *protocol.Shift:
		d.queue.Shift(m.Index)
	case *protocol.FM:
		s.SetFMUID(m.UID)

	// control
	case *protocol.Master:
		return s.SetMaster(m.Is), true
	case *protocol.NewInstance:
		return []state.Effect{state.Send{Msg: protocol.New{Items: d.queue.Entries(), ID: d.queue.HeadID()}}}, true
	case *protocol.Retain:
		if len(m.Items) > 0 && s.Wasm() {
			play := m.Play
			effs = s.AddOnceInit(state.SendLater{
				Delay: RetainLoadDelay,
				Msg:   protocol.Load{Play: &play, Seek: m.Seek},
			})
		}
		d.queue.Replace(m.Items, "")
		return append(effs, s.DownInit()...), true
	case *protocol.Accounts:
		d.accounts.Replace(m.Profiles)
		d.ui.Accounts(m.Profiles)
		effs = s.DownInit()
		if s.IsMaster() {
			if len(m.Cookies) == 0 {
				effs = append(effs, state.Send{Msg: protocol.ClearPending{}})
			}
			effs = append(effs, state.Persist{Key: storage.KeyCookies, Value: m.Cookies})
		}
		return effs, true

	// alternate engine
	case *protocol.WasmLoadMsg, *protocol.WasmPauseMsg, *protocol.WasmPlayMsg,
		*protocol.WasmStopMsg, *protocol.WasmVolumeMsg, *protocol.WasmSpeedMsg,
		*protocol.WasmSeekMsg:
		d.ui.Wasm(m)

	default:
		d.logger.Debug().Str("tag", string(msg.Tag())).Msg("no route for message")
		return nil, false
	}
	return nil, true
}

func (d *Dispatcher) ignoreMissing(err error, id string) {
	if errors.Is(err, queue.ErrNotFound) {
		d.logger.Debug().Str("id", id).Msg("entry not in queue")
	}
}
