// Package state holds the playback state a client instance shares with its
// peers through the background process.
//
// Setters compare against the current value and, only on a change, return
// the effects the change implies: UI refreshes, durable writes, and for a
// few fields a message to the background process gated on master.
package state

import (
	"github.com/jfmyers9/cloudmusic/internal/config"
	"github.com/jfmyers9/cloudmusic/internal/protocol"
	"github.com/jfmyers9/cloudmusic/internal/queue"
	"github.com/jfmyers9/cloudmusic/internal/storage"
)

// Options are fixed for the lifetime of a Store.
type Options struct {
	// Wasm is set when this instance decodes audio itself.
	Wasm bool
	// QueueInit is the recovery mode run when a fresh background process
	// comes up: config.QueueInitNone, Restore or Recommend.
	QueueInit string
}

// Saved is the durable part of the state, read at startup.
type Saved struct {
	Repeat    bool
	FM        bool
	ShowLyric bool
	Lyric     protocol.Lyric
	Volume    int
	Speed     float64
}

// Store is owned by one dispatch goroutine and does no locking of its own.
type Store struct {
	queue  *queue.Model
	master *Coordinator
	opts   Options
	sink   func([]Effect)

	loading   bool
	repeat    bool
	fm        bool
	showLyric bool
	lyric     protocol.Lyric
	volume    int
	speed     float64
	playItem  *queue.Entry
	like      bool
	first     bool
	fmUID     int64

	initialized bool
	pendingInit int
	onceInit    []Effect
	unwatch     func()
}

func NewStore(q *queue.Model, master *Coordinator, opts Options) *Store {
	return &Store{
		queue:  q,
		master: master,
		opts:   opts,
		lyric:  protocol.DefaultLyric(),
		volume: 85,
		speed:  1,
	}
}

// OnEffects sets where effects raised outside a setter call go. Queue
// changes observed after initialization are the only such source.
func (s *Store) OnEffects(fn func([]Effect)) { s.sink = fn }

// Load applies saved values without persisting them again.
func (s *Store) Load(saved Saved) []Effect {
	s.repeat = saved.Repeat
	s.fm = saved.FM
	s.showLyric = saved.ShowLyric
	s.lyric = protocol.DefaultLyric().Merge(saved.Lyric)
	if saved.Volume > 0 {
		s.volume = saved.Volume
	}
	if saved.Speed > 0 {
		s.speed = saved.Speed
	}
	return []Effect{
		Refresh{ElemRepeat},
		Refresh{ElemPrevious},
		Refresh{ElemVolume},
		Refresh{ElemSpeed},
		Refresh{ElemLyric},
	}
}

func (s *Store) Loading() bool            { return s.loading }
func (s *Store) Repeat() bool             { return s.repeat }
func (s *Store) FM() bool                 { return s.fm }
func (s *Store) ShowLyric() bool          { return s.showLyric }
func (s *Store) Lyric() protocol.Lyric    { return s.lyric }
func (s *Store) Volume() int              { return s.volume }
func (s *Store) Speed() float64           { return s.speed }
func (s *Store) PlayItem() *queue.Entry   { return s.playItem }
func (s *Store) Like() bool               { return s.like }
func (s *Store) First() bool              { return s.first }
func (s *Store) FMUID() int64             { return s.fmUID }
func (s *Store) Wasm() bool               { return s.opts.Wasm }
func (s *Store) Initialized() bool        { return s.initialized }
func (s *Store) IsMaster() bool           { return s.master.IsMaster() }
func (s *Store) Master() *Coordinator     { return s.master }
func (s *Store) Queue() *queue.Model      { return s.queue }
func (s *Store) SetFMUID(uid int64)       { s.fmUID = uid }
func (s *Store) LyricLine(idx int) string { return s.lyric.Line(idx) }

// SetPlayItem points the current track at e, compared by entry id. A
// republished queue hands back fresh entries for the same track; those are
// adopted without effects. While master, a defined track is loaded and an
// undefined one stopped.
func (s *Store) SetPlayItem(e *queue.Entry) []Effect {
	if sameEntry(e, s.playItem) {
		s.playItem = e
		return nil
	}
	s.playItem = e
	effs := s.setLike(e.Standard())
	effs = append(effs, Refresh{ElemMetadata})
	if s.master.IsMaster() {
		if e != nil {
			effs = append(effs, Send{protocol.Load{}})
		} else {
			effs = append(effs, Send{protocol.Stop{}})
		}
	}
	return effs
}

func sameEntry(a, b *queue.Entry) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.ID == b.ID
}

func (s *Store) setLike(like bool) []Effect {
	if like == s.like {
		return nil
	}
	s.like = like
	return []Effect{Refresh{ElemLike}}
}

func (s *Store) SetLoading(loading bool) []Effect {
	if loading == s.loading {
		return nil
	}
	s.loading = loading
	return []Effect{Refresh{ElemSong}}
}

func (s *Store) SetRepeat(repeat bool) []Effect {
	if repeat == s.repeat {
		return nil
	}
	s.repeat = repeat
	return []Effect{Refresh{ElemRepeat}, Persist{storage.KeyRepeat, repeat}}
}

// SetFM toggles radio mode. Entering it while master asks for the next
// radio track.
func (s *Store) SetFM(fm bool) []Effect {
	if fm == s.fm {
		return nil
	}
	s.fm = fm
	effs := []Effect{Refresh{ElemPrevious}}
	if fm && s.master.IsMaster() {
		effs = append(effs, Send{protocol.FMNext{}})
	}
	return append(effs, Persist{storage.KeyFM, fm})
}

func (s *Store) SetShowLyric(show bool) []Effect {
	if show == s.showLyric {
		return nil
	}
	s.showLyric = show
	return []Effect{Refresh{ElemLyric}, Persist{storage.KeyShowLyric, show}}
}

func (s *Store) SetLyric(l protocol.Lyric) []Effect {
	if l.Equal(s.lyric) {
		return nil
	}
	s.lyric = l
	return []Effect{Refresh{ElemLyric}, Persist{storage.KeyLyric, l}}
}

func (s *Store) SetVolume(level int) []Effect {
	if level == s.volume {
		return nil
	}
	s.volume = level
	return []Effect{Refresh{ElemVolume}, Persist{storage.KeyVolume, level}}
}

func (s *Store) SetSpeed(speed float64) []Effect {
	if speed == s.speed {
		return nil
	}
	s.speed = speed
	return []Effect{Refresh{ElemSpeed}, Persist{storage.KeySpeed, speed}}
}

func (s *Store) SetMaster(is bool) []Effect {
	if !s.master.Set(is) {
		return nil
	}
	return []Effect{Refresh{ElemMaster}}
}

// SetFirst drives the activation gate. Setting it false runs the one-shot
// initialization unless it already ran. A true-to-false transition also
// runs the configured queue recovery.
func (s *Store) SetFirst(first bool) []Effect {
	var effs []Effect
	if !first && !s.initialized {
		effs = s.initialize()
	}
	if first == s.first {
		return effs
	}
	s.first = first
	if !first && s.opts.QueueInit != "" && s.opts.QueueInit != config.QueueInitNone {
		effs = append(effs, Recover{Mode: s.opts.QueueInit})
	}
	return effs
}

func (s *Store) initialize() []Effect {
	s.initialized = true

	head := s.queue.Head()
	s.playItem = head
	effs := s.setLike(head.Standard())
	effs = append(effs, Refresh{ElemMetadata})
	s.loading = false
	effs = append(effs, Refresh{ElemSong})
	s.unwatch = s.queue.OnChange(s.queueChanged)

	effs = append(effs, s.onceInit...)
	s.onceInit = nil
	return effs
}

func (s *Store) queueChanged() {
	effs := s.SetFM(false)
	effs = append(effs, s.SetPlayItem(s.queue.Head())...)
	if len(effs) > 0 && s.sink != nil {
		s.sink(effs)
	}
}

// BeginInit sets how many DownInit calls complete initialization.
func (s *Store) BeginInit(steps int) { s.pendingInit = steps }

// DownInit counts one initialization step. The last step sets first to
// false.
func (s *Store) DownInit() []Effect {
	if s.pendingInit == 0 {
		return nil
	}
	s.pendingInit--
	if s.pendingInit > 0 {
		return nil
	}
	return s.SetFirst(false)
}

// AddOnceInit defers effs until initialization has run, or returns them at
// once when it already has.
func (s *Store) AddOnceInit(effs ...Effect) []Effect {
	if s.initialized {
		return effs
	}
	s.onceInit = append(s.onceInit, effs...)
	return nil
}

// Reset re-arms the one-shot initialization, for a new connection.
func (s *Store) Reset() {
	if s.unwatch != nil {
		s.unwatch()
		s.unwatch = nil
	}
	s.initialized = false
	s.pendingInit = 0
	s.onceInit = nil
}
