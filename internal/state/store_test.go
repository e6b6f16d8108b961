package state

import (
	"testing"
	"time"

	"github.com/jfmyers9/cloudmusic/internal/config"
	"github.com/jfmyers9/cloudmusic/internal/protocol"
	"github.com/jfmyers9/cloudmusic/internal/queue"
	"github.com/jfmyers9/cloudmusic/internal/storage"
)

func newTestStore(t *testing.T, opts Options, entries ...queue.Entry) *Store {
	t.Helper()
	q := queue.New(queue.ShiftToFront)
	if len(entries) > 0 {
		q.Replace(entries, "")
	}
	return NewStore(q, &Coordinator{}, opts)
}

func sends(effs []Effect, tag protocol.Tag) int {
	n := 0
	for _, e := range effs {
		if s, ok := e.(Send); ok && s.Msg.Tag() == tag {
			n++
		}
	}
	return n
}

func has(effs []Effect, want Effect) bool {
	for _, e := range effs {
		if e == want {
			return true
		}
	}
	return false
}

func song(id string) queue.Entry {
	return queue.Entry{ID: id, Kind: queue.KindSong, Name: id}
}

func TestPlayItemTransportGatedOnMaster(t *testing.T) {
	tests := []struct {
		name      string
		master    bool
		wantLoads int
		wantStops int
	}{
		{"master", true, 1, 1},
		{"not master", false, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore(t, Options{}, song("a"))
			s.SetMaster(tt.master)
			head := s.Queue().Head()

			effs := s.SetPlayItem(head)
			effs = append(effs, s.SetPlayItem(head)...)
			if got := sends(effs, protocol.PlayerLoad); got != tt.wantLoads {
				t.Errorf("loads = %d, want %d", got, tt.wantLoads)
			}

			effs = s.SetPlayItem(nil)
			effs = append(effs, s.SetPlayItem(nil)...)
			if got := sends(effs, protocol.PlayerStop); got != tt.wantStops {
				t.Errorf("stops = %d, want %d", got, tt.wantStops)
			}
		})
	}
}

func TestPlayItemDerivesLike(t *testing.T) {
	s := newTestStore(t, Options{})
	local := &queue.Entry{ID: "l", Kind: queue.KindLocal}
	catalog := &queue.Entry{ID: "c", Kind: queue.KindSong}

	effs := s.SetPlayItem(catalog)
	if !s.Like() || !has(effs, Refresh{ElemLike}) {
		t.Errorf("catalog entry: like = %v, effects %v", s.Like(), effs)
	}
	effs = s.SetPlayItem(local)
	if s.Like() || !has(effs, Refresh{ElemLike}) {
		t.Errorf("local entry: like = %v, effects %v", s.Like(), effs)
	}
	if !has(effs, Refresh{ElemMetadata}) {
		t.Errorf("metadata not refreshed: %v", effs)
	}
}

func TestPlayItemComparedByID(t *testing.T) {
	s := newTestStore(t, Options{})
	s.SetMaster(true)
	a1 := &queue.Entry{ID: "a", Kind: queue.KindSong}
	a2 := &queue.Entry{ID: "a", Kind: queue.KindSong}
	b := &queue.Entry{ID: "b", Kind: queue.KindSong}

	s.SetPlayItem(a1)
	if effs := s.SetPlayItem(a2); len(effs) != 0 {
		t.Errorf("same id raised effects: %v", effs)
	}
	if s.PlayItem() != a2 {
		t.Error("playItem should follow the queue's current entry")
	}
	if got := sends(s.SetPlayItem(b), protocol.PlayerLoad); got != 1 {
		t.Errorf("loads = %d, want 1 for a different id", got)
	}
}

func TestRepublishedQueueKeepsPlaying(t *testing.T) {
	s := newTestStore(t, Options{}, song("1"), song("2"))
	var sunk []Effect
	s.OnEffects(func(effs []Effect) { sunk = append(sunk, effs...) })
	s.SetMaster(true)
	s.SetFirst(false)

	// A late joiner or a sort republishes the same queue with the same head.
	s.Queue().Replace([]queue.Entry{song("1"), song("2")}, "1")
	s.Queue().Replace([]queue.Entry{song("2"), song("1")}, "1")
	if got := sends(sunk, protocol.PlayerLoad); got != 0 {
		t.Errorf("loads = %d, want 0 for an unchanged head", got)
	}
	if has(sunk, Refresh{ElemMetadata}) {
		t.Errorf("metadata refreshed for an unchanged head: %v", sunk)
	}
}

func TestGuardedSettersPersistOnce(t *testing.T) {
	s := newTestStore(t, Options{})
	lyric := protocol.Lyric{Type: protocol.LyricTranslated, Time: []float64{0}, Text: []protocol.LyricLine{{O: "a", T: "b"}}}

	tests := []struct {
		name string
		set  func() []Effect
		key  string
	}{
		{"repeat", func() []Effect { return s.SetRepeat(true) }, storage.KeyRepeat},
		{"fm", func() []Effect { return s.SetFM(true) }, storage.KeyFM},
		{"show lyric", func() []Effect { return s.SetShowLyric(true) }, storage.KeyShowLyric},
		{"lyric", func() []Effect { return s.SetLyric(lyric) }, storage.KeyLyric},
		{"volume", func() []Effect { return s.SetVolume(40) }, storage.KeyVolume},
		{"speed", func() []Effect { return s.SetSpeed(1.5) }, storage.KeySpeed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			persisted := 0
			for _, e := range append(tt.set(), tt.set()...) {
				if p, ok := e.(Persist); ok && p.Key == tt.key {
					persisted++
				}
			}
			if persisted != 1 {
				t.Errorf("persisted %d times, want 1", persisted)
			}
		})
	}
}

func TestLoadingRefreshesSongOnly(t *testing.T) {
	s := newTestStore(t, Options{})
	effs := s.SetLoading(true)
	if len(effs) != 1 || effs[0] != (Refresh{ElemSong}) {
		t.Errorf("effects = %v", effs)
	}
	if effs := s.SetLoading(true); effs != nil {
		t.Errorf("no-op write produced %v", effs)
	}
}

func TestFMNextOnlyWhenMaster(t *testing.T) {
	s := newTestStore(t, Options{})
	if got := sends(s.SetFM(true), protocol.QueueFMNext); got != 0 {
		t.Errorf("fmNext sent %d times while not master", got)
	}
	s.SetFM(false)
	s.SetMaster(true)
	if got := sends(s.SetFM(true), protocol.QueueFMNext); got != 1 {
		t.Errorf("fmNext sent %d times while master, want 1", got)
	}
	if got := sends(s.SetFM(false), protocol.QueueFMNext); got != 0 {
		t.Errorf("leaving fm sent fmNext")
	}
}

func TestMasterNotifiesOnTransitions(t *testing.T) {
	s := newTestStore(t, Options{})
	var seen []bool
	s.Master().OnChange(func(is bool) { seen = append(seen, is) })

	refreshes := 0
	for _, v := range []bool{true, true, false, false, true} {
		for _, e := range s.SetMaster(v) {
			if e == (Refresh{ElemMaster}) {
				refreshes++
			}
		}
	}
	if refreshes != 3 || len(seen) != 3 {
		t.Errorf("refreshes = %d, listener calls = %v, want 3 each", refreshes, seen)
	}
}

func TestFirstInitializesOnce(t *testing.T) {
	s := newTestStore(t, Options{}, song("a"), song("b"))
	var sunk [][]Effect
	s.OnEffects(func(effs []Effect) { sunk = append(sunk, effs) })

	s.SetLoading(true)
	effs := s.SetFirst(false)
	if !s.Initialized() {
		t.Fatal("initialization did not run")
	}
	if s.PlayItem() != s.Queue().Head() {
		t.Error("playItem not captured from head")
	}
	if !s.Like() || s.Loading() {
		t.Errorf("like = %v, loading = %v", s.Like(), s.Loading())
	}
	if !has(effs, Refresh{ElemMetadata}) || !has(effs, Refresh{ElemSong}) {
		t.Errorf("effects = %v", effs)
	}

	s.SetFirst(true)
	if effs := s.SetFirst(false); has(effs, Refresh{ElemMetadata}) {
		t.Errorf("initialization ran twice: %v", effs)
	}

	// One structural change reaches the sink exactly once.
	if err := s.Queue().Delete("a"); err != nil {
		t.Fatal(err)
	}
	if len(sunk) != 1 {
		t.Fatalf("sink called %d times, want 1", len(sunk))
	}
	if s.PlayItem() == nil || s.PlayItem().ID != "b" {
		t.Errorf("playItem = %+v, want b", s.PlayItem())
	}
}

func TestResetRearmsInitialization(t *testing.T) {
	s := newTestStore(t, Options{}, song("a"))
	var sunk int
	s.OnEffects(func([]Effect) { sunk++ })

	s.SetFirst(false)
	s.Reset()
	if s.Initialized() {
		t.Fatal("Reset left initialization armed")
	}
	s.SetFirst(false)
	if !s.Initialized() {
		t.Fatal("initialization did not rerun after Reset")
	}

	s.Queue().Clear()
	if sunk != 1 {
		t.Errorf("sink called %d times, want 1 after Reset", sunk)
	}
}

func TestQueueChangeAfterInit(t *testing.T) {
	s := newTestStore(t, Options{}, song("a"))
	var sunk []Effect
	s.OnEffects(func(effs []Effect) { sunk = append(sunk, effs...) })

	s.SetFirst(false)
	s.SetMaster(true)
	s.SetFM(true)

	s.Queue().Replace([]queue.Entry{song("x")}, "")
	if s.FM() {
		t.Error("fm not reset by queue change")
	}
	if got := sends(sunk, protocol.PlayerLoad); got != 1 {
		t.Errorf("loads = %d, want 1", got)
	}

	sunk = nil
	s.Queue().Clear()
	if got := sends(sunk, protocol.PlayerStop); got != 1 {
		t.Errorf("stops = %d, want 1", got)
	}
}

func TestRecoveryOnFirstTransition(t *testing.T) {
	tests := []struct {
		mode string
		want bool
	}{
		{config.QueueInitNone, false},
		{config.QueueInitRestore, true},
		{config.QueueInitRecommend, true},
	}

	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			s := newTestStore(t, Options{QueueInit: tt.mode})

			// Not a transition: first starts false.
			if has(s.SetFirst(false), Recover{tt.mode}) {
				t.Error("recovery ran without a transition")
			}
			s.SetFirst(true)
			if got := has(s.SetFirst(false), Recover{tt.mode}); got != tt.want {
				t.Errorf("recovery = %v, want %v", got, tt.want)
			}
			if has(s.SetFirst(false), Recover{tt.mode}) {
				t.Error("recovery ran twice")
			}
		})
	}
}

func TestDownInitCompletesInitialization(t *testing.T) {
	s := newTestStore(t, Options{QueueInit: config.QueueInitRestore}, song("a"))
	s.BeginInit(2)
	s.SetFirst(true)

	delayed := SendLater{Delay: time.Second, Msg: protocol.Load{}}
	if effs := s.AddOnceInit(delayed); effs != nil {
		t.Fatalf("once-init effects ran early: %v", effs)
	}

	if effs := s.DownInit(); effs != nil || s.Initialized() {
		t.Fatalf("first step finished initialization: %v", effs)
	}
	effs := s.DownInit()
	if !s.Initialized() || s.First() {
		t.Fatal("second step did not finish initialization")
	}
	if !has(effs, delayed) {
		t.Errorf("once-init effect missing: %v", effs)
	}
	if !has(effs, Recover{config.QueueInitRestore}) {
		t.Errorf("recovery missing: %v", effs)
	}

	if effs := s.DownInit(); effs != nil {
		t.Errorf("extra step produced %v", effs)
	}
	if effs := s.AddOnceInit(delayed); len(effs) != 1 {
		t.Errorf("once-init after initialization = %v, want immediate", effs)
	}
}

func TestLoadSaved(t *testing.T) {
	s := newTestStore(t, Options{})
	s.Load(Saved{Repeat: true, Volume: 30, Speed: 1.25, Lyric: protocol.Lyric{Type: protocol.LyricTranslated}})
	if !s.Repeat() || s.Volume() != 30 || s.Speed() != 1.25 {
		t.Errorf("loaded = repeat %v volume %d speed %v", s.Repeat(), s.Volume(), s.Speed())
	}
	if s.Lyric().Type != protocol.LyricTranslated || len(s.Lyric().Text) != 1 {
		t.Errorf("lyric = %+v", s.Lyric())
	}
	// Loaded values are not written back.
	if effs := s.SetRepeat(true); effs != nil {
		t.Errorf("SetRepeat after Load = %v", effs)
	}
}
