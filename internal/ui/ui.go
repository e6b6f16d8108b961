// Package ui defines the collaborator a client instance reports to. The
// terminal UI, Discord presence, and the log all implement it.
package ui

import (
	"github.com/jfmyers9/cloudmusic/internal/protocol"
	"github.com/jfmyers9/cloudmusic/internal/queue"
)

// Commands a collaborator may be asked to run.
const (
	CommandNext     = "next"
	CommandPrevious = "previous"
)

// Song is what the song button shows.
type Song struct {
	Entry   *queue.Entry // nil when nothing is playing
	Loading bool
}

// UI receives every visible change of a client instance. Calls arrive on
// the instance's dispatch goroutine and must not block.
type UI interface {
	PlayState(playing bool)
	Song(s Song)
	Lyric(line string)
	Like(like bool)
	Previous(fm bool)
	Repeat(on bool)
	Volume(level int)
	Speed(speed float64)
	Metadata(e *queue.Entry)
	Master(is bool)
	Accounts(profiles []protocol.Profile)
	Queue(entries []queue.Entry, headID string)
	Library(folder string, entries []queue.Entry)
	Wasm(msg protocol.Message)
	Command(name string)
}

// Nop ignores everything. Embed it to implement part of UI.
type Nop struct{}

func (Nop) PlayState(bool)                {}
func (Nop) Song(Song)                     {}
func (Nop) Lyric(string)                  {}
func (Nop) Like(bool)                     {}
func (Nop) Previous(bool)                 {}
func (Nop) Repeat(bool)                   {}
func (Nop) Volume(int)                    {}
func (Nop) Speed(float64)                 {}
func (Nop) Metadata(*queue.Entry)         {}
func (Nop) Master(bool)                   {}
func (Nop) Accounts([]protocol.Profile)   {}
func (Nop) Queue([]queue.Entry, string)   {}
func (Nop) Library(string, []queue.Entry) {}
func (Nop) Wasm(protocol.Message)         {}
func (Nop) Command(string)                {}

// Multi fans every call out to each UI in order.
type Multi []UI

func (m Multi) PlayState(playing bool) {
	for _, u := range m {
		u.PlayState(playing)
	}
}

func (m Multi) Song(s Song) {
	for _, u := range m {
		u.Song(s)
	}
}

func (m Multi) Lyric(line string) {
	for _, u := range m {
		u.Lyric(line)
	}
}

func (m Multi) Like(like bool) {
	for _, u := range m {
		u.Like(like)
	}
}

func (m Multi) Previous(fm bool) {
	for _, u := range m {
		u.Previous(fm)
	}
}

func (m Multi) Repeat(on bool) {
	for _, u := range m {
		u.Repeat(on)
	}
}

func (m Multi) Volume(level int) {
	for _, u := range m {
		u.Volume(level)
	}
}

func (m Multi) Speed(speed float64) {
	for _, u := range m {
		u.Speed(speed)
	}
}

func (m Multi) Metadata(e *queue.Entry) {
	for _, u := range m {
		u.Metadata(e)
	}
}

func (m Multi) Master(is bool) {
	for _, u := range m {
		u.Master(is)
	}
}

func (m Multi) Accounts(profiles []protocol.Profile) {
	for _, u := range m {
		u.Accounts(profiles)
	}
}

func (m Multi) Queue(entries []queue.Entry, headID string) {
	for _, u := range m {
		u.Queue(entries, headID)
	}
}

func (m Multi) Library(folder string, entries []queue.Entry) {
	for _, u := range m {
		u.Library(folder, entries)
	}
}

func (m Multi) Wasm(msg protocol.Message) {
	for _, u := range m {
		u.Wasm(msg)
	}
}

func (m Multi) Command(name string) {
	for _, u := range m {
		u.Command(name)
	}
}
