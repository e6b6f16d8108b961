package state

import (
	"fmt"
	"time"

	"github.com/jfmyers9/cloudmusic/internal/protocol"
)

// Element is a piece of UI a Refresh effect redraws.
type Element int

const (
	ElemSong Element = iota
	ElemLike
	ElemPrevious
	ElemRepeat
	ElemLyric
	ElemVolume
	ElemSpeed
	ElemMetadata
	ElemMaster
)

func (e Element) String() string {
	switch e {
	case ElemSong:
		return "song"
	case ElemLike:
		return "like"
	case ElemPrevious:
		return "previous"
	case ElemRepeat:
		return "repeat"
	case ElemLyric:
		return "lyric"
	case ElemVolume:
		return "volume"
	case ElemSpeed:
		return "speed"
	case ElemMetadata:
		return "metadata"
	case ElemMaster:
		return "master"
	}
	return fmt.Sprintf("Element(%d)", int(e))
}

// Effect is a side effect requested by a Store setter. The Store never
// performs I/O itself; the owner of the Store executes effects in order.
type Effect interface {
	isEffect()
}

// Refresh redraws one UI element from the Store's current values.
type Refresh struct {
	Element Element
}

// Persist writes Value under Key in durable storage.
type Persist struct {
	Key   string
	Value any
}

// Send writes Msg to the background process.
type Send struct {
	Msg protocol.Message
}

// SendLater writes Msg after Delay.
type SendLater struct {
	Delay time.Duration
	Msg   protocol.Message
}

// Recover runs the queue recovery action for Mode after a fresh background
// process came up.
type Recover struct {
	Mode string
}

func (Refresh) isEffect()   {}
func (Persist) isEffect()   {}
func (Send) isEffect()      {}
func (SendLater) isEffect() {}
func (Recover) isEffect()   {}
