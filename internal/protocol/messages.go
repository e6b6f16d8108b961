package protocol

import (
	"encoding/json"

	"github.com/jfmyers9/cloudmusic/internal/queue"
)

// Message is implemented by every typed frame body.
type Message interface {
	Tag() Tag
}

// Load asks the background process to load the queue head. Broadcast back as
// a loading notification.
type Load struct {
	Play *bool   `json:"play,omitempty"`
	Seek float64 `json:"seek,omitempty"`
}

type Loaded struct{}

type Repeat struct {
	R bool `json:"r"`
}

type Pause struct{}

type Play struct{}

type Stop struct{}

type Volume struct {
	Level int `json:"level"`
}

type Speed struct {
	Speed float64 `json:"speed"`
}

type Next struct{}

type Previous struct{}

// LyricUpdate carries a partial lyric; non-empty fields replace the current ones.
type LyricUpdate struct {
	Lyric Lyric `json:"lyric"`
}

type LyricIndex struct {
	Idx int `json:"idx"`
}

// End reports that the current track finished or failed.
type End struct {
	Fail        bool    `json:"fail,omitempty"`
	Pause       bool    `json:"pause,omitempty"`
	ReloadNseek float64 `json:"reloadNseek,omitempty"`
}

type Seek struct {
	SeekOffset float64 `json:"seekOffset"`
}

type Toggle struct{}

// Add inserts items at Index, or appends when Index is nil.
type Add struct {
	Items []queue.Entry `json:"items"`
	Index *int          `json:"index,omitempty"`
}

type Clear struct{}

type Delete struct {
	ID string `json:"id"`
}

// New replaces the whole queue. ID names the head.
type New struct {
	Items []queue.Entry `json:"items"`
	ID    string        `json:"id,omitempty"`
}

type PlayEntry struct {
	ID string `json:"id"`
}

type Shift struct {
	Index int `json:"index"`
}

type Random struct{}

type FM struct {
	UID int64 `json:"uid"`
}

type FMNext struct{}

type Master struct {
	Is bool `json:"is"`
}

type NewInstance struct{}

// Retain is both the request for the retained queue (empty) and the
// background process's answer.
type Retain struct {
	Items []queue.Entry `json:"items,omitempty"`
	Play  bool          `json:"play,omitempty"`
	Seek  float64       `json:"seek,omitempty"`
}

// Profile is one signed-in account.
type Profile struct {
	UserID   int64  `json:"userId"`
	Nickname string `json:"nickname"`
}

// Accounts lists the signed-in accounts and their cookies.
type Accounts struct {
	Profiles []Profile         `json:"profiles"`
	Cookies  []json.RawMessage `json:"cookies"`
}

// ClearPending tells the background process to drop this client's
// outstanding correlation state.
type ClearPending struct{}

type WasmLoadMsg struct {
	Path string  `json:"path"`
	Play bool    `json:"play"`
	Seek float64 `json:"seek,omitempty"`
}

type WasmPauseMsg struct{}

type WasmPlayMsg struct{}

type WasmStopMsg struct{}

type WasmVolumeMsg struct {
	Level int `json:"level"`
}

type WasmSpeedMsg struct {
	Speed float64 `json:"speed"`
}

type WasmSeekMsg struct {
	SeekOffset float64 `json:"seekOffset"`
}

// Request is a correlated call.
type Request struct {
	ID     string `json:"id"`
	Method string `json:"method"`
	Args   []any  `json:"args"`
}

// Reply answers a Request. A reply without a payload, or with Err set, is a
// rejection.
type Reply struct {
	ID      string          `json:"id"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Err     bool            `json:"err,omitempty"`
	Msg     string          `json:"msg,omitempty"`
}

func (Load) Tag() Tag          { return PlayerLoad }
func (Loaded) Tag() Tag        { return PlayerLoaded }
func (Repeat) Tag() Tag        { return PlayerRepeat }
func (Pause) Tag() Tag         { return PlayerPause }
func (Play) Tag() Tag          { return PlayerPlay }
func (Stop) Tag() Tag          { return PlayerStop }
func (Volume) Tag() Tag        { return PlayerVolume }
func (Speed) Tag() Tag         { return PlayerSpeed }
func (Next) Tag() Tag          { return PlayerNext }
func (Previous) Tag() Tag      { return PlayerPrevious }
func (LyricUpdate) Tag() Tag   { return PlayerLyric }
func (LyricIndex) Tag() Tag    { return PlayerLyricIndex }
func (End) Tag() Tag           { return PlayerEnd }
func (Seek) Tag() Tag          { return PlayerSeek }
func (Toggle) Tag() Tag        { return PlayerToggle }
func (Add) Tag() Tag           { return QueueAdd }
func (Clear) Tag() Tag         { return QueueClear }
func (Delete) Tag() Tag        { return QueueDelete }
func (New) Tag() Tag           { return QueueNew }
func (PlayEntry) Tag() Tag     { return QueuePlay }
func (Shift) Tag() Tag         { return QueueShift }
func (Random) Tag() Tag        { return QueueRandom }
func (FM) Tag() Tag            { return QueueFM }
func (FMNext) Tag() Tag        { return QueueFMNext }
func (Master) Tag() Tag        { return ControlMaster }
func (NewInstance) Tag() Tag   { return ControlNew }
func (Retain) Tag() Tag        { return ControlRetain }
func (Accounts) Tag() Tag      { return ControlNetease }
func (ClearPending) Tag() Tag  { return ControlClear }
func (WasmLoadMsg) Tag() Tag   { return WasmLoad }
func (WasmPauseMsg) Tag() Tag  { return WasmPause }
func (WasmPlayMsg) Tag() Tag   { return WasmPlay }
func (WasmStopMsg) Tag() Tag   { return WasmStop }
func (WasmVolumeMsg) Tag() Tag { return WasmVolume }
func (WasmSpeedMsg) Tag() Tag  { return WasmSpeed }
func (WasmSeekMsg) Tag() Tag   { return WasmSeek }
func (Request) Tag() Tag       { return APICall }
func (Reply) Tag() Tag         { return APICall }
