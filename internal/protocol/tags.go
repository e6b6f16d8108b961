// Package protocol defines the frames exchanged between client instances and
// the background process: a tag set, typed message bodies, and a codec.
package protocol

// Tag identifies a message type. Every JSON payload carries it under "t".
type Tag string

// Player tags.
const (
	PlayerLoad       Tag = "player.load"
	PlayerLoaded     Tag = "player.loaded"
	PlayerRepeat     Tag = "player.repeat"
	PlayerPause      Tag = "player.pause"
	PlayerPlay       Tag = "player.play"
	PlayerStop       Tag = "player.stop"
	PlayerVolume     Tag = "player.volume"
	PlayerSpeed      Tag = "player.speed"
	PlayerNext       Tag = "player.next"
	PlayerPrevious   Tag = "player.previous"
	PlayerLyric      Tag = "player.lyric"
	PlayerLyricIndex Tag = "player.lyricIndex"
	PlayerEnd        Tag = "player.end"
	PlayerSeek       Tag = "player.seek"
	PlayerToggle     Tag = "player.toggle"
)

// Queue tags.
const (
	QueueAdd    Tag = "queue.add"
	QueueClear  Tag = "queue.clear"
	QueueDelete Tag = "queue.delete"
	QueueNew    Tag = "queue.new"
	QueuePlay   Tag = "queue.play"
	QueueShift  Tag = "queue.shift"
	QueueRandom Tag = "queue.random"
	QueueFM     Tag = "queue.fm"
	QueueFMNext Tag = "queue.fmNext"
)

// Control tags.
const (
	ControlMaster  Tag = "control.master"
	ControlNew     Tag = "control.new"
	ControlRetain  Tag = "control.retain"
	ControlNetease Tag = "control.netease"
	ControlClear   Tag = "control.clear"
)

// Alternate-engine tags. They mirror the player controls for instances that
// decode audio themselves.
const (
	WasmLoad   Tag = "wasm.load"
	WasmPause  Tag = "wasm.pause"
	WasmPlay   Tag = "wasm.play"
	WasmStop   Tag = "wasm.stop"
	WasmVolume Tag = "wasm.volume"
	WasmSpeed  Tag = "wasm.speed"
	WasmSeek   Tag = "wasm.seek"
)

// APICall tags correlated request and reply frames.
const APICall Tag = "api.call"
