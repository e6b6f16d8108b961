package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// ErrUnknownTag is returned when a payload's tag is not in the registry
// being decoded against.
var ErrUnknownTag = errors.New("protocol: unknown tag")

// inbound lists every message the background process sends to a client
// instance, apart from correlated replies.
var inbound = map[Tag]func() Message{
	PlayerLoad:       func() Message { return &Load{} },
	PlayerLoaded:     func() Message { return &Loaded{} },
	PlayerRepeat:     func() Message { return &Repeat{} },
	PlayerPause:      func() Message { return &Pause{} },
	PlayerPlay:       func() Message { return &Play{} },
	PlayerStop:       func() Message { return &Stop{} },
	PlayerVolume:     func() Message { return &Volume{} },
	PlayerSpeed:      func() Message { return &Speed{} },
	PlayerNext:       func() Message { return &Next{} },
	PlayerPrevious:   func() Message { return &Previous{} },
	PlayerLyric:      func() Message { return &LyricUpdate{} },
	PlayerLyricIndex: func() Message { return &LyricIndex{} },
	PlayerEnd:        func() Message { return &End{} },
	QueueAdd:         func() Message { return &Add{} },
	QueueClear:       func() Message { return &Clear{} },
	QueueDelete:      func() Message { return &Delete{} },
	QueueNew:         func() Message { return &New{} },
	QueuePlay:        func() Message { return &PlayEntry{} },
	QueueShift:       func() Message { return &Shift{} },
	QueueFM:          func() Message { return &FM{} },
	ControlMaster:    func() Message { return &Master{} },
	ControlNew:       func() Message { return &NewInstance{} },
	ControlRetain:    func() Message { return &Retain{} },
	ControlNetease:   func() Message { return &Accounts{} },
	WasmLoad:         func() Message { return &WasmLoadMsg{} },
	WasmPause:        func() Message { return &WasmPauseMsg{} },
	WasmPlay:         func() Message { return &WasmPlayMsg{} },
	WasmStop:         func() Message { return &WasmStopMsg{} },
	WasmVolume:       func() Message { return &WasmVolumeMsg{} },
	WasmSpeed:        func() Message { return &WasmSpeedMsg{} },
	WasmSeek:         func() Message { return &WasmSeekMsg{} },
}

// outbound lists every untargeted message a client instance sends.
var outbound = map[Tag]func() Message{
	PlayerLoad:    func() Message { return &Load{} },
	PlayerRepeat:  func() Message { return &Repeat{} },
	PlayerPause:   func() Message { return &Pause{} },
	PlayerPlay:    func() Message { return &Play{} },
	PlayerStop:    func() Message { return &Stop{} },
	PlayerVolume:  func() Message { return &Volume{} },
	PlayerSpeed:   func() Message { return &Speed{} },
	PlayerSeek:    func() Message { return &Seek{} },
	PlayerToggle:  func() Message { return &Toggle{} },
	QueueAdd:      func() Message { return &Add{} },
	QueueClear:    func() Message { return &Clear{} },
	QueueDelete:   func() Message { return &Delete{} },
	QueueNew:      func() Message { return &New{} },
	QueuePlay:     func() Message { return &PlayEntry{} },
	QueueShift:    func() Message { return &Shift{} },
	QueueRandom:   func() Message { return &Random{} },
	QueueFMNext:   func() Message { return &FMNext{} },
	ControlRetain: func() Message { return &Retain{} },
	ControlClear:  func() Message { return &ClearPending{} },
}

// InboundTags returns the sorted tag set a client instance must handle.
func InboundTags() []Tag { return sortedTags(inbound) }

// OutboundTags returns the sorted tag set the background process must handle.
func OutboundTags() []Tag { return sortedTags(outbound) }

func sortedTags(m map[Tag]func() Message) []Tag {
	tags := make([]Tag, 0, len(m))
	for t := range m {
		tags = append(tags, t)
	}
	slices.Sort(tags)
	return tags
}

// NewInbound returns a zero message for an inbound tag.
func NewInbound(t Tag) (Message, bool) {
	fn, ok := inbound[t]
	if !ok {
		return nil, false
	}
	return fn(), true
}

// Encode marshals m and stamps its tag into the "t" field.
func Encode(m Message) ([]byte, error) {
	body, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", m.Tag(), err)
	}
	if len(body) < 2 || body[0] != '{' {
		return nil, fmt.Errorf("marshal %s: not an object", m.Tag())
	}
	tag, _ := json.Marshal(m.Tag())

	out := make([]byte, 0, len(body)+len(tag)+6)
	out = append(out, `{"t":`...)
	out = append(out, tag...)
	if len(body) > 2 {
		out = append(out, ',')
	}
	out = append(out, body[1:]...)
	return out, nil
}

// PeekTag returns the "t" field of a payload.
func PeekTag(payload []byte) (Tag, error) {
	var head struct {
		T Tag `json:"t"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return "", fmt.Errorf("decode tag: %w", err)
	}
	return head.T, nil
}

// DecodeInbound decodes a background-to-client message.
func DecodeInbound(payload []byte) (Message, error) {
	return decode(inbound, payload)
}

// DecodeOutbound decodes a client-to-background message.
func DecodeOutbound(payload []byte) (Message, error) {
	return decode(outbound, payload)
}

func decode(registry map[Tag]func() Message, payload []byte) (Message, error) {
	tag, err := PeekTag(payload)
	if err != nil {
		return nil, err
	}
	fn, ok := registry[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTag, tag)
	}
	msg := fn()
	if err := json.Unmarshal(payload, msg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", tag, err)
	}
	return msg, nil
}

// DecodeRequest decodes a correlated request frame.
func DecodeRequest(payload []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return Request{}, fmt.Errorf("decode request: %w", err)
	}
	return req, nil
}

// DecodeReply decodes a correlated reply frame.
func DecodeReply(payload []byte) (Reply, error) {
	var rep Reply
	if err := json.Unmarshal(payload, &rep); err != nil {
		return Reply{}, fmt.Errorf("decode reply: %w", err)
	}
	return rep, nil
}
