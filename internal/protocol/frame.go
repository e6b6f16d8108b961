package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Frame kinds. The layout matches Discord's IPC framing so the same codec
// serves both sockets.
const (
	KindRequest uint32 = 0 // correlated call, client -> background
	KindMessage uint32 = 1 // untargeted command or broadcast
	KindReply   uint32 = 2 // correlated reply, background -> client
	KindClose   uint32 = 3
)

// MaxFrameSize bounds the payload length accepted by ReadFrame.
const MaxFrameSize = 16 << 20

// WriteFrame sends one frame: [kind LE u32][length LE u32][payload].
func WriteFrame(w io.Writer, kind uint32, payload []byte) error {
	buf := make([]byte, 8+len(payload))
	binary.LittleEndian.PutUint32(buf[0:4], kind)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(payload)))
	copy(buf[8:], payload)
	_, err := w.Write(buf)
	return err
}

// ReadFrame reads one frame, allocating a buffer of the exact size declared
// in the header.
func ReadFrame(r io.Reader) (uint32, []byte, error) {
	header := make([]byte, 8)
	if _, err := io.ReadFull(r, header); err != nil {
		return 0, nil, err
	}
	kind := binary.LittleEndian.Uint32(header[0:4])
	length := binary.LittleEndian.Uint32(header[4:8])
	if length > MaxFrameSize {
		return 0, nil, fmt.Errorf("frame too large: %d bytes", length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, err
	}
	return kind, payload, nil
}
