package protocol

import (
	"encoding/binary"
	"io"
	"net"
	"strings"
	"testing"
)

func TestFrameRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer func() { _ = client.Close() }()
	defer func() { _ = server.Close() }()

	payload := `{"t":"queue.clear"}`
	go func() {
		if err := WriteFrame(client, KindMessage, []byte(payload)); err != nil {
			t.Errorf("WriteFrame: %v", err)
		}
	}()

	header := make([]byte, 8)
	if _, err := io.ReadFull(server, header); err != nil {
		t.Fatalf("read header: %v", err)
	}
	kind := binary.LittleEndian.Uint32(header[0:4])
	length := binary.LittleEndian.Uint32(header[4:8])

	if kind != KindMessage {
		t.Errorf("kind = %d, want %d", kind, KindMessage)
	}
	if int(length) != len(payload) {
		t.Errorf("length = %d, want %d", length, len(payload))
	}

	body := make([]byte, length)
	if _, err := io.ReadFull(server, body); err != nil {
		t.Fatalf("read body: %v", err)
	}
	if string(body) != payload {
		t.Errorf("body = %q, want %q", body, payload)
	}
}

func TestReadFrameLargePayload(t *testing.T) {
	client, server := net.Pipe()
	defer func() { _ = client.Close() }()
	defer func() { _ = server.Close() }()

	large := []byte(strings.Repeat("x", 64<<10))
	go func() {
		_ = WriteFrame(client, KindReply, large)
	}()

	kind, payload, err := ReadFrame(server)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	if kind != KindReply {
		t.Errorf("kind = %d, want %d", kind, KindReply)
	}
	if len(payload) != len(large) {
		t.Errorf("payload length = %d, want %d", len(payload), len(large))
	}
}

func TestReadFrameRejectsOversize(t *testing.T) {
	client, server := net.Pipe()
	defer func() { _ = client.Close() }()
	defer func() { _ = server.Close() }()

	go func() {
		header := make([]byte, 8)
		binary.LittleEndian.PutUint32(header[0:4], KindMessage)
		binary.LittleEndian.PutUint32(header[4:8], MaxFrameSize+1)
		_, _ = client.Write(header)
	}()

	if _, _, err := ReadFrame(server); err == nil {
		t.Fatal("expected error for oversized frame")
	}
}
