package ipc

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/cloudmusic/internal/protocol"
)

// pipeDialer fails the first n dials, then hands out one end of a net.Pipe
// and publishes the other on server.
type pipeDialer struct {
	failures int
	calls    int
	server   chan net.Conn
}

func newPipeDialer(failures int) *pipeDialer {
	return &pipeDialer{failures: failures, server: make(chan net.Conn, 1)}
}

func (d *pipeDialer) dial(ctx context.Context) (net.Conn, error) {
	d.calls++
	if d.calls <= d.failures {
		return nil, errors.New("connection refused")
	}
	client, server := net.Pipe()
	d.server <- server
	return client, nil
}

func writeMessage(t *testing.T, conn net.Conn, msg protocol.Message) {
	t.Helper()
	payload, err := protocol.Encode(msg)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if err := protocol.WriteFrame(conn, protocol.KindMessage, payload); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
}

func nopHandlers() (ReplyHandler, MessageHandler) {
	return func(protocol.Reply) {}, func(protocol.Message) {}
}

func TestConnectSingleProbeFails(t *testing.T) {
	d := newPipeDialer(1)
	c := NewChannel(d.dial, time.Millisecond, zerolog.Nop())

	onReply, onMessage := nopHandlers()
	results, err := c.Connect(context.Background(), 0, onReply, onMessage)
	if !errors.Is(err, ErrConnectionFailure) {
		t.Fatalf("err = %v, want ErrConnectionFailure", err)
	}
	if len(results) != 1 || results[0] {
		t.Errorf("results = %v, want [false]", results)
	}
	if c.State() != Disconnected {
		t.Errorf("state = %s, want disconnected", c.State())
	}
	if err := c.Send(protocol.Play{}); !errors.Is(err, ErrClosed) {
		t.Errorf("Send err = %v, want ErrClosed", err)
	}
}

func TestConnectUnlimitedRetries(t *testing.T) {
	d := newPipeDialer(3)
	c := NewChannel(d.dial, time.Millisecond, zerolog.Nop())

	onReply, onMessage := nopHandlers()
	results, err := c.Connect(context.Background(), Unlimited, onReply, onMessage)
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	want := []bool{false, false, false, true}
	if len(results) != len(want) {
		t.Fatalf("results = %v, want %v", results, want)
	}
	for i := range want {
		if results[i] != want[i] {
			t.Errorf("results[%d] = %v, want %v", i, results[i], want[i])
		}
	}
	if c.State() != Connected {
		t.Errorf("state = %s, want connected", c.State())
	}

	server := <-d.server
	_ = server.Close()
	<-c.Done()
}

func TestConnectHonoursContext(t *testing.T) {
	d := newPipeDialer(1 << 30)
	c := NewChannel(d.dial, 5*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	onReply, onMessage := nopHandlers()
	_, err := c.Connect(ctx, Unlimited, onReply, onMessage)
	if !errors.Is(err, ErrConnectionFailure) || !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
}

func TestReadLoopRoutesFrames(t *testing.T) {
	d := newPipeDialer(0)
	c := NewChannel(d.dial, time.Millisecond, zerolog.Nop())

	var (
		mu      sync.Mutex
		replies []protocol.Reply
		tags    []protocol.Tag
	)
	_, err := c.Connect(context.Background(), 0,
		func(r protocol.Reply) {
			mu.Lock()
			replies = append(replies, r)
			mu.Unlock()
		},
		func(m protocol.Message) {
			mu.Lock()
			tags = append(tags, m.Tag())
			mu.Unlock()
		})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}

	server := <-d.server
	writeMessage(t, server, protocol.Master{Is: true})
	if err := protocol.WriteFrame(server, protocol.KindMessage, []byte(`{"t":"player.unknown"}`)); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	rep, _ := protocol.Encode(protocol.Reply{ID: "1", Payload: []byte(`true`)})
	if err := protocol.WriteFrame(server, protocol.KindReply, rep); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	writeMessage(t, server, protocol.Clear{})
	_ = server.Close()
	<-c.Done()

	mu.Lock()
	defer mu.Unlock()
	wantTags := []protocol.Tag{protocol.ControlMaster, protocol.QueueClear}
	if len(tags) != len(wantTags) || tags[0] != wantTags[0] || tags[1] != wantTags[1] {
		t.Errorf("tags = %v, want %v", tags, wantTags)
	}
	if len(replies) != 1 || replies[0].ID != "1" {
		t.Errorf("replies = %+v", replies)
	}
	if c.State() != Disconnected {
		t.Errorf("state = %s after drop, want disconnected", c.State())
	}
}

func TestSendWritesFrames(t *testing.T) {
	d := newPipeDialer(0)
	c := NewChannel(d.dial, time.Millisecond, zerolog.Nop())
	onReply, onMessage := nopHandlers()
	if _, err := c.Connect(context.Background(), 0, onReply, onMessage); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	server := <-d.server

	errc := make(chan error, 2)
	go func() {
		errc <- c.Send(protocol.Shift{Index: 2})
		errc <- c.SendRequest(protocol.Request{ID: "abc", Method: "m", Args: []any{}})
	}()

	kind, payload, err := protocol.ReadFrame(server)
	if err != nil {
		t.Fatalf("ReadFrame: %v", err)
	}
	msg, err := protocol.DecodeOutbound(payload)
	if err != nil || kind != protocol.KindMessage {
		t.Fatalf("frame kind %d: %v", kind, err)
	}
	if s, ok := msg.(*protocol.Shift); !ok || s.Index != 2 {
		t.Errorf("msg = %#v", msg)
	}

	kind, payload, err = protocol.ReadFrame(server)
	if err != nil || kind != protocol.KindRequest {
		t.Fatalf("frame kind %d: %v", kind, err)
	}
	req, err := protocol.DecodeRequest(payload)
	if err != nil || req.ID != "abc" {
		t.Errorf("request = %+v, %v", req, err)
	}
	for range 2 {
		if err := <-errc; err != nil {
			t.Errorf("send: %v", err)
		}
	}

	go func() {
		// Drain the close frame.
		_, _, _ = protocol.ReadFrame(server)
	}()
	if err := c.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
