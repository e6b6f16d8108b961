package ipc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/jfmyers9/cloudmusic/internal/protocol"
)

var (
	// ErrConnectionFailure is returned by Connect when every attempt failed.
	ErrConnectionFailure = errors.New("ipc: background process unreachable")
	// ErrClosed is returned by writes on a channel with no live connection.
	ErrClosed = errors.New("ipc: channel closed")
)

// Unlimited makes Connect retry until it succeeds or its context ends.
const Unlimited = -1

// Dialer opens one connection to the background process.
type Dialer func(ctx context.Context) (net.Conn, error)

// UnixDialer dials the socket at path, giving up after timeout.
func UnixDialer(path string, timeout time.Duration) Dialer {
	return func(ctx context.Context) (net.Conn, error) {
		d := net.Dialer{Timeout: timeout}
		return d.DialContext(ctx, "unix", path)
	}
}

// ReplyHandler receives correlated replies.
type ReplyHandler func(protocol.Reply)

// MessageHandler receives broadcasts, in arrival order.
type MessageHandler func(protocol.Message)

// Channel is the duplex link to the background process. It does not
// reconnect on its own; Done reports a drop and the owner decides.
type Channel struct {
	dial       Dialer
	retryDelay time.Duration
	logger     zerolog.Logger

	mu    sync.Mutex
	conn  net.Conn
	state ConnState
	done  chan struct{}

	writeMu sync.Mutex
}

// NewChannel returns a disconnected channel. retryDelay is the pause between
// failed attempts.
func NewChannel(dial Dialer, retryDelay time.Duration, logger zerolog.Logger) *Channel {
	done := make(chan struct{})
	close(done)
	return &Channel{
		dial:       dial,
		retryDelay: retryDelay,
		logger:     logger.With().Str("component", "ipc").Logger(),
		done:       done,
	}
}

// Connect tries the background process up to attempts times (0 is a single
// probe, Unlimited never gives up). On success the handlers are installed
// and a read loop starts. The returned slice has one flag per attempt.
func (c *Channel) Connect(ctx context.Context, attempts int, onReply ReplyHandler, onMessage MessageHandler) ([]bool, error) {
	c.mu.Lock()
	if c.state != Disconnected {
		c.mu.Unlock()
		return nil, fmt.Errorf("connect: channel is %s", c.state)
	}
	c.state = Connecting
	c.mu.Unlock()

	var (
		results []bool
		lastErr error
	)
	for i := 0; attempts == Unlimited || i < max(attempts, 1); i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				c.setState(Disconnected)
				return results, fmt.Errorf("%w: %w", ErrConnectionFailure, ctx.Err())
			case <-time.After(c.retryDelay):
			}
		}

		conn, err := c.dial(ctx)
		if err != nil {
			results = append(results, false)
			lastErr = err
			c.logger.Debug().Err(err).Int("attempt", i+1).Msg("dial failed")
			continue
		}

		results = append(results, true)
		done := make(chan struct{})
		c.mu.Lock()
		c.conn = conn
		c.state = Connected
		c.done = done
		c.mu.Unlock()

		go c.readLoop(conn, done, onReply, onMessage)
		c.logger.Debug().Int("attempts", len(results)).Msg("connected")
		return results, nil
	}

	c.setState(Disconnected)
	return results, fmt.Errorf("%w: %w", ErrConnectionFailure, lastErr)
}

func (c *Channel) readLoop(conn net.Conn, done chan struct{}, onReply ReplyHandler, onMessage MessageHandler) {
	defer func() {
		c.mu.Lock()
		if c.conn == conn {
			c.conn = nil
			c.state = Disconnected
		}
		c.mu.Unlock()
		_ = conn.Close()
		close(done)
	}()

	for {
		kind, payload, err := protocol.ReadFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) && !errors.Is(err, net.ErrClosed) && !errors.Is(err, io.ErrClosedPipe) {
				c.logger.Warn().Err(err).Msg("read failed")
			}
			return
		}

		switch kind {
		case protocol.KindReply:
			rep, err := protocol.DecodeReply(payload)
			if err != nil {
				c.logger.Warn().Err(err).Msg("bad reply frame")
				continue
			}
			onReply(rep)
		case protocol.KindMessage:
			msg, err := protocol.DecodeInbound(payload)
			if err != nil {
				if errors.Is(err, protocol.ErrUnknownTag) {
					c.logger.Debug().Err(err).Msg("ignoring message")
				} else {
					c.logger.Warn().Err(err).Msg("bad message frame")
				}
				continue
			}
			onMessage(msg)
		case protocol.KindClose:
			return
		default:
			c.logger.Debug().Uint32("kind", kind).Msg("ignoring frame")
		}
	}
}

// Send writes one untargeted message.
func (c *Channel) Send(msg protocol.Message) error {
	payload, err := protocol.Encode(msg)
	if err != nil {
		return err
	}
	return c.write(protocol.KindMessage, payload)
}

// SendRequest writes one correlated request.
func (c *Channel) SendRequest(req protocol.Request) error {
	payload, err := protocol.Encode(req)
	if err != nil {
		return err
	}
	return c.write(protocol.KindRequest, payload)
}

// Clear tells the background process to drop this instance's outstanding
// correlation state.
func (c *Channel) Clear() error {
	return c.Send(protocol.ClearPending{})
}

func (c *Channel) write(kind uint32, payload []byte) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return ErrClosed
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := protocol.WriteFrame(conn, kind, payload); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// State returns the current connection phase.
func (c *Channel) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done is closed when the current connection drops.
func (c *Channel) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

// Close says goodbye and tears down the connection.
func (c *Channel) Close() error {
	c.mu.Lock()
	conn := c.conn
	done := c.done
	c.mu.Unlock()
	if conn == nil {
		return nil
	}

	c.writeMu.Lock()
	_ = protocol.WriteFrame(conn, protocol.KindClose, []byte("{}"))
	c.writeMu.Unlock()

	err := conn.Close()
	<-done
	return err
}

func (c *Channel) setState(s ConnState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
