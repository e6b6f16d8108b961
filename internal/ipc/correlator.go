package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jfmyers9/cloudmusic/internal/protocol"
)

var (
	// ErrRequestRejected matches every *RejectedError.
	ErrRequestRejected = errors.New("ipc: request rejected")
	// ErrCleared is returned by Wait for calls dropped by ClearAll.
	ErrCleared = errors.New("ipc: pending requests cleared")
)

// RejectedError is returned for a reply that carries the error flag or no
// payload.
type RejectedError struct {
	Method string
	ID     string
	Msg    string
}

func (e *RejectedError) Error() string {
	if e.Msg == "" {
		return fmt.Sprintf("request %s (%s) rejected", e.Method, e.ID)
	}
	return fmt.Sprintf("request %s (%s) rejected: %s", e.Method, e.ID, e.Msg)
}

func (e *RejectedError) Is(target error) bool { return target == ErrRequestRejected }

// RequestSender writes a correlated request frame.
type RequestSender interface {
	SendRequest(protocol.Request) error
}

// Correlator matches outgoing calls to their replies by id.
type Correlator struct {
	send  RequestSender
	newID func() string

	mu      sync.Mutex
	pending map[string]*Pending
}

func NewCorrelator(send RequestSender) *Correlator {
	return &Correlator{
		send:    send,
		newID:   uuid.NewString,
		pending: make(map[string]*Pending),
	}
}

// Pending is an outstanding call. It completes at most once.
type Pending struct {
	c      *Correlator
	id     string
	method string

	once    sync.Once
	done    chan struct{}
	payload json.RawMessage
	err     error
}

func (p *Pending) ID() string { return p.id }

// Done is closed once the call is resolved, rejected, or cleared.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the reply arrives or ctx ends. A cancelled wait evicts
// the call, so a late reply is dropped.
func (p *Pending) Wait(ctx context.Context) (json.RawMessage, error) {
	select {
	case <-p.done:
		return p.payload, p.err
	case <-ctx.Done():
		p.c.evict(p.id)
		p.complete(nil, ctx.Err())
		<-p.done
		return p.payload, p.err
	}
}

// Decode waits for the reply and unmarshals its payload into v.
func (p *Pending) Decode(ctx context.Context, v any) error {
	payload, err := p.Wait(ctx)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("decode %s reply: %w", p.method, err)
	}
	return nil
}

func (p *Pending) complete(payload json.RawMessage, err error) bool {
	fired := false
	p.once.Do(func() {
		p.payload = payload
		p.err = err
		close(p.done)
		fired = true
	})
	return fired
}

// Call sends method with args under a fresh correlation id.
func (c *Correlator) Call(method string, args ...any) (*Pending, error) {
	if args == nil {
		args = []any{}
	}
	p := &Pending{
		c:      c,
		id:     c.newID(),
		method: method,
		done:   make(chan struct{}),
	}

	c.mu.Lock()
	c.pending[p.id] = p
	c.mu.Unlock()

	if err := c.send.SendRequest(protocol.Request{ID: p.id, Method: method, Args: args}); err != nil {
		c.evict(p.id)
		return nil, fmt.Errorf("send %s: %w", method, err)
	}
	return p, nil
}

// Resolve fulfils the call matching rep.ID. It reports false when no call is
// waiting on that id.
func (c *Correlator) Resolve(rep protocol.Reply) bool {
	c.mu.Lock()
	p, ok := c.pending[rep.ID]
	delete(c.pending, rep.ID)
	c.mu.Unlock()
	if !ok {
		return false
	}

	if rep.Err || len(rep.Payload) == 0 {
		return p.complete(nil, &RejectedError{Method: p.method, ID: p.id, Msg: rep.Msg})
	}
	return p.complete(rep.Payload, nil)
}

// ClearAll rejects every outstanding call with ErrCleared.
func (c *Correlator) ClearAll() {
	c.mu.Lock()
	pending := c.pending
	c.pending = make(map[string]*Pending)
	c.mu.Unlock()

	for _, p := range pending {
		p.complete(nil, ErrCleared)
	}
}

// Len returns the number of outstanding calls.
func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Correlator) evict(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}
