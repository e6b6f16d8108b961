package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jfmyers9/cloudmusic/internal/protocol"
	"github.com/jfmyers9/cloudmusic/internal/queue"
)

// Commands never touch the mirrored queue directly. They ask the background
// process, which broadcasts the change to every instance in one order.

// SortQueue republishes the queue ordered by the given key.
func (i *Instance) SortQueue(by queue.SortType, order queue.SortOrder) error {
	return i.channel.Send(protocol.New{Items: i.queue.Sort(by, order), ID: i.queue.HeadID()})
}

func (i *Instance) ClearQueue() error {
	return i.channel.Send(protocol.Clear{})
}

func (i *Instance) RandomQueue() error {
	return i.channel.Send(protocol.Random{})
}

// PlaySong makes the entry with id the head.
func (i *Instance) PlaySong(id string) error {
	return i.channel.Send(protocol.PlayEntry{ID: id})
}

func (i *Instance) DeleteSong(id string) error {
	return i.channel.Send(protocol.Delete{ID: id})
}

// PlayNext inserts items right after the head.
func (i *Instance) PlayNext(items []queue.Entry) error {
	index := 0
	head := i.queue.HeadID()
	for n, e := range i.queue.Entries() {
		if e.ID == head {
			index = n + 1
			break
		}
	}
	return i.channel.Send(protocol.Add{Items: items, Index: &index})
}

// Add appends items.
func (i *Instance) Add(items []queue.Entry) error {
	return i.channel.Send(protocol.Add{Items: items})
}

// New replaces the queue with items, headed by headID or the first item.
func (i *Instance) New(items []queue.Entry, headID string) error {
	return i.channel.Send(protocol.New{Items: items, ID: headID})
}

// Retain asks the background process to resend the retained queue.
func (i *Instance) Retain() error {
	return i.channel.Send(protocol.Retain{})
}

// Load loads the head. Nil play keeps the background process's choice.
func (i *Instance) Load(play *bool, seek float64) error {
	return i.channel.Send(protocol.Load{Play: play, Seek: seek})
}

func (i *Instance) Stop() error {
	return i.channel.Send(protocol.Stop{})
}

func (i *Instance) FMNext() error {
	return i.channel.Send(protocol.FMNext{})
}

// Clear drops outstanding correlated calls here and in the background
// process.
func (i *Instance) Clear() error {
	i.corr.ClearAll()
	return i.channel.Clear()
}

// Call makes a correlated call and waits for its reply.
func (i *Instance) Call(ctx context.Context, method string, args ...any) (json.RawMessage, error) {
	p, err := i.corr.Call(method, args...)
	if err != nil {
		return nil, err
	}
	payload, err := p.Wait(ctx)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}
	return payload, nil
}
