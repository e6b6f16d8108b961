// Package ipc is the client side of the link to the background process:
// the framed channel, request correlation, and spawning the process when it
// is not running.
package ipc

import (
	"errors"
	"fmt"
)

// ConnState is the connection phase of a client instance.
type ConnState int

const (
	Disconnected ConnState = iota
	Connecting
	Connected
)

func (s ConnState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	}
	return fmt.Sprintf("ConnState(%d)", int(s))
}

// Event is an outcome reported to the Machine by the activation routine.
type Event int

const (
	EventStart Event = iota
	EventProbeOK
	EventProbeFailed
	EventSpawned
	EventRetryOK
	EventDropped
)

func (e Event) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventProbeOK:
		return "probe-ok"
	case EventProbeFailed:
		return "probe-failed"
	case EventSpawned:
		return "spawned"
	case EventRetryOK:
		return "retry-ok"
	case EventDropped:
		return "dropped"
	}
	return fmt.Sprintf("Event(%d)", int(e))
}

// Action is what the activation routine must do next.
type Action int

const (
	ActionNone Action = iota
	ActionProbe
	ActionSpawn
	ActionRetry
	ActionReady
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionProbe:
		return "probe"
	case ActionSpawn:
		return "spawn"
	case ActionRetry:
		return "retry"
	case ActionReady:
		return "ready"
	}
	return fmt.Sprintf("Action(%d)", int(a))
}

// ErrInvalidTransition is returned by Machine.Fire for an event that has no
// transition from the current state.
var ErrInvalidTransition = errors.New("ipc: invalid transition")

// Machine is the reconnect-or-spawn protocol with no I/O attached. The
// caller performs each returned Action and reports its outcome as the next
// Event.
type Machine struct {
	state   ConnState
	spawned bool
}

func (m *Machine) State() ConnState { return m.state }

// Spawned reports whether the current connection went through the spawn
// path rather than finding a running background process.
func (m *Machine) Spawned() bool { return m.spawned }

func (m *Machine) Fire(ev Event) (Action, error) {
	switch {
	case m.state == Disconnected && ev == EventStart:
		m.state = Connecting
		m.spawned = false
		return ActionProbe, nil
	case m.state == Connecting && ev == EventProbeOK:
		m.state = Connected
		return ActionReady, nil
	case m.state == Connecting && ev == EventProbeFailed && !m.spawned:
		return ActionSpawn, nil
	case m.state == Connecting && ev == EventSpawned:
		m.spawned = true
		return ActionRetry, nil
	case m.state == Connecting && ev == EventRetryOK && m.spawned:
		m.state = Connected
		return ActionReady, nil
	case m.state == Connected && ev == EventDropped:
		m.state = Disconnected
		return ActionNone, nil
	}
	return ActionNone, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, ev, m.state)
}
