package ipc

import (
	"errors"
	"testing"
)

func TestMachinePaths(t *testing.T) {
	tests := []struct {
		name        string
		events      []Event
		wantActions []Action
		wantState   ConnState
		wantSpawned bool
	}{
		{
			name:        "running process",
			events:      []Event{EventStart, EventProbeOK},
			wantActions: []Action{ActionProbe, ActionReady},
			wantState:   Connected,
		},
		{
			name:        "spawn path",
			events:      []Event{EventStart, EventProbeFailed, EventSpawned, EventRetryOK},
			wantActions: []Action{ActionProbe, ActionSpawn, ActionRetry, ActionReady},
			wantState:   Connected,
			wantSpawned: true,
		},
		{
			name:        "drop and reconnect",
			events:      []Event{EventStart, EventProbeOK, EventDropped, EventStart},
			wantActions: []Action{ActionProbe, ActionReady, ActionNone, ActionProbe},
			wantState:   Connecting,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Machine
			for i, ev := range tt.events {
				got, err := m.Fire(ev)
				if err != nil {
					t.Fatalf("Fire(%s): %v", ev, err)
				}
				if got != tt.wantActions[i] {
					t.Errorf("Fire(%s) = %s, want %s", ev, got, tt.wantActions[i])
				}
			}
			if m.State() != tt.wantState {
				t.Errorf("state = %s, want %s", m.State(), tt.wantState)
			}
			if m.Spawned() != tt.wantSpawned {
				t.Errorf("spawned = %v, want %v", m.Spawned(), tt.wantSpawned)
			}
		})
	}
}

func TestMachineRejectsInvalidTransitions(t *testing.T) {
	tests := []struct {
		name  string
		setup []Event
		ev    Event
	}{
		{"probe result while disconnected", nil, EventProbeOK},
		{"retry before spawn", []Event{EventStart}, EventRetryOK},
		{"second spawn", []Event{EventStart, EventProbeFailed, EventSpawned}, EventProbeFailed},
		{"start while connected", []Event{EventStart, EventProbeOK}, EventStart},
		{"drop while connecting", []Event{EventStart}, EventDropped},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var m Machine
			for _, ev := range tt.setup {
				if _, err := m.Fire(ev); err != nil {
					t.Fatalf("setup Fire(%s): %v", ev, err)
				}
			}
			before := m.State()
			if _, err := m.Fire(tt.ev); !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("Fire(%s) err = %v, want ErrInvalidTransition", tt.ev, err)
			}
			if m.State() != before {
				t.Errorf("state changed to %s on rejected event", m.State())
			}
		})
	}
}
