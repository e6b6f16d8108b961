package daemon

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jfmyers9/cloudmusic/internal/queue"
)

// RetainedState is what the background process keeps across restarts: the
// last queue and how playback stood.
type RetainedState struct {
	Items   []queue.Entry // Queue in order
	HeadID  string        // Head entry id ("" when empty)
	Playing bool          // Whether playback was running
	Seek    float64       // Last known position in seconds
	Repeat  bool
}

// State manages the retained state with thread-safe access and persistence
type State struct {
	mu       sync.RWMutex
	current  RetainedState
	filePath string // Path to state file for persistence

	persistInterval time.Duration // Minimum time between throttled writes
	lastPersist     time.Time
	dirty           bool
}

// persistedState is the JSON representation of state for disk storage
type persistedState struct {
	Items   []queue.Entry `json:"items"`
	HeadID  string        `json:"head_id,omitempty"`
	Playing bool          `json:"playing"`
	Seek    float64       `json:"seek,omitempty"`
	Repeat  bool          `json:"repeat"`
}

// NewState creates a new State instance
// If filePath is provided, attempts to restore state from disk
func NewState(filePath string) (*State, error) {
	s := &State{
		filePath:        filePath,
		persistInterval: 5 * time.Second,
	}

	if filePath != "" {
		if err := s.restore(); err != nil && !os.IsNotExist(err) {
			// Not fatal: the caller may start with an empty state
			return s, err
		}
	}

	return s, nil
}

// SetQueue records the current queue. Queue edits come in bursts, so the
// write is throttled; Flush writes whatever is pending.
func (s *State) SetQueue(items []queue.Entry, headID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.Items = items
	s.current.HeadID = headID
	s.dirty = true
	return s.throttledPersist()
}

// SetPlayback records whether playback runs and where.
func (s *State) SetPlayback(playing bool, seek float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.Playing == playing && s.current.Seek == seek {
		return nil
	}
	s.current.Playing = playing
	s.current.Seek = seek
	s.dirty = true
	return s.throttledPersist()
}

// SetRepeat records the repeat flag and persists immediately.
func (s *State) SetRepeat(repeat bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.current.Repeat = repeat
	return s.persist()
}

// GetState returns a copy of the current state
func (s *State) GetState() RetainedState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := s.current
	out.Items = append([]queue.Entry(nil), s.current.Items...)
	return out
}

// Flush writes pending changes, if any.
func (s *State) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}
	return s.persist()
}

// throttledPersist writes only when persistInterval has passed since the
// last write. Must be called with lock held
func (s *State) throttledPersist() error {
	if time.Since(s.lastPersist) < s.persistInterval {
		s.dirty = true
		return nil
	}
	return s.persist()
}

// persist saves the current state to disk
// Must be called with lock held
func (s *State) persist() error {
	if s.filePath == "" {
		s.dirty = false
		return nil // No persistence configured
	}

	ps := persistedState{
		Items:   s.current.Items,
		HeadID:  s.current.HeadID,
		Playing: s.current.Playing,
		Seek:    s.current.Seek,
		Repeat:  s.current.Repeat,
	}

	data, err := json.MarshalIndent(ps, "", "  ")
	if err != nil {
		return err
	}

	// Ensure directory exists
	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// Write atomically via temp file + rename
	tmpPath := s.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, s.filePath); err != nil {
		return err
	}

	s.lastPersist = time.Now()
	s.dirty = false
	return nil
}

// restore loads state from disk
func (s *State) restore() error {
	if s.filePath == "" {
		return nil
	}

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var ps persistedState
	if err := json.Unmarshal(data, &ps); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.current = RetainedState(ps)

	return nil
}
