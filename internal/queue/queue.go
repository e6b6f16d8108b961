package queue

import (
	"cmp"
	"errors"
	"slices"
	"strings"
	"sync"
)

// ErrNotFound is returned when an entry id is not in the queue.
var ErrNotFound = errors.New("queue: entry not found")

// ShiftMode selects how Shift reorders the queue.
type ShiftMode int

const (
	// ShiftToFront moves the entry at index to the front and keeps the
	// relative order of the rest. The head pointer is untouched.
	ShiftToFront ShiftMode = iota
	// ShiftRotate rotates the queue left by index positions; the new front
	// becomes the head.
	ShiftRotate
)

// ParseShiftMode maps a config value to a ShiftMode. Unknown values fall back
// to ShiftToFront.
func ParseShiftMode(s string) ShiftMode {
	if strings.EqualFold(strings.TrimSpace(s), "rotate") {
		return ShiftRotate
	}
	return ShiftToFront
}

// SortType is the key Sort orders by.
type SortType int

const (
	SortSong SortType = iota
	SortAlbum
	SortArtist
)

// SortOrder is the direction Sort orders in.
type SortOrder int

const (
	Ascending SortOrder = iota
	Descending
)

// Model is the ordered queue plus its head pointer.
//
// Mutations are expected from a single dispatch goroutine; the lock only
// makes snapshots safe to take from elsewhere. Change listeners run after
// the lock is released, on the mutating goroutine.
type Model struct {
	mu      sync.RWMutex
	entries []*Entry
	head    *Entry
	mode    ShiftMode

	listenerMu sync.Mutex
	listeners  map[int]func()
	nextID     int
}

// New returns an empty queue using the given shift mode.
func New(mode ShiftMode) *Model {
	return &Model{mode: mode, listeners: make(map[int]func())}
}

// OnChange registers fn to run after every structural change. The returned
// function unregisters it.
func (m *Model) OnChange(fn func()) func() {
	m.listenerMu.Lock()
	defer m.listenerMu.Unlock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = fn
	return func() {
		m.listenerMu.Lock()
		delete(m.listeners, id)
		m.listenerMu.Unlock()
	}
}

func (m *Model) notify() {
	m.listenerMu.Lock()
	ids := make([]int, 0, len(m.listeners))
	for id := range m.listeners {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	fns := make([]func(), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, m.listeners[id])
	}
	m.listenerMu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Head returns the head entry, or nil when the queue has none. The pointer
// identity changes whenever the entry is re-added or the queue is replaced.
func (m *Model) Head() *Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.head
}

// HeadID returns the head's id, or "".
func (m *Model) HeadID() string {
	if h := m.Head(); h != nil {
		return h.ID
	}
	return ""
}

// Len returns the number of entries.
func (m *Model) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Entries returns a copy of the ordered entries.
func (m *Model) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, len(m.entries))
	for i, e := range m.entries {
		out[i] = *e.clone()
	}
	return out
}

// Add inserts items at index, or appends them when index is negative or past
// the end. Items whose id is already queued are skipped. An empty queue takes
// its first entry as head.
func (m *Model) Add(items []Entry, index int) {
	m.mu.Lock()
	fresh := make([]*Entry, 0, len(items))
	seen := make(map[string]bool, len(m.entries)+len(items))
	for _, e := range m.entries {
		seen[e.ID] = true
	}
	for _, it := range items {
		if seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		fresh = append(fresh, it.clone())
	}
	if len(fresh) == 0 {
		m.mu.Unlock()
		return
	}
	if index < 0 || index > len(m.entries) {
		index = len(m.entries)
	}
	m.entries = slices.Insert(m.entries, index, fresh...)
	if m.head == nil {
		m.head = m.entries[0]
	}
	m.mu.Unlock()
	m.notify()
}

// Delete removes the entry with the given id. Deleting the head moves the
// head to the entry that took its place, or the new last entry.
func (m *Model) Delete(id string) error {
	m.mu.Lock()
	i := m.indexOf(id)
	if i < 0 {
		m.mu.Unlock()
		return ErrNotFound
	}
	removed := m.entries[i]
	m.entries = slices.Delete(m.entries, i, i+1)
	if m.head == removed {
		switch {
		case len(m.entries) == 0:
			m.head = nil
		case i < len(m.entries):
			m.head = m.entries[i]
		default:
			m.head = m.entries[len(m.entries)-1]
		}
	}
	m.mu.Unlock()
	m.notify()
	return nil
}

// Clear empties the queue.
func (m *Model) Clear() {
	m.mu.Lock()
	m.entries = nil
	m.head = nil
	m.mu.Unlock()
	m.notify()
}

// Replace resets the queue to items. The head is the entry with headID when
// present, else the first entry.
func (m *Model) Replace(items []Entry, headID string) {
	m.mu.Lock()
	m.entries = make([]*Entry, 0, len(items))
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		if seen[it.ID] {
			continue
		}
		seen[it.ID] = true
		m.entries = append(m.entries, it.clone())
	}
	m.head = nil
	if i := m.indexOf(headID); headID != "" && i >= 0 {
		m.head = m.entries[i]
	} else if len(m.entries) > 0 {
		m.head = m.entries[0]
	}
	m.mu.Unlock()
	m.notify()
}

// Play points the head at the entry with the given id.
func (m *Model) Play(id string) error {
	m.mu.Lock()
	i := m.indexOf(id)
	if i < 0 {
		m.mu.Unlock()
		return ErrNotFound
	}
	m.head = m.entries[i]
	m.mu.Unlock()
	m.notify()
	return nil
}

// Shift reorders the queue according to the model's ShiftMode. Negative
// indexes count from the end. Out-of-range indexes are ignored.
func (m *Model) Shift(index int) {
	m.mu.Lock()
	n := len(m.entries)
	if n == 0 {
		m.mu.Unlock()
		return
	}
	if index < 0 {
		index += n
	}
	if index <= 0 || index >= n {
		m.mu.Unlock()
		return
	}

	switch m.mode {
	case ShiftRotate:
		m.entries = slices.Concat(m.entries[index:], m.entries[:index])
		m.head = m.entries[0]
	default:
		moved := m.entries[index]
		m.entries = slices.Delete(m.entries, index, index+1)
		m.entries = slices.Insert(m.entries, 0, moved)
	}
	m.mu.Unlock()
	m.notify()
}

// Sort returns a freshly ordered copy of the entries. The queue itself is not
// modified; callers publish the result through the background process so
// every instance applies it in the same order. Ties keep queue order.
func (m *Model) Sort(by SortType, order SortOrder) []Entry {
	out := m.Entries()
	slices.SortStableFunc(out, func(a, b Entry) int {
		var c int
		switch by {
		case SortAlbum:
			c = cmp.Compare(a.AlbumID, b.AlbumID)
		case SortArtist:
			c = strings.Compare(a.Artist(), b.Artist())
		default:
			c = strings.Compare(a.Name, b.Name)
		}
		if order == Descending {
			return -c
		}
		return c
	})
	return out
}

// indexOf must be called with the lock held.
func (m *Model) indexOf(id string) int {
	for i, e := range m.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}
