package state

import (
	"slices"
	"sync"
)

// Coordinator records whether this instance holds control authority. The
// background process decides; the Coordinator only remembers the latest
// assignment.
type Coordinator struct {
	mu        sync.RWMutex
	is        bool
	listeners []func(bool)
}

// IsMaster reports the latest assignment.
func (c *Coordinator) IsMaster() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.is
}

// Set records an assignment and reports whether it changed. Listeners run
// once per change.
func (c *Coordinator) Set(is bool) bool {
	c.mu.Lock()
	if c.is == is {
		c.mu.Unlock()
		return false
	}
	c.is = is
	fns := slices.Clone(c.listeners)
	c.mu.Unlock()

	for _, fn := range fns {
		fn(is)
	}
	return true
}

// OnChange registers fn to run after every change.
func (c *Coordinator) OnChange(fn func(bool)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}
