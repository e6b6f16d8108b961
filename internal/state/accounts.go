package state

import (
	"sync"

	"github.com/jfmyers9/cloudmusic/internal/protocol"
)

// Accounts is the registry of signed-in accounts, replaced wholesale by each
// account broadcast. Reads may come from any goroutine.
type Accounts struct {
	mu       sync.RWMutex
	profiles []protocol.Profile
}

// Replace swaps in a new account list.
func (a *Accounts) Replace(profiles []protocol.Profile) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.profiles = append([]protocol.Profile(nil), profiles...)
}

// First returns the earliest listed account id.
func (a *Accounts) First() (int64, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if len(a.profiles) == 0 {
		return 0, false
	}
	return a.profiles[0].UserID, true
}
