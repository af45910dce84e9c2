// Package dedup guards against reprocessing of redelivered messages.
package dedup

import "sync"

// Guard tracks message identities already processed. The set is unbounded
// for the process lifetime; identities are bounded by real traffic volume
// and the host restarts the process periodically.
type Guard struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewGuard returns an empty Guard.
func NewGuard() *Guard {
	return &Guard{seen: make(map[string]struct{})}
}

// Observe records id and reports whether it is new. The first call for a
// given id returns true (proceed); every later call returns false (skip).
// Callers must check before any enrichment work, not only before
// persistence.
func (g *Guard) Observe(id string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, dup := g.seen[id]; dup {
		return false
	}
	g.seen[id] = struct{}{}
	return true
}

// Len returns the number of identities observed so far.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.seen)
}
