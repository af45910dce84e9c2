// Package session holds the process-wide view of the external client's
// most recent state and session code, replayed to late-joining viewers.
package session

import (
	"sync"
	"time"

	"github.com/chatwire/wabridge/internal/model"
)

// Snapshot has exactly one writer (the bus state/code handlers) and many
// readers (subscribers joining the fan-out, the status surface).
type Snapshot struct {
	mu     sync.RWMutex
	state  *model.StateChange
	code   string
	codeAt time.Time
}

// New returns an empty snapshot: state unknown, no cached code.
func New() *Snapshot {
	return &Snapshot{}
}

// SetState overwrites the last known connection state.
func (s *Snapshot) SetState(st *model.StateChange) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// State returns the last known connection state, or nil before the first
// state event.
func (s *Snapshot) State() *model.StateChange {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// SetCode caches a valid session code with its arrival time.
func (s *Snapshot) SetCode(code string, at time.Time) {
	s.mu.Lock()
	s.code = code
	s.codeAt = at
	s.mu.Unlock()
}

// ClearCode drops the cached code. A code is meaningless once the client
// has authenticated.
func (s *Snapshot) ClearCode() {
	s.mu.Lock()
	s.code = ""
	s.codeAt = time.Time{}
	s.mu.Unlock()
}

// Code returns the cached code and its arrival time. ok is false when no
// code is cached.
func (s *Snapshot) Code() (code string, at time.Time, ok bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.code, s.codeAt, s.code != ""
}

// CodeAge returns the age of the cached code, and false when none is
// cached.
func (s *Snapshot) CodeAge(now time.Time) (time.Duration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.code == "" {
		return 0, false
	}
	return now.Sub(s.codeAt), true
}
