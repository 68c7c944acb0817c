package voxelstore

import (
	"fmt"
	"sync"
)

// Locks tracks which session holds each location within a process.
// The zero value is ready to use and safe for concurrent use.
type Locks struct {
	mu   sync.Mutex
	held map[string]string // location -> session ID
}

// Acquire takes the location for the session or fails with ErrLocationBusy.
func (l *Locks) Acquire(location, sessionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held == nil {
		l.held = make(map[string]string)
	}
	if holder, ok := l.held[location]; ok {
		return fmt.Errorf("%w: %q held by session %s", ErrLocationBusy, location, holder)
	}
	l.held[location] = sessionID
	return nil
}

// Release frees the location if the session holds it.
func (l *Locks) Release(location, sessionID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.held[location] != sessionID {
		return false
	}
	delete(l.held, location)
	return true
}
