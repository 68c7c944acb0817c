// Package eventemitter provides typed event targets that synchronously notify
// registered listeners.
//
// Listeners run on the emitting goroutine, in registration order. A listener
// that must not block the emitter should hand the event to its own goroutine.
//
// Example:
//
//	t := eventemitter.NewTarget[int]("count")
//	token := t.AddListener(func(ctx context.Context, n int) { fmt.Println(n) })
//	t.Emit(ctx, 3) // Output: 3
//	t.RemoveListener(token)
package eventemitter

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// ListenerToken is the token returned when a listener is added.
type ListenerToken string

// Listener handles one event.
type Listener[E any] func(ctx context.Context, ev E)

type registration[E any] struct {
	token   ListenerToken
	handler Listener[E]
}

// Target is a named event source. It is safe for concurrent use.
type Target[E any] struct {
	name      string
	mu        sync.RWMutex
	listeners []registration[E]
}

func NewTarget[E any](name string) *Target[E] {
	return &Target[E]{name: name}
}

func (t *Target[E]) Name() string {
	return t.name
}

// AddListener registers a listener and returns the token that removes it.
func (t *Target[E]) AddListener(listener Listener[E]) ListenerToken {
	t.mu.Lock()
	defer t.mu.Unlock()

	token := ListenerToken(uuid.NewString())
	t.listeners = append(t.listeners, registration[E]{token: token, handler: listener})
	return token
}

// RemoveListener removes a listener by token.
func (t *Target[E]) RemoveListener(token ListenerToken) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, l := range t.listeners {
		if l.token == token {
			t.listeners = slices.Delete(t.listeners, i, i+1)
			return true
		}
	}
	return false
}

// RemoveAllListeners removes every listener.
func (t *Target[E]) RemoveAllListeners() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	had := len(t.listeners) > 0
	t.listeners = nil
	return had
}

// Len returns the number of registered listeners.
func (t *Target[E]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.listeners)
}

// Emit calls each listener with the event and reports whether any was called.
// Listeners may add or remove listeners; changes apply from the next Emit.
func (t *Target[E]) Emit(ctx context.Context, ev E) bool {
	t.mu.RLock()
	listeners := slices.Clone(t.listeners)
	t.mu.RUnlock()

	if len(listeners) == 0 {
		return false
	}
	for _, l := range listeners {
		l.handler(ctx, ev)
	}
	return true
}
