package scheduler

import "sync"

// watch holds the latest value of T and wakes every waiter when it changes.
type watch[T any] struct {
	val     T
	changed chan struct{}
	mu      sync.RWMutex
}

func newWatch[T any](v T) *watch[T] {
	return &watch[T]{val: v, changed: make(chan struct{})}
}

// Load returns the current value and a channel closed by the next Store.
func (w *watch[T]) Load() (T, <-chan struct{}) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.val, w.changed
}

// Store replaces the value and notifies waiters.
func (w *watch[T]) Store(v T) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.val = v
	close(w.changed)
	w.changed = make(chan struct{})
}
