package extension

import (
	"sync"
)

type listener[F any] struct {
	name string
	fn   F
}

// listeners is an ordered, named set of listener funcs.
type listeners[F any] []listener[F]

// put replaces a listener with the same name, or appends a new one.
func (ls listeners[F]) put(name string, fn F) listeners[F] {
	ls = ls.remove(name)
	return append(ls, listener[F]{name: name, fn: fn})
}

func (ls listeners[F]) remove(name string) listeners[F] {
	for i, l := range ls {
		if l.name == name {
			return append(ls[:i:i], ls[i+1:]...)
		}
	}
	return ls
}

func (ls listeners[F]) names() []string {
	names := make([]string, len(ls))
	for i, l := range ls {
		names[i] = l.name
	}
	return names
}

// EventBroker maintains a list of listeners interested in a specific type of event, each able
// to return a result of type R.
type EventBroker[E any, R any] struct {
	mu        sync.RWMutex
	listeners listeners[func(E) *R]
}

// Emit sends the provided event to each registered listener in order, until one returns a
// non-nil result.  That result is returned to the caller.
func (eb *EventBroker[E, R]) Emit(event *E) *R {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, l := range eb.listeners {
		// Listeners receive a copy of the event.
		if result := l.fn(*event); result != nil {
			return result
		}
	}
	return nil
}

// AddListener registers the named listener, replacing one with a duplicate name if present.
// Listeners should be added in order of priority, most significant first.
func (eb *EventBroker[E, R]) AddListener(name string, fn func(E) *R) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.listeners = eb.listeners.put(name, fn)
}

// RemoveListener unregisters the named listener.
func (eb *EventBroker[E, R]) RemoveListener(name string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.listeners = eb.listeners.remove(name)
}

// Listeners returns the registered listener names in priority order.
func (eb *EventBroker[E, R]) Listeners() []string {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return eb.listeners.names()
}
