package extension

import (
	"errors"
	"sync"
	"time"
)

// AsyncEventBroker maintains a list of listeners interested in a specific type of event.
// Events are sent in parallel to all listeners, and no result is returned.
type AsyncEventBroker[E any] struct {
	mu        sync.RWMutex
	listeners listeners[func(E)]
}

// Emit sends the provided event to each registered listener in parallel.
func (eb *AsyncEventBroker[E]) Emit(event *E) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, l := range eb.listeners {
		go l.fn(*event)
	}
}

// AddListener registers the named listener, replacing one with a duplicate name if present.
func (eb *AsyncEventBroker[E]) AddListener(name string, fn func(E)) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.listeners = eb.listeners.put(name, fn)
}

// RemoveListener unregisters the named listener.
func (eb *AsyncEventBroker[E]) RemoveListener(name string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.listeners = eb.listeners.remove(name)
}

// Listeners returns the registered listener names.
func (eb *AsyncEventBroker[E]) Listeners() []string {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return eb.listeners.names()
}

// AsyncTestListener returns a func that waits for the next event and returns it, or times out
// with an error.  The listener unregisters itself after capacity events.
func (eb *AsyncEventBroker[E]) AsyncTestListener(name string, capacity int) func() (*E, error) {
	events := make(chan E, capacity)
	eb.AddListener(name, func(e E) {
		events <- e
	})

	count := 0
	return func() (*E, error) {
		count++
		defer func() {
			if count >= capacity {
				eb.RemoveListener(name)
			}
		}()

		select {
		case e := <-events:
			return &e, nil
		case <-time.After(2 * time.Second):
			return nil, errors.New("timeout waiting for event")
		}
	}
}
