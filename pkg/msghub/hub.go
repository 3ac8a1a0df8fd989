// Package msghub keeps a short history of archive events and relays new ones to subscribers.
package msghub

import (
	"container/ring"
	"context"

	"github.com/listarchive/listarchive/pkg/extension"
	"github.com/listarchive/listarchive/pkg/extension/event"
)

// Length of msghub operation queue
const opChanLen = 100

// Kind identifies the type of a hub Event.
type Kind string

// Event kinds.
const (
	KindArchived   Kind = "archived"
	KindModeration Kind = "moderation"
)

// Event is an entry in the hub history.  Exactly one of Message or Moderation is set.
type Event struct {
	Kind       Kind
	Message    *event.MessageMetadata
	Moderation *event.Moderation
}

// Listener receives the contents of the history buffer, followed by new events.
type Listener interface {
	Receive(e Event) error
}

// Hub relays archive events on to its listeners.
type Hub struct {
	// history buffer, points at the next slot to write.  The following non-nil entry is oldest.
	history   *ring.Ring
	listeners map[Listener]struct{}
	opChan    chan func(h *Hub)
}

// New constructs a Hub which caches historyLen events in memory for playback to future
// listeners, and subscribes it to the archive and moderation events of extHost.  Start must be
// called to process events.
func New(historyLen int, extHost *extension.Host) *Hub {
	hub := &Hub{
		listeners: make(map[Listener]struct{}),
		opChan:    make(chan func(h *Hub), opChanLen),
	}
	if historyLen > 0 {
		hub.history = ring.New(historyLen)
	}

	extHost.Events.AfterMessageArchived.AddListener("msghub",
		func(msg event.MessageMetadata) {
			hub.Dispatch(Event{Kind: KindArchived, Message: &msg})
		})
	extHost.Events.AfterModeration.AddListener("msghub",
		func(mod event.Moderation) {
			if mod.Action == "delete" {
				hub.Forget(mod.Documents)
			}
			hub.Dispatch(Event{Kind: KindModeration, Moderation: &mod})
		})

	return hub
}

// Start runs the hub processing loop until ctx is canceled.
func (hub *Hub) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case op := <-hub.opChan:
			op(hub)
		}
	}
}

// Dispatch queues an event for broadcast by the hub.  The event is placed into the history
// buffer and then relayed to all registered listeners.
func (hub *Hub) Dispatch(e Event) {
	hub.opChan <- func(h *Hub) {
		if h.history != nil {
			h.history.Value = e
			h.history = h.history.Next()
		}

		// Listeners returning an error are dropped.
		for l := range h.listeners {
			if err := l.Receive(e); err != nil {
				delete(h.listeners, l)
			}
		}
	}
}

// Forget removes the archived events of the given mids from the history, so deleted emails are
// not replayed to new listeners.  The history keeps its capacity.
func (hub *Hub) Forget(mids []string) {
	drop := make(map[string]bool, len(mids))
	for _, mid := range mids {
		drop[mid] = true
	}
	hub.opChan <- func(h *Hub) {
		if h.history == nil {
			return
		}
		size := h.history.Len()
		kept := ring.New(size)
		h.history.Do(func(v any) {
			if v == nil {
				return
			}
			e := v.(Event)
			if e.Kind == KindArchived && drop[e.Message.MID] {
				return
			}
			kept.Value = e
			kept = kept.Next()
		})
		h.history = kept
	}
}

// AddListener registers a listener to receive broadcast events, after replaying the history.
func (hub *Hub) AddListener(l Listener) {
	hub.opChan <- func(h *Hub) {
		if h.history != nil {
			h.history.Do(func(v any) {
				if v != nil {
					_ = l.Receive(v.(Event))
				}
			})
		}
		h.listeners[l] = struct{}{}
	}
}

// RemoveListener deletes a listener registration, it will cease to receive events.
func (hub *Hub) RemoveListener(l Listener) {
	hub.opChan <- func(h *Hub) {
		delete(h.listeners, l)
	}
}

// Sync blocks until the hub has processed its queue up to this point, useful for unit tests.
func (hub *Hub) Sync() {
	done := make(chan struct{})
	hub.opChan <- func(h *Hub) {
		close(done)
	}
	<-done
}
