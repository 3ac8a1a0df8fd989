// Package extension provides the event brokers other components use to observe the archive.
package extension

import (
	"github.com/listarchive/listarchive/pkg/extension/event"
)

// Host defines extension points for the archive.
type Host struct {
	Events *Events
}

// Events defines all the event types supported by the extension host.
//
// Before-events are processed synchronously; the first listener to respond with a non-nil value
// determines the outcome and later listeners are skipped.
//
// After-events are processed asynchronously with respect to the archive, each listener in its
// own goroutine.
type Events struct {
	AfterMessageArchived  AsyncEventBroker[event.MessageMetadata]
	AfterModeration       AsyncEventBroker[event.Moderation]
	BeforeMessageArchived EventBroker[event.InboundMessage, event.InboundMessage]
}

// NewHost creates a new extension host.
func NewHost() *Host {
	return &Host{Events: &Events{}}
}
