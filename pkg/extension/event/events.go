// Package event defines the payloads sent to extension listeners.
package event

import "time"

// InboundMessage describes a message about to be archived.  Before-listeners may return a copy
// with ListID or Private changed to redirect or restrict the message.
type InboundMessage struct {
	ListID    string
	MessageID string
	From      string
	Subject   string
	Private   bool
}

// MessageMetadata describes an archived email.
type MessageMetadata struct {
	MID       string
	MessageID string
	ListRaw   string
	From      string
	Subject   string
	Date      time.Time
	Private   bool
}

// Moderation describes an applied moderation action.
type Moderation struct {
	Action    string
	Actor     string
	Documents []string
	Affected  int
	Outcome   string
	Timestamp time.Time
}
