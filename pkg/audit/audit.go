// Package audit records moderation actions in an append only log.
package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/listarchive/listarchive/pkg/policy"
	"github.com/listarchive/listarchive/pkg/storage"
)

// Entry is one audit log record.
type Entry = storage.AuditEntry

// Log appends to and lists the audit collection of a Store.
type Log struct {
	Store storage.Store
	// Now supplies entry timestamps; defaults to time.Now.
	Now func() time.Time
}

// New creates a Log on top of store.
func New(store storage.Store) *Log {
	return &Log{Store: store, Now: time.Now}
}

// Stage adds an entry to batch, so the entry commits together with the mutation it describes.
func (l *Log) Stage(
	b *storage.Batch,
	actor, action string,
	documents []string,
	affected int,
	outcome string,
) *Entry {
	docs := make([]string, len(documents))
	copy(docs, documents)
	e := &Entry{
		ID:        uuid.NewString(),
		Action:    action,
		Documents: docs,
		Actor:     actor,
		Timestamp: l.now().UTC(),
		Affected:  affected,
		Outcome:   outcome,
	}
	b.AppendAudit(e)
	return e
}

// Entries returns the log in insertion order.  Only admins may list the log.
func (l *Log) Entries(caps policy.Capabilities) ([]*Entry, error) {
	if !caps.Admin {
		return nil, policy.ErrForbidden
	}
	return l.Store.AuditEntries()
}

func (l *Log) now() time.Time {
	if l.Now == nil {
		return time.Now()
	}
	return l.Now()
}
