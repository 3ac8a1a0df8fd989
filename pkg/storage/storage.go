// Package storage contains implementation independent document store logic
package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/listarchive/listarchive/pkg/config"
)

var (
	// ErrNotExist indicates the requested document does not exist
	ErrNotExist = errors.New("document does not exist")

	// Constructors tracks registered storage constructors
	Constructors = make(map[string]StoreConstructor)
)

// Store is the interface listarchive uses to read and write archived documents.  Emails, sources
// and attachments live in separate collections; audit entries are append only.
type Store interface {
	GetEmail(mid string) (*Email, error)
	FindEmails(q Query) ([]*Email, error)
	GetSource(mid string) (*Source, error)
	GetAttachment(hash string) (*Attachment, error)
	// Apply writes every change in the batch atomically: readers observe all or none of it.  An
	// empty batch is a no-op.
	Apply(b *Batch) error
	AuditEntries() ([]*AuditEntry, error)
	// Count returns the number of stored emails without loading them.
	Count() (int, error)
	// Refresh makes previously applied batches visible to subsequent reads.
	Refresh() error
	Close() error
}

// StoreConstructor represents the signature of a Store constructor.
type StoreConstructor func(config.Storage) (Store, error)

// FromConfig creates an instance of the Store based on the provided configuration.
func FromConfig(c config.Storage) (store Store, err error) {
	if cf := Constructors[c.Type]; cf != nil {
		return cf(c)
	}
	return nil, fmt.Errorf("unknown storage type configured: %q", c.Type)
}

// AttachmentRef links an email to an attachment document.
type AttachmentRef struct {
	Hash        string `json:"hash"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// Email holds the envelope and rendered body of one archived message.
type Email struct {
	MID         string
	MessageID   string
	ListRaw     string
	Private     bool
	From        string
	Subject     string
	Date        time.Time
	Body        string
	HTML        string
	InReplyTo   string
	References  string
	Attachments []AttachmentRef
}

// Epoch returns the message date as unix seconds.
func (e *Email) Epoch() int64 {
	return e.Date.Unix()
}

// HasAttachment returns true if the email references the attachment hash.
func (e *Email) HasAttachment(hash string) bool {
	for _, a := range e.Attachments {
		if a.Hash == hash {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the email.
func (e *Email) Clone() *Email {
	c := *e
	if e.Attachments != nil {
		c.Attachments = make([]AttachmentRef, len(e.Attachments))
		copy(c.Attachments, e.Attachments)
	}
	return &c
}

// Source holds the raw bytes of an archived message.  Deleted hides the source independently
// of the email visibility.
type Source struct {
	MID     string
	Source  []byte
	Deleted bool
}

// Clone returns a deep copy of the source.
func (s *Source) Clone() *Source {
	c := *s
	c.Source = append([]byte(nil), s.Source...)
	return &c
}

// Attachment holds attachment content, keyed by the hash of that content.
type Attachment struct {
	Hash        string
	Filename    string
	ContentType string
	Content     []byte
}

// AuditEntry records one moderation action.
type AuditEntry struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Documents []string  `json:"documents"`
	Actor     string    `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Affected  int       `json:"affected"`
	Outcome   string    `json:"outcome"`
}

// Query selects emails.  Empty fields match everything; Since is inclusive, Until exclusive.
type Query struct {
	MessageID  string
	ListRaw    string
	Attachment string
	Since      time.Time
	Until      time.Time
}

// Match returns true if the email satisfies the query.
func (q Query) Match(e *Email) bool {
	if q.MessageID != "" && e.MessageID != q.MessageID {
		return false
	}
	if q.ListRaw != "" && e.ListRaw != q.ListRaw {
		return false
	}
	if q.Attachment != "" && !e.HasAttachment(q.Attachment) {
		return false
	}
	if !q.Since.IsZero() && e.Date.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && !e.Date.Before(q.Until) {
		return false
	}
	return true
}
