package mem

import (
	"sync"

	"github.com/listarchive/listarchive/pkg/config"
	"github.com/listarchive/listarchive/pkg/storage"
)

// Store implements an in-memory document store.  Documents are copied on the way in and out, so
// callers never share state with the store.
type Store struct {
	sync.RWMutex
	emails      map[string]*storage.Email
	sources     map[string]*storage.Source
	attachments map[string]*storage.Attachment
	audit       []*storage.AuditEntry
}

var _ storage.Store = &Store{}

// New returns an empty memory store.
func New(cfg config.Storage) (storage.Store, error) {
	return &Store{
		emails:      make(map[string]*storage.Email),
		sources:     make(map[string]*storage.Source),
		attachments: make(map[string]*storage.Attachment),
	}, nil
}

// GetEmail gets an email by mid.
func (s *Store) GetEmail(mid string) (*storage.Email, error) {
	s.RLock()
	defer s.RUnlock()
	e, ok := s.emails[mid]
	if !ok {
		return nil, storage.ErrNotExist
	}
	return e.Clone(), nil
}

// FindEmails returns the emails matching q, ordered by date.
func (s *Store) FindEmails(q storage.Query) ([]*storage.Email, error) {
	s.RLock()
	defer s.RUnlock()
	emails := make([]*storage.Email, 0)
	for _, e := range s.emails {
		if q.Match(e) {
			emails = append(emails, e.Clone())
		}
	}
	storage.SortEmails(emails)
	return emails, nil
}

// GetSource gets the source document for a mid.
func (s *Store) GetSource(mid string) (*storage.Source, error) {
	s.RLock()
	defer s.RUnlock()
	src, ok := s.sources[mid]
	if !ok {
		return nil, storage.ErrNotExist
	}
	return src.Clone(), nil
}

// GetAttachment gets an attachment by content hash.
func (s *Store) GetAttachment(hash string) (*storage.Attachment, error) {
	s.RLock()
	defer s.RUnlock()
	a, ok := s.attachments[hash]
	if !ok {
		return nil, storage.ErrNotExist
	}
	c := *a
	c.Content = append([]byte(nil), a.Content...)
	return &c, nil
}

// Apply writes the batch while holding the write lock.
func (s *Store) Apply(b *storage.Batch) error {
	if b.Empty() {
		return nil
	}
	s.Lock()
	defer s.Unlock()
	for _, e := range b.Emails {
		s.emails[e.MID] = e.Clone()
	}
	for _, src := range b.Sources {
		s.sources[src.MID] = src.Clone()
	}
	for _, a := range b.Attachments {
		c := *a
		c.Content = append([]byte(nil), a.Content...)
		s.attachments[a.Hash] = &c
	}
	for _, mid := range b.DeleteEmails {
		delete(s.emails, mid)
	}
	for _, mid := range b.DeleteSources {
		delete(s.sources, mid)
	}
	for _, hash := range b.DeleteAttachments {
		delete(s.attachments, hash)
	}
	for _, entry := range b.Audit {
		c := *entry
		c.Documents = append([]string(nil), entry.Documents...)
		s.audit = append(s.audit, &c)
	}
	return nil
}

// AuditEntries returns the audit log, oldest first.
func (s *Store) AuditEntries() ([]*storage.AuditEntry, error) {
	s.RLock()
	defer s.RUnlock()
	entries := make([]*storage.AuditEntry, len(s.audit))
	for i, entry := range s.audit {
		c := *entry
		c.Documents = append([]string(nil), entry.Documents...)
		entries[i] = &c
	}
	return entries, nil
}

// Refresh is a no-op, applied batches are visible immediately.
func (s *Store) Refresh() error {
	return nil
}

// Close is a no-op for the memory store.
func (s *Store) Close() error {
	return nil
}

// Count returns the number of stored emails.
func (s *Store) Count() (int, error) {
	s.RLock()
	defer s.RUnlock()
	return len(s.emails), nil
}
