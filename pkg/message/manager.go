package message

import (
	"errors"
	"strings"
	"time"

	"github.com/listarchive/listarchive/pkg/extension"
	"github.com/listarchive/listarchive/pkg/identity"
	"github.com/listarchive/listarchive/pkg/metric"
	"github.com/listarchive/listarchive/pkg/policy"
	"github.com/listarchive/listarchive/pkg/storage"
)

// StoreManager is a message Manager backed by the storage.Store.
type StoreManager struct {
	Store     storage.Store
	ExtHost   *extension.Host
	Generator *identity.Generator
	// Now supplies the archive date for messages without a usable Date header.
	Now func() time.Time
}

var _ Manager = &StoreManager{}

func (s *StoreManager) generator() *identity.Generator {
	if s.Generator == nil {
		return identity.New(identity.Cluster)
	}
	return s.Generator
}

func (s *StoreManager) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// resolve finds the emails an id may refer to: the email with that permalink, or else every
// email with that message-id, optionally restricted to one list.
func (s *StoreManager) resolve(id, listID string) ([]*storage.Email, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}
	email, err := s.Store.GetEmail(id)
	if err == nil {
		return []*storage.Email{email}, nil
	}
	if !errors.Is(err, storage.ErrNotExist) {
		return nil, err
	}
	q := storage.Query{MessageID: id, ListRaw: NormalizeListID(listID)}
	emails, err := s.Store.FindEmails(q)
	if err != nil {
		return nil, err
	}
	if len(emails) == 0 && !strings.HasPrefix(id, "<") {
		q.MessageID = "<" + id + ">"
		return s.Store.FindEmails(q)
	}
	return emails, nil
}

// GetEmail returns the first email resolved by id that caps may see.  A denial is reported as
// storage.ErrNotExist.
func (s *StoreManager) GetEmail(caps policy.Capabilities, id, listID string) (*storage.Email, error) {
	emails, err := s.resolve(id, listID)
	if err != nil {
		return nil, err
	}
	for _, e := range emails {
		if policy.CanAccessEmail(caps, e) {
			return e, nil
		}
	}
	if len(emails) > 0 {
		metric.AccessDenied.WithLabelValues("email").Inc()
	}
	return nil, storage.ErrNotExist
}

// GetSource returns the raw source of the first email resolved by id whose source caps may
// read.  A denial is reported as storage.ErrNotExist.
func (s *StoreManager) GetSource(caps policy.Capabilities, id, listID string) (*storage.Source, error) {
	emails, err := s.resolve(id, listID)
	if err != nil {
		return nil, err
	}
	for _, e := range emails {
		src, err := s.Store.GetSource(e.MID)
		if errors.Is(err, storage.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if policy.CanAccessSource(caps, src, e) {
			return src, nil
		}
	}
	if len(emails) > 0 {
		metric.AccessDenied.WithLabelValues("source").Inc()
	}
	return nil, storage.ErrNotExist
}

// GetAttachment returns an attachment of the email mid, if caps may see the email.
func (s *StoreManager) GetAttachment(
	caps policy.Capabilities,
	mid, hash string,
) (*storage.Attachment, error) {
	email, err := s.Store.GetEmail(mid)
	if err != nil {
		return nil, err
	}
	if !policy.CanAccessAttachment(caps, email, hash) {
		metric.AccessDenied.WithLabelValues("attachment").Inc()
		return nil, storage.ErrNotExist
	}
	return s.Store.GetAttachment(hash)
}

// visible returns the emails matching q that caps may see, oldest first.
func (s *StoreManager) visible(caps policy.Capabilities, q storage.Query) ([]*storage.Email, error) {
	emails, err := s.Store.FindEmails(q)
	if err != nil {
		return nil, err
	}
	result := emails[:0]
	for _, e := range emails {
		if policy.CanAccessEmail(caps, e) {
			result = append(result, e)
		}
	}
	return result, nil
}

// Stats summarizes the emails of a list visible to caps.
func (s *StoreManager) Stats(caps policy.Capabilities, q ListQuery) (*Stats, error) {
	listRaw := q.ListRaw()
	all, err := s.visible(caps, storage.Query{ListRaw: listRaw})
	if err != nil {
		return nil, err
	}
	stats := &Stats{
		ListRaw:      listRaw,
		Emails:       make([]*storage.Email, 0),
		Participants: make(map[string]int),
	}
	if len(all) > 0 {
		first, last := all[0].Date, all[len(all)-1].Date
		stats.FirstYear, stats.FirstMonth = first.Year(), int(first.Month())
		stats.LastYear, stats.LastMonth = last.Year(), int(last.Month())
	}
	window := q.Window.Query(listRaw)
	for _, e := range all {
		if window.Match(e) {
			stats.Emails = append(stats.Emails, e)
			stats.Participants[e.From]++
		}
	}
	return stats, nil
}

// Lists counts the emails visible to caps, by domain and list name.
func (s *StoreManager) Lists(caps policy.Capabilities) (map[string]map[string]int, error) {
	emails, err := s.visible(caps, storage.Query{})
	if err != nil {
		return nil, err
	}
	lists := make(map[string]map[string]int)
	for _, e := range emails {
		name, domain := SplitListID(e.ListRaw)
		if lists[domain] == nil {
			lists[domain] = make(map[string]int)
		}
		lists[domain][name]++
	}
	return lists, nil
}

// SplitListID splits a list id such as <dev.example.org> into its name and domain.
func SplitListID(listID string) (name, domain string) {
	bare := policy.BareListID(listID)
	name, domain, _ = strings.Cut(bare, ".")
	return name, domain
}
