// Package message contains the archive logic shared by the transports: ingest of raw messages
// and the access controlled read paths.
package message

import (
	"errors"
	"io"
	"time"

	"github.com/listarchive/listarchive/pkg/policy"
	"github.com/listarchive/listarchive/pkg/storage"
)

var (
	// ErrDuplicate indicates an ingested message was already archived under the returned mid.
	ErrDuplicate = errors.New("message already archived")

	// ErrNoList indicates no list id was supplied and the message has no List-Id header.
	ErrNoList = errors.New("message has no list id")
)

// Manager is the interface controllers use to interact with the archive.
type Manager interface {
	Ingest(listID string, private bool, raw []byte) (mid string, err error)
	ImportMbox(listID string, private bool, r io.Reader) (*ImportResult, error)
	GetEmail(caps policy.Capabilities, id, listID string) (*storage.Email, error)
	GetSource(caps policy.Capabilities, id, listID string) (*storage.Source, error)
	GetAttachment(caps policy.Capabilities, mid, hash string) (*storage.Attachment, error)
	Stats(caps policy.Capabilities, q ListQuery) (*Stats, error)
	WriteMbox(caps policy.Capabilities, q ListQuery, w io.Writer) (int, error)
	Lists(caps policy.Capabilities) (map[string]map[string]int, error)
}

// ListQuery selects the emails of one list within a date window.
type ListQuery struct {
	// List is the list name, ex: dev; or a complete list id when Domain is empty.
	List   string
	Domain string
	Window Window
}

// ListRaw returns the angle bracketed list id selected by the query.
func (q ListQuery) ListRaw() string {
	if q.Domain == "" {
		return "<" + policy.BareListID(q.List) + ">"
	}
	return "<" + policy.BareListID(q.List) + "." + q.Domain + ">"
}

// Stats summarizes the visible emails of a list.
type Stats struct {
	ListRaw string
	// Emails holds the visible emails within the window, oldest first.
	Emails []*storage.Email
	// Participants counts visible emails within the window per sender.
	Participants map[string]int
	// First and last year and month span every visible email of the list, ignoring the window.
	FirstYear  int
	FirstMonth int
	LastYear   int
	LastMonth  int
}

// Hits returns the number of visible emails within the window.
func (s *Stats) Hits() int {
	return len(s.Emails)
}

// ImportResult counts the outcome of an mbox import.
type ImportResult struct {
	Archived   int
	Duplicates int
	Failed     int
}

// Window selects a date range; Since is inclusive, Until exclusive.  Zero values are unbounded.
type Window struct {
	Since time.Time
	Until time.Time
}

// Query returns a storage query for list within the window.
func (w Window) Query(listRaw string) storage.Query {
	return storage.Query{ListRaw: listRaw, Since: w.Since, Until: w.Until}
}
