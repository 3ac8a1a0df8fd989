// Package moderation applies administrative actions to archived emails.
package moderation

import (
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/listarchive/listarchive/pkg/audit"
	"github.com/listarchive/listarchive/pkg/extension"
	"github.com/listarchive/listarchive/pkg/extension/event"
	"github.com/listarchive/listarchive/pkg/metric"
	"github.com/listarchive/listarchive/pkg/policy"
	"github.com/listarchive/listarchive/pkg/storage"
)

// Moderator applies moderation requests on behalf of a caller.
type Moderator interface {
	Apply(caps policy.Capabilities, req *Request) (*Result, error)
}

// Result describes the outcome of a moderation request.
type Result struct {
	Action    Action
	Affected  int
	Text      string
	Documents []string
	// Entries is only populated by the Log action.
	Entries []*audit.Entry
}

// Engine implements Moderator on top of a Store.  Every mutating action writes its changes and
// its audit entry in a single batch.
type Engine struct {
	Store   storage.Store
	Audit   *audit.Log
	ExtHost *extension.Host

	// mu serializes read-modify-write cycles against the store.
	mu sync.Mutex
}

var _ Moderator = &Engine{}

// New creates a moderation Engine.
func New(store storage.Store, auditLog *audit.Log, extHost *extension.Host) *Engine {
	return &Engine{Store: store, Audit: auditLog, ExtHost: extHost}
}

// Apply checks the caller is an admin, validates the request, then applies it.  Documents that
// do not exist are skipped without error, except for edit which reports storage.ErrNotExist.
func (m *Engine) Apply(caps policy.Capabilities, req *Request) (*Result, error) {
	if !caps.Admin {
		return nil, ErrForbidden
	}
	action, err := ParseAction(req.Action)
	if err != nil {
		return nil, err
	}
	if action == Log {
		entries, err := m.Audit.Entries(caps)
		if err != nil {
			return nil, err
		}
		return &Result{Action: Log, Affected: len(entries), Entries: entries}, nil
	}

	var ed *edit
	docs := req.DocumentIDs()
	if action == Edit {
		if ed, err = req.validateEdit(); err != nil {
			return nil, err
		}
		docs = []string{ed.document}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	b := &storage.Batch{}
	var n int
	var text string
	switch action {
	case Hide:
		n, err = m.setPrivate(b, docs, true)
		text = fmt.Sprintf("Hid %d emails from archives.", n)
	case Unhide:
		n, err = m.setPrivate(b, docs, false)
		text = fmt.Sprintf("Unhid %d emails from archives.", n)
	case Delete:
		n, err = m.delete(b, docs)
		text = fmt.Sprintf("Removed %d emails from archives.", n)
	case DelAtt:
		n, err = m.deleteAttachments(b, docs)
		text = fmt.Sprintf("Removed %d attachments from archives.", n)
	case Edit:
		n, err = m.edit(b, ed)
		text = "Email successfully saved"
	}
	if err != nil {
		return nil, err
	}

	entry := m.Audit.Stage(b, caps.User, action.String(), docs, n, text)
	if err := m.Store.Apply(b); err != nil {
		return nil, fmt.Errorf("applying %s: %w", action, err)
	}
	if err := m.Store.Refresh(); err != nil {
		return nil, err
	}

	metric.ModerationActions.WithLabelValues(action.String()).Inc()
	log.Info().Str("module", "moderation").Str("action", action.String()).Str("actor", caps.User).
		Strs("documents", docs).Int("affected", n).Msg(text)
	if m.ExtHost != nil {
		m.ExtHost.Events.AfterModeration.Emit(&event.Moderation{
			Action:    action.String(),
			Actor:     caps.User,
			Documents: append([]string(nil), docs...),
			Affected:  n,
			Outcome:   text,
			Timestamp: entry.Timestamp,
		})
	}
	return &Result{Action: action, Affected: n, Text: text, Documents: docs}, nil
}

func (m *Engine) setPrivate(b *storage.Batch, docs []string, private bool) (int, error) {
	n := 0
	for _, mid := range docs {
		e, err := m.Store.GetEmail(mid)
		if errors.Is(err, storage.ErrNotExist) {
			continue
		}
		if err != nil {
			return 0, err
		}
		e.Private = private
		b.PutEmail(e)
		n++
	}
	return n, nil
}

func (m *Engine) delete(b *storage.Batch, docs []string) (int, error) {
	n := 0
	for _, mid := range docs {
		_, err := m.Store.GetEmail(mid)
		if errors.Is(err, storage.ErrNotExist) {
			continue
		}
		if err != nil {
			return 0, err
		}
		b.DeleteEmail(mid)
		b.DeleteSource(mid)
		n++
	}
	return n, nil
}

// pending accumulates email and source changes while a delatt request is processed, so that
// later documents observe the effect of earlier ones.
type pending struct {
	store   storage.Store
	emails  map[string]*storage.Email
	sources map[string]*storage.Source
	removed map[string]bool
	order   []string
}

func (p *pending) email(e *storage.Email) *storage.Email {
	if c, ok := p.emails[e.MID]; ok {
		return c
	}
	p.emails[e.MID] = e
	p.order = append(p.order, e.MID)
	return e
}

// detach removes hash from the email and hides its source.
func (p *pending) detach(e *storage.Email, hash string) (bool, error) {
	refs := e.Attachments[:0]
	found := false
	for _, ref := range e.Attachments {
		if ref.Hash == hash {
			found = true
			continue
		}
		refs = append(refs, ref)
	}
	e.Attachments = refs
	if found {
		return true, p.hideSource(e.MID)
	}
	return false, nil
}

func (p *pending) hideSource(mid string) error {
	if _, ok := p.sources[mid]; ok {
		return nil
	}
	src, err := p.store.GetSource(mid)
	if errors.Is(err, storage.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	src.Deleted = true
	p.sources[mid] = src
	return nil
}

// referenced returns true if any email still references hash, taking pending changes into
// account.
func (p *pending) referenced(hash string) (bool, error) {
	emails, err := p.store.FindEmails(storage.Query{Attachment: hash})
	if err != nil {
		return false, err
	}
	for _, e := range emails {
		if c, ok := p.emails[e.MID]; ok {
			e = c
		}
		if e.HasAttachment(hash) {
			return true, nil
		}
	}
	return false, nil
}

func (p *pending) flush(b *storage.Batch) {
	for _, mid := range p.order {
		b.PutEmail(p.emails[mid])
		if src, ok := p.sources[mid]; ok {
			b.PutSource(src)
		}
	}
	for hash := range p.removed {
		b.DeleteAttachment(hash)
	}
}

// deleteAttachments handles two kinds of document id.  An attachment hash removes that
// attachment from every email referencing it.  An email mid removes all of its attachments,
// deleting attachment content no other email references.  Every email that loses an attachment
// has its source hidden.
func (m *Engine) deleteAttachments(b *storage.Batch, docs []string) (int, error) {
	p := &pending{
		store:   m.Store,
		emails:  make(map[string]*storage.Email),
		sources: make(map[string]*storage.Source),
		removed: make(map[string]bool),
	}
	n := 0
	for _, id := range docs {
		_, err := m.Store.GetAttachment(id)
		if err == nil {
			if p.removed[id] {
				continue
			}
			emails, err := m.Store.FindEmails(storage.Query{Attachment: id})
			if err != nil {
				return 0, err
			}
			for _, e := range emails {
				if _, err := p.detach(p.email(e), id); err != nil {
					return 0, err
				}
			}
			p.removed[id] = true
			n++
			continue
		}
		if !errors.Is(err, storage.ErrNotExist) {
			return 0, err
		}

		e, err := m.Store.GetEmail(id)
		if errors.Is(err, storage.ErrNotExist) {
			continue
		}
		if err != nil {
			return 0, err
		}
		e = p.email(e)
		hashes := make([]string, 0, len(e.Attachments))
		for _, ref := range e.Attachments {
			hashes = append(hashes, ref.Hash)
		}
		for _, hash := range hashes {
			ok, err := p.detach(e, hash)
			if err != nil {
				return 0, err
			}
			if !ok {
				continue
			}
			n++
			if p.removed[hash] {
				continue
			}
			still, err := p.referenced(hash)
			if err != nil {
				return 0, err
			}
			if !still {
				p.removed[hash] = true
			}
		}
	}
	p.flush(b)
	return n, nil
}

// edit rewrites the email fields named by ed.  A change to any text field also hides the
// source, which no longer matches the email.
func (m *Engine) edit(b *storage.Batch, ed *edit) (int, error) {
	e, err := m.Store.GetEmail(ed.document)
	if err != nil {
		return 0, err
	}
	changed := false
	set := func(field *string, v *string) {
		if v != nil && *v != *field {
			*field = *v
			changed = true
		}
	}
	set(&e.From, ed.from)
	set(&e.Subject, ed.subject)
	set(&e.ListRaw, ed.list)
	set(&e.Body, ed.body)
	if ed.private != nil {
		e.Private = *ed.private
	}
	b.PutEmail(e)

	if changed {
		src, err := m.Store.GetSource(e.MID)
		switch {
		case err == nil:
			src.Deleted = true
			b.PutSource(src)
		case !errors.Is(err, storage.ErrNotExist):
			return 0, err
		}
	}
	return 1, nil
}
