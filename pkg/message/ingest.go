package message

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/emersion/go-mbox"
	"github.com/jhillyerd/enmime/v2"
	"github.com/rs/zerolog/log"

	"github.com/listarchive/listarchive/pkg/extension/event"
	"github.com/listarchive/listarchive/pkg/identity"
	"github.com/listarchive/listarchive/pkg/metric"
	"github.com/listarchive/listarchive/pkg/sanitize"
	"github.com/listarchive/listarchive/pkg/storage"
)

// Ingest parses a raw message and archives it on listID, or on the list named by its List-Id
// header when listID is empty.  The returned mid is derived from the message content, so
// ingesting the same message again returns the same mid along with ErrDuplicate, and nothing is
// rewritten.
func (s *StoreManager) Ingest(listID string, private bool, raw []byte) (string, error) {
	mid, err := s.ingest(listID, private, raw)
	switch {
	case err == nil:
		metric.MessagesArchived.WithLabelValues("archived").Inc()
	case errors.Is(err, ErrDuplicate):
		metric.MessagesArchived.WithLabelValues("duplicate").Inc()
	default:
		metric.MessagesArchived.WithLabelValues("failed").Inc()
	}
	return mid, err
}

func (s *StoreManager) ingest(listID string, private bool, raw []byte) (string, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("parsing message: %w", err)
	}
	header := env.Root.Header

	listRaw := NormalizeListID(listID)
	if listRaw == "" {
		listRaw = NormalizeListID(header.Get("List-Id"))
	}
	inbound := event.InboundMessage{
		ListID:    listRaw,
		MessageID: strings.TrimSpace(header.Get("Message-Id")),
		From:      env.GetHeader("From"),
		Subject:   env.GetHeader("Subject"),
		Private:   private,
	}
	if s.ExtHost != nil {
		if result := s.ExtHost.Events.BeforeMessageArchived.Emit(&inbound); result != nil {
			inbound.ListID = NormalizeListID(result.ListID)
			inbound.Private = result.Private
		}
	}
	if inbound.ListID == "" {
		return "", ErrNoList
	}

	// Attachments are stored once per distinct content.
	var refs []storage.AttachmentRef
	var hashes []string
	attachments := make(map[string]*storage.Attachment)
	for _, p := range env.Attachments {
		sum := sha256.Sum256(p.Content)
		hash := hex.EncodeToString(sum[:])
		refs = append(refs, storage.AttachmentRef{
			Hash:        hash,
			Filename:    p.FileName,
			ContentType: p.ContentType,
			Size:        int64(len(p.Content)),
		})
		hashes = append(hashes, hash)
		if attachments[hash] == nil {
			attachments[hash] = &storage.Attachment{
				Hash:        hash,
				Filename:    p.FileName,
				ContentType: p.ContentType,
				Content:     p.Content,
			}
		}
	}

	idMsg := &identity.Message{
		Header: identity.Header{
			MessageID:  header.Get("Message-Id"),
			Date:       header.Get("Date"),
			ArchivedAt: header.Get("Archived-At"),
			From:       header.Get("From"),
			Subject:    header.Get("Subject"),
		},
		ListID:      inbound.ListID,
		Attachments: hashes,
	}
	if env.Text != "" || hasBodyPart(env.Root) {
		idMsg.Body = identity.TextBody(env.Text)
	}
	mid, err := s.generator().Generate(idMsg)
	if err != nil {
		return "", err
	}

	if _, err := s.Store.GetEmail(mid); err == nil {
		log.Debug().Str("module", "message").Str("mid", mid).Msg("Skipping duplicate message")
		return mid, ErrDuplicate
	} else if !errors.Is(err, storage.ErrNotExist) {
		return "", err
	}

	date, err := identity.ParseDate(header.Get("Date"))
	if err != nil {
		date = s.now()
	}
	email := &storage.Email{
		MID:         mid,
		MessageID:   inbound.MessageID,
		ListRaw:     inbound.ListID,
		Private:     inbound.Private,
		From:        inbound.From,
		Subject:     inbound.Subject,
		Date:        date.UTC(),
		Body:        env.Text,
		HTML:        sanitize.HTML(env.HTML),
		InReplyTo:   strings.TrimSpace(header.Get("In-Reply-To")),
		References:  strings.TrimSpace(header.Get("References")),
		Attachments: refs,
	}

	b := &storage.Batch{}
	b.PutEmail(email)
	b.PutSource(&storage.Source{MID: mid, Source: raw})
	for _, hash := range hashes {
		if a := attachments[hash]; a != nil {
			b.PutAttachment(a)
			delete(attachments, hash)
		}
	}
	if err := s.Store.Apply(b); err != nil {
		return "", err
	}
	if err := s.Store.Refresh(); err != nil {
		return "", err
	}

	log.Debug().Str("module", "message").Str("mid", mid).Str("list", email.ListRaw).
		Bool("private", email.Private).Msg("Archived message")
	if s.ExtHost != nil {
		s.ExtHost.Events.AfterMessageArchived.Emit(&event.MessageMetadata{
			MID:       mid,
			MessageID: email.MessageID,
			ListRaw:   email.ListRaw,
			From:      email.From,
			Subject:   email.Subject,
			Date:      email.Date,
			Private:   email.Private,
		})
	}
	return mid, nil
}

// hasBodyPart reports whether the part tree holds an inline text or HTML part, empty or not.
// A part without a content type is a non-MIME body.
func hasBodyPart(p *enmime.Part) bool {
	for ; p != nil; p = p.NextSibling {
		switch {
		case p.Disposition == "attachment":
		case p.ContentType == "", p.ContentType == "text/plain", p.ContentType == "text/html":
			return true
		case hasBodyPart(p.FirstChild):
			return true
		}
	}
	return false
}

// ImportMbox ingests every message of an mbox stream.  Individual message failures are logged
// and counted; an error is returned only if the mbox itself cannot be read.
func (s *StoreManager) ImportMbox(listID string, private bool, r io.Reader) (*ImportResult, error) {
	result := &ImportResult{}
	mr := mbox.NewReader(r)
	for n := 1; ; n++ {
		msg, err := mr.NextMessage()
		if errors.Is(err, io.EOF) {
			return result, nil
		}
		if err != nil {
			return result, fmt.Errorf("reading mbox message %d: %w", n, err)
		}
		raw, err := io.ReadAll(msg)
		if err != nil {
			return result, fmt.Errorf("reading mbox message %d: %w", n, err)
		}
		mid, err := s.Ingest(listID, private, raw)
		switch {
		case err == nil:
			result.Archived++
		case errors.Is(err, ErrDuplicate):
			result.Duplicates++
		default:
			result.Failed++
			log.Warn().Str("module", "message").Int("message", n).Err(err).
				Msg("Failed to import mbox message")
			continue
		}
		log.Debug().Str("module", "message").Int("message", n).Str("mid", mid).
			Msg("Imported mbox message")
	}
}

// NormalizeListID returns the angle bracketed list id found in s, which may be a bare list id or
// a List-Id header value such as "Dev List <dev.example.org>".
func NormalizeListID(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if i := strings.LastIndexByte(s, '<'); i >= 0 {
		if j := strings.IndexByte(s[i:], '>'); j > 0 {
			s = s[i+1 : i+j]
		}
	}
	s = strings.Trim(strings.TrimSpace(s), "<>")
	if s == "" {
		return ""
	}
	return "<" + s + ">"
}
