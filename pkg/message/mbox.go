package message

import (
	"bytes"
	"errors"
	"io"
	"net/mail"
	"strings"

	"github.com/emersion/go-mbox"

	"github.com/listarchive/listarchive/pkg/policy"
	"github.com/listarchive/listarchive/pkg/storage"
)

// WriteMbox writes the raw sources of the list emails in the window that caps may read, oldest
// first, as an mbox stream.  Sources hidden by moderation are skipped unless caps is an admin.
// It returns the number of messages written.
func (s *StoreManager) WriteMbox(caps policy.Capabilities, q ListQuery, w io.Writer) (int, error) {
	emails, err := s.visible(caps, q.Window.Query(q.ListRaw()))
	if err != nil {
		return 0, err
	}
	mw := mbox.NewWriter(w)
	count := 0
	for _, e := range emails {
		src, err := s.Store.GetSource(e.MID)
		if errors.Is(err, storage.ErrNotExist) {
			continue
		}
		if err != nil {
			return count, err
		}
		if !policy.CanAccessSource(caps, src, e) {
			continue
		}
		msgw, err := mw.CreateMessage(envelopeSender(src.Source, e.From), e.Date)
		if err != nil {
			return count, err
		}
		if _, err := msgw.Write(src.Source); err != nil {
			return count, err
		}
		count++
	}
	return count, mw.Close()
}

// envelopeSender returns the address for the mbox From_ line: the Return-Path of the source,
// else the address in the From field.
func envelopeSender(source []byte, from string) string {
	if msg, err := mail.ReadMessage(bytes.NewReader(source)); err == nil {
		if rp := strings.Trim(strings.TrimSpace(msg.Header.Get("Return-Path")), "<>"); rp != "" {
			return rp
		}
	}
	if addr, err := mail.ParseAddress(from); err == nil {
		return addr.Address
	}
	return "MAILER-DAEMON"
}
