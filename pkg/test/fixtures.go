package test

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Raw builds raw RFC 5322 messages for tests.
type Raw struct {
	MessageID string
	ListID    string
	From      string
	Subject   string
	Date      time.Time
	Body      string
	// Attachments maps file names to text content.
	Attachments map[string]string
	// Headers holds extra header lines, ex: Return-Path: <bounce@example.org>
	Headers []string
}

// Bytes renders the message, as multipart/mixed when it has attachments.  Attachment parts follow
// the order of names, or sorted file name order when names is empty.
func (r Raw) Bytes(names ...string) []byte {
	b := &strings.Builder{}
	for _, h := range r.Headers {
		b.WriteString(h + "\r\n")
	}
	if r.MessageID != "" {
		fmt.Fprintf(b, "Message-ID: %s\r\n", r.MessageID)
	}
	if r.ListID != "" {
		fmt.Fprintf(b, "List-Id: %s\r\n", r.ListID)
	}
	fmt.Fprintf(b, "From: %s\r\n", r.From)
	fmt.Fprintf(b, "Subject: %s\r\n", r.Subject)
	if !r.Date.IsZero() {
		fmt.Fprintf(b, "Date: %s\r\n", r.Date.Format(time.RFC1123Z))
	}
	b.WriteString("MIME-Version: 1.0\r\n")
	if len(r.Attachments) == 0 {
		b.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		b.WriteString(r.Body)
		return []byte(b.String())
	}
	const boundary = "test-boundary-42"
	fmt.Fprintf(b, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", boundary)
	fmt.Fprintf(b, "--%s\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n", boundary, r.Body)
	if len(names) == 0 {
		for name := range r.Attachments {
			names = append(names, name)
		}
		sort.Strings(names)
	}
	for _, name := range names {
		fmt.Fprintf(b, "--%s\r\n", boundary)
		fmt.Fprintf(b, "Content-Type: text/plain; name=%q\r\n", name)
		fmt.Fprintf(b, "Content-Disposition: attachment; filename=%q\r\n\r\n", name)
		b.WriteString(r.Attachments[name] + "\r\n")
	}
	fmt.Fprintf(b, "--%s--\r\n", boundary)
	return []byte(b.String())
}

// Sample returns a public message for list dev.example.org dated in January 2022; n varies
// the message id, subject and body.
func Sample(n int) Raw {
	return Raw{
		MessageID: fmt.Sprintf("<msg%d@mail.example.org>", n),
		ListID:    "Developers <dev.example.org>",
		From:      fmt.Sprintf("Sender %d <sender%d@example.org>", n, n),
		Subject:   fmt.Sprintf("Message number %d", n),
		Date:      time.Date(2022, 1, 10+n, 12, 0, 0, 0, time.UTC),
		Body:      fmt.Sprintf("This is message %d.\r\n", n),
	}
}
