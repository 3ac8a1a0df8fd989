// Package identity generates the permalink ids (mids) assigned to archived messages.
//
// An id is a pure function of message derived bytes, so reimporting the same message yields
// the same id without consulting the store.  Three generator variants exist because an archive
// may hold history produced by any of them:
//
//	legacy   sha224(body)@epoch@list
//	medium   sha224(body + list + date)@list
//	cluster  r + sha224(trimmed body + message-id + date + from + subject + attachments)@list
//
// cluster is the recommended variant; the list id is appended but not hashed, so renaming a
// list does not change its message ids.
package identity

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// dateFormat is the normalized date representation fed into the hash, always UTC.
const dateFormat = "2006/01/02 15:04:05"

// nullDate is hashed by cluster when the Date header is absent or unparseable.
const nullDate = "(null)"

// ErrNoBody indicates a generator that requires a body was handed a message without one.
var ErrNoBody = errors.New("message body is missing")

// Variant selects an id generation algorithm.
type Variant int

// Generator variants.
const (
	Legacy Variant = iota + 1
	Medium
	Cluster
)

var variantNames = map[Variant]string{
	Legacy:  "legacy",
	Medium:  "medium",
	Cluster: "cluster",
}

// String returns the configuration name of the variant.
func (v Variant) String() string {
	if name, ok := variantNames[v]; ok {
		return name
	}
	return "Variant(" + strconv.Itoa(int(v)) + ")"
}

// ParseVariant returns the Variant for a configuration name.
func ParseVariant(name string) (Variant, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for v, n := range variantNames {
		if n == name {
			return v, nil
		}
	}
	return 0, fmt.Errorf("unknown id generator %q, want one of: legacy, medium, cluster", name)
}

// Header holds the raw header values read by the generators.  Missing headers are empty.
type Header struct {
	MessageID  string
	Date       string
	ArchivedAt string
	From       string
	Subject    string
}

// Message is the generator input.
type Message struct {
	Header Header
	// Body is the rendered body text; nil when the message has none.
	Body []byte
	// ListID is the list identifier, ex: <dev.example.org>
	ListID string
	// Attachments contains the content hashes of the message attachments, in message order.
	Attachments []string
}

// TextBody converts a decoded body into generator input, dropping invalid UTF-8 sequences.
func TextBody(s string) []byte {
	return []byte(strings.ToValidUTF8(s, ""))
}

// Generator assigns ids using the configured Variant.
type Generator struct {
	Variant Variant
	// Now supplies the wall clock fallback used by legacy and medium; defaults to time.Now.
	Now func() time.Time
}

// New returns a Generator for the variant.
func New(v Variant) *Generator {
	return &Generator{Variant: v, Now: time.Now}
}

// Generate returns the id for msg.
func (g *Generator) Generate(msg *Message) (string, error) {
	switch g.Variant {
	case Legacy:
		return LegacyID(msg)
	case Medium:
		return MediumID(msg, g.now())
	case Cluster:
		return ClusterID(msg), nil
	}
	return "", fmt.Errorf("unknown id generator %v", g.Variant)
}

func (g *Generator) now() time.Time {
	if g.Now == nil {
		return time.Now()
	}
	return g.Now()
}

// LegacyID hashes only the body; messages with identical bodies on the same list and date
// collide.  An unparseable Date header yields an epoch of 0.
func LegacyID(msg *Message) (string, error) {
	if msg.Body == nil {
		return "", ErrNoBody
	}
	var epoch int64
	if t, err := ParseDate(msg.Header.Date); err == nil {
		epoch = t.Unix()
	}
	sum := sha256.Sum224(msg.Body)
	return fmt.Sprintf("%x@%d@%s", sum, epoch, msg.ListID), nil
}

// MediumID hashes the body, list id and date.  The date falls back to Archived-At and then to
// now, the latter making the id non reproducible on reimport.
func MediumID(msg *Message, now time.Time) (string, error) {
	if msg.Body == nil {
		return "", ErrNoBody
	}
	date, err := ParseDate(msg.Header.Date)
	if err != nil {
		date, err = ParseDate(msg.Header.ArchivedAt)
		if err != nil {
			date = now
		}
	}
	buf := bytes.NewBuffer(nil)
	buf.Write(msg.Body)
	buf.WriteString(ascii(msg.ListID))
	buf.WriteString(date.UTC().Format(dateFormat))
	sum := sha256.Sum224(buf.Bytes())
	return fmt.Sprintf("%x@%s", sum, msg.ListID), nil
}

// ClusterID hashes data that is identical across archiver nodes.  Archived-At is never used,
// since archivers add it when missing.
func ClusterID(msg *Message) string {
	buf := bytes.NewBuffer(nil)
	buf.Write(bytes.TrimRight(msg.Body, " \t\r\n\v\f"))
	buf.WriteString(ascii(msg.Header.MessageID))
	if date, err := ParseDate(msg.Header.Date); err == nil {
		buf.WriteString(date.UTC().Format(dateFormat))
	} else {
		buf.WriteString(nullDate)
	}
	buf.WriteString(ascii(msg.Header.From))
	buf.WriteString(ascii(msg.Header.Subject))
	for _, h := range msg.Attachments {
		buf.WriteString(ascii(h))
	}
	sum := sha256.Sum224(buf.Bytes())
	return fmt.Sprintf("r%x@%s", sum, msg.ListID)
}

// ascii drops every byte outside of the 7-bit range.
func ascii(s string) string {
	return strings.Map(func(r rune) rune {
		if r > 127 {
			return -1
		}
		return r
	}, s)
}
