// Package model holds the JSON documents served by the REST API.
package model

import (
	"time"
)

// DateFormat is the layout of the date field of emails.
const DateFormat = "2006/01/02 15:04:05"

// JSONEmail is a complete archived email.
type JSONEmail struct {
	MID         string            `json:"mid"`
	ID          string            `json:"id"`
	MessageID   string            `json:"message-id"`
	List        string            `json:"list"`
	ListRaw     string            `json:"list_raw"`
	Private     bool              `json:"private"`
	From        string            `json:"from"`
	Subject     string            `json:"subject"`
	Date        string            `json:"date"`
	Epoch       int64             `json:"epoch"`
	Body        string            `json:"body"`
	HTML        string            `json:"html"`
	InReplyTo   string            `json:"in-reply-to"`
	References  string            `json:"references"`
	Attachments []*JSONAttachment `json:"attachments"`
	Permalinks  []string          `json:"permalinks"`
}

// JSONAttachment describes an attachment of an email.
type JSONAttachment struct {
	Hash        string `json:"hash"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// JSONEmailSummary is the abbreviated email listed by stats.
type JSONEmailSummary struct {
	MID         string `json:"mid"`
	ID          string `json:"id"`
	MessageID   string `json:"message-id"`
	List        string `json:"list"`
	ListRaw     string `json:"list_raw"`
	Private     bool   `json:"private"`
	From        string `json:"from"`
	Subject     string `json:"subject"`
	Epoch       int64  `json:"epoch"`
	InReplyTo   string `json:"in-reply-to,omitempty"`
	Attachments int    `json:"attachments"`
}

// JSONParticipant counts the emails of one sender.
type JSONParticipant struct {
	From  string `json:"from"`
	Count int    `json:"count"`
}

// JSONStats summarizes a list.
type JSONStats struct {
	List         string              `json:"list"`
	Name         string              `json:"name"`
	Domain       string              `json:"domain"`
	Hits         int                 `json:"hits"`
	FirstYear    int                 `json:"firstYear"`
	FirstMonth   int                 `json:"firstMonth"`
	LastYear     int                 `json:"lastYear"`
	LastMonth    int                 `json:"lastMonth"`
	NumParts     int                 `json:"numparts"`
	Emails       []*JSONEmailSummary `json:"emails"`
	Participants []*JSONParticipant  `json:"participants,omitempty"`
}

// JSONLogin describes the caller.
type JSONLogin struct {
	Credentials *JSONCredentials `json:"credentials,omitempty"`
}

// JSONCredentials holds the identity of an authenticated caller.
type JSONCredentials struct {
	UID   string   `json:"uid"`
	Admin bool     `json:"admin"`
	Lists []string `json:"lists,omitempty"`
}

// JSONPreferences is the session and list overview.
type JSONPreferences struct {
	Login JSONLogin                 `json:"login"`
	Lists map[string]map[string]int `json:"lists"`
}

// JSONError reports a rejected request.  Field names the invalid request field, if any.
type JSONError struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

// JSONAuditEntry is one audit log record.
type JSONAuditEntry struct {
	ID        string    `json:"id"`
	Action    string    `json:"action"`
	Documents []string  `json:"documents"`
	Actor     string    `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Affected  int       `json:"affected"`
	Outcome   string    `json:"outcome"`
}

// JSONAuditLog is the response to the log action.
type JSONAuditLog struct {
	Entries []*JSONAuditEntry `json:"entries"`
}

// JSONMonitorEvent is sent to monitor sockets for each archive or moderation event.
type JSONMonitorEvent struct {
	Kind      string    `json:"kind"`
	MID       string    `json:"mid,omitempty"`
	MessageID string    `json:"message-id,omitempty"`
	List      string    `json:"list,omitempty"`
	From      string    `json:"from,omitempty"`
	Subject   string    `json:"subject,omitempty"`
	Date      time.Time `json:"date,omitzero"`
	Private   bool      `json:"private,omitempty"`
	Action    string    `json:"action,omitempty"`
	Actor     string    `json:"actor,omitempty"`
	Documents []string  `json:"documents,omitempty"`
	Affected  int       `json:"affected,omitempty"`
	Outcome   string    `json:"outcome,omitempty"`
}
