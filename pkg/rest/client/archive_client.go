// Package client provides a basic REST client for the list archive
package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/listarchive/listarchive/pkg/rest/model"
)

// Client accesses the archive REST API
type Client struct {
	restClient
}

// New creates a new REST API client given the base URL of an archive server, ex:
// "http://localhost:8080"
func New(baseURL string, opts ...func(*ClientOptions)) (*Client, error) {
	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	options := getDefaultClientOptions()
	for _, opt := range opts {
		opt(options)
	}
	c := &Client{
		restClient{
			client: &http.Client{
				Transport: options.transport,
				Timeout:   options.timeout,
			},
			baseURL: parsedURL,
			token:   options.token,
		},
	}
	return c, nil
}

// Stats selects a list and a date window, see the d parameter of the stats endpoint.
type Stats struct {
	List   string
	Domain string
	Window string
}

func (s Stats) query() url.Values {
	q := url.Values{}
	q.Set("list", s.List)
	q.Set("domain", s.Domain)
	if s.Window != "" {
		q.Set("d", s.Window)
	}
	return q
}

// ModerationRequest is sent to the management endpoint.
type ModerationRequest struct {
	Action    string   `json:"action"`
	Documents []string `json:"documents,omitempty"`
	From      string   `json:"from,omitempty"`
	Subject   string   `json:"subject,omitempty"`
	List      string   `json:"list,omitempty"`
	Body      string   `json:"body,omitempty"`
	Private   *bool    `json:"private,omitempty"`
}

// GetEmail returns an email given its permalink or message-id.  listID optionally restricts
// message-id lookups to one list.
func (c *Client) GetEmail(ctx context.Context, id, listID string) (*model.JSONEmail, error) {
	q := url.Values{"id": {id}}
	if listID != "" {
		q.Set("listid", listID)
	}
	email := &model.JSONEmail{}
	if err := c.doJSON(ctx, "GET", "/api/email", q, nil, email); err != nil {
		return nil, err
	}
	return email, nil
}

// GetSource returns the raw source of an email.
func (c *Client) GetSource(ctx context.Context, id string) ([]byte, error) {
	return c.doBytes(ctx, "GET", "/api/source", url.Values{"id": {id}}, nil)
}

// GetAttachment returns attachment content given the email mid and attachment hash.
func (c *Client) GetAttachment(ctx context.Context, mid, hash string) ([]byte, error) {
	return c.doBytes(ctx, "GET", "/api/attachment", url.Values{"id": {mid}, "file": {hash}}, nil)
}

// GetStats returns the summary of a list.
func (c *Client) GetStats(ctx context.Context, s Stats) (*model.JSONStats, error) {
	stats := &model.JSONStats{}
	if err := c.doJSON(ctx, "GET", "/api/stats", s.query(), nil, stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// GetMbox returns the visible sources of a list in mbox format.
func (c *Client) GetMbox(ctx context.Context, s Stats) ([]byte, error) {
	return c.doBytes(ctx, "GET", "/api/mbox", s.query(), nil)
}

// GetPreferences returns the caller credentials and the visible lists.
func (c *Client) GetPreferences(ctx context.Context) (*model.JSONPreferences, error) {
	prefs := &model.JSONPreferences{}
	if err := c.doJSON(ctx, "GET", "/api/preferences", nil, nil, prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}

// Moderate applies a moderation request and returns the outcome text.
func (c *Client) Moderate(ctx context.Context, req *ModerationRequest) (string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	text, err := c.doBytes(ctx, "POST", "/api/mgmt", nil, body)
	return string(text), err
}

// AuditLog returns the moderation audit log.
func (c *Client) AuditLog(ctx context.Context) ([]*model.JSONAuditEntry, error) {
	log := &model.JSONAuditLog{}
	if err := c.doJSON(ctx, "GET", "/api/log", nil, nil, log); err != nil {
		return nil, err
	}
	return log.Entries, nil
}
