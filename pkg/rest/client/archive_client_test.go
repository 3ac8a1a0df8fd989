package client

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientGetEmail(t *testing.T) {
	mth := &mockHTTPClient{body: `{"mid": "abc", "list_raw": "<dev.example.org>", "private": true}`}
	c := &Client{restClient{client: mth, baseURL: baseURL}}

	email, err := c.GetEmail(context.Background(), "<m@example.org>", "<dev.example.org>")
	require.NoError(t, err)
	assert.Equal(t, "abc", email.MID)
	assert.True(t, email.Private)
	assert.Equal(t, "/api/email", mth.req.URL.Path)
	assert.Equal(t, "<m@example.org>", mth.req.URL.Query().Get("id"))
	assert.Equal(t, "<dev.example.org>", mth.req.URL.Query().Get("listid"))
}

func TestClientGetStats(t *testing.T) {
	mth := &mockHTTPClient{body: `{"hits": 3, "firstYear": 2019}`}
	c := &Client{restClient{client: mth, baseURL: baseURL}}

	stats, err := c.GetStats(context.Background(), Stats{List: "dev", Domain: "example.org"})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Hits)
	assert.Equal(t, 2019, stats.FirstYear)
	q := mth.req.URL.Query()
	assert.Equal(t, "dev", q.Get("list"))
	assert.Equal(t, "example.org", q.Get("domain"))
	assert.False(t, q.Has("d"))
}

func TestClientModerate(t *testing.T) {
	mth := &mockHTTPClient{body: "Removed 2 emails from archives."}
	c := &Client{restClient{client: mth, baseURL: baseURL, token: "t"}}

	private := true
	text, err := c.Moderate(context.Background(), &ModerationRequest{
		Action:    "delete",
		Documents: []string{"a", "b"},
		Private:   &private,
	})
	require.NoError(t, err)
	assert.Equal(t, "Removed 2 emails from archives.", text)
	assert.Equal(t, "POST", mth.req.Method)
	assert.Equal(t, "/api/mgmt", mth.req.URL.Path)
	assert.JSONEq(t, `{"action": "delete", "documents": ["a", "b"], "private": true}`,
		string(mth.ReqBody()))
}

func TestClientModerateValidation(t *testing.T) {
	mth := &mockHTTPClient{
		statusCode: http.StatusBadRequest,
		body:       `{"error": "Author field must be a text string!", "field": "from"}`,
	}
	c := &Client{restClient{client: mth, baseURL: baseURL}}

	_, err := c.Moderate(context.Background(), &ModerationRequest{Action: "edit"})
	var rerr *Error
	require.True(t, errors.As(err, &rerr))
	assert.Equal(t, "from", rerr.Field)
	assert.Contains(t, err.Error(), "Author field must be a text string!")
}

func TestClientAuditLog(t *testing.T) {
	mth := &mockHTTPClient{body: `{"entries": [{"action": "hide", "affected": 1}]}`}
	c := &Client{restClient{client: mth, baseURL: baseURL}}

	entries, err := c.AuditLog(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "hide", entries[0].Action)
	assert.Equal(t, 1, entries[0].Affected)
}

func TestNewOptions(t *testing.T) {
	c, err := New("http://localhost:8080", WithClientOptsToken("tok"))
	require.NoError(t, err)
	assert.Equal(t, "tok", c.token)
	assert.Equal(t, "localhost:8080", c.baseURL.Host)
}
