package moderation_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listarchive/listarchive/pkg/audit"
	"github.com/listarchive/listarchive/pkg/config"
	"github.com/listarchive/listarchive/pkg/extension"
	"github.com/listarchive/listarchive/pkg/identity"
	"github.com/listarchive/listarchive/pkg/message"
	"github.com/listarchive/listarchive/pkg/moderation"
	"github.com/listarchive/listarchive/pkg/policy"
	"github.com/listarchive/listarchive/pkg/storage"
	"github.com/listarchive/listarchive/pkg/storage/mem"
	"github.com/listarchive/listarchive/pkg/test"
)

var (
	admin  = policy.Capabilities{User: "root", Authenticated: true, Admin: true}
	member = policy.Capabilities{User: "bob", Authenticated: true, Lists: []string{"dev.example.org"}}
)

type fixture struct {
	store   storage.Store
	manager *message.StoreManager
	engine  *moderation.Engine
	host    *extension.Host
}

func setup(t *testing.T) *fixture {
	t.Helper()
	store, err := mem.New(config.Storage{})
	require.NoError(t, err)
	host := extension.NewHost()
	auditLog := audit.New(store)
	auditLog.Now = func() time.Time { return time.Date(2022, 4, 1, 8, 0, 0, 0, time.UTC) }
	return &fixture{
		store: store,
		manager: &message.StoreManager{
			Store:     store,
			ExtHost:   host,
			Generator: identity.New(identity.Cluster),
			Now:       time.Now,
		},
		engine: moderation.New(store, auditLog, host),
		host:   host,
	}
}

func (f *fixture) ingest(t *testing.T, raw test.Raw) string {
	t.Helper()
	mid, err := f.manager.Ingest("", false, raw.Bytes())
	require.NoError(t, err)
	return mid
}

func (f *fixture) email(t *testing.T, mid string) *storage.Email {
	t.Helper()
	e, err := f.store.GetEmail(mid)
	require.NoError(t, err)
	return e
}

func (f *fixture) source(t *testing.T, mid string) *storage.Source {
	t.Helper()
	src, err := f.store.GetSource(mid)
	require.NoError(t, err)
	return src
}

func (f *fixture) audit(t *testing.T) []*storage.AuditEntry {
	t.Helper()
	entries, err := f.store.AuditEntries()
	require.NoError(t, err)
	return entries
}

func docs(ids ...string) []any {
	v := make([]any, len(ids))
	for i, id := range ids {
		v[i] = id
	}
	return v
}

func TestApplyRequiresAdmin(t *testing.T) {
	f := setup(t)
	mid := f.ingest(t, test.Sample(1))

	for _, caps := range []policy.Capabilities{policy.Anonymous(), member} {
		_, err := f.engine.Apply(caps, &moderation.Request{Action: "hide", Documents: docs(mid)})
		assert.ErrorIs(t, err, moderation.ErrForbidden)
	}
	// Unknown actions are still forbidden to non-admins.
	_, err := f.engine.Apply(member, &moderation.Request{Action: "explode"})
	assert.ErrorIs(t, err, moderation.ErrForbidden)

	assert.False(t, f.email(t, mid).Private)
	assert.Empty(t, f.audit(t))
}

func TestApplyUnknownAction(t *testing.T) {
	f := setup(t)
	_, err := f.engine.Apply(admin, &moderation.Request{Action: "explode"})
	assert.ErrorIs(t, err, moderation.ErrUnknownAction)
	assert.Empty(t, f.audit(t))
}

func TestHideUnhide(t *testing.T) {
	f := setup(t)
	mid1 := f.ingest(t, test.Sample(1))
	mid2 := f.ingest(t, test.Sample(2))

	result, err := f.engine.Apply(admin, &moderation.Request{
		Action:    "hide",
		Documents: docs(mid1, mid2, "missing", mid1),
	})
	require.NoError(t, err)
	assert.Equal(t, moderation.Hide, result.Action)
	assert.Equal(t, 2, result.Affected)
	assert.Equal(t, "Hid 2 emails from archives.", result.Text)
	assert.True(t, f.email(t, mid1).Private)
	assert.True(t, f.email(t, mid2).Private)

	result, err = f.engine.Apply(admin, &moderation.Request{Action: "unhide", Document: mid2})
	require.NoError(t, err)
	assert.Equal(t, "Unhid 1 emails from archives.", result.Text)
	assert.True(t, f.email(t, mid1).Private)
	assert.False(t, f.email(t, mid2).Private)

	entries := f.audit(t)
	require.Len(t, entries, 2)
	assert.Equal(t, "hide", entries[0].Action)
	assert.Equal(t, []string{mid1, mid2, "missing"}, entries[0].Documents)
	assert.Equal(t, 2, entries[0].Affected)
	assert.Equal(t, "root", entries[0].Actor)
	assert.Equal(t, "Hid 2 emails from archives.", entries[0].Outcome)
	assert.Equal(t, time.Date(2022, 4, 1, 8, 0, 0, 0, time.UTC), entries[0].Timestamp)
	assert.NotEmpty(t, entries[0].ID)
	assert.Equal(t, "unhide", entries[1].Action)
	assert.Equal(t, []string{mid2}, entries[1].Documents)
}

func TestNoMatchIsAudited(t *testing.T) {
	f := setup(t)
	result, err := f.engine.Apply(admin, &moderation.Request{Action: "hide", Documents: docs("nope")})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Affected)
	assert.Equal(t, "Hid 0 emails from archives.", result.Text)

	entries := f.audit(t)
	require.Len(t, entries, 1)
	assert.Equal(t, 0, entries[0].Affected)
}

func TestDelete(t *testing.T) {
	f := setup(t)
	raw := test.Sample(1)
	raw.Attachments = map[string]string{"a.txt": "shared content"}
	mid1 := f.ingest(t, raw)
	raw = test.Sample(2)
	raw.Attachments = map[string]string{"b.txt": "shared content"}
	mid2 := f.ingest(t, raw)
	hash := f.email(t, mid1).Attachments[0].Hash

	result, err := f.engine.Apply(admin, &moderation.Request{Action: "delete", Documents: docs(mid1)})
	require.NoError(t, err)
	assert.Equal(t, "Removed 1 emails from archives.", result.Text)

	_, err = f.store.GetEmail(mid1)
	assert.ErrorIs(t, err, storage.ErrNotExist)
	_, err = f.store.GetSource(mid1)
	assert.ErrorIs(t, err, storage.ErrNotExist)
	f.email(t, mid2)
	_, err = f.store.GetAttachment(hash)
	assert.NoError(t, err, "attachments are shared and survive email deletion")
}

func TestDelAttByHash(t *testing.T) {
	f := setup(t)
	raw := test.Sample(1)
	raw.Attachments = map[string]string{"a.txt": "shared content", "own.txt": "first only"}
	mid1 := f.ingest(t, raw)
	raw = test.Sample(2)
	raw.Attachments = map[string]string{"b.txt": "shared content"}
	mid2 := f.ingest(t, raw)
	mid3 := f.ingest(t, test.Sample(3))

	refs := f.email(t, mid1).Attachments
	require.Len(t, refs, 2)
	shared := refs[0].Hash
	own := refs[1].Hash
	require.Equal(t, shared, f.email(t, mid2).Attachments[0].Hash)

	result, err := f.engine.Apply(admin, &moderation.Request{Action: "delatt", Documents: docs(shared)})
	require.NoError(t, err)
	assert.Equal(t, "Removed 1 attachments from archives.", result.Text)

	_, err = f.store.GetAttachment(shared)
	assert.ErrorIs(t, err, storage.ErrNotExist)
	_, err = f.store.GetAttachment(own)
	assert.NoError(t, err)

	e1 := f.email(t, mid1)
	require.Len(t, e1.Attachments, 1)
	assert.Equal(t, own, e1.Attachments[0].Hash)
	assert.Empty(t, f.email(t, mid2).Attachments)
	assert.True(t, f.source(t, mid1).Deleted)
	assert.True(t, f.source(t, mid2).Deleted)
	assert.False(t, f.source(t, mid3).Deleted)
}

func TestDelAttByMID(t *testing.T) {
	f := setup(t)
	raw := test.Sample(1)
	raw.Attachments = map[string]string{"a.txt": "shared content", "own.txt": "first only"}
	mid1 := f.ingest(t, raw)
	raw = test.Sample(2)
	raw.Attachments = map[string]string{"b.txt": "shared content"}
	mid2 := f.ingest(t, raw)

	refs := f.email(t, mid1).Attachments
	shared := refs[0].Hash
	own := refs[1].Hash

	result, err := f.engine.Apply(admin, &moderation.Request{Action: "delatt", Documents: docs(mid1)})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Affected)
	assert.Equal(t, "Removed 2 attachments from archives.", result.Text)

	assert.Empty(t, f.email(t, mid1).Attachments)
	assert.True(t, f.source(t, mid1).Deleted)
	_, err = f.store.GetAttachment(own)
	assert.ErrorIs(t, err, storage.ErrNotExist)

	// Still referenced by the second email.
	_, err = f.store.GetAttachment(shared)
	assert.NoError(t, err)
	assert.Len(t, f.email(t, mid2).Attachments, 1)
	assert.False(t, f.source(t, mid2).Deleted)

	// Removing it from the second email as well drops the content.
	_, err = f.engine.Apply(admin, &moderation.Request{Action: "delatt", Documents: docs(mid2)})
	require.NoError(t, err)
	_, err = f.store.GetAttachment(shared)
	assert.ErrorIs(t, err, storage.ErrNotExist)
}

func TestEdit(t *testing.T) {
	f := setup(t)
	mid := f.ingest(t, test.Sample(1))

	result, err := f.engine.Apply(admin, &moderation.Request{
		Action:   "edit",
		Document: mid,
		Subject:  "Corrected subject",
		Body:     "Corrected body",
		List:     "<users.example.org>",
		Private:  "yes",
	})
	require.NoError(t, err)
	assert.Equal(t, "Email successfully saved", result.Text)
	assert.Equal(t, 1, result.Affected)

	e := f.email(t, mid)
	assert.Equal(t, "Corrected subject", e.Subject)
	assert.Equal(t, "Corrected body", e.Body)
	assert.Equal(t, "<users.example.org>", e.ListRaw)
	assert.Equal(t, "Sender 1 <sender1@example.org>", e.From)
	assert.True(t, e.Private)
	assert.True(t, f.source(t, mid).Deleted)

	entries := f.audit(t)
	require.Len(t, entries, 1)
	assert.Equal(t, "edit", entries[0].Action)
	assert.Equal(t, []string{mid}, entries[0].Documents)
}

func TestEditPrivacyOnlyKeepsSource(t *testing.T) {
	f := setup(t)
	mid := f.ingest(t, test.Sample(1))

	_, err := f.engine.Apply(admin, &moderation.Request{
		Action:   "edit",
		Document: mid,
		Subject:  "Message number 1",
		From:     "",
		Private:  true,
	})
	require.NoError(t, err)
	assert.True(t, f.email(t, mid).Private)
	assert.False(t, f.source(t, mid).Deleted)
}

func TestEditMissingEmail(t *testing.T) {
	f := setup(t)
	_, err := f.engine.Apply(admin, &moderation.Request{Action: "edit", Document: "abcd"})
	assert.ErrorIs(t, err, storage.ErrNotExist)
	assert.Empty(t, f.audit(t))
}

func TestEditValidation(t *testing.T) {
	tcs := []struct {
		name    string
		req     moderation.Request
		field   string
		message string
	}{
		{
			name:    "missing document",
			req:     moderation.Request{},
			field:   "document",
			message: "Document ID is missing or invalid",
		},
		{
			name:    "numeric document",
			req:     moderation.Request{Document: 1234.0},
			field:   "document",
			message: "Document ID is missing or invalid",
		},
		{
			name:    "from",
			req:     moderation.Request{Document: "abcd", From: 1234.0},
			field:   "from",
			message: "Author field must be a text string!",
		},
		{
			name:    "subject",
			req:     moderation.Request{Document: "abcd", Subject: []any{"a"}},
			field:   "subject",
			message: "Subject field must be a text string!",
		},
		{
			name:    "list type",
			req:     moderation.Request{Document: "abcd", List: true},
			field:   "list",
			message: "List ID field must be a text string!",
		},
		{
			name:    "list format",
			req:     moderation.Request{Document: "abcd", List: "dev.example.org"},
			field:   "list",
			message: "List ID field must match <foo.bar.baz> format!",
		},
		{
			name:    "list without dot",
			req:     moderation.Request{Document: "abcd", List: "<localhost>"},
			field:   "list",
			message: "List ID field must match <foo.bar.baz> format!",
		},
		{
			name:    "body",
			req:     moderation.Request{Document: "abcd", Body: map[string]any{}},
			field:   "body",
			message: "Email body must be a text string!",
		},
		{
			name:    "private",
			req:     moderation.Request{Document: "abcd", Private: "maybe"},
			field:   "private",
			message: "Private field must be a boolean!",
		},
		{
			name:    "first failure wins",
			req:     moderation.Request{Document: "abcd", From: 1.0, Body: 2.0},
			field:   "from",
			message: "Author field must be a text string!",
		},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			f := setup(t)
			req := tc.req
			req.Action = "edit"
			_, err := f.engine.Apply(admin, &req)
			var verr *moderation.ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
			assert.Equal(t, tc.message, verr.Message)
			assert.Empty(t, f.audit(t))
		})
	}
}

func TestModerationEvent(t *testing.T) {
	f := setup(t)
	mid := f.ingest(t, test.Sample(1))
	listener := f.host.Events.AfterModeration.AsyncTestListener("test", 1)

	_, err := f.engine.Apply(admin, &moderation.Request{Action: "hide", Documents: docs(mid)})
	require.NoError(t, err)

	got, err := listener()
	require.NoError(t, err)
	assert.Equal(t, "hide", got.Action)
	assert.Equal(t, "root", got.Actor)
	assert.Equal(t, []string{mid}, got.Documents)
	assert.Equal(t, 1, got.Affected)
	assert.Equal(t, "Hid 1 emails from archives.", got.Outcome)
}

func TestLogAction(t *testing.T) {
	f := setup(t)
	_, err := f.engine.Apply(admin, &moderation.Request{Action: "hide", Documents: docs("a")})
	require.NoError(t, err)
	_, err = f.engine.Apply(admin, &moderation.Request{Action: "delete", Documents: docs("b")})
	require.NoError(t, err)

	result, err := f.engine.Apply(admin, &moderation.Request{Action: "log"})
	require.NoError(t, err)
	assert.Equal(t, moderation.Log, result.Action)
	require.Len(t, result.Entries, 2)
	assert.Equal(t, "hide", result.Entries[0].Action)
	assert.Equal(t, "delete", result.Entries[1].Action)

	// Listing the log is not itself audited.
	assert.Len(t, f.audit(t), 2)
}
