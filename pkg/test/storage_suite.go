// Package test contains shared fixtures and suites for listarchive package tests.
package test

import (
	"testing"
	"time"

	"github.com/listarchive/listarchive/pkg/config"
	"github.com/listarchive/listarchive/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// StoreFactory returns a new store for the test suite.
type StoreFactory func(config.Storage) (store storage.Store, destroy func(), err error)

// StoreSuite runs a set of general tests on the provided Store.
func StoreSuite(t *testing.T, factory StoreFactory) {
	t.Helper()
	testCases := []struct {
		name string
		test func(*testing.T, storage.Store)
		conf config.Storage
	}{
		{"email round trip", testEmailRoundTrip, config.Storage{}},
		{"not exist", testNotExist, config.Storage{}},
		{"find by message-id", testFindByMessageID, config.Storage{}},
		{"find by list and window", testFindByListWindow, config.Storage{}},
		{"find by attachment", testFindByAttachment, config.Storage{}},
		{"source", testSource, config.Storage{}},
		{"attachment", testAttachment, config.Storage{}},
		{"delete", testDelete, config.Storage{}},
		{"replace", testReplace, config.Storage{}},
		{"audit order", testAuditOrder, config.Storage{}},
		{"sub-second window", testSubSecondWindow, config.Storage{}},
		{"count", testCount, config.Storage{}},
		{"empty batch", testEmptyBatch, config.Storage{}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			store, destroy, err := factory(tc.conf)
			if err != nil {
				t.Fatal(err)
			}
			tc.test(t, store)
			destroy()
		})
	}
}

var suiteDate = time.Date(2021, 6, 15, 12, 0, 0, 0, time.UTC)

func suiteEmail(mid, list string, offset time.Duration) *storage.Email {
	return &storage.Email{
		MID:       mid,
		MessageID: "<" + mid + "@example.org>",
		ListRaw:   list,
		From:      "Sender <sender@example.org>",
		Subject:   "subject " + mid,
		Date:      suiteDate.Add(offset),
		Body:      "body of " + mid,
	}
}

func apply(t *testing.T, store storage.Store, fill func(b *storage.Batch)) {
	t.Helper()
	b := &storage.Batch{}
	fill(b)
	require.NoError(t, store.Apply(b))
	require.NoError(t, store.Refresh())
}

// testEmailRoundTrip verifies every email field is stored and retrieved.
func testEmailRoundTrip(t *testing.T, store storage.Store) {
	want := &storage.Email{
		MID:        "r1@<dev.example.org>",
		MessageID:  "<one@example.org>",
		ListRaw:    "<dev.example.org>",
		Private:    true,
		From:       "Ann <ann@example.org>",
		Subject:    "Round trip",
		Date:       suiteDate,
		Body:       "plain body\n",
		HTML:       "<p>html body</p>",
		InReplyTo:  "<zero@example.org>",
		References: "<zero@example.org>",
		Attachments: []storage.AttachmentRef{
			{Hash: "h1", Filename: "one.txt", ContentType: "text/plain", Size: 10},
			{Hash: "h2", Filename: "two.png", ContentType: "image/png", Size: 20},
		},
	}
	apply(t, store, func(b *storage.Batch) { b.PutEmail(want) })

	got, err := store.GetEmail(want.MID)
	require.NoError(t, err)
	assert.True(t, want.Date.Equal(got.Date), "got date %v, want %v", got.Date, want.Date)
	got.Date = want.Date
	assert.Equal(t, want, got)
	assert.Equal(t, want.Date.Unix(), got.Epoch())
}

func testNotExist(t *testing.T, store storage.Store) {
	_, err := store.GetEmail("nope")
	assert.ErrorIs(t, err, storage.ErrNotExist)
	_, err = store.GetSource("nope")
	assert.ErrorIs(t, err, storage.ErrNotExist)
	_, err = store.GetAttachment("nope")
	assert.ErrorIs(t, err, storage.ErrNotExist)

	emails, err := store.FindEmails(storage.Query{})
	require.NoError(t, err)
	assert.Empty(t, emails)
	entries, err := store.AuditEntries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

// testFindByMessageID verifies a message-id may resolve to several emails, ordered by date.
func testFindByMessageID(t *testing.T, store storage.Store) {
	a := suiteEmail("a", "<dev.example.org>", time.Hour)
	b := suiteEmail("b", "<users.example.org>", 0)
	b.MessageID = a.MessageID
	c := suiteEmail("c", "<dev.example.org>", 0)
	apply(t, store, func(batch *storage.Batch) {
		batch.PutEmail(a)
		batch.PutEmail(b)
		batch.PutEmail(c)
	})

	got, err := store.FindEmails(storage.Query{MessageID: a.MessageID})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].MID)
	assert.Equal(t, "a", got[1].MID)
}

// testFindByListWindow verifies list filtering and the half open date window.
func testFindByListWindow(t *testing.T, store storage.Store) {
	apply(t, store, func(b *storage.Batch) {
		b.PutEmail(suiteEmail("early", "<dev.example.org>", -time.Hour))
		b.PutEmail(suiteEmail("start", "<dev.example.org>", 0))
		b.PutEmail(suiteEmail("middle", "<dev.example.org>", time.Minute))
		b.PutEmail(suiteEmail("end", "<dev.example.org>", time.Hour))
		b.PutEmail(suiteEmail("other", "<users.example.org>", time.Minute))
	})

	got, err := store.FindEmails(storage.Query{ListRaw: "<dev.example.org>"})
	require.NoError(t, err)
	assert.Equal(t, []string{"early", "start", "middle", "end"}, mids(got))

	got, err = store.FindEmails(storage.Query{
		ListRaw: "<dev.example.org>",
		Since:   suiteDate,
		Until:   suiteDate.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "middle"}, mids(got))

	got, err = store.FindEmails(storage.Query{Since: suiteDate.Add(time.Second)})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"middle", "other", "end"}, mids(got))
}

func testFindByAttachment(t *testing.T, store storage.Store) {
	a := suiteEmail("a", "<dev.example.org>", 0)
	a.Attachments = []storage.AttachmentRef{{Hash: "shared"}, {Hash: "only-a"}}
	b := suiteEmail("b", "<dev.example.org>", time.Second)
	b.Attachments = []storage.AttachmentRef{{Hash: "shared"}}
	apply(t, store, func(batch *storage.Batch) {
		batch.PutEmail(a)
		batch.PutEmail(b)
		batch.PutEmail(suiteEmail("c", "<dev.example.org>", 0))
	})

	got, err := store.FindEmails(storage.Query{Attachment: "shared"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, mids(got))
	got, err = store.FindEmails(storage.Query{Attachment: "only-a"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, mids(got))
}

func testSource(t *testing.T, store storage.Store) {
	raw := []byte("From: a@example.org\r\nSubject: hi\r\n\r\nbody\r\n")
	apply(t, store, func(b *storage.Batch) {
		b.PutSource(&storage.Source{MID: "m1", Source: raw})
	})
	got, err := store.GetSource("m1")
	require.NoError(t, err)
	assert.Equal(t, raw, got.Source)
	assert.False(t, got.Deleted)

	apply(t, store, func(b *storage.Batch) {
		b.PutSource(&storage.Source{MID: "m1", Source: raw, Deleted: true})
	})
	got, err = store.GetSource("m1")
	require.NoError(t, err)
	assert.True(t, got.Deleted)
	assert.Equal(t, raw, got.Source)
}

func testAttachment(t *testing.T, store storage.Store) {
	want := &storage.Attachment{
		Hash:        "abc",
		Filename:    "report.pdf",
		ContentType: "application/pdf",
		Content:     []byte{0x25, 0x50, 0x44, 0x46, 0x00, 0xff},
	}
	apply(t, store, func(b *storage.Batch) { b.PutAttachment(want) })
	got, err := store.GetAttachment("abc")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

// testDelete verifies deletes in a batch remove exactly the named documents.
func testDelete(t *testing.T, store storage.Store) {
	a := suiteEmail("a", "<dev.example.org>", 0)
	a.Attachments = []storage.AttachmentRef{{Hash: "h"}}
	apply(t, store, func(b *storage.Batch) {
		b.PutEmail(a)
		b.PutEmail(suiteEmail("b", "<dev.example.org>", 0))
		b.PutSource(&storage.Source{MID: "a", Source: []byte("a")})
		b.PutSource(&storage.Source{MID: "b", Source: []byte("b")})
		b.PutAttachment(&storage.Attachment{Hash: "h", Content: []byte("x")})
	})
	apply(t, store, func(b *storage.Batch) {
		b.DeleteEmail("a")
		b.DeleteSource("a")
		b.DeleteAttachment("h")
	})

	_, err := store.GetEmail("a")
	assert.ErrorIs(t, err, storage.ErrNotExist)
	_, err = store.GetSource("a")
	assert.ErrorIs(t, err, storage.ErrNotExist)
	_, err = store.GetAttachment("h")
	assert.ErrorIs(t, err, storage.ErrNotExist)
	_, err = store.GetEmail("b")
	assert.NoError(t, err)
	_, err = store.GetSource("b")
	assert.NoError(t, err)

	got, err := store.FindEmails(storage.Query{Attachment: "h"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

// testReplace verifies putting an existing mid overwrites it, attachments included.
func testReplace(t *testing.T, store storage.Store) {
	e := suiteEmail("a", "<dev.example.org>", 0)
	e.Attachments = []storage.AttachmentRef{{Hash: "h1"}, {Hash: "h2"}}
	apply(t, store, func(b *storage.Batch) { b.PutEmail(e) })

	e = e.Clone()
	e.Private = true
	e.Subject = "edited"
	e.Attachments = []storage.AttachmentRef{{Hash: "h2"}}
	apply(t, store, func(b *storage.Batch) { b.PutEmail(e) })

	got, err := store.GetEmail("a")
	require.NoError(t, err)
	assert.True(t, got.Private)
	assert.Equal(t, "edited", got.Subject)
	assert.Equal(t, []storage.AttachmentRef{{Hash: "h2"}}, got.Attachments)

	all, err := store.FindEmails(storage.Query{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func testAuditOrder(t *testing.T, store storage.Store) {
	for i, action := range []string{"hide", "unhide", "delete"} {
		action := action
		apply(t, store, func(b *storage.Batch) {
			b.AppendAudit(&storage.AuditEntry{
				ID:        action,
				Action:    action,
				Documents: []string{"m1", "m2"},
				Actor:     "admin",
				Timestamp: suiteDate.Add(time.Duration(i) * time.Second),
				Affected:  i,
				Outcome:   "ok",
			})
		})
	}
	entries, err := store.AuditEntries()
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, action := range []string{"hide", "unhide", "delete"} {
		assert.Equal(t, action, entries[i].Action)
		assert.Equal(t, i, entries[i].Affected)
		assert.Equal(t, []string{"m1", "m2"}, entries[i].Documents)
		assert.True(t, suiteDate.Add(time.Duration(i)*time.Second).Equal(entries[i].Timestamp))
	}
}

// testSubSecondWindow verifies window bounds that fall inside a second, and that attachment refs
// of windowed results belong to the selected emails only.
func testSubSecondWindow(t *testing.T, store storage.Store) {
	early := suiteEmail("early", "<dev.example.org>", 100*time.Millisecond)
	early.Attachments = []storage.AttachmentRef{{Hash: "h-early"}}
	late := suiteEmail("late", "<dev.example.org>", 900*time.Millisecond)
	late.Attachments = []storage.AttachmentRef{{Hash: "h-late"}}
	apply(t, store, func(b *storage.Batch) {
		b.PutEmail(early)
		b.PutEmail(late)
		b.PutEmail(suiteEmail("next", "<dev.example.org>", time.Second))
	})
	half := suiteDate.Add(500 * time.Millisecond)

	got, err := store.FindEmails(storage.Query{ListRaw: "<dev.example.org>", Since: half})
	require.NoError(t, err)
	assert.Equal(t, []string{"late", "next"}, mids(got))
	assert.Equal(t, []storage.AttachmentRef{{Hash: "h-late"}}, got[0].Attachments)
	assert.Empty(t, got[1].Attachments)

	got, err = store.FindEmails(storage.Query{ListRaw: "<dev.example.org>", Until: half})
	require.NoError(t, err)
	assert.Equal(t, []string{"early"}, mids(got))
	assert.Equal(t, []storage.AttachmentRef{{Hash: "h-early"}}, got[0].Attachments)

	got, err = store.FindEmails(storage.Query{
		Since: suiteDate.Add(time.Second),
		Until: half.Add(time.Second),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"next"}, mids(got))
}

func testCount(t *testing.T, store storage.Store) {
	n, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	apply(t, store, func(b *storage.Batch) {
		b.PutEmail(suiteEmail("a", "<dev.example.org>", 0))
		b.PutEmail(suiteEmail("b", "<users.example.org>", 0))
		b.PutSource(&storage.Source{MID: "a", Source: []byte("a")})
	})
	n, err = store.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	apply(t, store, func(b *storage.Batch) { b.DeleteEmail("a") })
	n, err = store.Count()
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testEmptyBatch(t *testing.T, store storage.Store) {
	b := &storage.Batch{}
	assert.True(t, b.Empty())
	require.NoError(t, store.Apply(b))
	b.AppendAudit(&storage.AuditEntry{ID: "x", Action: "hide", Timestamp: suiteDate})
	assert.False(t, b.Empty())

	n, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	entries, err := store.AuditEntries()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func mids(emails []*storage.Email) []string {
	result := make([]string, len(emails))
	for i, e := range emails {
		result[i] = e.MID
	}
	return result
}
