package message_test

import (
	"testing"
	"time"

	"github.com/listarchive/listarchive/pkg/config"
	"github.com/listarchive/listarchive/pkg/extension"
	"github.com/listarchive/listarchive/pkg/identity"
	"github.com/listarchive/listarchive/pkg/message"
	"github.com/listarchive/listarchive/pkg/policy"
	"github.com/listarchive/listarchive/pkg/storage"
	"github.com/listarchive/listarchive/pkg/storage/mem"
	"github.com/listarchive/listarchive/pkg/test"
	"github.com/stretchr/testify/require"
)

var (
	anonymous = policy.Anonymous()
	member    = policy.Capabilities{User: "bob", Authenticated: true, Lists: []string{"dev.example.org"}}
	admin     = policy.Capabilities{User: "root", Authenticated: true, Admin: true}
	testNow   = time.Date(2022, 3, 1, 0, 0, 0, 0, time.UTC)
)

func newManager(t *testing.T) (*message.StoreManager, *extension.Host) {
	t.Helper()
	store, err := mem.New(config.Storage{})
	require.NoError(t, err)
	host := extension.NewHost()
	return &message.StoreManager{
		Store:     store,
		ExtHost:   host,
		Generator: identity.New(identity.Cluster),
		Now:       func() time.Time { return testNow },
	}, host
}

func ingest(t *testing.T, m *message.StoreManager, private bool, raw test.Raw) string {
	t.Helper()
	mid, err := m.Ingest("", private, raw.Bytes())
	require.NoError(t, err)
	return mid
}

// hideSource marks the source of mid deleted, as an edit would.
func hideSource(t *testing.T, store storage.Store, mid string) {
	t.Helper()
	src, err := store.GetSource(mid)
	require.NoError(t, err)
	src.Deleted = true
	b := &storage.Batch{}
	b.PutSource(src)
	require.NoError(t, store.Apply(b))
}
