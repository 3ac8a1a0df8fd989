package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProcessDefaults(t *testing.T) {
	got, err := Process()
	require.NoError(t, err)

	assert.Equal(t, "info", got.LogLevel)
	assert.Equal(t, "memory", got.Storage.Type)
	assert.Equal(t, "cluster", got.Archive.Generator)
	assert.Equal(t, "listarchive_session", got.Auth.CookieName)
}

func TestProcessEnvironment(t *testing.T) {
	t.Setenv("LISTARCHIVE_LOGLEVEL", "DEBUG")
	t.Setenv("LISTARCHIVE_STORAGE_TYPE", "sqlite")
	t.Setenv("LISTARCHIVE_STORAGE_PARAMS", "path:/tmp/archive.db")
	t.Setenv("LISTARCHIVE_ARCHIVE_ADMINS", "alice,bob")

	got, err := Process()
	require.NoError(t, err)

	assert.Equal(t, "debug", got.LogLevel)
	assert.Equal(t, "sqlite", got.Storage.Type)
	assert.Equal(t, "/tmp/archive.db", got.Storage.Params["path"])
	assert.Equal(t, []string{"alice", "bob"}, got.Archive.Admins)
}

func TestArchiveIsAdmin(t *testing.T) {
	a := Archive{Admins: []string{"alice", " Bob "}}

	assert.True(t, a.IsAdmin("alice"))
	assert.True(t, a.IsAdmin("bob"))
	assert.False(t, a.IsAdmin("carol"))
	assert.False(t, a.IsAdmin(""))
}

func TestArchiveIsPrivateList(t *testing.T) {
	a := Archive{PrivateLists: []string{"<board.example.org>"}}

	assert.True(t, a.IsPrivateList("<board.example.org>"))
	assert.True(t, a.IsPrivateList("board.example.org"))
	assert.False(t, a.IsPrivateList("<dev.example.org>"))
}
