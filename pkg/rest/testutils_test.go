package rest

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/listarchive/listarchive/pkg/audit"
	"github.com/listarchive/listarchive/pkg/config"
	"github.com/listarchive/listarchive/pkg/extension"
	"github.com/listarchive/listarchive/pkg/identity"
	"github.com/listarchive/listarchive/pkg/message"
	"github.com/listarchive/listarchive/pkg/moderation"
	"github.com/listarchive/listarchive/pkg/msghub"
	"github.com/listarchive/listarchive/pkg/policy"
	"github.com/listarchive/listarchive/pkg/server/web"
	"github.com/listarchive/listarchive/pkg/storage"
	"github.com/listarchive/listarchive/pkg/storage/mem"
	"github.com/listarchive/listarchive/pkg/test"
)

const testSecret = "test-secret"

// testArchive is a wired archive behind the REST routes.
type testArchive struct {
	store   storage.Store
	manager *message.StoreManager
	engine  *moderation.Engine
	hub     *msghub.Hub
	host    *extension.Host
}

func setupWebServer(t *testing.T) *testArchive {
	t.Helper()
	store, err := mem.New(config.Storage{})
	require.NoError(t, err)
	host := extension.NewHost()
	auditLog := audit.New(store)
	a := &testArchive{
		store: store,
		manager: &message.StoreManager{
			Store:     store,
			ExtHost:   host,
			Generator: identity.New(identity.Cluster),
			Now:       time.Now,
		},
		engine: moderation.New(store, auditLog, host),
		hub:    msghub.New(10, host),
		host:   host,
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go a.hub.Start(ctx)

	cfg := &config.Root{
		Web:     config.Web{MonitorVisible: true},
		Archive: config.Archive{Admins: []string{"root"}},
		Auth:    config.Auth{TokenSecret: testSecret, CookieName: "session"},
	}
	// Have to reset default mux to prevent duplicate routes.
	web.Router = mux.NewRouter()
	SetupRoutes(web.Router.PathPrefix("/api/").Subrouter())
	web.Initialize(cfg, web.Services{
		Manager:   a.manager,
		Moderator: a.engine,
		Audit:     auditLog,
		MsgHub:    a.hub,
	})
	return a
}

func (a *testArchive) ingest(t *testing.T, private bool, raw test.Raw) string {
	t.Helper()
	mid, err := a.manager.Ingest("", private, raw.Bytes())
	require.NoError(t, err)
	return mid
}

// token issues a session token; user root is an admin by configuration.
func token(t *testing.T, user string, lists ...string) string {
	t.Helper()
	tok, err := policy.IssueToken(testSecret, user, false, lists, time.Hour)
	require.NoError(t, err)
	return tok
}

func testRestGet(url, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", url, nil)
	req.Header.Add("Accept", "application/json")
	if token != "" {
		req.Header.Add("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	web.Router.ServeHTTP(w, req)
	return w
}

func testRestPost(url, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("POST", url, bytes.NewBufferString(body))
	req.Header.Add("Accept", "application/json")
	req.Header.Add("Content-Type", "application/json")
	if token != "" {
		req.Header.Add("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	web.Router.ServeHTTP(w, req)
	return w
}

func decodedBoolEquals(t *testing.T, json any, path string, want bool) {
	t.Helper()
	els := strings.Split(path, "/")
	val, msg := getDecodedPath(json, els...)
	if msg != "" {
		t.Errorf("JSON result%s", msg)
		return
	}
	if got, ok := val.(bool); ok {
		if got == want {
			return
		}
	}
	t.Errorf("JSON result/%s == %v (%T), want: %v", path, val, val, want)
}

func decodedNumberEquals(t *testing.T, json any, path string, want float64) {
	t.Helper()
	els := strings.Split(path, "/")
	val, msg := getDecodedPath(json, els...)
	if msg != "" {
		t.Errorf("JSON result%s", msg)
		return
	}
	got, ok := val.(float64)
	if ok {
		if got == want {
			return
		}
	}
	t.Errorf("JSON result/%s == %v (%T) %v (int64),\nwant: %v / %v",
		path, val, val, int64(got), want, int64(want))
}

func decodedStringEquals(t *testing.T, json any, path string, want string) {
	t.Helper()
	els := strings.Split(path, "/")
	val, msg := getDecodedPath(json, els...)
	if msg != "" {
		t.Errorf("JSON result%s", msg)
		return
	}
	if got, ok := val.(string); ok {
		if got == want {
			return
		}
	}
	t.Errorf("JSON result/%s == %v (%T), want: %v", path, val, val, want)
}

// getDecodedPath recursively navigates the specified path, returing the requested element.  If
// something goes wrong, the returned string will contain an explanation.
//
// Named path elements require the parent element to be a map[string]any, numbers in square
// brackets require the parent element to be a []any.
//
//     getDecodedPath(o, "users", "[1]", "name")
//
// is equivalent to the JavaScript:
//
//     o.users[1].name
//
func getDecodedPath(o any, path ...string) (any, string) {
	if len(path) == 0 {
		return o, ""
	}
	if o == nil {
		return nil, " is nil"
	}
	key := path[0]
	present := false
	var val any
	if key[0] == '[' {
		// Expecting slice.
		index, err := strconv.Atoi(strings.Trim(key, "[]"))
		if err != nil {
			return nil, "/" + key + " is not a slice index"
		}
		oslice, ok := o.([]any)
		if !ok {
			return nil, " is not a slice"
		}
		if index >= len(oslice) {
			return nil, "/" + key + " is out of bounds"
		}
		val, present = oslice[index], true
	} else {
		// Expecting map.
		omap, ok := o.(map[string]any)
		if !ok {
			return nil, " is not a map"
		}
		val, present = omap[key]
	}
	if !present {
		return nil, "/" + key + " is missing"
	}
	result, msg := getDecodedPath(val, path[1:]...)
	if msg != "" {
		return nil, "/" + key + msg
	}
	return result, ""
}
