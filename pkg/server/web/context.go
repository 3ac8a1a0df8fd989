package web

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/listarchive/listarchive/pkg/audit"
	"github.com/listarchive/listarchive/pkg/config"
	"github.com/listarchive/listarchive/pkg/message"
	"github.com/listarchive/listarchive/pkg/moderation"
	"github.com/listarchive/listarchive/pkg/msghub"
	"github.com/listarchive/listarchive/pkg/policy"
)

// Context is passed into every request handler function.
type Context struct {
	Vars       map[string]string
	Manager    message.Manager
	Moderator  moderation.Moderator
	Audit      *audit.Log
	MsgHub     *msghub.Hub
	RootConfig *config.Root
	// Caps holds the capabilities of the caller, anonymous unless a valid token was presented.
	Caps   policy.Capabilities
	IsJSON bool
}

// Close the Context (currently does nothing)
func (c *Context) Close() {
	// Do nothing
}

// headerMatch returns true if the request header specified by name contains
// the specified value.  Case is ignored.
func headerMatch(req *http.Request, name string, value string) bool {
	name = http.CanonicalHeaderKey(name)
	value = strings.ToLower(value)

	if header := req.Header[name]; header != nil {
		for _, hv := range header {
			if value == strings.ToLower(hv) {
				return true
			}
		}
	}

	return false
}

// NewContext returns a Context for the given HTTP Request.  An invalid session token is logged
// and the request continues anonymously.
func NewContext(req *http.Request) (*Context, error) {
	caps := policy.Anonymous()
	if token := policy.TokenFromRequest(req, rootConfig.Auth.CookieName); token != "" {
		var err error
		caps, err = resolver.Resolve(token)
		if err != nil {
			log.Warn().Str("module", "web").Str("remote", req.RemoteAddr).Err(err).
				Msg("Ignoring invalid session token")
			caps = policy.Anonymous()
		}
	}
	ctx := &Context{
		Vars:       mux.Vars(req),
		Manager:    manager,
		Moderator:  moderator,
		Audit:      auditLog,
		MsgHub:     msgHub,
		RootConfig: rootConfig,
		Caps:       caps,
		IsJSON:     headerMatch(req, "Accept", "application/json"),
	}
	return ctx, nil
}
