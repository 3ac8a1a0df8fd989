// Package server wires the archive components into a running service.
package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/listarchive/listarchive/pkg/audit"
	"github.com/listarchive/listarchive/pkg/config"
	"github.com/listarchive/listarchive/pkg/extension"
	"github.com/listarchive/listarchive/pkg/extension/event"
	"github.com/listarchive/listarchive/pkg/identity"
	"github.com/listarchive/listarchive/pkg/message"
	"github.com/listarchive/listarchive/pkg/metric"
	"github.com/listarchive/listarchive/pkg/moderation"
	"github.com/listarchive/listarchive/pkg/msghub"
	"github.com/listarchive/listarchive/pkg/policy"
	"github.com/listarchive/listarchive/pkg/rest"
	"github.com/listarchive/listarchive/pkg/server/web"
	"github.com/listarchive/listarchive/pkg/storage"
)

// Services holds the configured services.
type Services struct {
	Store     storage.Store
	ExtHost   *extension.Host
	Manager   *message.StoreManager
	Moderator *moderation.Engine
	Audit     *audit.Log
	MsgHub    *msghub.Hub
	WebServer *web.Server
}

// NewArchive assembles the storage and archive logic, without any network services.  Used by
// FullAssembly and command line tools operating on the store directly.
func NewArchive(conf *config.Root) (*Services, error) {
	variant, err := identity.ParseVariant(conf.Archive.Generator)
	if err != nil {
		return nil, err
	}
	store, err := storage.FromConfig(conf.Storage)
	if err != nil {
		return nil, err
	}
	extHost := extension.NewHost()
	// Lists configured as private are archived private regardless of the caller's choice.
	archive := conf.Archive
	extHost.Events.BeforeMessageArchived.AddListener("private-lists",
		func(msg event.InboundMessage) *event.InboundMessage {
			if !msg.Private && archive.IsPrivateList(msg.ListID) {
				msg.Private = true
				return &msg
			}
			return nil
		})
	auditLog := audit.New(store)

	return &Services{
		Store:   store,
		ExtHost: extHost,
		Manager: &message.StoreManager{
			Store:     store,
			ExtHost:   extHost,
			Generator: identity.New(variant),
		},
		Moderator: moderation.New(store, auditLog, extHost),
		Audit:     auditLog,
	}, nil
}

// FullAssembly wires up a complete archive service, with the message hub and web server.
func FullAssembly(conf *config.Root) (*Services, error) {
	s, err := NewArchive(conf)
	if err != nil {
		return nil, err
	}
	s.MsgHub = msghub.New(conf.Web.MonitorHistory, s.ExtHost)

	prefix := "/api/"
	if base := strings.Trim(conf.Web.BasePath, "/"); base != "" {
		prefix = "/" + base + prefix
	}
	rest.SetupRoutes(web.Router.PathPrefix(prefix).Subrouter())
	s.WebServer = web.NewServer(conf, web.Services{
		Manager:   s.Manager,
		Moderator: s.Moderator,
		Audit:     s.Audit,
		MsgHub:    s.MsgHub,
		Resolver:  policy.NewTokenResolver(conf),
	})

	metric.AddTickerFunc(func() {
		n, err := s.Store.Count()
		if err != nil {
			log.Warn().Str("module", "metric").Err(err).Msg("Failed to count stored emails")
			return
		}
		metric.StoredEmails.Set(float64(n))
	})

	events := s.ExtHost.Events
	log.Debug().Str("module", "extension").
		Strs("beforeMessageArchived", events.BeforeMessageArchived.Listeners()).
		Strs("afterMessageArchived", events.AfterMessageArchived.Listeners()).
		Strs("afterModeration", events.AfterModeration.Listeners()).
		Msg("Event listeners registered")
	return s, nil
}

// Start all services, calls readyFunc once the web server is listening.
func (s *Services) Start(ctx context.Context, readyFunc func()) {
	go s.MsgHub.Start(ctx)
	go s.WebServer.Start(ctx, readyFunc)
}

// Notify merges the error notification channels of all fallible services, allowing the process
// to be shutdown if needed.
func (s *Services) Notify() <-chan error {
	return s.WebServer.Notify()
}

// Close releases the store.
func (s *Services) Close() error {
	if err := s.Store.Close(); err != nil {
		return fmt.Errorf("closing store: %w", err)
	}
	return nil
}
