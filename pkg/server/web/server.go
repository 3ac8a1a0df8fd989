// Package web provides the plumbing for the archive's RESTful API.
package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/pprof"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/listarchive/listarchive/pkg/audit"
	"github.com/listarchive/listarchive/pkg/config"
	"github.com/listarchive/listarchive/pkg/message"
	"github.com/listarchive/listarchive/pkg/moderation"
	"github.com/listarchive/listarchive/pkg/msghub"
	"github.com/listarchive/listarchive/pkg/policy"
)

var (
	// Router sends incoming requests to the correct handler function.
	Router = mux.NewRouter()

	rootConfig *config.Root
	manager    message.Manager
	moderator  moderation.Moderator
	auditLog   *audit.Log
	msgHub     *msghub.Hub
	resolver   policy.Resolver
)

// Services holds the dependencies made available to handlers through Context.
type Services struct {
	Manager   message.Manager
	Moderator moderation.Moderator
	Audit     *audit.Log
	MsgHub    *msghub.Hub
	Resolver  policy.Resolver
}

// Server defines an instance of the web server.
type Server struct {
	http     *http.Server
	listener net.Listener
	notify   chan error
}

// Initialize sets up the dependencies NewContext hands to each request.  Used by unit tests and
// NewServer.
func Initialize(conf *config.Root, svc Services) {
	rootConfig = conf
	manager = svc.Manager
	moderator = svc.Moderator
	auditLog = svc.Audit
	msgHub = svc.MsgHub
	resolver = svc.Resolver
	if resolver == nil {
		resolver = policy.NewTokenResolver(conf)
	}
}

// NewServer sets up things for the Start() method.
func NewServer(conf *config.Root, svc Services) *Server {
	Initialize(conf, svc)

	prefix := conf.Web.BasePath
	if prefix != "" {
		prefix = "/" + trimSlashes(prefix)
	}
	Router.Path(prefix + "/metrics").Handler(promhttp.Handler()).Methods("GET")
	if conf.Web.PProf {
		Router.HandleFunc(prefix+"/debug/pprof/cmdline", pprof.Cmdline)
		Router.HandleFunc(prefix+"/debug/pprof/profile", pprof.Profile)
		Router.HandleFunc(prefix+"/debug/pprof/symbol", pprof.Symbol)
		Router.HandleFunc(prefix+"/debug/pprof/trace", pprof.Trace)
		Router.PathPrefix(prefix + "/debug/pprof/").HandlerFunc(pprof.Index)
		log.Warn().Str("module", "web").Msg("Go pprof tools installed to " + prefix + "/debug/pprof")
	}
	Router.NotFoundHandler = noMatchHandler(http.StatusNotFound, "No route matches URI path")
	Router.MethodNotAllowedHandler = noMatchHandler(http.StatusMethodNotAllowed,
		"No route matches URI method")

	return &Server{
		http: &http.Server{
			Addr:         conf.Web.Addr,
			Handler:      requestLoggingWrapper(metricsWrapper(Router)),
			ReadTimeout:  conf.Web.ReadTimeout,
			WriteTimeout: conf.Web.WriteTimeout,
		},
		notify: make(chan error, 1),
	}
}

// Start begins listening for HTTP requests.  readyFunc is called once the listener is open.
func (s *Server) Start(ctx context.Context, readyFunc func()) {
	log.Info().Str("module", "web").Str("phase", "startup").Str("addr", s.http.Addr).
		Msg("HTTP listening on tcp4")
	var err error
	s.listener, err = net.Listen("tcp", s.http.Addr)
	if err != nil {
		log.Error().Str("module", "web").Str("phase", "startup").Err(err).
			Msg("HTTP failed to start TCP4 listener")
		s.notify <- err
		close(s.notify)
		return
	}
	readyFunc()

	// Listener go routine.
	go s.serve(ctx)

	// Wait for shutdown.
	<-ctx.Done()
	log.Debug().Str("module", "web").Str("phase", "shutdown").Msg("HTTP server shutting down on request")

	// Closing the listener will cause the serve() go routine to exit.
	if err := s.listener.Close(); err != nil {
		log.Debug().Str("module", "web").Str("phase", "shutdown").Err(err).
			Msg("Failed to close HTTP listener")
	}
}

// serve begins serving HTTP requests.
func (s *Server) serve(ctx context.Context) {
	// server.Serve blocks until we close the listener.
	err := s.http.Serve(s.listener)

	select {
	case <-ctx.Done():
		// Nop.
	default:
		if !errors.Is(err, net.ErrClosed) {
			log.Error().Str("module", "web").Str("phase", "startup").Err(err).
				Msg("HTTP server failed")
			s.notify <- err
		}
	}
	close(s.notify)
}

// Notify allows the running Web server to be monitored for a fatal error.
func (s *Server) Notify() <-chan error {
	return s.notify
}
