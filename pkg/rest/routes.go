package rest

import (
	"github.com/gorilla/mux"

	"github.com/listarchive/listarchive/pkg/server/web"
)

// SetupRoutes populates the routes for the REST interface
func SetupRoutes(r *mux.Router) {
	r.Path("/email").Handler(
		web.Handler(GetEmail)).Name("Email").Methods("GET")
	r.Path("/source").Handler(
		web.Handler(GetSource)).Name("Source").Methods("GET")
	r.Path("/attachment").Handler(
		web.Handler(GetAttachment)).Name("Attachment").Methods("GET")
	r.Path("/stats").Handler(
		web.Handler(GetStats)).Name("Stats").Methods("GET")
	r.Path("/mbox").Handler(
		web.Handler(GetMbox)).Name("Mbox").Methods("GET")
	r.Path("/preferences").Handler(
		web.Handler(GetPreferences)).Name("Preferences").Methods("GET")
	r.Path("/mgmt").Handler(
		web.Handler(Mgmt)).Name("Mgmt").Methods("POST")
	r.Path("/log").Handler(
		web.Handler(GetAuditLog)).Name("AuditLog").Methods("GET")
	r.Path("/monitor").Handler(
		web.Handler(Monitor)).Name("Monitor").Methods("GET")
}
