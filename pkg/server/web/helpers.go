package web

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// RenderJSON sets the correct HTTP headers for JSON, then writes the specified data (typically a
// struct) encoded in JSON.
func RenderJSON(w http.ResponseWriter, data any) error {
	return RenderJSONStatus(w, http.StatusOK, data)
}

// RenderJSONStatus is RenderJSON with a custom status code.
func RenderJSONStatus(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Expires", "-1")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc.Encode(data)
}

// RenderText writes a plain text response with the given status code.
func RenderText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(text)); err != nil {
		log.Debug().Str("module", "web").Err(err).Msg("Failed to write response")
	}
}

// Reverse returns the path of a named route, or /ROUTE-ERROR if it cannot be built.
func Reverse(name string, pairs ...string) string {
	route := Router.Get(name)
	if route == nil {
		log.Error().Str("module", "web").Str("name", name).Msg("Failed to reverse unknown route")
		return "/ROUTE-ERROR"
	}
	u, err := route.URL(pairs...)
	if err != nil {
		log.Error().Str("module", "web").Str("name", name).Err(err).
			Msg("Failed to reverse route")
		return "/ROUTE-ERROR"
	}
	return u.Path
}

func trimSlashes(s string) string {
	return strings.Trim(s, "/")
}
