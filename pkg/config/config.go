package config

import (
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const (
	prefix      = "listarchive"
	tableFormat = `listarchive is configured via the environment. The following environment
variables can be used:

KEY	DEFAULT	REQUIRED	DESCRIPTION
{{range .}}{{usage_key .}}	{{usage_default .}}	{{usage_required .}}	{{usage_description .}}
{{end}}`
)

var (
	// Version of this build, set by main
	Version = ""

	// BuildDate for this build, set by main
	BuildDate = ""
)

// Root wraps all other configurations.
type Root struct {
	LogLevel string `required:"true" default:"info" desc:"debug, info, warn, or error"`
	Web      Web
	Storage  Storage
	Archive  Archive
	Auth     Auth
}

// Web contains the HTTP server configuration.
type Web struct {
	Addr           string        `required:"true" default:"0.0.0.0:8080" desc:"Web server IP4 host:port"`
	BasePath       string        `default:"" desc:"Base path prefix for API and metrics URLs"`
	MonitorVisible bool          `required:"true" default:"true" desc:"Enable the admin monitor socket?"`
	MonitorHistory int           `required:"true" default:"30" desc:"Monitor remembered events"`
	ReadTimeout    time.Duration `required:"true" default:"60s" desc:"HTTP read timeout"`
	WriteTimeout   time.Duration `required:"true" default:"60s" desc:"HTTP write timeout"`
	PProf          bool          `required:"true" default:"false" desc:"Expose profiling tools on /debug/pprof"`
}

// Storage contains the document store configuration.
type Storage struct {
	Type   string            `required:"true" default:"memory" desc:"Storage impl: sqlite or memory"`
	Params map[string]string `default:"" desc:"Storage impl parameters, see docs."`
}

// Archive contains the archiving and moderation configuration.
type Archive struct {
	Generator    string   `required:"true" default:"cluster" desc:"Message id generator: legacy, medium or cluster"`
	Admins       []string `default:"" desc:"Users granted moderation rights"`
	PrivateLists []string `default:"" desc:"List ids archived as private, ex: <board.example.org>"`
}

// Auth contains the session token configuration.
type Auth struct {
	TokenSecret string        `default:"" desc:"HMAC secret used to sign session tokens"`
	CookieName  string        `required:"true" default:"listarchive_session" desc:"Session cookie name"`
	TokenTTL    time.Duration `required:"true" default:"24h" desc:"Lifetime of issued tokens"`
}

// IsAdmin returns true if user is listed in Admins.
func (a Archive) IsAdmin(user string) bool {
	if user == "" {
		return false
	}
	for _, admin := range a.Admins {
		if strings.EqualFold(strings.TrimSpace(admin), user) {
			return true
		}
	}
	return false
}

// IsPrivateList returns true if the list id is configured to be archived privately.  Angle
// brackets are optional on both sides.
func (a Archive) IsPrivateList(listID string) bool {
	listID = strings.Trim(strings.TrimSpace(listID), "<>")
	for _, l := range a.PrivateLists {
		if strings.EqualFold(strings.Trim(strings.TrimSpace(l), "<>"), listID) {
			return true
		}
	}
	return false
}

// Process loads and parses configuration from the environment.
func Process() (*Root, error) {
	c := &Root{}
	err := envconfig.Process(prefix, c)
	c.LogLevel = strings.ToLower(c.LogLevel)
	return c, err
}

// Usage prints out the envconfig usage to Stderr.
func Usage() {
	tabs := tabwriter.NewWriter(os.Stderr, 1, 0, 4, ' ', 0)
	if err := envconfig.Usagef(prefix, &Root{}, tabs, tableFormat); err != nil {
		log.Fatalf("Unable to parse env config: %v", err)
	}
	tabs.Flush()
}
