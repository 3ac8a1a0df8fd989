// Package main implements a command line tool for the list archive, talking to its REST API or
// operating on the configured store directly.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"regexp"
	"strconv"

	"github.com/google/subcommands"

	"github.com/listarchive/listarchive/pkg/rest/client"
	"github.com/listarchive/listarchive/pkg/storage"
	"github.com/listarchive/listarchive/pkg/storage/mem"
	"github.com/listarchive/listarchive/pkg/storage/sqlite"
)

var host = flag.String("host", "localhost", "host/IP of archive server")
var port = flag.Uint("port", 8080, "HTTP port of archive server")
var token = flag.String("token", os.Getenv("LISTARCHIVE_TOKEN"), "session token sent to the server")

// Allow subcommands to accept regular expressions as flags
type regexFlag struct {
	*regexp.Regexp
}

func (r *regexFlag) Defined() bool {
	return r.Regexp != nil
}

func (r *regexFlag) Set(pattern string) error {
	if pattern == "" {
		r.Regexp = nil
		return nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	r.Regexp = re
	return nil
}

func (r *regexFlag) String() string {
	if r.Regexp == nil {
		return ""
	}
	return r.Regexp.String()
}

// regexFlag must implement flag.Value
var _ flag.Value = &regexFlag{}

func init() {
	// Register storage implementations for the local commands.
	storage.Constructors["memory"] = mem.New
	storage.Constructors["sqlite"] = sqlite.New
}

func main() {
	// Important top-level flags
	subcommands.ImportantFlag("host")
	subcommands.ImportantFlag("port")
	subcommands.ImportantFlag("token")

	// Setup standard helpers
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")

	// Setup my commands
	subcommands.Register(&statsCmd{}, "")
	subcommands.Register(&emailCmd{}, "")
	subcommands.Register(&mboxCmd{}, "")
	subcommands.Register(&mgmtCmd{}, "moderation")
	subcommands.Register(&logCmd{}, "moderation")
	subcommands.Register(&importCmd{}, "local")
	subcommands.Register(&tokenCmd{}, "local")

	// Parse and execute
	flag.Parse()
	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}

func baseURL() string {
	return "http://" + net.JoinHostPort(*host, strconv.FormatUint(uint64(*port), 10))
}

func newClient() (*client.Client, error) {
	return client.New(baseURL(), client.WithClientOptsToken(*token))
}

func fatal(msg string, err error) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	return subcommands.ExitFailure
}

func usage(msg string) subcommands.ExitStatus {
	fmt.Fprintln(os.Stderr, msg)
	return subcommands.ExitUsageError
}
