package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"

	"github.com/google/subcommands"
)

type emailCmd struct {
	list   string
	source bool
}

func (*emailCmd) Name() string {
	return "email"
}

func (*emailCmd) Synopsis() string {
	return "show an archived email"
}

func (*emailCmd) Usage() string {
	return `email [flags] <permalink or message-id>:
	output an archived email as JSON, or its raw source
`
}

func (e *emailCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&e.list, "list", "", "restrict message-id lookup to a list id, ex: <dev.example.org>")
	f.BoolVar(&e.source, "source", false, "output the raw source instead of JSON")
}

func (e *emailCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	id := f.Arg(0)
	if id == "" {
		return usage("email id required")
	}
	c, err := newClient()
	if err != nil {
		return fatal("Couldn't build client", err)
	}
	if e.source {
		src, err := c.GetSource(ctx, id)
		if err != nil {
			return fatal("Source REST call failed", err)
		}
		if _, err := os.Stdout.Write(src); err != nil {
			return fatal("Error", err)
		}
		return subcommands.ExitSuccess
	}
	email, err := c.GetEmail(ctx, id, e.list)
	if err != nil {
		return fatal("Email REST call failed", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(email); err != nil {
		return fatal("Error", err)
	}
	return subcommands.ExitSuccess
}
