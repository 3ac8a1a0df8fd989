package main

import (
	"context"
	"flag"
	"os"

	"github.com/google/subcommands"

	"github.com/listarchive/listarchive/pkg/rest/client"
)

type mboxCmd struct {
	window string
}

func (*mboxCmd) Name() string {
	return "mbox"
}

func (*mboxCmd) Synopsis() string {
	return "output a list in mbox format"
}

func (*mboxCmd) Usage() string {
	return `mbox [flags] <list@domain>:
	output the visible sources of a list in mbox format
`
}

func (m *mboxCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&m.window, "d", "", "date window, ex: 2022-01")
}

func (m *mboxCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	list, domain, ok := splitList(f.Arg(0))
	if !ok {
		return usage("list@domain required")
	}
	c, err := newClient()
	if err != nil {
		return fatal("Couldn't build client", err)
	}
	mbox, err := c.GetMbox(ctx, client.Stats{List: list, Domain: domain, Window: m.window})
	if err != nil {
		return fatal("Mbox REST call failed", err)
	}
	if _, err := os.Stdout.Write(mbox); err != nil {
		return fatal("Error", err)
	}
	return subcommands.ExitSuccess
}
