package main

import (
	"context"
	"flag"
	"fmt"
	"strconv"

	"github.com/google/subcommands"

	"github.com/listarchive/listarchive/pkg/rest/client"
)

type mgmtCmd struct {
	from    string
	subject string
	list    string
	body    string
	private string
}

func (*mgmtCmd) Name() string {
	return "mgmt"
}

func (*mgmtCmd) Synopsis() string {
	return "apply a moderation action"
}

func (*mgmtCmd) Usage() string {
	return `mgmt [flags] <hide|unhide|delete|delatt|edit> <document>...:
	apply a moderation action to the given mids or attachment hashes, requires an admin token
`
}

func (m *mgmtCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&m.from, "from", "", "edit: new author")
	f.StringVar(&m.subject, "subject", "", "edit: new subject")
	f.StringVar(&m.list, "list", "", "edit: new list id, ex: <dev.example.org>")
	f.StringVar(&m.body, "body", "", "edit: new body text")
	f.StringVar(&m.private, "private", "", "edit: true or false")
}

func (m *mgmtCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() < 2 {
		return usage("action and at least one document required")
	}
	req := &client.ModerationRequest{
		Action:    f.Arg(0),
		Documents: f.Args()[1:],
		From:      m.from,
		Subject:   m.subject,
		List:      m.list,
		Body:      m.body,
	}
	if m.private != "" {
		p, err := strconv.ParseBool(m.private)
		if err != nil {
			return usage("private must be true or false")
		}
		req.Private = &p
	}
	c, err := newClient()
	if err != nil {
		return fatal("Couldn't build client", err)
	}
	outcome, err := c.Moderate(ctx, req)
	if err != nil {
		return fatal("Moderation REST call failed", err)
	}
	fmt.Println(outcome)
	return subcommands.ExitSuccess
}
