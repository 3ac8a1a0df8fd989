package main

import (
	"context"
	"flag"
	"fmt"
	"strings"
	"time"

	"github.com/google/subcommands"
)

type logCmd struct{}

func (*logCmd) Name() string {
	return "log"
}

func (*logCmd) Synopsis() string {
	return "output the moderation audit log"
}

func (*logCmd) Usage() string {
	return `log:
	output the moderation audit log, oldest first, requires an admin token
`
}

func (l *logCmd) SetFlags(f *flag.FlagSet) {}

func (l *logCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	c, err := newClient()
	if err != nil {
		return fatal("Couldn't build client", err)
	}
	entries, err := c.AuditLog(ctx)
	if err != nil {
		return fatal("Log REST call failed", err)
	}
	for _, e := range entries {
		fmt.Printf("%s  %-10s %-8s %s  [%s]\n", e.Timestamp.Format(time.RFC3339), e.Actor,
			e.Action, e.Outcome, strings.Join(e.Documents, ", "))
	}
	return subcommands.ExitSuccess
}
