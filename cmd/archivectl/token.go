package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"github.com/google/subcommands"

	"github.com/listarchive/listarchive/pkg/config"
	"github.com/listarchive/listarchive/pkg/policy"
)

type tokenCmd struct {
	admin bool
	lists string
}

func (*tokenCmd) Name() string {
	return "token"
}

func (*tokenCmd) Synopsis() string {
	return "issue a session token"
}

func (*tokenCmd) Usage() string {
	return `token [flags] <user>:
	issue a session token signed with LISTARCHIVE_AUTH_TOKENSECRET
`
}

func (t *tokenCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&t.admin, "admin", false, "grant moderation rights")
	f.StringVar(&t.lists, "lists", "", "comma separated private lists, ex: dev.example.org,*")
}

func (t *tokenCmd) Execute(
	_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	user := f.Arg(0)
	if user == "" {
		return usage("user required")
	}
	conf, err := config.Process()
	if err != nil {
		return fatal("Configuration error", err)
	}
	var lists []string
	for _, l := range strings.Split(t.lists, ",") {
		if l = strings.TrimSpace(l); l != "" {
			lists = append(lists, l)
		}
	}
	tok, err := policy.IssueToken(conf.Auth.TokenSecret, user, t.admin, lists, conf.Auth.TokenTTL)
	if err != nil {
		return fatal("Couldn't issue token", err)
	}
	fmt.Println(tok)
	return subcommands.ExitSuccess
}
