package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/mail"
	"os"
	"strings"

	"github.com/google/subcommands"

	"github.com/listarchive/listarchive/pkg/rest/client"
	"github.com/listarchive/listarchive/pkg/rest/model"
)

type statsCmd struct {
	window  string
	output  string
	from    regexFlag
	subject regexFlag
}

func (*statsCmd) Name() string {
	return "stats"
}

func (*statsCmd) Synopsis() string {
	return "list emails of a mailing list"
}

func (*statsCmd) Usage() string {
	return `stats [flags] <list@domain>:
	output the emails of a list matching all specified criteria
	exit status will be 1 if no matches were found, otherwise 0
`
}

func (s *statsCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&s.window, "d", "", "date window, ex: 2022-01, lte=30d, dfr=2022-01-01|dto=2022-01-31")
	f.StringVar(&s.output, "output", "id", "output format: id, summary or json")
	f.Var(&s.from, "from", "From header matching regexp (address, not name)")
	f.Var(&s.subject, "subject", "Subject header matching regexp")
}

func (s *statsCmd) Execute(
	ctx context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	list, domain, ok := splitList(f.Arg(0))
	if !ok {
		return usage("list@domain required")
	}
	c, err := newClient()
	if err != nil {
		return fatal("Couldn't build client", err)
	}
	stats, err := c.GetStats(ctx, client.Stats{List: list, Domain: domain, Window: s.window})
	if err != nil {
		return fatal("Stats REST call failed", err)
	}
	matches := make([]*model.JSONEmailSummary, 0, len(stats.Emails))
	for _, e := range stats.Emails {
		if s.match(e) {
			matches = append(matches, e)
		}
	}
	if len(matches) == 0 {
		return subcommands.ExitFailure
	}
	switch s.output {
	case "id":
		for _, e := range matches {
			fmt.Println(e.MID)
		}
	case "summary":
		for _, e := range matches {
			fmt.Printf("%s  %-30.30s  %s\n", e.MID, e.From, e.Subject)
		}
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetEscapeHTML(false)
		enc.SetIndent("", "  ")
		if err := enc.Encode(matches); err != nil {
			return fatal("Error", err)
		}
	default:
		return usage("unknown output type: " + s.output)
	}
	return subcommands.ExitSuccess
}

// match returns true if the email matches all defined criteria
func (s *statsCmd) match(e *model.JSONEmailSummary) bool {
	if s.subject.Defined() && !s.subject.MatchString(e.Subject) {
		return false
	}
	if s.from.Defined() {
		from := e.From
		if addr, err := mail.ParseAddress(from); err == nil {
			from = addr.Address
		}
		if !s.from.MatchString(from) {
			return false
		}
	}
	return true
}

// splitList splits dev@example.org into its list name and domain.
func splitList(s string) (list, domain string, ok bool) {
	list, domain, ok = strings.Cut(s, "@")
	return list, domain, ok && list != "" && domain != ""
}
