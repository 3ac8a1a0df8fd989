package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"

	"github.com/listarchive/listarchive/pkg/config"
	"github.com/listarchive/listarchive/pkg/server"
)

type importCmd struct {
	list    string
	private bool
}

func (*importCmd) Name() string {
	return "import"
}

func (*importCmd) Synopsis() string {
	return "archive an mbox file into the configured store"
}

func (*importCmd) Usage() string {
	return `import [flags] <mbox file or ->:
	archive every message of an mbox file, using the LISTARCHIVE_ storage environment
`
}

func (i *importCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&i.list, "list", "", "list id to archive on, defaults to the List-Id header")
	f.BoolVar(&i.private, "private", false, "archive messages as private")
}

func (i *importCmd) Execute(
	_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	path := f.Arg(0)
	if path == "" {
		return usage("mbox file required")
	}
	var r io.Reader = os.Stdin
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return fatal("Couldn't open mbox", err)
		}
		defer file.Close()
		r = file
	}

	conf, err := config.Process()
	if err != nil {
		return fatal("Configuration error", err)
	}
	archive, err := server.NewArchive(conf)
	if err != nil {
		return fatal("Couldn't open archive", err)
	}
	defer archive.Close()

	result, err := archive.Manager.ImportMbox(i.list, i.private, r)
	if result != nil {
		fmt.Printf("archived: %d, duplicates: %d, failed: %d\n",
			result.Archived, result.Duplicates, result.Failed)
	}
	if err != nil {
		return fatal("Import failed", err)
	}
	return subcommands.ExitSuccess
}
