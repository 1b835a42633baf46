package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"folio"
)

type exportCmd struct {
	output string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "export the ledger in the CSV interchange format" }
func (*exportCmd) Usage() string {
	return `folio export [-o <file>]

  Writes the full ledger (instruments, holdings and transactions) as a
  sectioned CSV file, to stdout by default.
`
}

func (p *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.output, "o", "", "Output file. Defaults to stdout.")
}

func (p *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	l, err := openLedger(ctx)
	if err != nil {
		return fatalf("%v", err)
	}

	out := os.Stdout
	if p.output != "" {
		f, err := os.Create(p.output)
		if err != nil {
			return fatalf("creating %q: %v", p.output, err)
		}
		defer f.Close()
		out = f
	}
	if err := folio.Export(out, l); err != nil {
		return fatalf("%v", err)
	}
	return subcommands.ExitSuccess
}

type importCmd struct{}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "import a ledger from the CSV interchange format" }
func (*importCmd) Usage() string {
	return `folio import <file>

  Rebuilds the ledger from an exported CSV file and replaces the stored
  snapshot with it.
`
}

func (*importCmd) SetFlags(*flag.FlagSet) {}

func (*importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return fatalf("usage: folio import <file>")
	}
	in, err := os.Open(f.Arg(0))
	if err != nil {
		return fatalf("opening %q: %v", f.Arg(0), err)
	}
	defer in.Close()

	l, err := folio.Import(in)
	if err != nil {
		return fatalf("%v", err)
	}
	s, err := openStore()
	if err != nil {
		return fatalf("%v", err)
	}
	if err := s.Save(ctx, l); err != nil {
		return fatalf("%v", err)
	}
	fmt.Printf("imported %d transactions\n", l.Len())
	return subcommands.ExitSuccess
}
