// Command folio manages a portfolio ledger from the terminal: record
// buys, sells and deposits, reverse mistakes, and render valuation and
// history reports as markdown.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"path"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"

	"folio"
	"folio/store"
)

// as a CLI application, it has a very short lived lifecycle, so it is
// ok to use global variables.
var (
	storeKind = flag.String("store", "file", "Snapshot store kind (memory, file, sqlite).")
	storePath = flag.String("file", "folio.jsonl", "Path to the snapshot store.")
	currency  = flag.String("currency", "EUR", "Reference currency for a newly created ledger.")
	trackCash = flag.String("cash", "", "Set to 'track' on a newly created ledger to make deposits fund buys.")
)

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))

	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")

	commander.Register(&buyCmd{}, "transactions")
	commander.Register(&sellCmd{}, "transactions")
	commander.Register(&depositCmd{}, "transactions")
	commander.Register(&reverseCmd{}, "transactions")

	commander.Register(&holdingsCmd{}, "reports")
	commander.Register(&txCmd{}, "reports")
	commander.Register(&seriesCmd{}, "reports")
	commander.Register(&adviseCmd{}, "reports")

	commander.Register(&exportCmd{}, "interchange")
	commander.Register(&importCmd{}, "interchange")

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

// openStore opens the snapshot store selected by the global flags.
func openStore() (store.Store, error) {
	return store.Open(*storeKind, *storePath)
}

// openLedger loads the ledger from the store, creating an empty one on
// first use, and wires persistence so every mutation is snapshotted.
func openLedger(ctx context.Context) (*folio.Ledger, error) {
	s, err := openStore()
	if err != nil {
		return nil, err
	}
	l, err := s.Load(ctx)
	if errors.Is(err, store.ErrEmpty) {
		fmt.Fprintln(os.Stderr, "warning: no ledger found, starting an empty one")
		opts := []folio.Option{folio.WithCurrency(*currency)}
		if *trackCash == "track" {
			opts = append(opts, folio.WithCashTracking())
		}
		l, err = folio.NewLedger(opts...), nil
	}
	if err != nil {
		return nil, err
	}
	l.SetPersister(store.AsPersister(ctx, s))
	return l, nil
}

// printMarkdown renders markdown for the terminal, falling back to the
// raw text when the terminal renderer fails.
func printMarkdown(md string) {
	out, err := glamour.Render(md, "auto")
	if err != nil {
		fmt.Println(md)
		return
	}
	fmt.Print(out)
}

func fatalf(format string, args ...any) subcommands.ExitStatus {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	return subcommands.ExitFailure
}
