package main

import (
	"context"
	"flag"
	"time"

	"github.com/google/subcommands"

	"folio"
	"folio/advisor"
	"folio/pricefeed"
	"folio/renderer"
)

// openFeed builds the price feed stack from the environment.
func openFeed() (*pricefeed.Cached, error) {
	cfg, err := pricefeed.LoadConfig()
	if err != nil {
		return nil, err
	}
	return pricefeed.New(cfg), nil
}

type holdingsCmd struct {
	offline bool
}

func (*holdingsCmd) Name() string     { return "holdings" }
func (*holdingsCmd) Synopsis() string { return "show the current holdings and their valuation" }
func (*holdingsCmd) Usage() string {
	return `folio holdings [-offline]

  Prices every holding and renders the portfolio valuation. With
  -offline, liquid prices fall back to the cost basis and are marked
  stale.
`
}

func (p *holdingsCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&p.offline, "offline", false, "Skip the price feed; figures are marked stale.")
}

func (p *holdingsCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	l, err := openLedger(ctx)
	if err != nil {
		return fatalf("%v", err)
	}
	var feed folio.PriceFeed
	if !p.offline {
		f, err := openFeed()
		if err != nil {
			return fatalf("%v", err)
		}
		feed = f
	}
	pv := l.Valuation(ctx, feed, time.Now().UTC())
	printMarkdown(renderer.RenderValuation(pv))
	return subcommands.ExitSuccess
}

type txCmd struct{}

func (*txCmd) Name() string     { return "tx" }
func (*txCmd) Synopsis() string { return "list the transactions in the ledger" }
func (*txCmd) Usage() string {
	return `folio tx

  Lists the transaction log, reversed entries included.
`
}

func (*txCmd) SetFlags(*flag.FlagSet) {}

func (p *txCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	l, err := openLedger(ctx)
	if err != nil {
		return fatalf("%v", err)
	}
	printMarkdown(renderer.RenderTransactions(l))
	return subcommands.ExitSuccess
}

type seriesCmd struct {
	from    string
	to      string
	samples int
}

func (*seriesCmd) Name() string     { return "series" }
func (*seriesCmd) Synopsis() string { return "reconstruct the historical equity curve" }
func (*seriesCmd) Usage() string {
	return `folio series [-s <from>] [-e <to>] [-n <samples>]

  Replays the ledger at evenly spaced instants and prices each state
  from historical market data, rebuilding the total equity curve.
`
}

func (p *seriesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.from, "s", "", "Range start (YYYY-MM-DD). Defaults to 90 days ago.")
	f.StringVar(&p.to, "e", "", "Range end (YYYY-MM-DD). Defaults to today.")
	f.IntVar(&p.samples, "n", 30, "Number of samples.")
}

func (p *seriesCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	to := time.Now().UTC()
	from := to.AddDate(0, 0, -90)
	var err error
	if p.to != "" {
		if to, err = time.Parse(time.DateOnly, p.to); err != nil {
			return fatalf("invalid end date %q: %v", p.to, err)
		}
	}
	if p.from != "" {
		if from, err = time.Parse(time.DateOnly, p.from); err != nil {
			return fatalf("invalid start date %q: %v", p.from, err)
		}
	}

	l, err := openLedger(ctx)
	if err != nil {
		return fatalf("%v", err)
	}
	feed, err := openFeed()
	if err != nil {
		return fatalf("%v", err)
	}
	points, err := l.EquitySeries(ctx, feed, from, to, p.samples)
	if err != nil {
		return fatalf("%v", err)
	}
	printMarkdown(renderer.RenderEquitySeries(points, l.Currency()))
	return subcommands.ExitSuccess
}

type adviseCmd struct {
	model string
}

func (*adviseCmd) Name() string     { return "advise" }
func (*adviseCmd) Synopsis() string { return "ask the AI advisor to comment on the portfolio" }
func (*adviseCmd) Usage() string {
	return `folio advise [-model <name>]

  Renders the current valuation and transaction log and asks a
  generative model for a short commentary. Needs a GEMINI_API_KEY in
  the environment.
`
}

func (p *adviseCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.model, "model", "", "Override the advisor model.")
}

func (p *adviseCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	l, err := openLedger(ctx)
	if err != nil {
		return fatalf("%v", err)
	}
	feed, err := openFeed()
	if err != nil {
		return fatalf("%v", err)
	}
	report := renderer.RenderValuation(l.Valuation(ctx, feed, time.Now().UTC())) +
		"\n" + renderer.RenderTransactions(l)

	var opts []advisor.Option
	if p.model != "" {
		opts = append(opts, advisor.WithModel(p.model))
	}
	adv, err := advisor.New(ctx, opts...)
	if err != nil {
		return fatalf("%v", err)
	}
	comment, err := adv.Comment(ctx, report)
	if err != nil {
		return fatalf("%v", err)
	}
	printMarkdown(comment)
	return subcommands.ExitSuccess
}
