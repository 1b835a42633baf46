package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"folio"
)

// parseWhen parses the -d flag, defaulting to now.
func parseWhen(raw string) (time.Time, error) {
	if raw == "" {
		return time.Now().UTC(), nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, raw)
}

type buyCmd struct {
	id      string
	kind    string
	symbol  string
	name    string
	feedKey string
	growth  float64
	when    string
}

func (*buyCmd) Name() string     { return "buy" }
func (*buyCmd) Synopsis() string { return "record the purchase of an instrument" }
func (*buyCmd) Usage() string {
	return `folio buy [-d <date>] [-kind crypto|equity|nonLiquid] [-symbol S] [-key feed-key] [-growth pct] <instrument-id> <quantity> <price>

  Records a buy, merging into the existing position at weighted-average
  cost. The first buy of an instrument registers it; later buys only
  need the instrument id.

Usage Examples:
# First buy registers the instrument.
$ folio buy -kind crypto -symbol BTC -key bitcoin btc 0.5 60000
# Later buys reuse the registration.
$ folio buy btc 0.1 58000
`
}

func (p *buyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.when, "d", "", "Transaction date (RFC3339 or YYYY-MM-DD). Defaults to now.")
	f.StringVar(&p.kind, "kind", "", "Instrument kind: crypto, equity or nonLiquid.")
	f.StringVar(&p.symbol, "symbol", "", "Display symbol.")
	f.StringVar(&p.name, "name", "", "Display name.")
	f.StringVar(&p.feedKey, "key", "", "Price feed key (CoinGecko id or exchange ticker).")
	f.Float64Var(&p.growth, "growth", 0, "Assumed annual growth percent for non-liquid instruments.")
}

func (p *buyCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 3 {
		return fatalf("usage: folio buy <instrument-id> <quantity> <price>")
	}
	qty, err := decimal.NewFromString(f.Arg(1))
	if err != nil {
		return fatalf("invalid quantity %q: %v", f.Arg(1), err)
	}
	price, err := decimal.NewFromString(f.Arg(2))
	if err != nil {
		return fatalf("invalid price %q: %v", f.Arg(2), err)
	}
	at, err := parseWhen(p.when)
	if err != nil {
		return fatalf("invalid date %q: %v", p.when, err)
	}

	l, err := openLedger(ctx)
	if err != nil {
		return fatalf("%v", err)
	}

	in, err := p.instrument(l, f.Arg(0), at)
	if err != nil {
		return fatalf("%v", err)
	}
	tx, err := l.Buy(at, in, folio.Q(qty), folio.M(price, l.Currency()))
	if err != nil {
		return fatalf("%v", err)
	}
	fmt.Printf("bought %s %s at %s (%s)\n", tx.Quantity, in.Symbol, tx.Price, tx.ID())
	return subcommands.ExitSuccess
}

// instrument resolves the registered instrument or builds one from the
// registration flags on first buy.
func (p *buyCmd) instrument(l *folio.Ledger, id string, at time.Time) (folio.Instrument, error) {
	if in, ok := l.Instrument(id); ok {
		return in, nil
	}
	kind, err := folio.ParseKind(p.kind)
	if err != nil {
		return folio.Instrument{}, fmt.Errorf("unknown instrument %q and no -kind to register it: %w", id, err)
	}
	in := folio.Instrument{
		ID:      id,
		Kind:    kind,
		Symbol:  p.symbol,
		Name:    p.name,
		FeedKey: p.feedKey,
	}
	if kind == folio.NonLiquid {
		in.GrowthPct = decimal.NewFromFloat(p.growth)
		in.AcquiredAt = at
	}
	return in, nil
}

type sellCmd struct {
	when string
}

func (*sellCmd) Name() string     { return "sell" }
func (*sellCmd) Synopsis() string { return "record the sale of an instrument" }
func (*sellCmd) Usage() string {
	return `folio sell [-d <date>] <instrument-id> <quantity> <price>

  Records a sale. The realized gain is the proceeds minus the sold
  units at their weighted-average cost; selling everything removes the
  position.
`
}

func (p *sellCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.when, "d", "", "Transaction date (RFC3339 or YYYY-MM-DD). Defaults to now.")
}

func (p *sellCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 3 {
		return fatalf("usage: folio sell <instrument-id> <quantity> <price>")
	}
	qty, err := decimal.NewFromString(f.Arg(1))
	if err != nil {
		return fatalf("invalid quantity %q: %v", f.Arg(1), err)
	}
	price, err := decimal.NewFromString(f.Arg(2))
	if err != nil {
		return fatalf("invalid price %q: %v", f.Arg(2), err)
	}
	at, err := parseWhen(p.when)
	if err != nil {
		return fatalf("invalid date %q: %v", p.when, err)
	}

	l, err := openLedger(ctx)
	if err != nil {
		return fatalf("%v", err)
	}
	tx, err := l.Sell(at, f.Arg(0), folio.Q(qty), folio.M(price, l.Currency()))
	if err != nil {
		return fatalf("%v", err)
	}
	fmt.Printf("sold %s %s at %s, realized %s (%s)\n", tx.Quantity, tx.Instrument, tx.Price, tx.Realized.SignedString(), tx.ID())
	return subcommands.ExitSuccess
}

type depositCmd struct {
	when     string
	currency string
	rate     float64
}

func (*depositCmd) Name() string     { return "deposit" }
func (*depositCmd) Synopsis() string { return "record a capital deposit" }
func (*depositCmd) Usage() string {
	return `folio deposit [-d <date>] [-c <currency>] [-rate <rate>] <amount>

  Records a capital inflow, converted into the ledger's reference
  currency at the given rate.
`
}

func (p *depositCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&p.when, "d", "", "Transaction date (RFC3339 or YYYY-MM-DD). Defaults to now.")
	f.StringVar(&p.currency, "c", "", "Deposit currency. Defaults to the ledger's reference currency.")
	f.Float64Var(&p.rate, "rate", 1, "Conversion rate into the reference currency.")
}

func (p *depositCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return fatalf("usage: folio deposit <amount>")
	}
	amount, err := decimal.NewFromString(f.Arg(0))
	if err != nil {
		return fatalf("invalid amount %q: %v", f.Arg(0), err)
	}
	at, err := parseWhen(p.when)
	if err != nil {
		return fatalf("invalid date %q: %v", p.when, err)
	}

	l, err := openLedger(ctx)
	if err != nil {
		return fatalf("%v", err)
	}
	cur := p.currency
	if cur == "" {
		cur = l.Currency()
	}
	tx, err := l.Deposit(at, folio.M(amount, cur), decimal.NewFromFloat(p.rate))
	if err != nil {
		return fatalf("%v", err)
	}
	fmt.Printf("deposited %s (%s)\n", tx.Gross, tx.ID())
	return subcommands.ExitSuccess
}

type reverseCmd struct{}

func (*reverseCmd) Name() string     { return "reverse" }
func (*reverseCmd) Synopsis() string { return "reverse a recorded transaction" }
func (*reverseCmd) Usage() string {
	return `folio reverse <transaction-id>

  Applies the algebraic inverse of a transaction and marks it reversed.
  The entry stays in the log; a transaction can only be reversed once.
`
}

func (*reverseCmd) SetFlags(*flag.FlagSet) {}

func (*reverseCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		return fatalf("usage: folio reverse <transaction-id>")
	}
	l, err := openLedger(ctx)
	if err != nil {
		return fatalf("%v", err)
	}
	tx, err := l.Reverse(f.Arg(0))
	if err != nil {
		return fatalf("%v", err)
	}
	fmt.Printf("reversed %s transaction %s\n", tx.Type(), tx.ID())
	return subcommands.ExitSuccess
}
