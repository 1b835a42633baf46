package folio

import (
	"context"
	"fmt"
	"time"

	"folio/timeline"
)

// EquityPoint is one sample of the reconstructed equity curve.
type EquityPoint struct {
	At     time.Time `json:"at"`
	Equity Money     `json:"equity"`
	Stale  bool      `json:"stale,omitempty"`
}

// EquitySeries reconstructs the total portfolio equity at evenly spaced
// sample instants in [from, to], by replaying the transaction log up to
// each instant (reversed transactions skipped). Liquid instruments are
// priced from a single History fetch per instrument, resolved nearest
// at-or-before each sample; non-liquid instruments use their growth
// estimate; reconstructed cash is added on top.
//
// The series is recomputed on every call and never retained. The cost is
// O(samples x transactions) plus one feed call per liquid instrument.
func (l *Ledger) EquitySeries(ctx context.Context, feed PriceFeed, from, to time.Time, samples int) ([]EquityPoint, error) {
	if samples < 2 {
		return nil, fmt.Errorf("%w: need at least 2 samples, got %d", ErrInvalidArgument, samples)
	}
	if to.Before(from) {
		return nil, fmt.Errorf("%w: series range ends %s before it starts %s", ErrInvalidArgument, to, from)
	}

	// One history fetch per liquid instrument ever traded. A failed
	// fetch leaves the timeline empty; those samples degrade to the
	// cost basis and are flagged stale.
	prices := make(map[string]*timeline.Series[Money])
	for in := range l.Instruments() {
		if in.Kind == NonLiquid {
			continue
		}
		tl := new(timeline.Series[Money])
		prices[in.ID] = tl
		if feed == nil {
			continue
		}
		points, err := feed.History(ctx, in, from, to)
		if err != nil {
			continue
		}
		for _, p := range points {
			tl.Append(p.At, p.Price)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	step := to.Sub(from) / time.Duration(samples-1)
	series := make([]EquityPoint, 0, samples)
	for i := range samples {
		at := from.Add(time.Duration(i) * step)
		if i == samples-1 {
			at = to // avoid duration rounding on the last sample
		}

		state := l.stateAt(at)
		equity := state.cash
		stale := false
		for h := range state.Holdings() {
			in := l.instruments[h.Instrument]
			var price Money
			switch {
			case in.Kind == NonLiquid:
				price = in.EstimatedPrice(h.AvgCost, at)
			default:
				p, ok := prices[in.ID].ValueAsOf(at)
				if !ok {
					p, stale = h.AvgCost, true
				}
				price = p
			}
			equity = equity.Add(price.Mul(h.Quantity))
		}
		series = append(series, EquityPoint{At: at, Equity: equity, Stale: stale})
	}
	return series, nil
}
