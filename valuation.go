package folio

import (
	"context"
	"time"
)

// Quote is a spot price for one instrument.
type Quote struct {
	Price Money     `json:"price"`
	At    time.Time `json:"at"`
}

// Point is one sample of a historical price series.
type Point struct {
	At    time.Time `json:"at"`
	Price Money     `json:"price"`
}

// PriceFeed supplies market prices for liquid instruments. Implementations
// live in the pricefeed package; the ledger only consumes the contract.
// A feed error is never fatal to valuation: the caller falls back and
// flags the result stale.
type PriceFeed interface {
	Last(ctx context.Context, in Instrument) (Quote, error)
	History(ctx context.Context, in Instrument, from, to time.Time) ([]Point, error)
}

// HoldingValuation is the priced view of one holding.
type HoldingValuation struct {
	Instrument    string    `json:"instrument"`
	Symbol        string    `json:"symbol"`
	Quantity      Quantity  `json:"quantity"`
	AvgCost       Money     `json:"avgCost"`
	Invested      Money     `json:"invested"`
	Price         Money     `json:"price"`
	MarketValue   Money     `json:"marketValue"`
	Unrealized    Money     `json:"unrealized"`
	UnrealizedPct float64   `json:"unrealizedPct"`
	PricedAt      time.Time `json:"pricedAt"`

	// Stale marks a price obtained by fallback (last known quote or the
	// cost basis) after the feed failed.
	Stale bool `json:"stale,omitempty"`
}

// PortfolioValuation aggregates the priced holdings with the ledger's
// cash and realized figures.
type PortfolioValuation struct {
	AsOf          time.Time          `json:"asOf"`
	Currency      string             `json:"currency"`
	Holdings      []HoldingValuation `json:"holdings"`
	MarketValue   Money              `json:"marketValue"`
	Invested      Money              `json:"invested"`
	Unrealized    Money              `json:"unrealized"`
	UnrealizedPct float64            `json:"unrealizedPct"`
	Realized      Money              `json:"realized"`
	Cash          Money              `json:"cash"`
	Deposited     Money              `json:"deposited"`
	TotalEquity   Money              `json:"totalEquity"` // MarketValue + Cash
	Stale         bool               `json:"stale,omitempty"`
}

// Valuation prices every active holding at asOf and aggregates the
// portfolio. Non-liquid instruments are priced by their deterministic
// growth estimate; liquid ones through the feed, falling back to the
// last known quote and then to the cost basis when the feed fails.
// The returned valuation is always complete, even fully stale.
func (l *Ledger) Valuation(ctx context.Context, feed PriceFeed, asOf time.Time) PortfolioValuation {
	pv := PortfolioValuation{
		AsOf:        asOf,
		Currency:    l.currency,
		MarketValue: M(0, l.currency),
		Invested:    M(0, l.currency),
		Unrealized:  M(0, l.currency),
		Realized:    l.realized,
		Cash:        l.cash,
		Deposited:   l.deposited,
	}

	for h := range l.Holdings() {
		in := l.instruments[h.Instrument]
		hv := HoldingValuation{
			Instrument: h.Instrument,
			Symbol:     in.Symbol,
			Quantity:   h.Quantity,
			AvgCost:    h.AvgCost,
			Invested:   h.Invested,
		}
		q, stale := l.price(ctx, feed, in, h, asOf)
		hv.Price, hv.PricedAt, hv.Stale = q.Price, q.At, stale
		hv.MarketValue = q.Price.Mul(h.Quantity)
		hv.Unrealized = hv.MarketValue.Sub(h.Invested)
		if !h.Invested.IsZero() {
			hv.UnrealizedPct = hv.Unrealized.Float64() / h.Invested.Float64() * 100
		}

		pv.Holdings = append(pv.Holdings, hv)
		pv.MarketValue = pv.MarketValue.Add(hv.MarketValue)
		pv.Invested = pv.Invested.Add(hv.Invested)
		pv.Unrealized = pv.Unrealized.Add(hv.Unrealized)
		pv.Stale = pv.Stale || stale
	}
	if !pv.Invested.IsZero() {
		pv.UnrealizedPct = pv.Unrealized.Float64() / pv.Invested.Float64() * 100
	}
	pv.TotalEquity = pv.MarketValue.Add(pv.Cash)
	return pv
}

// price resolves one instrument's price at asOf, reporting staleness.
func (l *Ledger) price(ctx context.Context, feed PriceFeed, in Instrument, h Holding, asOf time.Time) (Quote, bool) {
	if in.Kind == NonLiquid {
		return Quote{Price: in.EstimatedPrice(h.AvgCost, asOf), At: asOf}, false
	}
	if feed != nil {
		if q, err := feed.Last(ctx, in); err == nil {
			l.rememberQuote(in.ID, q)
			return q, false
		}
	}
	if q, ok := l.lastQuotes[in.ID]; ok {
		return q, true
	}
	return Quote{Price: h.AvgCost, At: h.CreatedAt}, true
}

func (l *Ledger) rememberQuote(id string, q Quote) {
	if l.lastQuotes == nil {
		l.lastQuotes = make(map[string]Quote)
	}
	l.lastQuotes[id] = q
}
