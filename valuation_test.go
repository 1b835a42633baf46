package folio

import (
	"context"
	"testing"
	"time"
)

// fakeFeed serves canned quotes and histories keyed by instrument id.
type fakeFeed struct {
	quotes    map[string]Quote
	histories map[string][]Point
	err       error
	calls     int
}

func (f *fakeFeed) Last(_ context.Context, in Instrument) (Quote, error) {
	f.calls++
	if f.err != nil {
		return Quote{}, f.err
	}
	q, ok := f.quotes[in.ID]
	if !ok {
		return Quote{}, ErrPriceUnavailable
	}
	return q, nil
}

func (f *fakeFeed) History(_ context.Context, in Instrument, from, to time.Time) ([]Point, error) {
	if f.err != nil {
		return nil, f.err
	}
	pts, ok := f.histories[in.ID]
	if !ok {
		return nil, ErrPriceUnavailable
	}
	return pts, nil
}

func TestValuation(t *testing.T) {
	l := NewLedger()
	mustBuy(t, l, day(1), btc(), 2, 1000)
	mustBuy(t, l, day(2), acme(), 10, 50)
	mustSell(t, l, day(3), "acme", 5, 60) // realized 50

	asOf := day(10)
	feed := &fakeFeed{quotes: map[string]Quote{
		"btc":  {Price: M(1500, "EUR"), At: asOf},
		"acme": {Price: M(40, "EUR"), At: asOf},
	}}

	pv := l.Valuation(context.Background(), feed, asOf)

	if len(pv.Holdings) != 2 {
		t.Fatalf("holdings = %d, want 2", len(pv.Holdings))
	}
	if pv.Stale {
		t.Error("valuation should not be stale with a healthy feed")
	}
	// holdings are ordered by instrument id: acme then btc
	a, b := pv.Holdings[0], pv.Holdings[1]
	if a.Instrument != "acme" || b.Instrument != "btc" {
		t.Fatalf("holding order = %s, %s", a.Instrument, b.Instrument)
	}
	if !a.MarketValue.Equal(M(200, "EUR")) { // 5 x 40
		t.Errorf("acme market value = %s, want 200", a.MarketValue.Amount())
	}
	if !a.Unrealized.Equal(M(-50, "EUR")) { // 200 - 250 invested
		t.Errorf("acme unrealized = %s, want -50", a.Unrealized.Amount())
	}
	if !b.MarketValue.Equal(M(3000, "EUR")) { // 2 x 1500
		t.Errorf("btc market value = %s, want 3000", b.MarketValue.Amount())
	}
	if !pv.MarketValue.Equal(M(3200, "EUR")) {
		t.Errorf("portfolio market value = %s, want 3200", pv.MarketValue.Amount())
	}
	if !pv.Invested.Equal(M(2250, "EUR")) {
		t.Errorf("portfolio invested = %s, want 2250", pv.Invested.Amount())
	}
	if !pv.Unrealized.Equal(M(950, "EUR")) {
		t.Errorf("portfolio unrealized = %s, want 950", pv.Unrealized.Amount())
	}
	if !pv.Realized.Equal(M(50, "EUR")) {
		t.Errorf("portfolio realized = %s, want 50", pv.Realized.Amount())
	}
	if !pv.TotalEquity.Equal(pv.MarketValue) {
		t.Errorf("total equity = %s, want market value with zero cash", pv.TotalEquity.Amount())
	}
}

func TestValuation_NonLiquidNeedsNoFeed(t *testing.T) {
	acquired := day(0)
	l := NewLedger()
	mustBuy(t, l, day(0), house(5, acquired), 1, 1_000_000)

	feed := &fakeFeed{} // would fail for any liquid instrument
	twoYears := acquired.Add(time.Duration(2 * hoursPerYear * float64(time.Hour)))
	pv := l.Valuation(context.Background(), feed, twoYears)

	if pv.Stale {
		t.Error("non-liquid estimates are deterministic, never stale")
	}
	if feed.calls != 0 {
		t.Errorf("feed calls = %d, want 0", feed.calls)
	}
	moneyNear(t, pv.MarketValue, 1_102_500)
}

func TestValuation_FeedFailureFallsBack(t *testing.T) {
	l := NewLedger()
	mustBuy(t, l, day(1), btc(), 2, 1000)

	// first valuation succeeds and remembers the quote
	good := &fakeFeed{quotes: map[string]Quote{"btc": {Price: M(1200, "EUR"), At: day(5)}}}
	if pv := l.Valuation(context.Background(), good, day(5)); pv.Stale {
		t.Fatal("healthy valuation flagged stale")
	}

	// feed now fails: fall back to the last known quote, flagged stale
	bad := &fakeFeed{err: ErrPriceUnavailable}
	pv := l.Valuation(context.Background(), bad, day(6))
	if !pv.Stale || !pv.Holdings[0].Stale {
		t.Error("fallback valuation must be flagged stale")
	}
	if !pv.Holdings[0].Price.Equal(M(1200, "EUR")) {
		t.Errorf("fallback price = %s, want last known 1200", pv.Holdings[0].Price.Amount())
	}

	// a fresh ledger has no last quote: fall back to the cost basis
	l2 := NewLedger()
	mustBuy(t, l2, day(1), btc(), 2, 1000)
	pv2 := l2.Valuation(context.Background(), bad, day(6))
	if !pv2.Holdings[0].Price.Equal(M(1000, "EUR")) {
		t.Errorf("fallback price = %s, want cost basis 1000", pv2.Holdings[0].Price.Amount())
	}
	if !pv2.Stale {
		t.Error("cost-basis fallback must be flagged stale")
	}
}

func TestValuation_EmptyLedger(t *testing.T) {
	l := NewLedger()
	pv := l.Valuation(context.Background(), &fakeFeed{}, day(1))
	if len(pv.Holdings) != 0 || !pv.MarketValue.IsZero() || pv.UnrealizedPct != 0 {
		t.Errorf("empty valuation = %+v, want all zero", pv)
	}
}
