package folio

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

var testEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func day(n int) time.Time { return testEpoch.AddDate(0, 0, n) }

func btc() Instrument {
	return Instrument{ID: "btc", Kind: Crypto, Symbol: "BTC", Name: "Bitcoin", FeedKey: "bitcoin"}
}

func acme() Instrument {
	return Instrument{ID: "acme", Kind: Equity, Symbol: "ACME", Name: "Acme Corp", FeedKey: "ACME"}
}

func house(growthPct float64, acquired time.Time) Instrument {
	return Instrument{ID: "house", Kind: NonLiquid, Symbol: "HOUSE", Name: "Main Street House",
		GrowthPct: decimal.NewFromFloat(growthPct), AcquiredAt: acquired}
}

func mustBuy(t *testing.T, l *Ledger, at time.Time, in Instrument, qty, price float64) Buy {
	t.Helper()
	tx, err := l.Buy(at, in, Q(qty), M(price, l.Currency()))
	if err != nil {
		t.Fatalf("Buy(%s, %v, %v): %v", in.ID, qty, price, err)
	}
	return tx
}

func mustSell(t *testing.T, l *Ledger, at time.Time, id string, qty, price float64) Sell {
	t.Helper()
	tx, err := l.Sell(at, id, Q(qty), M(price, l.Currency()))
	if err != nil {
		t.Fatalf("Sell(%s, %v, %v): %v", id, qty, price, err)
	}
	return tx
}

func wantHolding(t *testing.T, l *Ledger, id string, qty, avgCost, invested float64) {
	t.Helper()
	h, ok := l.Holding(id)
	if !ok {
		t.Fatalf("Holding(%q): not found", id)
	}
	if !h.Quantity.Equal(Q(qty)) {
		t.Errorf("Holding(%q).Quantity = %s, want %v", id, h.Quantity, qty)
	}
	if !h.AvgCost.Equal(M(avgCost, l.Currency())) {
		t.Errorf("Holding(%q).AvgCost = %s, want %v", id, h.AvgCost.Amount(), avgCost)
	}
	if !h.Invested.Equal(M(invested, l.Currency())) {
		t.Errorf("Holding(%q).Invested = %s, want %v", id, h.Invested.Amount(), invested)
	}
	if !h.Invested.Equal(h.AvgCost.Mul(h.Quantity)) {
		t.Errorf("Holding(%q): invested %s != quantity %s x avgCost %s",
			id, h.Invested.Amount(), h.Quantity, h.AvgCost.Amount())
	}
}

// Scenario A: two buys merge at weighted-average cost.
func TestBuy_WeightedAverage(t *testing.T) {
	l := NewLedger()

	mustBuy(t, l, day(1), btc(), 10, 100)
	wantHolding(t, l, "btc", 10, 100, 1000)

	mustBuy(t, l, day(2), btc(), 10, 200)
	wantHolding(t, l, "btc", 20, 150, 3000)
}

// Scenario B: a partial sell realizes proceeds minus cost of sold units
// and leaves the average cost unchanged.
func TestSell_PartialRealizesGain(t *testing.T) {
	l := NewLedger()
	mustBuy(t, l, day(1), btc(), 10, 100)
	mustBuy(t, l, day(2), btc(), 10, 200)

	tx := mustSell(t, l, day(3), "btc", 5, 300)

	if !tx.Gross.Equal(M(1500, "EUR")) {
		t.Errorf("proceeds = %s, want 1500", tx.Gross.Amount())
	}
	if !tx.CostOfSold.Equal(M(750, "EUR")) {
		t.Errorf("costOfSold = %s, want 750", tx.CostOfSold.Amount())
	}
	if !tx.Realized.Equal(M(750, "EUR")) {
		t.Errorf("realized = %s, want 750", tx.Realized.Amount())
	}
	wantHolding(t, l, "btc", 15, 150, 2250)
	if !l.Realized().Equal(M(750, "EUR")) {
		t.Errorf("ledger realized = %s, want 750", l.Realized().Amount())
	}
}

// Scenario C: selling the full position removes the holding; a sale at
// average cost realizes nothing.
func TestSell_FullRemovesHolding(t *testing.T) {
	l := NewLedger()
	mustBuy(t, l, day(1), btc(), 10, 100)
	mustBuy(t, l, day(2), btc(), 10, 200)
	mustSell(t, l, day(3), "btc", 5, 300)

	mustSell(t, l, day(4), "btc", 15, 150)

	if _, ok := l.Holding("btc"); ok {
		t.Error("holding should be removed after selling the full position")
	}
	if !l.Realized().Equal(M(750, "EUR")) {
		t.Errorf("ledger realized = %s, want 750", l.Realized().Amount())
	}
	// the instrument stays registered for exports and history
	if _, ok := l.Instrument("btc"); !ok {
		t.Error("instrument should stay registered after liquidation")
	}
}

// Scenario D: reversing a sell with no intervening activity restores the
// holding and the realized figure exactly.
func TestReverse_SellRestoresExactly(t *testing.T) {
	l := NewLedger()
	mustBuy(t, l, day(1), btc(), 10, 100)
	mustBuy(t, l, day(2), btc(), 10, 200)
	sell := mustSell(t, l, day(3), "btc", 5, 300)

	if _, err := l.Reverse(sell.ID()); err != nil {
		t.Fatalf("Reverse(sell): %v", err)
	}

	wantHolding(t, l, "btc", 20, 150, 3000)
	if !l.Realized().IsZero() {
		t.Errorf("ledger realized = %s, want 0", l.Realized().Amount())
	}
	tx, ok := l.Transaction(sell.ID())
	if !ok || !tx.Reversed() {
		t.Error("reversed sell should stay in the log, marked reversed")
	}
	if l.Len() != 3 {
		t.Errorf("log length = %d, want 3 (reversal marks, never deletes)", l.Len())
	}
}

func TestReverse_BuyRestoresExactly(t *testing.T) {
	l := NewLedger()
	mustBuy(t, l, day(1), btc(), 10, 100)
	buy := mustBuy(t, l, day(2), btc(), 10, 200)

	if _, err := l.Reverse(buy.ID()); err != nil {
		t.Fatalf("Reverse(buy): %v", err)
	}
	wantHolding(t, l, "btc", 10, 100, 1000)
}

func TestReverse_LastBuyRemovesHolding(t *testing.T) {
	l := NewLedger()
	buy := mustBuy(t, l, day(1), btc(), 10, 100)

	if _, err := l.Reverse(buy.ID()); err != nil {
		t.Fatalf("Reverse(buy): %v", err)
	}
	if _, ok := l.Holding("btc"); ok {
		t.Error("reversing the only buy should remove the holding")
	}
}

func TestReverse_Idempotency(t *testing.T) {
	l := NewLedger()
	buy := mustBuy(t, l, day(1), btc(), 10, 100)
	mustBuy(t, l, day(2), btc(), 10, 200)

	if _, err := l.Reverse(buy.ID()); err != nil {
		t.Fatalf("first Reverse: %v", err)
	}
	_, err := l.Reverse(buy.ID())
	if !errors.Is(err, ErrAlreadyReversed) {
		t.Fatalf("second Reverse = %v, want ErrAlreadyReversed", err)
	}
	// the failed second reversal left the state untouched
	wantHolding(t, l, "btc", 10, 200, 2000)
}

func TestReverse_UnknownID(t *testing.T) {
	l := NewLedger()
	if _, err := l.Reverse("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Reverse(unknown) = %v, want ErrNotFound", err)
	}
}

func TestReverse_BuyBlockedByLaterSell(t *testing.T) {
	l := NewLedger()
	buy := mustBuy(t, l, day(1), btc(), 10, 100)
	mustSell(t, l, day(2), "btc", 8, 120)

	// only 2 units remain, the buy of 10 cannot be unwound
	_, err := l.Reverse(buy.ID())
	if !errors.Is(err, ErrInsufficientQuantity) {
		t.Fatalf("Reverse = %v, want ErrInsufficientQuantity", err)
	}
	wantHolding(t, l, "btc", 2, 100, 200)
}

func TestReverse_SellAfterFullLiquidationRecreatesHolding(t *testing.T) {
	l := NewLedger()
	mustBuy(t, l, day(1), btc(), 10, 100)
	sell := mustSell(t, l, day(2), "btc", 10, 150)

	if _, ok := l.Holding("btc"); ok {
		t.Fatal("holding should be gone after full sell")
	}
	if _, err := l.Reverse(sell.ID()); err != nil {
		t.Fatalf("Reverse(sell): %v", err)
	}
	wantHolding(t, l, "btc", 10, 100, 1000)
}

// Reversing a buy whose units were sold and reacquired leaves a log
// whose surviving sell replays against a not-yet-bought position. The
// replayed state must still agree with the live one.
func TestReverse_BuyAfterReacquisitionReplays(t *testing.T) {
	l := NewLedger()
	first := mustBuy(t, l, day(1), btc(), 10, 100)
	mustSell(t, l, day(2), "btc", 10, 150) // realized 500, holding gone
	mustBuy(t, l, day(3), btc(), 10, 200)

	// 10 units are held again, so the first buy can be unwound
	if _, err := l.Reverse(first.ID()); err != nil {
		t.Fatalf("Reverse(first buy): %v", err)
	}
	if _, ok := l.Holding("btc"); ok {
		t.Error("unwinding the first buy should consume the reacquired position")
	}
	if !l.Realized().Equal(M(500, "EUR")) {
		t.Errorf("realized = %s, want 500", l.Realized().Amount())
	}

	l.Replay()
	if _, ok := l.Holding("btc"); ok {
		t.Error("replay should reproduce the empty position")
	}
	if !l.Realized().Equal(M(500, "EUR")) {
		t.Errorf("replayed realized = %s, want 500", l.Realized().Amount())
	}
}

func TestSell_Insufficient(t *testing.T) {
	l := NewLedger()
	mustBuy(t, l, day(1), btc(), 5, 100)

	_, err := l.Sell(day(2), "btc", Q(6), M(100, "EUR"))
	if !errors.Is(err, ErrInsufficientQuantity) {
		t.Fatalf("Sell = %v, want ErrInsufficientQuantity", err)
	}
	wantHolding(t, l, "btc", 5, 100, 500)

	_, err = l.Sell(day(2), "eth", Q(1), M(100, "EUR"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Sell unknown = %v, want ErrNotFound", err)
	}
}

func TestValidation_LeavesLedgerUntouched(t *testing.T) {
	cases := []struct {
		name string
		op   func(l *Ledger) error
	}{
		{"buy zero quantity", func(l *Ledger) error {
			_, err := l.Buy(day(2), btc(), Q(0), M(100, "EUR"))
			return err
		}},
		{"buy negative quantity", func(l *Ledger) error {
			_, err := l.Buy(day(2), btc(), Q(-1), M(100, "EUR"))
			return err
		}},
		{"buy zero price", func(l *Ledger) error {
			_, err := l.Buy(day(2), btc(), Q(1), M(0, "EUR"))
			return err
		}},
		{"buy foreign currency price", func(l *Ledger) error {
			_, err := l.Buy(day(2), btc(), Q(1), M(100, "USD"))
			return err
		}},
		{"buy invalid instrument", func(l *Ledger) error {
			_, err := l.Buy(day(2), Instrument{ID: "x"}, Q(1), M(100, "EUR"))
			return err
		}},
		{"sell zero quantity", func(l *Ledger) error {
			_, err := l.Sell(day(2), "btc", Q(0), M(100, "EUR"))
			return err
		}},
		{"sell negative price", func(l *Ledger) error {
			_, err := l.Sell(day(2), "btc", Q(1), M(-5, "EUR"))
			return err
		}},
		{"deposit zero amount", func(l *Ledger) error {
			_, err := l.Deposit(day(2), M(0, "USD"), decimal.NewFromInt(1))
			return err
		}},
		{"deposit zero rate", func(l *Ledger) error {
			_, err := l.Deposit(day(2), M(100, "USD"), decimal.Zero)
			return err
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			l := NewLedger()
			mustBuy(t, l, day(1), btc(), 5, 100)

			if err := tc.op(l); !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("got %v, want ErrInvalidArgument", err)
			}
			wantHolding(t, l, "btc", 5, 100, 500)
			if l.Len() != 1 {
				t.Errorf("log length = %d, want 1", l.Len())
			}
		})
	}
}

func TestDeposit_ConvertsAndAccumulates(t *testing.T) {
	l := NewLedger()

	tx, err := l.Deposit(day(1), M(1000, "USD"), decimal.NewFromFloat(0.9))
	if err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if !tx.Gross.Equal(M(900, "EUR")) {
		t.Errorf("gross = %s %s, want 900 EUR", tx.Gross.Amount(), tx.Gross.Currency())
	}
	if !l.Deposited().Equal(M(900, "EUR")) {
		t.Errorf("deposited = %s, want 900", l.Deposited().Amount())
	}
	// deposits never touch holdings, and cash stays zero off tracking
	if n := l.Len(); n != 1 {
		t.Errorf("log length = %d, want 1", n)
	}
	if !l.Cash().IsZero() {
		t.Errorf("cash = %s, want 0 without tracking", l.Cash().Amount())
	}
}

func TestCashTracking(t *testing.T) {
	l := NewLedger(WithCashTracking())

	// a buy without funds is rejected
	_, err := l.Buy(day(1), btc(), Q(1), M(100, "EUR"))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("unfunded Buy = %v, want ErrInsufficientBalance", err)
	}

	if _, err := l.Deposit(day(1), M(1000, "EUR"), decimal.NewFromInt(1)); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	mustBuy(t, l, day(2), btc(), 5, 100)
	if !l.Cash().Equal(M(500, "EUR")) {
		t.Errorf("cash after buy = %s, want 500", l.Cash().Amount())
	}

	mustSell(t, l, day(3), "btc", 5, 120)
	if !l.Cash().Equal(M(1100, "EUR")) {
		t.Errorf("cash after sell = %s, want 1100", l.Cash().Amount())
	}
}

func TestReverse_Deposit(t *testing.T) {
	l := NewLedger(WithCashTracking())
	dep, err := l.Deposit(day(1), M(1000, "EUR"), decimal.NewFromInt(1))
	if err != nil {
		t.Fatalf("Deposit: %v", err)
	}

	if _, err := l.Reverse(dep.ID()); err != nil {
		t.Fatalf("Reverse(deposit): %v", err)
	}
	if !l.Cash().IsZero() || !l.Deposited().IsZero() {
		t.Errorf("cash = %s, deposited = %s, want both 0", l.Cash().Amount(), l.Deposited().Amount())
	}
}

func TestLog_ChronologicalWithStableTies(t *testing.T) {
	l := NewLedger()
	mustBuy(t, l, day(5), btc(), 1, 100)
	first := mustBuy(t, l, day(3), acme(), 1, 50) // out of order
	second := mustBuy(t, l, day(3), btc(), 1, 60) // same instant, after first

	var ids []string
	for tx := range l.Transactions() {
		ids = append(ids, tx.ID())
	}
	if len(ids) != 3 {
		t.Fatalf("log length = %d, want 3", len(ids))
	}
	if ids[0] != first.ID() || ids[1] != second.ID() {
		t.Errorf("ties at the same instant must keep insertion order")
	}
}

func TestFractionalQuantities(t *testing.T) {
	l := NewLedger()
	mustBuy(t, l, day(1), btc(), 0.3, 100)
	mustBuy(t, l, day(2), btc(), 0.3, 100)
	mustBuy(t, l, day(3), btc(), 0.4, 100)

	// decimal arithmetic keeps 0.3+0.3+0.4 exactly 1
	wantHolding(t, l, "btc", 1, 100, 100)
	mustSell(t, l, day(4), "btc", 1, 100)
	if _, ok := l.Holding("btc"); ok {
		t.Error("fractional buys should sum exactly and liquidate cleanly")
	}
}

type persisterSpy struct {
	calls int
	err   error
}

func (p *persisterSpy) Persist(*Ledger) error {
	p.calls++
	return p.err
}

func TestPersister_CalledOnEveryMutation(t *testing.T) {
	spy := &persisterSpy{}
	l := NewLedger(WithPersister(spy))

	buy := mustBuy(t, l, day(1), btc(), 10, 100)
	mustSell(t, l, day(2), "btc", 5, 110)
	if _, err := l.Deposit(day(3), M(100, "EUR"), decimal.NewFromInt(1)); err != nil {
		t.Fatalf("Deposit: %v", err)
	}
	if _, err := l.Reverse(buy.ID()); err == nil {
		t.Fatal("Reverse should fail, only 5 units remain")
	}
	if spy.calls != 3 {
		t.Errorf("persister calls = %d, want 3 (failed mutations never persist)", spy.calls)
	}
}

func TestPersister_FailureSurfacedNotFatal(t *testing.T) {
	spy := &persisterSpy{err: errors.New("disk full")}
	l := NewLedger(WithPersister(spy))

	_, err := l.Buy(day(1), btc(), Q(10), M(100, "EUR"))
	if err == nil {
		t.Fatal("persistence failure should be surfaced")
	}
	// the mutation itself is applied; only the save failed
	wantHolding(t, l, "btc", 10, 100, 1000)
}
