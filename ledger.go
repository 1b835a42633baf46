package folio

import (
	"fmt"
	"iter"
	"log"
	"maps"
	"slices"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Holding is the current position in one instrument. TotalInvested always
// equals Quantity * AvgCost; a holding with zero quantity is removed from
// the active set.
type Holding struct {
	Instrument string    `json:"instrument"`
	Quantity   Quantity  `json:"quantity"`
	AvgCost    Money     `json:"avgCost"`
	Invested   Money     `json:"invested"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Persister receives a snapshot of the ledger after every successful
// mutation. Persistence failures are reported to the caller but never
// undo the mutation.
type Persister interface {
	Persist(l *Ledger) error
}

// PersisterFunc adapts a function to the Persister interface.
type PersisterFunc func(l *Ledger) error

func (f PersisterFunc) Persist(l *Ledger) error { return f(l) }

// Ledger is the single source of truth for a portfolio: registered
// instruments, the append-only transaction log, and the state derived
// from replaying it. Transactions are kept in chronological order, ties
// resolved by insertion order.
//
// Ledger is not safe for concurrent use; callers serialize access.
type Ledger struct {
	currency    string
	trackCash   bool
	persister   Persister
	instruments map[string]Instrument
	log         []Transaction

	// replayed state
	holdings  map[string]*Holding
	cash      Money
	deposited Money
	realized  Money

	// last successful quotes, valuation fallback only
	lastQuotes map[string]Quote
}

// Option configures a Ledger at construction time.
type Option func(*Ledger)

// WithCurrency sets the reference currency. Default is EUR.
func WithCurrency(code string) Option {
	return func(l *Ledger) { l.currency = code }
}

// WithCashTracking makes deposits fund buys: a buy exceeding the cash
// balance is rejected with ErrInsufficientBalance. Without it, cash is
// ignored and buys are always funded.
func WithCashTracking() Option {
	return func(l *Ledger) { l.trackCash = true }
}

// WithPersister installs the snapshot sink called after every mutation.
func WithPersister(p Persister) Option {
	return func(l *Ledger) { l.persister = p }
}

// NewLedger creates an empty ledger.
func NewLedger(opts ...Option) *Ledger {
	l := &Ledger{
		currency:    "EUR",
		instruments: make(map[string]Instrument),
		holdings:    make(map[string]*Holding),
	}
	for _, o := range opts {
		o(l)
	}
	l.cash = M(0, l.currency)
	l.deposited = M(0, l.currency)
	l.realized = M(0, l.currency)
	return l
}

// SetPersister replaces the snapshot sink. Used when a ledger decoded
// from a snapshot must start persisting its future mutations.
func (l *Ledger) SetPersister(p Persister) { l.persister = p }

// Persister returns the installed snapshot sink, or nil.
func (l *Ledger) Persister() Persister { return l.persister }

// Currency returns the ledger's reference currency.
func (l *Ledger) Currency() string { return l.currency }

// CashTracking reports whether deposits fund buys.
func (l *Ledger) CashTracking() bool { return l.trackCash }

// Cash returns the tracked cash balance. Always zero when cash tracking
// is off.
func (l *Ledger) Cash() Money { return l.cash }

// Deposited returns the cumulative deposited capital in the reference
// currency.
func (l *Ledger) Deposited() Money { return l.deposited }

// Realized returns the cumulative realized gain across all sells.
func (l *Ledger) Realized() Money { return l.realized }

// Instrument returns the instrument registered under id, or false.
func (l *Ledger) Instrument(id string) (Instrument, bool) {
	in, ok := l.instruments[id]
	return in, ok
}

// Instruments iterates over registered instruments in id order.
func (l *Ledger) Instruments() iter.Seq[Instrument] {
	return func(yield func(Instrument) bool) {
		for _, id := range slices.Sorted(maps.Keys(l.instruments)) {
			if !yield(l.instruments[id]) {
				return
			}
		}
	}
}

// Holding returns the active holding for an instrument, or false when
// the position is empty.
func (l *Ledger) Holding(id string) (Holding, bool) {
	h, ok := l.holdings[id]
	if !ok {
		return Holding{}, false
	}
	return *h, true
}

// Holdings iterates over active holdings in instrument-id order.
func (l *Ledger) Holdings() iter.Seq[Holding] {
	return func(yield func(Holding) bool) {
		for _, id := range slices.Sorted(maps.Keys(l.holdings)) {
			if !yield(*l.holdings[id]) {
				return
			}
		}
	}
}

// Transactions iterates over the full log, reversed entries included,
// in chronological order.
func (l *Ledger) Transactions() iter.Seq[Transaction] {
	return slices.Values(l.log)
}

// Transaction returns the logged transaction with the given id.
func (l *Ledger) Transaction(id string) (Transaction, bool) {
	for _, tx := range l.log {
		if tx.ID() == id {
			return tx, true
		}
	}
	return nil, false
}

// Len returns the number of logged transactions.
func (l *Ledger) Len() int { return len(l.log) }

// append inserts tx keeping chronological order, ties by insertion order.
func (l *Ledger) append(tx Transaction) {
	l.log = append(l.log, tx)
	sort.SliceStable(l.log, func(i, j int) bool {
		return l.log[i].When().Before(l.log[j].When())
	})
}

func (l *Ledger) persist() error {
	if l.persister == nil {
		return nil
	}
	if err := l.persister.Persist(l); err != nil {
		log.Printf("persisting ledger: %v", err)
		return fmt.Errorf("persisting ledger: %w", err)
	}
	return nil
}

// Buy purchases quantity units of the instrument at the given per-unit
// price, merging into the existing position at weighted-average cost.
// On the first buy the instrument is registered and a holding created.
//
// The returned error, if any, left the ledger untouched, except for
// persistence errors which report an applied but unsaved mutation.
func (l *Ledger) Buy(at time.Time, instrument Instrument, quantity Quantity, price Money) (Buy, error) {
	if err := instrument.Validate(); err != nil {
		return Buy{}, err
	}
	if !quantity.IsPositive() {
		return Buy{}, fmt.Errorf("%w: buy quantity must be positive, got %s", ErrInvalidArgument, quantity)
	}
	if !price.IsPositive() {
		return Buy{}, fmt.Errorf("%w: buy price must be positive, got %s", ErrInvalidArgument, price)
	}
	if price.Currency() != "" && price.Currency() != l.currency {
		return Buy{}, fmt.Errorf("%w: buy price in %s, ledger is %s", ErrInvalidArgument, price.Currency(), l.currency)
	}
	if known, ok := l.instruments[instrument.ID]; ok && !known.Equal(instrument) {
		return Buy{}, fmt.Errorf("%w: instrument %q already registered with different attributes", ErrInvalidArgument, instrument.ID)
	}

	tx := NewBuy(at, instrument.ID, quantity, M(price.value, l.currency))
	if l.trackCash && l.cash.LessThan(tx.Gross) {
		return Buy{}, fmt.Errorf("%w: buy needs %s, cash is %s", ErrInsufficientBalance, tx.Gross, l.cash)
	}

	l.instruments[instrument.ID] = instrument
	l.applyBuy(tx)
	l.append(tx)
	return tx, l.persist()
}

// Sell disposes of quantity units of the holding at the given per-unit
// price. Realized gain is proceeds minus quantity times average cost;
// the average cost of the remainder is unchanged. Selling the full
// position removes the holding.
func (l *Ledger) Sell(at time.Time, instrumentID string, quantity Quantity, price Money) (Sell, error) {
	if !quantity.IsPositive() {
		return Sell{}, fmt.Errorf("%w: sell quantity must be positive, got %s", ErrInvalidArgument, quantity)
	}
	if !price.IsPositive() {
		return Sell{}, fmt.Errorf("%w: sell price must be positive, got %s", ErrInvalidArgument, price)
	}
	h, ok := l.holdings[instrumentID]
	if !ok {
		return Sell{}, fmt.Errorf("%w: no holding in %q", ErrNotFound, instrumentID)
	}
	if h.Quantity.LessThan(quantity) {
		return Sell{}, fmt.Errorf("%w: selling %s of %q, holding %s", ErrInsufficientQuantity, quantity, instrumentID, h.Quantity)
	}

	tx := NewSell(at, instrumentID, quantity, M(price.value, l.currency), h.AvgCost)
	l.applySell(tx)
	l.append(tx)
	return tx, l.persist()
}

// Deposit records a capital inflow of amount, converted into the
// reference currency at rate. Cash grows only in tracking mode; the
// cumulative deposited figure always grows.
func (l *Ledger) Deposit(at time.Time, amount Money, rate decimal.Decimal) (Deposit, error) {
	if !amount.IsPositive() {
		return Deposit{}, fmt.Errorf("%w: deposit amount must be positive, got %s", ErrInvalidArgument, amount)
	}
	if !rate.IsPositive() {
		return Deposit{}, fmt.Errorf("%w: deposit rate must be positive, got %s", ErrInvalidArgument, rate)
	}

	tx := NewDeposit(at, amount, rate, l.currency)
	l.applyDeposit(tx)
	l.append(tx)
	return tx, l.persist()
}

// Reverse applies the algebraic inverse of the transaction with the
// given id and marks it reversed. Reversing twice fails with
// ErrAlreadyReversed. With no intervening activity on the same
// instrument the restore is exact; with intervening activity the
// inverse is still applied arithmetically, so the resulting average
// cost may legitimately differ from any past state.
func (l *Ledger) Reverse(txID string) (Transaction, error) {
	idx := slices.IndexFunc(l.log, func(tx Transaction) bool { return tx.ID() == txID })
	if idx < 0 {
		return nil, fmt.Errorf("%w: transaction %q", ErrNotFound, txID)
	}
	tx := l.log[idx]
	if tx.Reversed() {
		return nil, fmt.Errorf("%w: %q", ErrAlreadyReversed, txID)
	}

	switch v := tx.(type) {
	case Buy:
		h, ok := l.holdings[v.Instrument]
		if !ok || h.Quantity.LessThan(v.Quantity) {
			held := Q(0)
			if ok {
				held = h.Quantity
			}
			return nil, fmt.Errorf("%w: reversing buy of %s %q, holding %s", ErrInsufficientQuantity, v.Quantity, v.Instrument, held)
		}
		l.unapplyBuy(v)
		v.Undone = true
		l.log[idx] = v
		return v, l.persist()
	case Sell:
		l.unapplySell(v)
		v.Undone = true
		l.log[idx] = v
		return v, l.persist()
	case Deposit:
		l.unapplyDeposit(v)
		v.Undone = true
		l.log[idx] = v
		return v, l.persist()
	default:
		return nil, fmt.Errorf("%w: cannot reverse %q transaction", ErrInvalidArgument, tx.Type())
	}
}

// apply / unapply fold one transaction into the derived state. They are
// shared between live mutation and replay so both paths cannot diverge.

func (l *Ledger) applyBuy(tx Buy) {
	h, ok := l.holdings[tx.Instrument]
	if !ok {
		h = &Holding{Instrument: tx.Instrument, AvgCost: M(0, l.currency), Invested: M(0, l.currency), CreatedAt: tx.When()}
		l.holdings[tx.Instrument] = h
	}
	h.Quantity = h.Quantity.Add(tx.Quantity)
	h.Invested = h.Invested.Add(tx.Gross)
	if h.Quantity.IsZero() {
		// a buy only lands on zero when it nets out a negative interim
		// position during replay
		delete(l.holdings, tx.Instrument)
	} else {
		h.AvgCost = h.Invested.Div(h.Quantity)
	}
	if l.trackCash {
		l.cash = l.cash.Sub(tx.Gross)
	}
}

func (l *Ledger) unapplyBuy(tx Buy) {
	h := l.holdings[tx.Instrument]
	h.Quantity = h.Quantity.Sub(tx.Quantity)
	h.Invested = h.Invested.Sub(tx.Gross)
	if h.Quantity.IsZero() {
		delete(l.holdings, tx.Instrument)
	} else {
		h.AvgCost = h.Invested.Div(h.Quantity)
	}
	if l.trackCash {
		l.cash = l.cash.Add(tx.Gross)
	}
}

func (l *Ledger) applySell(tx Sell) {
	h, ok := l.holdings[tx.Instrument]
	if !ok {
		// replay reaches a sell with no holding when its funding buy was
		// reversed after a reacquisition; the position goes negative and
		// nets out against the surviving buys
		h = &Holding{Instrument: tx.Instrument, AvgCost: M(0, l.currency), Invested: M(0, l.currency), CreatedAt: tx.When()}
		l.holdings[tx.Instrument] = h
	}
	h.Quantity = h.Quantity.Sub(tx.Quantity)
	h.Invested = h.Invested.Sub(tx.CostOfSold)
	if h.Quantity.IsZero() {
		delete(l.holdings, tx.Instrument)
	} else {
		h.AvgCost = h.Invested.Div(h.Quantity)
	}
	l.realized = l.realized.Add(tx.Realized)
	if l.trackCash {
		l.cash = l.cash.Add(tx.Gross)
	}
}

func (l *Ledger) unapplySell(tx Sell) {
	h, ok := l.holdings[tx.Instrument]
	if !ok {
		h = &Holding{Instrument: tx.Instrument, AvgCost: M(0, l.currency), Invested: M(0, l.currency), CreatedAt: tx.When()}
		l.holdings[tx.Instrument] = h
	}
	h.Quantity = h.Quantity.Add(tx.Quantity)
	h.Invested = h.Invested.Add(tx.CostOfSold)
	h.AvgCost = h.Invested.Div(h.Quantity)
	l.realized = l.realized.Sub(tx.Realized)
	if l.trackCash {
		l.cash = l.cash.Sub(tx.Gross)
	}
}

func (l *Ledger) applyDeposit(tx Deposit) {
	l.deposited = l.deposited.Add(tx.Gross)
	if l.trackCash {
		l.cash = l.cash.Add(tx.Gross)
	}
}

func (l *Ledger) unapplyDeposit(tx Deposit) {
	l.deposited = l.deposited.Sub(tx.Gross)
	if l.trackCash {
		l.cash = l.cash.Sub(tx.Gross)
	}
}

// Replay rebuilds the derived state from the instrument set and the log,
// skipping reversed transactions. It is used after decoding a snapshot.
func (l *Ledger) Replay() {
	l.holdings = make(map[string]*Holding)
	l.cash = M(0, l.currency)
	l.deposited = M(0, l.currency)
	l.realized = M(0, l.currency)
	for _, tx := range l.log {
		if tx.Reversed() {
			continue
		}
		switch v := tx.(type) {
		case Buy:
			l.applyBuy(v)
		case Sell:
			l.applySell(v)
		case Deposit:
			l.applyDeposit(v)
		}
	}
}

// stateAt folds the log up to (and including) the instant t into a fresh
// throwaway ledger, reversed transactions skipped. Backs the equity
// series reconstruction.
func (l *Ledger) stateAt(t time.Time) *Ledger {
	opts := []Option{WithCurrency(l.currency)}
	if l.trackCash {
		opts = append(opts, WithCashTracking())
	}
	past := NewLedger(opts...)
	maps.Copy(past.instruments, l.instruments)
	for _, tx := range l.log {
		if tx.Reversed() || tx.When().After(t) {
			continue
		}
		switch v := tx.(type) {
		case Buy:
			past.applyBuy(v)
		case Sell:
			past.applySell(v)
		case Deposit:
			past.applyDeposit(v)
		}
	}
	return past
}

// Equal reports whether two ledgers carry the same instruments, log and
// configuration. Derived state is not compared: it follows from the log.
func (l *Ledger) Equal(o *Ledger) bool {
	if l.currency != o.currency || l.trackCash != o.trackCash || len(l.log) != len(o.log) {
		return false
	}
	if !maps.EqualFunc(l.instruments, o.instruments, Instrument.Equal) {
		return false
	}
	for i := range l.log {
		if !l.log[i].Equal(o.log[i]) {
			return false
		}
	}
	return true
}
