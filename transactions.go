package folio

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TxType is a typed string identifying a transaction variant.
type TxType string

const (
	TxBuy     TxType = "buy"
	TxSell    TxType = "sell"
	TxDeposit TxType = "deposit"
)

// Transaction is an immutable, timestamped record of one ledger-affecting
// event. The log is append-only: reversal marks a transaction reversed,
// it never deletes it, so the log stays replayable.
type Transaction interface {
	ID() string
	Type() TxType
	When() time.Time
	Reversed() bool
	Equal(Transaction) bool
}

type baseTx struct {
	TxID      string    `json:"id"`
	Command   TxType    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Undone    bool      `json:"reversed,omitempty"`
}

func (t baseTx) ID() string      { return t.TxID }
func (t baseTx) Type() TxType    { return t.Command }
func (t baseTx) When() time.Time { return t.Timestamp }
func (t baseTx) Reversed() bool  { return t.Undone }

func (t baseTx) equal(o baseTx) bool {
	return t.TxID == o.TxID && t.Command == o.Command &&
		t.Timestamp.Equal(o.Timestamp) && t.Undone == o.Undone
}

func newBaseTx(command TxType, at time.Time) baseTx {
	return baseTx{TxID: uuid.NewString(), Command: command, Timestamp: at.UTC()}
}

// Buy records the purchase of a quantity of an instrument.
type Buy struct {
	baseTx
	Instrument string   `json:"instrument"`
	Quantity   Quantity `json:"quantity"`
	Price      Money    `json:"price"` // per unit
	Gross      Money    `json:"gross"` // Quantity * Price
}

// NewBuy creates a Buy transaction. Gross is derived from quantity and price.
func NewBuy(at time.Time, instrumentID string, quantity Quantity, price Money) Buy {
	return Buy{
		baseTx:     newBaseTx(TxBuy, at),
		Instrument: instrumentID,
		Quantity:   quantity,
		Price:      price,
		Gross:      price.Mul(quantity),
	}
}

func (t Buy) Equal(other Transaction) bool {
	o, ok := other.(Buy)
	return ok && t.baseTx.equal(o.baseTx) && t.Instrument == o.Instrument &&
		t.Quantity.Equal(o.Quantity) && t.Price.Equal(o.Price) && t.Gross.Equal(o.Gross)
}

// Sell records the disposal of a quantity of an instrument. It carries
// the realized gain and the cost of the sold units so that a reversal
// can reconstruct the pre-sale average cost exactly.
type Sell struct {
	baseTx
	Instrument string   `json:"instrument"`
	Quantity   Quantity `json:"quantity"`
	Price      Money    `json:"price"`      // per unit
	Gross      Money    `json:"gross"`      // proceeds = Quantity * Price
	Realized   Money    `json:"realized"`   // Gross - CostOfSold
	CostOfSold Money    `json:"costOfSold"` // Quantity * average cost before the sale
}

// NewSell creates a Sell transaction from the pre-sale average cost.
func NewSell(at time.Time, instrumentID string, quantity Quantity, price, avgCost Money) Sell {
	gross := price.Mul(quantity)
	costOfSold := avgCost.Mul(quantity)
	return Sell{
		baseTx:     newBaseTx(TxSell, at),
		Instrument: instrumentID,
		Quantity:   quantity,
		Price:      price,
		Gross:      gross,
		Realized:   gross.Sub(costOfSold),
		CostOfSold: costOfSold,
	}
}

func (t Sell) Equal(other Transaction) bool {
	o, ok := other.(Sell)
	return ok && t.baseTx.equal(o.baseTx) && t.Instrument == o.Instrument &&
		t.Quantity.Equal(o.Quantity) && t.Price.Equal(o.Price) &&
		t.Gross.Equal(o.Gross) && t.Realized.Equal(o.Realized) &&
		t.CostOfSold.Equal(o.CostOfSold)
}

// Deposit records a capital inflow. The amount is stated in its original
// currency and converted to the ledger's reference currency at Rate.
// Deposits never touch holdings.
type Deposit struct {
	baseTx
	Amount Money           `json:"amount"` // original currency
	Rate   decimal.Decimal `json:"rate"`   // original -> reference currency
	Gross  Money           `json:"gross"`  // converted, reference currency
}

// NewDeposit creates a Deposit transaction converted into the reference currency.
func NewDeposit(at time.Time, amount Money, rate decimal.Decimal, referenceCurrency string) Deposit {
	return Deposit{
		baseTx: newBaseTx(TxDeposit, at),
		Amount: amount,
		Rate:   rate,
		Gross:  M(amount.value.Mul(rate), referenceCurrency),
	}
}

func (t Deposit) Equal(other Transaction) bool {
	o, ok := other.(Deposit)
	return ok && t.baseTx.equal(o.baseTx) && t.Amount.Equal(o.Amount) &&
		t.Rate.Equal(o.Rate) && t.Gross.Equal(o.Gross)
}

// ByInstrument returns a predicate that keeps transactions touching the
// given instrument. Deposits never match.
func ByInstrument(id string) func(Transaction) bool {
	return func(tx Transaction) bool {
		switch v := tx.(type) {
		case Buy:
			return v.Instrument == id
		case Sell:
			return v.Instrument == id
		default:
			return false
		}
	}
}

// AcceptAll accepts every transaction.
func AcceptAll(Transaction) bool { return true }
