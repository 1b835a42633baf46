package folio

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Kind classifies an instrument. Valuation branches exhaustively on it.
type Kind int

const (
	// Crypto instruments are priced through a crypto quote provider.
	Crypto Kind = iota
	// Equity instruments are priced through a stock quote provider.
	Equity
	// NonLiquid instruments have no live feed; their price is estimated
	// from acquisition data by compound growth.
	NonLiquid
)

func (k Kind) String() string {
	switch k {
	case Crypto:
		return "crypto"
	case Equity:
		return "equity"
	case NonLiquid:
		return "nonLiquid"
	default:
		return "unknown"
	}
}

// ParseKind parses a string into a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "crypto":
		return Crypto, nil
	case "equity":
		return Equity, nil
	case "nonLiquid":
		return NonLiquid, nil
	default:
		return 0, fmt.Errorf("unknown instrument kind: %q", s)
	}
}

func (k Kind) MarshalJSON() ([]byte, error) { return json.Marshal(k.String()) }

func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Instrument is an identifiable tradable or non-tradable thing.
// It is immutable once registered in a ledger.
type Instrument struct {
	ID     string `json:"id"`
	Kind   Kind   `json:"kind"`
	Symbol string `json:"symbol"`
	Name   string `json:"name,omitempty"`

	// FeedKey is the external price-source identifier (e.g. a CoinGecko
	// coin id or an exchange ticker). Absent for NonLiquid instruments.
	FeedKey string `json:"feedKey,omitempty"`

	// GrowthPct and AcquiredAt drive the deterministic price estimation
	// for NonLiquid instruments.
	GrowthPct  decimal.Decimal `json:"growthPct,omitempty"`
	AcquiredAt time.Time       `json:"acquiredAt,omitzero"`
}

// Equal reports field-wise equality.
func (i Instrument) Equal(o Instrument) bool {
	return i.ID == o.ID && i.Kind == o.Kind && i.Symbol == o.Symbol &&
		i.Name == o.Name && i.FeedKey == o.FeedKey &&
		i.GrowthPct.Equal(o.GrowthPct) && i.AcquiredAt.Equal(o.AcquiredAt)
}

// Validate checks the instrument's fields for registration.
func (i Instrument) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("%w: instrument id is missing", ErrInvalidArgument)
	}
	if i.Symbol == "" {
		return fmt.Errorf("%w: instrument %q has no symbol", ErrInvalidArgument, i.ID)
	}
	switch i.Kind {
	case Crypto, Equity:
		if i.FeedKey == "" {
			return fmt.Errorf("%w: %s instrument %q needs a price feed key", ErrInvalidArgument, i.Kind, i.ID)
		}
	case NonLiquid:
		if i.AcquiredAt.IsZero() {
			return fmt.Errorf("%w: non-liquid instrument %q needs an acquisition time", ErrInvalidArgument, i.ID)
		}
	default:
		return fmt.Errorf("%w: instrument %q has unknown kind", ErrInvalidArgument, i.ID)
	}
	return nil
}

const hoursPerYear = 24 * 365.25

// EstimatedPrice computes the deterministic compound-growth price of a
// NonLiquid instrument at asOf, from the holding's average cost:
//
//	price(t) = avgCost * (1 + growthPct/100) ^ years
//
// with years clamped to zero before AcquiredAt. It is continuous in asOf
// and reproducible bit-for-bit for the same inputs. The whole computation
// stays in decimal arithmetic; whole-year anchors are exact.
func (i Instrument) EstimatedPrice(avgCost Money, asOf time.Time) Money {
	years := asOf.Sub(i.AcquiredAt).Hours() / hoursPerYear
	if years < 0 {
		years = 0
	}
	base := decimal.New(1, 0).Add(i.GrowthPct.Div(decimal.New(100, 0)))
	growth, err := base.PowWithPrecision(decimal.NewFromFloat(years), 16)
	if err != nil {
		// growth below -100% has no real-valued compound factor
		return M(0, avgCost.cur)
	}
	return M(avgCost.value.Mul(growth), avgCost.cur)
}
