package folio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// This file implements the CSV interchange format. It is a single
// human-readable file with section markers, easy to open in a
// spreadsheet and to diff:
//
//	[meta]         one row: version, currency, cash tracking, realized P&L
//	[instruments]  every registered instrument, liquidated ones included
//	[holdings]     the active positions, priced (derived, informational)
//	[transactions] the full log, reversed entries included
//
// Import rebuilds the ledger from [meta], [instruments] and
// [transactions] and replays the log; the [holdings] section is derived
// state and is skipped on import. Export followed by import reproduces
// an equivalent ledger modulo decimal rounding.

const (
	secMeta         = "[meta]"
	secInstruments  = "[instruments]"
	secHoldings     = "[holdings]"
	secTransactions = "[transactions]"
)

var (
	metaHeader        = []string{"version", "currency", "cashTracking", "realized"}
	instrumentsHeader = []string{"id", "kind", "symbol", "name", "feedKey", "growthPct", "acquiredAt"}
	holdingsHeader    = []string{
		"instrument", "kind", "symbol", "name",
		"quantity", "avgCost", "invested", "lastPrice", "marketValue",
		"growthPct", "acquiredAt", "createdAt",
	}
	transactionsHeader = []string{
		"id", "type", "timestamp", "reversed",
		"instrument", "quantity", "price", "gross",
		"amount", "amountCurrency", "rate", "realized", "costOfSold",
	}
)

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}

// Export writes the ledger in the CSV interchange format. The holdings
// section is priced: non-liquid positions by their growth estimate at
// export time, liquid ones from the last known quote, with blank price
// columns when no quote was ever seen.
func Export(w io.Writer, l *Ledger) error {
	return export(w, l, time.Now().UTC())
}

func export(w io.Writer, l *Ledger, asOf time.Time) error {
	cw := csv.NewWriter(w)

	// csv.Writer defers write errors to Flush, checked once at the end.
	write := func(record ...string) { _ = cw.Write(record) }

	write(secMeta)
	write(metaHeader...)
	write(snapshotVersion, l.currency, strconv.FormatBool(l.trackCash), l.realized.Amount().String())

	write(secInstruments)
	write(instrumentsHeader...)
	for in := range l.Instruments() {
		write(in.ID, in.Kind.String(), in.Symbol, in.Name, in.FeedKey,
			in.GrowthPct.String(), formatTime(in.AcquiredAt))
	}

	write(secHoldings)
	write(holdingsHeader...)
	for h := range l.Holdings() {
		in := l.instruments[h.Instrument]
		lastPrice, marketValue := "", ""
		if p, ok := l.exportPrice(in, h, asOf); ok {
			lastPrice = p.Amount().String()
			marketValue = p.Mul(h.Quantity).Amount().String()
		}
		write(h.Instrument, in.Kind.String(), in.Symbol, in.Name,
			h.Quantity.String(), h.AvgCost.Amount().String(), h.Invested.Amount().String(),
			lastPrice, marketValue,
			in.GrowthPct.String(), formatTime(in.AcquiredAt), formatTime(h.CreatedAt))
	}

	write(secTransactions)
	write(transactionsHeader...)
	for tx := range l.Transactions() {
		switch v := tx.(type) {
		case Buy:
			write(v.TxID, string(v.Command), formatTime(v.Timestamp), strconv.FormatBool(v.Undone),
				v.Instrument, v.Quantity.String(), v.Price.Amount().String(), v.Gross.Amount().String(),
				"", "", "", "", "")
		case Sell:
			write(v.TxID, string(v.Command), formatTime(v.Timestamp), strconv.FormatBool(v.Undone),
				v.Instrument, v.Quantity.String(), v.Price.Amount().String(), v.Gross.Amount().String(),
				"", "", "", v.Realized.Amount().String(), v.CostOfSold.Amount().String())
		case Deposit:
			write(v.TxID, string(v.Command), formatTime(v.Timestamp), strconv.FormatBool(v.Undone),
				"", "", "", v.Gross.Amount().String(),
				v.Amount.Amount().String(), v.Amount.Currency(), v.Rate.String(), "", "")
		default:
			return fmt.Errorf("exporting unknown transaction type %q", tx.Type())
		}
	}

	cw.Flush()
	return cw.Error()
}

// exportPrice resolves the informational price columns of one holding.
func (l *Ledger) exportPrice(in Instrument, h Holding, asOf time.Time) (Money, bool) {
	if in.Kind == NonLiquid {
		return in.EstimatedPrice(h.AvgCost, asOf), true
	}
	if q, ok := l.lastQuotes[in.ID]; ok {
		return q.Price, true
	}
	return Money{}, false
}

type section int

const (
	inNone section = iota
	inMeta
	inInstruments
	inHoldings
	inTransactions
)

// Import reads the CSV interchange format and rebuilds the ledger,
// replaying the transaction log to recover the derived state.
func Import(r io.Reader) (*Ledger, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // sections have different widths

	var l *Ledger
	current := inNone
	expectHeader := false

	for line := 1; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv line %d: %w", line, err)
		}

		if len(record) == 1 {
			switch record[0] {
			case secMeta:
				current = inMeta
			case secInstruments:
				current = inInstruments
			case secHoldings:
				current = inHoldings
			case secTransactions:
				current = inTransactions
			default:
				return nil, fmt.Errorf("csv line %d: unknown section %q", line, record[0])
			}
			expectHeader = true
			continue
		}
		if expectHeader {
			expectHeader = false // column header row
			continue
		}

		switch current {
		case inMeta:
			if len(record) != len(metaHeader) {
				return nil, fmt.Errorf("csv line %d: malformed meta row", line)
			}
			if record[0] != snapshotVersion {
				return nil, fmt.Errorf("csv line %d: unsupported version %q", line, record[0])
			}
			tracking, err := strconv.ParseBool(record[2])
			if err != nil {
				return nil, fmt.Errorf("csv line %d: cashTracking: %w", line, err)
			}
			// the realized column is derived state, rebuilt by replay
			opts := []Option{WithCurrency(record[1])}
			if tracking {
				opts = append(opts, WithCashTracking())
			}
			l = NewLedger(opts...)

		case inInstruments:
			if l == nil {
				return nil, fmt.Errorf("csv line %d: [instruments] before [meta]", line)
			}
			in, err := parseInstrumentRecord(record)
			if err != nil {
				return nil, fmt.Errorf("csv line %d: %w", line, err)
			}
			l.instruments[in.ID] = in

		case inHoldings:
			// derived state, rebuilt by replay

		case inTransactions:
			if l == nil {
				return nil, fmt.Errorf("csv line %d: [transactions] before [meta]", line)
			}
			tx, err := parseTransactionRecord(record, l.currency)
			if err != nil {
				return nil, fmt.Errorf("csv line %d: %w", line, err)
			}
			l.log = append(l.log, tx)

		default:
			return nil, fmt.Errorf("csv line %d: row outside any section", line)
		}
	}

	if l == nil {
		return nil, fmt.Errorf("csv import: missing [meta] section")
	}
	l.Replay()
	return l, nil
}

func parseInstrumentRecord(record []string) (Instrument, error) {
	if len(record) != len(instrumentsHeader) {
		return Instrument{}, fmt.Errorf("malformed instrument row")
	}
	kind, err := ParseKind(record[1])
	if err != nil {
		return Instrument{}, err
	}
	growth := decimal.Zero
	if record[5] != "" {
		if growth, err = decimal.NewFromString(record[5]); err != nil {
			return Instrument{}, fmt.Errorf("growthPct: %w", err)
		}
	}
	acquired, err := parseTime(record[6])
	if err != nil {
		return Instrument{}, fmt.Errorf("acquiredAt: %w", err)
	}
	in := Instrument{
		ID: record[0], Kind: kind, Symbol: record[2], Name: record[3],
		FeedKey: record[4], GrowthPct: growth, AcquiredAt: acquired,
	}
	return in, in.Validate()
}

func parseTransactionRecord(record []string, currency string) (Transaction, error) {
	if len(record) != len(transactionsHeader) {
		return nil, fmt.Errorf("malformed transaction row")
	}
	at, err := parseTime(record[2])
	if err != nil {
		return nil, fmt.Errorf("timestamp: %w", err)
	}
	reversed, err := strconv.ParseBool(record[3])
	if err != nil {
		return nil, fmt.Errorf("reversed: %w", err)
	}
	base := baseTx{TxID: record[0], Command: TxType(record[1]), Timestamp: at, Undone: reversed}

	dec := func(col int, name string) (decimal.Decimal, error) {
		d, err := decimal.NewFromString(record[col])
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("%s: %w", name, err)
		}
		return d, nil
	}

	switch base.Command {
	case TxBuy:
		qty, err := dec(5, "quantity")
		if err != nil {
			return nil, err
		}
		price, err := dec(6, "price")
		if err != nil {
			return nil, err
		}
		gross, err := dec(7, "gross")
		if err != nil {
			return nil, err
		}
		return Buy{baseTx: base, Instrument: record[4],
			Quantity: Q(qty), Price: M(price, currency), Gross: M(gross, currency)}, nil

	case TxSell:
		qty, err := dec(5, "quantity")
		if err != nil {
			return nil, err
		}
		price, err := dec(6, "price")
		if err != nil {
			return nil, err
		}
		gross, err := dec(7, "gross")
		if err != nil {
			return nil, err
		}
		realized, err := dec(11, "realized")
		if err != nil {
			return nil, err
		}
		costOfSold, err := dec(12, "costOfSold")
		if err != nil {
			return nil, err
		}
		return Sell{baseTx: base, Instrument: record[4],
			Quantity: Q(qty), Price: M(price, currency), Gross: M(gross, currency),
			Realized: M(realized, currency), CostOfSold: M(costOfSold, currency)}, nil

	case TxDeposit:
		gross, err := dec(7, "gross")
		if err != nil {
			return nil, err
		}
		amount, err := dec(8, "amount")
		if err != nil {
			return nil, err
		}
		rate, err := dec(10, "rate")
		if err != nil {
			return nil, err
		}
		return Deposit{baseTx: base,
			Amount: M(amount, record[9]), Rate: rate, Gross: M(gross, currency)}, nil

	default:
		return nil, fmt.Errorf("unknown transaction type %q", record[1])
	}
}
