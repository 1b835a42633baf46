package folio

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
)

func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// The JSONL snapshot format is one JSON object per line:
//
//	{"folio":"v1","currency":"EUR","cashTracking":true}
//	{"instrument":{...}}                    one per registered instrument
//	{"type":"buy", ...}                     the transaction log, in order
//
// Holdings, cash and realized figures are never persisted: they are
// derived state, rebuilt by replaying the log on decode.

type jsonHeader struct {
	Version      string `json:"folio"`
	Currency     string `json:"currency"`
	CashTracking bool   `json:"cashTracking,omitempty"`
}

const snapshotVersion = "v1"

// EncodeTransaction writes one transaction as a JSON line.
func EncodeTransaction(w io.Writer, tx Transaction) error {
	data, err := json.Marshal(tx)
	if err != nil {
		return fmt.Errorf("encoding %s transaction %s: %w", tx.Type(), tx.ID(), err)
	}
	_, err = w.Write(append(data, '\n'))
	return err
}

// EncodeLedger writes the ledger snapshot in JSONL format: a header
// line, the registered instruments, then the full transaction log.
func EncodeLedger(w io.Writer, l *Ledger) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(jsonHeader{Version: snapshotVersion, Currency: l.currency, CashTracking: l.trackCash}); err != nil {
		return fmt.Errorf("encoding snapshot header: %w", err)
	}
	for in := range l.Instruments() {
		if err := enc.Encode(struct {
			Instrument Instrument `json:"instrument"`
		}{in}); err != nil {
			return fmt.Errorf("encoding instrument %q: %w", in.ID, err)
		}
	}
	for tx := range l.Transactions() {
		if err := EncodeTransaction(w, tx); err != nil {
			return err
		}
	}
	return nil
}

// DecodeLedger reads a JSONL snapshot and rebuilds the ledger, replaying
// the transaction log to recover holdings, cash and realized figures.
func DecodeLedger(r io.Reader) (*Ledger, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)

	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("reading snapshot: %w", err)
		}
		return nil, fmt.Errorf("empty snapshot")
	}
	var header jsonHeader
	if err := json.Unmarshal(scanner.Bytes(), &header); err != nil {
		return nil, fmt.Errorf("decoding snapshot header: %w", err)
	}
	if header.Version != snapshotVersion {
		return nil, fmt.Errorf("unsupported snapshot version %q", header.Version)
	}

	opts := []Option{WithCurrency(header.Currency)}
	if header.CashTracking {
		opts = append(opts, WithCashTracking())
	}
	l := NewLedger(opts...)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		// Transactions also carry an "instrument" key (the plain id), so
		// the discriminator is "type": only transaction lines have one.
		var probe struct {
			Type TxType `json:"type"`
		}
		if err := json.Unmarshal(line, &probe); err != nil {
			return nil, fmt.Errorf("decoding snapshot line %q: %w", string(line), err)
		}

		switch probe.Type {
		case "":
			var wrap struct {
				Instrument *Instrument `json:"instrument"`
			}
			if err := json.Unmarshal(line, &wrap); err != nil {
				return nil, fmt.Errorf("decoding instrument line %q: %w", string(line), err)
			}
			if wrap.Instrument == nil {
				return nil, fmt.Errorf("unknown snapshot line %q", string(line))
			}
			if err := wrap.Instrument.Validate(); err != nil {
				return nil, err
			}
			l.instruments[wrap.Instrument.ID] = *wrap.Instrument
		case TxBuy:
			var tx Buy
			if err := json.Unmarshal(line, &tx); err != nil {
				return nil, fmt.Errorf("decoding buy: %w", err)
			}
			l.log = append(l.log, tx)
		case TxSell:
			var tx Sell
			if err := json.Unmarshal(line, &tx); err != nil {
				return nil, fmt.Errorf("decoding sell: %w", err)
			}
			l.log = append(l.log, tx)
		case TxDeposit:
			var tx Deposit
			if err := json.Unmarshal(line, &tx); err != nil {
				return nil, fmt.Errorf("decoding deposit: %w", err)
			}
			l.log = append(l.log, tx)
		default:
			return nil, fmt.Errorf("unknown snapshot line %q", string(line))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	l.Replay()
	return l, nil
}
