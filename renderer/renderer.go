// Package renderer turns ledger reports into markdown, consumed by the
// CLI (through glamour) and by the advisor as model input.
package renderer

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"text/template"
	"time"

	"folio"
)

//go:embed templates/*.md
var templates embed.FS

// renderTemplate is a generic utility to render one of the embedded
// markdown templates.
func renderTemplate(name string, data any) string {
	content, err := fs.ReadFile(templates, "templates/"+name+".md")
	if err != nil {
		return fmt.Sprintf("error reading template %q: %v", name, err)
	}
	tmpl, err := template.New(name).Parse(string(content))
	if err != nil {
		return fmt.Sprintf("error parsing template %q: %v", name, err)
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, data); err != nil {
		return fmt.Sprintf("error executing template %q: %v", name, err)
	}
	return b.String()
}

// holdingRow is one line of the valuation table, preformatted.
type holdingRow struct {
	Symbol        string
	Quantity      string
	AvgCost       string
	Invested      string
	Price         string
	MarketValue   string
	Unrealized    string
	UnrealizedPct string
	Stale         bool
}

type valuationData struct {
	AsOf          string
	Currency      string
	Rows          []holdingRow
	MarketValue   string
	Invested      string
	Unrealized    string
	UnrealizedPct string
	Realized      string
	Cash          string
	Deposited     string
	TotalEquity   string
	Stale         bool
}

// RenderValuation renders the portfolio valuation as a markdown report.
func RenderValuation(pv folio.PortfolioValuation) string {
	data := valuationData{
		AsOf:          pv.AsOf.Format("2006-01-02 15:04"),
		Currency:      pv.Currency,
		MarketValue:   pv.MarketValue.String(),
		Invested:      pv.Invested.String(),
		Unrealized:    pv.Unrealized.SignedString(),
		UnrealizedPct: fmt.Sprintf("%+.2f%%", pv.UnrealizedPct),
		Realized:      pv.Realized.SignedString(),
		Cash:          pv.Cash.String(),
		Deposited:     pv.Deposited.String(),
		TotalEquity:   pv.TotalEquity.String(),
		Stale:         pv.Stale,
	}
	for _, h := range pv.Holdings {
		data.Rows = append(data.Rows, holdingRow{
			Symbol:        h.Symbol,
			Quantity:      h.Quantity.String(),
			AvgCost:       h.AvgCost.String(),
			Invested:      h.Invested.String(),
			Price:         h.Price.String(),
			MarketValue:   h.MarketValue.String(),
			Unrealized:    h.Unrealized.SignedString(),
			UnrealizedPct: fmt.Sprintf("%+.2f%%", h.UnrealizedPct),
			Stale:         h.Stale,
		})
	}
	return renderTemplate("valuation", data)
}

type transactionRow struct {
	When       string
	Type       string
	Instrument string
	Quantity   string
	Price      string
	Gross      string
	Realized   string
	Reversed   bool
}

// RenderTransactions renders the transaction log as a markdown table.
func RenderTransactions(l *folio.Ledger) string {
	var rows []transactionRow
	for tx := range l.Transactions() {
		row := transactionRow{
			When:     tx.When().Format("2006-01-02 15:04"),
			Type:     string(tx.Type()),
			Reversed: tx.Reversed(),
		}
		switch v := tx.(type) {
		case folio.Buy:
			row.Instrument = v.Instrument
			row.Quantity = v.Quantity.String()
			row.Price = v.Price.String()
			row.Gross = v.Gross.String()
			row.Realized = "-"
		case folio.Sell:
			row.Instrument = v.Instrument
			row.Quantity = v.Quantity.String()
			row.Price = v.Price.String()
			row.Gross = v.Gross.String()
			row.Realized = v.Realized.SignedString()
		case folio.Deposit:
			row.Instrument = "-"
			row.Quantity = "-"
			row.Price = "-"
			row.Gross = v.Gross.String()
			row.Realized = "-"
		}
		rows = append(rows, row)
	}
	return renderTemplate("transactions", struct {
		Currency string
		Rows     []transactionRow
	}{l.Currency(), rows})
}

type seriesRow struct {
	At     string
	Equity string
	Stale  bool
}

// RenderEquitySeries renders the reconstructed equity curve as a
// markdown table.
func RenderEquitySeries(points []folio.EquityPoint, currency string) string {
	rows := make([]seriesRow, 0, len(points))
	for _, p := range points {
		rows = append(rows, seriesRow{
			At:     p.At.Format(time.DateOnly),
			Equity: p.Equity.String(),
			Stale:  p.Stale,
		})
	}
	return renderTemplate("series", struct {
		Currency string
		Rows     []seriesRow
	}{currency, rows})
}
