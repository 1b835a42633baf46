package pricefeed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PaesslerAG/jsonpath"

	"folio"
)

// Yahoo prices equity instruments through the Yahoo Finance chart API.
// The instrument's FeedKey is the exchange ticker (e.g. "AAPL").
type Yahoo struct {
	base     string
	currency string
	client   *http.Client
}

func NewYahoo(base, currency string, client *http.Client) *Yahoo {
	return &Yahoo{base: strings.TrimRight(base, "/"), currency: strings.ToUpper(currency), client: client}
}

func (y *Yahoo) chart(ctx context.Context, symbol, query string) (any, error) {
	addr := fmt.Sprintf("%s/v8/finance/chart/%s?%s", y.base, url.PathEscape(symbol), query)
	var jobj any
	if err := jwget(ctx, y.client, addr, &jobj); err != nil {
		return nil, fmt.Errorf("%w: yahoo %q: %v", folio.ErrPriceUnavailable, symbol, err)
	}
	return jobj, nil
}

// Last reads the regular market price from the chart metadata.
func (y *Yahoo) Last(ctx context.Context, in folio.Instrument) (folio.Quote, error) {
	jobj, err := y.chart(ctx, in.FeedKey, "range=1d&interval=1d")
	if err != nil {
		return folio.Quote{}, err
	}

	path := "$.chart.result[0].meta.regularMarketPrice"
	jval, err := jsonpath.Get(path, jobj)
	if err != nil {
		return folio.Quote{}, fmt.Errorf("%w: yahoo %q: parsing %q: %v", folio.ErrPriceUnavailable, in.FeedKey, path, err)
	}
	price, ok := first(jval).(float64)
	if !ok {
		return folio.Quote{}, fmt.Errorf("%w: yahoo %q: price is not a number", folio.ErrPriceUnavailable, in.FeedKey)
	}

	at := time.Now()
	if jat, err := jsonpath.Get("$.chart.result[0].meta.regularMarketTime", jobj); err == nil {
		if unix, ok := first(jat).(float64); ok {
			at = time.Unix(int64(unix), 0).UTC()
		}
	}
	return folio.Quote{Price: folio.M(price, y.currency), At: at}, nil
}

// History pairs the chart timestamps with the daily closes. Yahoo pads
// missing closes with nulls; those samples are dropped.
func (y *Yahoo) History(ctx context.Context, in folio.Instrument, from, to time.Time) ([]folio.Point, error) {
	query := fmt.Sprintf("period1=%d&period2=%d&interval=1d", from.Unix(), to.Unix())
	jobj, err := y.chart(ctx, in.FeedKey, query)
	if err != nil {
		return nil, err
	}

	jts, err := jsonpath.Get("$.chart.result[0].timestamp", jobj)
	if err != nil {
		return nil, fmt.Errorf("%w: yahoo %q history: %v", folio.ErrPriceUnavailable, in.FeedKey, err)
	}
	jclose, err := jsonpath.Get("$.chart.result[0].indicators.quote[0].close", jobj)
	if err != nil {
		return nil, fmt.Errorf("%w: yahoo %q history: %v", folio.ErrPriceUnavailable, in.FeedKey, err)
	}
	stamps, okTs := jts.([]any)
	closes, okClose := jclose.([]any)
	if !okTs || !okClose || len(stamps) != len(closes) {
		return nil, fmt.Errorf("%w: yahoo %q history: mismatched chart arrays", folio.ErrPriceUnavailable, in.FeedKey)
	}

	points := make([]folio.Point, 0, len(stamps))
	for i := range stamps {
		unix, okUnix := stamps[i].(float64)
		price, okPrice := closes[i].(float64)
		if !okUnix || !okPrice {
			continue
		}
		points = append(points, folio.Point{
			At:    time.Unix(int64(unix), 0).UTC(),
			Price: folio.M(price, y.currency),
		})
	}
	return points, nil
}
