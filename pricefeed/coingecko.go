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

// CoinGecko prices crypto instruments through the CoinGecko public API.
// The instrument's FeedKey is the CoinGecko coin id (e.g. "bitcoin").
type CoinGecko struct {
	base     string
	currency string // ISO code, upper case
	client   *http.Client
}

func NewCoinGecko(base, currency string, client *http.Client) *CoinGecko {
	return &CoinGecko{base: strings.TrimRight(base, "/"), currency: strings.ToUpper(currency), client: client}
}

// Last fetches the spot price from /simple/price.
//
//	{"bitcoin": {"eur": 59123.4, "last_updated_at": 1724371200}}
func (c *CoinGecko) Last(ctx context.Context, in folio.Instrument) (folio.Quote, error) {
	vs := strings.ToLower(c.currency)
	addr := fmt.Sprintf("%s/simple/price?ids=%s&vs_currencies=%s&include_last_updated_at=true",
		c.base, url.QueryEscape(in.FeedKey), vs)

	var jobj any
	if err := jwget(ctx, c.client, addr, &jobj); err != nil {
		return folio.Quote{}, fmt.Errorf("%w: coingecko %q: %v", folio.ErrPriceUnavailable, in.FeedKey, err)
	}

	path := fmt.Sprintf("$[%q][%q]", in.FeedKey, vs)
	jval, err := jsonpath.Get(path, jobj)
	if err != nil {
		return folio.Quote{}, fmt.Errorf("%w: coingecko %q: parsing %q: %v", folio.ErrPriceUnavailable, in.FeedKey, path, err)
	}
	price, ok := first(jval).(float64)
	if !ok {
		return folio.Quote{}, fmt.Errorf("%w: coingecko %q: price is not a number", folio.ErrPriceUnavailable, in.FeedKey)
	}

	at := time.Now()
	if jat, err := jsonpath.Get(fmt.Sprintf("$[%q].last_updated_at", in.FeedKey), jobj); err == nil {
		if unix, ok := first(jat).(float64); ok {
			at = time.Unix(int64(unix), 0).UTC()
		}
	}
	return folio.Quote{Price: folio.M(price, c.currency), At: at}, nil
}

// History fetches daily prices from /coins/{id}/market_chart/range.
//
//	{"prices": [[1724371200000, 59123.4], ...]}
func (c *CoinGecko) History(ctx context.Context, in folio.Instrument, from, to time.Time) ([]folio.Point, error) {
	addr := fmt.Sprintf("%s/coins/%s/market_chart/range?vs_currency=%s&from=%d&to=%d",
		c.base, url.PathEscape(in.FeedKey), strings.ToLower(c.currency), from.Unix(), to.Unix())

	var jobj any
	if err := jwget(ctx, c.client, addr, &jobj); err != nil {
		return nil, fmt.Errorf("%w: coingecko %q history: %v", folio.ErrPriceUnavailable, in.FeedKey, err)
	}
	jval, err := jsonpath.Get("$.prices", jobj)
	if err != nil {
		return nil, fmt.Errorf("%w: coingecko %q history: %v", folio.ErrPriceUnavailable, in.FeedKey, err)
	}
	rows, ok := jval.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: coingecko %q history: prices is not a list", folio.ErrPriceUnavailable, in.FeedKey)
	}

	points := make([]folio.Point, 0, len(rows))
	for _, row := range rows {
		pair, ok := row.([]any)
		if !ok || len(pair) != 2 {
			continue
		}
		ms, okMs := pair[0].(float64)
		price, okPrice := pair[1].(float64)
		if !okMs || !okPrice {
			continue
		}
		points = append(points, folio.Point{
			At:    time.UnixMilli(int64(ms)).UTC(),
			Price: folio.M(price, c.currency),
		})
	}
	return points, nil
}
