// Package pricefeed implements market price providers for the ledger:
// CoinGecko for crypto instruments and the Yahoo chart API for equities,
// behind a kind-based router and an optional TTL cache.
//
// Every provider failure wraps folio.ErrPriceUnavailable so callers can
// degrade to stale prices instead of failing valuations.
package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/caarlos0/env/v10"

	"folio"
)

// Config holds the provider settings, loaded from the environment.
type Config struct {
	CoinGeckoBaseURL string        `env:"COINGECKO_BASE_URL" envDefault:"https://api.coingecko.com/api/v3"`
	YahooBaseURL     string        `env:"YAHOO_BASE_URL" envDefault:"https://query1.finance.yahoo.com"`
	Currency         string        `env:"FEED_CURRENCY" envDefault:"EUR"`
	Timeout          time.Duration `env:"FEED_TIMEOUT" envDefault:"10s"`
	CacheTTL         time.Duration `env:"FEED_CACHE_TTL" envDefault:"60s"`
}

// LoadConfig reads the configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing pricefeed config: %w", err)
	}
	return cfg, nil
}

// Router dispatches price requests to the provider matching the
// instrument kind. It implements folio.PriceFeed.
type Router struct {
	crypto folio.PriceFeed
	equity folio.PriceFeed
}

// New builds the default provider stack from cfg: CoinGecko and Yahoo
// behind a shared TTL cache.
func New(cfg Config) *Cached {
	client := &http.Client{Timeout: cfg.Timeout}
	router := &Router{
		crypto: NewCoinGecko(cfg.CoinGeckoBaseURL, cfg.Currency, client),
		equity: NewYahoo(cfg.YahooBaseURL, cfg.Currency, client),
	}
	return NewCached(router, cfg.CacheTTL)
}

// NewRouter dispatches to the given providers by instrument kind.
func NewRouter(crypto, equity folio.PriceFeed) *Router {
	return &Router{crypto: crypto, equity: equity}
}

func (r *Router) route(in folio.Instrument) (folio.PriceFeed, error) {
	switch in.Kind {
	case folio.Crypto:
		return r.crypto, nil
	case folio.Equity:
		return r.equity, nil
	default:
		return nil, fmt.Errorf("%w: no provider for %s instrument %q", folio.ErrPriceUnavailable, in.Kind, in.ID)
	}
}

func (r *Router) Last(ctx context.Context, in folio.Instrument) (folio.Quote, error) {
	feed, err := r.route(in)
	if err != nil {
		return folio.Quote{}, err
	}
	return feed.Last(ctx, in)
}

func (r *Router) History(ctx context.Context, in folio.Instrument, from, to time.Time) ([]folio.Point, error) {
	feed, err := r.route(in)
	if err != nil {
		return nil, err
	}
	return feed.History(ctx, in, from, to)
}

// jwget performs an HTTP GET request and unmarshals the JSON response
// into the provided data structure.
func jwget(ctx context.Context, client *http.Client, addr string, data any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, addr, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("cannot http GET %v%v: %v", resp.Request.URL.Host, resp.Request.URL.Path, resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, data)
}

// first unwraps the single-answer-vs-list ambiguity of jsonpath results.
func first(jval any) any {
	if jlist, ok := jval.([]any); ok && len(jlist) > 0 {
		return jlist[0]
	}
	return jval
}
