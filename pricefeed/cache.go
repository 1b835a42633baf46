package pricefeed

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/ristretto"

	"folio"
)

// Cached decorates a feed with a TTL cache so repeated valuations do
// not hammer the providers. Quotes and histories are cached separately,
// keyed per instrument (and range for histories). Provider failures are
// never cached.
type Cached struct {
	next  folio.PriceFeed
	ttl   time.Duration
	cache *ristretto.Cache
}

// NewCached wraps next with a cache holding entries for ttl.
func NewCached(next folio.PriceFeed, ttl time.Duration) *Cached {
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 10_000,
		MaxCost:     1 << 24,
		BufferItems: 64,
	})
	if err != nil {
		// the config above is static and valid
		panic(fmt.Sprintf("pricefeed cache: %v", err))
	}
	return &Cached{next: next, ttl: ttl, cache: cache}
}

func (c *Cached) Last(ctx context.Context, in folio.Instrument) (folio.Quote, error) {
	key := "last:" + in.ID
	if hit, ok := c.cache.Get(key); ok {
		return hit.(folio.Quote), nil
	}
	q, err := c.next.Last(ctx, in)
	if err != nil {
		return folio.Quote{}, err
	}
	c.cache.SetWithTTL(key, q, 1, c.ttl)
	return q, nil
}

func (c *Cached) History(ctx context.Context, in folio.Instrument, from, to time.Time) ([]folio.Point, error) {
	key := fmt.Sprintf("history:%s:%d:%d", in.ID, from.Unix(), to.Unix())
	if hit, ok := c.cache.Get(key); ok {
		return hit.([]folio.Point), nil
	}
	points, err := c.next.History(ctx, in, from, to)
	if err != nil {
		return nil, err
	}
	c.cache.SetWithTTL(key, points, int64(len(points)+1), c.ttl)
	return points, nil
}

// Wait flushes pending cache writes. Tests use it to make caching
// deterministic.
func (c *Cached) Wait() { c.cache.Wait() }
