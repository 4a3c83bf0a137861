package imagesearch

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// Cached memoizes successful searches and throttles calls to the wrapped
// provider. Errors are never cached.
type Cached struct {
	next    Provider
	cache   *cache.Cache
	limiter *rate.Limiter
}

func NewCached(next Provider, ttl time.Duration, perSecond float64, burst int) *Cached {
	if ttl <= 0 {
		ttl = time.Hour
	}
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &Cached{
		next:    next,
		cache:   cache.New(ttl, 2*ttl),
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (c *Cached) Search(ctx context.Context, query string, count int) ([]Candidate, error) {
	key := fmt.Sprintf("%d|%s", count, strings.ToLower(strings.TrimSpace(query)))
	if hit, ok := c.cache.Get(key); ok {
		return hit.([]Candidate), nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	results, err := c.next.Search(ctx, query, count)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, results)
	return results, nil
}
