package holders

import (
	"context"
	"time"

	"github.com/yourorg/vetting-worker/internal/cache"
	"github.com/yourorg/vetting-worker/internal/metrics"
	"github.com/yourorg/vetting-worker/internal/model"
)

// CachedResolver memoizes wallet lookups. A wallet's first activity and first
// funder never change once observed, so positive answers are cached for TTL.
// Errors are never cached.
type CachedResolver struct {
	next  WalletResolver
	cache cache.Cache
	chain model.Chain
	ttl   time.Duration
}

func NewCachedResolver(next WalletResolver, c cache.Cache, chain model.Chain, ttl time.Duration) *CachedResolver {
	return &CachedResolver{next: next, cache: c, chain: chain, ttl: ttl}
}

func (r *CachedResolver) key(kind, addr string) string {
	return "wallet:" + r.chain.String() + ":" + kind + ":" + addr
}

func (r *CachedResolver) FirstActivity(ctx context.Context, address string) (time.Time, error) {
	address = r.chain.NormalizeAddress(address)
	k := r.key("first", address)
	if b, ok := r.cache.Get(ctx, k); ok {
		var t time.Time
		if err := t.UnmarshalText(b); err == nil {
			metrics.CacheRequests.WithLabelValues("first_activity", "hit").Inc()
			return t, nil
		}
	}
	metrics.CacheRequests.WithLabelValues("first_activity", "miss").Inc()

	t, err := r.next.FirstActivity(ctx, address)
	if err != nil || t.IsZero() {
		return t, err
	}
	if b, err := t.UTC().MarshalText(); err == nil {
		r.cache.Set(ctx, k, b, r.ttl)
	}
	return t, nil
}

func (r *CachedResolver) FundingSource(ctx context.Context, address string) (string, error) {
	address = r.chain.NormalizeAddress(address)
	k := r.key("funder", address)
	if b, ok := r.cache.Get(ctx, k); ok && len(b) > 0 {
		metrics.CacheRequests.WithLabelValues("funding_source", "hit").Inc()
		return string(b), nil
	}
	metrics.CacheRequests.WithLabelValues("funding_source", "miss").Inc()

	src, err := r.next.FundingSource(ctx, address)
	if err != nil || src == "" {
		return src, err
	}
	r.cache.Set(ctx, k, []byte(src), r.ttl)
	return src, nil
}
