package provider

import (
	"context"
	"time"

	"github.com/mmathieum/montransit/pkg/cachestore"
	"github.com/mmathieum/montransit/pkg/transit"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

// Prefetcher speculatively resolves arrivals on a bounded worker pool.
// Results only land in the cache; nobody listens for them. A prefetch that
// races a user-initiated fetch for the same key simply loses: the cache
// write replaces whichever came first.
type Prefetcher struct {
	Env   *Env
	Cache *cachestore.Store

	pool *pool.Pool
}

func NewPrefetcher(workers int, env *Env, cache *cachestore.Store) *Prefetcher {
	if workers < 1 {
		workers = 1
	}

	return &Prefetcher{
		Env:   env,
		Cache: cache,
		pool:  pool.New().WithMaxGoroutines(workers),
	}
}

// Enqueue schedules one speculative fetch. Blocks only when every worker
// is busy.
func (p *Prefetcher) Enqueue(strategy Strategy, recordType string, q transit.Query) {
	p.pool.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 45*time.Second)
		defer cancel()

		result := strategy.Fetch(ctx, p.Env, q, NopProgress)
		if result == nil || result.Failed() {
			return
		}

		if p.Cache == nil {
			return
		}

		if err := p.Cache.Put(ctx, recordType, q.CacheKey(), result); err != nil {
			log.Warn().Err(err).Str("key", q.CacheKey()).Msg("Failed to cache prefetched result")
		}
	})
}

// Wait drains the pool. Used on shutdown and in tests.
func (p *Prefetcher) Wait() {
	p.pool.Wait()
}
