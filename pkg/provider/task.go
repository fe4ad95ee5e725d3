package provider

import (
	"context"
	"fmt"
	"sync"

	"github.com/mmathieum/montransit/pkg/cachestore"
	"github.com/mmathieum/montransit/pkg/transit"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

// Listener receives progress notices and, exactly once, the terminal
// result. All notices for a request precede its terminal callback. A
// cancelled task never invokes the terminal callback.
type Listener interface {
	OnProgress(message string)
	OnResult(result *transit.Result)
}

// sharedFetches coalesces concurrent fetches for the same
// (source, stop, route) so a second caller attaches to the in-flight
// request instead of issuing a duplicate network call.
var sharedFetches singleflight.Group

// Task runs one strategy for one query on its own goroutine.
type Task struct {
	Strategy Strategy
	Listener Listener
	Env      *Env

	// Cache, when set, applies the freshness policy before and after the
	// network fetch. RecordType defaults to bus.
	Cache      *cachestore.Store
	RecordType string

	// Refresher, when set, receives stale-while-revalidate refresh jobs.
	Refresher *Prefetcher

	// Registry overrides the shared in-flight registry; tests use this
	// for isolation.
	Registry *singleflight.Group

	cancel   context.CancelFunc
	done     chan struct{}
	terminal sync.Once
}

// Start validates the query and launches the task. A precondition failure
// is returned synchronously; afterwards the Listener is the only output.
func (t *Task) Start(ctx context.Context, q transit.Query) error {
	if err := q.Validate(); err != nil {
		return err
	}

	ctx, t.cancel = context.WithCancel(ctx)
	t.done = make(chan struct{})

	go t.run(ctx, q)

	return nil
}

// Cancel requests cooperative cancellation. The in-flight network call may
// still complete, but the terminal callback will not fire.
func (t *Task) Cancel() {
	if t.cancel != nil {
		t.cancel()
	}
}

// Wait blocks until the task goroutine has finished.
func (t *Task) Wait() {
	if t.done != nil {
		<-t.done
	}
}

func (t *Task) recordType() string {
	if t.RecordType != "" {
		return t.RecordType
	}

	return cachestore.RecordTypeBus
}

func (t *Task) registry() *singleflight.Group {
	if t.Registry != nil {
		return t.Registry
	}

	return &sharedFetches
}

func (t *Task) run(ctx context.Context, q transit.Query) {
	defer close(t.done)

	if t.Cache != nil {
		record, decision := t.Cache.Lookup(ctx, t.recordType(), q.CacheKey())

		// A forced request skips over older cached records, but a record
		// still inside the too-fresh window is served regardless: the
		// window throttles user-triggered re-fetches.
		if record != nil && (!q.Force || t.Cache.WithinTooFresh(t.recordType(), record)) {
			t.deliver(ctx, record.Result)

			if decision == cachestore.DecisionRefresh && t.Refresher != nil {
				refreshQuery := q
				refreshQuery.Force = true
				t.Refresher.Enqueue(t.Strategy, t.recordType(), refreshQuery)
			}

			return
		}
	}

	result := t.fetch(ctx, q)

	// Cancellation check between fetch and delivery: a cancelled request
	// never delivers a result.
	if ctx.Err() != nil {
		return
	}

	if !result.Failed() && t.Cache != nil {
		if err := t.Cache.Put(ctx, t.recordType(), q.CacheKey(), result); err != nil {
			log.Warn().Err(err).Str("key", q.CacheKey()).Msg("Failed to cache arrival result")
		}
	}

	t.deliver(ctx, result)
}

func (t *Task) fetch(ctx context.Context, q transit.Query) *transit.Result {
	t.progress(ctx, t.Env.Messages.DownloadingFrom(t.Strategy.SourceName()))

	key := fmt.Sprintf("%s|%s|%s", t.Strategy.SourceName(), q.StopCode, q.RouteID)

	// The fetch may be shared with later callers and must outlive whoever
	// started it; cancellation only gates progress and delivery.
	fetchCtx := context.WithoutCancel(ctx)

	value, _, shared := t.registry().Do(key, func() (any, error) {
		return t.runStrategy(fetchCtx, ctx, q), nil
	})

	if shared {
		log.Debug().Str("key", key).Msg("Attached to in-flight fetch")
	}

	result, ok := value.(*transit.Result)
	if !ok || result == nil {
		return transit.NewErrorResult(t.Strategy.SourceName(), transit.ErrorKindParse, t.Env.Messages.GenericError())
	}

	return result
}

// runStrategy contains strategy failures: a panicking strategy is reported
// as a parse error result, never as a crash of the caller.
func (t *Task) runStrategy(fetchCtx context.Context, callerCtx context.Context, q transit.Query) (result *transit.Result) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("source", t.Strategy.SourceName()).Msg("Strategy panicked")
			result = transit.NewErrorResult(t.Strategy.SourceName(), transit.ErrorKindParse, t.Env.Messages.GenericError())
		}
	}()

	return t.Strategy.Fetch(fetchCtx, t.Env, q, func(message string) {
		t.progress(callerCtx, message)
	})
}

func (t *Task) progress(ctx context.Context, message string) {
	if ctx.Err() != nil || t.Listener == nil {
		return
	}

	t.Listener.OnProgress(message)
}

func (t *Task) deliver(ctx context.Context, result *transit.Result) {
	t.terminal.Do(func() {
		if ctx.Err() != nil || t.Listener == nil {
			return
		}

		t.Listener.OnResult(result)
	})
}
