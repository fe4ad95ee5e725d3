package provider

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/mmathieum/montransit/pkg/cachestore"
	"github.com/mmathieum/montransit/pkg/transit"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/singleflight"
)

type fakeStrategy struct {
	result *transit.Result
	panics bool

	// entered receives one value per Fetch call; release, when set, blocks
	// Fetch until closed.
	entered chan struct{}
	release chan struct{}

	calls     atomic.Int32
	lastForce atomic.Bool
}

func (s *fakeStrategy) SourceName() string {
	return "test-source"
}

func (s *fakeStrategy) Fetch(ctx context.Context, env *Env, q transit.Query, progress ProgressFunc) *transit.Result {
	s.calls.Add(1)
	s.lastForce.Store(q.Force)

	if s.entered != nil {
		s.entered <- struct{}{}
	}
	if s.release != nil {
		<-s.release
	}

	if s.panics {
		panic("corrupt payload")
	}

	if ctx.Err() != nil {
		return transit.NewErrorResult(s.SourceName(), transit.ErrorKindNoConnectivity, "no connection")
	}

	progress(env.Messages.Processing())

	if s.result != nil {
		copied := *s.result
		return &copied
	}

	return transit.NewResult(s.SourceName(), "14h05")
}

type recordingListener struct {
	mu      sync.Mutex
	events  []string
	results []*transit.Result
}

func (l *recordingListener) OnProgress(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, "progress: "+message)
}

func (l *recordingListener) OnResult(result *transit.Result) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, "result")
	l.results = append(l.results, result)
}

func (l *recordingListener) snapshot() ([]string, []*transit.Result) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...), append([]*transit.Result(nil), l.results...)
}

func taskEnv() *Env {
	return &Env{Messages: NewCatalog("en")}
}

func taskQuery() transit.Query {
	return transit.Query{RouteID: "97", StopCode: "52084", Locale: "en"}
}

func taskStore(t *testing.T) (*cachestore.Store, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	policy := cachestore.Policy{Windows: map[string]cachestore.Windows{
		cachestore.RecordTypeBus: {
			TooFresh:  time.Minute,
			TooOld:    5 * time.Minute,
			NotUseful: time.Hour,
		},
	}}

	return cachestore.NewStore(client, policy), mr
}

// seedRecord plants a record of the given age directly in Redis, bypassing
// Store.Put which always stamps the current time.
func seedRecord(t *testing.T, mr *miniredis.Miniredis, key string, result *transit.Result, age time.Duration) {
	t.Helper()

	record := cachestore.Record{
		Type:       cachestore.RecordTypeBus,
		Key:        key,
		Result:     result,
		CapturedAt: time.Now().Add(-age).Unix(),
	}

	payload, err := json.Marshal(record)
	require.NoError(t, err)
	require.NoError(t, mr.Set("arrivals:bus:"+key, string(payload)))
}

func TestTaskDeliversExactlyOnce(t *testing.T) {
	strategy := &fakeStrategy{}
	listener := &recordingListener{}

	task := &Task{
		Strategy: strategy,
		Listener: listener,
		Env:      taskEnv(),
		Registry: &singleflight.Group{},
	}

	require.NoError(t, task.Start(context.Background(), taskQuery()))
	task.Wait()

	events, results := listener.snapshot()
	require.Len(t, results, 1)
	require.Equal(t, []string{"14h05"}, results[0].Times)

	require.Equal(t, []string{
		"progress: Downloading data from test-source…",
		"progress: Processing data…",
		"result",
	}, events)
}

func TestTaskValidationFailureIsSynchronous(t *testing.T) {
	strategy := &fakeStrategy{}
	listener := &recordingListener{}

	task := &Task{
		Strategy: strategy,
		Listener: listener,
		Env:      taskEnv(),
	}

	err := task.Start(context.Background(), transit.Query{StopCode: "52084"})
	require.ErrorIs(t, err, transit.ErrInvalidQuery)

	task.Wait()

	events, _ := listener.snapshot()
	require.Empty(t, events)
	require.Zero(t, strategy.calls.Load())
}

func TestTaskCancelledBeforeDeliveryStaysSilent(t *testing.T) {
	strategy := &fakeStrategy{
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
	listener := &recordingListener{}

	task := &Task{
		Strategy: strategy,
		Listener: listener,
		Env:      taskEnv(),
		Registry: &singleflight.Group{},
	}

	require.NoError(t, task.Start(context.Background(), taskQuery()))

	<-strategy.entered
	task.Cancel()
	close(strategy.release)
	task.Wait()

	_, results := listener.snapshot()
	require.Empty(t, results)
}

func TestTaskContainsStrategyPanic(t *testing.T) {
	strategy := &fakeStrategy{panics: true}
	listener := &recordingListener{}

	task := &Task{
		Strategy: strategy,
		Listener: listener,
		Env:      taskEnv(),
		Registry: &singleflight.Group{},
	}

	require.NoError(t, task.Start(context.Background(), taskQuery()))
	task.Wait()

	_, results := listener.snapshot()
	require.Len(t, results, 1)
	require.Equal(t, transit.ErrorKindParse, results[0].ErrorKind)
	require.Equal(t, "An error occurred.", results[0].ErrorMessage)
}

func TestTaskServesFreshCachedRecord(t *testing.T) {
	store, mr := taskStore(t)
	q := taskQuery()
	seedRecord(t, mr, q.CacheKey(), transit.NewResult("test-source", "09h15"), 0)

	strategy := &fakeStrategy{}
	listener := &recordingListener{}

	task := &Task{
		Strategy: strategy,
		Listener: listener,
		Env:      taskEnv(),
		Cache:    store,
		Registry: &singleflight.Group{},
	}

	require.NoError(t, task.Start(context.Background(), q))
	task.Wait()

	_, results := listener.snapshot()
	require.Len(t, results, 1)
	require.Equal(t, []string{"09h15"}, results[0].Times)
	require.Zero(t, strategy.calls.Load(), "a fresh record must not trigger a fetch")
}

func TestTaskStaleRecordTriggersBackgroundRefresh(t *testing.T) {
	store, mr := taskStore(t)
	q := taskQuery()
	seedRecord(t, mr, q.CacheKey(), transit.NewResult("test-source", "09h15"), 10*time.Minute)

	env := taskEnv()
	strategy := &fakeStrategy{result: transit.NewResult("test-source", "09h45")}
	listener := &recordingListener{}
	refresher := NewPrefetcher(1, env, store)

	task := &Task{
		Strategy:  strategy,
		Listener:  listener,
		Env:       env,
		Cache:     store,
		Refresher: refresher,
		Registry:  &singleflight.Group{},
	}

	require.NoError(t, task.Start(context.Background(), q))
	task.Wait()

	// The stale record is delivered immediately.
	_, results := listener.snapshot()
	require.Len(t, results, 1)
	require.Equal(t, []string{"09h15"}, results[0].Times)

	refresher.Wait()

	require.Equal(t, int32(1), strategy.calls.Load())
	require.True(t, strategy.lastForce.Load(), "background refresh must bypass the cache")

	record, decision := store.Lookup(context.Background(), cachestore.RecordTypeBus, q.CacheKey())
	require.NotNil(t, record)
	require.Equal(t, cachestore.DecisionFresh, decision)
	require.Equal(t, []string{"09h45"}, record.Result.Times)
}

func TestTaskForceServesTooFreshRecord(t *testing.T) {
	store, mr := taskStore(t)
	q := taskQuery()
	q.Force = true
	seedRecord(t, mr, q.CacheKey(), transit.NewResult("test-source", "09h15"), 10*time.Second)

	strategy := &fakeStrategy{result: transit.NewResult("test-source", "09h45")}
	listener := &recordingListener{}

	task := &Task{
		Strategy: strategy,
		Listener: listener,
		Env:      taskEnv(),
		Cache:    store,
		Registry: &singleflight.Group{},
	}

	require.NoError(t, task.Start(context.Background(), q))
	task.Wait()

	_, results := listener.snapshot()
	require.Len(t, results, 1)
	require.Equal(t, []string{"09h15"}, results[0].Times)
	require.Zero(t, strategy.calls.Load(), "a too-fresh record must not be re-fetched, forced or not")
}

func TestTaskForceRefetchesOutsideTooFreshWindow(t *testing.T) {
	store, mr := taskStore(t)
	q := taskQuery()
	q.Force = true
	seedRecord(t, mr, q.CacheKey(), transit.NewResult("test-source", "09h15"), 3*time.Minute)

	strategy := &fakeStrategy{result: transit.NewResult("test-source", "09h45")}
	listener := &recordingListener{}

	task := &Task{
		Strategy: strategy,
		Listener: listener,
		Env:      taskEnv(),
		Cache:    store,
		Registry: &singleflight.Group{},
	}

	require.NoError(t, task.Start(context.Background(), q))
	task.Wait()

	_, results := listener.snapshot()
	require.Len(t, results, 1)
	require.Equal(t, []string{"09h45"}, results[0].Times)
	require.Equal(t, int32(1), strategy.calls.Load())
}

func TestTaskCachesSuccessfulResult(t *testing.T) {
	store, _ := taskStore(t)
	q := taskQuery()

	task := &Task{
		Strategy: &fakeStrategy{},
		Listener: &recordingListener{},
		Env:      taskEnv(),
		Cache:    store,
		Registry: &singleflight.Group{},
	}

	require.NoError(t, task.Start(context.Background(), q))
	task.Wait()

	record, _ := store.Lookup(context.Background(), cachestore.RecordTypeBus, q.CacheKey())
	require.NotNil(t, record)
	require.Equal(t, []string{"14h05"}, record.Result.Times)
}

func TestTaskDoesNotCacheFailedResult(t *testing.T) {
	store, mr := taskStore(t)
	q := taskQuery()

	strategy := &fakeStrategy{
		result: transit.NewErrorResult("test-source", transit.ErrorKindUpstreamServer, "test-source server error."),
	}
	listener := &recordingListener{}

	task := &Task{
		Strategy: strategy,
		Listener: listener,
		Env:      taskEnv(),
		Cache:    store,
		Registry: &singleflight.Group{},
	}

	require.NoError(t, task.Start(context.Background(), q))
	task.Wait()

	_, results := listener.snapshot()
	require.Len(t, results, 1)
	require.True(t, results[0].Failed())
	require.False(t, mr.Exists("arrivals:bus:"+q.CacheKey()))
}

func TestTaskCoalescesConcurrentFetches(t *testing.T) {
	registry := &singleflight.Group{}
	strategy := &fakeStrategy{
		entered: make(chan struct{}, 2),
		release: make(chan struct{}),
	}

	first := &recordingListener{}
	second := &recordingListener{}

	taskA := &Task{Strategy: strategy, Listener: first, Env: taskEnv(), Registry: registry}
	taskB := &Task{Strategy: strategy, Listener: second, Env: taskEnv(), Registry: registry}

	require.NoError(t, taskA.Start(context.Background(), taskQuery()))
	<-strategy.entered

	require.NoError(t, taskB.Start(context.Background(), taskQuery()))
	time.Sleep(50 * time.Millisecond)
	close(strategy.release)

	taskA.Wait()
	taskB.Wait()

	require.Equal(t, int32(1), strategy.calls.Load(), "the second task must attach to the in-flight fetch")

	_, resultsA := first.snapshot()
	_, resultsB := second.snapshot()
	require.Len(t, resultsA, 1)
	require.Len(t, resultsB, 1)
	require.Equal(t, resultsA[0].Times, resultsB[0].Times)
}

func TestAttachedFetchSurvivesOwnerCancellation(t *testing.T) {
	registry := &singleflight.Group{}
	strategy := &fakeStrategy{
		entered: make(chan struct{}, 2),
		release: make(chan struct{}),
	}

	owner := &recordingListener{}
	attached := &recordingListener{}

	taskA := &Task{Strategy: strategy, Listener: owner, Env: taskEnv(), Registry: registry}
	taskB := &Task{Strategy: strategy, Listener: attached, Env: taskEnv(), Registry: registry}

	require.NoError(t, taskA.Start(context.Background(), taskQuery()))
	<-strategy.entered

	require.NoError(t, taskB.Start(context.Background(), taskQuery()))
	time.Sleep(50 * time.Millisecond)

	taskA.Cancel()
	close(strategy.release)

	taskA.Wait()
	taskB.Wait()

	_, ownerResults := owner.snapshot()
	require.Empty(t, ownerResults)

	_, attachedResults := attached.snapshot()
	require.Len(t, attachedResults, 1)
	require.False(t, attachedResults[0].Failed(), "the shared fetch must not inherit a single caller's cancellation")
}
