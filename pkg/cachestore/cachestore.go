// Package cachestore persists captured arrival results in Redis and decides
// when a cached result may still be shown.
package cachestore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/mmathieum/montransit/pkg/transit"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// RecordTypeBus and RecordTypeBike are the supported record domains.
const (
	RecordTypeBus  = "bus"
	RecordTypeBike = "bike"
)

// Record is one captured arrival result. At most one live record exists per
// (type, key); a put fully replaces the previous one.
type Record struct {
	Type       string          `json:"type"`
	Key        string          `json:"key"`
	Result     *transit.Result `json:"result"`
	CapturedAt int64           `json:"capturedAt"`
}

func (r *Record) Age(now time.Time) time.Duration {
	return now.Sub(time.Unix(r.CapturedAt, 0))
}

// Store is the Redis-backed record store.
type Store struct {
	cache  *cache.Cache[string]
	policy Policy

	// now is swapped out by tests.
	now func() time.Time
}

func NewStore(client *redis.Client, policy Policy) *Store {
	redisStore := redisstore.NewRedis(client, store.WithExpiration(24*time.Hour))

	return &Store{
		cache:  cache.New[string](redisStore),
		policy: policy,
		now:    time.Now,
	}
}

func (s *Store) Policy() Policy {
	return s.policy
}

func storageKey(recordType string, key string) string {
	return fmt.Sprintf("arrivals:%s:%s", recordType, key)
}

// Get returns the live record for (recordType, key), or nil when absent or
// undecodable.
func (s *Store) Get(ctx context.Context, recordType string, key string) *Record {
	payload, err := s.cache.Get(ctx, storageKey(recordType, key))
	if err != nil {
		return nil
	}

	var record Record
	if err := json.Unmarshal([]byte(payload), &record); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Discarding undecodable cache record")
		return nil
	}

	return &record
}

// Lookup combines Get with the freshness policy. The returned decision is
// only meaningful when a record is returned; an expired record is reported
// as absent.
func (s *Store) Lookup(ctx context.Context, recordType string, key string) (*Record, Decision) {
	record := s.Get(ctx, recordType, key)
	if record == nil {
		return nil, DecisionExpired
	}

	decision := s.policy.For(recordType).Evaluate(record.Age(s.now()))
	if decision == DecisionExpired {
		return nil, DecisionExpired
	}

	return record, decision
}

// WithinTooFresh reports whether a record is still inside the re-fetch
// throttle window for its type.
func (s *Store) WithinTooFresh(recordType string, record *Record) bool {
	return record.Age(s.now()) < s.policy.For(recordType).TooFresh
}

// Put captures a result, replacing any previous record under the same key.
func (s *Store) Put(ctx context.Context, recordType string, key string, result *transit.Result) error {
	record := Record{
		Type:       recordType,
		Key:        key,
		Result:     result,
		CapturedAt: s.now().Unix(),
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}

	expiration := s.policy.For(recordType).NotUseful
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}

	return s.cache.Set(ctx, storageKey(recordType, key), string(payload), store.WithExpiration(expiration))
}
