package sampledb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"monitorplane/internal/apperr"
)

// RedisStore keeps each monitor's recent samples in a Redis sorted set
// keyed "samples:<monitor_id>", scored by Unix-nanosecond timestamp so
// ZREVRANGEBYSCORE gives newest-first ordering for free.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore builds a client against addr, optionally authenticating
// with token and selecting db. It does not ping eagerly — callers should
// probe connectivity via a health check if they need to fail fast.
func NewRedisStore(addr, token string, db int) *RedisStore {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: token,
		DB:       db,
	})
	return &RedisStore{client: client}
}

func key(monitorID string) string {
	return "samples:" + monitorID
}

// Append records one sample, trimming the set to the last 24h so it
// doesn't grow unbounded for monitors nobody queries.
func (r *RedisStore) Append(ctx context.Context, s Sample) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("sampledb: marshalling sample: %w", err)
	}

	score := float64(s.Timestamp.UnixNano())
	k := key(s.MonitorID)
	if err := r.client.ZAdd(ctx, k, redis.Z{Score: score, Member: payload}).Err(); err != nil {
		return apperr.BackendUnavailable("sampledb", err)
	}

	cutoff := float64(time.Now().Add(-24 * time.Hour).UnixNano())
	r.client.ZRemRangeByScore(ctx, k, "-inf", fmt.Sprintf("(%f", cutoff))
	return nil
}

// Window returns up to limit samples from the last duration, newest first.
// The upper bound is the current instant, so a sample carrying a
// future (clock-skewed) timestamp never enters the window.
func (r *RedisStore) Window(ctx context.Context, monitorID string, duration time.Duration, limit int) ([]Sample, error) {
	now := time.Now()
	members, err := r.client.ZRevRangeByScore(ctx, key(monitorID), &redis.ZRangeBy{
		Min:   fmt.Sprintf("%d", now.Add(-duration).UnixNano()),
		Max:   fmt.Sprintf("%d", now.UnixNano()),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, apperr.BackendUnavailable("sampledb", err)
	}

	out := make([]Sample, 0, len(members))
	for _, m := range members {
		var s Sample
		if err := json.Unmarshal([]byte(m), &s); err != nil {
			return nil, fmt.Errorf("sampledb: decoding sample: %w", err)
		}
		out = append(out, s)
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (r *RedisStore) Close() error {
	return r.client.Close()
}
