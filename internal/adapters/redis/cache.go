package redisad

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"

	"stayfinder/internal/adapters/observability"
)

// Cache is a JSON cache on redis. Calls go through a circuit breaker so a
// sick redis costs search one fast error instead of a timeout per request.
type Cache struct {
	c  *redis.Client
	cb *gobreaker.CircuitBreaker
}

func New(addr, pass string, db int) *Cache {
	return NewWithClient(redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     pass,
		DB:           db,
		DialTimeout:  time.Second,
		ReadTimeout:  300 * time.Millisecond,
		WriteTimeout: 300 * time.Millisecond,
	}))
}

func NewWithClient(c *redis.Client) *Cache {
	observability.CacheBreakerState.WithLabelValues("redis").Set(0)
	return &Cache{c: c, cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis",
		MaxRequests: 3,
		Interval:    15 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			observability.CacheBreakerState.WithLabelValues(name).Set(stateValue(to))
			log.Warn().Str("circuit", name).Str("from", from.String()).Str("to", to.String()).Msg("cache breaker state changed")
		},
	})}
}

func stateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateOpen:
		return 1
	case gobreaker.StateHalfOpen:
		return 2
	default:
		return 0
	}
}

func (r *Cache) Get(ctx context.Context, key string, dst any) (bool, error) {
	res, err := r.cb.Execute(func() (interface{}, error) {
		v, err := r.c.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return v, err
	})
	if err != nil {
		observability.ObserveCache("redis", "error")
		return false, err
	}
	if res == nil {
		observability.ObserveCache("redis", "miss")
		return false, nil
	}
	observability.ObserveCache("redis", "hit")
	return true, json.Unmarshal(res.([]byte), dst)
}

func (r *Cache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = r.cb.Execute(func() (interface{}, error) {
		return nil, r.c.Set(ctx, key, b, time.Duration(ttlSec)*time.Second).Err()
	})
	if err != nil {
		observability.ObserveCache("redis", "error")
		return err
	}
	observability.ObserveCache("redis", "set")
	return nil
}

func (r *Cache) Del(ctx context.Context, key string) error {
	observability.ObserveCache("redis", "del")
	_, err := r.cb.Execute(func() (interface{}, error) {
		return nil, r.c.Del(ctx, key).Err()
	})
	return err
}

func (r *Cache) Incr(ctx context.Context, key string) (int64, error) {
	res, err := r.cb.Execute(func() (interface{}, error) {
		return r.c.Incr(ctx, key).Result()
	})
	if err != nil {
		observability.ObserveCache("redis", "error")
		return 0, err
	}
	observability.ObserveCache("redis", "incr")
	return res.(int64), nil
}

// Ping bypasses the breaker; health checks want the real answer.
func (r *Cache) Ping(ctx context.Context) error { return r.c.Ping(ctx).Err() }

func (r *Cache) Close() error { return r.c.Close() }
