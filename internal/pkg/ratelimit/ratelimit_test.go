package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestLimiter_AllowConsumesTokens(t *testing.T) {
	rdb := newMiniRedis(t)

	limiter := NewRedisLimiter(rdb, nil, "test:ratelimit:", 1, 2)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := limiter.Allow(ctx, "1.2.3.4")
		if err != nil {
			t.Fatalf("allow %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("expected request %d to be allowed", i)
		}
	}

	ok, err := limiter.Allow(ctx, "1.2.3.4")
	if err != nil {
		t.Fatalf("allow after burst: %v", err)
	}
	if ok {
		t.Fatalf("expected request to be rejected after burst exhausted")
	}
}

func TestLimiter_BucketsAreIndependent(t *testing.T) {
	rdb := newMiniRedis(t)

	limiter := NewRedisLimiter(rdb, nil, "test:ratelimit:", 1, 1)
	ctx := context.Background()

	if ok, _ := limiter.Allow(ctx, "10.0.0.1"); !ok {
		t.Fatalf("first bucket should be allowed")
	}
	if ok, _ := limiter.Allow(ctx, "10.0.0.1"); ok {
		t.Fatalf("first bucket should be empty")
	}
	if ok, _ := limiter.Allow(ctx, "10.0.0.2"); !ok {
		t.Fatalf("second bucket should be untouched")
	}
}

func TestLimiter_RefillsOverTime(t *testing.T) {
	rdb := newMiniRedis(t)

	limiter := NewRedisLimiter(rdb, nil, "test:ratelimit:", 100, 1)
	ctx := context.Background()

	if ok, _ := limiter.Allow(ctx, "refill"); !ok {
		t.Fatalf("warm allow failed")
	}
	if ok, _ := limiter.Allow(ctx, "refill"); ok {
		t.Fatalf("bucket should be empty")
	}

	time.Sleep(30 * time.Millisecond)

	if ok, _ := limiter.Allow(ctx, "refill"); !ok {
		t.Fatalf("expected bucket to refill")
	}
}

func TestLimiter_NilLimiterAllowsEverything(t *testing.T) {
	var limiter *Limiter
	ok, err := limiter.Allow(context.Background(), "x")
	if err != nil || !ok {
		t.Fatalf("nil limiter should allow, got ok=%v err=%v", ok, err)
	}
}

func newMiniRedis(t *testing.T) *redis.Client {
	t.Helper()
	s, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(s.Close)
	rdb := redis.NewClient(&redis.Options{Addr: s.Addr()})
	t.Cleanup(func() {
		if err := rdb.Close(); err != nil {
			t.Fatalf("close redis: %v", err)
		}
	})
	return rdb
}
