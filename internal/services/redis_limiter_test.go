package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedisLimiter(t *testing.T) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLimiter(client), mr
}

func TestRedisLimiterCapsRequests(t *testing.T) {
	l, _ := newTestRedisLimiter(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ok, err := l.Allow(ctx, "k", 5, time.Minute)
		if err != nil {
			t.Fatalf("Allow returned error: %v", err)
		}
		if !ok {
			t.Fatalf("request %d should pass", i+1)
		}
	}
	ok, err := l.Allow(ctx, "k", 5, time.Minute)
	if err != nil {
		t.Fatalf("Allow returned error: %v", err)
	}
	if ok {
		t.Fatalf("sixth request should be rejected")
	}
	if rem := l.Remaining(ctx, "k", 5); rem != 0 {
		t.Fatalf("remaining = %d, want 0", rem)
	}
}

func TestRedisLimiterWindowExpires(t *testing.T) {
	l, mr := newTestRedisLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, _ = l.Allow(ctx, "k", 2, time.Minute)
	}
	mr.FastForward(time.Minute + time.Second)
	ok, err := l.Allow(ctx, "k", 2, time.Minute)
	if err != nil {
		t.Fatalf("Allow returned error: %v", err)
	}
	if !ok {
		t.Fatalf("request in new window should pass")
	}
}

func TestRedisLimiterUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	l := NewRedisLimiter(client)
	mr.Close()

	_, err := l.Allow(context.Background(), "k", 5, time.Minute)
	if err == nil {
		t.Fatalf("expected error when redis is down")
	}
	se, ok := AsServiceError(err)
	if !ok || se.Code != ErrorInternal {
		t.Fatalf("expected internal service error, got %v", err)
	}
}
