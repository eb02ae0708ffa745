package lock

import (
	"context"
	"os"
	"testing"
	"time"
)

func TestNewRedisAddressFallback(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		wantAddr string
	}{
		{name: "url", url: "redis://localhost:6380/2", wantAddr: "localhost:6380"},
		{name: "bare address", url: "cache:6379", wantAddr: "cache:6379"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRedis(tt.url, "", time.Minute)
			defer func() { _ = r.Close() }()

			if got := r.client.Options().Addr; got != tt.wantAddr {
				t.Errorf("addr = %q, want %q", got, tt.wantAddr)
			}
			if r.key != DefaultKey {
				t.Errorf("key = %q, want %q", r.key, DefaultKey)
			}
		})
	}
}

func TestAcquireUnreachable(t *testing.T) {
	r := NewRedis("127.0.0.1:1", "test", time.Minute)
	defer func() { _ = r.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, ok, err := r.Acquire(ctx)
	if err == nil || ok {
		t.Errorf("Acquire() = ok %v, err %v; want error", ok, err)
	}
}

func TestAcquireRelease(t *testing.T) {
	url := os.Getenv("FRF_TEST_REDIS_URL")
	if url == "" {
		t.Skip("FRF_TEST_REDIS_URL not set")
	}

	ctx := context.Background()
	key := "freshrss-filter:test-lock:" + time.Now().Format(time.RFC3339Nano)
	a := NewRedis(url, key, time.Minute)
	b := NewRedis(url, key, time.Minute)
	defer func() { _ = a.Close(); _ = b.Close() }()

	token, ok, err := a.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("first Acquire() = %v, %v", ok, err)
	}
	if _, ok, err := b.Acquire(ctx); err != nil || ok {
		t.Fatalf("second Acquire() = %v, %v; want not acquired", ok, err)
	}

	if err := b.Release(ctx, "wrong-token"); err != nil {
		t.Fatalf("release with wrong token: %v", err)
	}
	if _, ok, _ := b.Acquire(ctx); ok {
		t.Fatal("lock released by a non-owner")
	}

	if err := a.Release(ctx, token); err != nil {
		t.Fatalf("release: %v", err)
	}
	token2, ok, err := b.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("Acquire() after release = %v, %v", ok, err)
	}
	_ = b.Release(ctx, token2)
}
