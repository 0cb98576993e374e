package lockstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
)

func newTestRedis(t *testing.T) *Redis {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	r, err := NewRedis(context.Background(), addr, "", 0)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRedis_AcquireAndRelease(t *testing.T) {
	r := newTestRedis(t)
	ctx := context.Background()
	key := "coupon:lock:test-" + uuid.NewString()
	t.Cleanup(func() { _ = r.Delete(ctx, key) })

	ok, err := r.Acquire(ctx, key, "u1", 5*time.Second)
	if err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}
	if ok, _ := r.Acquire(ctx, key, "u2", 5*time.Second); ok {
		t.Fatal("second acquire should fail")
	}
	if released, _ := r.Release(ctx, key, "u2"); released {
		t.Fatal("non-holder released the lock")
	}
	holder, held, err := r.Get(ctx, key)
	if err != nil || !held || holder != "u1" {
		t.Fatalf("get: holder=%q held=%v err=%v", holder, held, err)
	}
	if released, err := r.Release(ctx, key, "u1"); err != nil || !released {
		t.Fatalf("release: released=%v err=%v", released, err)
	}
	if _, held, _ := r.Get(ctx, key); held {
		t.Fatal("lock still present after release")
	}
}
