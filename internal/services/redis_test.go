package services

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestRedis(t *testing.T) (*RedisService, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	svc, err := NewRedisService(mr.Addr(), discardLogger())
	if err != nil {
		t.Fatalf("NewRedisService: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc, mr
}

func TestRedisService_Basic(t *testing.T) {
	svc, mr := newTestRedis(t)
	ctx := context.Background()

	if err := svc.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if err := svc.Set(ctx, "k", "v", time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := svc.Get(ctx, "k")
	if err != nil || got != "v" {
		t.Errorf("Get = %q, %v", got, err)
	}
	exists, err := svc.Exists(ctx, "k")
	if err != nil || !exists {
		t.Errorf("Exists = %v, %v", exists, err)
	}

	mr.FastForward(2 * time.Minute)
	got, err = svc.Get(ctx, "k")
	if err != nil || got != "" {
		t.Errorf("expired Get = %q, %v", got, err)
	}

	_ = svc.Set(ctx, "gone", "x", 0)
	if err := svc.Del(ctx, "gone"); err != nil {
		t.Fatalf("Del: %v", err)
	}
	if exists, _ := svc.Exists(ctx, "gone"); exists {
		t.Error("key still exists after Del")
	}
}

func TestRedisService_URL(t *testing.T) {
	mr := miniredis.RunT(t)
	svc, err := NewRedisService("redis://"+mr.Addr()+"/0", discardLogger())
	if err != nil {
		t.Fatalf("NewRedisService: %v", err)
	}
	defer func() { _ = svc.Close() }()
	if err := svc.WaitForConnection(context.Background()); err != nil {
		t.Errorf("WaitForConnection: %v", err)
	}

	if _, err := NewRedisService("redis://%zz", discardLogger()); err == nil {
		t.Error("expected parse error")
	}
}
