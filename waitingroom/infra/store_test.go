package infra

import (
	"context"
	"testing"
	"time"

	"flashsale-gateway/waitingroom/domain"
)

func TestStore_GetSameKeyReturnsSameLimiter(t *testing.T) {
	s := NewStore(10, 1)

	l1 := s.Get(domain.Key("ip:10.0.0.1"))
	l2 := s.Get(domain.Key("ip:10.0.0.1"))
	if l1 != l2 {
		t.Fatalf("expected same limiter pointer for same key")
	}
	if s.Len() != 1 {
		t.Fatalf("expected one entry, got %d", s.Len())
	}
}

func TestStore_LowBurstRejectsSecondImmediateAllow(t *testing.T) {
	s := NewStore(0.02, 1)

	lim := s.Get(domain.Key("product:1"))
	now := time.Now()
	if !lim.AllowN(now, 1) {
		t.Fatalf("expected first AllowN to be true")
	}
	if lim.AllowN(now, 1) {
		t.Fatalf("expected second immediate AllowN to be false (burst=1)")
	}
}

func TestStore_RefillsAtConfiguredRate(t *testing.T) {
	s := NewStore(2, 1)
	lim := s.Get(domain.Key("product:1"))
	now := time.Now()

	_ = lim.AllowN(now, 1)
	if lim.AllowN(now.Add(100*time.Millisecond), 1) {
		t.Fatalf("expected empty bucket after 100ms at 2 rps")
	}
	if !lim.AllowN(now.Add(600*time.Millisecond), 1) {
		t.Fatalf("expected a token after 600ms at 2 rps")
	}
}

func TestStore_CleanupRemovesIdleEntries(t *testing.T) {
	s := NewStore(10, 1, WithIdleTTL(2*time.Millisecond), WithCleanupEvery(0))

	before := s.Get(domain.Key("k"))
	time.Sleep(4 * time.Millisecond)

	s.Cleanup()

	after := s.Get(domain.Key("k"))
	if before == after {
		t.Fatalf("expected limiter to be recreated after cleanup")
	}
}

func TestStore_RunStopsWithContext(t *testing.T) {
	s := NewStore(10, 1, WithCleanupEvery(time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected nil error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not return after cancel")
	}
}

func TestChanPool_LimitsSlots(t *testing.T) {
	pool := NewChanPool(1)

	release, ok := pool.Acquire(context.Background())
	if !ok {
		t.Fatalf("expected first acquire")
	}
	if InUse(pool) != 1 {
		t.Fatalf("expected 1 slot in use, got %d", InUse(pool))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	if _, ok := pool.Acquire(ctx); ok {
		t.Fatalf("expected second acquire to time out")
	}

	release()
	if InUse(pool) != 0 {
		t.Fatalf("expected slot released")
	}
}
