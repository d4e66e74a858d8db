package infra

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"flashsale-gateway/waitingroom/domain"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestMemoryTokenStore_IssueAssignsIncreasingSequences(t *testing.T) {
	s := NewMemoryTokenStore()
	s.Register(1)
	s.Register(2)

	for want := uint64(1); want <= 3; want++ {
		e, err := s.Issue(1, "sess", t0)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		if e.Sequence != want {
			t.Fatalf("expected sequence %d, got %d", want, e.Sequence)
		}
		if !e.ExpiresAt.Equal(t0.Add(5 * time.Minute)) {
			t.Fatalf("unexpected expiry %s", e.ExpiresAt)
		}
	}
	other, _ := s.Issue(2, "sess", t0)
	if other.Sequence != 1 {
		t.Fatalf("expected product 2 to start at 1, got %d", other.Sequence)
	}
	if s.Waiting(1) != 3 || s.LastSequence(1) != 3 {
		t.Fatalf("waiting=%d last=%d", s.Waiting(1), s.LastSequence(1))
	}
}

func TestMemoryTokenStore_IssueUnknownProduct(t *testing.T) {
	s := NewMemoryTokenStore()
	if _, err := s.Issue(9, "", t0); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryTokenStore_LookupExpiryAndProductScope(t *testing.T) {
	s := NewMemoryTokenStore(WithTokenTTL(time.Minute))
	s.Register(1)
	s.Register(2)
	e, _ := s.Issue(1, "", t0)

	if _, err := s.Lookup(1, e.Token, t0.Add(time.Minute)); err != nil {
		t.Fatalf("expected live at exact expiry, got %v", err)
	}
	got, err := s.Lookup(1, e.Token, t0.Add(time.Minute+time.Nanosecond))
	if !errors.Is(err, domain.ErrExpired) {
		t.Fatalf("expected ErrExpired, got %v", err)
	}
	if got.Sequence != e.Sequence {
		t.Fatalf("expected entry returned with ErrExpired")
	}
	if _, err := s.Lookup(2, e.Token, t0); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other product, got %v", err)
	}
	if _, err := s.Lookup(1, "nope", t0); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryTokenStore_ConsumedIsNeverExpired(t *testing.T) {
	s := NewMemoryTokenStore(WithTokenTTL(time.Minute))
	s.Register(1)
	e, _ := s.Issue(1, "", t0)
	if err := s.MarkConsumed(1, e.Token); err != nil {
		t.Fatalf("consume: %v", err)
	}
	if err := s.MarkConsumed(1, e.Token); err != nil {
		t.Fatalf("second consume should be a no-op: %v", err)
	}
	got, err := s.Lookup(1, e.Token, t0.Add(time.Hour))
	if err != nil || !got.Consumed {
		t.Fatalf("expected consumed entry, got %+v err=%v", got, err)
	}
	if s.Waiting(1) != 0 {
		t.Fatalf("expected waiting=0, got %d", s.Waiting(1))
	}
}

func TestMemoryTokenStore_AtSkipsDeadEntries(t *testing.T) {
	s := NewMemoryTokenStore(WithTokenTTL(time.Minute))
	s.Register(1)
	a, _ := s.Issue(1, "", t0)
	b, _ := s.Issue(1, "", t0.Add(30*time.Second))
	_ = s.MarkConsumed(1, a.Token)

	if _, ok := s.At(1, a.Sequence, t0); ok {
		t.Fatalf("consumed entry must not be live")
	}
	if _, ok := s.At(1, b.Sequence, t0.Add(time.Minute)); !ok {
		t.Fatalf("expected second entry live")
	}
	if _, ok := s.At(1, b.Sequence, t0.Add(2*time.Minute)); ok {
		t.Fatalf("expected second entry expired")
	}
	if _, ok := s.At(1, 99, t0); ok {
		t.Fatalf("unknown sequence must not be live")
	}
}

func TestMemoryTokenStore_SweepReturnsExpiredInOrder(t *testing.T) {
	s := NewMemoryTokenStore(WithTokenTTL(time.Minute))
	s.Register(1)
	var issued []domain.QueueEntry
	for i := 0; i < 4; i++ {
		e, _ := s.Issue(1, "", t0)
		issued = append(issued, e)
	}
	_ = s.MarkConsumed(1, issued[1].Token)
	late, _ := s.Issue(1, "", t0.Add(2*time.Minute))

	expired := s.Sweep(1, t0.Add(90*time.Second))
	if len(expired) != 3 {
		t.Fatalf("expected 3 expired, got %d", len(expired))
	}
	for i, want := range []uint64{1, 3, 4} {
		if expired[i].Sequence != want {
			t.Fatalf("expired[%d]: expected seq %d, got %d", i, want, expired[i].Sequence)
		}
	}
	got, err := s.Lookup(1, issued[1].Token, t0.Add(90*time.Second))
	if err != nil || !got.Consumed {
		t.Fatalf("consumed entry must survive the sweep, got %+v err=%v", got, err)
	}
	if s.Waiting(1) != 1 {
		t.Fatalf("expected only the late entry waiting, got %d", s.Waiting(1))
	}
	next, _ := s.Issue(1, "", t0.Add(2*time.Minute))
	if next.Sequence != late.Sequence+1 {
		t.Fatalf("sequences must never be reused: got %d after %d", next.Sequence, late.Sequence)
	}
}

func TestMemoryTokenStore_Remove(t *testing.T) {
	s := NewMemoryTokenStore()
	s.Register(1)
	e, _ := s.Issue(1, "", t0)

	if _, ok := s.Remove(1, e.Token); !ok {
		t.Fatalf("expected removal")
	}
	if _, ok := s.Remove(1, e.Token); ok {
		t.Fatalf("second removal must report false")
	}
	if s.Waiting(1) != 0 {
		t.Fatalf("expected waiting=0, got %d", s.Waiting(1))
	}
}

func TestMemoryTokenStore_TokenCollision(t *testing.T) {
	s := NewMemoryTokenStore(WithTokenSource(func() (string, error) { return "fixed", nil }))
	s.Register(1)
	if _, err := s.Issue(1, "", t0); err != nil {
		t.Fatalf("first issue: %v", err)
	}
	if _, err := s.Issue(1, "", t0); err == nil {
		t.Fatalf("expected collision error")
	}
	if s.LastSequence(1) != 1 {
		t.Fatalf("collision must not consume a sequence")
	}
}

func TestMemoryTokenStore_TokensAreUnique(t *testing.T) {
	s := NewMemoryTokenStore()
	s.Register(1)
	seen := make(map[domain.Token]bool)
	for i := 0; i < 200; i++ {
		e, err := s.Issue(1, strconv.Itoa(i), t0)
		if err != nil {
			t.Fatalf("issue: %v", err)
		}
		if seen[e.Token] {
			t.Fatalf("duplicate token %s", e.Token)
		}
		seen[e.Token] = true
	}
}
