package infra

import (
	"context"
	"sync"

	"flashsale-gateway/waitingroom/domain"
)

type Counters struct {
	Entered   int64
	Admitted  int64
	Purchased int64
	Rejected  int64
	Expired   int64
	Throttled int64
	// Units soma as quantidades compradas.
	Units int64
}

func (c *Counters) add(ev domain.StatsEvent) {
	switch ev.Kind {
	case domain.EventEntered:
		c.Entered++
	case domain.EventAdmitted:
		c.Admitted++
	case domain.EventPurchased:
		c.Purchased++
		c.Units += int64(ev.Quantity)
	case domain.EventRejected:
		c.Rejected++
	case domain.EventExpired:
		c.Expired++
	case domain.EventThrottled:
		c.Throttled++
	}
}

// MemoryStatsStore é uma implementação simples em memória.
// Útil para testes e desenvolvimento; não expira nada.
type MemoryStatsStore struct {
	mu        sync.Mutex
	total     Counters
	byProduct map[domain.ProductID]Counters
	byReason  map[string]int64
	bySession map[string]Counters

	trackSessions bool
}

type MemoryStatsOption func(*MemoryStatsStore)

func WithTrackSessions(track bool) MemoryStatsOption {
	return func(s *MemoryStatsStore) { s.trackSessions = track }
}

func NewMemoryStatsStore(opts ...MemoryStatsOption) *MemoryStatsStore {
	s := &MemoryStatsStore{
		byProduct: make(map[domain.ProductID]Counters),
		byReason:  make(map[string]int64),
		bySession: make(map[string]Counters),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStatsStore) Record(_ context.Context, ev domain.StatsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.total.add(ev)
	if ev.ProductID != 0 {
		c := s.byProduct[ev.ProductID]
		c.add(ev)
		s.byProduct[ev.ProductID] = c
	}
	if ev.Reason != "" {
		s.byReason[ev.Reason]++
	}
	if s.trackSessions && ev.SessionID != "" {
		c := s.bySession[ev.SessionID]
		c.add(ev)
		s.bySession[ev.SessionID] = c
	}
	return nil
}

func (s *MemoryStatsStore) Total() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *MemoryStatsStore) ByProduct() map[domain.ProductID]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[domain.ProductID]Counters, len(s.byProduct))
	for k, v := range s.byProduct {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) ByReason() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]int64, len(s.byReason))
	for k, v := range s.byReason {
		out[k] = v
	}
	return out
}

func (s *MemoryStatsStore) BySession() map[string]Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Counters, len(s.bySession))
	for k, v := range s.bySession {
		out[k] = v
	}
	return out
}
