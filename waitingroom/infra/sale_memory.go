package infra

import (
	"context"
	"sync"
	"time"

	"flashsale-gateway/waitingroom/domain"
)

// MemorySaleStore guarda o flag da sale no próprio processo.
// Serve para um único processo e para testes.
type MemorySaleStore struct {
	mu    sync.RWMutex
	state domain.SaleState
}

func NewMemorySaleStore() *MemorySaleStore { return &MemorySaleStore{} }

func (s *MemorySaleStore) Get(_ context.Context) (domain.SaleState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, nil
}

func (s *MemorySaleStore) Set(_ context.Context, active bool, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Active == active {
		return false, nil
	}
	s.state = domain.SaleState{Active: active, ChangedAt: at}
	return true, nil
}
