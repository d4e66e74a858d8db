package application

import (
	"context"
	"sync"
	"time"

	"flashsale-gateway/waitingroom/domain"

	"go.uber.org/zap"
)

// SaleService liga e desliga a sale e avisa os interessados na transição.
type SaleService struct {
	store domain.SaleStore
	clock domain.Clock
	log   *zap.Logger

	mu        sync.RWMutex
	listeners []domain.SaleListener
}

type SaleOption func(*SaleService)

func WithSaleClock(c domain.Clock) SaleOption {
	return func(s *SaleService) { s.clock = c }
}

func WithSaleLogger(l *zap.Logger) SaleOption {
	return func(s *SaleService) { s.log = l }
}

func NewSaleService(store domain.SaleStore, opts ...SaleOption) *SaleService {
	s := &SaleService{store: store, clock: domain.SystemClock{}, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	return s
}

func (s *SaleService) Subscribe(ls ...domain.SaleListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, ls...)
}

// Start é idempotente: com a sale já ativa nada é notificado.
func (s *SaleService) Start(ctx context.Context) (domain.SaleState, error) {
	return s.set(ctx, true)
}

func (s *SaleService) End(ctx context.Context) (domain.SaleState, error) {
	return s.set(ctx, false)
}

func (s *SaleService) set(ctx context.Context, active bool) (domain.SaleState, error) {
	now := s.clock.Now()
	changed, err := s.store.Set(ctx, active, now)
	if err != nil {
		if !changed {
			return domain.SaleState{}, err
		}
		s.log.Warn("sale state changed with partial write", zap.Bool("active", active), zap.Error(err))
	}

	if !changed {
		st, err := s.store.Get(ctx)
		if err != nil {
			return domain.SaleState{Active: active}, nil
		}
		return st, nil
	}

	s.log.Info("sale state changed", zap.Bool("active", active), zap.Time("at", now))
	s.notify(ctx, active, now)
	return domain.SaleState{Active: active, ChangedAt: now}, nil
}

func (s *SaleService) notify(ctx context.Context, active bool, at time.Time) {
	s.mu.RLock()
	ls := append([]domain.SaleListener(nil), s.listeners...)
	s.mu.RUnlock()

	for _, l := range ls {
		if active {
			l.SaleStarted(ctx, at)
		} else {
			l.SaleEnded(ctx, at)
		}
	}
}

// IsActive responde false se o store falhar.
func (s *SaleService) IsActive(ctx context.Context) bool {
	st, err := s.store.Get(ctx)
	if err != nil {
		s.log.Warn("sale state read failed, assuming inactive", zap.Error(err))
		return false
	}
	return st.Active
}

func (s *SaleService) State(ctx context.Context) (domain.SaleState, error) {
	return s.store.Get(ctx)
}
