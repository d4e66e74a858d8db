package application

import (
	"context"
	"time"

	"flashsale-gateway/waitingroom/domain"
)

// ThrottleService aplica um token bucket por chave (IP do cliente) antes das rotas da fila.
//
// Não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type ThrottleService struct {
	Store      domain.LimiterStore
	RetryAfter time.Duration
	Clock      domain.Clock
	Stats      domain.StatsStore
}

func (s ThrottleService) Decide(ctx context.Context, key domain.Key, sessionID string) domain.Decision {
	if s.Store == nil {
		return domain.Decision{Allowed: true}
	}
	if s.RetryAfter <= 0 {
		s.RetryAfter = 1 * time.Second
	}
	if s.Clock == nil {
		s.Clock = domain.SystemClock{}
	}

	lim := s.Store.Get(key)
	if lim == nil {
		return domain.Decision{Allowed: true}
	}
	now := s.Clock.Now()
	if lim.AllowN(now, 1) {
		return domain.Decision{Allowed: true}
	}
	if s.Stats != nil {
		_ = s.Stats.Record(ctx, domain.StatsEvent{Kind: domain.EventThrottled, SessionID: sessionID, Reason: "RATE_LIMITED", At: now})
	}
	return domain.Decision{Allowed: false, RetryAfter: s.RetryAfter}
}

// PurchaseSlots limita quantas compras rodam ao mesmo tempo.
// - Se `AcquireTimeout <= 0`, espera até o ctx cancelar.
// - Se `AcquireTimeout > 0`, espera até o timeout.
// Retorna (release, ok). Se ok=false, nenhuma vaga foi adquirida.
type PurchaseSlots struct {
	Pool           domain.SlotPool
	AcquireTimeout time.Duration
}

func (s PurchaseSlots) Acquire(ctx context.Context) (func(), bool) {
	if s.Pool == nil {
		return func() {}, true
	}
	if s.AcquireTimeout <= 0 {
		return s.Pool.Acquire(ctx)
	}
	acqCtx, cancel := context.WithTimeout(ctx, s.AcquireTimeout)
	defer cancel()
	return s.Pool.Acquire(acqCtx)
}
