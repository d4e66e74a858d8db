package infra

import (
	"context"

	"flashsale-gateway/waitingroom/domain"
)

type chanPool struct {
	sem chan struct{}
}

// NewChanPool cria um semáforo baseado em channel com `max` vagas de compra.
func NewChanPool(max int) domain.SlotPool {
	return &chanPool{sem: make(chan struct{}, max)}
}

func (p *chanPool) Acquire(ctx context.Context) (func(), bool) {
	select {
	case p.sem <- struct{}{}:
		return func() { <-p.sem }, true
	case <-ctx.Done():
		return nil, false
	}
}

// InUse informa quantas vagas estão ocupadas agora.
func InUse(pool domain.SlotPool) int {
	if p, ok := pool.(*chanPool); ok {
		return len(p.sem)
	}
	return 0
}
