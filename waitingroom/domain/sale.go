package domain

import (
	"context"
	"time"
)

// SaleState é o flag global da flash sale.
type SaleState struct {
	Active    bool
	ChangedAt time.Time
}

// SaleStore persiste o flag da sale. Com mais de um processo, a implementação
// precisa ser compartilhada (ex.: Redis).
//
// Set informa se houve transição (changed=false quando o valor já era o mesmo).
type SaleStore interface {
	Get(ctx context.Context) (SaleState, error)
	Set(ctx context.Context, active bool, at time.Time) (changed bool, err error)
}

// SaleListener recebe as transições da sale neste processo.
type SaleListener interface {
	SaleStarted(ctx context.Context, at time.Time)
	SaleEnded(ctx context.Context, at time.Time)
}
