package domain

import (
	"context"
	"time"
)

type EventKind string

const (
	EventEntered   EventKind = "entered"
	EventAdmitted  EventKind = "admitted"
	EventPurchased EventKind = "purchased"
	EventRejected  EventKind = "rejected"
	EventExpired   EventKind = "expired"
	EventThrottled EventKind = "throttled"
)

// StatsEvent é um fato observável da sala de espera.
//
// Reason vem preenchido em rejeições (código do erro). SessionID é só para
// observabilidade: nunca substitui o token da fila. Cuidado com cardinalidade ao
// indexar por sessão.
type StatsEvent struct {
	Kind      EventKind
	ProductID ProductID
	SessionID string
	Reason    string
	Quantity  int
	At        time.Time
}

// StatsStore persiste eventos. É best-effort: erro aqui nunca derruba um request.
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
