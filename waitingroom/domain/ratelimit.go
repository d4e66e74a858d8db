package domain

// Contratos de limitação por taxa, usados em dois lugares:
// throttling de polls por sessão e liberação de vagas em segundo plano por produto.

import "time"

// Key identifica quem consome o limite (id de sessão, id de produto).
type Key string

// Limiter decide se uma ação cabe na taxa no instante t.
//
// *rate.Limiter (golang.org/x/time/rate) satisfaz esta interface; receber o
// instante explicitamente permite testar com relógio falso.
type Limiter interface {
	AllowN(t time.Time, n int) bool
}

// LimiterStore obtém um limiter por chave.
type LimiterStore interface {
	Get(Key) Limiter
}

type Decision struct {
	Allowed bool
	// RetryAfter vai no header Retry-After quando bloqueado. Zero = sem sugestão.
	RetryAfter time.Duration
}
