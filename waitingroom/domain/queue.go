package domain

import "time"

// Token é a credencial opaca entregue na entrada da fila.
// Nunca deve ser derivada do número de sequência.
type Token string

type EntryState int

const (
	StateQueued EntryState = iota
	StateAdmitted
	StateConsumed
	StateExpired
)

func (s EntryState) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateAdmitted:
		return "admitted"
	case StateConsumed:
		return "consumed"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// QueueEntry é uma posição na fila de um produto.
//
// Sequence é monotônica por produto e define a ordem FIFO; nunca é reutilizada.
type QueueEntry struct {
	ProductID  ProductID
	Token      Token
	Sequence   uint64
	SessionID  string
	EnqueuedAt time.Time
	ExpiresAt  time.Time
	Admitted   bool
	Consumed   bool
}

// Expired diz se o TTL venceu antes do consumo.
func (e QueueEntry) Expired(now time.Time) bool {
	return !e.Consumed && now.After(e.ExpiresAt)
}

func (e QueueEntry) State(now time.Time) EntryState {
	switch {
	case e.Consumed:
		return StateConsumed
	case e.Expired(now):
		return StateExpired
	case e.Admitted:
		return StateAdmitted
	default:
		return StateQueued
	}
}

// TokenStore guarda as entradas de fila com expiração por TTL.
//
// É o único escritor dos campos Admitted/Consumed/ExpiresAt. As operações por
// token são O(1); Sweep percorre o produto inteiro e roda fora do caminho de request.
type TokenStore interface {
	Register(productID ProductID)
	Issue(productID ProductID, sessionID string, now time.Time) (QueueEntry, error)
	// Lookup retorna ErrExpired (junto com a entrada) se o TTL venceu sem consumo,
	// ou ErrNotFound se o token não existe para esse produto.
	Lookup(productID ProductID, token Token, now time.Time) (QueueEntry, error)
	// At retorna a entrada viva (não consumida e não expirada) com essa sequência.
	At(productID ProductID, seq uint64, now time.Time) (QueueEntry, bool)
	MarkAdmitted(productID ProductID, token Token) error
	MarkConsumed(productID ProductID, token Token) error
	Remove(productID ProductID, token Token) (QueueEntry, bool)
	// Sweep remove as entradas expiradas sem consumo e as devolve, para que as
	// vagas admitidas sejam recuperadas. Entradas consumidas nunca saem.
	Sweep(productID ProductID, now time.Time) []QueueEntry
	Waiting(productID ProductID) int
	LastSequence(productID ProductID) uint64
}

// Ticket é a resposta da entrada na fila.
type Ticket struct {
	Token         Token
	Sequence      uint64
	Position      uint64
	EstimatedWait time.Duration
}

// QueueStatus é o resultado de um poll. Nunca carrega erro: "ainda não" é um campo.
type QueueStatus struct {
	Position      uint64
	EstimatedWait time.Duration
	CanPurchase   bool
	Expired       bool
	SoldOut       bool
}

// WindowSnapshot é uma leitura consistente da janela de admissão de um produto.
type WindowSnapshot struct {
	ProductID       ProductID
	Opened          bool
	AdmittedThrough uint64
	Capacity        uint64
	LastSequence    uint64
	Outstanding     int
	Waiting         int
	Remaining       int
}
