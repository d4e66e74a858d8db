package infra

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"flashsale-gateway/waitingroom/domain"

	"github.com/google/uuid"
)

// MemoryTokenStore guarda as entradas de fila em memória, separadas por produto.
//
// Cada produto tem seu próprio lock: produtos diferentes nunca disputam.
type MemoryTokenStore struct {
	mu     sync.RWMutex
	shards map[domain.ProductID]*tokenShard

	ttl      time.Duration
	newToken func() (string, error)
}

type tokenShard struct {
	mu      sync.Mutex
	seq     uint64
	byToken map[domain.Token]*domain.QueueEntry
	bySeq   map[uint64]domain.Token
	waiting int
}

type TokenStoreOption func(*MemoryTokenStore)

func WithTokenTTL(d time.Duration) TokenStoreOption {
	return func(s *MemoryTokenStore) { s.ttl = d }
}

// WithTokenSource troca o gerador de tokens. O padrão é UUIDv4 (crypto/rand).
func WithTokenSource(fn func() (string, error)) TokenStoreOption {
	return func(s *MemoryTokenStore) { s.newToken = fn }
}

func NewMemoryTokenStore(opts ...TokenStoreOption) *MemoryTokenStore {
	s := &MemoryTokenStore{
		shards:   make(map[domain.ProductID]*tokenShard),
		ttl:      5 * time.Minute,
		newToken: randomToken,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func randomToken() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

var errTokenCollision = errors.New("queue token collision")

func (s *MemoryTokenStore) Register(productID domain.ProductID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shards[productID]; ok {
		return
	}
	s.shards[productID] = &tokenShard{
		byToken: make(map[domain.Token]*domain.QueueEntry),
		bySeq:   make(map[uint64]domain.Token),
	}
}

func (s *MemoryTokenStore) shard(productID domain.ProductID) (*tokenShard, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sh, ok := s.shards[productID]
	return sh, ok
}

func (s *MemoryTokenStore) Issue(productID domain.ProductID, sessionID string, now time.Time) (domain.QueueEntry, error) {
	sh, ok := s.shard(productID)
	if !ok {
		return domain.QueueEntry{}, fmt.Errorf("product %d: %w", productID, domain.ErrNotFound)
	}
	raw, err := s.newToken()
	if err != nil {
		return domain.QueueEntry{}, fmt.Errorf("generate queue token: %w", err)
	}
	tok := domain.Token(raw)

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if _, dup := sh.byToken[tok]; dup {
		return domain.QueueEntry{}, errTokenCollision
	}
	sh.seq++
	e := &domain.QueueEntry{
		ProductID:  productID,
		Token:      tok,
		Sequence:   sh.seq,
		SessionID:  sessionID,
		EnqueuedAt: now,
		ExpiresAt:  now.Add(s.ttl),
	}
	sh.byToken[tok] = e
	sh.bySeq[e.Sequence] = tok
	sh.waiting++
	return *e, nil
}

func (s *MemoryTokenStore) Lookup(productID domain.ProductID, token domain.Token, now time.Time) (domain.QueueEntry, error) {
	sh, ok := s.shard(productID)
	if !ok {
		return domain.QueueEntry{}, domain.ErrNotFound
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.byToken[token]
	if !ok {
		return domain.QueueEntry{}, domain.ErrNotFound
	}
	if e.Expired(now) {
		return *e, domain.ErrExpired
	}
	return *e, nil
}

func (s *MemoryTokenStore) At(productID domain.ProductID, seq uint64, now time.Time) (domain.QueueEntry, bool) {
	sh, ok := s.shard(productID)
	if !ok {
		return domain.QueueEntry{}, false
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()

	tok, ok := sh.bySeq[seq]
	if !ok {
		return domain.QueueEntry{}, false
	}
	e := sh.byToken[tok]
	if e.Consumed || e.Expired(now) {
		return domain.QueueEntry{}, false
	}
	return *e, true
}

func (s *MemoryTokenStore) MarkAdmitted(productID domain.ProductID, token domain.Token) error {
	return s.update(productID, token, func(sh *tokenShard, e *domain.QueueEntry) {
		e.Admitted = true
	})
}

func (s *MemoryTokenStore) MarkConsumed(productID domain.ProductID, token domain.Token) error {
	return s.update(productID, token, func(sh *tokenShard, e *domain.QueueEntry) {
		if !e.Consumed {
			e.Consumed = true
			sh.waiting--
		}
	})
}

func (s *MemoryTokenStore) update(productID domain.ProductID, token domain.Token, fn func(*tokenShard, *domain.QueueEntry)) error {
	sh, ok := s.shard(productID)
	if !ok {
		return domain.ErrNotFound
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.byToken[token]
	if !ok {
		return domain.ErrNotFound
	}
	fn(sh, e)
	return nil
}

func (s *MemoryTokenStore) Remove(productID domain.ProductID, token domain.Token) (domain.QueueEntry, bool) {
	sh, ok := s.shard(productID)
	if !ok {
		return domain.QueueEntry{}, false
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()

	e, ok := sh.byToken[token]
	if !ok {
		return domain.QueueEntry{}, false
	}
	sh.drop(e)
	return *e, true
}

func (sh *tokenShard) drop(e *domain.QueueEntry) {
	delete(sh.byToken, e.Token)
	delete(sh.bySeq, e.Sequence)
	if !e.Consumed {
		sh.waiting--
	}
}

func (s *MemoryTokenStore) Sweep(productID domain.ProductID, now time.Time) []domain.QueueEntry {
	sh, ok := s.shard(productID)
	if !ok {
		return nil
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()

	// Consumidos ficam como lápide para que replays continuem vendo Consumed.
	// São no máximo um por unidade vendida.
	var expired []domain.QueueEntry
	for _, e := range sh.byToken {
		if e.Expired(now) {
			expired = append(expired, *e)
			sh.drop(e)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].Sequence < expired[j].Sequence })
	return expired
}

func (s *MemoryTokenStore) Waiting(productID domain.ProductID) int {
	sh, ok := s.shard(productID)
	if !ok {
		return 0
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.waiting
}

func (s *MemoryTokenStore) LastSequence(productID domain.ProductID) uint64 {
	sh, ok := s.shard(productID)
	if !ok {
		return 0
	}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.seq
}
