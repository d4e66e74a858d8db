package infra

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"flashsale-gateway/waitingroom/domain"

	"github.com/redis/go-redis/v9"
)

// RedisSaleStore compartilha o flag da sale entre processos.
//
// Chaves: <prefix>:active ("1"/"0") e <prefix>:changed_at (unix nano).
// GETSET dá a transição atômica: só quem troca o valor vê changed=true.
type RedisSaleStore struct {
	rdb    *redis.Client
	prefix string
}

type RedisSaleOption func(*RedisSaleStore)

func WithSalePrefix(prefix string) RedisSaleOption {
	return func(s *RedisSaleStore) { s.prefix = strings.Trim(prefix, ":") }
}

func NewRedisSaleStore(rdb *redis.Client, opts ...RedisSaleOption) *RedisSaleStore {
	s := &RedisSaleStore{rdb: rdb, prefix: "sale"}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisSaleStore) activeKey() string    { return s.prefix + ":active" }
func (s *RedisSaleStore) changedAtKey() string { return s.prefix + ":changed_at" }

func (s *RedisSaleStore) Get(ctx context.Context) (domain.SaleState, error) {
	vals, err := s.rdb.MGet(ctx, s.activeKey(), s.changedAtKey()).Result()
	if err != nil {
		return domain.SaleState{}, fmt.Errorf("read sale state: %w", err)
	}
	st := domain.SaleState{}
	if v, ok := vals[0].(string); ok {
		st.Active = v == "1"
	}
	if v, ok := vals[1].(string); ok {
		if nanos, err := strconv.ParseInt(v, 10, 64); err == nil {
			st.ChangedAt = time.Unix(0, nanos)
		}
	}
	return st, nil
}

func (s *RedisSaleStore) Set(ctx context.Context, active bool, at time.Time) (bool, error) {
	val := "0"
	if active {
		val = "1"
	}
	prev, err := s.rdb.GetSet(ctx, s.activeKey(), val).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("write sale state: %w", err)
	}
	wasActive := prev == "1"
	if wasActive == active {
		return false, nil
	}
	if err := s.rdb.Set(ctx, s.changedAtKey(), at.UnixNano(), 0).Err(); err != nil {
		return true, fmt.Errorf("write sale changed_at: %w", err)
	}
	return true, nil
}
