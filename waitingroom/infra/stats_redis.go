package infra

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"flashsale-gateway/waitingroom/domain"

	"github.com/redis/go-redis/v9"
)

// RedisStatsStore agrega os eventos da fila em hashes do Redis, compartilhados
// entre processos.
//
// Chaves (prefixo padrão "waitingroom:stats"):
//
//	<prefix>:total              campo = kind (+ "units")
//	<prefix>:minute:YYYYMMDDhhmm campo = kind, com TTL
//	<prefix>:product:<id>       campo = kind
//	<prefix>:reason             campo = código de rejeição
//	<prefix>:session:<id>       campo = kind, com TTL (opcional)
type RedisStatsStore struct {
	rdb *redis.Client

	prefix string
	// ttl vale só para séries por minuto e por sessão; os totais não expiram.
	ttl time.Duration

	bucket string // "minute" (padrão) ou "none"

	trackSessions bool
}

type RedisStatsOption func(*RedisStatsStore)

func WithStatsPrefix(prefix string) RedisStatsOption {
	return func(s *RedisStatsStore) {
		s.prefix = strings.Trim(prefix, ":")
	}
}

func WithStatsTTL(d time.Duration) RedisStatsOption {
	return func(s *RedisStatsStore) { s.ttl = d }
}

func WithStatsBucket(bucket string) RedisStatsOption {
	return func(s *RedisStatsStore) { s.bucket = strings.ToLower(strings.TrimSpace(bucket)) }
}

func WithStatsTrackSessions(track bool) RedisStatsOption {
	return func(s *RedisStatsStore) { s.trackSessions = track }
}

func NewRedisStatsStore(rdb *redis.Client, opts ...RedisStatsOption) *RedisStatsStore {
	s := &RedisStatsStore{
		rdb:    rdb,
		prefix: "waitingroom:stats",
		ttl:    24 * time.Hour,
		bucket: "minute",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStatsStore) Record(ctx context.Context, ev domain.StatsEvent) error {
	if s == nil || s.rdb == nil {
		return nil
	}

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	field := string(ev.Kind)

	pipe := s.rdb.Pipeline()
	totalKey := s.prefix + ":total"
	pipe.HIncrBy(ctx, totalKey, field, 1)
	if ev.Kind == domain.EventPurchased && ev.Quantity > 0 {
		pipe.HIncrBy(ctx, totalKey, "units", int64(ev.Quantity))
	}

	if s.bucket == "minute" {
		bucketKey := fmt.Sprintf("%s:minute:%s", s.prefix, at.UTC().Format("200601021504"))
		pipe.HIncrBy(ctx, bucketKey, field, 1)
		if s.ttl > 0 {
			pipe.Expire(ctx, bucketKey, s.ttl)
		}
	}

	if ev.ProductID != 0 {
		productKey := s.prefix + ":product:" + strconv.FormatInt(int64(ev.ProductID), 10)
		pipe.HIncrBy(ctx, productKey, field, 1)
	}

	if ev.Reason != "" {
		pipe.HIncrBy(ctx, s.prefix+":reason", ev.Reason, 1)
	}

	if s.trackSessions {
		if sid := strings.TrimSpace(ev.SessionID); sid != "" {
			sessionKey := s.prefix + ":session:" + sid
			pipe.HIncrBy(ctx, sessionKey, field, 1)
			if s.ttl > 0 {
				pipe.Expire(ctx, sessionKey, s.ttl)
			}
		}
	}

	_, err := pipe.Exec(ctx)
	return err
}
