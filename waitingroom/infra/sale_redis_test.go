package infra

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestRedisSaleStore_StartsInactive(t *testing.T) {
	_, rdb := newRedis(t)
	s := NewRedisSaleStore(rdb)

	st, err := s.Get(context.Background())
	require.NoError(t, err)
	require.False(t, st.Active)
	require.True(t, st.ChangedAt.IsZero())
}

func TestRedisSaleStore_SetIsIdempotent(t *testing.T) {
	mr, rdb := newRedis(t)
	s := NewRedisSaleStore(rdb, WithSalePrefix("flash:sale:"))
	ctx := context.Background()

	changed, err := s.Set(ctx, false, t0)
	require.NoError(t, err)
	require.False(t, changed, "ending an inactive sale must be a no-op")

	changed, err = s.Set(ctx, true, t0)
	require.NoError(t, err)
	require.True(t, changed)

	changed, err = s.Set(ctx, true, t0.Add(time.Minute))
	require.NoError(t, err)
	require.False(t, changed)

	v, err := mr.Get("flash:sale:active")
	require.NoError(t, err)
	require.Equal(t, "1", v)

	st, err := s.Get(ctx)
	require.NoError(t, err)
	require.True(t, st.Active)
	require.True(t, st.ChangedAt.Equal(t0), "changed_at must keep the first transition")
}

func TestRedisSaleStore_SharedBetweenInstances(t *testing.T) {
	_, rdb := newRedis(t)
	a := NewRedisSaleStore(rdb)
	b := NewRedisSaleStore(rdb)
	ctx := context.Background()

	_, err := a.Set(ctx, true, t0)
	require.NoError(t, err)

	changed, err := b.Set(ctx, true, t0)
	require.NoError(t, err)
	require.False(t, changed, "only one instance sees the transition")

	changed, err = b.Set(ctx, false, t0.Add(time.Second))
	require.NoError(t, err)
	require.True(t, changed)

	st, err := a.Get(ctx)
	require.NoError(t, err)
	require.False(t, st.Active)
}

func TestRedisSaleStore_ReadErrorIsReported(t *testing.T) {
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 50 * time.Millisecond, MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })
	s := NewRedisSaleStore(rdb)

	_, err := s.Get(context.Background())
	require.Error(t, err)
}

func TestMemorySaleStore_Transitions(t *testing.T) {
	s := NewMemorySaleStore()
	ctx := context.Background()

	changed, _ := s.Set(ctx, true, t0)
	require.True(t, changed)
	changed, _ = s.Set(ctx, true, t0)
	require.False(t, changed)

	st, _ := s.Get(ctx)
	require.True(t, st.Active)
	require.Equal(t, t0, st.ChangedAt)
}
