package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"flashsale-gateway/waitingroom/domain"
	"flashsale-gateway/waitingroom/infra"

	"github.com/stretchr/testify/require"
)

type countingListener struct {
	started, ended int
}

func (l *countingListener) SaleStarted(context.Context, time.Time) { l.started++ }
func (l *countingListener) SaleEnded(context.Context, time.Time)   { l.ended++ }

type brokenSaleStore struct {
	getErr  error
	setErr  error
	changed bool
}

func (s brokenSaleStore) Get(context.Context) (domain.SaleState, error) {
	return domain.SaleState{Active: true}, s.getErr
}

func (s brokenSaleStore) Set(context.Context, bool, time.Time) (bool, error) {
	return s.changed, s.setErr
}

func TestSaleService_StartEndIdempotent(t *testing.T) {
	clock := &fakeClock{now: t0}
	svc := NewSaleService(infra.NewMemorySaleStore(), WithSaleClock(clock))
	l := &countingListener{}
	svc.Subscribe(l)
	ctx := context.Background()

	require.False(t, svc.IsActive(ctx))

	st, err := svc.Start(ctx)
	require.NoError(t, err)
	require.True(t, st.Active)
	require.Equal(t, t0, st.ChangedAt)

	clock.Advance(time.Minute)
	st, err = svc.Start(ctx)
	require.NoError(t, err)
	require.True(t, st.Active)
	require.Equal(t, t0, st.ChangedAt, "second start must not move changed_at")
	require.Equal(t, 1, l.started)

	_, err = svc.End(ctx)
	require.NoError(t, err)
	_, err = svc.End(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, l.ended)
	require.False(t, svc.IsActive(ctx))
}

func TestSaleService_ReadFailureReportsInactive(t *testing.T) {
	svc := NewSaleService(brokenSaleStore{getErr: errors.New("down")})
	require.False(t, svc.IsActive(context.Background()))

	_, err := svc.State(context.Background())
	require.Error(t, err)
}

func TestSaleService_WriteFailure(t *testing.T) {
	l := &countingListener{}
	svc := NewSaleService(brokenSaleStore{setErr: errors.New("down")})
	svc.Subscribe(l)

	_, err := svc.Start(context.Background())
	require.Error(t, err)
	require.Equal(t, 0, l.started)
}

func TestSaleService_PartialWriteStillNotifies(t *testing.T) {
	l := &countingListener{}
	svc := NewSaleService(brokenSaleStore{setErr: errors.New("changed_at"), changed: true})
	svc.Subscribe(l)

	st, err := svc.Start(context.Background())
	require.NoError(t, err)
	require.True(t, st.Active)
	require.Equal(t, 1, l.started)
}
