package application

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"flashsale-gateway/waitingroom/domain"
	"flashsale-gateway/waitingroom/infra"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) NextID() int64 { return s.n.Add(1) }

type harness struct {
	clock  *fakeClock
	sale   *SaleService
	tokens *infra.MemoryTokenStore
	inv    *Inventory
	ctrl   *AdmissionController
	ledger *PurchaseLedger
	stats  *infra.MemoryStatsStore
}

const productID domain.ProductID = 1

func testConfig() AdmissionConfig {
	return AdmissionConfig{
		SeedAdmissions:    2,
		AvgProcessingTime: 100 * time.Millisecond,
		MaxQueueSize:      100,
		RequireSale:       true,
	}
}

func testProduct(stock int) domain.Product {
	return domain.Product{ID: productID, Name: "Dive-In Serum", OriginalPrice: decimal.NewFromInt(10000), DiscountRate: 20, Stock: stock}
}

func newHarness(t *testing.T, stock int, cfg AdmissionConfig, opts ...AdmissionOption) *harness {
	t.Helper()
	clock := &fakeClock{now: t0}
	products := []domain.Product{testProduct(stock)}

	catalog, err := infra.NewMemoryCatalog(products)
	require.NoError(t, err)

	h := &harness{
		clock:  clock,
		tokens: infra.NewMemoryTokenStore(infra.WithTokenTTL(time.Minute)),
		inv:    NewInventory(products),
		stats:  infra.NewMemoryStatsStore(),
	}
	h.sale = NewSaleService(infra.NewMemorySaleStore(), WithSaleClock(clock))
	all := append([]AdmissionOption{WithClock(clock), WithStats(h.stats)}, opts...)
	h.ctrl = NewAdmissionController(cfg, h.tokens, h.inv, h.sale, all...)
	h.ledger = NewPurchaseLedger(DefaultLedgerConfig(), catalog, h.inv, h.ctrl, h.sale, &seqIDs{},
		WithLedgerClock(clock), WithLedgerStats(h.stats))
	h.sale.Subscribe(h.ctrl)
	h.ctrl.Register(productID)
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	_, err := h.sale.Start(context.Background())
	require.NoError(t, err)
}

func (h *harness) enter(t *testing.T) domain.Ticket {
	t.Helper()
	tk, err := h.ctrl.Enter(context.Background(), productID, "sess")
	require.NoError(t, err)
	return tk
}

func (h *harness) status(tok domain.Token) domain.QueueStatus {
	return h.ctrl.Status(context.Background(), productID, tok)
}

func (h *harness) buy(tok domain.Token, qty int) (domain.Order, error) {
	return h.ledger.Purchase(context.Background(), domain.PurchaseRequest{
		ProductID: productID, Token: tok, Quantity: qty, SessionID: "sess",
	})
}

func (h *harness) snapshot(t *testing.T) domain.WindowSnapshot {
	t.Helper()
	snap, ok := h.ctrl.Snapshot(productID)
	require.True(t, ok)
	return snap
}
