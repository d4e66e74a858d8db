package application

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"flashsale-gateway/waitingroom/domain"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Inventory é o estoque vivo. Só o PurchaseLedger altera, sempre dentro do
// lock do produto no AdmissionController.
type Inventory struct {
	mu    sync.RWMutex
	stock map[domain.ProductID]int
}

func NewInventory(products []domain.Product) *Inventory {
	inv := &Inventory{stock: make(map[domain.ProductID]int, len(products))}
	for _, p := range products {
		inv.stock[p.ID] = max(p.Stock, 0)
	}
	return inv
}

// Remaining devolve 0 para produto desconhecido.
func (i *Inventory) Remaining(id domain.ProductID) int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.stock[id]
}

func (i *Inventory) check(id domain.ProductID, qty int) error {
	i.mu.RLock()
	defer i.mu.RUnlock()
	left, ok := i.stock[id]
	if !ok {
		return fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
	}
	if left < qty {
		return fmt.Errorf("product %d: %d left, %d requested: %w", id, left, qty, domain.ErrOutOfStock)
	}
	return nil
}

func (i *Inventory) take(id domain.ProductID, qty int) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.stock[id] -= qty
}

// Gate é o ponto de serialização por produto onde a compra é efetivada.
type Gate interface {
	Commit(ctx context.Context, id domain.ProductID, token domain.Token, reserve ReserveFunc) (domain.QueueEntry, error)
}

type IDGenerator interface {
	NextID() int64
}

type LedgerConfig struct {
	MaxQuantity int
}

func DefaultLedgerConfig() LedgerConfig { return LedgerConfig{MaxQuantity: 5} }

// PurchaseLedger efetiva compras: baixa de estoque, pedido e consumo do token
// acontecem juntos ou não acontecem.
type PurchaseLedger struct {
	cfg     LedgerConfig
	catalog domain.Catalog
	inv     *Inventory
	gate    Gate
	sale    SaleReader
	ids     IDGenerator
	clock   domain.Clock
	stats   domain.StatsStore
	log     *zap.Logger

	mu     sync.Mutex
	orders map[domain.ProductID][]domain.Order
}

type LedgerOption func(*PurchaseLedger)

func WithLedgerClock(c domain.Clock) LedgerOption {
	return func(l *PurchaseLedger) { l.clock = c }
}

func WithLedgerStats(s domain.StatsStore) LedgerOption {
	return func(l *PurchaseLedger) { l.stats = s }
}

func WithLedgerLogger(log *zap.Logger) LedgerOption {
	return func(l *PurchaseLedger) { l.log = log }
}

func NewPurchaseLedger(cfg LedgerConfig, catalog domain.Catalog, inv *Inventory, gate Gate, sale SaleReader, ids IDGenerator, opts ...LedgerOption) *PurchaseLedger {
	if cfg.MaxQuantity <= 0 {
		cfg.MaxQuantity = DefaultLedgerConfig().MaxQuantity
	}
	l := &PurchaseLedger{
		cfg:     cfg,
		catalog: catalog,
		inv:     inv,
		gate:    gate,
		sale:    sale,
		ids:     ids,
		clock:   domain.SystemClock{},
		log:     zap.NewNop(),
		orders:  make(map[domain.ProductID][]domain.Order),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.log == nil {
		l.log = zap.NewNop()
	}
	return l
}

func (l *PurchaseLedger) Purchase(ctx context.Context, req domain.PurchaseRequest) (domain.Order, error) {
	order, err := l.purchase(ctx, req)
	now := l.clock.Now()
	if err != nil {
		l.recordEvent(ctx, domain.StatsEvent{
			Kind: domain.EventRejected, ProductID: req.ProductID, SessionID: req.SessionID,
			Reason: domain.Code(err), At: now,
		})
		l.log.Debug("purchase rejected",
			zap.Int64("product_id", int64(req.ProductID)),
			zap.String("session_id", req.SessionID),
			zap.String("code", domain.Code(err)),
			zap.Error(err),
		)
		return domain.Order{}, err
	}
	l.recordEvent(ctx, domain.StatsEvent{
		Kind: domain.EventPurchased, ProductID: order.ProductID, SessionID: order.SessionID,
		Quantity: order.Quantity, At: now,
	})
	l.log.Info("purchase committed",
		zap.Int64("order_id", order.ID),
		zap.Int64("product_id", int64(order.ProductID)),
		zap.Int("quantity", order.Quantity),
		zap.String("total_price", order.TotalPrice.String()),
	)
	return order, nil
}

func (l *PurchaseLedger) purchase(ctx context.Context, req domain.PurchaseRequest) (domain.Order, error) {
	if req.Quantity < 1 || req.Quantity > l.cfg.MaxQuantity {
		return domain.Order{}, fmt.Errorf("quantity must be between 1 and %d: %w", l.cfg.MaxQuantity, domain.ErrInvalidRequest)
	}
	if req.Token == "" {
		return domain.Order{}, fmt.Errorf("queue token is required: %w", domain.ErrInvalidRequest)
	}
	product, err := l.catalog.Get(ctx, req.ProductID)
	if err != nil {
		return domain.Order{}, err
	}

	// Preço sempre calculado aqui, nunca vindo do cliente.
	unit := product.UnitPrice(l.sale != nil && l.sale.IsActive(ctx))
	total := unit.Mul(decimal.NewFromInt(int64(req.Quantity)))

	var order domain.Order
	_, err = l.gate.Commit(ctx, req.ProductID, req.Token, func(domain.QueueEntry) (func(), error) {
		if err := l.inv.check(req.ProductID, req.Quantity); err != nil {
			return nil, err
		}
		order = domain.Order{
			ID:          l.ids.NextID(),
			ProductID:   product.ID,
			ProductName: product.Name,
			SessionID:   req.SessionID,
			Quantity:    req.Quantity,
			UnitPrice:   unit,
			TotalPrice:  total,
			CreatedAt:   l.clock.Now(),
		}
		return func() {
			l.inv.take(req.ProductID, req.Quantity)
			l.appendOrder(order)
		}, nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return order, nil
}

func (l *PurchaseLedger) appendOrder(o domain.Order) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.orders[o.ProductID] = append(l.orders[o.ProductID], o)
}

func (l *PurchaseLedger) Remaining(id domain.ProductID) int { return l.inv.Remaining(id) }

// Orders devolve os pedidos do produto em ordem de id.
func (l *PurchaseLedger) Orders(id domain.ProductID) []domain.Order {
	l.mu.Lock()
	out := append([]domain.Order(nil), l.orders[id]...)
	l.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (l *PurchaseLedger) recordEvent(ctx context.Context, ev domain.StatsEvent) {
	if l.stats == nil {
		return
	}
	if err := l.stats.Record(ctx, ev); err != nil {
		l.log.Warn("stats record failed", zap.String("kind", string(ev.Kind)), zap.Error(err))
	}
}
