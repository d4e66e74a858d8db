package application

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"flashsale-gateway/waitingroom/domain"

	"go.uber.org/zap"
)

type AdmissionConfig struct {
	// SeedAdmissions é quantos lugares são liberados quando a janela abre.
	SeedAdmissions int
	// AvgProcessingTime multiplica a posição para estimar a espera.
	AvgProcessingTime time.Duration
	// MaxQueueSize limita entradas não consumidas por produto; 0 desliga.
	MaxQueueSize int
	// RequireSale faz a admissão esperar a sale começar.
	RequireSale bool
}

func DefaultAdmissionConfig() AdmissionConfig {
	return AdmissionConfig{
		SeedAdmissions:    10,
		AvgProcessingTime: 100 * time.Millisecond,
		MaxQueueSize:      10000,
		RequireSale:       true,
	}
}

// SaleReader é o que os casos de uso precisam saber da sale.
type SaleReader interface {
	IsActive(ctx context.Context) bool
}

// ReserveFunc roda com o lock do produto. Valida a compra e devolve o efeito,
// que só é aplicado depois do token ser marcado como consumido.
type ReserveFunc func(entry domain.QueueEntry) (apply func(), err error)

// window é o estado de admissão de um produto. Todos os campos são protegidos por mu,
// que também serializa emissão de tokens e baixa de estoque do produto.
type window struct {
	mu          sync.Mutex
	opened      bool
	capacity    uint64
	through     uint64
	outstanding int
}

// AdmissionController decide quem pode comprar.
//
// Cada produto tem uma janela: sequências <= through podem comprar. A janela
// avança ao abrir (seed), a cada compra, quando um admitido expira e por uma
// liberação em segundo plano limitada por token bucket. through nunca passa de
// capacity, o estoque no momento em que a janela abriu.
type AdmissionController struct {
	cfg     AdmissionConfig
	tokens  domain.TokenStore
	inv     *Inventory
	sale    SaleReader
	release domain.LimiterStore
	clock   domain.Clock
	stats   domain.StatsStore
	log     *zap.Logger

	mu      sync.RWMutex
	windows map[domain.ProductID]*window
}

type AdmissionOption func(*AdmissionController)

func WithClock(c domain.Clock) AdmissionOption {
	return func(a *AdmissionController) { a.clock = c }
}

func WithStats(s domain.StatsStore) AdmissionOption {
	return func(a *AdmissionController) { a.stats = s }
}

func WithLogger(l *zap.Logger) AdmissionOption {
	return func(a *AdmissionController) { a.log = l }
}

// WithReleaseLimiters liga a liberação em segundo plano, um limiter por produto.
func WithReleaseLimiters(s domain.LimiterStore) AdmissionOption {
	return func(a *AdmissionController) { a.release = s }
}

func NewAdmissionController(cfg AdmissionConfig, tokens domain.TokenStore, inv *Inventory, sale SaleReader, opts ...AdmissionOption) *AdmissionController {
	c := &AdmissionController{
		cfg:     cfg,
		tokens:  tokens,
		inv:     inv,
		sale:    sale,
		clock:   domain.SystemClock{},
		log:     zap.NewNop(),
		windows: make(map[domain.ProductID]*window),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

// Register cria a fila e a janela do produto. Sem RequireSale a janela já abre aqui.
func (c *AdmissionController) Register(id domain.ProductID) {
	c.tokens.Register(id)

	c.mu.Lock()
	w, ok := c.windows[id]
	if !ok {
		w = &window{}
		c.windows[id] = w
	}
	c.mu.Unlock()

	if c.cfg.RequireSale {
		return
	}
	var evs []domain.StatsEvent
	w.mu.Lock()
	c.openLocked(id, w, c.clock.Now(), &evs)
	w.mu.Unlock()
	c.record(context.Background(), evs)
}

func (c *AdmissionController) window(id domain.ProductID) (*window, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	w, ok := c.windows[id]
	return w, ok
}

func (c *AdmissionController) products() []domain.ProductID {
	c.mu.RLock()
	ids := make([]domain.ProductID, 0, len(c.windows))
	for id := range c.windows {
		ids = append(ids, id)
	}
	c.mu.RUnlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// saleOpen é lido antes de pegar o lock do produto.
func (c *AdmissionController) saleOpen(ctx context.Context) bool {
	if !c.cfg.RequireSale {
		return true
	}
	return c.sale != nil && c.sale.IsActive(ctx)
}

func (c *AdmissionController) Enter(ctx context.Context, id domain.ProductID, sessionID string) (domain.Ticket, error) {
	w, ok := c.window(id)
	if !ok {
		return domain.Ticket{}, fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
	}
	active := c.saleOpen(ctx)
	now := c.clock.Now()

	var evs []domain.StatsEvent
	w.mu.Lock()
	ticket, err := c.enterLocked(id, w, sessionID, active, now, &evs)
	w.mu.Unlock()

	if errors.Is(err, domain.ErrQueueFull) {
		evs = append(evs, domain.StatsEvent{Kind: domain.EventRejected, ProductID: id, SessionID: sessionID, Reason: domain.Code(err), At: now})
	}
	c.record(ctx, evs)
	if err != nil {
		return domain.Ticket{}, err
	}
	c.log.Debug("queue entered",
		zap.Int64("product_id", int64(id)),
		zap.Uint64("sequence", ticket.Sequence),
		zap.Uint64("position", ticket.Position),
		zap.String("session_id", sessionID),
	)
	return ticket, nil
}

func (c *AdmissionController) enterLocked(id domain.ProductID, w *window, sessionID string, active bool, now time.Time, evs *[]domain.StatsEvent) (domain.Ticket, error) {
	c.syncLocked(id, w, active, now, evs)

	if c.cfg.MaxQueueSize > 0 && c.tokens.Waiting(id) >= c.cfg.MaxQueueSize {
		return domain.Ticket{}, fmt.Errorf("product %d: %w", id, domain.ErrQueueFull)
	}
	e, err := c.tokens.Issue(id, sessionID, now)
	if err != nil {
		return domain.Ticket{}, err
	}
	*evs = append(*evs, domain.StatsEvent{Kind: domain.EventEntered, ProductID: id, SessionID: sessionID, At: now})

	if e.Sequence <= w.through {
		c.admitLocked(id, w, e, now, evs)
	} else {
		c.releaseLocked(id, w, active, now, evs)
	}

	pos := w.position(e.Sequence)
	return domain.Ticket{
		Token:         e.Token,
		Sequence:      e.Sequence,
		Position:      pos,
		EstimatedWait: c.estimate(pos),
	}, nil
}

// Status nunca falha: token desconhecido, expirado ou já usado vira Expired.
func (c *AdmissionController) Status(ctx context.Context, id domain.ProductID, token domain.Token) domain.QueueStatus {
	w, ok := c.window(id)
	if !ok {
		return domain.QueueStatus{Expired: true}
	}
	active := c.saleOpen(ctx)
	now := c.clock.Now()

	var evs []domain.StatsEvent
	w.mu.Lock()
	st := c.statusLocked(id, w, token, active, now, &evs)
	w.mu.Unlock()

	c.record(ctx, evs)
	return st
}

func (c *AdmissionController) statusLocked(id domain.ProductID, w *window, token domain.Token, active bool, now time.Time, evs *[]domain.StatsEvent) domain.QueueStatus {
	c.syncLocked(id, w, active, now, evs)

	e, err := c.tokens.Lookup(id, token, now)
	if err != nil && !errors.Is(err, domain.ErrExpired) {
		return domain.QueueStatus{Expired: true}
	}
	switch e.State(now) {
	case domain.StateExpired:
		c.expireLocked(id, w, e, now, evs)
		return domain.QueueStatus{Expired: true}
	case domain.StateConsumed:
		return domain.QueueStatus{Expired: true}
	}

	if e.Sequence <= w.through {
		c.admitLocked(id, w, e, now, evs)
		return domain.QueueStatus{CanPurchase: true}
	}
	pos := w.position(e.Sequence)
	return domain.QueueStatus{
		Position:      pos,
		EstimatedWait: c.estimate(pos),
		SoldOut:       c.inv.Remaining(id) == 0 || w.saturated(),
	}
}

// Commit valida o token sob o lock do produto, roda reserve, marca o token como
// consumido, aplica o efeito e avança a janela em um lugar.
func (c *AdmissionController) Commit(ctx context.Context, id domain.ProductID, token domain.Token, reserve ReserveFunc) (domain.QueueEntry, error) {
	w, ok := c.window(id)
	if !ok {
		return domain.QueueEntry{}, fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
	}
	active := c.saleOpen(ctx)
	now := c.clock.Now()

	var evs []domain.StatsEvent
	w.mu.Lock()
	e, err := c.commitLocked(id, w, token, reserve, active, now, &evs)
	w.mu.Unlock()

	c.record(ctx, evs)
	return e, err
}

func (c *AdmissionController) commitLocked(id domain.ProductID, w *window, token domain.Token, reserve ReserveFunc, active bool, now time.Time, evs *[]domain.StatsEvent) (domain.QueueEntry, error) {
	c.syncLocked(id, w, active, now, evs)

	e, err := c.tokens.Lookup(id, token, now)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return e, domain.ErrQueueExpired
	case err != nil && !errors.Is(err, domain.ErrExpired):
		return e, err
	}
	switch e.State(now) {
	case domain.StateExpired:
		c.expireLocked(id, w, e, now, evs)
		return e, domain.ErrQueueExpired
	case domain.StateConsumed:
		return e, domain.ErrAlreadyConsumed
	}

	if e.Sequence > w.through {
		if c.inv.Remaining(id) == 0 || w.saturated() {
			return e, domain.ErrOutOfStock
		}
		return e, domain.ErrNotAdmittedYet
	}
	c.admitLocked(id, w, e, now, evs)
	e.Admitted = true

	apply, err := reserve(e)
	if err != nil {
		return e, err
	}
	if err := c.tokens.MarkConsumed(id, e.Token); err != nil {
		return e, fmt.Errorf("consume queue token: %w", err)
	}
	if apply != nil {
		apply()
	}
	e.Consumed = true
	w.outstanding--
	c.advanceLocked(id, w, 1, now, evs)
	return e, nil
}

// Sweep remove entradas expiradas de todos os produtos e devolve quantas saíram.
func (c *AdmissionController) Sweep(ctx context.Context) int {
	active := c.saleOpen(ctx)
	now := c.clock.Now()

	total := 0
	for _, id := range c.products() {
		w, ok := c.window(id)
		if !ok {
			continue
		}
		var evs []domain.StatsEvent
		w.mu.Lock()
		expired := c.tokens.Sweep(id, now)
		for _, e := range expired {
			c.reclaimLocked(id, w, e, now, &evs)
		}
		c.syncLocked(id, w, active, now, &evs)
		w.mu.Unlock()

		c.record(ctx, evs)
		total += len(expired)
	}
	if total > 0 {
		c.log.Debug("expired queue entries swept", zap.Int("count", total))
	}
	return total
}

// Run chama Sweep a cada intervalo até o ctx encerrar.
func (c *AdmissionController) Run(ctx context.Context, every time.Duration) error {
	if every <= 0 {
		<-ctx.Done()
		return nil
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			c.Sweep(ctx)
		}
	}
}

// SaleStarted abre as janelas que ainda estão fechadas.
func (c *AdmissionController) SaleStarted(ctx context.Context, _ time.Time) {
	now := c.clock.Now()
	for _, id := range c.products() {
		w, ok := c.window(id)
		if !ok {
			continue
		}
		var evs []domain.StatsEvent
		w.mu.Lock()
		c.openLocked(id, w, now, &evs)
		c.releaseLocked(id, w, true, now, &evs)
		w.mu.Unlock()
		c.record(ctx, evs)
	}
}

// SaleEnded não fecha janelas: quem já foi admitido ainda pode comprar até o
// token expirar. A liberação em segundo plano para sozinha.
func (c *AdmissionController) SaleEnded(context.Context, time.Time) {}

func (c *AdmissionController) Snapshot(id domain.ProductID) (domain.WindowSnapshot, bool) {
	w, ok := c.window(id)
	if !ok {
		return domain.WindowSnapshot{}, false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return domain.WindowSnapshot{
		ProductID:       id,
		Opened:          w.opened,
		AdmittedThrough: w.through,
		Capacity:        w.capacity,
		LastSequence:    c.tokens.LastSequence(id),
		Outstanding:     w.outstanding,
		Waiting:         c.tokens.Waiting(id),
		Remaining:       c.inv.Remaining(id),
	}, true
}

func (c *AdmissionController) Snapshots() []domain.WindowSnapshot {
	ids := c.products()
	out := make([]domain.WindowSnapshot, 0, len(ids))
	for _, id := range ids {
		if snap, ok := c.Snapshot(id); ok {
			out = append(out, snap)
		}
	}
	return out
}

// saturated diz que through chegou em capacity: quem está além nunca será admitido,
// mesmo que sobre estoque de admitidos que expiraram sem comprar.
func (w *window) saturated() bool {
	return w.opened && w.through >= w.capacity
}

func (w *window) position(seq uint64) uint64 {
	if seq <= w.through {
		return 0
	}
	return seq - w.through
}

func (c *AdmissionController) estimate(pos uint64) time.Duration {
	return time.Duration(pos) * c.cfg.AvgProcessingTime
}

// syncLocked abre a janela na primeira vez que a sale é vista ativa e tenta a
// liberação em segundo plano.
func (c *AdmissionController) syncLocked(id domain.ProductID, w *window, active bool, now time.Time, evs *[]domain.StatsEvent) {
	if !active {
		return
	}
	c.openLocked(id, w, now, evs)
	c.releaseLocked(id, w, active, now, evs)
}

func (c *AdmissionController) openLocked(id domain.ProductID, w *window, now time.Time, evs *[]domain.StatsEvent) {
	if w.opened {
		return
	}
	w.opened = true
	w.capacity = uint64(c.inv.Remaining(id))

	seed := uint64(0)
	if c.cfg.SeedAdmissions > 0 {
		seed = min(w.capacity, uint64(c.cfg.SeedAdmissions))
	}
	c.advanceLocked(id, w, seed, now, evs)

	c.log.Info("admission window opened",
		zap.Int64("product_id", int64(id)),
		zap.Uint64("capacity", w.capacity),
		zap.Uint64("admitted_through", w.through),
	)
}

// releaseLocked libera lugares enquanto houver gente esperando além de through,
// o limiter do produto permitir e os admitidos pendentes couberem no estoque.
func (c *AdmissionController) releaseLocked(id domain.ProductID, w *window, active bool, now time.Time, evs *[]domain.StatsEvent) {
	if !w.opened || !active || c.release == nil {
		return
	}
	lim := c.release.Get(domain.Key("release:" + strconv.FormatInt(int64(id), 10)))
	if lim == nil {
		return
	}
	remaining := uint64(c.inv.Remaining(id))
	last := c.tokens.LastSequence(id)

	for w.through < w.capacity && w.through < last {
		if uint64(w.outstanding) >= remaining {
			return
		}
		if !lim.AllowN(now, 1) {
			return
		}
		c.advanceLocked(id, w, 1, now, evs)
	}
}

// advanceLocked move through em até n lugares, sem passar de capacity, e
// admite a entrada viva de cada sequência coberta.
func (c *AdmissionController) advanceLocked(id domain.ProductID, w *window, n uint64, now time.Time, evs *[]domain.StatsEvent) {
	for i := uint64(0); i < n && w.through < w.capacity; i++ {
		w.through++
		if e, ok := c.tokens.At(id, w.through, now); ok {
			c.admitLocked(id, w, e, now, evs)
		}
	}
}

func (c *AdmissionController) admitLocked(id domain.ProductID, w *window, e domain.QueueEntry, now time.Time, evs *[]domain.StatsEvent) {
	if e.Admitted || e.Consumed {
		return
	}
	if err := c.tokens.MarkAdmitted(id, e.Token); err != nil {
		return
	}
	w.outstanding++
	*evs = append(*evs, domain.StatsEvent{Kind: domain.EventAdmitted, ProductID: id, SessionID: e.SessionID, At: now})
}

// expireLocked é a limpeza preguiçosa de um token que expirou no lookup.
func (c *AdmissionController) expireLocked(id domain.ProductID, w *window, e domain.QueueEntry, now time.Time, evs *[]domain.StatsEvent) {
	removed, ok := c.tokens.Remove(id, e.Token)
	if !ok {
		return
	}
	c.reclaimLocked(id, w, removed, now, evs)
}

// reclaimLocked devolve o lugar de um admitido que expirou sem comprar, desde que
// through ainda não tenha chegado em capacity; com a janela saturada a unidade fica
// sem comprador. Quem expira ainda na fila não ocupa lugar de ninguém: quando
// through passar pela sua sequência, aquele lugar fica vazio.
func (c *AdmissionController) reclaimLocked(id domain.ProductID, w *window, e domain.QueueEntry, now time.Time, evs *[]domain.StatsEvent) {
	*evs = append(*evs, domain.StatsEvent{Kind: domain.EventExpired, ProductID: id, SessionID: e.SessionID, At: now})
	if !e.Admitted || e.Consumed {
		return
	}
	w.outstanding--
	c.advanceLocked(id, w, 1, now, evs)
}

func (c *AdmissionController) record(ctx context.Context, evs []domain.StatsEvent) {
	if c.stats == nil {
		return
	}
	for _, ev := range evs {
		if err := c.stats.Record(ctx, ev); err != nil {
			c.log.Warn("stats record failed", zap.String("kind", string(ev.Kind)), zap.Error(err))
			return
		}
	}
}
