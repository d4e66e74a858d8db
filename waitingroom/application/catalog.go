package application

import (
	"context"
	"strconv"
	"time"

	"flashsale-gateway/waitingroom/domain"

	"go.uber.org/zap"
)

// ViewCache guarda views precificadas por chave; Purge descarta tudo.
type ViewCache interface {
	Get(key string) ([]domain.ProductView, bool)
	Set(key string, views []domain.ProductView)
	Purge()
}

// CatalogService monta as views do catálogo com o preço da sale corrente e o
// estoque vivo. O cache só guarda preço; estoque é sempre relido.
type CatalogService struct {
	catalog domain.Catalog
	inv     *Inventory
	sale    SaleReader
	cache   ViewCache
	log     *zap.Logger
}

func NewCatalogService(catalog domain.Catalog, inv *Inventory, sale SaleReader, cache ViewCache, log *zap.Logger) *CatalogService {
	if log == nil {
		log = zap.NewNop()
	}
	return &CatalogService{catalog: catalog, inv: inv, sale: sale, cache: cache, log: log}
}

func (c *CatalogService) List(ctx context.Context) ([]domain.ProductView, error) {
	active := c.active(ctx)
	key := "all:" + strconv.FormatBool(active)

	views, ok := c.cached(key)
	if !ok {
		products, err := c.catalog.List(ctx)
		if err != nil {
			return nil, err
		}
		views = make([]domain.ProductView, 0, len(products))
		for _, p := range products {
			views = append(views, p.View(active, 0))
		}
		c.store(key, views)
	}
	for i := range views {
		views[i].Stock = c.inv.Remaining(views[i].ID)
	}
	return views, nil
}

func (c *CatalogService) Get(ctx context.Context, id domain.ProductID) (domain.ProductView, error) {
	active := c.active(ctx)
	key := strconv.FormatInt(int64(id), 10) + ":" + strconv.FormatBool(active)

	views, ok := c.cached(key)
	if !ok || len(views) != 1 {
		p, err := c.catalog.Get(ctx, id)
		if err != nil {
			return domain.ProductView{}, err
		}
		views = []domain.ProductView{p.View(active, 0)}
		c.store(key, views)
	}
	v := views[0]
	v.Stock = c.inv.Remaining(id)
	return v, nil
}

func (c *CatalogService) active(ctx context.Context) bool {
	return c.sale != nil && c.sale.IsActive(ctx)
}

func (c *CatalogService) cached(key string) ([]domain.ProductView, bool) {
	if c.cache == nil {
		return nil, false
	}
	return c.cache.Get(key)
}

func (c *CatalogService) store(key string, views []domain.ProductView) {
	if c.cache != nil {
		c.cache.Set(key, views)
	}
}

func (c *CatalogService) SaleStarted(_ context.Context, _ time.Time) { c.invalidate() }

func (c *CatalogService) SaleEnded(_ context.Context, _ time.Time) { c.invalidate() }

func (c *CatalogService) invalidate() {
	if c.cache == nil {
		return
	}
	c.cache.Purge()
	c.log.Debug("catalog view cache purged")
}
