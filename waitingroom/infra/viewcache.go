package infra

import (
	"time"

	"flashsale-gateway/waitingroom/domain"

	"github.com/jellydator/ttlcache/v3"
)

// ViewCache guarda as views já precificadas do catálogo.
// O estoque não entra no cache: quem lê sobrepõe o valor vivo.
type ViewCache struct {
	cache *ttlcache.Cache[string, []domain.ProductView]
}

func NewViewCache(ttl time.Duration) *ViewCache {
	c := ttlcache.New[string, []domain.ProductView](
		ttlcache.WithTTL[string, []domain.ProductView](ttl),
		ttlcache.WithDisableTouchOnHit[string, []domain.ProductView](),
	)
	return &ViewCache{cache: c}
}

func (v *ViewCache) Get(key string) ([]domain.ProductView, bool) {
	item := v.cache.Get(key)
	if item == nil || item.IsExpired() {
		return nil, false
	}
	views := item.Value()
	out := make([]domain.ProductView, len(views))
	copy(out, views)
	return out, true
}

func (v *ViewCache) Set(key string, views []domain.ProductView) {
	stored := make([]domain.ProductView, len(views))
	copy(stored, views)
	v.cache.Set(key, stored, ttlcache.DefaultTTL)
}

// Purge descarta tudo; chamado quando a sale muda de estado.
func (v *ViewCache) Purge() { v.cache.DeleteAll() }

func (v *ViewCache) Len() int { return v.cache.Len() }

// Start roda a expiração automática; bloqueia até Stop.
func (v *ViewCache) Start() { v.cache.Start() }

func (v *ViewCache) Stop() { v.cache.Stop() }
