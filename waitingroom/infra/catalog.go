package infra

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"flashsale-gateway/waitingroom/domain"

	"github.com/shopspring/decimal"
)

// MemoryCatalog é o cadastro de produtos, fixo após o boot.
// O estoque guardado aqui é o inicial; o estoque vivo fica no Inventory.
type MemoryCatalog struct {
	mu       sync.RWMutex
	products map[domain.ProductID]domain.Product
	order    []domain.ProductID
}

func NewMemoryCatalog(products []domain.Product) (*MemoryCatalog, error) {
	c := &MemoryCatalog{products: make(map[domain.ProductID]domain.Product, len(products))}
	for _, p := range products {
		if p.ID <= 0 {
			return nil, fmt.Errorf("product %q: id must be positive", p.Name)
		}
		if p.Stock < 0 {
			return nil, fmt.Errorf("product %d: negative stock", p.ID)
		}
		if _, dup := c.products[p.ID]; dup {
			return nil, fmt.Errorf("product %d: duplicate id", p.ID)
		}
		c.products[p.ID] = p
		c.order = append(c.order, p.ID)
	}
	sort.Slice(c.order, func(i, j int) bool { return c.order[i] < c.order[j] })
	return c, nil
}

func (c *MemoryCatalog) List(_ context.Context) ([]domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Product, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.products[id])
	}
	return out, nil
}

func (c *MemoryCatalog) Get(_ context.Context, id domain.ProductID) (domain.Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[id]
	if !ok {
		return domain.Product{}, fmt.Errorf("product %d: %w", id, domain.ErrNotFound)
	}
	return p, nil
}

func won(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// SeedProducts devolve o catálogo de demonstração.
func SeedProducts() []domain.Product {
	const img = "https://via.placeholder.com/300x300/"
	return []domain.Product{
		{ID: 1, Name: "Colorgram Glitter Tint", Description: "Moist glide with a shimmering glitter finish",
			OriginalPrice: won(18000), DiscountRate: 30, Stock: 100, ImageURL: img + "FFB6C1/000000?text=Tint", Category: "lip"},
		{ID: 2, Name: "Round Lab 1025 Dokdo Toner", Description: "Mild, low-pH toner that soothes the skin",
			OriginalPrice: won(23000), DiscountRate: 35, Stock: 150, ImageURL: img + "87CEEB/000000?text=Toner", Category: "skincare"},
		{ID: 3, Name: "Innisfree No-Sebum Powder", Description: "Mineral powder for oil control",
			OriginalPrice: won(12000), DiscountRate: 25, Stock: 200, ImageURL: img + "F0E68C/000000?text=Powder", Category: "base"},
		{ID: 4, Name: "Torriden Dive-In Serum", Description: "Hydrating serum with five hyaluronic acids",
			OriginalPrice: won(28000), DiscountRate: 40, Stock: 80, ImageURL: img + "98FB98/000000?text=Serum", Category: "skincare"},
		{ID: 5, Name: "Clio Kill Cover Foundation", Description: "Long-lasting, full-coverage foundation",
			OriginalPrice: won(32000), DiscountRate: 30, Stock: 120, ImageURL: img + "DDA0DD/000000?text=Foundation", Category: "base"},
		{ID: 6, Name: "Etude Play Color Eye Palette", Description: "Ten shades from daily to statement looks",
			OriginalPrice: won(25000), DiscountRate: 35, Stock: 90, ImageURL: img + "FFD700/000000?text=Palette", Category: "eye"},
		{ID: 7, Name: "Isoi Bulgarian Rose Mist", Description: "Hydrating mist with natural rose extract",
			OriginalPrice: won(19000), DiscountRate: 20, Stock: 180, ImageURL: img + "FFC0CB/000000?text=Mist", Category: "skincare"},
		{ID: 8, Name: "Make P:rem Safe Me Sun Cream", Description: "Low-irritation SPF50+ sun cream for sensitive skin",
			OriginalPrice: won(21000), DiscountRate: 30, Stock: 160, ImageURL: img + "FFFACD/000000?text=Sunscreen", Category: "suncare"},
	}
}
