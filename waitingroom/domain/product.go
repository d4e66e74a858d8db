package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

type ProductID int64

// Product é o registro do catálogo.
//
// Stock é o estoque de partida. O estoque vivo pertence ao ledger de compras.
type Product struct {
	ID            ProductID
	Name          string
	Description   string
	OriginalPrice decimal.Decimal
	DiscountRate  int // percentual, vale só com a sale ativa
	Stock         int
	ImageURL      string
	Category      string
}

var hundred = decimal.NewFromInt(100)

// DiscountedPrice aplica DiscountRate e trunca para unidades inteiras.
func (p Product) DiscountedPrice() decimal.Decimal {
	rate := p.DiscountRate
	if rate <= 0 {
		return p.OriginalPrice
	}
	if rate > 100 {
		rate = 100
	}
	return p.OriginalPrice.
		Mul(decimal.NewFromInt(int64(100 - rate))).
		Div(hundred).
		Truncate(0)
}

// UnitPrice é o preço efetivo de uma unidade para o estado atual da sale.
func (p Product) UnitPrice(saleActive bool) decimal.Decimal {
	if saleActive {
		return p.DiscountedPrice()
	}
	return p.OriginalPrice
}

// View monta a visão precificada do produto. O estoque é informado por quem chama.
func (p Product) View(saleActive bool, stock int) ProductView {
	v := ProductView{
		ID:              p.ID,
		Name:            p.Name,
		Description:     p.Description,
		OriginalPrice:   p.OriginalPrice,
		DiscountedPrice: p.UnitPrice(saleActive),
		Stock:           stock,
		ImageURL:        p.ImageURL,
		Category:        p.Category,
		SaleActive:      saleActive,
	}
	if saleActive {
		v.DiscountRate = p.DiscountRate
	}
	return v
}

// ProductView é o que a vitrine enxerga: preço já resolvido pela sale.
type ProductView struct {
	ID              ProductID
	Name            string
	Description     string
	OriginalPrice   decimal.Decimal
	DiscountedPrice decimal.Decimal
	DiscountRate    int
	Stock           int
	ImageURL        string
	Category        string
	SaleActive      bool
}

// Catalog é a fonte somente-leitura de produtos (CRUD está fora do escopo).
//
// Get retorna ErrNotFound para ids desconhecidos.
type Catalog interface {
	List(ctx context.Context) ([]Product, error)
	Get(ctx context.Context, id ProductID) (Product, error)
}
