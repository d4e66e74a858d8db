package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order só nasce de uma compra confirmada e não muda depois disso.
type Order struct {
	ID          int64
	ProductID   ProductID
	ProductName string
	SessionID   string
	Quantity    int
	UnitPrice   decimal.Decimal
	TotalPrice  decimal.Decimal
	CreatedAt   time.Time
}

type PurchaseRequest struct {
	ProductID ProductID
	Token     Token
	Quantity  int
	SessionID string
}
