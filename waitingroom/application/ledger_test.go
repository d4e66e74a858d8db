package application

import (
	"context"
	"testing"

	"flashsale-gateway/waitingroom/domain"

	"github.com/stretchr/testify/require"
)

func TestPurchase_Validation(t *testing.T) {
	h := newHarness(t, 5, testConfig())
	h.start(t)
	tk := h.enter(t)

	cases := []struct {
		name string
		req  domain.PurchaseRequest
		want error
	}{
		{"zero quantity", domain.PurchaseRequest{ProductID: productID, Token: tk.Token, Quantity: 0}, domain.ErrInvalidRequest},
		{"above max", domain.PurchaseRequest{ProductID: productID, Token: tk.Token, Quantity: 6}, domain.ErrInvalidRequest},
		{"missing token", domain.PurchaseRequest{ProductID: productID, Quantity: 1}, domain.ErrInvalidRequest},
		{"unknown product", domain.PurchaseRequest{ProductID: 99, Token: tk.Token, Quantity: 1}, domain.ErrNotFound},
		{"unknown token", domain.PurchaseRequest{ProductID: productID, Token: "nope", Quantity: 1}, domain.ErrQueueExpired},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.ledger.Purchase(context.Background(), tc.req)
			require.ErrorIs(t, err, tc.want)
		})
	}

	// Nenhuma rejeição pode ter consumido o token.
	_, err := h.buy(tk.Token, 1)
	require.NoError(t, err)
	require.Equal(t, int64(5), h.stats.Total().Rejected)
}

func TestPurchase_PriceComputedAtCommit(t *testing.T) {
	h := newHarness(t, 5, testConfig())
	h.start(t)
	tk := h.enter(t)

	order, err := h.buy(tk.Token, 2)
	require.NoError(t, err)
	require.Equal(t, "Dive-In Serum", order.ProductName)
	require.Equal(t, 2, order.Quantity)
	require.Equal(t, "8000", order.UnitPrice.String())
	require.Equal(t, "16000", order.TotalPrice.String())
	require.Equal(t, t0, order.CreatedAt)
	require.Equal(t, "sess", order.SessionID)

	total := h.stats.Total()
	require.Equal(t, int64(1), total.Purchased)
	require.Equal(t, int64(2), total.Units)
}

func TestPurchase_AdmittedAfterSaleEndPaysOriginalPrice(t *testing.T) {
	h := newHarness(t, 5, testConfig())
	h.start(t)
	tk := h.enter(t)
	_, err := h.sale.End(context.Background())
	require.NoError(t, err)

	order, err := h.buy(tk.Token, 1)
	require.NoError(t, err)
	require.Equal(t, "10000", order.TotalPrice.String())
}

func TestInventory(t *testing.T) {
	inv := NewInventory([]domain.Product{{ID: 1, Stock: 3}, {ID: 2, Stock: -4}})
	require.Equal(t, 3, inv.Remaining(1))
	require.Equal(t, 0, inv.Remaining(2))
	require.Equal(t, 0, inv.Remaining(7))

	require.ErrorIs(t, inv.check(1, 4), domain.ErrOutOfStock)
	require.ErrorIs(t, inv.check(7, 1), domain.ErrNotFound)
	require.NoError(t, inv.check(1, 3))

	inv.take(1, 3)
	require.Equal(t, 0, inv.Remaining(1))
	require.Equal(t, 0, inv.Remaining(2))
}

func TestNewPurchaseLedger_DefaultsMaxQuantity(t *testing.T) {
	l := NewPurchaseLedger(LedgerConfig{}, nil, NewInventory(nil), nil, nil, &seqIDs{})
	require.Equal(t, 5, l.cfg.MaxQuantity)
}
