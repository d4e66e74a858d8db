package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestProduct_DiscountedPriceTruncates(t *testing.T) {
	p := Product{OriginalPrice: decimal.NewFromInt(10000), DiscountRate: 20}
	if got := p.DiscountedPrice(); !got.Equal(decimal.NewFromInt(8000)) {
		t.Fatalf("expected 8000, got %s", got)
	}

	// 19999 * 0.67 = 13399.33, arredonda para baixo
	odd := Product{OriginalPrice: decimal.NewFromInt(19999), DiscountRate: 33}
	if got := odd.DiscountedPrice(); !got.Equal(decimal.NewFromInt(13399)) {
		t.Fatalf("expected 13399, got %s", got)
	}
}

func TestProduct_UnitPriceOnlyDiscountsDuringSale(t *testing.T) {
	p := Product{OriginalPrice: decimal.NewFromInt(10000), DiscountRate: 20}
	if got := p.UnitPrice(false); !got.Equal(p.OriginalPrice) {
		t.Fatalf("expected original price without sale, got %s", got)
	}
	if got := p.UnitPrice(true); !got.Equal(decimal.NewFromInt(8000)) {
		t.Fatalf("expected discounted price during sale, got %s", got)
	}
}

func TestProduct_ViewHidesRateWithoutSale(t *testing.T) {
	p := Product{ID: 1, OriginalPrice: decimal.NewFromInt(10000), DiscountRate: 20}
	v := p.View(false, 7)
	if v.DiscountRate != 0 || v.SaleActive || v.Stock != 7 {
		t.Fatalf("unexpected view without sale: %+v", v)
	}
	v = p.View(true, 7)
	if v.DiscountRate != 20 || !v.SaleActive {
		t.Fatalf("unexpected view during sale: %+v", v)
	}
}

func TestQueueEntry_State(t *testing.T) {
	now := time.Unix(1000, 0)
	e := QueueEntry{ExpiresAt: now.Add(time.Minute)}
	if e.State(now) != StateQueued {
		t.Fatalf("expected queued, got %s", e.State(now))
	}
	e.Admitted = true
	if e.State(now) != StateAdmitted {
		t.Fatalf("expected admitted, got %s", e.State(now))
	}
	if e.State(now.Add(2*time.Minute)) != StateExpired {
		t.Fatalf("expected expired after TTL")
	}
	e.Consumed = true
	if e.State(now.Add(2*time.Minute)) != StateConsumed {
		t.Fatalf("consumed entries never report expired")
	}
}
