package infra

import (
	"context"
	"errors"
	"testing"
	"time"

	"flashsale-gateway/waitingroom/domain"

	"github.com/shopspring/decimal"
)

func TestMemoryCatalog_ListSortedAndGet(t *testing.T) {
	c, err := NewMemoryCatalog([]domain.Product{
		{ID: 3, Name: "c"},
		{ID: 1, Name: "a"},
	})
	if err != nil {
		t.Fatalf("new catalog: %v", err)
	}
	list, _ := c.List(context.Background())
	if len(list) != 2 || list[0].ID != 1 || list[1].ID != 3 {
		t.Fatalf("unexpected order: %+v", list)
	}
	if _, err := c.Get(context.Background(), 2); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMemoryCatalog_RejectsBadProducts(t *testing.T) {
	cases := map[string][]domain.Product{
		"zero id":   {{ID: 0}},
		"negative":  {{ID: 1, Stock: -1}},
		"duplicate": {{ID: 1}, {ID: 1}},
	}
	for name, products := range cases {
		if _, err := NewMemoryCatalog(products); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestSeedProducts(t *testing.T) {
	seed := SeedProducts()
	if len(seed) != 8 {
		t.Fatalf("expected 8 products, got %d", len(seed))
	}
	if _, err := NewMemoryCatalog(seed); err != nil {
		t.Fatalf("seed must be a valid catalog: %v", err)
	}
	tint := seed[0]
	if !tint.DiscountedPrice().Equal(decimal.NewFromInt(12600)) {
		t.Fatalf("expected 12600, got %s", tint.DiscountedPrice())
	}
}

func TestViewCache_CopiesAndPurges(t *testing.T) {
	vc := NewViewCache(time.Minute)
	views := []domain.ProductView{{ID: 1, Stock: 5}}
	vc.Set("all:true", views)
	views[0].Stock = 0

	got, ok := vc.Get("all:true")
	if !ok || got[0].Stock != 5 {
		t.Fatalf("expected cached copy, got %+v ok=%v", got, ok)
	}
	got[0].Stock = 1
	again, _ := vc.Get("all:true")
	if again[0].Stock != 5 {
		t.Fatalf("cache must not alias returned slices")
	}

	vc.Purge()
	if _, ok := vc.Get("all:true"); ok {
		t.Fatalf("expected miss after purge")
	}
	if vc.Len() != 0 {
		t.Fatalf("expected empty cache")
	}
}

func TestViewCache_Expires(t *testing.T) {
	vc := NewViewCache(5 * time.Millisecond)
	vc.Set("k", []domain.ProductView{{ID: 1}})
	time.Sleep(15 * time.Millisecond)
	if _, ok := vc.Get("k"); ok {
		t.Fatalf("expected expired entry to miss")
	}
}

func TestSnowflakeIDs_Increasing(t *testing.T) {
	ids, err := NewSnowflakeIDs(1)
	if err != nil {
		t.Fatalf("new ids: %v", err)
	}
	prev := ids.NextID()
	for i := 0; i < 1000; i++ {
		next := ids.NextID()
		if next <= prev {
			t.Fatalf("expected increasing ids, got %d after %d", next, prev)
		}
		prev = next
	}
	if _, err := NewSnowflakeIDs(1 << 20); err == nil {
		t.Fatalf("expected error for out-of-range node")
	}
}
