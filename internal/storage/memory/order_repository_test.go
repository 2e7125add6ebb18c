package memory_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/elsoug/orders/internal/domain"
	"github.com/elsoug/orders/internal/storage/memory"
)

func newOrder(id string) domain.Order {
	now := time.Now().UTC()
	return domain.Order{
		ID:       id,
		Number:   "ELS-20260831-" + id,
		Type:     domain.OrderTypeProduct,
		BuyerID:  "buyer-1",
		SellerID: "seller-1",
		Items: []domain.OrderItem{
			{ID: id + "-item", ListingID: "listing-1", Qty: 1, PriceMinor: 500, TotalMinor: 500, CreatedAt: now},
		},
		SubtotalMinor: 500,
		TotalMinor:    500,
		Currency:      "SDG",
		Status:        domain.OrderStatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestOrderRepository_CreateGet(t *testing.T) {
	repo := memory.NewOrderRepository()
	order := newOrder("order-1")

	if err := repo.Create(order); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stored, err := repo.Get(order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.ID != order.ID || stored.Number != order.Number {
		t.Fatalf("stored order mismatch: %+v", stored)
	}

	if err := repo.Create(order); !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("duplicate create: err = %v, want version conflict", err)
	}

	if _, err := repo.Get("missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("get missing: err = %v, want not found", err)
	}
}

func TestOrderRepository_SaveVersionGuard(t *testing.T) {
	repo := memory.NewOrderRepository()
	order := newOrder("order-1")
	if err := repo.Create(order); err != nil {
		t.Fatal(err)
	}

	loaded, err := repo.Get(order.ID)
	if err != nil {
		t.Fatal(err)
	}
	loaded.Status = domain.OrderStatusConfirmed
	if err := repo.Save(loaded); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	// Повторное сохранение той же (устаревшей) копии должно конфликтовать.
	if err := repo.Save(loaded); !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("stale save: err = %v, want version conflict", err)
	}

	fresh, err := repo.Get(order.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.Version != 1 {
		t.Fatalf("version = %d, want 1", fresh.Version)
	}
	if fresh.Status != domain.OrderStatusConfirmed {
		t.Fatalf("status = %s, want confirmed", fresh.Status)
	}

	missing := newOrder("missing")
	if err := repo.Save(missing); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("save missing: err = %v, want not found", err)
	}
}

func TestOrderRepository_CloneIsolation(t *testing.T) {
	repo := memory.NewOrderRepository()
	order := newOrder("order-1")
	order.Discount = &domain.Discount{Type: domain.DiscountFixed, Amount: 100}
	if err := repo.Create(order); err != nil {
		t.Fatal(err)
	}

	loaded, err := repo.Get(order.ID)
	if err != nil {
		t.Fatal(err)
	}
	loaded.Items[0].Qty = 99
	loaded.Discount.Amount = 99999
	loaded.StatusHistory = append(loaded.StatusHistory, domain.StatusChange{Status: domain.OrderStatusCancelled})

	fresh, err := repo.Get(order.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fresh.Items[0].Qty != 1 || fresh.Discount.Amount != 100 || len(fresh.StatusHistory) != 0 {
		t.Fatal("stored order must not share memory with returned copies")
	}
}

func TestOrderRepository_ListFilters(t *testing.T) {
	repo := memory.NewOrderRepository()

	base := time.Now().UTC()
	for i := 0; i < 5; i++ {
		order := newOrder(fmt.Sprintf("order-%d", i))
		order.CreatedAt = base.Add(time.Duration(i) * time.Second)
		if i >= 3 {
			order.BuyerID = "buyer-2"
			order.Status = domain.OrderStatusConfirmed
		}
		if err := repo.Create(order); err != nil {
			t.Fatal(err)
		}
	}

	byBuyer, err := repo.ListByBuyer("buyer-1", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(byBuyer) != 3 {
		t.Fatalf("buyer-1 orders = %d, want 3", len(byBuyer))
	}
	// Новые первыми.
	if byBuyer[0].CreatedAt.Before(byBuyer[1].CreatedAt) {
		t.Fatal("orders must be sorted newest first")
	}

	bySeller, err := repo.ListBySeller("seller-1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(bySeller) != 2 {
		t.Fatalf("limited list = %d, want 2", len(bySeller))
	}

	filtered, err := repo.List(domain.OrderFilter{Status: domain.OrderStatusConfirmed})
	if err != nil {
		t.Fatal(err)
	}
	if len(filtered) != 2 {
		t.Fatalf("confirmed orders = %d, want 2", len(filtered))
	}

	both, err := repo.List(domain.OrderFilter{BuyerID: "buyer-2", Status: domain.OrderStatusConfirmed, Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(both) != 1 {
		t.Fatalf("combined filter = %d, want 1", len(both))
	}
}
