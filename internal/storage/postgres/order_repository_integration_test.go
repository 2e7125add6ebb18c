package postgres

import (
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/elsoug/orders/internal/domain"
)

func TestOrderRepository_PostgresCreateGetListAndSave(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	order1 := sampleMarketplaceOrder("order-1", "buyer-1", "seller-1", now.Add(-2*time.Minute))
	order2 := sampleMarketplaceOrder("order-2", "buyer-1", "seller-2", now.Add(-time.Minute))

	if err := repo.Create(order1); err != nil {
		t.Fatalf("create order1: %v", err)
	}
	if err := repo.Create(order2); err != nil {
		t.Fatalf("create order2: %v", err)
	}

	got, err := repo.Get(order1.ID)
	if err != nil {
		t.Fatalf("get order1: %v", err)
	}
	if got.ID != order1.ID || got.BuyerID != order1.BuyerID || got.SellerID != order1.SellerID || got.Status != order1.Status {
		t.Fatalf("unexpected order payload: %+v", got)
	}
	if len(got.Items) != 1 || got.Items[0].Snapshot.Title != "Fresh mangoes" {
		t.Fatalf("unexpected items after load: %+v", got.Items)
	}
	if len(got.StatusHistory) != 1 || got.StatusHistory[0].Status != domain.OrderStatusPending {
		t.Fatalf("unexpected status history after load: %+v", got.StatusHistory)
	}

	listed, err := repo.ListByBuyer("buyer-1", 1)
	if err != nil {
		t.Fatalf("list by buyer with limit: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != order2.ID {
		t.Fatalf("newest order must come first: %+v", listed)
	}

	bySeller, err := repo.ListBySeller("seller-2", 0)
	if err != nil {
		t.Fatalf("list by seller: %v", err)
	}
	if len(bySeller) != 1 || bySeller[0].ID != order2.ID {
		t.Fatalf("unexpected seller list: %+v", bySeller)
	}

	filtered, err := repo.List(domain.OrderFilter{BuyerID: "buyer-1", Status: domain.OrderStatusPending})
	if err != nil {
		t.Fatalf("list by filter: %v", err)
	}
	if len(filtered) != 2 {
		t.Fatalf("expected 2 pending orders, got %d", len(filtered))
	}

	// Смена статуса и дописывание журнала происходят в одной транзакции.
	got.Status = domain.OrderStatusConfirmed
	got.UpdatedAt = now.Add(time.Minute)
	got.AppendStatus(domain.StatusChange{
		Status:    domain.OrderStatusConfirmed,
		Note:      "seller accepted",
		ActorID:   order1.SellerID,
		ActorRole: domain.RoleSeller,
		Occurred:  now.Add(time.Minute),
	})
	if err := repo.Save(got); err != nil {
		t.Fatalf("save order: %v", err)
	}

	updated, err := repo.Get(order1.ID)
	if err != nil {
		t.Fatalf("get updated order: %v", err)
	}
	if updated.Status != domain.OrderStatusConfirmed {
		t.Fatalf("unexpected status after save: %s", updated.Status)
	}
	if updated.Version != got.Version+1 {
		t.Fatalf("unexpected version after save: got=%d want=%d", updated.Version, got.Version+1)
	}
	if len(updated.StatusHistory) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(updated.StatusHistory))
	}
	if updated.StatusHistory[0].Status != domain.OrderStatusPending || updated.StatusHistory[1].Note != "seller accepted" {
		t.Fatalf("history tail mismatch: %+v", updated.StatusHistory)
	}

	// Повторный Save без новых записей журнал не трогает.
	updated.UpdatedAt = now.Add(2 * time.Minute)
	if err := repo.Save(updated); err != nil {
		t.Fatalf("second save: %v", err)
	}
	again, err := repo.Get(order1.ID)
	if err != nil {
		t.Fatalf("get after second save: %v", err)
	}
	if len(again.StatusHistory) != 2 {
		t.Fatalf("history must stay append-only: %+v", again.StatusHistory)
	}
}

func TestOrderRepository_PostgresVersionGuard(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	repo := NewOrderRepository(store)

	now := time.Now().UTC().Round(time.Microsecond)
	base := sampleMarketplaceOrder("order-guard", "buyer-2", "seller-1", now)

	if _, err := repo.Get("missing-order"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
	if err := repo.Save(base); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound on save missing, got %v", err)
	}

	if err := repo.Create(base); err != nil {
		t.Fatalf("create base order: %v", err)
	}
	if err := repo.Create(base); !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("expected ErrOrderVersionConflict on duplicate create, got %v", err)
	}

	stale := base
	stale.Status = domain.OrderStatusConfirmed
	stale.UpdatedAt = now.Add(time.Minute)
	stale.Version = 42
	if err := repo.Save(stale); !errors.Is(err, domain.ErrOrderVersionConflict) {
		t.Fatalf("expected ErrOrderVersionConflict on stale save, got %v", err)
	}

	// Заказ после проигранной гонки не изменился.
	current, err := repo.Get(base.ID)
	if err != nil {
		t.Fatalf("get after stale save: %v", err)
	}
	if current.Status != domain.OrderStatusPending || current.Version != base.Version {
		t.Fatalf("stale save must not change the order: %+v", current)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	if !isUniqueViolation(&pgconn.PgError{Code: "23505"}) {
		t.Fatal("expected unique violation for code 23505")
	}
	if isUniqueViolation(&pgconn.PgError{Code: "22001"}) {
		t.Fatal("unexpected unique violation for non-unique code")
	}
	if isUniqueViolation(errors.New("plain error")) {
		t.Fatal("plain error must not be unique violation")
	}
}

func sampleMarketplaceOrder(id, buyerID, sellerID string, createdAt time.Time) domain.Order {
	items := []domain.OrderItem{
		{
			ID:        id + "-item-1",
			ListingID: "listing-1",
			Snapshot: domain.ListingSnapshot{
				Title: "Fresh mangoes",
				Unit:  "kg",
			},
			Qty:        2,
			PriceMinor: 1500,
			TotalMinor: 3000,
			CreatedAt:  createdAt,
		},
	}

	order := domain.Order{
		ID:            id,
		Number:        domain.NewOrderNumber(createdAt),
		Type:          domain.OrderTypeProduct,
		BuyerID:       buyerID,
		SellerID:      sellerID,
		Items:         items,
		SubtotalMinor: 3000,
		TotalMinor:    3000,
		Currency:      "SDG",
		Delivery:      domain.DeliveryInfo{Type: domain.FulfilmentPickup},
		Payment: domain.PaymentInfo{
			Method: domain.PaymentMethodCash,
			Status: domain.PaymentStatusPending,
		},
		Status:    domain.OrderStatusPending,
		Version:   0,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	order.AppendStatus(domain.StatusChange{
		Status:    domain.OrderStatusPending,
		Note:      "order created",
		ActorID:   buyerID,
		ActorRole: domain.RoleBuyer,
		Occurred:  createdAt,
	})
	return order
}
