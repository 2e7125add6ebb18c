package memory_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/elsoug/orders/internal/domain"
	"github.com/elsoug/orders/internal/storage/memory"
)

func TestOutboxRepository_EnqueuePull(t *testing.T) {
	repo := memory.NewOutboxRepository()

	for i := 0; i < 3; i++ {
		msg, err := repo.Enqueue(domain.OutboxMessage{
			AggregateType: "order",
			AggregateID:   fmt.Sprintf("order-%d", i),
			EventType:     "OrderCreated",
			Payload:       []byte(`{}`),
		})
		if err != nil {
			t.Fatalf("enqueue failed: %v", err)
		}
		if msg.ID == "" {
			t.Fatal("enqueue must assign an id")
		}
	}

	pending, err := repo.PullPending(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 3 {
		t.Fatalf("pending = %d, want 3", len(pending))
	}

	limited, err := repo.PullPending(2)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Fatalf("limited pending = %d, want 2", len(limited))
	}
}

func TestOutboxRepository_MarkSentAndFailed(t *testing.T) {
	repo := memory.NewOutboxRepository()

	first, _ := repo.Enqueue(domain.OutboxMessage{AggregateID: "order-1", EventType: "OrderCreated"})
	second, _ := repo.Enqueue(domain.OutboxMessage{AggregateID: "order-2", EventType: "OrderCreated"})

	if err := repo.MarkSent(first.ID); err != nil {
		t.Fatalf("mark sent failed: %v", err)
	}
	if err := repo.MarkFailed(second.ID); err != nil {
		t.Fatalf("mark failed failed: %v", err)
	}

	pending, err := repo.PullPending(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending after marks = %d, want 0", len(pending))
	}

	if err := repo.MarkSent("missing"); !errors.Is(err, domain.ErrOutboxPublish) {
		t.Fatalf("mark sent missing: err = %v", err)
	}
}

func TestOutboxRepository_Stats(t *testing.T) {
	repo := memory.NewOutboxRepository()

	stats, err := repo.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.PendingCount != 0 || !stats.OldestPendingAt.IsZero() {
		t.Fatalf("empty stats mismatch: %+v", stats)
	}

	first, _ := repo.Enqueue(domain.OutboxMessage{AggregateID: "order-1", EventType: "OrderCreated"})
	_, _ = repo.Enqueue(domain.OutboxMessage{AggregateID: "order-2", EventType: "OrderCreated"})

	stats, err = repo.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.PendingCount != 2 {
		t.Fatalf("pending count = %d, want 2", stats.PendingCount)
	}
	if stats.OldestPendingAt.IsZero() {
		t.Fatal("oldest pending timestamp must be set")
	}

	if err := repo.MarkSent(first.ID); err != nil {
		t.Fatal(err)
	}
	stats, _ = repo.Stats()
	if stats.PendingCount != 1 {
		t.Fatalf("pending count after send = %d, want 1", stats.PendingCount)
	}
}
