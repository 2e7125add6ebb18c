package memory_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/elsoug/orders/internal/domain"
	"github.com/elsoug/orders/internal/storage/memory"
)

func TestIdempotencyRepository_Lifecycle(t *testing.T) {
	repo := memory.NewIdempotencyRepository()
	ttl := time.Now().UTC().Add(time.Hour)

	record, err := repo.CreateProcessing("key-1", "hash-1", ttl)
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if record.Status != domain.IdempotencyStatusProcessing {
		t.Fatalf("status = %s, want processing", record.Status)
	}

	// Повтор с тем же хешем сигнализирует о существующем ключе.
	if _, err := repo.CreateProcessing("key-1", "hash-1", ttl); !errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists) {
		t.Fatalf("repeat create: err = %v", err)
	}
	// Тот же ключ с другим телом запроса — конфликт.
	if _, err := repo.CreateProcessing("key-1", "other-hash", ttl); !errors.Is(err, domain.ErrIdempotencyHashMismatch) {
		t.Fatalf("hash mismatch: err = %v", err)
	}

	if err := repo.MarkDone("key-1", []byte(`{"id":"order-1"}`), 201); err != nil {
		t.Fatalf("mark done failed: %v", err)
	}

	stored, err := repo.Get("key-1")
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != domain.IdempotencyStatusDone || stored.HTTPStatus != 201 {
		t.Fatalf("stored record mismatch: %+v", stored)
	}
	if string(stored.ResponseBody) != `{"id":"order-1"}` {
		t.Fatalf("response body = %s", stored.ResponseBody)
	}

	if _, err := repo.Get("missing"); !errors.Is(err, domain.ErrIdempotencyKeyNotFound) {
		t.Fatalf("get missing: err = %v", err)
	}
	if _, err := repo.CreateProcessing("", "hash", ttl); !errors.Is(err, domain.ErrIdempotencyKeyRequired) {
		t.Fatalf("empty key: err = %v", err)
	}
	if _, err := repo.CreateProcessing("key-2", "", ttl); !errors.Is(err, domain.ErrIdempotencyRequestHashRequired) {
		t.Fatalf("empty hash: err = %v", err)
	}
}

func TestIdempotencyRepository_DeleteExpired(t *testing.T) {
	repo := memory.NewIdempotencyRepository()
	now := time.Now().UTC()

	for i := 0; i < 3; i++ {
		if _, err := repo.CreateProcessing(fmt.Sprintf("old-%d", i), "hash", now.Add(-time.Hour)); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := repo.CreateProcessing("fresh", "hash", now.Add(time.Hour)); err != nil {
		t.Fatal(err)
	}

	removed, err := repo.DeleteExpired(now, 2)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Fatalf("removed = %d, want 2 (limit)", removed)
	}

	removed, err = repo.DeleteExpired(now, 0)
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Fatalf("second pass removed = %d, want 1", removed)
	}

	if _, err := repo.Get("fresh"); err != nil {
		t.Fatalf("fresh key must survive cleanup: %v", err)
	}
}
