package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/storage/memory"
)

func TestIdempotencyRepository_CreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewIdempotencyRepository()
	ttl := time.Now().UTC().Add(2 * time.Hour).Round(time.Second)

	created, err := repo.CreateProcessing(ctx, "idem-key-1", "hash-1", ttl)
	if err != nil {
		t.Fatalf("CreateProcessing failed: %v", err)
	}
	if created.Status != domain.IdempotencyStatusProcessing {
		t.Fatalf("expected status %s, got %s", domain.IdempotencyStatusProcessing, created.Status)
	}

	got, err := repo.Get(ctx, "idem-key-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.RequestHash != "hash-1" || !got.TTLAt.Equal(ttl) {
		t.Fatalf("unexpected record: %+v", got)
	}

	if _, err := repo.CreateProcessing(ctx, " ", "hash", ttl); !errors.Is(err, domain.ErrIdempotencyKeyRequired) {
		t.Fatalf("expected key required, got %v", err)
	}
}

func TestIdempotencyRepository_ConflictAndHashMismatch(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewIdempotencyRepository()
	ttl := time.Now().UTC().Add(time.Hour)

	if _, err := repo.CreateProcessing(ctx, "idem-key-2", "hash-a", ttl); err != nil {
		t.Fatalf("CreateProcessing failed: %v", err)
	}
	if _, err := repo.CreateProcessing(ctx, "idem-key-2", "hash-a", ttl); !errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists) {
		t.Fatalf("expected ErrIdempotencyKeyAlreadyExists, got %v", err)
	}
	if _, err := repo.CreateProcessing(ctx, "idem-key-2", "hash-b", ttl); !errors.Is(err, domain.ErrIdempotencyHashMismatch) {
		t.Fatalf("expected ErrIdempotencyHashMismatch, got %v", err)
	}
}

func TestIdempotencyRepository_ExpiredKeyCanBeReused(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewIdempotencyRepository()

	if _, err := repo.CreateProcessing(ctx, "idem-old", "hash-a", time.Now().UTC().Add(-time.Second)); err != nil {
		t.Fatalf("CreateProcessing failed: %v", err)
	}
	if _, err := repo.CreateProcessing(ctx, "idem-old", "hash-b", time.Now().UTC().Add(time.Hour)); err != nil {
		t.Fatalf("expired key must be reusable, got %v", err)
	}
}

func TestIdempotencyRepository_MarkDoneAndDeleteExpired(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewIdempotencyRepository()

	if _, err := repo.CreateProcessing(ctx, "idem-expired", "hash-expired", time.Now().UTC().Add(-time.Minute)); err != nil {
		t.Fatalf("CreateProcessing expired failed: %v", err)
	}
	if _, err := repo.CreateProcessing(ctx, "idem-active", "hash-active", time.Now().UTC().Add(time.Hour)); err != nil {
		t.Fatalf("CreateProcessing active failed: %v", err)
	}

	if err := repo.MarkDone(ctx, "idem-active", []byte(`{"ok":true}`), 201); err != nil {
		t.Fatalf("MarkDone failed: %v", err)
	}
	active, err := repo.Get(ctx, "idem-active")
	if err != nil {
		t.Fatalf("Get active failed: %v", err)
	}
	if active.Status != domain.IdempotencyStatusDone || active.HTTPStatus != 201 {
		t.Fatalf("unexpected active record: %+v", active)
	}

	deleted, err := repo.DeleteExpired(ctx, time.Now().UTC(), 10)
	if err != nil {
		t.Fatalf("DeleteExpired failed: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted record, got %d", deleted)
	}
	if _, err := repo.Get(ctx, "idem-expired"); !errors.Is(err, domain.ErrIdempotencyKeyNotFound) {
		t.Fatalf("expected expired key to be removed, got %v", err)
	}
	if err := repo.MarkFailed(ctx, "idem-expired", nil, 500); !errors.Is(err, domain.ErrIdempotencyKeyNotFound) {
		t.Fatalf("expected not found for removed key, got %v", err)
	}
}

func TestIdempotencyRepository_ReleaseOnlyProcessing(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewIdempotencyRepository()
	ttl := time.Now().UTC().Add(time.Hour)

	if _, err := repo.CreateProcessing(ctx, "pending", "h", ttl); err != nil {
		t.Fatalf("CreateProcessing failed: %v", err)
	}
	if err := repo.Release(ctx, "pending"); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	if _, err := repo.Get(ctx, "pending"); !errors.Is(err, domain.ErrIdempotencyKeyNotFound) {
		t.Fatalf("expected released key to be gone, got %v", err)
	}

	if _, err := repo.CreateProcessing(ctx, "done", "h", ttl); err != nil {
		t.Fatalf("CreateProcessing failed: %v", err)
	}
	if err := repo.MarkDone(ctx, "done", []byte(`{}`), 201); err != nil {
		t.Fatalf("MarkDone failed: %v", err)
	}
	if err := repo.Release(ctx, "done"); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	got, err := repo.Get(ctx, "done")
	if err != nil || got.Status != domain.IdempotencyStatusDone {
		t.Fatalf("expected done record to stay, got %+v, %v", got, err)
	}

	if err := repo.Release(ctx, "missing"); !errors.Is(err, domain.ErrIdempotencyKeyNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
