package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/samber/lo"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

func TestTimelineRepository_PostgresAppendAndList(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	timelineRepo := NewTimelineRepository(store)
	ctx := context.Background()

	createdAt := time.Now().UTC().Add(-time.Minute).Round(time.Microsecond)
	orderID := "timeline-order"

	// Нулевой occurred заполняется текущим временем.
	if err := timelineRepo.Append(ctx, domain.TimelineEvent{
		OrderID: orderID,
		Type:    domain.TimelineOrderCreated,
		Reason:  "created",
	}); err != nil {
		t.Fatalf("append timeline event with zero occurred: %v", err)
	}

	if err := timelineRepo.Append(ctx, domain.NewStatusChangedEvent(
		orderID, domain.OrderStatusInQueue, domain.OrderStatusReady, createdAt.Add(10*time.Second),
	)); err != nil {
		t.Fatalf("append timeline event with explicit occurred: %v", err)
	}

	events, err := timelineRepo.List(ctx, orderID)
	if err != nil {
		t.Fatalf("list timeline events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 timeline events, got %d", len(events))
	}
	if events[0].Occurred.After(events[1].Occurred) {
		t.Fatalf("events should be sorted by occurred asc: %+v", events)
	}
	types := lo.Map(events, func(e domain.TimelineEvent, _ int) string { return e.Type })
	if !lo.Contains(types, domain.TimelineOrderCreated) || !lo.Contains(types, domain.TimelineOrderStatusChanged) {
		t.Fatalf("unexpected event types: %+v", types)
	}
}

func TestTimelineRepository_PostgresOutlivesOrder(t *testing.T) {
	store := openPostgresStoreForIntegrationTest(t)
	timelineRepo := NewTimelineRepository(store)
	ctx := context.Background()

	// История не ссылается на orders и остаётся после удаления заказа.
	if err := timelineRepo.Append(ctx, domain.TimelineEvent{
		OrderID: "deleted-order",
		Type:    domain.TimelineOrderCreated,
		Reason:  "test",
	}); err != nil {
		t.Fatalf("append for order without row: %v", err)
	}

	events, err := timelineRepo.List(ctx, "unknown-order")
	if err != nil {
		t.Fatalf("list for unknown order should not fail: %v", err)
	}
	if len(events) != 0 {
		t.Fatalf("expected no events for unknown order, got %d", len(events))
	}
}
