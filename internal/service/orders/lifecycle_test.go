package orders

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/storage/memory"
)

func TestUpdateStatus_ForwardFlowKeepsTotal(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	created := f.createOrder(t)
	ctx := context.Background()

	var last domain.Order
	for i, status := range []string{"in_process", "READY", "completed"} {
		order, err := f.engine.UpdateStatus(ctx, partnerOne, created.ID, status)
		require.NoError(t, err)
		require.Equal(t, int64(i+1), order.Version)
		require.NotNil(t, order.UpdatedAt)
		require.True(t, order.TotalAmount.Equal(created.TotalAmount))
		last = order
	}
	require.Equal(t, domain.OrderStatusCompleted, last.Status)

	stored, err := f.orders.Get(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, last.Version, stored.Version)
	require.Equal(t, created.RedemptionToken, stored.RedemptionToken)

	events, err := f.engine.Timeline(ctx, partnerOne, created.ID)
	require.NoError(t, err)
	require.Len(t, events, 4)
	require.Equal(t, domain.TimelineOrderCreated, events[0].Type)
	require.Equal(t, "ready -> completed", events[3].Reason)

	require.Len(t, f.notifier.published(), 4)
	pending := f.outbox.AllPending()
	require.Len(t, pending, 4)
	require.Equal(t, string(domain.OrderEventStatusChanged), pending[3].EventType)

	var payload domain.OrderEventPayload
	require.NoError(t, json.Unmarshal(pending[3].Payload, &payload))
	require.Equal(t, domain.OrderStatusCompleted, payload.Order.Status)
}

func TestUpdateStatus_ForeignPartnerSeesNotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	created := f.createOrder(t)

	_, err := f.engine.UpdateStatus(context.Background(), partnerTwo, created.ID, "in_process")
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
	requireKind(t, err, domain.KindNotFound)

	// Ошибку статуса чужой заказ не раскрывает.
	_, err = f.engine.UpdateStatus(context.Background(), partnerTwo, created.ID, "bogus")
	requireKind(t, err, domain.KindNotFound)

	stored, err := f.orders.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusInQueue, stored.Status)
	require.Zero(t, stored.Version)
}

func TestUpdateStatus_Rejections(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		caller domain.Identity
		before []string
		status string
		target error
		kind   domain.ErrorKind
	}{
		{name: "customer cannot update", caller: customer, status: "ready", target: domain.ErrRoleRequired, kind: domain.KindForbidden},
		{name: "unknown status", caller: partnerOne, status: "shipped", target: domain.ErrOrderStatusInvalid, kind: domain.KindInvalidRequest},
		{name: "empty status", caller: partnerOne, status: "", target: domain.ErrOrderStatusInvalid, kind: domain.KindInvalidRequest},
		{name: "backwards", caller: partnerOne, before: []string{"ready"}, status: "in_process", target: domain.ErrTransitionBackwards, kind: domain.KindInvalidRequest},
		{name: "from completed", caller: partnerOne, before: []string{"completed"}, status: "cancelled", target: domain.ErrTransitionFromTerminal, kind: domain.KindInvalidRequest},
		{name: "from cancelled", caller: partnerOne, before: []string{"cancelled"}, status: "in_queue", target: domain.ErrTransitionFromTerminal, kind: domain.KindInvalidRequest},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture(t)
			created := f.createOrder(t)
			for _, status := range tc.before {
				_, err := f.engine.UpdateStatus(context.Background(), partnerOne, created.ID, status)
				require.NoError(t, err)
			}

			_, err := f.engine.UpdateStatus(context.Background(), tc.caller, created.ID, tc.status)
			require.ErrorIs(t, err, tc.target)
			requireKind(t, err, tc.kind)
		})
	}
}

func TestUpdateStatus_PermissivePolicyAllowsAnyKnownStatus(t *testing.T) {
	t.Parallel()

	f := newFixture(t, WithTransitionPolicy(domain.TransitionPermissive))
	created := f.createOrder(t)

	_, err := f.engine.UpdateStatus(context.Background(), partnerOne, created.ID, "completed")
	require.NoError(t, err)
	order, err := f.engine.UpdateStatus(context.Background(), partnerOne, created.ID, "in_queue")
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusInQueue, order.Status)

	_, err = f.engine.UpdateStatus(context.Background(), partnerOne, created.ID, "lost")
	require.ErrorIs(t, err, domain.ErrOrderStatusInvalid)
}

func TestUpdateStatus_SameStatusOnlyTouches(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	created := f.createOrder(t)

	first, err := f.engine.UpdateStatus(context.Background(), partnerOne, created.ID, "in_process")
	require.NoError(t, err)
	second, err := f.engine.UpdateStatus(context.Background(), partnerOne, created.ID, "in_process")
	require.NoError(t, err)

	require.Equal(t, domain.OrderStatusInProcess, second.Status)
	require.Equal(t, first.Version+1, second.Version)
	require.True(t, second.UpdatedAt.After(*first.UpdatedAt))
}

func TestUpdateStatus_RetriesVersionConflict(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	created := f.createOrder(t)
	repo := &racingRepo{OrderRepository: f.orders, races: 1}
	f.withOrders(t, repo)

	order, err := f.engine.UpdateStatus(context.Background(), partnerOne, created.ID, "in_process")
	require.NoError(t, err)
	require.Equal(t, 2, repo.saves)
	require.Equal(t, int64(2), order.Version)

	stored, err := repo.Get(context.Background(), created.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OrderStatusInProcess, stored.Status)
	require.Equal(t, order.Version, stored.Version)
}

func TestUpdateStatus_GivesUpAfterMaxAttempts(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	created := f.createOrder(t)
	repo := &racingRepo{OrderRepository: f.orders, races: 10}
	f.withOrders(t, repo, WithMaxAttempts(2))

	_, err := f.engine.UpdateStatus(context.Background(), partnerOne, created.ID, "ready")
	require.ErrorIs(t, err, domain.ErrOrderVersionConflict)
	requireKind(t, err, domain.KindConflict)
	require.Equal(t, 2, repo.saves)
}

func TestDelete_CompletedOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	created := f.createOrder(t)
	ctx := context.Background()

	err := f.engine.Delete(ctx, partnerOne, created.ID)
	require.ErrorIs(t, err, domain.ErrOnlyCompletedDeletable)
	requireKind(t, err, domain.KindInvalidRequest)

	_, err = f.engine.UpdateStatus(ctx, partnerOne, created.ID, "completed")
	require.NoError(t, err)

	require.ErrorIs(t, f.engine.Delete(ctx, partnerTwo, created.ID), domain.ErrOrderNotFound)
	require.ErrorIs(t, f.engine.Delete(ctx, customer, created.ID), domain.ErrRoleRequired)

	require.NoError(t, f.engine.Delete(ctx, partnerOne, created.ID))

	_, err = f.engine.Get(ctx, customer, created.ID)
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
	require.ErrorIs(t, f.engine.Delete(ctx, partnerOne, created.ID), domain.ErrOrderNotFound)

	// Удаление уходит в outbox, но не в hub.
	require.Len(t, f.notifier.published(), 2)
	pending := f.outbox.AllPending()
	require.Equal(t, string(domain.OrderEventDeleted), pending[len(pending)-1].EventType)

	stats, err := f.engine.Statistics(ctx, partnerOne)
	require.NoError(t, err)
	require.Zero(t, stats.TotalOrders)
	require.True(t, stats.Revenue.IsZero())
}

func TestDelete_CancelledOrderIsKept(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	created := f.createOrder(t)

	_, err := f.engine.UpdateStatus(context.Background(), partnerOne, created.ID, "cancelled")
	require.NoError(t, err)
	require.ErrorIs(t, f.engine.Delete(context.Background(), partnerOne, created.ID), domain.ErrOnlyCompletedDeletable)
}

func TestLifecycle_WithoutOptionalCollaborators(t *testing.T) {
	t.Parallel()

	catalog := memory.NewCatalogRepository()
	ctx := context.Background()
	require.NoError(t, catalog.CreatePartner(ctx, domain.Partner{ID: "P1", UserID: partnerOne.UserID, Name: "Bakery"}))
	require.NoError(t, catalog.CreateProduct(ctx, domain.Product{ID: "A", PartnerID: "P1", Name: "Bread", Price: decimal.NewFromInt(4), Available: true}))

	engine, err := NewEngine(memory.NewOrderRepository(), catalog)
	require.NoError(t, err)

	view, err := engine.Create(ctx, customer, CreateInput{
		PartnerID: "P1",
		Items:     []ItemInput{{ProductID: "A", Quantity: 3, Price: decimal.NewFromInt(4)}},
	})
	require.NoError(t, err)
	require.True(t, view.TotalAmount.Equal(decimal.NewFromInt(12)))

	_, err = engine.UpdateStatus(ctx, partnerOne, view.ID, "completed")
	require.NoError(t, err)

	events, err := engine.Timeline(ctx, partnerOne, view.ID)
	require.NoError(t, err)
	require.Empty(t, events)

	require.NoError(t, engine.Delete(ctx, partnerOne, view.ID))
}
