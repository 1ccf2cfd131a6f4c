package orders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/storage/memory"
)

var (
	customer      = domain.Identity{UserID: "c1", Email: "c1@example.com", Role: domain.RoleCustomer}
	otherCustomer = domain.Identity{UserID: "c2", Email: "c2@example.com", Role: domain.RoleCustomer}
	partnerOne    = domain.Identity{UserID: "owner-1", Email: "p1@example.com", Role: domain.RolePartner}
	partnerTwo    = domain.Identity{UserID: "owner-2", Email: "p2@example.com", Role: domain.RolePartner}
)

type publishedChange struct {
	order         domain.Order
	partnerUserID string
}

type recordingNotifier struct {
	mu      sync.Mutex
	changes []publishedChange
}

func (n *recordingNotifier) PublishOrderChanged(_ context.Context, order domain.Order, partnerUserID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changes = append(n.changes, publishedChange{order: order, partnerUserID: partnerUserID})
}

func (n *recordingNotifier) published() []publishedChange {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]publishedChange(nil), n.changes...)
}

type fixture struct {
	engine   *Engine
	orders   domain.OrderRepository
	catalog  domain.CatalogRepository
	outbox   *memory.OutboxRepository
	timeline domain.TimelineRepository
	notifier *recordingNotifier
}

// newFixture заполняет каталог: у P1 товары A (10.00), B (5.00) и снятый OFF, у P2 товар X.
func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	f := &fixture{
		orders:   memory.NewOrderRepository(),
		catalog:  memory.NewCatalogRepository(),
		outbox:   memory.NewOutboxRepository(),
		timeline: memory.NewTimelineRepository(),
		notifier: &recordingNotifier{},
	}
	ctx := context.Background()
	require.NoError(t, f.catalog.CreatePartner(ctx, domain.Partner{ID: "P1", UserID: partnerOne.UserID, Name: "Bakery"}))
	require.NoError(t, f.catalog.CreatePartner(ctx, domain.Partner{ID: "P2", UserID: partnerTwo.UserID, Name: "Cafe"}))

	for _, p := range []domain.Product{
		{ID: "A", PartnerID: "P1", Name: "Bread", Price: decimal.RequireFromString("10.00"), Available: true},
		{ID: "B", PartnerID: "P1", Name: "Bun", Price: decimal.RequireFromString("5.00"), Available: true},
		{ID: "OFF", PartnerID: "P1", Name: "Seasonal pie", Price: decimal.RequireFromString("8.00")},
		{ID: "X", PartnerID: "P2", Name: "Coffee", Price: decimal.RequireFromString("3.00"), Available: true},
	} {
		require.NoError(t, f.catalog.CreateProduct(ctx, p))
	}

	var (
		clockMu sync.Mutex
		clock   = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	)
	tick := func() time.Time {
		clockMu.Lock()
		defer clockMu.Unlock()
		clock = clock.Add(time.Second)
		return clock
	}

	base := []Option{
		WithNotifier(f.notifier),
		WithOutbox(f.outbox),
		WithTimeline(f.timeline),
		WithClock(tick),
		WithInstanceID("instance-a"),
	}
	engine, err := NewEngine(f.orders, f.catalog, append(base, opts...)...)
	require.NoError(t, err)
	f.engine = engine
	return f
}

func (f *fixture) withOrders(t *testing.T, repo domain.OrderRepository, opts ...Option) {
	t.Helper()

	base := []Option{WithNotifier(f.notifier), WithOutbox(f.outbox), WithTimeline(f.timeline)}
	engine, err := NewEngine(repo, f.catalog, append(base, opts...)...)
	require.NoError(t, err)
	f.engine = engine
	f.orders = repo
}

func twoItemInput() CreateInput {
	return CreateInput{
		PartnerID: "P1",
		Items: []ItemInput{
			{ProductID: "A", Quantity: 2, Price: decimal.RequireFromString("10.00")},
			{ProductID: "B", Quantity: 1, Price: decimal.RequireFromString("5.00")},
		},
	}
}

func (f *fixture) createOrder(t *testing.T) OrderView {
	t.Helper()

	view, err := f.engine.Create(context.Background(), customer, twoItemInput())
	require.NoError(t, err)
	return view
}

func requireKind(t *testing.T, err error, kind domain.ErrorKind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, domain.KindOf(err), "unexpected error: %v", err)
}

// collidingRepo отвечает ErrDuplicateKey на первые collisions попыток Create.
type collidingRepo struct {
	domain.OrderRepository
	collisions int
	calls      int
}

func (r *collidingRepo) Create(ctx context.Context, order domain.Order) error {
	r.calls++
	if r.calls <= r.collisions {
		return domain.ErrDuplicateKey
	}
	return r.OrderRepository.Create(ctx, order)
}

// racingRepo перед каждым Save имитирует конкурирующего писателя, пока races > 0.
type racingRepo struct {
	domain.OrderRepository
	races int
	saves int
}

func (r *racingRepo) Save(ctx context.Context, order domain.Order) error {
	r.saves++
	if r.races > 0 {
		r.races--
		current, err := r.OrderRepository.Get(ctx, order.ID)
		if err != nil {
			return err
		}
		if err := r.OrderRepository.Save(ctx, current); err != nil {
			return err
		}
	}
	return r.OrderRepository.Save(ctx, order)
}

type failingOutbox struct {
	*memory.OutboxRepository
}

func (failingOutbox) Enqueue(context.Context, domain.OutboxMessage) (domain.OutboxMessage, error) {
	return domain.OutboxMessage{}, errors.New("outbox unavailable")
}

func TestNewEngine_RequiresRepositories(t *testing.T) {
	t.Parallel()

	_, err := NewEngine(nil, memory.NewCatalogRepository())
	require.Error(t, err)

	_, err = NewEngine(memory.NewOrderRepository(), nil)
	require.Error(t, err)
}

func TestNormalizeLimit(t *testing.T) {
	t.Parallel()

	require.Equal(t, defaultListLimit, normalizeLimit(0))
	require.Equal(t, defaultListLimit, normalizeLimit(-5))
	require.Equal(t, 7, normalizeLimit(7))
	require.Equal(t, maxListLimit, normalizeLimit(maxListLimit+1))
}
