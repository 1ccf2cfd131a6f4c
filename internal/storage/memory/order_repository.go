package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// orderRepositoryInMemory: in-memory реализация OrderRepository.
// Заказ и его позиции пишутся под одной блокировкой, что даёт ту же атомарность, что и транзакция.
type orderRepositoryInMemory struct {
	mu     sync.RWMutex
	items  map[string]domain.Order
	tokens map[string]string // redemption token -> order id
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() domain.OrderRepository {
	return &orderRepositoryInMemory{
		items:  make(map[string]domain.Order),
		tokens: make(map[string]string),
	}
}

// Create сохраняет новый заказ, если ID и токен выдачи ещё не заняты.
func (r *orderRepositoryInMemory) Create(ctx context.Context, order domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[order.ID]; exists {
		return domain.ErrDuplicateKey
	}
	if _, exists := r.tokens[order.RedemptionToken]; exists {
		return domain.ErrDuplicateKey
	}
	stored := cloneOrder(order)
	for i := range stored.Items {
		stored.Items[i].OrderID = order.ID
	}
	r.items[order.ID] = stored
	r.tokens[order.RedemptionToken] = order.ID
	return nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *orderRepositoryInMemory) Get(ctx context.Context, id string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.items[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// ListByCustomer возвращает заказы клиента, ограничивая выборку limit (если >0).
func (r *orderRepositoryInMemory) ListByCustomer(ctx context.Context, customerID string, limit int) ([]domain.Order, error) {
	return r.list(ctx, limit, func(o domain.Order) bool { return o.CustomerID == customerID })
}

// ListByPartner возвращает заказы партнёра.
func (r *orderRepositoryInMemory) ListByPartner(ctx context.Context, partnerID string, limit int) ([]domain.Order, error) {
	return r.list(ctx, limit, func(o domain.Order) bool { return o.PartnerID == partnerID })
}

func (r *orderRepositoryInMemory) list(ctx context.Context, limit int, match func(domain.Order) bool) ([]domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]domain.Order, 0)
	for _, order := range r.items {
		if !match(order) {
			continue
		}
		result = append(result, cloneOrder(order))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID > result[j].ID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// Save обновляет статус и отметку времени, проверяя версию (optimistic locking).
// Сумма, токен и позиции неизменяемы и берутся из сохранённой записи.
func (r *orderRepositoryInMemory) Save(ctx context.Context, order domain.Order) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != order.Version {
		return domain.ErrOrderVersionConflict
	}

	current.Status = order.Status
	current.UpdatedAt = cloneTime(order.UpdatedAt)
	current.Version++
	r.items[order.ID] = current
	return nil
}

// Delete удаляет заказ вместе с позициями.
func (r *orderRepositoryInMemory) Delete(ctx context.Context, id string, version int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if current.Version != version {
		return domain.ErrOrderVersionConflict
	}
	delete(r.tokens, current.RedemptionToken)
	delete(r.items, id)
	return nil
}

// PartnerStats считает заказы и выручку партнёра.
func (r *orderRepositoryInMemory) PartnerStats(ctx context.Context, partnerID string) (domain.OrderStats, error) {
	if err := ctx.Err(); err != nil {
		return domain.OrderStats{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := domain.OrderStats{Revenue: decimal.Zero}
	for _, order := range r.items {
		if order.PartnerID != partnerID {
			continue
		}
		stats.TotalOrders++
		if order.Status == domain.OrderStatusCompleted {
			stats.CompletedOrders++
			stats.Revenue = stats.Revenue.Add(order.TotalAmount)
		}
	}
	return stats, nil
}

func cloneOrder(src domain.Order) domain.Order {
	dst := src
	dst.Items = append([]domain.OrderItem(nil), src.Items...)
	dst.UpdatedAt = cloneTime(src.UpdatedAt)
	return dst
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

var _ domain.OrderRepository = (*orderRepositoryInMemory)(nil)
