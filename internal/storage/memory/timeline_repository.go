package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// timelineRepositoryInMemory хранит события в памяти (для разработки/тестов).
type timelineRepositoryInMemory struct {
	mu     sync.RWMutex
	events map[string][]domain.TimelineEvent
}

// NewTimelineRepository создаёт in-memory реализацию TimelineRepository.
func NewTimelineRepository() domain.TimelineRepository {
	return &timelineRepositoryInMemory{events: make(map[string][]domain.TimelineEvent)}
}

// Append добавляет событие, сохраняя хронологический порядок.
func (r *timelineRepositoryInMemory) Append(ctx context.Context, event domain.TimelineEvent) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if event.Occurred.IsZero() {
		event.Occurred = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	events := append(r.events[event.OrderID], event)
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Occurred.Before(events[j].Occurred)
	})
	r.events[event.OrderID] = events
	return nil
}

// List возвращает события заказа в хронологическом порядке.
func (r *timelineRepositoryInMemory) List(ctx context.Context, orderID string) ([]domain.TimelineEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]domain.TimelineEvent{}, r.events[orderID]...), nil
}

var _ domain.TimelineRepository = (*timelineRepositoryInMemory)(nil)
