package domain

import (
	"fmt"
	"time"
)

// Типы событий timeline.
const (
	TimelineOrderCreated       = "OrderCreated"
	TimelineOrderStatusChanged = "OrderStatusChanged"
)

// TimelineEvent описывает событие в жизненном цикле заказа.
type TimelineEvent struct {
	OrderID  string
	Type     string
	Reason   string
	Occurred time.Time
}

// NewStatusChangedEvent фиксирует смену статуса.
func NewStatusChangedEvent(orderID string, from, to OrderStatus, at time.Time) TimelineEvent {
	return TimelineEvent{
		OrderID:  orderID,
		Type:     TimelineOrderStatusChanged,
		Reason:   fmt.Sprintf("%s -> %s", from, to),
		Occurred: at.UTC(),
	}
}
