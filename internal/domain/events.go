package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderEventType — тип события заказа в outbox и Kafka.
type OrderEventType string

const (
	OrderEventCreated       OrderEventType = "order.created"
	OrderEventStatusChanged OrderEventType = "order.status_changed"
	OrderEventDeleted       OrderEventType = "order.deleted"
)

// OrderAggregateType — значение aggregate_type для событий заказа.
const OrderAggregateType = "order"

// OrderChanged — полезная нагрузка уведомления об изменении заказа.
type OrderChanged struct {
	ID          string          `json:"id"`
	Status      OrderStatus     `json:"status"`
	CustomerID  string          `json:"customer_id"`
	PartnerID   string          `json:"partner_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	UpdatedAt   *time.Time      `json:"updated_at"`
}

// NewOrderChanged строит уведомление из заказа.
func NewOrderChanged(o Order) OrderChanged {
	return OrderChanged{
		ID:          o.ID,
		Status:      o.Status,
		CustomerID:  o.CustomerID,
		PartnerID:   o.PartnerID,
		TotalAmount: o.TotalAmount,
		UpdatedAt:   o.UpdatedAt,
	}
}

// OrderEventPayload — payload outbox-сообщения о заказе.
// PartnerUserID и Origin нужны реле между инстансами, чтобы доставить
// событие обеим сторонам и не продублировать локальную рассылку.
type OrderEventPayload struct {
	Event         OrderEventType `json:"event"`
	Order         OrderChanged   `json:"order"`
	PartnerUserID string         `json:"partner_user_id"`
	Origin        string         `json:"origin"`
}
