package notify

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/marketplace/internal/metrics"
)

// Результаты обработки события реле.
const (
	relayDelivered = "delivered"
	relaySkipped   = "skipped"
	relayFailed    = "failed"
)

// Relay переносит события заказов, опубликованные другими инстансами, в локальный hub.
// События собственного инстанса пропускаются: их hub уже разослал после коммита.
type Relay struct {
	hub        *Hub
	instanceID string
	logger     *log.Entry
	metrics    *metrics.HubMetrics
}

// NewRelay создаёт реле для инстанса instanceID.
func NewRelay(hub *Hub, instanceID string, logger *log.Entry, m *metrics.HubMetrics) *Relay {
	if logger == nil {
		logger = log.WithField("component", "notify-relay")
	}
	return &Relay{hub: hub, instanceID: instanceID, logger: logger, metrics: m}
}

// Handle реализует kafka.MessageHandler. Ошибка разбора уходит в consumer,
// который после повторов отправит сообщение в DLQ.
func (r *Relay) Handle(ctx context.Context, message *sarama.ConsumerMessage) error {
	envelope, err := kafka.ParseEnvelope(message)
	if err != nil {
		r.metrics.RecordRelay(relayFailed)
		return err
	}
	if envelope.AggregateType != domain.OrderAggregateType {
		r.metrics.RecordRelay(relaySkipped)
		return nil
	}

	event, err := envelope.OrderEvent()
	if err != nil {
		r.metrics.RecordRelay(relayFailed)
		return fmt.Errorf("relay event %s: %w", envelope.ID, err)
	}

	// Удаление не рассылается и локально.
	if event.Origin == r.instanceID || event.Event == domain.OrderEventDeleted {
		r.metrics.RecordRelay(relaySkipped)
		return nil
	}

	r.hub.Publish(ctx, Message{Type: MessageTypeOrderUpdate, Data: event.Order}, event.Order.CustomerID, event.PartnerUserID)
	r.metrics.RecordRelay(relayDelivered)
	r.logger.WithFields(log.Fields{
		"order_id": event.Order.ID,
		"origin":   event.Origin,
	}).Debug("relayed order event")
	return nil
}
