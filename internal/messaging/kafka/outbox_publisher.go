package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

var errPublisherNotInitialized = errors.New("kafka outbox publisher is not initialized")

// OutboxTopicPublisher публикует outbox-сообщения в заданный Kafka topic.
type OutboxTopicPublisher struct {
	producer *Producer
	topic    string
	now      func() time.Time
}

// NewOutboxPublisher создаёт Kafka-паблишер для outbox.
func NewOutboxPublisher(producer *Producer, topic string) *OutboxTopicPublisher {
	if topic == "" {
		topic = TopicOrderEvents
	}
	return &OutboxTopicPublisher{
		producer: producer,
		topic:    topic,
		now:      time.Now,
	}
}

// Publish отправляет сообщение, ключ партиционирования: id агрегата,
// поэтому события одного заказа читаются в порядке записи.
func (p *OutboxTopicPublisher) Publish(ctx context.Context, event domain.OutboxMessage) error {
	if p == nil || p.producer == nil {
		return errPublisherNotInitialized
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	key := event.AggregateID
	if key == "" {
		key = event.ID
	}

	value, err := json.Marshal(NewEnvelope(event, p.now()))
	if err != nil {
		return fmt.Errorf("failed to marshal envelope: %w", err)
	}

	return p.producer.Send(p.topic, key, value, map[string]string{
		HeaderEventType: event.EventType,
	})
}

var _ domain.OutboxPublisher = (*OutboxTopicPublisher)(nil)
