package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// Topics для Kafka
const (
	TopicOrderEvents     = "marketplace.order.events"
	TopicDeadLetterQueue = "marketplace.order.dlq"
)

// Kafka headers
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
	HeaderEventType     = "x-event-type"
)

// Envelope: формат сообщения в TopicOrderEvents.
type Envelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// NewEnvelope упаковывает outbox-сообщение.
func NewEnvelope(msg domain.OutboxMessage, publishedAt time.Time) Envelope {
	return Envelope{
		ID:            msg.ID,
		AggregateType: msg.AggregateType,
		AggregateID:   msg.AggregateID,
		EventType:     msg.EventType,
		Payload:       json.RawMessage(msg.Payload),
		PublishedAt:   publishedAt.UTC(),
	}
}

// OrderEvent декодирует payload конверта заказа.
func (e Envelope) OrderEvent() (domain.OrderEventPayload, error) {
	if e.AggregateType != domain.OrderAggregateType {
		return domain.OrderEventPayload{}, fmt.Errorf("unexpected aggregate type %q", e.AggregateType)
	}
	var payload domain.OrderEventPayload
	if err := json.Unmarshal(e.Payload, &payload); err != nil {
		return domain.OrderEventPayload{}, fmt.Errorf("failed to unmarshal order event payload: %w", err)
	}
	return payload, nil
}

// DeadLetter: сообщение, которое consumer не смог обработать.
type DeadLetter struct {
	OriginalTopic     string    `json:"original_topic"`
	OriginalPartition int32     `json:"original_partition"`
	OriginalOffset    int64     `json:"original_offset"`
	OriginalKey       string    `json:"original_key"`
	OriginalValue     string    `json:"original_value"`
	ErrorMessage      string    `json:"error_message"`
	FailedAt          time.Time `json:"failed_at"`
	RetryCount        int       `json:"retry_count"`
}

// ParseEnvelope парсит Envelope из сообщения
func ParseEnvelope(message *sarama.ConsumerMessage) (Envelope, error) {
	var envelope Envelope
	if err := json.Unmarshal(message.Value, &envelope); err != nil {
		return Envelope{}, fmt.Errorf("failed to unmarshal envelope: %w", err)
	}
	return envelope, nil
}

// ParseDeadLetter парсит DeadLetter из сообщения DLQ
func ParseDeadLetter(message *sarama.ConsumerMessage) (DeadLetter, error) {
	var letter DeadLetter
	if err := json.Unmarshal(message.Value, &letter); err != nil {
		return DeadLetter{}, fmt.Errorf("failed to unmarshal dead letter: %w", err)
	}
	return letter, nil
}
