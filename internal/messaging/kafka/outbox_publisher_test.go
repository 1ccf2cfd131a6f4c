package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

func TestOutboxPublisher_Publish(t *testing.T) {
	t.Parallel()

	publishedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != TopicOrderEvents {
			return fmt.Errorf("unexpected topic %q", msg.Topic)
		}
		key, _ := msg.Key.Encode()
		if string(key) != "order-123" {
			return fmt.Errorf("unexpected key %q", key)
		}
		if len(msg.Headers) != 1 || string(msg.Headers[0].Key) != HeaderEventType ||
			string(msg.Headers[0].Value) != string(domain.OrderEventStatusChanged) {
			return fmt.Errorf("unexpected headers %+v", msg.Headers)
		}

		raw, _ := msg.Value.Encode()
		var envelope Envelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return err
		}
		if envelope.ID != "outbox-1" || !envelope.PublishedAt.Equal(publishedAt) {
			return fmt.Errorf("unexpected envelope %+v", envelope)
		}
		payload, err := envelope.OrderEvent()
		if err != nil {
			return err
		}
		if payload.Order.Status != domain.OrderStatusReady {
			return fmt.Errorf("unexpected payload %+v", payload)
		}
		return nil
	})

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-outbox-publisher-test"),
	}
	publisher := NewOutboxPublisher(producer, "")
	publisher.now = func() time.Time { return publishedAt }

	err := publisher.Publish(context.Background(), domain.OutboxMessage{
		ID:            "outbox-1",
		AggregateType: domain.OrderAggregateType,
		AggregateID:   "order-123",
		EventType:     string(domain.OrderEventStatusChanged),
		Payload:       []byte(`{"event":"order.status_changed","order":{"id":"order-123","status":"ready"}}`),
	})
	if err != nil {
		t.Fatalf("publish failed: %v", err)
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOutboxPublisher_PublishProducerError(t *testing.T) {
	t.Parallel()

	mockProducer := mocks.NewSyncProducer(t, nil)
	mockProducer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	producer := &Producer{
		producer: mockProducer,
		logger:   log.WithField("component", "kafka-outbox-publisher-test"),
	}
	publisher := NewOutboxPublisher(producer, TopicOrderEvents)

	err := publisher.Publish(context.Background(), domain.OutboxMessage{
		ID:            "outbox-2",
		AggregateType: domain.OrderAggregateType,
		AggregateID:   "order-234",
		EventType:     string(domain.OrderEventCreated),
		Payload:       []byte(`{}`),
	})
	if err == nil {
		t.Fatal("expected publish error, got nil")
	}

	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOutboxPublisher_PublishGuards(t *testing.T) {
	t.Parallel()

	publisher := NewOutboxPublisher(nil, TopicOrderEvents)
	if err := publisher.Publish(context.Background(), domain.OutboxMessage{ID: "outbox-3"}); err == nil {
		t.Fatal("expected error for nil producer")
	}

	// Отменённый контекст не доходит до producer: ожиданий у мока нет.
	mockProducer := mocks.NewSyncProducer(t, nil)
	publisher = NewOutboxPublisher(&Producer{producer: mockProducer, logger: log.WithField("test", "ctx")}, TopicOrderEvents)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := publisher.Publish(ctx, domain.OutboxMessage{ID: "outbox-4", Payload: []byte(`{}`)}); err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if err := mockProducer.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestEnvelope_OrderEventRejectsForeignAggregate(t *testing.T) {
	t.Parallel()

	envelope := NewEnvelope(domain.OutboxMessage{AggregateType: "payment", Payload: []byte(`{}`)}, time.Now())
	if _, err := envelope.OrderEvent(); err == nil {
		t.Fatal("expected error for non-order aggregate")
	}

	envelope = NewEnvelope(domain.OutboxMessage{AggregateType: domain.OrderAggregateType, Payload: []byte(`{`)}, time.Now())
	if _, err := envelope.OrderEvent(); err == nil {
		t.Fatal("expected error for broken payload")
	}
}
