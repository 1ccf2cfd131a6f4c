package notify

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
	"github.com/vladislavdragonenkov/marketplace/internal/messaging/kafka"
)

func relayMessage(t *testing.T, aggregateType string, payload domain.OrderEventPayload) *sarama.ConsumerMessage {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)

	envelope := kafka.NewEnvelope(domain.OutboxMessage{
		ID:            "outbox-1",
		AggregateType: aggregateType,
		AggregateID:   payload.Order.ID,
		EventType:     string(payload.Event),
		Payload:       raw,
	}, time.Now())
	value, err := json.Marshal(envelope)
	require.NoError(t, err)

	return &sarama.ConsumerMessage{Topic: kafka.TopicOrderEvents, Value: value}
}

func TestRelay_Handle(t *testing.T) {
	order := domain.NewOrderChanged(sampleOrder())

	tests := []struct {
		name          string
		message       func(t *testing.T) *sarama.ConsumerMessage
		wantDelivered bool
		wantErr       bool
	}{
		{
			name: "event from another instance is delivered",
			message: func(t *testing.T) *sarama.ConsumerMessage {
				return relayMessage(t, domain.OrderAggregateType, domain.OrderEventPayload{
					Event: domain.OrderEventStatusChanged, Order: order, PartnerUserID: "partner-user", Origin: "instance-b",
				})
			},
			wantDelivered: true,
		},
		{
			name: "own event is skipped",
			message: func(t *testing.T) *sarama.ConsumerMessage {
				return relayMessage(t, domain.OrderAggregateType, domain.OrderEventPayload{
					Event: domain.OrderEventCreated, Order: order, PartnerUserID: "partner-user", Origin: "instance-a",
				})
			},
		},
		{
			name: "deleted order is skipped",
			message: func(t *testing.T) *sarama.ConsumerMessage {
				return relayMessage(t, domain.OrderAggregateType, domain.OrderEventPayload{
					Event: domain.OrderEventDeleted, Order: order, PartnerUserID: "partner-user", Origin: "instance-b",
				})
			},
		},
		{
			name: "foreign aggregate is ignored",
			message: func(t *testing.T) *sarama.ConsumerMessage {
				return relayMessage(t, "payment", domain.OrderEventPayload{Order: order, Origin: "instance-b"})
			},
		},
		{
			name: "broken envelope",
			message: func(*testing.T) *sarama.ConsumerMessage {
				return &sarama.ConsumerMessage{Value: []byte("{")}
			},
			wantErr: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			hub := NewHub(nil, nil)
			customer, partner := &fakeConn{}, &fakeConn{}
			require.NoError(t, hub.Register("customer-user", customer))
			require.NoError(t, hub.Register("partner-user", partner))

			err := NewRelay(hub, "instance-a", nil, nil).Handle(context.Background(), tc.message(t))
			if tc.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}

			if tc.wantDelivered {
				require.Len(t, customer.received(), 1)
				require.Len(t, partner.received(), 1)
				return
			}
			require.Empty(t, customer.received())
			require.Empty(t, partner.received())
		})
	}
}
