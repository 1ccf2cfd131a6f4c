package orders

import (
	"context"
	"encoding/json"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// announce выполняет побочные эффекты после коммита: timeline, рассылку в hub
// и запись в outbox. Ошибки только логируются, вызывающий уже получил результат.
func (e *Engine) announce(ctx context.Context, order domain.Order, partner domain.Partner, event domain.OrderEventType, timeline domain.TimelineEvent) {
	ctx = context.WithoutCancel(ctx)
	fields := log.Fields{"order_id": order.ID, "event": event}

	if e.timeline != nil && timeline.Type != "" {
		if err := e.timeline.Append(ctx, timeline); err != nil {
			e.logger.WithError(err).WithFields(fields).Warn("failed to append timeline event")
		} else {
			e.metrics.RecordTimelineEvent()
		}
	}

	// Об удалении живые соединения не уведомляются.
	if e.notifier != nil && event != domain.OrderEventDeleted {
		e.notifier.PublishOrderChanged(ctx, order, partner.UserID)
	}

	if e.outbox == nil {
		return
	}
	payload, err := json.Marshal(domain.OrderEventPayload{
		Event:         event,
		Order:         domain.NewOrderChanged(order),
		PartnerUserID: partner.UserID,
		Origin:        e.instanceID,
	})
	if err != nil {
		e.logger.WithError(err).WithFields(fields).Error("marshal order event failed")
		return
	}
	if _, err := e.outbox.Enqueue(ctx, domain.OutboxMessage{
		AggregateType: domain.OrderAggregateType,
		AggregateID:   order.ID,
		EventType:     string(event),
		Payload:       payload,
	}); err != nil {
		e.logger.WithError(err).WithFields(fields).Error("enqueue order event failed")
		return
	}
	e.metrics.RecordOutboxEvent()
}
