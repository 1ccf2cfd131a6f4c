package orders

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// UpdateStatus меняет статус заказа партнёра. При конфликте версий заказ
// перечитывается и переход применяется заново. Сумма не пересчитывается.
func (e *Engine) UpdateStatus(ctx context.Context, caller domain.Identity, orderID, rawStatus string) (order domain.Order, err error) {
	defer e.observe(opUpdateStatus, time.Now(), &err)

	partner, err := e.partnerOf(ctx, caller)
	if err != nil {
		return domain.Order{}, err
	}

	for attempt := 1; ; attempt++ {
		order, err = e.loadPartnerOrder(ctx, partner, orderID)
		if err != nil {
			return domain.Order{}, err
		}

		status, parseErr := domain.ParseOrderStatus(rawStatus)
		if parseErr != nil {
			return domain.Order{}, fmt.Errorf("%w: %q", parseErr, rawStatus)
		}

		previous := order.Status
		if err := e.transitions.CheckTransition(previous, status); err != nil {
			return domain.Order{}, err
		}

		order.Status = status
		order.Touch(e.now())

		err = e.orders.Save(ctx, order)
		if err == nil {
			order.Version++
			e.logger.WithFields(log.Fields{
				"order_id": order.ID,
				"from":     previous,
				"to":       status,
				"version":  order.Version,
			}).Info("order status changed")

			e.announce(ctx, order, partner, domain.OrderEventStatusChanged,
				domain.NewStatusChangedEvent(order.ID, previous, status, *order.UpdatedAt))
			return order, nil
		}
		if !domain.IsVersionConflict(err) || attempt >= e.maxAttempts {
			return domain.Order{}, fmt.Errorf("save order %s: %w", orderID, err)
		}

		e.metrics.RecordRetry(opUpdateStatus)
		e.logger.WithFields(log.Fields{
			"order_id": orderID,
			"attempt":  attempt,
		}).Warn("version conflict detected, retrying")
	}
}

// Delete удаляет завершённый заказ партнёра вместе с позициями.
// Удаление условно по версии, поэтому параллельная смена статуса не теряется.
func (e *Engine) Delete(ctx context.Context, caller domain.Identity, orderID string) (err error) {
	defer e.observe(opDelete, time.Now(), &err)

	partner, err := e.partnerOf(ctx, caller)
	if err != nil {
		return err
	}

	for attempt := 1; ; attempt++ {
		order, err := e.loadPartnerOrder(ctx, partner, orderID)
		if err != nil {
			return err
		}
		if order.Status != domain.OrderStatusCompleted {
			return fmt.Errorf("order %s is %s: %w", order.ID, order.Status, domain.ErrOnlyCompletedDeletable)
		}

		err = e.orders.Delete(ctx, order.ID, order.Version)
		if err == nil {
			e.logger.WithField("order_id", order.ID).Info("order deleted")
			e.announce(ctx, order, partner, domain.OrderEventDeleted, domain.TimelineEvent{})
			return nil
		}
		if !domain.IsVersionConflict(err) || attempt >= e.maxAttempts {
			return fmt.Errorf("delete order %s: %w", orderID, err)
		}
		e.metrics.RecordRetry(opDelete)
	}
}

// loadPartnerOrder возвращает заказ, только если он принадлежит партнёру.
// Чужой заказ неотличим от отсутствующего.
func (e *Engine) loadPartnerOrder(ctx context.Context, partner domain.Partner, orderID string) (domain.Order, error) {
	order, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("load order %s: %w", orderID, err)
	}
	if order.PartnerID != partner.ID {
		return domain.Order{}, fmt.Errorf("load order %s: %w", orderID, domain.ErrOrderNotFound)
	}
	return order, nil
}
