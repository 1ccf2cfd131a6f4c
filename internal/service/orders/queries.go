package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// Statistics: сводка партнёра.
type Statistics struct {
	TotalOrders      int
	CompletedOrders  int
	Revenue          decimal.Decimal
	TotalProducts    int
	ActivePromotions int
}

// Get возвращает заказ со снимком партнёра. Клиент видит только свои заказы,
// партнёр только заказы своего профиля.
func (e *Engine) Get(ctx context.Context, caller domain.Identity, orderID string) (view OrderView, err error) {
	defer e.observe(opGet, time.Now(), &err)

	order, err := e.orders.Get(ctx, orderID)
	if err != nil {
		return OrderView{}, fmt.Errorf("load order %s: %w", orderID, err)
	}

	switch caller.Role {
	case domain.RoleCustomer:
		if order.CustomerID != caller.UserID {
			return OrderView{}, domain.ErrNotOwner
		}
	case domain.RolePartner:
		partner, err := e.catalog.GetPartnerByUserID(ctx, caller.UserID)
		if err != nil && !errors.Is(err, domain.ErrPartnerNotFound) {
			return OrderView{}, fmt.Errorf("load partner profile: %w", err)
		}
		if err != nil || partner.ID != order.PartnerID {
			return OrderView{}, domain.ErrNotOwner
		}
		return OrderView{Order: order, Partner: partner}, nil
	default:
		return OrderView{}, domain.ErrRoleRequired
	}

	partner, err := e.catalog.GetPartner(ctx, order.PartnerID)
	if err != nil {
		return OrderView{}, fmt.Errorf("load partner %s: %w", order.PartnerID, err)
	}
	return OrderView{Order: order, Partner: partner}, nil
}

// ListForCustomer возвращает заказы клиента, новые первыми.
func (e *Engine) ListForCustomer(ctx context.Context, caller domain.Identity, limit int) (orders []domain.Order, err error) {
	defer e.observe(opList, time.Now(), &err)

	if err := requireRole(caller, domain.RoleCustomer); err != nil {
		return nil, err
	}
	return e.orders.ListByCustomer(ctx, caller.UserID, normalizeLimit(limit))
}

// ListForPartner возвращает заказы профиля партнёра, новые первыми.
func (e *Engine) ListForPartner(ctx context.Context, caller domain.Identity, limit int) (orders []domain.Order, err error) {
	defer e.observe(opList, time.Now(), &err)

	partner, err := e.partnerOf(ctx, caller)
	if err != nil {
		return nil, err
	}
	return e.orders.ListByPartner(ctx, partner.ID, normalizeLimit(limit))
}

// Statistics считает заказы, выручку завершённых заказов, товары и действующие акции партнёра.
func (e *Engine) Statistics(ctx context.Context, caller domain.Identity) (stats Statistics, err error) {
	defer e.observe(opStatistics, time.Now(), &err)

	partner, err := e.partnerOf(ctx, caller)
	if err != nil {
		return Statistics{}, err
	}

	orderStats, err := e.orders.PartnerStats(ctx, partner.ID)
	if err != nil {
		return Statistics{}, fmt.Errorf("order stats: %w", err)
	}
	products, err := e.catalog.CountProducts(ctx, partner.ID)
	if err != nil {
		return Statistics{}, fmt.Errorf("count products: %w", err)
	}
	promotions, err := e.catalog.CountLivePromotions(ctx, partner.ID, e.now())
	if err != nil {
		return Statistics{}, fmt.Errorf("count promotions: %w", err)
	}

	return Statistics{
		TotalOrders:      orderStats.TotalOrders,
		CompletedOrders:  orderStats.CompletedOrders,
		Revenue:          orderStats.Revenue,
		TotalProducts:    products,
		ActivePromotions: promotions,
	}, nil
}

// Timeline возвращает историю статусов заказа партнёра.
func (e *Engine) Timeline(ctx context.Context, caller domain.Identity, orderID string) (events []domain.TimelineEvent, err error) {
	defer e.observe(opTimeline, time.Now(), &err)

	partner, err := e.partnerOf(ctx, caller)
	if err != nil {
		return nil, err
	}
	if _, err := e.loadPartnerOrder(ctx, partner, orderID); err != nil {
		return nil, err
	}
	if e.timeline == nil {
		return []domain.TimelineEvent{}, nil
	}
	return e.timeline.List(ctx, orderID)
}
