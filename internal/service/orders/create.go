package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/domain"
)

// ItemInput: позиция заказа, как её прислал клиент.
type ItemInput struct {
	ProductID string
	Quantity  int32
	Price     decimal.Decimal
}

// CreateInput: запрос на создание заказа.
type CreateInput struct {
	PartnerID string
	Items     []ItemInput
}

// OrderView: заказ вместе со снимком партнёра.
type OrderView struct {
	domain.Order
	Partner domain.Partner
}

// Create оформляет заказ клиента у партнёра. Все проверки выполняются до записи,
// заказ и позиции сохраняются атомарно.
func (e *Engine) Create(ctx context.Context, caller domain.Identity, in CreateInput) (view OrderView, err error) {
	defer e.observe(opCreate, time.Now(), &err)

	if err := requireRole(caller, domain.RoleCustomer); err != nil {
		return OrderView{}, err
	}
	if err := validateCreateInput(in); err != nil {
		return OrderView{}, err
	}

	partner, err := e.catalog.GetPartner(ctx, in.PartnerID)
	if err != nil {
		return OrderView{}, fmt.Errorf("load partner %s: %w", in.PartnerID, err)
	}

	items, err := e.snapshotItems(ctx, partner, in.Items)
	if err != nil {
		return OrderView{}, err
	}

	order, err := e.persistNew(ctx, caller.UserID, partner.ID, items)
	if err != nil {
		return OrderView{}, err
	}

	e.logger.WithFields(log.Fields{
		"order_id":    order.ID,
		"customer_id": order.CustomerID,
		"partner_id":  order.PartnerID,
		"total":       order.TotalAmount.StringFixed(2),
	}).Info("order created")

	e.announce(ctx, order, partner, domain.OrderEventCreated, domain.TimelineEvent{
		OrderID:  order.ID,
		Type:     domain.TimelineOrderCreated,
		Reason:   string(order.Status),
		Occurred: order.CreatedAt,
	})
	return OrderView{Order: order, Partner: partner}, nil
}

func validateCreateInput(in CreateInput) error {
	if strings.TrimSpace(in.PartnerID) == "" {
		return domain.ErrPartnerRequired
	}
	if len(in.Items) == 0 {
		return domain.ErrItemsRequired
	}
	for idx, item := range in.Items {
		if strings.TrimSpace(item.ProductID) == "" {
			return fmt.Errorf("%w: item[%d].product_id is required", domain.ErrInvalidRequest, idx)
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("item[%d]: %w", idx, domain.ErrItemQtyInvalid)
		}
		if item.Quantity > domain.MaxItemQuantity {
			return fmt.Errorf("item[%d]: %w", idx, domain.ErrItemQtyTooLarge)
		}
		if err := domain.ValidateAmount(item.Price); err != nil {
			return fmt.Errorf("item[%d]: %w", idx, err)
		}
	}
	return nil
}

// snapshotItems проверяет товары и фиксирует цену каждой позиции.
func (e *Engine) snapshotItems(ctx context.Context, partner domain.Partner, in []ItemInput) ([]domain.OrderItem, error) {
	products := make(map[string]domain.Product, len(in))
	items := make([]domain.OrderItem, 0, len(in))

	for idx, item := range in {
		product, ok := products[item.ProductID]
		if !ok {
			var err error
			product, err = e.catalog.GetProduct(ctx, item.ProductID)
			if err != nil {
				return nil, fmt.Errorf("item[%d] product %s: %w", idx, item.ProductID, err)
			}
			products[item.ProductID] = product
		}

		if product.PartnerID != partner.ID {
			return nil, fmt.Errorf("item[%d] product %s: %w", idx, product.ID, domain.ErrCrossPartnerOrder)
		}
		if !product.Available {
			return nil, fmt.Errorf("item[%d] product %s: %w", idx, product.ID, domain.ErrProductUnavailable)
		}
		price, err := e.prices.Resolve(product, item.Price)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", idx, err)
		}

		items = append(items, domain.OrderItem{
			ProductID: product.ID,
			Quantity:  item.Quantity,
			Price:     price,
		})
	}
	return items, nil
}

// persistNew сохраняет заказ, перевыпуская идентификаторы и токен при коллизии.
func (e *Engine) persistNew(ctx context.Context, customerID, partnerID string, items []domain.OrderItem) (domain.Order, error) {
	now := e.now()
	total := domain.CalculateTotal(items)
	if err := domain.ValidateAmount(total); err != nil {
		return domain.Order{}, fmt.Errorf("order total %s: %w", total.String(), err)
	}

	order := domain.Order{
		CustomerID:  customerID,
		PartnerID:   partnerID,
		Status:      domain.OrderStatusInQueue,
		TotalAmount: total,
		Items:       items,
		CreatedAt:   now,
	}

	for attempt := 1; ; attempt++ {
		order.ID = e.newID()
		order.RedemptionToken = e.newID()
		for i := range order.Items {
			order.Items[i].ID = e.newID()
			order.Items[i].OrderID = order.ID
			order.Items[i].CreatedAt = now
		}

		if errs := order.ValidateInvariants(); len(errs) > 0 {
			return domain.Order{}, errors.Join(errs...)
		}

		err := e.orders.Create(ctx, order)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, domain.ErrConflict) || attempt >= e.maxAttempts {
			return domain.Order{}, fmt.Errorf("persist order: %w", err)
		}

		e.metrics.RecordRetry(opCreate)
		e.logger.WithError(err).WithField("attempt", attempt).Warn("order identifiers collided, regenerating")
	}
}
