package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа маркетплейса.
type OrderStatus string

const (
	// OrderStatusInQueue — заказ принят и ждёт, пока партнёр возьмёт его в работу.
	OrderStatusInQueue OrderStatus = "in_queue"
	// OrderStatusInProcess — партнёр собирает заказ.
	OrderStatusInProcess OrderStatus = "in_process"
	// OrderStatusReady — заказ готов к выдаче.
	OrderStatusReady OrderStatus = "ready"
	// OrderStatusCompleted — заказ выдан клиенту (терминальный статус).
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusCancelled — заказ отменён (альтернативный терминальный статус).
	OrderStatusCancelled OrderStatus = "cancelled"
)

// orderProgression задаёт порядок прямого движения заказа.
var orderProgression = map[OrderStatus]int{
	OrderStatusInQueue:   0,
	OrderStatusInProcess: 1,
	OrderStatusReady:     2,
	OrderStatusCompleted: 3,
}

// ParseOrderStatus разбирает статус из внешнего представления.
// Регистр не важен, поэтому "IN_PROCESS" и "in_process" эквивалентны.
func ParseOrderStatus(raw string) (OrderStatus, error) {
	status := OrderStatus(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", ErrOrderStatusInvalid
	}
	return status, nil
}

// Valid сообщает, известен ли статус.
func (s OrderStatus) Valid() bool {
	if s == OrderStatusCancelled {
		return true
	}
	_, ok := orderProgression[s]
	return ok
}

// Terminal сообщает, завершён ли жизненный цикл заказа.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// OrderItem представляет одну позицию заказа. Цена фиксируется на момент создания.
type OrderItem struct {
	ID        string
	OrderID   string
	ProductID string
	Quantity  int32
	Price     decimal.Decimal
	CreatedAt time.Time
}

// Subtotal возвращает стоимость позиции: цена × количество.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt32(i.Quantity))
}

// Order агрегирует заказ клиента у одного партнёра.
type Order struct {
	ID              string
	CustomerID      string
	PartnerID       string
	Status          OrderStatus
	TotalAmount     decimal.Decimal
	RedemptionToken string
	Items           []OrderItem
	Version         int64
	CreatedAt       time.Time
	// UpdatedAt пуст, пока статус ни разу не менялся.
	UpdatedAt *time.Time
}

// CalculateTotal суммирует стоимость позиций.
func CalculateTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	return total
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.CustomerID == "" {
		errs = append(errs, ErrCustomerRequired)
	}
	if o.PartnerID == "" {
		errs = append(errs, ErrPartnerRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.TotalAmount.IsNegative() {
		errs = append(errs, ErrAmountNegative)
	} else if err := ValidateAmount(o.TotalAmount); err != nil {
		errs = append(errs, err)
	}
	if o.RedemptionToken == "" {
		errs = append(errs, ErrRedemptionTokenRequired)
	}

	for _, item := range o.Items {
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		} else if item.Quantity > MaxItemQuantity {
			errs = append(errs, ErrItemQtyTooLarge)
		}
		if err := ValidateAmount(item.Price); err != nil {
			errs = append(errs, err)
		}
	}
	if !CalculateTotal(o.Items).Equal(o.TotalAmount) {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}

// Touch фиксирует момент изменения статуса.
func (o *Order) Touch(at time.Time) {
	at = at.UTC()
	o.UpdatedAt = &at
}

// OrderStats — агрегированные показатели заказов партнёра.
type OrderStats struct {
	TotalOrders     int
	CompletedOrders int
	// Revenue — сумма завершённых заказов.
	Revenue decimal.Decimal
}
