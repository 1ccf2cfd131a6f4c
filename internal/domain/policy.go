package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// TransitionPolicy определяет, какие смены статуса допустимы.
type TransitionPolicy string

const (
	// TransitionStrict разрешает только движение вперёд (с пропуском шагов)
	// и отмену из нетерминального статуса.
	TransitionStrict TransitionPolicy = "strict"
	// TransitionPermissive разрешает любой известный статус из любого.
	TransitionPermissive TransitionPolicy = "permissive"
)

// ParseTransitionPolicy разбирает политику из конфигурации.
func ParseTransitionPolicy(raw string) (TransitionPolicy, error) {
	switch p := TransitionPolicy(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return TransitionStrict, nil
	case TransitionStrict, TransitionPermissive:
		return p, nil
	default:
		return "", fmt.Errorf("unknown transition policy %q", raw)
	}
}

// CheckTransition проверяет переход from -> to.
// Повторная установка того же статуса допустима и только обновляет отметку времени.
func (p TransitionPolicy) CheckTransition(from, to OrderStatus) error {
	if !to.Valid() {
		return ErrOrderStatusInvalid
	}
	if p == TransitionPermissive || from == to {
		return nil
	}
	if from.Terminal() {
		return fmt.Errorf("%w: %s -> %s", ErrTransitionFromTerminal, from, to)
	}
	if to == OrderStatusCancelled {
		return nil
	}
	if orderProgression[to] < orderProgression[from] {
		return fmt.Errorf("%w: %s -> %s", ErrTransitionBackwards, from, to)
	}
	return nil
}

// PricePolicy определяет, чья цена попадает в снимок позиции заказа.
type PricePolicy string

const (
	// PriceCatalog требует совпадения цены клиента с текущей ценой каталога.
	PriceCatalog PricePolicy = "catalog"
	// PriceClient доверяет цене, присланной клиентом.
	PriceClient PricePolicy = "client"
)

// ParsePricePolicy разбирает политику из конфигурации.
func ParsePricePolicy(raw string) (PricePolicy, error) {
	switch p := PricePolicy(strings.ToLower(strings.TrimSpace(raw))); p {
	case "":
		return PriceCatalog, nil
	case PriceCatalog, PriceClient:
		return p, nil
	default:
		return "", fmt.Errorf("unknown price policy %q", raw)
	}
}

// Resolve возвращает цену для снимка позиции.
func (p PricePolicy) Resolve(product Product, submitted decimal.Decimal) (decimal.Decimal, error) {
	if err := ValidateAmount(submitted); err != nil {
		return decimal.Zero, err
	}
	if p == PriceClient {
		return submitted, nil
	}
	if !submitted.Equal(product.Price) {
		return decimal.Zero, fmt.Errorf("%w: product %s costs %s, got %s",
			ErrPriceChanged, product.ID, product.Price.StringFixed(2), submitted.StringFixed(2))
	}
	return product.Price, nil
}
