package domain

import "github.com/shopspring/decimal"

const (
	// MoneyScale: суммы хранятся с точностью до копейки, NUMERIC(12, 2).
	MoneyScale = 2
	// MaxItemQuantity: предел количества в одной позиции заказа.
	MaxItemQuantity = 10000

	maxAmountText = "9999999999.99"
)

// MaxAmount: наибольшая сумма, которую принимает колонка NUMERIC(12, 2).
var MaxAmount = decimal.RequireFromString(maxAmountText)

// ValidateAmount проверяет, что сумму можно сохранить без округления и переполнения.
func ValidateAmount(amount decimal.Decimal) error {
	switch {
	case amount.IsNegative():
		return ErrItemPriceInvalid
	case !amount.Equal(amount.Round(MoneyScale)):
		return ErrAmountPrecision
	case amount.GreaterThan(MaxAmount):
		return ErrAmountTooLarge
	default:
		return nil
	}
}
