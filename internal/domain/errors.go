package domain

import (
	"errors"
	"fmt"
)

// Базовые виды ошибок. Конкретные ошибки оборачивают один из них,
// поэтому транспортный слой классифицирует ответ через errors.Is.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrConflict        = errors.New("conflict")
)

var (
	// Ошибка отсутствующего идентификатора клиента.
	ErrCustomerRequired = fmt.Errorf("%w: customer_id is required", ErrInvalidRequest)
	// Ошибка отсутствующего идентификатора партнёра.
	ErrPartnerRequired = fmt.Errorf("%w: partner_id is required", ErrInvalidRequest)
	// Ошибка отсутствия хотя бы одного товара в заказе.
	ErrItemsRequired = fmt.Errorf("%w: order must contain at least one item", ErrInvalidRequest)
	// Ошибка отрицательной суммы заказа.
	ErrAmountNegative = fmt.Errorf("%w: total_amount must be non-negative", ErrInvalidRequest)
	// Ошибка при некорректном количестве товара (<= 0).
	ErrItemQtyInvalid = fmt.Errorf("%w: item quantity must be greater than zero", ErrInvalidRequest)
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = fmt.Errorf("%w: item price must be non-negative", ErrInvalidRequest)
	// ErrItemQtyTooLarge: количество в позиции выше MaxItemQuantity.
	ErrItemQtyTooLarge = fmt.Errorf("%w: item quantity must not exceed %d", ErrInvalidRequest, MaxItemQuantity)
	// ErrAmountPrecision: сумма точнее копейки.
	ErrAmountPrecision = fmt.Errorf("%w: amount must have at most %d decimal places", ErrInvalidRequest, MoneyScale)
	// ErrAmountTooLarge: сумма не помещается в хранилище.
	ErrAmountTooLarge = fmt.Errorf("%w: amount must not exceed %s", ErrInvalidRequest, maxAmountText)
	// Ошибка несоответствия суммы заказа и сумм позиций.
	ErrAmountMismatch = fmt.Errorf("%w: order amount does not match items sum", ErrInvalidRequest)
	// Ошибка пустого токена выдачи.
	ErrRedemptionTokenRequired = fmt.Errorf("%w: redemption token is required", ErrInvalidRequest)
	// ErrOrderStatusInvalid — неизвестный статус заказа.
	ErrOrderStatusInvalid = fmt.Errorf("%w: invalid order status", ErrInvalidRequest)
	// ErrTransitionFromTerminal — попытка сменить статус завершённого заказа.
	ErrTransitionFromTerminal = fmt.Errorf("%w: order is already finalized", ErrInvalidRequest)
	// ErrTransitionBackwards — попытка вернуть заказ на предыдущий шаг.
	ErrTransitionBackwards = fmt.Errorf("%w: status cannot move backwards", ErrInvalidRequest)
	// ErrCrossPartnerOrder — товар принадлежит другому партнёру.
	ErrCrossPartnerOrder = fmt.Errorf("%w: product does not belong to this partner", ErrInvalidRequest)
	// ErrProductUnavailable — товар снят с продажи.
	ErrProductUnavailable = fmt.Errorf("%w: product is not available", ErrInvalidRequest)
	// ErrPriceChanged — цена клиента не совпадает с каталогом.
	ErrPriceChanged = fmt.Errorf("%w: price changed", ErrInvalidRequest)
	// ErrOnlyCompletedDeletable — удалять можно только завершённые заказы.
	ErrOnlyCompletedDeletable = fmt.Errorf("%w: can only delete completed orders", ErrInvalidRequest)
	// ErrProductNameRequired — пустое имя товара.
	ErrProductNameRequired = fmt.Errorf("%w: product name is required", ErrInvalidRequest)
	// ErrPartnerNameRequired — пустое название партнёра.
	ErrPartnerNameRequired = fmt.Errorf("%w: partner name is required", ErrInvalidRequest)
	// ErrPromotionTitleRequired — пустой заголовок акции.
	ErrPromotionTitleRequired = fmt.Errorf("%w: promotion title is required", ErrInvalidRequest)
	// ErrDiscountInvalid — скидка вне диапазона 0..100 или точнее сотых.
	ErrDiscountInvalid = fmt.Errorf("%w: discount_percent must be between 0 and 100 with at most 2 decimal places", ErrInvalidRequest)

	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = fmt.Errorf("order %w", ErrNotFound)
	// ErrPartnerNotFound — партнёр отсутствует.
	ErrPartnerNotFound = fmt.Errorf("partner %w", ErrNotFound)
	// ErrProductNotFound — товар отсутствует.
	ErrProductNotFound = fmt.Errorf("product %w", ErrNotFound)
	// ErrPromotionNotFound — акция отсутствует.
	ErrPromotionNotFound = fmt.Errorf("promotion %w", ErrNotFound)
	// ErrUserNotFound — пользователь отсутствует.
	ErrUserNotFound = fmt.Errorf("user %w", ErrNotFound)

	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = fmt.Errorf("%w: order version conflict", ErrConflict)
	// ErrDuplicateKey — нарушена уникальность (id, токен выдачи, email).
	ErrDuplicateKey = fmt.Errorf("%w: duplicate key", ErrConflict)

	// ErrRoleRequired — роль вызывающего не подходит для операции.
	ErrRoleRequired = fmt.Errorf("%w: role is not allowed", ErrForbidden)
	// ErrNotOwner — чужой заказ.
	ErrNotOwner = fmt.Errorf("%w: access to another user's order", ErrForbidden)

	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")

	// ErrIdempotencyKeyRequired — пустой Idempotency-Key.
	ErrIdempotencyKeyRequired = fmt.Errorf("%w: idempotency key is required", ErrInvalidRequest)
	// ErrIdempotencyRequestHashRequired — пустой хеш запроса.
	ErrIdempotencyRequestHashRequired = fmt.Errorf("%w: idempotency request hash is required", ErrInvalidRequest)
	// ErrIdempotencyKeyNotFound — ключ не найден.
	ErrIdempotencyKeyNotFound = fmt.Errorf("idempotency key %w", ErrNotFound)
	// ErrIdempotencyKeyAlreadyExists — ключ уже используется.
	ErrIdempotencyKeyAlreadyExists = fmt.Errorf("%w: idempotency key already exists", ErrConflict)
	// ErrIdempotencyHashMismatch — тот же ключ пришёл с другим телом.
	ErrIdempotencyHashMismatch = fmt.Errorf("%w: idempotency key reused with another request", ErrConflict)
)

// ErrorKind — вид ошибки для внешнего представления.
type ErrorKind string

const (
	KindUnauthenticated ErrorKind = "unauthenticated"
	KindForbidden       ErrorKind = "forbidden"
	KindNotFound        ErrorKind = "not_found"
	KindInvalidRequest  ErrorKind = "invalid_request"
	KindConflict        ErrorKind = "conflict"
	KindInternal        ErrorKind = "internal"
)

// KindOf классифицирует ошибку. Неизвестные ошибки считаются внутренними.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthenticated):
		return KindUnauthenticated
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidRequest):
		return KindInvalidRequest
	case errors.Is(err, ErrConflict):
		return KindConflict
	default:
		return KindInternal
	}
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// IsIdempotencyConflict сообщает о повторном использовании ключа идемпотентности.
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}
