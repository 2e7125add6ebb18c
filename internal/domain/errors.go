package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrListingNotFound возвращается, если карточка не найдена в каталоге.
	ErrListingNotFound = errors.New("listing not found")
	// ErrListingUnavailable — карточка существует, но недоступна для заказа.
	ErrListingUnavailable = errors.New("listing unavailable")
	// ErrForbidden — актор не имеет права на операцию с этим заказом.
	ErrForbidden = errors.New("operation forbidden for this actor")
	// ErrInvalidTransition — базовая ошибка недопустимого перехода статуса.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidOperation — операция не применима к текущему состоянию заказа.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrSelfOrder — покупатель не может заказать у самого себя.
	ErrSelfOrder = fmt.Errorf("buyer and seller must differ: %w", ErrInvalidOperation)
	// Ошибка отсутствующего идентификатора покупателя.
	ErrBuyerRequired = errors.New("buyer_id is required")
	// Ошибка отсутствующего идентификатора продавца.
	ErrSellerRequired = errors.New("seller_id is required")
	// Ошибка отсутствующего кода валюты.
	ErrCurrencyRequired = errors.New("currency is required")
	// Ошибка отсутствия хотя бы одной позиции в заказе.
	ErrItemsRequired = errors.New("order must contain at least one item")
	// Ошибка при некорректном количестве (<= 0).
	ErrItemQtyInvalid = errors.New("item qty must be greater than zero")
	// Ошибка, если цена позиции отрицательная.
	ErrItemPriceInvalid = errors.New("item price must be non-negative")
	// Ошибка несоответствия subtotal и сумм позиций.
	ErrSubtotalMismatch = errors.New("order subtotal does not match items sum")
	// Ошибка несоответствия итога формуле ценообразования.
	ErrTotalMismatch = errors.New("order total does not match pricing formula")
	// Ошибка отрицательного итога заказа.
	ErrTotalNegative = errors.New("total_minor must be non-negative")
	// ErrFeeNegative — сборы за доставку и сервис не могут быть отрицательными.
	ErrFeeNegative = fmt.Errorf("fees must be non-negative: %w", ErrInvalidOperation)
	// ErrDiscountInvalid — неизвестный тип скидки, отрицательная величина
	// или процент вне диапазона 0–100.
	ErrDiscountInvalid = fmt.Errorf("discount is invalid: %w", ErrInvalidOperation)
	// ErrOrderVersionConflict сигнализирует о конфликте версий при сохранении.
	ErrOrderVersionConflict = errors.New("order version conflict")
	// ErrOutboxPublish — ошибка при публикации сообщения из outbox.
	ErrOutboxPublish = errors.New("outbox publish failed")
	// ErrIdempotencyKeyRequired — пустой ключ идемпотентности.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired — пустой хеш запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
	// ErrIdempotencyKeyAlreadyExists — ключ уже зарегистрирован.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyKeyNotFound — запись по ключу не найдена.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
	// ErrIdempotencyHashMismatch — тот же ключ, но другое тело запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency request hash mismatch")
)

// InvalidTransitionError уточняет ErrInvalidTransition парой статусов.
type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

// Is позволяет errors.Is(err, ErrInvalidTransition) для типизированной ошибки.
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// IsVersionConflict проверяет, является ли ошибка конфликтом версий.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrOrderVersionConflict)
}

// IsNotFound проверяет ошибки класса «не найдено».
func IsNotFound(err error) bool {
	return errors.Is(err, ErrOrderNotFound) || errors.Is(err, ErrListingNotFound)
}
