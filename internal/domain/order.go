package domain

import "time"

// OrderType определяет, на что оформлен заказ: товар или услуга.
type OrderType string

const (
	// OrderTypeProduct — заказ на товар из каталога.
	OrderTypeProduct OrderType = "product"
	// OrderTypeService — заказ на услугу; количество всегда равно 1.
	OrderTypeService OrderType = "service"
)

// FulfilmentType описывает способ получения заказа.
type FulfilmentType string

const (
	FulfilmentPickup   FulfilmentType = "pickup"
	FulfilmentDelivery FulfilmentType = "delivery"
	FulfilmentShipping FulfilmentType = "shipping"
)

// PaymentMethod — способ оплаты заказа.
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodMobileWallet PaymentMethod = "mobile_wallet"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodBarter       PaymentMethod = "barter"
)

// Valid проверяет, что способ оплаты относится к поддерживаемым.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCard, PaymentMethodMobileWallet,
		PaymentMethodBankTransfer, PaymentMethodBarter:
		return true
	default:
		return false
	}
}

// PaymentStatus — состояние оплаты заказа.
type PaymentStatus string

const (
	PaymentStatusPending       PaymentStatus = "pending"
	PaymentStatusPaid          PaymentStatus = "paid"
	PaymentStatusFailed        PaymentStatus = "failed"
	PaymentStatusRefunded      PaymentStatus = "refunded"
	PaymentStatusPartialRefund PaymentStatus = "partial_refund"
)

// Valid проверяет, что статус оплаты относится к поддерживаемым.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusPaid, PaymentStatusFailed,
		PaymentStatusRefunded, PaymentStatusPartialRefund:
		return true
	default:
		return false
	}
}

// DiscountType — тип скидки: процент от суммы или фиксированная сумма.
type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

// ListingSnapshot — денормализованная копия карточки на момент заказа.
// Благодаря снапшоту исторические заказы остаются читаемыми, даже если
// исходная карточка изменена или удалена.
type ListingSnapshot struct {
	Title       string
	Description string
	ImageURL    string
	Unit        string
}

// OrderItem представляет одну позицию заказа.
type OrderItem struct {
	// ID позиции нужен для однозначной идентификации и аудита.
	ID string
	// ListingID — ссылка на карточку товара/услуги в каталоге (weak reference).
	ListingID string
	// Snapshot фиксирует описание карточки на момент оформления.
	Snapshot ListingSnapshot
	// Qty — количество единиц; для услуг всегда 1.
	Qty int32
	// PriceMinor — цена за единицу на момент заказа в минимальных денежных единицах.
	PriceMinor int64
	// TotalMinor — производное поле price*qty, пересчитывается Recompute.
	TotalMinor int64
	// CreatedAt фиксирует момент добавления позиции в заказ.
	CreatedAt time.Time
}

// Discount описывает скидку на заказ.
type Discount struct {
	Type DiscountType
	// Amount — процент для percentage, сумма в минимальных единицах для fixed.
	Amount int64
	Code   string
	Reason string
}

// Validate проверяет тип и величину скидки: процент держится в диапазоне
// 0–100, фиксированная сумма не может быть отрицательной (отрицательная
// скидка превращалась бы в наценку).
func (d *Discount) Validate() error {
	switch d.Type {
	case DiscountPercentage:
		if d.Amount < 0 || d.Amount > 100 {
			return ErrDiscountInvalid
		}
	case DiscountFixed:
		if d.Amount < 0 {
			return ErrDiscountInvalid
		}
	default:
		return ErrDiscountInvalid
	}
	return nil
}

// DeliveryInfo описывает способ и параметры получения заказа.
type DeliveryInfo struct {
	Type    FulfilmentType
	Address string
	Lat     float64
	Lng     float64
	// WindowFrom/WindowTo — запрошенное покупателем окно получения.
	WindowFrom time.Time
	WindowTo   time.Time
	// EstimatedAt — прогноз доставки, DeliveredAt — фактическое время.
	EstimatedAt time.Time
	DeliveredAt time.Time
}

// PaymentInfo описывает состояние оплаты заказа.
type PaymentInfo struct {
	Method          PaymentMethod
	Status          PaymentStatus
	PaidAmountMinor int64
	PaidAt          time.Time
	TransactionID   string
}

// Rating — одноразовая оценка стороны сделки по завершённому заказу.
type Rating struct {
	Score   int32
	Comment string
	RatedAt time.Time
}

// Cancellation фиксирует обстоятельства отмены и возврата средств.
// Заполняется только при отмене заказа.
type Cancellation struct {
	Reason            string
	ActorID           string
	ActorRole         Role
	RefundAmountMinor int64
	RefundStatus      PaymentStatus
	CancelledAt       time.Time
}

// StatusChange — запись в append-only журнале смен статуса.
type StatusChange struct {
	Status    OrderStatus
	Note      string
	ActorID   string
	ActorRole Role
	Occurred  time.Time
}

// Order агрегирует состояние заказа маркетплейса: стороны, позиции,
// денежные поля, доставку, оплату и журнал статусов.
type Order struct {
	ID     string
	Number string
	Type   OrderType

	// BuyerID и SellerID неизменяемы после создания заказа.
	BuyerID  string
	SellerID string

	Items []OrderItem

	// Денежные поля в минимальных единицах валюты.
	SubtotalMinor    int64
	DeliveryFeeMinor int64
	ServiceFeeMinor  int64
	Discount         *Discount
	TotalMinor       int64
	Currency         string

	Delivery DeliveryInfo
	Payment  PaymentInfo

	Status        OrderStatus
	StatusHistory []StatusChange

	// CustomerRating выставляет продавец покупателю, SellerRating — наоборот.
	CustomerRating *Rating
	SellerRating   *Rating

	Cancellation *Cancellation

	Notes string

	// Version используется для optimistic locking при сохранении.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsParty возвращает true, если пользователь является стороной сделки.
func (o *Order) IsParty(userID string) bool {
	return userID != "" && (userID == o.BuyerID || userID == o.SellerID)
}

// Counterparty возвращает идентификатор второй стороны сделки относительно
// userID; пустая строка, если пользователь не является стороной.
func (o *Order) Counterparty(userID string) string {
	switch userID {
	case o.BuyerID:
		return o.SellerID
	case o.SellerID:
		return o.BuyerID
	default:
		return ""
	}
}

// AppendStatus добавляет запись в журнал статусов. Журнал append-only:
// существующие записи никогда не изменяются.
func (o *Order) AppendStatus(change StatusChange) {
	o.StatusHistory = append(o.StatusHistory, change)
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.BuyerID == "" {
		errs = append(errs, ErrBuyerRequired)
	}
	if o.SellerID == "" {
		errs = append(errs, ErrSellerRequired)
	}
	if o.BuyerID != "" && o.BuyerID == o.SellerID {
		errs = append(errs, ErrSelfOrder)
	}
	if o.Currency == "" {
		errs = append(errs, ErrCurrencyRequired)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.TotalMinor < 0 {
		errs = append(errs, ErrTotalNegative)
	}
	if o.DeliveryFeeMinor < 0 || o.ServiceFeeMinor < 0 {
		errs = append(errs, ErrFeeNegative)
	}
	if o.Discount != nil {
		if err := o.Discount.Validate(); err != nil {
			errs = append(errs, err)
		}
	}

	// Сверяем subtotal с суммой позиций: qty * price.
	var calc int64
	for _, item := range o.Items {
		if item.Qty <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.PriceMinor < 0 {
			errs = append(errs, ErrItemPriceInvalid)
		}
		calc += int64(item.Qty) * item.PriceMinor
	}
	if calc != o.SubtotalMinor {
		errs = append(errs, ErrSubtotalMismatch)
	}

	// Итог должен соответствовать формуле ценообразования с учётом скидки.
	if o.TotalMinor != expectedTotal(o) {
		errs = append(errs, ErrTotalMismatch)
	}

	return errs
}
