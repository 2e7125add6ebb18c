package domain

import "time"

// OrderStatus описывает жизненный цикл заказа на маркетплейсе.
type OrderStatus string

const (
	// OrderStatusPending — заказ создан и ждёт подтверждения продавца.
	OrderStatusPending OrderStatus = "pending"
	// OrderStatusConfirmed — продавец подтвердил заказ.
	OrderStatusConfirmed OrderStatus = "confirmed"
	// OrderStatusProcessing — продавец собирает/готовит заказ.
	OrderStatusProcessing OrderStatus = "processing"
	// OrderStatusShipped — заказ передан в доставку.
	OrderStatusShipped OrderStatus = "shipped"
	// OrderStatusDelivered — покупатель подтвердил получение.
	OrderStatusDelivered OrderStatus = "delivered"
	// OrderStatusCompleted — сделка завершена; терминальный статус.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusCancelled — заказ отменён до завершения; терминальный статус.
	OrderStatusCancelled OrderStatus = "cancelled"
	// OrderStatusRefunded — средства возвращены; достижим только через
	// административную операцию, не через обычный transition.
	OrderStatusRefunded OrderStatus = "refunded"
	// OrderStatusDisputed — по заказу открыт спор; достижим только через
	// административную операцию, не через обычный transition.
	OrderStatusDisputed OrderStatus = "disputed"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCompleted,
		OrderStatusCancelled, OrderStatusRefunded, OrderStatusDisputed:
		return true
	default:
		return false
	}
}

// Terminal возвращает true для статусов без исходящих переходов.
func (s OrderStatus) Terminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusCancelled, OrderStatusRefunded, OrderStatusDisputed:
		return true
	default:
		return false
	}
}

// Role — роль действующего лица относительно заказа.
type Role string

const (
	RoleBuyer  Role = "buyer"
	RoleSeller Role = "seller"
	RoleAdmin  Role = "admin"
)

// Valid проверяет, что роль относится к поддерживаемым значениям.
func (r Role) Valid() bool {
	switch r {
	case RoleBuyer, RoleSeller, RoleAdmin:
		return true
	default:
		return false
	}
}

// Actor — аутентифицированное действующее лицо операции.
// Идентификатор и роль поступают из внешнего слоя аутентификации.
type Actor struct {
	ID   string
	Role Role
}

// legalTransitions — таблица допустимых переходов как данные, а не ветвления.
// refunded и disputed намеренно отсутствуют среди целевых статусов:
// в них переводят только административные операции.
var legalTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusCancelled},
	OrderStatusDelivered:  {OrderStatusCompleted},
	OrderStatusCompleted:  {},
	OrderStatusCancelled:  {},
}

// transitionPolicy — декларативная таблица «кто может перевести заказ в
// целевой статус». Проверяется отдельно от легальности перехода.
var transitionPolicy = map[OrderStatus][]Role{
	OrderStatusConfirmed:  {RoleSeller, RoleAdmin},
	OrderStatusProcessing: {RoleSeller, RoleAdmin},
	OrderStatusShipped:    {RoleSeller, RoleAdmin},
	OrderStatusDelivered:  {RoleBuyer, RoleAdmin},
	OrderStatusCompleted:  {RoleBuyer, RoleSeller, RoleAdmin},
	OrderStatusCancelled:  {RoleBuyer, RoleSeller, RoleAdmin},
}

// CanTransition возвращает true, если переход from -> to есть в таблице.
func CanTransition(from, to OrderStatus) bool {
	for _, next := range legalTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// AllowedNext возвращает копию списка допустимых следующих статусов.
func AllowedNext(from OrderStatus) []OrderStatus {
	next := legalTransitions[from]
	result := make([]OrderStatus, len(next))
	copy(result, next)
	return result
}

// roleAllowed проверяет роль по таблице transitionPolicy.
func roleAllowed(target OrderStatus, role Role) bool {
	for _, allowed := range transitionPolicy[target] {
		if allowed == role {
			return true
		}
	}
	return false
}

// resolveRole возвращает фактическую роль актора относительно заказа.
// Админ остаётся админом; остальные должны быть стороной сделки.
func (o *Order) resolveRole(actor Actor) (Role, error) {
	if actor.Role == RoleAdmin {
		return RoleAdmin, nil
	}
	switch actor.ID {
	case o.BuyerID:
		return RoleBuyer, nil
	case o.SellerID:
		return RoleSeller, nil
	default:
		return "", ErrForbidden
	}
}

// ApplyTransition валидирует и применяет смену статуса заказа.
//
// Порядок проверок: принадлежность актора к сделке, легальность перехода
// по таблице, ролевая политика целевого статуса, ограничения отмены.
// До первой записи в заказ не вносится ни одного изменения: при ошибке
// заказ остаётся нетронутым.
//
// Побочные эффекты при успехе: статус обновлён, в журнал добавлена запись,
// при отмене заполняется Cancellation, при завершении наличного заказа
// оплата помечается как полученная.
func (o *Order) ApplyTransition(actor Actor, target OrderStatus, note string, now time.Time) error {
	role, err := o.resolveRole(actor)
	if err != nil {
		return err
	}

	if !target.Valid() || !CanTransition(o.Status, target) {
		return &InvalidTransitionError{From: o.Status, To: target}
	}

	if !roleAllowed(target, role) {
		return ErrForbidden
	}

	if target == OrderStatusCancelled {
		// Защита в глубину: из delivered/completed отмена невозможна и по
		// таблице, но проверка существует независимо, чтобы пережить будущие
		// правки таблицы.
		if o.Status == OrderStatusDelivered || o.Status == OrderStatusCompleted {
			return &InvalidTransitionError{From: o.Status, To: target}
		}
		// Стороны сделки могут отменить заказ только до начала исполнения;
		// более поздняя отмена остаётся административной операцией.
		if role != RoleAdmin && o.Status != OrderStatusPending && o.Status != OrderStatusConfirmed {
			return ErrForbidden
		}
	}

	o.Status = target
	o.UpdatedAt = now
	o.AppendStatus(StatusChange{
		Status:    target,
		Note:      note,
		ActorID:   actor.ID,
		ActorRole: role,
		Occurred:  now,
	})

	switch target {
	case OrderStatusCancelled:
		o.Cancellation = &Cancellation{
			Reason:      note,
			ActorID:     actor.ID,
			ActorRole:   role,
			CancelledAt: now,
		}
	case OrderStatusDelivered:
		o.Delivery.DeliveredAt = now
	case OrderStatusCompleted:
		// Наличный заказ считается оплаченным в момент завершения; остальные
		// способы оплаты подтверждаются отдельным платёжным событием.
		if o.Payment.Method == PaymentMethodCash && o.Payment.Status != PaymentStatusPaid {
			o.Payment.Status = PaymentStatusPaid
			o.Payment.PaidAmountMinor = o.TotalMinor
			o.Payment.PaidAt = now
		}
	}

	return nil
}
