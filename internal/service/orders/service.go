package orders

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/elsoug/orders/internal/domain"
	"github.com/elsoug/orders/internal/metrics"
)

const (
	maxSaveRetries = 3
	retryBaseDelay = 10 * time.Millisecond

	defaultListLimit = 50
	maxListLimit     = 200
)

// CreateOrderItem — запрошенная покупателем позиция будущего заказа.
type CreateOrderItem struct {
	ListingID string
	Qty       int32
}

// CreateOrderRequest — данные для создания заказа.
type CreateOrderRequest struct {
	BuyerID          string
	Items            []CreateOrderItem
	DeliveryType     domain.FulfilmentType
	DeliveryAddress  string
	DeliveryLat      float64
	DeliveryLng      float64
	WindowFrom       time.Time
	WindowTo         time.Time
	PaymentMethod    domain.PaymentMethod
	DeliveryFeeMinor int64
	ServiceFeeMinor  int64
	Discount         *domain.Discount
	Notes            string
}

// PaymentUpdate — изменение платёжных данных заказа вне жизненного цикла.
type PaymentUpdate struct {
	Status          domain.PaymentStatus
	TransactionID   string
	PaidAmountMinor int64
}

// Service реализует прикладные операции над заказами: создание, смену
// статуса, платёжные обновления, оценки и административные операции.
type Service struct {
	orders   domain.OrderRepository
	outbox   domain.OutboxRepository
	catalog  domain.CatalogService
	profiles domain.ProfileDirectory
	logger   *log.Entry
	metrics  *metrics.OrderMetrics
	now      func() time.Time
}

// NewService создаёт рабочий экземпляр сервиса заказов.
func NewService(
	orders domain.OrderRepository,
	outbox domain.OutboxRepository,
	catalog domain.CatalogService,
	profiles domain.ProfileDirectory,
	logger *log.Entry,
) *Service {
	if logger == nil {
		logger = log.WithField("component", "orders-service")
	}
	return &Service{
		orders:   orders,
		outbox:   outbox,
		catalog:  catalog,
		profiles: profiles,
		logger:   logger,
		metrics:  metrics.NewOrderMetrics(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// NewServiceWithoutMetrics создаёт сервис без метрик (для тестов).
func NewServiceWithoutMetrics(
	orders domain.OrderRepository,
	outbox domain.OutboxRepository,
	catalog domain.CatalogService,
	profiles domain.ProfileDirectory,
	logger *log.Entry,
) *Service {
	svc := NewService(orders, outbox, catalog, profiles, logger)
	svc.metrics = nil
	return svc
}

// CreateOrder резолвит позиции через каталог, применяет значения по
// умолчанию, пересчитывает деньги и сохраняет новый заказ в статусе pending.
// Продавец получает уведомление через outbox после успешной записи.
func (s *Service) CreateOrder(req CreateOrderRequest) (domain.Order, error) {
	start := s.now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordCreateDuration(time.Since(start))
		}
	}()

	if req.BuyerID == "" {
		return domain.Order{}, domain.ErrBuyerRequired
	}
	if len(req.Items) == 0 {
		return domain.Order{}, domain.ErrItemsRequired
	}
	// Денежные поля приходят от покупателя и проверяются до каталога.
	if req.DeliveryFeeMinor < 0 || req.ServiceFeeMinor < 0 {
		return domain.Order{}, domain.ErrFeeNegative
	}
	if req.Discount != nil {
		if err := req.Discount.Validate(); err != nil {
			return domain.Order{}, err
		}
	}

	now := s.now()
	order := domain.Order{
		ID:               uuid.NewString(),
		Number:           domain.NewOrderNumber(now),
		BuyerID:          req.BuyerID,
		DeliveryFeeMinor: req.DeliveryFeeMinor,
		ServiceFeeMinor:  req.ServiceFeeMinor,
		Discount:         req.Discount,
		Notes:            req.Notes,
		Status:           domain.OrderStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	order.Payment.Method = req.PaymentMethod
	if order.Payment.Method == "" {
		order.Payment.Method = domain.PaymentMethodCash
	}
	if !order.Payment.Method.Valid() {
		return domain.Order{}, fmt.Errorf("payment method %q: %w", order.Payment.Method, domain.ErrInvalidOperation)
	}
	order.Payment.Status = domain.PaymentStatusPending

	order.Delivery = domain.DeliveryInfo{
		Type:       req.DeliveryType,
		Address:    req.DeliveryAddress,
		Lat:        req.DeliveryLat,
		Lng:        req.DeliveryLng,
		WindowFrom: req.WindowFrom,
		WindowTo:   req.WindowTo,
	}
	if order.Delivery.Type == "" {
		order.Delivery.Type = domain.FulfilmentPickup
	}

	for _, item := range req.Items {
		listing, err := s.catalog.GetListing(item.ListingID)
		if err != nil {
			return domain.Order{}, fmt.Errorf("resolve listing %s: %w", item.ListingID, err)
		}
		if !listing.Available {
			return domain.Order{}, fmt.Errorf("listing %s: %w", item.ListingID, domain.ErrListingUnavailable)
		}
		if listing.SellerID == req.BuyerID {
			return domain.Order{}, domain.ErrSelfOrder
		}
		if order.SellerID == "" {
			order.SellerID = listing.SellerID
			order.Currency = listing.Currency
			order.Type = listing.Type
		}
		// Заказ оформляется у одного продавца в одной валюте.
		if listing.SellerID != order.SellerID || listing.Currency != order.Currency {
			return domain.Order{}, fmt.Errorf("items span multiple sellers or currencies: %w", domain.ErrInvalidOperation)
		}

		qty := item.Qty
		if listing.Type == domain.OrderTypeService {
			qty = 1
		}
		if qty <= 0 {
			return domain.Order{}, domain.ErrItemQtyInvalid
		}

		order.Items = append(order.Items, domain.OrderItem{
			ID:        uuid.NewString(),
			ListingID: listing.ID,
			Snapshot: domain.ListingSnapshot{
				Title:       listing.Title,
				Description: listing.Description,
				ImageURL:    listing.ImageURL,
				Unit:        listing.Unit,
			},
			Qty:        qty,
			PriceMinor: listing.PriceMinor,
			CreatedAt:  now,
		})
	}

	s.applyDeliveryDefaults(&order)
	domain.Recompute(&order)

	order.AppendStatus(domain.StatusChange{
		Status:    domain.OrderStatusPending,
		Note:      "order created",
		ActorID:   req.BuyerID,
		ActorRole: domain.RoleBuyer,
		Occurred:  now,
	})

	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, errs[0]
	}

	if err := s.orders.Create(order); err != nil {
		return domain.Order{}, fmt.Errorf("persist order: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordOrderCreated()
	}
	s.logger.WithFields(log.Fields{
		"order_id":     order.ID,
		"order_number": order.Number,
		"buyer_id":     order.BuyerID,
		"seller_id":    order.SellerID,
	}).Info("order created")

	s.emitEvent(&order, "OrderCreated", []string{order.SellerID}, map[string]interface{}{
		"buyer_id":    order.BuyerID,
		"total_minor": order.TotalMinor,
		"currency":    order.Currency,
	})

	return order, nil
}

// applyDeliveryDefaults подставляет адрес из профиля покупателя, если
// способ получения требует адреса, а покупатель его не указал.
func (s *Service) applyDeliveryDefaults(order *domain.Order) {
	if order.Delivery.Type == domain.FulfilmentPickup || order.Delivery.Address != "" {
		return
	}
	if s.profiles == nil {
		return
	}
	profile, err := s.profiles.GetProfile(order.BuyerID)
	if err != nil {
		s.logger.WithError(err).WithField("buyer_id", order.BuyerID).Debug("buyer profile not resolved, keeping empty address")
		return
	}
	order.Delivery.Address = profile.Address
	order.Delivery.Lat = profile.Lat
	order.Delivery.Lng = profile.Lng
}

// Transition переводит заказ в целевой статус от имени актора.
// Конфликт версий при сохранении разрешается перезагрузкой заказа и
// повторной валидацией перехода с exponential backoff.
func (s *Service) Transition(actor domain.Actor, orderID string, target domain.OrderStatus, note string) (domain.Order, error) {
	start := s.now()
	defer func() {
		if s.metrics != nil {
			s.metrics.RecordTransitionDuration(time.Since(start))
		}
	}()

	order, err := s.mutateWithRetry(orderID, func(o *domain.Order) error {
		return o.ApplyTransition(actor, target, note, s.now())
	})
	if err != nil {
		if s.metrics != nil {
			s.metrics.RecordTransitionRejected(rejectionReason(err))
		}
		return domain.Order{}, err
	}

	if s.metrics != nil {
		s.metrics.RecordTransition(string(target))
	}
	s.logger.WithFields(log.Fields{
		"order_id": order.ID,
		"status":   target,
		"actor_id": actor.ID,
	}).Info("order status changed")

	s.emitEvent(&order, "OrderStatusChanged", s.recipients(&order, actor), map[string]interface{}{
		"status": string(target),
		"note":   note,
	})

	return order, nil
}

// UpdatePayment записывает платёжное событие в заказ. Оплату подтверждает
// продавец или админ; жизненный цикл заказа при этом не меняется.
func (s *Service) UpdatePayment(actor domain.Actor, orderID string, update PaymentUpdate) (domain.Order, error) {
	if !update.Status.Valid() {
		return domain.Order{}, fmt.Errorf("payment status %q: %w", update.Status, domain.ErrInvalidOperation)
	}

	order, err := s.mutateWithRetry(orderID, func(o *domain.Order) error {
		if actor.Role != domain.RoleAdmin && actor.ID != o.SellerID {
			return domain.ErrForbidden
		}
		if o.Status == domain.OrderStatusCancelled || o.Status == domain.OrderStatusRefunded {
			return fmt.Errorf("payment update on %s order: %w", o.Status, domain.ErrInvalidOperation)
		}

		now := s.now()
		o.Payment.Status = update.Status
		o.Payment.TransactionID = update.TransactionID
		if update.Status == domain.PaymentStatusPaid {
			amount := update.PaidAmountMinor
			if amount <= 0 {
				amount = o.TotalMinor
			}
			o.Payment.PaidAmountMinor = amount
			o.Payment.PaidAt = now
		}
		o.UpdatedAt = now
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.logger.WithFields(log.Fields{
		"order_id":       order.ID,
		"payment_status": order.Payment.Status,
	}).Info("order payment updated")

	s.emitEvent(&order, "OrderPaymentUpdated", s.recipients(&order, actor), map[string]interface{}{
		"payment_status": string(order.Payment.Status),
	})

	return order, nil
}

// RateOrder сохраняет одноразовую оценку стороны сделки по завершённому
// заказу: покупатель оценивает продавца, продавец — покупателя.
func (s *Service) RateOrder(actor domain.Actor, orderID string, score int32, comment string) (domain.Order, error) {
	if score < 1 || score > 5 {
		return domain.Order{}, fmt.Errorf("rating score must be 1..5: %w", domain.ErrInvalidOperation)
	}

	return s.mutateWithRetry(orderID, func(o *domain.Order) error {
		if !o.IsParty(actor.ID) {
			return domain.ErrForbidden
		}
		if o.Status != domain.OrderStatusCompleted {
			return fmt.Errorf("rating allowed only for completed orders: %w", domain.ErrInvalidOperation)
		}

		rating := &domain.Rating{Score: score, Comment: comment, RatedAt: s.now()}
		switch actor.ID {
		case o.BuyerID:
			if o.SellerRating != nil {
				return fmt.Errorf("seller already rated: %w", domain.ErrInvalidOperation)
			}
			o.SellerRating = rating
		case o.SellerID:
			if o.CustomerRating != nil {
				return fmt.Errorf("customer already rated: %w", domain.ErrInvalidOperation)
			}
			o.CustomerRating = rating
		}
		o.UpdatedAt = rating.RatedAt
		return nil
	})
}

// MarkDisputed переводит заказ в состояние спора. Административная
// операция; доступна после передачи заказа в доставку.
func (s *Service) MarkDisputed(actor domain.Actor, orderID, reason string) (domain.Order, error) {
	if actor.Role != domain.RoleAdmin {
		return domain.Order{}, domain.ErrForbidden
	}

	order, err := s.mutateWithRetry(orderID, func(o *domain.Order) error {
		switch o.Status {
		case domain.OrderStatusShipped, domain.OrderStatusDelivered, domain.OrderStatusCompleted:
		default:
			return &domain.InvalidTransitionError{From: o.Status, To: domain.OrderStatusDisputed}
		}
		now := s.now()
		o.Status = domain.OrderStatusDisputed
		o.UpdatedAt = now
		o.AppendStatus(domain.StatusChange{
			Status:    domain.OrderStatusDisputed,
			Note:      reason,
			ActorID:   actor.ID,
			ActorRole: domain.RoleAdmin,
			Occurred:  now,
		})
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.emitEvent(&order, "OrderDisputed", []string{order.BuyerID, order.SellerID}, map[string]interface{}{
		"reason": reason,
	})
	return order, nil
}

// MarkRefunded фиксирует возврат средств по отменённому или спорному
// заказу. Административная операция; требует оплаченного платежа.
func (s *Service) MarkRefunded(actor domain.Actor, orderID string, amountMinor int64, reason string) (domain.Order, error) {
	if actor.Role != domain.RoleAdmin {
		return domain.Order{}, domain.ErrForbidden
	}

	order, err := s.mutateWithRetry(orderID, func(o *domain.Order) error {
		if o.Status != domain.OrderStatusCancelled && o.Status != domain.OrderStatusDisputed {
			return &domain.InvalidTransitionError{From: o.Status, To: domain.OrderStatusRefunded}
		}
		if o.Payment.Status != domain.PaymentStatusPaid && o.Payment.Status != domain.PaymentStatusPartialRefund {
			return fmt.Errorf("refund requires a paid order: %w", domain.ErrInvalidOperation)
		}

		if amountMinor <= 0 || amountMinor > o.TotalMinor {
			amountMinor = o.TotalMinor
		}

		now := s.now()
		o.Status = domain.OrderStatusRefunded
		o.Payment.Status = domain.PaymentStatusRefunded
		if o.Cancellation == nil {
			o.Cancellation = &domain.Cancellation{
				Reason:      reason,
				ActorID:     actor.ID,
				ActorRole:   domain.RoleAdmin,
				CancelledAt: now,
			}
		}
		o.Cancellation.RefundAmountMinor = amountMinor
		o.Cancellation.RefundStatus = domain.PaymentStatusRefunded
		o.UpdatedAt = now
		o.AppendStatus(domain.StatusChange{
			Status:    domain.OrderStatusRefunded,
			Note:      reason,
			ActorID:   actor.ID,
			ActorRole: domain.RoleAdmin,
			Occurred:  now,
		})
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	s.emitEvent(&order, "OrderRefunded", []string{order.BuyerID, order.SellerID}, map[string]interface{}{
		"amount_minor": order.Cancellation.RefundAmountMinor,
		"reason":       reason,
	})
	return order, nil
}

// Get возвращает заказ стороне сделки или админу.
func (s *Service) Get(actor domain.Actor, orderID string) (domain.Order, error) {
	order, err := s.orders.Get(orderID)
	if err != nil {
		return domain.Order{}, err
	}
	if actor.Role != domain.RoleAdmin && !order.IsParty(actor.ID) {
		return domain.Order{}, domain.ErrForbidden
	}
	return order, nil
}

// ListMine возвращает заказы актора: по умолчанию как покупателя,
// при asSeller — как продавца.
func (s *Service) ListMine(actor domain.Actor, asSeller bool, limit int) ([]domain.Order, error) {
	limit = clampLimit(limit)
	if asSeller {
		return s.orders.ListBySeller(actor.ID, limit)
	}
	return s.orders.ListByBuyer(actor.ID, limit)
}

// ListAll возвращает заказы по фильтру; только для админа.
func (s *Service) ListAll(actor domain.Actor, filter domain.OrderFilter) ([]domain.Order, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, domain.ErrForbidden
	}
	filter.Limit = clampLimit(filter.Limit)
	return s.orders.List(filter)
}

// mutateWithRetry загружает заказ, применяет mutate и сохраняет результат.
// Конфликт версий разрешается перезагрузкой свежей копии и повторным
// применением mutate: валидации внутри mutate выполняются заново против
// актуального состояния.
func (s *Service) mutateWithRetry(orderID string, mutate func(*domain.Order) error) (domain.Order, error) {
	for attempt := 0; attempt < maxSaveRetries; attempt++ {
		order, err := s.orders.Get(orderID)
		if err != nil {
			return domain.Order{}, err
		}

		if err := mutate(&order); err != nil {
			return domain.Order{}, err
		}

		if err := s.orders.Save(order); err != nil {
			if domain.IsVersionConflict(err) && attempt < maxSaveRetries-1 {
				if s.metrics != nil {
					s.metrics.RecordVersionConflict()
				}
				s.logger.WithFields(log.Fields{
					"order_id": orderID,
					"attempt":  attempt + 1,
				}).Warn("version conflict detected, retrying")
				time.Sleep(retryBaseDelay * time.Duration(1<<uint(attempt)))
				continue
			}
			return domain.Order{}, fmt.Errorf("save order: %w", err)
		}

		order.Version++
		return order, nil
	}
	return domain.Order{}, domain.ErrOrderVersionConflict
}

// recipients возвращает получателей уведомления: противоположную сторону
// сделки, а для административных действий — обе стороны.
func (s *Service) recipients(order *domain.Order, actor domain.Actor) []string {
	if actor.Role == domain.RoleAdmin && !order.IsParty(actor.ID) {
		return []string{order.BuyerID, order.SellerID}
	}
	if other := order.Counterparty(actor.ID); other != "" {
		return []string{other}
	}
	return []string{order.BuyerID, order.SellerID}
}

// emitEvent ставит событие заказа в transactional outbox. Вызывается
// только после успешной записи заказа, поэтому сбой уведомления не может
// откатить состояние заказа.
func (s *Service) emitEvent(order *domain.Order, eventType string, recipients []string, payload map[string]interface{}) {
	if s.outbox == nil {
		return
	}
	if payload == nil {
		payload = make(map[string]interface{})
	}
	payload["order_id"] = order.ID
	payload["order_number"] = order.Number
	payload["recipients"] = recipients
	payload["ts"] = s.now().Format(time.RFC3339Nano)

	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("marshal event failed")
		return
	}

	msg := domain.OutboxMessage{
		AggregateType: "order",
		AggregateID:   order.ID,
		EventType:     eventType,
		Payload:       data,
	}
	if _, err := s.outbox.Enqueue(msg); err != nil {
		s.logger.WithError(err).WithFields(log.Fields{
			"order_id": order.ID,
			"event":    eventType,
		}).Error("enqueue event failed")
		return
	}
	if s.metrics != nil {
		s.metrics.RecordNotificationQueued()
	}
}

func rejectionReason(err error) string {
	switch {
	case domain.IsNotFound(err):
		return "not_found"
	case domain.IsVersionConflict(err):
		return "version_conflict"
	case errors.Is(err, domain.ErrForbidden):
		return "forbidden"
	case errors.Is(err, domain.ErrInvalidTransition):
		return "invalid_transition"
	default:
		return "other"
	}
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}
