package domain

import "time"

// Listing — карточка товара/услуги, которую возвращает каталог.
// Сервис заказов не владеет каталогом и видит только этот срез.
type Listing struct {
	ID          string
	SellerID    string
	Type        OrderType
	Title       string
	Description string
	ImageURL    string
	Unit        string
	PriceMinor  int64
	Currency    string
	Available   bool
}

// CatalogService описывает взаимодействие с каталогом объявлений.
type CatalogService interface {
	// GetListing возвращает карточку по идентификатору;
	// ErrListingNotFound, если карточки нет.
	GetListing(id string) (Listing, error)
}

// Profile — профиль пользователя в объёме, нужном сервису заказов.
type Profile struct {
	ID      string
	Name    string
	Phone   string
	Address string
	Lat     float64
	Lng     float64
}

// ProfileDirectory описывает доступ к профилям пользователей.
// Используется для подстановки адреса покупателя по умолчанию.
type ProfileDirectory interface {
	GetProfile(id string) (Profile, error)
}

// Notification — уведомление стороне сделки о событии заказа.
type Notification struct {
	RecipientID string
	OrderID     string
	OrderNumber string
	Event       string
	Status      OrderStatus
	Message     string
	OccurredAt  time.Time
}

// NotificationSink — конечная точка доставки уведомлений (SMS/push/лог).
// Реализация обязана быть идемпотентной: одно уведомление может прийти дважды.
type NotificationSink interface {
	Send(n Notification) error
}

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(msg OutboxMessage) (OutboxMessage, error)
	PullPending(limit int) ([]OutboxMessage, error)
	Stats() (OutboxStats, error)
	MarkSent(id string) error
	MarkFailed(id string) error
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(key string) (IdempotencyRecord, error)
	MarkDone(key string, responseBody []byte, httpStatus int) error
	MarkFailed(key string, responseBody []byte, httpStatus int) error
	DeleteExpired(before time.Time, limit int) (int, error)
}

// OutboxMessage хранит данные для публикуемого события.
type OutboxMessage struct {
	ID            string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

// OutboxStats описывает текущее состояние backlog transactional outbox.
type OutboxStats struct {
	PendingCount    int
	OldestPendingAt time.Time
}
