package notifier

import (
	"encoding/json"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/elsoug/orders/internal/domain"
)

// envelope — полезная нагрузка событий заказа, как их пишет сервис заказов.
type envelope struct {
	OrderID     string   `json:"order_id"`
	OrderNumber string   `json:"order_number"`
	Recipients  []string `json:"recipients"`
	Status      string   `json:"status"`
	Note        string   `json:"note"`
	Reason      string   `json:"reason"`
	TS          string   `json:"ts"`
}

// Publisher превращает события заказа в уведомления сторонам сделки.
// Реализует domain.OutboxPublisher, поэтому встаёт напрямую за outbox
// worker, когда Kafka не настроена.
type Publisher struct {
	sink   domain.NotificationSink
	logger *log.Entry
}

// NewPublisher создаёт publisher поверх заданного sink.
func NewPublisher(sink domain.NotificationSink, logger *log.Entry) *Publisher {
	if logger == nil {
		logger = log.WithField("component", "notifier")
	}
	return &Publisher{sink: sink, logger: logger}
}

// Publish разбирает событие и отправляет уведомление каждому получателю.
// Ошибка любого получателя возвращается наружу: outbox worker повторит
// публикацию, а sink обязан быть идемпотентным.
func (p *Publisher) Publish(event domain.OutboxMessage) error {
	var env envelope
	if err := json.Unmarshal(event.Payload, &env); err != nil {
		return fmt.Errorf("decode event payload: %w", err)
	}

	occurred, err := time.Parse(time.RFC3339Nano, env.TS)
	if err != nil {
		occurred = time.Now().UTC()
	}

	for _, recipient := range env.Recipients {
		if recipient == "" {
			continue
		}
		n := domain.Notification{
			RecipientID: recipient,
			OrderID:     env.OrderID,
			OrderNumber: env.OrderNumber,
			Event:       event.EventType,
			Status:      domain.OrderStatus(env.Status),
			Message:     messageFor(event.EventType, env),
			OccurredAt:  occurred,
		}
		if err := p.sink.Send(n); err != nil {
			return fmt.Errorf("send notification to %s: %w", recipient, err)
		}
	}
	return nil
}

// messageFor строит текст уведомления по типу события.
func messageFor(eventType string, env envelope) string {
	switch eventType {
	case "OrderCreated":
		return fmt.Sprintf("new order %s received", env.OrderNumber)
	case "OrderStatusChanged":
		return fmt.Sprintf("order %s is now %s", env.OrderNumber, env.Status)
	case "OrderPaymentUpdated":
		return fmt.Sprintf("payment for order %s updated", env.OrderNumber)
	case "OrderDisputed":
		return fmt.Sprintf("order %s is under dispute", env.OrderNumber)
	case "OrderRefunded":
		return fmt.Sprintf("order %s has been refunded", env.OrderNumber)
	default:
		return fmt.Sprintf("order %s: %s", env.OrderNumber, eventType)
	}
}

var _ domain.OutboxPublisher = (*Publisher)(nil)

// LogSink — sink-заглушка, пишущая уведомления в лог. Реальная доставка
// (SMS/push) подключается отдельной реализацией NotificationSink.
type LogSink struct {
	logger *log.Entry
}

// NewLogSink создаёт лог-sink.
func NewLogSink(logger *log.Entry) *LogSink {
	if logger == nil {
		logger = log.WithField("component", "notification-sink")
	}
	return &LogSink{logger: logger}
}

// Send пишет уведомление в лог. Идемпотентен по построению.
func (s *LogSink) Send(n domain.Notification) error {
	s.logger.WithFields(log.Fields{
		"recipient_id": n.RecipientID,
		"order_id":     n.OrderID,
		"order_number": n.OrderNumber,
		"event":        n.Event,
	}).Info(n.Message)
	return nil
}

var _ domain.NotificationSink = (*LogSink)(nil)
