package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
)

// Topics для Kafka.
const (
	TopicOrderEvents     = "elsoug.order.events"
	TopicDeadLetterQueue = "elsoug.dlq" // Dead Letter Queue для failed messages
)

// Kafka headers для retry логики.
const (
	HeaderRetryCount    = "x-retry-count"
	HeaderOriginalTopic = "x-original-topic"
	HeaderErrorMessage  = "x-error-message"
	HeaderFailedAt      = "x-failed-at"
)

// OrderEventEnvelope — конверт outbox-события заказа, как его публикует
// OutboxTopicPublisher.
type OrderEventEnvelope struct {
	ID            string          `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	PublishedAt   time.Time       `json:"published_at"`
}

// ParseOrderEventEnvelope парсит конверт события заказа из сообщения.
func ParseOrderEventEnvelope(message *sarama.ConsumerMessage) (*OrderEventEnvelope, error) {
	var envelope OrderEventEnvelope
	if err := json.Unmarshal(message.Value, &envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal order event envelope: %w", err)
	}
	return &envelope, nil
}
