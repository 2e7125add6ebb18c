package kafka

import (
	"testing"

	"github.com/IBM/sarama"
	"github.com/stretchr/testify/require"
)

func TestParseOrderEventEnvelope(t *testing.T) {
	message := &sarama.ConsumerMessage{
		Topic: TopicOrderEvents,
		Value: []byte(`{
			"id": "evt-1",
			"aggregate_type": "order",
			"aggregate_id": "order-1",
			"event_type": "OrderStatusChanged",
			"payload": {"order_id": "order-1", "status": "confirmed"},
			"published_at": "2026-08-31T10:00:00Z"
		}`),
	}

	envelope, err := ParseOrderEventEnvelope(message)
	require.NoError(t, err)
	require.Equal(t, "evt-1", envelope.ID)
	require.Equal(t, "order", envelope.AggregateType)
	require.Equal(t, "order-1", envelope.AggregateID)
	require.Equal(t, "OrderStatusChanged", envelope.EventType)
	require.JSONEq(t, `{"order_id":"order-1","status":"confirmed"}`, string(envelope.Payload))
}

func TestParseOrderEventEnvelope_InvalidJSON(t *testing.T) {
	message := &sarama.ConsumerMessage{
		Topic: TopicOrderEvents,
		Value: []byte(`not-json`),
	}

	_, err := ParseOrderEventEnvelope(message)
	require.Error(t, err)
}
