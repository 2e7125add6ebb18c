package notifier_test

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/elsoug/orders/internal/domain"
	"github.com/elsoug/orders/internal/service/notifier"
)

func loggerForTests() *logrus.Entry {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	return logger.WithField("component", "test")
}

type captureSink struct {
	sent    []domain.Notification
	failFor string
}

func (s *captureSink) Send(n domain.Notification) error {
	if s.failFor != "" && n.RecipientID == s.failFor {
		return errors.New("delivery failed")
	}
	s.sent = append(s.sent, n)
	return nil
}

func TestPublisher_FanOutPerRecipient(t *testing.T) {
	sink := &captureSink{}
	publisher := notifier.NewPublisher(sink, loggerForTests())

	err := publisher.Publish(domain.OutboxMessage{
		EventType: "OrderStatusChanged",
		Payload:   []byte(`{"order_id":"order-1","order_number":"ELS-20260831-ABCDEF01","recipients":["buyer-1","seller-1"],"status":"confirmed","ts":"2026-08-31T10:00:00Z"}`),
	})
	require.NoError(t, err)
	require.Len(t, sink.sent, 2)

	first := sink.sent[0]
	require.Equal(t, "buyer-1", first.RecipientID)
	require.Equal(t, "order-1", first.OrderID)
	require.Equal(t, "ELS-20260831-ABCDEF01", first.OrderNumber)
	require.Equal(t, domain.OrderStatusConfirmed, first.Status)
	require.Equal(t, "order ELS-20260831-ABCDEF01 is now confirmed", first.Message)
	require.Equal(t, "seller-1", sink.sent[1].RecipientID)
}

func TestPublisher_MessageTexts(t *testing.T) {
	cases := []struct {
		event string
		want  string
	}{
		{"OrderCreated", "new order ELS-1 received"},
		{"OrderPaymentUpdated", "payment for order ELS-1 updated"},
		{"OrderDisputed", "order ELS-1 is under dispute"},
		{"OrderRefunded", "order ELS-1 has been refunded"},
		{"SomethingElse", "order ELS-1: SomethingElse"},
	}

	for _, tc := range cases {
		sink := &captureSink{}
		publisher := notifier.NewPublisher(sink, loggerForTests())

		err := publisher.Publish(domain.OutboxMessage{
			EventType: tc.event,
			Payload:   []byte(`{"order_number":"ELS-1","recipients":["buyer-1"]}`),
		})
		require.NoError(t, err)
		require.Len(t, sink.sent, 1)
		require.Equal(t, tc.want, sink.sent[0].Message)
	}
}

func TestPublisher_Failures(t *testing.T) {
	sink := &captureSink{failFor: "seller-1"}
	publisher := notifier.NewPublisher(sink, loggerForTests())

	err := publisher.Publish(domain.OutboxMessage{
		EventType: "OrderCreated",
		Payload:   []byte(`{"order_number":"ELS-1","recipients":["buyer-1","seller-1"]}`),
	})
	require.Error(t, err)

	err = publisher.Publish(domain.OutboxMessage{EventType: "OrderCreated", Payload: []byte(`not-json`)})
	require.Error(t, err)

	// Пустые получатели пропускаются без ошибки.
	err = publisher.Publish(domain.OutboxMessage{
		EventType: "OrderCreated",
		Payload:   []byte(`{"order_number":"ELS-1","recipients":["","buyer-1"]}`),
	})
	require.NoError(t, err)
}
