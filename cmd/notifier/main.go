package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"

	"github.com/elsoug/orders/internal/domain"
	"github.com/elsoug/orders/internal/messaging/kafka"
	"github.com/elsoug/orders/internal/service/notifier"
)

const defaultGroupID = "elsoug-notifier"

// notifier читает события заказов из Kafka и доставляет уведомления
// сторонам сделки. Запускается отдельно от сервиса заказов.
func main() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
	logger := log.WithField("component", "notifier")

	brokersRaw := os.Getenv("KAFKA_BROKERS")
	if brokersRaw == "" {
		logger.Fatal("KAFKA_BROKERS is required")
	}
	brokers := strings.Split(brokersRaw, ",")

	groupID := os.Getenv("ELSOUG_NOTIFIER_GROUP")
	if groupID == "" {
		groupID = defaultGroupID
	}

	dlqProducer, err := kafka.NewProducer(brokers)
	if err != nil {
		logger.WithError(err).Fatal("failed to create kafka producer for DLQ")
	}

	sink := notifier.NewLogSink(logger)
	publisher := notifier.NewPublisher(sink, logger)

	handler := func(_ context.Context, message *sarama.ConsumerMessage) error {
		envelope, err := kafka.ParseOrderEventEnvelope(message)
		if err != nil {
			return err
		}
		return publisher.Publish(domain.OutboxMessage{
			ID:            envelope.ID,
			AggregateType: envelope.AggregateType,
			AggregateID:   envelope.AggregateID,
			EventType:     envelope.EventType,
			Payload:       envelope.Payload,
		})
	}

	consumer, err := kafka.NewConsumerWithDLQ(brokers, groupID, []string{kafka.TopicOrderEvents}, handler, dlqProducer, 3)
	if err != nil {
		logger.WithError(err).Fatal("failed to create kafka consumer")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := consumer.Start(ctx); err != nil {
		logger.WithError(err).Fatal("failed to start kafka consumer")
	}

	<-ctx.Done()
	logger.Info("получен сигнал остановки, останавливаем notifier")

	if err := consumer.Stop(); err != nil {
		logger.WithError(err).Warn("failed to stop kafka consumer")
	}
	if err := dlqProducer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	}
}
