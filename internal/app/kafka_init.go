package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/marketplace/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/marketplace/internal/notify"
)

// initKafkaProducer создаёт producer, если брокеры заданы.
// Пустой список возвращает nil, nil: outbox-публикация отключена.
func initKafkaProducer(brokers []string, logger *log.Entry) (*kafka.Producer, error) {
	if len(brokers) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokers)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		return nil, err
	}

	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	return producer, nil
}

// initRelayConsumer подписывает локальный hub на события других экземпляров.
// У каждого экземпляра своя consumer group, поэтому событие получают все реплики.
func initRelayConsumer(cfg Config, hub *notify.Hub, relay *notify.Relay, logger *log.Entry) (*kafka.Consumer, error) {
	if !cfg.KafkaRelay || hub == nil {
		return nil, nil
	}

	groupID := "marketplace-relay-" + cfg.InstanceID
	consumer, err := kafka.NewConsumer(
		cfg.brokers(),
		groupID,
		[]string{kafka.TopicOrderEvents},
		relay.Handle,
		kafka.WithMaxRetries(1),
		kafka.WithConsumerLogger(logger.WithField("component", "kafka-relay")),
	)
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka relay consumer, continuing without relay")
		return nil, err
	}

	logger.WithField("group", groupID).Info("kafka relay consumer initialized")
	return consumer, nil
}

// closeKafka закрывает producer, если он не nil.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}

// stopConsumer останавливает consumer, если он не nil.
func stopConsumer(consumer *kafka.Consumer, logger *log.Entry) {
	if consumer == nil {
		return
	}
	if err := consumer.Stop(); err != nil {
		logger.WithError(err).Warn("failed to stop kafka consumer")
	}
}
