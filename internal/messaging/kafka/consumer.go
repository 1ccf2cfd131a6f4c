package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

const (
	defaultMaxRetries = 3
	defaultRetryDelay = 200 * time.Millisecond
)

// MessageHandler обрабатывает сообщение из Kafka
type MessageHandler func(ctx context.Context, message *sarama.ConsumerMessage) error

// ConsumerOption настраивает Consumer.
type ConsumerOption func(*consumerOptions)

type consumerOptions struct {
	dlqProducer   *Producer
	maxRetries    int
	retryDelay    time.Duration
	initialOffset int64
	logger        *log.Entry
}

// WithDLQ включает отправку необработанных сообщений в TopicDeadLetterQueue.
func WithDLQ(producer *Producer) ConsumerOption {
	return func(o *consumerOptions) { o.dlqProducer = producer }
}

// WithMaxRetries задаёт число попыток обработки одного сообщения.
func WithMaxRetries(n int) ConsumerOption {
	return func(o *consumerOptions) {
		if n > 0 {
			o.maxRetries = n
		}
	}
}

// WithRetryDelay задаёт паузу между попытками.
func WithRetryDelay(d time.Duration) ConsumerOption {
	return func(o *consumerOptions) {
		if d >= 0 {
			o.retryDelay = d
		}
	}
}

// WithOldestOffset заставляет новую группу читать topic с начала.
func WithOldestOffset() ConsumerOption {
	return func(o *consumerOptions) { o.initialOffset = sarama.OffsetOldest }
}

// WithConsumerLogger задаёт логгер.
func WithConsumerLogger(logger *log.Entry) ConsumerOption {
	return func(o *consumerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Consumer представляет Kafka consumer с поддержкой DLQ
type Consumer struct {
	consumer    sarama.ConsumerGroup
	topics      []string
	handler     MessageHandler
	logger      *log.Entry
	wg          sync.WaitGroup
	dlqProducer *Producer
	maxRetries  int
	retryDelay  time.Duration
}

// NewConsumer создает consumer group
func NewConsumer(brokers []string, groupID string, topics []string, handler MessageHandler, opts ...ConsumerOption) (*Consumer, error) {
	options := consumerOptions{
		maxRetries:    defaultMaxRetries,
		retryDelay:    defaultRetryDelay,
		initialOffset: sarama.OffsetNewest,
		logger:        log.WithField("component", "kafka-consumer"),
	}
	for _, opt := range opts {
		opt(&options)
	}

	config := sarama.NewConfig()
	config.ClientID = defaultClientID
	config.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	config.Consumer.Offsets.Initial = options.initialOffset
	config.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(brokers, groupID, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka consumer: %w", err)
	}

	return &Consumer{
		consumer:    group,
		topics:      topics,
		handler:     handler,
		logger:      options.logger.WithField("group", groupID),
		dlqProducer: options.dlqProducer,
		maxRetries:  options.maxRetries,
		retryDelay:  options.retryDelay,
	}, nil
}

// Start запускает consumer
func (c *Consumer) Start(ctx context.Context) error {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for {
			// Consume завершается на каждом rebalance.
			if err := c.consumer.Consume(ctx, c.topics, c); err != nil {
				c.logger.WithError(err).Error("error from consumer")
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for err := range c.consumer.Errors() {
			c.logger.WithError(err).Error("consumer error")
		}
	}()

	c.logger.WithField("topics", c.topics).Info("kafka consumer started")
	return nil
}

// Stop останавливает consumer
func (c *Consumer) Stop() error {
	if err := c.consumer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka consumer: %w", err)
	}
	c.wg.Wait()
	c.logger.Info("kafka consumer stopped")
	return nil
}

// Setup вызывается при старте consumer session
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

// Cleanup вызывается при завершении consumer session
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim обрабатывает сообщения из partition
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message, ok := <-claim.Messages():
			if !ok || message == nil {
				return nil
			}

			fields := log.Fields{
				"topic":     message.Topic,
				"partition": message.Partition,
				"offset":    message.Offset,
			}
			c.logger.WithFields(fields).Debug("received message")

			if err := c.handleMessageWithRetry(session.Context(), message); err != nil {
				// Сообщение не помечаем: после рестарта группа прочитает его снова.
				c.logger.WithError(err).WithFields(fields).Error("message processing failed after all retries")
				continue
			}

			session.MarkMessage(message, "")

		case <-session.Context().Done():
			return nil
		}
	}
}

// handleMessageWithRetry повторяет обработку до maxRetries попыток с учётом
// уже сделанных (заголовок x-retry-count), затем отправляет сообщение в DLQ.
func (c *Consumer) handleMessageWithRetry(ctx context.Context, message *sarama.ConsumerMessage) error {
	maxRetries := c.maxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var err error
	for attempt := c.getRetryCount(message); ; attempt++ {
		if err = c.handler(ctx, message); err == nil {
			return nil
		}
		if attempt+1 >= maxRetries {
			break
		}

		c.logger.WithError(err).WithFields(log.Fields{
			"topic":       message.Topic,
			"retry_count": attempt + 1,
			"max_retries": maxRetries,
		}).Warn("message processing failed, will retry")

		if c.retryDelay > 0 {
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if c.dlqProducer == nil {
		return err
	}
	if dlqErr := c.sendToDLQ(message, err); dlqErr != nil {
		c.logger.WithError(dlqErr).Error("failed to send message to DLQ")
		return fmt.Errorf("failed to send to DLQ: %w", dlqErr)
	}
	c.logger.WithField("topic", message.Topic).Info("message sent to DLQ after max retries")
	return nil
}

// getRetryCount извлекает retry count из headers сообщения
func (c *Consumer) getRetryCount(message *sarama.ConsumerMessage) int {
	for _, header := range message.Headers {
		if header == nil || string(header.Key) != HeaderRetryCount {
			continue
		}
		if count, err := strconv.Atoi(string(header.Value)); err == nil {
			return count
		}
	}
	return 0
}

// sendToDLQ отправляет failed message в Dead Letter Queue
func (c *Consumer) sendToDLQ(message *sarama.ConsumerMessage, processingErr error) error {
	failedAt := time.Now().UTC()
	letter := DeadLetter{
		OriginalTopic:     message.Topic,
		OriginalPartition: message.Partition,
		OriginalOffset:    message.Offset,
		OriginalKey:       string(message.Key),
		OriginalValue:     string(message.Value),
		ErrorMessage:      processingErr.Error(),
		FailedAt:          failedAt,
		RetryCount:        c.maxRetries,
	}

	value, err := json.Marshal(letter)
	if err != nil {
		return fmt.Errorf("failed to marshal dead letter: %w", err)
	}

	return c.dlqProducer.Send(TopicDeadLetterQueue, string(message.Key), value, map[string]string{
		HeaderOriginalTopic: message.Topic,
		HeaderErrorMessage:  processingErr.Error(),
		HeaderFailedAt:      failedAt.Format(time.RFC3339),
		HeaderRetryCount:    strconv.Itoa(c.maxRetries),
	})
}
