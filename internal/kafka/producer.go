package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"github.com/nutrilog/billing-service/internal/domain"
	"github.com/nutrilog/billing-service/pkg/logger"
)

// Topics for subscription lifecycle events consumed by other services
// (entitlement caches, email notifications, analytics).
const (
	TopicSubscriptionActivated = "billing.subscription.activated"
	TopicSubscriptionCanceled  = "billing.subscription.canceled"
	TopicSubscriptionExpired   = "billing.subscription.expired"
)

// Producer publishes subscription lifecycle events. The message key is
// the user id so all events for one user land in the same partition.
type Producer interface {
	PublishSubscriptionEvent(ctx context.Context, topic string, subscription *domain.Subscription) error
	Close() error
}

type saramaProducer struct {
	producer sarama.SyncProducer
	log      *logger.Logger
}

// NewProducer creates a synchronous Kafka producer against the given brokers
func NewProducer(brokers []string, log *logger.Logger) (Producer, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are not configured")
	}

	cfg := sarama.NewConfig()
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Compression = sarama.CompressionSnappy
	cfg.Producer.Return.Successes = true
	cfg.Producer.Return.Errors = true

	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka: failed to create producer: %w", err)
	}

	log.Infow("Kafka producer initialized", "brokers", brokers)

	return &saramaProducer{producer: producer, log: log}, nil
}

type subscriptionEventPayload struct {
	UserID    string `json:"user_id"`
	Plan      string `json:"plan"`
	Status    string `json:"status"`
	PeriodEnd string `json:"period_end,omitempty"`
}

func (p *saramaProducer) PublishSubscriptionEvent(ctx context.Context, topic string, subscription *domain.Subscription) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload := subscriptionEventPayload{
		UserID: subscription.UserID.String(),
		Plan:   string(subscription.Plan),
		Status: string(subscription.Status),
	}
	if subscription.CurrentPeriodEnd != nil {
		payload.PeriodEnd = subscription.CurrentPeriodEnd.Format(time.RFC3339)
	}

	value, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("kafka: failed to marshal event payload: %w", err)
	}

	partition, offset, err := p.producer.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(subscription.UserID.String()),
		Value: sarama.ByteEncoder(value),
	})
	if err != nil {
		p.log.Errorw("Failed to publish subscription event", "topic", topic, "user_id", subscription.UserID, "error", err)
		return fmt.Errorf("kafka: failed to send message: %w", err)
	}

	p.log.Debugw("Published subscription event", "topic", topic, "partition", partition, "offset", offset)
	return nil
}

func (p *saramaProducer) Close() error {
	if err := p.producer.Close(); err != nil {
		p.log.Errorw("Failed to close Kafka producer", "error", err)
		return fmt.Errorf("kafka: failed to close producer: %w", err)
	}
	return nil
}

// NopProducer returns a producer that drops every event. Used when
// Kafka is disabled in configuration.
func NopProducer() Producer {
	return nopProducer{}
}

type nopProducer struct{}

func (nopProducer) PublishSubscriptionEvent(context.Context, string, *domain.Subscription) error {
	return nil
}

func (nopProducer) Close() error { return nil }
