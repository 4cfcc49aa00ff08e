package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/wizarding-anonymous/identity_platform/internal/utils/metrics"
)

// BrokerProducer publishes an event to the message broker.
type BrokerProducer interface {
	Publish(eventType, subject string, payload interface{}) error
}

// WebhookDispatcher fans an event out to subscribed webhooks.
type WebhookDispatcher interface {
	Dispatch(ctx context.Context, eventType string, payload interface{}) error
}

// Bus fans each domain event out to the broker and the webhook delivery
// engine. Fan-out is explicit and best effort: a sink failure is logged and
// counted, never surfaced to the request that triggered the event.
type Bus struct {
	producer   BrokerProducer
	dispatcher WebhookDispatcher
	logger     *zap.Logger
}

// NewBus creates a Bus. producer may be nil when the broker is disabled;
// webhook dispatch still runs.
func NewBus(producer BrokerProducer, dispatcher WebhookDispatcher, logger *zap.Logger) *Bus {
	return &Bus{producer: producer, dispatcher: dispatcher, logger: logger}
}

// Publish delivers the event to every sink.
func (b *Bus) Publish(ctx context.Context, eventType string, subject string, payload interface{}) {
	metrics.EventsPublishedTotal.WithLabelValues(eventType).Inc()

	if b.producer != nil {
		if err := b.producer.Publish(eventType, subject, payload); err != nil {
			b.logger.Error("Failed to publish event to broker",
				zap.Error(err),
				zap.String("event_type", eventType))
		}
	}

	if b.dispatcher != nil {
		if err := b.dispatcher.Dispatch(ctx, eventType, payload); err != nil {
			b.logger.Error("Failed to dispatch event to webhooks",
				zap.Error(err),
				zap.String("event_type", eventType))
		}
	}
}
