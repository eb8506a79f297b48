package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"checkout-service/models"
	aws_pkg "checkout-service/pkg/aws"

	"go.uber.org/zap"
)

// Publisher delivers order lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, event models.OrderEvent) error
}

// SNSPublisher publishes events as JSON to one SNS topic.
type SNSPublisher struct {
	client   aws_pkg.SNSPublisher
	topicArn string
}

func NewSNSPublisher(client aws_pkg.SNSPublisher, topicArn string) *SNSPublisher {
	return &SNSPublisher{client: client, topicArn: topicArn}
}

func (p *SNSPublisher) Publish(ctx context.Context, event models.OrderEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.EventType, err)
	}
	return p.client.Publish(ctx, p.topicArn, data, map[string]string{"event_type": event.EventType})
}

// MultiPublisher fans an event out to every configured publisher. Nil
// publishers are skipped.
type MultiPublisher struct {
	publishers []Publisher
	logger     *zap.Logger
}

func NewMultiPublisher(logger *zap.Logger, publishers ...Publisher) *MultiPublisher {
	m := &MultiPublisher{logger: logger}
	for _, p := range publishers {
		if p != nil {
			m.publishers = append(m.publishers, p)
		}
	}
	return m
}

// Publish tries every publisher and joins their errors.
func (m *MultiPublisher) Publish(ctx context.Context, event models.OrderEvent) error {
	if len(m.publishers) == 0 {
		m.logger.Warn("No event publisher configured, skipping event", zap.String("event_type", event.EventType))
		return nil
	}

	var errs []error
	for _, p := range m.publishers {
		if err := p.Publish(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
