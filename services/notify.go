package services

import (
	"context"
	"time"

	"checkout-service/models"
	aws_pkg "checkout-service/pkg/aws"

	"go.uber.org/zap"
)

// publishTimeout bounds how long a committed request waits on the brokers.
const publishTimeout = 3 * time.Second

// publishEvent sends event after a commit. Delivery failures are logged and
// never change the orchestration result.
func publishEvent(ctx context.Context, publisher EventPublisher, logger *zap.Logger, event models.OrderEvent) {
	if publisher == nil {
		logger.Debug("No event publisher configured", zap.String("event_type", event.EventType))
		return
	}
	event.Timestamp = time.Now().UTC()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := publisher.Publish(ctx, event); err != nil {
		logger.Warn("Failed to publish order event",
			zap.String("event_type", event.EventType),
			zap.Uint("order_id", event.OrderID),
			zap.Error(err),
		)
	}
}

func recordCount(ctx context.Context, metrics MetricsRecorder, logger *zap.Logger, name, saga string) {
	if metrics == nil {
		return
	}
	if err := metrics.RecordCount(ctx, name, map[string]string{"Saga": saga}); err != nil {
		logger.Debug("Failed to record metric", zap.String("metric", name), zap.Error(err))
	}
}

func recordOutcome(ctx context.Context, metrics MetricsRecorder, logger *zap.Logger, saga string, outcome *models.Outcome, success, failure string) {
	if outcome.IsSuccess {
		recordCount(ctx, metrics, logger, success, saga)
	} else {
		recordCount(ctx, metrics, logger, failure, saga)
	}
	if len(outcome.Warnings) > 0 {
		recordCount(ctx, metrics, logger, aws_pkg.MetricSagaWarnings, saga)
	}
}

func loggerOrNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}
