package services

import (
	"context"
	"fmt"
	"time"

	"checkout-service/apperrors"
	"checkout-service/models"
	aws_pkg "checkout-service/pkg/aws"

	"go.uber.org/zap"
)

// CancellationService reverses a pending or processing order.
type CancellationService struct {
	deps   Dependencies
	logger *zap.Logger
}

func NewCancellationService(deps Dependencies) *CancellationService {
	return &CancellationService{deps: deps, logger: loggerOrNop(deps.Logger)}
}

// CancelOrder restores stock, releases coupons and marks the order
// Cancelled. Restock and coupon failures become warnings; a failed status
// update rolls everything back. performedBy 0 means the system.
func (s *CancellationService) CancelOrder(ctx context.Context, orderID uint, reason string, performedBy uint) (result *models.CancellationResult) {
	result = models.NewCancellationResult()
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("Unexpected error during cancellation", zap.Uint("order_id", orderID), zap.Any("panic", rec))
			result.Fail(models.ErrorKindUnexpected, fmt.Sprintf("Unexpected error: %v", rec))
		}
		recordOutcome(ctx, s.deps.Metrics, s.logger, models.SagaTypeCancellation, &result.Outcome, aws_pkg.MetricOrdersCancelled, aws_pkg.MetricCancellationFailed)
	}()

	s.logger.Info("Cancellation started", zap.Uint("order_id", orderID), zap.String("reason", reason))

	order, ok := loadOrder(ctx, s.deps.Orders, s.logger, orderID, &result.Outcome)
	if !ok {
		return result
	}
	if !order.Status.CanBeCancelled() {
		result.Fail(models.ErrorKindInvalidState, fmt.Sprintf("Cannot cancel order with status %s", order.Status))
		return result
	}

	tx := s.deps.NewTransaction()
	run := newSagaRun(models.SagaTypeCancellation, tx, s.deps.Journal, s.logger, &result.Outcome)
	run.orderID = &order.ID

	committed := runInTransaction(ctx, run, "Cancellation", func(ctx context.Context) *stepFailure {
		note := auditNote(order, "cancelled", reason)
		run.run(ctx, restockSteps(s.deps.Inventory, order, note, performedBy, &result.InventoryRestored)...)
		revertCoupons(ctx, run, s.deps.Coupons, order, &result.CouponsReverted)
		return run.run(ctx, statusStep(s.deps.Orders, order, models.OrderStatusCancelled))
	})
	if !committed {
		s.logger.Warn("Cancellation did not complete", zap.Uint("order_id", orderID), zap.String("error", result.Message()))
		return result
	}

	now := time.Now()
	order.Status = models.OrderStatusCancelled
	order.CancelledAt = &now
	order.UpdatedAt = now
	result.IsSuccess = true
	s.logger.Info("Order cancelled",
		zap.Uint("order_id", order.ID),
		zap.String("reference_number", order.ReferenceNumber),
		zap.Bool("inventory_restored", result.InventoryRestored),
		zap.Bool("coupons_reverted", result.CouponsReverted),
	)

	publishEvent(ctx, s.deps.Events, s.logger, models.OrderEvent{
		EventType:       models.EventOrderCancelled,
		OrderID:         order.ID,
		ReferenceNumber: order.ReferenceNumber,
		UserID:          order.UserID,
		Status:          order.Status,
		Amount:          order.Total,
		Reason:          reason,
		Warnings:        result.Warnings,
	})
	return result
}

// loadOrder fetches the order for a cancellation or refund and records the
// failure on outcome when it cannot.
func loadOrder(ctx context.Context, orders OrderRepository, logger *zap.Logger, orderID uint, outcome *models.Outcome) (*models.Order, bool) {
	order, err := orders.GetByID(ctx, orderID)
	if err != nil && !apperrors.IsNotFound(err) {
		logger.Error("Failed to load order", zap.Uint("order_id", orderID), zap.Error(err))
		outcome.Fail(models.ErrorKindUnexpected, fmt.Sprintf("Unexpected error: %v", err))
		return nil, false
	}
	if err != nil || order == nil {
		outcome.Fail(models.ErrorKindNotFound, "Order not found")
		return nil, false
	}
	return order, true
}
