package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"checkout-service/apperrors"
	"checkout-service/models"
	aws_pkg "checkout-service/pkg/aws"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// refundDeclinedError is a refund the provider answered but did not accept.
type refundDeclinedError struct {
	detail string
}

func (e *refundDeclinedError) Error() string {
	if e.detail == "" {
		return "refund declined"
	}
	return "refund declined: " + e.detail
}

// RefundService returns the money for a delivered or completed order and
// reverses its effects.
type RefundService struct {
	deps   Dependencies
	logger *zap.Logger
}

func NewRefundService(deps Dependencies) *RefundService {
	return &RefundService{deps: deps, logger: loggerOrNop(deps.Logger)}
}

// ProcessRefund refunds refundAmount, or the order total when it is nil,
// then restores stock, releases coupons and marks the order Refunded.
func (s *RefundService) ProcessRefund(ctx context.Context, orderID uint, reason string, refundAmount *decimal.Decimal, performedBy uint) (result *models.RefundResult) {
	result = models.NewRefundResult()
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("Unexpected error during refund", zap.Uint("order_id", orderID), zap.Any("panic", rec))
			result.Fail(models.ErrorKindUnexpected, fmt.Sprintf("Unexpected error: %v", rec))
		}
		recordOutcome(ctx, s.deps.Metrics, s.logger, models.SagaTypeRefund, &result.Outcome, aws_pkg.MetricOrdersRefunded, aws_pkg.MetricRefundFailed)
	}()

	s.logger.Info("Refund started", zap.Uint("order_id", orderID), zap.String("reason", reason))

	order, ok := loadOrder(ctx, s.deps.Orders, s.logger, orderID, &result.Outcome)
	if !ok {
		return result
	}
	if !order.Status.CanBeRefunded() {
		result.Fail(models.ErrorKindInvalidState, fmt.Sprintf("Cannot refund order with status %s", order.Status))
		return result
	}

	amount := order.Total
	if refundAmount != nil {
		amount = *refundAmount
	}
	if amount.GreaterThan(order.Total) {
		result.Fail(models.ErrorKindValidation, fmt.Sprintf("Refund amount %s cannot exceed order total %s", amount.StringFixed(2), order.Total.StringFixed(2)))
		return result
	}
	if !amount.IsPositive() {
		result.Fail(models.ErrorKindValidation, "Refund amount must be greater than zero")
		return result
	}

	payment, err := s.deps.Payments.GetByOrderID(ctx, order.ID)
	if err != nil && !apperrors.IsNotFound(err) {
		s.logger.Error("Failed to load payment", zap.Uint("order_id", order.ID), zap.Error(err))
		result.Fail(models.ErrorKindUnexpected, fmt.Sprintf("Unexpected error: %v", err))
		return result
	}
	if err != nil || payment == nil {
		result.Fail(models.ErrorKindNotFound, "Payment not found for order")
		return result
	}
	if payment.Status != models.PaymentStatusCompleted {
		result.Fail(models.ErrorKindInvalidState, fmt.Sprintf("Cannot refund payment with status %s", payment.Status))
		return result
	}

	tx := s.deps.NewTransaction()
	run := newSagaRun(models.SagaTypeRefund, tx, s.deps.Journal, s.logger, &result.Outcome)
	run.orderID = &order.ID

	committed := runInTransaction(ctx, run, "Refund", func(ctx context.Context) *stepFailure {
		refund := step{
			name:  "refund_payment",
			fatal: true,
			do: func(ctx context.Context) error {
				resp, err := s.deps.Payments.Refund(ctx, payment.ID, amount, reason)
				if err != nil {
					return err
				}
				if resp == nil {
					return &refundDeclinedError{}
				}
				if !resp.IsSuccess || !resp.Data.Success {
					detail := resp.Data.Message
					if detail == "" {
						detail = resp.Message
					}
					return &refundDeclinedError{detail: detail}
				}
				return nil
			},
			onFailure: func(err error) string {
				var declined *refundDeclinedError
				if errors.As(err, &declined) && declined.detail != "" {
					return "Payment refund failed: " + declined.detail
				}
				return "Payment refund failed"
			},
			onSuccess: func() {
				result.PaymentRefunded = true
				result.RefundedAmount = amount
			},
		}
		if failure := run.run(ctx, refund); failure != nil {
			return failure
		}

		note := auditNote(order, "refunded", reason)
		run.run(ctx, restockSteps(s.deps.Inventory, order, note, performedBy, &result.InventoryRestored)...)
		revertCoupons(ctx, run, s.deps.Coupons, order, &result.CouponsReverted)
		return run.run(ctx, statusStep(s.deps.Orders, order, models.OrderStatusRefunded))
	})
	if !committed {
		if result.PaymentRefunded {
			// The provider already returned the money; the order still needs
			// manual reconciliation.
			s.logger.Error("Refund issued but order not updated",
				zap.Uint("order_id", order.ID),
				zap.String("payment_id", payment.ID.String()),
				zap.String("amount", amount.StringFixed(2)),
				zap.String("error", result.Message()),
			)
		} else {
			s.logger.Warn("Refund did not complete", zap.Uint("order_id", orderID), zap.String("error", result.Message()))
		}
		return result
	}

	now := time.Now()
	order.Status = models.OrderStatusRefunded
	order.RefundedAt = &now
	order.UpdatedAt = now
	result.IsSuccess = true
	s.logger.Info("Order refunded",
		zap.Uint("order_id", order.ID),
		zap.String("reference_number", order.ReferenceNumber),
		zap.String("amount", amount.StringFixed(2)),
	)

	publishEvent(ctx, s.deps.Events, s.logger, models.OrderEvent{
		EventType:       models.EventOrderRefunded,
		OrderID:         order.ID,
		ReferenceNumber: order.ReferenceNumber,
		UserID:          order.UserID,
		Status:          order.Status,
		Amount:          amount,
		Reason:          reason,
		Warnings:        result.Warnings,
	})
	return result
}
