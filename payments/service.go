package payments

import (
	"context"
	"fmt"

	"checkout-service/models"
	"checkout-service/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var hundred = decimal.NewFromInt(100)

// Service is the payment collaborator used by the refund saga.
type Service struct {
	repo    repository.PaymentRepository
	gateway Gateway
	logger  *zap.Logger
}

func NewService(repo repository.PaymentRepository, gateway Gateway, logger *zap.Logger) *Service {
	return &Service{repo: repo, gateway: gateway, logger: logger}
}

func (s *Service) GetByOrderID(ctx context.Context, orderID uint) (*models.Payment, error) {
	return s.repo.GetByOrderID(ctx, orderID)
}

// Refund asks the provider to return amount of the payment. A nil error with
// Data.Success false means the provider declined.
func (s *Service) Refund(ctx context.Context, paymentID uuid.UUID, amount decimal.Decimal, reason string) (*models.RefundResponse, error) {
	payment, err := s.repo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, fmt.Errorf("load payment %s: %w", paymentID, err)
	}

	declined := func(msg string) *models.RefundResponse {
		return &models.RefundResponse{
			IsSuccess: true,
			Message:   msg,
			Data:      models.RefundData{Success: false, Amount: amount, Message: msg},
		}
	}

	if payment.StripePaymentID == nil || *payment.StripePaymentID == "" {
		return declined("payment has no provider reference"), nil
	}
	remaining := payment.Amount.Sub(payment.RefundedAmount)
	if amount.GreaterThan(remaining) {
		return declined(fmt.Sprintf("refund of %s exceeds refundable balance %s", amount.StringFixed(2), remaining.StringFixed(2))), nil
	}

	outcome, err := s.gateway.Refund(ctx, *payment.StripePaymentID, toMinorUnits(amount), reason)
	if err != nil {
		s.logger.Error("Refund request failed", zap.String("payment_id", paymentID.String()), zap.Error(err))
		return nil, err
	}
	if !outcome.Succeeded {
		s.logger.Warn("Refund declined by provider",
			zap.String("payment_id", paymentID.String()),
			zap.String("status", outcome.Status),
			zap.String("message", outcome.Message),
		)
		resp := declined(outcome.Message)
		resp.Data.RefundID = outcome.ID
		resp.Data.Status = outcome.Status
		return resp, nil
	}

	// The provider has moved the money, so a bookkeeping failure does not turn
	// the refund into a failure.
	if err := s.repo.MarkRefunded(ctx, payment.ID, amount, outcome.ID); err != nil {
		s.logger.Error("Refund issued but payment record not updated",
			zap.String("payment_id", paymentID.String()),
			zap.String("refund_id", outcome.ID),
			zap.Error(err),
		)
	}

	s.logger.Info("Refund issued",
		zap.String("payment_id", paymentID.String()),
		zap.String("refund_id", outcome.ID),
		zap.String("amount", amount.StringFixed(2)),
	)
	return &models.RefundResponse{
		IsSuccess: true,
		Data: models.RefundData{
			Success:  true,
			RefundID: outcome.ID,
			Amount:   amount,
			Status:   outcome.Status,
		},
	}, nil
}

func toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}
