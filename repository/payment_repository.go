package repository

import (
	"context"
	"errors"
	"time"

	"checkout-service/apperrors"
	"checkout-service/database"
	"checkout-service/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PaymentRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error)
	GetByOrderID(ctx context.Context, orderID uint) (*models.Payment, error)
	MarkRefunded(ctx context.Context, id uuid.UUID, amount decimal.Decimal, refundID string) error
}

type GormPaymentRepository struct {
	db *gorm.DB
}

func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

func (r *GormPaymentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Payment, error) {
	var payment models.Payment
	err := database.Conn(ctx, r.db).Where("id = ?", id).First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, err)
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// GetByOrderID returns the most recent payment for the order.
func (r *GormPaymentRepository) GetByOrderID(ctx context.Context, orderID uint) (*models.Payment, error) {
	var payment models.Payment
	err := database.Conn(ctx, r.db).
		Where("order_id = ?", orderID).
		Order("created_at DESC").
		First(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, err)
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// MarkRefunded adds amount to the refunded total and sets the status to
// Refunded or PartiallyRefunded accordingly. It writes on its own
// connection, so a rollback of the caller's transaction leaves it in place.
func (r *GormPaymentRepository) MarkRefunded(ctx context.Context, id uuid.UUID, amount decimal.Decimal, refundID string) error {
	res := r.db.WithContext(context.WithoutCancel(ctx)).
		Model(&models.Payment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"refunded_amount": gorm.Expr("refunded_amount + ?", amount),
			"status": gorm.Expr("CASE WHEN refunded_amount + ? >= amount THEN ? ELSE ? END",
				amount, models.PaymentStatusRefunded, models.PaymentStatusPartiallyRefunded),
			"stripe_refund_id": refundID,
			"refunded_at":      time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}
