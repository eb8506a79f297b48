package repository

import (
	"context"
	"errors"
	"time"

	"checkout-service/apperrors"
	"checkout-service/database"
	"checkout-service/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type OrderRepository interface {
	CreateFromCart(ctx context.Context, cart *models.Cart, draft *models.OrderDraft, userID uint) (*models.Order, error)
	GetByID(ctx context.Context, id uint) (*models.Order, error)
	UpdateStatus(ctx context.Context, id uint, status models.OrderStatus) error
}

type GormOrderRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewGormOrderRepository(db *gorm.DB) *GormOrderRepository {
	return &GormOrderRepository{db: db, now: time.Now}
}

// CreateFromCart inserts a Pending order and its items built from the cart.
func (r *GormOrderRepository) CreateFromCart(ctx context.Context, cart *models.Cart, draft *models.OrderDraft, userID uint) (*models.Order, error) {
	if cart == nil || draft == nil {
		return nil, apperrors.ErrInvalidOrder
	}

	subTotal := cart.SubTotal()
	discount := decimal.Min(cart.DiscountTotal(), subTotal)
	total := subTotal.Sub(discount).Add(draft.ShippingCost)
	if total.IsNegative() {
		total = decimal.Zero
	}

	order := &models.Order{
		ReferenceNumber: models.NewReferenceNumber(r.now()),
		UserID:          userID,
		CartID:          cart.ID,
		Status:          models.OrderStatusPending,
		SubTotal:        subTotal,
		DiscountTotal:   discount,
		ShippingCost:    draft.ShippingCost,
		Total:           total.Round(2),
		ShippingAddress: draft.ShippingAddress,
		BillingAddress:  draft.BillingAddress,
		Notes:           draft.Notes,
	}
	for _, item := range cart.CartItems {
		order.OrderItems = append(order.OrderItems, models.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	if err := database.Conn(ctx, r.db).Create(order).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *GormOrderRepository) GetByID(ctx context.Context, id uint) (*models.Order, error) {
	var order models.Order
	err := database.Conn(ctx, r.db).
		Preload("OrderItems").
		First(&order, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, err)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// UpdateStatus moves the order to status, stamping CancelledAt or RefundedAt.
// The update only applies while the current status still allows the
// transition, so a concurrent change surfaces as ErrConcurrentUpdate.
func (r *GormOrderRepository) UpdateStatus(ctx context.Context, id uint, status models.OrderStatus) error {
	now := r.now()
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": now,
	}
	switch status {
	case models.OrderStatusCancelled:
		updates["cancelled_at"] = now
	case models.OrderStatusRefunded:
		updates["refunded_at"] = now
	}

	result := database.Conn(ctx, r.db).
		Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, models.PredecessorsOf(status)).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrConcurrentUpdate
	}
	return nil
}
