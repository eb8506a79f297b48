package services

import (
	"context"
	"errors"
	"fmt"

	"checkout-service/apperrors"
	"checkout-service/models"
	aws_pkg "checkout-service/pkg/aws"

	"go.uber.org/zap"
)

// CheckoutService turns an active cart into an order.
type CheckoutService struct {
	deps   Dependencies
	logger *zap.Logger
}

func NewCheckoutService(deps Dependencies) *CheckoutService {
	return &CheckoutService{deps: deps, logger: loggerOrNop(deps.Logger)}
}

// ProcessCheckout validates the cart, then creates the order, deducts stock,
// marks coupons used and clears the cart in one transaction. userID 0 means
// an anonymous checkout. It never returns nil.
func (s *CheckoutService) ProcessCheckout(ctx context.Context, cartID uint, draft *models.OrderDraft, userID uint) (result *models.CheckoutResult) {
	result = models.NewCheckoutResult()
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("Unexpected error during checkout", zap.Uint("cart_id", cartID), zap.Any("panic", rec))
			result.Fail(models.ErrorKindUnexpected, fmt.Sprintf("Unexpected error: %v", rec))
		}
		recordOutcome(ctx, s.deps.Metrics, s.logger, models.SagaTypeCheckout, &result.Outcome, aws_pkg.MetricOrdersCreated, aws_pkg.MetricCheckoutFailed)
	}()

	if draft == nil {
		draft = &models.OrderDraft{}
	}
	s.logger.Info("Checkout started", zap.Uint("cart_id", cartID), zap.Uint("user_id", userID))

	cart, err := s.deps.Carts.GetActiveCart(ctx, cartID)
	if err != nil && !apperrors.IsNotFound(err) {
		s.logger.Error("Failed to load cart", zap.Uint("cart_id", cartID), zap.Error(err))
		result.Fail(models.ErrorKindUnexpected, fmt.Sprintf("Unexpected error: %v", err))
		return result
	}
	if err != nil || cart == nil || cart.Status != models.CartStatusActive {
		result.Fail(models.ErrorKindNotFound, "Cart not found or inactive")
		return result
	}
	// Someone else's cart is reported exactly like a missing one.
	if cart.UserID > 0 && cart.UserID != userID {
		s.logger.Warn("Checkout of a cart owned by another user",
			zap.Uint("cart_id", cartID),
			zap.Uint("owner_id", cart.UserID),
			zap.Uint("user_id", userID),
		)
		result.Fail(models.ErrorKindNotFound, "Cart not found or inactive")
		return result
	}
	if len(cart.CartItems) == 0 {
		result.Fail(models.ErrorKindValidation, "Cart is empty")
		return result
	}

	// Advisory only. ConfirmDeduction is the authoritative check.
	for _, item := range cart.CartItems {
		inStock, err := s.deps.Inventory.IsInStock(ctx, item.ProductID, item.Quantity)
		if err != nil {
			s.logger.Error("Stock probe failed", zap.Uint("product_id", item.ProductID), zap.Error(err))
			result.Fail(models.ErrorKindUnexpected, fmt.Sprintf("Unexpected error: %v", err))
			return result
		}
		if !inStock {
			result.Fail(models.ErrorKindValidation, fmt.Sprintf("Insufficient stock for product ID %d", item.ProductID))
			return result
		}
	}

	tx := s.deps.NewTransaction()
	run := newSagaRun(models.SagaTypeCheckout, tx, s.deps.Journal, s.logger, &result.Outcome)
	run.cartID = &cart.ID

	var order *models.Order
	committed := runInTransaction(ctx, run, "Checkout", func(ctx context.Context) *stepFailure {
		return run.run(ctx, s.checkoutSteps(cart, draft, userID, run, &order)...)
	})
	if !committed {
		s.logger.Warn("Checkout did not complete", zap.Uint("cart_id", cartID), zap.String("error", result.Message()))
		return result
	}

	result.IsSuccess = true
	result.Order = order
	s.logger.Info("Checkout completed",
		zap.Uint("cart_id", cartID),
		zap.Uint("order_id", order.ID),
		zap.String("reference_number", order.ReferenceNumber),
		zap.Int("warnings", len(result.Warnings)),
	)

	publishEvent(ctx, s.deps.Events, s.logger, models.OrderEvent{
		EventType:       models.EventOrderCreated,
		OrderID:         order.ID,
		ReferenceNumber: order.ReferenceNumber,
		UserID:          userID,
		Status:          order.Status,
		Amount:          order.Total,
		Warnings:        result.Warnings,
	})
	return result
}

func (s *CheckoutService) checkoutSteps(cart *models.Cart, draft *models.OrderDraft, userID uint, run *sagaRun, order **models.Order) []step {
	steps := []step{{
		name:  "create_order",
		fatal: true,
		do: func(ctx context.Context) error {
			created, err := s.deps.Orders.CreateFromCart(ctx, cart, draft, userID)
			if err != nil {
				return err
			}
			if created == nil {
				return errors.New("order repository returned no order")
			}
			*order = created
			run.orderID = &created.ID
			s.logger.Debug("Order created", zap.Uint("order_id", created.ID))
			return nil
		},
		onFailure: func(error) string { return "Failed to create order" },
	}}

	for _, item := range cart.CartItems {
		steps = append(steps, step{
			name:  fmt.Sprintf("deduct_stock:%d", item.ProductID),
			fatal: true,
			do: func(ctx context.Context) error {
				return s.deps.Inventory.ConfirmDeduction(ctx, item.ProductID, item.Quantity, (*order).ID, models.StockSourceOrder)
			},
			onFailure: func(err error) string {
				if errors.Is(err, apperrors.ErrInsufficientStock) {
					return fmt.Sprintf("Insufficient stock for product ID %d", item.ProductID)
				}
				return fmt.Sprintf("Failed to confirm stock deduction for product ID %d", item.ProductID)
			},
		})
	}

	if userID > 0 {
		for _, coupon := range cart.CartCoupons {
			steps = append(steps, step{
				name: fmt.Sprintf("mark_coupon_used:%d", coupon.CouponID),
				do: func(ctx context.Context) error {
					return s.deps.Coupons.MarkUsed(ctx, userID, coupon.CouponID, (*order).ID)
				},
				onFailure: func(error) string {
					return fmt.Sprintf("Failed to mark coupon %s as used", couponLabel(coupon))
				},
			})
		}
	}

	sessionID := draft.SessionID
	if sessionID == "" {
		sessionID = cart.SessionID
	}
	// The cart lives in Redis, so a rollback cannot undo clearing it.
	snapshot := cart.Clone()
	steps = append(steps, step{
		name: "clear_cart",
		do: func(ctx context.Context) error {
			return s.deps.Carts.ClearCart(ctx, cart.ID, cart.UserID, sessionID)
		},
		onFailure: func(error) string {
			return fmt.Sprintf("Failed to clear cart %d", cart.ID)
		},
		compensation: &step{
			name: "restore_cart",
			do: func(ctx context.Context) error {
				return s.deps.Carts.RestoreCart(ctx, snapshot, sessionID)
			},
			onFailure: func(error) string {
				return fmt.Sprintf("Failed to restore cart %d", cart.ID)
			},
		},
	})
	return steps
}

func couponLabel(c models.CartCoupon) string {
	if c.Code != "" {
		return c.Code
	}
	return fmt.Sprintf("%d", c.CouponID)
}
