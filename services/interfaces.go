package services

import (
	"context"

	"checkout-service/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CartStore interface {
	GetActiveCart(ctx context.Context, cartID uint) (*models.Cart, error)
	ClearCart(ctx context.Context, cartID, userID uint, sessionID string) error
	RestoreCart(ctx context.Context, cart *models.Cart, sessionID string) error
}

type InventoryService interface {
	IsInStock(ctx context.Context, productID uint, quantity int) (bool, error)
	ConfirmDeduction(ctx context.Context, productID uint, quantity int, orderID uint, source string) error
	AddStock(ctx context.Context, productID uint, quantity int, note string, performedBy uint) error
}

type CouponUsageService interface {
	MarkUsed(ctx context.Context, userID, couponID, orderID uint) error
	RevertUsage(ctx context.Context, userID, couponID, orderID uint) error
	GetCouponIDsUsedInOrder(ctx context.Context, orderID uint) ([]uint, error)
}

type OrderRepository interface {
	CreateFromCart(ctx context.Context, cart *models.Cart, draft *models.OrderDraft, userID uint) (*models.Order, error)
	GetByID(ctx context.Context, id uint) (*models.Order, error)
	UpdateStatus(ctx context.Context, id uint, status models.OrderStatus) error
}

type PaymentService interface {
	GetByOrderID(ctx context.Context, orderID uint) (*models.Payment, error)
	Refund(ctx context.Context, paymentID uuid.UUID, amount decimal.Decimal, reason string) (*models.RefundResponse, error)
}

// TransactionCoordinator is a unit of work. One instance serves one
// orchestration call.
type TransactionCoordinator interface {
	BeginTransaction(ctx context.Context) (context.Context, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	WithSavepoint(ctx context.Context, fn func(ctx context.Context) error) error
	ExecuteWithRetry(ctx context.Context, fn func(ctx context.Context) error) error
}

type EventPublisher interface {
	Publish(ctx context.Context, event models.OrderEvent) error
}

type SagaJournal interface {
	Append(ctx context.Context, entry *models.SagaLog) error
}

type MetricsRecorder interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
}

// Dependencies wires the orchestrators. Events, Journal and Metrics are
// optional.
type Dependencies struct {
	Carts          CartStore
	Inventory      InventoryService
	Coupons        CouponUsageService
	Orders         OrderRepository
	Payments       PaymentService
	NewTransaction func() TransactionCoordinator
	Events         EventPublisher
	Journal        SagaJournal
	Metrics        MetricsRecorder
	Logger         *zap.Logger
}
