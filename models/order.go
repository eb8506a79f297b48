package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "Pending"
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusShipped    OrderStatus = "Shipped"
	OrderStatusDelivered  OrderStatus = "Delivered"
	OrderStatusCompleted  OrderStatus = "Completed"
	OrderStatusCancelled  OrderStatus = "Cancelled"
	OrderStatusRefunded   OrderStatus = "Refunded"
)

var allOrderStatuses = []OrderStatus{
	OrderStatusPending, OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered,
	OrderStatusCompleted, OrderStatusCancelled, OrderStatusRefunded,
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered},
	OrderStatusDelivered:  {OrderStatusCompleted, OrderStatusRefunded},
	OrderStatusCompleted:  {OrderStatusRefunded},
}

// CanTransitionTo reports whether an order in status s may move to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCancelled || s == OrderStatusRefunded
}

func (s OrderStatus) CanBeCancelled() bool {
	return s.CanTransitionTo(OrderStatusCancelled)
}

func (s OrderStatus) CanBeRefunded() bool {
	return s.CanTransitionTo(OrderStatusRefunded)
}

// PredecessorsOf lists the statuses from which next can be reached.
func PredecessorsOf(next OrderStatus) []OrderStatus {
	var from []OrderStatus
	for _, status := range allOrderStatuses {
		if status.CanTransitionTo(next) {
			from = append(from, status)
		}
	}
	return from
}

type Order struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	ReferenceNumber string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"reference_number"`
	UserID          uint            `gorm:"index" json:"user_id"`
	CartID          uint            `gorm:"index" json:"cart_id"`
	Status          OrderStatus     `gorm:"type:varchar(20);not null;default:'Pending'" json:"status"`
	SubTotal        decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"sub_total"`
	DiscountTotal   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"discount_total"`
	ShippingCost    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"shipping_cost"`
	Total           decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
	ShippingAddress string          `gorm:"type:text" json:"shipping_address"`
	BillingAddress  string          `gorm:"type:text" json:"billing_address"`
	Notes           string          `gorm:"type:text" json:"notes,omitempty"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
	RefundedAt      *time.Time      `json:"refunded_at,omitempty"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	OrderItems      []OrderItem     `gorm:"foreignKey:OrderID" json:"order_items"`
}

type OrderItem struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	OrderID   uint            `gorm:"index;not null" json:"order_id"`
	ProductID uint            `gorm:"index;not null" json:"product_id"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
}

// OrderDraft carries the checkout details that do not come from the cart.
type OrderDraft struct {
	SessionID       string
	ShippingAddress string
	BillingAddress  string
	ShippingCost    decimal.Decimal
	Notes           string
}

// NewReferenceNumber returns a human-facing order reference such as
// ORD-20260102-150405-1a2b3c4d.
func NewReferenceNumber(now time.Time) string {
	return "ORD-" + now.Format("20060102-150405") + "-" + uuid.New().String()[:8]
}
