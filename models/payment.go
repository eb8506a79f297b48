package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusProcessing        PaymentStatus = "Processing"
	PaymentStatusCompleted         PaymentStatus = "Completed"
	PaymentStatusFailed            PaymentStatus = "Failed"
	PaymentStatusRefunded          PaymentStatus = "Refunded"
	PaymentStatusPartiallyRefunded PaymentStatus = "PartiallyRefunded"
)

type Payment struct {
	ID              uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	OrderID         uint            `gorm:"index;not null" json:"order_id"`
	UserID          uint            `gorm:"index" json:"user_id"`
	Amount          decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"amount"`
	RefundedAmount  decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"refunded_amount"`
	Currency        string          `gorm:"type:varchar(10);not null" json:"currency"`
	Status          PaymentStatus   `gorm:"type:varchar(20);not null" json:"status"`
	StripePaymentID *string         `gorm:"uniqueIndex" json:"-"`
	StripeRefundID  *string         `json:"-"`
	RefundedAt      *time.Time      `json:"refunded_at,omitempty"`
	CreatedAt       time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// RefundResponse is the payment collaborator's answer to a refund request.
// IsSuccess covers the call itself; Data.Success is the provider's verdict.
type RefundResponse struct {
	IsSuccess bool       `json:"is_success"`
	Message   string     `json:"message,omitempty"`
	Data      RefundData `json:"data"`
}

type RefundData struct {
	Success  bool            `json:"success"`
	RefundID string          `json:"refund_id,omitempty"`
	Amount   decimal.Decimal `json:"amount"`
	Status   string          `json:"status,omitempty"`
	Message  string          `json:"message,omitempty"`
}
