package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated   = "order_created"
	EventOrderCancelled = "order_cancelled"
	EventOrderRefunded  = "order_refunded"
)

// OrderEvent is published after a checkout, cancellation or refund commits.
type OrderEvent struct {
	EventType       string          `json:"event_type"`
	OrderID         uint            `json:"order_id"`
	ReferenceNumber string          `json:"reference_number"`
	UserID          uint            `json:"user_id,omitempty"`
	Status          OrderStatus     `json:"status"`
	Amount          decimal.Decimal `json:"amount"`
	Reason          string          `json:"reason,omitempty"`
	Warnings        []string        `json:"warnings,omitempty"`
	Timestamp       time.Time       `json:"timestamp"`
}
