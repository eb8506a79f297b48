package models

import (
	"time"

	"github.com/google/uuid"
)

type SagaStepStatus string

const (
	SagaStepSucceeded SagaStepStatus = "succeeded"
	SagaStepFailed    SagaStepStatus = "failed"
)

const (
	SagaTypeCheckout     = "checkout"
	SagaTypeCancellation = "cancellation"
	SagaTypeRefund       = "refund"
)

// SagaLog is one step outcome of a checkout, cancellation or refund run.
type SagaLog struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	SagaID    uuid.UUID      `gorm:"type:uuid;index;not null" json:"saga_id"`
	SagaType  string         `gorm:"type:varchar(20);not null" json:"saga_type"`
	OrderID   *uint          `gorm:"index" json:"order_id,omitempty"`
	CartID    *uint          `gorm:"index" json:"cart_id,omitempty"`
	Step      string         `gorm:"type:varchar(64);not null" json:"step"`
	Fatal     bool           `json:"fatal"`
	Status    SagaStepStatus `gorm:"type:varchar(16);not null" json:"status"`
	Error     string         `gorm:"type:text" json:"error,omitempty"`
	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
}
