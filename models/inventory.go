package models

import "time"

type InventoryItem struct {
	ProductID uint      `gorm:"primaryKey" json:"product_id"`
	Available int       `gorm:"not null;check:available >= 0" json:"available"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// StockMovement is the audit trail of every change to InventoryItem.Available.
type StockMovement struct {
	ID          uint      `gorm:"primaryKey"`
	ProductID   uint      `gorm:"index;not null"`
	Quantity    int       `gorm:"not null"` // negative for deductions
	OrderID     *uint     `gorm:"index"`
	Source      string    `gorm:"type:varchar(32);not null"`
	Note        string    `gorm:"type:text"`
	PerformedBy *uint     `gorm:"index"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

const (
	StockSourceOrder   = "Order"
	StockSourceRestock = "Restock"
)
