package models

import "time"

type Coupon struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	Code      string `gorm:"type:varchar(50);uniqueIndex;not null" json:"code"`
	UsedCount int    `gorm:"default:0" json:"used_count"`
	Active    bool   `gorm:"default:true" json:"active"`
}

// CouponUsage links a coupon to the order it was redeemed on.
type CouponUsage struct {
	ID       uint      `gorm:"primaryKey"`
	CouponID uint      `gorm:"uniqueIndex:idx_coupon_order;not null"`
	OrderID  uint      `gorm:"uniqueIndex:idx_coupon_order;index;not null"`
	UserID   uint      `gorm:"index;not null"`
	UsedAt   time.Time `gorm:"autoCreateTime"`
}
