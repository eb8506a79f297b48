package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CartStatus string

const (
	CartStatusActive    CartStatus = "Active"
	CartStatusAbandoned CartStatus = "Abandoned"
	CartStatusConverted CartStatus = "Converted"
	CartStatusExpired   CartStatus = "Expired"
)

// Cart is stored as JSON in Redis by the cart service.
type Cart struct {
	ID          uint         `json:"id"`
	UserID      uint         `json:"user_id,omitempty"`
	SessionID   string       `json:"session_id,omitempty"`
	Status      CartStatus   `json:"status"`
	CartItems   []CartItem   `json:"cart_items"`
	CartCoupons []CartCoupon `json:"cart_coupons"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

type CartItem struct {
	ProductID uint            `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

type CartCoupon struct {
	CouponID       uint            `json:"coupon_id"`
	Code           string          `json:"code"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

// Clone returns a copy that shares no slices with c.
func (c *Cart) Clone() *Cart {
	out := *c
	out.CartItems = append(make([]CartItem, 0, len(c.CartItems)), c.CartItems...)
	out.CartCoupons = append(make([]CartCoupon, 0, len(c.CartCoupons)), c.CartCoupons...)
	return &out
}

func (c *Cart) SubTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.CartItems {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

func (c *Cart) DiscountTotal() decimal.Decimal {
	total := decimal.Zero
	for _, coupon := range c.CartCoupons {
		total = total.Add(coupon.DiscountAmount)
	}
	return total
}
