package models

import "github.com/shopspring/decimal"

type CheckoutRequest struct {
	CartID          uint             `json:"cart_id" binding:"required"`
	SessionID       string           `json:"session_id"`
	ShippingAddress string           `json:"shipping_address" binding:"required"`
	BillingAddress  string           `json:"billing_address"`
	ShippingCost    *decimal.Decimal `json:"shipping_cost"`
	Notes           string           `json:"notes"`
}

// Draft converts the request into an OrderDraft. A missing billing address
// defaults to the shipping address.
func (r *CheckoutRequest) Draft() *OrderDraft {
	draft := &OrderDraft{
		SessionID:       r.SessionID,
		ShippingAddress: r.ShippingAddress,
		BillingAddress:  r.BillingAddress,
		ShippingCost:    decimal.Zero,
		Notes:           r.Notes,
	}
	if draft.BillingAddress == "" {
		draft.BillingAddress = r.ShippingAddress
	}
	if r.ShippingCost != nil {
		draft.ShippingCost = *r.ShippingCost
	}
	return draft
}

type CancelOrderRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

type RefundOrderRequest struct {
	Reason string           `json:"reason" binding:"required,max=500"`
	Amount *decimal.Decimal `json:"amount"`
}
