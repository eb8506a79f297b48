package models

import "github.com/shopspring/decimal"

// ErrorKind classifies why an orchestration did not succeed.
type ErrorKind string

const (
	ErrorKindNone         ErrorKind = ""
	ErrorKindNotFound     ErrorKind = "not_found"
	ErrorKindInvalidState ErrorKind = "invalid_state"
	ErrorKindValidation   ErrorKind = "validation"
	ErrorKindStepFailed   ErrorKind = "step_failed"
	ErrorKindTransaction  ErrorKind = "transaction"
	ErrorKindUnexpected   ErrorKind = "unexpected"
)

// Outcome is the part shared by every orchestration result.
type Outcome struct {
	IsSuccess    bool      `json:"is_success"`
	ErrorMessage *string   `json:"error_message"`
	ErrorKind    ErrorKind `json:"error_kind,omitempty"`
	Warnings     []string  `json:"warnings"`
}

// Fail records the failure. Only the first failure is kept.
func (o *Outcome) Fail(kind ErrorKind, message string) {
	if o.ErrorMessage != nil {
		return
	}
	o.IsSuccess = false
	o.ErrorKind = kind
	o.ErrorMessage = &message
}

// Message returns the error message or "" when none was recorded.
func (o *Outcome) Message() string {
	if o.ErrorMessage == nil {
		return ""
	}
	return *o.ErrorMessage
}

type CheckoutResult struct {
	Outcome
	Order *Order `json:"order"`
}

type CancellationResult struct {
	Outcome
	InventoryRestored bool `json:"inventory_restored"`
	CouponsReverted   bool `json:"coupons_reverted"`
}

type RefundResult struct {
	Outcome
	PaymentRefunded   bool            `json:"payment_refunded"`
	RefundedAmount    decimal.Decimal `json:"refunded_amount"`
	InventoryRestored bool            `json:"inventory_restored"`
	CouponsReverted   bool            `json:"coupons_reverted"`
}

func NewCheckoutResult() *CheckoutResult {
	return &CheckoutResult{Outcome: Outcome{Warnings: []string{}}}
}

func NewCancellationResult() *CancellationResult {
	return &CancellationResult{Outcome: Outcome{Warnings: []string{}}}
}

func NewRefundResult() *RefundResult {
	return &RefundResult{Outcome: Outcome{Warnings: []string{}}, RefundedAmount: decimal.Zero}
}
