package payments

import (
	"context"
	"errors"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/refund"
)

// RefundOutcome is what the provider reported for one refund request.
type RefundOutcome struct {
	ID        string
	Status    string
	Succeeded bool
	Message   string
}

// Gateway issues refunds against the payment provider. amountMinor is in the
// currency's minor unit (cents).
type Gateway interface {
	Refund(ctx context.Context, providerPaymentID string, amountMinor int64, reason string) (*RefundOutcome, error)
}

type StripeGateway struct {
	newRefund func(params *stripe.RefundParams) (*stripe.Refund, error)
}

func NewStripeGateway(secretKey string) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{newRefund: refund.New}
}

// Refund creates a Stripe refund for a PaymentIntent. Stripe request errors
// (already refunded, amount too large) come back as an unsuccessful outcome;
// network and API failures come back as errors.
func (g *StripeGateway) Refund(ctx context.Context, providerPaymentID string, amountMinor int64, reason string) (*RefundOutcome, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(providerPaymentID),
		Amount:        stripe.Int64(amountMinor),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	if reason != "" {
		params.AddMetadata("reason", reason)
	}

	r, err := g.newRefund(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeInvalidRequest {
			return &RefundOutcome{Status: string(stripe.RefundStatusFailed), Message: stripeErr.Msg}, nil
		}
		return nil, err
	}

	outcome := &RefundOutcome{ID: r.ID, Status: string(r.Status)}
	switch r.Status {
	case stripe.RefundStatusSucceeded, stripe.RefundStatusPending:
		outcome.Succeeded = true
	default:
		outcome.Message = "refund " + string(r.Status)
		if r.FailureReason != "" {
			outcome.Message += ": " + string(r.FailureReason)
		}
	}
	return outcome, nil
}
