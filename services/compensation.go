package services

import (
	"context"
	"fmt"

	"checkout-service/models"
)

// restockSteps puts every line item of order back into inventory. Each item
// is a soft step; restored flips to true once any item succeeds.
func restockSteps(inventory InventoryService, order *models.Order, note string, performedBy uint, restored *bool) []step {
	steps := make([]step, 0, len(order.OrderItems))
	for _, item := range order.OrderItems {
		steps = append(steps, step{
			name: fmt.Sprintf("restore_stock:%d", item.ProductID),
			do: func(ctx context.Context) error {
				return inventory.AddStock(ctx, item.ProductID, item.Quantity, note, performedBy)
			},
			onFailure: func(error) string {
				return fmt.Sprintf("Failed to restore stock for product ID %d", item.ProductID)
			},
			onSuccess: func() { *restored = true },
		})
	}
	return steps
}

// revertCoupons releases the coupons order consumed. Orders without a user
// never marked any coupon, so they are skipped.
func revertCoupons(ctx context.Context, run *sagaRun, coupons CouponUsageService, order *models.Order, reverted *bool) {
	if order.UserID == 0 {
		return
	}

	var couponIDs []uint
	run.run(ctx, step{
		name: "lookup_coupons",
		do: func(ctx context.Context) error {
			ids, err := coupons.GetCouponIDsUsedInOrder(ctx, order.ID)
			couponIDs = ids
			return err
		},
		onFailure: func(error) string {
			return fmt.Sprintf("Failed to look up coupons used in order %s", order.ReferenceNumber)
		},
	})

	steps := make([]step, 0, len(couponIDs))
	for _, couponID := range couponIDs {
		steps = append(steps, step{
			name: fmt.Sprintf("revert_coupon:%d", couponID),
			do: func(ctx context.Context) error {
				return coupons.RevertUsage(ctx, order.UserID, couponID, order.ID)
			},
			onFailure: func(error) string {
				return fmt.Sprintf("Failed to revert usage of coupon %d", couponID)
			},
			onSuccess: func() { *reverted = true },
		})
	}
	run.run(ctx, steps...)
}

// statusStep is the fatal transition that closes a cancellation or refund.
func statusStep(orders OrderRepository, order *models.Order, status models.OrderStatus) step {
	return step{
		name:  "update_status:" + string(status),
		fatal: true,
		do: func(ctx context.Context) error {
			return orders.UpdateStatus(ctx, order.ID, status)
		},
		onFailure: func(error) string {
			return fmt.Sprintf("Failed to update order status to %s", status)
		},
	}
}

func auditNote(order *models.Order, action, reason string) string {
	if reason == "" {
		return fmt.Sprintf("Order %s %s", order.ReferenceNumber, action)
	}
	return fmt.Sprintf("Order %s %s: %s", order.ReferenceNumber, action, reason)
}
