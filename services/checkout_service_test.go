package services_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"checkout-service/apperrors"
	"checkout-service/models"
	aws_pkg "checkout-service/pkg/aws"
	"checkout-service/services"

	"github.com/stretchr/testify/assert"
)

func checkout(h *harness, userID uint) *models.CheckoutResult {
	svc := services.NewCheckoutService(h.deps())
	draft := &models.OrderDraft{ShippingAddress: "1 Main St"}
	return svc.ProcessCheckout(context.Background(), 1, draft, userID)
}

func TestProcessCheckout_HappyPath(t *testing.T) {
	h := newHarness()
	h.carts.cart = activeCart()

	result := checkout(h, 9)

	assert.True(t, result.IsSuccess)
	assert.Nil(t, result.ErrorMessage)
	assert.NotNil(t, result.Order)
	assert.NotZero(t, result.Order.ID)
	assert.Empty(t, result.Warnings)
	assert.NotNil(t, result.Warnings)

	assert.Equal(t, []string{
		"GetActiveCart:1",
		"IsInStock:10:2",
		"IsInStock:20:3",
		"Begin",
		"CreateFromCart:1:9",
		"ConfirmDeduction:10:2:101:Order",
		"ConfirmDeduction:20:3:101:Order",
		"MarkUsed:9:7:101",
		"ClearCart:1:9:sess-1",
		"Commit",
	}, h.log)
	assert.Equal(t, 1, h.txCreated)

	assert.Len(t, h.events.published, 1)
	assert.Equal(t, models.EventOrderCreated, h.events.published[0].EventType)
	assert.Equal(t, uint(101), h.events.published[0].OrderID)
	assert.Contains(t, h.metrics.names, aws_pkg.MetricOrdersCreated)
}

func TestProcessCheckout_InactiveCart(t *testing.T) {
	for _, status := range []models.CartStatus{models.CartStatusAbandoned, models.CartStatusConverted, models.CartStatusExpired} {
		t.Run(string(status), func(t *testing.T) {
			h := newHarness()
			cart := activeCart()
			cart.Status = status
			h.carts.cart = cart

			result := checkout(h, 9)

			assert.False(t, result.IsSuccess)
			assert.Equal(t, "Cart not found or inactive", result.Message())
			assert.Equal(t, models.ErrorKindNotFound, result.ErrorKind)
			assert.Empty(t, h.mutations())
			assert.Empty(t, h.calls("IsInStock"))
		})
	}
}

func TestProcessCheckout_CartMissing(t *testing.T) {
	h := newHarness()

	result := checkout(h, 9)

	assert.False(t, result.IsSuccess)
	assert.Equal(t, "Cart not found or inactive", result.Message())
	assert.Empty(t, h.mutations())
	assert.Contains(t, h.metrics.names, aws_pkg.MetricCheckoutFailed)
}

func TestProcessCheckout_CartStoreError(t *testing.T) {
	h := newHarness()
	h.carts.getErr = errors.New("redis: connection refused")

	result := checkout(h, 9)

	assert.False(t, result.IsSuccess)
	assert.Equal(t, "Unexpected error: redis: connection refused", result.Message())
	assert.Equal(t, models.ErrorKindUnexpected, result.ErrorKind)
	assert.Empty(t, h.mutations())
}

func TestProcessCheckout_EmptyCart(t *testing.T) {
	h := newHarness()
	cart := activeCart()
	cart.CartItems = nil
	h.carts.cart = cart

	result := checkout(h, 9)

	assert.False(t, result.IsSuccess)
	assert.Contains(t, result.Message(), "empty")
	assert.Equal(t, models.ErrorKindValidation, result.ErrorKind)
	assert.Empty(t, h.mutations())
}

func TestProcessCheckout_StockProbeFails(t *testing.T) {
	h := newHarness()
	h.carts.cart = activeCart()
	h.inventory.outOfStock[20] = true

	result := checkout(h, 9)

	assert.False(t, result.IsSuccess)
	assert.Equal(t, "Insufficient stock for product ID 20", result.Message())
	assert.Empty(t, h.mutations())
	assert.Zero(t, h.txCreated)
}

func TestProcessCheckout_DeductionFailsAtItemK(t *testing.T) {
	h := newHarness()
	cart := activeCart()
	cart.CartItems = append(cart.CartItems, models.CartItem{ProductID: 30, Quantity: 1})
	h.carts.cart = cart
	h.inventory.deductErr[20] = errors.New("row lock timeout")

	result := checkout(h, 9)

	assert.False(t, result.IsSuccess)
	assert.Equal(t, "Failed to confirm stock deduction for product ID 20", result.Message())
	assert.Equal(t, models.ErrorKindStepFailed, result.ErrorKind)
	assert.Nil(t, result.Order)

	assert.Len(t, h.calls("CreateFromCart"), 1)
	assert.Equal(t, []string{
		"ConfirmDeduction:10:2:101:Order",
		"ConfirmDeduction:20:3:101:Order",
	}, h.calls("ConfirmDeduction"))
	assert.Len(t, h.calls("Rollback"), 1)
	assert.Empty(t, h.calls("Commit"))
	assert.Empty(t, h.calls("MarkUsed"))
	assert.Empty(t, h.calls("ClearCart"))
	assert.Empty(t, h.events.published)
}

func TestProcessCheckout_DeductionLosesStockRace(t *testing.T) {
	h := newHarness()
	h.carts.cart = activeCart()
	h.inventory.deductErr[10] = apperrors.ErrInsufficientStock

	result := checkout(h, 9)

	assert.False(t, result.IsSuccess)
	assert.Equal(t, "Insufficient stock for product ID 10", result.Message())
	assert.Len(t, h.calls("Rollback"), 1)
}

func TestProcessCheckout_CreateOrderFails(t *testing.T) {
	h := newHarness()
	h.carts.cart = activeCart()
	h.orders.createErr = errors.New("unique violation")

	result := checkout(h, 9)

	assert.False(t, result.IsSuccess)
	assert.Equal(t, "Failed to create order", result.Message())
	assert.Empty(t, h.calls("ConfirmDeduction"))
	assert.Len(t, h.calls("Rollback"), 1)
}

func TestProcessCheckout_CouponFailuresAreWarnings(t *testing.T) {
	h := newHarness()
	cart := activeCart()
	cart.CartCoupons = append(cart.CartCoupons,
		models.CartCoupon{CouponID: 8, Code: "FREESHIP"},
		models.CartCoupon{CouponID: 11, Code: "VIP"},
	)
	h.carts.cart = cart
	h.coupons.markErr[8] = errors.New("coupon inactive")

	result := checkout(h, 9)

	assert.True(t, result.IsSuccess)
	assert.NotNil(t, result.Order)
	assert.Equal(t, []string{"Failed to mark coupon FREESHIP as used"}, result.Warnings)
	assert.Len(t, h.calls("MarkUsed"), 3)
	assert.Len(t, h.calls("Commit"), 1)
	assert.Empty(t, h.calls("Rollback"))
	assert.Contains(t, h.metrics.names, aws_pkg.MetricSagaWarnings)
}

func TestProcessCheckout_AnonymousSkipsCoupons(t *testing.T) {
	h := newHarness()
	cart := activeCart()
	cart.UserID = 0
	h.carts.cart = cart

	result := checkout(h, 0)

	assert.True(t, result.IsSuccess)
	assert.Empty(t, h.calls("MarkUsed"))
	assert.Equal(t, []string{"ClearCart:1:0:sess-1"}, h.calls("ClearCart"))
}

func TestProcessCheckout_ClearCartFailureIsWarning(t *testing.T) {
	h := newHarness()
	h.carts.cart = activeCart()
	h.carts.clearErr = errors.New("redis timeout")

	result := checkout(h, 9)

	assert.True(t, result.IsSuccess)
	assert.Equal(t, []string{"Failed to clear cart 1"}, result.Warnings)
	assert.Len(t, h.calls("Commit"), 1)
}

func TestProcessCheckout_SoftStepsRunInSavepoints(t *testing.T) {
	h := newHarness()
	h.carts.cart = activeCart()

	checkout(h, 9)

	// one coupon plus the cart clear
	assert.Equal(t, 2, h.tx.savepoints)
}

func TestProcessCheckout_CommitFails(t *testing.T) {
	h := newHarness()
	h.carts.cart = activeCart()
	h.tx.commitErr = errors.New("connection reset")

	result := checkout(h, 9)

	assert.False(t, result.IsSuccess)
	assert.Equal(t, "Failed to commit checkout transaction", result.Message())
	assert.Equal(t, models.ErrorKindTransaction, result.ErrorKind)
	assert.Len(t, h.calls("Rollback"), 1)
	assert.Nil(t, result.Order)
	assert.Empty(t, h.events.published)
	assert.Empty(t, result.Warnings)

	// The cart was cleared inside the transaction but lives in Redis, so it
	// is put back once the rollback is done.
	n := len(h.log)
	assert.Equal(t, []string{"Rollback", "RestoreCart:1:9:sess-1"}, h.log[n-2:])
	restored := h.carts.restored
	if assert.NotNil(t, restored) {
		assert.Equal(t, models.CartStatusActive, restored.Status)
		assert.Len(t, restored.CartItems, 2)
		assert.Equal(t, uint(10), restored.CartItems[0].ProductID)
		assert.Equal(t, 3, restored.CartItems[1].Quantity)
		assert.Len(t, restored.CartCoupons, 1)
		assert.Equal(t, "SAVE5", restored.CartCoupons[0].Code)
	}

	last := h.journal.entries[len(h.journal.entries)-1]
	assert.Equal(t, "restore_cart", last.Step)
	assert.Equal(t, models.SagaStepSucceeded, last.Status)
}

func TestProcessCheckout_RestoreFailureIsWarning(t *testing.T) {
	h := newHarness()
	h.carts.cart = activeCart()
	h.tx.commitErr = errors.New("connection reset")
	h.carts.restoreErr = errors.New("redis down")

	result := checkout(h, 9)

	assert.False(t, result.IsSuccess)
	assert.Equal(t, "Failed to commit checkout transaction", result.Message())
	assert.Equal(t, models.ErrorKindTransaction, result.ErrorKind)
	assert.Equal(t, []string{"Failed to restore cart 1"}, result.Warnings)
}

func TestProcessCheckout_UnclearedCartIsNotRestored(t *testing.T) {
	h := newHarness()
	h.carts.cart = activeCart()
	h.carts.clearErr = errors.New("redis timeout")
	h.tx.commitErr = errors.New("connection reset")

	result := checkout(h, 9)

	assert.False(t, result.IsSuccess)
	assert.Empty(t, h.calls("RestoreCart"))
}

func TestProcessCheckout_FatalStepBeforeClearSkipsRestore(t *testing.T) {
	h := newHarness()
	h.carts.cart = activeCart()
	h.inventory.deductErr[20] = errors.New("row lock timeout")

	checkout(h, 9)

	assert.Empty(t, h.calls("ClearCart"))
	assert.Empty(t, h.calls("RestoreCart"))
}

func TestProcessCheckout_CartOwnedByAnotherUser(t *testing.T) {
	for _, caller := range []uint{0, 5} {
		h := newHarness()
		h.carts.cart = activeCart()

		result := checkout(h, caller)

		assert.False(t, result.IsSuccess)
		assert.Equal(t, "Cart not found or inactive", result.Message())
		assert.Equal(t, models.ErrorKindNotFound, result.ErrorKind)
		assert.Empty(t, h.mutations())
		assert.Empty(t, h.calls("IsInStock"))
	}
}

func TestProcessCheckout_GuestCartClearsGuestKeysOnly(t *testing.T) {
	h := newHarness()
	cart := activeCart()
	cart.UserID = 0
	h.carts.cart = cart

	result := checkout(h, 5)

	assert.True(t, result.IsSuccess)
	assert.Equal(t, []string{"CreateFromCart:1:5"}, h.calls("CreateFromCart"))
	assert.Equal(t, []string{"ClearCart:1:0:sess-1"}, h.calls("ClearCart"))
}

func TestProcessCheckout_EventPublishIsBounded(t *testing.T) {
	h := newHarness()
	h.carts.cart = activeCart()

	// A cancelled request context still gets a bounded, live publish.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	svc := services.NewCheckoutService(h.deps())
	result := svc.ProcessCheckout(ctx, 1, &models.OrderDraft{}, 9)

	assert.True(t, result.IsSuccess)
	if assert.Len(t, h.events.deadlines, 1) {
		assert.Greater(t, h.events.deadlines[0], time.Duration(0))
		assert.LessOrEqual(t, h.events.deadlines[0], 3*time.Second)
	}
}

func TestProcessCheckout_PanicInsideTransaction(t *testing.T) {
	h := newHarness()
	h.carts.cart = activeCart()
	h.orders.createPanic = "nil map write"

	result := checkout(h, 9)

	assert.False(t, result.IsSuccess)
	assert.Equal(t, "Checkout transaction failed: nil map write", result.Message())
	assert.Len(t, h.calls("Rollback"), 1)
	assert.Empty(t, h.calls("Commit"))
}

func TestProcessCheckout_PanicOutsideTransaction(t *testing.T) {
	h := newHarness()
	h.carts.cart = activeCart()
	h.inventory.probePanic = "boom"

	result := checkout(h, 9)

	assert.False(t, result.IsSuccess)
	assert.Equal(t, "Unexpected error: boom", result.Message())
	assert.Equal(t, models.ErrorKindUnexpected, result.ErrorKind)
	assert.Empty(t, h.mutations())
}

func TestProcessCheckout_RetriesFailedBegin(t *testing.T) {
	h := newHarness()
	h.carts.cart = activeCart()
	h.tx.beginErrs = []error{errors.New("deadlock detected")}

	result := checkout(h, 9)

	assert.True(t, result.IsSuccess)
	assert.Len(t, h.calls("Begin"), 2)
	assert.Len(t, h.calls("CreateFromCart"), 1)
	assert.Len(t, h.calls("ConfirmDeduction"), 2)
}

func TestProcessCheckout_BeginNeverSucceeds(t *testing.T) {
	h := newHarness()
	h.carts.cart = activeCart()
	down := errors.New("too many connections")
	h.tx.beginErrs = []error{down, down, down}

	result := checkout(h, 9)

	assert.False(t, result.IsSuccess)
	assert.Equal(t, "Checkout transaction failed: too many connections", result.Message())
	assert.Equal(t, models.ErrorKindTransaction, result.ErrorKind)
	assert.Empty(t, h.calls("CreateFromCart"))
}

func TestProcessCheckout_JournalsEveryStep(t *testing.T) {
	h := newHarness()
	h.carts.cart = activeCart()
	h.coupons.markErr[7] = errors.New("already used")

	checkout(h, 9)

	assert.Len(t, h.journal.entries, 5)
	first := h.journal.entries[0]
	assert.Equal(t, "create_order", first.Step)
	assert.Equal(t, models.SagaTypeCheckout, first.SagaType)
	assert.True(t, first.Fatal)
	assert.Equal(t, models.SagaStepSucceeded, first.Status)

	coupon := h.journal.entries[3]
	assert.Equal(t, "mark_coupon_used:7", coupon.Step)
	assert.Equal(t, models.SagaStepFailed, coupon.Status)
	assert.Equal(t, "already used", coupon.Error)
	assert.Equal(t, uint(101), *coupon.OrderID)

	for _, entry := range h.journal.entries {
		assert.Equal(t, first.SagaID, entry.SagaID)
	}
}

func TestProcessCheckout_EventFailureDoesNotFailCheckout(t *testing.T) {
	h := newHarness()
	h.carts.cart = activeCart()
	h.events.err = errors.New("sns throttled")

	result := checkout(h, 9)

	assert.True(t, result.IsSuccess)
	assert.Empty(t, result.Warnings)
}

func TestProcessCheckout_OptionalDependencies(t *testing.T) {
	h := newHarness()
	h.carts.cart = activeCart()
	deps := h.deps()
	deps.Events = nil
	deps.Journal = nil
	deps.Metrics = nil
	deps.Logger = nil

	result := services.NewCheckoutService(deps).ProcessCheckout(context.Background(), 1, nil, 9)

	assert.True(t, result.IsSuccess)
}
