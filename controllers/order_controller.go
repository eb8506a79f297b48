package controllers

import (
	"context"
	"net/http"
	"strconv"

	"checkout-service/middleware"
	"checkout-service/models"
	"checkout-service/services"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

type CheckoutProcessor interface {
	ProcessCheckout(ctx context.Context, cartID uint, draft *models.OrderDraft, userID uint) *models.CheckoutResult
}

type OrderCanceller interface {
	CancelOrder(ctx context.Context, orderID uint, reason string, performedBy uint) *models.CancellationResult
}

type RefundProcessor interface {
	ProcessRefund(ctx context.Context, orderID uint, reason string, refundAmount *decimal.Decimal, performedBy uint) *models.RefundResult
}

type OrderReader interface {
	GetOrder(ctx context.Context, orderID, userID uint, isAdmin bool) (*models.Order, *services.ServiceError)
	GetOrderHistory(ctx context.Context, orderID, userID uint, isAdmin bool) ([]models.SagaLog, *services.ServiceError)
}

type OrderController struct {
	checkout     CheckoutProcessor
	cancellation OrderCanceller
	refunds      RefundProcessor
	orders       OrderReader
}

func NewOrderController(checkout CheckoutProcessor, cancellation OrderCanceller, refunds RefundProcessor, orders OrderReader) *OrderController {
	return &OrderController{
		checkout:     checkout,
		cancellation: cancellation,
		refunds:      refunds,
		orders:       orders,
	}
}

// statusFor maps an orchestration error kind onto an HTTP status.
func statusFor(kind models.ErrorKind) int {
	switch kind {
	case models.ErrorKindNotFound:
		return http.StatusNotFound
	case models.ErrorKindInvalidState:
		return http.StatusConflict
	case models.ErrorKindValidation:
		return http.StatusBadRequest
	case models.ErrorKindStepFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Checkout handles POST /checkout
func (oc *OrderController) Checkout(ctx *gin.Context) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req models.CheckoutRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}
	if req.ShippingCost != nil && req.ShippingCost.IsNegative() {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "shipping_cost cannot be negative"})
		return
	}

	result := oc.checkout.ProcessCheckout(ctx.Request.Context(), req.CartID, req.Draft(), userID)
	if !result.IsSuccess {
		ctx.JSON(statusFor(result.ErrorKind), result)
		return
	}
	ctx.JSON(http.StatusCreated, result)
}

// CancelOrder handles POST /orders/:id/cancel
func (oc *OrderController) CancelOrder(ctx *gin.Context) {
	userID, orderID, ok := oc.ownedOrder(ctx)
	if !ok {
		return
	}

	var req models.CancelOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	result := oc.cancellation.CancelOrder(ctx.Request.Context(), orderID, req.Reason, userID)
	if !result.IsSuccess {
		ctx.JSON(statusFor(result.ErrorKind), result)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// RefundOrder handles POST /orders/:id/refund (admin only)
func (oc *OrderController) RefundOrder(ctx *gin.Context) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	orderID, ok := parseOrderID(ctx)
	if !ok {
		return
	}

	var req models.RefundOrderRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request", "details": err.Error()})
		return
	}

	result := oc.refunds.ProcessRefund(ctx.Request.Context(), orderID, req.Reason, req.Amount, userID)
	if !result.IsSuccess {
		ctx.JSON(statusFor(result.ErrorKind), result)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

// GetOrder handles GET /orders/:id
func (oc *OrderController) GetOrder(ctx *gin.Context) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	orderID, ok := parseOrderID(ctx)
	if !ok {
		return
	}

	order, serr := oc.orders.GetOrder(ctx.Request.Context(), orderID, userID, middleware.IsAdmin(ctx))
	if serr != nil {
		ctx.JSON(serr.StatusCode, gin.H{"error": serr.Message})
		return
	}
	ctx.JSON(http.StatusOK, order)
}

// GetOrderHistory handles GET /orders/:id/history
func (oc *OrderController) GetOrderHistory(ctx *gin.Context) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	orderID, ok := parseOrderID(ctx)
	if !ok {
		return
	}

	entries, serr := oc.orders.GetOrderHistory(ctx.Request.Context(), orderID, userID, middleware.IsAdmin(ctx))
	if serr != nil {
		ctx.JSON(serr.StatusCode, gin.H{"error": serr.Message})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"order_id": orderID, "steps": entries})
}

// ownedOrder resolves the caller and the path order and checks that the
// caller may act on it. Admins may act on any order.
func (oc *OrderController) ownedOrder(ctx *gin.Context) (uint, uint, bool) {
	userID, err := middleware.GetUserID(ctx)
	if err != nil {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return 0, 0, false
	}
	orderID, ok := parseOrderID(ctx)
	if !ok {
		return 0, 0, false
	}
	if _, serr := oc.orders.GetOrder(ctx.Request.Context(), orderID, userID, middleware.IsAdmin(ctx)); serr != nil {
		ctx.JSON(serr.StatusCode, gin.H{"error": serr.Message})
		return 0, 0, false
	}
	return userID, orderID, true
}

func parseOrderID(ctx *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil || id == 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order ID"})
		return 0, false
	}
	return uint(id), true
}
