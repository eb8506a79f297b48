package routes

import (
	"checkout-service/controllers"
	"checkout-service/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers the checkout and order lifecycle endpoints.
func RegisterRoutes(r *gin.Engine, ctrl *controllers.OrderController, health *controllers.HealthController, jwtSecret string) {
	r.GET("/health", health.Health)

	auth := middleware.AuthMiddleware(jwtSecret)

	r.POST("/checkout", auth, ctrl.Checkout)

	orders := r.Group("/orders")
	orders.Use(auth)
	{
		orders.GET("/:id", ctrl.GetOrder)
		orders.GET("/:id/history", ctrl.GetOrderHistory)
		orders.POST("/:id/cancel", ctrl.CancelOrder)
		orders.POST("/:id/refund", middleware.AdminOnly(), ctrl.RefundOrder)
	}
}
