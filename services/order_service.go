package services

import (
	"context"
	"net/http"

	"checkout-service/apperrors"
	"checkout-service/models"

	"go.uber.org/zap"
)

type ServiceError struct {
	StatusCode int
	Message    string
}

func (e *ServiceError) Error() string {
	return e.Message
}

type SagaHistory interface {
	FindByOrderID(ctx context.Context, orderID uint) ([]models.SagaLog, error)
}

// OrderService serves the read side: an order and the saga steps that
// touched it.
type OrderService struct {
	orders  OrderRepository
	history SagaHistory
	logger  *zap.Logger
}

func NewOrderService(orders OrderRepository, history SagaHistory, logger *zap.Logger) *OrderService {
	return &OrderService{orders: orders, history: history, logger: loggerOrNop(logger)}
}

// GetOrder returns the order if userID owns it. Admins may read any order.
func (s *OrderService) GetOrder(ctx context.Context, orderID, userID uint, isAdmin bool) (*models.Order, *ServiceError) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, &ServiceError{StatusCode: http.StatusNotFound, Message: "Order not found"}
		}
		s.logger.Error("Failed to fetch order", zap.Uint("order_id", orderID), zap.Error(err))
		return nil, &ServiceError{StatusCode: http.StatusInternalServerError, Message: "Failed to fetch order"}
	}
	if !isAdmin && order.UserID != userID {
		return nil, &ServiceError{StatusCode: http.StatusNotFound, Message: "Order not found"}
	}
	return order, nil
}

// GetOrderHistory lists the journaled saga steps for an order, oldest first.
func (s *OrderService) GetOrderHistory(ctx context.Context, orderID, userID uint, isAdmin bool) ([]models.SagaLog, *ServiceError) {
	if _, serr := s.GetOrder(ctx, orderID, userID, isAdmin); serr != nil {
		return nil, serr
	}
	if s.history == nil {
		return []models.SagaLog{}, nil
	}
	entries, err := s.history.FindByOrderID(ctx, orderID)
	if err != nil {
		s.logger.Error("Failed to fetch saga history", zap.Uint("order_id", orderID), zap.Error(err))
		return nil, &ServiceError{StatusCode: http.StatusInternalServerError, Message: "Failed to fetch order history"}
	}
	return entries, nil
}
