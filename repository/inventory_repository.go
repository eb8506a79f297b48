package repository

import (
	"context"
	"errors"

	"checkout-service/apperrors"
	"checkout-service/database"
	"checkout-service/models"

	"gorm.io/gorm"
)

type InventoryRepository interface {
	IsInStock(ctx context.Context, productID uint, quantity int) (bool, error)
	ConfirmDeduction(ctx context.Context, productID uint, quantity int, orderID uint, source string) error
	AddStock(ctx context.Context, productID uint, quantity int, note string, performedBy uint) error
}

type GormInventoryRepository struct {
	db *gorm.DB
}

func NewGormInventoryRepository(db *gorm.DB) *GormInventoryRepository {
	return &GormInventoryRepository{db: db}
}

// IsInStock is a plain read. Only ConfirmDeduction is authoritative.
func (r *GormInventoryRepository) IsInStock(ctx context.Context, productID uint, quantity int) (bool, error) {
	var item models.InventoryItem
	err := database.Conn(ctx, r.db).
		Select("product_id", "available").
		Where("product_id = ?", productID).
		First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return item.Available >= quantity, nil
}

// ConfirmDeduction decrements available stock only if enough remains and
// records the movement.
func (r *GormInventoryRepository) ConfirmDeduction(ctx context.Context, productID uint, quantity int, orderID uint, source string) error {
	if quantity <= 0 {
		return apperrors.ErrInvalidOrder
	}
	db := database.Conn(ctx, r.db)

	result := db.Model(&models.InventoryItem{}).
		Where("product_id = ? AND available >= ?", productID, quantity).
		UpdateColumn("available", gorm.Expr("available - ?", quantity))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrInsufficientStock
	}

	return db.Create(&models.StockMovement{
		ProductID: productID,
		Quantity:  -quantity,
		OrderID:   &orderID,
		Source:    source,
	}).Error
}

// AddStock returns quantity units to the product and records why.
func (r *GormInventoryRepository) AddStock(ctx context.Context, productID uint, quantity int, note string, performedBy uint) error {
	if quantity <= 0 {
		return apperrors.ErrInvalidOrder
	}
	db := database.Conn(ctx, r.db)

	result := db.Model(&models.InventoryItem{}).
		Where("product_id = ?", productID).
		UpdateColumn("available", gorm.Expr("available + ?", quantity))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}

	movement := &models.StockMovement{
		ProductID: productID,
		Quantity:  quantity,
		Source:    models.StockSourceRestock,
		Note:      note,
	}
	if performedBy > 0 {
		movement.PerformedBy = &performedBy
	}
	return db.Create(movement).Error
}
