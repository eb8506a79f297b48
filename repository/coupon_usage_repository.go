package repository

import (
	"context"

	"checkout-service/apperrors"
	"checkout-service/database"
	"checkout-service/models"

	"gorm.io/gorm"
)

type CouponUsageRepository interface {
	MarkUsed(ctx context.Context, userID, couponID, orderID uint) error
	RevertUsage(ctx context.Context, userID, couponID, orderID uint) error
	GetCouponIDsUsedInOrder(ctx context.Context, orderID uint) ([]uint, error)
}

type GormCouponUsageRepository struct {
	db *gorm.DB
}

func NewGormCouponUsageRepository(db *gorm.DB) *GormCouponUsageRepository {
	return &GormCouponUsageRepository{db: db}
}

// MarkUsed records the redemption and bumps the coupon's used_count.
func (r *GormCouponUsageRepository) MarkUsed(ctx context.Context, userID, couponID, orderID uint) error {
	db := database.Conn(ctx, r.db)

	result := db.Model(&models.Coupon{}).
		Where("id = ? AND active = ?", couponID, true).
		UpdateColumn("used_count", gorm.Expr("used_count + 1"))
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}

	return db.Create(&models.CouponUsage{
		CouponID: couponID,
		OrderID:  orderID,
		UserID:   userID,
	}).Error
}

// RevertUsage deletes the redemption and gives the use back to the coupon.
func (r *GormCouponUsageRepository) RevertUsage(ctx context.Context, userID, couponID, orderID uint) error {
	db := database.Conn(ctx, r.db)

	result := db.Where("coupon_id = ? AND order_id = ? AND user_id = ?", couponID, orderID, userID).
		Delete(&models.CouponUsage{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}

	return db.Model(&models.Coupon{}).
		Where("id = ? AND used_count > 0", couponID).
		UpdateColumn("used_count", gorm.Expr("used_count - 1")).
		Error
}

func (r *GormCouponUsageRepository) GetCouponIDsUsedInOrder(ctx context.Context, orderID uint) ([]uint, error) {
	var ids []uint
	err := database.Conn(ctx, r.db).
		Model(&models.CouponUsage{}).
		Where("order_id = ?", orderID).
		Order("id").
		Pluck("coupon_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
