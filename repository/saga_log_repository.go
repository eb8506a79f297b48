package repository

import (
	"context"

	"checkout-service/models"

	"gorm.io/gorm"
)

type SagaLogRepository interface {
	Append(ctx context.Context, entry *models.SagaLog) error
	FindByOrderID(ctx context.Context, orderID uint) ([]models.SagaLog, error)
}

// GormSagaLogRepository writes on its own connection, never through the
// business transaction, so steps of rolled-back runs stay visible.
type GormSagaLogRepository struct {
	db *gorm.DB
}

func NewGormSagaLogRepository(db *gorm.DB) *GormSagaLogRepository {
	return &GormSagaLogRepository{db: db}
}

func (r *GormSagaLogRepository) Append(ctx context.Context, entry *models.SagaLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *GormSagaLogRepository) FindByOrderID(ctx context.Context, orderID uint) ([]models.SagaLog, error) {
	var entries []models.SagaLog
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
