package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"checkout-service/apperrors"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Postgres SQLSTATE codes worth retrying.
var retryableCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"08006": true, // connection_failure
	"57P01": true, // admin_shutdown
}

// GormTransactionCoordinator owns one gorm transaction at a time. It is
// created per orchestration call and must not be shared.
type GormTransactionCoordinator struct {
	db          *gorm.DB
	tx          *gorm.DB
	maxRetries  int
	backoff     time.Duration
	logger      *zap.Logger
	savepointID int
}

func NewGormTransactionCoordinator(db *gorm.DB, maxRetries int, backoff time.Duration, logger *zap.Logger) *GormTransactionCoordinator {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &GormTransactionCoordinator{
		db:         db,
		maxRetries: maxRetries,
		backoff:    backoff,
		logger:     logger,
	}
}

// BeginTransaction opens a transaction and returns a context that carries it.
func (c *GormTransactionCoordinator) BeginTransaction(ctx context.Context) (context.Context, error) {
	if c.tx != nil {
		return ctx, apperrors.ErrTransactionActive
	}
	tx := c.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return ctx, fmt.Errorf("begin transaction: %w", tx.Error)
	}
	c.tx = tx
	c.savepointID = 0
	return WithTx(ctx, tx), nil
}

func (c *GormTransactionCoordinator) Commit(_ context.Context) error {
	if c.tx == nil {
		return apperrors.ErrNoTransaction
	}
	err := c.tx.Commit().Error
	c.tx = nil
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabaseTransaction, err)
	}
	return nil
}

// Rollback is a no-op when no transaction is open.
func (c *GormTransactionCoordinator) Rollback(_ context.Context) error {
	if c.tx == nil {
		return nil
	}
	err := c.tx.Rollback().Error
	c.tx = nil
	if err != nil {
		return apperrors.Wrap(apperrors.ErrDatabaseTransaction, err)
	}
	return nil
}

// WithSavepoint runs fn so that its writes can be undone without aborting the
// surrounding transaction. Outside a transaction fn runs as is.
func (c *GormTransactionCoordinator) WithSavepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	if c.tx == nil {
		return fn(ctx)
	}
	c.savepointID++
	name := fmt.Sprintf("sp_%d", c.savepointID)
	if err := c.tx.SavePoint(name).Error; err != nil {
		return fmt.Errorf("savepoint %s: %w", name, err)
	}
	if err := fn(ctx); err != nil {
		if rbErr := c.tx.RollbackTo(name).Error; rbErr != nil {
			c.logger.Warn("Rollback to savepoint failed", zap.String("savepoint", name), zap.Error(rbErr))
		}
		return err
	}
	return nil
}

// ExecuteWithRetry runs fn and re-runs it while it fails with a retryable
// database error, up to maxRetries extra attempts with linear backoff.
func (c *GormTransactionCoordinator) ExecuteWithRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.backoff * time.Duration(attempt)):
			}
		}

		err = fn(ctx)
		if err == nil || !IsRetryable(err) {
			return err
		}
		c.logger.Warn("Retrying transaction", zap.Int("attempt", attempt+1), zap.Error(err))
		_ = c.Rollback(ctx)
	}
	return err
}

// IsRetryable reports whether err is a transient database failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return retryableCodes[pgErr.Code]
	}
	return false
}
