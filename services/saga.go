package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"checkout-service/apperrors"
	"checkout-service/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// step is one unit of an orchestration. A fatal step stops the run when it
// fails. A soft step turns its failure into a warning and the run goes on.
// compensation undoes do when the transaction does not commit; only steps
// with effects outside the database need one.
type step struct {
	name         string
	fatal        bool
	do           func(ctx context.Context) error
	onFailure    func(err error) string
	onSuccess    func()
	compensation *step
}

type stepFailure struct {
	kind    models.ErrorKind
	message string
}

// sagaRun executes steps for one orchestration call and journals each outcome.
type sagaRun struct {
	id      uuid.UUID
	kind    string
	orderID *uint
	cartID  *uint
	tx      TransactionCoordinator
	journal SagaJournal
	logger  *zap.Logger
	outcome *models.Outcome
	undo    []step
}

func newSagaRun(kind string, tx TransactionCoordinator, journal SagaJournal, logger *zap.Logger, outcome *models.Outcome) *sagaRun {
	return &sagaRun{
		id:      uuid.New(),
		kind:    kind,
		tx:      tx,
		journal: journal,
		logger:  logger,
		outcome: outcome,
	}
}

// run executes steps in order and returns the first fatal failure.
func (r *sagaRun) run(ctx context.Context, steps ...step) *stepFailure {
	for _, s := range steps {
		var err error
		if s.fatal {
			err = s.do(ctx)
		} else {
			// A failed statement poisons a Postgres transaction, so soft steps
			// get a savepoint to roll back to.
			err = r.tx.WithSavepoint(ctx, s.do)
		}

		if err == nil {
			r.record(ctx, s, nil)
			if s.onSuccess != nil {
				s.onSuccess()
			}
			if s.compensation != nil {
				r.undo = append(r.undo, *s.compensation)
			}
			continue
		}

		r.record(ctx, s, err)
		message := s.onFailure(err)
		if !s.fatal {
			r.logger.Warn("Saga step failed, continuing",
				zap.String("saga", r.kind),
				zap.String("step", s.name),
				zap.Error(err),
			)
			r.outcome.Warnings = append(r.outcome.Warnings, message)
			continue
		}

		r.logger.Error("Saga step failed",
			zap.String("saga", r.kind),
			zap.String("step", s.name),
			zap.Error(err),
		)
		kind := models.ErrorKindStepFailed
		if errors.Is(err, apperrors.ErrConcurrentUpdate) {
			kind = models.ErrorKindInvalidState
		}
		return &stepFailure{kind: kind, message: message}
	}
	return nil
}

func (r *sagaRun) record(ctx context.Context, s step, err error) {
	if r.journal == nil {
		return
	}
	entry := &models.SagaLog{
		SagaID:   r.id,
		SagaType: r.kind,
		OrderID:  r.orderID,
		CartID:   r.cartID,
		Step:     s.name,
		Fatal:    s.fatal,
		Status:   models.SagaStepSucceeded,
	}
	if err != nil {
		entry.Status = models.SagaStepFailed
		entry.Error = err.Error()
	}
	if jerr := r.journal.Append(context.WithoutCancel(ctx), entry); jerr != nil {
		r.logger.Debug("Saga journal write failed", zap.String("step", s.name), zap.Error(jerr))
	}
}

// compensate runs the compensations of completed steps, newest first. It is
// called after a rollback, outside the transaction.
func (r *sagaRun) compensate(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	for i := len(r.undo) - 1; i >= 0; i-- {
		c := r.undo[i]
		err := c.do(ctx)
		r.record(ctx, c, err)
		if err != nil {
			r.logger.Error("Saga compensation failed",
				zap.String("saga", r.kind),
				zap.String("step", c.name),
				zap.Error(err),
			)
			r.outcome.Warnings = append(r.outcome.Warnings, c.onFailure(err))
		}
	}
	r.undo = nil
}

// runInTransaction opens a transaction through run's coordinator, runs body
// in it and commits. Only a failed begin is handed back to the retry
// wrapper, so body never runs twice. operation is "Checkout", "Cancellation"
// or "Refund".
func runInTransaction(ctx context.Context, run *sagaRun, operation string, body func(ctx context.Context) *stepFailure) bool {
	tx, logger, outcome := run.tx, run.logger, run.outcome
	committed := false
	err := tx.ExecuteWithRetry(ctx, func(ctx context.Context) error {
		txCtx, err := tx.BeginTransaction(ctx)
		if err != nil {
			return err
		}
		committed = executeUnit(txCtx, tx, logger, operation, outcome, body)
		if !committed {
			run.compensate(ctx)
		}
		return nil
	})
	if err != nil {
		logger.Error("Could not open transaction", zap.String("operation", operation), zap.Error(err))
		outcome.Fail(models.ErrorKindTransaction, fmt.Sprintf("%s transaction failed: %v", operation, err))
		return false
	}
	return committed
}

func executeUnit(ctx context.Context, tx TransactionCoordinator, logger *zap.Logger, operation string, outcome *models.Outcome, body func(ctx context.Context) *stepFailure) (committed bool) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("Panic inside transaction", zap.String("operation", operation), zap.Any("panic", rec))
			rollback(ctx, tx, logger, operation)
			outcome.Fail(models.ErrorKindTransaction, fmt.Sprintf("%s transaction failed: %v", operation, rec))
			committed = false
		}
	}()

	if failure := body(ctx); failure != nil {
		rollback(ctx, tx, logger, operation)
		outcome.Fail(failure.kind, failure.message)
		return false
	}

	if err := tx.Commit(ctx); err != nil {
		logger.Error("Commit failed", zap.String("operation", operation), zap.Error(err))
		rollback(ctx, tx, logger, operation)
		outcome.Fail(models.ErrorKindTransaction, fmt.Sprintf("Failed to commit %s transaction", strings.ToLower(operation)))
		return false
	}
	return true
}

func rollback(ctx context.Context, tx TransactionCoordinator, logger *zap.Logger, operation string) {
	if err := tx.Rollback(ctx); err != nil {
		logger.Error("Rollback failed", zap.String("operation", operation), zap.Error(err))
	}
}
