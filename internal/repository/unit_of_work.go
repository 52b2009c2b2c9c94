package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-swap-api/internal/models"
)

// UnitOfWork runs fn inside one database transaction. A non-nil error from fn
// rolls back every write made through the SwapWriter.
type UnitOfWork struct {
	db *sqlx.DB
}

// NewUnitOfWork constructs a transactional unit of work.
func NewUnitOfWork(db *sqlx.DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// WithinTx begins a transaction, hands fn a writer bound to it and commits
// when fn succeeds.
func (u *UnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, w SwapWriter) error) (err error) {
	tx, err := u.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, &txWriter{tx: tx}); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type txWriter struct {
	tx *sqlx.Tx
}

func (w *txWriter) AdjustEnrollment(ctx context.Context, courseID string, delta int) error {
	return adjustEnrollment(ctx, w.tx, courseID, delta)
}

func (w *txWriter) SwapEnrollment(ctx context.Context, userID, fromCourseID, toCourseID string) error {
	return swapEnrollment(ctx, w.tx, userID, fromCourseID, toCourseID)
}

func (w *txWriter) TransitionSwapRequest(ctx context.Context, params TransitionSwapParams) (*models.SwapRequest, error) {
	return transitionSwapRequest(ctx, w.tx, params)
}
