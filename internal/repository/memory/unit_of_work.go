package memory

import (
	"context"

	"github.com/noah-isme/course-swap-api/internal/models"
	"github.com/noah-isme/course-swap-api/internal/repository"
)

// UnitOfWork serialises approval units behind the database mutex.
type UnitOfWork struct {
	db *DB
}

// NewUnitOfWork binds a unit of work to db.
func NewUnitOfWork(db *DB) *UnitOfWork {
	return &UnitOfWork{db: db}
}

// WithinTx runs fn with the write lock held. The writer must be the only
// path to storage inside fn; calling other repositories would deadlock.
func (u *UnitOfWork) WithinTx(ctx context.Context, fn func(ctx context.Context, w repository.SwapWriter) error) (err error) {
	u.db.mu.Lock()
	defer u.db.mu.Unlock()

	snap := u.db.snapshotLocked()
	defer func() {
		if p := recover(); p != nil {
			u.db.restoreLocked(snap)
			panic(p)
		}
		if err != nil {
			u.db.restoreLocked(snap)
		}
	}()

	if err = ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, &txWriter{db: u.db})
}

type txWriter struct {
	db *DB
}

func (w *txWriter) AdjustEnrollment(_ context.Context, courseID string, delta int) error {
	return w.db.adjustEnrollmentLocked(courseID, delta)
}

func (w *txWriter) SwapEnrollment(_ context.Context, userID, fromCourseID, toCourseID string) error {
	return w.db.swapEnrollmentLocked(userID, fromCourseID, toCourseID)
}

func (w *txWriter) TransitionSwapRequest(_ context.Context, params repository.TransitionSwapParams) (*models.SwapRequest, error) {
	return w.db.transitionLocked(params)
}
