package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-swap-api/internal/models"
)

const swapRequestColumns = `id, student_id, student_name, original_course_id, target_course_id, reason, status,
       admin_comment, resolver_id, resolved_at, created_at, updated_at`

// SwapRequestRepository persists swap requests. Pending uniqueness is
// enforced by a partial unique index and resolution by a conditional update.
type SwapRequestRepository struct {
	db *sqlx.DB
	sb squirrel.StatementBuilderType
}

// NewSwapRequestRepository constructs the repository.
func NewSwapRequestRepository(db *sqlx.DB) *SwapRequestRepository {
	return &SwapRequestRepository{db: db, sb: statementBuilder()}
}

// Create inserts a new pending request.
func (r *SwapRequestRepository) Create(ctx context.Context, request *models.SwapRequest) error {
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	request.Status = models.SwapStatusPending
	now := time.Now().UTC()
	if request.CreatedAt.IsZero() {
		request.CreatedAt = now
	}
	request.UpdatedAt = request.CreatedAt
	const query = `INSERT INTO swap_requests
	(id, student_id, student_name, original_course_id, target_course_id, reason, status, created_at, updated_at)
	VALUES (:id, :student_id, :student_name, :original_course_id, :target_course_id, :reason, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, request); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicatePending
		}
		return fmt.Errorf("create swap request: %w", err)
	}
	return nil
}

// GetByID fetches a request by identifier.
func (r *SwapRequestRepository) GetByID(ctx context.Context, id string) (*models.SwapRequest, error) {
	var request models.SwapRequest
	if err := r.db.GetContext(ctx, &request, `SELECT `+swapRequestColumns+` FROM swap_requests WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &request, nil
}

// List returns a page of requests, newest first, with the exact total count.
func (r *SwapRequestRepository) List(ctx context.Context, filter models.SwapRequestFilter) ([]models.SwapRequest, int, error) {
	conditions := squirrel.Eq{}
	if filter.Status != nil {
		conditions["status"] = *filter.Status
	}
	if filter.StudentID != "" {
		conditions["student_id"] = filter.StudentID
	}

	countQuery, countArgs, err := r.sb.Select("COUNT(*)").From("swap_requests").Where(conditions).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count swap requests query: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count swap requests: %w", err)
	}

	limit, offset := pageBounds(filter.Page, filter.PageSize)
	query, args, err := r.sb.Select(swapRequestColumns).From("swap_requests").
		Where(conditions).
		OrderBy("created_at DESC", "id DESC").
		Limit(limit).
		Offset(offset).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list swap requests query: %w", err)
	}
	var requests []models.SwapRequest
	if err := r.db.SelectContext(ctx, &requests, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list swap requests: %w", err)
	}
	return requests, total, nil
}

// Transition resolves a pending request outside of a transaction.
func (r *SwapRequestRepository) Transition(ctx context.Context, params TransitionSwapParams) (*models.SwapRequest, error) {
	return transitionSwapRequest(ctx, r.db, params)
}

// transitionSwapRequest is a compare-and-set on status; of two concurrent
// callers only one sees the PENDING row.
func transitionSwapRequest(ctx context.Context, exec executor, params TransitionSwapParams) (*models.SwapRequest, error) {
	if !models.SwapStatusPending.CanTransitionTo(params.Status) {
		return nil, ErrInvalidTransition
	}
	if params.ResolvedAt.IsZero() {
		params.ResolvedAt = time.Now().UTC()
	}
	query := `UPDATE swap_requests
	SET status = $2, resolver_id = $3, admin_comment = $4, resolved_at = $5, updated_at = $5
	WHERE id = $1 AND status = 'PENDING'
	RETURNING ` + swapRequestColumns
	var updated models.SwapRequest
	err := exec.QueryRowxContext(ctx, query, params.ID, params.Status, params.ResolverID, params.Comment, params.ResolvedAt).StructScan(&updated)
	if err == nil {
		return &updated, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transition swap request: %w", err)
	}

	var status models.SwapStatus
	if err := exec.GetContext(ctx, &status, `SELECT status FROM swap_requests WHERE id = $1`, params.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("load swap request status: %w", err)
	}
	return nil, ErrNotPending
}

// Cancel deletes a pending request owned by studentID.
func (r *SwapRequestRepository) Cancel(ctx context.Context, id, studentID string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin cancel swap request: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current struct {
		StudentID string            `db:"student_id"`
		Status    models.SwapStatus `db:"status"`
	}
	if err = tx.GetContext(ctx, &current, `SELECT student_id, status FROM swap_requests WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return sql.ErrNoRows
		}
		return fmt.Errorf("lock swap request: %w", err)
	}
	if current.StudentID != studentID {
		return ErrNotOwner
	}
	if current.Status != models.SwapStatusPending {
		return ErrNotPending
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM swap_requests WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete swap request: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit cancel swap request: %w", err)
	}
	return nil
}
