package memory

import (
	"context"
	"database/sql"
	"sort"

	"github.com/google/uuid"

	"github.com/noah-isme/course-swap-api/internal/models"
	"github.com/noah-isme/course-swap-api/internal/repository"
)

// SwapRequestRepository is the in-memory swap request store.
type SwapRequestRepository struct {
	db *DB
}

// NewSwapRequestRepository binds a swap request repository to db.
func NewSwapRequestRepository(db *DB) *SwapRequestRepository {
	return &SwapRequestRepository{db: db}
}

// Create stores a pending request. The uniqueness check and the insert happen
// under one lock, so of concurrent identical submissions exactly one wins.
func (r *SwapRequestRepository) Create(_ context.Context, request *models.SwapRequest) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, row := range r.db.requests {
		existing := row.request
		if existing.Status == models.SwapStatusPending &&
			existing.StudentID == request.StudentID &&
			existing.OriginalCourseID == request.OriginalCourseID &&
			existing.TargetCourseID == request.TargetCourseID {
			return repository.ErrDuplicatePending
		}
	}
	if request.ID == "" {
		request.ID = uuid.NewString()
	}
	request.Status = models.SwapStatusPending
	if request.CreatedAt.IsZero() {
		request.CreatedAt = r.db.now()
	}
	request.UpdatedAt = request.CreatedAt
	r.db.requests[request.ID] = &swapRow{request: *request, seq: r.db.nextSeq()}
	return nil
}

// GetByID returns sql.ErrNoRows when the request does not exist.
func (r *SwapRequestRepository) GetByID(_ context.Context, id string) (*models.SwapRequest, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	row, ok := r.db.requests[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	req := row.request
	return &req, nil
}

// List returns a page of requests, newest first, with the exact total count.
func (r *SwapRequestRepository) List(_ context.Context, filter models.SwapRequestFilter) ([]models.SwapRequest, int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	rows := make([]*swapRow, 0, len(r.db.requests))
	for _, row := range r.db.requests {
		if filter.Status != nil && row.request.Status != *filter.Status {
			continue
		}
		if filter.StudentID != "" && row.request.StudentID != filter.StudentID {
			continue
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if !a.request.CreatedAt.Equal(b.request.CreatedAt) {
			return a.request.CreatedAt.After(b.request.CreatedAt)
		}
		return a.seq > b.seq
	})
	start, end := pageWindow(len(rows), filter.Page, filter.PageSize)
	items := make([]models.SwapRequest, 0, end-start)
	for _, row := range rows[start:end] {
		items = append(items, row.request)
	}
	return items, len(rows), nil
}

// Transition resolves a pending request outside of a unit of work.
func (r *SwapRequestRepository) Transition(_ context.Context, params repository.TransitionSwapParams) (*models.SwapRequest, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.transitionLocked(params)
}

// Cancel deletes a pending request owned by studentID.
func (r *SwapRequestRepository) Cancel(_ context.Context, id, studentID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	row, ok := r.db.requests[id]
	if !ok {
		return sql.ErrNoRows
	}
	if row.request.StudentID != studentID {
		return repository.ErrNotOwner
	}
	if row.request.Status != models.SwapStatusPending {
		return repository.ErrNotPending
	}
	delete(r.db.requests, id)
	return nil
}

func (db *DB) transitionLocked(params repository.TransitionSwapParams) (*models.SwapRequest, error) {
	if !models.SwapStatusPending.CanTransitionTo(params.Status) {
		return nil, repository.ErrInvalidTransition
	}
	row, ok := db.requests[params.ID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	if row.request.Status != models.SwapStatusPending {
		return nil, repository.ErrNotPending
	}
	resolvedAt := params.ResolvedAt
	if resolvedAt.IsZero() {
		resolvedAt = db.now()
	}
	resolver := params.ResolverID
	updated := row.request
	updated.Status = params.Status
	updated.ResolverID = &resolver
	updated.AdminComment = params.Comment
	updated.ResolvedAt = &resolvedAt
	updated.UpdatedAt = resolvedAt
	db.requests[params.ID] = &swapRow{request: updated, seq: row.seq}
	out := updated
	return &out, nil
}
