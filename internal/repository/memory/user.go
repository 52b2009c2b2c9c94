package memory

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/course-swap-api/internal/models"
	"github.com/noah-isme/course-swap-api/internal/repository"
)

// UserRepository is the in-memory user registry.
type UserRepository struct {
	db *DB
}

// NewUserRepository binds a user repository to db.
func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail looks a user up by case-insensitive email.
func (r *UserRepository) FindByEmail(_ context.Context, email string) (*models.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	for _, user := range r.db.users {
		if strings.EqualFold(user.Email, email) {
			u := *user
			return &u, nil
		}
	}
	return nil, sql.ErrNoRows
}

// FindByID returns sql.ErrNoRows when the user does not exist.
func (r *UserRepository) FindByID(_ context.Context, id string) (*models.User, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	user, ok := r.db.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	u := *user
	return &u, nil
}

// Create stores a new user, rejecting duplicate emails.
func (r *UserRepository) Create(_ context.Context, user *models.User) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return repository.ErrDuplicateEmail
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := r.db.now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	u := *user
	r.db.users[u.ID] = &u
	return nil
}

// IsEnrolled reports whether courseID is in the user's enrolled set.
func (r *UserRepository) IsEnrolled(_ context.Context, userID, courseID string) (bool, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	_, ok := r.db.enrolled[userID][courseID]
	return ok, nil
}

// ListEnrolledCourseIDs returns the user's enrolled set in id order.
func (r *UserRepository) ListEnrolledCourseIDs(_ context.Context, userID string) ([]string, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return sortedKeys(r.db.enrolled[userID]), nil
}

// Enroll adds courseID to the user's enrolled set. Course counters are not touched.
func (r *UserRepository) Enroll(_ context.Context, userID, courseID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.enrollLocked(userID, courseID)
	return nil
}

// SwapEnrollment replaces fromCourseID with toCourseID outside of a unit of work.
func (r *UserRepository) SwapEnrollment(_ context.Context, userID, fromCourseID, toCourseID string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.swapEnrollmentLocked(userID, fromCourseID, toCourseID)
}

// CreateAuditLog appends an audit entry.
func (r *UserRepository) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = r.db.now()
	}
	r.db.audit = append(r.db.audit, *log)
	return nil
}

// AuditLogs returns a copy of every stored audit entry.
func (r *UserRepository) AuditLogs() []models.AuditLog {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	return append([]models.AuditLog(nil), r.db.audit...)
}

func (db *DB) enrollLocked(userID, courseID string) {
	set, ok := db.enrolled[userID]
	if !ok {
		set = make(map[string]time.Time)
		db.enrolled[userID] = set
	}
	if _, exists := set[courseID]; !exists {
		set[courseID] = db.now()
	}
}

func (db *DB) swapEnrollmentLocked(userID, fromCourseID, toCourseID string) error {
	set := db.enrolled[userID]
	if _, ok := set[toCourseID]; ok {
		return repository.ErrAlreadyEnrolled
	}
	if _, ok := set[fromCourseID]; !ok {
		return repository.ErrNotEnrolled
	}
	delete(set, fromCourseID)
	db.enrollLocked(userID, toCourseID)
	return nil
}
