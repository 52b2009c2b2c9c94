package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/course-swap-api/internal/models"
)

const userColumns = `id, email, password_hash, full_name, role, student_number, department, active, created_at, updated_at`

// UserRepository provides access to users and their enrolled-course sets.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new repository instance.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE email = $1`, email); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID returns a user by ID.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, `SELECT `+userColumns+` FROM users WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &user, nil
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	const query = `INSERT INTO users (` + userColumns + `)
	VALUES (:id, :email, :password_hash, :full_name, :role, :student_number, :department, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// IsEnrolled reports whether courseID is in the user's enrolled set.
func (r *UserRepository) IsEnrolled(ctx context.Context, userID, courseID string) (bool, error) {
	var enrolled bool
	const query = `SELECT EXISTS(SELECT 1 FROM user_courses WHERE user_id = $1 AND course_id = $2)`
	if err := r.db.GetContext(ctx, &enrolled, query, userID, courseID); err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return enrolled, nil
}

// ListEnrolledCourseIDs returns the user's enrolled set.
func (r *UserRepository) ListEnrolledCourseIDs(ctx context.Context, userID string) ([]string, error) {
	var ids []string
	const query = `SELECT course_id FROM user_courses WHERE user_id = $1 ORDER BY course_id`
	if err := r.db.SelectContext(ctx, &ids, query, userID); err != nil {
		return nil, fmt.Errorf("list enrolled courses: %w", err)
	}
	return ids, nil
}

// Enroll adds courseID to the user's enrolled set. Course counters are not touched.
func (r *UserRepository) Enroll(ctx context.Context, userID, courseID string) error {
	const query = `INSERT INTO user_courses (user_id, course_id, enrolled_at) VALUES ($1, $2, $3)
	ON CONFLICT (user_id, course_id) DO NOTHING`
	if _, err := r.db.ExecContext(ctx, query, userID, courseID, time.Now().UTC()); err != nil {
		return fmt.Errorf("enroll user: %w", err)
	}
	return nil
}

// SwapEnrollment replaces fromCourseID with toCourseID outside of a transaction.
func (r *UserRepository) SwapEnrollment(ctx context.Context, userID, fromCourseID, toCourseID string) error {
	return swapEnrollment(ctx, r.db, userID, fromCourseID, toCourseID)
}

func swapEnrollment(ctx context.Context, exec executor, userID, fromCourseID, toCourseID string) error {
	var present bool
	const exists = `SELECT EXISTS(SELECT 1 FROM user_courses WHERE user_id = $1 AND course_id = $2)`
	if err := exec.GetContext(ctx, &present, exists, userID, toCourseID); err != nil {
		return fmt.Errorf("check target enrollment: %w", err)
	}
	if present {
		return ErrAlreadyEnrolled
	}
	result, err := exec.ExecContext(ctx, `DELETE FROM user_courses WHERE user_id = $1 AND course_id = $2`, userID, fromCourseID)
	if err != nil {
		return fmt.Errorf("remove enrollment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check enrollment rows: %w", err)
	}
	if rows == 0 {
		return ErrNotEnrolled
	}
	const insert = `INSERT INTO user_courses (user_id, course_id, enrolled_at) VALUES ($1, $2, $3)`
	if _, err := exec.ExecContext(ctx, insert, userID, toCourseID, time.Now().UTC()); err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyEnrolled
		}
		return fmt.Errorf("add enrollment: %w", err)
	}
	return nil
}

// CreateAuditLog stores an audit log entry.
func (r *UserRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, old_values, new_values, ip_address, user_agent, created_at) VALUES (:id, :user_id, :action, :resource, :resource_id, :old_values, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}
