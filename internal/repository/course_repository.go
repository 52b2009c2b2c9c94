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

var courseColumns = []string{
	"id", "code", "name", "teacher", "description", "location", "credits", "department", "semester",
	"schedule", "capacity", "enrolled", "is_swapable", "created_at", "updated_at",
}

// CourseRepository persists catalog entries and their enrollment counters.
type CourseRepository struct {
	db *sqlx.DB
	sb squirrel.StatementBuilderType
}

// NewCourseRepository constructs the repository.
func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db, sb: statementBuilder()}
}

// GetByID fetches a course by identifier.
func (r *CourseRepository) GetByID(ctx context.Context, id string) (*models.Course, error) {
	query, args, err := r.sb.Select(courseColumns...).From("courses").Where(squirrel.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get course query: %w", err)
	}
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, args...); err != nil {
		return nil, err
	}
	return &course, nil
}

// ListByIDs returns the courses matching ids, in code order. Unknown ids are ignored.
func (r *CourseRepository) ListByIDs(ctx context.Context, ids []string) ([]models.Course, error) {
	if len(ids) == 0 {
		return []models.Course{}, nil
	}
	query, args, err := r.sb.Select(courseColumns...).From("courses").
		Where(squirrel.Eq{"id": ids}).
		OrderBy("code ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list courses query: %w", err)
	}
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, fmt.Errorf("list courses by id: %w", err)
	}
	return courses, nil
}

// List returns a page of the catalog and the total matching count.
func (r *CourseRepository) List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	conditions := squirrel.And{}
	if filter.AvailableOnly {
		conditions = append(conditions, squirrel.Expr("enrolled < capacity"))
	}
	if filter.Department != "" {
		conditions = append(conditions, squirrel.Eq{"department": filter.Department})
	}
	if filter.Semester != "" {
		conditions = append(conditions, squirrel.Eq{"semester": filter.Semester})
	}

	countQuery, countArgs, err := r.sb.Select("COUNT(*)").From("courses").Where(conditions).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count courses query: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}

	limit, offset := pageBounds(filter.Page, filter.PageSize)
	query, args, err := r.sb.Select(courseColumns...).From("courses").
		Where(conditions).
		OrderBy("code ASC").
		Limit(limit).
		Offset(offset).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list courses query: %w", err)
	}
	var courses []models.Course
	if err := r.db.SelectContext(ctx, &courses, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list courses: %w", err)
	}
	return courses, total, nil
}

// Create inserts a new course.
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now
	if course.Schedule == nil {
		course.Schedule = models.WeeklySchedule{}
	}
	const query = `INSERT INTO courses
	(id, code, name, teacher, description, location, credits, department, semester, schedule, capacity, enrolled, is_swapable, created_at, updated_at)
	VALUES (:id, :code, :name, :teacher, :description, :location, :credits, :department, :semester, :schedule, :capacity, :enrolled, :is_swapable, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, course); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateCode
		}
		return fmt.Errorf("create course: %w", err)
	}
	return nil
}

// AdjustEnrollment applies delta outside of any transaction.
func (r *CourseRepository) AdjustEnrollment(ctx context.Context, id string, delta int) error {
	return adjustEnrollment(ctx, r.db, id, delta)
}

// adjustEnrollment is a single conditional write; the bounds are checked by
// the WHERE clause so concurrent writers cannot push the counter out of range.
func adjustEnrollment(ctx context.Context, exec executor, id string, delta int) error {
	if delta != 1 && delta != -1 {
		return ErrInvalidDelta
	}
	const query = `UPDATE courses SET enrolled = enrolled + $2, updated_at = $3
	WHERE id = $1 AND enrolled + $2 >= 0 AND enrolled + $2 <= capacity`
	result, err := exec.ExecContext(ctx, query, id, delta, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("adjust course enrollment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check course enrollment rows: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists bool
	if err := exec.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM courses WHERE id = $1)`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrCourseNotFound
		}
		return fmt.Errorf("load course enrollment: %w", err)
	}
	if !exists {
		return ErrCourseNotFound
	}
	if delta < 0 {
		return ErrUnderflow
	}
	return ErrCapacityExceeded
}
