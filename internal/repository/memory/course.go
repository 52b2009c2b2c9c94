package memory

import (
	"context"
	"database/sql"
	"sort"

	"github.com/google/uuid"

	"github.com/noah-isme/course-swap-api/internal/models"
	"github.com/noah-isme/course-swap-api/internal/repository"
)

// CourseRepository is the in-memory course registry.
type CourseRepository struct {
	db *DB
}

// NewCourseRepository binds a course repository to db.
func NewCourseRepository(db *DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// GetByID returns sql.ErrNoRows when the course does not exist.
func (r *CourseRepository) GetByID(_ context.Context, id string) (*models.Course, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	course, ok := r.db.courses[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	c := cloneCourse(*course)
	return &c, nil
}

// ListByIDs returns known courses among ids, in code order.
func (r *CourseRepository) ListByIDs(_ context.Context, ids []string) ([]models.Course, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	courses := make([]models.Course, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if course, ok := r.db.courses[id]; ok {
			courses = append(courses, cloneCourse(*course))
		}
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].Code < courses[j].Code })
	return courses, nil
}

// List returns a page of the catalog in code order.
func (r *CourseRepository) List(_ context.Context, filter models.CourseFilter) ([]models.Course, int, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()
	matched := make([]models.Course, 0, len(r.db.courses))
	for _, course := range r.db.courses {
		if filter.AvailableOnly && !course.HasCapacity() {
			continue
		}
		if filter.Department != "" && course.Department != filter.Department {
			continue
		}
		if filter.Semester != "" && course.Semester != filter.Semester {
			continue
		}
		matched = append(matched, cloneCourse(*course))
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Code < matched[j].Code })
	start, end := pageWindow(len(matched), filter.Page, filter.PageSize)
	return matched[start:end], len(matched), nil
}

// Create stores a new course, rejecting duplicate codes.
func (r *CourseRepository) Create(_ context.Context, course *models.Course) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	for _, existing := range r.db.courses {
		if existing.Code == course.Code {
			return repository.ErrDuplicateCode
		}
	}
	if course.ID == "" {
		course.ID = uuid.NewString()
	}
	now := r.db.now()
	if course.CreatedAt.IsZero() {
		course.CreatedAt = now
	}
	course.UpdatedAt = now
	if course.Schedule == nil {
		course.Schedule = models.WeeklySchedule{}
	}
	c := cloneCourse(*course)
	r.db.courses[c.ID] = &c
	return nil
}

// AdjustEnrollment applies delta outside of a unit of work.
func (r *CourseRepository) AdjustEnrollment(_ context.Context, id string, delta int) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	return r.db.adjustEnrollmentLocked(id, delta)
}

func (db *DB) adjustEnrollmentLocked(id string, delta int) error {
	if delta != 1 && delta != -1 {
		return repository.ErrInvalidDelta
	}
	course, ok := db.courses[id]
	if !ok {
		return repository.ErrCourseNotFound
	}
	next := course.Enrolled + delta
	if next < 0 {
		return repository.ErrUnderflow
	}
	if next > course.Capacity {
		return repository.ErrCapacityExceeded
	}
	course.Enrolled = next
	course.UpdatedAt = db.now()
	return nil
}
