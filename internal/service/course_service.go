package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-swap-api/internal/dto"
	"github.com/noah-isme/course-swap-api/internal/models"
	"github.com/noah-isme/course-swap-api/internal/repository"
	appErrors "github.com/noah-isme/course-swap-api/pkg/errors"
)

const courseCachePattern = "courses:*"

type courseStore interface {
	GetByID(ctx context.Context, id string) (*models.Course, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Course, error)
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	Create(ctx context.Context, course *models.Course) error
}

type enrolledCourseReader interface {
	ListEnrolledCourseIDs(ctx context.Context, userID string) ([]string, error)
}

type courseCache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
	Invalidate(ctx context.Context, pattern string)
}

// CourseService exposes the course registry: catalog pages, single lookups,
// the caller's enrolled courses and admin creation.
type CourseService struct {
	courses   courseStore
	enrolled  enrolledCourseReader
	validator *validator.Validate
	logger    *zap.Logger
	cache     courseCache
	cacheTTL  time.Duration
	pageSize  int
	maxPage   int
}

// CourseServiceOption configures the service.
type CourseServiceOption func(*CourseService)

// WithCourseCache serves catalog pages from cache for ttl.
func WithCourseCache(cache courseCache, ttl time.Duration) CourseServiceOption {
	return func(s *CourseService) {
		s.cache = cache
		s.cacheTTL = ttl
	}
}

// WithCoursePaging overrides the default and maximum page sizes.
func WithCoursePaging(defaultSize, maxSize int) CourseServiceOption {
	return func(s *CourseService) {
		if defaultSize > 0 {
			s.pageSize = defaultSize
		}
		if maxSize > 0 {
			s.maxPage = maxSize
		}
	}
}

// NewCourseService constructs the course registry service.
func NewCourseService(courses courseStore, enrolled enrolledCourseReader, validate *validator.Validate, logger *zap.Logger, opts ...CourseServiceOption) *CourseService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &CourseService{
		courses:   courses,
		enrolled:  enrolled,
		validator: validate,
		logger:    logger,
		pageSize:  20,
		maxPage:   100,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// List returns one catalog page. Filter "available" keeps courses with free seats.
func (s *CourseService) List(ctx context.Context, query dto.CourseQuery) (*dto.CourseList, error) {
	filter := models.CourseFilter{
		Department: strings.TrimSpace(query.Department),
		Semester:   strings.TrimSpace(query.Semester),
	}
	switch strings.ToLower(strings.TrimSpace(query.Filter)) {
	case "", "all":
	case "available":
		filter.AvailableOnly = true
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "filter must be all or available")
	}
	filter.Page = query.Page
	if filter.Page < 1 {
		filter.Page = 1
	}
	filter.PageSize = query.PageSize
	if filter.PageSize < 1 {
		filter.PageSize = s.pageSize
	}
	if filter.PageSize > s.maxPage {
		filter.PageSize = s.maxPage
	}

	key := fmt.Sprintf("courses:list:%t:%s:%s:%d:%d", filter.AvailableOnly, filter.Department, filter.Semester, filter.Page, filter.PageSize)
	if s.cache != nil {
		var cached dto.CourseList
		if s.cache.Get(ctx, key, &cached) {
			return &cached, nil
		}
	}

	courses, total, err := s.courses.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list courses")
	}
	list := &dto.CourseList{
		Items:      toCourseItems(courses),
		Pagination: models.NewPagination(filter.Page, filter.PageSize, total),
	}
	if s.cache != nil {
		s.cache.Set(ctx, key, list, s.cacheTTL)
	}
	return list, nil
}

// Get returns one course with its remaining seats.
func (s *CourseService) Get(ctx context.Context, id string) (*dto.CourseItem, error) {
	course, err := s.courses.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrCourseNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	item := dto.NewCourseItem(*course)
	return &item, nil
}

// ListEnrolled returns the courses userID is enrolled in, in code order.
func (s *CourseService) ListEnrolled(ctx context.Context, userID string) ([]dto.CourseItem, error) {
	ids, err := s.enrolled.ListEnrolledCourseIDs(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	courses, err := s.courses.ListByIDs(ctx, ids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrolled courses")
	}
	return toCourseItems(courses), nil
}

// Create adds a catalog entry.
func (s *CourseService) Create(ctx context.Context, req dto.CreateCourseRequest) (*dto.CourseItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course payload")
	}
	for _, block := range req.Schedule {
		if err := block.Validate(); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid course schedule")
		}
	}
	course := &models.Course{
		Code:        strings.TrimSpace(req.Code),
		Name:        strings.TrimSpace(req.Name),
		Teacher:     strings.TrimSpace(req.Teacher),
		Description: req.Description,
		Location:    req.Location,
		Credits:     req.Credits,
		Department:  req.Department,
		Semester:    req.Semester,
		Schedule:    req.Schedule,
		Capacity:    req.Capacity,
		Enrolled:    req.Enrolled,
		IsSwapable:  req.IsSwapable,
	}
	if err := s.courses.Create(ctx, course); err != nil {
		if errors.Is(err, repository.ErrDuplicateCode) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "course code already exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create course")
	}
	s.InvalidateCatalog(ctx)
	s.logger.Info("course created", zap.String("course_id", course.ID), zap.String("code", course.Code))
	item := dto.NewCourseItem(*course)
	return &item, nil
}

// InvalidateCatalog drops every cached catalog page.
func (s *CourseService) InvalidateCatalog(ctx context.Context) {
	if s.cache == nil {
		return
	}
	s.cache.Invalidate(ctx, courseCachePattern)
}

func toCourseItems(courses []models.Course) []dto.CourseItem {
	items := make([]dto.CourseItem, 0, len(courses))
	for _, course := range courses {
		items = append(items, dto.NewCourseItem(course))
	}
	return items
}
