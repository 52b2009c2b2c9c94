package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-swap-api/internal/dto"
	"github.com/noah-isme/course-swap-api/internal/models"
	"github.com/noah-isme/course-swap-api/internal/repository"
	appErrors "github.com/noah-isme/course-swap-api/pkg/errors"
)

const (
	opSubmit  = "submit"
	opResolve = "resolve"
	opBatch   = "batch_resolve"
	opCancel  = "cancel"
)

type swapRequestStore interface {
	Create(ctx context.Context, request *models.SwapRequest) error
	GetByID(ctx context.Context, id string) (*models.SwapRequest, error)
	List(ctx context.Context, filter models.SwapRequestFilter) ([]models.SwapRequest, int, error)
	Transition(ctx context.Context, params repository.TransitionSwapParams) (*models.SwapRequest, error)
	Cancel(ctx context.Context, id, studentID string) error
}

type swapCourseStore interface {
	GetByID(ctx context.Context, id string) (*models.Course, error)
	ListByIDs(ctx context.Context, ids []string) ([]models.Course, error)
}

type swapUserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	IsEnrolled(ctx context.Context, userID, courseID string) (bool, error)
	ListEnrolledCourseIDs(ctx context.Context, userID string) ([]string, error)
}

type unitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, w repository.SwapWriter) error) error
}

type auditRecorder interface {
	Record(ctx context.Context, log models.AuditLog)
}

type catalogInvalidator interface {
	InvalidateCatalog(ctx context.Context)
}

// SwapConfig tunes validation and paging.
type SwapConfig struct {
	ReasonMinLength int
	DefaultPageSize int
	MaxPageSize     int
	BatchMax        int
}

func (c SwapConfig) withDefaults() SwapConfig {
	if c.ReasonMinLength <= 0 {
		c.ReasonMinLength = 10
	}
	if c.DefaultPageSize <= 0 {
		c.DefaultPageSize = 10
	}
	if c.MaxPageSize <= 0 {
		c.MaxPageSize = 100
	}
	if c.BatchMax <= 0 {
		c.BatchMax = 100
	}
	return c
}

// SwapService is the swap workflow engine: submission, resolution,
// cancellation and listing of swap requests.
type SwapService struct {
	requests  swapRequestStore
	courses   swapCourseStore
	users     swapUserStore
	uow       unitOfWork
	config    SwapConfig
	validator *validator.Validate
	logger    *zap.Logger

	audit   auditRecorder
	metrics *MetricsService
	catalog catalogInvalidator
	now     func() time.Time
}

// SwapServiceOption configures the service.
type SwapServiceOption func(*SwapService)

// WithSwapAudit records workflow events in the audit trail.
func WithSwapAudit(recorder auditRecorder) SwapServiceOption {
	return func(s *SwapService) {
		s.audit = recorder
	}
}

// WithSwapMetrics enables workflow counters.
func WithSwapMetrics(metrics *MetricsService) SwapServiceOption {
	return func(s *SwapService) {
		s.metrics = metrics
	}
}

// WithCatalogInvalidator drops cached catalog pages after approvals.
func WithCatalogInvalidator(catalog catalogInvalidator) SwapServiceOption {
	return func(s *SwapService) {
		s.catalog = catalog
	}
}

// WithSwapClock overrides the time source.
func WithSwapClock(now func() time.Time) SwapServiceOption {
	return func(s *SwapService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSwapService constructs the workflow engine.
func NewSwapService(requests swapRequestStore, courses swapCourseStore, users swapUserStore, uow unitOfWork, cfg SwapConfig, validate *validator.Validate, logger *zap.Logger, opts ...SwapServiceOption) *SwapService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	svc := &SwapService{
		requests:  requests,
		courses:   courses,
		users:     users,
		uow:       uow,
		config:    cfg.withDefaults(),
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(svc)
		}
	}
	return svc
}

// Submit validates and stores a new pending swap request. The schedule
// conflict report in the result is advisory and never blocks submission.
func (s *SwapService) Submit(ctx context.Context, actor *models.JWTClaims, req dto.SubmitSwapRequest) (*dto.SwapSubmission, error) {
	result, err := s.submit(ctx, actor, req)
	if err != nil {
		s.recordFailure(opSubmit, err)
		return nil, err
	}
	s.metrics.RecordSwapSubmitted()
	s.recordAudit(ctx, actor.UserID, models.AuditActionSwapSubmit, result.Request)
	return result, nil
}

func (s *SwapService) submit(ctx context.Context, actor *models.JWTClaims, req dto.SubmitSwapRequest) (*dto.SwapSubmission, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can request course swaps")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "originalCourseId and a different targetCourseId are required")
	}
	if utf8.RuneCountInString(strings.TrimSpace(req.Reason)) < s.config.ReasonMinLength {
		return nil, appErrors.Clone(appErrors.ErrInvalidReason, "reason must be at least "+strconv.Itoa(s.config.ReasonMinLength)+" characters")
	}

	original, err := s.loadCourse(ctx, req.OriginalCourseID, "original course not found")
	if err != nil {
		return nil, err
	}
	target, err := s.loadCourse(ctx, req.TargetCourseID, "target course not found")
	if err != nil {
		return nil, err
	}

	enrolled, err := s.users.IsEnrolled(ctx, actor.UserID, original.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if !enrolled {
		return nil, appErrors.ErrNotEnrolledInOriginal
	}
	inTarget, err := s.users.IsEnrolled(ctx, actor.UserID, target.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrollment")
	}
	if inTarget {
		return nil, appErrors.ErrAlreadyInTarget
	}
	if !target.IsSwapable {
		return nil, appErrors.ErrTargetNotSwapable
	}
	if !target.HasCapacity() {
		return nil, appErrors.ErrTargetFull
	}

	conflicts := s.scheduleConflicts(ctx, actor.UserID, target, original.ID)

	request := &models.SwapRequest{
		StudentID:        actor.UserID,
		StudentName:      s.studentName(ctx, actor),
		OriginalCourseID: original.ID,
		TargetCourseID:   target.ID,
		Reason:           strings.TrimSpace(req.Reason),
		Status:           models.SwapStatusPending,
		CreatedAt:        s.now(),
	}
	if err := s.requests.Create(ctx, request); err != nil {
		if errors.Is(err, repository.ErrDuplicatePending) {
			return nil, appErrors.ErrDuplicateRequest
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create swap request")
	}

	return &dto.SwapSubmission{
		Request:              request,
		ScheduleConflict:     len(conflicts) > 0,
		ConflictingCourseIDs: conflicts,
	}, nil
}

// Resolve applies an administrator decision to one pending request.
func (s *SwapService) Resolve(ctx context.Context, actor *models.JWTClaims, id string, req dto.ResolveSwapRequest) (*models.SwapRequest, error) {
	if err := requireAdmin(actor); err != nil {
		s.recordFailure(opResolve, err)
		return nil, err
	}
	decision, err := models.ParseSwapDecision(string(req.Decision))
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "decision must be APPROVE or REJECT")
		s.recordFailure(opResolve, err)
		return nil, err
	}
	resolved, err := s.resolveOne(ctx, actor.UserID, id, decision, req.Comment)
	if err != nil {
		s.recordFailure(opResolve, err)
		return nil, err
	}
	return resolved, nil
}

// BatchResolve applies one decision to many requests. Each id is resolved
// independently; ids no longer pending are skipped, other failures are
// counted without aborting the batch.
func (s *SwapService) BatchResolve(ctx context.Context, actor *models.JWTClaims, req dto.BatchResolveSwapRequest) (*dto.BatchResolveResult, error) {
	if err := requireAdmin(actor); err != nil {
		s.recordFailure(opBatch, err)
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "ids and a valid decision are required")
		s.recordFailure(opBatch, err)
		return nil, err
	}
	ids := uniqueIDs(req.IDs)
	if len(ids) > s.config.BatchMax {
		err := appErrors.Clone(appErrors.ErrValidation, "batch exceeds "+strconv.Itoa(s.config.BatchMax)+" requests")
		s.recordFailure(opBatch, err)
		return nil, err
	}
	decision, _ := models.ParseSwapDecision(string(req.Decision))
	s.metrics.ObserveBatchSize(len(ids))

	result := &dto.BatchResolveResult{}
	for _, id := range ids {
		if ctx.Err() != nil {
			result.Failed++
			result.Failures = append(result.Failures, dto.BatchItemFailure{ID: id, Code: "CANCELLED"})
			continue
		}
		_, err := s.resolveOne(ctx, actor.UserID, id, decision, req.Comment)
		switch {
		case err == nil:
			result.Transitioned++
		case errors.Is(err, appErrors.ErrAlreadyResolved), errors.Is(err, appErrors.ErrRequestNotFound):
			result.Skipped++
		default:
			s.recordFailure(opBatch, err)
			result.Failed++
			result.Failures = append(result.Failures, dto.BatchItemFailure{ID: id, Code: appErrors.FromError(err).Code})
			s.logger.Warn("batch resolution item failed", zap.String("swap_request_id", id), zap.Error(err))
		}
	}
	return result, nil
}

func (s *SwapService) resolveOne(ctx context.Context, adminID, id string, decision models.SwapDecision, comment string) (*models.SwapRequest, error) {
	current, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrRequestNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load swap request")
	}
	if current.Status != models.SwapStatusPending {
		return nil, appErrors.ErrAlreadyResolved
	}

	params := repository.TransitionSwapParams{
		ID:         current.ID,
		Status:     decision.TargetStatus(),
		ResolverID: adminID,
		Comment:    optionalComment(comment),
		ResolvedAt: s.now(),
	}

	var resolved *models.SwapRequest
	if decision == models.SwapDecisionReject {
		resolved, err = s.requests.Transition(ctx, params)
	} else {
		resolved, err = s.approve(ctx, current, params)
	}
	if err != nil {
		return nil, mapResolveError(err)
	}

	if decision == models.SwapDecisionApprove && s.catalog != nil {
		s.catalog.InvalidateCatalog(ctx)
	}
	s.metrics.RecordSwapResolved(decision)
	action := models.AuditActionSwapReject
	if decision == models.SwapDecisionApprove {
		action = models.AuditActionSwapApprove
	}
	s.recordAudit(ctx, adminID, action, resolved)
	return resolved, nil
}

// approve claims the request and moves the enrollment in one unit of work.
// The status write goes first so a concurrent resolver fails before touching
// any course row; course counters are then locked in id order.
// approve runs the approval unit: status transition, course counters in
// course-id order, then the enrolled-set swap. The first failing step aborts
// the unit, so a lost transition (ALREADY_RESOLVED) wins over any counter
// error, the counter error of the lower course id wins over the other, and
// NOT_ENROLLED or ALREADY_ENROLLED is reported only when both counters moved.
func (s *SwapService) approve(ctx context.Context, request *models.SwapRequest, params repository.TransitionSwapParams) (*models.SwapRequest, error) {
	var resolved *models.SwapRequest
	err := s.uow.WithinTx(ctx, func(ctx context.Context, w repository.SwapWriter) error {
		updated, err := w.TransitionSwapRequest(ctx, params)
		if err != nil {
			return err
		}
		for _, adj := range enrollmentAdjustments(request) {
			if err := w.AdjustEnrollment(ctx, adj.courseID, adj.delta); err != nil {
				return err
			}
		}
		if err := w.SwapEnrollment(ctx, request.StudentID, request.OriginalCourseID, request.TargetCourseID); err != nil {
			return err
		}
		resolved = updated
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resolved, nil
}

type enrollmentAdjustment struct {
	courseID string
	delta    int
}

func enrollmentAdjustments(request *models.SwapRequest) []enrollmentAdjustment {
	adjustments := []enrollmentAdjustment{
		{courseID: request.OriginalCourseID, delta: -1},
		{courseID: request.TargetCourseID, delta: 1},
	}
	sort.SliceStable(adjustments, func(i, j int) bool { return adjustments[i].courseID < adjustments[j].courseID })
	return adjustments
}

func mapResolveError(err error) error {
	var appErr *appErrors.Error
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, sql.ErrNoRows):
		return appErrors.ErrRequestNotFound
	case errors.Is(err, repository.ErrNotPending):
		return appErrors.ErrAlreadyResolved
	case errors.Is(err, repository.ErrCapacityExceeded):
		return appErrors.ErrCapacityExceeded
	case errors.Is(err, repository.ErrUnderflow):
		return appErrors.ErrUnderflow
	case errors.Is(err, repository.ErrNotEnrolled):
		return appErrors.ErrNotEnrolled
	case errors.Is(err, repository.ErrAlreadyEnrolled):
		return appErrors.ErrAlreadyEnrolled
	case errors.Is(err, repository.ErrCourseNotFound):
		return appErrors.ErrCourseNotFound
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve swap request")
	}
}

// Cancel deletes a pending request on behalf of its owner.
func (s *SwapService) Cancel(ctx context.Context, actor *models.JWTClaims, id string) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if err := s.requests.Cancel(ctx, id, actor.UserID); err != nil {
		var mapped error
		switch {
		case errors.Is(err, sql.ErrNoRows):
			mapped = appErrors.ErrRequestNotFound
		case errors.Is(err, repository.ErrNotOwner):
			mapped = appErrors.ErrNotOwner
		case errors.Is(err, repository.ErrNotPending):
			mapped = appErrors.ErrNotPending
		default:
			mapped = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel swap request")
		}
		s.recordFailure(opCancel, mapped)
		return mapped
	}
	requestID := id
	s.recordAuditEntry(ctx, models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionSwapCancel,
		Resource:   models.AuditResourceSwapRequest,
		ResourceID: &requestID,
	})
	return nil
}

// List returns requests visible to actor. Students only see their own.
func (s *SwapService) List(ctx context.Context, actor *models.JWTClaims, query dto.SwapRequestQuery) ([]models.SwapRequest, *models.Pagination, error) {
	if actor == nil {
		return nil, nil, appErrors.ErrUnauthorized
	}
	filter := models.SwapRequestFilter{StudentID: strings.TrimSpace(query.StudentID)}
	if actor.Role != models.RoleAdmin {
		filter.StudentID = actor.UserID
	}
	if raw := strings.TrimSpace(query.Status); raw != "" {
		status, err := models.ParseSwapStatus(raw)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "status must be PENDING, APPROVED or REJECTED")
		}
		filter.Status = &status
	}
	filter.Page, filter.PageSize = s.normalisePage(query.Page, query.PageSize)

	items, total, err := s.requests.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list swap requests")
	}
	if items == nil {
		items = []models.SwapRequest{}
	}
	return items, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// Get returns one request; students may only read their own.
func (s *SwapService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.SwapRequest, error) {
	if actor == nil {
		return nil, appErrors.ErrUnauthorized
	}
	request, err := s.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrRequestNotFound
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load swap request")
	}
	if actor.Role != models.RoleAdmin && request.StudentID != actor.UserID {
		return nil, appErrors.ErrNotOwner
	}
	return request, nil
}

// Detail expands a request with both courses and the advisory conflict
// report for review.
func (s *SwapService) Detail(ctx context.Context, actor *models.JWTClaims, id string) (*dto.SwapRequestDetail, error) {
	request, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	detail := &dto.SwapRequestDetail{Request: request}
	courses, err := s.courses.ListByIDs(ctx, []string{request.OriginalCourseID, request.TargetCourseID})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load swap courses")
	}
	var target *models.Course
	for i := range courses {
		item := dto.NewCourseItem(courses[i])
		switch courses[i].ID {
		case request.OriginalCourseID:
			detail.OriginalCourse = &item
		case request.TargetCourseID:
			detail.TargetCourse = &item
			target = &courses[i]
		}
	}
	if target != nil {
		detail.ConflictingCourseIDs = s.scheduleConflicts(ctx, request.StudentID, target, request.OriginalCourseID)
		detail.ScheduleConflict = len(detail.ConflictingCourseIDs) > 0
	}
	return detail, nil
}

func (s *SwapService) loadCourse(ctx context.Context, id, notFound string) (*models.Course, error) {
	course, err := s.courses.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrCourseNotFound, notFound)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	return course, nil
}

// scheduleConflicts compares target against the student's other enrolled
// courses. Lookup failures are logged and reported as no conflict.
func (s *SwapService) scheduleConflicts(ctx context.Context, studentID string, target *models.Course, originalID string) []string {
	ids, err := s.users.ListEnrolledCourseIDs(ctx, studentID)
	if err != nil {
		s.logger.Warn("schedule conflict check skipped", zap.String("student_id", studentID), zap.Error(err))
		return nil
	}
	if len(ids) == 0 {
		return nil
	}
	enrolled, err := s.courses.ListByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("schedule conflict check skipped", zap.String("student_id", studentID), zap.Error(err))
		return nil
	}
	return ConflictingCourses(target.Schedule, enrolled, originalID, target.ID)
}

func (s *SwapService) studentName(ctx context.Context, actor *models.JWTClaims) string {
	if name := strings.TrimSpace(actor.FullName); name != "" {
		return name
	}
	user, err := s.users.FindByID(ctx, actor.UserID)
	if err != nil {
		s.logger.Warn("failed to resolve student name", zap.String("student_id", actor.UserID), zap.Error(err))
		return actor.Email
	}
	return user.FullName
}

func (s *SwapService) normalisePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = s.config.DefaultPageSize
	}
	if pageSize > s.config.MaxPageSize {
		pageSize = s.config.MaxPageSize
	}
	return page, pageSize
}

func (s *SwapService) recordFailure(operation string, err error) {
	s.metrics.RecordSwapFailure(operation, appErrors.FromError(err).Code)
}

func (s *SwapService) recordAudit(ctx context.Context, userID, action string, request *models.SwapRequest) {
	if s.audit == nil || request == nil {
		return
	}
	payload, err := json.Marshal(request)
	if err != nil {
		s.logger.Warn("failed to encode audit payload", zap.Error(err))
	}
	requestID := request.ID
	s.recordAuditEntry(ctx, models.AuditLog{
		UserID:     &userID,
		Action:     action,
		Resource:   models.AuditResourceSwapRequest,
		ResourceID: &requestID,
		NewValues:  payload,
	})
}

func (s *SwapService) recordAuditEntry(ctx context.Context, log models.AuditLog) {
	if s.audit == nil {
		return
	}
	log.IPAddress = "system"
	log.UserAgent = "swap-service"
	s.audit.Record(ctx, log)
}

func requireAdmin(actor *models.JWTClaims) error {
	if actor == nil {
		return appErrors.ErrUnauthorized
	}
	if actor.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "administrator role required")
	}
	return nil
}

func optionalComment(comment string) *string {
	if strings.TrimSpace(comment) == "" {
		return nil
	}
	return &comment
}

func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
