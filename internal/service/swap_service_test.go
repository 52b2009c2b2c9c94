package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-swap-api/internal/dto"
	"github.com/noah-isme/course-swap-api/internal/models"
	"github.com/noah-isme/course-swap-api/internal/repository/memory"
	appErrors "github.com/noah-isme/course-swap-api/pkg/errors"
)

const validReason = "Schedule conflict with my part-time job"

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)}
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type recordingAudit struct {
	mu   sync.Mutex
	logs []models.AuditLog
}

func (r *recordingAudit) Record(_ context.Context, log models.AuditLog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, log)
}

func (r *recordingAudit) actions() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.logs))
	for _, l := range r.logs {
		out = append(out, l.Action)
	}
	return out
}

type countingInvalidator struct {
	mu    sync.Mutex
	calls int
}

func (c *countingInvalidator) InvalidateCatalog(context.Context) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
}

type swapFixture struct {
	courses  *memory.CourseRepository
	users    *memory.UserRepository
	requests *memory.SwapRequestRepository
	svc      *SwapService
	audit    *recordingAudit
	catalog  *countingInvalidator
	metrics  *MetricsService

	student *models.JWTClaims
	other   *models.JWTClaims
	admin   *models.JWTClaims

	math, phys, chem, hist, full, locked, tight *models.Course
}

func newSwapFixture(t *testing.T, cfg SwapConfig) *swapFixture {
	t.Helper()
	ctx := context.Background()
	clock := newStepClock()
	db := memory.New(memory.WithClock(clock.Now))

	f := &swapFixture{
		courses:  memory.NewCourseRepository(db),
		users:    memory.NewUserRepository(db),
		requests: memory.NewSwapRequestRepository(db),
		audit:    &recordingAudit{},
		catalog:  &countingInvalidator{},
		metrics:  NewMetricsService(),
	}

	mkCourse := func(code string, capacity, enrolled int, swapable bool, schedule ...models.ScheduleBlock) *models.Course {
		c := &models.Course{
			Code:       code,
			Name:       code,
			Teacher:    "Staff",
			Credits:    3,
			Schedule:   models.WeeklySchedule(schedule),
			Capacity:   capacity,
			Enrolled:   enrolled,
			IsSwapable: swapable,
		}
		require.NoError(t, f.courses.Create(ctx, c))
		return c
	}
	f.math = mkCourse("MATH101", 30, 2, true, block(time.Monday, "09:00", "10:30"))
	f.phys = mkCourse("PHYS101", 30, 0, true, block(time.Wednesday, "13:00", "14:00"))
	f.chem = mkCourse("CHEM101", 30, 0, true, block(time.Tuesday, "10:30", "11:30"))
	f.hist = mkCourse("HIST101", 30, 1, true, block(time.Tuesday, "10:00", "11:00"))
	f.full = mkCourse("FULL101", 1, 1, true, block(time.Friday, "08:00", "09:00"))
	f.locked = mkCourse("LOCK101", 10, 0, false, block(time.Thursday, "08:00", "09:00"))
	f.tight = mkCourse("TIGHT101", 1, 0, true, block(time.Thursday, "13:00", "14:00"))

	mkUser := func(email, name string, role models.UserRole) *models.JWTClaims {
		u := &models.User{Email: email, FullName: name, Role: role, Active: true}
		require.NoError(t, f.users.Create(ctx, u))
		return &models.JWTClaims{UserID: u.ID, Role: role, Email: email, FullName: name}
	}
	f.student = mkUser("student@example.com", "Alex Student", models.RoleStudent)
	f.other = mkUser("other@example.com", "Sam Other", models.RoleStudent)
	f.admin = mkUser("admin@example.com", "Admin", models.RoleAdmin)

	require.NoError(t, f.users.Enroll(ctx, f.student.UserID, f.math.ID))
	require.NoError(t, f.users.Enroll(ctx, f.student.UserID, f.hist.ID))
	require.NoError(t, f.users.Enroll(ctx, f.other.UserID, f.math.ID))

	f.svc = NewSwapService(f.requests, f.courses, f.users, memory.NewUnitOfWork(db), cfg, nil, nil,
		WithSwapAudit(f.audit),
		WithSwapMetrics(f.metrics),
		WithCatalogInvalidator(f.catalog),
		WithSwapClock(clock.Now),
	)
	return f
}

func (f *swapFixture) submit(t *testing.T, actor *models.JWTClaims, from, to *models.Course) *models.SwapRequest {
	t.Helper()
	res, err := f.svc.Submit(context.Background(), actor, dto.SubmitSwapRequest{
		OriginalCourseID: from.ID,
		TargetCourseID:   to.ID,
		Reason:           validReason,
	})
	require.NoError(t, err)
	return res.Request
}

func (f *swapFixture) enrolledCount(t *testing.T, c *models.Course) int {
	t.Helper()
	course, err := f.courses.GetByID(context.Background(), c.ID)
	require.NoError(t, err)
	return course.Enrolled
}

func (f *swapFixture) status(t *testing.T, id string) models.SwapStatus {
	t.Helper()
	req, err := f.requests.GetByID(context.Background(), id)
	require.NoError(t, err)
	return req.Status
}

func (f *swapFixture) isEnrolled(t *testing.T, actor *models.JWTClaims, c *models.Course) bool {
	t.Helper()
	ok, err := f.users.IsEnrolled(context.Background(), actor.UserID, c.ID)
	require.NoError(t, err)
	return ok
}

func counterValue(t *testing.T, registry *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			matched := 0
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want == lp.GetValue() {
					matched++
				}
			}
			if matched == len(labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestSwapSubmitAndApprove(t *testing.T) {
	f := newSwapFixture(t, SwapConfig{})
	ctx := context.Background()

	res, err := f.svc.Submit(ctx, f.student, dto.SubmitSwapRequest{
		OriginalCourseID: f.math.ID,
		TargetCourseID:   f.phys.ID,
		Reason:           validReason,
	})
	require.NoError(t, err)
	assert.Equal(t, models.SwapStatusPending, res.Request.Status)
	assert.Equal(t, "Alex Student", res.Request.StudentName)
	assert.False(t, res.ScheduleConflict)

	resolved, err := f.svc.Resolve(ctx, f.admin, res.Request.ID, dto.ResolveSwapRequest{Decision: models.SwapDecisionApprove, Comment: "ok"})
	require.NoError(t, err)
	assert.Equal(t, models.SwapStatusApproved, resolved.Status)
	require.NotNil(t, resolved.ResolverID)
	assert.Equal(t, f.admin.UserID, *resolved.ResolverID)
	require.NotNil(t, resolved.AdminComment)
	assert.Equal(t, "ok", *resolved.AdminComment)
	assert.NotNil(t, resolved.ResolvedAt)

	assert.Equal(t, 1, f.enrolledCount(t, f.math))
	assert.Equal(t, 1, f.enrolledCount(t, f.phys))
	assert.False(t, f.isEnrolled(t, f.student, f.math))
	assert.True(t, f.isEnrolled(t, f.student, f.phys))
	assert.True(t, f.isEnrolled(t, f.student, f.hist))

	assert.Equal(t, 1, f.catalog.calls)
	assert.Equal(t, []string{models.AuditActionSwapSubmit, models.AuditActionSwapApprove}, f.audit.actions())
	assert.Equal(t, float64(1), counterValue(t, f.metrics.Registry(), "swap_requests_submitted_total", nil))
	assert.Equal(t, float64(1), counterValue(t, f.metrics.Registry(), "swap_requests_resolved_total", map[string]string{"decision": "APPROVE"}))
}

func TestSwapSubmitValidation(t *testing.T) {
	f := newSwapFixture(t, SwapConfig{})
	ctx := context.Background()

	cases := []struct {
		name  string
		actor *models.JWTClaims
		req   dto.SubmitSwapRequest
		want  *appErrors.Error
	}{
		{"short reason", f.student, dto.SubmitSwapRequest{OriginalCourseID: f.math.ID, TargetCourseID: f.phys.ID, Reason: "too short"}, appErrors.ErrInvalidReason},
		{"padded reason", f.student, dto.SubmitSwapRequest{OriginalCourseID: f.math.ID, TargetCourseID: f.phys.ID, Reason: "   short    "}, appErrors.ErrInvalidReason},
		{"same course", f.student, dto.SubmitSwapRequest{OriginalCourseID: f.math.ID, TargetCourseID: f.math.ID, Reason: validReason}, appErrors.ErrValidation},
		{"missing target", f.student, dto.SubmitSwapRequest{OriginalCourseID: f.math.ID, Reason: validReason}, appErrors.ErrValidation},
		{"unknown original", f.student, dto.SubmitSwapRequest{OriginalCourseID: "nope", TargetCourseID: f.phys.ID, Reason: validReason}, appErrors.ErrCourseNotFound},
		{"unknown target", f.student, dto.SubmitSwapRequest{OriginalCourseID: f.math.ID, TargetCourseID: "nope", Reason: validReason}, appErrors.ErrCourseNotFound},
		{"not enrolled", f.student, dto.SubmitSwapRequest{OriginalCourseID: f.chem.ID, TargetCourseID: f.phys.ID, Reason: validReason}, appErrors.ErrNotEnrolledInOriginal},
		{"not swapable", f.student, dto.SubmitSwapRequest{OriginalCourseID: f.math.ID, TargetCourseID: f.locked.ID, Reason: validReason}, appErrors.ErrTargetNotSwapable},
		{"already in target", f.student, dto.SubmitSwapRequest{OriginalCourseID: f.math.ID, TargetCourseID: f.hist.ID, Reason: validReason}, appErrors.ErrAlreadyInTarget},
		{"target full", f.student, dto.SubmitSwapRequest{OriginalCourseID: f.math.ID, TargetCourseID: f.full.ID, Reason: validReason}, appErrors.ErrTargetFull},
		{"admin cannot submit", f.admin, dto.SubmitSwapRequest{OriginalCourseID: f.math.ID, TargetCourseID: f.phys.ID, Reason: validReason}, appErrors.ErrForbidden},
		{"anonymous", nil, dto.SubmitSwapRequest{OriginalCourseID: f.math.ID, TargetCourseID: f.phys.ID, Reason: validReason}, appErrors.ErrUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Submit(ctx, tc.actor, tc.req)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tc.want), "got %v", err)
		})
	}

	items, _, err := f.svc.List(ctx, f.admin, dto.SwapRequestQuery{})
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Equal(t, float64(2), counterValue(t, f.metrics.Registry(), "swap_request_failures_total", map[string]string{"operation": "submit", "code": "INVALID_REASON"}))
}

func TestSwapSubmitReasonCountsCharacters(t *testing.T) {
	f := newSwapFixture(t, SwapConfig{ReasonMinLength: 4})

	_, err := f.svc.Submit(context.Background(), f.student, dto.SubmitSwapRequest{
		OriginalCourseID: f.math.ID,
		TargetCourseID:   f.phys.ID,
		Reason:           "日本語で",
	})
	require.NoError(t, err)
}

func TestSwapSubmitReportsScheduleConflict(t *testing.T) {
	f := newSwapFixture(t, SwapConfig{})

	res, err := f.svc.Submit(context.Background(), f.student, dto.SubmitSwapRequest{
		OriginalCourseID: f.math.ID,
		TargetCourseID:   f.chem.ID,
		Reason:           validReason,
	})
	require.NoError(t, err)
	assert.True(t, res.ScheduleConflict)
	assert.Equal(t, []string{f.hist.ID}, res.ConflictingCourseIDs)
	assert.Equal(t, models.SwapStatusPending, res.Request.Status)
}

func TestSwapDuplicatePendingRequest(t *testing.T) {
	f := newSwapFixture(t, SwapConfig{})
	ctx := context.Background()

	first := f.submit(t, f.student, f.math, f.phys)

	_, err := f.svc.Submit(ctx, f.student, dto.SubmitSwapRequest{OriginalCourseID: f.math.ID, TargetCourseID: f.phys.ID, Reason: validReason})
	assert.True(t, errors.Is(err, appErrors.ErrDuplicateRequest))

	// a different pair and a different student are independent
	f.submit(t, f.student, f.math, f.chem)
	f.submit(t, f.other, f.math, f.phys)

	_, err = f.svc.Resolve(ctx, f.admin, first.ID, dto.ResolveSwapRequest{Decision: models.SwapDecisionReject})
	require.NoError(t, err)
	f.submit(t, f.student, f.math, f.phys)
}

func TestSwapRejectLeavesEnrollmentUntouched(t *testing.T) {
	f := newSwapFixture(t, SwapConfig{})
	req := f.submit(t, f.student, f.math, f.phys)

	resolved, err := f.svc.Resolve(context.Background(), f.admin, req.ID, dto.ResolveSwapRequest{Decision: models.SwapDecisionReject, Comment: "  Class is full for seniors  "})
	require.NoError(t, err)
	assert.Equal(t, models.SwapStatusRejected, resolved.Status)
	require.NotNil(t, resolved.AdminComment)
	assert.Equal(t, "  Class is full for seniors  ", *resolved.AdminComment)

	assert.Equal(t, 2, f.enrolledCount(t, f.math))
	assert.Equal(t, 0, f.enrolledCount(t, f.phys))
	assert.True(t, f.isEnrolled(t, f.student, f.math))
	assert.Equal(t, 0, f.catalog.calls)
}

func TestSwapResolveTwiceFails(t *testing.T) {
	f := newSwapFixture(t, SwapConfig{})
	ctx := context.Background()
	req := f.submit(t, f.student, f.math, f.phys)

	_, err := f.svc.Resolve(ctx, f.admin, req.ID, dto.ResolveSwapRequest{Decision: models.SwapDecisionApprove})
	require.NoError(t, err)

	_, err = f.svc.Resolve(ctx, f.admin, req.ID, dto.ResolveSwapRequest{Decision: models.SwapDecisionApprove})
	assert.True(t, errors.Is(err, appErrors.ErrAlreadyResolved))
	_, err = f.svc.Resolve(ctx, f.admin, req.ID, dto.ResolveSwapRequest{Decision: models.SwapDecisionReject})
	assert.True(t, errors.Is(err, appErrors.ErrAlreadyResolved))

	assert.Equal(t, 1, f.enrolledCount(t, f.math))
	assert.Equal(t, 1, f.enrolledCount(t, f.phys))
	assert.Equal(t, models.SwapStatusApproved, f.status(t, req.ID))
}

func TestSwapResolveGuards(t *testing.T) {
	f := newSwapFixture(t, SwapConfig{})
	ctx := context.Background()
	req := f.submit(t, f.student, f.math, f.phys)

	_, err := f.svc.Resolve(ctx, f.student, req.ID, dto.ResolveSwapRequest{Decision: models.SwapDecisionApprove})
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = f.svc.Resolve(ctx, f.admin, req.ID, dto.ResolveSwapRequest{Decision: "MAYBE"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.Resolve(ctx, f.admin, "missing", dto.ResolveSwapRequest{Decision: models.SwapDecisionApprove})
	assert.True(t, errors.Is(err, appErrors.ErrRequestNotFound))

	assert.Equal(t, models.SwapStatusPending, f.status(t, req.ID))
}

func TestSwapApproveRollsBackWhenTargetFilled(t *testing.T) {
	f := newSwapFixture(t, SwapConfig{})
	ctx := context.Background()
	req := f.submit(t, f.student, f.math, f.tight)

	require.NoError(t, f.courses.AdjustEnrollment(ctx, f.tight.ID, 1))

	_, err := f.svc.Resolve(ctx, f.admin, req.ID, dto.ResolveSwapRequest{Decision: models.SwapDecisionApprove})
	assert.True(t, errors.Is(err, appErrors.ErrCapacityExceeded))

	assert.Equal(t, models.SwapStatusPending, f.status(t, req.ID))
	assert.Equal(t, 2, f.enrolledCount(t, f.math))
	assert.Equal(t, 1, f.enrolledCount(t, f.tight))
	assert.True(t, f.isEnrolled(t, f.student, f.math))
	assert.False(t, f.isEnrolled(t, f.student, f.tight))
	assert.Equal(t, 0, f.catalog.calls)
}

func TestSwapApproveRollsBackWhenStudentLeftOriginal(t *testing.T) {
	f := newSwapFixture(t, SwapConfig{})
	ctx := context.Background()
	req := f.submit(t, f.student, f.math, f.phys)

	require.NoError(t, f.users.SwapEnrollment(ctx, f.student.UserID, f.math.ID, f.locked.ID))

	_, err := f.svc.Resolve(ctx, f.admin, req.ID, dto.ResolveSwapRequest{Decision: models.SwapDecisionApprove})
	assert.True(t, errors.Is(err, appErrors.ErrNotEnrolled))

	assert.Equal(t, models.SwapStatusPending, f.status(t, req.ID))
	assert.Equal(t, 2, f.enrolledCount(t, f.math))
	assert.Equal(t, 0, f.enrolledCount(t, f.phys))
	assert.False(t, f.isEnrolled(t, f.student, f.phys))
}

func TestSwapApproveRollsBackWhenStudentJoinedTarget(t *testing.T) {
	f := newSwapFixture(t, SwapConfig{})
	ctx := context.Background()
	req := f.submit(t, f.student, f.math, f.phys)

	// direct enrollment into the target after the request was filed
	require.NoError(t, f.users.Enroll(ctx, f.student.UserID, f.phys.ID))

	_, err := f.svc.Resolve(ctx, f.admin, req.ID, dto.ResolveSwapRequest{Decision: models.SwapDecisionApprove})
	assert.True(t, errors.Is(err, appErrors.ErrAlreadyEnrolled), "got %v", err)

	assert.Equal(t, models.SwapStatusPending, f.status(t, req.ID))
	assert.Equal(t, 2, f.enrolledCount(t, f.math))
	assert.Equal(t, 0, f.enrolledCount(t, f.phys))
	assert.True(t, f.isEnrolled(t, f.student, f.math))
	ids, err := f.users.ListEnrolledCourseIDs(ctx, f.student.UserID)
	require.NoError(t, err)
	assert.Len(t, ids, 3)
}

func TestSwapApproveRollsBackOnUnderflow(t *testing.T) {
	f := newSwapFixture(t, SwapConfig{})
	ctx := context.Background()

	ghost := &models.Course{Code: "GHOST1", Name: "Ghost", Teacher: "Staff", Capacity: 5, Enrolled: 0, IsSwapable: true}
	require.NoError(t, f.courses.Create(ctx, ghost))
	require.NoError(t, f.users.Enroll(ctx, f.student.UserID, ghost.ID))

	req := f.submit(t, f.student, ghost, f.phys)
	_, err := f.svc.Resolve(ctx, f.admin, req.ID, dto.ResolveSwapRequest{Decision: models.SwapDecisionApprove})
	assert.True(t, errors.Is(err, appErrors.ErrUnderflow))

	assert.Equal(t, models.SwapStatusPending, f.status(t, req.ID))
	assert.Equal(t, 0, f.enrolledCount(t, ghost))
	assert.Equal(t, 0, f.enrolledCount(t, f.phys))
}

func TestSwapCancel(t *testing.T) {
	f := newSwapFixture(t, SwapConfig{})
	ctx := context.Background()

	req := f.submit(t, f.student, f.math, f.phys)

	err := f.svc.Cancel(ctx, f.other, req.ID)
	assert.True(t, errors.Is(err, appErrors.ErrNotOwner))

	require.NoError(t, f.svc.Cancel(ctx, f.student, req.ID))
	_, err = f.requests.GetByID(ctx, req.ID)
	assert.Error(t, err)

	err = f.svc.Cancel(ctx, f.student, req.ID)
	assert.True(t, errors.Is(err, appErrors.ErrRequestNotFound))

	// cancelled pair may be requested again
	again := f.submit(t, f.student, f.math, f.phys)
	_, err = f.svc.Resolve(ctx, f.admin, again.ID, dto.ResolveSwapRequest{Decision: models.SwapDecisionReject})
	require.NoError(t, err)

	err = f.svc.Cancel(ctx, f.student, again.ID)
	assert.True(t, errors.Is(err, appErrors.ErrNotPending))
	assert.Contains(t, f.audit.actions(), models.AuditActionSwapCancel)
}

func TestSwapListScopesStudents(t *testing.T) {
	f := newSwapFixture(t, SwapConfig{DefaultPageSize: 2})
	ctx := context.Background()

	r1 := f.submit(t, f.student, f.math, f.phys)
	r2 := f.submit(t, f.student, f.math, f.chem)
	r3 := f.submit(t, f.student, f.hist, f.phys)
	f.submit(t, f.other, f.math, f.phys)

	_, err := f.svc.Resolve(ctx, f.admin, r2.ID, dto.ResolveSwapRequest{Decision: models.SwapDecisionReject})
	require.NoError(t, err)

	items, page, err := f.svc.List(ctx, f.student, dto.SwapRequestQuery{StudentID: f.other.UserID})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, r3.ID, items[0].ID)
	assert.Equal(t, r2.ID, items[1].ID)
	assert.Equal(t, 3, page.TotalCount)
	assert.Equal(t, 2, page.TotalPages)

	items, _, err = f.svc.List(ctx, f.student, dto.SwapRequestQuery{Page: 2})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, r1.ID, items[0].ID)

	items, page, err = f.svc.List(ctx, f.admin, dto.SwapRequestQuery{Status: "pending", PageSize: 10})
	require.NoError(t, err)
	assert.Len(t, items, 3)
	assert.Equal(t, 3, page.TotalCount)

	items, _, err = f.svc.List(ctx, f.admin, dto.SwapRequestQuery{StudentID: f.other.UserID})
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, _, err = f.svc.List(ctx, f.admin, dto.SwapRequestQuery{Status: "DONE"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestSwapGetAndDetail(t *testing.T) {
	f := newSwapFixture(t, SwapConfig{})
	ctx := context.Background()
	req := f.submit(t, f.student, f.math, f.chem)

	_, err := f.svc.Get(ctx, f.other, req.ID)
	assert.True(t, errors.Is(err, appErrors.ErrNotOwner))

	got, err := f.svc.Get(ctx, f.student, req.ID)
	require.NoError(t, err)
	assert.Equal(t, req.ID, got.ID)

	detail, err := f.svc.Detail(ctx, f.admin, req.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.OriginalCourse)
	require.NotNil(t, detail.TargetCourse)
	assert.Equal(t, "MATH101", detail.OriginalCourse.Code)
	assert.Equal(t, "CHEM101", detail.TargetCourse.Code)
	assert.Equal(t, 30, detail.TargetCourse.RemainingSeats)
	assert.True(t, detail.ScheduleConflict)
	assert.Equal(t, []string{f.hist.ID}, detail.ConflictingCourseIDs)
}

func TestSwapBatchResolve(t *testing.T) {
	f := newSwapFixture(t, SwapConfig{})
	ctx := context.Background()

	a := f.submit(t, f.student, f.math, f.phys)
	b := f.submit(t, f.student, f.hist, f.chem)
	c := f.submit(t, f.other, f.math, f.phys)
	rejected := f.submit(t, f.other, f.math, f.chem)
	_, err := f.svc.Resolve(ctx, f.admin, rejected.ID, dto.ResolveSwapRequest{Decision: models.SwapDecisionReject})
	require.NoError(t, err)

	result, err := f.svc.BatchResolve(ctx, f.admin, dto.BatchResolveSwapRequest{
		IDs:      []string{a.ID, b.ID, c.ID, rejected.ID, a.ID, "missing"},
		Decision: models.SwapDecisionApprove,
		Comment:  "approved in bulk",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Transitioned)
	assert.Equal(t, 2, result.Skipped)
	assert.Equal(t, 0, result.Failed)
	assert.Empty(t, result.Failures)

	assert.Equal(t, 0, f.enrolledCount(t, f.math))
	assert.Equal(t, 2, f.enrolledCount(t, f.phys))
	assert.Equal(t, 1, f.enrolledCount(t, f.chem))
	assert.Equal(t, 0, f.enrolledCount(t, f.hist))
	assert.Equal(t, models.SwapStatusRejected, f.status(t, rejected.ID))
}

func TestSwapBatchSkipsCancelledRequests(t *testing.T) {
	f := newSwapFixture(t, SwapConfig{})
	ctx := context.Background()

	kept := f.submit(t, f.student, f.math, f.phys)
	withdrawn := f.submit(t, f.other, f.math, f.chem)
	require.NoError(t, f.svc.Cancel(ctx, f.other, withdrawn.ID))

	result, err := f.svc.BatchResolve(ctx, f.admin, dto.BatchResolveSwapRequest{
		IDs:      []string{kept.ID, withdrawn.ID},
		Decision: models.SwapDecisionReject,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Transitioned)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, models.SwapStatusRejected, f.status(t, kept.ID))
}

func TestSwapBatchCountsIntegrityFailures(t *testing.T) {
	f := newSwapFixture(t, SwapConfig{})
	ctx := context.Background()

	a := f.submit(t, f.student, f.math, f.tight)
	b := f.submit(t, f.other, f.math, f.tight)

	result, err := f.svc.BatchResolve(ctx, f.admin, dto.BatchResolveSwapRequest{
		IDs:      []string{a.ID, b.ID},
		Decision: models.SwapDecisionApprove,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Transitioned)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, appErrors.ErrCapacityExceeded.Code, result.Failures[0].Code)
	assert.Equal(t, models.SwapStatusPending, f.status(t, b.ID))
	assert.Equal(t, 1, f.enrolledCount(t, f.tight))
}

func TestSwapBatchRejectsOversizedBatch(t *testing.T) {
	f := newSwapFixture(t, SwapConfig{BatchMax: 2})

	_, err := f.svc.BatchResolve(context.Background(), f.admin, dto.BatchResolveSwapRequest{
		IDs:      []string{"a", "b", "c"},
		Decision: models.SwapDecisionReject,
	})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = f.svc.BatchResolve(context.Background(), f.admin, dto.BatchResolveSwapRequest{Decision: models.SwapDecisionReject})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestSwapConcurrentSubmissionsCreateOneRequest(t *testing.T) {
	f := newSwapFixture(t, SwapConfig{})
	ctx := context.Background()

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		dupes     int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Submit(ctx, f.student, dto.SubmitSwapRequest{OriginalCourseID: f.math.ID, TargetCourseID: f.phys.ID, Reason: validReason})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, appErrors.ErrDuplicateRequest):
				dupes++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, dupes)
	_, page, err := f.svc.List(ctx, f.student, dto.SwapRequestQuery{})
	require.NoError(t, err)
	assert.Equal(t, 1, page.TotalCount)
}

func TestSwapConcurrentResolutionsApplyOnce(t *testing.T) {
	f := newSwapFixture(t, SwapConfig{})
	ctx := context.Background()
	req := f.submit(t, f.student, f.math, f.phys)

	decisions := []models.SwapDecision{models.SwapDecisionApprove, models.SwapDecisionApprove, models.SwapDecisionReject, models.SwapDecisionApprove}
	errs := make([]error, len(decisions))
	var wg sync.WaitGroup
	for i, d := range decisions {
		wg.Add(1)
		go func(i int, d models.SwapDecision) {
			defer wg.Done()
			_, errs[i] = f.svc.Resolve(ctx, f.admin, req.ID, dto.ResolveSwapRequest{Decision: d})
		}(i, d)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, appErrors.ErrAlreadyResolved), "got %v", err)
	}
	assert.Equal(t, 1, succeeded)

	if f.status(t, req.ID) == models.SwapStatusApproved {
		assert.Equal(t, 1, f.enrolledCount(t, f.math))
		assert.Equal(t, 1, f.enrolledCount(t, f.phys))
	} else {
		assert.Equal(t, 2, f.enrolledCount(t, f.math))
		assert.Equal(t, 0, f.enrolledCount(t, f.phys))
	}
}

func TestSwapConcurrentApprovalsRespectCapacity(t *testing.T) {
	f := newSwapFixture(t, SwapConfig{})
	ctx := context.Background()
	a := f.submit(t, f.student, f.math, f.tight)
	b := f.submit(t, f.other, f.math, f.tight)

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i, id := range []string{a.ID, b.ID} {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			_, errs[i] = f.svc.Resolve(ctx, f.admin, id, dto.ResolveSwapRequest{Decision: models.SwapDecisionApprove})
		}(i, id)
	}
	wg.Wait()

	failures := 0
	for _, err := range errs {
		if err != nil {
			failures++
			assert.True(t, errors.Is(err, appErrors.ErrCapacityExceeded), "got %v", err)
		}
	}
	assert.Equal(t, 1, failures)
	assert.Equal(t, 1, f.enrolledCount(t, f.tight))
	assert.Equal(t, 1, f.enrolledCount(t, f.math))
}
