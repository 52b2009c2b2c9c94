package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-swap-api/internal/dto"
	"github.com/noah-isme/course-swap-api/internal/models"
	appErrors "github.com/noah-isme/course-swap-api/pkg/errors"
)

type pagedSwapLister struct {
	items []models.SwapRequest
	calls int
}

func (p *pagedSwapLister) List(_ context.Context, _ *models.JWTClaims, query dto.SwapRequestQuery) ([]models.SwapRequest, *models.Pagination, error) {
	p.calls++
	start := (query.Page - 1) * query.PageSize
	end := start + query.PageSize
	if start > len(p.items) {
		start = len(p.items)
	}
	if end > len(p.items) {
		end = len(p.items)
	}
	return p.items[start:end], models.NewPagination(query.Page, query.PageSize, len(p.items)), nil
}

type staticCourses struct {
	courses []models.Course
}

func (s staticCourses) ListByIDs(context.Context, []string) ([]models.Course, error) {
	return s.courses, nil
}

func exportFixture() (*pagedSwapLister, staticCourses) {
	comment := "approved"
	resolved := time.Date(2024, 9, 3, 10, 0, 0, 0, time.UTC)
	lister := &pagedSwapLister{items: []models.SwapRequest{
		{ID: "r1", StudentID: "s1", StudentName: "Alex", OriginalCourseID: "c1", TargetCourseID: "c2", Reason: "clashes with work", Status: models.SwapStatusPending, CreatedAt: time.Date(2024, 9, 2, 9, 0, 0, 0, time.UTC)},
		{ID: "r2", StudentID: "s2", StudentName: "Sam", OriginalCourseID: "c2", TargetCourseID: "c3", Reason: "prefer mornings", Status: models.SwapStatusApproved, AdminComment: &comment, ResolvedAt: &resolved, CreatedAt: time.Date(2024, 9, 1, 9, 0, 0, 0, time.UTC)},
		{ID: "r3", StudentID: "s3", StudentName: "Kim", OriginalCourseID: "c1", TargetCourseID: "c3", Reason: "graduation requirement", Status: models.SwapStatusRejected, CreatedAt: time.Date(2024, 8, 30, 9, 0, 0, 0, time.UTC)},
	}}
	courses := staticCourses{courses: []models.Course{{ID: "c1", Code: "MATH101"}, {ID: "c2", Code: "PHYS101"}}}
	return lister, courses
}

func TestExportServiceCSVWalksEveryPage(t *testing.T) {
	lister, courses := exportFixture()
	svc := NewExportService(lister, courses, 2, nil)
	admin := &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin}

	file, err := svc.ExportSwapRequests(context.Background(), admin, dto.SwapRequestQuery{}, "CSV")
	require.NoError(t, err)
	assert.Equal(t, 2, lister.calls)
	assert.Equal(t, 3, file.Rows)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Contains(t, file.Filename, ".csv")

	records, err := csv.NewReader(bytes.NewReader(file.Body)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, "Request ID", records[0][0])
	assert.Equal(t, []string{"r1", "Alex", "s1", "MATH101", "PHYS101", "PENDING"}, records[1][:6])
	// unknown course ids fall back to the raw id
	assert.Equal(t, "c3", records[2][4])
	assert.Equal(t, "approved", records[2][7])
	assert.Equal(t, "2024-09-03T10:00:00Z", records[2][9])
}

func TestExportServicePDF(t *testing.T) {
	lister, courses := exportFixture()
	svc := NewExportService(lister, courses, 10, nil)

	file, err := svc.ExportSwapRequests(context.Background(), &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin}, dto.SwapRequestQuery{}, "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Body, []byte("%PDF")))
}

func TestExportServiceGuards(t *testing.T) {
	lister, courses := exportFixture()
	svc := NewExportService(lister, courses, 10, nil)

	_, err := svc.ExportSwapRequests(context.Background(), &models.JWTClaims{UserID: "s1", Role: models.RoleStudent}, dto.SwapRequestQuery{}, "csv")
	assert.True(t, errors.Is(err, appErrors.ErrForbidden))

	_, err = svc.ExportSwapRequests(context.Background(), &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin}, dto.SwapRequestQuery{}, "xlsx")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	assert.Equal(t, 0, lister.calls)
}
