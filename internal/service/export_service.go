package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/course-swap-api/internal/dto"
	"github.com/noah-isme/course-swap-api/internal/models"
	"github.com/noah-isme/course-swap-api/pkg/export"
	appErrors "github.com/noah-isme/course-swap-api/pkg/errors"
)

const defaultExportRowLimit = 5000

type swapLister interface {
	List(ctx context.Context, actor *models.JWTClaims, query dto.SwapRequestQuery) ([]models.SwapRequest, *models.Pagination, error)
}

type exportCourseReader interface {
	ListByIDs(ctx context.Context, ids []string) ([]models.Course, error)
}

// ExportFile is a rendered document ready to be streamed to the client.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
	Rows        int
}

// ExportService renders filtered swap request listings as CSV or PDF.
type ExportService struct {
	swaps     swapLister
	courses   exportCourseReader
	renderers map[string]export.Renderer
	pageSize  int
	rowLimit  int
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to
// the default CSV and PDF exporters.
func NewExportService(swaps swapLister, courses exportCourseReader, pageSize int, logger *zap.Logger, renderers ...export.Renderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if pageSize <= 0 {
		pageSize = 100
	}
	if len(renderers) == 0 {
		renderers = []export.Renderer{export.NewCSVExporter(), export.NewPDFExporter()}
	}
	byFormat := make(map[string]export.Renderer, len(renderers))
	for _, r := range renderers {
		if r != nil {
			byFormat[r.Extension()] = r
		}
	}
	return &ExportService{
		swaps:     swaps,
		courses:   courses,
		renderers: byFormat,
		pageSize:  pageSize,
		rowLimit:  defaultExportRowLimit,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// ExportSwapRequests renders every request matching query in format.
func (s *ExportService) ExportSwapRequests(ctx context.Context, actor *models.JWTClaims, query dto.SwapRequestQuery, format string) (*ExportFile, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "csv"
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	requests, err := s.collect(ctx, actor, query)
	if err != nil {
		return nil, err
	}
	codes := s.courseCodes(ctx, requests)

	dataset := export.Dataset{
		Title:   "Course Swap Requests",
		Columns: swapExportColumns,
		Rows:    make([]map[string]string, 0, len(requests)),
	}
	for _, req := range requests {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"id":        req.ID,
			"student":   req.StudentName,
			"studentId": req.StudentID,
			"original":  courseLabel(codes, req.OriginalCourseID),
			"target":    courseLabel(codes, req.TargetCourseID),
			"status":    string(req.Status),
			"reason":    req.Reason,
			"comment":   derefString(req.AdminComment),
			"createdAt": req.CreatedAt.UTC().Format(time.RFC3339),
			"resolved":  formatOptionalTime(req.ResolvedAt),
		})
	}

	body, err := renderer.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("swap_requests_%s.%s", s.now().Format("20060102_150405"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
		Rows:        len(requests),
	}, nil
}

var swapExportColumns = []export.Column{
	{Key: "id", Label: "Request ID", Width: 30},
	{Key: "student", Label: "Student", Width: 30},
	{Key: "studentId", Label: "Student ID", Width: 25},
	{Key: "original", Label: "From", Width: 22},
	{Key: "target", Label: "To", Width: 22},
	{Key: "status", Label: "Status", Width: 20},
	{Key: "reason", Label: "Reason", Width: 50},
	{Key: "comment", Label: "Admin Comment", Width: 40},
	{Key: "createdAt", Label: "Submitted", Width: 20},
	{Key: "resolved", Label: "Resolved", Width: 20},
}

func (s *ExportService) collect(ctx context.Context, actor *models.JWTClaims, query dto.SwapRequestQuery) ([]models.SwapRequest, error) {
	query.PageSize = s.pageSize
	var out []models.SwapRequest
	for page := 1; ; page++ {
		query.Page = page
		items, pagination, err := s.swaps.List(ctx, actor, query)
		if err != nil {
			return nil, err
		}
		out = append(out, items...)
		if len(out) >= s.rowLimit {
			s.logger.Warn("swap export truncated", zap.Int("limit", s.rowLimit))
			return out[:s.rowLimit], nil
		}
		if pagination == nil || page >= pagination.TotalPages || len(items) == 0 {
			return out, nil
		}
	}
}

func (s *ExportService) courseCodes(ctx context.Context, requests []models.SwapRequest) map[string]string {
	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, req := range requests {
		for _, id := range []string{req.OriginalCourseID, req.TargetCourseID} {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	codes := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return codes
	}
	courses, err := s.courses.ListByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("export falling back to course ids", zap.Error(err))
		return codes
	}
	for _, c := range courses {
		codes[c.ID] = c.Code
	}
	return codes
}

func courseLabel(codes map[string]string, id string) string {
	if code, ok := codes[id]; ok && code != "" {
		return code
	}
	return id
}

func derefString(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func formatOptionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
