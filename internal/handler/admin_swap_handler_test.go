package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/course-swap-api/internal/dto"
	"github.com/noah-isme/course-swap-api/internal/models"
	"github.com/noah-isme/course-swap-api/internal/service"
	appErrors "github.com/noah-isme/course-swap-api/pkg/errors"
)

type fakeAdminSwapSrv struct {
	detail      *dto.SwapRequestDetail
	resolved    *models.SwapRequest
	resolveErr  error
	lastID      string
	lastResolve dto.ResolveSwapRequest
	batch       *dto.BatchResolveResult
	lastBatch   dto.BatchResolveSwapRequest
}

func (f *fakeAdminSwapSrv) List(context.Context, *models.JWTClaims, dto.SwapRequestQuery) ([]models.SwapRequest, *models.Pagination, error) {
	return []models.SwapRequest{{ID: "req-1"}}, models.NewPagination(1, 10, 1), nil
}

func (f *fakeAdminSwapSrv) Detail(_ context.Context, _ *models.JWTClaims, id string) (*dto.SwapRequestDetail, error) {
	f.lastID = id
	if f.detail == nil {
		return nil, appErrors.ErrRequestNotFound
	}
	return f.detail, nil
}

func (f *fakeAdminSwapSrv) Resolve(_ context.Context, _ *models.JWTClaims, id string, req dto.ResolveSwapRequest) (*models.SwapRequest, error) {
	f.lastID = id
	f.lastResolve = req
	return f.resolved, f.resolveErr
}

func (f *fakeAdminSwapSrv) BatchResolve(_ context.Context, _ *models.JWTClaims, req dto.BatchResolveSwapRequest) (*dto.BatchResolveResult, error) {
	f.lastBatch = req
	return f.batch, nil
}

type fakeExporter struct {
	format string
	query  dto.SwapRequestQuery
}

func (f *fakeExporter) ExportSwapRequests(_ context.Context, _ *models.JWTClaims, query dto.SwapRequestQuery, format string) (*service.ExportFile, error) {
	f.format = format
	f.query = query
	if format == "xlsx" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	return &service.ExportFile{Filename: "swap_requests.csv", ContentType: "text/csv", Body: []byte("id\nreq-1\n"), Rows: 1}, nil
}

func TestAdminSwapHandlerResolve(t *testing.T) {
	comment := "approved for timetable"
	srv := &fakeAdminSwapSrv{resolved: &models.SwapRequest{ID: "req-1", Status: models.SwapStatusApproved, AdminComment: &comment}}
	c, rec := newContext(http.MethodPatch, "/admin/swaps/req-1", dto.ResolveSwapRequest{Decision: models.SwapDecisionApprove, Comment: comment}, adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	NewAdminSwapHandler(srv, nil).Resolve(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-1", srv.lastID)
	assert.Equal(t, models.SwapDecisionApprove, srv.lastResolve.Decision)

	var body models.SwapRequest
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &body))
	assert.Equal(t, models.SwapStatusApproved, body.Status)
}

func TestAdminSwapHandlerResolveAlreadyResolved(t *testing.T) {
	srv := &fakeAdminSwapSrv{resolveErr: appErrors.ErrAlreadyResolved}
	c, rec := newContext(http.MethodPatch, "/admin/swaps/req-1", dto.ResolveSwapRequest{Decision: models.SwapDecisionReject}, adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	NewAdminSwapHandler(srv, nil).Resolve(c)

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ALREADY_RESOLVED", decode(t, rec).Error.Code)
}

func TestAdminSwapHandlerDetailNotFound(t *testing.T) {
	c, rec := newContext(http.MethodGet, "/admin/swaps/missing", nil, adminClaims)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	NewAdminSwapHandler(&fakeAdminSwapSrv{}, nil).Detail(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminSwapHandlerBatch(t *testing.T) {
	srv := &fakeAdminSwapSrv{batch: &dto.BatchResolveResult{
		Transitioned: 2,
		Skipped:      1,
		Failed:       1,
		Failures:     []dto.BatchItemFailure{{ID: "full", Code: "CAPACITY_EXCEEDED"}},
	}}
	c, rec := newContext(http.MethodPost, "/admin/swaps/batch", dto.BatchResolveSwapRequest{
		IDs:      []string{"a", "b", "c", "full"},
		Decision: models.SwapDecisionReject,
		Comment:  "term closed",
	}, adminClaims)
	NewAdminSwapHandler(srv, nil).BatchResolve(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, srv.lastBatch.IDs, 4)
	var body dto.BatchResolveResult
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &body))
	assert.Equal(t, 2, body.Transitioned)
	assert.Equal(t, "CAPACITY_EXCEEDED", body.Failures[0].Code)
}

func TestAdminSwapHandlerExport(t *testing.T) {
	exporter := &fakeExporter{}
	c, rec := newContext(http.MethodGet, "/admin/swaps/export?status=APPROVED&page=3", nil, adminClaims)
	NewAdminSwapHandler(&fakeAdminSwapSrv{}, exporter).Export(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "csv", exporter.format)
	assert.Equal(t, "APPROVED", exporter.query.Status)
	assert.Zero(t, exporter.query.Page)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "swap_requests.csv")
	assert.Equal(t, "id\nreq-1\n", rec.Body.String())

	c, rec = newContext(http.MethodGet, "/admin/swaps/export?format=xlsx", nil, adminClaims)
	NewAdminSwapHandler(&fakeAdminSwapSrv{}, exporter).Export(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	c, rec = newContext(http.MethodGet, "/admin/swaps/export", nil, adminClaims)
	NewAdminSwapHandler(&fakeAdminSwapSrv{}, nil).Export(c)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
