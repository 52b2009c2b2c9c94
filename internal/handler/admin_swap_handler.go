package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-swap-api/internal/dto"
	"github.com/noah-isme/course-swap-api/internal/models"
	"github.com/noah-isme/course-swap-api/internal/service"
	appErrors "github.com/noah-isme/course-swap-api/pkg/errors"
	"github.com/noah-isme/course-swap-api/pkg/response"
)

type adminSwapService interface {
	List(ctx context.Context, actor *models.JWTClaims, query dto.SwapRequestQuery) ([]models.SwapRequest, *models.Pagination, error)
	Detail(ctx context.Context, actor *models.JWTClaims, id string) (*dto.SwapRequestDetail, error)
	Resolve(ctx context.Context, actor *models.JWTClaims, id string, req dto.ResolveSwapRequest) (*models.SwapRequest, error)
	BatchResolve(ctx context.Context, actor *models.JWTClaims, req dto.BatchResolveSwapRequest) (*dto.BatchResolveResult, error)
}

type swapExporter interface {
	ExportSwapRequests(ctx context.Context, actor *models.JWTClaims, query dto.SwapRequestQuery, format string) (*service.ExportFile, error)
}

// AdminSwapHandler exposes the administrator review endpoints.
type AdminSwapHandler struct {
	service  adminSwapService
	exporter swapExporter
}

// NewAdminSwapHandler constructs the handler. exporter may be nil.
func NewAdminSwapHandler(service adminSwapService, exporter swapExporter) *AdminSwapHandler {
	return &AdminSwapHandler{service: service, exporter: exporter}
}

// List godoc
// @Summary List all swap requests
// @Tags Admin Swaps
// @Produce json
// @Param status query string false "PENDING, APPROVED or REJECTED"
// @Param studentId query string false "Filter by student"
// @Param page query int false "Page number"
// @Param pageSize query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /admin/swaps [get]
func (h *AdminSwapHandler) List(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "swap service not configured"))
		return
	}
	claims := claimsFromContext(c)
	items, pagination, err := h.service.List(c.Request.Context(), claims, swapQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Detail godoc
// @Summary Review a swap request with both courses
// @Tags Admin Swaps
// @Produce json
// @Param id path string true "Swap request ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/swaps/{id} [get]
func (h *AdminSwapHandler) Detail(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "swap service not configured"))
		return
	}
	detail, err := h.service.Detail(c.Request.Context(), claimsFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, detail, nil)
}

// Resolve godoc
// @Summary Approve or reject a swap request
// @Tags Admin Swaps
// @Accept json
// @Produce json
// @Param id path string true "Swap request ID"
// @Param payload body dto.ResolveSwapRequest true "Decision"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/swaps/{id} [patch]
func (h *AdminSwapHandler) Resolve(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "swap service not configured"))
		return
	}
	var req dto.ResolveSwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid resolution payload"))
		return
	}
	resolved, err := h.service.Resolve(c.Request.Context(), claimsFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resolved, nil)
}

// BatchResolve godoc
// @Summary Apply one decision to many swap requests
// @Description Requests that are no longer pending or no longer exist are skipped.
// @Tags Admin Swaps
// @Accept json
// @Produce json
// @Param payload body dto.BatchResolveSwapRequest true "Batch decision"
// @Success 200 {object} response.Envelope
// @Router /admin/swaps/batch [post]
func (h *AdminSwapHandler) BatchResolve(c *gin.Context) {
	if h.service == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "swap service not configured"))
		return
	}
	var req dto.BatchResolveSwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid batch payload"))
		return
	}
	result, err := h.service.BatchResolve(c.Request.Context(), claimsFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Export godoc
// @Summary Export swap requests
// @Tags Admin Swaps
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Param status query string false "PENDING, APPROVED or REJECTED"
// @Param studentId query string false "Filter by student"
// @Success 200 {file} file
// @Router /admin/swaps/export [get]
func (h *AdminSwapHandler) Export(c *gin.Context) {
	if h.exporter == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrInternal, "export not configured"))
		return
	}
	query := swapQuery(c)
	query.Page, query.PageSize = 0, 0
	file, err := h.exporter.ExportSwapRequests(c.Request.Context(), claimsFromContext(c), query, c.DefaultQuery("format", "csv"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}
