package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lingua-api/internal/dto"
	"github.com/noah-isme/lingua-api/internal/models"
	appErrors "github.com/noah-isme/lingua-api/pkg/errors"
	"github.com/noah-isme/lingua-api/pkg/response"
)

type adminService interface {
	ListPurchases(ctx context.Context, filter models.PurchaseFilter) ([]models.Purchase, *models.Pagination, error)
	ExportPurchases(ctx context.Context, format dto.ExportFormat) (*dto.ExportFile, error)
	AdjustCredits(ctx context.Context, admin *models.JWTClaims, req dto.AdjustCreditsRequest) (*dto.AdjustCreditsResponse, error)
	PurgeExpiredHolds(ctx context.Context) (*dto.PurgeHoldsResponse, error)
}

// AdminHandler serves staff endpoints.
type AdminHandler struct {
	service adminService
}

// NewAdminHandler constructs the handler.
func NewAdminHandler(service adminService) *AdminHandler {
	return &AdminHandler{service: service}
}

// Purchases godoc
// @Summary List the purchase log
// @Tags Admin
// @Security BearerAuth
// @Produce json
// @Param email query string false "Filter by email"
// @Param page query int false "Page number"
// @Param limit query int false "Page size (max 100)"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.ErrorBody
// @Router /admin/purchases [get]
func (h *AdminHandler) Purchases(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	items, pagination, err := h.service.ListPurchases(c.Request.Context(), models.PurchaseFilter{
		Email:    c.Query("email"),
		Page:     page,
		PageSize: limit,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// ExportPurchases godoc
// @Summary Download the purchase log
// @Tags Admin
// @Security BearerAuth
// @Produce octet-stream
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.ErrorBody
// @Router /admin/purchases/export [get]
func (h *AdminHandler) ExportPurchases(c *gin.Context) {
	file, err := h.service.ExportPurchases(c.Request.Context(), dto.ExportFormat(c.DefaultQuery("format", "csv")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Body)
}

// AdjustCredits godoc
// @Summary Add or remove lesson credits
// @Tags Admin
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body dto.AdjustCreditsRequest true "Adjustment"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.ErrorBody
// @Router /admin/credits [post]
func (h *AdminHandler) AdjustCredits(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.AdjustCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	resp, err := h.service.AdjustCredits(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resp)
}

// PurgeHolds godoc
// @Summary Delete expired seat holds
// @Tags Admin
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/holds/purge [post]
func (h *AdminHandler) PurgeHolds(c *gin.Context) {
	resp, err := h.service.PurgeExpiredHolds(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}
