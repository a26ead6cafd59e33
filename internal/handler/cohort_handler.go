package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lingua-api/internal/dto"
	"github.com/noah-isme/lingua-api/pkg/response"
)

type cohortService interface {
	ListOpen(ctx context.Context, language string) ([]dto.CohortListing, error)
}

// CohortHandler lists open cohorts.
type CohortHandler struct {
	service cohortService
}

// NewCohortHandler constructs the handler.
func NewCohortHandler(service cohortService) *CohortHandler {
	return &CohortHandler{service: service}
}

// List godoc
// @Summary List open cohorts with seats left
// @Tags Cohorts
// @Produce json
// @Param language query string false "Italian or German"
// @Success 200 {object} response.Envelope
// @Failure 500 {object} response.ErrorBody
// @Router /cohorts [get]
func (h *CohortHandler) List(c *gin.Context) {
	items, err := h.service.ListOpen(c.Request.Context(), c.Query("language"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}
