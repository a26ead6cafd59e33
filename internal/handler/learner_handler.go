package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lingua-api/internal/dto"
	"github.com/noah-isme/lingua-api/internal/models"
	appErrors "github.com/noah-isme/lingua-api/pkg/errors"
	"github.com/noah-isme/lingua-api/pkg/response"
)

type learnerService interface {
	Enrollments(ctx context.Context, claims *models.JWTClaims) ([]models.EnrollmentDetail, error)
	Credits(ctx context.Context, claims *models.JWTClaims) (*dto.CreditBalanceResponse, error)
	Purchases(ctx context.Context, claims *models.JWTClaims) ([]models.Purchase, error)
	BookLesson(ctx context.Context, claims *models.JWTClaims, req dto.BookLessonRequest) (*dto.BookLessonResponse, error)
}

// LearnerHandler serves the learner dashboard.
type LearnerHandler struct {
	service learnerService
}

// NewLearnerHandler constructs the handler.
func NewLearnerHandler(service learnerService) *LearnerHandler {
	return &LearnerHandler{service: service}
}

// Enrollments godoc
// @Summary List my cohort enrollments
// @Tags Learner
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.ErrorBody
// @Router /me/enrollments [get]
func (h *LearnerHandler) Enrollments(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	items, err := h.service.Enrollments(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Credits godoc
// @Summary Show my lesson credit balance
// @Tags Learner
// @Security BearerAuth
// @Produce json
// @Success 200 {object} dto.CreditBalanceResponse
// @Failure 401 {object} response.ErrorBody
// @Router /me/credits [get]
func (h *LearnerHandler) Credits(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	balance, err := h.service.Credits(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Raw(c, http.StatusOK, balance)
}

// Purchases godoc
// @Summary List my purchases
// @Tags Learner
// @Security BearerAuth
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.ErrorBody
// @Router /me/purchases [get]
func (h *LearnerHandler) Purchases(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	items, err := h.service.Purchases(c.Request.Context(), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// BookLesson godoc
// @Summary Book a paid lesson with one credit
// @Tags Learner
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param payload body dto.BookLessonRequest true "Lesson slot"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.ErrorBody
// @Failure 402 {object} response.ErrorBody
// @Router /me/lessons [post]
func (h *LearnerHandler) BookLesson(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.BookLessonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	resp, err := h.service.BookLesson(c.Request.Context(), claims, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, resp)
}
