package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lingua-api/internal/dto"
	appErrors "github.com/noah-isme/lingua-api/pkg/errors"
	"github.com/noah-isme/lingua-api/pkg/response"
)

type checkoutService interface {
	InitiateCheckout(ctx context.Context, req dto.CheckoutSessionRequest) (*dto.CheckoutResponse, error)
	PriceCheckout(ctx context.Context, req dto.PriceCheckoutRequest) (*dto.CheckoutResponse, error)
}

// CheckoutHandler opens payment sessions.
type CheckoutHandler struct {
	service checkoutService
}

// NewCheckoutHandler constructs the handler.
func NewCheckoutHandler(service checkoutService) *CheckoutHandler {
	return &CheckoutHandler{service: service}
}

// Session godoc
// @Summary Hold a cohort seat and open a checkout session
// @Tags Checkout
// @Accept json
// @Produce json
// @Param payload body dto.CheckoutSessionRequest true "Cohort checkout"
// @Success 200 {object} dto.CheckoutResponse
// @Failure 400 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Failure 409 {object} response.ErrorBody
// @Failure 500 {object} response.ErrorBody
// @Router /checkout/session [post]
func (h *CheckoutHandler) Session(c *gin.Context) {
	var req dto.CheckoutSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	resp, err := h.service.InitiateCheckout(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Raw(c, http.StatusOK, resp)
}

// Price godoc
// @Summary Open a checkout session for a price
// @Tags Checkout
// @Accept json
// @Produce json
// @Param payload body dto.PriceCheckoutRequest true "Price checkout"
// @Success 200 {object} dto.CheckoutResponse
// @Failure 400 {object} response.ErrorBody
// @Failure 500 {object} response.ErrorBody
// @Router /checkout/price [post]
func (h *CheckoutHandler) Price(c *gin.Context) {
	var req dto.PriceCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid request body"))
		return
	}
	resp, err := h.service.PriceCheckout(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Raw(c, http.StatusOK, resp)
}
