package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lingua-api/internal/dto"
	appErrors "github.com/noah-isme/lingua-api/pkg/errors"
	"github.com/noah-isme/lingua-api/pkg/response"
)

const maxWebhookBody = 1 << 20

type settlementService interface {
	HandleNotification(ctx context.Context, payload []byte, signature string) error
}

// WebhookHandler receives payment processor notifications.
type WebhookHandler struct {
	service settlementService
}

// NewWebhookHandler constructs the handler.
func NewWebhookHandler(service settlementService) *WebhookHandler {
	return &WebhookHandler{service: service}
}

// Stripe godoc
// @Summary Receive a signed payment notification
// @Tags Webhooks
// @Accept json
// @Produce json
// @Param Stripe-Signature header string true "Processor signature"
// @Success 200 {object} dto.WebhookAck
// @Failure 400 {object} response.ErrorBody
// @Failure 500 {object} response.ErrorBody
// @Router /stripe/webhook [post]
func (h *WebhookHandler) Stripe(c *gin.Context) {
	// the signature covers the exact bytes, so the body is never re-encoded
	payload, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unreadable body"))
		return
	}
	if err := h.service.HandleNotification(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		response.Error(c, err)
		return
	}
	response.Raw(c, http.StatusOK, dto.WebhookAck{Received: true})
}
