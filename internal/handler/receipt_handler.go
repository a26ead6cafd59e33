package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/lingua-api/internal/dto"
	"github.com/noah-isme/lingua-api/pkg/response"
)

type receiptService interface {
	Render(ctx context.Context, token string) (*dto.ExportFile, error)
}

// ReceiptHandler serves signed receipt downloads.
type ReceiptHandler struct {
	service receiptService
}

// NewReceiptHandler constructs the handler.
func NewReceiptHandler(service receiptService) *ReceiptHandler {
	return &ReceiptHandler{service: service}
}

// Download godoc
// @Summary Download a payment receipt
// @Tags Receipts
// @Produce application/pdf
// @Param token path string true "Signed receipt token"
// @Success 200 {file} file
// @Failure 403 {object} response.ErrorBody
// @Failure 404 {object} response.ErrorBody
// @Router /receipts/{token} [get]
func (h *ReceiptHandler) Download(c *gin.Context) {
	file, err := h.service.Render(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Body)
}
