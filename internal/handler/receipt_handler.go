package handler

import (
	"net/http"

	"hoa-ledger/internal/services"
	"hoa-ledger/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

type ReceiptHandler struct {
	service *services.ReceiptService
}

func NewReceiptHandler(service *services.ReceiptService) *ReceiptHandler {
	return &ReceiptHandler{service: service}
}

// Verify handles GET /receipts/:code. Any code, well formed or not, either
// resolves or gets the same 404.
func (h *ReceiptHandler) Verify(c *gin.Context) {
	summary, err := h.service.Verify(c.Request.Context(), c.Param("code"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, httpdto.NewSuccessResponse(httpdto.FromSummary(summary)))
}
