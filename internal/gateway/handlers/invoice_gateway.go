package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// --- Invoice Handlers ---

func (h *StoreHTTPHandler) GetInvoice(c *gin.Context) {
	s, ok := scope(c)
	if !ok {
		return
	}
	ctx, cancel := requestContext(c, 5*time.Second)
	defer cancel()

	invoice, err := h.svc.GetInvoice(ctx, c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	if !s.IsAdmin() && invoice.CustomerID != s.UserID {
		notOwned(c, "Invoice")
		return
	}
	c.JSON(http.StatusOK, successResponse("Invoice retrieved successfully", invoice))
}

func (h *StoreHTTPHandler) MarkInvoicePaid(c *gin.Context) {
	ctx, cancel := requestContext(c, 10*time.Second)
	defer cancel()

	invoice, err := h.svc.MarkInvoicePaid(ctx, c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Invoice marked as paid", invoice))
}
