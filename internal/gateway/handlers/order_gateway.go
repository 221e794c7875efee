package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"storefront-system/internal/commerce"
)

type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// --- Order Handlers ---

func (h *StoreHTTPHandler) GetOrder(c *gin.Context) {
	s, ok := scope(c)
	if !ok {
		return
	}
	ctx, cancel := requestContext(c, 5*time.Second)
	defer cancel()

	order, err := h.svc.GetOrder(ctx, c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	if !s.IsAdmin() && order.CustomerID != s.UserID {
		notOwned(c, "Order")
		return
	}
	c.JSON(http.StatusOK, successResponse("Order retrieved successfully", order))
}

func (h *StoreHTTPHandler) CancelOrder(c *gin.Context) {
	s, ok := scope(c)
	if !ok {
		return
	}
	ctx, cancel := requestContext(c, 15*time.Second)
	defer cancel()

	if !s.IsAdmin() {
		order, err := h.svc.GetOrder(ctx, c.Param("id"))
		if err != nil {
			handleServiceError(c, err)
			return
		}
		if order.CustomerID != s.UserID {
			notOwned(c, "Order")
			return
		}
	}

	order, err := h.svc.CancelOrder(ctx, c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Order cancelled", order))
}

func (h *StoreHTTPHandler) UpdateOrderStatus(c *gin.Context) {
	var req UpdateOrderStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format: "+err.Error()))
		return
	}
	to, ok := commerce.ParseOrderStatus(req.Status)
	if !ok {
		c.JSON(http.StatusBadRequest, errorResponse("Unknown order status: "+req.Status))
		return
	}
	ctx, cancel := requestContext(c, 15*time.Second)
	defer cancel()

	order, err := h.svc.UpdateOrderStatus(ctx, c.Param("id"), to)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Order status updated", order))
}
