package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

type AddCartItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,min=1"`
}

type UpdateCartItemRequest struct {
	Quantity *int `json:"quantity" binding:"required,min=0"`
}

// --- Cart Handlers ---

func (h *StoreHTTPHandler) GetCart(c *gin.Context) {
	s, ok := scope(c)
	if !ok {
		return
	}
	ctx, cancel := requestContext(c, 5*time.Second)
	defer cancel()

	cart, err := h.svc.GetCart(ctx, s.UserID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Cart retrieved successfully", cart))
}

func (h *StoreHTTPHandler) AddCartItem(c *gin.Context) {
	s, ok := scope(c)
	if !ok {
		return
	}
	var req AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format: "+err.Error()))
		return
	}
	ctx, cancel := requestContext(c, 10*time.Second)
	defer cancel()

	cart, err := h.svc.AddItem(ctx, s.UserID, req.ProductID, req.Quantity)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Item added to cart", cart))
}

func (h *StoreHTTPHandler) UpdateCartItem(c *gin.Context) {
	s, ok := scope(c)
	if !ok {
		return
	}
	var req UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format: "+err.Error()))
		return
	}
	ctx, cancel := requestContext(c, 10*time.Second)
	defer cancel()

	cart, err := h.svc.UpdateQuantity(ctx, s.UserID, c.Param("productId"), *req.Quantity)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Cart updated", cart))
}

func (h *StoreHTTPHandler) RemoveCartItem(c *gin.Context) {
	s, ok := scope(c)
	if !ok {
		return
	}
	ctx, cancel := requestContext(c, 10*time.Second)
	defer cancel()

	cart, err := h.svc.RemoveItem(ctx, s.UserID, c.Param("productId"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Item removed from cart", cart))
}

func (h *StoreHTTPHandler) ClearCart(c *gin.Context) {
	s, ok := scope(c)
	if !ok {
		return
	}
	ctx, cancel := requestContext(c, 10*time.Second)
	defer cancel()

	if err := h.svc.ClearCart(ctx, s.UserID); err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Cart cleared", nil))
}
