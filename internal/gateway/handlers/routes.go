package handlers

import (
	"github.com/gin-gonic/gin"

	"storefront-system/internal/gateway/middleware"
	"storefront-system/internal/utils"
)

// RegisterRoutes mounts the storefront API under api. auth must populate
// the request scope.
func (h *StoreHTTPHandler) RegisterRoutes(api *gin.RouterGroup, auth gin.HandlerFunc) {
	protected := api.Group("")
	protected.Use(auth)

	admin := middleware.RequireRole(utils.RoleAdmin)

	cart := protected.Group("/cart")
	{
		cart.GET("", h.GetCart)
		cart.POST("/items", h.AddCartItem)
		cart.PUT("/items/:productId", h.UpdateCartItem)
		cart.DELETE("/items/:productId", h.RemoveCartItem)
		cart.DELETE("", h.ClearCart)
	}

	protected.POST("/checkout", h.Checkout)

	orders := protected.Group("/orders")
	{
		orders.GET("/:id", h.GetOrder)
		orders.POST("/:id/cancel", h.CancelOrder)
		orders.PATCH("/:id/status", admin, h.UpdateOrderStatus)
	}

	invoices := protected.Group("/invoices")
	{
		invoices.GET("/:id", h.GetInvoice)
		invoices.POST("/:id/pay", admin, h.MarkInvoicePaid)
	}

	protected.GET("/affiliates/:id/commissions", h.ListAffiliateCommissions)
	protected.POST("/commissions/:id/pay", admin, h.MarkCommissionPaid)
}
