package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"storefront-system/internal/commerce"
	"storefront-system/internal/gateway/middleware"
	"storefront-system/internal/services/checkout"
)

// StoreService is the storefront surface served over HTTP.
type StoreService interface {
	GetCart(ctx context.Context, userID string) (*commerce.Cart, error)
	AddItem(ctx context.Context, userID, productID string, qty int) (*commerce.Cart, error)
	UpdateQuantity(ctx context.Context, userID, productID string, qty int) (*commerce.Cart, error)
	RemoveItem(ctx context.Context, userID, productID string) (*commerce.Cart, error)
	ClearCart(ctx context.Context, userID string) error

	Checkout(ctx context.Context, req checkout.Request) (*checkout.Result, error)

	GetOrder(ctx context.Context, orderID string) (*commerce.Order, error)
	CancelOrder(ctx context.Context, orderID string) (*commerce.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID string, to commerce.OrderStatus) (*commerce.Order, error)

	GetInvoice(ctx context.Context, invoiceID string) (*commerce.Invoice, error)
	MarkInvoicePaid(ctx context.Context, invoiceID string) (*commerce.Invoice, error)

	ListAffiliateCommissions(ctx context.Context, affiliateID string) (*checkout.AffiliateLedger, error)
	MarkCommissionPaid(ctx context.Context, commissionID string) (*commerce.Commission, error)
}

type StoreHTTPHandler struct {
	svc StoreService
}

func NewStoreHTTPHandler(svc StoreService) *StoreHTTPHandler {
	return &StoreHTTPHandler{svc: svc}
}

func requestContext(c *gin.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), d)
}

// scope aborts with 401 when the auth middleware did not run.
func scope(c *gin.Context) (middleware.Scope, bool) {
	s, ok := middleware.ScopeFrom(c)
	if !ok || s.UserID == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse("Authentication required"))
		return middleware.Scope{}, false
	}
	return s, true
}

// notOwned answers 404 rather than 403 so ids of other customers' records
// are not confirmed.
func notOwned(c *gin.Context, what string) {
	c.JSON(http.StatusNotFound, errorResponse(what+" not found"))
}
