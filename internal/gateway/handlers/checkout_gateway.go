package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"storefront-system/internal/services/checkout"
)

const IdempotencyHeader = "Idempotency-Key"

type CheckoutRequest struct {
	ShippingAddress string `json:"shipping_address"`
	Phone           string `json:"phone"`
	PaymentMethod   string `json:"payment_method"`
	// AffiliateID overrides the referral carried by cookie or header.
	AffiliateID string `json:"affiliate_id"`
}

// --- Checkout Handler ---

func (h *StoreHTTPHandler) Checkout(c *gin.Context) {
	s, ok := scope(c)
	if !ok {
		return
	}
	var req CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("Invalid request format: "+err.Error()))
		return
	}

	referral := strings.TrimSpace(req.AffiliateID)
	if referral == "" {
		referral = s.Referral
	}

	ctx, cancel := requestContext(c, 30*time.Second)
	defer cancel()

	result, err := h.svc.Checkout(ctx, checkout.Request{
		UserID:          s.UserID,
		ShippingAddress: strings.TrimSpace(req.ShippingAddress),
		Phone:           strings.TrimSpace(req.Phone),
		PaymentMethod:   strings.TrimSpace(req.PaymentMethod),
		AffiliateID:     referral,
		IdempotencyKey:  strings.TrimSpace(c.GetHeader(IdempotencyHeader)),
	})
	if err != nil {
		handleServiceError(c, err)
		return
	}

	if result.Replayed {
		c.Header("Idempotent-Replayed", "true")
		c.JSON(http.StatusOK, successResponse("Order already placed", result))
		return
	}
	c.JSON(http.StatusCreated, successResponse("Order placed successfully", result))
}
