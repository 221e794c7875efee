package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// --- Commission Handlers ---

// ListAffiliateCommissions is open to admins and to the affiliate itself.
func (h *StoreHTTPHandler) ListAffiliateCommissions(c *gin.Context) {
	s, ok := scope(c)
	if !ok {
		return
	}
	affiliateID := c.Param("id")
	if !s.IsAdmin() && (s.AffiliateID == "" || s.AffiliateID != affiliateID) {
		c.JSON(http.StatusForbidden, errorResponse("Insufficient permissions"))
		return
	}

	ctx, cancel := requestContext(c, 10*time.Second)
	defer cancel()

	ledger, err := h.svc.ListAffiliateCommissions(ctx, affiliateID)
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, successWithMetaResponse("Commissions retrieved successfully", ledger.Commissions, gin.H{
		"affiliate_id":   ledger.AffiliateID,
		"pending_amount": ledger.Pending,
		"paid_amount":    ledger.Paid,
		"total_amount":   ledger.Total,
		"count":          len(ledger.Commissions),
	}))
}

func (h *StoreHTTPHandler) MarkCommissionPaid(c *gin.Context) {
	ctx, cancel := requestContext(c, 10*time.Second)
	defer cancel()

	commission, err := h.svc.MarkCommissionPaid(ctx, c.Param("id"))
	if err != nil {
		handleServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse("Commission marked as paid", commission))
}
