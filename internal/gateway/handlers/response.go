package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"storefront-system/internal/commerce"
	"storefront-system/internal/services/checkout"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

func successResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	}
}

func errorResponse(message string) APIResponse {
	return APIResponse{
		Success: false,
		Message: message,
	}
}

func errorWithDataResponse(message string, data interface{}) APIResponse {
	return APIResponse{
		Success: false,
		Message: message,
		Data:    data,
	}
}

func successWithMetaResponse(message string, data interface{}, meta interface{}) APIResponse {
	return APIResponse{
		Success: true,
		Message: message,
		Data:    data,
		Meta:    meta,
	}
}

// --- Helper for handling service errors ---

func handleServiceError(c *gin.Context, err error) {
	var (
		stock   *commerce.InsufficientStockError
		invalid *commerce.InvalidInputError
		stage   *checkout.StageError
	)
	meta := gin.H{}
	if errors.As(err, &stage) {
		meta["stage"] = stage.Stage
	}

	switch {
	case errors.As(err, &invalid):
		c.JSON(http.StatusBadRequest, errorWithDataResponse(invalid.Error(), gin.H{"fields": invalid.Fields}))
	case errors.Is(err, commerce.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, commerce.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.As(err, &stock):
		c.JSON(http.StatusConflict, errorWithDataResponse("Insufficient stock", gin.H{"shortages": stock.Shortages}))
	case errors.Is(err, commerce.ErrStatusConflict):
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
	case errors.Is(err, commerce.ErrCheckoutInProgress):
		c.JSON(http.StatusConflict, errorResponse("Checkout already in progress, retry later"))
	case errors.Is(err, commerce.ErrCheckoutTimeout):
		c.JSON(http.StatusGatewayTimeout, APIResponse{Message: "Checkout timed out, check your orders before retrying", Meta: meta})
	case errors.Is(err, commerce.ErrPartialCheckout):
		log.Error().Err(err).Str("path", c.FullPath()).Msg("partial checkout")
		c.JSON(http.StatusInternalServerError, APIResponse{Message: "Checkout failed and could not be fully undone", Meta: meta})
	default:
		log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, APIResponse{Message: "Service error", Meta: meta})
	}
	c.Abort()
}
