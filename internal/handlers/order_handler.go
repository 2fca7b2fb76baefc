package handlers

import (
	"net/http"

	"github.com/farellandr/ticketgate/internal/helpers"
	"github.com/farellandr/ticketgate/internal/payments"
	"github.com/gin-gonic/gin"
)

type OrderRequest struct {
	AmountMinor int64  `json:"amountMinorUnits" binding:"omitempty,min=1"`
	ReceiptID   string `json:"receiptId" binding:"max=40"`
	EventSlug   string `json:"eventSlug" binding:"omitempty,slug"`
}

// CreateOrder asks the gateway for an order the checkout widget can pay.
func (h *Handler) CreateOrder(c *gin.Context) {
	var req OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	result, err := h.Orders.CreateOrder(c.Request.Context(), payments.OrderRequest{
		AmountMinor: req.AmountMinor,
		ReceiptID:   req.ReceiptID,
		EventSlug:   req.EventSlug,
	})
	if err != nil {
		h.Log.Warn().Err(err).Str("event_slug", req.EventSlug).Msg("order creation failed")
		helpers.RespondWithAppError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
