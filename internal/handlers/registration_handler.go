package handlers

import (
	"net/http"

	"github.com/farellandr/ticketgate/internal/helpers"
	"github.com/farellandr/ticketgate/internal/ticket"
	"github.com/gin-gonic/gin"
)

type RegistrantInput struct {
	ticket.Registrant
	EventSlug string `json:"eventSlug" binding:"omitempty,slug"`
}

type VerifyPaymentRequest struct {
	GatewayOrderID   string          `json:"gatewayOrderId" binding:"required"`
	GatewayPaymentID string          `json:"gatewayPaymentId" binding:"required"`
	Signature        string          `json:"signature" binding:"required"`
	EventSlug        string          `json:"eventSlug" binding:"omitempty,slug"`
	Registrant       RegistrantInput `json:"registrant" binding:"required"`
}

type FreeRegistrationRequest struct {
	EventSlug  string          `json:"eventSlug" binding:"omitempty,slug"`
	Registrant RegistrantInput `json:"registrant" binding:"required"`
}

// VerifyPayment is the checkout callback. It only answers ok once the
// registration row exists.
func (h *Handler) VerifyPayment(c *gin.Context) {
	var req VerifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	res, err := h.Issuer.IssuePaid(c.Request.Context(), ticket.PaidRequest{
		OrderID:    req.GatewayOrderID,
		PaymentID:  req.GatewayPaymentID,
		Signature:  req.Signature,
		EventSlug:  firstNonEmpty(req.EventSlug, req.Registrant.EventSlug),
		Registrant: req.Registrant.Registrant,
	})
	if err != nil {
		h.Log.Warn().Err(err).Str("payment_id", req.GatewayPaymentID).Msg("payment verification failed")
		failWith(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":               true,
		"registrationCode": res.Registration.RegistrationCode,
		"id":               res.Registration.ID,
		"created":          res.Created,
	})
}

func (h *Handler) RegisterFree(c *gin.Context) {
	var req FreeRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		failure(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	res, err := h.Issuer.IssueFree(c.Request.Context(), ticket.FreeRequest{
		EventSlug:  firstNonEmpty(req.EventSlug, req.Registrant.EventSlug),
		Registrant: req.Registrant.Registrant,
	})
	if err != nil {
		failWith(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok":               true,
		"registrationCode": res.Registration.RegistrationCode,
		"id":               res.Registration.ID,
		"created":          res.Created,
	})
}

func failure(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"ok": false, "error": message})
}

func failWith(c *gin.Context, err error) {
	status := helpers.StatusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		message = helpers.HTTPStatusText(status)
	}
	failure(c, status, message)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
