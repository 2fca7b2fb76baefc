package handlers

import (
	"net/http"
	"strings"

	"github.com/farellandr/ticketgate/internal/apperr"
	"github.com/farellandr/ticketgate/internal/helpers"
	"github.com/farellandr/ticketgate/internal/models"
	"github.com/gin-gonic/gin"
)

// lookupTicket requires the code and, when given, an id that matches it.
func (h *Handler) lookupTicket(c *gin.Context) (*models.Registration, bool) {
	code := strings.ToUpper(strings.TrimSpace(c.Query("code")))
	if code == "" {
		helpers.RespondWithError(c, http.StatusBadRequest, "Registration code is required.")
		return nil, false
	}

	reg, err := h.Registrations.GetByCode(c.Request.Context(), code)
	if err != nil {
		helpers.RespondWithAppError(c, err)
		return nil, false
	}

	if raw := c.Query("id"); raw != "" {
		id, err := helpers.ParseID(raw)
		if err != nil {
			helpers.RespondWithAppError(c, err)
			return nil, false
		}
		if id != reg.ID {
			helpers.RespondWithAppError(c, apperr.ErrNotFound)
			return nil, false
		}
	}
	return reg, true
}

// GetTicket works whether or not the email went out.
func (h *Handler) GetTicket(c *gin.Context) {
	reg, ok := h.lookupTicket(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"ok": true,
		"ticket": gin.H{
			"id":               reg.ID,
			"registrationCode": reg.RegistrationCode,
			"name":             reg.StudentName,
			"eventSlug":        reg.EventSlug,
			"status":           reg.Status,
			"checkedIn":        reg.CheckedIn,
			"qrUrl":            h.Issuer.QRLink(reg),
			"qrImage":          "/v1/tickets/qr.png?code=" + reg.RegistrationCode,
		},
	})
}

func (h *Handler) GetTicketQR(c *gin.Context) {
	reg, ok := h.lookupTicket(c)
	if !ok {
		return
	}

	png, err := h.Issuer.QRImage(reg)
	if err != nil {
		helpers.RespondWithAppError(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", png)
}
