package handlers

import (
	"net/http"

	"github.com/farellandr/ticketgate/internal/checkin"
	"github.com/farellandr/ticketgate/internal/helpers"
	"github.com/farellandr/ticketgate/internal/middleware"
	"github.com/gin-gonic/gin"
)

type CheckInRequest struct {
	Code      string `json:"code" binding:"max=64"`
	ID        uint64 `json:"id"`
	EventSlug string `json:"eventSlug" binding:"omitempty,slug"`
	Payload   string `json:"payload" binding:"max=2048"`
}

func (h *Handler) CheckIn(c *gin.Context) {
	var req CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	scan := checkin.Scan{Code: req.Code, ID: req.ID, EventSlug: req.EventSlug}
	if req.Payload != "" {
		parsed, err := checkin.ScanFromPayload(req.Payload, req.EventSlug)
		if err != nil {
			helpers.RespondWithAppError(c, err)
			return
		}
		scan = parsed
	}

	res, err := h.Gate.CheckIn(c.Request.Context(), scan, middleware.GetOperator(c))
	if err != nil {
		helpers.RespondWithAppError(c, err)
		return
	}

	switch res.Status {
	case checkin.StatusSuccess:
		c.JSON(http.StatusOK, gin.H{"ok": true, "already": false, "row": res.Registration})
	case checkin.StatusAlreadyUsed:
		c.JSON(http.StatusOK, gin.H{"ok": true, "already": true, "row": res.Registration})
	case checkin.StatusWrongEvent:
		c.JSON(http.StatusConflict, gin.H{"ok": false, "wrongEvent": true, "row": res.Registration})
	default:
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "Registration not found."})
	}
}
