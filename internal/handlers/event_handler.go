package handlers

import (
	"errors"
	"net/http"

	"github.com/farellandr/ticketgate/internal/apperr"
	"github.com/farellandr/ticketgate/internal/events"
	"github.com/farellandr/ticketgate/internal/helpers"
	"github.com/farellandr/ticketgate/internal/middleware"
	"github.com/gin-gonic/gin"
)

// ListEvents is the public listing: active events only.
func (h *Handler) ListEvents(c *gin.Context) {
	list, err := h.Events.List(c.Request.Context(), events.ListOptions{
		ActiveOnly: true,
		Limit:      helpers.QueryInt(c.Query("limit"), 0),
	})
	if err != nil {
		helpers.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "events": list})
}

func (h *Handler) GetEvent(c *gin.Context) {
	ev, err := h.Events.Get(c.Request.Context(), c.Param("slug"))
	if err != nil {
		helpers.RespondWithAppError(c, err)
		return
	}
	if !ev.Active {
		helpers.RespondWithAppError(c, apperr.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "event": ev})
}

func (h *Handler) OpsListEvents(c *gin.Context) {
	list, err := h.Events.List(c.Request.Context(), events.ListOptions{
		ActiveOnly: c.Query("activeOnly") == "true",
		Limit:      helpers.QueryInt(c.Query("limit"), 200),
	})
	if err != nil {
		helpers.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "events": list})
}

type UpsertEventRequest struct {
	Name       *string `json:"name" binding:"omitempty,max=200"`
	PriceMinor *int64  `json:"priceMinorUnits" binding:"omitempty,min=0"`
	Active     *bool   `json:"active"`
	Title      *string `json:"title" binding:"omitempty,max=300"`
	Excerpt    *string `json:"excerpt" binding:"omitempty,max=2000"`
	Date       *string `json:"date" binding:"omitempty,max=64"`
	Location   *string `json:"location" binding:"omitempty,max=300"`
	ImageURL   *string `json:"imageUrl" binding:"omitempty,max=2048"`
}

func (h *Handler) UpsertEvent(c *gin.Context) {
	slug := c.Param("slug")
	if !helpers.IsSlug(slug) {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid event slug.")
		return
	}

	var req UpsertEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	ev, err := h.Events.Upsert(c.Request.Context(), slug, events.Patch{
		Name:       req.Name,
		PriceMinor: req.PriceMinor,
		Active:     req.Active,
		Title:      req.Title,
		Excerpt:    req.Excerpt,
		Date:       req.Date,
		Location:   req.Location,
		ImageURL:   req.ImageURL,
	})
	if err != nil {
		helpers.RespondWithAppError(c, err)
		return
	}

	h.Log.Info().Str("event_slug", ev.Slug).Str("operator", middleware.GetOperator(c)).Msg("event upserted")
	c.JSON(http.StatusOK, gin.H{"ok": true, "event": ev})
}

// UploadEventImage stores a cover image and points the event at its public URL.
func (h *Handler) UploadEventImage(c *gin.Context) {
	slug := c.Param("slug")
	if !helpers.IsSlug(slug) {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid event slug.")
		return
	}
	if _, err := h.Events.Get(c.Request.Context(), slug); err != nil {
		helpers.RespondWithAppError(c, err)
		return
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Image file is required.")
		return
	}

	objectPath, err := helpers.UploadImage(c.Request.Context(), h.Bucket, fileHeader, "events/"+slug, "cover")
	if err != nil {
		if errors.Is(err, apperr.ErrStorage) {
			helpers.RespondWithAppError(c, err)
			return
		}
		helpers.RespondWithError(c, http.StatusBadRequest, err.Error())
		return
	}

	ev, err := h.Events.SetImage(c.Request.Context(), slug, h.Bucket.PublicURL(objectPath))
	if err != nil {
		helpers.RespondWithAppError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "event": ev, "path": objectPath})
}
