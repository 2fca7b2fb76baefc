package handlers

import (
	"errors"
	"net/http"

	"github.com/farellandr/ticketgate/internal/helpers"
	"github.com/farellandr/ticketgate/internal/storage"
	"github.com/gin-gonic/gin"
)

// ServeFile streams a bucket object. Ticket images need a valid signed link.
func (h *Handler) ServeFile(c *gin.Context) {
	objectPath, err := storage.CleanPath(c.Param("path"))
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid file path.")
		return
	}

	if err := h.Files.Authorize(objectPath, c.Query("exp"), c.Query("sig")); err != nil {
		helpers.RespondWithError(c, http.StatusForbidden, "Link is invalid or has expired.")
		return
	}

	obj, err := h.Bucket.Get(c.Request.Context(), objectPath)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			helpers.RespondWithError(c, http.StatusNotFound, "File not found.")
			return
		}
		helpers.RespondWithAppError(c, err)
		return
	}

	c.Header("Cache-Control", "private, max-age=300")
	c.Data(http.StatusOK, obj.ContentType, obj.Data)
}
