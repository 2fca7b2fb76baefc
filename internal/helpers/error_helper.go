package helpers

import (
	"errors"
	"net/http"

	"github.com/farellandr/ticketgate/internal/apperr"
	"github.com/gin-gonic/gin"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func HTTPStatusText(code int) string {
	return http.StatusText(code)
}

func RespondWithError(c *gin.Context, statusCode int, customMessage string) {
	c.JSON(statusCode, ErrorResponse{
		Error:   HTTPStatusText(statusCode),
		Message: customMessage,
	})
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, apperr.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, apperr.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrPaymentRejected):
		return http.StatusPaymentRequired
	case errors.Is(err, apperr.ErrVerificationUnavailable):
		return http.StatusServiceUnavailable
	case errors.Is(err, apperr.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperr.ErrOrderCreation), errors.Is(err, apperr.ErrStorage), errors.Is(err, apperr.ErrEmail):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// RespondWithAppError hides internal error text behind a generic message.
func RespondWithAppError(c *gin.Context, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "Internal error."
	}
	_ = c.Error(err)
	RespondWithError(c, status, msg)
}
