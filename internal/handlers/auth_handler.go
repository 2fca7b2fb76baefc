package handlers

import (
	"net/http"

	"github.com/farellandr/ticketgate/internal/helpers"
	"github.com/gin-gonic/gin"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	op, err := h.Operators.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		helpers.RespondWithError(c, http.StatusUnauthorized, "Invalid email or password.")
		return
	}

	token, expiresAt, err := h.Tokens.Issue(op.Email)
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to generate token.")
		return
	}

	roles := []string{}
	if h.Admins.Allows(op.Email) {
		roles = append(roles, "admin")
	}
	if h.Managers.Allows(op.Email) {
		roles = append(roles, "manager")
	}

	h.Log.Info().Str("operator", op.Email).Strs("roles", roles).Msg("operator logged in")
	c.JSON(http.StatusOK, gin.H{
		"token":     token,
		"expiresAt": expiresAt,
		"roles":     roles,
	})
}
