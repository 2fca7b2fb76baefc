package middleware

import (
	"net/http"
	"strings"

	"github.com/farellandr/ticketgate/internal/auth"
	"github.com/farellandr/ticketgate/internal/helpers"
	"github.com/gin-gonic/gin"
)

const operatorKey = "operator_email"

type TokenVerifier interface {
	Verify(tokenString string) (string, error)
}

// OperatorAuth rejects requests without a valid bearer token before any handler runs.
func OperatorAuth(tokens TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(token) == "" {
			helpers.RespondWithError(c, http.StatusUnauthorized, "Missing bearer token.")
			c.Abort()
			return
		}

		email, err := tokens.Verify(strings.TrimSpace(token))
		if err != nil {
			helpers.RespondWithError(c, http.StatusUnauthorized, "Invalid or expired token.")
			c.Abort()
			return
		}

		c.Set(operatorKey, email)
		c.Next()
	}
}

// RequireRole admits only operators on the allow-list.
func RequireRole(allowed auth.AllowList) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !allowed.Allows(GetOperator(c)) {
			helpers.RespondWithError(c, http.StatusForbidden, "Not allowed for this account.")
			c.Abort()
			return
		}
		c.Next()
	}
}

func GetOperator(c *gin.Context) string {
	email, exists := c.Get(operatorKey)
	if !exists {
		return ""
	}
	return email.(string)
}
