package auth

import (
	"wbor-twilio/internal/apperr"

	"github.com/gin-gonic/gin"
)

// PasswordParam is the query/form field carrying the shared secret.
const PasswordParam = "password"

// RequirePassword rejects requests without the shared secret in the
// "password" query or form field.
func RequirePassword(p *PasswordChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := p.Check(c.Request.Context(), c.Request.FormValue(PasswordParam), c.ClientIP(), c.FullPath()); err != nil {
			c.AbortWithStatusJSON(apperr.HTTPStatus(err), gin.H{"error": apperr.Message(err, "unauthorized")})
			return
		}
		c.Next()
	}
}
