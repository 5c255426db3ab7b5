package httpapi

import (
	"wbor-twilio/internal/apperr"

	"github.com/gin-gonic/gin"
)

// AbortError writes the status mapped from err's apperr kind with a
// caller-safe message. Causes stay in the logs.
func AbortError(c *gin.Context, err error, fallback string) {
	c.AbortWithStatusJSON(apperr.HTTPStatus(err), gin.H{"error": apperr.Message(err, fallback)})
}
