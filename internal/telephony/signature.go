package telephony

import (
	"net/http"
	"strings"

	"wbor-twilio/pkg/logger"

	"github.com/gin-gonic/gin"
	twclient "github.com/twilio/twilio-go/client"
)

const SignatureHeader = "X-Twilio-Signature"

// SignatureValidator checks an X-Twilio-Signature against the public URL and
// POST params of a webhook.
type SignatureValidator interface {
	Validate(url string, params map[string]string, signature string) bool
}

func NewSignatureValidator(authToken string) SignatureValidator {
	v := twclient.NewRequestValidator(authToken)
	return &v
}

// RequireSignature rejects webhooks whose signature does not match.
//
// publicBaseURL is the externally visible origin, including any path prefix
// added by the reverse proxy; Twilio signs the URL it called, not the one we see.
// onReject runs before the 403 is written (audit hooks).
func RequireSignature(v SignatureValidator, publicBaseURL string, onReject func(c *gin.Context)) gin.HandlerFunc {
	base := strings.TrimRight(publicBaseURL, "/")
	return func(c *gin.Context) {
		log := logger.FromGin(c)

		params, err := FormValues(c.Request)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
			return
		}

		url := base + c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			url += "?" + c.Request.URL.RawQuery
		}

		sig := c.GetHeader(SignatureHeader)
		if sig == "" || !v.Validate(url, params, sig) {
			log.Warn("twilio signature rejected", "path", c.Request.URL.Path, "ip", c.ClientIP())
			if onReject != nil {
				onReject(c)
			}
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
			return
		}
		c.Next()
	}
}
