package sms

import (
	"context"
	"net/http"
	"strings"
	"time"

	"wbor-twilio/internal/auth"
	"wbor-twilio/internal/banlist"
	"wbor-twilio/internal/httpapi"
	"wbor-twilio/internal/playout"
	"wbor-twilio/internal/telephony"
	"wbor-twilio/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AutomationChecker reports whether the station is on automation.
type AutomationChecker interface {
	AutomationActive(ctx context.Context) bool
}

// Handlers converts HTTP requests to service calls. No business logic here.
type Handlers struct {
	Service *Service

	// AutoReply adds the station acknowledgement to the inbound webhook TwiML.
	AutoReply  bool
	Automation AutomationChecker
	// Media picks between the media replies. Without it every attachment
	// counts as supported.
	Media MediaChecker

	Now func() time.Time
}

// Send handles GET and POST /send.
func (h Handlers) Send(c *gin.Context) {
	req := OutboundSmsRequest{
		Password:  c.Request.FormValue(auth.PasswordParam),
		Recipient: c.Request.FormValue("recipient_number"),
		Body:      c.Request.FormValue("body"),
	}

	res, err := h.Service.SendMessage(c.Request.Context(), req, c.ClientIP())
	if err != nil {
		httpapi.AbortError(c, err, "send failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent", "message_sid": res.MessageSID, "recipient_number": res.Recipient})
}

// Receive handles the inbound-text webhook and always answers with TwiML on success.
func (h Handlers) Receive(c *gin.Context) {
	log := logger.FromGin(c)
	now := time.Now
	if h.Now != nil {
		now = h.Now
	}

	form, err := telephony.ParseTwilioSMS(c.Request)
	if err != nil {
		log.Warn("twilio sms webhook parse failed", "err", err)
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}

	msg := InboundMessage{
		ID:         uuid.NewString(),
		MessageSID: form.MessageSid,
		From:       form.From,
		To:         form.To,
		Body:       form.Body,
		NumMedia:   form.NumMedia,
		MediaURLs:  form.MediaURLs,
		ReceivedAt: now().UTC(),
	}
	if err := h.Service.ReceiveInboundText(c.Request.Context(), msg); err != nil {
		httpapi.AbortError(c, err, "receive failed")
		return
	}

	var reply string
	if h.AutoReply {
		automated := h.Automation != nil && h.Automation.AutomationActive(c.Request.Context())
		media := playout.NoMedia
		if !automated && msg.NumMedia > 0 {
			media = playout.SupportedMedia
			if h.Media != nil {
				media = h.Media.Classify(c.Request.Context(), msg.MediaURLs)
			}
		}
		reply = playout.AutoReply(automated, media)
	}
	twiml, err := telephony.RenderMessagingResponse(reply)
	if err != nil {
		log.Error("twiml render failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "twiml failed"})
		return
	}
	c.Header("Content-Type", "application/xml")
	c.String(http.StatusOK, twiml)
}

// Ban and Unban sit behind auth.RequirePassword.
func (h Handlers) Ban(c *gin.Context) {
	h.ban(c, true)
}

func (h Handlers) Unban(c *gin.Context) {
	h.ban(c, false)
}

func (h Handlers) ban(c *gin.Context, ban bool) {
	number := c.Request.FormValue("number")
	if strings.TrimSpace(number) == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "number is required"})
		return
	}

	var err error
	if ban {
		err = h.Service.Ban(c.Request.Context(), number, c.ClientIP())
	} else {
		err = h.Service.Unban(c.Request.Context(), number, c.ClientIP())
	}
	if err != nil {
		httpapi.AbortError(c, err, "ban list update failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"number": banlist.Normalize(NormalizeRecipient(number)), "banned": ban})
}
