package calls

import (
	"net/http"
	"strconv"
	"time"

	"wbor-twilio/internal/events"
	"wbor-twilio/internal/telephony"
	"wbor-twilio/pkg/logger"

	"github.com/gin-gonic/gin"
)

// Handlers accepts publish-only provider webhooks.
type Handlers struct {
	Events *events.Emitter
}

// CallEvents handles POST /call-events (form encoded).
func (h Handlers) CallEvents(c *gin.Context) {
	log := logger.FromGin(c)

	raw, err := telephony.FormValues(c.Request)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}
	dur, _ := strconv.Atoi(raw["CallDuration"])
	ev := Event{
		CallSID:    raw["CallSid"],
		From:       raw["From"],
		To:         raw["To"],
		Status:     ParseCallStatus(raw["CallStatus"]),
		Duration:   dur,
		Raw:        raw,
		ReceivedAt: time.Now().UTC(),
	}
	log.Info("call event received", "call_sid", ev.CallSID, "status", string(ev.Status), "terminal", ev.Status.Terminal())

	data := make(map[string]any, len(raw)+2)
	for k, v := range raw {
		data[k] = v
	}
	data["status"] = string(ev.Status)
	data["source"] = "twilio"
	h.publish(c, events.TypeCallEvents, data)

	c.String(http.StatusAccepted, "Accepted")
}

// VoiceIntelligence handles POST /voice-intelligence (JSON with transcript_sid).
func (h Handlers) VoiceIntelligence(c *gin.Context) {
	log := logger.FromGin(c)

	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	sid, _ := body["transcript_sid"].(string)
	log.Info("voice intelligence webhook received", "transcript_sid", sid)

	h.publish(c, events.TypeVoiceIntelligence, body)
	c.String(http.StatusAccepted, "Accepted")
}

func (h Handlers) publish(c *gin.Context, eventType string, data map[string]any) {
	h.Events.Emit(c.Request.Context(), eventType, data)
}
