package recordings

import (
	"errors"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"wbor-twilio/internal/auth"
	"wbor-twilio/internal/httpapi"
	"wbor-twilio/internal/telephony"
	"wbor-twilio/pkg/logger"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	Pipeline      *Pipeline
	Repo          Repository
	Links         *auth.LinkManager
	PublicBaseURL string
	Now           func() time.Time
}

func (h Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// Callback handles POST /voice/recording.
func (h Handlers) Callback(c *gin.Context) {
	form, err := telephony.ParseTwilioRecording(c.Request)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
		return
	}
	callID, err := validateCallID(form.CallSid)
	if err != nil {
		httpapi.AbortError(c, err, "recording callback failed")
		return
	}
	if form.RecordingStatus != "" && form.RecordingStatus != "completed" {
		logger.FromGin(c).Info("recording not completed", "call_id", callID, "status", form.RecordingStatus)
		c.JSON(http.StatusOK, Ack{CallID: callID, State: StateReceived})
		return
	}

	ack, err := h.Pipeline.HandleVoiceCallback(c.Request.Context(), Callback{
		CallSID:      form.CallSid,
		RecordingSID: form.RecordingSid,
		RecordingURL: form.RecordingURL,
		StartTime:    form.RecordingStartTime,
		Duration:     form.RecordingDuration,
	})
	if err != nil {
		httpapi.AbortError(c, err, "recording callback failed")
		return
	}
	c.JSON(http.StatusOK, ack)
}

// List handles GET /recordings. Password protected.
func (h Handlers) List(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	recs, err := h.Repo.List(c.Request.Context(), limit)
	if err != nil {
		logger.FromGin(c).Error("recording list failed", "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	if recs == nil {
		recs = []CallRecording{}
	}
	c.JSON(http.StatusOK, gin.H{"recordings": recs})
}

// Link handles GET /recordings/:call_id/link. Password protected; returns a
// signed URL that can be opened without the password until it expires.
func (h Handlers) Link(c *gin.Context) {
	id := c.Param("call_id")
	if !callIDPattern.MatchString(id) {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid call_id"})
		return
	}
	if _, err := h.Repo.Get(c.Request.Context(), id); err != nil {
		h.abortLookup(c, err)
		return
	}

	token, exp, err := h.Links.Issue(h.now(), id)
	if err != nil {
		logger.FromGin(c).Error("link issue failed", "call_id", id, "err", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "link failed"})
		return
	}
	link := strings.TrimRight(h.PublicBaseURL, "/") + "/recordings/" + url.PathEscape(id) + "/audio?token=" + url.QueryEscape(token)
	c.JSON(http.StatusOK, gin.H{"url": link, "expires_at": exp.UTC()})
}

// Audio handles GET /recordings/:call_id/audio?token=...
func (h Handlers) Audio(c *gin.Context) {
	log := logger.FromGin(c)
	id := c.Param("call_id")

	if _, err := h.Links.Verify(c.Query("token"), id, h.now()); err != nil {
		log.Warn("recording link rejected", "call_id", id, "ip", c.ClientIP(), "err", err)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid link"})
		return
	}
	rec, err := h.Repo.Get(c.Request.Context(), id)
	if err != nil {
		h.abortLookup(c, err)
		return
	}
	if !fileExists(rec.StoragePath) {
		log.Warn("recording file missing", "call_id", id, "path", rec.StoragePath)
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "recording not found"})
		return
	}
	c.FileAttachment(rec.StoragePath, filepath.Base(rec.StoragePath))
}

func (h Handlers) abortLookup(c *gin.Context, err error) {
	if errors.Is(err, ErrNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "recording not found"})
		return
	}
	logger.FromGin(c).Error("recording lookup failed", "err", err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
}
