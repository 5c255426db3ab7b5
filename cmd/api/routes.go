package main

import (
	"wbor-twilio/internal/auth"
	"wbor-twilio/internal/httpapi"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, a *app) {
	// public
	r.GET("/", httpapi.Online)
	r.GET("/healthz", httpapi.Health(a.healthChecks()))
	r.GET("/metrics", gin.WrapH(a.metrics.Handler()))

	// Browser operations, shared secret in the password param. The password
	// is checked before the limiter so a wrong secret is always a 403 with
	// an audit record, and only authorized callers spend rate-limit tokens.
	browser := r.Group("/")
	browser.Use(auth.RequirePassword(a.password), a.limiter.Middleware())
	{
		browser.GET("/send", a.sms.Send)
		browser.POST("/send", a.sms.Send)
		browser.GET("/ban", a.sms.Ban)
		browser.GET("/unban", a.sms.Unban)
		browser.GET("/recordings", a.recordings.List)
		browser.GET("/recordings/:call_id/link", a.recordings.Link)
	}

	// Signed links carry their own token.
	r.GET("/recordings/:call_id/audio", a.recordings.Audio)

	// Provider webhooks.
	hooks := r.Group("/")
	if a.signature != nil {
		hooks.Use(a.signature)
	}
	{
		hooks.POST("/sms", a.sms.Receive)
		hooks.POST("/voice/recording", a.recordings.Callback)
		hooks.POST("/call-events", a.calls.CallEvents)
	}

	// JSON webhook; its signature covers a body hash, not form params.
	r.POST("/voice-intelligence", a.calls.VoiceIntelligence)
}
