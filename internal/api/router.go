package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/ghaaf-labs/Activity-tracker-discord-bot/config"
	"github.com/ghaaf-labs/Activity-tracker-discord-bot/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, cfg config.ServerConfig) *gin.Engine {
	r := gin.New()
	r.Use(mw.Logger(h.logger), gin.Recovery())

	limit := rate.Inf
	if cfg.RateLimitPerSec > 0 {
		limit = rate.Limit(cfg.RateLimitPerSec)
	}
	rateLimiter := mw.RateLimiter(limit, cfg.RateLimitBurst)

	cacheTTL := cfg.CacheTTL
	if cacheTTL <= 0 {
		cacheTTL = time.Minute
	}
	caching := mw.Cache(cache.New(cacheTTL, 2*cacheTTL), cacheTTL)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/ping", h.Ping)
		api.GET("/sessions", h.GetOpenSessions)
		api.GET("/members/:member_id/daily", caching, h.GetDailyStats)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	internal := r.Group("/internal")
	internal.Use(h.requireIngestToken)
	{
		internal.POST("/voice-states", h.PostVoiceState)
	}

	return r
}
