package api

import (
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	charmlog "github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"custody-schedule-backend/internal/metrics"
	"custody-schedule-backend/internal/mw"
	"custody-schedule-backend/internal/scheduling"
	"custody-schedule-backend/internal/store"
)

// RouterConfig tunes the HTTP middleware.
type RouterConfig struct {
	RateLimit   rate.Limit
	RateBurst   int
	CacheTTL    time.Duration
	ActorHeader string
	// Cache holds GET responses. Components writing outside the router flush
	// it; a private cache is created when nil.
	Cache *cache.Cache
}

// NewRouter creates and configures a new Gin router.
func NewRouter(svc *scheduling.Service, subs store.SubscriptionStore, webpushOptions *webpush.Options, gatherer prometheus.Gatherer, logger *charmlog.Logger, cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.RequestID(), mw.Logger(logger))

	handler := NewHandler(svc, subs, webpushOptions)

	rateLimiter := mw.RateLimiter(cfg.RateLimit, cfg.RateBurst)
	cacheStore := cfg.Cache
	if cacheStore == nil {
		cacheStore = cache.New(cfg.CacheTTL, 2*cfg.CacheTTL)
	}
	caching := mw.Cache(cacheStore, cfg.CacheTTL)
	actor := mw.RequireActor(cfg.ActorHeader)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(metrics.Handler(gatherer)))

	// API group
	api := r.Group("/api")
	api.Use(rateLimiter, caching)
	{
		api.POST("/activities", actor, handler.CreateActivity)
		api.GET("/activities/:id", handler.GetActivity)
		api.PUT("/activities/:id", actor, handler.UpdateActivity)
		api.DELETE("/activities/:id", actor, handler.DeleteActivity)
		api.POST("/activities/:id/cancel", actor, handler.CancelActivity)
		api.GET("/activities/:id/conflicts", handler.GetActivityConflicts)
		api.POST("/activities/:id/detect", actor, handler.DetectConflicts)

		api.GET("/availability", handler.GetAvailability)

		api.GET("/conflicts", handler.ListConflicts)
		api.POST("/conflicts/:id/acknowledge", actor, handler.AcknowledgeConflict)
		api.POST("/conflicts/:id/resolve", actor, handler.ResolveConflict)
		api.POST("/conflicts/:id/ignore", actor, handler.IgnoreConflict)

		api.GET("/slots/:key", handler.GetSlot)
		api.POST("/slots/:key/reserve", actor, handler.ReserveSlot)
		api.POST("/slots/:key/release", actor, handler.ReleaseSlot)

		api.GET("/subscriptions", handler.GetSubscription)
		api.PUT("/subscriptions", actor, handler.PutSubscription)
		api.DELETE("/subscriptions", actor, handler.DeleteSubscription)
		api.GET("/vapid_public_key", handler.GetVAPIDPublicKey)
	}

	return r
}
