package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"smokewatch-backend/config"
	"smokewatch-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, serverCfg *config.ServerConfig) *gin.Engine {
	r := gin.Default()

	rateLimiter := mw.RateLimiter(rate.Limit(serverCfg.RateLimitPerSec), serverCfg.RateLimitBurst)

	cacheTTL := time.Duration(serverCfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	r.GET("/health", h.Health)

	// The bridge webhook authenticates with the shared secret, not a user id.
	r.POST("/internal/event", h.IngestEvent)

	user := r.Group("/")
	user.Use(rateLimiter, mw.UserID())
	{
		user.POST("/register_device", h.RegisterDevice)
		user.POST("/unregister_device", h.UnregisterDevice)
		user.POST("/unregister_device_by_uuid", h.UnregisterDeviceByUUID)
		user.GET("/list", caching, h.ListDevices)

		user.POST("/device/:uuid/rename", h.RenameDevice)
		user.GET("/device/:uuid/info", h.DeviceInfo)
		user.GET("/device/:uuid/logs", h.DeviceLogs)
		user.POST("/device/:uuid/eflara", h.SetDispatchConfig)

		user.POST("/user/notification", h.RegisterNotificationToken)
		user.DELETE("/account/delete", h.DeleteAccount)
	}

	return r
}
