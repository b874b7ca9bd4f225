package api

import (
	"bagua-net/internal/config"
	"bagua-net/internal/logger"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(router *gin.Engine, handlers *Handlers) {
	router.GET("/healthz", handlers.Health)
	router.GET("/api/devices", handlers.GetDevices)
	router.GET("/api/devices/:id", handlers.GetDevice)
	router.GET("/api/comms", handlers.GetComms)
	router.GET("/api/stats", handlers.GetStats)
	router.GET("/api/events", handlers.GetEvents)
	router.GET("/api/alerts", handlers.GetAlerts)
}

// NewRouter builds the inspection API with auth, access logging and, when
// enabled, pprof.
func NewRouter(cfg config.APIConfig, handlers *Handlers, log *logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), AccessLogMiddleware(log), AuthMiddleware(cfg, log))
	RegisterRoutes(router, handlers)
	if cfg.Pprof {
		RegisterPprof(router, "/debug/pprof", cfg.PprofMutexFraction, cfg.PprofBlockRate)
	}
	return router
}
