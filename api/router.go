package api

import (
	"github.com/Pawfulness/umamusume-tracker/cache"
	"github.com/Pawfulness/umamusume-tracker/handler"
	"github.com/Pawfulness/umamusume-tracker/middleware"
	"github.com/Pawfulness/umamusume-tracker/refresh"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func Setup(store *cache.Store, coord *refresh.Coordinator) *gin.Engine {
	r := gin.Default()

	// CORS middleware: the dashboard is served from other hosts on the
	// local network.
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"*"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
	}))

	r.Use(middleware.PrometheusMiddleware("events-tracker"))

	h := handler.New(store, coord)

	r.GET("/api/events", h.GetEvents)
	r.POST("/api/refresh", h.TriggerRefresh)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Health check endpoints
	r.GET("/", healthCheck)
	r.GET("/health", healthCheck)
	r.GET("/ready", healthCheck)

	return r
}

func healthCheck(c *gin.Context) {
	c.JSON(200, gin.H{"status": "healthy", "service": "events-tracker"})
}
