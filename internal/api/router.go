package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"alert-stream/internal/config"
	"alert-stream/internal/db"
	"alert-stream/internal/mute"
	"alert-stream/internal/notification"
	"alert-stream/internal/stream"
)

func NewRouter(manager *stream.Manager, store *notification.Store, mutes *mute.Registry, catalog *db.Catalog, logger *logrus.Logger, cfg config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLoggingMiddleware(logger))

	h := NewHandler(manager, store, mutes, catalog, logger)
	api := r.Group(cfg.API.BasePath)
	{
		// Connection
		api.GET("/status", h.GetStatus)
		api.POST("/connection/connect", h.Connect)
		api.POST("/connection/disconnect", h.Disconnect)
		api.POST("/send", h.Send)

		// Notifications
		api.GET("/notifications", h.GetNotifications)
		api.DELETE("/notifications/:id", h.DismissNotification)

		// Mutes
		api.GET("/mutes", h.GetMutes)
		api.POST("/mutes", h.CreateMute)

		// Sensors
		api.GET("/sensors/:id", h.GetSensor)
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
