package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"alert-stream/internal/db"
	"alert-stream/internal/mute"
	"alert-stream/internal/notification"
	"alert-stream/internal/stream"
)

type Handler struct {
	manager *stream.Manager
	store   *notification.Store
	mutes   *mute.Registry
	catalog *db.Catalog
	logger  *logrus.Logger
}

func NewHandler(manager *stream.Manager, store *notification.Store, mutes *mute.Registry, catalog *db.Catalog, logger *logrus.Logger) *Handler {
	return &Handler{manager: manager, store: store, mutes: mutes, catalog: catalog, logger: logger}
}

func (h *Handler) GetStatus(c *gin.Context) {
	st := h.manager.Status()
	c.JSON(http.StatusOK, gin.H{
		"connection": gin.H{
			"phase":         st.Phase.String(),
			"attempt":       st.Attempt,
			"next_delay_ms": st.NextDelay.Milliseconds(),
			"frames":        st.Frames,
			"alerts":        st.Alerts,
			"rejected":      st.Rejected,
		},
		"notifications": h.store.Stats(),
	})
}

func (h *Handler) Connect(c *gin.Context) {
	if !h.manager.Connect() {
		c.JSON(http.StatusConflict, gin.H{"error": "Connection already active"})
		return
	}

	h.logger.Infof("Connect requested via API")
	c.JSON(http.StatusAccepted, gin.H{"status": "connecting"})
}

func (h *Handler) Disconnect(c *gin.Context) {
	h.manager.Disconnect()
	h.logger.Infof("Disconnect requested via API")
	c.JSON(http.StatusOK, gin.H{"status": "disconnected"})
}

type sendRequest struct {
	Payload json.RawMessage `json:"payload"`
}

func (h *Handler) Send(c *gin.Context) {
	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorf("Invalid request body for send: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if len(req.Payload) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "payload is required"})
		return
	}

	if err := h.manager.Send(req.Payload); err != nil {
		if errors.Is(err, stream.ErrNotConnected) {
			c.JSON(http.StatusConflict, gin.H{"error": "Stream not connected"})
			return
		}
		h.logger.Errorf("Failed to send frame: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to send frame"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "sent"})
}

func (h *Handler) GetNotifications(c *gin.Context) {
	entries := h.store.Active()
	h.logger.Infof("Retrieved %d notifications", len(entries))
	c.JSON(http.StatusOK, entries)
}

func (h *Handler) DismissNotification(c *gin.Context) {
	id := c.Param("id")
	if !h.store.Dismiss(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Notification not found"})
		return
	}

	h.logger.Infof("Dismissed notification: %s", id)
	c.JSON(http.StatusOK, gin.H{"status": "dismissed"})
}

func (h *Handler) GetMutes(c *gin.Context) {
	c.JSON(http.StatusOK, h.mutes.Active())
}

type muteRequest struct {
	Scope      string `json:"scope"`
	DurationMs int64  `json:"duration_ms"`
}

func (h *Handler) CreateMute(c *gin.Context) {
	var req muteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Errorf("Invalid request body for mute: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Scope == "" || req.DurationMs <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "scope and a positive duration_ms are required"})
		return
	}

	h.mutes.Mute(req.Scope, time.Duration(req.DurationMs)*time.Millisecond)
	h.logger.Infof("Muted scope %s for %dms", req.Scope, req.DurationMs)
	c.JSON(http.StatusCreated, gin.H{"scope": req.Scope, "duration_ms": req.DurationMs})
}

func (h *Handler) GetSensor(c *gin.Context) {
	if h.catalog == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Sensor catalog not configured"})
		return
	}

	id := c.Param("id")
	s, ok := h.catalog.Sensor(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Sensor not found"})
		return
	}

	c.JSON(http.StatusOK, s)
}
