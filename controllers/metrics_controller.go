package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/roomcast/chat_backend/metrics"
	"github.com/roomcast/chat_backend/websocket"
)

// MetricsController serves the health and metrics endpoints.
type MetricsController struct {
	registry *websocket.Registry
	router   *websocket.Router
	stats    *metrics.Collector
}

func NewMetricsController(registry *websocket.Registry, router *websocket.Router, stats *metrics.Collector) *MetricsController {
	return &MetricsController{registry: registry, router: router, stats: stats}
}

// Health godoc
// @Summary Health check
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{} "Service status"
// @Router /health [get]
func (m *MetricsController) Health(c *gin.Context) {
	snap := m.stats.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"uptime_seconds": snap.UptimeSeconds,
		"connections":    m.registry.ConnectionCount(),
		"active_rooms":   len(m.registry.RoomCounts()),
	})
}

// Metrics godoc
// @Summary Usage metrics
// @Description Message counters plus a live view of rooms and connections
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]interface{} "Metrics"
// @Router /metrics [get]
func (m *MetricsController) Metrics(c *gin.Context) {
	snap := m.stats.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"uptime_seconds":      snap.UptimeSeconds,
		"messages_published":  snap.MessagesPublished,
		"messages_dispatched": snap.MessagesDispatched,
		"connections":         m.registry.ConnectionCount(),
		"rooms":               m.router.RoomsInfo(),
	})
}
