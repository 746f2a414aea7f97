package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sms-storage/internal/models"
	"github.com/noah-isme/sms-storage/internal/service"
)

type statusReporter interface {
	Status() models.StorageStatus
}

// MetricsHandler exposes observability endpoints.
type MetricsHandler struct {
	metrics *service.MetricsService
	storage statusReporter
}

// NewMetricsHandler constructs a metrics handler. metrics may be nil when disabled.
func NewMetricsHandler(metrics *service.MetricsService, storage statusReporter) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, storage: storage}
}

// Prometheus serves the Prometheus metrics endpoint.
// @Summary Prometheus metrics
// @Tags Observability
// @Produce plain
// @Success 200 {string} string
// @Router /metrics [get]
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health responds with a generic OK payload for liveness usage.
// @Summary Health check
// @Tags Observability
// @Success 200 {object} map[string]string
// @Router /health [get]
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports ready with the active storage mode. Local storage always serves, so a cloud
// outage does not make the service unready.
// @Summary Readiness check
// @Tags Observability
// @Success 200 {object} map[string]interface{}
// @Router /ready [get]
func (h *MetricsHandler) Ready(c *gin.Context) {
	body := gin.H{"status": "ready"}
	if h.storage != nil {
		status := h.storage.Status()
		body["mode"] = status.Mode
		body["connectionFailed"] = status.ConnectionFailed
	}
	c.JSON(http.StatusOK, body)
}
