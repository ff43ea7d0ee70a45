package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rhythmrisk/catalog-service/internal/events"
	"github.com/rhythmrisk/catalog-service/internal/models"
)

// HealthHandler handles health check requests
type HealthHandler struct {
	store     models.Store
	storage   models.StorageProvider
	publisher *events.Publisher
	logger    *logrus.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(store models.Store, storage models.StorageProvider, publisher *events.Publisher, logger *logrus.Logger) *HealthHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &HealthHandler{
		store:     store,
		storage:   storage,
		publisher: publisher,
		logger:    logger,
	}
}

// HealthResponse represents a health check response
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Services  map[string]ServiceInfo `json:"services"`
}

// ServiceInfo represents information about a service component
type ServiceInfo struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Health performs a basic health check covering the store, the storage
// provider and the event broker. A broker outage degrades but does not
// fail the check since events are best effort.
func (h *HealthHandler) Health(c *gin.Context) {
	ctx := c.Request.Context()
	response := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Services:  make(map[string]ServiceInfo),
	}

	statusCode := http.StatusOK

	if err := h.store.Ping(ctx); err != nil {
		response.Status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
		response.Services["database"] = ServiceInfo{Status: "unhealthy", Message: err.Error()}
	} else {
		response.Services["database"] = ServiceInfo{Status: "healthy"}
	}

	if err := h.storage.TestConnection(ctx); err != nil {
		response.Status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
		response.Services["storage"] = ServiceInfo{Status: "unhealthy", Message: err.Error()}
	} else {
		response.Services["storage"] = ServiceInfo{Status: "healthy"}
	}

	if h.publisher == nil {
		response.Services["events"] = ServiceInfo{Status: "disabled"}
	} else if h.publisher.IsConnected() {
		response.Services["events"] = ServiceInfo{Status: "healthy"}
	} else {
		if response.Status == "healthy" {
			response.Status = "degraded"
		}
		response.Services["events"] = ServiceInfo{Status: "unhealthy", Message: "not connected"}
	}

	c.JSON(statusCode, response)
}

// Ready reports whether the service can take traffic
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.store.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
		return
	}
	if err := h.storage.TestConnection(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready", "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// Live is the liveness probe
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "alive", "timestamp": time.Now().UTC()})
}
