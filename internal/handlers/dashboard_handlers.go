package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rhythmrisk/catalog-service/internal/middleware"
	"github.com/rhythmrisk/catalog-service/internal/service"
)

// DashboardHandler exposes the dashboard statistics endpoint
type DashboardHandler struct {
	dashboard *service.DashboardService
	logger    *logrus.Logger
}

// NewDashboardHandler creates the dashboard handler
func NewDashboardHandler(dashboard *service.DashboardService, logger *logrus.Logger) *DashboardHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &DashboardHandler{dashboard: dashboard, logger: logger}
}

// Stats returns the organization dashboard
func (h *DashboardHandler) Stats(c *gin.Context) {
	stats, err := h.dashboard.Stats(c.Request.Context(), middleware.OrganizationID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
