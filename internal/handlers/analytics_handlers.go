package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rhythmrisk/catalog-service/internal/middleware"
	"github.com/rhythmrisk/catalog-service/internal/service"
)

// AnalyticsHandler exposes the premium analytics endpoints
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
	logger    *logrus.Logger
}

// NewAnalyticsHandler creates the analytics handler
func NewAnalyticsHandler(analytics *service.AnalyticsService, logger *logrus.Logger) *AnalyticsHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &AnalyticsHandler{analytics: analytics, logger: logger}
}

// PremiumSummary returns the entity's premium summary
func (h *AnalyticsHandler) PremiumSummary(c *gin.Context) {
	summary, err := h.analytics.PremiumSummary(c.Request.Context(), middleware.OrganizationID(c), c.Param("entity_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// PremiumTowers returns the entity's coverage tower payload
func (h *AnalyticsHandler) PremiumTowers(c *gin.Context) {
	towers, err := h.analytics.PremiumTowers(c.Request.Context(), middleware.OrganizationID(c), c.Param("entity_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, towers)
}

// VisualizationData returns the entity's chart payload
func (h *AnalyticsHandler) VisualizationData(c *gin.Context) {
	data, err := h.analytics.VisualizationData(c.Request.Context(), middleware.OrganizationID(c), c.Param("entity_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, data)
}

// OrganizationOverview returns the organization-wide premium overview
func (h *AnalyticsHandler) OrganizationOverview(c *gin.Context) {
	overview, err := h.analytics.OrganizationOverview(c.Request.Context(), middleware.OrganizationID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, overview)
}

// RefreshCache rebuilds the entity's cached analytics payloads
func (h *AnalyticsHandler) RefreshCache(c *gin.Context) {
	result, err := h.analytics.RefreshCache(c.Request.Context(), middleware.OrganizationID(c), c.Param("entity_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}
