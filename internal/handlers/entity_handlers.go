package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rhythmrisk/catalog-service/internal/middleware"
	"github.com/rhythmrisk/catalog-service/internal/models"
	"github.com/rhythmrisk/catalog-service/internal/service"
)

// EntityHandler exposes the entity catalog endpoints
type EntityHandler struct {
	entities *service.EntityService
	logger   *logrus.Logger
}

// NewEntityHandler creates the entity handler
func NewEntityHandler(entities *service.EntityService, logger *logrus.Logger) *EntityHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &EntityHandler{entities: entities, logger: logger}
}

// Create adds a new entity
func (h *EntityHandler) Create(c *gin.Context) {
	var req models.EntityCreate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid entity payload: "+err.Error())
		return
	}

	entity, err := h.entities.Create(c.Request.Context(), middleware.OrganizationID(c), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, entity)
}

// List returns the organization's entities
func (h *EntityHandler) List(c *gin.Context) {
	var entityType *models.EntityType
	if raw := c.Query("entity_type"); raw != "" {
		t := models.EntityType(raw)
		entityType = &t
	}
	includeInactive := c.Query("include_inactive") == "true"

	entities, err := h.entities.List(c.Request.Context(), middleware.OrganizationID(c), entityType, includeInactive)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, entities)
}

// Get returns a single entity
func (h *EntityHandler) Get(c *gin.Context) {
	entity, err := h.entities.Get(c.Request.Context(), middleware.OrganizationID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, entity)
}

// Update applies a partial update
func (h *EntityHandler) Update(c *gin.Context) {
	var req models.EntityUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid entity payload: "+err.Error())
		return
	}

	entity, err := h.entities.Update(c.Request.Context(), middleware.OrganizationID(c), c.Param("id"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, entity)
}

// Delete removes or deactivates an entity
func (h *EntityHandler) Delete(c *gin.Context) {
	result, err := h.entities.Delete(c.Request.Context(), middleware.OrganizationID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// Stats returns per-entity document statistics
func (h *EntityHandler) Stats(c *gin.Context) {
	stats, err := h.entities.Stats(c.Request.Context(), middleware.OrganizationID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}
