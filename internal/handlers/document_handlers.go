package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/rhythmrisk/catalog-service/internal/middleware"
	"github.com/rhythmrisk/catalog-service/internal/models"
	"github.com/rhythmrisk/catalog-service/internal/service"
)

// DocumentHandler exposes the document lifecycle endpoints
type DocumentHandler struct {
	documents *service.DocumentService
	logger    *logrus.Logger
}

// NewDocumentHandler creates the document handler
func NewDocumentHandler(documents *service.DocumentService, logger *logrus.Logger) *DocumentHandler {
	if logger == nil {
		logger = logrus.New()
	}
	return &DocumentHandler{documents: documents, logger: logger}
}

// Upload accepts a multipart document upload
func (h *DocumentHandler) Upload(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondBadRequest(c, "file is required")
		return
	}

	var entityID *string
	if raw := c.PostForm("entity_id"); raw != "" {
		entityID = &raw
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondBadRequest(c, "failed to read uploaded file")
		return
	}
	defer file.Close()

	summary, err := h.documents.Upload(c.Request.Context(), middleware.OrganizationID(c), middleware.UserID(c), service.UploadInput{
		Filename:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		Size:        fileHeader.Size,
		EntityID:    entityID,
		Content:     file,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, summary)
}

// List returns a page of the organization's documents
func (h *DocumentHandler) List(c *gin.Context) {
	filter := models.DocumentFilter{
		OrganizationID: middleware.OrganizationID(c),
		Page:           intQuery(c, "page", 1),
		Limit:          intQuery(c, "limit", 10),
	}
	if raw := c.Query("status"); raw != "" {
		status := models.DocumentStatus(raw)
		filter.Status = &status
	}
	if raw := c.Query("entity_id"); raw != "" {
		filter.EntityID = &raw
	}

	page, err := h.documents.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// Get returns full document details
func (h *DocumentHandler) Get(c *gin.Context) {
	detail, err := h.documents.Get(c.Request.Context(), middleware.OrganizationID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, detail)
}

// Status reports processing progress including stuck detection
func (h *DocumentHandler) Status(c *gin.Context) {
	status, err := h.documents.Status(c.Request.Context(), middleware.OrganizationID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// Data returns the extracted content of a processed document
func (h *DocumentHandler) Data(c *gin.Context) {
	data, err := h.documents.Data(c.Request.Context(), middleware.OrganizationID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, data)
}

// Reprocess re-enqueues a failed or stuck document
func (h *DocumentHandler) Reprocess(c *gin.Context) {
	summary, err := h.documents.Reprocess(c.Request.Context(), middleware.OrganizationID(c), c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// reassignRequest is the PATCH body for entity reassignment; a null or
// absent entity_id detaches the document.
type reassignRequest struct {
	EntityID *string `json:"entity_id"`
}

// Reassign moves a document to another entity
func (h *DocumentHandler) Reassign(c *gin.Context) {
	var req reassignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid reassignment payload: "+err.Error())
		return
	}

	summary, err := h.documents.Reassign(c.Request.Context(), middleware.OrganizationID(c), c.Param("id"), req.EntityID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// Delete removes a document and its stored content
func (h *DocumentHandler) Delete(c *gin.Context) {
	if err := h.documents.Delete(c.Request.Context(), middleware.OrganizationID(c), c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "document deleted"})
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
