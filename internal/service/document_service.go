package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rhythmrisk/catalog-service/internal/events"
	"github.com/rhythmrisk/catalog-service/internal/models"
	"github.com/rhythmrisk/catalog-service/internal/utils"
)

// Enqueuer hands accepted documents to the background processing pipeline
type Enqueuer interface {
	Enqueue(documentID string) error
}

// UploadInput carries a validated multipart upload into the service
type UploadInput struct {
	Filename    string
	ContentType string
	Size        int64
	EntityID    *string
	Content     io.Reader
}

// DocumentListPage is a page of document summaries plus paging metadata
type DocumentListPage struct {
	Documents []models.DocumentSummary `json:"documents"`
	Total     int64                    `json:"total"`
	Page      int                      `json:"page"`
	Limit     int                      `json:"limit"`
	Pages     int64                    `json:"pages"`
}

// DocumentData is the extracted-content payload of a processed document
type DocumentData struct {
	ExtractedText      string                 `json:"extracted_text"`
	ProcessingMetadata map[string]interface{} `json:"processing_metadata"`
}

// DocumentService owns the document lifecycle: upload, retrieval,
// reprocessing, entity reassignment and deletion.
type DocumentService struct {
	store     models.Store
	storage   models.StorageProvider
	queue     Enqueuer
	publisher *events.Publisher
	logger    *logrus.Logger
}

// NewDocumentService creates the document service
func NewDocumentService(store models.Store, storage models.StorageProvider, queue Enqueuer, publisher *events.Publisher, logger *logrus.Logger) *DocumentService {
	if logger == nil {
		logger = logrus.New()
	}
	return &DocumentService{
		store:     store,
		storage:   storage,
		queue:     queue,
		publisher: publisher,
		logger:    logger,
	}
}

// Upload validates and stores a new document, persists it as pending and
// hands it to the processing pipeline. Validation happens before any byte
// reaches the storage backend.
func (s *DocumentService) Upload(ctx context.Context, organizationID, userID string, input UploadInput) (*models.DocumentSummary, error) {
	contentType := input.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = utils.DetectMimeType(input.Filename)
	}
	if _, ok := models.AllowedMimeTypes[contentType]; !ok {
		return nil, fmt.Errorf("%w: file type %q is not supported", models.ErrInvalidInput, contentType)
	}
	if input.Size > models.MaxFileSize {
		return nil, fmt.Errorf("%w: file exceeds the maximum size of %s", models.ErrInvalidInput, utils.FormatFileSize(models.MaxFileSize))
	}

	var entity *models.Entity
	if input.EntityID != nil && *input.EntityID != "" {
		var err error
		entity, err = s.store.Entities().GetByID(ctx, *input.EntityID)
		if err != nil || entity.OrganizationID != organizationID || !entity.IsActive {
			return nil, fmt.Errorf("%w: invalid entity", models.ErrInvalidInput)
		}
	}

	// Buffer the content so the size limit can be enforced even when the
	// multipart header lied about the length.
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(input.Content, models.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if n > models.MaxFileSize {
		return nil, fmt.Errorf("%w: file exceeds the maximum size of %s", models.ErrInvalidInput, utils.FormatFileSize(models.MaxFileSize))
	}

	documentID := uuid.New()
	filename := utils.SanitizeFilename(input.Filename)
	storagePath := fmt.Sprintf("%s/%s/%s", organizationID, documentID, filename)

	if err := s.storage.Upload(ctx, storagePath, &buf); err != nil {
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	document := &models.Document{
		ID:             documentID,
		Filename:       filename,
		OrganizationID: organizationID,
		UploadedBy:     userID,
		StoragePath:    storagePath,
		FileSize:       n,
		FileType:       contentType,
		Status:         models.StatusPending,
	}
	if entity != nil {
		id := entity.ID.String()
		document.EntityID = &id
	}

	if err := s.store.Documents().Create(ctx, document); err != nil {
		if cleanupErr := s.storage.Delete(ctx, storagePath); cleanupErr != nil {
			s.logger.WithError(cleanupErr).WithField("storage_path", storagePath).Warn("Failed to clean up orphaned file")
		}
		return nil, err
	}

	if entity != nil {
		if err := s.store.Entities().IncrementDocumentCount(ctx, entity.ID.String(), document.CreatedAt); err != nil {
			s.logger.WithError(err).WithField("entity_id", entity.ID).Warn("Failed to increment entity document count")
		}
	}
	if err := s.store.Organizations().IncrementMonthlyUsage(ctx, organizationID, 1); err != nil {
		s.logger.WithError(err).WithField("organization_id", organizationID).Warn("Failed to increment monthly usage")
	}

	if err := s.queue.Enqueue(documentID.String()); err != nil {
		s.logger.WithError(err).WithField("document_id", documentID).Error("Failed to enqueue document for processing")
	}

	event := events.DocumentEvent{
		DocumentID:     documentID.String(),
		OrganizationID: organizationID,
		Filename:       filename,
		MimeType:       contentType,
		FileSize:       n,
		Status:         string(models.StatusPending),
	}
	if document.EntityID != nil {
		event.EntityID = *document.EntityID
	}
	s.publisher.PublishDocumentUploaded(ctx, event)

	s.logger.WithFields(logrus.Fields{
		"document_id":     documentID,
		"organization_id": organizationID,
		"file_size":       n,
	}).Info("Accepted document upload")

	return s.summarize(ctx, document), nil
}

// Get returns full details of a document owned by the organization
func (s *DocumentService) Get(ctx context.Context, organizationID, documentID string) (*models.DocumentDetail, error) {
	document, err := s.owned(ctx, organizationID, documentID)
	if err != nil {
		return nil, err
	}

	detail := &models.DocumentDetail{
		DocumentSummary:       *s.summarize(ctx, document),
		ErrorMessage:          document.ErrorMessage,
		ProcessingStartedAt:   document.ProcessingStartedAt,
		ProcessingCompletedAt: document.ProcessingCompletedAt,
		CurrentStage:          document.CurrentStage,
		StageHistory:          document.StageHistory,
		ProcessingDuration:    document.ProcessingDuration(time.Now().UTC()),
	}
	return detail, nil
}

// List returns a page of the organization's documents, newest first.
// Pages are 1-indexed; a page past the end yields an empty list.
func (s *DocumentService) List(ctx context.Context, filter models.DocumentFilter) (*DocumentListPage, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 10
	}
	if filter.Limit > 100 {
		filter.Limit = 100
	}
	if filter.Status != nil {
		switch *filter.Status {
		case models.StatusPending, models.StatusProcessing, models.StatusCompleted, models.StatusFailed:
		default:
			return nil, fmt.Errorf("%w: invalid status %q", models.ErrInvalidInput, *filter.Status)
		}
	}

	documents, total, err := s.store.Documents().List(ctx, filter)
	if err != nil {
		return nil, err
	}

	page := &DocumentListPage{
		Documents: make([]models.DocumentSummary, 0, len(documents)),
		Total:     total,
		Page:      filter.Page,
		Limit:     filter.Limit,
		Pages:     (total + int64(filter.Limit) - 1) / int64(filter.Limit),
	}
	for _, document := range documents {
		page.Documents = append(page.Documents, *s.summarize(ctx, document))
	}

	return page, nil
}

// Status reports processing progress including stuck detection. A document
// is stuck once it has been processing longer than the threshold; the
// stage it stalled in is reported alongside.
func (s *DocumentService) Status(ctx context.Context, organizationID, documentID string) (*models.DocumentStatusDetail, error) {
	document, err := s.owned(ctx, organizationID, documentID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	detail := &models.DocumentStatusDetail{
		DocumentID:            document.ID.String(),
		Filename:              document.Filename,
		Status:                document.Status,
		CurrentStage:          document.CurrentStage,
		StageHistory:          document.StageHistory,
		ProcessingDuration:    document.ProcessingDuration(now),
		IsStuck:               document.IsStuck(now),
		ErrorMessage:          document.ErrorMessage,
		ProcessingStartedAt:   document.ProcessingStartedAt,
		ProcessingCompletedAt: document.ProcessingCompletedAt,
	}
	if detail.IsStuck {
		detail.StuckStage = document.CurrentStage
	}

	return detail, nil
}

// Data returns the extracted text and processing metadata of a document
func (s *DocumentService) Data(ctx context.Context, organizationID, documentID string) (*DocumentData, error) {
	document, err := s.owned(ctx, organizationID, documentID)
	if err != nil {
		return nil, err
	}

	return &DocumentData{
		ExtractedText: document.ExtractedText,
		ProcessingMetadata: map[string]interface{}{
			"processed_at":      time.Now().UTC().Format(time.RFC3339),
			"processing_method": "mock",
			"file_type":         document.FileType,
			"file_size":         document.FileSize,
		},
	}, nil
}

// Reprocess resets a failed or stuck document back to pending and
// re-enqueues it. Completed documents and documents still within the
// processing threshold are rejected.
func (s *DocumentService) Reprocess(ctx context.Context, organizationID, documentID string) (*models.DocumentSummary, error) {
	document, err := s.owned(ctx, organizationID, documentID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	switch document.Status {
	case models.StatusCompleted:
		return nil, fmt.Errorf("%w: document already processed successfully", models.ErrInvalidInput)
	case models.StatusProcessing:
		if !document.IsStuck(now) {
			return nil, fmt.Errorf("%w: document is still processing", models.ErrInvalidInput)
		}
	case models.StatusFailed:
		// eligible
	default:
		return nil, fmt.Errorf("%w: document is not eligible for reprocessing", models.ErrInvalidInput)
	}

	document.Status = models.StatusPending
	document.ErrorMessage = ""
	document.ProcessingStartedAt = nil
	document.ProcessingCompletedAt = nil
	document.StageHistory = nil
	document.CurrentStage = nil
	document.ExtractedText = ""

	if err := s.store.Documents().Update(ctx, document); err != nil {
		return nil, err
	}

	if err := s.queue.Enqueue(document.ID.String()); err != nil {
		s.logger.WithError(err).WithField("document_id", document.ID).Error("Failed to re-enqueue document")
	}

	s.logger.WithField("document_id", document.ID).Info("Document queued for reprocessing")

	return s.summarize(ctx, document), nil
}

// Reassign moves a document to another entity, or detaches it when
// entityID is nil. Counters of both entities are kept consistent: the
// document row is updated conditionally on the entity reference observed
// here, so two concurrent reassignments cannot both apply.
func (s *DocumentService) Reassign(ctx context.Context, organizationID, documentID string, entityID *string) (*models.DocumentSummary, error) {
	document, err := s.owned(ctx, organizationID, documentID)
	if err != nil {
		return nil, err
	}

	var newEntity *models.Entity
	if entityID != nil && *entityID != "" {
		newEntity, err = s.store.Entities().GetByID(ctx, *entityID)
		if err != nil || newEntity.OrganizationID != organizationID || !newEntity.IsActive {
			return nil, fmt.Errorf("%w: invalid entity", models.ErrInvalidInput)
		}
	}

	oldEntityID := document.EntityID
	var newEntityID *string
	if newEntity != nil {
		id := newEntity.ID.String()
		newEntityID = &id
	}

	if sameEntityRef(oldEntityID, newEntityID) {
		return s.summarize(ctx, document), nil
	}

	err = s.store.WithinTransaction(ctx, func(tx models.Store) error {
		applied, err := tx.Documents().SetEntity(ctx, documentID, oldEntityID, newEntityID)
		if err != nil {
			return err
		}
		if !applied {
			return fmt.Errorf("%w: document was reassigned concurrently", models.ErrInvalidInput)
		}

		if oldEntityID != nil {
			if err := tx.Entities().DecrementDocumentCount(ctx, *oldEntityID); err != nil {
				return err
			}
		}
		if newEntityID != nil {
			if err := tx.Entities().IncrementDocumentCount(ctx, *newEntityID, time.Now().UTC()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	document.EntityID = newEntityID

	s.logger.WithFields(logrus.Fields{
		"document_id": documentID,
		"entity_id":   entityID,
	}).Info("Reassigned document")

	return s.summarize(ctx, document), nil
}

// Delete removes the document row, its stored content and decrements the
// owning entity's counter.
func (s *DocumentService) Delete(ctx context.Context, organizationID, documentID string) error {
	document, err := s.owned(ctx, organizationID, documentID)
	if err != nil {
		return err
	}

	if err := s.store.Documents().Delete(ctx, documentID); err != nil {
		return err
	}

	if document.EntityID != nil {
		if err := s.store.Entities().DecrementDocumentCount(ctx, *document.EntityID); err != nil {
			s.logger.WithError(err).WithField("entity_id", *document.EntityID).Warn("Failed to decrement entity document count")
		}
	}

	if err := s.storage.Delete(ctx, document.StoragePath); err != nil {
		s.logger.WithError(err).WithField("storage_path", document.StoragePath).Warn("Failed to delete stored file")
	}

	event := events.DocumentEvent{
		DocumentID:     documentID,
		OrganizationID: organizationID,
		Filename:       document.Filename,
	}
	if document.EntityID != nil {
		event.EntityID = *document.EntityID
	}
	s.publisher.PublishDocumentDeleted(ctx, event)

	s.logger.WithField("document_id", documentID).Info("Deleted document")

	return nil
}

// owned fetches a document and enforces organization ownership
func (s *DocumentService) owned(ctx context.Context, organizationID, documentID string) (*models.Document, error) {
	document, err := s.store.Documents().GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if document.OrganizationID != organizationID {
		return nil, fmt.Errorf("%w: document belongs to another organization", models.ErrForbidden)
	}
	return document, nil
}

// summarize builds the list/upload representation, resolving the entity
// name when the reference is set.
func (s *DocumentService) summarize(ctx context.Context, document *models.Document) *models.DocumentSummary {
	summary := &models.DocumentSummary{
		ID:             document.ID.String(),
		Filename:       document.Filename,
		FileType:       document.FileType,
		Status:         document.Status,
		CreatedAt:      document.CreatedAt,
		FileSize:       document.FileSize,
		OrganizationID: document.OrganizationID,
		EntityID:       document.EntityID,
	}

	if document.EntityID != nil {
		if entity, err := s.store.Entities().GetByID(ctx, *document.EntityID); err == nil {
			summary.EntityName = entity.Name
			summary.EntityType = string(entity.EntityType)
		}
	}

	return summary
}

func sameEntityRef(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
