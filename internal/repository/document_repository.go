package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rhythmrisk/catalog-service/internal/models"
	"gorm.io/gorm"
)

// documentRepository implements models.DocumentRepository
type documentRepository struct {
	db *gorm.DB
}

func (r *documentRepository) Create(ctx context.Context, document *models.Document) error {
	if err := r.db.WithContext(ctx).Create(document).Error; err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

func (r *documentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}

	var document models.Document
	if err := r.db.WithContext(ctx).Where("id = ?", parsedID).First(&document).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("document %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return &document, nil
}

func (r *documentRepository) Update(ctx context.Context, document *models.Document) error {
	if err := r.db.WithContext(ctx).Save(document).Error; err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	return nil
}

func (r *documentRepository) Delete(ctx context.Context, id string) error {
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}

	result := r.db.WithContext(ctx).Delete(&models.Document{}, parsedID)
	if result.Error != nil {
		return fmt.Errorf("failed to delete document: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}

	return nil
}

func (r *documentRepository) List(ctx context.Context, filter models.DocumentFilter) ([]*models.Document, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Document{}).
		Where("organization_id = ?", filter.OrganizationID)

	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.EntityID != nil {
		query = query.Where("entity_id = ?", *filter.EntityID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count documents: %w", err)
	}

	var documents []*models.Document
	err := query.Order("created_at DESC").
		Limit(filter.Limit).
		Offset(filter.Offset()).
		Find(&documents).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list documents: %w", err)
	}

	return documents, total, nil
}

func (r *documentRepository) ListRecent(ctx context.Context, organizationID string, limit int) ([]*models.Document, error) {
	var documents []*models.Document
	err := r.db.WithContext(ctx).
		Where("organization_id = ?", organizationID).
		Order("created_at DESC").
		Limit(limit).
		Find(&documents).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list recent documents: %w", err)
	}

	return documents, nil
}

// SetEntity performs a conditional reassignment: the update applies only
// while the document still references fromEntityID, so two concurrent
// reassignments of the same document cannot both adjust entity counters.
func (r *documentRepository) SetEntity(ctx context.Context, id string, fromEntityID, toEntityID *string) (bool, error) {
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return false, fmt.Errorf("document %s: %w", id, models.ErrNotFound)
	}

	query := r.db.WithContext(ctx).Model(&models.Document{}).Where("id = ?", parsedID)
	if fromEntityID == nil {
		query = query.Where("entity_id IS NULL")
	} else {
		query = query.Where("entity_id = ?", *fromEntityID)
	}

	result := query.Update("entity_id", toEntityID)
	if result.Error != nil {
		return false, fmt.Errorf("failed to reassign document entity: %w", result.Error)
	}

	return result.RowsAffected > 0, nil
}

func (r *documentRepository) CountByStatus(ctx context.Context, organizationID string) (map[models.DocumentStatus]int64, error) {
	return r.countByStatus(ctx, "organization_id", organizationID)
}

func (r *documentRepository) CountByStatusForEntity(ctx context.Context, entityID string) (map[models.DocumentStatus]int64, error) {
	return r.countByStatus(ctx, "entity_id", entityID)
}

func (r *documentRepository) countByStatus(ctx context.Context, column, value string) (map[models.DocumentStatus]int64, error) {
	var rows []struct {
		Status models.DocumentStatus
		Count  int64
	}

	err := r.db.WithContext(ctx).Model(&models.Document{}).
		Select("status, COUNT(*) as count").
		Where(fmt.Sprintf("%s = ?", column), value).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count documents by status: %w", err)
	}

	counts := make(map[models.DocumentStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}

	return counts, nil
}

func (r *documentRepository) CountCreatedSince(ctx context.Context, organizationID string, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Document{}).
		Where("organization_id = ? AND created_at >= ?", organizationID, since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count documents since %s: %w", since, err)
	}

	return count, nil
}

func (r *documentRepository) AverageProcessingSeconds(ctx context.Context, organizationID string) (float64, error) {
	var avg struct {
		Seconds *float64
	}

	err := r.db.WithContext(ctx).Model(&models.Document{}).
		Select("AVG(EXTRACT(EPOCH FROM (processing_completed_at - processing_started_at))) as seconds").
		Where("organization_id = ? AND status = ? AND processing_started_at IS NOT NULL AND processing_completed_at IS NOT NULL",
			organizationID, models.StatusCompleted).
		Scan(&avg).Error
	if err != nil {
		return 0, fmt.Errorf("failed to compute average processing time: %w", err)
	}

	if avg.Seconds == nil {
		return 0, nil
	}
	return *avg.Seconds, nil
}

func (r *documentRepository) ListStaleProcessing(ctx context.Context, startedBefore time.Time) ([]*models.Document, error) {
	var documents []*models.Document
	err := r.db.WithContext(ctx).
		Where("status = ? AND processing_started_at < ?", models.StatusProcessing, startedBefore).
		Find(&documents).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list stale processing documents: %w", err)
	}

	return documents, nil
}
