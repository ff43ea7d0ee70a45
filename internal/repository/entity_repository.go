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

// entityRepository implements models.EntityRepository
type entityRepository struct {
	db *gorm.DB
}

func (r *entityRepository) Create(ctx context.Context, entity *models.Entity) error {
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		return fmt.Errorf("failed to create entity: %w", err)
	}
	return nil
}

func (r *entityRepository) GetByID(ctx context.Context, id string) (*models.Entity, error) {
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("entity %s: %w", id, models.ErrNotFound)
	}

	var entity models.Entity
	if err := r.db.WithContext(ctx).Where("id = ?", parsedID).First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("entity %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get entity: %w", err)
	}

	return &entity, nil
}

func (r *entityRepository) GetActiveByName(ctx context.Context, organizationID, name string) (*models.Entity, error) {
	var entity models.Entity
	err := r.db.WithContext(ctx).
		Where("organization_id = ? AND name = ? AND is_active = ?", organizationID, name, true).
		First(&entity).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("entity %q: %w", name, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get entity by name: %w", err)
	}

	return &entity, nil
}

func (r *entityRepository) List(ctx context.Context, organizationID string, entityType *models.EntityType, includeInactive bool) ([]*models.Entity, error) {
	query := r.db.WithContext(ctx).Where("organization_id = ?", organizationID)

	if !includeInactive {
		query = query.Where("is_active = ?", true)
	}
	if entityType != nil {
		query = query.Where("entity_type = ?", *entityType)
	}

	var entities []*models.Entity
	if err := query.Order("name ASC").Find(&entities).Error; err != nil {
		return nil, fmt.Errorf("failed to list entities: %w", err)
	}

	return entities, nil
}

func (r *entityRepository) Update(ctx context.Context, entity *models.Entity) error {
	if err := r.db.WithContext(ctx).Save(entity).Error; err != nil {
		return fmt.Errorf("failed to update entity: %w", err)
	}
	return nil
}

func (r *entityRepository) Delete(ctx context.Context, id string) error {
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("entity %s: %w", id, models.ErrNotFound)
	}

	result := r.db.WithContext(ctx).Delete(&models.Entity{}, parsedID)
	if result.Error != nil {
		return fmt.Errorf("failed to delete entity: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("entity %s: %w", id, models.ErrNotFound)
	}

	return nil
}

func (r *entityRepository) CountActive(ctx context.Context, organizationID string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Entity{}).
		Where("organization_id = ? AND is_active = ?", organizationID, true).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count entities: %w", err)
	}

	return count, nil
}

// IncrementDocumentCount bumps the denormalized counter in a single
// conditional update; concurrent uploads never lose increments.
func (r *entityRepository) IncrementDocumentCount(ctx context.Context, id string, uploadedAt time.Time) error {
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("entity %s: %w", id, models.ErrNotFound)
	}

	result := r.db.WithContext(ctx).Model(&models.Entity{}).
		Where("id = ?", parsedID).
		UpdateColumns(map[string]interface{}{
			"document_count":         gorm.Expr("document_count + 1"),
			"last_document_uploaded": uploadedAt,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to increment document count: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("entity %s: %w", id, models.ErrNotFound)
	}

	return nil
}

// DecrementDocumentCount subtracts one from the counter, floored at zero
// in SQL so a racing decrement cannot drive it negative.
func (r *entityRepository) DecrementDocumentCount(ctx context.Context, id string) error {
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("entity %s: %w", id, models.ErrNotFound)
	}

	result := r.db.WithContext(ctx).Model(&models.Entity{}).
		Where("id = ?", parsedID).
		UpdateColumn("document_count", gorm.Expr("GREATEST(document_count - 1, 0)"))
	if result.Error != nil {
		return fmt.Errorf("failed to decrement document count: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("entity %s: %w", id, models.ErrNotFound)
	}

	return nil
}
