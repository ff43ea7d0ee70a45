package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/rhythmrisk/catalog-service/internal/models"
	"gorm.io/gorm"
)

// organizationRepository implements models.OrganizationRepository
type organizationRepository struct {
	db *gorm.DB
}

func (r *organizationRepository) Create(ctx context.Context, org *models.Organization) error {
	if err := r.db.WithContext(ctx).Create(org).Error; err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	return nil
}

func (r *organizationRepository) GetByID(ctx context.Context, id string) (*models.Organization, error) {
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("organization %s: %w", id, models.ErrNotFound)
	}

	var org models.Organization
	if err := r.db.WithContext(ctx).Where("id = ?", parsedID).First(&org).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("organization %s: %w", id, models.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get organization: %w", err)
	}

	return &org, nil
}

// IncrementMonthlyUsage applies the delta as a single atomic update
func (r *organizationRepository) IncrementMonthlyUsage(ctx context.Context, id string, delta int) error {
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("organization %s: %w", id, models.ErrNotFound)
	}

	result := r.db.WithContext(ctx).Model(&models.Organization{}).
		Where("id = ?", parsedID).
		UpdateColumn("documents_processed_this_month", gorm.Expr("documents_processed_this_month + ?", delta))
	if result.Error != nil {
		return fmt.Errorf("failed to update organization usage: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("organization %s: %w", id, models.ErrNotFound)
	}

	return nil
}
