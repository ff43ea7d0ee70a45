package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"

	"github.com/rhythmrisk/catalog-service/internal/events"
	"github.com/rhythmrisk/catalog-service/internal/models"
)

// EntityService manages the entity catalog of an organization
type EntityService struct {
	store     models.Store
	publisher *events.Publisher
	logger    *logrus.Logger
}

// NewEntityService creates the entity service
func NewEntityService(store models.Store, publisher *events.Publisher, logger *logrus.Logger) *EntityService {
	if logger == nil {
		logger = logrus.New()
	}
	return &EntityService{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
}

// Create adds a new entity. Active entity names are unique per organization.
func (s *EntityService) Create(ctx context.Context, organizationID string, req models.EntityCreate) (*models.Entity, error) {
	if !models.ValidEntityType(req.EntityType) {
		return nil, fmt.Errorf("%w: invalid entity type %q", models.ErrInvalidInput, req.EntityType)
	}

	if _, err := s.store.Entities().GetActiveByName(ctx, organizationID, req.Name); err == nil {
		return nil, fmt.Errorf("%w: an entity with this name already exists", models.ErrInvalidInput)
	}

	entity := &models.Entity{
		Name:           req.Name,
		Description:    req.Description,
		OrganizationID: organizationID,
		EntityType:     req.EntityType,
		Metadata:       datatypes.JSONMap(req.Metadata),
		IsActive:       true,
	}

	if err := s.store.Entities().Create(ctx, entity); err != nil {
		return nil, err
	}

	s.publisher.PublishEntityCreated(ctx, events.EntityEvent{
		EntityID:       entity.ID.String(),
		OrganizationID: organizationID,
		Name:           entity.Name,
		EntityType:     string(entity.EntityType),
	})

	return entity, nil
}

// Get returns an entity owned by the organization
func (s *EntityService) Get(ctx context.Context, organizationID, entityID string) (*models.Entity, error) {
	entity, err := s.store.Entities().GetByID(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if entity.OrganizationID != organizationID {
		return nil, fmt.Errorf("%w: entity belongs to another organization", models.ErrForbidden)
	}
	return entity, nil
}

// List returns the organization's entities sorted by name
func (s *EntityService) List(ctx context.Context, organizationID string, entityType *models.EntityType, includeInactive bool) ([]*models.Entity, error) {
	if entityType != nil && !models.ValidEntityType(*entityType) {
		return nil, fmt.Errorf("%w: invalid entity type %q", models.ErrInvalidInput, *entityType)
	}
	return s.store.Entities().List(ctx, organizationID, entityType, includeInactive)
}

// Update applies a partial update to an entity
func (s *EntityService) Update(ctx context.Context, organizationID, entityID string, req models.EntityUpdate) (*models.Entity, error) {
	entity, err := s.Get(ctx, organizationID, entityID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil && *req.Name != entity.Name {
		if _, err := s.store.Entities().GetActiveByName(ctx, organizationID, *req.Name); err == nil {
			return nil, fmt.Errorf("%w: an entity with this name already exists", models.ErrInvalidInput)
		}
		entity.Name = *req.Name
	}
	if req.Description != nil {
		entity.Description = *req.Description
	}
	if req.EntityType != nil {
		if !models.ValidEntityType(*req.EntityType) {
			return nil, fmt.Errorf("%w: invalid entity type %q", models.ErrInvalidInput, *req.EntityType)
		}
		entity.EntityType = *req.EntityType
	}
	if req.Metadata != nil {
		entity.Metadata = datatypes.JSONMap(*req.Metadata)
	}
	if req.IsActive != nil {
		if *req.IsActive && !entity.IsActive {
			// Reactivation re-enters the active namespace, so the name must
			// still be free among active entities.
			if existing, err := s.store.Entities().GetActiveByName(ctx, organizationID, entity.Name); err == nil && existing.ID != entity.ID {
				return nil, fmt.Errorf("%w: an active entity with this name already exists", models.ErrInvalidInput)
			}
		}
		entity.IsActive = *req.IsActive
	}

	if err := s.store.Entities().Update(ctx, entity); err != nil {
		return nil, err
	}

	return entity, nil
}

// Delete removes an entity. The organization's Default entity can never be
// deleted. An entity that still holds documents is deactivated instead of
// removed, so its documents keep a resolvable reference.
func (s *EntityService) Delete(ctx context.Context, organizationID, entityID string) (*models.EntityDeleteResult, error) {
	entity, err := s.Get(ctx, organizationID, entityID)
	if err != nil {
		return nil, err
	}

	if entity.Name == models.DefaultEntityName {
		return nil, fmt.Errorf("%w: the Default entity cannot be deleted", models.ErrForbidden)
	}

	result := &models.EntityDeleteResult{}

	if entity.DocumentCount > 0 {
		entity.IsActive = false
		if err := s.store.Entities().Update(ctx, entity); err != nil {
			return nil, err
		}
		result.Deactivated = true
		result.Message = fmt.Sprintf("Entity %q has %d documents and was deactivated instead of deleted", entity.Name, entity.DocumentCount)
	} else {
		if err := s.store.Entities().Delete(ctx, entityID); err != nil {
			return nil, err
		}
		result.Message = fmt.Sprintf("Entity %q deleted", entity.Name)
	}

	s.publisher.PublishEntityDeleted(ctx, events.EntityEvent{
		EntityID:       entityID,
		OrganizationID: organizationID,
		Name:           entity.Name,
		EntityType:     string(entity.EntityType),
		HardDeleted:    !result.Deactivated,
	})

	s.logger.WithFields(logrus.Fields{
		"entity_id":   entityID,
		"deactivated": result.Deactivated,
	}).Info("Deleted entity")

	return result, nil
}

// Stats returns the entity's document counts broken down by status.
// The breakdown is computed from the documents table, not from the
// denormalized counter.
func (s *EntityService) Stats(ctx context.Context, organizationID, entityID string) (*models.EntityStats, error) {
	entity, err := s.Get(ctx, organizationID, entityID)
	if err != nil {
		return nil, err
	}

	counts, err := s.store.Documents().CountByStatusForEntity(ctx, entityID)
	if err != nil {
		return nil, err
	}

	breakdown := make(map[string]int64, len(counts))
	var total int64
	for status, n := range counts {
		breakdown[string(status)] = n
		total += n
	}

	return &models.EntityStats{
		EntityID:             entity.ID.String(),
		EntityName:           entity.Name,
		TotalDocuments:       total,
		StatusBreakdown:      breakdown,
		LastDocumentUploaded: entity.LastDocumentUploaded,
		CreatedAt:            entity.CreatedAt,
	}, nil
}
