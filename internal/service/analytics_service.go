package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rhythmrisk/catalog-service/internal/cache"
	"github.com/rhythmrisk/catalog-service/internal/models"
)

const analyticsCacheTTL = 15 * time.Minute

// CoverageLayer is one layer of an entity's insurance program
type CoverageLayer struct {
	LayerNumber    int     `json:"layer_number"`
	CoverageType   string  `json:"coverage_type"`
	Limit          float64 `json:"limit"`
	Deductible     float64 `json:"deductible"`
	Premium        float64 `json:"premium"`
	Carrier        string  `json:"carrier"`
	PolicyNumber   string  `json:"policy_number"`
	EffectiveDate  string  `json:"effective_date"`
	ExpirationDate string  `json:"expiration_date"`
}

// EntityPremiumSummary aggregates an entity's premium and limits
type EntityPremiumSummary struct {
	ID             string          `json:"id"`
	EntityID       string          `json:"entity_id"`
	OrganizationID string          `json:"organization_id"`
	PolicyYear     int             `json:"policy_year"`
	TotalPremium   float64         `json:"total_premium"`
	TotalLimit     float64         `json:"total_limit"`
	CoverageLayers []CoverageLayer `json:"coverage_layers"`
}

// TowerLayer is one layer of a coverage tower visualization
type TowerLayer struct {
	Limit   float64 `json:"limit"`
	Premium float64 `json:"premium"`
	Carrier string  `json:"carrier"`
}

// CoverageTower groups tower layers by coverage type
type CoverageTower struct {
	CoverageType string       `json:"coverage_type"`
	Layers       []TowerLayer `json:"layers"`
}

// PremiumTowers is the tower visualization payload for an entity
type PremiumTowers struct {
	EntityID   string          `json:"entity_id"`
	EntityName string          `json:"entity_name"`
	Towers     []CoverageTower `json:"towers"`
}

// ChartDataset is one series of the visualization chart
type ChartDataset struct {
	Label           string    `json:"label"`
	Data            []float64 `json:"data"`
	BackgroundColor []string  `json:"backgroundColor"`
}

// ChartData holds labels and datasets for the frontend chart
type ChartData struct {
	Labels   []string       `json:"labels"`
	Datasets []ChartDataset `json:"datasets"`
}

// VisualizationData is the chart payload for an entity
type VisualizationData struct {
	EntityID  string    `json:"entity_id"`
	ChartData ChartData `json:"chart_data"`
}

// TopEntity is one row of the organization premium overview
type TopEntity struct {
	EntityID      string  `json:"entity_id"`
	EntityName    string  `json:"entity_name"`
	EntityType    string  `json:"entity_type"`
	Premium       float64 `json:"premium"`
	DocumentCount int     `json:"document_count"`
}

// OrganizationPremiumOverview summarizes premium across all entities
type OrganizationPremiumOverview struct {
	TotalPremium         float64            `json:"total_premium"`
	TotalEntities        int                `json:"total_entities"`
	TopEntities          []TopEntity        `json:"top_entities"`
	CoverageDistribution map[string]float64 `json:"coverage_distribution"`
}

// RefreshResult reports a cache refresh
type RefreshResult struct {
	Message     string    `json:"message"`
	EntityID    string    `json:"entity_id"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// AnalyticsService serves premium analytics views. Payloads are generated
// from fixed mock program data rather than processed documents, cached in
// redis per entity, and always checked against entity ownership.
type AnalyticsService struct {
	store  models.Store
	cache  cache.Cache
	logger *logrus.Logger
}

// NewAnalyticsService creates the analytics service
func NewAnalyticsService(store models.Store, c cache.Cache, logger *logrus.Logger) *AnalyticsService {
	if logger == nil {
		logger = logrus.New()
	}
	if c == nil {
		c = cache.NewNoOpCache()
	}
	return &AnalyticsService{
		store:  store,
		cache:  c,
		logger: logger,
	}
}

// ownedEntity resolves the entity and enforces organization ownership
func (s *AnalyticsService) ownedEntity(ctx context.Context, organizationID, entityID string) (*models.Entity, error) {
	entity, err := s.store.Entities().GetByID(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if entity.OrganizationID != organizationID {
		return nil, fmt.Errorf("%w: entity belongs to another organization", models.ErrForbidden)
	}
	return entity, nil
}

// PremiumSummary returns the entity's premium summary
func (s *AnalyticsService) PremiumSummary(ctx context.Context, organizationID, entityID string) (*EntityPremiumSummary, error) {
	entity, err := s.ownedEntity(ctx, organizationID, entityID)
	if err != nil {
		return nil, err
	}

	key := cache.AnalyticsCacheKey("premium-summary", entityID)
	var cached EntityPremiumSummary
	if found, err := s.cache.GetJSON(ctx, key, &cached); err == nil && found {
		return &cached, nil
	}

	summary := buildPremiumSummary(entity, organizationID)

	if err := s.cache.SetJSON(ctx, key, summary, analyticsCacheTTL); err != nil {
		s.logger.WithError(err).Debug("Failed to cache premium summary")
	}

	return summary, nil
}

// PremiumTowers returns the entity's coverage tower payload
func (s *AnalyticsService) PremiumTowers(ctx context.Context, organizationID, entityID string) (*PremiumTowers, error) {
	entity, err := s.ownedEntity(ctx, organizationID, entityID)
	if err != nil {
		return nil, err
	}

	key := cache.AnalyticsCacheKey("premium-towers", entityID)
	var cached PremiumTowers
	if found, err := s.cache.GetJSON(ctx, key, &cached); err == nil && found {
		return &cached, nil
	}

	towers := &PremiumTowers{
		EntityID:   entityID,
		EntityName: entity.Name,
		Towers: []CoverageTower{
			{
				CoverageType: "General Liability",
				Layers: []TowerLayer{
					{Limit: 1000000, Premium: 25000, Carrier: "ABC Insurance"},
					{Limit: 4000000, Premium: 35000, Carrier: "DEF Insurance"},
				},
			},
			{
				CoverageType: "Property",
				Layers: []TowerLayer{
					{Limit: 5000000, Premium: 45000, Carrier: "XYZ Insurance"},
				},
			},
		},
	}

	if err := s.cache.SetJSON(ctx, key, towers, analyticsCacheTTL); err != nil {
		s.logger.WithError(err).Debug("Failed to cache premium towers")
	}

	return towers, nil
}

// VisualizationData returns the entity's chart payload
func (s *AnalyticsService) VisualizationData(ctx context.Context, organizationID, entityID string) (*VisualizationData, error) {
	if _, err := s.ownedEntity(ctx, organizationID, entityID); err != nil {
		return nil, err
	}

	key := cache.AnalyticsCacheKey("visualization-data", entityID)
	var cached VisualizationData
	if found, err := s.cache.GetJSON(ctx, key, &cached); err == nil && found {
		return &cached, nil
	}

	data := &VisualizationData{
		EntityID: entityID,
		ChartData: ChartData{
			Labels: []string{"General Liability", "Property", "Auto", "Umbrella"},
			Datasets: []ChartDataset{
				{
					Label:           "Premium ($)",
					Data:            []float64{25000, 45000, 15000, 12000},
					BackgroundColor: []string{"#8B7355", "#A0845C", "#B89563", "#D0A66A"},
				},
				{
					Label:           "Limit ($)",
					Data:            []float64{1000000, 5000000, 1000000, 10000000},
					BackgroundColor: []string{"#6B5B47", "#7A6A54", "#897961", "#98886E"},
				},
			},
		},
	}

	if err := s.cache.SetJSON(ctx, key, data, analyticsCacheTTL); err != nil {
		s.logger.WithError(err).Debug("Failed to cache visualization data")
	}

	return data, nil
}

// OrganizationOverview summarizes premium across the organization's
// active entities.
func (s *AnalyticsService) OrganizationOverview(ctx context.Context, organizationID string) (*OrganizationPremiumOverview, error) {
	key := cache.AnalyticsCacheKey("organization-overview", organizationID)
	var cached OrganizationPremiumOverview
	if found, err := s.cache.GetJSON(ctx, key, &cached); err == nil && found {
		return &cached, nil
	}

	entities, err := s.store.Entities().List(ctx, organizationID, nil, false)
	if err != nil {
		return nil, err
	}

	topEntities := make([]TopEntity, 0, 5)
	for i, entity := range entities {
		if i >= 5 {
			break
		}
		topEntities = append(topEntities, TopEntity{
			EntityID:      entity.ID.String(),
			EntityName:    entity.Name,
			EntityType:    string(entity.EntityType),
			Premium:       float64(5-i) * 20000,
			DocumentCount: entity.DocumentCount,
		})
	}

	overview := &OrganizationPremiumOverview{
		TotalPremium:  float64(len(entities)) * 50000,
		TotalEntities: len(entities),
		TopEntities:   topEntities,
		CoverageDistribution: map[string]float64{
			"General Liability": 35.0,
			"Property":          30.0,
			"Auto":              20.0,
			"Umbrella":          15.0,
		},
	}

	if err := s.cache.SetJSON(ctx, key, overview, analyticsCacheTTL); err != nil {
		s.logger.WithError(err).Debug("Failed to cache organization overview")
	}

	return overview, nil
}

// RefreshCache drops the entity's cached analytics payloads and rebuilds
// the premium summary.
func (s *AnalyticsService) RefreshCache(ctx context.Context, organizationID, entityID string) (*RefreshResult, error) {
	entity, err := s.ownedEntity(ctx, organizationID, entityID)
	if err != nil {
		return nil, err
	}

	for _, view := range []string{"premium-summary", "premium-towers", "visualization-data"} {
		if err := s.cache.Delete(ctx, cache.AnalyticsCacheKey(view, entityID)); err != nil {
			s.logger.WithError(err).WithField("view", view).Debug("Failed to drop cached view")
		}
	}
	if err := s.cache.Delete(ctx, cache.AnalyticsCacheKey("organization-overview", organizationID)); err != nil {
		s.logger.WithError(err).Debug("Failed to drop cached overview")
	}

	summary := buildPremiumSummary(entity, organizationID)
	if err := s.cache.SetJSON(ctx, cache.AnalyticsCacheKey("premium-summary", entityID), summary, analyticsCacheTTL); err != nil {
		s.logger.WithError(err).Debug("Failed to rebuild premium summary cache")
	}

	return &RefreshResult{
		Message:     fmt.Sprintf("Cache refreshed for entity %s", entity.Name),
		EntityID:    entityID,
		RefreshedAt: time.Now().UTC(),
	}, nil
}

func buildPremiumSummary(entity *models.Entity, organizationID string) *EntityPremiumSummary {
	layers := []CoverageLayer{
		{
			LayerNumber:    1,
			CoverageType:   "General Liability",
			Limit:          1000000,
			Deductible:     10000,
			Premium:        25000,
			Carrier:        "ABC Insurance",
			PolicyNumber:   "GL-2024-001",
			EffectiveDate:  "2024-01-01",
			ExpirationDate: "2024-12-31",
		},
		{
			LayerNumber:    2,
			CoverageType:   "Property",
			Limit:          5000000,
			Deductible:     25000,
			Premium:        45000,
			Carrier:        "XYZ Insurance",
			PolicyNumber:   "PROP-2024-001",
			EffectiveDate:  "2024-01-01",
			ExpirationDate: "2024-12-31",
		},
	}

	var totalPremium, totalLimit float64
	for _, layer := range layers {
		totalPremium += layer.Premium
		totalLimit += layer.Limit
	}

	return &EntityPremiumSummary{
		ID:             fmt.Sprintf("summary_%s", entity.ID),
		EntityID:       entity.ID.String(),
		OrganizationID: organizationID,
		PolicyYear:     2024,
		TotalPremium:   totalPremium,
		TotalLimit:     totalLimit,
		CoverageLayers: layers,
	}
}
