package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhythmrisk/catalog-service/internal/models"
	"github.com/rhythmrisk/catalog-service/internal/repository/memory"
)

func TestDashboardStats(t *testing.T) {
	store := memory.NewStore()
	svc := NewDashboardService(store)
	ctx := context.Background()

	org := &models.Organization{Name: "Acme", IsActive: true}
	require.NoError(t, store.Organizations().Create(ctx, org))
	orgID := org.ID.String()

	for i := 0; i < 2; i++ {
		entity := &models.Entity{
			Name:           fmt.Sprintf("Entity %d", i),
			OrganizationID: orgID,
			EntityType:     models.EntityCustom,
			IsActive:       true,
		}
		require.NoError(t, store.Entities().Create(ctx, entity))
	}

	started := time.Now().UTC().Add(-time.Hour)
	completed := started.Add(10 * time.Second)
	seed := []struct {
		status    models.DocumentStatus
		processed bool
	}{
		{models.StatusCompleted, true},
		{models.StatusCompleted, true},
		{models.StatusCompleted, true},
		{models.StatusFailed, false},
		{models.StatusPending, false},
	}
	for i, s := range seed {
		doc := &models.Document{
			Filename:       fmt.Sprintf("doc-%d.pdf", i),
			OrganizationID: orgID,
			UploadedBy:     "user",
			StoragePath:    "x",
			FileType:       "application/pdf",
			Status:         s.status,
		}
		if s.processed {
			doc.ProcessingStartedAt = &started
			doc.ProcessingCompletedAt = &completed
		}
		require.NoError(t, store.Documents().Create(ctx, doc))
	}

	stats, err := svc.Stats(ctx, orgID)
	require.NoError(t, err)

	assert.Equal(t, int64(5), stats.TotalDocuments)
	assert.Equal(t, int64(3), stats.CompletedDocuments)
	assert.Equal(t, int64(1), stats.FailedDocuments)
	assert.Equal(t, int64(1), stats.PendingDocuments)
	assert.Equal(t, int64(0), stats.ProcessingDocuments)
	assert.Equal(t, int64(2), stats.TotalEntities)
	assert.Len(t, stats.RecentDocuments, 5)

	assert.InDelta(t, 60.0, stats.ProcessingSummary.SuccessRate, 0.001)
	assert.InDelta(t, 10.0, stats.ProcessingSummary.AvgProcessingTime, 0.001)
	assert.Equal(t, int64(5), stats.ProcessingSummary.DocumentsThisWeek)
	assert.Equal(t, int64(5), stats.ProcessingSummary.DocumentsThisMonth)
}

func TestDashboardStats_EmptyOrganization(t *testing.T) {
	store := memory.NewStore()
	svc := NewDashboardService(store)
	ctx := context.Background()

	org := &models.Organization{Name: "Empty", IsActive: true}
	require.NoError(t, store.Organizations().Create(ctx, org))

	stats, err := svc.Stats(ctx, org.ID.String())
	require.NoError(t, err)
	assert.Zero(t, stats.TotalDocuments)
	assert.Zero(t, stats.ProcessingSummary.SuccessRate)
	assert.Empty(t, stats.RecentDocuments)
}
