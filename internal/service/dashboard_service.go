package service

import (
	"context"
	"time"

	"github.com/rhythmrisk/catalog-service/internal/models"
)

// RecentDocument is the condensed document entry on the dashboard
type RecentDocument struct {
	ID        string                `json:"id"`
	Filename  string                `json:"filename"`
	Status    models.DocumentStatus `json:"status"`
	CreatedAt time.Time             `json:"created_at"`
	FileSize  int64                 `json:"file_size"`
}

// ProcessingSummary aggregates throughput numbers for the dashboard
type ProcessingSummary struct {
	AvgProcessingTime  float64 `json:"avg_processing_time"`
	SuccessRate        float64 `json:"success_rate"`
	DocumentsThisWeek  int64   `json:"documents_this_week"`
	DocumentsThisMonth int64   `json:"documents_this_month"`
}

// DashboardStats is the organization-wide dashboard payload
type DashboardStats struct {
	TotalDocuments      int64             `json:"total_documents"`
	PendingDocuments    int64             `json:"pending_documents"`
	ProcessingDocuments int64             `json:"processing_documents"`
	CompletedDocuments  int64             `json:"completed_documents"`
	FailedDocuments     int64             `json:"failed_documents"`
	TotalEntities       int64             `json:"total_entities"`
	RecentDocuments     []RecentDocument  `json:"recent_documents"`
	ProcessingSummary   ProcessingSummary `json:"processing_summary"`
}

// DashboardService computes organization statistics from live data
type DashboardService struct {
	store models.Store
}

// NewDashboardService creates the dashboard service
func NewDashboardService(store models.Store) *DashboardService {
	return &DashboardService{store: store}
}

// Stats assembles the dashboard from real counts: status totals, active
// entities, the ten most recent documents, weekly and monthly volume,
// success rate and average processing time over completed documents.
func (s *DashboardService) Stats(ctx context.Context, organizationID string) (*DashboardStats, error) {
	counts, err := s.store.Documents().CountByStatus(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	var total int64
	for _, n := range counts {
		total += n
	}

	totalEntities, err := s.store.Entities().CountActive(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	recent, err := s.store.Documents().ListRecent(ctx, organizationID, 10)
	if err != nil {
		return nil, err
	}

	recentDocuments := make([]RecentDocument, 0, len(recent))
	for _, doc := range recent {
		recentDocuments = append(recentDocuments, RecentDocument{
			ID:        doc.ID.String(),
			Filename:  doc.Filename,
			Status:    doc.Status,
			CreatedAt: doc.CreatedAt,
			FileSize:  doc.FileSize,
		})
	}

	now := time.Now().UTC()
	thisWeek, err := s.store.Documents().CountCreatedSince(ctx, organizationID, now.AddDate(0, 0, -7))
	if err != nil {
		return nil, err
	}
	thisMonth, err := s.store.Documents().CountCreatedSince(ctx, organizationID, now.AddDate(0, 0, -30))
	if err != nil {
		return nil, err
	}

	avgProcessing, err := s.store.Documents().AverageProcessingSeconds(ctx, organizationID)
	if err != nil {
		return nil, err
	}

	var successRate float64
	if total > 0 {
		successRate = float64(counts[models.StatusCompleted]) / float64(total) * 100
	}

	return &DashboardStats{
		TotalDocuments:      total,
		PendingDocuments:    counts[models.StatusPending],
		ProcessingDocuments: counts[models.StatusProcessing],
		CompletedDocuments:  counts[models.StatusCompleted],
		FailedDocuments:     counts[models.StatusFailed],
		TotalEntities:       totalEntities,
		RecentDocuments:     recentDocuments,
		ProcessingSummary: ProcessingSummary{
			AvgProcessingTime:  avgProcessing,
			SuccessRate:        successRate,
			DocumentsThisWeek:  thisWeek,
			DocumentsThisMonth: thisMonth,
		},
	}, nil
}
