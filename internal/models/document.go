package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// DocumentStatus tracks a document through its processing lifecycle:
// pending -> processing -> completed | failed. Failed or stuck documents
// may be reset back to pending via reprocessing.
type DocumentStatus string

const (
	StatusPending    DocumentStatus = "pending"
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

// ProcessingStage names the steps of the document pipeline
type ProcessingStage string

const (
	StageTextExtraction  ProcessingStage = "text_extraction"
	StageClassification  ProcessingStage = "classification"
	StageFieldExtraction ProcessingStage = "field_extraction"
	StageValidation      ProcessingStage = "validation"
)

// StuckThreshold is how long a document may sit in processing before it
// is reported as stuck and becomes eligible for reprocessing.
const StuckThreshold = 300 * time.Second

// MaxFileSize is the upload size limit (10 MiB)
const MaxFileSize = 10 * 1024 * 1024

// AllowedMimeTypes maps accepted upload content types to file extensions
var AllowedMimeTypes = map[string]string{
	"application/pdf": ".pdf",
	"text/plain":      ".txt",
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/tiff":      ".tiff",
}

// ProcessingStageRecord is one entry of a document's stage history
type ProcessingStageRecord struct {
	Stage           ProcessingStage `json:"stage"`
	StartedAt       time.Time       `json:"started_at"`
	CompletedAt     *time.Time      `json:"completed_at,omitempty"`
	Status          string          `json:"status"` // started, completed, failed
	ErrorMessage    string          `json:"error_message,omitempty"`
	DurationSeconds float64         `json:"duration_seconds,omitempty"`
}

// Document represents an uploaded insurance document and its processing
// state. EntityID is an optional, reassignable weak reference.
type Document struct {
	ID                    uuid.UUID                                  `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Filename              string                                     `json:"filename" gorm:"not null"`
	OrganizationID        string                                     `json:"organization_id" gorm:"index;not null"`
	EntityID              *string                                    `json:"entity_id,omitempty" gorm:"index"`
	UploadedBy            string                                     `json:"uploaded_by" gorm:"not null"`
	StoragePath           string                                     `json:"storage_path" gorm:"not null"`
	FileSize              int64                                      `json:"file_size" gorm:"not null"`
	FileType              string                                     `json:"file_type" gorm:"not null"`
	Status                DocumentStatus                             `json:"status" gorm:"default:pending;index"`
	ErrorMessage          string                                     `json:"error_message,omitempty"`
	ProcessingStartedAt   *time.Time                                 `json:"processing_started_at,omitempty"`
	ProcessingCompletedAt *time.Time                                 `json:"processing_completed_at,omitempty"`
	ExtractedText         string                                     `json:"-"`
	StageHistory          datatypes.JSONSlice[ProcessingStageRecord] `json:"stage_history" gorm:"type:jsonb"`
	CurrentStage          *ProcessingStage                           `json:"current_stage,omitempty"`
	CreatedAt             time.Time                                  `json:"created_at" gorm:"autoCreateTime;index"`
	UpdatedAt             time.Time                                  `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName returns the table name for the Document model
func (Document) TableName() string {
	return "documents"
}

// ProcessingDuration returns elapsed processing time: completed minus
// started when both are set, now minus started while still running, and
// nil before processing began.
func (d *Document) ProcessingDuration(now time.Time) *float64 {
	if d.ProcessingStartedAt == nil {
		return nil
	}
	var secs float64
	if d.ProcessingCompletedAt != nil {
		secs = d.ProcessingCompletedAt.Sub(*d.ProcessingStartedAt).Seconds()
	} else {
		secs = now.Sub(*d.ProcessingStartedAt).Seconds()
	}
	return &secs
}

// IsStuck reports whether the document has been in processing longer than
// the stuck threshold.
func (d *Document) IsStuck(now time.Time) bool {
	if d.Status != StatusProcessing {
		return false
	}
	dur := d.ProcessingDuration(now)
	return dur != nil && *dur > StuckThreshold.Seconds()
}

// DocumentSummary is returned from upload and list endpoints
type DocumentSummary struct {
	ID             string         `json:"id"`
	Filename       string         `json:"filename"`
	FileType       string         `json:"file_type"`
	Status         DocumentStatus `json:"status"`
	CreatedAt      time.Time      `json:"created_at"`
	FileSize       int64          `json:"file_size"`
	OrganizationID string         `json:"organization_id"`
	EntityID       *string        `json:"entity_id,omitempty"`
	EntityName     string         `json:"entity_name,omitempty"`
	EntityType     string         `json:"entity_type,omitempty"`
}

// DocumentDetail extends the summary with processing information
type DocumentDetail struct {
	DocumentSummary
	ErrorMessage          string                  `json:"error_message,omitempty"`
	ProcessingStartedAt   *time.Time              `json:"processing_started_at,omitempty"`
	ProcessingCompletedAt *time.Time              `json:"processing_completed_at,omitempty"`
	CurrentStage          *ProcessingStage        `json:"current_stage,omitempty"`
	StageHistory          []ProcessingStageRecord `json:"stage_history"`
	ProcessingDuration    *float64                `json:"processing_duration_seconds,omitempty"`
}

// DocumentStatusDetail is the response of the status endpoint, including
// stuck detection.
type DocumentStatusDetail struct {
	DocumentID            string                  `json:"document_id"`
	Filename              string                  `json:"filename"`
	Status                DocumentStatus          `json:"status"`
	CurrentStage          *ProcessingStage        `json:"current_stage,omitempty"`
	StageHistory          []ProcessingStageRecord `json:"stage_history"`
	ProcessingDuration    *float64                `json:"processing_duration_seconds,omitempty"`
	IsStuck               bool                    `json:"is_stuck"`
	StuckStage            *ProcessingStage        `json:"stuck_stage,omitempty"`
	ErrorMessage          string                  `json:"error_message,omitempty"`
	ProcessingStartedAt   *time.Time              `json:"processing_started_at,omitempty"`
	ProcessingCompletedAt *time.Time              `json:"processing_completed_at,omitempty"`
}

// DocumentFilter selects documents for list queries. Page is 1-indexed.
type DocumentFilter struct {
	OrganizationID string
	Status         *DocumentStatus
	EntityID       *string
	Page           int
	Limit          int
}

// Offset converts the 1-indexed page into a row offset
func (f DocumentFilter) Offset() int {
	page := f.Page
	if page < 1 {
		page = 1
	}
	return (page - 1) * f.Limit
}
