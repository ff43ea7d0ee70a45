package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// EntityType enumerates the supported entity categories
type EntityType string

const (
	EntityClient     EntityType = "client"
	EntitySubsidiary EntityType = "subsidiary"
	EntityDivision   EntityType = "division"
	EntityProperty   EntityType = "property"
	EntityPolicyYear EntityType = "policy_year"
	EntityProject    EntityType = "project"
	EntityDepartment EntityType = "department"
	EntityLocation   EntityType = "location"
	EntityCustom     EntityType = "custom"
)

// ValidEntityType reports whether t is one of the enumerated types
func ValidEntityType(t EntityType) bool {
	switch t {
	case EntityClient, EntitySubsidiary, EntityDivision, EntityProperty,
		EntityPolicyYear, EntityProject, EntityDepartment, EntityLocation, EntityCustom:
		return true
	}
	return false
}

// DefaultEntityName is created for every organization at registration and
// can never be deleted.
const DefaultEntityName = "Default"

// Entity is a user-defined grouping object (location, client, policy year,
// etc.) that documents are filed under. DocumentCount is denormalized and
// mutated only through the document lifecycle, never by entity CRUD.
type Entity struct {
	ID                   uuid.UUID         `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name                 string            `json:"name" gorm:"not null;index:idx_entities_org_name"`
	Description          string            `json:"description,omitempty"`
	OrganizationID       string            `json:"organization_id" gorm:"index;index:idx_entities_org_name;not null"`
	EntityType           EntityType        `json:"entity_type" gorm:"not null"`
	Metadata             datatypes.JSONMap `json:"metadata" gorm:"type:jsonb"`
	IsActive             bool              `json:"is_active" gorm:"default:true"`
	DocumentCount        int               `json:"document_count" gorm:"default:0"`
	LastDocumentUploaded *time.Time        `json:"last_document_uploaded,omitempty"`
	CreatedAt            time.Time         `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt            time.Time         `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName returns the table name for the Entity model
func (Entity) TableName() string {
	return "entities"
}

// EntityCreate represents an entity creation request
type EntityCreate struct {
	Name        string                 `json:"name" binding:"required"`
	Description string                 `json:"description"`
	EntityType  EntityType             `json:"entity_type" binding:"required"`
	Metadata    map[string]interface{} `json:"metadata"`
}

// EntityUpdate represents a partial entity update; nil fields are left
// untouched.
type EntityUpdate struct {
	Name        *string                 `json:"name"`
	Description *string                 `json:"description"`
	EntityType  *EntityType             `json:"entity_type"`
	Metadata    *map[string]interface{} `json:"metadata"`
	IsActive    *bool                   `json:"is_active"`
}

// EntityDeleteResult reports which delete action was taken
type EntityDeleteResult struct {
	Deactivated bool   `json:"deactivated"`
	Message     string `json:"message"`
}

// EntityStats holds per-entity document statistics. The status breakdown
// is computed from the documents referencing the entity, not from the
// denormalized counter.
type EntityStats struct {
	EntityID             string           `json:"entity_id"`
	EntityName           string           `json:"entity_name"`
	TotalDocuments       int64            `json:"total_documents"`
	StatusBreakdown      map[string]int64 `json:"status_breakdown"`
	LastDocumentUploaded *time.Time       `json:"last_document_uploaded,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
}
