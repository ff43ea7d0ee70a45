package models

import (
	"time"

	"github.com/google/uuid"
)

// Organization represents a tenant. All data is scoped and isolated per
// organization; users and entities reference it by organization_id.
type Organization struct {
	ID                          uuid.UUID `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name                        string    `json:"name" gorm:"not null"`
	IsActive                    bool      `json:"is_active" gorm:"default:true"`
	SubscriptionTier            string    `json:"subscription_tier" gorm:"default:enterprise"`
	MaxDocumentsPerMonth        int       `json:"max_documents_per_month" gorm:"default:1000"`
	DocumentsProcessedThisMonth int       `json:"documents_processed_this_month" gorm:"default:0"`
	BillingEmail                string    `json:"billing_email,omitempty"`
	CreatedAt                   time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt                   time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName returns the table name for the Organization model
func (Organization) TableName() string {
	return "organizations"
}
