package models

import (
	"time"

	"github.com/google/uuid"
)

// Integration is a catalog entry for an external provider (facebook_ads,
// google_ads, mailchimp...). Catalog rows are global, not tenant-scoped.
type Integration struct {
	Base
	Name        string `gorm:"not null" json:"name"`
	Provider    string `gorm:"uniqueIndex;not null" json:"provider"`
	Description string `json:"description,omitempty"`
	AuthType    string `gorm:"not null" json:"auth_type"` // oauth, api_key, custom
	IsActive    bool   `json:"is_active"`
}

func (Integration) TableName() string {
	return "integrations"
}

// IntegrationConnection links an organization to an integration. Credentials
// are stored encrypted; the plaintext never touches the database.
type IntegrationConnection struct {
	Base
	OrganizationID uuid.UUID  `gorm:"type:uuid;not null;index" json:"organization_id"`
	IntegrationID  uuid.UUID  `gorm:"type:uuid;not null" json:"integration_id"`
	Credentials    string     `json:"-"` // encrypted blob
	Settings       JSONMap    `gorm:"type:jsonb" json:"settings"`
	Status         string     `gorm:"default:'active'" json:"status"`
	LastSyncAt     *time.Time `json:"last_sync_at,omitempty"`
	ConnectedBy    uuid.UUID  `gorm:"type:uuid;not null" json:"connected_by"`

	// Relationships
	Integration *Integration `gorm:"foreignKey:IntegrationID" json:"integration,omitempty"`
}

func (IntegrationConnection) TableName() string {
	return "organization_integrations"
}
