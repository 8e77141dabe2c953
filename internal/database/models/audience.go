package models

import "github.com/google/uuid"

type Audience struct {
	Base
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;index" json:"organization_id"`
	Name           string    `gorm:"not null" json:"name"`
	Description    string    `json:"description,omitempty"`
	Filters        JSONMap   `gorm:"type:jsonb" json:"filters"`
	IsActive       bool      `json:"is_active"`

	// Relationships
	Contacts []Contact `gorm:"foreignKey:AudienceID" json:"-"`
}

func (Audience) TableName() string {
	return "audiences"
}

type Contact struct {
	Base
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;index" json:"organization_id"`
	AudienceID     uuid.UUID `gorm:"type:uuid;not null;index" json:"audience_id"`
	Email          string    `gorm:"not null;index" json:"email"`
	Name           string    `json:"name,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	Tags           JSONMap   `gorm:"type:jsonb" json:"tags"`
	Subscribed     bool      `json:"subscribed"`
}

func (Contact) TableName() string {
	return "contacts"
}
