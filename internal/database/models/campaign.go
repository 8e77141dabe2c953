package models

import (
	"time"

	"github.com/google/uuid"
)

type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusScheduled CampaignStatus = "scheduled"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
)

type Campaign struct {
	Base
	OrganizationID uuid.UUID      `gorm:"type:uuid;not null;index" json:"organization_id"`
	Name           string         `gorm:"not null" json:"name"`
	Description    string         `json:"description,omitempty"`
	Channel        string         `gorm:"not null" json:"channel"` // email, facebook, instagram, youtube
	Status         CampaignStatus `gorm:"default:'draft'" json:"status"`
	Budget         float64        `json:"budget"`
	AudienceID     *uuid.UUID     `gorm:"type:uuid" json:"audience_id,omitempty"`
	StartsAt       *time.Time     `json:"starts_at,omitempty"`
	EndsAt         *time.Time     `json:"ends_at,omitempty"`
	Metrics        JSONMap        `gorm:"type:jsonb" json:"metrics"`
	CreatedBy      uuid.UUID      `gorm:"type:uuid;not null" json:"created_by"`
}

func (Campaign) TableName() string {
	return "campaigns"
}
