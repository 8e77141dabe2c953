package models

import "github.com/google/uuid"

type ActivityLog struct {
	Base
	OrganizationID *uuid.UUID `gorm:"type:uuid;index" json:"organization_id,omitempty"`
	UserID         *uuid.UUID `gorm:"type:uuid;index" json:"user_id,omitempty"`
	Action         string     `gorm:"not null" json:"action"`
	Resource       string     `gorm:"not null" json:"resource"`
	ResourceID     *uuid.UUID `gorm:"type:uuid" json:"resource_id,omitempty"`
	Details        JSONMap    `gorm:"type:jsonb" json:"details,omitempty"`
	IP             string     `json:"ip,omitempty"`
	UserAgent      string     `json:"user_agent,omitempty"`
}

func (ActivityLog) TableName() string {
	return "activity_logs"
}

type Notification struct {
	Base
	OrganizationID *uuid.UUID `gorm:"type:uuid;index" json:"organization_id,omitempty"`
	UserID         uuid.UUID  `gorm:"type:uuid;not null;index" json:"user_id"`
	Title          string     `gorm:"not null" json:"title"`
	Message        string     `gorm:"not null" json:"message"`
	Type           string     `gorm:"not null" json:"type"` // info, warning, error, success
	IsRead         bool       `json:"is_read"`
}

func (Notification) TableName() string {
	return "system_notifications"
}
