package models

import (
	"time"

	"github.com/google/uuid"
)

type OrganizationType string

const (
	OrgTypeMarketing  OrganizationType = "marketing"
	OrgTypeSupport    OrganizationType = "support"
	OrgTypeTrading    OrganizationType = "trading"
	OrgTypeEnterprise OrganizationType = "enterprise"
)

type SubscriptionPlan string

const (
	PlanStarter      SubscriptionPlan = "starter"
	PlanProfessional SubscriptionPlan = "professional"
	PlanEnterprise   SubscriptionPlan = "enterprise"
)

type Organization struct {
	Base
	Name             string           `gorm:"not null" json:"name"`
	Slug             string           `gorm:"uniqueIndex;not null" json:"slug"`
	Domain           string           `json:"domain,omitempty"`
	Description      string           `json:"description,omitempty"`
	Type             OrganizationType `gorm:"default:'marketing'" json:"type"`
	SubscriptionPlan SubscriptionPlan `gorm:"default:'starter'" json:"subscription_plan"`
	Settings         JSONMap          `gorm:"type:jsonb" json:"settings"`
	IsActive         bool             `json:"is_active"`

	// Relationships
	Memberships []Membership `gorm:"foreignKey:OrganizationID" json:"-"`
	Automations []Automation `gorm:"foreignKey:OrganizationID" json:"-"`
	Campaigns   []Campaign   `gorm:"foreignKey:OrganizationID" json:"-"`
	Audiences   []Audience   `gorm:"foreignKey:OrganizationID" json:"-"`
}

func (Organization) TableName() string {
	return "organizations"
}

// Membership links a user to an organization with a role and optional
// per-member permission overrides. At most one active row per (user, org) pair.
type Membership struct {
	Base
	UserID         uuid.UUID     `gorm:"type:uuid;not null;index:idx_membership_user_org" json:"user_id"`
	OrganizationID uuid.UUID     `gorm:"type:uuid;not null;index:idx_membership_user_org" json:"organization_id"`
	Role           string        `gorm:"not null;default:'org_user'" json:"role"`
	Permissions    PermissionMap `gorm:"type:jsonb" json:"permissions"`
	InvitedBy      *uuid.UUID    `gorm:"type:uuid" json:"invited_by,omitempty"`
	JoinedAt       time.Time     `json:"joined_at"`
	IsActive       bool          `json:"is_active"`

	// Relationships
	User         *User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
}

func (Membership) TableName() string {
	return "organization_users"
}
