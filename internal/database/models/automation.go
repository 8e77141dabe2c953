package models

import (
	"time"

	"github.com/google/uuid"
)

type ExecutionStatus string

const (
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusCompleted ExecutionStatus = "completed"
	ExecutionStatusFailed    ExecutionStatus = "failed"
)

type Automation struct {
	Base
	OrganizationID uuid.UUID  `gorm:"type:uuid;not null;index" json:"organization_id"`
	Name           string     `gorm:"not null" json:"name"`
	Description    string     `json:"description,omitempty"`
	Trigger        JSONMap    `gorm:"type:jsonb;not null" json:"trigger"`
	Actions        JSONMap    `gorm:"type:jsonb;not null" json:"actions"`
	Conditions     JSONMap    `gorm:"type:jsonb" json:"conditions"`
	CronExpr       string     `json:"cron_expr,omitempty"`
	IsActive       bool       `json:"is_active"`
	LastRunAt      *time.Time `json:"last_run_at,omitempty"`
	NextRunAt      *time.Time `json:"next_run_at,omitempty"`
	CreatedBy      uuid.UUID  `gorm:"type:uuid;not null" json:"created_by"`

	// Relationships
	Executions []AutomationExecution `gorm:"foreignKey:AutomationID" json:"-"`
}

func (Automation) TableName() string {
	return "automations"
}

type AutomationExecution struct {
	Base
	AutomationID uuid.UUID       `gorm:"type:uuid;not null;index" json:"automation_id"`
	Status       ExecutionStatus `gorm:"not null" json:"status"`
	StartedAt    time.Time       `json:"started_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
	Result       JSONMap         `gorm:"type:jsonb" json:"result,omitempty"`
	Error        string          `json:"error,omitempty"`
}

func (AutomationExecution) TableName() string {
	return "automation_executions"
}
