package tasks

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

// Task type names
const (
	TypeAutomationRun    = "automation:run"
	TypeCampaignDispatch = "campaign:dispatch"
	TypeActivityRecord   = "activity:record"
)

// AutomationRunPayload contains the data for an automation run task
type AutomationRunPayload struct {
	AutomationID   uuid.UUID  `json:"automation_id"`
	OrganizationID uuid.UUID  `json:"organization_id"`
	TriggeredBy    *uuid.UUID `json:"triggered_by,omitempty"`
}

func NewAutomationRunTask(payload AutomationRunPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeAutomationRun, data), nil
}

// CampaignDispatchPayload contains the data for a campaign dispatch task
type CampaignDispatchPayload struct {
	CampaignID     uuid.UUID `json:"campaign_id"`
	OrganizationID uuid.UUID `json:"organization_id"`
}

func NewCampaignDispatchTask(payload CampaignDispatchPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeCampaignDispatch, data), nil
}

// ActivityRecordPayload contains the data for an activity log write
type ActivityRecordPayload struct {
	OrganizationID *uuid.UUID             `json:"organization_id,omitempty"`
	UserID         *uuid.UUID             `json:"user_id,omitempty"`
	Action         string                 `json:"action"`
	Resource       string                 `json:"resource"`
	ResourceID     *uuid.UUID             `json:"resource_id,omitempty"`
	Details        map[string]interface{} `json:"details,omitempty"`
	IP             string                 `json:"ip,omitempty"`
	UserAgent      string                 `json:"user_agent,omitempty"`
}

func NewActivityRecordTask(payload ActivityRecordPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeActivityRecord, data), nil
}
