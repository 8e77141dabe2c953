package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/database/models"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/pkg/util"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

type Handler struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewHandler(db *gorm.DB, logger *slog.Logger) *Handler {
	return &Handler{db: db, logger: logger}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeAutomationRun, h.HandleAutomationRun)
	mux.HandleFunc(TypeCampaignDispatch, h.HandleCampaignDispatch)
	mux.HandleFunc(TypeActivityRecord, h.HandleActivityRecord)
}

// HandleAutomationRun executes one automation and records the execution row.
// A missing or inactive automation is not retried.
func (h *Handler) HandleAutomationRun(ctx context.Context, t *asynq.Task) error {
	var payload AutomationRunPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	var automation models.Automation
	err := h.db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", payload.AutomationID, payload.OrganizationID).
		First(&automation).Error
	if err != nil {
		return fmt.Errorf("automation %s not found: %w", payload.AutomationID, asynq.SkipRetry)
	}
	if !automation.IsActive {
		h.logger.Info("skipping inactive automation", "automation_id", automation.ID)
		return nil
	}

	execution := models.AutomationExecution{
		AutomationID: automation.ID,
		Status:       models.ExecutionStatusRunning,
		StartedAt:    time.Now(),
	}
	if err := h.db.WithContext(ctx).Create(&execution).Error; err != nil {
		return fmt.Errorf("create execution: %w", err)
	}

	h.logger.Info("running automation",
		"automation_id", automation.ID,
		"org_id", automation.OrganizationID,
		"execution_id", execution.ID,
	)

	result, runErr := h.runAutomationSteps(ctx, &automation)

	now := time.Now()
	updates := map[string]interface{}{
		"completed_at": now,
	}
	if runErr != nil {
		updates["status"] = models.ExecutionStatusFailed
		updates["error"] = runErr.Error()
	} else {
		updates["status"] = models.ExecutionStatusCompleted
		updates["result"] = result
	}
	if err := h.db.WithContext(ctx).Model(&execution).Updates(updates).Error; err != nil {
		h.logger.Error("failed to update execution", "execution_id", execution.ID, "error", err)
	}

	autoUpdates := map[string]interface{}{"last_run_at": now}
	if automation.CronExpr != "" {
		if next, err := util.NextCronTime(automation.CronExpr, now); err == nil {
			autoUpdates["next_run_at"] = next
		}
	}
	if err := h.db.WithContext(ctx).Model(&automation).Updates(autoUpdates).Error; err != nil {
		h.logger.Error("failed to update automation run times", "automation_id", automation.ID, "error", err)
	}

	return runErr
}

// runAutomationSteps walks the configured action steps. Each step type maps
// to a side effect inside the platform; unknown step types fail the run.
func (h *Handler) runAutomationSteps(ctx context.Context, automation *models.Automation) (models.JSONMap, error) {
	steps, _ := automation.Actions["steps"].([]interface{})
	executed := 0

	for i, raw := range steps {
		step, ok := raw.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("step %d: malformed action", i)
		}

		stepType, _ := step["type"].(string)
		switch stepType {
		case "notify":
			if err := h.stepNotify(ctx, automation, step); err != nil {
				return nil, fmt.Errorf("step %d (notify): %w", i, err)
			}
		case "tag_contacts":
			if err := h.stepTagContacts(ctx, automation, step); err != nil {
				return nil, fmt.Errorf("step %d (tag_contacts): %w", i, err)
			}
		case "dispatch_campaign":
			if err := h.stepDispatchCampaign(ctx, automation, step); err != nil {
				return nil, fmt.Errorf("step %d (dispatch_campaign): %w", i, err)
			}
		default:
			return nil, fmt.Errorf("step %d: unknown action type %q", i, stepType)
		}
		executed++
	}

	return models.JSONMap{"steps_executed": executed}, nil
}

func (h *Handler) stepNotify(ctx context.Context, automation *models.Automation, step map[string]interface{}) error {
	title, _ := step["title"].(string)
	message, _ := step["message"].(string)
	if title == "" {
		title = "Automation " + automation.Name
	}

	// Notify every active member of the organization.
	var memberships []models.Membership
	err := h.db.WithContext(ctx).
		Where("organization_id = ? AND is_active = ?", automation.OrganizationID, true).
		Find(&memberships).Error
	if err != nil {
		return err
	}

	for _, m := range memberships {
		notification := models.Notification{
			OrganizationID: &automation.OrganizationID,
			UserID:         m.UserID,
			Title:          title,
			Message:        message,
			Type:           "automation",
		}
		if err := h.db.WithContext(ctx).Create(&notification).Error; err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) stepTagContacts(ctx context.Context, automation *models.Automation, step map[string]interface{}) error {
	audienceID, _ := step["audience_id"].(string)
	tag, _ := step["tag"].(string)
	if audienceID == "" || tag == "" {
		return fmt.Errorf("audience_id and tag are required")
	}

	var contacts []models.Contact
	err := h.db.WithContext(ctx).
		Where("organization_id = ? AND audience_id = ? AND subscribed = ?", automation.OrganizationID, audienceID, true).
		Find(&contacts).Error
	if err != nil {
		return err
	}

	for i := range contacts {
		tags := contacts[i].Tags
		if tags == nil {
			tags = models.JSONMap{}
		}
		tags[tag] = true
		if err := h.db.WithContext(ctx).Model(&contacts[i]).Update("tags", tags).Error; err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) stepDispatchCampaign(ctx context.Context, automation *models.Automation, step map[string]interface{}) error {
	campaignID, _ := step["campaign_id"].(string)
	if campaignID == "" {
		return fmt.Errorf("campaign_id is required")
	}

	var campaign models.Campaign
	err := h.db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", campaignID, automation.OrganizationID).
		First(&campaign).Error
	if err != nil {
		return err
	}

	return h.dispatchCampaign(ctx, &campaign)
}

// HandleCampaignDispatch sends a campaign to its audience. Delivery to the
// actual channel happens through the connected integration; here the reach is
// computed and recorded in the campaign metrics.
func (h *Handler) HandleCampaignDispatch(ctx context.Context, t *asynq.Task) error {
	var payload CampaignDispatchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	var campaign models.Campaign
	err := h.db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", payload.CampaignID, payload.OrganizationID).
		First(&campaign).Error
	if err != nil {
		return fmt.Errorf("campaign %s not found: %w", payload.CampaignID, asynq.SkipRetry)
	}

	return h.dispatchCampaign(ctx, &campaign)
}

func (h *Handler) dispatchCampaign(ctx context.Context, campaign *models.Campaign) error {
	if campaign.Status == models.CampaignStatusCompleted {
		h.logger.Info("campaign already completed", "campaign_id", campaign.ID)
		return nil
	}

	var recipients int64
	if campaign.AudienceID != nil {
		err := h.db.WithContext(ctx).Model(&models.Contact{}).
			Where("organization_id = ? AND audience_id = ? AND subscribed = ?", campaign.OrganizationID, campaign.AudienceID, true).
			Count(&recipients).Error
		if err != nil {
			return fmt.Errorf("count recipients: %w", err)
		}
	}

	metrics := campaign.Metrics
	if metrics == nil {
		metrics = models.JSONMap{}
	}
	metrics["sent"] = recipients
	metrics["dispatched_at"] = time.Now().Format(time.RFC3339)

	updates := map[string]interface{}{
		"metrics": metrics,
		"status":  models.CampaignStatusActive,
	}
	if err := h.db.WithContext(ctx).Model(campaign).Updates(updates).Error; err != nil {
		return fmt.Errorf("update campaign: %w", err)
	}

	h.logger.Info("campaign dispatched",
		"campaign_id", campaign.ID,
		"org_id", campaign.OrganizationID,
		"recipients", recipients,
	)
	return nil
}

// HandleActivityRecord persists one activity log entry. Log writes are kept
// off the request path; losing one entry is acceptable, blocking a request
// on it is not.
func (h *Handler) HandleActivityRecord(ctx context.Context, t *asynq.Task) error {
	var payload ActivityRecordPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	entry := models.ActivityLog{
		OrganizationID: payload.OrganizationID,
		UserID:         payload.UserID,
		Action:         payload.Action,
		Resource:       payload.Resource,
		ResourceID:     payload.ResourceID,
		Details:        models.JSONMap(payload.Details),
		IP:             payload.IP,
		UserAgent:      payload.UserAgent,
	}

	if err := h.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return fmt.Errorf("create activity log: %w", err)
	}
	return nil
}
