package handlers

import (
	"net/http"
	"time"

	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/api/dto"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/api/middleware"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/database/models"
	"gorm.io/gorm"
)

// AnalyticsHandler serves aggregate marketing numbers for the bound tenant.
type AnalyticsHandler struct {
	db *gorm.DB
}

func NewAnalyticsHandler(db *gorm.DB) *AnalyticsHandler {
	return &AnalyticsHandler{db: db}
}

type statusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

// Overview handles GET /api/v1/analytics/overview — campaign, automation and
// audience totals for the bound organization.
func (h *AnalyticsHandler) Overview(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orgID := middleware.GetOrganizationID(ctx)

	fail := func() {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to compute analytics", Code: dto.CodeInternalError})
	}

	var campaigns []statusCount
	err := h.db.WithContext(ctx).Model(&models.Campaign{}).
		Select("status, count(*) as count").
		Where("organization_id = ?", orgID).
		Group("status").
		Scan(&campaigns).Error
	if err != nil {
		fail()
		return
	}

	var automationsTotal, automationsActive int64
	if err := h.db.WithContext(ctx).Model(&models.Automation{}).
		Where("organization_id = ?", orgID).
		Count(&automationsTotal).Error; err != nil {
		fail()
		return
	}
	if err := h.db.WithContext(ctx).Model(&models.Automation{}).
		Where("organization_id = ? AND is_active = ?", orgID, true).
		Count(&automationsActive).Error; err != nil {
		fail()
		return
	}

	weekAgo := time.Now().Add(-7 * 24 * time.Hour)
	var executions []statusCount
	err = h.db.WithContext(ctx).Model(&models.AutomationExecution{}).
		Select("automation_executions.status, count(*) as count").
		Joins("JOIN automations ON automations.id = automation_executions.automation_id").
		Where("automations.organization_id = ? AND automation_executions.started_at > ?", orgID, weekAgo).
		Group("automation_executions.status").
		Scan(&executions).Error
	if err != nil {
		fail()
		return
	}

	var audiences, contacts, subscribed int64
	if err := h.db.WithContext(ctx).Model(&models.Audience{}).
		Where("organization_id = ?", orgID).
		Count(&audiences).Error; err != nil {
		fail()
		return
	}
	if err := h.db.WithContext(ctx).Model(&models.Contact{}).
		Where("organization_id = ?", orgID).
		Count(&contacts).Error; err != nil {
		fail()
		return
	}
	if err := h.db.WithContext(ctx).Model(&models.Contact{}).
		Where("organization_id = ? AND subscribed = ?", orgID, true).
		Count(&subscribed).Error; err != nil {
		fail()
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"campaigns": map[string]interface{}{
			"by_status": campaigns,
		},
		"automations": map[string]interface{}{
			"total":                automationsTotal,
			"active":               automationsActive,
			"executions_last_week": executions,
		},
		"audiences": map[string]interface{}{
			"total":               audiences,
			"contacts":            contacts,
			"subscribed_contacts": subscribed,
		},
	})
}
