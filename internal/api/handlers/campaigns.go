package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/activity"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/api/dto"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/api/middleware"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/database/models"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/tasks"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/pkg/queue"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

type CampaignHandler struct {
	db          *gorm.DB
	asynqClient *asynq.Client
	recorder    *activity.Recorder
}

func NewCampaignHandler(db *gorm.DB, asynqClient *asynq.Client, recorder *activity.Recorder) *CampaignHandler {
	return &CampaignHandler{db: db, asynqClient: asynqClient, recorder: recorder}
}

// CreateCampaignRequest represents the request to create a campaign
type CreateCampaignRequest struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Channel     string     `json:"channel"`
	Budget      float64    `json:"budget,omitempty"`
	AudienceID  *string    `json:"audience_id,omitempty"`
	StartsAt    *time.Time `json:"starts_at,omitempty"`
	EndsAt      *time.Time `json:"ends_at,omitempty"`
}

func (r CreateCampaignRequest) Validate() map[string]string {
	errs := make(map[string]string)
	if r.Name == "" {
		errs["name"] = "Name is required"
	}
	if r.Channel == "" {
		errs["channel"] = "Channel is required"
	} else {
		validChannels := map[string]bool{
			"email": true, "facebook": true, "instagram": true, "youtube": true,
		}
		if !validChannels[r.Channel] {
			errs["channel"] = "Invalid channel"
		}
	}
	if r.Budget < 0 {
		errs["budget"] = "Budget cannot be negative"
	}
	if r.AudienceID != nil && *r.AudienceID != "" {
		if _, err := uuid.Parse(*r.AudienceID); err != nil {
			errs["audience_id"] = "Invalid audience id"
		}
	}
	if r.StartsAt != nil && r.EndsAt != nil && r.EndsAt.Before(*r.StartsAt) {
		errs["ends_at"] = "End must be after start"
	}
	return errs
}

// validCampaignTransitions defines the allowed status changes.
var validCampaignTransitions = map[models.CampaignStatus][]models.CampaignStatus{
	models.CampaignStatusDraft:     {models.CampaignStatusScheduled, models.CampaignStatusActive},
	models.CampaignStatusScheduled: {models.CampaignStatusActive, models.CampaignStatusDraft},
	models.CampaignStatusActive:    {models.CampaignStatusPaused, models.CampaignStatusCompleted},
	models.CampaignStatusPaused:    {models.CampaignStatusActive, models.CampaignStatusCompleted},
	models.CampaignStatusCompleted: {},
}

func canTransition(from, to models.CampaignStatus) bool {
	for _, allowed := range validCampaignTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// List handles GET /api/v1/campaigns
func (h *CampaignHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrganizationID(r.Context())

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	params := dto.PaginationParams{Page: page, PerPage: perPage}
	params.Normalize()

	query := h.db.WithContext(r.Context()).Model(&models.Campaign{}).Where("organization_id = ?", orgID)
	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if channel := r.URL.Query().Get("channel"); channel != "" {
		query = query.Where("channel = ?", channel)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list campaigns", Code: dto.CodeInternalError})
		return
	}

	var campaigns []models.Campaign
	err := query.Order("created_at DESC").
		Offset(params.Offset()).Limit(params.PerPage).
		Find(&campaigns).Error
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list campaigns", Code: dto.CodeInternalError})
		return
	}

	writeJSON(w, http.StatusOK, dto.PaginatedResponse{
		Data:       campaigns,
		Total:      total,
		Page:       params.Page,
		PerPage:    params.PerPage,
		TotalPages: int((total + int64(params.PerPage) - 1) / int64(params.PerPage)),
	})
}

// Create handles POST /api/v1/campaigns
func (h *CampaignHandler) Create(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrganizationID(r.Context())
	userID := middleware.GetUserID(r.Context())

	var req CreateCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body", Code: dto.CodeValidationFailed})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Code: dto.CodeValidationFailed, Details: errs})
		return
	}

	campaign := models.Campaign{
		OrganizationID: orgID,
		Name:           req.Name,
		Description:    req.Description,
		Channel:        req.Channel,
		Status:         models.CampaignStatusDraft,
		Budget:         req.Budget,
		StartsAt:       req.StartsAt,
		EndsAt:         req.EndsAt,
		Metrics:        models.JSONMap{},
		CreatedBy:      userID,
	}

	if req.AudienceID != nil && *req.AudienceID != "" {
		audienceID := uuid.MustParse(*req.AudienceID)
		// The audience must belong to the same organization.
		var audience models.Audience
		err := h.db.WithContext(r.Context()).
			Where("id = ? AND organization_id = ?", audienceID, orgID).
			First(&audience).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Audience not found", Code: dto.CodeNotFound})
			return
		}
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create campaign", Code: dto.CodeInternalError})
			return
		}
		campaign.AudienceID = &audienceID
	}

	if err := h.db.WithContext(r.Context()).Create(&campaign).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create campaign", Code: dto.CodeInternalError})
		return
	}

	h.recorder.RecordRequest(r, "campaign.created", "campaigns", &campaign.ID, map[string]interface{}{"name": campaign.Name})
	writeJSON(w, http.StatusCreated, campaign)
}

// Get handles GET /api/v1/campaigns/{campaignID}
func (h *CampaignHandler) Get(w http.ResponseWriter, r *http.Request) {
	campaign, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, campaign)
}

// Update handles PUT /api/v1/campaigns/{campaignID}
func (h *CampaignHandler) Update(w http.ResponseWriter, r *http.Request) {
	campaign, ok := h.load(w, r)
	if !ok {
		return
	}

	var req struct {
		Name        *string    `json:"name"`
		Description *string    `json:"description"`
		Budget      *float64   `json:"budget"`
		StartsAt    *time.Time `json:"starts_at"`
		EndsAt      *time.Time `json:"ends_at"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body", Code: dto.CodeValidationFailed})
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		if *req.Name == "" {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Name cannot be empty", Code: dto.CodeValidationFailed})
			return
		}
		updates["name"] = *req.Name
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Budget != nil {
		if *req.Budget < 0 {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Budget cannot be negative", Code: dto.CodeValidationFailed})
			return
		}
		updates["budget"] = *req.Budget
	}
	if req.StartsAt != nil {
		updates["starts_at"] = req.StartsAt
	}
	if req.EndsAt != nil {
		updates["ends_at"] = req.EndsAt
	}

	if len(updates) > 0 {
		if err := h.db.WithContext(r.Context()).Model(campaign).Updates(updates).Error; err != nil {
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update campaign", Code: dto.CodeInternalError})
			return
		}
	}

	h.recorder.RecordRequest(r, "campaign.updated", "campaigns", &campaign.ID, nil)
	writeJSON(w, http.StatusOK, campaign)
}

// UpdateStatus handles PUT /api/v1/campaigns/{campaignID}/status — enforces
// the campaign lifecycle; a completed campaign is terminal.
func (h *CampaignHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	campaign, ok := h.load(w, r)
	if !ok {
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body", Code: dto.CodeValidationFailed})
		return
	}

	target := models.CampaignStatus(req.Status)
	if _, known := validCampaignTransitions[target]; !known {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid status", Code: dto.CodeValidationFailed})
		return
	}
	if !canTransition(campaign.Status, target) {
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Invalid status transition", Code: dto.CodeConflict})
		return
	}

	if err := h.db.WithContext(r.Context()).Model(campaign).Update("status", target).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update status", Code: dto.CodeInternalError})
		return
	}

	h.recorder.RecordRequest(r, "campaign.status_changed", "campaigns", &campaign.ID, map[string]interface{}{"status": req.Status})
	writeJSON(w, http.StatusOK, campaign)
}

// Dispatch handles POST /api/v1/campaigns/{campaignID}/dispatch — enqueues
// delivery on the worker.
func (h *CampaignHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	campaign, ok := h.load(w, r)
	if !ok {
		return
	}

	if campaign.Status == models.CampaignStatusCompleted {
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Campaign already completed", Code: dto.CodeConflict})
		return
	}
	if campaign.AudienceID == nil {
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Campaign has no audience", Code: dto.CodeConflict})
		return
	}

	if h.asynqClient == nil {
		writeJSON(w, http.StatusServiceUnavailable, dto.ErrorResponse{Error: "Background queue unavailable", Code: dto.CodeInternalError})
		return
	}

	task, err := tasks.NewCampaignDispatchTask(tasks.CampaignDispatchPayload{
		CampaignID:     campaign.ID,
		OrganizationID: campaign.OrganizationID,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to enqueue dispatch", Code: dto.CodeInternalError})
		return
	}

	info, err := h.asynqClient.EnqueueContext(r.Context(), task, asynq.Queue(queue.QueueCritical))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to enqueue dispatch", Code: dto.CodeInternalError})
		return
	}

	h.recorder.RecordRequest(r, "campaign.dispatched", "campaigns", &campaign.ID, nil)
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"message": "Campaign dispatch enqueued",
		"task_id": info.ID,
	})
}

// Delete handles DELETE /api/v1/campaigns/{campaignID}
func (h *CampaignHandler) Delete(w http.ResponseWriter, r *http.Request) {
	campaign, ok := h.load(w, r)
	if !ok {
		return
	}

	if err := h.db.WithContext(r.Context()).Delete(campaign).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete campaign", Code: dto.CodeInternalError})
		return
	}

	h.recorder.RecordRequest(r, "campaign.deleted", "campaigns", &campaign.ID, nil)
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Campaign deleted"})
}

func (h *CampaignHandler) load(w http.ResponseWriter, r *http.Request) (*models.Campaign, bool) {
	orgID := middleware.GetOrganizationID(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "campaignID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid campaign id", Code: dto.CodeValidationFailed})
		return nil, false
	}

	var campaign models.Campaign
	err = h.db.WithContext(r.Context()).
		Where("id = ? AND organization_id = ?", id, orgID).
		First(&campaign).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Campaign not found", Code: dto.CodeNotFound})
		return nil, false
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load campaign", Code: dto.CodeInternalError})
		return nil, false
	}

	return &campaign, true
}
