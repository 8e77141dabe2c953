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
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/pkg/util"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"
)

type AutomationHandler struct {
	db          *gorm.DB
	asynqClient *asynq.Client
	recorder    *activity.Recorder
}

func NewAutomationHandler(db *gorm.DB, asynqClient *asynq.Client, recorder *activity.Recorder) *AutomationHandler {
	return &AutomationHandler{db: db, asynqClient: asynqClient, recorder: recorder}
}

// CreateAutomationRequest represents the request to create an automation
type CreateAutomationRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Trigger     models.JSONMap `json:"trigger"`
	Actions     models.JSONMap `json:"actions"`
	Conditions  models.JSONMap `json:"conditions,omitempty"`
	CronExpr    string         `json:"cron_expr,omitempty"`
	IsActive    *bool          `json:"is_active,omitempty"`
}

func (r CreateAutomationRequest) Validate() map[string]string {
	errs := make(map[string]string)
	if r.Name == "" {
		errs["name"] = "Name is required"
	}
	if r.Trigger == nil {
		errs["trigger"] = "Trigger is required"
	}
	if r.Actions == nil {
		errs["actions"] = "Actions are required"
	}
	if r.CronExpr != "" {
		if err := util.ValidateCronExpr(r.CronExpr); err != nil {
			errs["cron_expr"] = err.Error()
		}
	}
	return errs
}

// List handles GET /api/v1/automations
func (h *AutomationHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrganizationID(r.Context())

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	params := dto.PaginationParams{Page: page, PerPage: perPage}
	params.Normalize()

	query := h.db.WithContext(r.Context()).Model(&models.Automation{}).Where("organization_id = ?", orgID)
	if active := r.URL.Query().Get("active"); active != "" {
		query = query.Where("is_active = ?", active == "true")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list automations", Code: dto.CodeInternalError})
		return
	}

	var automations []models.Automation
	err := query.Order("created_at DESC").
		Offset(params.Offset()).Limit(params.PerPage).
		Find(&automations).Error
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list automations", Code: dto.CodeInternalError})
		return
	}

	writeJSON(w, http.StatusOK, dto.PaginatedResponse{
		Data:       automations,
		Total:      total,
		Page:       params.Page,
		PerPage:    params.PerPage,
		TotalPages: int((total + int64(params.PerPage) - 1) / int64(params.PerPage)),
	})
}

// Create handles POST /api/v1/automations
func (h *AutomationHandler) Create(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrganizationID(r.Context())
	userID := middleware.GetUserID(r.Context())

	var req CreateAutomationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body", Code: dto.CodeValidationFailed})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Code: dto.CodeValidationFailed, Details: errs})
		return
	}

	automation := models.Automation{
		OrganizationID: orgID,
		Name:           req.Name,
		Description:    req.Description,
		Trigger:        req.Trigger,
		Actions:        req.Actions,
		Conditions:     req.Conditions,
		CronExpr:       req.CronExpr,
		IsActive:       true,
		CreatedBy:      userID,
	}
	if req.IsActive != nil {
		automation.IsActive = *req.IsActive
	}
	if req.CronExpr != "" {
		if next, err := util.NextCronTime(req.CronExpr, time.Now()); err == nil {
			automation.NextRunAt = &next
		}
	}

	if err := h.db.WithContext(r.Context()).Create(&automation).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create automation", Code: dto.CodeInternalError})
		return
	}

	h.recorder.RecordRequest(r, "automation.created", "automations", &automation.ID, map[string]interface{}{"name": automation.Name})
	writeJSON(w, http.StatusCreated, automation)
}

// Get handles GET /api/v1/automations/{automationID}
func (h *AutomationHandler) Get(w http.ResponseWriter, r *http.Request) {
	automation, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, automation)
}

// Update handles PUT /api/v1/automations/{automationID}
func (h *AutomationHandler) Update(w http.ResponseWriter, r *http.Request) {
	automation, ok := h.load(w, r)
	if !ok {
		return
	}

	var req struct {
		Name        *string        `json:"name"`
		Description *string        `json:"description"`
		Trigger     models.JSONMap `json:"trigger"`
		Actions     models.JSONMap `json:"actions"`
		Conditions  models.JSONMap `json:"conditions"`
		CronExpr    *string        `json:"cron_expr"`
		IsActive    *bool          `json:"is_active"`
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
	if req.Trigger != nil {
		updates["trigger"] = req.Trigger
	}
	if req.Actions != nil {
		updates["actions"] = req.Actions
	}
	if req.Conditions != nil {
		updates["conditions"] = req.Conditions
	}
	if req.CronExpr != nil {
		if *req.CronExpr != "" {
			if err := util.ValidateCronExpr(*req.CronExpr); err != nil {
				writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: err.Error(), Code: dto.CodeValidationFailed})
				return
			}
		}
		updates["cron_expr"] = *req.CronExpr
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	if len(updates) > 0 {
		if err := h.db.WithContext(r.Context()).Model(automation).Updates(updates).Error; err != nil {
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update automation", Code: dto.CodeInternalError})
			return
		}
	}

	h.recorder.RecordRequest(r, "automation.updated", "automations", &automation.ID, nil)
	writeJSON(w, http.StatusOK, automation)
}

// Delete handles DELETE /api/v1/automations/{automationID}
func (h *AutomationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	automation, ok := h.load(w, r)
	if !ok {
		return
	}

	if err := h.db.WithContext(r.Context()).Delete(automation).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete automation", Code: dto.CodeInternalError})
		return
	}

	h.recorder.RecordRequest(r, "automation.deleted", "automations", &automation.ID, nil)
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Automation deleted"})
}

// Run handles POST /api/v1/automations/{automationID}/run — enqueues an
// immediate execution on the worker.
func (h *AutomationHandler) Run(w http.ResponseWriter, r *http.Request) {
	automation, ok := h.load(w, r)
	if !ok {
		return
	}

	if !automation.IsActive {
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Automation is inactive", Code: dto.CodeConflict})
		return
	}

	if h.asynqClient == nil {
		writeJSON(w, http.StatusServiceUnavailable, dto.ErrorResponse{Error: "Background queue unavailable", Code: dto.CodeInternalError})
		return
	}

	userID := middleware.GetUserID(r.Context())
	task, err := tasks.NewAutomationRunTask(tasks.AutomationRunPayload{
		AutomationID:   automation.ID,
		OrganizationID: automation.OrganizationID,
		TriggeredBy:    &userID,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to enqueue run", Code: dto.CodeInternalError})
		return
	}

	info, err := h.asynqClient.EnqueueContext(r.Context(), task, asynq.Queue(queue.QueueDefault))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to enqueue run", Code: dto.CodeInternalError})
		return
	}

	h.recorder.RecordRequest(r, "automation.triggered", "automations", &automation.ID, nil)
	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"message": "Automation run enqueued",
		"task_id": info.ID,
	})
}

// ListExecutions handles GET /api/v1/automations/{automationID}/executions
func (h *AutomationHandler) ListExecutions(w http.ResponseWriter, r *http.Request) {
	automation, ok := h.load(w, r)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	params := dto.PaginationParams{Page: page, PerPage: perPage}
	params.Normalize()

	var total int64
	query := h.db.WithContext(r.Context()).Model(&models.AutomationExecution{}).
		Where("automation_id = ?", automation.ID)
	if err := query.Count(&total).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list executions", Code: dto.CodeInternalError})
		return
	}

	var executions []models.AutomationExecution
	err := query.Order("started_at DESC").
		Offset(params.Offset()).Limit(params.PerPage).
		Find(&executions).Error
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list executions", Code: dto.CodeInternalError})
		return
	}

	writeJSON(w, http.StatusOK, dto.PaginatedResponse{
		Data:       executions,
		Total:      total,
		Page:       params.Page,
		PerPage:    params.PerPage,
		TotalPages: int((total + int64(params.PerPage) - 1) / int64(params.PerPage)),
	})
}

// load fetches the automation scoped to the bound organization. Cross-tenant
// ids come back as 404, indistinguishable from "does not exist".
func (h *AutomationHandler) load(w http.ResponseWriter, r *http.Request) (*models.Automation, bool) {
	orgID := middleware.GetOrganizationID(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "automationID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid automation id", Code: dto.CodeValidationFailed})
		return nil, false
	}

	var automation models.Automation
	err = h.db.WithContext(r.Context()).
		Where("id = ? AND organization_id = ?", id, orgID).
		First(&automation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Automation not found", Code: dto.CodeNotFound})
		return nil, false
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load automation", Code: dto.CodeInternalError})
		return nil, false
	}

	return &automation, true
}
