package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/activity"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/api/dto"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/api/middleware"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/api/validation"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/database/models"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AudienceHandler struct {
	db       *gorm.DB
	recorder *activity.Recorder
}

func NewAudienceHandler(db *gorm.DB, recorder *activity.Recorder) *AudienceHandler {
	return &AudienceHandler{db: db, recorder: recorder}
}

// CreateAudienceRequest represents the request to create an audience
type CreateAudienceRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Filters     models.JSONMap `json:"filters,omitempty"`
}

func (r CreateAudienceRequest) Validate() map[string]string {
	errs := make(map[string]string)
	if r.Name == "" {
		errs["name"] = "Name is required"
	}
	return errs
}

// AddContactRequest represents the request to add a contact to an audience
type AddContactRequest struct {
	Email string         `json:"email"`
	Name  string         `json:"name,omitempty"`
	Phone string         `json:"phone,omitempty"`
	Tags  models.JSONMap `json:"tags,omitempty"`
}

func (r AddContactRequest) Validate() map[string]string {
	errs := make(map[string]string)
	if r.Email == "" {
		errs["email"] = "Email is required"
	} else if !validation.IsValidEmail(r.Email) {
		errs["email"] = "Invalid email"
	}
	return errs
}

// List handles GET /api/v1/audiences
func (h *AudienceHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrganizationID(r.Context())

	var audiences []models.Audience
	err := h.db.WithContext(r.Context()).
		Where("organization_id = ? AND is_active = ?", orgID, true).
		Order("created_at DESC").
		Find(&audiences).Error
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list audiences", Code: dto.CodeInternalError})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"audiences": audiences})
}

// Create handles POST /api/v1/audiences
func (h *AudienceHandler) Create(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrganizationID(r.Context())

	var req CreateAudienceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body", Code: dto.CodeValidationFailed})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Code: dto.CodeValidationFailed, Details: errs})
		return
	}

	audience := models.Audience{
		OrganizationID: orgID,
		Name:           req.Name,
		Description:    req.Description,
		Filters:        req.Filters,
		IsActive:       true,
	}
	if err := h.db.WithContext(r.Context()).Create(&audience).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create audience", Code: dto.CodeInternalError})
		return
	}

	h.recorder.RecordRequest(r, "audience.created", "audiences", &audience.ID, map[string]interface{}{"name": audience.Name})
	writeJSON(w, http.StatusCreated, audience)
}

// Get handles GET /api/v1/audiences/{audienceID}
func (h *AudienceHandler) Get(w http.ResponseWriter, r *http.Request) {
	audience, ok := h.load(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, audience)
}

// Update handles PUT /api/v1/audiences/{audienceID}
func (h *AudienceHandler) Update(w http.ResponseWriter, r *http.Request) {
	audience, ok := h.load(w, r)
	if !ok {
		return
	}

	var req struct {
		Name        *string        `json:"name"`
		Description *string        `json:"description"`
		Filters     models.JSONMap `json:"filters"`
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
	if req.Filters != nil {
		updates["filters"] = req.Filters
	}

	if len(updates) > 0 {
		if err := h.db.WithContext(r.Context()).Model(audience).Updates(updates).Error; err != nil {
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update audience", Code: dto.CodeInternalError})
			return
		}
	}

	writeJSON(w, http.StatusOK, audience)
}

// Delete handles DELETE /api/v1/audiences/{audienceID} — deactivates so
// campaigns referencing it keep their history.
func (h *AudienceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	audience, ok := h.load(w, r)
	if !ok {
		return
	}

	if err := h.db.WithContext(r.Context()).Model(audience).Update("is_active", false).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete audience", Code: dto.CodeInternalError})
		return
	}

	h.recorder.RecordRequest(r, "audience.deleted", "audiences", &audience.ID, nil)
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Audience deleted"})
}

// ListContacts handles GET /api/v1/audiences/{audienceID}/contacts
func (h *AudienceHandler) ListContacts(w http.ResponseWriter, r *http.Request) {
	audience, ok := h.load(w, r)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	params := dto.PaginationParams{Page: page, PerPage: perPage}
	params.Normalize()

	query := h.db.WithContext(r.Context()).Model(&models.Contact{}).
		Where("audience_id = ?", audience.ID)
	if subscribed := r.URL.Query().Get("subscribed"); subscribed != "" {
		query = query.Where("subscribed = ?", subscribed == "true")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list contacts", Code: dto.CodeInternalError})
		return
	}

	var contacts []models.Contact
	err := query.Order("created_at DESC").
		Offset(params.Offset()).Limit(params.PerPage).
		Find(&contacts).Error
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list contacts", Code: dto.CodeInternalError})
		return
	}

	writeJSON(w, http.StatusOK, dto.PaginatedResponse{
		Data:       contacts,
		Total:      total,
		Page:       params.Page,
		PerPage:    params.PerPage,
		TotalPages: int((total + int64(params.PerPage) - 1) / int64(params.PerPage)),
	})
}

// AddContact handles POST /api/v1/audiences/{audienceID}/contacts
func (h *AudienceHandler) AddContact(w http.ResponseWriter, r *http.Request) {
	audience, ok := h.load(w, r)
	if !ok {
		return
	}

	var req AddContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body", Code: dto.CodeValidationFailed})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Code: dto.CodeValidationFailed, Details: errs})
		return
	}

	var existing models.Contact
	err := h.db.WithContext(r.Context()).
		Where("audience_id = ? AND email = ?", audience.ID, req.Email).
		First(&existing).Error
	if err == nil {
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Contact already in audience", Code: dto.CodeConflict})
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to add contact", Code: dto.CodeInternalError})
		return
	}

	contact := models.Contact{
		OrganizationID: audience.OrganizationID,
		AudienceID:     audience.ID,
		Email:          req.Email,
		Name:           req.Name,
		Phone:          req.Phone,
		Tags:           req.Tags,
		Subscribed:     true,
	}
	if err := h.db.WithContext(r.Context()).Create(&contact).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to add contact", Code: dto.CodeInternalError})
		return
	}

	writeJSON(w, http.StatusCreated, contact)
}

// UnsubscribeContact handles POST /api/v1/audiences/{audienceID}/contacts/{contactID}/unsubscribe
func (h *AudienceHandler) UnsubscribeContact(w http.ResponseWriter, r *http.Request) {
	audience, ok := h.load(w, r)
	if !ok {
		return
	}

	contactID, err := uuid.Parse(chi.URLParam(r, "contactID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid contact id", Code: dto.CodeValidationFailed})
		return
	}

	result := h.db.WithContext(r.Context()).Model(&models.Contact{}).
		Where("id = ? AND audience_id = ?", contactID, audience.ID).
		Update("subscribed", false)
	if result.Error != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to unsubscribe contact", Code: dto.CodeInternalError})
		return
	}
	if result.RowsAffected == 0 {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Contact not found", Code: dto.CodeNotFound})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Contact unsubscribed"})
}

// RemoveContact handles DELETE /api/v1/audiences/{audienceID}/contacts/{contactID}
func (h *AudienceHandler) RemoveContact(w http.ResponseWriter, r *http.Request) {
	audience, ok := h.load(w, r)
	if !ok {
		return
	}

	contactID, err := uuid.Parse(chi.URLParam(r, "contactID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid contact id", Code: dto.CodeValidationFailed})
		return
	}

	result := h.db.WithContext(r.Context()).
		Where("id = ? AND audience_id = ?", contactID, audience.ID).
		Delete(&models.Contact{})
	if result.Error != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to remove contact", Code: dto.CodeInternalError})
		return
	}
	if result.RowsAffected == 0 {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Contact not found", Code: dto.CodeNotFound})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Contact removed"})
}

func (h *AudienceHandler) load(w http.ResponseWriter, r *http.Request) (*models.Audience, bool) {
	orgID := middleware.GetOrganizationID(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "audienceID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid audience id", Code: dto.CodeValidationFailed})
		return nil, false
	}

	var audience models.Audience
	err = h.db.WithContext(r.Context()).
		Where("id = ? AND organization_id = ? AND is_active = ?", id, orgID, true).
		First(&audience).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Audience not found", Code: dto.CodeNotFound})
		return nil, false
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load audience", Code: dto.CodeInternalError})
		return nil, false
	}

	return &audience, true
}
