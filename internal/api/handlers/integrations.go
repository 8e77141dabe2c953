package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/activity"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/api/dto"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/api/middleware"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/api/validation"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/database/models"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/pkg/crypto"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type IntegrationHandler struct {
	db        *gorm.DB
	encryptor *crypto.Encryptor
	recorder  *activity.Recorder
}

func NewIntegrationHandler(db *gorm.DB, encryptor *crypto.Encryptor, recorder *activity.Recorder) *IntegrationHandler {
	return &IntegrationHandler{db: db, encryptor: encryptor, recorder: recorder}
}

// ConnectRequest represents the request to connect an integration
type ConnectRequest struct {
	Provider    string         `json:"provider"`
	Credentials models.JSONMap `json:"credentials"`
	Settings    models.JSONMap `json:"settings,omitempty"`
}

func (r ConnectRequest) Validate() map[string]string {
	errs := make(map[string]string)
	if r.Provider == "" {
		errs["provider"] = "Provider is required"
	}
	if len(r.Credentials) == 0 {
		errs["credentials"] = "Credentials are required"
	}
	return errs
}

// Catalog handles GET /api/v1/integrations — the global provider catalog.
func (h *IntegrationHandler) Catalog(w http.ResponseWriter, r *http.Request) {
	var integrations []models.Integration
	err := h.db.WithContext(r.Context()).
		Where("is_active = ?", true).
		Order("name ASC").
		Find(&integrations).Error
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list integrations", Code: dto.CodeInternalError})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"integrations": integrations})
}

// ListConnections handles GET /api/v1/integrations/connections — the bound
// organization's connections. Credentials are never returned.
func (h *IntegrationHandler) ListConnections(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrganizationID(r.Context())

	var connections []models.IntegrationConnection
	err := h.db.WithContext(r.Context()).
		Where("organization_id = ?", orgID).
		Preload("Integration").
		Order("created_at DESC").
		Find(&connections).Error
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list connections", Code: dto.CodeInternalError})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"connections": connections})
}

// Connect handles POST /api/v1/integrations/connections — stores credentials
// encrypted at rest.
func (h *IntegrationHandler) Connect(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrganizationID(r.Context())
	userID := middleware.GetUserID(r.Context())

	var req ConnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body", Code: dto.CodeValidationFailed})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Code: dto.CodeValidationFailed, Details: errs})
		return
	}

	var integration models.Integration
	err := h.db.WithContext(r.Context()).
		Where("provider = ? AND is_active = ?", req.Provider, true).
		First(&integration).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Unknown provider", Code: dto.CodeNotFound})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to connect integration", Code: dto.CodeInternalError})
		return
	}

	if errs := validation.ValidateCredentialData(req.Provider, req.Credentials); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Code: dto.CodeValidationFailed, Details: errs})
		return
	}

	var existing models.IntegrationConnection
	err = h.db.WithContext(r.Context()).
		Where("organization_id = ? AND integration_id = ?", orgID, integration.ID).
		First(&existing).Error
	if err == nil {
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Integration already connected", Code: dto.CodeConflict})
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to connect integration", Code: dto.CodeInternalError})
		return
	}

	plaintext, err := json.Marshal(req.Credentials)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid credentials payload", Code: dto.CodeValidationFailed})
		return
	}
	encrypted, err := h.encryptor.EncryptString(string(plaintext))
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to secure credentials", Code: dto.CodeInternalError})
		return
	}

	connection := models.IntegrationConnection{
		OrganizationID: orgID,
		IntegrationID:  integration.ID,
		Credentials:    encrypted,
		Settings:       req.Settings,
		Status:         "active",
		ConnectedBy:    userID,
	}
	if err := h.db.WithContext(r.Context()).Create(&connection).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to connect integration", Code: dto.CodeInternalError})
		return
	}

	h.recorder.RecordRequest(r, "integration.connected", "integrations", &connection.ID, map[string]interface{}{"provider": req.Provider})
	writeJSON(w, http.StatusCreated, connection)
}

// UpdateConnection handles PUT /api/v1/integrations/connections/{connectionID}
func (h *IntegrationHandler) UpdateConnection(w http.ResponseWriter, r *http.Request) {
	connection, ok := h.loadConnection(w, r)
	if !ok {
		return
	}

	var req struct {
		Credentials models.JSONMap `json:"credentials"`
		Settings    models.JSONMap `json:"settings"`
		Status      *string        `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body", Code: dto.CodeValidationFailed})
		return
	}

	updates := map[string]interface{}{}
	if len(req.Credentials) > 0 {
		plaintext, err := json.Marshal(req.Credentials)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid credentials payload", Code: dto.CodeValidationFailed})
			return
		}
		encrypted, err := h.encryptor.EncryptString(string(plaintext))
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to secure credentials", Code: dto.CodeInternalError})
			return
		}
		updates["credentials"] = encrypted
	}
	if req.Settings != nil {
		updates["settings"] = req.Settings
	}
	if req.Status != nil {
		valid := map[string]bool{"active": true, "paused": true, "error": true}
		if !valid[*req.Status] {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid status", Code: dto.CodeValidationFailed})
			return
		}
		updates["status"] = *req.Status
	}

	if len(updates) > 0 {
		if err := h.db.WithContext(r.Context()).Model(connection).Updates(updates).Error; err != nil {
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update connection", Code: dto.CodeInternalError})
			return
		}
	}

	h.recorder.RecordRequest(r, "integration.updated", "integrations", &connection.ID, nil)
	writeJSON(w, http.StatusOK, connection)
}

// Disconnect handles DELETE /api/v1/integrations/connections/{connectionID}
func (h *IntegrationHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	connection, ok := h.loadConnection(w, r)
	if !ok {
		return
	}

	if err := h.db.WithContext(r.Context()).Delete(connection).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to disconnect integration", Code: dto.CodeInternalError})
		return
	}

	h.recorder.RecordRequest(r, "integration.disconnected", "integrations", &connection.ID, nil)
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Integration disconnected"})
}

func (h *IntegrationHandler) loadConnection(w http.ResponseWriter, r *http.Request) (*models.IntegrationConnection, bool) {
	orgID := middleware.GetOrganizationID(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "connectionID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid connection id", Code: dto.CodeValidationFailed})
		return nil, false
	}

	var connection models.IntegrationConnection
	err = h.db.WithContext(r.Context()).
		Where("id = ? AND organization_id = ?", id, orgID).
		First(&connection).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Connection not found", Code: dto.CodeNotFound})
		return nil, false
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load connection", Code: dto.CodeInternalError})
		return nil, false
	}

	return &connection, true
}
