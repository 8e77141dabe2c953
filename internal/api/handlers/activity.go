package handlers

import (
	"net/http"
	"strconv"

	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/api/dto"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/api/middleware"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/database/models"
	"gorm.io/gorm"
)

type ActivityHandler struct {
	db *gorm.DB
}

func NewActivityHandler(db *gorm.DB) *ActivityHandler {
	return &ActivityHandler{db: db}
}

// List handles GET /api/v1/activity — the bound organization's audit trail,
// newest first.
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	orgID := middleware.GetOrganizationID(r.Context())

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	params := dto.PaginationParams{Page: page, PerPage: perPage}
	params.Normalize()

	query := h.db.WithContext(r.Context()).Model(&models.ActivityLog{}).
		Where("organization_id = ?", orgID)
	if action := r.URL.Query().Get("action"); action != "" {
		query = query.Where("action = ?", action)
	}
	if resource := r.URL.Query().Get("resource"); resource != "" {
		query = query.Where("resource = ?", resource)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list activity", Code: dto.CodeInternalError})
		return
	}

	var entries []models.ActivityLog
	err := query.Order("created_at DESC").
		Offset(params.Offset()).Limit(params.PerPage).
		Find(&entries).Error
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list activity", Code: dto.CodeInternalError})
		return
	}

	writeJSON(w, http.StatusOK, dto.PaginatedResponse{
		Data:       entries,
		Total:      total,
		Page:       params.Page,
		PerPage:    params.PerPage,
		TotalPages: int((total + int64(params.PerPage) - 1) / int64(params.PerPage)),
	})
}
