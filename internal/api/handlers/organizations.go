package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/activity"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/api/dto"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/api/middleware"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/api/validation"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/database/models"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/organizations"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/permissions"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type OrganizationHandler struct {
	orgService *organizations.Service
	recorder   *activity.Recorder
}

func NewOrganizationHandler(orgService *organizations.Service, recorder *activity.Recorder) *OrganizationHandler {
	return &OrganizationHandler{orgService: orgService, recorder: recorder}
}

// CreateOrganizationRequest represents the request to create an organization
type CreateOrganizationRequest struct {
	Name        string `json:"name"`
	Slug        string `json:"slug,omitempty"`
	Domain      string `json:"domain,omitempty"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type,omitempty"`
	Plan        string `json:"subscription_plan,omitempty"`
}

func (r CreateOrganizationRequest) Validate() map[string]string {
	errs := make(map[string]string)
	if r.Name == "" {
		errs["name"] = "Name is required"
	}
	if r.Domain != "" && !validation.IsValidDomain(r.Domain) {
		errs["domain"] = "Invalid domain"
	}
	if r.Type != "" {
		validTypes := map[string]bool{
			"marketing": true, "support": true, "trading": true, "enterprise": true,
		}
		if !validTypes[r.Type] {
			errs["type"] = "Invalid organization type"
		}
	}
	return errs
}

// MemberResponse represents a membership in API responses
type MemberResponse struct {
	ID          string          `json:"id"`
	UserID      string          `json:"user_id"`
	Email       string          `json:"email"`
	Name        string          `json:"name"`
	Role        string          `json:"role"`
	Permissions map[string]bool `json:"permissions,omitempty"`
	JoinedAt    string          `json:"joined_at"`
}

func memberToResponse(m *models.Membership) MemberResponse {
	return MemberResponse{
		ID:          m.ID.String(),
		UserID:      m.UserID.String(),
		Email:       m.User.Email,
		Name:        m.User.Name,
		Role:        m.Role,
		Permissions: m.Permissions,
		JoinedAt:    m.JoinedAt.Format(time.RFC3339),
	}
}

// List handles GET /api/v1/organizations — the caller's organizations.
func (h *OrganizationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	memberships, err := h.orgService.ListMemberships(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list organizations", Code: dto.CodeInternalError})
		return
	}

	orgs := make([]dto.OrganizationDTO, 0, len(memberships))
	for _, m := range memberships {
		orgs = append(orgs, dto.OrganizationDTO{
			ID:               m.OrganizationID.String(),
			Name:             m.Organization.Name,
			Slug:             m.Organization.Slug,
			Type:             string(m.Organization.Type),
			SubscriptionPlan: string(m.Organization.SubscriptionPlan),
			Role:             m.Role,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"organizations": orgs})
}

// Create handles POST /api/v1/organizations
func (h *OrganizationHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req CreateOrganizationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body", Code: dto.CodeValidationFailed})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Code: dto.CodeValidationFailed, Details: errs})
		return
	}

	org, err := h.orgService.CreateOrganization(r.Context(), organizations.CreateOrganizationInput{
		Name:             req.Name,
		Slug:             req.Slug,
		Domain:           req.Domain,
		Description:      req.Description,
		Type:             models.OrganizationType(req.Type),
		SubscriptionPlan: models.SubscriptionPlan(req.Plan),
	}, userID)
	if err != nil {
		switch {
		case errors.Is(err, organizations.ErrSlugTaken):
			writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Slug already taken", Code: dto.CodeConflict})
		default:
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create organization", Code: dto.CodeInternalError})
		}
		return
	}

	h.recorder.RecordRequest(r, "organization.created", "organization", &org.ID, map[string]interface{}{"name": org.Name})
	writeJSON(w, http.StatusCreated, org)
}

// Get handles GET /api/v1/organizations/{orgID} — access is validated the same
// way a context switch is, so foreign organizations are indistinguishable from
// missing ones.
func (h *OrganizationHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	orgID, err := uuid.Parse(chi.URLParam(r, "orgID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid organization id", Code: dto.CodeValidationFailed})
		return
	}

	uo, err := h.orgService.SwitchContext(r.Context(), userID, orgID)
	if err != nil {
		switch {
		case errors.Is(err, organizations.ErrMembershipNotFound), errors.Is(err, organizations.ErrOrganizationNotFound):
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Organization not found", Code: dto.CodeNotFound})
		default:
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load organization", Code: dto.CodeInternalError})
		}
		return
	}

	writeJSON(w, http.StatusOK, uo.Organization)
}

// Current handles GET /api/v1/organizations/current — the bound tenant.
func (h *OrganizationHandler) Current(w http.ResponseWriter, r *http.Request) {
	tc := middleware.GetTenant(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"organization": tc.Organization,
		"role":         tc.Role,
		"permissions":  permissions.Effective(tc.Role, tc.Membership.Permissions),
	})
}

// Update handles PUT /api/v1/organizations/current
func (h *OrganizationHandler) Update(w http.ResponseWriter, r *http.Request) {
	tc := middleware.GetTenant(r.Context())

	var req struct {
		Name        *string        `json:"name"`
		Domain      *string        `json:"domain"`
		Description *string        `json:"description"`
		Settings    models.JSONMap `json:"settings"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body", Code: dto.CodeValidationFailed})
		return
	}
	if req.Name != nil && *req.Name == "" {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Name cannot be empty", Code: dto.CodeValidationFailed})
		return
	}

	org, err := h.orgService.UpdateOrganization(r.Context(), tc.Organization.ID, organizations.UpdateOrganizationInput{
		Name:        req.Name,
		Domain:      req.Domain,
		Description: req.Description,
		Settings:    req.Settings,
	})
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update organization", Code: dto.CodeInternalError})
		return
	}

	h.recorder.RecordRequest(r, "organization.updated", "organization", &org.ID, nil)
	writeJSON(w, http.StatusOK, org)
}

// Switch handles POST /api/v1/organizations/{orgID}/switch — validates access
// and returns the tenant pair for the client to adopt.
func (h *OrganizationHandler) Switch(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	orgID, err := uuid.Parse(chi.URLParam(r, "orgID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid organization id", Code: dto.CodeValidationFailed})
		return
	}

	uo, err := h.orgService.SwitchContext(r.Context(), userID, orgID)
	if err != nil {
		switch {
		case errors.Is(err, organizations.ErrMembershipNotFound), errors.Is(err, organizations.ErrOrganizationNotFound):
			writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "No access to the requested organization", Code: dto.CodeOrgContextRequired})
		default:
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to switch organization", Code: dto.CodeInternalError})
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"organization": uo.Organization,
		"role":         uo.Membership.Role,
		"permissions":  permissions.Effective(permissions.Role(uo.Membership.Role), uo.Membership.Permissions),
	})
}

// ListMembers handles GET /api/v1/organizations/current/members
func (h *OrganizationHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	tc := middleware.GetTenant(r.Context())

	members, err := h.orgService.ListMembers(r.Context(), tc.Organization.ID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list members", Code: dto.CodeInternalError})
		return
	}

	resp := make([]MemberResponse, 0, len(members))
	for i := range members {
		resp = append(resp, memberToResponse(&members[i]))
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"members": resp})
}

// InviteMemberRequest represents the request to add a member
type InviteMemberRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

func (r InviteMemberRequest) Validate() map[string]string {
	errs := make(map[string]string)
	if r.Email == "" {
		errs["email"] = "Email is required"
	} else if !validation.IsValidEmail(r.Email) {
		errs["email"] = "Invalid email"
	}
	if r.Role == "" {
		errs["role"] = "Role is required"
	}
	return errs
}

// InviteMember handles POST /api/v1/organizations/current/members
func (h *OrganizationHandler) InviteMember(w http.ResponseWriter, r *http.Request) {
	tc := middleware.GetTenant(r.Context())

	var req InviteMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body", Code: dto.CodeValidationFailed})
		return
	}
	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Code: dto.CodeValidationFailed, Details: errs})
		return
	}

	m, err := h.orgService.InviteMember(r.Context(), tc.Organization.ID, tc.UserID, tc.Role, req.Email, permissions.Role(req.Role))
	if err != nil {
		switch {
		case errors.Is(err, organizations.ErrInvalidRole):
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid role", Code: dto.CodeValidationFailed})
		case errors.Is(err, organizations.ErrInsufficientRole):
			writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Cannot grant a role at or above your own", Code: dto.CodeRoleDenied})
		case errors.Is(err, organizations.ErrUserNotFound):
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "User not found", Code: dto.CodeNotFound})
		case errors.Is(err, organizations.ErrAlreadyMember):
			writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "User is already a member", Code: dto.CodeConflict})
		default:
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to invite member", Code: dto.CodeInternalError})
		}
		return
	}

	h.recorder.RecordRequest(r, "member.invited", "users", &m.UserID, map[string]interface{}{"role": req.Role})
	writeJSON(w, http.StatusCreated, m)
}

// UpdateMemberRequest represents the request to change a member's access
type UpdateMemberRequest struct {
	Role        *string         `json:"role"`
	Permissions map[string]bool `json:"permissions"`
}

// UpdateMember handles PUT /api/v1/organizations/current/members/{memberID}
func (h *OrganizationHandler) UpdateMember(w http.ResponseWriter, r *http.Request) {
	tc := middleware.GetTenant(r.Context())

	memberID, err := uuid.Parse(chi.URLParam(r, "memberID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid member id", Code: dto.CodeValidationFailed})
		return
	}

	var req UpdateMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body", Code: dto.CodeValidationFailed})
		return
	}

	input := organizations.UpdateMemberInput{}
	if req.Role != nil {
		role := permissions.Role(*req.Role)
		input.Role = &role
	}
	if req.Permissions != nil {
		input.Permissions = models.PermissionMap(req.Permissions)
	}

	m, err := h.orgService.UpdateMember(r.Context(), tc.Organization.ID, tc.Role, memberID, input)
	if err != nil {
		switch {
		case errors.Is(err, organizations.ErrInvalidRole):
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid role", Code: dto.CodeValidationFailed})
		case errors.Is(err, organizations.ErrInsufficientRole):
			writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Cannot manage a member at or above your own role", Code: dto.CodeRoleDenied})
		case errors.Is(err, organizations.ErrMembershipNotFound):
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Member not found", Code: dto.CodeNotFound})
		default:
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update member", Code: dto.CodeInternalError})
		}
		return
	}

	h.recorder.RecordRequest(r, "member.updated", "users", &m.UserID, nil)
	writeJSON(w, http.StatusOK, m)
}

// RemoveMember handles DELETE /api/v1/organizations/current/members/{memberID}
func (h *OrganizationHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	tc := middleware.GetTenant(r.Context())

	memberID, err := uuid.Parse(chi.URLParam(r, "memberID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid member id", Code: dto.CodeValidationFailed})
		return
	}

	if err := h.orgService.RemoveMember(r.Context(), tc.Organization.ID, tc.Role, memberID); err != nil {
		switch {
		case errors.Is(err, organizations.ErrMembershipNotFound):
			writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Member not found", Code: dto.CodeNotFound})
		case errors.Is(err, organizations.ErrInsufficientRole):
			writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Cannot manage a member at or above your own role", Code: dto.CodeRoleDenied})
		case errors.Is(err, organizations.ErrLastOwner):
			writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Cannot remove the only owner", Code: dto.CodeConflict})
		default:
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to remove member", Code: dto.CodeInternalError})
		}
		return
	}

	h.recorder.RecordRequest(r, "member.removed", "users", &memberID, nil)
	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Member removed"})
}
