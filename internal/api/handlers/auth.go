package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/activity"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/api/dto"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/api/middleware"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/auth"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/database/models"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/organizations"
	"github.com/google/uuid"
)

type AuthHandler struct {
	authService *auth.Service
	orgService  *organizations.Service
	recorder    *activity.Recorder
}

func NewAuthHandler(authService *auth.Service, orgService *organizations.Service, recorder *activity.Recorder) *AuthHandler {
	return &AuthHandler{authService: authService, orgService: orgService, recorder: recorder}
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body", Code: dto.CodeValidationFailed})
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Code: dto.CodeValidationFailed, Details: errs})
		return
	}

	result, err := h.authService.Register(r.Context(), auth.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
		OrgName:  req.OrgName,
		OrgType:  models.OrganizationType(req.OrgType),
	})
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrUserExists):
			writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "User already exists", Code: dto.CodeConflict})
		default:
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Registration failed", Code: dto.CodeInternalError})
		}
		return
	}

	h.recorder.Record(r.Context(), activity.Entry{
		OrganizationID: &result.Organization.ID,
		UserID:         &result.User.ID,
		Action:         "user.registered",
		Resource:       "users",
		ResourceID:     &result.User.ID,
	})

	writeJSON(w, http.StatusCreated, authResponse(result))
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body", Code: dto.CodeValidationFailed})
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Code: dto.CodeValidationFailed, Details: errs})
		return
	}

	result, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Invalid credentials", Code: dto.CodeAuthRequired})
		case errors.Is(err, auth.ErrInactiveUser):
			writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Account is inactive", Code: dto.CodePermissionDenied})
		default:
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Login failed", Code: dto.CodeInternalError})
		}
		return
	}

	writeJSON(w, http.StatusOK, authResponse(result))
}

// Refresh exchanges a refresh token for a fresh pair. The new access token
// carries current membership truth, not whatever the old token said.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req dto.RefreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body", Code: dto.CodeValidationFailed})
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Code: dto.CodeValidationFailed, Details: errs})
		return
	}

	var orgID *uuid.UUID
	if req.OrganizationID != "" {
		id, err := uuid.Parse(req.OrganizationID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid organization id", Code: dto.CodeValidationFailed})
			return
		}
		orgID = &id
	}

	result, err := h.authService.Refresh(r.Context(), req.RefreshToken, orgID)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidToken),
			errors.Is(err, auth.ErrExpiredToken),
			errors.Is(err, auth.ErrWrongTokenType):
			writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Invalid refresh token", Code: dto.CodeInvalidToken})
		case errors.Is(err, auth.ErrInactiveUser), errors.Is(err, auth.ErrUserNotFound):
			writeJSON(w, http.StatusUnauthorized, dto.ErrorResponse{Error: "Account unavailable", Code: dto.CodeInvalidToken})
		case errors.Is(err, organizations.ErrMembershipNotFound), errors.Is(err, organizations.ErrOrganizationNotFound):
			writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "No access to the requested organization", Code: dto.CodeOrgContextRequired})
		default:
			writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Refresh failed", Code: dto.CodeInternalError})
		}
		return
	}

	writeJSON(w, http.StatusOK, authResponse(result))
}

// Me returns the authenticated user with all active organization memberships.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	user, err := h.authService.GetUserByID(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "User not found", Code: dto.CodeNotFound})
		return
	}

	memberships, err := h.orgService.ListMemberships(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to load memberships", Code: dto.CodeInternalError})
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

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":          userDTO(user, ""),
		"organizations": orgs,
	})
}

// Status reports whether the request carries a valid session. Unauthenticated
// requests get a 200 with authenticated=false, not a 401.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == uuid.Nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"authenticated": false})
		return
	}

	user, err := h.authService.GetUserByID(r.Context(), userID)
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"authenticated": false})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"authenticated": true,
		"user":          userDTO(user, ""),
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	// Tokens are stateless; the client discards them. The logout is still
	// recorded for the audit trail.
	if userID := middleware.GetUserID(r.Context()); userID != uuid.Nil {
		h.recorder.Record(r.Context(), activity.Entry{
			UserID:   &userID,
			Action:   "user.logged_out",
			Resource: "users",
		})
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Logged out"})
}

func authResponse(result *auth.AuthResult) dto.AuthResponse {
	role := ""
	if result.Membership != nil {
		role = result.Membership.Role
	}

	resp := dto.AuthResponse{
		AccessToken:  result.Tokens.AccessToken,
		RefreshToken: result.Tokens.RefreshToken,
		ExpiresIn:    result.Tokens.ExpiresIn,
		User:         userDTO(result.User, role),
	}

	if result.Organization != nil {
		resp.Organization = &dto.OrganizationDTO{
			ID:               result.Organization.ID.String(),
			Name:             result.Organization.Name,
			Slug:             result.Organization.Slug,
			Type:             string(result.Organization.Type),
			SubscriptionPlan: string(result.Organization.SubscriptionPlan),
			Role:             role,
		}
	}

	return resp
}

func userDTO(user *models.User, role string) dto.UserDTO {
	return dto.UserDTO{
		ID:       user.ID.String(),
		Email:    user.Email,
		Name:     user.Name,
		Avatar:   user.Avatar,
		Role:     role,
		IsActive: user.IsActive,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
