package organizations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/database/models"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/permissions"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/pkg/cache"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrMembershipNotFound   = errors.New("membership not found")
	ErrSlugTaken            = errors.New("organization slug already taken")
	ErrUserNotFound         = errors.New("user not found")
	ErrAlreadyMember        = errors.New("user is already a member")
	ErrLastOwner            = errors.New("cannot remove the only active owner")
	ErrInvalidRole          = errors.New("invalid role")
	ErrInsufficientRole     = errors.New("caller role cannot manage this member")
)

const membershipCacheTTL = time.Minute

// Service resolves memberships and manages organizations. Resolver methods
// are pure reads; "no membership" is ErrMembershipNotFound (or false), while a
// datastore failure propagates as a wrapped error so callers can tell "denied"
// from "can't tell".
type Service struct {
	db     *gorm.DB
	cache  cache.Cache
	logger *slog.Logger
}

func NewService(db *gorm.DB, c cache.Cache, logger *slog.Logger) *Service {
	return &Service{db: db, cache: c, logger: logger}
}

// WithTx returns a copy of the service bound to tx, so organization writes
// can be composed into a caller's transaction.
func (s *Service) WithTx(tx *gorm.DB) *Service {
	c := *s
	c.db = tx
	return &c
}

// UserOrganization pairs an organization with the caller's membership in it.
type UserOrganization struct {
	Organization models.Organization `json:"organization"`
	Membership   models.Membership   `json:"membership"`
}

func membershipCacheKey(userID, orgID uuid.UUID) string {
	return fmt.Sprintf("membership:%s:%s", userID, orgID)
}

// HasAccess reports whether an active membership exists for the pair.
func (s *Service) HasAccess(ctx context.Context, userID, orgID uuid.UUID) (bool, error) {
	_, err := s.GetMembership(ctx, userID, orgID)
	if errors.Is(err, ErrMembershipNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetMembership returns the active membership for (user, org), consulting the
// cache first. Cache failures fall through to the database.
func (s *Service) GetMembership(ctx context.Context, userID, orgID uuid.UUID) (*models.Membership, error) {
	key := membershipCacheKey(userID, orgID)
	if s.cache != nil {
		if data, ok, err := s.cache.Get(ctx, key); err == nil && ok {
			var m models.Membership
			if err := json.Unmarshal(data, &m); err == nil {
				return &m, nil
			}
		}
	}

	var m models.Membership
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND organization_id = ? AND is_active = ?", userID, orgID, true).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMembershipNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("membership lookup: %w", err)
	}

	if s.cache != nil {
		if data, err := json.Marshal(m); err == nil {
			if err := s.cache.Set(ctx, key, data, membershipCacheTTL); err != nil {
				s.logger.Debug("membership cache write failed", "error", err)
			}
		}
	}

	return &m, nil
}

// ListMemberships returns the user's active memberships in active
// organizations, earliest joined first. The ordering makes default-tenant
// selection deterministic across requests.
func (s *Service) ListMemberships(ctx context.Context, userID uuid.UUID) ([]models.Membership, error) {
	var memberships []models.Membership
	err := s.db.WithContext(ctx).
		Joins("JOIN organizations ON organizations.id = organization_users.organization_id").
		Where("organization_users.user_id = ? AND organization_users.is_active = ? AND organizations.is_active = ?", userID, true, true).
		Preload("Organization").
		Order("organization_users.joined_at ASC").
		Find(&memberships).Error
	if err != nil {
		return nil, fmt.Errorf("memberships lookup: %w", err)
	}
	return memberships, nil
}

// HasPermission checks the membership's permission map. super_admin always
// passes; otherwise the map must contain the permission or the wildcard.
func (s *Service) HasPermission(ctx context.Context, userID, orgID uuid.UUID, permission string) (bool, error) {
	m, err := s.GetMembership(ctx, userID, orgID)
	if errors.Is(err, ErrMembershipNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if permissions.Role(m.Role) == permissions.RoleSuperAdmin {
		return true, nil
	}

	return m.Permissions[permission] || m.Permissions[permissions.Wildcard], nil
}

// HasRole reports whether the membership's role is in the given set.
func (s *Service) HasRole(ctx context.Context, userID, orgID uuid.UUID, roles ...permissions.Role) (bool, error) {
	m, err := s.GetMembership(ctx, userID, orgID)
	if errors.Is(err, ErrMembershipNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	for _, r := range roles {
		if permissions.Role(m.Role) == r {
			return true, nil
		}
	}
	return false, nil
}

// SwitchContext validates access and returns the full tenant pair. The access
// check is never skipped, even when the caller supplied the organization id.
func (s *Service) SwitchContext(ctx context.Context, userID, orgID uuid.UUID) (*UserOrganization, error) {
	m, err := s.GetMembership(ctx, userID, orgID)
	if err != nil {
		return nil, err
	}

	org, err := s.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if !org.IsActive {
		return nil, ErrOrganizationNotFound
	}

	return &UserOrganization{Organization: *org, Membership: *m}, nil
}

// EffectivePermissions flattens a membership's role grants plus overrides.
func (s *Service) EffectivePermissions(m *models.Membership) []string {
	return permissions.Effective(permissions.Role(m.Role), m.Permissions)
}

func (s *Service) GetOrganization(ctx context.Context, orgID uuid.UUID) (*models.Organization, error) {
	var org models.Organization
	err := s.db.WithContext(ctx).First(&org, "id = ?", orgID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrganizationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("organization lookup: %w", err)
	}
	return &org, nil
}

func (s *Service) GetOrganizationBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	var org models.Organization
	err := s.db.WithContext(ctx).First(&org, "slug = ?", slug).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrOrganizationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("organization lookup: %w", err)
	}
	return &org, nil
}

type CreateOrganizationInput struct {
	Name             string
	Slug             string
	Domain           string
	Description      string
	Type             models.OrganizationType
	SubscriptionPlan models.SubscriptionPlan
}

// CreateOrganization creates the tenant and makes the creator its org_owner
// in one transaction.
func (s *Service) CreateOrganization(ctx context.Context, input CreateOrganizationInput, creatorID uuid.UUID) (*models.Organization, error) {
	slug := input.Slug
	if slug == "" {
		slug = GenerateSlug(input.Name)
	}

	var existing models.Organization
	if err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&existing).Error; err == nil {
		return nil, ErrSlugTaken
	}

	orgType := input.Type
	if orgType == "" {
		orgType = models.OrgTypeMarketing
	}
	plan := input.SubscriptionPlan
	if plan == "" {
		plan = models.PlanStarter
	}

	org := models.Organization{
		Name:             input.Name,
		Slug:             slug,
		Domain:           input.Domain,
		Description:      input.Description,
		Type:             orgType,
		SubscriptionPlan: plan,
		Settings:         models.JSONMap{},
		IsActive:         true,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&org).Error; err != nil {
			return err
		}

		membership := models.Membership{
			UserID:         creatorID,
			OrganizationID: org.ID,
			Role:           string(permissions.RoleOrgOwner),
			Permissions:    models.PermissionMap{permissions.Wildcard: true},
			JoinedAt:       time.Now(),
			IsActive:       true,
		}
		return tx.Create(&membership).Error
	})
	if err != nil {
		return nil, fmt.Errorf("creating organization: %w", err)
	}

	s.logger.Info("organization created", "org_id", org.ID, "slug", org.Slug, "creator", creatorID)
	return &org, nil
}

type UpdateOrganizationInput struct {
	Name             *string
	Domain           *string
	Description      *string
	Type             *models.OrganizationType
	SubscriptionPlan *models.SubscriptionPlan
	Settings         models.JSONMap
	IsActive         *bool
}

func (s *Service) UpdateOrganization(ctx context.Context, orgID uuid.UUID, input UpdateOrganizationInput) (*models.Organization, error) {
	org, err := s.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if input.Name != nil {
		updates["name"] = *input.Name
	}
	if input.Domain != nil {
		updates["domain"] = *input.Domain
	}
	if input.Description != nil {
		updates["description"] = *input.Description
	}
	if input.Type != nil {
		updates["type"] = *input.Type
	}
	if input.SubscriptionPlan != nil {
		updates["subscription_plan"] = *input.SubscriptionPlan
	}
	if input.Settings != nil {
		updates["settings"] = input.Settings
	}
	if input.IsActive != nil {
		updates["is_active"] = *input.IsActive
	}

	if len(updates) == 0 {
		return org, nil
	}

	if err := s.db.WithContext(ctx).Model(org).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("updating organization: %w", err)
	}

	return s.GetOrganization(ctx, orgID)
}

// ListMembers returns all active memberships of an organization with users.
func (s *Service) ListMembers(ctx context.Context, orgID uuid.UUID) ([]models.Membership, error) {
	var members []models.Membership
	err := s.db.WithContext(ctx).
		Where("organization_id = ? AND is_active = ?", orgID, true).
		Preload("User").
		Order("joined_at ASC").
		Find(&members).Error
	if err != nil {
		return nil, fmt.Errorf("members lookup: %w", err)
	}
	return members, nil
}

// InviteMember adds an existing user to the organization. A previously
// deactivated membership is reactivated with the new role. The granted role
// must be strictly lower than the inviter's own.
func (s *Service) InviteMember(ctx context.Context, orgID, inviterID uuid.UUID, actorRole permissions.Role, email string, role permissions.Role) (*models.Membership, error) {
	if !permissions.Valid(role) {
		return nil, ErrInvalidRole
	}
	if !permissions.Higher(actorRole, role) {
		return nil, ErrInsufficientRole
	}

	var user models.User
	err := s.db.WithContext(ctx).Where("email = ? AND is_active = ?", email, true).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user lookup: %w", err)
	}

	var existing models.Membership
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND organization_id = ?", user.ID, orgID).
		First(&existing).Error
	switch {
	case err == nil && existing.IsActive:
		return nil, ErrAlreadyMember
	case err == nil:
		existing.IsActive = true
		existing.Role = string(role)
		existing.InvitedBy = &inviterID
		existing.JoinedAt = time.Now()
		if err := s.db.WithContext(ctx).Save(&existing).Error; err != nil {
			return nil, fmt.Errorf("reactivating membership: %w", err)
		}
		s.invalidateMembership(ctx, user.ID, orgID)
		return &existing, nil
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("membership lookup: %w", err)
	}

	membership := models.Membership{
		UserID:         user.ID,
		OrganizationID: orgID,
		Role:           string(role),
		Permissions:    models.PermissionMap{},
		InvitedBy:      &inviterID,
		JoinedAt:       time.Now(),
		IsActive:       true,
	}
	if err := s.db.WithContext(ctx).Create(&membership).Error; err != nil {
		return nil, fmt.Errorf("creating membership: %w", err)
	}

	s.logger.Info("member invited", "org_id", orgID, "user_id", user.ID, "role", role)
	return &membership, nil
}

type UpdateMemberInput struct {
	Role        *permissions.Role
	Permissions models.PermissionMap
	IsActive    *bool
}

// UpdateMember changes a membership's role, overrides or active flag. The
// actor must strictly outrank the target, and role or override changes are
// reserved for admin-tier actors who also outrank the requested role, so a
// member can never grant themselves or a peer a higher tier.
func (s *Service) UpdateMember(ctx context.Context, orgID uuid.UUID, actorRole permissions.Role, membershipID uuid.UUID, input UpdateMemberInput) (*models.Membership, error) {
	var m models.Membership
	err := s.db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", membershipID, orgID).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrMembershipNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("membership lookup: %w", err)
	}

	if !permissions.Higher(actorRole, permissions.Role(m.Role)) {
		return nil, ErrInsufficientRole
	}

	if input.Role != nil {
		if !permissions.Valid(*input.Role) {
			return nil, ErrInvalidRole
		}
		if !permissions.IsAdminRole(actorRole) || !permissions.Higher(actorRole, *input.Role) {
			return nil, ErrInsufficientRole
		}
		m.Role = string(*input.Role)
	}
	if input.Permissions != nil {
		if !permissions.IsAdminRole(actorRole) {
			return nil, ErrInsufficientRole
		}
		m.Permissions = input.Permissions
	}
	if input.IsActive != nil {
		m.IsActive = *input.IsActive
	}

	if err := s.db.WithContext(ctx).Save(&m).Error; err != nil {
		return nil, fmt.Errorf("updating membership: %w", err)
	}

	s.invalidateMembership(ctx, m.UserID, orgID)
	return &m, nil
}

// RemoveMember deactivates a membership. The row is kept for audit history.
// The actor must strictly outrank the target, and the last active owner
// cannot be removed.
func (s *Service) RemoveMember(ctx context.Context, orgID uuid.UUID, actorRole permissions.Role, membershipID uuid.UUID) error {
	var m models.Membership
	err := s.db.WithContext(ctx).
		Where("id = ? AND organization_id = ? AND is_active = ?", membershipID, orgID, true).
		First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrMembershipNotFound
	}
	if err != nil {
		return fmt.Errorf("membership lookup: %w", err)
	}

	if permissions.Role(m.Role) == permissions.RoleOrgOwner {
		var owners int64
		err := s.db.WithContext(ctx).Model(&models.Membership{}).
			Where("organization_id = ? AND role = ? AND is_active = ?", orgID, string(permissions.RoleOrgOwner), true).
			Count(&owners).Error
		if err != nil {
			return fmt.Errorf("owner count: %w", err)
		}
		if owners <= 1 {
			return ErrLastOwner
		}
	}

	if !permissions.Higher(actorRole, permissions.Role(m.Role)) {
		return ErrInsufficientRole
	}

	if err := s.db.WithContext(ctx).Model(&m).Update("is_active", false).Error; err != nil {
		return fmt.Errorf("deactivating membership: %w", err)
	}

	s.invalidateMembership(ctx, m.UserID, orgID)
	s.logger.Info("member removed", "org_id", orgID, "user_id", m.UserID)
	return nil
}

func (s *Service) invalidateMembership(ctx context.Context, userID, orgID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, membershipCacheKey(userID, orgID)); err != nil {
		s.logger.Debug("membership cache invalidation failed", "error", err)
	}
}

var slugInvalid = regexp.MustCompile(`[^a-z0-9]+`)

// GenerateSlug derives a URL-safe slug from a name.
func GenerateSlug(name string) string {
	slug := slugInvalid.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}
