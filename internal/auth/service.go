package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/database/models"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/organizations"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/permissions"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInactiveUser       = errors.New("user account is inactive")
	ErrUserNotFound       = errors.New("user not found")
)

// Service handles registration, login and token refresh. Role and permission
// claims are always read from the membership store at issue time, never from
// a previous token.
type Service struct {
	db     *gorm.DB
	jwt    *JWTService
	orgs   *organizations.Service
	logger *slog.Logger
}

func NewService(db *gorm.DB, jwt *JWTService, orgs *organizations.Service, logger *slog.Logger) *Service {
	return &Service{db: db, jwt: jwt, orgs: orgs, logger: logger}
}

type RegisterInput struct {
	Email    string
	Password string
	Name     string
	OrgName  string
	OrgType  models.OrganizationType
}

// AuthResult is what a successful register, login or refresh returns.
type AuthResult struct {
	User         *models.User
	Organization *models.Organization
	Membership   *models.Membership
	Tokens       *TokenPair
}

// Register creates the user, their first organization, and the owner
// membership, then issues tokens bound to that organization.
func (s *Service) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	var existing models.User
	err := s.db.WithContext(ctx).Where("email = ?", input.Email).First(&existing).Error
	if err == nil {
		return nil, ErrUserExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user lookup: %w", err)
	}

	hash, err := HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := models.User{
		Email:        input.Email,
		PasswordHash: hash,
		Name:         input.Name,
		IsActive:     true,
	}

	orgName := input.OrgName
	if orgName == "" {
		orgName = input.Name + "'s Organization"
	}

	// User, organization and owner membership land atomically; a failed org
	// create must not leave an orphan user behind.
	var org *models.Organization
	var membership *models.Membership
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return fmt.Errorf("creating user: %w", err)
		}

		orgs := s.orgs.WithTx(tx)
		org, err = orgs.CreateOrganization(ctx, organizations.CreateOrganizationInput{
			Name: orgName,
			Type: input.OrgType,
		}, user.ID)
		if err != nil {
			return err
		}

		membership, err = orgs.GetMembership(ctx, user.ID, org.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	tokens, err := s.issueTokens(&user, membership)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "user_id", user.ID, "org_id", org.ID)
	return &AuthResult{User: &user, Organization: org, Membership: membership, Tokens: tokens}, nil
}

// Login verifies credentials and issues tokens bound to the user's default
// organization: the earliest-joined active membership. A user with no
// memberships still gets a session, without tenant claims.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	var user models.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("user lookup: %w", err)
	}

	if !CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}

	memberships, err := s.orgs.ListMemberships(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	result := &AuthResult{User: &user}
	var membership *models.Membership
	if len(memberships) > 0 {
		membership = &memberships[0]
		result.Membership = membership
		result.Organization = membership.Organization
	}

	tokens, err := s.issueTokens(&user, membership)
	if err != nil {
		return nil, err
	}
	result.Tokens = tokens

	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&user).Update("last_login_at", now).Error; err != nil {
		s.logger.Warn("failed to record login time", "user_id", user.ID, "error", err)
	}

	s.logger.Info("user logged in", "user_id", user.ID)
	return result, nil
}

// Refresh exchanges a refresh token for a new pair. Membership truth is
// re-read from the database, so role changes and revoked memberships since
// the last issue take effect here. When orgID is nil the current default
// organization is used.
func (s *Service) Refresh(ctx context.Context, refreshToken string, orgID *uuid.UUID) (*AuthResult, error) {
	userID, err := s.jwt.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInactiveUser
	}

	var membership *models.Membership
	var org *models.Organization
	if orgID != nil {
		uo, err := s.orgs.SwitchContext(ctx, userID, *orgID)
		if err != nil {
			return nil, err
		}
		membership = &uo.Membership
		org = &uo.Organization
	} else {
		memberships, err := s.orgs.ListMemberships(ctx, userID)
		if err != nil {
			return nil, err
		}
		if len(memberships) > 0 {
			membership = &memberships[0]
			org = membership.Organization
		}
	}

	tokens, err := s.issueTokens(user, membership)
	if err != nil {
		return nil, err
	}

	return &AuthResult{User: user, Organization: org, Membership: membership, Tokens: tokens}, nil
}

func (s *Service) GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("user lookup: %w", err)
	}
	return &user, nil
}

func (s *Service) issueTokens(user *models.User, m *models.Membership) (*TokenPair, error) {
	if m == nil {
		return s.jwt.GenerateTokenPair(user.ID, user.Email, uuid.Nil, "", nil)
	}

	role := permissions.Role(m.Role)
	perms := permissions.Effective(role, m.Permissions)
	return s.jwt.GenerateTokenPair(user.ID, user.Email, m.OrganizationID, m.Role, perms)
}
