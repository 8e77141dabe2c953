package auth_test

import (
	"log/slog"
	"testing"

	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/auth"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/database/models"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/organizations"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/permissions"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/testutil"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/pkg/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*auth.Service, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })

	jwtSvc := testutil.CreateTestJWTService(t)
	orgSvc := organizations.NewService(db, cache.NewMemory(128), slog.Default())
	return auth.NewService(db, jwtSvc, orgSvc, slog.Default()), db
}

func TestRegister(t *testing.T) {
	svc, db := newTestService(t)
	ctx := testutil.TestContext(t)

	input := auth.RegisterInput{
		Email:    "founder@example.com",
		Password: "str0ng-password",
		Name:     "Founder",
		OrgName:  "Founder Co",
		OrgType:  models.OrgTypeMarketing,
	}

	t.Run("creates user, org and owner membership", func(t *testing.T) {
		result, err := svc.Register(ctx, input)
		require.NoError(t, err)

		assert.Equal(t, "founder@example.com", result.User.Email)
		assert.NotEqual(t, "str0ng-password", result.User.PasswordHash)
		assert.Equal(t, "Founder Co", result.Organization.Name)
		assert.Equal(t, string(permissions.RoleOrgOwner), result.Membership.Role)
		assert.NotEmpty(t, result.Tokens.AccessToken)
		assert.NotEmpty(t, result.Tokens.RefreshToken)

		var membership models.Membership
		require.NoError(t, db.Where("user_id = ?", result.User.ID).First(&membership).Error)
		assert.True(t, membership.Permissions[permissions.Wildcard])
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		_, err := svc.Register(ctx, input)
		assert.ErrorIs(t, err, auth.ErrUserExists)
	})

	t.Run("failed org create leaves no orphan user", func(t *testing.T) {
		// The org name collides with the first registration's slug, so the
		// whole flow must roll back.
		_, err := svc.Register(ctx, auth.RegisterInput{
			Email:    "second@example.com",
			Password: "str0ng-password",
			Name:     "Second",
			OrgName:  "Founder Co",
		})
		assert.ErrorIs(t, err, organizations.ErrSlugTaken)

		var count int64
		require.NoError(t, db.Model(&models.User{}).Where("email = ?", "second@example.com").Count(&count).Error)
		assert.Zero(t, count)

		// A retry with a free name succeeds instead of tripping the
		// duplicate-email check.
		result, err := svc.Register(ctx, auth.RegisterInput{
			Email:    "second@example.com",
			Password: "str0ng-password",
			Name:     "Second",
			OrgName:  "Second Co",
		})
		require.NoError(t, err)
		assert.Equal(t, "second@example.com", result.User.Email)
	})
}

func TestLogin(t *testing.T) {
	svc, db := newTestService(t)
	ctx := testutil.TestContext(t)

	registered, err := svc.Register(ctx, auth.RegisterInput{
		Email:    "user@example.com",
		Password: "str0ng-password",
		Name:     "User",
	})
	require.NoError(t, err)

	t.Run("valid credentials", func(t *testing.T) {
		result, err := svc.Login(ctx, "user@example.com", "str0ng-password")
		require.NoError(t, err)
		assert.Equal(t, registered.User.ID, result.User.ID)
		assert.Equal(t, registered.Organization.ID, result.Organization.ID)
		assert.NotEmpty(t, result.Tokens.AccessToken)

		var user models.User
		require.NoError(t, db.First(&user, "id = ?", result.User.ID).Error)
		assert.NotNil(t, user.LastLoginAt)
	})

	t.Run("token carries membership claims", func(t *testing.T) {
		result, err := svc.Login(ctx, "user@example.com", "str0ng-password")
		require.NoError(t, err)

		jwtSvc := testutil.CreateTestJWTService(t)
		claims, err := jwtSvc.ValidateAccessToken(result.Tokens.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, registered.Organization.ID, claims.OrganizationID)
		assert.Equal(t, string(permissions.RoleOrgOwner), claims.Role)
		assert.Contains(t, claims.Permissions, permissions.Wildcard)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, "user@example.com", "wrong-password")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		_, err := svc.Login(ctx, "nobody@example.com", "str0ng-password")
		assert.ErrorIs(t, err, auth.ErrInvalidCredentials)
	})

	t.Run("inactive user", func(t *testing.T) {
		require.NoError(t, db.Model(&models.User{}).
			Where("id = ?", registered.User.ID).
			Update("is_active", false).Error)
		t.Cleanup(func() {
			db.Model(&models.User{}).Where("id = ?", registered.User.ID).Update("is_active", true)
		})

		_, err := svc.Login(ctx, "user@example.com", "str0ng-password")
		assert.ErrorIs(t, err, auth.ErrInactiveUser)
	})
}

func TestRefresh(t *testing.T) {
	svc, db := newTestService(t)
	ctx := testutil.TestContext(t)

	registered, err := svc.Register(ctx, auth.RegisterInput{
		Email:    "refresh@example.com",
		Password: "str0ng-password",
		Name:     "Refresher",
	})
	require.NoError(t, err)

	jwtSvc := testutil.CreateTestJWTService(t)

	t.Run("issues fresh pair", func(t *testing.T) {
		result, err := svc.Refresh(ctx, registered.Tokens.RefreshToken, nil)
		require.NoError(t, err)
		assert.NotEmpty(t, result.Tokens.AccessToken)
		assert.Equal(t, registered.Organization.ID, result.Organization.ID)
	})

	t.Run("reflects role change since issue", func(t *testing.T) {
		// Demote the user after the refresh token was issued.
		require.NoError(t, db.Model(&models.Membership{}).
			Where("user_id = ? AND organization_id = ?", registered.User.ID, registered.Organization.ID).
			Updates(map[string]interface{}{
				"role":        string(permissions.RoleOrgViewer),
				"permissions": models.PermissionMap{},
			}).Error)

		result, err := svc.Refresh(ctx, registered.Tokens.RefreshToken, nil)
		require.NoError(t, err)

		claims, err := jwtSvc.ValidateAccessToken(result.Tokens.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, string(permissions.RoleOrgViewer), claims.Role)
		assert.NotContains(t, claims.Permissions, "users.create")
	})

	t.Run("access token rejected", func(t *testing.T) {
		_, err := svc.Refresh(ctx, registered.Tokens.AccessToken, nil)
		assert.ErrorIs(t, err, auth.ErrWrongTokenType)
	})

	t.Run("explicit org without membership", func(t *testing.T) {
		other, err := svc.Register(ctx, auth.RegisterInput{
			Email:    "other@example.com",
			Password: "str0ng-password",
			Name:     "Other",
		})
		require.NoError(t, err)

		_, err = svc.Refresh(ctx, registered.Tokens.RefreshToken, &other.Organization.ID)
		assert.ErrorIs(t, err, organizations.ErrMembershipNotFound)
	})

	t.Run("garbage token", func(t *testing.T) {
		_, err := svc.Refresh(ctx, "garbage", nil)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})
}
