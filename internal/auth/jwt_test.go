package auth_test

import (
	"testing"
	"time"

	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/auth"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJWTService(t *testing.T) {
	t.Run("rejects short secret", func(t *testing.T) {
		_, err := auth.NewJWTService("too-short", time.Hour, 24*time.Hour)
		assert.ErrorIs(t, err, auth.ErrWeakSecret)
	})

	t.Run("accepts long secret", func(t *testing.T) {
		svc, err := auth.NewJWTService(testutil.TestJWTSecret, time.Hour, 24*time.Hour)
		require.NoError(t, err)
		assert.NotNil(t, svc)
	})
}

func TestTokenRoundTrip(t *testing.T) {
	svc := testutil.CreateTestJWTService(t)

	userID := uuid.New()
	orgID := uuid.New()
	perms := []string{"campaigns.read", "campaigns.create"}

	pair, err := svc.GenerateTokenPair(userID, "user@example.com", orgID, "org_admin", perms)
	require.NoError(t, err)
	assert.Equal(t, int64(3600), pair.ExpiresIn)

	claims, err := svc.ValidateAccessToken(pair.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.Equal(t, orgID, claims.OrganizationID)
	assert.Equal(t, "org_admin", claims.Role)
	assert.Equal(t, perms, claims.Permissions)

	refreshUserID, err := svc.ValidateRefreshToken(pair.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, userID, refreshUserID)
}

func TestTokenTypeSeparation(t *testing.T) {
	svc := testutil.CreateTestJWTService(t)

	pair, err := svc.GenerateTokenPair(uuid.New(), "user@example.com", uuid.New(), "org_user", nil)
	require.NoError(t, err)

	t.Run("refresh token rejected as access", func(t *testing.T) {
		_, err := svc.ValidateAccessToken(pair.RefreshToken)
		assert.ErrorIs(t, err, auth.ErrWrongTokenType)
	})

	t.Run("access token rejected as refresh", func(t *testing.T) {
		_, err := svc.ValidateRefreshToken(pair.AccessToken)
		assert.ErrorIs(t, err, auth.ErrWrongTokenType)
	})
}

func TestTokenValidationFailures(t *testing.T) {
	svc := testutil.CreateTestJWTService(t)

	t.Run("tampered token", func(t *testing.T) {
		pair, err := svc.GenerateTokenPair(uuid.New(), "user@example.com", uuid.New(), "org_user", nil)
		require.NoError(t, err)

		tampered := pair.AccessToken[:len(pair.AccessToken)-4] + "XXXX"
		_, err = svc.ValidateAccessToken(tampered)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("wrong signing key", func(t *testing.T) {
		other, err := auth.NewJWTService("another-secret-key-of-sufficient-length", time.Hour, 24*time.Hour)
		require.NoError(t, err)

		pair, err := other.GenerateTokenPair(uuid.New(), "user@example.com", uuid.New(), "org_user", nil)
		require.NoError(t, err)

		_, err = svc.ValidateAccessToken(pair.AccessToken)
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})

	t.Run("expired token", func(t *testing.T) {
		expired, err := auth.NewJWTService(testutil.TestJWTSecret, -time.Minute, -time.Minute)
		require.NoError(t, err)

		pair, err := expired.GenerateTokenPair(uuid.New(), "user@example.com", uuid.New(), "org_user", nil)
		require.NoError(t, err)

		_, err = svc.ValidateAccessToken(pair.AccessToken)
		assert.ErrorIs(t, err, auth.ErrExpiredToken)
	})

	t.Run("garbage input", func(t *testing.T) {
		_, err := svc.ValidateAccessToken("not-a-token")
		assert.ErrorIs(t, err, auth.ErrInvalidToken)
	})
}
