package organizations_test

import (
	"log/slog"
	"testing"
	"time"

	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/database/models"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/organizations"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/permissions"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/testutil"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/pkg/cache"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*organizations.Service, *gorm.DB) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	t.Cleanup(func() { testutil.CleanupTestDB(t, db) })
	svc := organizations.NewService(db, cache.NewMemory(128), slog.Default())
	return svc, db
}

func TestHasAccess(t *testing.T) {
	svc, db := newTestService(t)
	ctx := testutil.TestContext(t)

	org := testutil.CreateTestOrg(t, db)
	user := testutil.CreateTestUser(t, db)

	t.Run("no membership", func(t *testing.T) {
		ok, err := svc.HasAccess(ctx, user.ID, org.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("active membership", func(t *testing.T) {
		testutil.CreateTestMembership(t, db, user, org, permissions.RoleOrgUser)
		ok, err := svc.HasAccess(ctx, user.ID, org.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("deactivated membership", func(t *testing.T) {
		otherOrg := testutil.CreateTestOrg(t, db)
		m := testutil.CreateTestMembership(t, db, user, otherOrg, permissions.RoleOrgUser)
		require.NoError(t, db.Model(m).Update("is_active", false).Error)

		ok, err := svc.HasAccess(ctx, user.ID, otherOrg.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestGetMembership(t *testing.T) {
	svc, db := newTestService(t)
	ctx := testutil.TestContext(t)

	org := testutil.CreateTestOrg(t, db)
	user := testutil.CreateTestUser(t, db)
	created := testutil.CreateTestMembership(t, db, user, org, permissions.RoleOrgAdmin)

	t.Run("found", func(t *testing.T) {
		m, err := svc.GetMembership(ctx, user.ID, org.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, m.ID)
		assert.Equal(t, string(permissions.RoleOrgAdmin), m.Role)
	})

	t.Run("cached read survives direct delete", func(t *testing.T) {
		// Prime the cache, then remove the row out from under it.
		_, err := svc.GetMembership(ctx, user.ID, org.ID)
		require.NoError(t, err)

		require.NoError(t, db.Unscoped().Delete(&models.Membership{}, "id = ?", created.ID).Error)

		m, err := svc.GetMembership(ctx, user.ID, org.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, m.ID)

		// Restore for later subtests.
		restored := *created
		require.NoError(t, db.Create(&restored).Error)
	})

	t.Run("unknown pair", func(t *testing.T) {
		_, err := svc.GetMembership(ctx, user.ID, uuid.New())
		assert.ErrorIs(t, err, organizations.ErrMembershipNotFound)
	})
}

func TestListMemberships(t *testing.T) {
	svc, db := newTestService(t)
	ctx := testutil.TestContext(t)

	user := testutil.CreateTestUser(t, db)

	first := testutil.CreateTestOrg(t, db)
	second := testutil.CreateTestOrg(t, db)
	inactive := testutil.CreateTestOrg(t, db)

	m1 := testutil.CreateTestMembership(t, db, user, first, permissions.RoleOrgOwner)
	m2 := testutil.CreateTestMembership(t, db, user, second, permissions.RoleOrgUser)
	testutil.CreateTestMembership(t, db, user, inactive, permissions.RoleOrgUser)

	// Force a deterministic join order and deactivate one org.
	require.NoError(t, db.Model(m1).Update("joined_at", time.Now().Add(-2*time.Hour)).Error)
	require.NoError(t, db.Model(m2).Update("joined_at", time.Now().Add(-time.Hour)).Error)
	require.NoError(t, db.Model(inactive).Update("is_active", false).Error)

	memberships, err := svc.ListMemberships(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, memberships, 2)

	assert.Equal(t, first.ID, memberships[0].OrganizationID)
	assert.Equal(t, second.ID, memberships[1].OrganizationID)
	assert.Equal(t, first.Slug, memberships[0].Organization.Slug)
}

func TestHasPermission(t *testing.T) {
	svc, db := newTestService(t)
	ctx := testutil.TestContext(t)

	org := testutil.CreateTestOrg(t, db)

	t.Run("super_admin bypasses the map", func(t *testing.T) {
		admin := testutil.CreateTestUser(t, db)
		testutil.CreateTestMembership(t, db, admin, org, permissions.RoleSuperAdmin)

		ok, err := svc.HasPermission(ctx, admin.ID, org.ID, "anything.at_all")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("wildcard grant", func(t *testing.T) {
		user := testutil.CreateTestUser(t, db)
		m := testutil.CreateTestMembership(t, db, user, org, permissions.RoleOrgOwner)
		m.Permissions = models.PermissionMap{permissions.Wildcard: true}
		require.NoError(t, db.Save(m).Error)

		ok, err := svc.HasPermission(ctx, user.ID, org.ID, "campaigns.delete")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("explicit grant and denial", func(t *testing.T) {
		user := testutil.CreateTestUser(t, db)
		m := testutil.CreateTestMembership(t, db, user, org, permissions.RoleOrgViewer)
		m.Permissions = models.PermissionMap{"campaigns.read": true}
		require.NoError(t, db.Save(m).Error)

		ok, err := svc.HasPermission(ctx, user.ID, org.ID, "campaigns.read")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = svc.HasPermission(ctx, user.ID, org.ID, "campaigns.delete")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("no membership denies", func(t *testing.T) {
		stranger := testutil.CreateTestUser(t, db)
		ok, err := svc.HasPermission(ctx, stranger.ID, org.ID, "campaigns.read")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestSwitchContext(t *testing.T) {
	svc, db := newTestService(t)
	ctx := testutil.TestContext(t)

	org := testutil.CreateTestOrg(t, db)
	user := testutil.CreateTestUser(t, db)
	testutil.CreateTestMembership(t, db, user, org, permissions.RoleOrgManager)

	t.Run("member", func(t *testing.T) {
		uo, err := svc.SwitchContext(ctx, user.ID, org.ID)
		require.NoError(t, err)
		assert.Equal(t, org.ID, uo.Organization.ID)
		assert.Equal(t, string(permissions.RoleOrgManager), uo.Membership.Role)
	})

	t.Run("non-member", func(t *testing.T) {
		otherOrg := testutil.CreateTestOrg(t, db)
		_, err := svc.SwitchContext(ctx, user.ID, otherOrg.ID)
		assert.ErrorIs(t, err, organizations.ErrMembershipNotFound)
	})
}

func TestCreateOrganization(t *testing.T) {
	svc, db := newTestService(t)
	ctx := testutil.TestContext(t)

	creator := testutil.CreateTestUser(t, db)

	t.Run("creates owner membership", func(t *testing.T) {
		org, err := svc.CreateOrganization(ctx, organizations.CreateOrganizationInput{
			Name: "Acme Marketing",
			Type: models.OrgTypeMarketing,
		}, creator.ID)
		require.NoError(t, err)
		assert.Equal(t, "acme-marketing", org.Slug)

		m, err := svc.GetMembership(ctx, creator.ID, org.ID)
		require.NoError(t, err)
		assert.Equal(t, string(permissions.RoleOrgOwner), m.Role)
		assert.True(t, m.Permissions[permissions.Wildcard])
	})

	t.Run("duplicate slug rejected", func(t *testing.T) {
		_, err := svc.CreateOrganization(ctx, organizations.CreateOrganizationInput{
			Name: "Acme Marketing",
		}, creator.ID)
		assert.ErrorIs(t, err, organizations.ErrSlugTaken)
	})
}

func TestInviteMember(t *testing.T) {
	svc, db := newTestService(t)
	ctx := testutil.TestContext(t)

	org := testutil.CreateTestOrg(t, db)
	owner := testutil.CreateTestUser(t, db)
	testutil.CreateTestMembership(t, db, owner, org, permissions.RoleOrgOwner)

	invitee := testutil.CreateTestUser(t, db)

	t.Run("unknown email", func(t *testing.T) {
		_, err := svc.InviteMember(ctx, org.ID, owner.ID, permissions.RoleOrgOwner, "nobody@example.com", permissions.RoleOrgUser)
		assert.ErrorIs(t, err, organizations.ErrUserNotFound)
	})

	t.Run("invalid role", func(t *testing.T) {
		_, err := svc.InviteMember(ctx, org.ID, owner.ID, permissions.RoleOrgOwner, invitee.Email, permissions.Role("king"))
		assert.ErrorIs(t, err, organizations.ErrInvalidRole)
	})

	t.Run("cannot grant a role at or above the inviter's", func(t *testing.T) {
		_, err := svc.InviteMember(ctx, org.ID, owner.ID, permissions.RoleOrgManager, invitee.Email, permissions.RoleOrgAdmin)
		assert.ErrorIs(t, err, organizations.ErrInsufficientRole)

		_, err = svc.InviteMember(ctx, org.ID, owner.ID, permissions.RoleOrgManager, invitee.Email, permissions.RoleOrgManager)
		assert.ErrorIs(t, err, organizations.ErrInsufficientRole)
	})

	t.Run("invite", func(t *testing.T) {
		m, err := svc.InviteMember(ctx, org.ID, owner.ID, permissions.RoleOrgOwner, invitee.Email, permissions.RoleOrgUser)
		require.NoError(t, err)
		assert.Equal(t, string(permissions.RoleOrgUser), m.Role)
		require.NotNil(t, m.InvitedBy)
		assert.Equal(t, owner.ID, *m.InvitedBy)
	})

	t.Run("double invite rejected", func(t *testing.T) {
		_, err := svc.InviteMember(ctx, org.ID, owner.ID, permissions.RoleOrgOwner, invitee.Email, permissions.RoleOrgUser)
		assert.ErrorIs(t, err, organizations.ErrAlreadyMember)
	})

	t.Run("reactivates removed member", func(t *testing.T) {
		var m models.Membership
		require.NoError(t, db.Where("user_id = ? AND organization_id = ?", invitee.ID, org.ID).First(&m).Error)
		require.NoError(t, db.Model(&m).Update("is_active", false).Error)

		reinvited, err := svc.InviteMember(ctx, org.ID, owner.ID, permissions.RoleOrgOwner, invitee.Email, permissions.RoleOrgManager)
		require.NoError(t, err)
		assert.True(t, reinvited.IsActive)
		assert.Equal(t, string(permissions.RoleOrgManager), reinvited.Role)
	})
}

func TestUpdateMember(t *testing.T) {
	svc, db := newTestService(t)
	ctx := testutil.TestContext(t)

	org := testutil.CreateTestOrg(t, db)
	user := testutil.CreateTestUser(t, db)
	m := testutil.CreateTestMembership(t, db, user, org, permissions.RoleOrgUser)

	t.Run("member cannot raise their own role", func(t *testing.T) {
		newRole := permissions.RoleOrgOwner
		_, err := svc.UpdateMember(ctx, org.ID, permissions.RoleOrgUser, m.ID, organizations.UpdateMemberInput{Role: &newRole})
		assert.ErrorIs(t, err, organizations.ErrInsufficientRole)

		var kept models.Membership
		require.NoError(t, db.First(&kept, "id = ?", m.ID).Error)
		assert.Equal(t, string(permissions.RoleOrgUser), kept.Role)
	})

	t.Run("actor must outrank the requested role", func(t *testing.T) {
		newRole := permissions.RoleOrgAdmin
		_, err := svc.UpdateMember(ctx, org.ID, permissions.RoleOrgAdmin, m.ID, organizations.UpdateMemberInput{Role: &newRole})
		assert.ErrorIs(t, err, organizations.ErrInsufficientRole)
	})

	t.Run("non-admin cannot grant overrides", func(t *testing.T) {
		_, err := svc.UpdateMember(ctx, org.ID, permissions.RoleOrgManager, m.ID, organizations.UpdateMemberInput{
			Permissions: models.PermissionMap{permissions.Wildcard: true},
		})
		assert.ErrorIs(t, err, organizations.ErrInsufficientRole)
	})

	t.Run("role change is visible immediately", func(t *testing.T) {
		// Prime the membership cache first.
		_, err := svc.GetMembership(ctx, user.ID, org.ID)
		require.NoError(t, err)

		newRole := permissions.RoleOrgAdmin
		updated, err := svc.UpdateMember(ctx, org.ID, permissions.RoleOrgOwner, m.ID, organizations.UpdateMemberInput{Role: &newRole})
		require.NoError(t, err)
		assert.Equal(t, string(permissions.RoleOrgAdmin), updated.Role)

		fresh, err := svc.GetMembership(ctx, user.ID, org.ID)
		require.NoError(t, err)
		assert.Equal(t, string(permissions.RoleOrgAdmin), fresh.Role)
	})

	t.Run("unknown membership", func(t *testing.T) {
		newRole := permissions.RoleOrgUser
		_, err := svc.UpdateMember(ctx, org.ID, permissions.RoleOrgOwner, uuid.New(), organizations.UpdateMemberInput{Role: &newRole})
		assert.ErrorIs(t, err, organizations.ErrMembershipNotFound)
	})
}

func TestRemoveMember(t *testing.T) {
	svc, db := newTestService(t)
	ctx := testutil.TestContext(t)

	org := testutil.CreateTestOrg(t, db)
	owner := testutil.CreateTestUser(t, db)
	ownerM := testutil.CreateTestMembership(t, db, owner, org, permissions.RoleOrgOwner)

	t.Run("last owner protected", func(t *testing.T) {
		err := svc.RemoveMember(ctx, org.ID, permissions.RoleSuperAdmin, ownerM.ID)
		assert.ErrorIs(t, err, organizations.ErrLastOwner)
	})

	t.Run("admin cannot remove an owner", func(t *testing.T) {
		coOwner := testutil.CreateTestUser(t, db)
		coOwnerM := testutil.CreateTestMembership(t, db, coOwner, org, permissions.RoleOrgOwner)

		err := svc.RemoveMember(ctx, org.ID, permissions.RoleOrgAdmin, coOwnerM.ID)
		assert.ErrorIs(t, err, organizations.ErrInsufficientRole)

		ok, err := svc.HasAccess(ctx, coOwner.ID, org.ID)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("deactivates regular member", func(t *testing.T) {
		user := testutil.CreateTestUser(t, db)
		m := testutil.CreateTestMembership(t, db, user, org, permissions.RoleOrgUser)

		require.NoError(t, svc.RemoveMember(ctx, org.ID, permissions.RoleOrgOwner, m.ID))

		ok, err := svc.HasAccess(ctx, user.ID, org.ID)
		require.NoError(t, err)
		assert.False(t, ok)

		// Row survives deactivation.
		var kept models.Membership
		require.NoError(t, db.First(&kept, "id = ?", m.ID).Error)
		assert.False(t, kept.IsActive)
	})
}

func TestGenerateSlug(t *testing.T) {
	assert.Equal(t, "acme-marketing", organizations.GenerateSlug("Acme Marketing"))
	assert.Equal(t, "a-b-c", organizations.GenerateSlug("  A&B/C  "))
	assert.Equal(t, "org-42", organizations.GenerateSlug("Org 42"))
}
