package api_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/activity"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/api"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/api/dto"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/api/middleware"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/auth"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/database/models"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/organizations"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/permissions"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/testutil"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/pkg/cache"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/pkg/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type routerFixture struct {
	db     *gorm.DB
	jwt    *auth.JWTService
	orgs   *organizations.Service
	router http.Handler
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()

	db := testutil.SetupTestDB(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	jwtService := testutil.CreateTestJWTService(t)
	orgService := organizations.NewService(db, cache.NewMemory(128), logger)
	authService := auth.NewService(db, jwtService, orgService, logger)
	recorder := activity.NewRecorder(db, nil, logger)

	encryptor, err := crypto.NewEncryptor("")
	require.NoError(t, err)

	router := api.NewRouter(api.RouterConfig{
		DB:          db,
		Logger:      logger,
		JWTService:  jwtService,
		AuthService: authService,
		OrgService:  orgService,
		Recorder:    recorder,
		Encryptor:   encryptor,
	})

	return &routerFixture{db: db, jwt: jwtService, orgs: orgService, router: router}
}

func (f *routerFixture) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.AuthenticatedRequest(t, method, path, body, token)
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

// register runs the full registration flow and returns the parsed response.
func (f *routerFixture) register(t *testing.T, email, name string) dto.AuthResponse {
	t.Helper()
	rr := f.do(t, http.MethodPost, "/api/v1/auth/register", dto.RegisterRequest{
		Email:    email,
		Password: "SuperSecret1!",
		Name:     name,
	}, "")
	testutil.AssertStatus(t, rr, http.StatusCreated)

	var resp dto.AuthResponse
	testutil.ParseJSONResponse(t, rr, &resp)
	return resp
}

func TestRouter_Health(t *testing.T) {
	f := newRouterFixture(t)

	rr := f.do(t, http.MethodGet, "/health", nil, "")
	testutil.AssertStatus(t, rr, http.StatusOK)

	rr = f.do(t, http.MethodGet, "/ready", nil, "")
	testutil.AssertStatus(t, rr, http.StatusOK)
}

func TestRouter_AuthFlow(t *testing.T) {
	f := newRouterFixture(t)

	t.Run("register creates user and organization", func(t *testing.T) {
		resp := f.register(t, "founder@example.com", "Founder")

		assert.NotEmpty(t, resp.AccessToken)
		assert.NotEmpty(t, resp.RefreshToken)
		require.NotNil(t, resp.Organization)
		assert.Equal(t, "org_owner", resp.Organization.Role)
		assert.Equal(t, "Founder's Organization", resp.Organization.Name)
	})

	t.Run("duplicate email rejected", func(t *testing.T) {
		rr := f.do(t, http.MethodPost, "/api/v1/auth/register", dto.RegisterRequest{
			Email:    "founder@example.com",
			Password: "SuperSecret1!",
			Name:     "Founder Again",
		}, "")
		testutil.AssertStatus(t, rr, http.StatusConflict)
	})

	t.Run("login returns tokens bound to the default organization", func(t *testing.T) {
		rr := f.do(t, http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{
			Email:    "founder@example.com",
			Password: "SuperSecret1!",
		}, "")
		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp dto.AuthResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		require.NotNil(t, resp.Organization)
		assert.Equal(t, "org_owner", resp.Organization.Role)
	})

	t.Run("wrong password rejected", func(t *testing.T) {
		rr := f.do(t, http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{
			Email:    "founder@example.com",
			Password: "wrong-password",
		}, "")
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})

	t.Run("refresh issues a fresh pair", func(t *testing.T) {
		reg := f.register(t, "refresher@example.com", "Refresher")

		rr := f.do(t, http.MethodPost, "/api/v1/auth/refresh", dto.RefreshRequest{
			RefreshToken: reg.RefreshToken,
		}, "")
		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp dto.AuthResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.NotEmpty(t, resp.AccessToken)
		require.NotNil(t, resp.Organization)
		assert.Equal(t, reg.Organization.ID, resp.Organization.ID)
	})

	t.Run("refresh with access token rejected", func(t *testing.T) {
		reg := f.register(t, "confused@example.com", "Confused")

		rr := f.do(t, http.MethodPost, "/api/v1/auth/refresh", dto.RefreshRequest{
			RefreshToken: reg.AccessToken,
		}, "")
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)
	})

	t.Run("status without a token", func(t *testing.T) {
		rr := f.do(t, http.MethodGet, "/api/v1/auth/status", nil, "")
		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp struct {
			Authenticated bool `json:"authenticated"`
		}
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.False(t, resp.Authenticated)
	})

	t.Run("status with a valid token", func(t *testing.T) {
		reg := f.register(t, "status@example.com", "Status")

		rr := f.do(t, http.MethodGet, "/api/v1/auth/status", nil, reg.AccessToken)
		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp struct {
			Authenticated bool        `json:"authenticated"`
			User          dto.UserDTO `json:"user"`
		}
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.True(t, resp.Authenticated)
		assert.Equal(t, "status@example.com", resp.User.Email)
	})

	t.Run("me lists all memberships", func(t *testing.T) {
		reg := f.register(t, "member@example.com", "Member")

		rr := f.do(t, http.MethodGet, "/api/v1/me", nil, reg.AccessToken)
		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp struct {
			User          dto.UserDTO           `json:"user"`
			Organizations []dto.OrganizationDTO `json:"organizations"`
		}
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, "member@example.com", resp.User.Email)
		require.Len(t, resp.Organizations, 1)
		assert.Equal(t, reg.Organization.ID, resp.Organizations[0].ID)
	})
}

func TestRouter_TenantBinding(t *testing.T) {
	f := newRouterFixture(t)

	owner := f.register(t, "owner@example.com", "Owner")
	stranger := f.register(t, "stranger@example.com", "Stranger")

	t.Run("explicit header binds the tenant", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, http.MethodGet, "/api/v1/organizations/current", nil, owner.AccessToken)
		req.Header.Set(middleware.OrgHeader, owner.Organization.ID)
		rr := httptest.NewRecorder()
		f.router.ServeHTTP(rr, req)
		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp struct {
			Organization models.Organization `json:"organization"`
			Role         string              `json:"role"`
			Permissions  []string            `json:"permissions"`
		}
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, owner.Organization.ID, resp.Organization.ID.String())
		assert.Equal(t, "org_owner", resp.Role)
		assert.Contains(t, resp.Permissions, permissions.Wildcard)
	})

	t.Run("no header auto-selects the only membership", func(t *testing.T) {
		rr := f.do(t, http.MethodGet, "/api/v1/organizations/current", nil, owner.AccessToken)
		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp struct {
			Organization models.Organization `json:"organization"`
		}
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, owner.Organization.ID, resp.Organization.ID.String())
	})

	t.Run("header naming an inaccessible org is rejected", func(t *testing.T) {
		req := testutil.AuthenticatedRequest(t, http.MethodGet, "/api/v1/organizations/current", nil, stranger.AccessToken)
		req.Header.Set(middleware.OrgHeader, owner.Organization.ID)
		rr := httptest.NewRecorder()
		f.router.ServeHTTP(rr, req)
		testutil.AssertStatus(t, rr, http.StatusForbidden)

		var resp dto.ErrorResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, dto.CodeOrgContextRequired, resp.Code)
	})

	t.Run("missing token rejected", func(t *testing.T) {
		rr := f.do(t, http.MethodGet, "/api/v1/organizations/current", nil, "")
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)

		var resp dto.ErrorResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, dto.CodeAuthRequired, resp.Code)
	})

	t.Run("expired token rejected", func(t *testing.T) {
		expiredJWT, err := auth.NewJWTService(testutil.TestJWTSecret, -time.Minute, time.Hour)
		require.NoError(t, err)
		token, err := expiredJWT.GenerateAccessToken(uuid.New(), "old@example.com", uuid.New(), "org_owner", nil)
		require.NoError(t, err)

		rr := f.do(t, http.MethodGet, "/api/v1/organizations/current", nil, token)
		testutil.AssertStatus(t, rr, http.StatusUnauthorized)

		var resp dto.ErrorResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Equal(t, dto.CodeInvalidToken, resp.Code)
	})

	t.Run("get by id hides foreign organizations", func(t *testing.T) {
		rr := f.do(t, http.MethodGet, "/api/v1/organizations/"+owner.Organization.ID, nil, owner.AccessToken)
		testutil.AssertStatus(t, rr, http.StatusOK)

		rr = f.do(t, http.MethodGet, "/api/v1/organizations/"+owner.Organization.ID, nil, stranger.AccessToken)
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})

	t.Run("switch validates access", func(t *testing.T) {
		rr := f.do(t, http.MethodPost, "/api/v1/organizations/"+owner.Organization.ID+"/switch", nil, owner.AccessToken)
		testutil.AssertStatus(t, rr, http.StatusOK)

		rr = f.do(t, http.MethodPost, "/api/v1/organizations/"+owner.Organization.ID+"/switch", nil, stranger.AccessToken)
		testutil.AssertStatus(t, rr, http.StatusForbidden)
	})
}

func TestRouter_MemberManagement(t *testing.T) {
	f := newRouterFixture(t)

	owner := f.register(t, "boss@example.com", "Boss")
	_ = f.register(t, "newhire@example.com", "New Hire")

	t.Run("owner invites a member", func(t *testing.T) {
		rr := f.do(t, http.MethodPost, "/api/v1/organizations/current/members", map[string]string{
			"email": "newhire@example.com",
			"role":  "org_viewer",
		}, owner.AccessToken)
		testutil.AssertStatus(t, rr, http.StatusCreated)
	})

	t.Run("viewer cannot invite", func(t *testing.T) {
		// Log the viewer in so their token is bound to the owner's org.
		rr := f.do(t, http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{
			Email:    "newhire@example.com",
			Password: "SuperSecret1!",
		}, "")
		testutil.AssertStatus(t, rr, http.StatusOK)
		var viewer dto.AuthResponse
		testutil.ParseJSONResponse(t, rr, &viewer)

		req := testutil.AuthenticatedRequest(t, http.MethodPost, "/api/v1/organizations/current/members", map[string]string{
			"email": "boss@example.com",
			"role":  "org_admin",
		}, viewer.AccessToken)
		req.Header.Set(middleware.OrgHeader, owner.Organization.ID)
		recorder := httptest.NewRecorder()
		f.router.ServeHTTP(recorder, req)
		testutil.AssertStatus(t, recorder, http.StatusForbidden)

		var resp dto.ErrorResponse
		testutil.ParseJSONResponse(t, recorder, &resp)
		assert.Equal(t, dto.CodePermissionDenied, resp.Code)
	})

	t.Run("member cannot promote themselves to owner", func(t *testing.T) {
		staffer := f.register(t, "staffer@example.com", "Staffer")

		rr := f.do(t, http.MethodPost, "/api/v1/organizations/current/members", map[string]string{
			"email": "staffer@example.com",
			"role":  "org_user",
		}, owner.AccessToken)
		testutil.AssertStatus(t, rr, http.StatusCreated)

		stafferID, err := uuid.Parse(staffer.User.ID)
		require.NoError(t, err)
		orgID, err := uuid.Parse(owner.Organization.ID)
		require.NoError(t, err)

		var m models.Membership
		require.NoError(t, f.db.Where("user_id = ? AND organization_id = ?", stafferID, orgID).First(&m).Error)

		req := testutil.AuthenticatedRequest(t, http.MethodPut, "/api/v1/organizations/current/members/"+m.ID.String(), map[string]string{
			"role": "org_owner",
		}, staffer.AccessToken)
		req.Header.Set(middleware.OrgHeader, owner.Organization.ID)
		recorder := httptest.NewRecorder()
		f.router.ServeHTTP(recorder, req)
		testutil.AssertStatus(t, recorder, http.StatusForbidden)

		var resp dto.ErrorResponse
		testutil.ParseJSONResponse(t, recorder, &resp)
		assert.Equal(t, dto.CodeRoleDenied, resp.Code)

		var kept models.Membership
		require.NoError(t, f.db.First(&kept, "id = ?", m.ID).Error)
		assert.Equal(t, "org_user", kept.Role)
	})

	t.Run("unknown email is a 404", func(t *testing.T) {
		rr := f.do(t, http.MethodPost, "/api/v1/organizations/current/members", map[string]string{
			"email": "ghost@example.com",
			"role":  "org_user",
		}, owner.AccessToken)
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})

	t.Run("removing the only owner is a conflict", func(t *testing.T) {
		orgID, err := uuid.Parse(owner.Organization.ID)
		require.NoError(t, err)

		var m models.Membership
		err = f.db.Where("organization_id = ? AND role = ?", orgID, "org_owner").First(&m).Error
		require.NoError(t, err)

		rr := f.do(t, http.MethodDelete, "/api/v1/organizations/current/members/"+m.ID.String(), nil, owner.AccessToken)
		testutil.AssertStatus(t, rr, http.StatusConflict)
	})
}

func TestRouter_Automations(t *testing.T) {
	f := newRouterFixture(t)
	owner := f.register(t, "marketer@example.com", "Marketer")

	var automationID string

	t.Run("create", func(t *testing.T) {
		rr := f.do(t, http.MethodPost, "/api/v1/automations", map[string]interface{}{
			"name":      "Morning digest",
			"cron_expr": "0 9 * * *",
			"trigger":   map[string]interface{}{"type": "schedule"},
			"actions":   map[string]interface{}{"steps": []interface{}{map[string]interface{}{"type": "notify", "message": "digest"}}},
		}, owner.AccessToken)
		testutil.AssertStatus(t, rr, http.StatusCreated)

		var created models.Automation
		testutil.ParseJSONResponse(t, rr, &created)
		assert.Equal(t, owner.Organization.ID, created.OrganizationID.String())
		assert.NotNil(t, created.NextRunAt)
		automationID = created.ID.String()
	})

	t.Run("invalid cron rejected", func(t *testing.T) {
		rr := f.do(t, http.MethodPost, "/api/v1/automations", map[string]interface{}{
			"name":      "Broken",
			"cron_expr": "not a cron",
		}, owner.AccessToken)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("created disabled stays disabled", func(t *testing.T) {
		rr := f.do(t, http.MethodPost, "/api/v1/automations", map[string]interface{}{
			"name":      "Paused import",
			"is_active": false,
			"trigger":   map[string]interface{}{"type": "manual"},
			"actions":   map[string]interface{}{"steps": []interface{}{}},
		}, owner.AccessToken)
		testutil.AssertStatus(t, rr, http.StatusCreated)

		var created models.Automation
		testutil.ParseJSONResponse(t, rr, &created)
		assert.False(t, created.IsActive)

		var stored models.Automation
		require.NoError(t, f.db.First(&stored, "id = ?", created.ID).Error)
		assert.False(t, stored.IsActive)
	})

	t.Run("list is tenant scoped", func(t *testing.T) {
		other := f.register(t, "other@example.com", "Other")

		rr := f.do(t, http.MethodGet, "/api/v1/automations", nil, other.AccessToken)
		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp dto.PaginatedResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.EqualValues(t, 0, resp.Total)
	})

	t.Run("run without a queue is unavailable", func(t *testing.T) {
		rr := f.do(t, http.MethodPost, "/api/v1/automations/"+automationID+"/run", nil, owner.AccessToken)
		testutil.AssertStatus(t, rr, http.StatusServiceUnavailable)
	})

	t.Run("foreign automation is not found", func(t *testing.T) {
		other := f.register(t, "intruder@example.com", "Intruder")

		rr := f.do(t, http.MethodGet, "/api/v1/automations/"+automationID, nil, other.AccessToken)
		testutil.AssertStatus(t, rr, http.StatusNotFound)
	})
}

func TestRouter_Campaigns(t *testing.T) {
	f := newRouterFixture(t)
	owner := f.register(t, "growth@example.com", "Growth")

	var campaignID string

	t.Run("create with audience", func(t *testing.T) {
		rr := f.do(t, http.MethodPost, "/api/v1/audiences", map[string]interface{}{
			"name": "Newsletter subscribers",
		}, owner.AccessToken)
		testutil.AssertStatus(t, rr, http.StatusCreated)

		var audience models.Audience
		testutil.ParseJSONResponse(t, rr, &audience)

		audienceID := audience.ID.String()
		rr = f.do(t, http.MethodPost, "/api/v1/campaigns", map[string]interface{}{
			"name":        "Spring launch",
			"channel":     "email",
			"audience_id": audienceID,
		}, owner.AccessToken)
		testutil.AssertStatus(t, rr, http.StatusCreated)

		var campaign models.Campaign
		testutil.ParseJSONResponse(t, rr, &campaign)
		assert.Equal(t, models.CampaignStatusDraft, campaign.Status)
		campaignID = campaign.ID.String()
	})

	t.Run("invalid channel rejected", func(t *testing.T) {
		rr := f.do(t, http.MethodPost, "/api/v1/campaigns", map[string]interface{}{
			"name":    "Carrier pigeon",
			"channel": "pigeon",
		}, owner.AccessToken)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)
	})

	t.Run("lifecycle transitions enforced", func(t *testing.T) {
		// draft -> active is allowed
		rr := f.do(t, http.MethodPut, "/api/v1/campaigns/"+campaignID+"/status", map[string]string{
			"status": "active",
		}, owner.AccessToken)
		testutil.AssertStatus(t, rr, http.StatusOK)

		// active -> scheduled is not
		rr = f.do(t, http.MethodPut, "/api/v1/campaigns/"+campaignID+"/status", map[string]string{
			"status": "scheduled",
		}, owner.AccessToken)
		testutil.AssertStatus(t, rr, http.StatusConflict)

		// active -> completed is terminal
		rr = f.do(t, http.MethodPut, "/api/v1/campaigns/"+campaignID+"/status", map[string]string{
			"status": "completed",
		}, owner.AccessToken)
		testutil.AssertStatus(t, rr, http.StatusOK)

		rr = f.do(t, http.MethodPut, "/api/v1/campaigns/"+campaignID+"/status", map[string]string{
			"status": "draft",
		}, owner.AccessToken)
		testutil.AssertStatus(t, rr, http.StatusConflict)
	})

	t.Run("dispatching a completed campaign is a conflict", func(t *testing.T) {
		rr := f.do(t, http.MethodPost, "/api/v1/campaigns/"+campaignID+"/dispatch", nil, owner.AccessToken)
		testutil.AssertStatus(t, rr, http.StatusConflict)
	})
}

func TestRouter_Integrations(t *testing.T) {
	f := newRouterFixture(t)
	owner := f.register(t, "connector@example.com", "Connector")

	integration := models.Integration{
		Name:     "Mailchimp",
		Provider: "mailchimp",
		AuthType: "api_key",
		IsActive: true,
	}
	require.NoError(t, f.db.Create(&integration).Error)

	t.Run("catalog lists active providers", func(t *testing.T) {
		rr := f.do(t, http.MethodGet, "/api/v1/integrations", nil, owner.AccessToken)
		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp struct {
			Integrations []models.Integration `json:"integrations"`
		}
		testutil.ParseJSONResponse(t, rr, &resp)
		require.Len(t, resp.Integrations, 1)
		assert.Equal(t, "mailchimp", resp.Integrations[0].Provider)
	})

	t.Run("connect validates provider credentials", func(t *testing.T) {
		rr := f.do(t, http.MethodPost, "/api/v1/integrations/connections", map[string]interface{}{
			"provider":    "mailchimp",
			"credentials": map[string]interface{}{"api_key": "abc123"},
		}, owner.AccessToken)
		testutil.AssertStatus(t, rr, http.StatusBadRequest)

		var resp dto.ErrorResponse
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Contains(t, resp.Details, "server_prefix")
	})

	t.Run("connect stores credentials encrypted", func(t *testing.T) {
		rr := f.do(t, http.MethodPost, "/api/v1/integrations/connections", map[string]interface{}{
			"provider":    "mailchimp",
			"credentials": map[string]interface{}{"api_key": "abc123", "server_prefix": "us21"},
		}, owner.AccessToken)
		testutil.AssertStatus(t, rr, http.StatusCreated)

		var stored models.IntegrationConnection
		require.NoError(t, f.db.First(&stored).Error)
		assert.NotEmpty(t, stored.Credentials)
		assert.NotContains(t, stored.Credentials, "abc123")
	})

	t.Run("double connect is a conflict", func(t *testing.T) {
		rr := f.do(t, http.MethodPost, "/api/v1/integrations/connections", map[string]interface{}{
			"provider":    "mailchimp",
			"credentials": map[string]interface{}{"api_key": "abc123", "server_prefix": "us21"},
		}, owner.AccessToken)
		testutil.AssertStatus(t, rr, http.StatusConflict)
	})
}

func TestRouter_Analytics(t *testing.T) {
	f := newRouterFixture(t)
	owner := f.register(t, "insights@example.com", "Insights")

	rr := f.do(t, http.MethodPost, "/api/v1/audiences", map[string]interface{}{
		"name": "Launch list",
	}, owner.AccessToken)
	testutil.AssertStatus(t, rr, http.StatusCreated)
	var audience models.Audience
	testutil.ParseJSONResponse(t, rr, &audience)

	for _, email := range []string{"one@example.com", "two@example.com"} {
		rr = f.do(t, http.MethodPost, "/api/v1/audiences/"+audience.ID.String()+"/contacts", map[string]string{
			"email": email,
		}, owner.AccessToken)
		testutil.AssertStatus(t, rr, http.StatusCreated)
	}

	var contact models.Contact
	require.NoError(t, f.db.Where("email = ?", "two@example.com").First(&contact).Error)
	rr = f.do(t, http.MethodPost, "/api/v1/audiences/"+audience.ID.String()+"/contacts/"+contact.ID.String()+"/unsubscribe", nil, owner.AccessToken)
	testutil.AssertStatus(t, rr, http.StatusOK)

	rr = f.do(t, http.MethodPost, "/api/v1/campaigns", map[string]interface{}{
		"name":    "Teaser",
		"channel": "email",
	}, owner.AccessToken)
	testutil.AssertStatus(t, rr, http.StatusCreated)

	t.Run("overview reflects tenant data", func(t *testing.T) {
		rr := f.do(t, http.MethodGet, "/api/v1/analytics/overview", nil, owner.AccessToken)
		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp struct {
			Campaigns struct {
				ByStatus []struct {
					Status string `json:"status"`
					Count  int64  `json:"count"`
				} `json:"by_status"`
			} `json:"campaigns"`
			Audiences struct {
				Total              int64 `json:"total"`
				Contacts           int64 `json:"contacts"`
				SubscribedContacts int64 `json:"subscribed_contacts"`
			} `json:"audiences"`
		}
		testutil.ParseJSONResponse(t, rr, &resp)

		require.Len(t, resp.Campaigns.ByStatus, 1)
		assert.Equal(t, "draft", resp.Campaigns.ByStatus[0].Status)
		assert.EqualValues(t, 1, resp.Campaigns.ByStatus[0].Count)

		assert.EqualValues(t, 1, resp.Audiences.Total)
		assert.EqualValues(t, 2, resp.Audiences.Contacts)
		assert.EqualValues(t, 1, resp.Audiences.SubscribedContacts)
	})

	t.Run("empty for another tenant", func(t *testing.T) {
		other := f.register(t, "elsewhere@example.com", "Elsewhere")

		rr := f.do(t, http.MethodGet, "/api/v1/analytics/overview", nil, other.AccessToken)
		testutil.AssertStatus(t, rr, http.StatusOK)

		var resp struct {
			Audiences struct {
				Contacts int64 `json:"contacts"`
			} `json:"audiences"`
		}
		testutil.ParseJSONResponse(t, rr, &resp)
		assert.Zero(t, resp.Audiences.Contacts)
	})
}
