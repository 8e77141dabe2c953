package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/auth"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/database/models"
	"github.com/Mvmmv86/AutomationGlobal-Marketing-sub004/internal/permissions"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestJWTSecret satisfies the minimum secret length enforced at startup.
const TestJWTSecret = "test-secret-key-for-testing-0123456789"

// SetupTestDB creates an in-memory SQLite database for testing
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	// Run migrations
	err = db.AutoMigrate(
		&models.Organization{},
		&models.User{},
		&models.Membership{},
		&models.Automation{},
		&models.AutomationExecution{},
		&models.Campaign{},
		&models.Audience{},
		&models.Contact{},
		&models.Integration{},
		&models.IntegrationConnection{},
		&models.ActivityLog{},
		&models.Notification{},
	)
	if err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// CleanupTestDB closes the test database connection
func CleanupTestDB(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	if err != nil {
		t.Logf("warning: failed to get sql.DB: %v", err)
		return
	}
	sqlDB.Close()
}

// CreateTestOrg creates a test organization
func CreateTestOrg(t *testing.T, db *gorm.DB) *models.Organization {
	t.Helper()

	org := &models.Organization{
		Base: models.Base{
			ID: uuid.New(),
		},
		Name:             "Test Organization",
		Slug:             "test-org-" + uuid.New().String()[:8],
		Type:             models.OrgTypeMarketing,
		SubscriptionPlan: models.PlanStarter,
		Settings:         models.JSONMap{},
		IsActive:         true,
	}

	if err := db.Create(org).Error; err != nil {
		t.Fatalf("failed to create test organization: %v", err)
	}

	return org
}

// CreateTestUser creates a test user without any memberships
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()

	hash, err := auth.HashPassword("testpassword123")
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Base: models.Base{
			ID: uuid.New(),
		},
		Email:        "test-" + uuid.New().String()[:8] + "@example.com",
		PasswordHash: hash,
		Name:         "Test User",
		IsActive:     true,
	}

	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}

	return user
}

// CreateTestMembership links a user to an organization with the given role
func CreateTestMembership(t *testing.T, db *gorm.DB, user *models.User, org *models.Organization, role permissions.Role) *models.Membership {
	t.Helper()

	membership := &models.Membership{
		Base: models.Base{
			ID: uuid.New(),
		},
		UserID:         user.ID,
		OrganizationID: org.ID,
		Role:           string(role),
		Permissions:    models.PermissionMap{},
		JoinedAt:       time.Now(),
		IsActive:       true,
	}

	if err := db.Create(membership).Error; err != nil {
		t.Fatalf("failed to create test membership: %v", err)
	}

	return membership
}

// CreateTestJWTService creates a JWT service for testing
func CreateTestJWTService(t *testing.T) *auth.JWTService {
	t.Helper()

	svc, err := auth.NewJWTService(TestJWTSecret, time.Hour, 7*24*time.Hour)
	if err != nil {
		t.Fatalf("failed to create jwt service: %v", err)
	}
	return svc
}

// GenerateTestToken generates a valid access token bound to the membership's org
func GenerateTestToken(t *testing.T, jwtService *auth.JWTService, user *models.User, m *models.Membership) string {
	t.Helper()

	role := permissions.Role(m.Role)
	token, err := jwtService.GenerateAccessToken(user.ID, user.Email, m.OrganizationID, string(role), permissions.Effective(role, m.Permissions))
	if err != nil {
		t.Fatalf("failed to generate test token: %v", err)
	}

	return token
}

// AuthenticatedRequest creates an HTTP request with authentication
func AuthenticatedRequest(t *testing.T, method, path string, body interface{}, token string) *http.Request {
	t.Helper()

	var reqBody *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to marshal request body: %v", err)
		}
		reqBody = bytes.NewBuffer(jsonData)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	return req
}

// UnauthenticatedRequest creates an HTTP request without authentication
func UnauthenticatedRequest(t *testing.T, method, path string, body interface{}) *http.Request {
	t.Helper()
	return AuthenticatedRequest(t, method, path, body, "")
}

// AssertStatus checks if the response has the expected status code
func AssertStatus(t *testing.T, rr *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if rr.Code != expected {
		t.Errorf("expected status %d, got %d. Body: %s", expected, rr.Code, rr.Body.String())
	}
}

// ParseJSONResponse parses the response body into the given struct
func ParseJSONResponse(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()

	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to parse response body: %v. Body: %s", err, rr.Body.String())
	}
}

// CreateTestAutomation creates a test automation
func CreateTestAutomation(t *testing.T, db *gorm.DB, orgID, creatorID uuid.UUID) *models.Automation {
	t.Helper()

	automation := &models.Automation{
		Base: models.Base{
			ID: uuid.New(),
		},
		OrganizationID: orgID,
		Name:           "Test Automation",
		Trigger:        models.JSONMap{"type": "manual"},
		Actions:        models.JSONMap{"steps": []interface{}{}},
		IsActive:       true,
		CreatedBy:      creatorID,
	}

	if err := db.Create(automation).Error; err != nil {
		t.Fatalf("failed to create test automation: %v", err)
	}

	return automation
}

// CreateTestCampaign creates a test campaign
func CreateTestCampaign(t *testing.T, db *gorm.DB, orgID, creatorID uuid.UUID) *models.Campaign {
	t.Helper()

	campaign := &models.Campaign{
		Base: models.Base{
			ID: uuid.New(),
		},
		OrganizationID: orgID,
		Name:           "Test Campaign",
		Channel:        "email",
		Status:         models.CampaignStatusDraft,
		Metrics:        models.JSONMap{},
		CreatedBy:      creatorID,
	}

	if err := db.Create(campaign).Error; err != nil {
		t.Fatalf("failed to create test campaign: %v", err)
	}

	return campaign
}

// CreateTestAudience creates a test audience
func CreateTestAudience(t *testing.T, db *gorm.DB, orgID uuid.UUID) *models.Audience {
	t.Helper()

	audience := &models.Audience{
		Base: models.Base{
			ID: uuid.New(),
		},
		OrganizationID: orgID,
		Name:           "Test Audience",
		Filters:        models.JSONMap{},
		IsActive:       true,
	}

	if err := db.Create(audience).Error; err != nil {
		t.Fatalf("failed to create test audience: %v", err)
	}

	return audience
}

// TestContext creates a context with a timeout for tests
func TestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// TestSetup holds all the common test dependencies
type TestSetup struct {
	DB         *gorm.DB
	JWTService *auth.JWTService
	Org        *models.Organization
	User       *models.User
	Membership *models.Membership
	Token      string
}

// NewTestContext creates a complete test setup with DB, org, owner user, and token
func NewTestContext(t *testing.T) *TestSetup {
	t.Helper()

	db := SetupTestDB(t)
	jwtService := CreateTestJWTService(t)
	org := CreateTestOrg(t, db)
	user := CreateTestUser(t, db)
	membership := CreateTestMembership(t, db, user, org, permissions.RoleOrgOwner)
	token := GenerateTestToken(t, jwtService, user, membership)

	return &TestSetup{
		DB:         db,
		JWTService: jwtService,
		Org:        org,
		User:       user,
		Membership: membership,
		Token:      token,
	}
}

// Cleanup closes the test database
func (ts *TestSetup) Cleanup() {
	if ts.DB != nil {
		sqlDB, err := ts.DB.DB()
		if err == nil {
			sqlDB.Close()
		}
	}
}
